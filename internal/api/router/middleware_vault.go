package router

import (
	"net/http"

	"github.com/wolfman30/guardian-ai/internal/http/handlers"
)

// vaultPIN moves the X-Vault-Pin header into the request context.
func vaultPIN(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := handlers.WithVaultPIN(r.Context(), r.Header.Get(handlers.VaultPINHeader))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
