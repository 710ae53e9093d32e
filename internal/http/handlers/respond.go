// Package handlers exposes the GuardianAI controller over JSON HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/guardian-ai/internal/app"
	"github.com/wolfman30/guardian-ai/internal/capture"
	"github.com/wolfman30/guardian-ai/internal/community"
	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/locale"
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/internal/triggers"
	"github.com/wolfman30/guardian-ai/internal/vault"
)

// VaultPINHeader carries the vault PIN on gated requests.
const VaultPINHeader = "X-Vault-Pin"

type vaultPINKey struct{}

// WithVaultPIN stores the PIN presented with a request.
func WithVaultPIN(ctx context.Context, pin string) context.Context {
	return context.WithValue(ctx, vaultPINKey{}, strings.TrimSpace(pin))
}

// VaultPINFromContext returns the PIN stored by WithVaultPIN.
func VaultPINFromContext(ctx context.Context) string {
	pin, _ := ctx.Value(vaultPINKey{}).(string)
	return pin
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a small JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vault.ErrWrongPIN):
		return http.StatusUnauthorized
	case errors.Is(err, vault.ErrLockedOut):
		return http.StatusLocked
	case errors.Is(err, evidence.ErrNotFound),
		errors.Is(err, settings.ErrContactNotFound):
		return http.StatusNotFound
	case errors.Is(err, settings.ErrInvalid),
		errors.Is(err, locale.ErrUnknownLanguage),
		errors.Is(err, triggers.ErrUnknownTrigger),
		errors.Is(err, app.ErrUnknownView),
		errors.Is(err, evidence.ErrInvalidClassification),
		errors.Is(err, capture.ErrInvalidFix),
		errors.Is(err, capture.ErrInvalidFrame),
		errors.Is(err, community.ErrInvalidCoordinates):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNoSession),
		errors.Is(err, app.ErrSessionActive),
		errors.Is(err, app.ErrEmergencyByRoute),
		errors.Is(err, app.ErrNotInSummary),
		errors.Is(err, evidence.ErrImmutable),
		errors.Is(err, capture.ErrSessionEnded),
		errors.Is(err, capture.ErrNotAwaitingAuth),
		errors.Is(err, capture.ErrNotCancellable),
		errors.Is(err, capture.ErrNotRecording),
		errors.Is(err, capture.ErrStopUnavailable),
		errors.Is(err, capture.ErrCameraClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server errors are logged and
// their detail withheld.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "op", op, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
