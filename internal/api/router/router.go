package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/guardian-ai/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/guardian-ai/internal/http/middleware"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Handler            *handlers.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Vault routes are rate limited per client IP. A zero limit disables it.
	VaultRateLimit float64
	VaultRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()
	h := cfg.Handler

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", h.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// PIN-gated routes are rate limited per client IP.
	gated := chi.Chain()
	if cfg.VaultRateLimit > 0 {
		gated = chi.Chain(httpmiddleware.RateLimit(cfg.VaultRateLimit, cfg.VaultRateBurst))
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(vaultPIN)

		api.Get("/state", h.State)
		api.Post("/onboarding", h.CompleteOnboarding)
		api.Put("/language", h.SetLanguage)
		api.Post("/view", h.Navigate)
		api.Post("/listening", h.SetListening)
		api.Post("/summary/close", h.CloseSummary)

		api.Route("/settings", func(r chi.Router) {
			r.Get("/", h.GetSettings)
			r.Put("/", h.UpdateSettings)
			r.Post("/contacts", h.AddContact)
			r.Delete("/contacts/{id}", h.RemoveContact)
			r.With(gated...).Put("/pin", h.SetPIN)
			r.With(gated...).Delete("/pin", h.ClearPIN)
		})

		api.Post("/triggers/{type}", h.Trigger)
		api.Post("/signals/voice", h.Voice)
		api.Post("/signals/motion", h.Motion)

		api.Route("/session", func(r chi.Router) {
			r.Get("/", h.SessionStatus)
			r.Get("/stream", h.SessionStream)
			r.Post("/cancel", h.CancelSession)
			r.Post("/stop", h.StopSession)
			r.Post("/camera", h.ToggleCamera)
			r.Post("/biometric", h.VerifyBiometric)
			r.Post("/pin", h.VerifyPIN)
			r.Post("/frames", h.PushFrame)
			r.Post("/location", h.UpdateLocation)
		})

		api.Route("/evidence", func(r chi.Router) {
			r.With(gated...).Get("/", h.ListEvidence)
			r.With(gated...).Delete("/", h.ClearEvidence)
			r.With(gated...).Delete("/{id}", h.DeleteEvidence)
			r.Post("/{id}/share", h.ShareEvidence)
			r.Put("/{id}/classification", h.ClassifyEvidence)
		})

		api.With(gated...).Get("/report.pdf", h.Report)
		api.Get("/community/incidents", h.Incidents)
	})

	return r
}
