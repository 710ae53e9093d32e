package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/guardian-ai/internal/app"
	"github.com/wolfman30/guardian-ai/internal/locale"
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

// Handler serves the GuardianAI API.
type Handler struct {
	app    *app.Controller
	logger *logging.Logger
	now    func() time.Time
}

// New creates a handler around the controller.
func New(controller *app.Controller, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{app: controller, logger: logger.Component("api"), now: time.Now}
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// State handles GET /api/state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Snapshot())
}

type languageRequest struct {
	Language string `json:"language"`
}

// CompleteOnboarding handles POST /api/onboarding.
func (h *Handler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	lang, err := locale.Parse(req.Language)
	if err != nil {
		h.fail(w, r, "onboarding", err)
		return
	}
	if err := h.app.CompleteOnboarding(r.Context(), lang); err != nil {
		h.fail(w, r, "onboarding", err)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Snapshot())
}

// SetLanguage handles PUT /api/language. An empty body cycles EN, FR, AR.
func (h *Handler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Language == "" {
		lang := h.app.CycleLanguage(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"language": lang, "rtl": lang.RTL()})
		return
	}
	lang, err := locale.Parse(req.Language)
	if err == nil {
		err = h.app.SetLanguage(r.Context(), lang)
	}
	if err != nil {
		h.fail(w, r, "set_language", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"language": lang, "rtl": lang.RTL()})
}

type viewRequest struct {
	View string `json:"view"`
}

// Navigate handles POST /api/view.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.app.Navigate(app.View(req.View)); err != nil {
		h.fail(w, r, "navigate", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]app.View{"view": h.app.View()})
}

// CloseSummary handles POST /api/summary/close.
func (h *Handler) CloseSummary(w http.ResponseWriter, r *http.Request) {
	if err := h.app.CloseSummary(); err != nil {
		h.fail(w, r, "close_summary", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]app.View{"view": h.app.View()})
}

type listeningRequest struct {
	Listening bool `json:"listening"`
}

// SetListening handles POST /api/listening.
func (h *Handler) SetListening(w http.ResponseWriter, r *http.Request) {
	var req listeningRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.app.SetListening(req.Listening)
	writeJSON(w, http.StatusOK, req)
}

// settingsView hides the vault PIN.
type settingsView struct {
	settings.Settings
	VaultPIN       any  `json:"vaultPin,omitempty"`
	PINProtected   bool `json:"pinProtected"`
	LockoutUntil   any  `json:"lockoutUntil,omitempty"`
	FailedAttempts any  `json:"failedAttempts,omitempty"`
}

func viewOf(s settings.Settings) settingsView {
	return settingsView{Settings: s, PINProtected: s.HasPIN()}
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(h.app.Settings()))
}

// UpdateSettings handles PUT /api/settings with a partial body.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s, err := h.app.UpdateSettings(r.Context(), patch)
	if err != nil {
		h.fail(w, r, "update_settings", err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

// AddContact handles POST /api/settings/contacts.
func (h *Handler) AddContact(w http.ResponseWriter, r *http.Request) {
	var c settings.Contact
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	added, err := h.app.AddContact(r.Context(), c)
	if err != nil {
		h.fail(w, r, "add_contact", err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// RemoveContact handles DELETE /api/settings/contacts/{id}.
func (h *Handler) RemoveContact(w http.ResponseWriter, r *http.Request) {
	if err := h.app.RemoveContact(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "remove_contact", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// SetPIN handles PUT /api/settings/pin. The current PIN, if any, comes in
// the vault header.
func (h *Handler) SetPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.app.SetVaultPIN(r.Context(), VaultPINFromContext(r.Context()), req.PIN); err != nil {
		h.fail(w, r, "set_pin", err)
		return
	}
	writeJSON(w, http.StatusOK, h.app.VaultStatus())
}

// ClearPIN handles DELETE /api/settings/pin.
func (h *Handler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	if err := h.app.ClearVaultPIN(r.Context(), VaultPINFromContext(r.Context())); err != nil {
		h.fail(w, r, "clear_pin", err)
		return
	}
	writeJSON(w, http.StatusOK, h.app.VaultStatus())
}
