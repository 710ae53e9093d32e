package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/guardian-ai/internal/app"
	"github.com/wolfman30/guardian-ai/internal/capture"
	"github.com/wolfman30/guardian-ai/internal/triggers"
)

// maxFrameBytes bounds one pushed camera frame.
const maxFrameBytes = 8 << 20

type triggerResponse struct {
	Started bool            `json:"started"`
	Reason  string          `json:"reason,omitempty"`
	Session *capture.Status `json:"session,omitempty"`
}

func (h *Handler) writeTrigger(w http.ResponseWriter, r *http.Request, op string, fired bool, err error) {
	switch {
	case err != nil && app.IsIgnored(err):
		writeJSON(w, http.StatusAccepted, triggerResponse{Reason: err.Error()})
	case err != nil:
		h.fail(w, r, op, err)
	case !fired:
		writeJSON(w, http.StatusAccepted, triggerResponse{Reason: "no trigger detected"})
	default:
		sess, err := h.app.Session()
		if err != nil {
			// ended before we could read it
			writeJSON(w, http.StatusOK, triggerResponse{Started: true})
			return
		}
		st := sess.Status()
		writeJSON(w, http.StatusOK, triggerResponse{Started: true, Session: &st})
	}
}

// Trigger handles POST /api/triggers/{type}.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	t, err := triggers.Parse(chi.URLParam(r, "type"))
	if err != nil {
		h.fail(w, r, "trigger", err)
		return
	}
	_, err = h.app.Trigger(r.Context(), t)
	h.writeTrigger(w, r, "trigger", err == nil, err)
}

type voiceRequest struct {
	Transcript string `json:"transcript"`
}

// Voice handles POST /api/signals/voice.
func (h *Handler) Voice(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fired, err := h.app.HandleVoiceTranscript(r.Context(), req.Transcript)
	h.writeTrigger(w, r, "voice", fired, err)
}

type motionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Motion handles POST /api/signals/motion.
func (h *Handler) Motion(w http.ResponseWriter, r *http.Request) {
	var req motionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fired, err := h.app.HandleMotion(r.Context(), req.X, req.Y, req.Z)
	h.writeTrigger(w, r, "motion", fired, err)
}

// SessionStatus handles GET /api/session.
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := h.app.Session()
	if err != nil {
		h.fail(w, r, "session_status", err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Status())
}

// CancelSession handles POST /api/session/cancel.
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "cancel", h.app.CancelSession)
}

// StopSession handles POST /api/session/stop.
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "stop", h.app.StopSession)
}

// VerifyBiometric handles POST /api/session/biometric.
func (h *Handler) VerifyBiometric(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "biometric", h.app.VerifySessionBiometric)
}

func (h *Handler) sessionAction(w http.ResponseWriter, r *http.Request, op string, action func() error) {
	if err := action(); err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]app.View{"view": h.app.View()})
}

// VerifyPIN handles POST /api/session/pin during the power-button check.
func (h *Handler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ok, err := h.app.VerifySessionPIN(req.PIN)
	if err != nil {
		h.fail(w, r, "verify_pin", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]bool{"verified": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verified": true, "view": h.app.View()})
}

// ToggleCamera handles POST /api/session/camera.
func (h *Handler) ToggleCamera(w http.ResponseWriter, r *http.Request) {
	facing, err := h.app.ToggleCamera()
	if err != nil {
		h.fail(w, r, "toggle_camera", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]capture.Facing{"facing": facing})
}

// PushFrame handles POST /api/session/frames with a raw JPEG or PNG body.
func (h *Handler) PushFrame(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty frame")
		return
	}
	if err := h.app.PushFrame(data); err != nil {
		h.fail(w, r, "push_frame", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// UpdateLocation handles POST /api/session/location.
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.app.UpdateLocation(req.Latitude, req.Longitude); err != nil {
		h.fail(w, r, "update_location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
