package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/report"
)

// ListEvidenceResponse is the vault listing.
type ListEvidenceResponse struct {
	Items []evidence.Item `json:"items"`
	Count int             `json:"count"`
}

// ListEvidence handles GET /api/evidence.
func (h *Handler) ListEvidence(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Evidence(r.Context(), VaultPINFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "list_evidence", err)
		return
	}
	writeJSON(w, http.StatusOK, ListEvidenceResponse{Items: items, Count: len(items)})
}

// ClearEvidence handles DELETE /api/evidence.
func (h *Handler) ClearEvidence(w http.ResponseWriter, r *http.Request) {
	if err := h.app.ClearEvidence(r.Context(), VaultPINFromContext(r.Context())); err != nil {
		h.fail(w, r, "clear_evidence", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteEvidence handles DELETE /api/evidence/{id}.
func (h *Handler) DeleteEvidence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.app.DeleteEvidence(r.Context(), id, VaultPINFromContext(r.Context())); err != nil {
		h.fail(w, r, "delete_evidence", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ShareEvidence handles POST /api/evidence/{id}/share.
func (h *Handler) ShareEvidence(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.ShareEvidence(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "share_evidence", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type classificationRequest struct {
	Classification evidence.Classification `json:"classification"`
}

// ClassifyEvidence handles PUT /api/evidence/{id}/classification.
func (h *Handler) ClassifyEvidence(w http.ResponseWriter, r *http.Request) {
	var req classificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.app.ClassifyEvidence(r.Context(), id, req.Classification); err != nil {
		h.fail(w, r, "classify_evidence", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Report handles GET /api/report.pdf.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.app.Report(r.Context(), &buf, VaultPINFromContext(r.Context())); err != nil {
		h.fail(w, r, "report", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(h.now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Incidents handles GET /api/community/incidents.
func (h *Handler) Incidents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Incidents())
}
