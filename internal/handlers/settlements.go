package handlers

import (
	"net/http"

	"bookkeeping/internal/services"

	"github.com/go-chi/chi/v5"
)

type settleRequest struct {
	Parties []string `json:"parties"`
}

func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req settleRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.ledger.Settle(r.Context(), userID, req.Parties)
	if err != nil {
		h.respondPartial(w, r, result, err, "settlement failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Unsettle reverses the settlement whose marker id is in the path. A repaired
// inconsistency is reported in the body, not as an error.
func (h *Handler) Unsettle(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	result, err := h.ledger.Unsettle(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondPartial(w, r, result, err, "unsettle failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	summaries, err := h.ledger.ListSettlements(r.Context(), userID, chi.URLParam(r, "name"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load settlements")
		return
	}
	if summaries == nil {
		summaries = []services.SettlementSummary{}
	}
	respondJSON(w, http.StatusOK, summaries)
}
