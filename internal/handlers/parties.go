package handlers

import (
	"net/http"

	"bookkeeping/internal/models"
	"bookkeeping/internal/services"

	"github.com/go-chi/chi/v5"
)

type partyRequest struct {
	Name           string `json:"name"`
	Status         string `json:"status"`
	CommissionRate string `json:"commission_rate"`
	Rate           string `json:"rate"`
}

func (req partyRequest) input(userID string) services.PartyInput {
	return services.PartyInput{
		UserID:         userID,
		Name:           req.Name,
		Status:         req.Status,
		CommissionRate: req.CommissionRate,
		Rate:           req.Rate,
	}
}

func (h *Handler) ListParties(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	parties, err := h.ledger.ListParties(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load parties")
		return
	}
	if parties == nil {
		parties = []models.Party{}
	}
	respondJSON(w, http.StatusOK, parties)
}

func (h *Handler) CreateParty(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req partyRequest
	if !decode(w, r, &req) {
		return
	}
	party, err := h.ledger.CreateParty(r.Context(), req.input(userID))
	if err != nil {
		h.respondServiceError(w, r, err, "unable to create party")
		return
	}
	respondJSON(w, http.StatusCreated, party)
}

func (h *Handler) UpdateParty(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req partyRequest
	if !decode(w, r, &req) {
		return
	}
	party, err := h.ledger.UpdateParty(r.Context(), chi.URLParam(r, "id"), req.input(userID))
	if err != nil {
		h.respondServiceError(w, r, err, "unable to update party")
		return
	}
	respondJSON(w, http.StatusOK, party)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) RenameParty(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req renameRequest
	if !decode(w, r, &req) {
		return
	}
	party, err := h.ledger.RenameParty(r.Context(), userID, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to rename party")
		return
	}
	respondJSON(w, http.StatusOK, party)
}

// DeleteParty removes the party and every entry recorded against it.
func (h *Handler) DeleteParty(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	removed, err := h.ledger.DeleteParty(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable to delete party")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"entries_deleted": removed})
}

func (h *Handler) PartyLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	view, err := h.ledger.GetPartyLedger(r.Context(), userID, chi.URLParam(r, "name"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load ledger")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	result, err := h.ledger.Recalculate(r.Context(), userID, chi.URLParam(r, "name"))
	if err != nil {
		h.respondPartial(w, r, result, err, "recalculation failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
