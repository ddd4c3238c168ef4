package handlers

import (
	"net/http"

	"bookkeeping/internal/services"

	"github.com/go-chi/chi/v5"
)

type entryRequest struct {
	Party     string `json:"party"`
	Date      string `json:"date"`
	Direction string `json:"direction"`
	Amount    string `json:"amount"`
	Remarks   string `json:"remarks"`
	Category  string `json:"category"`
}

func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req entryRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.ledger.AddEntry(r.Context(), services.AddEntryInput{
		UserID:    userID,
		Party:     req.Party,
		Date:      req.Date,
		Direction: req.Direction,
		Amount:    req.Amount,
		Remarks:   req.Remarks,
		Category:  req.Category,
	})
	if err != nil {
		h.respondPartial(w, r, result, err, "unable to add entry")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// Absent fields are left as they are.
type entryPatch struct {
	Party     *string `json:"party"`
	Date      *string `json:"date"`
	Direction *string `json:"direction"`
	Amount    *string `json:"amount"`
	Remarks   *string `json:"remarks"`
}

func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req entryPatch
	if !decode(w, r, &req) {
		return
	}
	result, err := h.ledger.UpdateEntry(r.Context(), services.UpdateEntryInput{
		UserID:    userID,
		ID:        chi.URLParam(r, "id"),
		Party:     req.Party,
		Date:      req.Date,
		Direction: req.Direction,
		Amount:    req.Amount,
		Remarks:   req.Remarks,
	})
	if err != nil {
		h.respondPartial(w, r, result, err, "unable to update entry")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	result, err := h.ledger.DeleteEntry(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondPartial(w, r, result, err, "unable to delete entry")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
