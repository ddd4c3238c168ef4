package handlers

import (
	"net/http"
	"strconv"

	"bookkeeping/internal/auth"
	"bookkeeping/internal/middleware"
	"bookkeeping/internal/services"
	"bookkeeping/internal/websocket"
)

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	fresh, _ := strconv.ParseBool(query.Get("fresh"))
	report, err := h.ledger.TrialBalance(r.Context(), services.TrialBalanceQuery{
		UserID:  userID,
		Party:   query.Get("party"),
		AsOf:    query.Get("as_of"),
		Company: query.Get("company"),
		Fresh:   fresh,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "unable to build trial balance")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	report, err := h.ledger.SelfCheck(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "self-check failed")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// WSLedger upgrades to a websocket that receives a message whenever one of the user's
// parties changes. Browsers cannot set headers on the upgrade, so the token may come as a
// query parameter.
func (h *Handler) WSLedger(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var err error
		if token, err = middleware.BearerToken(r); err != nil {
			respondError(w, http.StatusUnauthorized, "missing token")
			return
		}
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
