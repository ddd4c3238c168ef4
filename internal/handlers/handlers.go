package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"bookkeeping/internal/errs"
	"bookkeeping/internal/middleware"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the errs sentinels onto status codes. Unknown errors are logged
// and hidden behind a generic message.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var partial *errs.PartialFailure
	switch {
	case errors.Is(err, errs.ErrInvalid):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &partial):
		respondJSON(w, http.StatusMultiStatus, map[string]any{
			"error":     partial.Error(),
			"attempted": partial.Attempted,
			"failed":    partial.Failed,
			"causes":    partial.Causes,
		})
	default:
		h.logger.ErrorContext(r.Context(), fallback, "error", err, "path", r.URL.Path)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

// respondPartial writes result with 207 when err is a PartialFailure, so the client sees
// both what was written and what was not.
func (h *Handler) respondPartial(w http.ResponseWriter, r *http.Request, result any, err error, fallback string) {
	var partial *errs.PartialFailure
	if errors.As(err, &partial) {
		respondJSON(w, http.StatusMultiStatus, map[string]any{
			"result": result,
			"error":  partial.Error(),
			"causes": partial.Causes,
		})
		return
	}
	h.respondServiceError(w, r, err, fallback)
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return userID, true
}

func decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}

func parseLimitOffset(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 && value <= 200 {
			limit = value
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			offset = value
		}
	}
	return limit, offset
}
