package server

import (
	"net/http"

	"pleia/cache"
	"pleia/logger"
)

// ProfileHandler returns the authenticated user's public profile,
// served from the Redis cache when warm.
func (h *APIHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authorization required", "")
		return
	}

	if cached, err := cache.GetProfile(r.Context(), userID); err != nil {
		logger.Warn("[Profile] cache read failed", logger.ErrorField(err))
	} else if cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	user, err := h.userRepo.GetUserByID(userID)
	if err != nil {
		logger.Error("[Profile] user lookup failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found", "")
		return
	}

	profile := user.Public()
	if err := cache.SetProfile(r.Context(), profile); err != nil {
		logger.Warn("[Profile] cache write failed", logger.ErrorField(err))
	}
	writeJSON(w, http.StatusOK, profile)
}

// AcceptTermsHandler records the user's acceptance of the terms of
// service. Idempotent; accepting twice is not an error.
func (h *APIHandler) AcceptTermsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authorization required", "")
		return
	}

	if err := h.userRepo.AcceptTerms(userID); err != nil {
		logger.Error("[Terms] accept failed", logger.Int64("user_id", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	// Cached profile now stale.
	if err := cache.InvalidateProfile(r.Context(), userID); err != nil {
		logger.Warn("[Terms] cache invalidation failed", logger.ErrorField(err))
	}

	logger.Info("[Terms] accepted", logger.Int64("user_id", userID))
	writeJSON(w, http.StatusOK, map[string]bool{"termsAccepted": true})
}
