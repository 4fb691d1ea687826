package server

import (
	"net/http"

	"pleia/core/usage"
	"pleia/logger"
)

// UsageHandler reports the caller's consumption for the current billing
// month against the plan limit.
func (h *APIHandler) UsageHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authorization required", "")
		return
	}

	user, err := h.userRepo.GetUserByID(userID)
	if err != nil || user == nil {
		logger.Error("[Usage] user lookup failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	run, err := usage.NewRun(r.Context(), user, h.usageRepo)
	if err != nil {
		logger.Error("[Usage] tally failed", logger.Int64("user_id", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	writeJSON(w, http.StatusOK, run.Summary())
}
