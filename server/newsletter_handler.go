package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"pleia/core/newsletter"
	"pleia/logger"
)

// SubscribeHandler signs an email up for the newsletter, optionally
// crediting a referral code. Public endpoint.
func (h *APIHandler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		ReferredBy string `json:"referredBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	// Duplicate signups come back as the existing subscriber, not an
	// error, so re-subscribing is always a 201.
	sub, err := h.newsletter.Subscribe(r.Context(), req.Email, req.ReferredBy)
	if err != nil {
		if errors.Is(err, newsletter.ErrInvalidEmail) {
			writeError(w, http.StatusBadRequest, "a valid email is required", "")
			return
		}
		logger.Error("[Newsletter] subscribe failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	logger.Info("[Newsletter] subscribed", logger.Int64("subscriber_id", sub.ID))
	writeJSON(w, http.StatusCreated, map[string]bool{"subscribed": true})
}

// ReferralStatsHandler returns how many signups a referral code has
// produced.
func (h *APIHandler) ReferralStatsHandler(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		writeError(w, http.StatusBadRequest, "referral code is required", "")
		return
	}

	count, err := h.newsletter.ReferralStats(r.Context(), code)
	if err != nil {
		logger.Error("[Newsletter] referral stats failed",
			logger.String("code", code), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":     code,
		"referred": count,
	})
}
