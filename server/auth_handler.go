package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pleia/cache"
	"pleia/core/auth"
	"pleia/logger"
	"pleia/model"
	"pleia/repository"
)

type contextKey string

const (
	ctxUserID contextKey = "userID"
	ctxEmail  contextKey = "email"
)

// RegisterRequest is the registration request body.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	// Referral code of the user who invited this one, optional.
	ReferredBy string `json:"referredBy"`
}

type authResponse struct {
	Token string              `json:"token"`
	User  model.PublicProfile `json:"user"`
}

// RegisterHandler creates an account and returns a session token.
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required", "")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters", "")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("[Register] password hash failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: hashed,
		DisplayName:  req.DisplayName,
		Plan:         model.PlanFree,
		ReferralCode: newReferralCode(),
	}

	userID, err := h.userRepo.CreateUser(user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			logger.Warn("[Register] email already registered", logger.String("email", req.Email))
			writeError(w, http.StatusConflict, "email already registered", "")
			return
		}
		logger.Error("[Register] create user failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to create user", "")
		return
	}
	user.ID = userID

	if req.ReferredBy != "" {
		if owner, _ := h.userRepo.GetUserByReferralCode(req.ReferredBy); owner != nil {
			if _, err := cache.CreditReferral(r.Context(), req.ReferredBy); err != nil {
				logger.Warn("[Register] referral credit failed", logger.ErrorField(err))
			}
		}
	}

	token, err := auth.GenerateToken(userID, user.Email)
	if err != nil {
		logger.Error("[Register] token generation failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	logger.Info("[Register] account created", logger.Int64("user_id", userID))
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user.Public()})
}

// LoginHandler authenticates by email and password.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required", "")
		return
	}

	user, err := h.userRepo.GetUserByEmail(strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		logger.Error("[Login] user lookup failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}
	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		logger.Warn("[Login] invalid credentials", logger.String("email", req.Email))
		writeError(w, http.StatusUnauthorized, "invalid email or password", "")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		logger.Error("[Login] token generation failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	logger.Info("[Login] session opened", logger.Int64("user_id", user.ID))
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user.Public()})
}

// AuthMiddleware validates the bearer token and stashes the claims in
// the request context.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authorization required", "")
			return
		}

		claims, err := auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token", "")
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxEmail, claims.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// bearerToken extracts the token from the Authorization header, falling
// back to the token query parameter for websocket clients that cannot
// set headers.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// GetUserIDFromContext extracts the authenticated user ID.
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(ctxUserID).(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

func newReferralCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
