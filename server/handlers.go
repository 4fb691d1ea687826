package server

import (
	"context"
	"encoding/json"
	"net/http"

	"pleia/config"
	"pleia/core/intent"
	"pleia/core/newsletter"
	"pleia/core/playlist"
	"pleia/logger"
	"pleia/repository"
	"pleia/storage"
)

// APIHandler bundles the dependencies the HTTP handlers need.
type APIHandler struct {
	cfg        *config.Config
	userRepo   repository.UserRepository
	usageRepo  repository.UsageRepository
	engine     *playlist.Engine
	intents    intent.Resolver
	newsletter *newsletter.Service
	tokener    hubTokener
	snapshots  *storage.SnapshotStore
}

// hubTokener is the fail-fast check that the Spotify integration can
// authenticate. It runs before a generation request is committed so a
// broken hub credential turns into a clean 500 instead of a dead stream.
type hubTokener interface {
	Token(ctx context.Context) (string, error)
}

// NewAPIHandler builds the handler set. snapshots may be nil when
// archival is disabled.
func NewAPIHandler(
	cfg *config.Config,
	userRepo repository.UserRepository,
	usageRepo repository.UsageRepository,
	engine *playlist.Engine,
	intents intent.Resolver,
	news *newsletter.Service,
	tokener hubTokener,
	snapshots *storage.SnapshotStore,
) *APIHandler {
	return &APIHandler{
		cfg:        cfg,
		userRepo:   userRepo,
		usageRepo:  usageRepo,
		engine:     engine,
		intents:    intents,
		newsletter: news,
		tokener:    tokener,
		snapshots:  snapshots,
	}
}

// errorBody is the JSON error envelope. Code carries machine-readable
// reasons like TERMS_NOT_ACCEPTED and LIMIT_REACHED.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("[API] response encode failed", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}
