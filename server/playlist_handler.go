package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pleia/core/playlist"
	"pleia/core/usage"
	"pleia/logger"
	"pleia/model"
	"pleia/storage"
)

// GenerateRequest is the playlist generation request body.
type GenerateRequest struct {
	Prompt       string `json:"prompt"`
	TargetTracks int    `json:"target_tracks"`
}

const defaultTargetTracks = 50

// GeneratePlaylistHandler runs the full generation pipeline and streams
// partial results as they land. Hard failures before the first byte get
// a real HTTP status; once streaming starts, errors travel in-band as
// ok:false frames because the 200 is already on the wire.
func (h *APIHandler) GeneratePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authorization required", "")
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required", "")
		return
	}
	if req.TargetTracks <= 0 {
		req.TargetTracks = defaultTargetTracks
	}

	traceID := uuid.New().String()

	user, err := h.userRepo.GetUserByID(userID)
	if err != nil || user == nil {
		logger.Error("[Generate] user lookup failed",
			logger.Int64("user_id", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}
	if !user.TermsAccepted {
		writeError(w, http.StatusForbidden, "terms of service not accepted", "TERMS_NOT_ACCEPTED")
		return
	}

	run, err := usage.NewRun(r.Context(), user, h.usageRepo)
	if err != nil {
		logger.Error("[Generate] usage tally failed",
			logger.Int64("user_id", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}
	if !run.HasAllowance() {
		writeError(w, http.StatusForbidden, "monthly generation limit reached", "LIMIT_REACHED")
		return
	}

	// Fail fast on a dead hub credential before committing to a stream.
	if _, err := h.tokener.Token(r.Context()); err != nil {
		logger.Error("[Generate] hub auth failed", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "music provider unavailable", "")
		return
	}

	intent, err := h.intents.Resolve(r.Context(), req.Prompt, req.TargetTracks)
	if err != nil {
		logger.Error("[Generate] intent resolution failed",
			logger.String("trace_id", traceID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "intent resolution failed", "")
		return
	}

	// Point of no return: commit the 200 and stream frames.
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Trace-Id", traceID)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	stream := &frameWriter{w: w, flusher: flusher}
	started := time.Now()

	logger.Info("[Generate] stream opened",
		logger.String("trace_id", traceID),
		logger.Int64("user_id", userID),
		logger.Int("target", req.TargetTracks),
	)

	modeStr := string(playlist.DetermineMode(intent, req.Prompt))
	tracks, mode, err := h.engine.Generate(r.Context(), intent, req.Prompt, req.TargetTracks, func(c playlist.Chunk) {
		stream.send(progressFrame{
			OK:           true,
			Mode:         modeStr,
			TargetTracks: req.TargetTracks,
			Streaming:    true,
			Tracks:       c.Tracks,
			Count:        c.Count,
			Status:       "generating",
			Chunk:        c.Index,
			Progress:     c.Progress,
		})
	})
	if err != nil {
		h.failStream(r, stream, run, traceID, fmt.Errorf("generation failed: %w", err))
		return
	}

	tracks = h.engine.Enrich(r.Context(), tracks)
	if len(tracks) == 0 {
		h.failStream(r, stream, run, traceID, fmt.Errorf("no tracks could be generated"))
		return
	}

	// One unit per successful generation, consumed only now that a
	// non-empty playlist is guaranteed.
	if err := run.ConsumeOnFirstTrack(r.Context(), len(tracks), map[string]interface{}{
		"trace_id": traceID,
		"mode":     string(mode),
		"prompt":   req.Prompt,
	}); err != nil {
		h.failStream(r, stream, run, traceID, fmt.Errorf("usage accounting failed: %w", err))
		return
	}

	if h.snapshots != nil {
		if err := h.snapshots.Archive(r.Context(), storage.Snapshot{
			TraceID:    traceID,
			UserID:     userID,
			Prompt:     req.Prompt,
			Mode:       string(mode),
			TrackCount: len(tracks),
			Tracks:     tracks,
		}); err != nil {
			logger.Warn("[Generate] snapshot archive failed",
				logger.String("trace_id", traceID), logger.ErrorField(err))
		}
	}

	stream.send(finalFrame{
		OK:           true,
		Mode:         string(mode),
		TargetTracks: req.TargetTracks,
		Streaming:    false,
		Tracks:       tracks,
		Count:        len(tracks),
		Status:       "completed",
		Progress:     100,
		Duration:     time.Since(started).Milliseconds(),
		Usage:        run.Summary(),
	})
	logger.Info("[Generate] stream completed",
		logger.String("trace_id", traceID),
		logger.String("mode", string(mode)),
		logger.Int("tracks", len(tracks)),
	)
}

// failStream refunds any consumed unit and emits the terminal ok:false
// frame.
func (h *APIHandler) failStream(r *http.Request, stream *frameWriter, run *usage.Run, traceID string, cause error) {
	logger.Error("[Generate] stream failed",
		logger.String("trace_id", traceID), logger.ErrorField(cause))
	refunded := false
	if run.HasConsumed() {
		if err := run.Refund(r.Context()); err != nil {
			logger.Error("[Generate] refund failed",
				logger.String("trace_id", traceID), logger.ErrorField(err))
		} else {
			refunded = true
		}
	}
	frame := errorFrame{OK: false, Error: cause.Error(), Status: "error", Refunded: refunded}
	if errors.Is(cause, usage.ErrLimitReached) {
		frame.Reason = "LIMIT_REACHED"
		frame.Remaining = run.Remaining()
	}
	stream.send(frame)
}

type progressFrame struct {
	OK           bool          `json:"ok"`
	Mode         string        `json:"mode"`
	TargetTracks int           `json:"target_tracks"`
	Streaming    bool          `json:"streaming"`
	Tracks       []model.Track `json:"tracks"`
	Count        int           `json:"count"`
	Status       string        `json:"status"`
	Chunk        int           `json:"chunk"`
	Progress     float64       `json:"progress"`
}

type finalFrame struct {
	OK           bool               `json:"ok"`
	Mode         string             `json:"mode"`
	TargetTracks int                `json:"target_tracks"`
	Streaming    bool               `json:"streaming"`
	Tracks       []model.Track      `json:"tracks"`
	Count        int                `json:"count"`
	Status       string             `json:"status"`
	Progress     float64            `json:"progress"`
	Duration     int64              `json:"duration"`
	Usage        model.UsageSummary `json:"usage"`
}

type errorFrame struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	Streaming bool   `json:"streaming"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
	Refunded  bool   `json:"refunded,omitempty"`
}

// frameWriter emits data: <json> frames, flushing after each one so
// partial results reach the client immediately.
type frameWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (f *frameWriter) send(payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("[Generate] frame encode failed", logger.ErrorField(err))
		return
	}
	if _, err := fmt.Fprintf(f.w, "data: %s\n\n", body); err != nil {
		logger.Warn("[Generate] frame write failed", logger.ErrorField(err))
		return
	}
	if f.flusher != nil {
		f.flusher.Flush()
	}
}
