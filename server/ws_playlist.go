package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pleia/core/auth"
	"pleia/core/playlist"
	"pleia/core/usage"
	"pleia/logger"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// wsConn serializes writes to the underlying connection. gorilla/websocket
// allows only one concurrent writer, and the keepalive ping loop runs
// beside the generation stream.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(payload)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// WebSocketPlaylistHandler is the websocket flavor of the generation
// endpoint for clients that prefer a bidirectional channel over chunked
// HTTP. Auth rides on the token query parameter since browsers cannot
// set headers on websocket dials.
func (h *APIHandler) WebSocketPlaylistHandler(w http.ResponseWriter, r *http.Request) {
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

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("[WS] upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	wc := &wsConn{conn: conn}
	done := make(chan struct{})
	defer close(done)
	go wsPingLoop(wc, done)

	for {
		var req GenerateRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("[WS] read failed", logger.ErrorField(err))
			}
			return
		}
		h.wsGenerate(r, wc, claims.UserID, req)
	}
}

func (h *APIHandler) wsGenerate(r *http.Request, wc *wsConn, userID int64, req GenerateRequest) {
	if req.Prompt == "" {
		wsSendError(wc, "prompt is required")
		return
	}
	if req.TargetTracks <= 0 {
		req.TargetTracks = defaultTargetTracks
	}

	user, err := h.userRepo.GetUserByID(userID)
	if err != nil || user == nil {
		wsSendError(wc, "internal server error")
		return
	}
	if !user.TermsAccepted {
		wsSendError(wc, "terms of service not accepted")
		return
	}

	run, err := usage.NewRun(r.Context(), user, h.usageRepo)
	if err != nil {
		wsSendError(wc, "internal server error")
		return
	}
	if !run.HasAllowance() {
		wsSendError(wc, "monthly generation limit reached")
		return
	}

	started := time.Now()
	intent, err := h.intents.Resolve(r.Context(), req.Prompt, req.TargetTracks)
	if err != nil {
		logger.Error("[WS] intent resolution failed", logger.ErrorField(err))
		wsSendError(wc, "intent resolution failed")
		return
	}

	modeStr := string(playlist.DetermineMode(intent, req.Prompt))
	tracks, mode, err := h.engine.Generate(r.Context(), intent, req.Prompt, req.TargetTracks, func(c playlist.Chunk) {
		wsSend(wc, progressFrame{
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
		h.wsFail(r, wc, run, fmt.Errorf("generation failed: %w", err))
		return
	}

	tracks = h.engine.Enrich(r.Context(), tracks)
	if len(tracks) == 0 {
		h.wsFail(r, wc, run, fmt.Errorf("no tracks could be generated"))
		return
	}

	if err := run.ConsumeOnFirstTrack(r.Context(), len(tracks), map[string]interface{}{
		"mode":   string(mode),
		"prompt": req.Prompt,
	}); err != nil {
		h.wsFail(r, wc, run, fmt.Errorf("usage accounting failed: %w", err))
		return
	}

	wsSend(wc, finalFrame{
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
}

func (h *APIHandler) wsFail(r *http.Request, wc *wsConn, run *usage.Run, cause error) {
	logger.Error("[WS] generation failed", logger.ErrorField(cause))
	refunded := false
	if run.HasConsumed() {
		if err := run.Refund(r.Context()); err != nil {
			logger.Error("[WS] refund failed", logger.ErrorField(err))
		} else {
			refunded = true
		}
	}
	frame := errorFrame{OK: false, Error: cause.Error(), Status: "error", Refunded: refunded}
	if errors.Is(cause, usage.ErrLimitReached) {
		frame.Reason = "LIMIT_REACHED"
		frame.Remaining = run.Remaining()
	}
	wsSend(wc, frame)
}

func wsPingLoop(wc *wsConn, done chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func wsSend(wc *wsConn, payload interface{}) {
	if err := wc.writeJSON(payload); err != nil {
		logger.Warn("[WS] write failed", logger.ErrorField(err))
	}
}

func wsSendError(wc *wsConn, msg string) {
	wsSend(wc, errorFrame{OK: false, Error: msg, Status: "error"})
}
