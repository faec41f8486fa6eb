package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-fanout/internal/auth"
	"github.com/vovakirdan/wirechat-fanout/internal/config"
	"github.com/vovakirdan/wirechat-fanout/internal/core"
)

// frameBuffer bounds how many frames may wait while an earlier one is handled.
const frameBuffer = 16

// WSHandler authenticates and upgrades requests and bridges them to core.Handler.
type WSHandler struct {
	handler         *core.Handler
	auth            *auth.Service
	writeTimeout    time.Duration
	pingInterval    time.Duration
	maxMessageBytes int64
	ratePerMinute   int
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(handler *core.Handler, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		handler:         handler,
		auth:            authService,
		writeTimeout:    cfg.WriteTimeout,
		pingInterval:    cfg.PingInterval,
		maxMessageBytes: cfg.MaxMessageBytes,
		ratePerMinute:   cfg.RateLimitPerMinute,
		log:             logger,
	}
}

// ServeHTTP serves GET /ws. The session is resolved before the upgrade;
// unauthenticated requests get 401 and never reach the registry.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromRequest(r)
	if !ok {
		h.log.Debug().Str("path", r.URL.Path).Msg("missing session token")
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing session token"})
		return
	}
	identity, err := h.auth.Resolve(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("invalid token")
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	h.serve(r.Context(), newWSConn(conn, identity.UserID, h.writeTimeout))
}

func (h *WSHandler) serve(parent context.Context, wc *wsConn) {
	h.handler.OnConnect(wc.UserID(), wc)
	defer h.handler.OnDisconnect(wc)

	logger := h.log.With().Str("conn_id", wc.ID()).Int64("user_id", wc.UserID()).Logger()
	logger.Debug().Msg("ws connected")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	limiter := newRateLimiter(h.ratePerMinute)
	limiter.startReset(ctx.Done())

	frames := make(chan []byte, frameBuffer)
	errCh := make(chan error, 3)
	go func() {
		errCh <- h.readLoop(ctx, wc, frames)
	}()
	go func() {
		errCh <- h.frameLoop(ctx, wc, frames, limiter)
	}()
	go func() {
		errCh <- h.pingLoop(ctx, wc)
	}()

	err := <-errCh
	cancel() // stop the other goroutines
	<-errCh
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			logger.Debug().Err(err).Msg("ws connection closed with error")
		}
	}

	wc.closeWith(status, reason)
	logger.Debug().Msg("ws disconnected")
}

// readLoop keeps reading while frames are being handled so control frames,
// pongs included, are processed on time.
func (h *WSHandler) readLoop(ctx context.Context, wc *wsConn, frames chan<- []byte) error {
	for {
		_, data, err := wc.conn.Read(ctx)
		if err != nil {
			return err
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// frameLoop hands frames to the core one at a time, in arrival order.
func (h *WSHandler) frameLoop(ctx context.Context, wc *wsConn, frames <-chan []byte, limiter *rateLimiter) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-frames:
			if !limiter.allow() {
				h.handler.Reject(ctx, wc, core.ErrRateLimited)
				continue
			}
			h.handler.OnFrame(ctx, wc, data)
		}
	}
}

// pingLoop evicts peers that stop answering pings.
func (h *WSHandler) pingLoop(ctx context.Context, wc *wsConn) error {
	if h.pingInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.pingTimeout())
			err := wc.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) pingTimeout() time.Duration {
	if h.writeTimeout > 0 {
		return h.writeTimeout
	}
	return h.pingInterval
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
