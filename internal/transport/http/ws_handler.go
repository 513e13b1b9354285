package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirespace-server/internal/auth"
	"github.com/vovakirdan/wirespace-server/internal/config"
	"github.com/vovakirdan/wirespace-server/internal/core"
)

// WSHandler upgrades HTTP connections and bridges them to core sessions.
type WSHandler struct {
	hub      *core.Hub
	resolver *auth.Resolver
	cfg      *config.Config
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, resolver *auth.Resolver, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, resolver: resolver, cfg: cfg, log: logger}
}

// ServeHTTP serves /ws. The identity is settled before the upgrade, so a bad
// token never gets a socket.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.resolver.Resolve(auth.TokenFromRequest(r))
	if err != nil {
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("ws upgrade refused")
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	conn.SetReadLimit(h.cfg.ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := newWSConn(h.cfg.SendBuffer)
	sess := h.hub.NewSession(out, identity)
	h.hub.Relay().Register(sess.ID(), out, "")
	defer sess.Destroy()

	log := h.log.With().Str("session_id", sess.ID()).Logger()
	log.Info().Str("user_id", sess.Identity().UserID).Bool("guest", sess.Identity().Guest).Msg("ws connected")

	sess.Start(ctx)

	limiter := newRateLimiter(h.cfg.MessageRateLimit)
	stop := make(chan struct{})
	defer close(stop)
	limiter.startReset(stop)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, out)
	}()

	err = <-errCh
	// Leave the space first so the rest of the room hears about it without
	// waiting on the close handshake.
	sess.Destroy()

	status, reason := closeStatus(out.closeReason(), err)
	if status == websocket.StatusInternalError {
		log.Warn().Err(err).Msg("ws connection closed with error")
	}
	conn.Close(status, reason)
	cancel()
	<-errCh

	log.Info().Str("reason", reason).Msg("ws disconnected")
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

func (h *WSHandler) acceptOptions() *websocket.AcceptOptions {
	if len(h.cfg.AllowedOrigins) == 0 {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: h.cfg.AllowedOrigins}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session, limiter *rateLimiter) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if !limiter.allow() {
			sess.Reject(core.ErrCodeRateLimited, "rate limit exceeded")
			continue
		}
		sess.HandleFrame(ctx, data)
	}
}

// writeLoop drains the outbound queue until the core closes it, so frames
// queued before a close (like an idle-kick) still reach the client.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, out *wsConn) error {
	for ev := range out.send {
		var err error
		if ev.Kind == core.EventSignal {
			err = conn.Write(ctx, websocket.MessageText, ev.Raw)
		} else {
			err = wsjson.Write(ctx, conn, outboundFromEvent(ev))
		}
		if err != nil {
			h.log.Debug().Err(err).Stringer("event", ev.Kind).Msg("write ws event")
			return err
		}
	}
	return nil
}

// closeStatus picks the close frame for a finished connection.
func closeStatus(reason core.CloseReason, err error) (websocket.StatusCode, string) {
	switch reason {
	case core.CloseSpaceNotFound:
		return websocket.StatusPolicyViolation, reason.String()
	case core.CloseIdle:
		return websocket.StatusNormalClosure, reason.String()
	}
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return websocket.StatusNormalClosure, reason.String()
	}
	switch s := websocket.CloseStatus(err); s {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return websocket.StatusNormalClosure, reason.String()
	case websocket.StatusMessageTooBig:
		return websocket.StatusMessageTooBig, "message too big"
	}
	return websocket.StatusInternalError, "internal error"
}

// wsConn is the core's outbound side of one WebSocket. Sends never block:
// a full queue is reported as backpressure.
type wsConn struct {
	mu     sync.RWMutex
	send   chan *core.Event
	closed bool
	reason core.CloseReason
}

func newWSConn(buffer int) *wsConn {
	return &wsConn{send: make(chan *core.Event, buffer)}
}

func (c *wsConn) Send(ev *core.Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return core.ErrBackpressure
	}
}

// Close stops accepting events. Already queued events are still written.
func (c *wsConn) Close(reason core.CloseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.reason = reason
	close(c.send)
}

func (c *wsConn) Open() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

func (c *wsConn) closeReason() core.CloseReason {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reason
}
