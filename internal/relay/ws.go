package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"mixlingo/internal/logging"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	maxMessageBytes     = 32 << 20
)

// WSOptions tunes the WebSocket transport.
type WSOptions struct {
	AllowedOrigins []string
	WriteTimeout   time.Duration
	// PongWait bounds how long a silent peer is kept. Pings go out at 9/10
	// of this interval.
	PongWait time.Duration
}

// WSHandler upgrades HTTP requests to relay sessions.
type WSHandler struct {
	pipeline     Pipeline
	hub          *Hub
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pongWait     time.Duration
}

// NewWSHandler builds the /ws handler.
func NewWSHandler(pipeline Pipeline, hub *Hub, logger *slog.Logger, opts WSOptions) *WSHandler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	origins := append([]string(nil), opts.AllowedOrigins...)
	h := &WSHandler{
		pipeline:     pipeline,
		hub:          hub,
		logger:       logging.NewComponentLogger(logger, "relay.ws"),
		writeTimeout: opts.WriteTimeout,
		pongWait:     opts.PongWait,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return OriginAllowed(origins, r.Header.Get("Origin"))
		},
	}
	return h
}

// OriginAllowed reports whether a browser origin may connect. Requests
// without an Origin header come from non-browser clients and are allowed.
func OriginAllowed(allowed []string, origin string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return true
	}
	want := normalizeOrigin(origin)
	for _, candidate := range allowed {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if normalizeOrigin(candidate) == want {
			return true
		}
	}
	return false
}

func normalizeOrigin(origin string) string {
	u, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(origin, "/"))
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// ServeHTTP implements http.Handler.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade rejected",
			logging.String("remote_addr", r.RemoteAddr),
			logging.String("origin", r.Header.Get("Origin")),
			logging.Error(err),
		)
		return
	}
	h.serve(r.Context(), conn)
}

func (h *WSHandler) serve(parent context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	out := NewOutbox(defaultOutboxSize)
	session := NewSession(h.pipeline, out, h.hub, h.logger)
	logger := h.logger.With(logging.String(logging.FieldConnectionID, session.ID()))

	h.hub.connect()
	defer h.hub.disconnect()
	logger.Info("relay connection opened", logging.String("remote_addr", conn.RemoteAddr().String()))

	pumpDone := make(chan error, 1)
	go func() {
		err := h.writePump(conn, out)
		conn.Close()
		pumpDone <- err
	}()
	stop := context.AfterFunc(parent, out.Close)
	defer stop()

	h.readLoop(ctx, logger, conn, session)

	out.Close()
	cancel()
	if err := <-pumpDone; err != nil {
		logger.Debug("relay write pump stopped", logging.Error(err))
	}
	session.Wait()
	logger.Info("relay connection closed")
}

func (h *WSHandler) readLoop(ctx context.Context, logger *slog.Logger, conn *websocket.Conn, session *Session) {
	conn.SetReadLimit(maxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && ctx.Err() == nil {
				logger.Warn("relay read failed", logging.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Warn("relay frame malformed", logging.Int("bytes", len(raw)), logging.Error(err))
			session.Handle(ctx, Envelope{})
			continue
		}
		session.Handle(ctx, env)
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, out *Outbox) error {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case env := <-out.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteJSON(env); err != nil {
				out.Close()
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				out.Close()
				return err
			}
		case <-out.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeTimeout))
			return nil
		}
	}
}
