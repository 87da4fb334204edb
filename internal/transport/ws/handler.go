package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/memorygrid/internal/api/apierr"
	"github.com/mcoot/memorygrid/internal/dependencies/random"
	"github.com/mcoot/memorygrid/internal/directory"
	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/protocol"
	"github.com/mcoot/memorygrid/internal/services/session"
)

// Authenticator resolves a bearer token to an identity
type Authenticator interface {
	Authenticate(token string) (model.IdentityID, error)
}

// Dispatcher runs one invocation and returns the completion to send back,
// or nil when none is expected
type Dispatcher interface {
	Dispatch(ctx context.Context, caller session.Caller, env *protocol.Envelope) *protocol.Envelope
}

// DisconnectHandler is told about every connection that goes away
type DisconnectHandler interface {
	HandleDisconnect(ctx context.Context, connID model.ConnectionID, identity model.IdentityID, sessionID model.SessionID) error
}

// Config holds connection tuning
type Config struct {
	// KeepaliveInterval is how often a keepalive frame and a ping are sent
	KeepaliveInterval time.Duration
	// PongWait is how long a silent peer is tolerated
	PongWait time.Duration
	// WriteWait bounds each write to the peer
	WriteWait time.Duration
	// MaxMessageSize bounds inbound messages
	MaxMessageSize int64
	// SendBufferSize is the number of frames queued per connection
	SendBufferSize int
}

// DefaultConfig returns default connection settings
func DefaultConfig() Config {
	return Config{
		KeepaliveInterval: 15 * time.Second,
		PongWait:          60 * time.Second,
		WriteWait:         10 * time.Second,
		MaxMessageSize:    64 * 1024,
		SendBufferSize:    256,
	}
}

// Handler upgrades authenticated requests to websocket connections and
// pumps envelopes between the connection and the session engine
type Handler struct {
	auth        Authenticator
	dispatcher  Dispatcher
	directory   *directory.Directory
	disconnects DisconnectHandler
	random      random.Random
	config      Config
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

// NewHandler creates a websocket Handler
func NewHandler(
	auth Authenticator,
	dispatcher Dispatcher,
	dir *directory.Directory,
	disconnects DisconnectHandler,
	random random.Random,
	config Config,
	logger *slog.Logger,
) *Handler {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConfig().SendBufferSize
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = DefaultConfig().KeepaliveInterval
	}
	if config.PongWait <= config.KeepaliveInterval {
		config.PongWait = 4 * config.KeepaliveInterval
	}
	if config.WriteWait <= 0 {
		config.WriteWait = DefaultConfig().WriteWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = DefaultConfig().MaxMessageSize
	}
	return &Handler{
		auth:        auth,
		dispatcher:  dispatcher,
		directory:   dir,
		disconnects: disconnects,
		random:      random,
		config:      config,
		logger:      logger.With(slog.String("component", "ws")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP authenticates the request and runs the connection until it closes
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)
	if token == "" {
		apierr.WriteError(w, apierr.NewUnauthorizedError())
		return
	}
	identity, err := h.auth.Authenticate(token)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &conn{
		ws:       ws,
		id:       model.ConnectionID(h.random.UUID()),
		identity: identity,
		send:     make(chan []byte, h.config.SendBufferSize),
	}
	h.directory.Register(c.id, c.identity, c)

	go h.writePump(c)
	h.readPump(c)
}

// extractToken reads the bearer token from the Authorization header or,
// for browsers that cannot set headers on websocket requests, the
// access_token query parameter
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

// readPump decodes inbound frames and runs invocations in arrival order.
// When it returns the connection is unregistered and the engine is told.
func (h *Handler) readPump(c *conn) {
	defer func() {
		entry, ok := h.directory.Unregister(c.id)
		c.close()
		if ok {
			if err := h.disconnects.HandleDisconnect(context.Background(), c.id, c.identity, entry.SessionID); err != nil {
				h.logger.Error("failed to handle disconnect",
					slog.String("connection_id", string(c.id)),
					slog.String("error", err.Error()))
			}
		}
	}()

	c.ws.SetReadLimit(h.config.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(h.config.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	caller := session.Caller{ConnectionID: c.id, Identity: c.identity}
	first := true
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("connection read failed",
					slog.String("connection_id", string(c.id)),
					slog.String("error", err.Error()))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(h.config.PongWait))

		for _, record := range protocol.Split(message) {
			if first {
				first = false
				if req, ok := protocol.ParseHandshake(record); ok {
					msg := req.Accept()
					c.Send(protocol.EncodeHandshakeResponse(msg))
					if msg != "" {
						return
					}
					continue
				}
			}
			h.handleRecord(c, caller, record)
		}
	}
}

func (h *Handler) handleRecord(c *conn, caller session.Caller, record []byte) {
	env, err := protocol.Decode(record)
	if err != nil {
		h.logger.Debug("dropping malformed frame",
			slog.String("connection_id", string(c.id)),
			slog.String("error", err.Error()))
		return
	}

	switch env.Kind {
	case protocol.KindInvocation:
		completion := h.dispatcher.Dispatch(context.Background(), caller, env)
		if completion == nil {
			return
		}
		frame, err := protocol.Encode(completion)
		if err != nil {
			h.logger.Error("failed to encode completion", slog.String("error", err.Error()))
			return
		}
		if !c.Send(frame) {
			h.logger.Warn("completion dropped",
				slog.String("connection_id", string(c.id)),
				slog.String("target", env.Target))
		}
	case protocol.KindKeepalive, protocol.KindCompletion:
		// Nothing to do: the server never awaits client completions
	}
}

// writePump writes queued frames and periodic keepalives until the
// connection's queue is closed or a write fails
func (h *Handler) writePump(c *conn) {
	ticker := time.NewTicker(h.config.KeepaliveInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	keepalive, _ := protocol.Encode(protocol.Keepalive())

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, keepalive); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// conn is one live websocket connection. It is the directory's Sender.
type conn struct {
	ws       *websocket.Conn
	id       model.ConnectionID
	identity model.IdentityID

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// Send queues a frame without blocking. It returns false once the
// connection is closing. A full queue closes the connection: the client has
// lost a frame and must rejoin to resynchronize, so the usual disconnect
// path runs once the write pump drains.
func (c *conn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
