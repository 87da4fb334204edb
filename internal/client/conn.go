package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/memorygrid/internal/protocol"
)

var (
	// ErrDisconnected is returned for invocations on a closed connection
	ErrDisconnected = errors.New("connection closed")
	// ErrHandshakeRejected is returned by Dial when the server refuses the handshake
	ErrHandshakeRejected = errors.New("handshake rejected")
)

// RemoteError is a completion error reported by the server
type RemoteError struct {
	Target  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Target, e.Message)
}

// Handler receives the raw arguments of a server-pushed invocation
type Handler func(env *protocol.Envelope)

// Options configure Dial
type Options struct {
	// Token is sent as a bearer token
	Token string
	// Handshake sends the protocol handshake and waits for its answer
	Handshake bool
	// WriteWait bounds each write
	WriteWait time.Duration
	Logger    *slog.Logger
}

// Conn is the client side of one session connection. It correlates
// completions with invocations and dispatches server-pushed events through
// a table keyed by event name.
//
// Events and completions are handled on a single goroutine in arrival
// order. Handlers must not wait on Invoke; run commands from a separate
// goroutine instead.
type Conn struct {
	ws        *websocket.Conn
	logger    *slog.Logger
	writeWait time.Duration

	writeMu sync.Mutex

	mu           sync.Mutex
	pending      map[string]chan *protocol.Envelope
	handlers     map[string][]Handler
	onDisconnect []func(error)
	closed       bool
	closeErr     error

	done chan struct{}
}

// Dial connects to the server's websocket endpoint
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := newConn(ws, opts)
	if opts.Handshake {
		if err := c.handshake(ctx); err != nil {
			_ = ws.Close()
			return nil, err
		}
	}
	go c.readLoop()
	return c, nil
}

func newConn(ws *websocket.Conn, opts Options) *Conn {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	writeWait := opts.WriteWait
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	return &Conn{
		ws:        ws,
		logger:    logger.With(slog.String("component", "client")),
		writeWait: writeWait,
		pending:   make(map[string]chan *protocol.Envelope),
		handlers:  make(map[string][]Handler),
		done:      make(chan struct{}),
	}
}

func (c *Conn) handshake(ctx context.Context) error {
	if err := c.write(protocol.EncodeHandshakeRequest()); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetReadDeadline(deadline)
		defer func() { _ = c.ws.SetReadDeadline(time.Time{}) }()
	}
	_, message, err := c.ws.ReadMessage()
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	records := protocol.Split(message)
	if len(records) == 0 {
		return fmt.Errorf("%w: empty response", ErrHandshakeRejected)
	}
	var resp protocol.HandshakeResponse
	if err := json.Unmarshal(records[0], &resp); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("%w: %s", ErrHandshakeRejected, resp.Error)
	}
	// Anything after the handshake in the same message is already framed
	// traffic, which only the read loop may consume
	if len(records) > 1 {
		c.logger.Warn("discarding frames sent with handshake response", slog.Int("frames", len(records)-1))
	}
	return nil
}

// On registers a handler for a server-pushed event. Handlers for the same
// event run in registration order.
func (c *Conn) On(target string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[target] = append(c.handlers[target], h)
}

// OnDisconnect registers a callback run once when the connection is lost.
// The error is nil after Close.
func (c *Conn) OnDisconnect(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = append(c.onDisconnect, fn)
}

// Done is closed once the connection has shut down
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Invoke sends a command and waits for its completion, decoding the result
// into result when it is non-nil
func (c *Conn) Invoke(ctx context.Context, target string, result any, args ...any) error {
	id := uuid.NewString()
	env, err := protocol.NewInvocation(target, id, args...)
	if err != nil {
		return err
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	ch := make(chan *protocol.Envelope, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(frame); err != nil {
		return err
	}

	select {
	case completion, ok := <-ch:
		if !ok {
			return ErrDisconnected
		}
		if completion.Error != "" {
			return &RemoteError{Target: target, Message: completion.Error}
		}
		return completion.DecodeResult(result)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send issues a command without waiting for, or receiving, a completion
func (c *Conn) Send(target string, args ...any) error {
	env, err := protocol.NewInvocation(target, "", args...)
	if err != nil {
		return err
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return c.write(frame)
}

// Close shuts the connection down
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.shutdown(nil)
	return c.ws.Close()
}

func (c *Conn) write(frame []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrDisconnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return nil
}

func (c *Conn) readLoop() {
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = nil
			}
			c.shutdown(err)
			return
		}
		for _, record := range protocol.Split(message) {
			c.handleRecord(record)
		}
	}
}

func (c *Conn) handleRecord(record []byte) {
	env, err := protocol.Decode(record)
	if err != nil {
		c.logger.Debug("dropping malformed frame", slog.String("error", err.Error()))
		return
	}

	switch env.Kind {
	case protocol.KindCompletion:
		// Resolved under the lock so shutdown never closes a channel
		// that is being delivered to
		c.mu.Lock()
		ch, ok := c.pending[env.InvocationID]
		if ok {
			delete(c.pending, env.InvocationID)
			ch <- env
		}
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("completion for unknown invocation", slog.String("invocation_id", env.InvocationID))
		}
	case protocol.KindInvocation:
		c.mu.Lock()
		handlers := append([]Handler(nil), c.handlers[env.Target]...)
		c.mu.Unlock()
		if len(handlers) == 0 {
			c.logger.Debug("no handler for event", slog.String("target", env.Target))
			return
		}
		for _, h := range handlers {
			h(env)
		}
	case protocol.KindKeepalive:
	}
}

// shutdown fails every pending invocation and runs the disconnect
// callbacks once
func (c *Conn) shutdown(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = err
	pending := c.pending
	c.pending = make(map[string]chan *protocol.Envelope)
	callbacks := c.onDisconnect
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	close(c.done)
	for _, fn := range callbacks {
		fn(err)
	}
}

// Err returns the error that ended the connection, if any
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}
