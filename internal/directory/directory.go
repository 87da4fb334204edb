package directory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/protocol"
)

// Sender delivers framed records to one live connection.
// Send must not block; it returns false when the frame was not queued.
type Sender interface {
	Send(frame []byte) bool
}

// Entry describes a live connection
type Entry struct {
	ConnectionID model.ConnectionID
	Identity     model.IdentityID
	SessionID    model.SessionID // Empty until the connection joins a session
	ConnectedAt  time.Time
}

type connection struct {
	entry  Entry
	sender Sender
}

// Directory tracks live connections and the session group each belongs to.
// It is safe for concurrent use.
type Directory struct {
	mu     sync.RWMutex
	conns  map[model.ConnectionID]*connection
	groups map[model.SessionID]map[model.ConnectionID]struct{}
	logger *slog.Logger
}

// New creates an empty Directory
func New(logger *slog.Logger) *Directory {
	return &Directory{
		conns:  make(map[model.ConnectionID]*connection),
		groups: make(map[model.SessionID]map[model.ConnectionID]struct{}),
		logger: logger.With(slog.String("component", "directory")),
	}
}

// Register adds a connection that has not joined any session yet
func (d *Directory) Register(id model.ConnectionID, identity model.IdentityID, sender Sender) {
	d.mu.Lock()
	d.conns[id] = &connection{
		entry:  Entry{ConnectionID: id, Identity: identity, ConnectedAt: time.Now()},
		sender: sender,
	}
	total := len(d.conns)
	d.mu.Unlock()

	d.logger.Info("connection registered",
		slog.String("connection_id", string(id)),
		slog.String("identity", string(identity)),
		slog.Int("total_connections", total))
}

// Unregister removes a connection and returns its last entry
func (d *Directory) Unregister(id model.ConnectionID) (Entry, bool) {
	d.mu.Lock()
	conn, ok := d.conns[id]
	if !ok {
		d.mu.Unlock()
		return Entry{}, false
	}
	delete(d.conns, id)
	d.leaveGroup(conn.entry)
	total := len(d.conns)
	d.mu.Unlock()

	d.logger.Info("connection unregistered",
		slog.String("connection_id", string(id)),
		slog.String("session_id", string(conn.entry.SessionID)),
		slog.Duration("connection_duration", time.Since(conn.entry.ConnectedAt)),
		slog.Int("total_connections", total))
	return conn.entry, true
}

// Bind places a connection in a session's group, leaving any previous group
func (d *Directory) Bind(id model.ConnectionID, sessionID model.SessionID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn, ok := d.conns[id]
	if !ok {
		return model.ErrNotJoined
	}
	d.leaveGroup(conn.entry)
	conn.entry.SessionID = sessionID
	group, ok := d.groups[sessionID]
	if !ok {
		group = make(map[model.ConnectionID]struct{})
		d.groups[sessionID] = group
	}
	group[id] = struct{}{}
	return nil
}

// Bound returns the session a connection is bound to, or "" if it is unknown
// or has not joined one
func (d *Directory) Bound(id model.ConnectionID) model.SessionID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if conn, ok := d.conns[id]; ok {
		return conn.entry.SessionID
	}
	return ""
}

// leaveGroup must be called with the write lock held
func (d *Directory) leaveGroup(e Entry) {
	if e.SessionID == "" {
		return
	}
	group := d.groups[e.SessionID]
	delete(group, e.ConnectionID)
	if len(group) == 0 {
		delete(d.groups, e.SessionID)
	}
}

// Lookup returns the entry for a connection
func (d *Directory) Lookup(id model.ConnectionID) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	conn, ok := d.conns[id]
	if !ok {
		return Entry{}, false
	}
	return conn.entry, true
}

// Members returns a snapshot of the connections in a session's group
func (d *Directory) Members(sessionID model.SessionID) []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entries := make([]Entry, 0, len(d.groups[sessionID]))
	for id := range d.groups[sessionID] {
		entries = append(entries, d.conns[id].entry)
	}
	return entries
}

// Count returns the number of live connections
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}

// Broadcast encodes the event once and queues it on every connection in the
// event's session group. Connections that cannot accept the frame are
// skipped.
func (d *Directory) Broadcast(event model.Event) {
	env, err := protocol.NewInvocation(string(event.Name), "", event.Args...)
	if err != nil {
		d.logger.Error("failed to encode event",
			slog.String("event", string(event.Name)),
			slog.Any("error", err))
		return
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		d.logger.Error("failed to encode event",
			slog.String("event", string(event.Name)),
			slog.Any("error", err))
		return
	}

	d.mu.RLock()
	senders := make([]Sender, 0, len(d.groups[event.SessionID]))
	for id := range d.groups[event.SessionID] {
		senders = append(senders, d.conns[id].sender)
	}
	d.mu.RUnlock()

	dropped := 0
	for _, s := range senders {
		if !s.Send(frame) {
			dropped++
		}
	}
	if dropped > 0 {
		d.logger.Warn("broadcast partial failure",
			slog.String("event", string(event.Name)),
			slog.Int("sent", len(senders)-dropped),
			slog.Int("dropped", dropped))
	}
}
