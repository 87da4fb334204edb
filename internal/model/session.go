package model

import "time"

// SessionID uniquely identifies a session
type SessionID string

// SessionCode is the short human-entry code used to join a session
type SessionCode string

// SessionStatus represents the lifecycle state of a session
type SessionStatus string

const (
	SessionWaiting    SessionStatus = "waiting"     // Accepting new members
	SessionInProgress SessionStatus = "in_progress" // Rounds being played
	SessionFinished   SessionStatus = "finished"    // Terminal
)

// DefaultGridSize is the board dimension used when none is supplied
const DefaultGridSize = 4

// MaxGridSize bounds the board dimension a master may request
const MaxGridSize = 16

// Session is the authoritative record of one game
type Session struct {
	ID             SessionID
	Code           SessionCode
	MasterIdentity IdentityID
	Status         SessionStatus
	CurrentRound   int
	GridSize       int
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
	UpdatedAt      time.Time
}

// CellCount returns the number of cells on the session's board
func (s *Session) CellCount() int {
	return s.GridSize * s.GridSize
}

// IsMaster reports whether identity is the session master
func (s *Session) IsMaster(identity IdentityID) bool {
	return s.MasterIdentity == identity
}

// CanTransitionTo reports whether the status may move to next.
// Status only ever moves forward.
func (s *Session) CanTransitionTo(next SessionStatus) bool {
	switch s.Status {
	case SessionWaiting:
		return next == SessionInProgress || next == SessionFinished
	case SessionInProgress:
		return next == SessionFinished
	default:
		return false
	}
}
