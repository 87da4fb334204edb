package model

// EventName identifies a server-pushed event. Names double as the wire
// invocation target.
type EventName string

const (
	// Membership events
	EventMemberJoined       EventName = "MemberJoined"
	EventMemberReconnected  EventName = "MemberReconnected"
	EventMemberDisconnected EventName = "MemberDisconnected"

	// Session events
	EventSessionStarted  EventName = "SessionStarted"
	EventPatternRevealed EventName = "PatternRevealed"
	EventAttemptRecorded EventName = "AttemptRecorded"
	EventRoundAdvanced   EventName = "RoundAdvanced"
	EventSessionEnded    EventName = "SessionEnded"
)

// Reasons carried by SessionEnded
const (
	EndReasonMasterEnded        = "master_ended"
	EndReasonMasterDisconnected = "master_disconnected"
)

// Event is a broadcast to every connection in a session's group.
// Args are the positional invocation arguments.
type Event struct {
	Name      EventName
	SessionID SessionID
	Args      []any
}

// SessionInfo describes a session to its members
type SessionInfo struct {
	Code         SessionCode   `json:"code"`
	Status       SessionStatus `json:"status"`
	GridSize     int           `json:"gridSize"`
	CurrentRound int           `json:"currentRound"`
}

// Info returns the member-visible description of the session
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		Code:         s.Code,
		Status:       s.Status,
		GridSize:     s.GridSize,
		CurrentRound: s.CurrentRound,
	}
}

// JoinResult is returned to a caller of JoinSession or CreateSession
type JoinResult struct {
	Session SessionInfo     `json:"session"`
	Member  MemberSummary   `json:"member"`
	Members []MemberSummary `json:"members"`
}

// AttemptResult is returned to the caller of SubmitAttempt
type AttemptResult struct {
	Correct    bool `json:"correct"`
	Points     int  `json:"points"`
	TotalScore int  `json:"totalScore"`
}

func NewMemberJoined(s *Session, m *Member) Event {
	return Event{Name: EventMemberJoined, SessionID: s.ID, Args: []any{m.Summary()}}
}

func NewMemberReconnected(s *Session, m *Member) Event {
	return Event{Name: EventMemberReconnected, SessionID: s.ID, Args: []any{m.Summary()}}
}

func NewMemberDisconnected(s *Session, m *Member) Event {
	return Event{Name: EventMemberDisconnected, SessionID: s.ID, Args: []any{m.Summary()}}
}

func NewSessionStarted(s *Session) Event {
	return Event{Name: EventSessionStarted, SessionID: s.ID, Args: []any{s.Info()}}
}

// NewPatternRevealed carries (pattern, roundNumber)
func NewPatternRevealed(s *Session, r *Round) Event {
	return Event{Name: EventPatternRevealed, SessionID: s.ID, Args: []any{r.Pattern, r.Number}}
}

// NewAttemptRecorded carries (member, correct, pointsEarned, totalScore)
func NewAttemptRecorded(s *Session, m *Member, a *Attempt) Event {
	return Event{Name: EventAttemptRecorded, SessionID: s.ID, Args: []any{m.Summary(), a.Correct, a.Points, m.Score}}
}

func NewRoundAdvanced(s *Session) Event {
	return Event{Name: EventRoundAdvanced, SessionID: s.ID, Args: []any{s.CurrentRound}}
}

// NewSessionEnded carries (leaderboard, reason)
func NewSessionEnded(s *Session, leaderboard []LeaderboardEntry, reason string) Event {
	return Event{Name: EventSessionEnded, SessionID: s.ID, Args: []any{leaderboard, reason}}
}
