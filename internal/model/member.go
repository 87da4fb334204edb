package model

import "time"

// ConnectionID identifies a single live client connection
type ConnectionID string

// Role distinguishes the session master from players
type Role string

const (
	RoleMaster Role = "master"
	RolePlayer Role = "player"
)

// Member is an identity's participation in a session.
// At most one Member exists per (session, identity).
type Member struct {
	SessionID    SessionID
	Identity     IdentityID
	DisplayName  string
	Role         Role
	Score        int
	Connected    bool
	ConnectionID ConnectionID // Empty while disconnected
	JoinedAt     time.Time
}

// MemberSummary is the externally visible view of a member
type MemberSummary struct {
	Identity    IdentityID `json:"identity"`
	DisplayName string     `json:"displayName"`
	Role        Role       `json:"role"`
	Score       int        `json:"score"`
	Connected   bool       `json:"connected"`
}

// Summary returns the externally visible view of the member
func (m *Member) Summary() MemberSummary {
	return MemberSummary{
		Identity:    m.Identity,
		DisplayName: m.DisplayName,
		Role:        m.Role,
		Score:       m.Score,
		Connected:   m.Connected,
	}
}

// Summaries converts members to their visible views, preserving order
func Summaries(members []*Member) []MemberSummary {
	out := make([]MemberSummary, 0, len(members))
	for _, m := range members {
		out = append(out, m.Summary())
	}
	return out
}
