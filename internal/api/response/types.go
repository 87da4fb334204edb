package response

import (
	"time"

	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/services/auth"
	"github.com/mcoot/memorygrid/internal/services/session"
)

// Identity is the API representation of an identity
type Identity struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	IsGuest     bool      `json:"is_guest"`
	CreatedAt   time.Time `json:"created_at"`
}

// IdentityFromModel converts a model.Identity to the API representation
func IdentityFromModel(i *model.Identity) Identity {
	return Identity{
		ID:          string(i.ID),
		DisplayName: i.DisplayName,
		IsGuest:     i.IsGuest,
		CreatedAt:   i.CreatedAt,
	}
}

// AuthResponse is returned when an identity is issued a token
type AuthResponse struct {
	Identity  Identity  `json:"identity"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthResponseFromGrant converts an auth.Grant to an AuthResponse
func AuthResponseFromGrant(g *auth.Grant) AuthResponse {
	return AuthResponse{
		Identity:  IdentityFromModel(&g.Identity),
		Token:     g.Token,
		ExpiresAt: g.ExpiresAt,
	}
}

// Member is a session member as seen over HTTP
type Member struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Score       int    `json:"score"`
	Connected   bool   `json:"connected"`
}

// Session is the read model of a session
type Session struct {
	Code         string     `json:"code"`
	Status       string     `json:"status"`
	GridSize     int        `json:"grid_size"`
	CurrentRound int        `json:"current_round"`
	RoundsPlayed int        `json:"rounds_played"`
	Members      []Member   `json:"members"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// SessionFromSnapshot converts an engine snapshot to the read model
func SessionFromSnapshot(s *session.Snapshot) Session {
	members := make([]Member, len(s.Members))
	for i, m := range s.Members {
		members[i] = Member{
			Identity:    string(m.Identity),
			DisplayName: m.DisplayName,
			Role:        string(m.Role),
			Score:       m.Score,
			Connected:   m.Connected,
		}
	}
	return Session{
		Code:         string(s.Session.Code),
		Status:       string(s.Session.Status),
		GridSize:     s.Session.GridSize,
		CurrentRound: s.Session.CurrentRound,
		RoundsPlayed: s.RoundsPlayed,
		Members:      members,
		CreatedAt:    s.CreatedAt,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
	}
}

// Health is the health check body
type Health struct {
	Status string `json:"status"`
}
