package client

import (
	"context"
	"time"

	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/protocol"
)

// CreateSession creates a session with the caller as master
func (c *Conn) CreateSession(ctx context.Context, name string, gridSize int) (*model.JoinResult, error) {
	var result model.JoinResult
	if err := c.Invoke(ctx, protocol.TargetCreateSession, &result, name, gridSize); err != nil {
		return nil, err
	}
	return &result, nil
}

// JoinSession joins, or reconnects to, a session
func (c *Conn) JoinSession(ctx context.Context, code model.SessionCode, name string) (*model.JoinResult, error) {
	var result model.JoinResult
	if err := c.Invoke(ctx, protocol.TargetJoinSession, &result, code, name); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Conn) StartSession(ctx context.Context, code model.SessionCode) error {
	return c.Invoke(ctx, protocol.TargetStartSession, nil, code)
}

func (c *Conn) StartRound(ctx context.Context, code model.SessionCode, p model.Pattern) error {
	return c.Invoke(ctx, protocol.TargetStartRound, nil, code, p)
}

// StartGeneratedRound asks the server to pick the round's pattern
func (c *Conn) StartGeneratedRound(ctx context.Context, code model.SessionCode) (model.Pattern, error) {
	var p model.Pattern
	if err := c.Invoke(ctx, protocol.TargetStartGeneratedRound, &p, code); err != nil {
		return nil, err
	}
	return p, nil
}

// SubmitAttempt submits the caller's sequence; reaction time travels in
// whole milliseconds
func (c *Conn) SubmitAttempt(ctx context.Context, code model.SessionCode, sequence []int, reactionTime time.Duration) (*model.AttemptResult, error) {
	var result model.AttemptResult
	if err := c.Invoke(ctx, protocol.TargetSubmitAttempt, &result, code, sequence, reactionTime.Milliseconds()); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Conn) NextRound(ctx context.Context, code model.SessionCode) error {
	return c.Invoke(ctx, protocol.TargetNextRound, nil, code)
}

// EndSession finishes the session and returns the final leaderboard
func (c *Conn) EndSession(ctx context.Context, code model.SessionCode) ([]model.LeaderboardEntry, error) {
	var leaderboard []model.LeaderboardEntry
	if err := c.Invoke(ctx, protocol.TargetEndSession, &leaderboard, code); err != nil {
		return nil, err
	}
	return leaderboard, nil
}

func (c *Conn) GetMemberList(ctx context.Context, code model.SessionCode) ([]model.MemberSummary, error) {
	var members []model.MemberSummary
	if err := c.Invoke(ctx, protocol.TargetGetMemberList, &members, code); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Conn) GetLeaderboard(ctx context.Context, code model.SessionCode) ([]model.LeaderboardEntry, error) {
	var leaderboard []model.LeaderboardEntry
	if err := c.Invoke(ctx, protocol.TargetGetLeaderboard, &leaderboard, code); err != nil {
		return nil, err
	}
	return leaderboard, nil
}
