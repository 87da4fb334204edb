package client

import (
	"log/slog"

	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/protocol"
)

// Typed registration for the events the server pushes. Events whose
// arguments do not decode are logged and dropped.

func (c *Conn) decode(env *protocol.Envelope, dst ...any) bool {
	for i, d := range dst {
		if err := env.Arg(i, d); err != nil {
			c.logger.Warn("dropping undecodable event",
				slog.String("target", env.Target),
				slog.String("error", err.Error()))
			return false
		}
	}
	return true
}

func (c *Conn) onMember(name model.EventName, fn func(model.MemberSummary)) {
	c.On(string(name), func(env *protocol.Envelope) {
		var m model.MemberSummary
		if c.decode(env, &m) {
			fn(m)
		}
	})
}

// OnMemberJoined registers fn for MemberJoined(member)
func (c *Conn) OnMemberJoined(fn func(model.MemberSummary)) {
	c.onMember(model.EventMemberJoined, fn)
}

// OnMemberReconnected registers fn for MemberReconnected(member)
func (c *Conn) OnMemberReconnected(fn func(model.MemberSummary)) {
	c.onMember(model.EventMemberReconnected, fn)
}

// OnMemberDisconnected registers fn for MemberDisconnected(member)
func (c *Conn) OnMemberDisconnected(fn func(model.MemberSummary)) {
	c.onMember(model.EventMemberDisconnected, fn)
}

// OnSessionStarted registers fn for SessionStarted(session)
func (c *Conn) OnSessionStarted(fn func(model.SessionInfo)) {
	c.On(string(model.EventSessionStarted), func(env *protocol.Envelope) {
		var info model.SessionInfo
		if c.decode(env, &info) {
			fn(info)
		}
	})
}

// OnPatternRevealed registers fn for PatternRevealed(pattern, roundNumber)
func (c *Conn) OnPatternRevealed(fn func(p model.Pattern, round int)) {
	c.On(string(model.EventPatternRevealed), func(env *protocol.Envelope) {
		var p model.Pattern
		var round int
		if c.decode(env, &p, &round) {
			fn(p, round)
		}
	})
}

// OnAttemptRecorded registers fn for AttemptRecorded(member, correct, pointsEarned, totalScore)
func (c *Conn) OnAttemptRecorded(fn func(m model.MemberSummary, correct bool, points, total int)) {
	c.On(string(model.EventAttemptRecorded), func(env *protocol.Envelope) {
		var m model.MemberSummary
		var correct bool
		var points, total int
		if c.decode(env, &m, &correct, &points, &total) {
			fn(m, correct, points, total)
		}
	})
}

// OnRoundAdvanced registers fn for RoundAdvanced(roundNumber)
func (c *Conn) OnRoundAdvanced(fn func(round int)) {
	c.On(string(model.EventRoundAdvanced), func(env *protocol.Envelope) {
		var round int
		if c.decode(env, &round) {
			fn(round)
		}
	})
}

// OnSessionEnded registers fn for SessionEnded(leaderboard, reason)
func (c *Conn) OnSessionEnded(fn func(leaderboard []model.LeaderboardEntry, reason string)) {
	c.On(string(model.EventSessionEnded), func(env *protocol.Envelope) {
		var leaderboard []model.LeaderboardEntry
		var reason string
		if c.decode(env, &leaderboard, &reason) {
			fn(leaderboard, reason)
		}
	})
}
