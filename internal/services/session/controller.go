package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/memorygrid/internal/dependencies/clock"
	"github.com/mcoot/memorygrid/internal/dependencies/random"
	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/services/pattern"
	"github.com/mcoot/memorygrid/internal/services/scoring"
	"github.com/mcoot/memorygrid/internal/storage"
)

const (
	// CodeLength is the length of generated session codes
	CodeLength = 6
	// CodeAlphabet is the characters used in session codes
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// MaxDisplayNameLength bounds member display names
	MaxDisplayNameLength = 32

	maxCodeAttempts = 100
)

// Caller identifies the connection and identity issuing a command
type Caller struct {
	ConnectionID model.ConnectionID
	Identity     model.IdentityID
}

// Group delivers events to the connections of a session
type Group interface {
	// Bind places a connection in a session's group
	Bind(id model.ConnectionID, sessionID model.SessionID) error
	// Bound returns the session a connection is bound to, or "" if none
	Bound(id model.ConnectionID) model.SessionID
	// Broadcast queues an event for every connection in its session's group
	Broadcast(event model.Event)
}

// Snapshot is a read-only view of a session and its members
type Snapshot struct {
	Session      model.SessionInfo     `json:"session"`
	Members      []model.MemberSummary `json:"members"`
	RoundsPlayed int                   `json:"roundsPlayed"`
	CreatedAt    time.Time             `json:"createdAt"`
	StartedAt    *time.Time            `json:"startedAt,omitempty"`
	FinishedAt   *time.Time            `json:"finishedAt,omitempty"`
}

// Controller is the authoritative owner of session state. All mutations to
// one session are serialized; different sessions proceed in parallel.
// Broadcasts are queued while the session is still held so every connection
// observes events in commit order.
type Controller struct {
	storage  storage.Storage
	group    Group
	scoring  *scoring.Service
	patterns *pattern.Generator
	clock    clock.Clock
	random   random.Random
	logger   *slog.Logger
	locks    *sessionLocks
}

// NewController creates a new session Controller
func NewController(
	storage storage.Storage,
	group Group,
	scoringService *scoring.Service,
	patterns *pattern.Generator,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:  storage,
		group:    group,
		scoring:  scoringService,
		patterns: patterns,
		clock:    clock,
		random:   random,
		logger:   logger.With(slog.String("component", "session")),
		locks:    newSessionLocks(),
	}
}

// withSession resolves a code, takes the session's lock and hands fn a
// fresh copy of the session read under that lock
func (c *Controller) withSession(ctx context.Context, code model.SessionCode, fn func(*model.Session) error) error {
	resolved, err := c.storage.GetSessionByCode(ctx, NormalizeCode(code))
	if err != nil {
		return err
	}

	unlock := c.locks.lock(resolved.ID)
	defer unlock()

	session, err := c.storage.GetSession(ctx, resolved.ID)
	if err != nil {
		return err
	}
	return fn(session)
}

// NormalizeCode trims and upper-cases a user-entered session code
func NormalizeCode(code model.SessionCode) model.SessionCode {
	return model.SessionCode(strings.ToUpper(strings.TrimSpace(string(code))))
}

// CreateSession creates a new waiting session with the caller as master
func (c *Controller) CreateSession(ctx context.Context, caller Caller, masterName string, gridSize int) (*model.JoinResult, error) {
	name, err := validateDisplayName(masterName)
	if err != nil {
		return nil, err
	}
	if gridSize == 0 {
		gridSize = model.DefaultGridSize
	}
	if gridSize < 1 || gridSize > model.MaxGridSize {
		return nil, fmt.Errorf("%w: grid size must be between 1 and %d", model.ErrInvalidArgument, model.MaxGridSize)
	}
	if err := c.checkConnectionFree(ctx, caller, ""); err != nil {
		return nil, c.reject("create session", "", caller, err)
	}

	now := c.clock.Now()
	session := &model.Session{
		ID:             model.SessionID(c.random.UUID()),
		MasterIdentity: caller.Identity,
		Status:         model.SessionWaiting,
		CurrentRound:   0,
		GridSize:       gridSize,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	master := &model.Member{
		SessionID:    session.ID,
		Identity:     caller.Identity,
		DisplayName:  name,
		Role:         model.RoleMaster,
		Connected:    caller.ConnectionID != "",
		ConnectionID: caller.ConnectionID,
		JoinedAt:     now,
	}

	// Generate a unique code; a concurrent create may still take the
	// code first, in which case storage rejects it and we draw again
	for {
		code, err := c.generateCode(ctx)
		if err != nil {
			return nil, err
		}
		session.Code = code
		err = c.storage.CreateSession(ctx, session, master)
		if errors.Is(err, model.ErrCodeTaken) {
			continue
		}
		if err != nil {
			c.logger.Error("failed to create session", slog.String("error", err.Error()))
			return nil, err
		}
		break
	}

	if caller.ConnectionID != "" {
		if err := c.group.Bind(caller.ConnectionID, session.ID); err != nil {
			return nil, err
		}
	}

	c.logger.Info("session created",
		slog.String("session_code", string(session.Code)),
		slog.String("session_id", string(session.ID)),
		slog.String("master", string(caller.Identity)),
		slog.Int("grid_size", gridSize),
	)

	summary := master.Summary()
	return &model.JoinResult{
		Session: session.Info(),
		Member:  summary,
		Members: []model.MemberSummary{summary},
	}, nil
}

func (c *Controller) generateCode(ctx context.Context) (model.SessionCode, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := model.SessionCode(c.random.String(CodeLength, CodeAlphabet))
		if len(code) != CodeLength {
			continue
		}
		exists, err := c.storage.SessionCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique session code")
}

// JoinSession adds the caller to a waiting session, or reconnects the
// caller's existing member if it is currently disconnected
func (c *Controller) JoinSession(ctx context.Context, caller Caller, code model.SessionCode, displayName string) (*model.JoinResult, error) {
	var result *model.JoinResult
	err := c.withSession(ctx, code, func(session *model.Session) error {
		if err := c.checkConnectionFree(ctx, caller, session.ID); err != nil {
			return err
		}
		existing, err := c.storage.GetMember(ctx, session.ID, caller.Identity)
		switch {
		case err == nil:
			result, err = c.reconnect(ctx, caller, session, existing)
			return err
		case !errors.Is(err, model.ErrMemberNotFound):
			return err
		}

		if session.Status != model.SessionWaiting {
			return fmt.Errorf("%w: session has already started", model.ErrWrongState)
		}
		name, err := validateDisplayName(displayName)
		if err != nil {
			return err
		}
		members, err := c.storage.ListMembers(ctx, session.ID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if strings.EqualFold(m.DisplayName, name) {
				return model.ErrDuplicateName
			}
		}

		member := &model.Member{
			SessionID:    session.ID,
			Identity:     caller.Identity,
			DisplayName:  name,
			Role:         model.RolePlayer,
			Connected:    true,
			ConnectionID: caller.ConnectionID,
			JoinedAt:     c.clock.Now(),
		}
		if err := c.storage.AddMember(ctx, member); err != nil {
			return err
		}
		if err := c.bind(caller, session); err != nil {
			return err
		}

		c.logger.Info("member joined",
			slog.String("session_code", string(session.Code)),
			slog.String("identity", string(caller.Identity)),
			slog.String("display_name", name),
		)
		c.group.Broadcast(model.NewMemberJoined(session, member))

		result = &model.JoinResult{
			Session: session.Info(),
			Member:  member.Summary(),
			Members: model.Summaries(append(members, member)),
		}
		return nil
	})
	if err != nil {
		return nil, c.reject("join session", code, caller, err)
	}
	return result, nil
}

// reconnect revives a disconnected member. Must be called with the session held.
func (c *Controller) reconnect(ctx context.Context, caller Caller, session *model.Session, member *model.Member) (*model.JoinResult, error) {
	if member.Connected {
		return nil, model.ErrAlreadyJoined
	}
	if session.Status == model.SessionFinished {
		return nil, fmt.Errorf("%w: session has finished", model.ErrWrongState)
	}

	member.Connected = true
	member.ConnectionID = caller.ConnectionID
	if err := c.storage.SaveMember(ctx, member); err != nil {
		return nil, err
	}
	if err := c.bind(caller, session); err != nil {
		return nil, err
	}

	c.logger.Info("member reconnected",
		slog.String("session_code", string(session.Code)),
		slog.String("identity", string(caller.Identity)),
		slog.Int("score", member.Score),
	)
	c.group.Broadcast(model.NewMemberReconnected(session, member))

	members, err := c.storage.ListMembers(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return &model.JoinResult{
		Session: session.Info(),
		Member:  member.Summary(),
		Members: model.Summaries(members),
	}, nil
}

// checkConnectionFree rejects a caller whose connection is still bound to a
// session other than target that has not finished. The member record in that
// session holds this connection, and its disconnect would never be reported.
func (c *Controller) checkConnectionFree(ctx context.Context, caller Caller, target model.SessionID) error {
	if caller.ConnectionID == "" {
		return nil
	}
	current := c.group.Bound(caller.ConnectionID)
	if current == "" || current == target {
		return nil
	}
	other, err := c.storage.GetSession(ctx, current)
	if errors.Is(err, model.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if other.Status == model.SessionFinished {
		return nil
	}
	return model.ErrInOtherSession
}

func (c *Controller) bind(caller Caller, session *model.Session) error {
	if caller.ConnectionID == "" {
		return nil
	}
	return c.group.Bind(caller.ConnectionID, session.ID)
}

// StartSession moves a waiting session into play at round 1
func (c *Controller) StartSession(ctx context.Context, caller Caller, code model.SessionCode) error {
	err := c.withSession(ctx, code, func(session *model.Session) error {
		if !session.IsMaster(caller.Identity) {
			return model.ErrNotMaster
		}
		if session.Status != model.SessionWaiting {
			return fmt.Errorf("%w: session is %s", model.ErrWrongState, session.Status)
		}

		now := c.clock.Now()
		session.Status = model.SessionInProgress
		session.CurrentRound = 1
		session.StartedAt = &now
		session.UpdatedAt = now
		if err := c.storage.SaveSession(ctx, session); err != nil {
			return err
		}

		c.logger.Info("session started",
			slog.String("session_code", string(session.Code)),
			slog.Int("round", session.CurrentRound),
		)
		c.group.Broadcast(model.NewSessionStarted(session))
		return nil
	})
	return c.reject("start session", code, caller, err)
}

// StartRound reveals a master-authored pattern for the current round
func (c *Controller) StartRound(ctx context.Context, caller Caller, code model.SessionCode, p model.Pattern) error {
	err := c.withSession(ctx, code, func(session *model.Session) error {
		if err := c.checkRoundStartable(ctx, caller, session); err != nil {
			return err
		}
		if err := p.Validate(session.CellCount()); err != nil {
			return err
		}
		return c.startRound(ctx, session, p)
	})
	return c.reject("start round", code, caller, err)
}

// StartGeneratedRound reveals a server-generated pattern for the current
// round and returns it to the master
func (c *Controller) StartGeneratedRound(ctx context.Context, caller Caller, code model.SessionCode) (model.Pattern, error) {
	var p model.Pattern
	err := c.withSession(ctx, code, func(session *model.Session) error {
		if err := c.checkRoundStartable(ctx, caller, session); err != nil {
			return err
		}
		p = c.patterns.Generate(session.CurrentRound, session.GridSize)
		return c.startRound(ctx, session, p)
	})
	if err != nil {
		return nil, c.reject("start generated round", code, caller, err)
	}
	return p, nil
}

func (c *Controller) checkRoundStartable(ctx context.Context, caller Caller, session *model.Session) error {
	if !session.IsMaster(caller.Identity) {
		return model.ErrNotMaster
	}
	if session.Status != model.SessionInProgress {
		return fmt.Errorf("%w: session is %s", model.ErrWrongState, session.Status)
	}
	_, err := c.storage.GetRound(ctx, session.ID, session.CurrentRound)
	if err == nil {
		return model.ErrRoundAlreadyStarted
	}
	if !errors.Is(err, model.ErrRoundNotFound) {
		return err
	}
	return nil
}

func (c *Controller) startRound(ctx context.Context, session *model.Session, p model.Pattern) error {
	round := &model.Round{
		SessionID: session.ID,
		Number:    session.CurrentRound,
		Pattern:   p,
		CreatedAt: c.clock.Now(),
	}
	if err := c.storage.SaveRound(ctx, round); err != nil {
		return err
	}

	c.logger.Info("round started",
		slog.String("session_code", string(session.Code)),
		slog.Int("round", round.Number),
		slog.Int("pattern_length", len(p)),
	)
	c.group.Broadcast(model.NewPatternRevealed(session, round))
	return nil
}

// SubmitAttempt records the caller's single attempt at the current round
func (c *Controller) SubmitAttempt(ctx context.Context, caller Caller, code model.SessionCode, sequence []int, reactionTime time.Duration) (*model.AttemptResult, error) {
	var result *model.AttemptResult
	err := c.withSession(ctx, code, func(session *model.Session) error {
		if session.Status != model.SessionInProgress {
			return fmt.Errorf("%w: session is %s", model.ErrWrongState, session.Status)
		}
		member, err := c.storage.GetMember(ctx, session.ID, caller.Identity)
		if errors.Is(err, model.ErrMemberNotFound) {
			return model.ErrNotMember
		}
		if err != nil {
			return err
		}
		if member.Role != model.RolePlayer {
			return model.ErrNotPlayer
		}
		if reactionTime < 0 {
			return fmt.Errorf("%w: negative reaction time", model.ErrInvalidArgument)
		}

		round, err := c.storage.GetRound(ctx, session.ID, session.CurrentRound)
		if errors.Is(err, model.ErrRoundNotFound) {
			return model.ErrRoundNotStarted
		}
		if err != nil {
			return err
		}
		_, err = c.storage.GetAttempt(ctx, session.ID, round.Number, caller.Identity)
		if err == nil {
			return model.ErrDuplicateAttempt
		}
		if !errors.Is(err, model.ErrAttemptNotFound) {
			return err
		}

		correct := round.Pattern.Matches(sequence)
		points := c.scoring.Points(round.Number, correct, reactionTime)
		attempt := &model.Attempt{
			SessionID:    session.ID,
			RoundNumber:  round.Number,
			Identity:     caller.Identity,
			Sequence:     append([]int(nil), sequence...),
			Correct:      correct,
			Points:       points,
			ReactionTime: reactionTime,
			SubmittedAt:  c.clock.Now(),
		}
		member.Score += points
		if err := c.storage.RecordAttempt(ctx, attempt, member); err != nil {
			return err
		}

		c.logger.Info("attempt recorded",
			slog.String("session_code", string(session.Code)),
			slog.String("identity", string(caller.Identity)),
			slog.Int("round", round.Number),
			slog.Bool("correct", correct),
			slog.Int("points", points),
			slog.Int("total_score", member.Score),
		)
		c.group.Broadcast(model.NewAttemptRecorded(session, member, attempt))

		result = &model.AttemptResult{Correct: correct, Points: points, TotalScore: member.Score}
		return nil
	})
	if err != nil {
		return nil, c.reject("submit attempt", code, caller, err)
	}
	return result, nil
}

// NextRound advances the round counter
func (c *Controller) NextRound(ctx context.Context, caller Caller, code model.SessionCode) error {
	err := c.withSession(ctx, code, func(session *model.Session) error {
		if !session.IsMaster(caller.Identity) {
			return model.ErrNotMaster
		}
		if session.Status != model.SessionInProgress {
			return fmt.Errorf("%w: session is %s", model.ErrWrongState, session.Status)
		}

		session.CurrentRound++
		session.UpdatedAt = c.clock.Now()
		if err := c.storage.SaveSession(ctx, session); err != nil {
			return err
		}

		c.logger.Info("round advanced",
			slog.String("session_code", string(session.Code)),
			slog.Int("round", session.CurrentRound),
		)
		c.group.Broadcast(model.NewRoundAdvanced(session))
		return nil
	})
	return c.reject("next round", code, caller, err)
}

// EndSession finishes the session and publishes the final leaderboard
func (c *Controller) EndSession(ctx context.Context, caller Caller, code model.SessionCode) ([]model.LeaderboardEntry, error) {
	var leaderboard []model.LeaderboardEntry
	err := c.withSession(ctx, code, func(session *model.Session) error {
		if !session.IsMaster(caller.Identity) {
			return model.ErrNotMaster
		}
		if !session.CanTransitionTo(model.SessionFinished) {
			return fmt.Errorf("%w: session is %s", model.ErrWrongState, session.Status)
		}

		var err error
		leaderboard, err = c.finish(ctx, session, model.EndReasonMasterEnded)
		return err
	})
	if err != nil {
		return nil, c.reject("end session", code, caller, err)
	}
	return leaderboard, nil
}

// finish marks the session finished, saving any given members with it, and
// broadcasts SessionEnded. Must be called with the session held.
func (c *Controller) finish(ctx context.Context, session *model.Session, reason string, members ...*model.Member) ([]model.LeaderboardEntry, error) {
	now := c.clock.Now()
	session.Status = model.SessionFinished
	session.FinishedAt = &now
	session.UpdatedAt = now
	if err := c.storage.SaveSession(ctx, session, members...); err != nil {
		return nil, err
	}

	all, err := c.storage.ListMembers(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	leaderboard := model.BuildLeaderboard(all)

	c.logger.Info("session ended",
		slog.String("session_code", string(session.Code)),
		slog.String("reason", reason),
		slog.Int("rounds", session.CurrentRound),
	)
	c.group.Broadcast(model.NewSessionEnded(session, leaderboard, reason))
	return leaderboard, nil
}

// GetMemberList returns the session's members in join order
func (c *Controller) GetMemberList(ctx context.Context, code model.SessionCode) ([]model.MemberSummary, error) {
	var members []model.MemberSummary
	err := c.withSession(ctx, code, func(session *model.Session) error {
		all, err := c.storage.ListMembers(ctx, session.ID)
		if err != nil {
			return err
		}
		members = model.Summaries(all)
		return nil
	})
	return members, err
}

// GetLeaderboard returns members ordered by score
func (c *Controller) GetLeaderboard(ctx context.Context, code model.SessionCode) ([]model.LeaderboardEntry, error) {
	var leaderboard []model.LeaderboardEntry
	err := c.withSession(ctx, code, func(session *model.Session) error {
		all, err := c.storage.ListMembers(ctx, session.ID)
		if err != nil {
			return err
		}
		leaderboard = model.BuildLeaderboard(all)
		return nil
	})
	return leaderboard, err
}

// GetSnapshot returns a consistent view of a session for read-only callers
func (c *Controller) GetSnapshot(ctx context.Context, code model.SessionCode) (*Snapshot, error) {
	var snap *Snapshot
	err := c.withSession(ctx, code, func(session *model.Session) error {
		members, err := c.storage.ListMembers(ctx, session.ID)
		if err != nil {
			return err
		}
		rounds, err := c.storage.ListRounds(ctx, session.ID)
		if err != nil {
			return err
		}
		snap = &Snapshot{
			Session:      session.Info(),
			Members:      model.Summaries(members),
			RoundsPlayed: len(rounds),
			CreatedAt:    session.CreatedAt,
			StartedAt:    session.StartedAt,
			FinishedAt:   session.FinishedAt,
		}
		return nil
	})
	return snap, err
}

// HandleDisconnect records the loss of a connection. A master lost while the
// session is in progress finishes the session; any other loss marks the
// member disconnected. Losses of connections that have since been replaced
// by a reconnect are ignored.
func (c *Controller) HandleDisconnect(ctx context.Context, connID model.ConnectionID, identity model.IdentityID, sessionID model.SessionID) error {
	if sessionID == "" {
		return nil
	}

	unlock := c.locks.lock(sessionID)
	defer unlock()

	session, err := c.storage.GetSession(ctx, sessionID)
	if errors.Is(err, model.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	member, err := c.storage.GetMember(ctx, sessionID, identity)
	if errors.Is(err, model.ErrMemberNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !member.Connected || member.ConnectionID != connID {
		return nil
	}

	member.Connected = false
	member.ConnectionID = ""

	if member.Role == model.RoleMaster && session.Status == model.SessionInProgress {
		c.logger.Warn("master disconnected during play",
			slog.String("session_code", string(session.Code)),
			slog.Int("round", session.CurrentRound),
		)
		_, err := c.finish(ctx, session, model.EndReasonMasterDisconnected, member)
		return err
	}

	if err := c.storage.SaveMember(ctx, member); err != nil {
		return err
	}
	c.logger.Info("member disconnected",
		slog.String("session_code", string(session.Code)),
		slog.String("identity", string(identity)),
	)
	c.group.Broadcast(model.NewMemberDisconnected(session, member))
	return nil
}

// Sweep deletes sessions idle for longer than ttl that are finished or have
// nobody connected. It returns the number of sessions removed.
func (c *Controller) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	sessions, err := c.storage.ListSessions(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := c.clock.Now().Add(-ttl)
	removed := 0
	for _, candidate := range sessions {
		if candidate.UpdatedAt.After(cutoff) {
			continue
		}
		ok, err := c.sweepOne(ctx, candidate.ID, cutoff)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}

	if removed > 0 {
		c.logger.Info("idle sessions removed", slog.Int("removed", removed))
	}
	return removed, nil
}

func (c *Controller) sweepOne(ctx context.Context, id model.SessionID, cutoff time.Time) (bool, error) {
	unlock := c.locks.lock(id)
	defer unlock()

	session, err := c.storage.GetSession(ctx, id)
	if errors.Is(err, model.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if session.UpdatedAt.After(cutoff) {
		return false, nil
	}
	if session.Status != model.SessionFinished {
		members, err := c.storage.ListMembers(ctx, id)
		if err != nil {
			return false, err
		}
		for _, m := range members {
			if m.Connected {
				return false, nil
			}
		}
	}
	return true, c.storage.DeleteSession(ctx, id)
}

// reject logs a rejected command at debug level and passes err through
func (c *Controller) reject(op string, code model.SessionCode, caller Caller, err error) error {
	if err == nil {
		return nil
	}
	level := slog.LevelDebug
	if model.KindOf(err) == model.KindInternal {
		level = slog.LevelError
	}
	c.logger.Log(context.Background(), level, "command rejected",
		slog.String("op", op),
		slog.String("session_code", string(code)),
		slog.String("identity", string(caller.Identity)),
		slog.String("error", err.Error()),
	)
	return err
}

func validateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: display name is required", model.ErrInvalidArgument)
	}
	if len([]rune(name)) > MaxDisplayNameLength {
		return "", fmt.Errorf("%w: display name is longer than %d characters", model.ErrInvalidArgument, MaxDisplayNameLength)
	}
	return name, nil
}

// ControllerInterface defines the contract for session operations
type ControllerInterface interface {
	CreateSession(ctx context.Context, caller Caller, masterName string, gridSize int) (*model.JoinResult, error)
	JoinSession(ctx context.Context, caller Caller, code model.SessionCode, displayName string) (*model.JoinResult, error)
	StartSession(ctx context.Context, caller Caller, code model.SessionCode) error
	StartRound(ctx context.Context, caller Caller, code model.SessionCode, p model.Pattern) error
	StartGeneratedRound(ctx context.Context, caller Caller, code model.SessionCode) (model.Pattern, error)
	SubmitAttempt(ctx context.Context, caller Caller, code model.SessionCode, sequence []int, reactionTime time.Duration) (*model.AttemptResult, error)
	NextRound(ctx context.Context, caller Caller, code model.SessionCode) error
	EndSession(ctx context.Context, caller Caller, code model.SessionCode) ([]model.LeaderboardEntry, error)
	GetMemberList(ctx context.Context, code model.SessionCode) ([]model.MemberSummary, error)
	GetLeaderboard(ctx context.Context, code model.SessionCode) ([]model.LeaderboardEntry, error)
	GetSnapshot(ctx context.Context, code model.SessionCode) (*Snapshot, error)
	HandleDisconnect(ctx context.Context, connID model.ConnectionID, identity model.IdentityID, sessionID model.SessionID) error
}

// Ensure Controller implements ControllerInterface
var _ ControllerInterface = (*Controller)(nil)
