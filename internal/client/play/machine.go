package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/memorygrid/internal/dependencies/clock"
	"github.com/mcoot/memorygrid/internal/model"
)

// State is the client's view of where the session and round are
type State int

const (
	Idle State = iota
	Waiting
	BuildingSequence
	ShowingPattern
	PlayerTurn
	Validating
	RoundComplete
	GameEnded
)

var stateNames = [...]string{
	"idle",
	"waiting",
	"building_sequence",
	"showing_pattern",
	"player_turn",
	"validating",
	"round_complete",
	"game_ended",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

var (
	// ErrInputRejected is returned for input given in a state that does not take it
	ErrInputRejected = errors.New("input not accepted in the current state")
	// ErrNothingToSend is returned by Send before any cell has been chosen
	ErrNothingToSend = errors.New("pattern is empty")
)

// Default reveal pacing: each cell is lit for Reveal then dark for Hide
const (
	DefaultReveal = 500 * time.Millisecond
	DefaultHide   = 200 * time.Millisecond
)

// Timing controls pattern replay
type Timing struct {
	Reveal time.Duration
	Hide   time.Duration
}

// DefaultTiming returns the standard reveal pacing
func DefaultTiming() Timing {
	return Timing{Reveal: DefaultReveal, Hide: DefaultHide}
}

// Commands is the part of the transport the machine issues commands through
type Commands interface {
	StartRound(ctx context.Context, code model.SessionCode, p model.Pattern) error
	SubmitAttempt(ctx context.Context, code model.SessionCode, sequence []int, reactionTime time.Duration) (*model.AttemptResult, error)
}

// EventSource delivers server-pushed events
type EventSource interface {
	OnMemberJoined(fn func(model.MemberSummary))
	OnMemberReconnected(fn func(model.MemberSummary))
	OnMemberDisconnected(fn func(model.MemberSummary))
	OnSessionStarted(fn func(model.SessionInfo))
	OnPatternRevealed(fn func(p model.Pattern, round int))
	OnAttemptRecorded(fn func(m model.MemberSummary, correct bool, points, total int))
	OnRoundAdvanced(fn func(round int))
	OnSessionEnded(fn func(leaderboard []model.LeaderboardEntry, reason string))
	OnDisconnect(fn func(error))
}

// Hooks notify the owner of changes. Every hook is optional and is called
// without the machine's lock held.
type Hooks struct {
	StateChanged    func(from, to State)
	Cell            func(step, cell int, lit bool)
	MembersChanged  func(members []model.MemberSummary)
	AttemptRecorded func(m model.MemberSummary, correct bool, points, total int)
	Ended           func(leaderboard []model.LeaderboardEntry, reason string)
	Disconnected    func(err error)
}

// View is a point-in-time copy of the machine's state
type View struct {
	State        State
	Role         model.Role
	Code         model.SessionCode
	Round        int
	GridSize     int
	Pattern      model.Pattern
	Draft        model.Pattern
	Input        []int
	Members      []model.MemberSummary
	Leaderboard  []model.LeaderboardEntry
	EndReason    string
	Disconnected bool
}

// Machine mirrors one member's view of a session. It is driven by server
// events and gates local input.
type Machine struct {
	commands Commands
	clock    clock.Clock
	timing   Timing
	hooks    Hooks
	logger   *slog.Logger

	mu           sync.Mutex
	state        State
	code         model.SessionCode
	self         model.IdentityID
	role         model.Role
	gridSize     int
	round        int
	pattern      model.Pattern
	draft        model.Pattern
	input        []int
	turnStarted  time.Time
	members      []model.MemberSummary
	leaderboard  []model.LeaderboardEntry
	endReason    string
	disconnected bool
	cancelReveal chan struct{}
}

// New creates a Machine in the Idle state
func New(commands Commands, clk clock.Clock, timing Timing, hooks Hooks, logger *slog.Logger) *Machine {
	if timing.Reveal <= 0 {
		timing.Reveal = DefaultReveal
	}
	if timing.Hide <= 0 {
		timing.Hide = DefaultHide
	}
	return &Machine{
		commands: commands,
		clock:    clk,
		timing:   timing,
		hooks:    hooks,
		logger:   logger.With(slog.String("component", "play")),
		state:    Idle,
	}
}

// Attach subscribes the machine to a connection's events
func (m *Machine) Attach(src EventSource) {
	src.OnMemberJoined(m.memberJoined)
	src.OnMemberReconnected(m.memberChanged)
	src.OnMemberDisconnected(m.memberChanged)
	src.OnSessionStarted(m.sessionStarted)
	src.OnPatternRevealed(m.patternRevealed)
	src.OnAttemptRecorded(m.attemptRecorded)
	src.OnRoundAdvanced(m.roundAdvanced)
	src.OnSessionEnded(m.sessionEnded)
	src.OnDisconnect(m.disconnect)
}

// notes collects hook calls made while the lock is held
type notes []func()

func (n notes) run() {
	for _, fn := range n {
		fn()
	}
}

// setState must be called with the lock held
func (m *Machine) setState(to State, n *notes) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	m.logger.Debug("state changed", slog.String("from", from.String()), slog.String("to", to.String()))
	if m.hooks.StateChanged != nil {
		*n = append(*n, func() { m.hooks.StateChanged(from, to) })
	}
}

// membersChanged must be called with the lock held
func (m *Machine) membersChanged(n *notes) {
	if m.hooks.MembersChanged != nil {
		members := append([]model.MemberSummary(nil), m.members...)
		*n = append(*n, func() { m.hooks.MembersChanged(members) })
	}
}

// stopReveal must be called with the lock held
func (m *Machine) stopReveal() {
	if m.cancelReveal != nil {
		close(m.cancelReveal)
		m.cancelReveal = nil
	}
}

// Joined records the reply to CreateSession or JoinSession. A member
// rejoining a session in play waits for the next round event.
func (m *Machine) Joined(result *model.JoinResult) {
	var n notes
	m.mu.Lock()
	m.code = result.Session.Code
	m.self = result.Member.Identity
	m.role = result.Member.Role
	m.gridSize = result.Session.GridSize
	m.round = result.Session.CurrentRound
	m.members = append([]model.MemberSummary(nil), result.Members...)
	m.disconnected = false

	switch {
	case result.Session.Status == model.SessionFinished:
		m.setState(GameEnded, &n)
	case result.Session.Status == model.SessionInProgress && m.role == model.RoleMaster:
		m.setState(BuildingSequence, &n)
	default:
		m.setState(Waiting, &n)
	}
	m.membersChanged(&n)
	m.mu.Unlock()
	n.run()
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// View returns a copy of the machine's state
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return View{
		State:        m.state,
		Role:         m.role,
		Code:         m.code,
		Round:        m.round,
		GridSize:     m.gridSize,
		Pattern:      append(model.Pattern(nil), m.pattern...),
		Draft:        append(model.Pattern(nil), m.draft...),
		Input:        append([]int(nil), m.input...),
		Members:      append([]model.MemberSummary(nil), m.members...),
		Leaderboard:  append([]model.LeaderboardEntry(nil), m.leaderboard...),
		EndReason:    m.endReason,
		Disconnected: m.disconnected,
	}
}

// Select takes one cell of local input. The master builds the round's
// pattern; a player builds an attempt, which is submitted as soon as it is
// complete or first diverges from the revealed pattern.
func (m *Machine) Select(ctx context.Context, cell int) error {
	var n notes
	m.mu.Lock()

	if m.disconnected {
		m.mu.Unlock()
		return ErrInputRejected
	}

	switch {
	case m.state == BuildingSequence && m.role == model.RoleMaster:
		if cell < 0 || cell >= m.gridSize*m.gridSize {
			m.mu.Unlock()
			return fmt.Errorf("%w: cell %d is off the grid", model.ErrInvalidPattern, cell)
		}
		m.draft = append(m.draft, cell)
		m.mu.Unlock()
		return nil

	case m.state == PlayerTurn && m.role == model.RolePlayer:
		m.input = append(m.input, cell)
		i := len(m.input) - 1
		mismatch := i >= len(m.pattern) || m.input[i] != m.pattern[i]
		if !mismatch && len(m.input) < len(m.pattern) {
			m.mu.Unlock()
			return nil
		}

		m.setState(Validating, &n)
		code, round := m.code, m.round
		sequence := append([]int(nil), m.input...)
		reaction := m.clock.Now().Sub(m.turnStarted)
		m.mu.Unlock()
		n.run()

		_, err := m.commands.SubmitAttempt(ctx, code, sequence, reaction)
		if err != nil {
			m.restoreTurn(round)
			return err
		}
		return nil

	default:
		m.mu.Unlock()
		return ErrInputRejected
	}
}

// restoreTurn reopens the player's turn after a rejected submission so the
// attempt can be made again
func (m *Machine) restoreTurn(round int) {
	var n notes
	m.mu.Lock()
	if m.state == Validating && m.round == round {
		m.input = nil
		m.turnStarted = m.clock.Now()
		m.setState(PlayerTurn, &n)
	}
	m.mu.Unlock()
	n.run()
}

// Send issues the master's built pattern as the round's pattern. The state
// moves on when the server reveals it.
func (m *Machine) Send(ctx context.Context) error {
	m.mu.Lock()
	if m.state != BuildingSequence || m.role != model.RoleMaster || m.disconnected {
		m.mu.Unlock()
		return ErrInputRejected
	}
	if len(m.draft) == 0 {
		m.mu.Unlock()
		return ErrNothingToSend
	}
	code := m.code
	p := append(model.Pattern(nil), m.draft...)
	m.mu.Unlock()

	return m.commands.StartRound(ctx, code, p)
}

// Close cancels any reveal in progress
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopReveal()
}

func (m *Machine) sessionStarted(info model.SessionInfo) {
	m.enterRound(info.CurrentRound)
}

func (m *Machine) roundAdvanced(round int) {
	m.enterRound(round)
}

func (m *Machine) enterRound(round int) {
	var n notes
	m.mu.Lock()
	if m.state == GameEnded {
		m.mu.Unlock()
		return
	}
	m.stopReveal()
	m.round = round
	m.pattern = nil
	m.draft = nil
	m.input = nil
	if m.role == model.RoleMaster {
		m.setState(BuildingSequence, &n)
	} else {
		m.setState(Waiting, &n)
	}
	m.mu.Unlock()
	n.run()
}

func (m *Machine) patternRevealed(p model.Pattern, round int) {
	var n notes
	m.mu.Lock()
	if m.state == GameEnded {
		m.mu.Unlock()
		return
	}
	m.stopReveal()
	m.round = round
	m.pattern = append(model.Pattern(nil), p...)
	m.draft = nil
	m.input = nil
	m.setState(ShowingPattern, &n)
	cancel := make(chan struct{})
	m.cancelReveal = cancel
	m.mu.Unlock()
	n.run()

	go m.reveal(m.pattern, cancel)
}

// reveal replays the pattern one cell at a time. Once cancelled it emits
// nothing further.
func (m *Machine) reveal(p model.Pattern, cancel chan struct{}) {
	wait := func(d time.Duration) bool {
		select {
		case <-m.clock.After(d):
			return true
		case <-cancel:
			return false
		}
	}
	// current reports whether this replay is still the live one. It is
	// checked under the lock right before each cell so a replay stopped
	// while its timer was firing emits nothing more.
	current := func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.cancelReveal == cancel
	}

	for step, cell := range p {
		if !current() {
			return
		}
		if m.hooks.Cell != nil {
			m.hooks.Cell(step, cell, true)
		}
		if !wait(m.timing.Reveal) || !current() {
			return
		}
		if m.hooks.Cell != nil {
			m.hooks.Cell(step, cell, false)
		}
		if !wait(m.timing.Hide) {
			return
		}
	}

	var n notes
	m.mu.Lock()
	if m.cancelReveal != cancel {
		m.mu.Unlock()
		return
	}
	m.cancelReveal = nil
	if m.role == model.RoleMaster {
		m.setState(Waiting, &n)
	} else {
		m.turnStarted = m.clock.Now()
		m.setState(PlayerTurn, &n)
	}
	m.mu.Unlock()
	n.run()
}

func (m *Machine) attemptRecorded(member model.MemberSummary, correct bool, points, total int) {
	var n notes
	m.mu.Lock()
	for i := range m.members {
		if m.members[i].Identity == member.Identity {
			m.members[i].Score = total
		}
	}
	m.membersChanged(&n)
	if m.hooks.AttemptRecorded != nil {
		n = append(n, func() { m.hooks.AttemptRecorded(member, correct, points, total) })
	}
	if member.Identity == m.self && (m.state == Validating || m.state == PlayerTurn) {
		m.setState(RoundComplete, &n)
	}
	m.mu.Unlock()
	n.run()
}

func (m *Machine) memberJoined(member model.MemberSummary) {
	var n notes
	m.mu.Lock()
	found := false
	for i := range m.members {
		if m.members[i].Identity == member.Identity {
			m.members[i] = member
			found = true
		}
	}
	if !found {
		m.members = append(m.members, member)
	}
	m.membersChanged(&n)
	m.mu.Unlock()
	n.run()
}

// memberChanged applies MemberReconnected and MemberDisconnected, which
// never change state
func (m *Machine) memberChanged(member model.MemberSummary) {
	var n notes
	m.mu.Lock()
	for i := range m.members {
		if m.members[i].Identity == member.Identity {
			m.members[i].Connected = member.Connected
			m.members[i].Score = member.Score
		}
	}
	m.membersChanged(&n)
	m.mu.Unlock()
	n.run()
}

func (m *Machine) sessionEnded(leaderboard []model.LeaderboardEntry, reason string) {
	var n notes
	m.mu.Lock()
	m.stopReveal()
	m.leaderboard = append([]model.LeaderboardEntry(nil), leaderboard...)
	m.endReason = reason
	m.setState(GameEnded, &n)
	if m.hooks.Ended != nil {
		n = append(n, func() { m.hooks.Ended(leaderboard, reason) })
	}
	m.mu.Unlock()
	n.run()
}

// disconnect surfaces a lost connection. The machine does not reconnect.
func (m *Machine) disconnect(err error) {
	var n notes
	m.mu.Lock()
	m.stopReveal()
	if m.state != GameEnded && !m.disconnected {
		m.disconnected = true
		if m.hooks.Disconnected != nil {
			n = append(n, func() { m.hooks.Disconnected(err) })
		}
	}
	m.mu.Unlock()
	n.run()
}
