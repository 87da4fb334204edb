package play

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/memorygrid/internal/dependencies/mocks"
	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/testutil"
)

type submission struct {
	code     model.SessionCode
	sequence []int
	reaction time.Duration
}

type fakeCommands struct {
	mu          sync.Mutex
	rounds      []model.Pattern
	submissions []submission
	roundErr    error
	submitErr   error
	// onSubmit runs before SubmitAttempt returns, standing in for the
	// AttemptRecorded broadcast that precedes the completion
	onSubmit func()
}

func (f *fakeCommands) StartRound(_ context.Context, _ model.SessionCode, p model.Pattern) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roundErr != nil {
		return f.roundErr
	}
	f.rounds = append(f.rounds, p)
	return nil
}

func (f *fakeCommands) SubmitAttempt(_ context.Context, code model.SessionCode, sequence []int, reaction time.Duration) (*model.AttemptResult, error) {
	f.mu.Lock()
	err := f.submitErr
	if err == nil {
		f.submissions = append(f.submissions, submission{code: code, sequence: sequence, reaction: reaction})
	}
	onSubmit := f.onSubmit
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if onSubmit != nil {
		onSubmit()
	}
	return &model.AttemptResult{}, nil
}

type cellEvent struct {
	step, cell int
	lit        bool
}

type recorder struct {
	mu           sync.Mutex
	transitions  []string
	cells        []cellEvent
	members      []model.MemberSummary
	disconnected []error
	endReason    string
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		StateChanged: func(from, to State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.transitions = append(r.transitions, fmt.Sprintf("%s->%s", from, to))
		},
		Cell: func(step, cell int, lit bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.cells = append(r.cells, cellEvent{step, cell, lit})
		},
		MembersChanged: func(members []model.MemberSummary) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.members = members
		},
		Ended: func(_ []model.LeaderboardEntry, reason string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.endReason = reason
		},
		Disconnected: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.disconnected = append(r.disconnected, err)
		},
	}
}

func (r *recorder) cellCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cells)
}

var (
	alice = model.MemberSummary{Identity: "alice", DisplayName: "Alice", Role: model.RoleMaster, Connected: true}
	bob   = model.MemberSummary{Identity: "bob", DisplayName: "Bob", Role: model.RolePlayer, Connected: true}
	carol = model.MemberSummary{Identity: "carol", DisplayName: "Carol", Role: model.RolePlayer, Connected: true}
)

type MachineSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *mocks.MockClock
	commands *fakeCommands
	rec      *recorder
	machine  *Machine
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

func (s *MachineSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.commands = &fakeCommands{}
	s.rec = &recorder{}
	s.machine = New(s.commands, s.clock, DefaultTiming(), s.rec.hooks(), testutil.NopLogger())
}

func (s *MachineSuite) TearDownTest() {
	s.machine.Close()
}

func (s *MachineSuite) join(self model.MemberSummary) {
	s.machine.Joined(&model.JoinResult{
		Session: model.SessionInfo{Code: "ABC123", Status: model.SessionWaiting, GridSize: 4},
		Member:  self,
		Members: []model.MemberSummary{alice, bob, carol},
	})
}

func (s *MachineSuite) waitForTimer() {
	s.Require().Eventually(func() bool {
		return s.clock.PendingTimers() >= 1
	}, 2*time.Second, time.Millisecond)
}

// playReveal drives the replay of an n-cell pattern to completion
func (s *MachineSuite) playReveal(n int) {
	for i := 0; i < n; i++ {
		s.waitForTimer()
		s.clock.Advance(DefaultReveal)
		s.waitForTimer()
		s.clock.Advance(DefaultHide)
	}
}

func (s *MachineSuite) waitForState(want State) {
	s.Require().Eventually(func() bool {
		return s.machine.State() == want
	}, 2*time.Second, time.Millisecond, "waiting for %s, have %s", want, s.machine.State())
}

// playerTurn puts Bob into his turn for the pattern 0, 5, 12
func (s *MachineSuite) playerTurn() {
	s.join(bob)
	s.machine.sessionStarted(model.SessionInfo{Code: "ABC123", Status: model.SessionInProgress, GridSize: 4, CurrentRound: 1})
	s.machine.patternRevealed(model.Pattern{0, 5, 12}, 1)
	s.playReveal(3)
	s.waitForState(PlayerTurn)
}

func (s *MachineSuite) TestStateNames() {
	s.Equal("building_sequence", BuildingSequence.String())
	s.Equal("game_ended", GameEnded.String())
	s.Equal("state(42)", State(42).String())
}

func (s *MachineSuite) TestJoinedWaits() {
	s.Equal(Idle, s.machine.State())
	s.join(bob)
	s.Equal(Waiting, s.machine.State())

	view := s.machine.View()
	s.Equal(model.RolePlayer, view.Role)
	s.Equal(model.SessionCode("ABC123"), view.Code)
	s.Len(view.Members, 3)
}

func (s *MachineSuite) TestSessionStartedSplitsByRole() {
	s.join(alice)
	s.machine.sessionStarted(model.SessionInfo{Code: "ABC123", CurrentRound: 1})
	s.Equal(BuildingSequence, s.machine.State())

	player := New(s.commands, s.clock, DefaultTiming(), Hooks{}, testutil.NopLogger())
	player.Joined(&model.JoinResult{Session: model.SessionInfo{Code: "ABC123", GridSize: 4}, Member: bob})
	player.sessionStarted(model.SessionInfo{Code: "ABC123", CurrentRound: 1})
	s.Equal(Waiting, player.State())
}

func (s *MachineSuite) TestRevealReplaysPatternThenOpensTurn() {
	s.join(bob)
	s.machine.sessionStarted(model.SessionInfo{CurrentRound: 1})
	s.machine.patternRevealed(model.Pattern{0, 5, 12}, 1)
	s.Equal(ShowingPattern, s.machine.State())

	s.waitForTimer()
	s.Equal(1, s.rec.cellCount(), "first cell is lit before any time passes")

	s.playReveal(3)
	s.waitForState(PlayerTurn)

	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.Equal([]cellEvent{
		{0, 0, true}, {0, 0, false},
		{1, 5, true}, {1, 5, false},
		{2, 12, true}, {2, 12, false},
	}, s.rec.cells)
	s.Equal([]string{"idle->waiting", "waiting->showing_pattern", "showing_pattern->player_turn"}, s.rec.transitions)
}

func (s *MachineSuite) TestInputDuringRevealIsDiscarded() {
	s.join(bob)
	s.machine.patternRevealed(model.Pattern{0, 5, 12}, 1)

	s.ErrorIs(s.machine.Select(s.ctx, 0), ErrInputRejected)
	s.Empty(s.machine.View().Input)
}

func (s *MachineSuite) TestCompleteAttemptSubmitsWithMeasuredReaction() {
	s.playerTurn()
	s.clock.Advance(1500 * time.Millisecond)

	s.Require().NoError(s.machine.Select(s.ctx, 0))
	s.Require().NoError(s.machine.Select(s.ctx, 5))
	s.Equal(PlayerTurn, s.machine.State())
	s.Require().NoError(s.machine.Select(s.ctx, 12))
	s.Equal(Validating, s.machine.State())

	s.Require().Len(s.commands.submissions, 1)
	sub := s.commands.submissions[0]
	s.Equal(model.SessionCode("ABC123"), sub.code)
	s.Equal([]int{0, 5, 12}, sub.sequence)
	s.Equal(1500*time.Millisecond, sub.reaction)
}

func (s *MachineSuite) TestMismatchSubmitsPartialAttempt() {
	s.playerTurn()

	s.Require().NoError(s.machine.Select(s.ctx, 0))
	s.Require().NoError(s.machine.Select(s.ctx, 6))

	s.Require().Len(s.commands.submissions, 1)
	s.Equal([]int{0, 6}, s.commands.submissions[0].sequence)
	s.Equal(Validating, s.machine.State())

	s.ErrorIs(s.machine.Select(s.ctx, 12), ErrInputRejected, "no input once validating")
}

func (s *MachineSuite) TestOwnAttemptRecordedCompletesRound() {
	s.playerTurn()
	s.commands.onSubmit = func() {
		s.machine.attemptRecorded(bob, true, 130, 130)
	}

	s.Require().NoError(s.machine.Select(s.ctx, 0))
	s.Require().NoError(s.machine.Select(s.ctx, 5))
	s.Require().NoError(s.machine.Select(s.ctx, 12))

	s.Equal(RoundComplete, s.machine.State())
	for _, m := range s.machine.View().Members {
		if m.Identity == bob.Identity {
			s.Equal(130, m.Score)
		}
	}
}

func (s *MachineSuite) TestOtherAttemptRecordedIsInformational() {
	s.playerTurn()
	s.machine.attemptRecorded(carol, true, 150, 150)
	s.Equal(PlayerTurn, s.machine.State())
}

func (s *MachineSuite) TestRejectedSubmissionReopensTurn() {
	s.playerTurn()
	s.commands.submitErr = errors.New("attempt already recorded for this round")

	s.Require().NoError(s.machine.Select(s.ctx, 0))
	err := s.machine.Select(s.ctx, 9)
	s.EqualError(err, "attempt already recorded for this round")

	s.Equal(PlayerTurn, s.machine.State())
	s.Empty(s.machine.View().Input)
}

func (s *MachineSuite) TestMasterBuildsAndSends() {
	s.join(alice)
	s.machine.sessionStarted(model.SessionInfo{CurrentRound: 1})

	s.ErrorIs(s.machine.Send(s.ctx), ErrNothingToSend)
	s.Require().NoError(s.machine.Select(s.ctx, 3))
	s.Require().NoError(s.machine.Select(s.ctx, 7))
	s.ErrorIs(s.machine.Select(s.ctx, 16), model.ErrInvalidPattern)
	s.Equal(model.Pattern{3, 7}, s.machine.View().Draft)

	s.Require().NoError(s.machine.Send(s.ctx))
	s.Equal([]model.Pattern{{3, 7}}, s.commands.rounds)
	s.Equal(BuildingSequence, s.machine.State(), "state moves on with the reveal, not the completion")

	s.machine.patternRevealed(model.Pattern{3, 7}, 1)
	s.Equal(ShowingPattern, s.machine.State())
	s.Empty(s.machine.View().Draft)
	s.playReveal(2)
	s.waitForState(Waiting)

	s.ErrorIs(s.machine.Send(s.ctx), ErrInputRejected)
	s.ErrorIs(s.machine.Select(s.ctx, 1), ErrInputRejected)
}

func (s *MachineSuite) TestRejectedRoundLeavesStateUnchanged() {
	s.join(alice)
	s.machine.sessionStarted(model.SessionInfo{CurrentRound: 1})
	s.commands.roundErr = errors.New("round already in progress")

	s.Require().NoError(s.machine.Select(s.ctx, 3))
	s.Error(s.machine.Send(s.ctx))
	s.Equal(BuildingSequence, s.machine.State())
	s.Equal(model.Pattern{3}, s.machine.View().Draft)
}

func (s *MachineSuite) TestPlayerCannotBuild() {
	s.join(bob)
	s.machine.sessionStarted(model.SessionInfo{CurrentRound: 1})
	s.ErrorIs(s.machine.Select(s.ctx, 3), ErrInputRejected)
	s.ErrorIs(s.machine.Send(s.ctx), ErrInputRejected)
}

func (s *MachineSuite) TestRoundAdvancedResetsRound() {
	s.playerTurn()
	s.Require().NoError(s.machine.Select(s.ctx, 0))

	s.machine.roundAdvanced(2)
	s.Equal(Waiting, s.machine.State())
	view := s.machine.View()
	s.Equal(2, view.Round)
	s.Empty(view.Input)
	s.Empty(view.Pattern)
}

func (s *MachineSuite) TestSessionEndedCancelsReveal() {
	s.join(bob)
	s.machine.patternRevealed(model.Pattern{0, 5, 12}, 1)
	s.waitForTimer()
	s.clock.Advance(DefaultReveal)
	s.Require().Eventually(func() bool { return s.rec.cellCount() == 2 }, 2*time.Second, time.Millisecond)

	s.machine.sessionEnded([]model.LeaderboardEntry{{DisplayName: "Carol", Score: 150}}, model.EndReasonMasterEnded)
	s.Equal(GameEnded, s.machine.State())

	s.clock.Advance(10 * time.Second)
	s.Never(func() bool { return s.rec.cellCount() > 2 }, 50*time.Millisecond, 5*time.Millisecond)
	s.Equal(GameEnded, s.machine.State())

	view := s.machine.View()
	s.Equal(model.EndReasonMasterEnded, view.EndReason)
	s.Len(view.Leaderboard, 1)
	s.rec.mu.Lock()
	s.Equal(model.EndReasonMasterEnded, s.rec.endReason)
	s.rec.mu.Unlock()

	s.machine.roundAdvanced(2)
	s.machine.patternRevealed(model.Pattern{1}, 2)
	s.Equal(GameEnded, s.machine.State(), "no way out of game ended")
}

func (s *MachineSuite) TestRevealStoppedAsTimerFiresEmitsNothing() {
	s.join(bob)
	s.machine.patternRevealed(model.Pattern{0, 5, 12}, 1)
	s.waitForTimer()
	s.Equal(1, s.rec.cellCount())

	// The timer fires while the replay is being stopped
	s.machine.mu.Lock()
	s.clock.Advance(DefaultReveal)
	s.machine.stopReveal()
	s.machine.mu.Unlock()

	s.clock.Advance(10 * time.Second)
	s.Never(func() bool { return s.rec.cellCount() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	s.Equal(ShowingPattern, s.machine.State())
}

func (s *MachineSuite) TestLaterPatternSupersedesReveal() {
	s.join(bob)
	s.machine.patternRevealed(model.Pattern{0, 5, 12}, 1)
	s.waitForTimer()

	s.machine.patternRevealed(model.Pattern{9}, 2)
	s.playReveal(1)
	s.waitForState(PlayerTurn)
	s.Equal(model.Pattern{9}, s.machine.View().Pattern)
}

func (s *MachineSuite) TestMemberPresenceIsInformational() {
	s.playerTurn()

	gone := carol
	gone.Connected = false
	s.machine.memberChanged(gone)
	s.Equal(PlayerTurn, s.machine.State())

	dave := model.MemberSummary{Identity: "dave", DisplayName: "Dave", Role: model.RolePlayer, Connected: true}
	s.machine.memberJoined(dave)

	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.Len(s.rec.members, 4)
	s.False(s.rec.members[2].Connected)
}

func (s *MachineSuite) TestDisconnectIsTerminal() {
	s.playerTurn()
	lost := errors.New("connection reset")

	s.machine.disconnect(lost)
	s.machine.disconnect(lost)

	s.True(s.machine.View().Disconnected)
	s.ErrorIs(s.machine.Select(s.ctx, 0), ErrInputRejected)
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.Equal([]error{lost}, s.rec.disconnected)
}

func (s *MachineSuite) TestDisconnectAfterEndIsQuiet() {
	s.join(bob)
	s.machine.sessionEnded(nil, model.EndReasonMasterDisconnected)
	s.machine.disconnect(nil)

	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.Empty(s.rec.disconnected)
}

// fakeSource captures registrations so events can be fired by hand
type fakeSource struct {
	joined       func(model.MemberSummary)
	reconnected  func(model.MemberSummary)
	disconnected func(model.MemberSummary)
	started      func(model.SessionInfo)
	revealed     func(model.Pattern, int)
	recorded     func(model.MemberSummary, bool, int, int)
	advanced     func(int)
	ended        func([]model.LeaderboardEntry, string)
	lost         func(error)
}

func (f *fakeSource) OnMemberJoined(fn func(model.MemberSummary))       { f.joined = fn }
func (f *fakeSource) OnMemberReconnected(fn func(model.MemberSummary))  { f.reconnected = fn }
func (f *fakeSource) OnMemberDisconnected(fn func(model.MemberSummary)) { f.disconnected = fn }
func (f *fakeSource) OnSessionStarted(fn func(model.SessionInfo))       { f.started = fn }
func (f *fakeSource) OnPatternRevealed(fn func(model.Pattern, int))     { f.revealed = fn }
func (f *fakeSource) OnAttemptRecorded(fn func(model.MemberSummary, bool, int, int)) {
	f.recorded = fn
}
func (f *fakeSource) OnRoundAdvanced(fn func(int))                                { f.advanced = fn }
func (f *fakeSource) OnSessionEnded(fn func([]model.LeaderboardEntry, string)) { f.ended = fn }
func (f *fakeSource) OnDisconnect(fn func(error))                                 { f.lost = fn }

func (s *MachineSuite) TestAttachRoutesEvents() {
	src := &fakeSource{}
	s.machine.Attach(src)
	s.join(alice)

	src.started(model.SessionInfo{CurrentRound: 1})
	s.Equal(BuildingSequence, s.machine.State())
	src.advanced(2)
	s.Equal(2, s.machine.View().Round)
	src.ended(nil, model.EndReasonMasterEnded)
	s.Equal(GameEnded, s.machine.State())
}
