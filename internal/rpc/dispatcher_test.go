package rpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/memorygrid/internal/dependencies/mocks"
	"github.com/mcoot/memorygrid/internal/directory"
	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/protocol"
	"github.com/mcoot/memorygrid/internal/services/pattern"
	"github.com/mcoot/memorygrid/internal/services/scoring"
	"github.com/mcoot/memorygrid/internal/services/session"
	"github.com/mcoot/memorygrid/internal/storage/memory"
	"github.com/mcoot/memorygrid/internal/testutil"
)

type discardSender struct{}

func (discardSender) Send([]byte) bool { return true }

type DispatcherSuite struct {
	suite.Suite
	ctx        context.Context
	random     *mocks.MockRandom
	dir        *directory.Directory
	dispatcher *Dispatcher
	master     session.Caller
	player     session.Caller
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.random = mocks.NewMockRandom()
	logger := testutil.NopLogger()
	s.dir = directory.New(logger)
	controller := session.NewController(
		memory.New(),
		s.dir,
		scoring.New(),
		pattern.NewGenerator(s.random),
		mocks.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		s.random,
		logger,
	)
	s.dispatcher = NewDispatcher(controller, logger)

	s.master = session.Caller{ConnectionID: "c1", Identity: "alice"}
	s.player = session.Caller{ConnectionID: "c2", Identity: "bob"}
	s.dir.Register(s.master.ConnectionID, s.master.Identity, discardSender{})
	s.dir.Register(s.player.ConnectionID, s.player.Identity, discardSender{})
}

func (s *DispatcherSuite) call(caller session.Caller, target string, args ...any) *protocol.Envelope {
	env, err := protocol.NewInvocation(target, "inv-1", args...)
	s.Require().NoError(err)
	completion := s.dispatcher.Dispatch(s.ctx, caller, env)
	s.Require().NotNil(completion)
	s.Equal(protocol.KindCompletion, completion.Kind)
	s.Equal("inv-1", completion.InvocationID)
	return completion
}

func (s *DispatcherSuite) ok(caller session.Caller, target string, args ...any) *protocol.Envelope {
	completion := s.call(caller, target, args...)
	s.Require().Empty(completion.Error)
	return completion
}

func (s *DispatcherSuite) createSession() model.SessionCode {
	s.random.QueueString("ABC123")
	var result model.JoinResult
	s.Require().NoError(s.ok(s.master, protocol.TargetCreateSession, "Alice", 4).DecodeResult(&result))
	return result.Session.Code
}

func (s *DispatcherSuite) TestTargets() {
	s.Equal([]string{
		protocol.TargetCreateSession,
		protocol.TargetEndSession,
		protocol.TargetGetLeaderboard,
		protocol.TargetGetMemberList,
		protocol.TargetJoinSession,
		protocol.TargetNextRound,
		protocol.TargetStartGeneratedRound,
		protocol.TargetStartRound,
		protocol.TargetStartSession,
		protocol.TargetSubmitAttempt,
	}, s.dispatcher.Targets())
}

func (s *DispatcherSuite) TestFullRound() {
	code := s.createSession()
	s.Equal(model.SessionCode("ABC123"), code)

	var joined model.JoinResult
	s.Require().NoError(s.ok(s.player, protocol.TargetJoinSession, code, "Bob").DecodeResult(&joined))
	s.Len(joined.Members, 2)

	completion := s.ok(s.master, protocol.TargetStartSession, code)
	s.Empty(completion.Result)
	s.ok(s.master, protocol.TargetStartRound, code, []int{0, 5, 12})

	var result model.AttemptResult
	s.Require().NoError(s.ok(s.player, protocol.TargetSubmitAttempt, code, []int{0, 5, 12}, 2000).DecodeResult(&result))
	s.Equal(model.AttemptResult{Correct: true, Points: 130, TotalScore: 130}, result)

	var members []model.MemberSummary
	s.Require().NoError(s.ok(s.player, protocol.TargetGetMemberList, code).DecodeResult(&members))
	s.Len(members, 2)

	var leaderboard []model.LeaderboardEntry
	s.Require().NoError(s.ok(s.player, protocol.TargetGetLeaderboard, code).DecodeResult(&leaderboard))
	s.Equal("Bob", leaderboard[0].DisplayName)

	s.ok(s.master, protocol.TargetNextRound, code)
	s.random.QueueIntn(3, 9)
	var generated model.Pattern
	s.Require().NoError(s.ok(s.master, protocol.TargetStartGeneratedRound, code).DecodeResult(&generated))
	s.Equal(model.Pattern{3, 9}, generated)

	s.Require().NoError(s.ok(s.master, protocol.TargetEndSession, code).DecodeResult(&leaderboard))
	s.Len(leaderboard, 2)
}

func (s *DispatcherSuite) TestCreateSessionDefaultsGridSize() {
	s.random.QueueString("ABC123")
	var result model.JoinResult
	s.Require().NoError(s.ok(s.master, protocol.TargetCreateSession, "Alice").DecodeResult(&result))
	s.Equal(model.DefaultGridSize, result.Session.GridSize)
}

func (s *DispatcherSuite) TestPreconditionErrorsReachCaller() {
	code := s.createSession()
	s.ok(s.player, protocol.TargetJoinSession, code, "Bob")

	completion := s.call(s.player, protocol.TargetStartSession, code)
	s.Equal(model.ErrNotMaster.Error(), completion.Error)
	s.Empty(completion.Result)

	completion = s.call(s.player, protocol.TargetJoinSession, "NOPE00", "Bob")
	s.Equal(model.ErrSessionNotFound.Error(), completion.Error)
}

func (s *DispatcherSuite) TestUnknownTarget() {
	completion := s.call(s.master, "DeleteEverything")
	s.Contains(completion.Error, model.ErrUnknownTarget.Error())
}

func (s *DispatcherSuite) TestBadArguments() {
	completion := s.call(s.master, protocol.TargetJoinSession, "ABC123")
	s.Contains(completion.Error, model.ErrInvalidArgument.Error())

	env := &protocol.Envelope{
		Kind:         protocol.KindInvocation,
		InvocationID: "inv-1",
		Target:       protocol.TargetStartRound,
		Arguments:    []json.RawMessage{json.RawMessage(`"ABC123"`), json.RawMessage(`"not a pattern"`)},
	}
	completion = s.dispatcher.Dispatch(s.ctx, s.master, env)
	s.Contains(completion.Error, model.ErrInvalidArgument.Error())
}

func (s *DispatcherSuite) TestReactionTimeBounds() {
	code := s.createSession()
	s.ok(s.player, protocol.TargetJoinSession, code, "Bob")
	s.ok(s.master, protocol.TargetStartSession, code)
	s.ok(s.master, protocol.TargetStartRound, code, []int{0, 5, 12})

	// Would wrap to a small duration if converted unchecked
	completion := s.call(s.player, protocol.TargetSubmitAttempt, code, []int{0, 5, 12}, int64(1)<<58+1000)
	s.Contains(completion.Error, model.ErrInvalidArgument.Error())

	completion = s.call(s.player, protocol.TargetSubmitAttempt, code, []int{0, 5, 12}, -1)
	s.Contains(completion.Error, model.ErrInvalidArgument.Error())

	// Slow but representable: correct, no speed bonus
	var result model.AttemptResult
	s.Require().NoError(s.ok(s.player, protocol.TargetSubmitAttempt, code, []int{0, 5, 12}, maxReactionMs).DecodeResult(&result))
	s.Equal(model.AttemptResult{Correct: true, Points: 100, TotalScore: 100}, result)
}

func (s *DispatcherSuite) TestInvocationWithoutIDHasNoCompletion() {
	s.random.QueueString("ABC123")
	env, err := protocol.NewInvocation(protocol.TargetCreateSession, "", "Alice", 4)
	s.Require().NoError(err)

	s.Nil(s.dispatcher.Dispatch(s.ctx, s.master, env))

	entry, ok := s.dir.Lookup(s.master.ConnectionID)
	s.Require().True(ok)
	s.NotEmpty(entry.SessionID, "command still runs")
}
