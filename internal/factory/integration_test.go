package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/memorygrid/internal/api/response"
	"github.com/mcoot/memorygrid/internal/client"
	"github.com/mcoot/memorygrid/internal/client/play"
	"github.com/mcoot/memorygrid/internal/dependencies/clock"
	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/testutil"
	"github.com/mcoot/memorygrid/internal/transport/ws"
)

// participant is one connected identity and the events it has observed
type participant struct {
	name string
	conn *client.Conn

	mu     sync.Mutex
	events []string
}

func (p *participant) record(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf(format, args...))
}

func (p *participant) has(event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == event {
			return true
		}
	}
	return false
}

type IntegrationSuite struct {
	suite.Suite
	app    *TestApp
	server *httptest.Server
	ctx    context.Context
	cancel context.CancelFunc
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp(ws.Config{})
	s.server = httptest.NewServer(s.app.Router)
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 10*time.Second)
}

func (s *IntegrationSuite) TearDownTest() {
	s.server.Close()
	s.cancel()
}

func (s *IntegrationSuite) guestToken(name string) string {
	body, _ := json.Marshal(map[string]string{"display_name": name})
	resp, err := http.Post(s.server.URL+"/api/v1/identities/guest", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var auth response.AuthResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&auth))
	return auth.Token
}

// connect creates a guest identity and opens a session connection for it
func (s *IntegrationSuite) connect(name string) *participant {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	conn, err := client.Dial(s.ctx, url, client.Options{
		Token:     s.guestToken(name),
		Handshake: true,
		Logger:    testutil.NopLogger(),
	})
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })

	p := &participant{name: name, conn: conn}
	conn.OnMemberJoined(func(m model.MemberSummary) { p.record("joined %s", m.DisplayName) })
	conn.OnMemberDisconnected(func(m model.MemberSummary) { p.record("disconnected %s", m.DisplayName) })
	conn.OnMemberReconnected(func(m model.MemberSummary) { p.record("reconnected %s", m.DisplayName) })
	conn.OnSessionStarted(func(info model.SessionInfo) { p.record("started %s", info.Code) })
	conn.OnPatternRevealed(func(pt model.Pattern, round int) { p.record("revealed %d %v", round, pt) })
	conn.OnAttemptRecorded(func(m model.MemberSummary, correct bool, points, total int) {
		p.record("attempt %s %t %d %d", m.DisplayName, correct, points, total)
	})
	conn.OnRoundAdvanced(func(round int) { p.record("advanced %d", round) })
	conn.OnSessionEnded(func(_ []model.LeaderboardEntry, reason string) { p.record("ended %s", reason) })
	return p
}

func (s *IntegrationSuite) waitFor(p *participant, event string) {
	s.Require().Eventually(func() bool { return p.has(event) }, 2*time.Second, 5*time.Millisecond,
		"%s never saw %q", p.name, event)
}

// Test: a complete session from creation to the final leaderboard
func (s *IntegrationSuite) TestCompleteSession() {
	s.app.MockRandom.QueueString("ABC123")
	alice, bob, carol := s.connect("Alice"), s.connect("Bob"), s.connect("Carol")

	created, err := alice.conn.CreateSession(s.ctx, "Alice", 4)
	s.Require().NoError(err)
	s.Equal(model.SessionCode("ABC123"), created.Session.Code)
	s.Equal(model.RoleMaster, created.Member.Role)

	// Codes are accepted in any case
	joined, err := bob.conn.JoinSession(s.ctx, "abc123", "Bob")
	s.Require().NoError(err)
	s.Len(joined.Members, 2)
	s.True(bob.has("joined Bob"), "the joiner's own event arrives before its completion")
	s.waitFor(alice, "joined Bob")

	_, err = carol.conn.JoinSession(s.ctx, "ABC123", "Carol")
	s.Require().NoError(err)

	s.Require().NoError(alice.conn.StartSession(s.ctx, "ABC123"))
	for _, p := range []*participant{alice, bob, carol} {
		s.waitFor(p, "started ABC123")
	}

	s.Require().NoError(alice.conn.StartRound(s.ctx, "ABC123", model.Pattern{0, 5, 12}))
	for _, p := range []*participant{alice, bob, carol} {
		s.waitFor(p, "revealed 1 [0 5 12]")
	}

	result, err := bob.conn.SubmitAttempt(s.ctx, "ABC123", []int{0, 5, 12}, 2*time.Second)
	s.Require().NoError(err)
	s.True(result.Correct)
	s.Equal(130, result.Points)
	s.Equal(130, result.TotalScore)

	result, err = carol.conn.SubmitAttempt(s.ctx, "ABC123", []int{0, 5, 13}, time.Second)
	s.Require().NoError(err)
	s.False(result.Correct)
	s.Equal(0, result.Points)

	s.waitFor(alice, "attempt Bob true 130 130")
	s.waitFor(alice, "attempt Carol false 0 0")

	_, err = bob.conn.SubmitAttempt(s.ctx, "ABC123", []int{0, 5, 12}, time.Second)
	var remote *client.RemoteError
	s.ErrorAs(err, &remote, "one attempt per member per round")

	err = bob.conn.NextRound(s.ctx, "ABC123")
	s.ErrorAs(err, &remote, "only the master advances rounds")

	resp, err := http.Get(s.server.URL + "/api/v1/sessions/ABC123")
	s.Require().NoError(err)
	var snap response.Session
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&snap))
	_ = resp.Body.Close()
	s.Equal("in_progress", snap.Status)
	s.Equal(1, snap.RoundsPlayed)
	s.Len(snap.Members, 3)

	s.Require().NoError(alice.conn.NextRound(s.ctx, "ABC123"))
	s.waitFor(carol, "advanced 2")

	leaderboard, err := alice.conn.EndSession(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Require().Len(leaderboard, 3)
	s.Equal("Bob", leaderboard[0].DisplayName)
	s.Equal(130, leaderboard[0].Score)

	for _, p := range []*participant{alice, bob, carol} {
		s.waitFor(p, "ended master_ended")
	}
}

// Test: losing the master mid-session ends it for everyone else
func (s *IntegrationSuite) TestMasterDisconnectEndsSession() {
	s.app.MockRandom.QueueString("QWE456")
	alice, bob := s.connect("Alice"), s.connect("Bob")

	_, err := alice.conn.CreateSession(s.ctx, "Alice", 4)
	s.Require().NoError(err)
	_, err = bob.conn.JoinSession(s.ctx, "QWE456", "Bob")
	s.Require().NoError(err)
	s.Require().NoError(alice.conn.StartSession(s.ctx, "QWE456"))

	s.Require().NoError(alice.conn.Close())
	s.waitFor(bob, "ended master_disconnected")

	members, err := bob.conn.GetMemberList(s.ctx, "QWE456")
	s.Require().NoError(err)
	s.Len(members, 2)
}

// Test: a player dropping out is marked disconnected and keeps its place
func (s *IntegrationSuite) TestPlayerDisconnectBroadcast() {
	s.app.MockRandom.QueueString("ZXC789")
	alice, bob := s.connect("Alice"), s.connect("Bob")

	_, err := alice.conn.CreateSession(s.ctx, "Alice", 4)
	s.Require().NoError(err)
	_, err = bob.conn.JoinSession(s.ctx, "ZXC789", "Bob")
	s.Require().NoError(err)

	s.Require().NoError(bob.conn.Close())
	s.waitFor(alice, "disconnected Bob")

	leaderboard, err := alice.conn.GetLeaderboard(s.ctx, "ZXC789")
	s.Require().NoError(err)
	s.Require().Len(leaderboard, 2)
	for _, entry := range leaderboard {
		if entry.DisplayName == "Bob" {
			s.False(entry.Connected)
		}
	}
}

// Test: the client state machine plays a round against the real server
func (s *IntegrationSuite) TestStateMachineRound() {
	s.app.MockRandom.QueueString("RTY321")
	alice, bob := s.connect("Alice"), s.connect("Bob")

	machine := play.New(bob.conn, clock.New(), play.Timing{Reveal: time.Millisecond, Hide: time.Millisecond}, play.Hooks{}, testutil.NopLogger())
	machine.Attach(bob.conn)
	defer machine.Close()

	_, err := alice.conn.CreateSession(s.ctx, "Alice", 4)
	s.Require().NoError(err)
	joined, err := bob.conn.JoinSession(s.ctx, "RTY321", "Bob")
	s.Require().NoError(err)
	machine.Joined(joined)
	s.Equal(play.Waiting, machine.State())

	s.Require().NoError(alice.conn.StartSession(s.ctx, "RTY321"))
	s.Require().NoError(alice.conn.StartRound(s.ctx, "RTY321", model.Pattern{1, 2}))

	s.Require().Eventually(func() bool { return machine.State() == play.PlayerTurn }, 2*time.Second, time.Millisecond)

	s.Require().NoError(machine.Select(s.ctx, 1))
	s.Require().NoError(machine.Select(s.ctx, 2))
	s.Equal(play.RoundComplete, machine.State())
	s.Require().Eventually(func() bool {
		alice.mu.Lock()
		defer alice.mu.Unlock()
		for _, e := range alice.events {
			if strings.HasPrefix(e, "attempt Bob true ") {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	s.Require().NoError(alice.conn.NextRound(s.ctx, "RTY321"))
	s.Require().Eventually(func() bool { return machine.State() == play.Waiting }, 2*time.Second, time.Millisecond)
}
