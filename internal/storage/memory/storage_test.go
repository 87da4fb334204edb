package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mcoot/memorygrid/internal/model"
	"github.com/stretchr/testify/suite"
)

type StorageSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
	now     time.Time
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.ctx = context.Background()
	s.now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StorageSuite) createSession(id model.SessionID, code model.SessionCode) *model.Session {
	session := &model.Session{
		ID:             id,
		Code:           code,
		MasterIdentity: "alice",
		Status:         model.SessionWaiting,
		GridSize:       4,
		CreatedAt:      s.now,
	}
	master := &model.Member{
		SessionID:   id,
		Identity:    "alice",
		DisplayName: "Alice",
		Role:        model.RoleMaster,
		Connected:   true,
		JoinedAt:    s.now,
	}
	s.Require().NoError(s.storage.CreateSession(s.ctx, session, master))
	return session
}

func (s *StorageSuite) addPlayer(sessionID model.SessionID, identity model.IdentityID, name string) *model.Member {
	m := &model.Member{
		SessionID:   sessionID,
		Identity:    identity,
		DisplayName: name,
		Role:        model.RolePlayer,
		Connected:   true,
		JoinedAt:    s.now,
	}
	s.Require().NoError(s.storage.AddMember(s.ctx, m))
	return m
}

// Identity tests

func (s *StorageSuite) TestSaveAndGetIdentity() {
	identity := &model.Identity{ID: "id-1", DisplayName: "Alice", IsGuest: true, CreatedAt: s.now}
	s.Require().NoError(s.storage.SaveIdentity(s.ctx, identity))

	retrieved, err := s.storage.GetIdentity(s.ctx, "id-1")
	s.Require().NoError(err)
	s.Equal("Alice", retrieved.DisplayName)
	s.True(retrieved.IsGuest)
}

func (s *StorageSuite) TestGetIdentityNotFound() {
	_, err := s.storage.GetIdentity(s.ctx, "missing")
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

func (s *StorageSuite) TestCredentialByUsername() {
	cred := &model.Credential{IdentityID: "id-1", Username: "alice", PasswordHash: "hash"}
	s.Require().NoError(s.storage.SaveCredential(s.ctx, cred))

	retrieved, err := s.storage.GetCredentialByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.IdentityID("id-1"), retrieved.IdentityID)

	_, err = s.storage.GetCredentialByUsername(s.ctx, "bob")
	s.ErrorIs(err, model.ErrIdentityNotFound)
}

// Session tests

func (s *StorageSuite) TestCreateAndGetSession() {
	s.createSession("s-1", "ABC123")

	byID, err := s.storage.GetSession(s.ctx, "s-1")
	s.Require().NoError(err)
	s.Equal(model.SessionCode("ABC123"), byID.Code)

	byCode, err := s.storage.GetSessionByCode(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(model.SessionID("s-1"), byCode.ID)

	members, err := s.storage.ListMembers(s.ctx, "s-1")
	s.Require().NoError(err)
	s.Require().Len(members, 1)
	s.Equal(model.RoleMaster, members[0].Role)
}

func (s *StorageSuite) TestCreateSessionCodeTaken() {
	s.createSession("s-1", "ABC123")

	err := s.storage.CreateSession(s.ctx,
		&model.Session{ID: "s-2", Code: "ABC123"},
		&model.Member{SessionID: "s-2", Identity: "bob"})
	s.ErrorIs(err, model.ErrCodeTaken)

	_, err = s.storage.GetSession(s.ctx, "s-2")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StorageSuite) TestGetSessionByCodeNotFound() {
	_, err := s.storage.GetSessionByCode(s.ctx, "NOPE00")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StorageSuite) TestSessionCodeExists() {
	s.createSession("s-1", "ABC123")

	exists, err := s.storage.SessionCodeExists(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.storage.SessionCodeExists(s.ctx, "ZZZ999")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *StorageSuite) TestReturnedRecordsAreCopies() {
	s.createSession("s-1", "ABC123")

	session, err := s.storage.GetSession(s.ctx, "s-1")
	s.Require().NoError(err)
	session.Status = model.SessionFinished

	stored, err := s.storage.GetSession(s.ctx, "s-1")
	s.Require().NoError(err)
	s.Equal(model.SessionWaiting, stored.Status)
}

func (s *StorageSuite) TestSaveSessionWithMembers() {
	session := s.createSession("s-1", "ABC123")
	master, err := s.storage.GetMember(s.ctx, "s-1", "alice")
	s.Require().NoError(err)

	session.Status = model.SessionFinished
	master.Connected = false
	s.Require().NoError(s.storage.SaveSession(s.ctx, session, master))

	stored, err := s.storage.GetSession(s.ctx, "s-1")
	s.Require().NoError(err)
	s.Equal(model.SessionFinished, stored.Status)

	storedMaster, err := s.storage.GetMember(s.ctx, "s-1", "alice")
	s.Require().NoError(err)
	s.False(storedMaster.Connected)
}

func (s *StorageSuite) TestSaveSessionUnknownMemberWritesNothing() {
	session := s.createSession("s-1", "ABC123")
	session.Status = model.SessionInProgress

	err := s.storage.SaveSession(s.ctx, session, &model.Member{SessionID: "s-1", Identity: "ghost"})
	s.ErrorIs(err, model.ErrMemberNotFound)

	stored, err := s.storage.GetSession(s.ctx, "s-1")
	s.Require().NoError(err)
	s.Equal(model.SessionWaiting, stored.Status)
}

func (s *StorageSuite) TestDeleteSession() {
	s.createSession("s-1", "ABC123")
	s.Require().NoError(s.storage.SaveRound(s.ctx, &model.Round{SessionID: "s-1", Number: 1, Pattern: model.Pattern{1}}))

	s.Require().NoError(s.storage.DeleteSession(s.ctx, "s-1"))

	_, err := s.storage.GetSession(s.ctx, "s-1")
	s.ErrorIs(err, model.ErrSessionNotFound)
	exists, err := s.storage.SessionCodeExists(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.False(exists)
	_, err = s.storage.GetRound(s.ctx, "s-1", 1)
	s.ErrorIs(err, model.ErrRoundNotFound)
}

func (s *StorageSuite) TestListSessionsOrderedByCreation() {
	s.createSession("s-1", "AAAAAA")
	s.now = s.now.Add(time.Minute)
	s.createSession("s-2", "BBBBBB")

	sessions, err := s.storage.ListSessions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.Equal(model.SessionID("s-1"), sessions[0].ID)
	s.Equal(model.SessionID("s-2"), sessions[1].ID)
}

// Member tests

func (s *StorageSuite) TestMembersKeepJoinOrder() {
	s.createSession("s-1", "ABC123")
	s.addPlayer("s-1", "bob", "Bob")
	s.addPlayer("s-1", "carol", "Carol")

	members, err := s.storage.ListMembers(s.ctx, "s-1")
	s.Require().NoError(err)
	s.Require().Len(members, 3)
	s.Equal("Alice", members[0].DisplayName)
	s.Equal("Bob", members[1].DisplayName)
	s.Equal("Carol", members[2].DisplayName)
}

func (s *StorageSuite) TestAddMemberTwice() {
	s.createSession("s-1", "ABC123")
	s.addPlayer("s-1", "bob", "Bob")

	err := s.storage.AddMember(s.ctx, &model.Member{SessionID: "s-1", Identity: "bob"})
	s.ErrorIs(err, model.ErrAlreadyJoined)
}

func (s *StorageSuite) TestAddMemberUnknownSession() {
	err := s.storage.AddMember(s.ctx, &model.Member{SessionID: "missing", Identity: "bob"})
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StorageSuite) TestSaveMember() {
	s.createSession("s-1", "ABC123")
	bob := s.addPlayer("s-1", "bob", "Bob")

	bob.Connected = false
	bob.ConnectionID = ""
	s.Require().NoError(s.storage.SaveMember(s.ctx, bob))

	stored, err := s.storage.GetMember(s.ctx, "s-1", "bob")
	s.Require().NoError(err)
	s.False(stored.Connected)

	err = s.storage.SaveMember(s.ctx, &model.Member{SessionID: "s-1", Identity: "ghost"})
	s.ErrorIs(err, model.ErrMemberNotFound)
}

// Round tests

func (s *StorageSuite) TestSaveRoundOnce() {
	s.createSession("s-1", "ABC123")
	round := &model.Round{SessionID: "s-1", Number: 1, Pattern: model.Pattern{0, 5, 12}, CreatedAt: s.now}
	s.Require().NoError(s.storage.SaveRound(s.ctx, round))

	err := s.storage.SaveRound(s.ctx, &model.Round{SessionID: "s-1", Number: 1, Pattern: model.Pattern{1}})
	s.ErrorIs(err, model.ErrRoundAlreadyStarted)

	stored, err := s.storage.GetRound(s.ctx, "s-1", 1)
	s.Require().NoError(err)
	s.Equal(model.Pattern{0, 5, 12}, stored.Pattern)
}

func (s *StorageSuite) TestListRounds() {
	s.createSession("s-1", "ABC123")
	s.Require().NoError(s.storage.SaveRound(s.ctx, &model.Round{SessionID: "s-1", Number: 2, Pattern: model.Pattern{2}}))
	s.Require().NoError(s.storage.SaveRound(s.ctx, &model.Round{SessionID: "s-1", Number: 1, Pattern: model.Pattern{1}}))

	rounds, err := s.storage.ListRounds(s.ctx, "s-1")
	s.Require().NoError(err)
	s.Require().Len(rounds, 2)
	s.Equal(1, rounds[0].Number)
	s.Equal(2, rounds[1].Number)
}

// Attempt tests

func (s *StorageSuite) TestRecordAttemptUpdatesScore() {
	s.createSession("s-1", "ABC123")
	bob := s.addPlayer("s-1", "bob", "Bob")
	s.Require().NoError(s.storage.SaveRound(s.ctx, &model.Round{SessionID: "s-1", Number: 1, Pattern: model.Pattern{0}}))

	bob.Score = 130
	attempt := &model.Attempt{SessionID: "s-1", RoundNumber: 1, Identity: "bob", Sequence: []int{0}, Correct: true, Points: 130}
	s.Require().NoError(s.storage.RecordAttempt(s.ctx, attempt, bob))

	stored, err := s.storage.GetAttempt(s.ctx, "s-1", 1, "bob")
	s.Require().NoError(err)
	s.True(stored.Correct)

	member, err := s.storage.GetMember(s.ctx, "s-1", "bob")
	s.Require().NoError(err)
	s.Equal(130, member.Score)
}

func (s *StorageSuite) TestRecordAttemptDuplicateLeavesScore() {
	s.createSession("s-1", "ABC123")
	bob := s.addPlayer("s-1", "bob", "Bob")
	s.Require().NoError(s.storage.SaveRound(s.ctx, &model.Round{SessionID: "s-1", Number: 1, Pattern: model.Pattern{0}}))
	s.Require().NoError(s.storage.RecordAttempt(s.ctx,
		&model.Attempt{SessionID: "s-1", RoundNumber: 1, Identity: "bob", Sequence: []int{1}}, bob))

	bob.Score = 999
	err := s.storage.RecordAttempt(s.ctx,
		&model.Attempt{SessionID: "s-1", RoundNumber: 1, Identity: "bob", Sequence: []int{0}, Correct: true}, bob)
	s.ErrorIs(err, model.ErrDuplicateAttempt)

	member, err := s.storage.GetMember(s.ctx, "s-1", "bob")
	s.Require().NoError(err)
	s.Equal(0, member.Score)
}

func (s *StorageSuite) TestRecordAttemptWithoutRound() {
	s.createSession("s-1", "ABC123")
	bob := s.addPlayer("s-1", "bob", "Bob")

	err := s.storage.RecordAttempt(s.ctx, &model.Attempt{SessionID: "s-1", RoundNumber: 1, Identity: "bob"}, bob)
	s.ErrorIs(err, model.ErrRoundNotFound)
}

func (s *StorageSuite) TestListAttemptsInSubmissionOrder() {
	s.createSession("s-1", "ABC123")
	bob := s.addPlayer("s-1", "bob", "Bob")
	carol := s.addPlayer("s-1", "carol", "Carol")
	s.Require().NoError(s.storage.SaveRound(s.ctx, &model.Round{SessionID: "s-1", Number: 1, Pattern: model.Pattern{0}}))

	s.Require().NoError(s.storage.RecordAttempt(s.ctx, &model.Attempt{SessionID: "s-1", RoundNumber: 1, Identity: "carol"}, carol))
	s.Require().NoError(s.storage.RecordAttempt(s.ctx, &model.Attempt{SessionID: "s-1", RoundNumber: 1, Identity: "bob"}, bob))

	attempts, err := s.storage.ListAttempts(s.ctx, "s-1", 1)
	s.Require().NoError(err)
	s.Require().Len(attempts, 2)
	s.Equal(model.IdentityID("carol"), attempts[0].Identity)
	s.Equal(model.IdentityID("bob"), attempts[1].Identity)
}
