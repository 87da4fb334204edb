package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	identities    map[model.IdentityID]*model.Identity
	credentials   map[model.IdentityID]*model.Credential
	usernameIndex map[string]model.IdentityID
	sessions      map[model.SessionID]*model.Session
	codeIndex     map[model.SessionCode]model.SessionID
	members       map[model.SessionID][]*model.Member // join order
	rounds        map[roundKey]*model.Round
	attempts      map[attemptKey]*model.Attempt
	attemptOrder  map[roundKey][]model.IdentityID
}

type roundKey struct {
	sessionID model.SessionID
	number    int
}

type attemptKey struct {
	roundKey
	identity model.IdentityID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		identities:    make(map[model.IdentityID]*model.Identity),
		credentials:   make(map[model.IdentityID]*model.Credential),
		usernameIndex: make(map[string]model.IdentityID),
		sessions:      make(map[model.SessionID]*model.Session),
		codeIndex:     make(map[model.SessionCode]model.SessionID),
		members:       make(map[model.SessionID][]*model.Member),
		rounds:        make(map[roundKey]*model.Round),
		attempts:      make(map[attemptKey]*model.Attempt),
		attemptOrder:  make(map[roundKey][]model.IdentityID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Identity operations

func (s *Storage) SaveIdentity(ctx context.Context, identity *model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *identity
	s.identities[identity.ID] = &cp
	return nil
}

func (s *Storage) GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[id]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	cp := *identity
	return &cp, nil
}

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cred
	s.credentials[cred.IdentityID] = &cp
	s.usernameIndex[cred.Username] = cred.IdentityID
	return nil
}

func (s *Storage) GetCredentialByUsername(ctx context.Context, username string) (*model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	cred, ok := s.credentials[id]
	if !ok {
		return nil, model.ErrIdentityNotFound
	}
	cp := *cred
	return &cp, nil
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.Session, master *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codeIndex[session.Code]; ok {
		return model.ErrCodeTaken
	}
	s.sessions[session.ID] = cloneSession(session)
	s.codeIndex[session.Code] = session.ID
	m := *master
	s.members[session.ID] = []*model.Member{&m}
	return nil
}

func (s *Storage) SaveSession(ctx context.Context, session *model.Session, members ...*model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return model.ErrSessionNotFound
	}
	// Check every member before writing anything
	idx := make([]int, len(members))
	for i, m := range members {
		idx[i] = s.memberIndex(m.SessionID, m.Identity)
		if m.SessionID != session.ID || idx[i] < 0 {
			return model.ErrMemberNotFound
		}
	}
	s.sessions[session.ID] = cloneSession(session)
	for i, m := range members {
		cp := *m
		s.members[session.ID][idx[i]] = &cp
	}
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (s *Storage) GetSessionByCode(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codeIndex[code]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (s *Storage) SessionCodeExists(ctx context.Context, code model.SessionCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.codeIndex[code]
	return ok, nil
}

func (s *Storage) ListSessions(ctx context.Context) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*model.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, cloneSession(session))
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil
	}
	delete(s.codeIndex, session.Code)
	delete(s.sessions, id)
	delete(s.members, id)
	for key := range s.rounds {
		if key.sessionID == id {
			delete(s.rounds, key)
			delete(s.attemptOrder, key)
		}
	}
	for key := range s.attempts {
		if key.sessionID == id {
			delete(s.attempts, key)
		}
	}
	return nil
}

// Member operations

func (s *Storage) AddMember(ctx context.Context, member *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[member.SessionID]; !ok {
		return model.ErrSessionNotFound
	}
	if s.memberIndex(member.SessionID, member.Identity) >= 0 {
		return model.ErrAlreadyJoined
	}
	cp := *member
	s.members[member.SessionID] = append(s.members[member.SessionID], &cp)
	return nil
}

func (s *Storage) SaveMember(ctx context.Context, member *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.memberIndex(member.SessionID, member.Identity)
	if i < 0 {
		return model.ErrMemberNotFound
	}
	cp := *member
	s.members[member.SessionID][i] = &cp
	return nil
}

func (s *Storage) GetMember(ctx context.Context, sessionID model.SessionID, identity model.IdentityID) (*model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.memberIndex(sessionID, identity)
	if i < 0 {
		return nil, model.ErrMemberNotFound
	}
	cp := *s.members[sessionID][i]
	return &cp, nil
}

func (s *Storage) ListMembers(ctx context.Context, sessionID model.SessionID) ([]*model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, model.ErrSessionNotFound
	}
	members := make([]*model.Member, 0, len(s.members[sessionID]))
	for _, m := range s.members[sessionID] {
		cp := *m
		members = append(members, &cp)
	}
	return members, nil
}

// memberIndex must be called with the lock held
func (s *Storage) memberIndex(sessionID model.SessionID, identity model.IdentityID) int {
	for i, m := range s.members[sessionID] {
		if m.Identity == identity {
			return i
		}
	}
	return -1
}

// Round operations

func (s *Storage) SaveRound(ctx context.Context, round *model.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[round.SessionID]; !ok {
		return model.ErrSessionNotFound
	}
	key := roundKey{sessionID: round.SessionID, number: round.Number}
	if _, ok := s.rounds[key]; ok {
		return model.ErrRoundAlreadyStarted
	}
	s.rounds[key] = cloneRound(round)
	return nil
}

func (s *Storage) GetRound(ctx context.Context, sessionID model.SessionID, number int) (*model.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	round, ok := s.rounds[roundKey{sessionID: sessionID, number: number}]
	if !ok {
		return nil, model.ErrRoundNotFound
	}
	return cloneRound(round), nil
}

func (s *Storage) ListRounds(ctx context.Context, sessionID model.SessionID) ([]*model.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rounds []*model.Round
	for key, round := range s.rounds {
		if key.sessionID == sessionID {
			rounds = append(rounds, cloneRound(round))
		}
	}
	sort.Slice(rounds, func(i, j int) bool {
		return rounds[i].Number < rounds[j].Number
	})
	return rounds, nil
}

// Attempt operations

func (s *Storage) RecordAttempt(ctx context.Context, attempt *model.Attempt, member *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rk := roundKey{sessionID: attempt.SessionID, number: attempt.RoundNumber}
	if _, ok := s.rounds[rk]; !ok {
		return model.ErrRoundNotFound
	}
	i := s.memberIndex(member.SessionID, member.Identity)
	if i < 0 || member.Identity != attempt.Identity {
		return model.ErrMemberNotFound
	}
	key := attemptKey{roundKey: rk, identity: attempt.Identity}
	if _, ok := s.attempts[key]; ok {
		return model.ErrDuplicateAttempt
	}
	s.attempts[key] = cloneAttempt(attempt)
	s.attemptOrder[rk] = append(s.attemptOrder[rk], attempt.Identity)
	cp := *member
	s.members[member.SessionID][i] = &cp
	return nil
}

func (s *Storage) GetAttempt(ctx context.Context, sessionID model.SessionID, round int, identity model.IdentityID) (*model.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := attemptKey{roundKey: roundKey{sessionID: sessionID, number: round}, identity: identity}
	attempt, ok := s.attempts[key]
	if !ok {
		return nil, model.ErrAttemptNotFound
	}
	return cloneAttempt(attempt), nil
}

func (s *Storage) ListAttempts(ctx context.Context, sessionID model.SessionID, round int) ([]*model.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rk := roundKey{sessionID: sessionID, number: round}
	attempts := make([]*model.Attempt, 0, len(s.attemptOrder[rk]))
	for _, identity := range s.attemptOrder[rk] {
		attempts = append(attempts, cloneAttempt(s.attempts[attemptKey{roundKey: rk, identity: identity}]))
	}
	return attempts, nil
}

func cloneSession(src *model.Session) *model.Session {
	cp := *src
	if src.StartedAt != nil {
		t := *src.StartedAt
		cp.StartedAt = &t
	}
	if src.FinishedAt != nil {
		t := *src.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

func cloneRound(src *model.Round) *model.Round {
	cp := *src
	cp.Pattern = append(model.Pattern(nil), src.Pattern...)
	return &cp
}

func cloneAttempt(src *model.Attempt) *model.Attempt {
	cp := *src
	cp.Sequence = append([]int(nil), src.Sequence...)
	return &cp
}
