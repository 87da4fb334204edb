package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// condition is checked inside a WATCH before a write is queued.
// If the key's existence differs from mustExist, err is returned.
type condition struct {
	key       string
	mustExist bool
	err       error
}

// writeIf runs write in a MULTI/EXEC transaction once every condition holds.
// A concurrent change to a watched key fails the transaction with the first
// condition's error.
func (s *Storage) writeIf(ctx context.Context, conds []condition, write func(tx *redis.Tx, pipe redis.Pipeliner) error) error {
	keys := make([]string, len(conds))
	for i, c := range conds {
		keys[i] = c.key
	}

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		for _, c := range conds {
			n, err := tx.Exists(ctx, c.key).Result()
			if err != nil {
				return err
			}
			if (n > 0) != c.mustExist {
				return c.err
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return write(tx, pipe)
		})
		return err
	}, keys...)

	if errors.Is(err, redis.TxFailedErr) && len(conds) > 0 {
		return conds[0].err
	}
	return err
}

// Identity operations

func (s *Storage) SaveIdentity(ctx context.Context, identity *model.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}

	// Apply TTL only for guest identities
	var ttl time.Duration
	if identity.IsGuest {
		ttl = s.cfg.GuestIdentityTTL
	}
	return s.client.Set(ctx, identityKey(identity.ID), data, ttl).Err()
}

func (s *Storage) GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	var identity model.Identity
	if err := s.getJSON(ctx, identityKey(id), &identity, model.ErrIdentityNotFound); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, credentialKey(cred.IdentityID), data, 0)
	pipe.Set(ctx, usernameIndexKey(cred.Username), string(cred.IdentityID), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetCredentialByUsername(ctx context.Context, username string) (*model.Credential, error) {
	id, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrIdentityNotFound
		}
		return nil, err
	}

	var cred model.Credential
	if err := s.getJSON(ctx, credentialKey(model.IdentityID(id)), &cred, model.ErrIdentityNotFound); err != nil {
		return nil, err
	}
	return &cred, nil
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.Session, master *model.Member) error {
	sessionData, err := json.Marshal(session)
	if err != nil {
		return err
	}
	masterData, err := json.Marshal(master)
	if err != nil {
		return err
	}

	ttl := s.cfg.SessionTTL
	conds := []condition{{key: sessionCodeIndexKey(session.Code), mustExist: false, err: model.ErrCodeTaken}}
	return s.writeIf(ctx, conds, func(_ *redis.Tx, pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), sessionData, ttl)
		pipe.Set(ctx, sessionCodeIndexKey(session.Code), string(session.ID), ttl)
		pipe.SAdd(ctx, sessionsIndexKey(), string(session.ID))
		pipe.Set(ctx, memberKey(session.ID, master.Identity), masterData, ttl)
		pipe.RPush(ctx, membersIndexKey(session.ID), string(master.Identity))
		pipe.Expire(ctx, membersIndexKey(session.ID), ttl)
		return nil
	})
}

func (s *Storage) SaveSession(ctx context.Context, session *model.Session, members ...*model.Member) error {
	sessionData, err := json.Marshal(session)
	if err != nil {
		return err
	}
	memberData := make([][]byte, len(members))
	conds := []condition{{key: sessionKey(session.ID), mustExist: true, err: model.ErrSessionNotFound}}
	for i, m := range members {
		if m.SessionID != session.ID {
			return model.ErrMemberNotFound
		}
		if memberData[i], err = json.Marshal(m); err != nil {
			return err
		}
		conds = append(conds, condition{key: memberKey(m.SessionID, m.Identity), mustExist: true, err: model.ErrMemberNotFound})
	}

	ttl := s.cfg.SessionTTL
	return s.writeIf(ctx, conds, func(tx *redis.Tx, pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), sessionData, ttl)
		for i, m := range members {
			pipe.Set(ctx, memberKey(m.SessionID, m.Identity), memberData[i], ttl)
		}
		return s.refreshSession(ctx, tx, pipe, session.ID)
	})
}

// refreshSession queues an EXPIRE for every key belonging to the session, so
// a write to any one record keeps the whole session alive together.
// Keys are enumerated through the indexes as seen by the watching tx.
func (s *Storage) refreshSession(ctx context.Context, tx *redis.Tx, pipe redis.Pipeliner, id model.SessionID) error {
	ttl := s.cfg.SessionTTL
	if ttl <= 0 {
		return nil
	}

	data, err := tx.Get(ctx, sessionKey(id)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if err == nil {
		var session model.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return err
		}
		pipe.Expire(ctx, sessionCodeIndexKey(session.Code), ttl)
	}
	identities, err := tx.LRange(ctx, membersIndexKey(id), 0, -1).Result()
	if err != nil {
		return err
	}
	rounds, err := tx.LRange(ctx, roundsIndexKey(id), 0, -1).Result()
	if err != nil {
		return err
	}

	pipe.Expire(ctx, sessionKey(id), ttl)
	pipe.Expire(ctx, membersIndexKey(id), ttl)
	pipe.Expire(ctx, roundsIndexKey(id), ttl)
	for _, identity := range identities {
		pipe.Expire(ctx, memberKey(id, model.IdentityID(identity)), ttl)
	}
	for _, r := range rounds {
		n, err := strconv.Atoi(r)
		if err != nil {
			continue
		}
		pipe.Expire(ctx, roundKey(id, n), ttl)
		pipe.Expire(ctx, attemptsIndexKey(id, n), ttl)

		submitted, err := tx.LRange(ctx, attemptsIndexKey(id, n), 0, -1).Result()
		if err != nil {
			return err
		}
		for _, identity := range submitted {
			pipe.Expire(ctx, attemptKey(id, n, model.IdentityID(identity)), ttl)
		}
	}
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	var session model.Session
	if err := s.getJSON(ctx, sessionKey(id), &session, model.ErrSessionNotFound); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) GetSessionByCode(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	id, err := s.client.Get(ctx, sessionCodeIndexKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}
	return s.GetSession(ctx, model.SessionID(id))
}

func (s *Storage) SessionCodeExists(ctx context.Context, code model.SessionCode) (bool, error) {
	exists, err := s.client.Exists(ctx, sessionCodeIndexKey(code)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (s *Storage) ListSessions(ctx context.Context) ([]*model.Session, error) {
	ids, err := s.client.SMembers(ctx, sessionsIndexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(model.SessionID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.Session, 0, len(values))
	var expired []interface{}
	for i, val := range values {
		str, ok := val.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var session model.Session
		if err := json.Unmarshal([]byte(str), &session); err != nil {
			continue // Skip invalid data
		}
		sessions = append(sessions, &session)
	}

	// Sessions that expired by TTL leave their id behind in the index
	if len(expired) > 0 {
		if err := s.client.SRem(ctx, sessionsIndexKey(), expired...).Err(); err != nil {
			return nil, err
		}
	}

	sortSessions(sessions)
	return sessions, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return s.client.SRem(ctx, sessionsIndexKey(), string(id)).Err()
		}
		return err
	}

	identities, err := s.client.LRange(ctx, membersIndexKey(id), 0, -1).Result()
	if err != nil {
		return err
	}
	rounds, err := s.client.LRange(ctx, roundsIndexKey(id), 0, -1).Result()
	if err != nil {
		return err
	}

	keys := []string{sessionKey(id), sessionCodeIndexKey(session.Code), membersIndexKey(id), roundsIndexKey(id)}
	for _, identity := range identities {
		keys = append(keys, memberKey(id, model.IdentityID(identity)))
	}
	for _, r := range rounds {
		n, err := strconv.Atoi(r)
		if err != nil {
			continue
		}
		submitted, err := s.client.LRange(ctx, attemptsIndexKey(id, n), 0, -1).Result()
		if err != nil {
			return err
		}
		keys = append(keys, roundKey(id, n), attemptsIndexKey(id, n))
		for _, identity := range submitted {
			keys = append(keys, attemptKey(id, n, model.IdentityID(identity)))
		}
	}

	// Delete everything and the index entry in one pipeline
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, sessionsIndexKey(), string(id))
	_, err = pipe.Exec(ctx)
	return err
}

// Member operations

func (s *Storage) AddMember(ctx context.Context, member *model.Member) error {
	data, err := json.Marshal(member)
	if err != nil {
		return err
	}

	ttl := s.cfg.SessionTTL
	conds := []condition{
		{key: memberKey(member.SessionID, member.Identity), mustExist: false, err: model.ErrAlreadyJoined},
		{key: sessionKey(member.SessionID), mustExist: true, err: model.ErrSessionNotFound},
	}
	return s.writeIf(ctx, conds, func(tx *redis.Tx, pipe redis.Pipeliner) error {
		pipe.Set(ctx, memberKey(member.SessionID, member.Identity), data, ttl)
		pipe.RPush(ctx, membersIndexKey(member.SessionID), string(member.Identity))
		return s.refreshSession(ctx, tx, pipe, member.SessionID)
	})
}

func (s *Storage) SaveMember(ctx context.Context, member *model.Member) error {
	data, err := json.Marshal(member)
	if err != nil {
		return err
	}

	key := memberKey(member.SessionID, member.Identity)
	conds := []condition{{key: key, mustExist: true, err: model.ErrMemberNotFound}}
	return s.writeIf(ctx, conds, func(tx *redis.Tx, pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, s.cfg.SessionTTL)
		return s.refreshSession(ctx, tx, pipe, member.SessionID)
	})
}

func (s *Storage) GetMember(ctx context.Context, sessionID model.SessionID, identity model.IdentityID) (*model.Member, error) {
	var member model.Member
	if err := s.getJSON(ctx, memberKey(sessionID, identity), &member, model.ErrMemberNotFound); err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *Storage) ListMembers(ctx context.Context, sessionID model.SessionID) ([]*model.Member, error) {
	exists, err := s.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, model.ErrSessionNotFound
	}

	identities, err := s.client.LRange(ctx, membersIndexKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(identities))
	for i, identity := range identities {
		keys[i] = memberKey(sessionID, model.IdentityID(identity))
	}

	members := make([]*model.Member, 0, len(keys))
	err = s.mgetJSON(ctx, keys, func(data []byte) error {
		var m model.Member
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		members = append(members, &m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// Round operations

func (s *Storage) SaveRound(ctx context.Context, round *model.Round) error {
	data, err := json.Marshal(round)
	if err != nil {
		return err
	}

	ttl := s.cfg.SessionTTL
	key := roundKey(round.SessionID, round.Number)
	conds := []condition{
		{key: key, mustExist: false, err: model.ErrRoundAlreadyStarted},
		{key: sessionKey(round.SessionID), mustExist: true, err: model.ErrSessionNotFound},
	}
	return s.writeIf(ctx, conds, func(tx *redis.Tx, pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, ttl)
		pipe.RPush(ctx, roundsIndexKey(round.SessionID), strconv.Itoa(round.Number))
		return s.refreshSession(ctx, tx, pipe, round.SessionID)
	})
}

func (s *Storage) GetRound(ctx context.Context, sessionID model.SessionID, number int) (*model.Round, error) {
	var round model.Round
	if err := s.getJSON(ctx, roundKey(sessionID, number), &round, model.ErrRoundNotFound); err != nil {
		return nil, err
	}
	return &round, nil
}

func (s *Storage) ListRounds(ctx context.Context, sessionID model.SessionID) ([]*model.Round, error) {
	numbers, err := s.client.LRange(ctx, roundsIndexKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(numbers))
	for _, r := range numbers {
		n, err := strconv.Atoi(r)
		if err != nil {
			continue
		}
		keys = append(keys, roundKey(sessionID, n))
	}

	rounds := make([]*model.Round, 0, len(keys))
	err = s.mgetJSON(ctx, keys, func(data []byte) error {
		var r model.Round
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		rounds = append(rounds, &r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rounds, nil
}

// Attempt operations

func (s *Storage) RecordAttempt(ctx context.Context, attempt *model.Attempt, member *model.Member) error {
	if member.Identity != attempt.Identity || member.SessionID != attempt.SessionID {
		return model.ErrMemberNotFound
	}
	attemptData, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	memberData, err := json.Marshal(member)
	if err != nil {
		return err
	}

	ttl := s.cfg.SessionTTL
	key := attemptKey(attempt.SessionID, attempt.RoundNumber, attempt.Identity)
	indexKey := attemptsIndexKey(attempt.SessionID, attempt.RoundNumber)
	conds := []condition{
		{key: key, mustExist: false, err: model.ErrDuplicateAttempt},
		{key: roundKey(attempt.SessionID, attempt.RoundNumber), mustExist: true, err: model.ErrRoundNotFound},
		{key: memberKey(member.SessionID, member.Identity), mustExist: true, err: model.ErrMemberNotFound},
	}
	return s.writeIf(ctx, conds, func(tx *redis.Tx, pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, attemptData, ttl)
		pipe.RPush(ctx, indexKey, string(attempt.Identity))
		pipe.Expire(ctx, indexKey, ttl)
		pipe.Set(ctx, memberKey(member.SessionID, member.Identity), memberData, ttl)
		return s.refreshSession(ctx, tx, pipe, attempt.SessionID)
	})
}

func (s *Storage) GetAttempt(ctx context.Context, sessionID model.SessionID, round int, identity model.IdentityID) (*model.Attempt, error) {
	var attempt model.Attempt
	if err := s.getJSON(ctx, attemptKey(sessionID, round, identity), &attempt, model.ErrAttemptNotFound); err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (s *Storage) ListAttempts(ctx context.Context, sessionID model.SessionID, round int) ([]*model.Attempt, error) {
	identities, err := s.client.LRange(ctx, attemptsIndexKey(sessionID, round), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(identities))
	for i, identity := range identities {
		keys[i] = attemptKey(sessionID, round, model.IdentityID(identity))
	}

	attempts := make([]*model.Attempt, 0, len(keys))
	err = s.mgetJSON(ctx, keys, func(data []byte) error {
		var a model.Attempt
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		attempts = append(attempts, &a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// getJSON loads key into dst, returning notFound when the key is missing
func (s *Storage) getJSON(ctx context.Context, key string, dst any, notFound error) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(data, dst)
}

// mgetJSON fetches keys in one MGET and calls fn for each value present,
// in key order. Missing values (expired keys) are skipped.
func (s *Storage) mgetJSON(ctx context.Context, keys []string, fn func([]byte) error) error {
	if len(keys) == 0 {
		return nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return err
	}
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		if err := fn([]byte(str)); err != nil {
			return err
		}
	}
	return nil
}

func sortSessions(sessions []*model.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}
