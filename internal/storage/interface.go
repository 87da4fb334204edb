package storage

import (
	"context"

	"github.com/mcoot/memorygrid/internal/model"
)

// Storage defines the interface for data persistence.
//
// Implementations never hand out shared references: records returned by a
// getter may be mutated by the caller and only take effect once saved.
type Storage interface {
	// Identity operations
	SaveIdentity(ctx context.Context, identity *model.Identity) error
	GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error)

	// Credential operations
	SaveCredential(ctx context.Context, cred *model.Credential) error
	GetCredentialByUsername(ctx context.Context, username string) (*model.Credential, error)

	// Session operations

	// CreateSession stores a new session, its code index and its master
	// member together. Returns model.ErrCodeTaken if the code is in use.
	CreateSession(ctx context.Context, session *model.Session, master *model.Member) error
	// SaveSession updates a session and, atomically with it, any given members
	SaveSession(ctx context.Context, session *model.Session, members ...*model.Member) error
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)
	GetSessionByCode(ctx context.Context, code model.SessionCode) (*model.Session, error)
	SessionCodeExists(ctx context.Context, code model.SessionCode) (bool, error)
	ListSessions(ctx context.Context) ([]*model.Session, error)
	// DeleteSession removes a session with all of its members, rounds and attempts
	DeleteSession(ctx context.Context, id model.SessionID) error

	// Member operations

	// AddMember appends a new member; ListMembers returns members in the
	// order they were added
	AddMember(ctx context.Context, member *model.Member) error
	SaveMember(ctx context.Context, member *model.Member) error
	GetMember(ctx context.Context, sessionID model.SessionID, identity model.IdentityID) (*model.Member, error)
	ListMembers(ctx context.Context, sessionID model.SessionID) ([]*model.Member, error)

	// Round operations

	// SaveRound stores a new round. Returns model.ErrRoundAlreadyStarted if
	// the session already has a round with that number.
	SaveRound(ctx context.Context, round *model.Round) error
	GetRound(ctx context.Context, sessionID model.SessionID, number int) (*model.Round, error)
	ListRounds(ctx context.Context, sessionID model.SessionID) ([]*model.Round, error)

	// Attempt operations

	// RecordAttempt stores the attempt and the member's updated score as a
	// single write. Returns model.ErrDuplicateAttempt if the member already
	// has an attempt for the round.
	RecordAttempt(ctx context.Context, attempt *model.Attempt, member *model.Member) error
	GetAttempt(ctx context.Context, sessionID model.SessionID, round int, identity model.IdentityID) (*model.Attempt, error)
	ListAttempts(ctx context.Context, sessionID model.SessionID, round int) ([]*model.Attempt, error)
}
