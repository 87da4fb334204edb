package model

import "errors"

// Common errors used across the application
var (
	// Identity errors
	ErrIdentityNotFound = errors.New("identity not found")
	ErrUsernameTaken    = errors.New("username is already taken")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrNotMaster       = errors.New("caller is not the session master")
	ErrNotMember       = errors.New("caller is not a member of the session")
	ErrNotPlayer       = errors.New("only players may submit attempts")
	ErrWrongState      = errors.New("session is not in the required state")
	ErrDuplicateName   = errors.New("display name is already in use")
	ErrAlreadyJoined   = errors.New("identity is already connected to the session")
	ErrCodeTaken       = errors.New("session code is already in use")
	ErrNotJoined       = errors.New("connection has not joined a session")
	ErrInOtherSession  = errors.New("connection is already in another active session")

	// Member errors
	ErrMemberNotFound = errors.New("member not found")

	// Round errors
	ErrRoundNotFound       = errors.New("round not found")
	ErrRoundAlreadyStarted = errors.New("round has already been started")
	ErrRoundNotStarted     = errors.New("round has not been started")
	ErrInvalidPattern      = errors.New("invalid pattern")

	// Attempt errors
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrDuplicateAttempt = errors.New("attempt already recorded for this round")

	// Request errors
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownTarget   = errors.New("unknown target")
)

// ErrorKind classifies errors for reporting back to callers
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindPrecondition
	KindInvalidArgument
)

var errorKinds = map[error]ErrorKind{
	ErrIdentityNotFound:    KindNotFound,
	ErrSessionNotFound:     KindNotFound,
	ErrMemberNotFound:      KindNotFound,
	ErrRoundNotFound:       KindNotFound,
	ErrAttemptNotFound:     KindNotFound,
	ErrUsernameTaken:       KindPrecondition,
	ErrNotMaster:           KindPrecondition,
	ErrNotMember:           KindPrecondition,
	ErrNotPlayer:           KindPrecondition,
	ErrWrongState:          KindPrecondition,
	ErrDuplicateName:       KindPrecondition,
	ErrAlreadyJoined:       KindPrecondition,
	ErrNotJoined:           KindPrecondition,
	ErrInOtherSession:      KindPrecondition,
	ErrRoundAlreadyStarted: KindPrecondition,
	ErrRoundNotStarted:     KindPrecondition,
	ErrDuplicateAttempt:    KindPrecondition,
	ErrInvalidPattern:      KindInvalidArgument,
	ErrInvalidArgument:     KindInvalidArgument,
	ErrUnknownTarget:       KindInvalidArgument,
}

// KindOf returns the classification of err, or KindInternal for anything
// that is not one of the errors declared in this package
func KindOf(err error) ErrorKind {
	for sentinel, kind := range errorKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// PublicMessage returns the message that may be shown to a remote caller.
// Internal errors are never exposed verbatim.
func PublicMessage(err error) string {
	if KindOf(err) == KindInternal {
		return "internal error"
	}
	return err.Error()
}
