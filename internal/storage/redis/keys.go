package redis

import (
	"fmt"

	"github.com/mcoot/memorygrid/internal/model"
)

// Key prefix for all memorygrid data
const keyPrefix = "memgrid"

func identityKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:identity:%s", keyPrefix, id)
}

func credentialKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:credential:%s", keyPrefix, id)
}

// usernameIndexKey maps a username to its identity id
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// sessionCodeIndexKey maps a session code to its session id
func sessionCodeIndexKey(code model.SessionCode) string {
	return fmt.Sprintf("%s:idx:session_code:%s", keyPrefix, code)
}

// sessionsIndexKey is the SET of all known session ids
func sessionsIndexKey() string {
	return fmt.Sprintf("%s:idx:sessions", keyPrefix)
}

func memberKey(sessionID model.SessionID, identity model.IdentityID) string {
	return fmt.Sprintf("%s:member:%s:%s", keyPrefix, sessionID, identity)
}

// membersIndexKey is the LIST of member identities in join order
func membersIndexKey(sessionID model.SessionID) string {
	return fmt.Sprintf("%s:idx:members:%s", keyPrefix, sessionID)
}

func roundKey(sessionID model.SessionID, number int) string {
	return fmt.Sprintf("%s:round:%s:%d", keyPrefix, sessionID, number)
}

// roundsIndexKey is the LIST of round numbers in creation order
func roundsIndexKey(sessionID model.SessionID) string {
	return fmt.Sprintf("%s:idx:rounds:%s", keyPrefix, sessionID)
}

func attemptKey(sessionID model.SessionID, round int, identity model.IdentityID) string {
	return fmt.Sprintf("%s:attempt:%s:%d:%s", keyPrefix, sessionID, round, identity)
}

// attemptsIndexKey is the LIST of identities that submitted in a round
func attemptsIndexKey(sessionID model.SessionID, round int) string {
	return fmt.Sprintf("%s:idx:attempts:%s:%d", keyPrefix, sessionID, round)
}
