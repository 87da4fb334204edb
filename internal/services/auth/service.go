package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/memorygrid/internal/dependencies/clock"
	"github.com/mcoot/memorygrid/internal/dependencies/random"
	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Grant is an issued bearer token and the identity it authenticates
type Grant struct {
	Token     string
	Identity  model.Identity
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Service is the identity provider: it creates guest and registered
// identities and issues the bearer tokens connections authenticate with
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random

	mu     sync.RWMutex
	grants map[string]*Grant

	tokenDuration time.Duration
}

// Config holds configuration for the auth service
type Config struct {
	TokenDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		TokenDuration: 24 * time.Hour,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, cfg Config) *Service {
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = DefaultConfig().TokenDuration
	}
	return &Service{
		storage:       storage,
		clock:         clock,
		random:        random,
		grants:        make(map[string]*Grant),
		tokenDuration: cfg.TokenDuration,
	}
}

// CreateGuest creates an identity without credentials and issues a token
func (s *Service) CreateGuest(ctx context.Context, displayName string) (*Grant, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", model.ErrInvalidArgument)
	}

	identity := &model.Identity{
		ID:          model.IdentityID("id_" + s.random.UUID()),
		DisplayName: displayName,
		IsGuest:     true,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}

	return s.issue(identity)
}

// Register creates a registered identity and issues a token
func (s *Service) Register(ctx context.Context, username, password, displayName string) (*Grant, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", model.ErrInvalidArgument)
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = username
	}

	_, err := s.storage.GetCredentialByUsername(ctx, username)
	if err == nil {
		return nil, model.ErrUsernameTaken
	}
	if !errors.Is(err, model.ErrIdentityNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	identity := &model.Identity{
		ID:          model.IdentityID("id_" + s.random.UUID()),
		DisplayName: strings.TrimSpace(displayName),
		IsGuest:     false,
		CreatedAt:   now,
	}
	cred := &model.Credential{
		IdentityID:   identity.ID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}
	if err := s.storage.SaveCredential(ctx, cred); err != nil {
		return nil, err
	}

	return s.issue(identity)
}

// Login checks a registered identity's password and issues a token
func (s *Service) Login(ctx context.Context, username, password string) (*Grant, error) {
	cred, err := s.storage.GetCredentialByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrIdentityNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	identity, err := s.storage.GetIdentity(ctx, cred.IdentityID)
	if err != nil {
		return nil, err
	}

	return s.issue(identity)
}

// ValidateToken returns the grant for a live token
func (s *Service) ValidateToken(token string) (*Grant, error) {
	s.mu.RLock()
	grant, ok := s.grants[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidToken
	}

	if s.clock.Now().After(grant.ExpiresAt) {
		s.mu.Lock()
		delete(s.grants, token)
		s.mu.Unlock()
		return nil, ErrInvalidToken
	}

	return grant, nil
}

// Authenticate resolves a token to the identity it was issued for
func (s *Service) Authenticate(token string) (model.IdentityID, error) {
	grant, err := s.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return grant.Identity.ID, nil
}

// Revoke removes a token
func (s *Service) Revoke(token string) {
	s.mu.Lock()
	delete(s.grants, token)
	s.mu.Unlock()
}

func (s *Service) issue(identity *model.Identity) (*Grant, error) {
	token := generateToken("tok_")
	now := s.clock.Now()

	grant := &Grant{
		Token:     token,
		Identity:  *identity,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenDuration),
	}

	s.mu.Lock()
	s.grants[token] = grant
	s.mu.Unlock()

	return grant, nil
}

// generateToken returns an unguessable token with a prefix
func generateToken(prefix string) string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}

// CleanExpired removes expired tokens (call periodically)
func (s *Service) CleanExpired() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, grant := range s.grants {
		if now.After(grant.ExpiresAt) {
			delete(s.grants, token)
			removed++
		}
	}
	return removed
}
