package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// GuestIdentityTTL bounds how long guest identities are kept.
	// Registered identities never expire.
	GuestIdentityTTL time.Duration

	// SessionTTL is refreshed on every write to a session and applies to
	// the session together with its members, rounds and attempts
	SessionTTL time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:              "redis://localhost:6379",
		PoolSize:         10,
		MinIdleConns:     2,
		GuestIdentityTTL: 24 * time.Hour,
		SessionTTL:       6 * time.Hour,
	}
}
