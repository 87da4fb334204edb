package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/memorygrid/internal/dependencies/clock"
)

// SessionSweeper removes idle sessions
type SessionSweeper interface {
	Sweep(ctx context.Context, ttl time.Duration) (int, error)
}

// TokenCleaner drops expired bearer tokens
type TokenCleaner interface {
	CleanExpired() int
}

// Janitor periodically purges idle sessions and expired tokens
type Janitor struct {
	sessions SessionSweeper
	tokens   TokenCleaner
	clock    clock.Clock
	interval time.Duration
	ttl      time.Duration
	logger   *slog.Logger
}

// New creates a Janitor that runs every interval, purging sessions idle for
// longer than ttl
func New(sessions SessionSweeper, tokens TokenCleaner, clk clock.Clock, interval, ttl time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		sessions: sessions,
		tokens:   tokens,
		clock:    clk,
		interval: interval,
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "janitor")),
	}
}

// Run sweeps on every interval until ctx is done
func (j *Janitor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-j.clock.After(j.interval):
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Failures are logged and retried on the
// next pass.
func (j *Janitor) RunOnce(ctx context.Context) {
	removed, err := j.sessions.Sweep(ctx, j.ttl)
	if err != nil {
		j.logger.Error("session sweep failed", slog.String("error", err.Error()))
	}
	tokens := j.tokens.CleanExpired()
	j.logger.Debug("sweep complete", slog.Int("sessions", removed), slog.Int("tokens", tokens))
}
