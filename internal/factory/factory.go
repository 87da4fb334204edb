package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mcoot/memorygrid/internal/api"
	"github.com/mcoot/memorygrid/internal/dependencies/clock"
	"github.com/mcoot/memorygrid/internal/dependencies/random"
	"github.com/mcoot/memorygrid/internal/directory"
	"github.com/mcoot/memorygrid/internal/rpc"
	"github.com/mcoot/memorygrid/internal/services/auth"
	"github.com/mcoot/memorygrid/internal/services/pattern"
	"github.com/mcoot/memorygrid/internal/services/scoring"
	"github.com/mcoot/memorygrid/internal/services/session"
	"github.com/mcoot/memorygrid/internal/storage"
	"github.com/mcoot/memorygrid/internal/storage/memory"
	redisstorage "github.com/mcoot/memorygrid/internal/storage/redis"
	"github.com/mcoot/memorygrid/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	Storage storage.Storage

	Clock  clock.Clock
	Random random.Random

	Directory         *directory.Directory
	ScoringService    *scoring.Service
	PatternGenerator  *pattern.Generator
	SessionController *session.Controller
	AuthService       *auth.Service
	Dispatcher        *rpc.Dispatcher
	WebSocket         *ws.Handler

	// Router serves the HTTP API and the websocket endpoint
	Router http.Handler

	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// WebSocket configures connection keepalive and limits (optional)
	WebSocket ws.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var store storage.Storage
	var closers []io.Closer
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		store = redisStore
		closers = append(closers, redisStore)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory' or 'redis'", storageType)
	}

	authCfg := cfg.AuthConfig
	if authCfg.TokenDuration == 0 {
		authCfg = auth.DefaultConfig()
	}

	app := newWithDependencies(store, clock.New(), random.New(), authCfg, cfg.WebSocket, logger)
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	wsCfg ws.Config,
	logger *slog.Logger,
) *App {
	dir := directory.New(logger)
	scoringService := scoring.New()
	patterns := pattern.NewGenerator(rnd)
	controller := session.NewController(store, dir, scoringService, patterns, clk, rnd, logger)
	authService := auth.New(store, clk, rnd, authCfg)
	dispatcher := rpc.NewDispatcher(controller, logger)
	wsHandler := ws.NewHandler(authService, dispatcher, dir, controller, rnd, wsCfg, logger)

	router := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		AuthService: authService,
		Sessions:    controller,
		WebSocket:   wsHandler,
	})

	return &App{
		Storage:           store,
		Clock:             clk,
		Random:            rnd,
		Directory:         dir,
		ScoringService:    scoringService,
		PatternGenerator:  patterns,
		SessionController: controller,
		AuthService:       authService,
		Dispatcher:        dispatcher,
		WebSocket:         wsHandler,
		Router:            router,
	}
}

// Close releases external resources such as the Redis connection pool
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
