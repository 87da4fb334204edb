package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/memorygrid/internal/api/handler"
	"github.com/mcoot/memorygrid/internal/api/middleware"
	"github.com/mcoot/memorygrid/internal/api/response"
	"github.com/mcoot/memorygrid/internal/services/auth"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	AuthService *auth.Service
	Sessions    handler.SnapshotReader
	// WebSocket serves the session connection endpoint
	WebSocket http.Handler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	identityHandler := handler.NewIdentityHandler(cfg.AuthService)
	sessionHandler := handler.NewSessionHandler(cfg.Sessions)

	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Identities (no auth required to obtain a token)
	api.HandleFunc("/identities/guest", identityHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/identities/register", identityHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/identities/login", identityHandler.Login).Methods(http.MethodPost)

	identities := api.PathPrefix("/identities").Subrouter()
	identities.Use(authMiddleware)
	identities.HandleFunc("/me", identityHandler.GetMe).Methods(http.MethodGet)
	identities.HandleFunc("/logout", identityHandler.Logout).Methods(http.MethodPost)

	// Session read models are public; the code is the capability
	api.HandleFunc("/sessions/{code}", sessionHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{code}/qr", sessionHandler.QR).Methods(http.MethodGet)

	// The websocket endpoint authenticates itself
	if cfg.WebSocket != nil {
		ws := r.PathPrefix("/ws").Subrouter()
		ws.Use(recoveryMiddleware)
		ws.Use(loggingMiddleware)
		ws.Handle("", cfg.WebSocket)
	}

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
