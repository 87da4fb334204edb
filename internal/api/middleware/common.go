package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/memorygrid/internal/api/apierr"
	"github.com/mcoot/memorygrid/internal/middleware"
)

func apiLogger(logger *slog.Logger) *slog.Logger {
	return logger.With(slog.String("component", "api"))
}

// Logging logs API requests under the api component
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(apiLogger(logger))
}

// Recovery turns handler panics into the API's JSON 500 body
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(apiLogger(logger), func(w http.ResponseWriter, _ *http.Request, _ any) {
		w.Header().Set("Cache-Control", "no-store")
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
