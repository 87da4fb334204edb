package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/services/auth"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"session not found", model.ErrSessionNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", model.ErrSessionNotFound), http.StatusNotFound},
		{"precondition", model.ErrWrongState, http.StatusConflict},
		{"invalid argument", model.ErrInvalidPattern, http.StatusBadRequest},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"bad token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"username taken", model.ErrUsernameTaken, http.StatusConflict},
		{"explicit", NewInvalidRequestError("nope"), http.StatusBadRequest},
		{"unknown", errors.New("redis: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("redis: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeInternalError, body.Error.Code)
	assert.NotContains(t, body.Error.Message, "redis")
}

func TestWriteErrorSessionNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, model.ErrSessionNotFound)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeSessionNotFound, body.Error.Code)
}
