package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"

	"github.com/mcoot/memorygrid/internal/api/apierr"
	"github.com/mcoot/memorygrid/internal/api/response"
	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/services/session"
)

const qrSize = 320

// SnapshotReader is the read side of the session engine
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, code model.SessionCode) (*session.Snapshot, error)
}

// SessionHandler serves read models of sessions
type SessionHandler struct {
	sessions SnapshotReader
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SnapshotReader) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Get handles GET /api/v1/sessions/{code}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.GetSnapshot(r.Context(), model.SessionCode(mux.Vars(r)["code"]))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.SessionFromSnapshot(snap))
}

// QR handles GET /api/v1/sessions/{code}/qr with a PNG encoding the
// session's URL
func (h *SessionHandler) QR(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.GetSnapshot(r.Context(), model.SessionCode(mux.Vars(r)["code"]))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	prefix := strings.TrimSuffix(r.URL.Path, "/qr")
	prefix = prefix[:strings.LastIndex(prefix, "/")+1]
	url := scheme + "://" + r.Host + prefix + string(snap.Session.Code)

	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		apierr.WriteError(w, apierr.NewInternalError())
		return
	}

	response.Image(w, "image/png", png)
}
