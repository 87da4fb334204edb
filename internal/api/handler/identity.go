package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/memorygrid/internal/api/apierr"
	"github.com/mcoot/memorygrid/internal/api/middleware"
	"github.com/mcoot/memorygrid/internal/api/request"
	"github.com/mcoot/memorygrid/internal/api/response"
	"github.com/mcoot/memorygrid/internal/services/auth"
)

// IdentityHandler handles identity endpoints
type IdentityHandler struct {
	authService *auth.Service
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(authService *auth.Service) *IdentityHandler {
	return &IdentityHandler{
		authService: authService,
	}
}

// CreateGuest handles POST /api/v1/identities/guest
func (h *IdentityHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req request.CreateGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	if req.DisplayName == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("display_name is required"))
		return
	}

	grant, err := h.authService.CreateGuest(r.Context(), req.DisplayName)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromGrant(grant))
}

// Register handles POST /api/v1/identities/register
func (h *IdentityHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	switch {
	case req.Username == "":
		apierr.WriteError(w, apierr.NewInvalidRequestError("username is required"))
		return
	case req.Password == "":
		apierr.WriteError(w, apierr.NewInvalidRequestError("password is required"))
		return
	case req.DisplayName == "":
		apierr.WriteError(w, apierr.NewInvalidRequestError("display_name is required"))
		return
	}

	grant, err := h.authService.Register(r.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromGrant(grant))
}

// Login handles POST /api/v1/identities/login
func (h *IdentityHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" || req.Password == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("username and password are required"))
		return
	}

	grant, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponseFromGrant(grant))
}

// GetMe handles GET /api/v1/identities/me
func (h *IdentityHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	grant := middleware.MustGetGrant(r.Context())
	response.JSON(w, http.StatusOK, response.IdentityFromModel(&grant.Identity))
}

// Logout handles POST /api/v1/identities/logout
func (h *IdentityHandler) Logout(w http.ResponseWriter, r *http.Request) {
	grant := middleware.MustGetGrant(r.Context())
	h.authService.Revoke(grant.Token)
	response.NoContent(w)
}
