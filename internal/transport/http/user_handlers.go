package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/openspotter/openspotter-server/internal/core"
	"github.com/openspotter/openspotter-server/internal/store"
)

// UserHandlers provides HTTP handlers for profile endpoints.
type UserHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.Store, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{store: st, log: logger}
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Callsign          string     `json:"callsign,omitempty"`
	DisplayName       string     `json:"display_name,omitempty"`
	Role              string     `json:"role"`
	Bio               string     `json:"bio,omitempty"`
	ShareLocationWith string     `json:"share_location_with"`
	CreatedAt         time.Time  `json:"created_at"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:                u.ID,
		Email:             u.Email,
		Callsign:          u.Callsign,
		DisplayName:       u.DisplayName,
		Role:              u.Role,
		Bio:               u.Bio,
		ShareLocationWith: u.ShareLocationWith,
		CreatedAt:         u.CreatedAt,
		LastLoginAt:       u.LastLoginAt,
	}
}

// Me returns the authenticated user's profile.
// GET /api/v1/users/me
func (h *UserHandlers) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// UpdateMeRequest carries the mutable profile fields.
type UpdateMeRequest struct {
	Callsign          *string `json:"callsign"`
	DisplayName       *string `json:"display_name"`
	Bio               *string `json:"bio"`
	ShareLocationWith *string `json:"share_location_with"`
}

// UpdateMe applies a partial profile update.
// PATCH /api/v1/users/me
func (h *UserHandlers) UpdateMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.ShareLocationWith != nil {
		normalized := string(core.ParseTier(*req.ShareLocationWith))
		req.ShareLocationWith = &normalized
	}

	updated, err := h.store.UpdateProfile(c.Request.Context(), user.ID, store.ProfileUpdate{
		Callsign:          req.Callsign,
		DisplayName:       req.DisplayName,
		Bio:               req.Bio,
		ShareLocationWith: req.ShareLocationWith,
	})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("update profile")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, userResponse(updated))
}
