package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/openspotter/openspotter-server/internal/config"
	"github.com/openspotter/openspotter-server/internal/core"
	"github.com/openspotter/openspotter-server/internal/store"
)

// LocationHandlers provides the REST side of location sharing. Updates
// posted here are persisted and fanned out through the same hub as
// WebSocket updates.
type LocationHandlers struct {
	store store.Store
	hub   *core.Hub
	cfg   *config.Config
	log   *zerolog.Logger
}

// NewLocationHandlers creates a new location handlers instance.
func NewLocationHandlers(st store.Store, hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) *LocationHandlers {
	return &LocationHandlers{store: st, hub: hub, cfg: cfg, log: logger}
}

// LocationUpdateRequest is the HTTP fallback body for a position report.
type LocationUpdateRequest struct {
	Latitude   float64  `json:"latitude" binding:"min=-90,max=90"`
	Longitude  float64  `json:"longitude" binding:"min=-180,max=180"`
	Altitude   *float64 `json:"altitude"`
	Accuracy   *float64 `json:"accuracy"`
	Heading    *float64 `json:"heading"`
	Speed      *float64 `json:"speed"`
	Visibility string   `json:"visibility"`
}

// LocationResponse is the stored location record.
type LocationResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   *float64  `json:"altitude,omitempty"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Visibility string    `json:"visibility"`
	Timestamp  time.Time `json:"timestamp"`
}

func locationResponse(l *store.Location) LocationResponse {
	return LocationResponse{
		ID:         l.ID,
		UserID:     l.UserID,
		Latitude:   l.Latitude,
		Longitude:  l.Longitude,
		Altitude:   l.Altitude,
		Accuracy:   l.Accuracy,
		Heading:    l.Heading,
		Speed:      l.Speed,
		Visibility: l.Visibility,
		Timestamp:  l.Timestamp,
	}
}

// Update persists a location update and broadcasts it.
// POST /api/v1/locations/update
func (h *LocationHandlers) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req LocationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = user.ShareLocationWith
	}

	loc := &store.Location{
		UserID:     user.ID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Altitude:   req.Altitude,
		Accuracy:   req.Accuracy,
		Heading:    req.Heading,
		Speed:      req.Speed,
		Visibility: string(core.ParseTier(visibility)),
	}
	if err := h.store.SaveLocation(c.Request.Context(), loc); err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("persist location")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.hub.BroadcastLocation(principalOf(user), loc)

	c.JSON(http.StatusOK, locationResponse(loc))
}

// GeoJSONFeature is one active spotter as a GeoJSON point feature.
type GeoJSONFeature struct {
	Type       string         `json:"type"`
	Geometry   GeoJSONPoint   `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// GeoJSONPoint is a GeoJSON point geometry, coordinates [lon, lat].
type GeoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// ActiveSpottersResponse is a GeoJSON FeatureCollection of active spotters.
type ActiveSpottersResponse struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
	Count    int              `json:"count"`
}

// Active lists the latest location per user within the active window,
// filtered by what the viewer's role may observe. Anonymous viewers see
// public locations only.
// GET /api/v1/locations/active
func (h *LocationHandlers) Active(c *gin.Context) {
	viewerRole := core.RoleSpotter
	anonymous := true
	if user, ok := currentUser(c); ok {
		viewerRole = core.ParseRole(user.Role)
		anonymous = false
	}

	since := time.Now().Add(-h.cfg.ActiveWindow)
	locations, err := h.store.ListActiveLocations(c.Request.Context(), since)
	if err != nil {
		h.log.Error().Err(err).Msg("list active locations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	features := make([]GeoJSONFeature, 0, len(locations))
	for _, al := range locations {
		tier := core.ParseTier(al.Visibility)
		if anonymous && tier != core.TierPublic {
			continue
		}
		if !core.MayObserve(tier, viewerRole) {
			continue
		}
		features = append(features, GeoJSONFeature{
			Type: "Feature",
			Geometry: GeoJSONPoint{
				Type:        "Point",
				Coordinates: []float64{al.Longitude, al.Latitude},
			},
			Properties: map[string]any{
				"user_id":   al.UserID,
				"callsign":  al.Callsign,
				"role":      al.Role,
				"timestamp": al.Timestamp,
				"altitude":  al.Altitude,
				"accuracy":  al.Accuracy,
				"heading":   al.Heading,
				"speed":     al.Speed,
			},
		})
	}

	c.JSON(http.StatusOK, ActiveSpottersResponse{
		Type:     "FeatureCollection",
		Features: features,
		Count:    len(features),
	})
}

// LocationHistoryResponse wraps a user's location history.
type LocationHistoryResponse struct {
	Locations []LocationResponse `json:"locations"`
	Count     int                `json:"count"`
}

// History returns location history for a user. Users may read their own
// history; coordinators and admins may read anyone's.
// GET /api/v1/locations/history/:user_id
func (h *LocationHandlers) History(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	targetID := c.Param("user_id")
	if targetID != user.ID && !core.ParseRole(user.Role).AtLeast(core.RoleCoordinator) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not authorized to view this user's history"})
		return
	}

	hours := 24
	if v := c.Query("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 168 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "hours must be between 1 and 168"})
			return
		}
		hours = n
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	locations, err := h.store.ListUserLocations(c.Request.Context(), targetID, since, 1000)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", targetID).Msg("list user locations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]LocationResponse, 0, len(locations))
	for _, l := range locations {
		out = append(out, locationResponse(l))
	}
	c.JSON(http.StatusOK, LocationHistoryResponse{Locations: out, Count: len(out)})
}

// ClearHistory removes all of the caller's location history.
// DELETE /api/v1/locations/history
func (h *LocationHandlers) ClearHistory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.store.DeleteUserLocations(c.Request.Context(), user.ID); err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("clear location history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "location history cleared"})
}

// principalOf adapts a stored user into the engine's principal view.
func principalOf(u *store.User) core.Principal {
	return core.Principal{
		UserID:    u.ID,
		Callsign:  u.Callsign,
		Role:      core.ParseRole(u.Role),
		ShareTier: core.ParseTier(u.ShareLocationWith),
	}
}
