package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/openspotter/openspotter-server/internal/core"
	"github.com/openspotter/openspotter-server/internal/store"
)

// MessageHandlers provides the REST side of chat: channel management,
// history reads, and the HTTP send fallback that broadcasts through the
// same hub as WebSocket sends.
type MessageHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{store: st, hub: hub, log: logger}
}

// ChannelResponse is the public view of a channel.
type ChannelResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	MinRole     string    `json:"min_role"`
	CreatedAt   time.Time `json:"created_at"`
}

func channelResponse(ch *store.Channel) ChannelResponse {
	return ChannelResponse{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: ch.Description,
		IsPublic:    ch.IsPublic,
		MinRole:     ch.MinRole,
		CreatedAt:   ch.CreatedAt,
	}
}

// ChannelListResponse wraps the accessible channels.
type ChannelListResponse struct {
	Channels []ChannelResponse `json:"channels"`
	Count    int               `json:"count"`
}

// ListChannels lists channels the caller can access: public channels (or
// ones they created) whose minimum role they meet.
// GET /api/v1/messages/channels
func (h *MessageHandlers) ListChannels(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	role := core.ParseRole(user.Role)

	channels, err := h.store.ListChannels(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list channels")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		if !ch.IsPublic && ch.CreatedByID != user.ID {
			continue
		}
		if !role.AtLeast(core.ParseRole(ch.MinRole)) {
			continue
		}
		out = append(out, channelResponse(ch))
	}

	c.JSON(http.StatusOK, ChannelListResponse{Channels: out, Count: len(out)})
}

// CreateChannelRequest is the channel creation body.
type CreateChannelRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description"`
	IsPublic    *bool  `json:"is_public"`
	MinRole     string `json:"min_role"`
}

// CreateChannel creates a channel. Coordinator and above only.
// POST /api/v1/messages/channels
func (h *MessageHandlers) CreateChannel(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	if !core.ParseRole(user.Role).AtLeast(core.RoleCoordinator) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "coordinator role required"})
		return
	}

	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if _, err := h.store.GetChannelByName(c.Request.Context(), req.Name); err == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "channel name already exists"})
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	ch := &store.Channel{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    isPublic,
		MinRole:     string(core.ParseRole(req.MinRole)),
		CreatedByID: user.ID,
	}
	if err := h.store.CreateChannel(c.Request.Context(), ch); err != nil {
		h.log.Error().Err(err).Str("name", req.Name).Msg("create channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, channelResponse(ch))
}

// MessageResponse is the stored message with sender identity attached.
type MessageResponse struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	Sender      SenderInfo `json:"sender"`
	ChannelID   *string    `json:"channel_id,omitempty"`
	RecipientID *string    `json:"recipient_id,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	EditedAt    *time.Time `json:"edited_at,omitempty"`
}

// SenderInfo identifies a message sender.
type SenderInfo struct {
	ID       string `json:"id"`
	Callsign string `json:"callsign,omitempty"`
	Role     string `json:"role"`
}

// MessageListResponse wraps a page of messages.
type MessageListResponse struct {
	Messages []MessageResponse `json:"messages"`
	Count    int               `json:"count"`
	HasMore  bool              `json:"has_more"`
}

// ChannelMessages returns channel history, newest first, with before/limit
// paging. The channel's minimum role gates reads.
// GET /api/v1/messages/channels/:channel_id/messages
func (h *MessageHandlers) ChannelMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	ch, err := h.store.GetChannelByID(c.Request.Context(), c.Param("channel_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
			return
		}
		h.log.Error().Err(err).Msg("get channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if !core.ParseRole(user.Role).AtLeast(core.ParseRole(ch.MinRole)) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not authorized to access this channel"})
		return
	}

	before, limit, ok := pageParams(c)
	if !ok {
		return
	}

	messages, err := h.store.ListChannelMessages(c.Request.Context(), ch.ID, before, limit+1)
	if err != nil {
		h.log.Error().Err(err).Str("channel_id", ch.ID).Msg("list channel messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.respondMessages(c, messages, limit)
}

// DirectMessages returns the DM history between the caller and another user.
// GET /api/v1/messages/dm/:user_id
func (h *MessageHandlers) DirectMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	before, limit, ok := pageParams(c)
	if !ok {
		return
	}

	messages, err := h.store.ListDirectMessages(c.Request.Context(), user.ID, c.Param("user_id"), before, limit+1)
	if err != nil {
		h.log.Error().Err(err).Msg("list direct messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.respondMessages(c, messages, limit)
}

// SendMessageRequest is the HTTP send fallback body. ChannelID and
// RecipientID are mutually exclusive.
type SendMessageRequest struct {
	Content     string   `json:"content" binding:"required"`
	ChannelID   string   `json:"channel_id"`
	RecipientID string   `json:"recipient_id"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// Send persists a message and broadcasts it.
// POST /api/v1/messages
func (h *MessageHandlers) Send(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if (req.ChannelID == "") == (req.RecipientID == "") {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "must specify exactly one of channel_id and recipient_id"})
		return
	}

	msg := &store.Message{
		SenderID:  user.ID,
		Content:   req.Content,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}

	if req.ChannelID != "" {
		ch, err := h.store.GetChannelByID(c.Request.Context(), req.ChannelID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
				return
			}
			h.log.Error().Err(err).Msg("get channel")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		if !core.ParseRole(user.Role).AtLeast(core.ParseRole(ch.MinRole)) {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not authorized to send to this channel"})
			return
		}
		msg.ChannelID = &ch.ID
	} else {
		recipient := req.RecipientID
		msg.RecipientID = &recipient
	}

	if err := h.store.SaveMessage(c.Request.Context(), msg); err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("persist message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.hub.BroadcastMessage(principalOf(user), msg)

	c.JSON(http.StatusCreated, MessageResponse{
		ID:      msg.ID,
		Content: msg.Content,
		Sender: SenderInfo{
			ID:       user.ID,
			Callsign: user.Callsign,
			Role:     user.Role,
		},
		ChannelID:   msg.ChannelID,
		RecipientID: msg.RecipientID,
		Latitude:    msg.Latitude,
		Longitude:   msg.Longitude,
		CreatedAt:   msg.CreatedAt,
	})
}

func pageParams(c *gin.Context) (before *time.Time, limit int, ok bool) {
	limit = 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 100"})
			return nil, 0, false
		}
		limit = n
	}
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "before must be RFC 3339"})
			return nil, 0, false
		}
		before = &t
	}
	return before, limit, true
}

func (h *MessageHandlers) respondMessages(c *gin.Context, messages []*store.Message, limit int) {
	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		sender := SenderInfo{ID: m.SenderID, Role: string(core.RoleSpotter)}
		if u, err := h.store.GetUserByID(c.Request.Context(), m.SenderID); err == nil {
			sender.Callsign = u.Callsign
			sender.Role = u.Role
		}
		out = append(out, MessageResponse{
			ID:          m.ID,
			Content:     m.Content,
			Sender:      sender,
			ChannelID:   m.ChannelID,
			RecipientID: m.RecipientID,
			Latitude:    m.Latitude,
			Longitude:   m.Longitude,
			CreatedAt:   m.CreatedAt,
			EditedAt:    m.EditedAt,
		})
	}

	c.JSON(http.StatusOK, MessageListResponse{Messages: out, Count: len(out), HasMore: hasMore})
}
