package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	InboundTypeAuth           = "auth"
	InboundTypeLocationUpdate = "location_update"
	InboundTypeStopSharing    = "stop_sharing"
	InboundTypeMessage        = "message"
	InboundTypeJoinChannel    = "join_channel"
	InboundTypeLeaveChannel   = "leave_channel"

	OutboundTypeLocationUpdate  = "location_update"
	OutboundTypeLocationStopped = "location_stopped"
	OutboundTypeChatMessage     = "chat_message"
	OutboundTypeError           = "error"
)

// AuthData is the first frame a client must send: its access token.
type AuthData struct {
	Token string `json:"token"`
}

// LocationUpdateData is a position report from the client. Visibility is
// optional; when empty the user's stored sharing preference applies.
type LocationUpdateData struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Altitude   *float64 `json:"altitude,omitempty"`
	Accuracy   *float64 `json:"accuracy,omitempty"`
	Heading    *float64 `json:"heading,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
}

// MessageData is a chat message from the client. ChannelID and RecipientID
// are mutually exclusive.
type MessageData struct {
	Content     string   `json:"content"`
	ChannelID   string   `json:"channel_id,omitempty"`
	RecipientID string   `json:"recipient_id,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// ChannelData identifies the channel of a join or leave request.
type ChannelData struct {
	ChannelID string `json:"channel_id"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// SenderInfo identifies the authenticated originator of an event.
type SenderInfo struct {
	ID       string `json:"id"`
	Callsign string `json:"callsign,omitempty"`
	Role     string `json:"role"`
}

// LocationUpdateEvent notifies clients about another spotter's position.
type LocationUpdateEvent struct {
	UserID    string    `json:"user_id"`
	Callsign  string    `json:"callsign,omitempty"`
	Role      string    `json:"role"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationStoppedEvent notifies clients that a spotter stopped sharing.
type LocationStoppedEvent struct {
	UserID string `json:"user_id"`
}

// ChatMessageEvent delivers a chat message to a client.
type ChatMessageEvent struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	Sender      SenderInfo `json:"sender"`
	ChannelID   *string    `json:"channel_id,omitempty"`
	RecipientID *string    `json:"recipient_id,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
