package http

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openspotter/openspotter-server/internal/core"
	"github.com/openspotter/openspotter-server/internal/proto"
	"github.com/openspotter/openspotter-server/internal/store"
)

func unmarshalData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing data")
	}
	return json.Unmarshal(raw, v)
}

// dispatch decodes one inbound frame and routes it to the hub. A non-nil
// return is a protocol violation: the frame is dropped and the error frame
// queued, but the connection stays open.
func (h *WSHandler) dispatch(ctx context.Context, client *core.Client, inbound proto.Inbound) *proto.Error {
	switch inbound.Type {
	case proto.InboundTypeLocationUpdate:
		return h.handleLocationUpdate(ctx, client, inbound.Data)

	case proto.InboundTypeStopSharing:
		h.hub.BroadcastStop(client.Principal)
		return nil

	case proto.InboundTypeMessage:
		return h.handleMessage(ctx, client, inbound.Data)

	case proto.InboundTypeJoinChannel:
		var data proto.ChannelData
		if err := unmarshalData(inbound.Data, &data); err != nil || data.ChannelID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "channel_id is required"}
		}
		h.hub.JoinChannel(client, data.ChannelID)
		return nil

	case proto.InboundTypeLeaveChannel:
		var data proto.ChannelData
		if err := unmarshalData(inbound.Data, &data); err != nil || data.ChannelID == "" {
			return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "channel_id is required"}
		}
		h.hub.LeaveChannel(client, data.ChannelID)
		return nil

	default:
		return &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown frame type"}
	}
}

func (h *WSHandler) handleLocationUpdate(ctx context.Context, client *core.Client, raw json.RawMessage) *proto.Error {
	var data proto.LocationUpdateData
	if err := unmarshalData(raw, &data); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed location update"}
	}
	if data.Latitude < -90 || data.Latitude > 90 || data.Longitude < -180 || data.Longitude > 180 {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "coordinates out of range"}
	}

	visibility := data.Visibility
	if visibility == "" {
		visibility = string(client.ShareTier)
	}

	loc := &store.Location{
		UserID:     client.UserID,
		Latitude:   data.Latitude,
		Longitude:  data.Longitude,
		Altitude:   data.Altitude,
		Accuracy:   data.Accuracy,
		Heading:    data.Heading,
		Speed:      data.Speed,
		Visibility: string(core.ParseTier(visibility)),
	}
	if err := h.store.SaveLocation(ctx, loc); err != nil {
		h.log.Error().Err(err).Str("user_id", client.UserID).Msg("persist location")
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "could not store location"}
	}

	h.hub.BroadcastLocation(client.Principal, loc)
	return nil
}

func (h *WSHandler) handleMessage(ctx context.Context, client *core.Client, raw json.RawMessage) *proto.Error {
	var data proto.MessageData
	if err := unmarshalData(raw, &data); err != nil {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed message"}
	}
	if data.Content == "" {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "content is required"}
	}
	if (data.ChannelID == "") == (data.RecipientID == "") {
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "exactly one of channel_id and recipient_id is required"}
	}

	msg := &store.Message{
		SenderID:  client.UserID,
		Content:   data.Content,
		Latitude:  data.Latitude,
		Longitude: data.Longitude,
	}

	if data.ChannelID != "" {
		ch, err := h.store.GetChannelByID(ctx, data.ChannelID)
		if err != nil {
			return &proto.Error{Code: core.ErrCodeChannelNotFound, Msg: "channel not found"}
		}
		// Joining is unrestricted; the minimum-role gate applies here, at
		// send time.
		if !client.Role.AtLeast(core.ParseRole(ch.MinRole)) {
			return &proto.Error{Code: core.ErrCodeForbidden, Msg: "not authorized to send to this channel"}
		}
		msg.ChannelID = &ch.ID
	} else {
		recipient := data.RecipientID
		msg.RecipientID = &recipient
	}

	if err := h.store.SaveMessage(ctx, msg); err != nil {
		h.log.Error().Err(err).Str("user_id", client.UserID).Msg("persist message")
		return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "could not store message"}
	}

	h.hub.BroadcastMessage(client.Principal, msg)
	return nil
}

// outboundFromEvent converts an engine event into its wire representation.
func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventLocationUpdate:
		loc := event.Location
		return proto.Outbound{
			Type: proto.OutboundTypeLocationUpdate,
			Data: proto.LocationUpdateEvent{
				UserID:    event.Sender.UserID,
				Callsign:  event.Sender.Callsign,
				Role:      string(event.Sender.Role),
				Latitude:  loc.Latitude,
				Longitude: loc.Longitude,
				Altitude:  loc.Altitude,
				Accuracy:  loc.Accuracy,
				Heading:   loc.Heading,
				Speed:     loc.Speed,
				Timestamp: loc.Timestamp,
			},
		}
	case core.EventLocationStopped:
		return proto.Outbound{
			Type: proto.OutboundTypeLocationStopped,
			Data: proto.LocationStoppedEvent{UserID: event.Sender.UserID},
		}
	case core.EventChatMessage:
		msg := event.Message
		return proto.Outbound{
			Type: proto.OutboundTypeChatMessage,
			Data: proto.ChatMessageEvent{
				ID:      msg.ID,
				Content: msg.Content,
				Sender: proto.SenderInfo{
					ID:       event.Sender.UserID,
					Callsign: event.Sender.Callsign,
					Role:     string(event.Sender.Role),
				},
				ChannelID:   msg.ChannelID,
				RecipientID: msg.RecipientID,
				Latitude:    msg.Latitude,
				Longitude:   msg.Longitude,
				CreatedAt:   msg.CreatedAt,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown event"}}
	}
}
