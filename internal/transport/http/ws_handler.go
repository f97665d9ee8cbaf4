package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/openspotter/openspotter-server/internal/auth"
	"github.com/openspotter/openspotter-server/internal/config"
	"github.com/openspotter/openspotter-server/internal/core"
	"github.com/openspotter/openspotter-server/internal/proto"
	"github.com/openspotter/openspotter-server/internal/store"
)

// statusAuthFailure is the close code sent when the handshake fails.
const statusAuthFailure = websocket.StatusCode(4001)

var errSuperseded = errors.New("connection superseded")

// WSHandler owns the lifecycle of one WebSocket connection: accept,
// authenticate via the first frame, serve, tear down. Everything between
// accept and teardown runs through the hub.
type WSHandler struct {
	hub   *core.Hub
	auth  *auth.Service
	store store.Store
	cfg   *config.Config
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, auth: authService, store: st, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	// No event processing happens before the credential checks out.
	user, err := h.authenticate(ctx, conn)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws authentication failed")
		conn.Close(statusAuthFailure, "authentication failed")
		return
	}

	client := core.NewClient(core.Principal{
		UserID:    user.ID,
		Callsign:  user.Callsign,
		Role:      core.ParseRole(user.Role),
		ShareTier: core.ParseTier(user.ShareLocationWith),
	}, h.cfg.SendBuffer)

	h.hub.Connect(client)
	defer h.hub.Disconnect(client)

	h.log.Info().Str("user_id", user.ID).Str("callsign", user.Callsign).Msg("ws connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case errors.Is(err, errSuperseded):
		status = websocket.StatusGoingAway
		reason = "connection superseded"
		err = nil
	case err != nil && !errors.Is(err, context.Canceled):
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("user_id", user.ID).Msg("ws connection closed with error")
		}
	}

	h.log.Info().Str("user_id", user.ID).Msg("ws disconnected")
	conn.Close(status, reason)
}

// authenticate requires the first inbound frame to carry an access token
// and resolves it to an active user. Any failure is fatal to the connection.
func (h *WSHandler) authenticate(ctx context.Context, conn *websocket.Conn) (*store.User, error) {
	authCtx, cancel := context.WithTimeout(ctx, h.cfg.WSAuthTimeout)
	defer cancel()

	var inbound proto.Inbound
	if err := wsjson.Read(authCtx, conn, &inbound); err != nil {
		return nil, err
	}
	if inbound.Type != proto.InboundTypeAuth {
		return nil, errors.New("first frame must carry a credential")
	}

	var data proto.AuthData
	if err := unmarshalData(inbound.Data, &data); err != nil {
		return nil, err
	}
	if data.Token == "" {
		return nil, errors.New("missing token")
	}

	return h.auth.VerifyAccess(authCtx, data.Token)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.cfg.WSFramesPerMinute)
	stop := make(chan struct{})
	defer close(stop)
	limiter.startReset(stop)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			client.TrySend(&core.Event{
				Kind:  core.EventError,
				Error: &core.CoreError{Code: core.ErrCodeBadRequest, Message: "rate limit exceeded"},
			})
			continue
		}

		// Malformed frames are dropped, never fatal: one misbehaving client
		// must not affect its own session, let alone others.
		if protoErr := h.dispatch(ctx, client, inbound); protoErr != nil {
			h.log.Warn().
				Str("user_id", client.UserID).
				Str("type", inbound.Type).
				Str("code", protoErr.Code).
				Msg("dropping bad ws frame")
			client.TrySend(&core.Event{
				Kind:  core.EventError,
				Error: &core.CoreError{Code: protoErr.Code, Message: protoErr.Msg},
			})
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events():
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Debug().Err(err).Str("user_id", client.UserID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			return errSuperseded
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
