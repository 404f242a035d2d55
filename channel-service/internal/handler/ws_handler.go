package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/domain"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/hub"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/service"
	pkglog "github.com/weiawesome/wes-io-channels/pkg/log"
)

// validator is implemented by request frames with required fields.
type validator interface {
	Validate() error
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub      *hub.Hub
	service  service.ChannelService
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler. Browser origins are checked
// against allowedOrigins; "*" allows any.
func NewWSHandler(h *hub.Hub, svc service.ChannelService, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(allowedOrigins, origin)
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and message routing.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := pkglog.Ctx(c.Request.Context())

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn)

	// Disconnect fires once per connection, from ReadPump.
	client.SetDisconnectHandler(func(c *hub.Client) {
		ctx := pkglog.WithConn(context.Background(), c.ID)
		if err := h.service.HandleDisconnect(ctx, c); err != nil {
			l.Error().Err(err).Str(pkglog.FieldConnID, c.ID).Msg("disconnect handler error")
		}
	})

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	ctx := pkglog.WithConn(context.Background(), client.ID)
	l := pkglog.Ctx(ctx)

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	var err error
	switch base.Type {
	case domain.MsgTypeClientHello:
		err = h.service.HandleHello(ctx, client)

	case domain.MsgTypeSubscribeChannel:
		var msg domain.SubscribeChannelMessage
		if !decode(client, message, &msg) {
			return
		}
		err = h.service.HandleSubscribe(ctx, client, &msg)

	case domain.MsgTypeJoinRoom:
		var msg domain.JoinRoomMessage
		channelID, ok := subscribed(client)
		if !ok || !decode(client, message, &msg) {
			return
		}
		msg.ChannelID = channelID
		err = h.service.HandleJoinRoom(ctx, client, &msg)

	case domain.MsgTypePostMessage:
		var msg domain.PostMessageMessage
		channelID, ok := subscribed(client)
		if !ok || !decode(client, message, &msg) {
			return
		}
		msg.Message.ChannelID = channelID
		err = h.service.HandlePostMessage(ctx, client, &msg)

	case domain.MsgTypeCreateRoom:
		var msg domain.CreateRoomMessage
		channelID, ok := subscribed(client)
		if !ok || !decode(client, message, &msg) {
			return
		}
		msg.ChannelID = channelID
		err = h.service.HandleCreateRoom(ctx, client, &msg)

	case domain.MsgTypeStopStream:
		var msg domain.StopStreamMessage
		channelID, ok := subscribed(client)
		if !ok || !decode(client, message, &msg) {
			return
		}
		msg.ChannelID = channelID
		err = h.service.HandleStopStream(ctx, client, &msg)

	case domain.MsgTypePing:
		client.SendMessage(map[string]string{"type": domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}

	if err != nil {
		l.Error().Err(err).Str("type", base.Type).Msg("failed to handle message")
	}
}

// decode unmarshals and validates a request frame, answering the client with
// an error frame when it is malformed.
func decode(client *hub.Client, message []byte, msg interface{}) bool {
	if err := json.Unmarshal(message, msg); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return false
	}
	if v, ok := msg.(validator); ok {
		if err := v.Validate(); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, err.Error()))
			return false
		}
	}
	return true
}

// subscribed returns the client's channel. Room operations are scoped to it.
func subscribed(client *hub.Client) (int, bool) {
	channelID := client.Session.Channel()
	if channelID == domain.NoChannel {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotSubscribed, "Subscribe to a channel first"))
		return 0, false
	}
	return channelID, true
}

// RegisterRoutes registers the WebSocket route.
func (h *WSHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", h.HandleWebSocket)
}
