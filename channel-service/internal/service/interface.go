package service

import (
	"context"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/domain"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/hub"
)

// ChannelService handles channel and room operations for socket clients.
type ChannelService interface {
	// HandleHello replies with the channel list.
	HandleHello(ctx context.Context, client *hub.Client) error

	// HandleSubscribe scopes a client to one channel.
	HandleSubscribe(ctx context.Context, client *hub.Client, msg *domain.SubscribeChannelMessage) error

	// HandleJoinRoom handles a client joining a room.
	HandleJoinRoom(ctx context.Context, client *hub.Client, msg *domain.JoinRoomMessage) error

	// HandlePostMessage relays a chat message to its room.
	HandlePostMessage(ctx context.Context, client *hub.Client, msg *domain.PostMessageMessage) error

	// HandleCreateRoom handles a client creating a room.
	HandleCreateRoom(ctx context.Context, client *hub.Client, msg *domain.CreateRoomMessage) error

	// HandleStopStream clears a room's stream.
	HandleStopStream(ctx context.Context, client *hub.Client, msg *domain.StopStreamMessage) error

	// HandleDisconnect handles a client disconnecting.
	HandleDisconnect(ctx context.Context, client *hub.Client) error
}
