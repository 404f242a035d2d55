package relay

import (
	"context"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/domain"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/registry"
	"github.com/weiawesome/wes-io-channels/pkg/log"
)

// Broadcaster fans a frame out to every connection grouped under roomKey.
type Broadcaster interface {
	BroadcastToRoom(roomKey string, msg interface{}) error
}

// Relay appends chat messages to room history and forwards them to the room.
type Relay struct {
	registry *registry.Registry
	hub      Broadcaster
}

// New creates a relay.
func New(reg *registry.Registry, hub Broadcaster) *Relay {
	return &Relay{registry: reg, hub: hub}
}

// Post records msg and broadcasts it to the room it names. Messages for
// unknown rooms are dropped. It reports whether the message was delivered.
func (r *Relay) Post(ctx context.Context, msg domain.Message) bool {
	msg = domain.NewMessage(msg)

	err := r.registry.Update(func(tx *registry.Tx) error {
		room, err := tx.FindRoom(msg.ChannelID, msg.RoomTitle)
		if err != nil {
			return err
		}

		room.AppendMessage(msg)
		frame := &domain.MessagePostedMessage{Type: domain.MsgTypeMessagePosted, Message: msg}
		if err := r.hub.BroadcastToRoom(registry.RefOf(room).Key(), frame); err != nil {
			l := log.Ctx(ctx)
			l.Error().Err(err).
				Int(log.FieldChannelID, msg.ChannelID).
				Str(log.FieldRoomTitle, msg.RoomTitle).
				Msg("failed to broadcast message")
		}
		return nil
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).
			Int(log.FieldChannelID, msg.ChannelID).
			Str(log.FieldRoomTitle, msg.RoomTitle).
			Msg("dropping message for unknown room")
		return false
	}
	return true
}
