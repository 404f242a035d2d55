package events

import (
	"context"
	"strconv"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/domain"
	"github.com/weiawesome/wes-io-channels/pkg/log"
	"github.com/weiawesome/wes-io-channels/pkg/pubsub"
)

// Notifier publishes room lifecycle events to the event bus. Failures are
// logged and otherwise ignored. A nil Notifier is a no-op.
type Notifier struct {
	publisher pubsub.Publisher
}

// NewNotifier creates a notifier on top of publisher.
func NewNotifier(publisher pubsub.Publisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// RoomCreated announces a new room.
func (n *Notifier) RoomCreated(ctx context.Context, room domain.RoomInfo) {
	n.publish(ctx, room.ChannelID, pubsub.EventRoomCreated, pubsub.RoomCreatedPayload{
		ChannelID: room.ChannelID,
		RoomID:    room.ID,
		RoomTitle: room.Title,
		HostID:    room.Host.ID,
	})
}

// StreamStarted announces that a room's stream became playable.
func (n *Notifier) StreamStarted(ctx context.Context, channelID int, roomTitle, hostID string) {
	n.publish(ctx, channelID, pubsub.EventStreamStarted, pubsub.StreamStartedPayload{
		ChannelID: channelID,
		RoomTitle: roomTitle,
		HostID:    hostID,
	})
}

// StreamStopped announces that a room's stream token was cleared.
func (n *Notifier) StreamStopped(ctx context.Context, channelID int, roomTitle, hostID, reason string) {
	n.publish(ctx, channelID, pubsub.EventStreamStopped, pubsub.StreamStoppedPayload{
		ChannelID: channelID,
		RoomTitle: roomTitle,
		HostID:    hostID,
		Reason:    reason,
	})
}

func (n *Notifier) publish(ctx context.Context, channelID int, eventType string, payload interface{}) {
	if n == nil || n.publisher == nil {
		return
	}

	l := log.Ctx(ctx)
	event, err := pubsub.NewEvent(eventType, strconv.Itoa(channelID), payload)
	if err != nil {
		l.Error().Err(err).Str(log.FieldEventType, eventType).Msg("failed to build event")
		return
	}

	topic := pubsub.ChannelEventsFor(channelID)
	if err := n.publisher.Publish(ctx, topic, event); err != nil {
		l.Warn().Err(err).
			Str(log.FieldEventType, eventType).
			Str(log.FieldTopic, topic).
			Msg("failed to publish event")
		return
	}

	l.Debug().
		Str(log.FieldEventType, eventType).
		Str(log.FieldTopic, topic).
		Msg("event published")
}
