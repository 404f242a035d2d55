package pubsub

import "fmt"

// ChannelEvents carries lifecycle events for every room in one channel.
const ChannelEvents = "channels:%d:events"

// Lifecycle event types.
const (
	EventRoomCreated   = "room_created"
	EventStreamStarted = "stream_started"
	EventStreamStopped = "stream_stopped"
)

// Stop reasons carried by EventStreamStopped.
const (
	ReasonWebhook  = "webhook"
	ReasonExplicit = "explicit"
	ReasonHostLeft = "host_left"
)

// ChannelEventsFor returns the bus channel for a chat channel id.
func ChannelEventsFor(channelID int) string {
	return fmt.Sprintf(ChannelEvents, channelID)
}

// RoomCreatedPayload is published when a room is added to a channel.
type RoomCreatedPayload struct {
	ChannelID int    `json:"channel_id"`
	RoomID    int    `json:"room_id"`
	RoomTitle string `json:"room_title"`
	HostID    string `json:"host_id"`
}

// StreamStartedPayload is published once a stream's playlist is reachable.
type StreamStartedPayload struct {
	ChannelID int    `json:"channel_id"`
	RoomTitle string `json:"room_title"`
	HostID    string `json:"host_id"`
}

// StreamStoppedPayload is published when a room's stream token is cleared.
type StreamStoppedPayload struct {
	ChannelID int    `json:"channel_id"`
	RoomTitle string `json:"room_title"`
	HostID    string `json:"host_id,omitempty"`
	Reason    string `json:"reason"`
}
