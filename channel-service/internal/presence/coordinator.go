package presence

import (
	"context"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/domain"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/events"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/registry"
	"github.com/weiawesome/wes-io-channels/pkg/log"
	"github.com/weiawesome/wes-io-channels/pkg/pubsub"
)

var (
	// ErrRoomNotFound is returned by Join when the target room does not exist.
	ErrRoomNotFound = &registry.Error{Kind: registry.ErrNotFound, Message: "Room not found"}
	// ErrMemberExists is returned by Join when the identity is already present.
	ErrMemberExists = &registry.Error{Kind: registry.ErrConflict, Message: "Failed to join room: user already exists"}
)

// Broadcaster is the transport used to group connections by room and fan
// frames out to them.
type Broadcaster interface {
	JoinRoom(connID, roomKey string)
	LeaveRoom(connID, roomKey string)
	BroadcastToRoom(roomKey string, msg interface{}) error
}

// Coordinator binds each connection to at most one room and keeps room
// rosters and their broadcasts in step.
type Coordinator struct {
	registry *registry.Registry
	hub      Broadcaster
	notifier *events.Notifier

	// bindings is only touched inside registry.Update.
	bindings map[string]registry.RoomRef
}

// NewCoordinator creates a coordinator. notifier may be nil.
func NewCoordinator(reg *registry.Registry, hub Broadcaster, notifier *events.Notifier) *Coordinator {
	return &Coordinator{
		registry: reg,
		hub:      hub,
		notifier: notifier,
		bindings: make(map[string]registry.RoomRef),
	}
}

type hostLeft struct {
	channelID int
	roomTitle string
	hostID    string
}

// Join moves connID into the given room as identity. Any previous membership
// of the connection, in any channel, is dropped first. On success the room's
// roster is broadcast and a snapshot is returned for the ack.
func (c *Coordinator) Join(ctx context.Context, channelID int, roomTitle string, identity domain.Identity, connID string) (*domain.RoomSnapshot, error) {
	identity.ConnID = connID

	var (
		snapshot domain.RoomSnapshot
		stopped  []hostLeft
	)
	err := c.registry.Update(func(tx *registry.Tx) error {
		room, err := tx.FindRoom(channelID, roomTitle)
		if err != nil {
			return ErrRoomNotFound
		}

		var prev *domain.Identity
		stopped, prev = c.detachLocked(ctx, tx, connID, room)

		joined := room.AddMember(identity)
		if joined {
			ref := registry.RefOf(room)
			c.bindings[connID] = ref
			c.hub.JoinRoom(connID, ref.Key())
			snapshot = room.Snapshot()
		}
		if joined || prev != nil {
			c.broadcast(ctx, registry.RefOf(room).Key(), domain.NewRosterUpdate(room))
		}
		// The connection may have been the host of the room it is rejoining.
		if prev != nil {
			if s, ok := c.dropStreamLocked(ctx, room, *prev); ok {
				stopped = append(stopped, s)
			}
		}

		if !joined {
			return ErrMemberExists
		}
		return nil
	})

	c.announce(ctx, stopped)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Leave drops connID from the room it is bound to, if any. It is called once
// per connection on disconnect.
func (c *Coordinator) Leave(ctx context.Context, connID string) {
	var stopped []hostLeft
	c.registry.Do(func(tx *registry.Tx) {
		stopped, _ = c.detachLocked(ctx, tx, connID, nil)
	})
	c.announce(ctx, stopped)
}

// Bound returns the room connID is currently bound to.
func (c *Coordinator) Bound(connID string) (registry.RoomRef, bool) {
	var (
		ref registry.RoomRef
		ok  bool
	)
	c.registry.Do(func(tx *registry.Tx) {
		ref, ok = c.bindings[connID]
	})
	return ref, ok
}

// detachLocked unbinds connID and removes it from every room listing it.
// Rooms other than target get a roster update, and lose their stream when it
// was their host that left. The identity removed from target, if any, is
// returned for the caller to settle.
func (c *Coordinator) detachLocked(ctx context.Context, tx *registry.Tx, connID string, target *domain.Room) ([]hostLeft, *domain.Identity) {
	if ref, ok := c.bindings[connID]; ok {
		c.hub.LeaveRoom(connID, ref.Key())
		delete(c.bindings, connID)
	}

	var (
		stopped []hostLeft
		prev    *domain.Identity
	)
	tx.ForEachRoom(func(room *domain.Room) {
		left, ok := room.RemoveMemberByConn(connID)
		if !ok {
			return
		}
		if room == target {
			prev = &left
			return
		}

		c.broadcast(ctx, registry.RefOf(room).Key(), domain.NewRosterUpdate(room))
		if s, ok := c.dropStreamLocked(ctx, room, left); ok {
			stopped = append(stopped, s)
		}
	})
	return stopped, prev
}

// dropStreamLocked clears the room's stream when left was its host and no
// identity with the host's id remains. It reports a stream_stopped event
// when a token was actually cleared.
func (c *Coordinator) dropStreamLocked(ctx context.Context, room *domain.Room, left domain.Identity) (hostLeft, bool) {
	if left.ID != room.Host.ID || room.HostPresent() {
		return hostLeft{}, false
	}
	hadStream := room.StreamToken() != ""
	room.StopStream()
	c.broadcast(ctx, registry.RefOf(room).Key(), domain.NewStreamTokenUpdate(room))
	if !hadStream {
		return hostLeft{}, false
	}
	return hostLeft{channelID: room.ChannelID, roomTitle: room.Title, hostID: room.Host.ID}, true
}

func (c *Coordinator) broadcast(ctx context.Context, roomKey string, msg interface{}) {
	if err := c.hub.BroadcastToRoom(roomKey, msg); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str("room_key", roomKey).Msg("failed to broadcast to room")
	}
}

func (c *Coordinator) announce(ctx context.Context, stopped []hostLeft) {
	for _, s := range stopped {
		l := log.Ctx(ctx)
		l.Info().
			Int(log.FieldChannelID, s.channelID).
			Str(log.FieldRoomTitle, s.roomTitle).
			Msg("host left, stream cleared")
		c.notifier.StreamStopped(ctx, s.channelID, s.roomTitle, s.hostID, pubsub.ReasonHostLeft)
	}
}
