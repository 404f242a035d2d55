package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/domain"
)

var (
	// ErrNotFound is returned when a channel or room does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a room title is already taken in a channel.
	ErrConflict = errors.New("conflict")
)

// Error carries a registry failure kind and the message shown to clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

var (
	errChannelNotFound = &Error{Kind: ErrNotFound, Message: "Namespace not found"}
	errRoomNotFound    = &Error{Kind: ErrNotFound, Message: "Room not found"}
	errRoomExists      = &Error{Kind: ErrConflict, Message: "Room already exists"}
)

// RoomRef identifies a room across channels.
type RoomRef struct {
	ChannelID int
	Title     string
}

// Key returns the transport grouping key for the room.
func (r RoomRef) Key() string {
	return fmt.Sprintf("%d:%s", r.ChannelID, r.Title)
}

// RefOf returns the reference of a room.
func RefOf(r *domain.Room) RoomRef {
	return RoomRef{ChannelID: r.ChannelID, Title: r.Title}
}

// Registry is the in-memory directory of channels and rooms. All access goes
// through Update, which serialises callers, so a handler can mutate rooms and
// enqueue its broadcasts as one step.
type Registry struct {
	mu       sync.Mutex
	channels []*domain.Channel
}

// New creates a registry holding the given channels, in order.
func New(channels []*domain.Channel) *Registry {
	return &Registry{channels: channels}
}

// Update runs fn with exclusive access to the registry.
func (r *Registry) Update(fn func(tx *Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&Tx{r: r})
}

// Do is Update for callers that cannot fail.
func (r *Registry) Do(fn func(tx *Tx)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&Tx{r: r})
}

// Channels returns the wire view of every channel.
func (r *Registry) Channels() []domain.ChannelInfo {
	var out []domain.ChannelInfo
	r.Do(func(tx *Tx) {
		out = make([]domain.ChannelInfo, 0, len(r.channels))
		for _, ch := range r.channels {
			out = append(out, ch.Info())
		}
	})
	return out
}

// Room returns the live summary of a room.
func (r *Registry) Room(ref RoomRef) (domain.RoomSummary, error) {
	var summary domain.RoomSummary
	err := r.Update(func(tx *Tx) error {
		room, err := tx.FindRoom(ref.ChannelID, ref.Title)
		if err != nil {
			return err
		}
		summary = domain.RoomSummary{
			RoomInfo:    room.Info(),
			Members:     room.Members(),
			HostPresent: room.HostPresent(),
			Live:        room.StreamToken() != "",
		}
		return nil
	})
	return summary, err
}

// Tx exposes registry operations to a caller holding the lock. It must not
// be retained after Update returns.
type Tx struct {
	r *Registry
}

// FindChannel looks a channel up by id.
func (tx *Tx) FindChannel(channelID int) (*domain.Channel, error) {
	for _, ch := range tx.r.channels {
		if ch.ID == channelID {
			return ch, nil
		}
	}
	return nil, errChannelNotFound
}

// FindRoom looks a room up by channel id and exact title.
func (tx *Tx) FindRoom(channelID int, title string) (*domain.Room, error) {
	ch, err := tx.FindChannel(channelID)
	if err != nil {
		return nil, err
	}
	for _, room := range ch.Rooms {
		if room.Title == title {
			return room, nil
		}
	}
	return nil, errRoomNotFound
}

// CreateRoom appends a new room to a channel. Its id is the channel's room
// count before insertion.
func (tx *Tx) CreateRoom(channelID int, title string, host domain.Identity) (*domain.Room, error) {
	ch, err := tx.FindChannel(channelID)
	if err != nil {
		return nil, err
	}
	for _, room := range ch.Rooms {
		if room.Title == title {
			return nil, errRoomExists
		}
	}

	room := domain.NewRoom(len(ch.Rooms), title, channelID, host)
	ch.Rooms = append(ch.Rooms, room)
	return room, nil
}

// ForEachRoom calls fn for every room of every channel.
func (tx *Tx) ForEachRoom(fn func(room *domain.Room)) {
	for _, ch := range tx.r.channels {
		for _, room := range ch.Rooms {
			fn(room)
		}
	}
}
