package domain

import "time"

// Identity is an application-level user. ConnID is set only while the
// identity is present in a room and names the connection representing it.
type Identity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image,omitempty"`
	ConnID string `json:"socketId,omitempty"`
}

// Message is a chat message. It is immutable once appended to a room.
type Message struct {
	Author    string `json:"userName"`
	Date      int64  `json:"date"` // unix millis
	Body      string `json:"newMessage"`
	ChannelID int    `json:"namespaceId"`
	RoomTitle string `json:"roomTitle"`
	Image     string `json:"image,omitempty"`
}

// NewMessage stamps a message with the current time when the sender left it empty.
func NewMessage(m Message) Message {
	if m.Date == 0 {
		m.Date = time.Now().UnixMilli()
	}
	return m
}

// Channel is a top-level grouping of rooms.
type Channel struct {
	ID       int
	Name     string
	Image    string
	Endpoint string
	Rooms    []*Room
}

// Room is a named space inside a channel. Host never changes after creation.
// Access is serialised by the owning registry.
type Room struct {
	ID          int
	Title       string
	ChannelID   int
	Host        Identity
	members     []Identity
	history     []Message
	streamToken string
	// stops counts StopStream calls.
	stops uint64
}

// NewRoom creates an empty room.
func NewRoom(id int, title string, channelID int, host Identity) *Room {
	host.ConnID = ""
	return &Room{
		ID:        id,
		Title:     title,
		ChannelID: channelID,
		Host:      host,
	}
}

// AddMember adds an identity unless one with the same id is already present.
func (r *Room) AddMember(identity Identity) bool {
	for _, m := range r.members {
		if m.ID == identity.ID {
			return false
		}
	}
	r.members = append(r.members, identity)
	return true
}

// RemoveMemberByConn removes the member represented by connID.
func (r *Room) RemoveMemberByConn(connID string) (Identity, bool) {
	for i, m := range r.members {
		if m.ConnID == connID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return m, true
		}
	}
	return Identity{}, false
}

// Members returns a copy of the member list in join order.
func (r *Room) Members() []Identity {
	out := make([]Identity, len(r.members))
	copy(out, r.members)
	return out
}

// HostPresent reports whether the host identity is currently a member.
func (r *Room) HostPresent() bool {
	for _, m := range r.members {
		if m.ID == r.Host.ID {
			return true
		}
	}
	return false
}

// AppendMessage appends to the room history.
func (r *Room) AppendMessage(m Message) {
	r.history = append(r.history, m)
}

// History returns a copy of the room history.
func (r *Room) History() []Message {
	out := make([]Message, len(r.history))
	copy(out, r.history)
	return out
}

// StreamToken returns the active stream token, or "" when not live.
func (r *Room) StreamToken() string {
	return r.streamToken
}

// SetStreamToken sets or, with "", clears the active stream token.
func (r *Room) SetStreamToken(token string) {
	r.streamToken = token
}

// StopStream clears the stream token and starts a new stream epoch, so a
// publish verified before the stop can no longer go live.
func (r *Room) StopStream() {
	r.streamToken = ""
	r.stops++
}

// StreamEpoch identifies the period since the room's last StopStream.
func (r *Room) StreamEpoch() uint64 {
	return r.stops
}

// Info returns the public description of the room.
func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:        r.ID,
		Title:     r.Title,
		ChannelID: r.ChannelID,
		Host:      r.Host,
		History:   r.History(),
	}
}

// Snapshot returns what a joining member needs to render the room.
func (r *Room) Snapshot() RoomSnapshot {
	members := r.Members()
	return RoomSnapshot{
		Members:     members,
		MemberCount: len(members),
		History:     r.History(),
		Host:        r.Host,
		HostPresent: r.HostPresent(),
		StreamToken: r.streamToken,
	}
}

// Info returns the public description of the channel and its rooms.
func (c *Channel) Info() ChannelInfo {
	rooms := make([]RoomInfo, 0, len(c.Rooms))
	for _, r := range c.Rooms {
		rooms = append(rooms, r.Info())
	}
	return ChannelInfo{
		ID:       c.ID,
		Name:     c.Name,
		Image:    c.Image,
		Endpoint: c.Endpoint,
		Rooms:    rooms,
	}
}

// RoomInfo is the wire form of a room.
type RoomInfo struct {
	ID        int       `json:"roomId"`
	Title     string    `json:"roomTitle"`
	ChannelID int       `json:"namespaceId"`
	Host      Identity  `json:"host"`
	History   []Message `json:"history"`
}

// ChannelInfo is the wire form of a channel.
type ChannelInfo struct {
	ID       int        `json:"id"`
	Name     string     `json:"name"`
	Image    string     `json:"image"`
	Endpoint string     `json:"endpoint"`
	Rooms    []RoomInfo `json:"rooms"`
}

// RoomSnapshot is returned to a member on a successful join.
type RoomSnapshot struct {
	Members     []Identity `json:"members"`
	MemberCount int        `json:"memberCount"`
	History     []Message  `json:"history"`
	Host        Identity   `json:"host"`
	HostPresent bool       `json:"hostPresent"`
	StreamToken string     `json:"streamToken,omitempty"`
}

// RoomSummary is the HTTP view of a room's live state.
type RoomSummary struct {
	RoomInfo
	Members     []Identity `json:"members"`
	HostPresent bool       `json:"hostPresent"`
	Live        bool       `json:"live"`
}
