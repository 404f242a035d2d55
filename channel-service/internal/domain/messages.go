package domain

import (
	"errors"
	"fmt"
	"strings"
)

// WebSocket message types from client.
const (
	MsgTypeClientHello      = "client-hello"
	MsgTypeSubscribeChannel = "subscribe-channel"
	MsgTypeJoinRoom         = "join-room"
	MsgTypePostMessage      = "post-message"
	MsgTypeCreateRoom       = "create-room"
	MsgTypeStopStream       = "stop-stream"
	MsgTypePing             = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeAck               = "ack"
	MsgTypeChannelList       = "channel-list"
	MsgTypeRosterUpdate      = "roster-update"
	MsgTypeMessagePosted     = "message-posted"
	MsgTypeStreamTokenUpdate = "stream-token-update"
	MsgTypeRoomCreated       = "room-created"
	MsgTypeError             = "error"
	MsgTypePong              = "pong"
)

// ErrInvalidRequest is returned by Validate on malformed client frames.
var ErrInvalidRequest = errors.New("invalid request")

// BaseMessage is the base structure for all WebSocket messages. AckID, when
// present on a request, is echoed on its ack frame.
type BaseMessage struct {
	Type  string `json:"type"`
	AckID string `json:"ackId,omitempty"`
}

// Client -> Server messages

// SubscribeChannelMessage scopes the connection to one channel.
type SubscribeChannelMessage struct {
	BaseMessage
	ChannelID int `json:"channelId"`
}

// JoinRoomMessage asks to join a room as identity.
type JoinRoomMessage struct {
	BaseMessage
	ChannelID int      `json:"channelId"`
	RoomTitle string   `json:"roomTitle"`
	Identity  Identity `json:"identity"`
}

// Validate checks the fields required to join.
func (m *JoinRoomMessage) Validate() error {
	if strings.TrimSpace(m.RoomTitle) == "" {
		return fmt.Errorf("%w: roomTitle is required", ErrInvalidRequest)
	}
	if m.Identity.ID == "" {
		return fmt.Errorf("%w: identity.id is required", ErrInvalidRequest)
	}
	return nil
}

// PostMessageMessage carries a chat message. There is no ack.
type PostMessageMessage struct {
	BaseMessage
	Message Message `json:"message"`
}

// Validate checks the fields required to route a message.
func (m *PostMessageMessage) Validate() error {
	if m.Message.RoomTitle == "" {
		return fmt.Errorf("%w: message.roomTitle is required", ErrInvalidRequest)
	}
	return nil
}

// CreateRoomMessage asks to create a room hosted by Host.
type CreateRoomMessage struct {
	BaseMessage
	ChannelID int      `json:"channelId"`
	RoomTitle string   `json:"roomTitle"`
	Host      Identity `json:"hostIdentity"`
}

// Validate checks the fields required to create a room.
func (m *CreateRoomMessage) Validate() error {
	if strings.TrimSpace(m.RoomTitle) == "" {
		return fmt.Errorf("%w: roomTitle is required", ErrInvalidRequest)
	}
	if m.Host.ID == "" {
		return fmt.Errorf("%w: hostIdentity.id is required", ErrInvalidRequest)
	}
	return nil
}

// StopStreamMessage asks to clear a room's stream.
type StopStreamMessage struct {
	BaseMessage
	ChannelID int    `json:"channelId"`
	RoomTitle string `json:"roomTitle"`
}

// Validate checks the fields required to stop a stream.
func (m *StopStreamMessage) Validate() error {
	if m.RoomTitle == "" {
		return fmt.Errorf("%w: roomTitle is required", ErrInvalidRequest)
	}
	return nil
}

// Server -> Client messages

// AckMessage answers a request frame.
type AckMessage struct {
	Type    string `json:"type"`
	AckID   string `json:"ackId,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewAck builds a success ack, or a failure ack when errMsg is not empty.
func NewAck(ackID string, errMsg string) AckMessage {
	return AckMessage{
		Type:    MsgTypeAck,
		AckID:   ackID,
		Success: errMsg == "",
		Error:   errMsg,
	}
}

// JoinAckMessage answers join-room. The snapshot is present only on success.
type JoinAckMessage struct {
	AckMessage
	*RoomSnapshot
}

// CreateRoomAckMessage answers create-room.
type CreateRoomAckMessage struct {
	AckMessage
	Room *RoomInfo `json:"room,omitempty"`
}

// ChannelListMessage answers client-hello.
type ChannelListMessage struct {
	Type     string        `json:"type"`
	Channels []ChannelInfo `json:"channels"`
}

// RosterUpdateMessage is broadcast to a room after any membership change.
type RosterUpdateMessage struct {
	Type        string     `json:"type"`
	ChannelID   int        `json:"channelId"`
	RoomTitle   string     `json:"roomTitle"`
	Members     []Identity `json:"members"`
	HostPresent bool       `json:"hostPresent"`
}

// NewRosterUpdate builds the roster broadcast for a room.
func NewRosterUpdate(r *Room) *RosterUpdateMessage {
	return &RosterUpdateMessage{
		Type:        MsgTypeRosterUpdate,
		ChannelID:   r.ChannelID,
		RoomTitle:   r.Title,
		Members:     r.Members(),
		HostPresent: r.HostPresent(),
	}
}

// MessagePostedMessage is broadcast to a room for each chat message.
type MessagePostedMessage struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// StreamTokenUpdateMessage is broadcast when a room's stream becomes
// available (Token set) or is cleared (Token empty).
type StreamTokenUpdateMessage struct {
	Type      string `json:"type"`
	ChannelID int    `json:"channelId"`
	RoomTitle string `json:"roomTitle"`
	Token     string `json:"token,omitempty"`
}

// NewStreamTokenUpdate builds the stream broadcast for a room.
func NewStreamTokenUpdate(r *Room) *StreamTokenUpdateMessage {
	return &StreamTokenUpdateMessage{
		Type:      MsgTypeStreamTokenUpdate,
		ChannelID: r.ChannelID,
		RoomTitle: r.Title,
		Token:     r.StreamToken(),
	}
}

// RoomCreatedMessage is broadcast to every subscriber of a channel.
type RoomCreatedMessage struct {
	Type      string   `json:"type"`
	ChannelID int      `json:"channelId"`
	Room      RoomInfo `json:"room"`
}

// ErrorMessage is sent when a frame cannot be handled.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotSubscribed = "NOT_SUBSCRIBED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// NewErrorMessage creates a new error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
