package hub

import (
	"encoding/json"
	"sync"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/config"
	pkglog "github.com/weiawesome/wes-io-channels/pkg/log"
)

// Hub manages all WebSocket connections and their room and channel groups.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[string]*Client // roomKey -> clientID -> client
	channels   map[int]map[string]*Client    // channelID -> clientID -> client
	unregister chan *Client
	broadcast  chan *outbound
	done       chan struct{}
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// outbound is a frame addressed to a room or, when roomKey is empty, to
// every subscriber of a channel.
type outbound struct {
	roomKey   string
	channelID int
	data      []byte
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		channels:   make(map[int]map[string]*Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *outbound, 256),
		done:       make(chan struct{}),
		config:     cfg,
	}
}

// Run starts the hub's main loop. Frames queued through BroadcastToRoom and
// BroadcastToChannel are delivered in the order they were queued.
func (h *Hub) Run() {
	l := pkglog.L()
	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				h.detach(client.ID)
				delete(h.clients, client.ID)
				client.close()
			}
			h.mu.Unlock()
			l.Info().Str(pkglog.FieldConnID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := h.rooms[msg.roomKey]
			if msg.roomKey == "" {
				targets = h.channels[msg.channelID]
			}
			for _, client := range targets {
				if !client.trySend(msg.data) {
					// Client's send buffer is full
					go h.removeClient(client)
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			return
		}
	}
}

// Stop ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

// Register adds a client to the hub. The client can join rooms as soon as
// Register returns.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	l := pkglog.L()
	l.Info().Str(pkglog.FieldConnID, client.ID).Msg("client registered")
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.removeClient(client)
}

// Subscribe scopes a client to one channel's broadcasts, replacing any
// previous channel.
func (h *Hub) Subscribe(client *Client, channelID int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, subs := range h.channels {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.channels, id)
		}
	}
	if _, ok := h.channels[channelID]; !ok {
		h.channels[channelID] = make(map[string]*Client)
	}
	h.channels[channelID][client.ID] = client
}

// JoinRoom adds a registered client to a room group.
func (h *Hub) JoinRoom(clientID, roomKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	if _, ok := h.rooms[roomKey]; !ok {
		h.rooms[roomKey] = make(map[string]*Client)
	}
	h.rooms[roomKey][clientID] = client

	l := pkglog.L()
	l.Debug().Str(pkglog.FieldConnID, clientID).Str("room_key", roomKey).Msg("client joined room")
}

// LeaveRoom removes a client from a room group.
func (h *Hub) LeaveRoom(clientID, roomKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if roomClients, ok := h.rooms[roomKey]; ok {
		delete(roomClients, clientID)
		if len(roomClients) == 0 {
			delete(h.rooms, roomKey)
		}
	}

	l := pkglog.L()
	l.Debug().Str(pkglog.FieldConnID, clientID).Str("room_key", roomKey).Msg("client left room")
}

// BroadcastToRoom queues a message for every client in a room.
func (h *Hub) BroadcastToRoom(roomKey string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &outbound{roomKey: roomKey, data: data}
	return nil
}

// BroadcastToChannel queues a message for every subscriber of a channel.
func (h *Hub) BroadcastToChannel(channelID int, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &outbound{channelID: channelID, data: data}
	return nil
}

// SendToClient sends a message to a specific client.
func (h *Hub) SendToClient(clientID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return nil
	}
	if !client.trySend(data) {
		go h.removeClient(client)
	}
	return nil
}

// RoomSize returns the number of clients grouped under roomKey.
func (h *Hub) RoomSize(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey])
}

// detach removes clientID from every group. Callers hold h.mu.
func (h *Hub) detach(clientID string) {
	for roomKey, roomClients := range h.rooms {
		delete(roomClients, clientID)
		if len(roomClients) == 0 {
			delete(h.rooms, roomKey)
		}
	}
	for channelID, subs := range h.channels {
		delete(subs, clientID)
		if len(subs) == 0 {
			delete(h.channels, channelID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
