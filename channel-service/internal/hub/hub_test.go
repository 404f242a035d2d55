package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/config"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       2 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 4096,
	})
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

// joined registers a connection-less client and groups it under roomKey.
func joined(t *testing.T, h *Hub, id, roomKey string) *Client {
	t.Helper()
	c := NewClient(id, h, nil)
	h.Register(c)
	require.Eventually(t, func() bool {
		h.JoinRoom(id, roomKey)
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, ok := h.rooms[roomKey][id]
		return ok
	}, time.Second, time.Millisecond)
	return c
}

func receive(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &out))
		return out
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected frame %s", data)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBroadcastToRoom(t *testing.T) {
	h := newTestHub(t)
	a := joined(t, h, "a", "1:lobby")
	b := joined(t, h, "b", "1:lobby")
	other := joined(t, h, "c", "1:arena")

	require.NoError(t, h.BroadcastToRoom("1:lobby", map[string]string{"type": "roster-update"}))

	assert.Equal(t, "roster-update", receive(t, a)["type"])
	assert.Equal(t, "roster-update", receive(t, b)["type"])
	assertSilent(t, other)
}

func TestBroadcastPreservesOrder(t *testing.T) {
	h := newTestHub(t)
	c := joined(t, h, "a", "1:lobby")

	for i := 0; i < 10; i++ {
		require.NoError(t, h.BroadcastToRoom("1:lobby", map[string]int{"seq": i}))
	}
	for i := 0; i < 10; i++ {
		assert.EqualValues(t, i, receive(t, c)["seq"])
	}
}

func TestLeaveRoom(t *testing.T) {
	h := newTestHub(t)
	c := joined(t, h, "a", "1:lobby")

	h.LeaveRoom("a", "1:lobby")
	assert.Zero(t, h.RoomSize("1:lobby"))

	require.NoError(t, h.BroadcastToRoom("1:lobby", map[string]string{"type": "x"}))
	assertSilent(t, c)
}

func TestBroadcastToChannel(t *testing.T) {
	h := newTestHub(t)
	a := joined(t, h, "a", "1:lobby")
	b := joined(t, h, "b", "2:pitch")

	h.Subscribe(a, 1)
	h.Subscribe(b, 1)
	h.Subscribe(b, 2)

	require.NoError(t, h.BroadcastToChannel(1, map[string]string{"type": "room-created"}))
	assert.Equal(t, "room-created", receive(t, a)["type"])
	assertSilent(t, b)
}

func TestUnregisterDetachesAndCloses(t *testing.T) {
	h := newTestHub(t)
	c := joined(t, h, "a", "1:lobby")
	h.Subscribe(c, 1)

	h.Unregister(c)

	_, ok := <-c.Send
	assert.False(t, ok, "send channel is closed on unregister")
	assert.Zero(t, h.RoomSize("1:lobby"))

	// Late sends to a closed client are dropped rather than panicking.
	assert.NoError(t, c.SendMessage(map[string]string{"type": "late"}))
	assert.NoError(t, h.SendToClient("a", map[string]string{"type": "late"}))
}

func TestSendToClient(t *testing.T) {
	h := newTestHub(t)
	c := joined(t, h, "a", "1:lobby")

	require.NoError(t, h.SendToClient("a", map[string]string{"type": "pong"}))
	assert.Equal(t, "pong", receive(t, c)["type"])

	assert.NoError(t, h.SendToClient("missing", map[string]string{"type": "pong"}))
}

func TestJoinRoomIgnoresUnknownClient(t *testing.T) {
	h := newTestHub(t)
	h.JoinRoom("ghost", "1:lobby")
	assert.Zero(t, h.RoomSize("1:lobby"))
}
