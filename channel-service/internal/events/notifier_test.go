package events

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/domain"
	"github.com/weiawesome/wes-io-channels/pkg/log"
	"github.com/weiawesome/wes-io-channels/pkg/pubsub"
)

type published struct {
	channel string
	event   *pubsub.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, event *pubsub.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, published{channel: channel, event: event})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func TestNotifierRoomCreated(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub)

	n.RoomCreated(context.Background(), domain.RoomInfo{
		ID:        3,
		Title:     "lobby",
		ChannelID: 1,
		Host:      domain.Identity{ID: "alice"},
	})

	require.Len(t, pub.events, 1)
	got := pub.events[0]
	assert.Equal(t, "channels:1:events", got.channel)
	assert.Equal(t, pubsub.EventRoomCreated, got.event.Type)
	assert.Equal(t, "1", got.event.Key)

	var payload pubsub.RoomCreatedPayload
	require.NoError(t, got.event.UnmarshalPayload(&payload))
	assert.Equal(t, pubsub.RoomCreatedPayload{ChannelID: 1, RoomID: 3, RoomTitle: "lobby", HostID: "alice"}, payload)
}

func TestNotifierStreamLifecycle(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub)
	ctx := context.Background()

	n.StreamStarted(ctx, 2, "arena", "bob")
	n.StreamStopped(ctx, 2, "arena", "bob", pubsub.ReasonHostLeft)

	require.Len(t, pub.events, 2)
	assert.Equal(t, pubsub.EventStreamStarted, pub.events[0].event.Type)
	assert.Equal(t, pubsub.EventStreamStopped, pub.events[1].event.Type)

	var stopped pubsub.StreamStoppedPayload
	require.NoError(t, pub.events[1].event.UnmarshalPayload(&stopped))
	assert.Equal(t, pubsub.ReasonHostLeft, stopped.Reason)
	assert.Equal(t, "arena", stopped.RoomTitle)
}

func TestNotifierSwallowsFailures(t *testing.T) {
	n := NewNotifier(&fakePublisher{err: errors.New("broker down")})
	assert.NotPanics(t, func() {
		n.StreamStarted(context.Background(), 0, "x", "y")
	})

	var nilNotifier *Notifier
	assert.NotPanics(t, func() {
		nilNotifier.StreamStopped(context.Background(), 0, "x", "y", pubsub.ReasonExplicit)
	})
}

func TestNotifierLogsChannelOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel).With().
		Int(log.FieldChannelID, 2).
		Logger()
	ctx := log.WithLogger(context.Background(), logger)

	NewNotifier(&fakePublisher{}).StreamStarted(ctx, 2, "arena", "bob")
	NewNotifier(&fakePublisher{err: errors.New("broker down")}).StreamStarted(ctx, 2, "arena", "bob")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Equal(t, 1, strings.Count(line, `"channel_id"`), line)
		assert.Contains(t, line, `"topic":"channels:2:events"`)
	}
}
