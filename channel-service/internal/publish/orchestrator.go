package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/audit"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/domain"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/events"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/readiness"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/registry"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/streamkey"
	"github.com/weiawesome/wes-io-channels/pkg/log"
	"github.com/weiawesome/wes-io-channels/pkg/pubsub"
)

var (
	// ErrBadQuery is returned when the webhook carries no stream key.
	ErrBadQuery = errors.New("bad query")
	// ErrRoomNotFound denies a publish for a room that does not exist.
	ErrRoomNotFound = errors.New("namespace or room not found")
	// ErrHostMismatch denies a publish whose key names another host.
	ErrHostMismatch = errors.New("host mismatch")
	// ErrNoRoom is returned by StopByHost for an unknown room.
	ErrNoRoom = &registry.Error{Kind: registry.ErrNotFound, Message: "Room not found"}

	errStoppedWhilePolling = errors.New("stream stopped while waiting for playlist")
)

// Broadcaster fans a frame out to every connection grouped under roomKey.
type Broadcaster interface {
	BroadcastToRoom(roomKey string, msg interface{}) error
}

// Config holds publish lifecycle timings.
type Config struct {
	// PublishTTL is the key age accepted on publish start.
	PublishTTL time.Duration
	// ReadyTimeout bounds the wait for the playlist.
	ReadyTimeout time.Duration
	// ReadyInterval is the delay between readiness checks.
	ReadyInterval time.Duration
}

// DefaultConfig returns the default timings.
func DefaultConfig() Config {
	return Config{
		PublishTTL:    30 * time.Minute,
		ReadyTimeout:  5 * time.Second,
		ReadyInterval: 250 * time.Millisecond,
	}
}

// Orchestrator handles the media server's publish webhooks and host stop
// requests, and owns each room's stream token.
type Orchestrator struct {
	registry *registry.Registry
	codec    *streamkey.Codec
	checker  readiness.Checker
	wake     readiness.Notifier
	hub      Broadcaster
	notifier *events.Notifier
	cfg      Config

	polls singleflight.Group
	wg    sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWakeups lets readiness polls react to playlist writes instead of
// waiting for the next tick.
func WithWakeups(n readiness.Notifier) Option {
	return func(o *Orchestrator) { o.wake = n }
}

// WithNotifier publishes stream lifecycle events.
func WithNotifier(n *events.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(reg *registry.Registry, codec *streamkey.Codec, checker readiness.Checker, hub Broadcaster, cfg Config, opts ...Option) *Orchestrator {
	defaults := DefaultConfig()
	if cfg.PublishTTL <= 0 {
		cfg.PublishTTL = defaults.PublishTTL
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaults.ReadyTimeout
	}
	if cfg.ReadyInterval <= 0 {
		cfg.ReadyInterval = defaults.ReadyInterval
	}

	o := &Orchestrator{
		registry: reg,
		codec:    codec,
		checker:  checker,
		hub:      hub,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnPublishStart authorises a publish for streamKey. A nil return means the
// media server may proceed; the stream is announced to the room later, once
// its playlist is reachable. Denials return ErrBadQuery, ErrRoomNotFound,
// ErrHostMismatch or a *streamkey.VerifyError.
func (o *Orchestrator) OnPublishStart(ctx context.Context, streamKey string) error {
	l := log.Ctx(ctx)
	if streamKey == "" {
		return ErrBadQuery
	}

	payload, err := o.codec.Verify(streamKey, streamkey.VerifyOptions{TTL: o.cfg.PublishTTL})
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionPublishDenied, "", err.Error(), "publish denied")
		return err
	}

	var epoch uint64
	err = o.registry.Update(func(tx *registry.Tx) error {
		room, err := tx.FindRoom(payload.ChannelID, payload.RoomTitle)
		if err != nil {
			return ErrRoomNotFound
		}
		if room.Host.ID != "" && room.Host.ID != payload.HostID {
			return ErrHostMismatch
		}
		epoch = room.StreamEpoch()
		return nil
	})
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionPublishDenied, payload.HostID, err.Error(), "publish denied")
		return err
	}

	audit.LogWithDetail(ctx, audit.ActionPublishAllowed, payload.HostID, payload.RoomTitle, "publish allowed")

	// The poll outlives the webhook request but keeps its log fields.
	detached := log.WithLogger(context.Background(), l.With().
		Int(log.FieldChannelID, payload.ChannelID).
		Str(log.FieldRoomTitle, payload.RoomTitle).
		Logger())

	o.wg.Add(1)
	go o.awaitReady(detached, *payload, streamKey, epoch)
	return nil
}

func (o *Orchestrator) awaitReady(ctx context.Context, p streamkey.Payload, streamKey string, epoch uint64) {
	defer o.wg.Done()

	// A publish after a stop must not share a poll started before it.
	o.polls.Do(fmt.Sprintf("%s#%d", streamKey, epoch), func() (interface{}, error) {
		pollCtx, cancel := context.WithTimeout(ctx, o.cfg.ReadyTimeout)
		defer cancel()

		l := log.Ctx(ctx)
		if !readiness.Poll(pollCtx, o.checker, streamKey, o.cfg.ReadyInterval, o.wake) {
			l.Warn().Dur("timeout", o.cfg.ReadyTimeout).Msg("stream playlist not ready, not announcing")
			return nil, nil
		}

		o.activate(ctx, p, streamKey, epoch)
		return nil, nil
	})
}

// activate looks the room up again, since it may have changed while polling.
// The stream is not announced when it was stopped after the publish started.
func (o *Orchestrator) activate(ctx context.Context, p streamkey.Payload, streamKey string, epoch uint64) {
	l := log.Ctx(ctx)

	err := o.registry.Update(func(tx *registry.Tx) error {
		room, err := tx.FindRoom(p.ChannelID, p.RoomTitle)
		if err != nil {
			return ErrRoomNotFound
		}
		if room.Host.ID != "" && room.Host.ID != p.HostID {
			return ErrHostMismatch
		}
		if room.StreamEpoch() != epoch {
			return errStoppedWhilePolling
		}

		room.SetStreamToken(streamKey)
		o.broadcast(ctx, room)
		return nil
	})
	if errors.Is(err, errStoppedWhilePolling) {
		l.Info().Err(err).Msg("not announcing stopped stream")
		return
	}
	if err != nil {
		l.Warn().Err(err).Msg("room changed while waiting for stream")
		return
	}

	l.Info().Msg("stream is live")
	o.notifier.StreamStarted(ctx, p.ChannelID, p.RoomTitle, p.HostID)
}

// OnPublishStop handles the media server's publish-done callback. Invalid
// keys are ignored so the media server's teardown is never blocked; expiry
// is not checked because a stream may outlive its key's TTL.
func (o *Orchestrator) OnPublishStop(ctx context.Context, streamKey string) {
	l := log.Ctx(ctx)
	if streamKey == "" {
		return
	}

	payload, err := o.codec.Verify(streamKey, streamkey.VerifyOptions{IgnoreTTL: true})
	if err != nil {
		l.Debug().Err(err).Msg("ignoring publish stop with invalid key")
		return
	}

	_, cleared, err := o.clear(ctx, payload.ChannelID, payload.RoomTitle)
	if err != nil {
		l.Debug().Err(err).Msg("ignoring publish stop for unknown room")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionStreamStopped, payload.HostID, payload.RoomTitle, "stream stopped by media server")
	if cleared {
		o.notifier.StreamStopped(ctx, payload.ChannelID, payload.RoomTitle, payload.HostID, pubsub.ReasonWebhook)
	}
}

// StopByHost clears a room's stream on request of a connected member.
// The caller is recorded but not required to be the room's host.
func (o *Orchestrator) StopByHost(ctx context.Context, channelID int, roomTitle string, caller domain.Identity) error {
	hostID, cleared, err := o.clear(ctx, channelID, roomTitle)
	if err != nil {
		return ErrNoRoom
	}

	role := "member"
	if caller.ID != "" && caller.ID == hostID {
		role = "host"
	}
	audit.LogWithDetail(ctx, audit.ActionStopByMember, caller.ID, role, "stream stopped from connection")

	if cleared {
		o.notifier.StreamStopped(ctx, channelID, roomTitle, hostID, pubsub.ReasonExplicit)
	}
	return nil
}

// clear removes the room's stream token and broadcasts the change. It
// returns the room's host and whether a token was set.
func (o *Orchestrator) clear(ctx context.Context, channelID int, roomTitle string) (string, bool, error) {
	var (
		hostID  string
		cleared bool
	)
	err := o.registry.Update(func(tx *registry.Tx) error {
		room, err := tx.FindRoom(channelID, roomTitle)
		if err != nil {
			return err
		}
		hostID = room.Host.ID
		cleared = room.StreamToken() != ""
		room.StopStream()
		o.broadcast(ctx, room)
		return nil
	})
	return hostID, cleared, err
}

func (o *Orchestrator) broadcast(ctx context.Context, room *domain.Room) {
	if err := o.hub.BroadcastToRoom(registry.RefOf(room).Key(), domain.NewStreamTokenUpdate(room)); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to broadcast stream update")
	}
}

// Wait blocks until every pending readiness poll has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
