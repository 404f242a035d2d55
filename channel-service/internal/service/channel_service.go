package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/audit"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/domain"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/events"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/hub"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/presence"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/publish"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/registry"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/relay"
	"github.com/weiawesome/wes-io-channels/pkg/log"
)

type channelService struct {
	hub          *hub.Hub
	registry     *registry.Registry
	presence     *presence.Coordinator
	relay        *relay.Relay
	orchestrator *publish.Orchestrator
	notifier     *events.Notifier
}

// NewChannelService creates a new ChannelService instance.
func NewChannelService(
	h *hub.Hub,
	reg *registry.Registry,
	coordinator *presence.Coordinator,
	rl *relay.Relay,
	orchestrator *publish.Orchestrator,
	notifier *events.Notifier,
) ChannelService {
	return &channelService{
		hub:          h,
		registry:     reg,
		presence:     coordinator,
		relay:        rl,
		orchestrator: orchestrator,
		notifier:     notifier,
	}
}

func (s *channelService) HandleHello(ctx context.Context, c *hub.Client) error {
	return c.SendMessage(&domain.ChannelListMessage{
		Type:     domain.MsgTypeChannelList,
		Channels: s.registry.Channels(),
	})
}

func (s *channelService) HandleSubscribe(ctx context.Context, c *hub.Client, msg *domain.SubscribeChannelMessage) error {
	err := s.registry.Update(func(tx *registry.Tx) error {
		_, err := tx.FindChannel(msg.ChannelID)
		return err
	})
	if err != nil {
		return c.SendMessage(domain.NewAck(msg.AckID, errorMessage(err)))
	}

	c.Session.Subscribe(msg.ChannelID)
	s.hub.Subscribe(c, msg.ChannelID)
	return c.SendMessage(domain.NewAck(msg.AckID, ""))
}

func (s *channelService) HandleJoinRoom(ctx context.Context, c *hub.Client, msg *domain.JoinRoomMessage) error {
	snapshot, err := s.presence.Join(ctx, msg.ChannelID, msg.RoomTitle, msg.Identity, c.ID)
	if err != nil {
		return c.SendMessage(&domain.JoinAckMessage{AckMessage: domain.NewAck(msg.AckID, errorMessage(err))})
	}

	c.Session.SetIdentity(msg.Identity)
	audit.LogWithDetail(ctx, audit.ActionJoinRoom, msg.Identity.ID, msg.RoomTitle, "joined room")

	return c.SendMessage(&domain.JoinAckMessage{
		AckMessage:   domain.NewAck(msg.AckID, ""),
		RoomSnapshot: snapshot,
	})
}

func (s *channelService) HandlePostMessage(ctx context.Context, c *hub.Client, msg *domain.PostMessageMessage) error {
	s.relay.Post(ctx, msg.Message)
	return nil
}

func (s *channelService) HandleCreateRoom(ctx context.Context, c *hub.Client, msg *domain.CreateRoomMessage) error {
	var info domain.RoomInfo
	err := s.registry.Update(func(tx *registry.Tx) error {
		room, err := tx.CreateRoom(msg.ChannelID, msg.RoomTitle, msg.Host)
		if err != nil {
			return err
		}
		info = room.Info()

		// Queued under the lock so subscribers see rooms in creation order.
		return s.hub.BroadcastToChannel(msg.ChannelID, &domain.RoomCreatedMessage{
			Type:      domain.MsgTypeRoomCreated,
			ChannelID: msg.ChannelID,
			Room:      info,
		})
	})
	if err != nil {
		return c.SendMessage(&domain.CreateRoomAckMessage{AckMessage: domain.NewAck(msg.AckID, errorMessage(err))})
	}

	audit.LogWithDetail(ctx, audit.ActionCreateRoom, msg.Host.ID, msg.RoomTitle, "room created")
	s.notifier.RoomCreated(ctx, info)

	return c.SendMessage(&domain.CreateRoomAckMessage{
		AckMessage: domain.NewAck(msg.AckID, ""),
		Room:       &info,
	})
}

func (s *channelService) HandleStopStream(ctx context.Context, c *hub.Client, msg *domain.StopStreamMessage) error {
	if err := s.orchestrator.StopByHost(ctx, msg.ChannelID, msg.RoomTitle, c.Session.Identity()); err != nil {
		return c.SendMessage(domain.NewAck(msg.AckID, errorMessage(err)))
	}
	return c.SendMessage(domain.NewAck(msg.AckID, ""))
}

func (s *channelService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	s.presence.Leave(ctx, c.ID)
	return nil
}

// errorMessage returns the client-facing text for err.
func errorMessage(err error) string {
	var regErr *registry.Error
	if errors.As(err, &regErr) {
		return regErr.Message
	}

	l := log.L()
	l.Error().Err(err).Msg("unexpected channel error")
	return "Internal error"
}
