package handler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/config"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/domain"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/events"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/hub"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/presence"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/publish"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/registry"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/relay"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/service"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/streamkey"
	"github.com/weiawesome/wes-io-channels/pkg/middleware"
	"github.com/weiawesome/wes-io-channels/pkg/pubsub"
)

const testSecret = "handler-secret"

type readyChecker struct {
	ready atomic.Bool
}

func (c *readyChecker) Ready(context.Context, string) (bool, error) {
	return c.ready.Load(), nil
}

type stack struct {
	engine  *gin.Engine
	reg     *registry.Registry
	codec   *streamkey.Codec
	checker *readyChecker
	orch    *publish.Orchestrator
}

func newStack(t *testing.T, auth *middleware.AuthMiddleware) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := hub.NewHub(config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       5 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 65536,
	})
	go h.Run()
	t.Cleanup(h.Stop)

	reg := registry.NewDefault()
	notifier := events.NewNotifier(pubsub.NoopPublisher{})
	codec := streamkey.NewCodec(testSecret)
	checker := &readyChecker{}
	orch := publish.NewOrchestrator(reg, codec, checker, h, publish.Config{
		ReadyTimeout:  200 * time.Millisecond,
		ReadyInterval: 5 * time.Millisecond,
	}, publish.WithNotifier(notifier))
	t.Cleanup(orch.Wait)

	svc := service.NewChannelService(h, reg,
		presence.NewCoordinator(reg, h, notifier),
		relay.New(reg, h),
		orch, notifier)

	origins := []string{"https://app.example"}
	r := gin.New()
	r.Use(CORS(origins))
	NewHandler(reg, codec, time.Hour, orch, auth).RegisterRoutes(r)
	NewWSHandler(h, svc, []string{"*"}).RegisterRoutes(r)
	NewHealthHandler("test").RegisterRoutes(r)

	return &stack{engine: r, reg: reg, codec: codec, checker: checker, orch: orch}
}

func (s *stack) createRoom(t *testing.T, channelID int, title, hostID string) {
	t.Helper()
	require.NoError(t, s.reg.Update(func(tx *registry.Tx) error {
		_, err := tx.CreateRoom(channelID, title, domain.Identity{ID: hostID, Name: hostID})
		return err
	}))
}
