package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/config"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/events"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/handler"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/hub"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/presence"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/publish"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/readiness"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/registry"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/relay"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/service"
	"github.com/weiawesome/wes-io-channels/channel-service/internal/streamkey"
	pkgconfig "github.com/weiawesome/wes-io-channels/pkg/config"
	"github.com/weiawesome/wes-io-channels/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-channels/pkg/log"
	"github.com/weiawesome/wes-io-channels/pkg/middleware"
	"github.com/weiawesome/wes-io-channels/pkg/pubsub"
	"github.com/weiawesome/wes-io-channels/pkg/storage"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, v, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "channel-service"})
	logger := pkglog.L()

	pkgconfig.Watch(v, func(v *viper.Viper) {
		level := v.GetString("log.level")
		pkglog.SetLevel(level)
		logger.Info().Str("level", level).Msg("log level reloaded")
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize event publisher
	publisher, err := pubsub.NewPublisher(cfg.Events)
	if err != nil {
		logger.Warn().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to create event publisher, lifecycle events disabled")
		publisher = pubsub.NoopPublisher{}
	}
	defer publisher.Close()
	notifier := events.NewNotifier(publisher)

	// Initialize readiness probe
	checker, wake, err := newReadiness(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize readiness checker")
	}
	if wake != nil {
		defer wake.Close()
	}

	if cfg.StreamKey.Secret == "" {
		logger.Warn().Msg("stream key secret is not set, stream keys cannot be issued or verified")
	}
	codec := streamkey.NewCodec(cfg.StreamKey.Secret)

	// Initialize hub
	reg := registry.NewDefault()
	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run()
	defer wsHub.Stop()

	// Initialize services
	opts := []publish.Option{publish.WithNotifier(notifier)}
	if wake != nil {
		opts = append(opts, publish.WithWakeups(wake))
	}
	orchestrator := publish.NewOrchestrator(reg, codec, checker, wsHub, publish.Config{
		PublishTTL:    cfg.StreamKey.PublishTTL,
		ReadyTimeout:  cfg.Readiness.Timeout,
		ReadyInterval: cfg.Readiness.Interval,
	}, opts...)

	channelSvc := service.NewChannelService(
		wsHub,
		reg,
		presence.NewCoordinator(reg, wsHub, notifier),
		relay.New(reg, wsHub),
		orchestrator,
		notifier,
	)

	// Initialize auth middleware
	var authMiddleware *middleware.AuthMiddleware
	if cfg.Auth.JWTSecret != "" {
		manager, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create jwt manager")
		}
		authMiddleware = middleware.NewAuthMiddleware(manager)
	} else {
		logger.Warn().Msg("auth.jwt_secret is empty, stream key issuance is unauthenticated")
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	r.Use(handler.CORS(cfg.CORS.AllowedOrigins))

	handler.NewHealthHandler(version).RegisterRoutes(r)
	handler.NewHandler(reg, codec, cfg.StreamKey.TTL, orchestrator, authMiddleware).RegisterRoutes(r)
	handler.NewWSHandler(wsHub, channelSvc, cfg.CORS.AllowedOrigins).RegisterRoutes(r)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr).
			Str("readiness", cfg.Readiness.Driver).
			Str("events", cfg.Events.Driver).
			Msg("channel-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down channel-service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
	}

	orchestrator.Wait()
	logger.Info().Msg("channel-service stopped")
}

// newReadiness builds the playlist checker for the configured driver. The
// watcher is only returned for the local driver with watching enabled.
func newReadiness(ctx context.Context, cfg *config.Config) (readiness.Checker, *readiness.Watcher, error) {
	switch cfg.Readiness.Driver {
	case "http", "":
		return readiness.NewHTTPChecker(cfg.Readiness.HLSBaseURL), nil, nil
	case "local", "s3":
		storageCfg := cfg.Storage
		storageCfg.Driver = cfg.Readiness.Driver
		store, err := storage.New(ctx, storageCfg)
		if err != nil {
			return nil, nil, err
		}
		checker := readiness.NewStorageChecker(store)
		if cfg.Readiness.Driver != "local" || !cfg.Readiness.Watch {
			return checker, nil, nil
		}
		watcher, err := readiness.NewWatcher(storageCfg.Local.BasePath)
		if err != nil {
			return nil, nil, err
		}
		return checker, watcher, nil
	default:
		return nil, nil, fmt.Errorf("unknown readiness driver %q", cfg.Readiness.Driver)
	}
}
