package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mementolab/wagate/internal/broadcast"
	"github.com/mementolab/wagate/internal/bus"
	"github.com/mementolab/wagate/internal/config"
	"github.com/mementolab/wagate/internal/engine"
	"github.com/mementolab/wagate/internal/forward"
	"github.com/mementolab/wagate/internal/gateway"
	"github.com/mementolab/wagate/internal/httpapi"
	"github.com/mementolab/wagate/internal/lock"
	"github.com/mementolab/wagate/internal/logging"
	"github.com/mementolab/wagate/internal/observability"
	"github.com/mementolab/wagate/internal/paths"
)

// Module returns the fx module for the gateway daemon, composing all
// providers and lifecycle hooks.
func Module(cfg *config.Config) fx.Option {
	return fx.Module("daemon",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideBus,
			provideMetrics,
			provideLock,
			provideEngineClient,
			provideHub,
			provideForwarder,
			provideGateway,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}
	return logging.New(paths.LogPath(), cfg.Session)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideMetrics() *observability.Metrics {
	return observability.NewMetrics("wagate")
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring instance lock", zap.String("path", paths.LockPath()))
	l, err := lock.Acquire(paths.LockPath())
	if err != nil {
		return nil, err
	}
	logger.Info("instance lock acquired")
	return l, nil
}

func provideEngineClient(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) *engine.Client {
	return engine.New(cfg.Engine.BaseURL, cfg.Engine.APIKey, cfg.Engine.Name, logger, metrics)
}

func provideHub(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) *broadcast.Hub {
	return broadcast.NewHub(cfg.HTTP.AllowAnyOrigin, logger, metrics)
}

func provideForwarder(cfg *config.Config, logger *zap.Logger) *forward.Client {
	return forward.New(cfg.Forwarder.MonitorURL, cfg.Forwarder.Timeout.Duration, logger)
}

func provideGateway(cfg *config.Config, client *engine.Client, b *bus.Bus, hub *broadcast.Hub, fwd *forward.Client, logger *zap.Logger, metrics *observability.Metrics) *gateway.Gateway {
	var forwarder gateway.Forwarder
	if fwd.Enabled() {
		forwarder = fwd
	}
	return gateway.New(cfg, client, b, hub, forwarder, logger, metrics)
}

func provideServer(cfg *config.Config, gw *gateway.Gateway, hub *broadcast.Hub, metrics *observability.Metrics, logger *zap.Logger) *httpapi.Server {
	return httpapi.New(cfg, gw, hub, metrics, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *httpapi.Server, hub *broadcast.Hub, gw *gateway.Gateway, b *bus.Bus, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Relay domain events to websocket clients.
			hub.Relay(context.Background(), b)

			// Start HTTP server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()

			// Background status poll.
			gw.StartMonitor(context.Background())

			// Best-effort session bring-up; never blocks startup.
			go gw.Initialize(context.Background())

			return nil
		},
		OnStop: func(ctx context.Context) error {
			gw.StopMonitor()
			srv.Stop(ctx)
			hub.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
