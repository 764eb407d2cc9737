// Package main implements trackerd, the real-time order tracking daemon for
// the Village Eats marketplace. It serves the WebSocket tracking endpoint,
// relays order events from NATS and exposes Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sivakumar999/village-eats/assignment"
	"github.com/sivakumar999/village-eats/auth"
	"github.com/sivakumar999/village-eats/bridge"
	"github.com/sivakumar999/village-eats/config"
	"github.com/sivakumar999/village-eats/metric"
	"github.com/sivakumar999/village-eats/natsclient"
	"github.com/sivakumar999/village-eats/track"
)

const (
	Version = "0.1.0"
	appName = "trackerd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, exit := parseFlags()
	if exit {
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.Validate {
		slog.Info("configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	slog.Info("starting tracker",
		"version", Version,
		"port", cfg.Server.Port,
		"config_path", cliCfg.ConfigPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsRegistry := metric.NewMetricsRegistry()

	var verifier *auth.Verifier
	if cfg.Auth.Secret != "" {
		verifier = auth.NewVerifier([]byte(cfg.Auth.Secret))
	} else {
		logger.Warn("no auth secret configured, all connections will be anonymous")
	}

	assignments, redisClient := setupAssignments(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	hub := track.NewHub(track.Config{
		Port:              cfg.Server.Port,
		Path:              cfg.Server.Path,
		HeartbeatInterval: cfg.Server.HeartbeatInterval.Std(),
		WriteTimeout:      cfg.Server.WriteTimeout.Std(),
		Verifier:          verifier,
		Assignments:       assignments,
		MetricsRegistry:   metricsRegistry,
		Logger:            logger,
	})
	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("start hub: %w", err)
	}
	defer func() { _ = hub.Stop(10 * time.Second) }()

	natsConn, orderBridge, err := setupBridge(ctx, cfg, hub, logger)
	if err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}
	if natsConn != nil {
		defer func() { _ = natsConn.Close(context.Background()) }()
	}
	if orderBridge != nil {
		defer func() { _ = orderBridge.Stop(5 * time.Second) }()
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.Metrics.Port != 0 {
		metricsServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metricsHandler(cfg, metricsRegistry),
		}
		group.Go(func() error {
			logger.Info("metrics listener started", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received")
		return nil
	})

	err = group.Wait()
	logger.Info("tracker stopped")
	return err
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// setupAssignments wires the Redis-backed assignment store when configured.
// Without it, agent position pings broadcast to every tracked order.
func setupAssignments(ctx context.Context, cfg *config.Config, logger *slog.Logger) (assignment.Store, *redis.Client) {
	if cfg.Redis.Addr == "" {
		logger.Info("no redis configured, agent positions broadcast to all tracked orders")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, continuing anyway", "addr", cfg.Redis.Addr, "error", err)
	}

	return assignment.NewRedisStore(client, cfg.Redis.KeyPrefix), client
}

// setupBridge connects to NATS and starts the order event bridge. An empty
// NATS URL leaves the bridge disabled; events then arrive only over the
// socket itself.
func setupBridge(ctx context.Context, cfg *config.Config, hub *track.Hub, logger *slog.Logger) (*natsclient.Client, *bridge.Bridge, error) {
	if cfg.NATS.URL == "" {
		logger.Info("no nats configured, bridge disabled")
		return nil, nil, nil
	}

	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait.Std()),
		natsclient.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, nil, err
	}

	b := bridge.New(client, hub.Router(), logger)
	if err := b.Start(ctx); err != nil {
		_ = client.Close(context.Background())
		return nil, nil, err
	}
	return client, b, nil
}

func metricsHandler(cfg *config.Config, registry *metric.MetricsRegistry) http.Handler {
	mux := http.NewServeMux()
	path := cfg.Metrics.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, registry.Handler())
	return mux
}
