// Command telegate runs the telemetry ingestion gateway: a TCP server that
// accepts tracker connections, acknowledges their frames and fans decoded
// reports out to the configured collaborators.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cyberinferno/telemetry-gateway/config"
	"github.com/cyberinferno/telemetry-gateway/devicecache"
	"github.com/cyberinferno/telemetry-gateway/dispatch"
	"github.com/cyberinferno/telemetry-gateway/gateway"
	"github.com/cyberinferno/telemetry-gateway/logger"
	"github.com/cyberinferno/telemetry-gateway/session"
)

const serviceName = "telegate"

// cacheCleanupInterval is how often the in-memory profile cache evicts
// expired entries. Irrelevant when Redis backs the cache.
const cacheCleanupInterval = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to TOML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
	}

	log := logger.NewZerologLogger(zerolog.New(os.Stderr), serviceName, level)

	var redisClient *redis.Client
	var profiles devicecache.Cache
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		profiles = devicecache.NewRedisCache(redisClient)
		log.Info("device profile cache backed by redis",
			logger.Field{Key: "addr", Value: cfg.RedisAddr})
	} else {
		profiles = devicecache.NewMemoryCache(cfg.DeviceCacheTTL, cacheCleanupInterval)
	}

	collaborators := []dispatch.Collaborator{dispatch.NewLogCollaborator(log)}
	if cfg.WebhookURL != "" {
		collaborators = append(collaborators, dispatch.NewWebhookNotifier(cfg.WebhookURL))
		log.Info("alert webhook enabled", logger.Field{Key: "url", Value: cfg.WebhookURL})
	}

	router := &dispatch.Router{
		Log:           log,
		Collaborators: collaborators,
		Profiles:      profiles,
		ProfileTTL:    cfg.DeviceCacheTTL,
	}

	srv := &gateway.Server{
		Log:                   log,
		Addr:                  cfg.ListenAddr(),
		AckMode:               cfg.EffectiveAckMode(),
		ClassificationTimeout: cfg.ClassificationTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		Registry:              session.NewRegistry(cfg.MaxConnections),
		Router:                router,
		Stats:                 gateway.NewStats(time.Now()),
	}

	if err := srv.Start(); err != nil {
		return err
	}
	log.Info("gateway listening",
		logger.Field{Key: "addr", Value: cfg.ListenAddr()},
		logger.Field{Key: "ack_mode", Value: int(cfg.EffectiveAckMode())},
		logger.Field{Key: "max_connections", Value: cfg.MaxConnections})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info("shutting down", logger.Field{Key: "signal", Value: sig.String()})

	srv.Stop()
	return nil
}
