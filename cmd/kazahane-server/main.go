// Command kazahane-server runs one instance of the room server fabric:
// the dispatcher, server task, and the HTTP surface serving WebSocket
// upgrades, health checks, and Prometheus metrics.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/rustyguts/kazahane/internal/config"
	"github.com/rustyguts/kazahane/internal/connection"
	"github.com/rustyguts/kazahane/internal/dispatch"
	"github.com/rustyguts/kazahane/internal/httpapi"
	"github.com/rustyguts/kazahane/internal/logging"
	"github.com/rustyguts/kazahane/internal/pubsub"
	"github.com/rustyguts/kazahane/internal/server"
	"github.com/rustyguts/kazahane/internal/statestore"
	"github.com/rustyguts/kazahane/internal/types"
)

func main() {
	cfg := config.Load()
	logging.Initialize(cfg.LogLevel, cfg.LogFormat)
	log := logging.Component("main")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	opts, err := redis.ParseURL(cfg.RedisAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("parse REDIS_ADDR")
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	bus := pubsub.NewRedisPubSub(redisClient)
	store := statestore.NewRedisStateStore(redisClient)
	d := dispatch.New()
	serverID := types.NewServerID()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	accepted := make(chan connection.Carrier, dispatch.MailboxCapacity)
	go server.Task(ctx, serverID, d, bus, store, accepted)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	httpapi.New(accepted).Register(e)

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	log.Info().Str("server_id", serverID.String()).Str("port", cfg.Port).Msg("listening")
	if err := e.Start("0.0.0.0:" + cfg.Port); err != nil {
		if ctx.Err() != nil {
			log.Info().Msg("shutting down")
			return
		}
		log.Fatal().Err(err).Msg("bind failed")
	}
}
