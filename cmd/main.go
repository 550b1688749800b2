package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"syncroom/internal/app/registry"
	"syncroom/internal/app/server"
	"syncroom/internal/app/worker"
	"syncroom/internal/config"
	"syncroom/internal/core/services"
	"syncroom/internal/platform/logger"
	"syncroom/internal/platform/telemetry"
	"syncroom/internal/plugins/postgres"
	redisPlugin "syncroom/internal/plugins/redis"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting broker")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "DSN", cfg.Postgres.DSN)
		return
	}
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL)
		return
	}
	log.Info("redis connected")

	// Adapters
	msgRepo := postgres.NewMessageRepo(pdb)
	wbRepo := postgres.NewWhiteboardRepo(pdb)
	classRepo := postgres.NewClassroomRepo(pdb)
	presStore := redisPlugin.NewRedisPresenceStore(rdb, cfg.Broker.LivenessTimeout)
	msgQueue := redisPlugin.NewRedisMessageQueue(rdb)

	// Core services
	hub := registry.NewRegistry()
	txManager := services.NewTxManager(pdb)
	chatSvc := services.NewChatService(log, msgQueue, hub, msgRepo, txManager)
	whiteboardSvc := services.NewWhiteboardService(log, wbRepo, hub)
	signalingSvc := services.NewSignalingService(log, hub)
	sessionSvc := services.NewSessionService(
		log, hub, hub, presStore, classRepo, whiteboardSvc, signalingSvc,
		cfg.Broker.HeartbeatInterval, cfg.Broker.LivenessTimeout,
	)
	tokenSvc := services.NewTokenService(cfg.SecretToken)

	// Workers
	roomWorker := worker.NewRoomWorker(log, msgQueue, chatSvc, cfg.Worker.MessageGroup)
	hub.RunWorker(roomWorker.Run)
	flusher := worker.NewSnapshotFlusher(log, whiteboardSvc, wbRepo, cfg.Broker.SnapshotFlushInterval, cfg.Broker.SnapshotFlushRetries)
	go flusher.Run(ctx)

	// Server
	srv := server.NewServer(log, cfg, tokenSvc, sessionSvc, chatSvc, whiteboardSvc, signalingSvc, hub)
	if err := srv.Start(); err != nil {
		log.Error("server stopped", "err", err)
	}
}
