package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chatservice "ecoexchange/internal/app/services/chat"
	domainchat "ecoexchange/internal/domain/chat"
	"ecoexchange/internal/infra/broker/kafka"
	"ecoexchange/internal/infra/config"
	mongodb "ecoexchange/internal/infra/db/mongo"
	ginserver "ecoexchange/internal/infra/http/gin"
	"ecoexchange/internal/infra/obs"
	"ecoexchange/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
		cfg.Env = env
		cfg.HTTPAddr = getenv("HTTP_ADDR", ":8080")
		cfg.StoreMode = "memory"
		cfg.ShutdownTimeout = 5 * time.Second
	}

	messages, ready, cleanup, err := buildMessageStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("message store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var publisher chatservice.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			logger.Warn("kafka producer init failed, events disabled", "error", err)
		} else {
			defer producer.Close()
			publisher = producer
			logger.Info("kafka producer connected", "brokers", cfg.KafkaBrokers)
		}
	}

	chat := &chatservice.Service{
		Messages:  messages,
		Publisher: publisher,
		Topic:     cfg.KafkaTopic,
		Logger:    logger,
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Ready: ready}, ginserver.Handlers{
		Chat:            ginserver.ChatHandler{Chat: chat, Logger: logger},
		IdentityHandler: ginserver.IdentityMiddleware{}.Handle,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store", cfg.StoreMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

func buildMessageStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (domainchat.Repository, func() error, func(), error) {
	if cfg.StoreMode == "memory" {
		logger.Warn("using in-memory message store; messages will not survive restarts")
		return memory.NewMessageRepository(), nil, func() {}, nil
	}
	client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, nil, nil, err
	}
	repo := mongodb.NewMessageRepository(client.DB)
	indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := repo.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("index bootstrap failed", "error", err)
	}
	ready := func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx)
	}
	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("mongo disconnect failed", "error", err)
		}
	}
	return repo, ready, cleanup, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
