// Package main содержит точку входа воркера фоновых задач LLM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/magabrotheeeer/chat-gateway/internal/cache"
	"github.com/magabrotheeeer/chat-gateway/internal/config"
	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/rabbitmq"
	"github.com/magabrotheeeer/chat-gateway/internal/services/dispatch"
	"github.com/magabrotheeeer/chat-gateway/internal/services/llm"
	"github.com/magabrotheeeer/chat-gateway/internal/services/realtime"
	"github.com/magabrotheeeer/chat-gateway/internal/storage/repository"
)

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("starting dispatch-worker", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := rabbitmq.Connect(cfg.AddressRabbit, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("success to connect to RabbitMQ", slog.String("URL", cfg.AddressRabbit))
	defer func() {
		_ = conn.Close()
	}()

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetDispatchQueues())
	if err != nil {
		logger.Error("failed to setup RabbitMQ channel", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("success to setup RabbitMQ channel")
	defer func() {
		_ = ch.Close()
	}()

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		logger.Error("failed to connect to storage", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = db.DB.Close()
	}()
	if err = waitForDB(db); err != nil {
		logger.Error("database is not ready", sl.Err(err))
		os.Exit(1)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		logger.Error("failed to connect to redis", sl.Err(err))
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: cfg.TimeoutHTTP}
	gemini := &llm.GeminiProvider{URL: cfg.GeminiURL, APIKey: cfg.GeminiKey, Client: httpClient}
	chatgpt := &llm.ChatGPTProvider{URL: cfg.ChatGPTURL, APIKey: cfg.OpenAIKey, Client: httpClient}
	resolver := llm.NewResolver(db, logger, gemini, chatgpt, cfg.Gating.LLMConfigTTL)

	broadcaster := realtime.New(cacheRedis, logger)
	processor := dispatch.NewProcessor(logger, resolver, db, broadcaster)

	if err = rabbitmq.ConsumerMessage(ctx, ch, "dispatch.llm", processor.Handle); err != nil {
		logger.Error("failed to start consumer", sl.Err(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("dispatch-worker shutting down gracefully")
}
