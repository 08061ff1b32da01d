// Package chatgateway собирает HTTP-шлюз чата: хранилище, кэш,
// очередь сообщений, сервисы и маршруты.
package chatgateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/chat-gateway/internal/cache"
	"github.com/magabrotheeeer/chat-gateway/internal/config"
	"github.com/magabrotheeeer/chat-gateway/internal/lib/jwt"
	"github.com/magabrotheeeer/chat-gateway/internal/migrations"
	"github.com/magabrotheeeer/chat-gateway/internal/rabbitmq"
	chatservice "github.com/magabrotheeeer/chat-gateway/internal/services/chat"
	conversationservice "github.com/magabrotheeeer/chat-gateway/internal/services/conversation"
	"github.com/magabrotheeeer/chat-gateway/internal/services/dispatch"
	gateservice "github.com/magabrotheeeer/chat-gateway/internal/services/gate"
	"github.com/magabrotheeeer/chat-gateway/internal/services/llm"
	"github.com/magabrotheeeer/chat-gateway/internal/services/realtime"
	"github.com/magabrotheeeer/chat-gateway/internal/services/speech"
	usageservice "github.com/magabrotheeeer/chat-gateway/internal/services/usage"
	"github.com/magabrotheeeer/chat-gateway/internal/storage/repository"
)

type App struct {
	server     *http.Server
	logger     *slog.Logger
	db         *repository.Storage
	cache      *cache.Cache
	dispatcher *dispatch.Dispatcher
	amqpConn   *amqp.Connection
	amqpCh     *amqp.Channel
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.AddressRabbit, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetDispatchQueues())
	if err != nil {
		return nil, err
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	httpClient := &http.Client{Timeout: cfg.TimeoutHTTP}

	gemini := &llm.GeminiProvider{URL: cfg.GeminiURL, APIKey: cfg.GeminiKey, Client: httpClient}
	chatgpt := &llm.ChatGPTProvider{URL: cfg.ChatGPTURL, APIKey: cfg.OpenAIKey, Client: httpClient}
	resolver := llm.NewResolver(db, logger, gemini, chatgpt, cfg.Gating.LLMConfigTTL)

	broadcaster := realtime.New(cacheRedis, logger)

	dispatcher := dispatch.New(logger, cfg.Dispatch.QueueSize, cfg.Dispatch.Workers)
	dispatcher.Start(ctx)
	processor := dispatch.NewProcessor(logger, resolver, db, broadcaster)

	gateService := gateservice.New(db, logger, cfg.Gating.FreeTierSTTSeconds)
	usageService := usageservice.New(db, logger)
	conversationService := conversationservice.New(db, logger)
	chatService := chatservice.New(db, broadcaster, &dispatch.AMQPQueue{Ch: ch}, dispatcher, processor, logger)

	googleSTT := &speech.GoogleSTT{URL: cfg.GoogleSTTURL, APIKey: cfg.GoogleSTTKey, Client: httpClient}
	whisper := &speech.OpenAIWhisper{URL: cfg.OpenAIWhisperURL, APIKey: cfg.OpenAIKey, Client: httpClient}
	synthesizer := &speech.Synthesizer{
		URL:     cfg.GoogleTTSURL,
		APIKey:  cfg.GoogleTTSKey,
		Client:  httpClient,
		Cache:   cacheRedis,
		TTL:     cfg.Gating.TTSCacheTTL,
		Timeout: cfg.SynthTimeout,
		Log:     logger,
	}

	router := chi.NewRouter()

	RegisterRoutes(router, logger, jwtMaker, db,
		chatService, conversationService, gateService, usageService,
		googleSTT, whisper, synthesizer, broadcaster, dispatcher)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:     srv,
		logger:     logger,
		db:         db,
		cache:      cacheRedis,
		dispatcher: dispatcher,
		amqpConn:   conn,
		amqpCh:     ch,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.dispatcher.Stop()
		_ = a.amqpCh.Close()
		_ = a.amqpConn.Close()
		_ = a.db.DB.Close()
		return err
	}
}
