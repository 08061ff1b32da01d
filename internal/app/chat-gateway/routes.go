// Package chatgateway предоставляет маршруты для основного приложения.
package chatgateway

import (
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/chat-gateway/internal/http/handlers/chat/send"
	"github.com/magabrotheeeer/chat-gateway/internal/http/handlers/conversations/manage"
	"github.com/magabrotheeeer/chat-gateway/internal/http/handlers/health"
	"github.com/magabrotheeeer/chat-gateway/internal/http/handlers/speech/synthesize"
	"github.com/magabrotheeeer/chat-gateway/internal/http/handlers/speech/transcribegoogle"
	"github.com/magabrotheeeer/chat-gateway/internal/http/handlers/speech/transcribeopenai"
	"github.com/magabrotheeeer/chat-gateway/internal/http/handlers/usage/get"
	"github.com/magabrotheeeer/chat-gateway/internal/http/handlers/usage/increment"
	"github.com/magabrotheeeer/chat-gateway/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-gateway/internal/lib/jwt"
	chatservice "github.com/magabrotheeeer/chat-gateway/internal/services/chat"
	conversationservice "github.com/magabrotheeeer/chat-gateway/internal/services/conversation"
	"github.com/magabrotheeeer/chat-gateway/internal/services/dispatch"
	gateservice "github.com/magabrotheeeer/chat-gateway/internal/services/gate"
	"github.com/magabrotheeeer/chat-gateway/internal/services/realtime"
	"github.com/magabrotheeeer/chat-gateway/internal/services/speech"
	usageservice "github.com/magabrotheeeer/chat-gateway/internal/services/usage"
	"github.com/magabrotheeeer/chat-gateway/internal/storage/repository"

	"log/slog"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker jwt.Maker, db *repository.Storage,
	chatService *chatservice.Service, conversationService *conversationservice.Service,
	gateService *gateservice.Service, usageService *usageservice.Service,
	googleSTT *speech.GoogleSTT, whisper *speech.OpenAIWhisper, synthesizer *speech.Synthesizer,
	broadcaster *realtime.Broadcaster, dispatcher *dispatch.Dispatcher) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		middlewarectx.CORSMiddleware,
	)

	r.Get("/healthz", health.New(logger, db.DB).ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/chat/send", send.New(logger, chatService).ServeHTTP)
			r.Post("/speech/transcribe/google",
				transcribegoogle.New(logger, gateService, googleSTT, usageService, chatService, dispatcher).ServeHTTP)
			r.Post("/speech/transcribe/openai",
				transcribeopenai.New(logger, whisper, chatService).ServeHTTP)
			r.Post("/speech/synthesize",
				synthesize.New(logger, gateService, synthesizer, broadcaster, dispatcher).ServeHTTP)
			r.Post("/conversations", manage.New(logger, conversationService).ServeHTTP)
			r.Get("/usage", get.New(logger, usageService).ServeHTTP)
			r.Post("/usage/increment", increment.New(logger, gateService).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
