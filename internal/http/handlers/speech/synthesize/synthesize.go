// Package synthesize реализует HTTP-обработчик синтеза речи.
//
// Длительность тарифицируется по оценке от числа слов и резервируется
// атомарно до обращения к провайдеру: параллельные запросы одного
// пользователя не могут израсходовать лимит дважды. Готовое аудио
// рассылается подписчикам беседы событием tts-ready.
package synthesize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/chat-gateway/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-gateway/internal/http/response"
	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/models"
	"github.com/magabrotheeeer/chat-gateway/internal/services/dispatch"
	"github.com/magabrotheeeer/chat-gateway/internal/services/gate"
	"github.com/magabrotheeeer/chat-gateway/internal/services/speech"
)

// Gate атомарно резервирует квоту функции.
type Gate interface {
	AtomicCheckAndIncrement(ctx context.Context, userUID string, feature models.FeatureType, amount int) (gate.IncrementResult, error)
}

// Synthesizer синтезирует речь из текста.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (string, error)
}

// Broadcaster рассылает событие о готовом аудио.
type Broadcaster interface {
	TTSReady(ctx context.Context, chatID, audioBase64, mimeType string) error
}

// Enqueuer ставит фоновую задачу в локальную очередь.
type Enqueuer interface {
	Enqueue(task dispatch.Task) bool
}

// Handler управляет HTTP-запросами синтеза речи.
type Handler struct {
	log       *slog.Logger
	gate      Gate
	tts       Synthesizer
	broadcast Broadcaster
	runner    Enqueuer
	validate  *validator.Validate
}

// New создает новый Handler с переданными зависимостями.
func New(log *slog.Logger, g Gate, tts Synthesizer, broadcast Broadcaster, runner Enqueuer) *Handler {
	return &Handler{
		log:       log,
		gate:      g,
		tts:       tts,
		broadcast: broadcast,
		runner:    runner,
		validate:  validator.New(),
	}
}

// Request — тело запроса синтеза речи.
type Request struct {
	ChatID string `json:"chat_id" validate:"omitempty,uuid"`
	Text   string `json:"text" validate:"required"`
	Voice  string `json:"voice"`
	UserID string `json:"user_id" validate:"omitempty,uuid"`
}

// ServeHTTP godoc
// @Summary Синтезировать речь из текста
// @Description Резервирует голосовую квоту по оценочной длительности, синтезирует аудио и рассылает его подписчикам беседы. Возвращает аудио в base64.
// @Tags Speech
// @Accept  json
// @Produce  json
// @Param request body Request true "Текст и голос"
// @Success 200 {object} response.GateResponse "Аудио либо отказ по лимиту"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка синтеза"
// @Router /speech/synthesize [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.speech.synthesize"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if r.Header.Get("X-Warmup") == "1" {
		render.JSON(w, r, map[string]string{"status": "warmed up"})
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID, ok := middlewarectx.AuthorizedUser(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	if req.UserID != "" && req.UserID != userUID {
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("user id does not match token"))
		return
	}

	estimate := speech.EstimateSpeechDuration(req.Text)
	reserve, err := h.gate.AtomicCheckAndIncrement(r.Context(), userUID, models.FeatureVoiceSeconds, estimate)
	if err != nil {
		log.Error("voice quota reservation failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not reserve voice quota"))
		return
	}
	if !reserve.Success {
		log.Warn("voice quota denied", slog.String("code", reserve.ErrorCode))
		msg := reserve.Reason
		if msg == "" {
			msg = "Voice limit exceeded for current billing cycle."
		}
		render.JSON(w, r, response.GateDenied(reserve.ErrorCode, msg, reserve.Remaining, reserve.Limit))
		return
	}

	audio, err := h.tts.Synthesize(r.Context(), req.Text, req.Voice)
	if err != nil {
		log.Error("speech synthesis failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error(fmt.Sprintf("synthesis failed: %v", err)))
		return
	}

	if req.ChatID != "" {
		chatID := req.ChatID
		h.runner.Enqueue(dispatch.Task{
			Kind: "tts-broadcast",
			Run: func(taskCtx context.Context) error {
				return h.broadcast.TTSReady(taskCtx, chatID, audio, speech.SynthesizedMimeType)
			},
		})
	}

	log.Info("speech synthesized",
		slog.Int("text_length", len(req.Text)), slog.Int("estimated_seconds", estimate))
	render.JSON(w, r, response.GateAllowed(map[string]any{
		"audio":             audio,
		"mime_type":         speech.SynthesizedMimeType,
		"estimated_seconds": estimate,
	}))
}
