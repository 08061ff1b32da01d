// Package transcribegoogle реализует HTTP-обработчик распознавания речи
// через Google Speech-to-Text с проверкой голосового лимита.
//
// Проверка выполняется дважды: до распознавания (быстрый отказ
// исчерпавшим лимит) и после, уже с фактической длительностью от
// провайдера. Отказы по лимиту возвращаются со статусом 200 и
// success=false, чтобы клиент отличал их от ошибок сервера. Голосовой
// тип беседы запускает фоновую цепочку LLM, не задерживая ответ.
package transcribegoogle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/chat-gateway/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-gateway/internal/http/response"
	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/models"
	"github.com/magabrotheeeer/chat-gateway/internal/services/chat"
	"github.com/magabrotheeeer/chat-gateway/internal/services/dispatch"
	"github.com/magabrotheeeer/chat-gateway/internal/services/gate"
	"github.com/magabrotheeeer/chat-gateway/internal/services/speech"
)

const maxUploadBytes = 25 << 20

// Gate проверяет голосовой лимит пользователя.
type Gate interface {
	CheckFreeTierSTTAccess(ctx context.Context, userUID string, seconds int) (gate.CheckResult, error)
}

// Transcriber распознаёт аудио в текст.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, language string) (*speech.Transcription, error)
}

// UsageTracker учитывает использование функции с повторами при сбоях.
type UsageTracker interface {
	IncrementFeatureUsage(ctx context.Context, userUID string, feature models.FeatureType, amount int)
}

// VoiceFlow запускает фоновую цепочку обработки голосовой реплики.
type VoiceFlow interface {
	RunVoiceFlow(in chat.SendInput)
}

// Enqueuer ставит фоновую задачу в локальную очередь.
type Enqueuer interface {
	Enqueue(task dispatch.Task) bool
}

// Handler управляет HTTP-запросами распознавания речи через Google.
type Handler struct {
	log    *slog.Logger
	gate   Gate
	stt    Transcriber
	usage  UsageTracker
	voice  VoiceFlow
	runner Enqueuer
}

// New создает новый Handler с переданными зависимостями.
func New(log *slog.Logger, g Gate, stt Transcriber, usage UsageTracker, voice VoiceFlow, runner Enqueuer) *Handler {
	return &Handler{
		log:    log,
		gate:   g,
		stt:    stt,
		usage:  usage,
		voice:  voice,
		runner: runner,
	}
}

// voiceDeniedMessage формирует пользовательский текст отказа по лимиту.
func voiceDeniedMessage(limit *int) string {
	if limit == nil {
		return "Voice limit exceeded for current billing cycle."
	}
	return fmt.Sprintf(
		"You've used your %d minutes of voice for this billing cycle. Upgrade to Premium for unlimited voice features.",
		*limit/60)
}

func gateDenial(res gate.CheckResult) response.GateResponse {
	if res.ErrorCode == gate.CodeLimitExceeded {
		return response.GateDenied("VOICE_LIMIT_EXCEEDED", voiceDeniedMessage(res.Limit), res.Remaining, res.Limit)
	}
	return response.GateDenied("VOICE_LIMIT_CHECK_FAILED",
		"Unable to verify voice usage right now. Please try again in a moment.", nil, nil)
}

// ServeHTTP godoc
// @Summary Распознать речь через Google STT
// @Description Принимает аудио multipart-формой, проверяет голосовой лимит и возвращает транскрипт. Для голосовых бесед запускает фоновую цепочку LLM. Заголовок X-Warmup: 1 прогревает обработчик без распознавания.
// @Tags Speech
// @Accept  mpfd
// @Produce  json
// @Param file formData file true "Аудиозапись"
// @Param chat_id formData string false "Идентификатор беседы"
// @Param mode formData string true "Режим беседы"
// @Success 200 {object} response.GateResponse "Транскрипт либо отказ по лимиту"
// @Failure 400 {object} response.ErrorResponse "Некорректная форма"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка распознавания"
// @Router /speech/transcribe/google [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.speech.transcribegoogle"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if r.Header.Get("X-Warmup") == "1" {
		render.JSON(w, r, map[string]string{"status": "warmed up"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		log.Error("failed to parse multipart form", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("expected multipart/form-data"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing file in form-data"))
		return
	}
	defer func() { _ = file.Close() }()

	mode := r.FormValue("mode")
	if mode == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing or invalid field: mode"))
		return
	}

	audio, err := io.ReadAll(file)
	if err != nil || len(audio) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("empty audio data"))
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	userUID, ok := middlewarectx.AuthorizedUser(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	if claimed := r.FormValue("user_id"); claimed != "" && claimed != userUID {
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("user id does not match token"))
		return
	}

	preCheck, err := h.gate.CheckFreeTierSTTAccess(r.Context(), userUID, 1)
	if err != nil {
		log.Error("voice limit pre-check failed", sl.Err(err))
		render.JSON(w, r, gateDenial(gate.CheckResult{ErrorCode: gate.CodeRPCError}))
		return
	}
	if !preCheck.Allowed {
		log.Warn("voice limit exceeded before transcription",
			slog.String("reason", preCheck.Reason))
		render.JSON(w, r, gateDenial(preCheck))
		return
	}

	language := r.FormValue("language")
	result, err := h.stt.Transcribe(r.Context(), audio, mimeType, language)
	if err != nil {
		log.Error("transcription failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("transcription failed"))
		return
	}

	transcript := strings.TrimSpace(result.Transcript)
	if transcript == "" {
		render.JSON(w, r, response.GateAllowed(map[string]string{"transcript": ""}))
		return
	}

	// Фактическая длительность от провайдера первична; для wav есть запасной
	// расчёт по размеру PCM-буфера.
	duration := result.DurationSeconds
	if duration == 0 && strings.Contains(mimeType, "wav") {
		duration = speech.WAVDuration(audio)
	}

	if duration > 0 {
		postCheck, err := h.gate.CheckFreeTierSTTAccess(r.Context(), userUID, duration)
		if err != nil {
			log.Error("voice limit post-check failed", sl.Err(err))
			render.JSON(w, r, gateDenial(gate.CheckResult{ErrorCode: gate.CodeRPCError}))
			return
		}
		if !postCheck.Allowed {
			log.Warn("voice limit exceeded after transcription",
				slog.String("reason", postCheck.Reason), slog.Int("duration_seconds", duration))
			render.JSON(w, r, gateDenial(postCheck))
			return
		}

		seconds := duration
		h.runner.Enqueue(dispatch.Task{
			Kind: "usage-increment",
			Run: func(taskCtx context.Context) error {
				h.usage.IncrementFeatureUsage(taskCtx, userUID, models.FeatureVoiceSeconds, seconds)
				return nil
			},
		})
	}

	chatID := r.FormValue("chat_id")
	if r.FormValue("chattype") == "voice" && chatID != "" {
		h.voice.RunVoiceFlow(chat.SendInput{
			ChatID:   chatID,
			Text:     transcript,
			Mode:     mode,
			ChatType: "voice",
			UserUID:  userUID,
			UserName: r.FormValue("user_name"),
		})
		render.JSON(w, r, response.GateAllowed(nil))
		return
	}

	log.Info("transcription complete",
		slog.Int("transcript_length", len(transcript)), slog.Int("duration_seconds", duration))
	render.JSON(w, r, response.GateAllowed(map[string]any{
		"transcript":       transcript,
		"duration_seconds": duration,
	}))
}
