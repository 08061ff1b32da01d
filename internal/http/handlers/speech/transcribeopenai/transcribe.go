// Package transcribeopenai реализует HTTP-обработчик распознавания речи
// через OpenAI Whisper. Лимиты здесь не проверяются: этот путь
// используется бесплатной транскрипцией без тарификации секунд.
package transcribeopenai

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/chat-gateway/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-gateway/internal/http/response"
	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/services/chat"
)

const maxUploadBytes = 25 << 20

// Transcriber распознаёт аудио в текст.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error)
}

// VoiceFlow запускает фоновую цепочку обработки голосовой реплики.
type VoiceFlow interface {
	RunVoiceFlow(in chat.SendInput)
}

// Handler управляет HTTP-запросами распознавания речи через Whisper.
type Handler struct {
	log   *slog.Logger
	stt   Transcriber
	voice VoiceFlow
}

// New создает новый Handler с переданными зависимостями.
func New(log *slog.Logger, stt Transcriber, voice VoiceFlow) *Handler {
	return &Handler{log: log, stt: stt, voice: voice}
}

// ServeHTTP godoc
// @Summary Распознать речь через OpenAI Whisper
// @Description Принимает аудио multipart-формой и возвращает транскрипт. Для голосовых бесед запускает фоновую цепочку LLM и возвращает минимальный ответ.
// @Tags Speech
// @Accept  mpfd
// @Produce  json
// @Param file formData file true "Аудиозапись"
// @Param chat_id formData string false "Идентификатор беседы"
// @Param mode formData string false "Режим беседы"
// @Success 200 {object} map[string]any "Транскрипт"
// @Failure 400 {object} response.ErrorResponse "Некорректная форма"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка распознавания"
// @Router /speech/transcribe/openai [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.speech.transcribeopenai"
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

	audio, err := io.ReadAll(file)
	if err != nil || len(audio) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("empty audio data"))
		return
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

	filename := header.Filename
	if filename == "" {
		filename = "recording.webm"
	}
	transcript, err := h.stt.Transcribe(r.Context(), audio, filename, r.FormValue("language"))
	if err != nil {
		log.Error("transcription failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("transcription failed"))
		return
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		render.JSON(w, r, map[string]string{"transcript": ""})
		return
	}

	chatID := r.FormValue("chat_id")
	if r.FormValue("chattype") == "voice" && chatID != "" {
		h.voice.RunVoiceFlow(chat.SendInput{
			ChatID:   chatID,
			Text:     transcript,
			Mode:     r.FormValue("mode"),
			ChatType: "voice",
			UserUID:  userUID,
			UserName: r.FormValue("user_name"),
		})
		render.JSON(w, r, map[string]bool{"success": true})
		return
	}

	log.Info("transcription complete", slog.Int("transcript_length", len(transcript)))
	render.JSON(w, r, map[string]string{"transcript": transcript})
}
