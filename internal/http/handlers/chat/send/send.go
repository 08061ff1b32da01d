// Package send реализует HTTP-обработчик приёма сообщений беседы.
//
// Handler принимает одиночное сообщение либо пакет сообщений, валидирует
// их, сверяет идентификатор пользователя с токеном и передаёт сообщение
// сервису разветвления. Ответ возвращается сразу, не дожидаясь фоновых
// веток (сохранение, вызов LLM, рассылка событий).
package send

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/chat-gateway/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-gateway/internal/http/response"
	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/services/chat"
)

// Handler управляет HTTP-запросами приёма сообщений беседы.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики приёма сообщений.
type Service interface {
	Send(ctx context.Context, in chat.SendInput) (*chat.SendResult, error)
	SendBatch(ctx context.Context, base chat.SendInput, msgs []chat.BatchMessage) (*chat.SendResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// BatchItem — элемент пакетной вставки сообщений.
type BatchItem struct {
	Role        string          `json:"role" validate:"required,oneof=user assistant"`
	Text        string          `json:"text" validate:"required"`
	Mode        string          `json:"mode"`
	ClientMsgID string          `json:"client_msg_id"`
	Meta        json.RawMessage `json:"meta"`
}

// Request — тело запроса приёма сообщения. Непустой messages переключает
// обработчик в пакетный режим, поле text тогда игнорируется.
type Request struct {
	ChatID      string          `json:"chat_id" validate:"required,uuid"`
	Text        string          `json:"text"`
	Mode        string          `json:"mode" validate:"required"`
	ChatType    string          `json:"chattype"`
	Role        string          `json:"role" validate:"omitempty,oneof=user assistant"`
	UserID      string          `json:"user_id" validate:"omitempty,uuid"`
	UserName    string          `json:"user_name"`
	ClientMsgID string          `json:"client_msg_id"`
	Analyze     bool            `json:"analyze"`
	Meta        json.RawMessage `json:"meta"`
	Messages    []BatchItem     `json:"messages" validate:"omitempty,dive"`
}

// ServeHTTP godoc
// @Summary Принять сообщение беседы
// @Description Сохраняет сообщение и запускает фоновые ветки: вызов LLM и рассылку событий. Пакет сообщений передаётся полем messages.
// @Tags Chat
// @Accept  json
// @Produce  json
// @Param request body Request true "Сообщение или пакет сообщений"
// @Success 200 {object} response.Response "Сообщение принято"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Идентификатор пользователя не совпадает с токеном"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при сохранении"
// @Router /chat/send [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.send"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if len(req.Messages) == 0 && req.Text == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing or invalid field: text"))
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
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	if req.UserID != "" && req.UserID != userUID {
		log.Error("user id mismatch", slog.String("claimed", req.UserID))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("user id does not match token"))
		return
	}

	userName := req.UserName
	if userName == "" {
		userName = middlewarectx.AuthorizedUsername(r.Context())
	}
	base := chat.SendInput{
		ChatID:      req.ChatID,
		Text:        req.Text,
		Mode:        req.Mode,
		ChatType:    req.ChatType,
		Role:        req.Role,
		UserUID:     userUID,
		UserName:    userName,
		ClientMsgID: req.ClientMsgID,
		Analyze:     req.Analyze,
		Meta:        req.Meta,
	}

	var (
		result *chat.SendResult
		err    error
	)
	if len(req.Messages) > 0 {
		msgs := make([]chat.BatchMessage, 0, len(req.Messages))
		for _, m := range req.Messages {
			msgs = append(msgs, chat.BatchMessage{
				Role:        m.Role,
				Text:        m.Text,
				Mode:        m.Mode,
				ClientMsgID: m.ClientMsgID,
				Meta:        m.Meta,
			})
		}
		result, err = h.service.SendBatch(r.Context(), base, msgs)
	} else {
		result, err = h.service.Send(r.Context(), base)
	}
	if err != nil {
		log.Error("failed to save message", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not save message"))
		return
	}

	log.Info("message accepted",
		slog.String("chat_id", req.ChatID), slog.Bool("llm_started", result.LLMStarted))
	render.JSON(w, r, response.StatusOKWithData(result))
}
