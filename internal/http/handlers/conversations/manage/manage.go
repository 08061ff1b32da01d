// Package manage реализует HTTP-обработчик управления беседами.
//
// Операция выбирается query-параметром action; тело запроса — JSON с
// идентификатором беседы и, для части действий, заголовком и режимом.
package manage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/chat-gateway/internal/http/middlewarectx"
	"github.com/magabrotheeeer/chat-gateway/internal/http/response"
	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/models"
	"github.com/magabrotheeeer/chat-gateway/internal/services/conversation"
	"github.com/magabrotheeeer/chat-gateway/internal/storage/repository"
)

// Handler управляет HTTP-запросами действий над беседами.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики управления беседами.
type Service interface {
	Create(ctx context.Context, userUID, title, mode string) (*models.Conversation, error)
	GetOrCreate(ctx context.Context, userUID, chatID, title, mode string) (*models.Conversation, error)
	List(ctx context.Context, userUID string) ([]*models.Conversation, error)
	Delete(ctx context.Context, userUID, id string) error
	Share(ctx context.Context, ownerUID, id string) error
	Unshare(ctx context.Context, ownerUID, id string) error
	Join(ctx context.Context, userUID, id string) (*models.Conversation, error)
	Rename(ctx context.Context, userUID, id, title string) error
	Touch(ctx context.Context, id string) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Request — тело запроса действия над беседой.
type Request struct {
	ConversationID string `json:"conversation_id" validate:"omitempty,uuid"`
	Title          string `json:"title"`
	Mode           string `json:"mode"`
}

// ServeHTTP godoc
// @Summary Выполнить действие над беседой
// @Description Действие задаётся параметром action: create_conversation, get_or_create_conversation, list_conversations, delete_conversation, share_conversation, unshare_conversation, join_conversation, update_conversation_title, update_conversation_activity.
// @Tags Conversations
// @Accept  json
// @Produce  json
// @Param action query string true "Имя действия"
// @Param request body Request false "Параметры действия"
// @Success 200 {object} response.Response "Результат действия"
// @Failure 400 {object} response.ErrorResponse "Неизвестное действие или некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Беседа не публична"
// @Failure 404 {object} response.ErrorResponse "Беседа не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /conversations [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.conversations.manage"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.AuthorizedUser(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			log.Error("failed to decode request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	action := r.URL.Query().Get("action")
	log = log.With(slog.String("action", action))

	var (
		data any
		err  error
	)
	switch action {
	case "create_conversation":
		data, err = h.service.Create(r.Context(), userUID, req.Title, req.Mode)
	case "get_or_create_conversation":
		data, err = h.service.GetOrCreate(r.Context(), userUID, req.ConversationID, req.Title, req.Mode)
	case "list_conversations":
		data, err = h.service.List(r.Context(), userUID)
	case "delete_conversation":
		err = h.requireConversation(req, func(id string) error {
			return h.service.Delete(r.Context(), userUID, id)
		})
	case "share_conversation":
		err = h.requireConversation(req, func(id string) error {
			return h.service.Share(r.Context(), userUID, id)
		})
	case "unshare_conversation":
		err = h.requireConversation(req, func(id string) error {
			return h.service.Unshare(r.Context(), userUID, id)
		})
	case "join_conversation":
		if req.ConversationID == "" {
			err = errMissingConversationID
			break
		}
		data, err = h.service.Join(r.Context(), userUID, req.ConversationID)
	case "update_conversation_title":
		if req.Title == "" {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("missing or invalid field: title"))
			return
		}
		err = h.requireConversation(req, func(id string) error {
			return h.service.Rename(r.Context(), userUID, id, req.Title)
		})
	case "update_conversation_activity":
		err = h.requireConversation(req, func(id string) error {
			return h.service.Touch(r.Context(), id)
		})
	default:
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown action"))
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, errMissingConversationID):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing or invalid field: conversation_id"))
		return
	case errors.Is(err, repository.ErrConversationNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("conversation not found"))
		return
	case errors.Is(err, conversation.ErrNotPublic):
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("conversation is not public"))
		return
	default:
		log.Error("conversation action failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not perform action"))
		return
	}

	log.Info("conversation action complete")
	render.JSON(w, r, response.StatusOKWithData(data))
}

var errMissingConversationID = errors.New("missing conversation id")

func (h *Handler) requireConversation(req Request, fn func(id string) error) error {
	if req.ConversationID == "" {
		return errMissingConversationID
	}
	return fn(req.ConversationID)
}
