// Package increment реализует HTTP-обработчик централизованного
// резервирования квоты функции. Инкремент выполняется атомарно на
// стороне базы данных; исчерпанный лимит возвращается со статусом 200
// и success=false.
package increment

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
	"github.com/magabrotheeeer/chat-gateway/internal/models"
	"github.com/magabrotheeeer/chat-gateway/internal/services/gate"
)

// Handler управляет HTTP-запросами резервирования квоты.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики резервирования квоты.
type Service interface {
	AtomicCheckAndIncrement(ctx context.Context, userUID string, feature models.FeatureType, amount int) (gate.IncrementResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// Request — тело запроса резервирования квоты.
type Request struct {
	FeatureType string `json:"feature_type" validate:"required,oneof=voice_seconds insights_count"`
	Amount      int    `json:"amount" validate:"required,min=1"`
	UserID      string `json:"user_id" validate:"omitempty,uuid"`
}

// ServeHTTP godoc
// @Summary Зарезервировать квоту функции
// @Description Атомарно проверяет лимит тарифа и увеличивает счётчик использования. Исчерпанный лимит возвращается с success=false и кодом LIMIT_EXCEEDED.
// @Tags Usage
// @Accept  json
// @Produce  json
// @Param request body Request true "Функция и количество"
// @Success 200 {object} response.GateResponse "Результат резервирования"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /usage/increment [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.usage.increment"
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

	result, err := h.service.AtomicCheckAndIncrement(r.Context(),
		userUID, models.FeatureType(req.FeatureType), req.Amount)
	if err != nil {
		log.Error("quota reservation failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not reserve quota"))
		return
	}
	if !result.Success {
		log.Warn("quota denied",
			slog.String("feature", req.FeatureType), slog.String("code", result.ErrorCode))
		render.JSON(w, r, response.GateDenied(result.ErrorCode, result.Reason, result.Remaining, result.Limit))
		return
	}

	log.Info("quota reserved",
		slog.String("feature", req.FeatureType), slog.Int("amount", req.Amount))
	render.JSON(w, r, response.GateAllowed(map[string]any{
		"previous_usage": result.PreviousUsage,
		"new_usage":      result.NewUsage,
		"remaining":      result.Remaining,
		"limit":          result.Limit,
	}))
}
