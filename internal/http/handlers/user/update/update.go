// Package update реализует HTTP-обработчик частичного обновления пользователя.
//
// Тело запроса — патч: отсутствующие поля не трогают запись, поэтому
// присутствующий, но пустой ключ никогда не затирает сохраненные значения.
// Сброс даты подписки выполняется только явным флагом.
package update

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store"
)

// Service описывает операции сервиса идентификации, нужные для обновления.
type Service interface {
	UpdateUser(ctx context.Context, email string, patch models.UserPatch) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы обновления пользователя.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Частичное обновление пользователя
// @Description Сливает переданные поля в запись. Отсутствующие поля не изменяются.
// @Tags Users
// @Accept  json
// @Produce  json
// @Param email path string true "Email пользователя"
// @Param request body models.UserPatch true "Патч записи"
// @Success 200 {object} map[string]any "Обновленная запись"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Security BearerAuth
// @Router /users/{email} [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.update"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email := chi.URLParam(r, "email")

	var patch models.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if patch.Role != nil && !models.ValidRole(*patch.Role) {
		log.Error("invalid role in patch", slog.String("role", *patch.Role))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("field Role has an unsupported value"))
		return
	}

	user, err := h.service.UpdateUser(r.Context(), email, patch)
	if err != nil {
		log.Error("failed to update user", sl.Err(err))
		w.WriteHeader(store.HTTPStatus(err))
		render.JSON(w, r, response.Error(store.MessageKey(err)))
		return
	}

	log.Info("user updated", slog.String("email", email))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"user": user}))
}
