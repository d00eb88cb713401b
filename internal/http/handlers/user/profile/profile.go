// Package profile реализует HTTP-обработчик редактирования собственного профиля.
//
// Пользователь правит только имя и телефон своей записи; email берется из
// JWT запроса, а не из тела. Роль и срок подписки меняются исключительно
// административным патчем записи.
package profile

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/mazylab/appraiser-account/internal/http/middlewarectx"
	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store"
)

// Service описывает операции сервиса идентификации, нужные для профиля.
type Service interface {
	UpdateUser(ctx context.Context, email string, patch models.UserPatch) (*models.User, error)
}

// Request структура запроса на редактирование собственного профиля.
// Отсутствующее поле не трогает сохраненное значение.
type Request struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// Handler обрабатывает HTTP-запросы редактирования собственного профиля.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Редактирование собственного профиля
// @Description Меняет имя и телефон записи текущего пользователя. Роль и срок подписки через этот путь недоступны.
// @Tags Users
// @Accept  json
// @Produce  json
// @Param request body Request true "Изменяемые поля профиля"
// @Success 200 {object} map[string]any "Обновленная запись"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Нет аутентификации"
// @Failure 422 {object} response.ErrorResponse "Нет изменяемых полей"
// @Security BearerAuth
// @Router /profile [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.profile"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email, _ := r.Context().Value(middlewarectx.User).(string)
	if email == "" {
		log.Error("missing authenticated identity in request context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("missing or invalid authorization header"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if req.Name == nil && req.Phone == nil {
		log.Error("empty profile patch")
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("no profile fields provided"))
		return
	}

	patch := models.UserPatch{Name: req.Name, Phone: req.Phone}
	user, err := h.service.UpdateUser(r.Context(), email, patch)
	if err != nil {
		log.Error("failed to update profile", sl.Err(err))
		w.WriteHeader(store.HTTPStatus(err))
		render.JSON(w, r, response.Error(store.MessageKey(err)))
		return
	}

	log.Info("profile updated", slog.String("email", email))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"user": user}))
}
