// Package register реализует HTTP-обработчик самостоятельной регистрации.
//
// Обязательность имени и телефона проверяется валидатором до обращения
// к сервису; повторная проверка на стороне сервиса делает инвариант
// независимым от транспорта. Регистрация не устанавливает сессию.
package register

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store"
)

// Request — структура входных данных для регистрации.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
}

// Service описывает операции сервиса идентификации, нужные для регистрации.
type Service interface {
	Register(ctx context.Context, details models.RegisterDetails) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы регистрации.
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
// @Summary Регистрация пользователя
// @Description Создает учетную запись. Первый пользователь локального режима получает роль admin. Сессия не устанавливается.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные регистрации"
// @Success 200 {object} map[string]any "Созданная запись"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 409 {object} response.ErrorResponse "Email уже занят"
// @Router /register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
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

	user, err := h.service.Register(r.Context(), models.RegisterDetails{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		log.Error("registration failed", sl.Err(err))
		w.WriteHeader(store.HTTPStatus(err))
		render.JSON(w, r, response.Error(store.MessageKey(err)))
		return
	}

	log.Info("registration success", slog.String("email", req.Email))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"user": user}))
}
