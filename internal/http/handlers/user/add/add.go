// Package add реализует HTTP-обработчик административного создания пользователя.
// Путь доступен только локальному режиму: облачное хранилище отвечает
// отказом operationNotSupported.
package add

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

// Request — структура входных данных для создания пользователя.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=general paid admin"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// Service описывает операции сервиса идентификации, нужные для создания.
type Service interface {
	AddUser(ctx context.Context, user models.User, password string) error
}

// Handler обрабатывает HTTP-запросы создания пользователя.
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
// @Summary Создание пользователя администратором
// @Description Создает учетную запись с заданной ролью. В облачном режиме операция недоступна.
// @Tags Users
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные пользователя"
// @Success 200 {object} response.Response "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 405 {object} response.ErrorResponse "Операция недоступна в этом режиме"
// @Failure 409 {object} response.ErrorResponse "Email уже занят"
// @Security BearerAuth
// @Router /users [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.add"

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

	user := models.User{
		Email: req.Email,
		Role:  req.Role,
		Name:  req.Name,
		Phone: req.Phone,
	}
	if err := h.service.AddUser(r.Context(), user, req.Password); err != nil {
		log.Error("failed to add user", sl.Err(err))
		w.WriteHeader(store.HTTPStatus(err))
		render.JSON(w, r, response.Error(store.MessageKey(err)))
		return
	}

	log.Info("user added", slog.String("email", req.Email), slog.String("role", req.Role))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
