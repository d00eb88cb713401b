// Package extend реализует административное продление подписки.
//
// Новая дата считается как max(сейчас, текущее истечение) + дни:
// продление действующей подписки стыкуется к её концу, продление
// истекшей — к текущему моменту. Роль повышается до paid.
package extend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/policy"
	"github.com/mazylab/appraiser-account/internal/store"
)

// Request — структура входных данных для продления.
type Request struct {
	Days int `json:"days" validate:"required,gt=0"`
}

// Service описывает операции сервиса идентификации, нужные для продления.
type Service interface {
	GetUser(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, email string, patch models.UserPatch) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы продления подписки.
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
// @Summary Продление подписки
// @Description Продлевает подписку на заданное число дней от max(сейчас, текущее истечение) и повышает роль до paid.
// @Tags Subscription
// @Accept  json
// @Produce  json
// @Param email path string true "Email пользователя"
// @Param request body Request true "Число дней продления"
// @Success 200 {object} map[string]any "Обновленная запись"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Security BearerAuth
// @Router /users/{email}/extend [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.extend"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email := chi.URLParam(r, "email")

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

	user, err := h.service.GetUser(r.Context(), email)
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		w.WriteHeader(store.HTTPStatus(err))
		render.JSON(w, r, response.Error(store.MessageKey(err)))
		return
	}

	newExpiry := policy.Extend(time.Now(), user.SubscriptionExpiry, req.Days)
	rolePaid := models.RolePaid
	updated, err := h.service.UpdateUser(r.Context(), email, models.UserPatch{
		Role:               &rolePaid,
		SubscriptionExpiry: &newExpiry,
	})
	if err != nil {
		log.Error("failed to update user", sl.Err(err))
		w.WriteHeader(store.HTTPStatus(err))
		render.JSON(w, r, response.Error(store.MessageKey(err)))
		return
	}

	log.Info("subscription extended",
		slog.String("email", email),
		slog.Int("days", req.Days),
		slog.Time("expires", newExpiry))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"user": updated}))
}
