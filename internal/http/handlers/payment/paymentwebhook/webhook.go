// Package paymentwebhook реализует завершение покупки: capture
// одобренного плательщиком заказа и применение продления.
package paymentwebhook

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
)

// Payload — уведомление об одобренном заказе.
type Payload struct {
	OrderID string `json:"order_id" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	PlanID  string `json:"plan_id" validate:"required"`
}

// Service описывает операции платежного сервиса для завершения покупки.
type Service interface {
	CompleteCheckout(ctx context.Context, orderID, email, planID string) (*models.User, error)
}

// Handler обрабатывает уведомления о платеже.
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
// @Summary Завершение покупки подписки
// @Description Выполняет capture одобренного заказа, продлевает подписку и повышает роль до paid.
// @Tags Payment
// @Accept  json
// @Produce  json
// @Param request body Payload true "Данные одобренного заказа"
// @Success 200 {object} map[string]any "Обновленная запись пользователя"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или незавершенный capture"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.paymentwebhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var payload Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	user, err := h.service.CompleteCheckout(r.Context(), payload.OrderID, payload.Email, payload.PlanID)
	if err != nil {
		log.Error("failed to complete checkout", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unexpectedError"))
		return
	}

	log.Info("checkout completed",
		slog.String("order_id", payload.OrderID),
		slog.String("email", payload.Email))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"user": user}))
}
