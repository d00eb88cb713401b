// Package paymentcreate реализует создание заказа PayPal на выбранный план.
package paymentcreate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/mazylab/appraiser-account/internal/http/middlewarectx"
	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/paypal"
	"github.com/mazylab/appraiser-account/internal/services/payment"
)

// Request — структура входных данных для создания заказа.
type Request struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// Service описывает операции платежного сервиса для создания заказа.
type Service interface {
	CreateCheckout(ctx context.Context, email, planID string) (*paypal.CreateOrderResponse, error)
}

// Handler обрабатывает HTTP-запросы создания заказа.
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
// @Summary Создание заказа на подписку
// @Description Создает заказ PayPal на выбранный план и возвращает ссылку одобрения. Сумма берется из каталога планов, не из запроса.
// @Tags Payment
// @Accept  json
// @Produce  json
// @Param request body Request true "Идентификатор плана"
// @Success 200 {object} map[string]any "Созданный заказ"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или неизвестный план"
// @Security BearerAuth
// @Router /payment [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.paymentcreate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email, _ := r.Context().Value(middlewarectx.User).(string)

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

	order, err := h.service.CreateCheckout(r.Context(), email, req.PlanID)
	if err != nil {
		log.Error("failed to create checkout", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unexpectedError"))
		return
	}

	log.Info("checkout created", slog.String("order_id", order.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
		"links":    order.Links,
		"plans":    payment.Plans(),
	}))
}
