// Package logout реализует HTTP-обработчик выхода из сессии.
// Выход всегда успешен: локальная очистка синхронна, серверный
// разлогин выполняется в фоне и на ответ не влияет.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/mazylab/appraiser-account/internal/http/response"
)

// Service описывает операции сервиса идентификации, нужные для выхода.
type Service interface {
	Logout(ctx context.Context)
}

// Handler обрабатывает HTTP-запросы выхода.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Выход из сессии
// @Description Очищает сессию. Серверный разлогин выполняется в фоне.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Сессия завершена"
// @Security BearerAuth
// @Router /logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	h.service.Logout(r.Context())
	log.Info("logout complete")
	render.JSON(w, r, response.StatusOKWithData(nil))
}
