// Package session реализует HTTP-обработчик восстановления сессии на старте.
//
// Токен сессии передается в заголовке Authorization. Просроченная или
// нечитаемая сессия — не ошибка: клиент стартует анонимным.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/models"
)

// Service описывает операции сервиса идентификации, нужные для восстановления.
type Service interface {
	RestoreSession(ctx context.Context, token string) *models.User
}

// Handler обрабатывает HTTP-запросы восстановления сессии.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Восстановление сессии
// @Description Восстанавливает сессию по токену. По таймауту или ошибке возвращает анонимное состояние, а не ошибку.
// @Tags Auth
// @Produce  json
// @Success 200 {object} map[string]any "Запись пользователя либо null"
// @Security BearerAuth
// @Router /session [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.session"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	user := h.service.RestoreSession(r.Context(), token)
	if user == nil {
		log.Info("session restore returned anonymous state")
	} else {
		log.Info("session restored", slog.String("email", user.Email))
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"user": user}))
}
