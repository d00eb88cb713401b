// Package remove реализует HTTP-обработчик удаления пользователя.
// Удаление текущей авторизованной учетки запрещено.
package remove

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/mazylab/appraiser-account/internal/http/middlewarectx"
	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/store"
)

// Service описывает операции сервиса идентификации, нужные для удаления.
type Service interface {
	DeleteUser(ctx context.Context, email string) error
}

// Handler обрабатывает HTTP-запросы удаления пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Удаление пользователя
// @Description Удаляет учетную запись. Удаление собственной записи отклоняется.
// @Tags Users
// @Produce  json
// @Param email path string true "Email пользователя"
// @Success 200 {object} response.Response "Пользователь удален"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "Нельзя удалить собственную запись"
// @Security BearerAuth
// @Router /users/{email} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.remove"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email := chi.URLParam(r, "email")

	// Личность запроса берется из JWT, а не из серверной сессии:
	// процесс мог перезапуститься или обслуживать другого клиента.
	requester, _ := r.Context().Value(middlewarectx.User).(string)
	if requester != "" && requester == email {
		log.Error("attempt to delete own account", slog.String("email", email))
		w.WriteHeader(store.HTTPStatus(store.ErrSelfDelete))
		render.JSON(w, r, response.Error(store.MessageKey(store.ErrSelfDelete)))
		return
	}

	if err := h.service.DeleteUser(r.Context(), email); err != nil {
		log.Error("failed to delete user", sl.Err(err))
		w.WriteHeader(store.HTTPStatus(err))
		render.JSON(w, r, response.Error(store.MessageKey(err)))
		return
	}

	log.Info("user deleted", slog.String("email", email))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
