// Package get реализует выдачу слитых настроек текущего пользователя.
package get

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/mazylab/appraiser-account/internal/http/middlewarectx"
	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
)

// Service описывает операции сервиса настроек, нужные для чтения.
type Service interface {
	Load(email string) (models.Settings, error)
	ResolveAPIKey(email, role string) (string, error)
}

// Handler обрабатывает HTTP-запросы чтения настроек.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Настройки текущего пользователя
// @Description Возвращает слитые настройки: пользовательская область плюс системная поверх, и действующий API-ключ.
// @Tags Settings
// @Produce  json
// @Success 200 {object} map[string]any "Слитые настройки"
// @Failure 401 {object} response.ErrorResponse "Нет авторизации"
// @Security BearerAuth
// @Router /settings [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.settings.get"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email, _ := r.Context().Value(middlewarectx.User).(string)
	role, _ := r.Context().Value(middlewarectx.Role).(string)

	merged, err := h.service.Load(email)
	if err != nil {
		log.Error("failed to load settings", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("unexpectedError"))
		return
	}
	apiKey, err := h.service.ResolveAPIKey(email, role)
	if err != nil {
		log.Error("failed to resolve api key", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("unexpectedError"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"settings":          merged,
		"effective_api_key": apiKey,
	}))
}
