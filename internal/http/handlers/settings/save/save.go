// Package save реализует запись областей настроек.
//
// Пользовательская область пишется владельцем, системная — только
// администратором; проверку роли для системной области делает маршрут.
package save

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/mazylab/appraiser-account/internal/http/middlewarectx"
	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
)

// Service описывает операции сервиса настроек, нужные для записи.
type Service interface {
	SaveUserSettings(email string, us models.UserSettings) error
	SaveSystemSettings(sys models.SystemSettings) error
}

// Handler обрабатывает HTTP-запросы записи настроек.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// User godoc
// @Summary Сохранение пользовательской области настроек
// @Description Записывает пользовательскую область текущего пользователя целиком.
// @Tags Settings
// @Accept  json
// @Produce  json
// @Param request body models.UserSettings true "Пользовательские настройки"
// @Success 200 {object} response.Response "Настройки сохранены"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Security BearerAuth
// @Router /settings [put]
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.settings.save.user"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email, _ := r.Context().Value(middlewarectx.User).(string)

	var us models.UserSettings
	if err := json.NewDecoder(r.Body).Decode(&us); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.service.SaveUserSettings(email, us); err != nil {
		log.Error("failed to save user settings", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("unexpectedError"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(nil))
}

// System godoc
// @Summary Сохранение системной области настроек
// @Description Записывает системную область целиком. Доступно только администратору.
// @Tags Settings
// @Accept  json
// @Produce  json
// @Param request body models.SystemSettings true "Системные настройки"
// @Success 200 {object} response.Response "Настройки сохранены"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Security BearerAuth
// @Router /settings/system [put]
func (h *Handler) System(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.settings.save.system"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var sys models.SystemSettings
	if err := json.NewDecoder(r.Body).Decode(&sys); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.service.SaveSystemSettings(sys); err != nil {
		log.Error("failed to save system settings", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("unexpectedError"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(nil))
}
