// Package notify реализует отправку письма о статусе учетной записи.
// Администратор отправляет пользователю его роль и срок подписки,
// копия уходит на системный адрес.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store"
)

// Service описывает операции сервиса идентификации, нужные для письма.
type Service interface {
	GetUser(ctx context.Context, email string) (*models.User, error)
}

// Mailer — доставка письма через диспетчер уведомлений.
type Mailer interface {
	Send(ctx context.Context, msg models.EmailMessage) error
}

// SystemSettingsReader — доступ к почтовым учетным данным системной области.
type SystemSettingsReader interface {
	SystemSettings() (models.SystemSettings, error)
}

// Handler обрабатывает HTTP-запросы отправки статусного письма.
type Handler struct {
	log      *slog.Logger
	service  Service
	mailer   Mailer
	settings SystemSettingsReader
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, mailer Mailer, settings SystemSettingsReader) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		mailer:   mailer,
		settings: settings,
	}
}

// ServeHTTP godoc
// @Summary Письмо о статусе учетной записи
// @Description Отправляет пользователю письмо с его ролью и сроком подписки, копия на системный адрес.
// @Tags Users
// @Produce  json
// @Param email path string true "Email пользователя"
// @Success 200 {object} response.Response "Письмо отправлено"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Сбой отправки"
// @Security BearerAuth
// @Router /users/{email}/notify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.notify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email := chi.URLParam(r, "email")

	user, err := h.service.GetUser(r.Context(), email)
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		w.WriteHeader(store.HTTPStatus(err))
		render.JSON(w, r, response.Error(store.MessageKey(err)))
		return
	}

	sys, err := h.settings.SystemSettings()
	if err != nil {
		log.Error("failed to read system settings", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("unexpectedError"))
		return
	}

	expiry := "none"
	if user.SubscriptionExpiry != nil {
		expiry = user.SubscriptionExpiry.Format("2006-01-02")
	}
	text := fmt.Sprintf(
		"Dear %s,\n\nYour account status:\n\nRole: %s\nSubscription valid until: %s",
		user.Name, user.Role, expiry)

	msg := models.EmailMessage{
		SMTPHost: sys.SMTPHost,
		SMTPPort: sys.SMTPPort,
		SMTPUser: sys.SMTPUser,
		SMTPPass: sys.SMTPPass,
		To:       user.Email,
		CC:       sys.SystemEmail,
		Subject:  "Account status",
		Text:     text,
	}
	if err := h.mailer.Send(r.Context(), msg); err != nil {
		log.Error("failed to send status email", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("unexpectedError"))
		return
	}

	log.Info("status email sent", slog.String("to", user.Email))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
