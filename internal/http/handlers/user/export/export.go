// Package export реализует выгрузку реестра пользователей в CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store"
)

// Service описывает операции сервиса идентификации, нужные для выгрузки.
type Service interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// Handler обрабатывает HTTP-запросы выгрузки реестра.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Выгрузка реестра пользователей в CSV
// @Description Отдает все учетные записи файлом CSV. Доступно только администратору.
// @Tags Users
// @Produce  text/csv
// @Success 200 {string} string "CSV-файл"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Security BearerAuth
// @Router /users/export [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.export"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		w.WriteHeader(store.HTTPStatus(err))
		render.JSON(w, r, response.Error(store.MessageKey(err)))
		return
	}

	filename := fmt.Sprintf("members_%s.csv", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"email", "name", "phone", "role", "subscription_expiry"})
	for _, u := range users {
		expiry := ""
		if u.SubscriptionExpiry != nil {
			expiry = u.SubscriptionExpiry.Format("2006-01-02")
		}
		_ = cw.Write([]string{u.Email, u.Name, u.Phone, u.Role, expiry})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Error("failed to write csv", sl.Err(err))
		return
	}
	log.Info("roster exported", slog.Int("count", len(users)))
}
