// Package export реализует выгрузку резервной копии локального режима.
package export

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
)

// Service описывает операции сервиса резервного копирования для выгрузки.
type Service interface {
	Export() (*models.Backup, error)
}

// Handler обрабатывает HTTP-запросы выгрузки резервной копии.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Выгрузка резервной копии
// @Description Отдает три блоба локального хранилища одним json-документом. Доступно только администратору локального режима.
// @Tags Backup
// @Produce  json
// @Success 200 {object} models.Backup "Файл резервной копии"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Security BearerAuth
// @Router /backup [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.backup.export"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	b, err := h.service.Export()
	if err != nil {
		log.Error("failed to export backup", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("unexpectedError"))
		return
	}

	log.Info("backup exported", slog.String("bundle_id", b.BundleID))
	w.Header().Set("Content-Disposition", "attachment; filename=backup_"+b.CreatedAt.Format("20060102_150405")+".json")
	render.JSON(w, r, b)
}
