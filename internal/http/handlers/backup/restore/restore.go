// Package restore реализует восстановление из резервной копии.
// Блобы перезаписываются целиком, без слияния с текущим содержимым.
package restore

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/mazylab/appraiser-account/internal/http/response"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
)

// Service описывает операции сервиса резервного копирования для восстановления.
type Service interface {
	Restore(data []byte) error
}

// Handler обрабатывает HTTP-запросы восстановления.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Восстановление из резервной копии
// @Description Перезаписывает блобы локального хранилища содержимым копии. Доступно только администратору локального режима.
// @Tags Backup
// @Accept  json
// @Produce  json
// @Success 200 {object} response.Response "Копия восстановлена"
// @Failure 400 {object} response.ErrorResponse "Некорректный файл копии"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Security BearerAuth
// @Router /backup/restore [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.backup.restore"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.service.Restore(data); err != nil {
		log.Error("failed to restore backup", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	log.Info("backup restored")
	render.JSON(w, r, response.StatusOKWithData(nil))
}
