package account

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/mazylab/appraiser-account/internal/http/handlers/auth/login"
	"github.com/mazylab/appraiser-account/internal/http/handlers/auth/logout"
	"github.com/mazylab/appraiser-account/internal/http/handlers/auth/register"
	"github.com/mazylab/appraiser-account/internal/http/handlers/auth/session"
	backupexport "github.com/mazylab/appraiser-account/internal/http/handlers/backup/export"
	backuprestore "github.com/mazylab/appraiser-account/internal/http/handlers/backup/restore"
	"github.com/mazylab/appraiser-account/internal/http/handlers/health"
	"github.com/mazylab/appraiser-account/internal/http/handlers/payment/paymentcreate"
	"github.com/mazylab/appraiser-account/internal/http/handlers/payment/paymentwebhook"
	settingsget "github.com/mazylab/appraiser-account/internal/http/handlers/settings/get"
	settingssave "github.com/mazylab/appraiser-account/internal/http/handlers/settings/save"
	"github.com/mazylab/appraiser-account/internal/http/handlers/subscription/extend"
	"github.com/mazylab/appraiser-account/internal/http/handlers/user/add"
	userexport "github.com/mazylab/appraiser-account/internal/http/handlers/user/export"
	"github.com/mazylab/appraiser-account/internal/http/handlers/user/list"
	usernotify "github.com/mazylab/appraiser-account/internal/http/handlers/user/notify"
	"github.com/mazylab/appraiser-account/internal/http/handlers/user/profile"
	"github.com/mazylab/appraiser-account/internal/http/handlers/user/remove"
	"github.com/mazylab/appraiser-account/internal/http/handlers/user/update"
	"github.com/mazylab/appraiser-account/internal/http/middlewarectx"
	"github.com/mazylab/appraiser-account/internal/lib/jwt"
	"github.com/mazylab/appraiser-account/internal/notify"
	backupservice "github.com/mazylab/appraiser-account/internal/services/backup"
	identityservice "github.com/mazylab/appraiser-account/internal/services/identity"
	paymentservice "github.com/mazylab/appraiser-account/internal/services/payment"
	settingsservice "github.com/mazylab/appraiser-account/internal/services/settings"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker jwt.Maker,
	identityService *identityservice.Service,
	settingsService *settingsservice.Service,
	backupService *backupservice.Service,
	paymentService *paymentservice.Service,
	dispatcher *notify.Dispatcher,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, identityService).ServeHTTP)
		r.Post("/login", login.New(logger, identityService).ServeHTTP)
		r.Get("/session", session.New(logger, identityService).ServeHTTP)
		r.Get("/health", health.New().ServeHTTP)
		r.Post("/payments/webhook", paymentwebhook.New(logger, paymentService).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Post("/logout", logout.New(logger, identityService).ServeHTTP)
			r.Patch("/profile", profile.New(logger, identityService).ServeHTTP)
			r.Get("/settings", settingsget.New(logger, settingsService).ServeHTTP)
			r.Put("/settings", settingssave.New(logger, settingsService).User)
			r.Post("/payment", paymentcreate.New(logger, paymentService).ServeHTTP)

			// Административные конечные точки
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireAdmin(logger))

				r.Get("/users", list.New(logger, identityService).ServeHTTP)
				r.Post("/users", add.New(logger, identityService).ServeHTTP)
				r.Get("/users/export", userexport.New(logger, identityService).ServeHTTP)
				r.Patch("/users/{email}", update.New(logger, identityService).ServeHTTP)
				r.Delete("/users/{email}", remove.New(logger, identityService).ServeHTTP)
				r.Post("/users/{email}/notify", usernotify.New(logger, identityService, dispatcher, settingsService).ServeHTTP)
				r.Post("/users/{email}/extend", extend.New(logger, identityService).ServeHTTP)
				r.Put("/settings/system", settingssave.New(logger, settingsService).System)
				r.Get("/backup", backupexport.New(logger, backupService).ServeHTTP)
				r.Post("/backup/restore", backuprestore.New(logger, backupService).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
