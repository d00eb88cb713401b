// Package account собирает учетный сервис: выбирает хранилище по
// конфигурации, поднимает зависимости и HTTP-сервер.
//
// Вариант хранилища выбирается ровно один раз на старте: задана строка
// подключения — облачный режим (postgres, redis-кэш), не задана —
// локальный (json-блобы). Дальше весь код работает с одним интерфейсным
// значением, условных ветвлений по режиму в обработчиках нет.
package account

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/mazylab/appraiser-account/internal/cache"
	"github.com/mazylab/appraiser-account/internal/config"
	"github.com/mazylab/appraiser-account/internal/lib/jwt"
	"github.com/mazylab/appraiser-account/internal/migrations"
	"github.com/mazylab/appraiser-account/internal/notify"
	"github.com/mazylab/appraiser-account/internal/paypal"
	"github.com/mazylab/appraiser-account/internal/services/backup"
	"github.com/mazylab/appraiser-account/internal/services/identity"
	"github.com/mazylab/appraiser-account/internal/services/payment"
	"github.com/mazylab/appraiser-account/internal/services/settings"
	"github.com/mazylab/appraiser-account/internal/store"
	"github.com/mazylab/appraiser-account/internal/store/cloudstore"
	"github.com/mazylab/appraiser-account/internal/store/localstore"
)

// App — собранное приложение учетного сервиса.
type App struct {
	server *http.Server
	logger *slog.Logger
	cloud  *cloudstore.Store
}

// New собирает приложение по конфигурации.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Блобы локального хранилища нужны всегда: настройки и резервные
	// копии живут в них независимо от выбранного хранилища пользователей.
	blobs, err := localstore.New(cfg.Storage.LocalDataDir)
	if err != nil {
		return nil, err
	}

	var (
		userStore  store.Store
		mirror     identity.SessionMirror
		usersCache identity.Cache
		cloudStore *cloudstore.Store
	)
	if cfg.Storage.CloudConfigured() {
		cloudStore, err = cloudstore.New(cfg.Storage.ConnectionString)
		if err != nil {
			return nil, err
		}
		if err = migrations.Run(cloudStore.DB, cfg.Storage.MigrationsPath); err != nil {
			return nil, err
		}
		userStore = cloudStore

		if cfg.RedisConnection.AddressRedis != "" {
			cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
			if err != nil {
				return nil, err
			}
			usersCache = cacheRedis
		}
		logger.Info("storage mode selected", slog.String("mode", "cloud"))
	} else {
		userStore = blobs
		mirror = blobs
		logger.Info("storage mode selected", slog.String("mode", "local"),
			slog.String("data_dir", cfg.Storage.LocalDataDir))
	}

	jwtMaker := jwt.NewMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL)

	identityService := identity.New(userStore, mirror, usersCache, jwtMaker,
		cfg.Identity, cfg.Storage.CloudConfigured(), logger)
	settingsService := settings.New(blobs, logger)

	usersBlob, sessionBlob, sysBlob := localstore.BlobNames()
	backupService := backup.New(blobs, usersBlob, sessionBlob, sysBlob, logger)

	dispatcher := notify.New(cfg, logger)

	providerClient := paypal.NewClient(cfg.PayPal.PayPalClientID, cfg.PayPal.PayPalSecret, cfg.PayPal.PayPalAPIURL)
	paymentService := payment.New(providerClient, identityService, dispatcher, settingsService, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker,
		identityService, settingsService, backupService, paymentService, dispatcher)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.TimeoutHTTP,
		WriteTimeout: cfg.HTTPServer.TimeoutHTTP,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		cloud:  cloudStore,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if a.cloud != nil {
			_ = a.cloud.DB.Close()
		}
		return err
	}
}
