// Package scheduler собирает приложение планировщика уведомлений.
// Планировщик работает только с облачным хранилищем: локальный режим
// однопроцессный и фоновых уведомлений не рассылает.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/mazylab/appraiser-account/internal/config"
	"github.com/mazylab/appraiser-account/internal/rabbitmq"
	notifierservice "github.com/mazylab/appraiser-account/internal/services/notifier"
	"github.com/mazylab/appraiser-account/internal/store/cloudstore"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *notifierservice.SchedulerService
	conn             *amqp.Connection
	ch               *amqp.Channel
	db               *cloudstore.Store
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if !cfg.Storage.CloudConfigured() {
		return nil, fmt.Errorf("scheduler requires cloud storage mode")
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.AddressRabbitMQ, cfg.RabbitMQ.ConnectRetries, cfg.RabbitMQ.ConnectDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := cloudstore.New(cfg.Storage.ConnectionString)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	schedulerService := notifierservice.NewSchedulerService(db, logger)

	return &App{
		schedulerService: schedulerService,
		conn:             conn,
		ch:               ch,
		db:               db,
		logger:           logger,
	}, nil
}

// Run запускает планировщик до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	go a.schedulerService.FindExpiringSubscriptions(ctx, a.ch)

	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	_ = a.db.DB.Close()
	return nil
}
