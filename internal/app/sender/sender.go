// Package sender собирает приложение отправителя уведомлений:
// потребителя очереди, доставляющего письма через диспетчер.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/mazylab/appraiser-account/internal/config"
	"github.com/mazylab/appraiser-account/internal/notify"
	"github.com/mazylab/appraiser-account/internal/rabbitmq"
	notifierservice "github.com/mazylab/appraiser-account/internal/services/notifier"
	settingsservice "github.com/mazylab/appraiser-account/internal/services/settings"
	"github.com/mazylab/appraiser-account/internal/store/localstore"
)

// App представляет приложение отправителя уведомлений.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *notifierservice.SenderService
	logger        *slog.Logger
}

// New создает новый экземпляр приложения отправителя.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.AddressRabbitMQ, cfg.RabbitMQ.ConnectRetries, cfg.RabbitMQ.ConnectDelay)
	if err != nil {
		return nil, err
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	// Почтовые учетные данные живут в системной области настроек.
	blobs, err := localstore.New(cfg.Storage.LocalDataDir)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	settingsService := settingsservice.New(blobs, logger)
	dispatcher := notify.New(cfg, logger)
	senderService := notifierservice.NewSenderService(dispatcher, settingsService, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителя очереди уведомлений до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	for _, q := range rabbitmq.GetNotificationQueues() {
		if err := rabbitmq.ConsumerMessage(ctx, a.ch, q.QueueName, a.senderService.SendInfoExpiringSubscription); err != nil {
			a.logger.Error("failed to start queue consumer", slog.Any("err", err))
			return err
		}
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
