// Package notifier реализует конвейер уведомлений об истекающих подписках:
// планировщик публикует в очередь, отправитель доставляет письма.
// Уведомления информационные, роль пользователя они не меняют.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/rabbitmq"
)

// ExpiryRepository ищет пользователей, чья подписка истекает сегодня.
type ExpiryRepository interface {
	FindExpiringToday(ctx context.Context) ([]*models.User, error)
}

// SchedulerService периодически публикует уведомления в очередь.
type SchedulerService struct {
	repo ExpiryRepository
	log  *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo ExpiryRepository, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo: repo,
		log:  log,
	}
}

// FindExpiringSubscriptions раз в 12 часов ищет истекающие сегодня
// подписки и публикует уведомление по каждой. Работает до отмены ctx.
func (s *SchedulerService) FindExpiringSubscriptions(ctx context.Context, channel *amqp.Channel) {
	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.log.Info("starting service to find expiring subscriptions")
		users, err := s.repo.FindExpiringToday(ctx)
		if err != nil {
			s.log.Error("failed to find expiring users", sl.Err(err))
			continue
		}
		for _, u := range users {
			notice := models.ExpiryNotice{
				Email: u.Email,
				Name:  u.Name,
				Role:  u.Role,
			}
			if u.SubscriptionExpiry != nil {
				notice.SubscriptionExpiry = u.SubscriptionExpiry.Format("2006-01-02")
			}
			if err := rabbitmq.PublishMessage(channel, "notifications", "expiring", notice); err != nil {
				s.log.Error("failed to publish message", sl.Err(err))
			}
		}
	}
}
