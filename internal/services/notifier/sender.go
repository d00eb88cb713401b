package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mazylab/appraiser-account/internal/models"
)

// Mailer — доставка письма через диспетчер уведомлений.
type Mailer interface {
	Send(ctx context.Context, msg models.EmailMessage) error
}

// SystemSettingsReader — доступ к почтовым учетным данным системной области.
type SystemSettingsReader interface {
	SystemSettings() (models.SystemSettings, error)
}

// SenderService потребляет очередь уведомлений и отправляет письма.
type SenderService struct {
	mailer   Mailer
	settings SystemSettingsReader
	log      *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(mailer Mailer, settings SystemSettingsReader, log *slog.Logger) *SenderService {
	return &SenderService{
		mailer:   mailer,
		settings: settings,
		log:      log,
	}
}

// SendInfoExpiringSubscription разбирает сообщение очереди и отправляет
// письмо о скором окончании подписки.
func (s *SenderService) SendInfoExpiringSubscription(body []byte) error {
	var notice models.ExpiryNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	sys, err := s.settings.SystemSettings()
	if err != nil {
		return fmt.Errorf("failed to read system settings: %w", err)
	}

	name := notice.Name
	if name == "" {
		name = notice.Email
	}
	text := fmt.Sprintf(
		"Dear %s,\n\nYour subscription expires on %s.\n\nPlease renew it to keep uninterrupted access to the appraisal service.",
		name, notice.SubscriptionExpiry)

	msg := models.EmailMessage{
		SMTPHost: sys.SMTPHost,
		SMTPPort: sys.SMTPPort,
		SMTPUser: sys.SMTPUser,
		SMTPPass: sys.SMTPPass,
		To:       notice.Email,
		CC:       sys.SystemEmail,
		Subject:  "Subscription expiry notice",
		Text:     text,
	}
	if err := s.mailer.Send(context.Background(), msg); err != nil {
		return fmt.Errorf("failed to send expiry notice: %w", err)
	}
	s.log.Info("expiry notice sent", slog.String("to", notice.Email))
	return nil
}
