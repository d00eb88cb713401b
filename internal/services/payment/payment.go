// Package payment реализует покупку подписки через PayPal.
//
// Создание заказа и его capture разнесены: заказ создается до одобрения
// плательщиком, capture приходит после. Успешный capture продлевает
// подписку на срок купленного плана, повышает роль до paid и отправляет
// квитанцию; сбой квитанции не откатывает продление.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/paypal"
	"github.com/mazylab/appraiser-account/internal/policy"
)

// Plan — покупаемый план подписки.
type Plan struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Days     int    `json:"days"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

// Каталог планов. Цены фиксированы на стороне сервиса: сумма заказа
// никогда не берется из клиентского запроса.
var plans = []Plan{
	{ID: "monthly", Name: "Monthly subscription", Days: 30, Price: "9.90", Currency: "USD"},
	{ID: "quarterly", Name: "Quarterly subscription", Days: 90, Price: "26.90", Currency: "USD"},
	{ID: "yearly", Name: "Yearly subscription", Days: 365, Price: "99.00", Currency: "USD"},
}

// Provider — платежный провайдер (PayPal Orders v2).
type Provider interface {
	CreateOrder(ctx context.Context, req paypal.CreateOrderRequest) (*paypal.CreateOrderResponse, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.CaptureOrderResponse, error)
}

// Identity — операции сервиса идентификации, нужные для продления.
type Identity interface {
	GetUser(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, email string, patch models.UserPatch) (*models.User, error)
}

// Mailer — отправка квитанции.
type Mailer interface {
	Send(ctx context.Context, msg models.EmailMessage) error
}

// SystemSettingsReader — доступ к почтовым учетным данным системной области.
type SystemSettingsReader interface {
	SystemSettings() (models.SystemSettings, error)
}

// Service — сервис покупки подписки.
type Service struct {
	provider Provider
	identity Identity
	mailer   Mailer
	settings SystemSettingsReader
	log      *slog.Logger
}

// New создает сервис покупки подписки.
func New(provider Provider, identity Identity, mailer Mailer, settings SystemSettingsReader, log *slog.Logger) *Service {
	return &Service{
		provider: provider,
		identity: identity,
		mailer:   mailer,
		settings: settings,
		log:      log,
	}
}

// Plans возвращает каталог планов.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// FindPlan возвращает план по идентификатору.
func FindPlan(planID string) (Plan, error) {
	for _, p := range plans {
		if p.ID == planID {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("unknown plan: %s", planID)
}

// CreateCheckout создает заказ PayPal на выбранный план и возвращает
// идентификатор заказа вместе со ссылкой одобрения.
func (s *Service) CreateCheckout(ctx context.Context, email, planID string) (*paypal.CreateOrderResponse, error) {
	const op = "payment.CreateCheckout"

	plan, err := FindPlan(planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := s.provider.CreateOrder(ctx, paypal.CreateOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypal.PurchaseUnit{{
			ReferenceID: plan.ID,
			Description: plan.Name,
			Amount: paypal.Amount{
				CurrencyCode: plan.Currency,
				Value:        plan.Price,
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("checkout created",
		slog.String("email", email),
		slog.String("plan", plan.ID),
		slog.String("order_id", resp.ID))
	return resp, nil
}

// CompleteCheckout выполняет capture одобренного заказа и применяет
// покупку: продление от max(сейчас, текущее истечение), роль paid.
func (s *Service) CompleteCheckout(ctx context.Context, orderID, email, planID string) (*models.User, error) {
	const op = "payment.CompleteCheckout"

	plan, err := FindPlan(planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	capture, err := s.provider.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if capture.Status != paypal.OrderStatusCompleted {
		return nil, fmt.Errorf("%s: capture not completed, status %s", op, capture.Status)
	}

	user, err := s.identity.GetUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newExpiry := policy.Extend(time.Now(), user.SubscriptionExpiry, plan.Days)
	rolePaid := models.RolePaid
	updated, err := s.identity.UpdateUser(ctx, email, models.UserPatch{
		Role:               &rolePaid,
		SubscriptionExpiry: &newExpiry,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("subscription purchased",
		slog.String("email", email),
		slog.String("plan", plan.ID),
		slog.Time("expires", newExpiry))

	s.sendReceipt(ctx, updated, plan, orderID)
	return updated, nil
}

// sendReceipt отправляет квитанцию о покупке. Сбой только логируется:
// продление уже применено и не откатывается из-за почты.
func (s *Service) sendReceipt(ctx context.Context, user *models.User, plan Plan, orderID string) {
	sys, err := s.settings.SystemSettings()
	if err != nil {
		s.log.Warn("failed to read system settings for receipt", sl.Err(err))
		return
	}
	if sys.SMTPHost == "" || sys.SMTPUser == "" {
		s.log.Warn("receipt skipped, SMTP not configured")
		return
	}

	expires := ""
	if user.SubscriptionExpiry != nil {
		expires = user.SubscriptionExpiry.Format("2006-01-02")
	}
	text := fmt.Sprintf(
		"Dear %s,\n\nYour payment has been received.\n\nPlan: %s\nAmount: %s %s\nOrder: %s\nSubscription valid until: %s\n\nThank you for your purchase.",
		user.Name, plan.Name, plan.Price, plan.Currency, orderID, expires)

	msg := models.EmailMessage{
		SMTPHost: sys.SMTPHost,
		SMTPPort: sys.SMTPPort,
		SMTPUser: sys.SMTPUser,
		SMTPPass: sys.SMTPPass,
		To:       user.Email,
		CC:       sys.SystemEmail,
		Subject:  "Payment receipt",
		Text:     text,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Warn("failed to send receipt", sl.Err(err))
	}
}
