package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mazylab/appraiser-account/internal/models"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg models.EmailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type stubSettings struct {
	sys models.SystemSettings
}

func (s stubSettings) SystemSettings() (models.SystemSettings, error) {
	return s.sys, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestSendInfoExpiringSubscription(t *testing.T) {
	notice := models.ExpiryNotice{
		Email:              "user@example.com",
		Name:               "User",
		Role:               models.RolePaid,
		SubscriptionExpiry: "2026-09-01",
	}
	body, err := json.Marshal(notice)
	require.NoError(t, err)

	mailer := new(mockMailer)
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(msg models.EmailMessage) bool {
		return msg.To == "user@example.com" &&
			msg.CC == "admin@example.com" &&
			msg.SMTPHost == "smtp.example.com"
	})).Return(nil).Once()

	svc := NewSenderService(mailer, stubSettings{sys: models.SystemSettings{
		SMTPHost:    "smtp.example.com",
		SMTPPort:    "587",
		SMTPUser:    "system@example.com",
		SMTPPass:    "pass",
		SystemEmail: "admin@example.com",
	}}, testLogger())

	require.NoError(t, svc.SendInfoExpiringSubscription(body))
	mailer.AssertExpectations(t)
}

func TestSendInfoExpiringSubscriptionBadPayload(t *testing.T) {
	mailer := new(mockMailer)
	svc := NewSenderService(mailer, stubSettings{}, testLogger())

	err := svc.SendInfoExpiringSubscription([]byte("not json"))
	assert.Error(t, err)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
