package models

// EmailMessage — контракт диспетчера уведомлений: параметры SMTP и само письмо.
// Транспорт выбирается на рантайме, получатель контракта этого не видит.
type EmailMessage struct {
	SMTPHost string `json:"smtpHost" validate:"required"`
	SMTPPort string `json:"smtpPort"`
	SMTPUser string `json:"smtpUser" validate:"required"`
	SMTPPass string `json:"smtpPass" validate:"required"`
	To       string `json:"to" validate:"required"`
	CC       string `json:"cc,omitempty"`
	Subject  string `json:"subject"`
	Text     string `json:"text"`
}

// ExpiryNotice — сообщение очереди уведомлений об истекающей подписке.
type ExpiryNotice struct {
	Email              string `json:"email"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	SubscriptionExpiry string `json:"subscription_expiry"`
}
