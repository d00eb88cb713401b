// Package notify реализует диспетчер транзакционной почты.
//
// Контракт один: models.EmailMessage на входе, ошибка-значение на выходе.
// Доставка идет через один из трех взаимозаменяемых транспортов,
// выбираемых по окружению процесса прозрачно для вызывающей стороны:
//
//   - встроенный SMTP-клиент (режим десктоп-оболочки, аналог IPC-вызова);
//   - HTTP POST на локальный релей;
//   - HTTP POST на serverless-функцию.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mazylab/appraiser-account/internal/config"
	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/lib/smtp"
	"github.com/mazylab/appraiser-account/internal/models"
)

// Dispatcher отправляет транзакционные письма через выбранный транспорт.
type Dispatcher struct {
	transport Transport
	log       *slog.Logger
}

// Transport — одна из реализаций доставки письма.
type Transport interface {
	Send(ctx context.Context, msg models.EmailMessage) error
}

// New выбирает транспорт по окружению и возвращает диспетчер.
// Порядок детекции повторяет клиентскую логику: десктоп-оболочка,
// затем локальный релей, затем serverless-функция.
func New(cfg *config.Config, log *slog.Logger) *Dispatcher {
	var t Transport
	switch {
	case cfg.SMTP.DesktopShell:
		t = NewSMTPTransport(log)
	case cfg.SMTP.RelayURL != "":
		t = NewHTTPTransport(cfg.SMTP.RelayURL)
	default:
		t = NewHTTPTransport(cfg.SMTP.FunctionURL)
	}
	return &Dispatcher{transport: t, log: log}
}

// NewWithTransport возвращает диспетчер с явно заданным транспортом.
func NewWithTransport(t Transport, log *slog.Logger) *Dispatcher {
	return &Dispatcher{transport: t, log: log}
}

// Send доставляет письмо. Ошибка возвращается значением и не содержит
// деталей транспорта: вызывающая сторона видит единый контракт.
func (d *Dispatcher) Send(ctx context.Context, msg models.EmailMessage) error {
	const op = "notify.Send"
	if msg.SMTPHost == "" || msg.SMTPUser == "" || msg.SMTPPass == "" || msg.To == "" {
		return fmt.Errorf("%s: missing SMTP configuration or recipient", op)
	}
	if err := d.transport.Send(ctx, msg); err != nil {
		d.log.Error("failed to send email", sl.Err(err), slog.String("to", msg.To))
		return fmt.Errorf("%s: %w", op, err)
	}
	d.log.Info("email sent successfully", slog.String("to", msg.To))
	return nil
}

// signature — подпись, добавляемая к каждому исходящему письму.
func signature(now time.Time) string {
	return fmt.Sprintf("\n\n----------------------------------------\nAI Property Appraiser System Notification\nDate: %s",
		now.Format("2006/01/02 15:04:05"))
}

// SMTPTransport доставляет письмо напрямую по SMTP (десктоп-оболочка).
type SMTPTransport struct {
	transport smtp.TransportInterface
}

// NewSMTPTransport создает SMTP транспорт доставки.
func NewSMTPTransport(log *slog.Logger) *SMTPTransport {
	return &SMTPTransport{transport: smtp.NewTransport(log)}
}

// Send отправляет письмо через SMTP соединение с STARTTLS.
func (t *SMTPTransport) Send(_ context.Context, msg models.EmailMessage) error {
	client, err := t.transport.Connect(msg.SMTPHost, msg.SMTPPort, msg.SMTPUser, msg.SMTPPass)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	headers := []string{
		fmt.Sprintf("From: \"AI Property Appraiser\" <%s>", msg.SMTPUser),
		fmt.Sprintf("To: %s", msg.To),
	}
	rcpts := []string{msg.To}
	if msg.CC != "" {
		headers = append(headers, fmt.Sprintf("Cc: %s", msg.CC))
		rcpts = append(rcpts, msg.CC)
	}
	headers = append(headers,
		fmt.Sprintf("Subject: %s", msg.Subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		msg.Text+signature(time.Now()),
	)
	body := strings.Join(headers, "\r\n")

	if err = client.Mail(msg.SMTPUser); err != nil {
		return fmt.Errorf("failed to set mail sender: %w", err)
	}
	for _, addr := range rcpts {
		if err = client.Rcpt(addr); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", addr, err)
		}
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get write closer: %w", err)
	}
	if _, err = wc.Write([]byte(body)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = wc.Close(); err != nil {
		return fmt.Errorf("failed to close write closer: %w", err)
	}
	if err = client.Quit(); err != nil {
		return fmt.Errorf("failed to quit SMTP client: %w", err)
	}
	return nil
}

// HTTPTransport доставляет письмо POST-запросом: локальный релей
// и serverless-функция принимают одинаковый JSON-контракт.
type HTTPTransport struct {
	url        string
	httpClient *http.Client
}

// NewHTTPTransport создает HTTP транспорт доставки.
func NewHTTPTransport(url string) *HTTPTransport {
	return &HTTPTransport{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type httpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Send отправляет письмо POST-запросом на настроенный адрес.
func (t *HTTPTransport) Send(ctx context.Context, msg models.EmailMessage) error {
	if t.url == "" {
		return fmt.Errorf("no email endpoint configured")
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(msg); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var result httpResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("server responded with %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK || !result.Success {
		if result.Message != "" {
			return fmt.Errorf("%s", result.Message)
		}
		return fmt.Errorf("server responded with %s", resp.Status)
	}
	return nil
}
