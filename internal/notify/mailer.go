package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/polymorphcorp/profilegpt/internal/domain"
)

// Mailer sends the admin alert for a new extension request over SMTP.
// Delivery is bounded by a timeout and never blocks the request path
// longer than that.
type Mailer struct {
	host       string
	port       int
	username   string
	password   string
	useTLS     bool
	adminEmail string
	appURL     string
	timeout    time.Duration
	logger     *slog.Logger
}

type Options struct {
	Host       string
	Port       int
	Username   string
	Password   string
	UseTLS     bool
	AdminEmail string
	AppURL     string
	Timeout    time.Duration
}

func NewMailer(opts Options, logger *slog.Logger) *Mailer {
	return &Mailer{
		host:       opts.Host,
		port:       opts.Port,
		username:   opts.Username,
		password:   opts.Password,
		useTLS:     opts.UseTLS,
		adminEmail: opts.AdminEmail,
		appURL:     opts.AppURL,
		timeout:    opts.Timeout,
		logger:     logger,
	}
}

// Enabled reports whether the mailer has enough configuration to deliver.
func (m *Mailer) Enabled() bool {
	return m.host != "" && m.adminEmail != ""
}

func (m *Mailer) NotifyExtensionRequest(ctx context.Context, req *domain.ExtensionRequest) error {
	if !m.Enabled() {
		m.logger.Debug("mailer disabled, skipping extension notification",
			"request_id", req.RequestID)
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.username)
	msg.SetHeader("To", m.adminEmail)
	msg.SetHeader("Subject", fmt.Sprintf("Session extension request from %s", req.Email))
	msg.SetBody("text/plain", renderExtensionBody(req, m.appURL))

	dialer := gomail.NewDialer(m.host, m.port, m.username, m.password)
	dialer.SSL = !m.useTLS && m.port == 465

	done := make(chan error, 1)
	go func() { done <- dialer.DialAndSend(msg) }()

	timeout := m.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send extension notification: %w", err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("send extension notification: timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func renderExtensionBody(req *domain.ExtensionRequest, appURL string) string {
	return fmt.Sprintf(`A visitor has requested a session extension.

Session:    %s
Email:      %s
Requested:  %s
Request ID: %s

Approve:
  curl -X POST %s/admin/approve-extension -H "X-Admin-Key: $ADMIN_RESET_KEY" \
    -H "Content-Type: application/json" -d '{"request_id":"%s","queries_granted":10}'

Deny:
  curl -X POST %s/admin/deny-extension -H "X-Admin-Key: $ADMIN_RESET_KEY" \
    -H "Content-Type: application/json" -d '{"request_id":"%s"}'
`, req.SessionID, req.Email, req.Timestamp, req.RequestID,
		appURL, req.RequestID, appURL, req.RequestID)
}
