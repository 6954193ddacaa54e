package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	gomail "gopkg.in/gomail.v2"

	"github.com/RANAPRINCE06/Watch/internal/services"
)

const defaultSendTimeout = 10 * time.Second

// ErrMailDisabled is returned by Disabled.
var ErrMailDisabled = errors.New("notifications: email is not configured")

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig configures the relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPMailer delivers transactional email through an SMTP relay.
type SMTPMailer struct {
	from    string
	timeout time.Duration
	sender  sender
	policy  *bluemonday.Policy
}

// NewSMTPMailer validates cfg and builds a mailer. Port 465 uses implicit TLS, other ports STARTTLS.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errors.New("notifications: smtp host is required")
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, errors.New("notifications: from address is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	dialer := gomail.NewDialer(host, port, cfg.Username, cfg.Password)
	dialer.SSL = port == 465
	return &SMTPMailer{
		from:    from,
		timeout: timeout,
		sender:  dialer,
		policy:  bluemonday.UGCPolicy(),
	}, nil
}

// Send implements services.Mailer. gomail has no context support, so the dial runs in a goroutine
// and Send returns when ctx or the configured timeout expires.
func (m *SMTPMailer) Send(ctx context.Context, msg services.EmailMessage) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return errors.New("notifications: recipient is required")
	}

	message := gomail.NewMessage()
	message.SetHeader("From", m.from)
	message.SetHeader("To", to)
	message.SetHeader("Subject", msg.Subject)
	text := msg.Text
	if text == "" {
		text = bluemonday.StrictPolicy().Sanitize(msg.HTML)
	}
	message.SetBody("text/plain", text)
	if html := strings.TrimSpace(msg.HTML); html != "" {
		message.AddAlternative("text/html", m.policy.Sanitize(html))
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.sender.DialAndSend(message) }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("notifications: send to %s: %w", to, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("notifications: send to %s: %w", to, err)
		}
		return nil
	}
}

// Disabled is the mailer used when no relay is configured.
type Disabled struct{}

// Send implements services.Mailer.
func (Disabled) Send(context.Context, services.EmailMessage) error { return ErrMailDisabled }
