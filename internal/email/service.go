package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/report-assistant/pkg/logger"
)

type Service interface {
	SendWelcome(ctx context.Context, email string, name string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender abstracts the SMTP transport.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	from   string
	sender Sender
}

// NewSMTPService sends mail through the configured SMTP relay.
func NewSMTPService(cfg Config) Service {
	return &smtpService{
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func newServiceWithSender(from string, sender Sender) Service {
	return &smtpService{from: from, sender: sender}
}

func (s *smtpService) SendWelcome(ctx context.Context, to string, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Welcome to Report Assistant")
	m.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nYour account is ready. Upload a lab report to get an English analysis and an Urdu audio explanation.\n", name))

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	return nil
}

type noopService struct {
	logger *logger.Logger
}

// NewNoopService logs instead of sending. Used when SMTP is not configured.
func NewNoopService(log *logger.Logger) Service {
	return &noopService{logger: log}
}

func (s *noopService) SendWelcome(ctx context.Context, to string, name string) error {
	s.logger.Debug("Email disabled, skipping welcome", "to", to)
	return nil
}
