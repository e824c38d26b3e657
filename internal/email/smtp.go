package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // optional - some servers allow unauthenticated relay
	Password string // optional
	From     string // default sender address
	FromName string // optional sender display name
}

// SMTPSender implements Sender using go-mail. TLS mode follows the port:
// 465 is implicit TLS, 587 requires STARTTLS, anything else is opportunistic.
type SMTPSender struct {
	config *SMTPConfig
	logger *slog.Logger
}

// NewSMTPSender creates an SMTP sender from a config struct.
func NewSMTPSender(config *SMTPConfig, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{
		config: config,
		logger: logger,
	}
}

// Send sends an email via SMTP using go-mail.
func (s *SMTPSender) Send(ctx context.Context, email *Email) (string, error) {
	s.logger.Debug("smtp: preparing email",
		"to", email.To,
		"subject", email.Subject,
		"attachments", len(email.Attachments),
		"host", s.config.Host,
	)

	// Create message
	msg := mail.NewMsg()

	from := email.From
	if from == "" {
		from = s.config.From
		if s.config.FromName != "" {
			from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
		}
	}
	if err := msg.From(from); err != nil {
		return "", fmt.Errorf("invalid from address: %w", err)
	}

	if err := msg.To(email.To...); err != nil {
		return "", fmt.Errorf("invalid to address: %w", err)
	}

	msg.Subject(email.Subject)
	msg.SetMessageID()

	// Set body - prefer HTML with text fallback, or just text
	if email.HTMLBody != "" && email.TextBody != "" {
		msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTMLBody)
	} else if email.HTMLBody != "" {
		msg.SetBodyString(mail.TypeTextHTML, email.HTMLBody)
	} else {
		msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
	}

	for key, value := range email.Headers {
		msg.SetGenHeader(mail.Header(key), value)
	}

	// Add attachments
	for _, att := range email.Attachments {
		if err := msg.AttachReader(att.Filename, bytes.NewReader(att.Content),
			mail.WithFileContentType(mail.ContentType(att.ContentType))); err != nil {
			return "", fmt.Errorf("failed to attach file %s: %w", att.Filename, err)
		}
	}

	client, err := mail.NewClient(s.config.Host, clientOptions(s.config.Host, s.config.Port, s.config.Username, s.config.Password, 30*time.Second)...)
	if err != nil {
		return "", fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.Error("smtp: failed to send email", "error", err)
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("smtp: email sent", "to", email.To, "subject", email.Subject)

	// SMTP servers do not return a reliable message ID
	return msg.GetMessageID(), nil
}

// clientOptions picks the TLS mode from the port and adds auth when
// credentials are present.
func clientOptions(host string, port int, username, password string, timeout time.Duration) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
	}

	switch port {
	case 465:
		// Implicit TLS (SMTPS)
		opts = append(opts, mail.WithSSL())
	case 587:
		// STARTTLS (submission port)
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		// Port 25 relays and local catchers like Mailpit on 1025
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if username != "" && password != "" {
		opts = append(opts,
			mail.WithUsername(username),
			mail.WithPassword(password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}

	return opts
}

// Ping verifies SMTP connectivity and authentication without sending email.
func (s *SMTPSender) Ping(ctx context.Context) error {
	client, err := mail.NewClient(s.config.Host, clientOptions(s.config.Host, s.config.Port, s.config.Username, s.config.Password, 10*time.Second)...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer client.Close()

	return nil
}
