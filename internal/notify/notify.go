package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("epieval/notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

func (c SmtpConfig) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("smtp server is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("smtp port must be positive, got %d", c.Port)
	}
	if c.EmailAddress == "" {
		return fmt.Errorf("smtp email address is required")
	}
	return nil
}

// Mailer sends run reports by email.
type Mailer struct {
	Smtp SmtpConfig
}

func (m Mailer) addr() string {
	return fmt.Sprintf("%s:%d", m.Smtp.Server, m.Smtp.Port)
}

// Send mails body to the recipients. PLAIN auth is attempted first, servers that do not
// support AUTH are retried without it.
func (m Mailer) Send(ctx context.Context, to []string, subject, body string) error {
	ctx, span := tracer.Start(ctx, "Send")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return err
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("epieval <%s>", m.Smtp.EmailAddress)
	mail.To = to
	mail.Subject = subject
	mail.Text = []byte(body)

	err := mail.Send(
		m.addr(),
		smtp.PlainAuth("", m.Smtp.EmailAddress, m.Smtp.Password, m.Smtp.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(m.addr(), nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
