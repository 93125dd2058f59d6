package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig configures the SMTP mailer. Addr is host:port; Username may be
// empty for unauthenticated relays.
type SMTPConfig struct {
	Addr     string
	From     string
	Username string
	Password string
}

// SMTP delivers HTML mail over SMTP. It satisfies the engine's Mailer
// interface.
type SMTP struct {
	config SMTPConfig
	auth   smtp.Auth
}

// NewSMTP validates cfg and returns an SMTP mailer.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Addr == "" {
		return nil, errors.New("smtp addr is required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required")
	}

	m := &SMTP{config: cfg}
	if cfg.Username != "" {
		host := cfg.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}

	return m, nil
}

// Send delivers one HTML message. Failures are returned as-is; the engine
// treats any error as non-retriable within the request.
func (m *SMTP) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	return smtp.SendMail(m.config.Addr, m.auth, m.config.From, []string{to}, []byte(msg.String()))
}
