package mailer

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/mbolis/quick-survey/config"
	"github.com/mbolis/quick-survey/log"
	"github.com/wneessen/go-mail"
)

// smtpsPort is the submission port that speaks TLS from the first byte.
const smtpsPort = 465

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New returns an SMTP mailer, or a logging one when SMTP is not configured.
func New(cfg config.SMTPConfig) Mailer {
	if !cfg.Enabled() {
		log.Warn("mailer: no SMTP host configured, verification codes will only be logged")
		return LogMailer{}
	}
	return &SMTPMailer{cfg: cfg, implicitTLS: cfg.Port == smtpsPort}
}

// SMTPMailer upgrades plain connections with STARTTLS, or dials TLS
// directly when implicitTLS is set.
type SMTPMailer struct {
	cfg         config.SMTPConfig
	implicitTLS bool
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("mailer: sender %q: %w", m.cfg.From, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mailer: recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSConfig(&tls.Config{ServerName: m.cfg.Host}),
	}
	if m.implicitTLS {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if m.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mailer: client (host=%s port=%d): %w", m.cfg.Host, m.cfg.Port, err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send (host=%s port=%d): %w", m.cfg.Host, m.cfg.Port, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	log.WithFields(log.Fields{"to": to, "subject": subject}).Info(body)
	return nil
}
