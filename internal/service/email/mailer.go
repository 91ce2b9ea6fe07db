// Package email delivers the invoice to the customer over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Message is an invoice email. AttachmentPath is a local file; the fiscal
// PDF and XML are linked, not attached.
type Message struct {
	To             string
	Subject        string
	Body           string
	AttachmentPath string
	PDFURL         string
	XMLURL         string
}

// Mailer sends invoice emails.
type Mailer struct {
	cfg  Config
	send func(ctx context.Context, m *mail.Msg) error
}

// New returns a Mailer for cfg.
func New(cfg Config) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	m := &Mailer{cfg: cfg}
	m.send = m.dialAndSend
	return m
}

// Send builds and delivers msg.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if m.cfg.Host == "" {
		return errors.New("smtp: host not configured")
	}
	mm, err := m.build(msg)
	if err != nil {
		return err
	}
	if err := m.send(ctx, mm); err != nil {
		return fmt.Errorf("smtp: send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *Mailer) build(msg Message) (*mail.Msg, error) {
	mm := mail.NewMsg()
	if err := mm.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("smtp: from address: %w", err)
	}
	if err := mm.To(msg.To); err != nil {
		return nil, fmt.Errorf("smtp: to address: %w", err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextPlain, body(msg))
	if msg.AttachmentPath != "" {
		mm.AttachFile(msg.AttachmentPath)
	}
	return mm, nil
}

func body(msg Message) string {
	var b strings.Builder
	b.WriteString(msg.Body)
	b.WriteString("\n\n")
	if msg.PDFURL != "" {
		b.WriteString("Fiscal PDF: " + msg.PDFURL + "\n")
	}
	if msg.XMLURL != "" {
		b.WriteString("Fiscal XML: " + msg.XMLURL + "\n")
	}
	return b.String()
}

func (m *Mailer) dialAndSend(ctx context.Context, mm *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, mm)
}
