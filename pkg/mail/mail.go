// Package mail builds and delivers email.
//
//	msg := mail.To(user.Email).
//	    Subject("Your order ORD-1700000000000-AB12").
//	    Template(confirmationTmpl, data)
//	err := mailer.Send(ctx, msg)
//
// NewFromConfig returns an SMTP mailer when MAIL_HOST is set and a logging
// mailer otherwise, so local development never needs an SMTP server.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"sync"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, m *Message) error
}

// SMTP holds connection credentials.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

func smtpFromConfig() SMTP {
	return SMTP{
		Host:     config.Get("MAIL_HOST", ""),
		Port:     config.Get("MAIL_PORT", "587"),
		Username: config.Get("MAIL_USERNAME", ""),
		Password: config.Get("MAIL_PASSWORD", ""),
		From:     config.Get("MAIL_FROM", "orders@storefront.local"),
		FromName: config.Get("MAIL_FROM_NAME", config.AppName()),
	}
}

// NewFromConfig picks the mailer for the MAIL_* settings.
func NewFromConfig() Mailer {
	cfg := smtpFromConfig()
	if cfg.Host == "" {
		return LogMailer{}
	}
	return &SMTPMailer{cfg: cfg}
}

// Message is a fluent builder for an email.
type Message struct {
	To      []string
	CC      []string
	Subject string
	Body    string
	HTML    bool
	err     error
}

// To starts a message for the given recipients.
func To(addresses ...string) *Message {
	return &Message{To: addresses, HTML: true}
}

// Cc adds CC recipients.
func (m *Message) Cc(addresses ...string) *Message {
	m.CC = append(m.CC, addresses...)
	return m
}

func (m *Message) WithSubject(s string) *Message {
	m.Subject = s
	return m
}

// HTMLBody sets an HTML body.
func (m *Message) HTMLBody(html string) *Message {
	m.Body = html
	m.HTML = true
	return m
}

// Text sets a plain-text body.
func (m *Message) Text(text string) *Message {
	m.Body = text
	m.HTML = false
	return m
}

// Template renders t with data as the HTML body. A render error is kept on
// the message and returned by Err and every Mailer.
func (m *Message) Template(t *template.Template, data any) *Message {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		m.err = fmt.Errorf("mail: render %s: %w", t.Name(), err)
		return m
	}
	m.Body = buf.String()
	m.HTML = true
	return m
}

// Err reports a build error.
func (m *Message) Err() error {
	if m.err != nil {
		return m.err
	}
	if len(m.To) == 0 {
		return errors.New("mail: no recipients")
	}
	return nil
}

// SMTPMailer sends through an SMTP relay. Port 465 uses implicit TLS,
// anything else uses STARTTLS when offered.
type SMTPMailer struct {
	cfg SMTP
}

func NewSMTP(cfg SMTP) *SMTPMailer { return &SMTPMailer{cfg: cfg} }

func (s *SMTPMailer) Send(ctx context.Context, m *Message) error {
	if err := m.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := s.cfg
	from := fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	rcpt := append(append([]string(nil), m.To...), m.CC...)
	raw := m.raw(from)
	addr := cfg.Host + ":" + cfg.Port

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	if cfg.Port == "465" {
		return sendTLS(addr, cfg.Host, auth, cfg.From, rcpt, raw)
	}
	return smtp.SendMail(addr, auth, cfg.From, rcpt, raw)
}

func sendTLS(addr, host string, auth smtp.Auth, from string, to []string, raw []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("mail: TLS dial: %w", err)
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, a := range to {
		if err := client.Rcpt(a); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (m *Message) raw(from string) []byte {
	contentType := "text/plain"
	if m.HTML {
		contentType = "text/html"
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(m.To, ", ") + "\r\n")
	if len(m.CC) > 0 {
		b.WriteString("Cc: " + strings.Join(m.CC, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"UTF-8\"\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

// LogMailer writes the envelope to the log instead of sending.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, m *Message) error {
	if err := m.Err(); err != nil {
		return err
	}
	logger.WithCtx(ctx).Info("mail: not sent (MAIL_HOST unset)",
		"to", strings.Join(m.To, ","), "subject", m.Subject, "bytes", len(m.Body))
	return nil
}

// Recorder keeps sent messages in memory. Used by tests.
type Recorder struct {
	mu   sync.Mutex
	Sent []*Message
}

func (r *Recorder) Send(_ context.Context, m *Message) error {
	if err := m.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.Sent = append(r.Sent, m)
	r.mu.Unlock()
	return nil
}

// Messages returns a copy of what was sent so far.
func (r *Recorder) Messages() []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Message(nil), r.Sent...)
}
