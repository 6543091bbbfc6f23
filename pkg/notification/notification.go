// Package notification delivers one message over several channels at once.
// A notification names its channels in Via and implements the matching
// To* method for each:
//
//	func (n orderPlaced) Via() []string { return []string{notification.Mail, notification.Slack} }
//	func (n orderPlaced) ToMail() *mail.Message { ... }
//	func (n orderPlaced) ToSlack() notification.SlackData { ... }
//
//	err := notifier.Send(ctx, orderPlaced{order: o})
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/http"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/mail"
)

// Built-in channel names.
const (
	Mail    = "mail"
	Slack   = "slack"
	Webhook = "webhook"
)

// ErrNotConfigured means the channel has nowhere to deliver. Send logs and
// skips it.
var ErrNotConfigured = errors.New("notification: channel not configured")

type Notification interface {
	Via() []string
}

type Mailable interface {
	ToMail() *mail.Message
}

type Slackable interface {
	ToSlack() SlackData
}

type Webhookable interface {
	ToWebhook() WebhookData
}

// SlackData is an incoming-webhook payload. WebhookURL overrides the
// channel's default.
type SlackData struct {
	WebhookURL  string            `json:"-"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

type SlackAttachment struct {
	Color  string `json:"color,omitempty"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text,omitempty"`
	Footer string `json:"footer,omitempty"`
}

type WebhookData struct {
	URL     string
	Payload any
	Headers map[string]string
}

// Channel delivers a notification that supports it.
type Channel interface {
	Deliver(ctx context.Context, n Notification) error
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, n Notification) error

func (f ChannelFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

type MailChannel struct {
	Mailer mail.Mailer
}

func (c MailChannel) Deliver(ctx context.Context, n Notification) error {
	m, ok := n.(Mailable)
	if !ok {
		return unsupported(Mail, n)
	}
	if c.Mailer == nil {
		return ErrNotConfigured
	}
	return c.Mailer.Send(ctx, m.ToMail())
}

// SlackChannel posts to an incoming webhook, retrying once.
type SlackChannel struct {
	URL     string
	Timeout time.Duration
}

func (c SlackChannel) Deliver(ctx context.Context, n Notification) error {
	s, ok := n.(Slackable)
	if !ok {
		return unsupported(Slack, n)
	}
	data := s.ToSlack()
	url := data.WebhookURL
	if url == "" {
		url = c.URL
	}
	if url == "" {
		return ErrNotConfigured
	}
	return post(http.Post(url).Body(data).Timeout(c.Timeout).Retry(2, time.Second).WithContext(ctx))
}

type WebhookChannel struct {
	Timeout time.Duration
}

func (c WebhookChannel) Deliver(ctx context.Context, n Notification) error {
	w, ok := n.(Webhookable)
	if !ok {
		return unsupported(Webhook, n)
	}
	data := w.ToWebhook()
	if data.URL == "" {
		return ErrNotConfigured
	}
	req := http.Post(data.URL).Body(data.Payload).Timeout(c.Timeout).WithContext(ctx)
	for k, v := range data.Headers {
		req.Header(k, v)
	}
	return post(req)
}

func post(req *http.Request) error {
	resp, err := req.Send()
	if err != nil {
		return err
	}
	return resp.Throw()
}

func unsupported(channel string, n Notification) error {
	return fmt.Errorf("notification: %T cannot be sent via %s", n, channel)
}

// Notifier routes notifications to channels by name.
type Notifier struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// New wires the mail, slack and webhook channels. An empty slackWebhook
// leaves Slack unconfigured unless a notification brings its own URL.
func New(mailer mail.Mailer, slackWebhook string) *Notifier {
	return &Notifier{channels: map[string]Channel{
		Mail:    MailChannel{Mailer: mailer},
		Slack:   SlackChannel{URL: slackWebhook, Timeout: 5 * time.Second},
		Webhook: WebhookChannel{Timeout: 10 * time.Second},
	}}
}

// Use adds or replaces a channel.
func (nf *Notifier) Use(name string, ch Channel) {
	nf.mu.Lock()
	defer nf.mu.Unlock()
	nf.channels[name] = ch
}

// Send delivers n on all its channels concurrently and joins the failures.
// Unconfigured channels are not failures.
func (nf *Notifier) Send(ctx context.Context, n Notification) error {
	via := n.Via()
	errs := make([]error, len(via))
	var wg sync.WaitGroup
	for i, name := range via {
		nf.mu.RLock()
		ch, ok := nf.channels[name]
		nf.mu.RUnlock()
		if !ok {
			errs[i] = fmt.Errorf("notification: unknown channel %q", name)
			continue
		}
		wg.Go(func() {
			err := ch.Deliver(ctx, n)
			switch {
			case err == nil:
			case errors.Is(err, ErrNotConfigured):
				logger.WithCtx(ctx).Debug("notification skipped", "channel", name)
			default:
				logger.WithCtx(ctx).Error("notification failed", "channel", name, "error", err)
				errs[i] = fmt.Errorf("%s: %w", name, err)
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}
