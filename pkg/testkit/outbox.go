package testkit

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/shashiranjanraj/storefront/pkg/mail"
)

// Outbox is a mail.Mailer that keeps messages instead of delivering them.
// Give it to the app under test and to Runner.WithOutbox.
type Outbox struct {
	mock.Mock

	mu   sync.Mutex
	sent []*mail.Message
	call *mock.Call
}

func NewOutbox() *Outbox {
	o := &Outbox{}
	o.call = o.On("Send", mock.Anything).Return(nil)
	return o
}

func (o *Outbox) Send(_ context.Context, m *mail.Message) error {
	if err := m.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	o.sent = append(o.sent, m)
	o.mu.Unlock()
	return o.Called(m).Error(0)
}

// Sent returns a copy of the recorded messages.
func (o *Outbox) Sent() []*mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*mail.Message(nil), o.sent...)
}

// Fail makes every later Send return err; nil restores success.
func (o *Outbox) Fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.call.Unset()
	o.call = o.On("Send", mock.Anything).Return(err)
}

func (o *Outbox) Reset() {
	o.Fail(nil)
	o.mu.Lock()
	o.sent = nil
	o.mu.Unlock()
}

// arm applies the scenario's mail mocks.
func (o *Outbox) arm(s *Scenario) {
	o.Reset()
	for _, m := range s.mocks(MockMail) {
		if m.Status >= 400 {
			msg := m.text()
			if msg == "" {
				msg = "mail delivery failed"
			}
			o.Fail(errors.New(msg))
		}
	}
}
