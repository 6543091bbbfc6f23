package notification_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/mail"
	"github.com/shashiranjanraj/storefront/pkg/notification"
)

type placed struct{ channels []string }

func (p placed) Via() []string { return p.channels }

func (placed) ToMail() *mail.Message {
	return mail.To("user@example.com").WithSubject("Order received").Text("thanks")
}

func (placed) ToSlack() notification.SlackData {
	return notification.SlackData{Text: "New order ORD-1-ABCD"}
}

func TestSendMailAndSlack(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := &mail.Recorder{}
	nf := notification.New(rec, srv.URL)

	err := nf.Send(context.Background(), placed{channels: []string{notification.Mail, notification.Slack}})
	require.NoError(t, err)
	require.Len(t, rec.Messages(), 1)
	assert.Equal(t, "Order received", rec.Messages()[0].Subject)
	assert.Equal(t, "New order ORD-1-ABCD", got["text"])
}

func TestUnconfiguredSlackIsSkipped(t *testing.T) {
	nf := notification.New(&mail.Recorder{}, "")
	assert.NoError(t, nf.Send(context.Background(), placed{channels: []string{notification.Slack}}))
}

func TestUnsupportedChannelFails(t *testing.T) {
	nf := notification.New(&mail.Recorder{}, "")
	err := nf.Send(context.Background(), placed{channels: []string{notification.Webhook, "sms"}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "cannot be sent via webhook")
	assert.ErrorContains(t, err, `unknown channel "sms"`)
}

func TestCustomChannel(t *testing.T) {
	nf := notification.New(nil, "")
	var got []string
	nf.Use("sms", notification.ChannelFunc(func(_ context.Context, n notification.Notification) error {
		got = append(got, n.Via()...)
		return nil
	}))
	require.NoError(t, nf.Send(context.Background(), placed{channels: []string{"sms"}}))
	assert.Equal(t, []string{"sms"}, got)
}

func TestSlackFailureIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid_payload"))
	}))
	defer srv.Close()

	nf := notification.New(nil, srv.URL)
	err := nf.Send(context.Background(), placed{channels: []string{notification.Mail, notification.Slack}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "slack:")
	assert.ErrorContains(t, err, "invalid_payload")
}
