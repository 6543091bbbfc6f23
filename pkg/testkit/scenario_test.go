package testkit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sfhttp "github.com/shashiranjanraj/storefront/pkg/http"
	"github.com/shashiranjanraj/storefront/pkg/mail"
	"github.com/shashiranjanraj/storefront/pkg/testkit"
)

// fakeAPI has the shapes the fixtures expect.
func fakeAPI(outbox mail.Mailer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	})
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer user-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var in struct {
			Items []struct {
				Quantity int `json:"quantity"`
			} `json:"items"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)

		resp, err := sfhttp.Post("https://hooks.example.com/orders").Body(in).Send()
		if err != nil || !resp.OK() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = outbox.Send(r.Context(), mail.To("user@example.com").WithSubject("Order received").Text("ok"))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"orderId": "ORD-1-ABCD", "quantity": in.Items[0].Quantity},
		})
	})
	mux.HandleFunc("/api/orders/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/orders/")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"orderId": id}})
	})
	return mux
}

func TestRunDirChainsCapturedVariables(t *testing.T) {
	outbox := testkit.NewOutbox()
	r := testkit.NewRunner(fakeAPI(outbox)).WithToken("user", "user-token").WithOutbox(outbox)
	r.RunDir(t, "testdata")
	assert.Equal(t, "ORD-1-ABCD", r.Var("orderId"))
}

func TestRunSuite(t *testing.T) {
	testkit.NewRunner(fakeAPI(testkit.NewOutbox())).RunSuite(t, "testdata/suite/master.json")
}

func TestLoadScenario(t *testing.T) {
	s, err := testkit.LoadScenario("testdata/02_create_order.json")
	require.NoError(t, err)

	assert.Equal(t, "POST", s.Request.Method)
	assert.Equal(t, 201, s.Expect.Status)
	assert.Equal(t, "user", s.Request.As)
	assert.True(t, s.StrictMocks)
	require.Len(t, s.Mocks, 2)
	assert.Equal(t, "https://hooks.example.com/", s.Mocks[0].Match)
	assert.JSONEq(t, `{"ok":true}`, string(s.Mocks[0].Body))
}

func TestLoadScenarioDefaults(t *testing.T) {
	s, err := testkit.LoadScenario("testdata/03_get_order.json")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, s.Request.Method)
	assert.Equal(t, http.StatusOK, s.Expect.Status)
}

func TestStrictTransportRejectsUnknownCalls(t *testing.T) {
	mt := testkit.NewMockTransport(&testkit.Scenario{
		StrictMocks: true,
		Mocks:       []testkit.Mock{{Kind: testkit.MockHTTP, Match: "https://expected.com/"}},
	})

	_, err := mt.RoundTrip(httptest.NewRequest(http.MethodGet, "https://unexpected.com/api", nil))
	assert.Error(t, err)
	assert.Equal(t, []string{"https://expected.com/"}, mt.Pending())
}

func TestOutboxFailure(t *testing.T) {
	outbox := testkit.NewOutbox()
	outbox.Fail(assert.AnError)

	err := outbox.Send(context.Background(), mail.To("a@b.c").Text("x"))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, outbox.Sent(), 1)

	outbox.Reset()
	require.NoError(t, outbox.Send(context.Background(), mail.To("a@b.c").Text("y")))
	assert.Len(t, outbox.Sent(), 1)
}

func TestSubset(t *testing.T) {
	var want, got any
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"orderId":"<any>","items":[{"qty":2}]}}`), &want))
	require.NoError(t, json.Unmarshal([]byte(`{"status":201,"data":{"orderId":"ORD-1","items":[{"qty":3,"name":"Mat"}]}}`), &got))

	assert.Equal(t, []string{"$.data.items[0].qty: want 2, got 3"}, testkit.Subset(want, got))
}

func TestLookup(t *testing.T) {
	var doc any
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"items":[{"name":"Yoga Mat Pro"}]}}`), &doc))

	v, ok := testkit.Lookup(doc, "data.items.0.name")
	assert.True(t, ok)
	assert.Equal(t, "Yoga Mat Pro", v)

	_, ok = testkit.Lookup(doc, "data.items.3")
	assert.False(t, ok)
}

func TestMockTransportRecordsWebhook(t *testing.T) {
	mt := testkit.NewMockTransport(&testkit.Scenario{
		Mocks: []testkit.Mock{{Kind: testkit.MockHTTP, Match: "POST https://hooks.slack.com/"}},
	})
	client := &http.Client{Transport: mt}

	resp, err := sfhttp.Post("https://hooks.slack.com/services/T0/B0").
		Body(map[string]string{"text": "New order ORD-1-ABCD"}).
		Using(client).
		Send()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = sfhttp.Get("https://hooks.slack.com/services/T0/B0").Using(client).Send()
	require.NoError(t, err)

	calls := mt.Calls("POST https://hooks.slack.com/")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"text":"New order ORD-1-ABCD"}`, string(calls[0].Body))
	assert.Equal(t, []string{"GET https://hooks.slack.com/services/T0/B0"}, mt.Unmatched())
	assert.Empty(t, mt.Pending())
}
