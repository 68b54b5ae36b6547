package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paylog/asaas-relay/pkg/config"
	"github.com/paylog/asaas-relay/pkg/ledger"
	"github.com/paylog/asaas-relay/pkg/storage"
	"github.com/paylog/asaas-relay/pkg/subscription"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Send(ctx context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, message)
	return nil
}

func (f *fakeNotifier) Close() error { return nil }

type failingStore struct{}

func (f *failingStore) Load(ctx context.Context, key string) ([]byte, error) {
	return nil, assert.AnError
}

func (f *failingStore) Save(ctx context.Context, key string, doc []byte) error {
	return assert.AnError
}

func (f *failingStore) Close() error { return nil }

type testEnv struct {
	srv      *httptest.Server
	ledger   *ledger.Ledger
	subs     *subscription.Log
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T, store storage.DocumentStore) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Service:  "asaas-discord-webhook",
		Timezone: "UTC",
	}
	cfg.Outputs.Discord.URL = "https://discord.com/api/webhooks/1/abc"

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fn := &fakeNotifier{}
	led := ledger.New(store)
	subs := subscription.NewLog(store)
	closing := ledger.NewClosing(led, fn, time.UTC, log)

	s := New(cfg, led, subs, closing, fn, log)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{srv: ts, ledger: led, subs: subs, notifier: fn}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(""))

	resp, err := http.Get(env.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "asaas-discord-webhook", body.Service)
	assert.Equal(t, Version, body.Version)
	assert.Equal(t, "UTC", body.TZ)
	assert.True(t, body.HasDiscordWebhook)
	assert.WithinDuration(t, time.Now(), body.Time, time.Minute)
}

func TestAsaas_PaymentConfirmed(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(""))

	resp := postJSON(t, env.srv.URL+"/asaas", `{
		"event": "PAYMENT_CONFIRMED",
		"payment": {"value": 150.00, "customerName": "Maria"},
		"customer": {"name": "Maria Silva"}
	}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ack map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, true, ack["ok"])

	doc, err := env.ledger.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Payments, 1)
	assert.True(t, doc.Payments[0].Value.Equal(decimal.NewFromInt(150)))

	require.Len(t, env.notifier.msgs, 1)
	assert.Contains(t, env.notifier.msgs[0], "Pagamento confirmado")
	// payment.customerName wins over customer.name
	assert.Contains(t, env.notifier.msgs[0], "Cliente: Maria\n")
	assert.Contains(t, env.notifier.msgs[0], "R$ 150.00")
}

func TestAsaas_PaymentMissingValue(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(""))

	resp := postJSON(t, env.srv.URL+"/asaas", `{"event": "PAYMENT_CONFIRMED"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	doc, err := env.ledger.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Payments, 1)
	assert.True(t, doc.Payments[0].Value.IsZero())

	require.Len(t, env.notifier.msgs, 1)
	// No candidate name anywhere: placeholder
	assert.Contains(t, env.notifier.msgs[0], "Cliente: —")
	assert.Contains(t, env.notifier.msgs[0], "R$ 0.00")
}

func TestAsaas_SubscriptionCreated(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(""))

	resp := postJSON(t, env.srv.URL+"/asaas", `{
		"event": "SUBSCRIPTION_CREATED",
		"subscription": {
			"id": "sub_1",
			"name": "Plano Pro",
			"customer": "cus_9",
			"value": 49.90,
			"billingType": "CREDIT_CARD",
			"cycle": "MONTHLY"
		},
		"customer": {"id": "cus_9", "name": "João"}
	}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	res, err := env.subs.Query(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	rec := res.Items[0]
	assert.Equal(t, "sub_1", rec.ID)
	assert.Equal(t, "Plano Pro", rec.Name)
	assert.Equal(t, "cus_9", rec.CustomerID)
	assert.Equal(t, "João", rec.CustomerName)
	assert.True(t, rec.Value.Equal(decimal.RequireFromString("49.9")))
	assert.Equal(t, "CREDIT_CARD", rec.BillingType)
	assert.Equal(t, "MONTHLY", rec.Cycle)
	assert.False(t, rec.CreatedAt.IsZero())

	require.Len(t, env.notifier.msgs, 1)
	assert.Contains(t, env.notifier.msgs[0], "Nova assinatura criada")
	assert.Contains(t, env.notifier.msgs[0], "Plano: Plano Pro")
	assert.Contains(t, env.notifier.msgs[0], "R$ 49.90")
}

func TestAsaas_SubscriptionNameFallback(t *testing.T) {
	// customer.name absent; subscription.customerName must win.
	env := newTestEnv(t, storage.NewMemoryStore(""))

	resp := postJSON(t, env.srv.URL+"/asaas", `{
		"event": "SUBSCRIPTION_CREATED",
		"subscription": {
			"id": "sub_2",
			"description": "Plano via descrição",
			"customerName": "Ana",
			"value": 20
		}
	}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	res, err := env.subs.Query(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "Ana", res.Items[0].CustomerName)
	// name falls back to description
	assert.Equal(t, "Plano via descrição", res.Items[0].Name)
}

func TestAsaas_UnknownEvent(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(""))

	resp := postJSON(t, env.srv.URL+"/asaas", `{"event": "PAYMENT_OVERDUE", "payment": {"value": 10}}`)
	defer resp.Body.Close()

	// Still a success acknowledgment, but nothing happened
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var ack map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, true, ack["ok"])

	doc, err := env.ledger.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Payments)
	assert.Empty(t, env.notifier.msgs)
}

func TestAsaas_BadJSON(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(""))

	resp := postJSON(t, env.srv.URL+"/asaas", `{not json`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var ack map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, false, ack["ok"])
	assert.Equal(t, "internal", ack["error"])
}

func TestAsaas_StorageFailure(t *testing.T) {
	env := newTestEnv(t, &failingStore{})

	resp := postJSON(t, env.srv.URL+"/asaas", `{"event": "PAYMENT_CONFIRMED", "payment": {"value": 10}}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var ack map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, "internal", ack["error"])
	// The failed append also means no notification went out
	assert.Empty(t, env.notifier.msgs)
}

func TestManualClosing(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(""))

	require.NoError(t, env.ledger.Append(context.Background(), decimal.NewFromInt(100)))

	resp := postJSON(t, env.srv.URL+"/fechamento-manual", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Fechamento disparado", string(body))

	require.Len(t, env.notifier.msgs, 1)
	assert.Contains(t, env.notifier.msgs[0], "Fechamento diário")
}

func TestManualClosing_FixedAckOnFailure(t *testing.T) {
	env := newTestEnv(t, &failingStore{})

	resp := postJSON(t, env.srv.URL+"/fechamento-manual", "")
	defer resp.Body.Close()

	// The acknowledgment never changes, whatever the closing did
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Fechamento disparado", string(body))
}

func TestSubscriptionsQuery(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(""))
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		require.NoError(t, env.subs.Append(ctx, subscription.Record{
			ID:        "sub_" + string(rune('a'+i)),
			Value:     decimal.NewFromInt(10),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	// Default limit is 20
	resp, err := http.Get(env.srv.URL + "/assinaturas")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var res struct {
		Count  int               `json:"count"`
		Total  decimal.Decimal   `json:"total"`
		Ticket decimal.Decimal   `json:"ticket"`
		Items  []json.RawMessage `json:"itens"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, 20, res.Count)
	assert.Len(t, res.Items, 20)
	assert.True(t, res.Total.Equal(decimal.NewFromInt(200)))
	assert.True(t, res.Ticket.Equal(decimal.NewFromInt(10)))

	// Explicit limit
	resp2, err := http.Get(env.srv.URL + "/assinaturas?limit=5")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&res))
	assert.Equal(t, 5, res.Count)

	// Unparseable limit falls back to the default
	resp3, err := http.Get(env.srv.URL + "/assinaturas?limit=abc")
	require.NoError(t, err)
	defer resp3.Body.Close()
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&res))
	assert.Equal(t, 20, res.Count)
}

func TestSubscriptionsQuery_StorageFailure(t *testing.T) {
	env := newTestEnv(t, &failingStore{})

	resp, err := http.Get(env.srv.URL + "/assinaturas")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(""))

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/asaas"},
		{http.MethodGet, "/fechamento-manual"},
		{http.MethodPost, "/assinaturas"},
		{http.MethodPost, "/health"},
	}
	for _, tc := range cases {
		req, err := http.NewRequest(tc.method, env.srv.URL+tc.path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}
