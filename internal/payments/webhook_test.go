package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchristou3/cyparking-cloud/internal/store"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

const webhookTestSecret = "whsec_test"

type fakeIntentRetriever struct {
	intents map[string]*PaymentIntent
	calls   int
}

func (f *fakeIntentRetriever) RetrievePaymentIntent(_ context.Context, id string) (*PaymentIntent, error) {
	f.calls++
	intent, ok := f.intents[id]
	if !ok {
		return nil, &APIError{Type: "invalid_request_error", Message: "No such payment_intent: " + id}
	}
	return intent, nil
}

func signPayload(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func succeededIntent() *PaymentIntent {
	return &PaymentIntent{
		ID:       "pi_1",
		Amount:   250,
		Currency: "eur",
		Customer: "cus_1",
		Status:   "succeeded",
		Raw: map[string]any{
			"id":       "pi_1",
			"amount":   float64(250),
			"currency": "eur",
			"customer": "cus_1",
			"status":   "succeeded",
		},
	}
}

func newWebhookFixture(t *testing.T) (*WebhookHandler, *store.MemoryStore, *fakeIntentRetriever) {
	t.Helper()
	mem := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, store.CollectionStripeCustomers, "user-1", store.Document{
		store.FieldCustomerID: "cus_1",
	}))
	require.NoError(t, mem.Set(ctx, store.PaymentsCollection("user-1"), "push-1", store.Document{
		"id":       "pi_1",
		"status":   "requires_payment_method",
		"lotDocId": "lot-1",
	}))
	retriever := &fakeIntentRetriever{intents: map[string]*PaymentIntent{"pi_1": succeededIntent()}}
	h := NewWebhookHandler(webhookTestSecret, mem, retriever, nil, nil, logging.Default())
	return h, mem, retriever
}

func deliver(h *WebhookHandler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhooks", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	return rr
}

func eventPayload(eventID, eventType, intentID string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"type":%q,"data":{"object":{"id":%q}}}`, eventID, eventType, intentID))
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	h, _, retriever := newWebhookFixture(t)
	payload := eventPayload("evt_1", "payment_intent.succeeded", "pi_1")

	rr := deliver(h, payload, "t=123,v1=deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Webhook Error: Invalid Secret")
	assert.Zero(t, retriever.calls)

	rr = deliver(h, payload, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestWebhookEmptySecretFailsClosed(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, store.CollectionStripeCustomers, "user-1", store.Document{
		store.FieldCustomerID: "cus_1",
	}))
	require.NoError(t, mem.Set(ctx, store.PaymentsCollection("user-1"), "push-1", store.Document{
		"id":     "pi_1",
		"status": "requires_payment_method",
	}))
	retriever := &fakeIntentRetriever{intents: map[string]*PaymentIntent{"pi_1": succeededIntent()}}
	h := NewWebhookHandler("", mem, retriever, nil, nil, logging.Default())

	payload := eventPayload("evt_1", "payment_intent.succeeded", "pi_1")

	// Unsigned delivery.
	rr := deliver(h, payload, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Even a well-formed header cannot authenticate without a secret.
	rr = deliver(h, payload, signPayload("whsec_anything", payload))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	assert.Zero(t, retriever.calls)
	doc, err := mem.Get(ctx, store.PaymentsCollection("user-1"), "push-1")
	require.NoError(t, err)
	assert.Equal(t, "requires_payment_method", doc["status"])
}

func TestWebhookRejectsTamperedPayload(t *testing.T) {
	h, _, retriever := newWebhookFixture(t)
	signature := signPayload(webhookTestSecret, eventPayload("evt_1", "payment_intent.succeeded", "pi_1"))
	tampered := eventPayload("evt_1", "payment_intent.succeeded", "pi_other")

	rr := deliver(h, tampered, signature)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, retriever.calls)
}

func TestWebhookUpdatesPaymentRecord(t *testing.T) {
	h, mem, retriever := newWebhookFixture(t)
	payload := eventPayload("evt_1", "payment_intent.succeeded", "pi_1")

	rr := deliver(h, payload, signPayload(webhookTestSecret, payload))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"received":true}`, rr.Body.String())
	assert.Equal(t, 1, retriever.calls)

	doc, err := mem.Get(context.Background(), store.PaymentsCollection("user-1"), "push-1")
	require.NoError(t, err)
	// Overwrite, not merge: the document now mirrors Stripe exactly.
	assert.Equal(t, "succeeded", doc["status"])
	assert.NotContains(t, doc, "lotDocId")
}

func TestWebhookIgnoresUnrelatedEvents(t *testing.T) {
	h, mem, retriever := newWebhookFixture(t)
	payload := eventPayload("evt_1", "charge.refunded", "pi_1")

	rr := deliver(h, payload, signPayload(webhookTestSecret, payload))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"received":true}`, rr.Body.String())
	assert.Zero(t, retriever.calls)

	doc, err := mem.Get(context.Background(), store.PaymentsCollection("user-1"), "push-1")
	require.NoError(t, err)
	assert.Equal(t, "requires_payment_method", doc["status"])
}

func TestWebhookFailsWhenNoCustomerMatches(t *testing.T) {
	h, _, retriever := newWebhookFixture(t)
	retriever.intents["pi_1"].Customer = "cus_unknown"
	retriever.intents["pi_1"].Raw["customer"] = "cus_unknown"
	payload := eventPayload("evt_1", "payment_intent.succeeded", "pi_1")

	rr := deliver(h, payload, signPayload(webhookTestSecret, payload))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWebhookFailsWhenPaymentMatchIsAmbiguous(t *testing.T) {
	h, mem, _ := newWebhookFixture(t)
	require.NoError(t, mem.Set(context.Background(), store.PaymentsCollection("user-1"), "push-2", store.Document{
		"id": "pi_1",
	}))
	payload := eventPayload("evt_1", "payment_intent.succeeded", "pi_1")

	rr := deliver(h, payload, signPayload(webhookTestSecret, payload))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWebhookDeduplicatesRedeliveries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tracker := NewRedisProcessedTracker(client, time.Hour)

	mem := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, store.CollectionStripeCustomers, "user-1", store.Document{
		store.FieldCustomerID: "cus_1",
	}))
	require.NoError(t, mem.Set(ctx, store.PaymentsCollection("user-1"), "push-1", store.Document{
		"id": "pi_1",
	}))
	retriever := &fakeIntentRetriever{intents: map[string]*PaymentIntent{"pi_1": succeededIntent()}}
	h := NewWebhookHandler(webhookTestSecret, mem, retriever, tracker, nil, logging.Default())

	payload := eventPayload("evt_1", "payment_intent.succeeded", "pi_1")
	signature := signPayload(webhookTestSecret, payload)

	rr := deliver(h, payload, signature)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = deliver(h, payload, signature)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, 1, retriever.calls)
}
