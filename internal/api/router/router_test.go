package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cchristou3/cyparking-cloud/internal/accounts"
	"github.com/cchristou3/cyparking-cloud/internal/parking"
	"github.com/cchristou3/cyparking-cloud/internal/payments"
	"github.com/cchristou3/cyparking-cloud/internal/store"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

func newTestRouter() http.Handler {
	mem := store.NewMemoryStore()
	logger := logging.Default()
	stripe := payments.NewClient("sk_test", logger)
	parkingSvc := parking.NewService(mem, nil, 1000, logger)
	accountsSvc := accounts.NewService(mem, stripe, nil, logger)

	return New(&Config{
		Logger:          logger,
		ParkingHandler:  parking.NewHandler(parkingSvc, logger),
		AccountsHandler: accounts.NewHandler(accountsSvc, nil, logger),
		PaymentsHandler: payments.NewHandler(mem, stripe, nil, false, logger),
		StripeWebhook:   payments.NewWebhookHandler("whsec_test", mem, stripe, nil, nil, logger),
		UserJWTSecret:   "secret",
	})
}

func TestHealthIsPublic(t *testing.T) {
	r := newTestRouter()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestNearbyIsPublic(t *testing.T) {
	r := newTestRouter()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/lots/nearby",
		bytes.NewBufferString(`{"latitude": 35.1856, "longitude": 33.3823}`)))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPaymentsRequireIdentity(t *testing.T) {
	r := newTestRouter()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payments",
		bytes.NewBufferString(`{"lotDocId":"lot-1","slotOfferIndex":0,"currency":"eur"}`)))

	assert.Equal(t, http.StatusPreconditionFailed, rr.Code)
}

func TestWebhookRejectsUnsignedDelivery(t *testing.T) {
	r := newTestRouter()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/stripe/webhooks",
		bytes.NewBufferString(`{"type":"payment_intent.succeeded"}`)))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
