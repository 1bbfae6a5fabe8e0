package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cchristou3/cyparking-cloud/internal/observability/metrics"
	"github.com/cchristou3/cyparking-cloud/internal/store"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

// relevantEvents is the fixed allow-list of payment lifecycle events
// this system reacts to. Everything else is acknowledged without
// action.
var relevantEvents = map[string]struct{}{
	"payment_intent.succeeded":      {},
	"payment_intent.processing":     {},
	"payment_intent.payment_failed": {},
	"payment_intent.canceled":       {},
}

type intentRetriever interface {
	RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
}

// WebhookHandler is the Stripe webhook dispatcher: it verifies the
// signature, filters event types against the allow-list and reconciles
// the stored payment document with the processor's authoritative state.
type WebhookHandler struct {
	webhookSecret string
	store         store.Store
	stripe        intentRetriever
	processed     ProcessedTracker
	metrics       *metrics.Metrics
	logger        *logging.Logger
}

// NewWebhookHandler creates the webhook dispatcher. processed and
// m may be nil, which disables dedup and instrumentation.
func NewWebhookHandler(
	webhookSecret string,
	st store.Store,
	stripe intentRetriever,
	processed ProcessedTracker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		webhookSecret: webhookSecret,
		store:         st,
		stripe:        stripe,
		processed:     processed,
		metrics:       m,
		logger:        logger,
	}
}

// webhookEvent is the Stripe event envelope. Only the intent id is
// read from the payload; the object itself is re-retrieved from Stripe.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// Handle processes POST /stripe/webhooks.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	// Signature verification gates everything: an unsigned payload is
	// never interpreted as an event.
	sigHeader := r.Header.Get("Stripe-Signature")
	if !verifySignature(h.webhookSecret, payload, sigHeader) {
		h.logger.Error("webhook signature verification failed")
		http.Error(w, "Webhook Error: Invalid Secret", http.StatusUnauthorized)
		return
	}

	var evt webhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode stripe event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if _, relevant := relevantEvents[evt.Type]; relevant {
		if evt.ID != "" && h.processed != nil {
			if done, perr := h.processed.AlreadyProcessed(r.Context(), "stripe", evt.ID); perr != nil {
				h.logger.Error("processed lookup failed", "error", perr, "event_id", evt.ID)
			} else if done {
				h.metrics.ObserveWebhook(evt.Type, "duplicate")
				h.acknowledge(w)
				return
			}
		}

		if err := h.updatePaymentRecord(r.Context(), evt.Data.Object.ID); err != nil {
			h.logger.Error("webhook handler failed",
				"event_id", evt.ID,
				"event_type", evt.Type,
				"intent_id", evt.Data.Object.ID,
				"error", err,
			)
			h.metrics.ObserveWebhook(evt.Type, "error")
			http.Error(w, "Webhook handler failed. View logs.", http.StatusBadRequest)
			return
		}

		if evt.ID != "" && h.processed != nil {
			if perr := h.processed.MarkProcessed(r.Context(), "stripe", evt.ID); perr != nil {
				h.logger.Error("failed to record processed event", "error", perr, "event_id", evt.ID)
			}
		}
		h.metrics.ObserveWebhook(evt.Type, "handled")
	} else {
		h.metrics.ObserveWebhook(evt.Type, "ignored")
	}

	h.metrics.ObserveWebhookLatency(evt.Type, time.Since(start).Seconds())
	h.acknowledge(w)
}

func (h *WebhookHandler) acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}

// updatePaymentRecord re-retrieves the intent from Stripe and
// overwrites the stored payment document with it. Exactly-one-match is
// enforced at both lookup stages; zero or multiple matches fail the
// whole event.
func (h *WebhookHandler) updatePaymentRecord(ctx context.Context, intentID string) error {
	if intentID == "" {
		return fmt.Errorf("payments: event carried no intent id")
	}

	intent, err := h.stripe.RetrievePaymentIntent(ctx, intentID)
	if err != nil {
		return fmt.Errorf("payments: failed to retrieve intent %s: %w", intentID, err)
	}

	customers, err := h.store.Query(ctx, store.CollectionStripeCustomers, store.FieldCustomerID, intent.Customer)
	if err != nil {
		return fmt.Errorf("payments: customer lookup failed: %w", err)
	}
	if len(customers) != 1 {
		return fmt.Errorf("payments: expected exactly one customer for %s, found %d", intent.Customer, len(customers))
	}
	userID := customers[0].Ref.ID

	collection := store.PaymentsCollection(userID)
	docs, err := h.store.Query(ctx, collection, store.FieldIntentID, intent.ID)
	if err != nil {
		return fmt.Errorf("payments: payment lookup failed: %w", err)
	}
	if len(docs) != 1 {
		return fmt.Errorf("payments: expected exactly one payment document for %s, found %d", intent.ID, len(docs))
	}

	if err := h.store.Set(ctx, collection, docs[0].Ref.ID, store.Document(intent.Raw)); err != nil {
		return fmt.Errorf("payments: failed to update payment record: %w", err)
	}
	return nil
}

// verifySignature verifies a Stripe webhook signature. Stripe signs
// with HMAC-SHA256 and sends the signature in the Stripe-Signature
// header as: t=<timestamp>,v1=<signature>[,v0=<test_signature>]
// A missing secret fails closed: without one, no delivery can be
// authenticated.
func verifySignature(secret string, payload []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}

	var timestamp string
	var signatures []string

	parts := strings.Split(header, ",")
	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	// Check timestamp tolerance (5 minutes)
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(time.Now().Unix()-ts) > 300 {
		return false
	}

	// Compute expected signature: HMAC-SHA256(secret, "timestamp.payload")
	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
