package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cchristou3/cyparking-cloud/internal/fault"
	"github.com/cchristou3/cyparking-cloud/internal/observability/metrics"
	"github.com/cchristou3/cyparking-cloud/internal/parking"
	"github.com/cchristou3/cyparking-cloud/internal/report"
	"github.com/cchristou3/cyparking-cloud/internal/store"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

// Payment document field names.
const (
	fieldLotDocID        = "lotDocId"
	fieldSlotOfferIndex  = "slotOfferIndex"
	fieldCurrency        = "currency"
	fieldValidationError = "validation_error"
	fieldStripeError     = "stripe_error"
)

type intentCreator interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID, idempotencyKey string) (*PaymentIntent, error)
}

// Orchestrator reacts to newly created payment-request documents: it
// validates the request, prices the selected slot offer and creates the
// Stripe payment intent, writing the outcome back onto the same
// document. A request never hangs; it always ends up carrying either an
// intent or an error field.
type Orchestrator struct {
	store    store.Store
	stripe   intentCreator
	reporter *report.Reporter
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(st store.Store, stripe intentCreator, reporter *report.Reporter, logger *logging.Logger) *Orchestrator {
	if st == nil {
		panic("payments: store cannot be nil")
	}
	if stripe == nil {
		panic("payments: stripe client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{store: st, stripe: stripe, reporter: reporter, logger: logger}
}

// WithMetrics attaches intent instrumentation.
func (o *Orchestrator) WithMetrics(m *metrics.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// HandlePaymentRequestCreated processes one creation event for
// stripe_customers/{userID}/payments/{pushID}. The push id doubles as
// the Stripe idempotency key, so redelivered events cannot
// double-charge.
func (o *Orchestrator) HandlePaymentRequestCreated(ctx context.Context, userID, pushID string) error {
	collection := store.PaymentsCollection(userID)

	doc, err := o.store.Get(ctx, collection, pushID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			o.logger.Warn("payment request vanished before processing", "user_id", userID, "push_id", pushID)
			return nil
		}
		return fmt.Errorf("payments: failed to read payment request: %w", err)
	}

	// A redelivered event for an already-processed document is a no-op;
	// the intent (or error) is attached exactly once.
	if alreadyProcessed(doc) {
		o.logger.Info("payment request already processed", "user_id", userID, "push_id", pushID)
		return nil
	}

	amount, currency, err := o.validateAndPrice(ctx, doc)
	if err != nil {
		o.logger.Warn("payment request validation failed", "user_id", userID, "push_id", pushID, "error", err)
		o.reporter.Report(ctx, err, report.Context{User: userID})
		o.metrics.ObserveIntent("validation_error")
		// Validation messages are composed here and user-safe; they are
		// stored verbatim rather than sanitized.
		return o.store.Merge(ctx, collection, pushID, store.Document{
			fieldValidationError: fault.MessageOf(err),
		})
	}

	customerID, err := o.lookupCustomerID(ctx, userID)
	if err != nil {
		o.reporter.Report(ctx, err, report.Context{User: userID})
		return o.store.Merge(ctx, collection, pushID, store.Document{
			fieldStripeError: report.UserFacingMessage(err),
		})
	}

	intent, err := o.stripe.CreatePaymentIntent(ctx, amount, currency, customerID, pushID)
	if err != nil {
		o.logger.Error("payment intent creation failed", "user_id", userID, "push_id", pushID, "error", err)
		o.reporter.Report(ctx, err, report.Context{User: userID})
		o.metrics.ObserveIntent("stripe_error")
		return o.store.Merge(ctx, collection, pushID, store.Document{
			fieldStripeError: report.UserFacingMessage(err),
		})
	}

	// Merge, not overwrite: concurrently written fields on the request
	// document survive.
	if err := o.store.Merge(ctx, collection, pushID, store.Document(intent.Raw)); err != nil {
		return fmt.Errorf("payments: failed to attach intent: %w", err)
	}
	o.metrics.ObserveIntent("created")
	o.logger.Info("payment intent attached", "user_id", userID, "push_id", pushID, "intent_id", intent.ID, "amount", amount)
	return nil
}

func alreadyProcessed(doc store.Document) bool {
	if id, ok := doc[store.FieldIntentID].(string); ok && id != "" {
		return true
	}
	if _, ok := doc[fieldValidationError]; ok {
		return true
	}
	if _, ok := doc[fieldStripeError]; ok {
		return true
	}
	return false
}

// validateAndPrice checks the request document against the referenced
// lot and returns the minor-unit charge amount.
func (o *Orchestrator) validateAndPrice(ctx context.Context, doc store.Document) (int64, string, error) {
	lotDocID, _ := doc[fieldLotDocID].(string)
	currency, _ := doc[fieldCurrency].(string)
	if lotDocID == "" || currency == "" {
		return 0, "", fault.New(fault.FailedPrecondition,
			"Missing one or both of the following parameters: lotDocId, currency.")
	}

	index, ok := asInt(doc[fieldSlotOfferIndex])
	if !ok {
		return 0, "", fault.New(fault.FailedPrecondition,
			"The index must be a valid position in the list of offers that the lot provides.")
	}

	lotDoc, err := o.store.Get(ctx, store.CollectionParkingLots, lotDocID)
	if err != nil {
		return 0, "", fault.Wrap(fault.FailedPrecondition, "The referenced parking lot could not be read.", err)
	}
	lot, err := parking.DecodeLot(lotDoc)
	if err != nil {
		return 0, "", fault.Wrap(fault.FailedPrecondition, "The referenced parking lot is malformed.", err)
	}

	// An out-of-range index should never arrive from the client UI; it
	// means a stale or malicious caller.
	if index < 0 || index >= len(lot.SlotOfferList) {
		return 0, "", fault.New(fault.FailedPrecondition,
			"The index must be a valid position in the list of offers that the lot provides.")
	}

	// The stored list order is not assumed sorted; ordering by ascending
	// price is imposed here, at charge time.
	offers := make([]parking.SlotOffer, len(lot.SlotOfferList))
	copy(offers, lot.SlotOfferList)
	sort.SliceStable(offers, func(i, j int) bool { return offers[i].Price < offers[j].Price })

	amount := int64(math.Floor(offers[index].Price * 100))
	return amount, currency, nil
}

func (o *Orchestrator) lookupCustomerID(ctx context.Context, userID string) (string, error) {
	mapping, err := o.store.Get(ctx, store.CollectionStripeCustomers, userID)
	if err != nil {
		return "", fmt.Errorf("payments: failed to read customer mapping for %s: %w", userID, err)
	}
	customerID, _ := mapping[store.FieldCustomerID].(string)
	if customerID == "" {
		return "", fmt.Errorf("payments: no stripe customer mapped for %s", userID)
	}
	return customerID, nil
}

// asInt coerces the numeric representations a document round-trip can
// produce.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
