package payments

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/cchristou3/cyparking-cloud/internal/api/respond"
	"github.com/cchristou3/cyparking-cloud/internal/fault"
	"github.com/cchristou3/cyparking-cloud/internal/http/middleware"
	"github.com/cchristou3/cyparking-cloud/internal/store"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

type ephemeralKeyCreator interface {
	CreateEphemeralKey(ctx context.Context, customerID, apiVersion string) (map[string]any, error)
}

type requestProcessor interface {
	HandlePaymentRequestCreated(ctx context.Context, userID, pushID string) error
}

// Handler exposes the payment intake and ephemeral key endpoints.
type Handler struct {
	store        store.Store
	keys         ephemeralKeyCreator
	orchestrator requestProcessor
	inline       bool
	logger       *logging.Logger
}

// NewHandler wires the payment endpoints. When inline is true the
// intake endpoint runs orchestration synchronously instead of leaving
// it to the document-stream worker.
func NewHandler(st store.Store, keys ephemeralKeyCreator, orchestrator requestProcessor, inline bool, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: st, keys: keys, orchestrator: orchestrator, inline: inline, logger: logger}
}

type intakeRequest struct {
	LotDocID       string  `json:"lotDocId"`
	SlotOfferIndex int     `json:"slotOfferIndex"`
	Currency       string  `json:"currency"`
	HourlyRate     float64 `json:"hourlyRate,omitempty"`
}

// Intake handles POST /payments. It appends a payment-request document
// under the caller's payments subcollection; orchestration picks it up
// from there.
func (h *Handler) Intake(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Fault(w, fault.New(fault.FailedPrecondition, "The function must be called while authenticated!"))
		return
	}

	var req intakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fault(w, fault.New(fault.InvalidArgument, "The request body could not be parsed."))
		return
	}

	pushID := uuid.NewString()
	doc := store.Document{
		fieldLotDocID:       req.LotDocID,
		fieldSlotOfferIndex: req.SlotOfferIndex,
		fieldCurrency:       req.Currency,
	}
	collection := store.PaymentsCollection(userID)
	if err := h.store.Set(r.Context(), collection, pushID, doc); err != nil {
		h.logger.Error("failed to write payment request", "user_id", userID, "error", err)
		respond.Fault(w, fault.Wrap(fault.Internal, "The payment request could not be stored.", err))
		return
	}

	if h.inline && h.orchestrator != nil {
		if err := h.orchestrator.HandlePaymentRequestCreated(r.Context(), userID, pushID); err != nil {
			h.logger.Error("inline orchestration failed", "user_id", userID, "push_id", pushID, "error", err)
		}
		// The document now carries either an intent or an error field;
		// return it so the client need not poll.
		if processed, err := h.store.Get(r.Context(), collection, pushID); err == nil {
			processed["pushId"] = pushID
			respond.JSON(w, http.StatusOK, processed)
			return
		}
	}

	respond.JSON(w, http.StatusAccepted, map[string]string{"pushId": pushID})
}

type ephemeralKeyRequest struct {
	APIVersion string `json:"api_version"`
}

// EphemeralKey handles POST /payments/ephemeral-keys. The key is scoped
// to the caller's Stripe customer and pinned to the mobile SDK's
// requested API version.
func (h *Handler) EphemeralKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Fault(w, fault.New(fault.FailedPrecondition, "The function must be called while authenticated!"))
		return
	}

	var req ephemeralKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fault(w, fault.New(fault.InvalidArgument, "The request body could not be parsed."))
		return
	}

	mapping, err := h.store.Get(r.Context(), store.CollectionStripeCustomers, userID)
	if err != nil {
		respond.Fault(w, fault.Wrap(fault.FailedPrecondition, "No payment profile exists for this account.", err))
		return
	}
	customerID, _ := mapping[store.FieldCustomerID].(string)
	if customerID == "" {
		respond.Fault(w, fault.New(fault.FailedPrecondition, "No payment profile exists for this account."))
		return
	}

	key, err := h.keys.CreateEphemeralKey(r.Context(), customerID, req.APIVersion)
	if err != nil {
		h.logger.Error("ephemeral key creation failed", "user_id", userID, "error", err)
		respond.Fault(w, fault.Wrap(fault.Internal, "The ephemeral key could not be created.", err))
		return
	}
	respond.JSON(w, http.StatusOK, key)
}
