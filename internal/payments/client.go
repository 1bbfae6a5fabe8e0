package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

var stripeTracer = otel.Tracer("cyparking.internal.payments.stripe")

// Client talks to the Stripe REST API. Customers, ephemeral keys and
// payment intents are the only surfaces this system touches.
type Client struct {
	secretKey  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a Stripe API client.
func NewClient(secretKey string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		secretKey:  secretKey,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2020-03-02",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (c *Client) WithBaseURL(baseURL string) *Client {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// APIError is a Stripe-typed error. Its message is user-safe by
// Stripe's own contract, which the sanitizer relies on.
type APIError struct {
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string { return e.Message }

// ErrorType exposes the processor's error discriminator.
func (e *APIError) ErrorType() string { return e.Type }

// Customer is the subset of Stripe's customer object we keep.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// PaymentIntent carries the fields the handlers inspect plus the raw
// object for document writes.
type PaymentIntent struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Customer     string `json:"customer"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`

	Raw map[string]any `json:"-"`
}

// CreateCustomer creates a Stripe customer for a newly registered user.
// The application user id travels as metadata so users can be looked up
// from the Stripe dashboard.
func (c *Client) CreateCustomer(ctx context.Context, email, userID string) (*Customer, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_customer")
	defer span.End()
	span.SetAttributes(attribute.String("cyparking.user_id", userID))

	form := url.Values{}
	form.Set("email", email)
	form.Set("metadata[appUserId]", userID)

	body, err := c.do(ctx, http.MethodPost, "/v1/customers", form, "", "")
	if err != nil {
		return nil, err
	}
	var customer Customer
	if err := json.Unmarshal(body, &customer); err != nil {
		return nil, fmt.Errorf("payments: stripe decode customer: %w", err)
	}
	return &customer, nil
}

// DeleteCustomer removes the Stripe customer object and its stored
// payment methods.
func (c *Client) DeleteCustomer(ctx context.Context, customerID string) error {
	ctx, span := stripeTracer.Start(ctx, "stripe.delete_customer")
	defer span.End()
	span.SetAttributes(attribute.String("cyparking.customer_id", customerID))

	_, err := c.do(ctx, http.MethodDelete, "/v1/customers/"+url.PathEscape(customerID), nil, "", "")
	return err
}

// CreateEphemeralKey issues a key scoped to the customer for the mobile
// SDK, pinned to the API version the client requested.
func (c *Client) CreateEphemeralKey(ctx context.Context, customerID, apiVersion string) (map[string]any, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_ephemeral_key")
	defer span.End()
	span.SetAttributes(attribute.String("cyparking.customer_id", customerID))

	form := url.Values{}
	form.Set("customer", customerID)

	body, err := c.do(ctx, http.MethodPost, "/v1/ephemeral_keys", form, "", apiVersion)
	if err != nil {
		return nil, err
	}
	var key map[string]any
	if err := json.Unmarshal(body, &key); err != nil {
		return nil, fmt.Errorf("payments: stripe decode ephemeral key: %w", err)
	}
	return key, nil
}

// CreatePaymentIntent creates a charge request. The idempotency key
// guarantees duplicate deliveries of the same logical request never
// produce two charges.
func (c *Client) CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID, idempotencyKey string) (*PaymentIntent, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_payment_intent")
	defer span.End()
	span.SetAttributes(
		attribute.String("cyparking.customer_id", customerID),
		attribute.Int64("cyparking.amount", amount),
	)

	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", amount))
	form.Set("currency", currency)
	form.Set("customer", customerID)

	body, err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, idempotencyKey, "")
	if err != nil {
		return nil, err
	}
	return decodeIntent(body)
}

// RetrievePaymentIntent fetches the authoritative intent object by id.
// Webhook processing always re-retrieves instead of trusting payloads.
func (c *Client) RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.retrieve_payment_intent")
	defer span.End()
	span.SetAttributes(attribute.String("cyparking.intent_id", id))

	body, err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil, "", "")
	if err != nil {
		return nil, err
	}
	return decodeIntent(body)
}

func decodeIntent(body []byte) (*PaymentIntent, error) {
	var intent PaymentIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("payments: stripe decode intent: %w", err)
	}
	if err := json.Unmarshal(body, &intent.Raw); err != nil {
		return nil, fmt.Errorf("payments: stripe decode intent object: %w", err)
	}
	return &intent, nil
}

// stripeErrorResponse is Stripe's error envelope.
type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, idempotencyKey, apiVersion string) ([]byte, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if apiVersion == "" {
		apiVersion = c.apiVersion
	}
	req.Header.Set("Stripe-Version", apiVersion)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe read body: %w", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		var parsed stripeErrorResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
			return nil, &APIError{
				Type:       parsed.Error.Type,
				Code:       parsed.Error.Code,
				Message:    parsed.Error.Message,
				StatusCode: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
