package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cchristou3/cyparking-cloud/internal/accounts"
	httpmiddleware "github.com/cchristou3/cyparking-cloud/internal/http/middleware"
	"github.com/cchristou3/cyparking-cloud/internal/parking"
	"github.com/cchristou3/cyparking-cloud/internal/payments"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	ParkingHandler  *parking.Handler
	AccountsHandler *accounts.Handler
	PaymentsHandler *payments.Handler
	StripeWebhook   *payments.WebhookHandler
	MetricsHandler  http.Handler
	UserJWTSecret   string
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks, nearby search).
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.StripeWebhook != nil {
			public.Post("/stripe/webhooks", cfg.StripeWebhook.Handle)
		}
		if cfg.ParkingHandler != nil {
			public.Post("/lots/nearby", cfg.ParkingHandler.Nearby)
		}
	})

	// Authenticated endpoints. The JWT middleware injects the user id;
	// handlers that require one reject unauthenticated requests
	// themselves.
	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.UserJWT(cfg.UserJWTSecret))
		if cfg.ParkingHandler != nil {
			private.Post("/lots", cfg.ParkingHandler.Register)
			private.Post("/lots/{lotID}/availability", cfg.ParkingHandler.Availability)
			private.Put("/lots/{lotID}/offers", cfg.ParkingHandler.Offers)
		}
		if cfg.AccountsHandler != nil {
			private.Post("/accounts", cfg.AccountsHandler.Register)
			private.Post("/accounts/email", cfg.AccountsHandler.UpdateEmail)
			private.Delete("/accounts", cfg.AccountsHandler.Delete)
		}
		if cfg.PaymentsHandler != nil {
			private.Post("/payments", cfg.PaymentsHandler.Intake)
			private.Post("/payments/ephemeral-keys", cfg.PaymentsHandler.EphemeralKey)
		}
	})

	return r
}
