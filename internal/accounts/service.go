package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cchristou3/cyparking-cloud/internal/fault"
	"github.com/cchristou3/cyparking-cloud/internal/payments"
	"github.com/cchristou3/cyparking-cloud/internal/report"
	"github.com/cchristou3/cyparking-cloud/internal/store"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

type customerAPI interface {
	CreateCustomer(ctx context.Context, email, userID string) (*payments.Customer, error)
	DeleteCustomer(ctx context.Context, customerID string) error
}

// Service owns the account lifecycle: payment-profile creation on
// registration, email propagation and full teardown on deletion.
type Service struct {
	store    store.Store
	stripe   customerAPI
	reporter *report.Reporter
	logger   *logging.Logger
}

// NewService wires the account service.
func NewService(st store.Store, stripe customerAPI, reporter *report.Reporter, logger *logging.Logger) *Service {
	if st == nil {
		panic("accounts: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: st, stripe: stripe, reporter: reporter, logger: logger}
}

// Register creates the user's profile document and their Stripe
// customer, then persists the mapping between the two.
func (s *Service) Register(ctx context.Context, userID, email string) error {
	if userID == "" || email == "" {
		return fault.New(fault.InvalidArgument, "Missing one or both parameters: userId, email")
	}

	if err := s.store.Set(ctx, store.CollectionUsers, userID, store.Document{
		store.FieldEmail: email,
	}); err != nil {
		return fault.Wrap(fault.Internal, "The account profile could not be stored.", err)
	}

	customer, err := s.stripe.CreateCustomer(ctx, email, userID)
	if err != nil {
		s.reporter.Report(ctx, err, report.Context{User: userID})
		return fault.Wrap(fault.Internal, "The payment profile could not be created.", err)
	}

	if err := s.store.Set(ctx, store.CollectionStripeCustomers, userID, store.Document{
		store.FieldCustomerID: customer.ID,
		store.FieldEmail:      email,
	}); err != nil {
		return fault.Wrap(fault.Internal, "The payment profile could not be stored.", err)
	}

	s.logger.Info("account registered", "user_id", userID, "customer_id", customer.ID)
	return nil
}

// UpdateEmail rewrites the account's email on the profile document and
// on every feedback document that still carries the old address. All
// writes land in one atomic batch.
func (s *Service) UpdateEmail(ctx context.Context, userID, newEmail string) error {
	if newEmail == "" {
		return fault.New(fault.InvalidArgument, "Missing parameter: email")
	}

	profile, err := s.store.Get(ctx, store.CollectionUsers, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fault.New(fault.FailedPrecondition, "No account profile exists for this user.")
		}
		return fault.Wrap(fault.Internal, "The account profile could not be read.", err)
	}
	oldEmail, _ := profile[store.FieldEmail].(string)

	batch := s.store.Batch()
	if oldEmail != "" && oldEmail != newEmail {
		feedback, err := s.store.Query(ctx, store.CollectionFeedback, store.FieldEmail, oldEmail)
		if err != nil {
			return fault.Wrap(fault.Internal, "The feedback documents could not be read.", err)
		}
		for _, doc := range feedback {
			batch.Update(doc.Ref, store.Document{store.FieldEmail: newEmail})
		}
	}
	batch.Update(store.Ref{Collection: store.CollectionUsers, ID: userID}, store.Document{
		store.FieldEmail: newEmail,
	})

	if err := batch.Commit(ctx); err != nil {
		return fault.Wrap(fault.Internal, "The email update could not be committed.", err)
	}
	s.logger.Info("account email updated", "user_id", userID)
	return nil
}

// Teardown removes everything the account owns. The document side is
// one atomic batch: feedback written by the account, bookings it
// issued, parking lots it operates and the profile document all vanish
// together or not at all. The payment side (Stripe customer, payment
// history, customer mapping) runs alongside; a failed branch is
// reported, never silently dropped.
func (s *Service) Teardown(ctx context.Context, userID string) error {
	if userID == "" {
		return fault.New(fault.InvalidArgument, "Missing parameter: userId")
	}

	var email string
	profile, err := s.store.Get(ctx, store.CollectionUsers, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fault.Wrap(fault.Internal, "The account profile could not be read.", err)
	}
	if profile != nil {
		email, _ = profile[store.FieldEmail].(string)
	}

	refs := s.collectOwnedDocuments(ctx, userID, email)

	batch := s.store.Batch()
	for _, ref := range refs {
		batch.Delete(ref)
	}
	batch.Delete(store.Ref{Collection: store.CollectionUsers, ID: userID})
	if err := batch.Commit(ctx); err != nil {
		s.reporter.Report(ctx, err, report.Context{User: userID})
		return fault.Wrap(fault.Internal, "The account documents could not be deleted.", err)
	}

	// Payment-side failures are reported, never propagated: the document
	// batch already committed, and a later re-run of the remaining
	// branches is idempotent.
	if err := s.teardownPaymentProfile(ctx, userID); err != nil {
		s.reporter.Report(ctx, err, report.Context{User: userID})
		s.logger.Error("payment profile teardown incomplete", "user_id", userID, "error", err)
	}

	s.logger.Info("account torn down", "user_id", userID, "documents", len(refs)+1)
	return nil
}

// collectOwnedDocuments runs the ownership queries concurrently. A
// failed query is reported and its branch skipped; the remaining
// branches still tear down.
func (s *Service) collectOwnedDocuments(ctx context.Context, userID, email string) []store.Ref {
	type branch struct {
		collection string
		field      string
		value      string
	}
	branches := []branch{
		{store.CollectionBookings, store.FieldBookingUserID, userID},
		{store.CollectionBookings, store.FieldOperatorID, userID},
		{store.CollectionParkingLots, store.FieldOperatorID, userID},
	}
	if email != "" {
		branches = append(branches, branch{store.CollectionFeedback, store.FieldEmail, email})
	}

	var mu sync.Mutex
	var refs []store.Ref
	var wg sync.WaitGroup
	for _, b := range branches {
		wg.Add(1)
		go func(b branch) {
			defer wg.Done()
			docs, err := s.store.Query(ctx, b.collection, b.field, b.value)
			if err != nil {
				s.reporter.Report(ctx, fmt.Errorf("accounts: teardown query %s failed: %w", b.collection, err),
					report.Context{User: userID})
				s.logger.Error("teardown query failed", "collection", b.collection, "user_id", userID, "error", err)
				return
			}
			mu.Lock()
			for _, doc := range docs {
				refs = append(refs, doc.Ref)
			}
			mu.Unlock()
		}(b)
	}
	wg.Wait()

	// A document can match more than one branch (a booking both issued
	// and operated by the account); the atomic batch tolerates each ref
	// once only.
	seen := make(map[store.Ref]struct{}, len(refs))
	unique := refs[:0]
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		unique = append(unique, ref)
	}
	return unique
}

// teardownPaymentProfile deletes the Stripe customer, the stored
// payment history and the customer mapping.
func (s *Service) teardownPaymentProfile(ctx context.Context, userID string) error {
	mapping, err := s.store.Get(ctx, store.CollectionStripeCustomers, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil // account never had a payment profile
		}
		return fmt.Errorf("accounts: failed to read customer mapping: %w", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	collect := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	if customerID, _ := mapping[store.FieldCustomerID].(string); customerID != "" && s.stripe != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.stripe.DeleteCustomer(ctx, customerID); err != nil {
				collect(fmt.Errorf("accounts: failed to delete stripe customer: %w", err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		collection := store.PaymentsCollection(userID)
		docs, err := s.store.All(ctx, collection)
		if err != nil {
			collect(fmt.Errorf("accounts: failed to list payment history: %w", err))
			return
		}
		if len(docs) == 0 {
			return
		}
		batch := s.store.Batch()
		for _, doc := range docs {
			batch.Delete(doc.Ref)
		}
		if err := batch.Commit(ctx); err != nil {
			collect(fmt.Errorf("accounts: failed to purge payment history: %w", err))
		}
	}()

	wg.Wait()

	if err := s.store.Delete(ctx, store.CollectionStripeCustomers, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		errs = append(errs, fmt.Errorf("accounts: failed to delete customer mapping: %w", err))
	}

	return errors.Join(errs...)
}
