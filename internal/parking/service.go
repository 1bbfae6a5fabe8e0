package parking

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cchristou3/cyparking-cloud/internal/fault"
	"github.com/cchristou3/cyparking-cloud/internal/geo"
	"github.com/cchristou3/cyparking-cloud/internal/observability/metrics"
	"github.com/cchristou3/cyparking-cloud/internal/report"
	"github.com/cchristou3/cyparking-cloud/internal/store"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

// Service implements lot discovery and operator lot management.
type Service struct {
	store        store.Store
	reporter     *report.Reporter
	radiusMeters float64
	metrics      *metrics.Metrics
	logger       *logging.Logger
}

// NewService builds the parking service. A non-positive radius falls
// back to the 1000 m default.
func NewService(st store.Store, reporter *report.Reporter, radiusMeters float64, logger *logging.Logger) *Service {
	if st == nil {
		panic("parking: store cannot be nil")
	}
	if radiusMeters <= 0 {
		radiusMeters = geo.DefaultSearchRadiusMeters
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: st, reporter: reporter, radiusMeters: radiusMeters, logger: logger}
}

// WithMetrics attaches lookup instrumentation.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// NearbyLotIDs returns the ids of every lot within the search radius of
// the user. The whole lot collection is scanned and filtered here;
// there is no server-side geo index.
func (s *Service) NearbyLotIDs(ctx context.Context, latitude, longitude float64) ([]string, error) {
	docs, err := s.store.All(ctx, store.CollectionParkingLots)
	if err != nil {
		ierr := fault.Wrap(fault.Internal, "Internal server error", err)
		s.reporter.Report(ctx, ierr, report.Context{})
		s.metrics.ObserveLookup("error")
		return nil, ierr
	}
	s.metrics.ObserveLookup("ok")

	candidates := make([]geo.Candidate, 0, len(docs))
	for _, d := range docs {
		lot, err := DecodeLot(d.Data)
		if err != nil {
			// A malformed lot is treated as "not nearby", never as a
			// reason to fail the whole batch.
			s.logger.Warn("skipping malformed lot document", "lot_id", d.Ref.ID, "error", err)
			continue
		}
		candidates = append(candidates, geo.Candidate{ID: d.Ref.ID, Coordinate: lot.Coordinate})
	}

	return geo.Filter(candidates, geo.Point{Latitude: latitude, Longitude: longitude}, s.radiusMeters), nil
}

// RegisterLot stores a new lot for the operator and returns its id.
func (s *Service) RegisterLot(ctx context.Context, lot *Lot) (string, error) {
	if lot.Coordinate == nil {
		return "", fault.New(fault.InvalidArgument, "A lot requires valid coordinates.")
	}
	if lot.Capacity <= 0 {
		return "", fault.New(fault.InvalidArgument, "A lot requires a positive capacity.")
	}
	if lot.AvailableSpaces < 0 || lot.AvailableSpaces > lot.Capacity {
		return "", fault.New(fault.FailedPrecondition, "Available spaces must be between zero and the lot's capacity.")
	}

	id := uuid.NewString()
	if err := s.store.Set(ctx, store.CollectionParkingLots, id, lot.Encode()); err != nil {
		return "", fault.Wrap(fault.Internal, "Internal server error", err)
	}
	return id, nil
}

// AdjustAvailability applies a +1/-1 style delta to a lot's available
// spaces, holding the capacity invariant.
func (s *Service) AdjustAvailability(ctx context.Context, lotID string, delta int) error {
	doc, err := s.store.Get(ctx, store.CollectionParkingLots, lotID)
	if err != nil {
		return fault.Wrap(fault.Internal, "Internal server error", err)
	}
	lot, err := DecodeLot(doc)
	if err != nil {
		return fault.Wrap(fault.Internal, "Internal server error", err)
	}

	next := lot.AvailableSpaces + delta
	if next < 0 || next > lot.Capacity {
		return fault.New(fault.FailedPrecondition,
			fmt.Sprintf("Available spaces must stay between 0 and %d.", lot.Capacity))
	}
	if err := s.store.Merge(ctx, store.CollectionParkingLots, lotID, store.Document{
		FieldAvailableSpaces: next,
	}); err != nil {
		return fault.Wrap(fault.Internal, "Internal server error", err)
	}
	return nil
}

// ReplaceOffers swaps the lot's slot-offer list. Duplicates are allowed
// at storage time; ordering is imposed later, at charge time.
func (s *Service) ReplaceOffers(ctx context.Context, lotID string, offers []SlotOffer) error {
	if len(offers) == 0 {
		return fault.New(fault.InvalidArgument, "A lot requires at least one slot offer.")
	}
	for i, o := range offers {
		if o.Price <= 0 || o.Duration <= 0 {
			return fault.New(fault.InvalidArgument,
				fmt.Sprintf("Slot offer %d requires a positive duration and price.", i))
		}
	}

	encoded := make([]any, 0, len(offers))
	for _, o := range offers {
		encoded = append(encoded, map[string]any{"duration": o.Duration, "price": o.Price})
	}
	if err := s.store.Merge(ctx, store.CollectionParkingLots, lotID, store.Document{
		FieldSlotOfferList: encoded,
	}); err != nil {
		return fault.Wrap(fault.Internal, "Internal server error", err)
	}
	return nil
}
