package parking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchristou3/cyparking-cloud/internal/fault"
	"github.com/cchristou3/cyparking-cloud/internal/store"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

// failingStore wraps the memory store to simulate a store-read outage.
type failingStore struct {
	store.Store
}

func (f *failingStore) All(context.Context, string) ([]store.Doc, error) {
	return nil, errors.New("dynamo unavailable")
}

func seedLots(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	// ~440 m north of the origin.
	require.NoError(t, s.Set(ctx, store.CollectionParkingLots, "near", lotDoc(35.189, 33.3823)))
	// ~55 km away.
	require.NoError(t, s.Set(ctx, store.CollectionParkingLots, "far", lotDoc(34.7071, 33.0226)))
	// No coordinates at all.
	doc := lotDoc(35.1856, 33.3823)
	delete(doc, FieldCoordinates)
	require.NoError(t, s.Set(ctx, store.CollectionParkingLots, "nowhere", doc))
	// Malformed document, skipped silently.
	require.NoError(t, s.Set(ctx, store.CollectionParkingLots, "broken", store.Document{FieldCapacity: "many"}))
}

func TestNearbyLotIDsFiltersByRadius(t *testing.T) {
	mem := store.NewMemoryStore()
	seedLots(t, mem)
	svc := NewService(mem, nil, 1000, logging.Default())

	ids, err := svc.NearbyLotIDs(context.Background(), 35.1856, 33.3823)
	require.NoError(t, err)
	assert.Equal(t, []string{"near"}, ids)
}

func TestNearbyLotIDsStoreFailureIsInternal(t *testing.T) {
	svc := NewService(&failingStore{Store: store.NewMemoryStore()}, nil, 1000, logging.Default())

	_, err := svc.NearbyLotIDs(context.Background(), 35.1856, 33.3823)
	require.Error(t, err)
	assert.Equal(t, fault.Internal, fault.KindOf(err))
}

func TestRegisterLotValidation(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil, 1000, logging.Default())
	ctx := context.Background()

	_, err := svc.RegisterLot(ctx, &Lot{Capacity: 10})
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))

	lot, derr := DecodeLot(lotDoc(35.1, 33.3))
	require.NoError(t, derr)
	lot.AvailableSpaces = lot.Capacity + 1
	_, err = svc.RegisterLot(ctx, lot)
	assert.Equal(t, fault.FailedPrecondition, fault.KindOf(err))
}

func TestAdjustAvailabilityHoldsInvariant(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()
	doc := lotDoc(35.1, 33.3)
	doc[FieldAvailableSpaces] = float64(0)
	require.NoError(t, mem.Set(ctx, store.CollectionParkingLots, "lot-1", doc))

	svc := NewService(mem, nil, 1000, logging.Default())

	err := svc.AdjustAvailability(ctx, "lot-1", -1)
	assert.Equal(t, fault.FailedPrecondition, fault.KindOf(err))

	require.NoError(t, svc.AdjustAvailability(ctx, "lot-1", 1))
	updated, err := mem.Get(ctx, store.CollectionParkingLots, "lot-1")
	require.NoError(t, err)
	assert.Equal(t, 1, updated[FieldAvailableSpaces])

	// Can't exceed capacity either.
	err = svc.AdjustAvailability(ctx, "lot-1", 50)
	assert.Equal(t, fault.FailedPrecondition, fault.KindOf(err))
}

func TestReplaceOffers(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, store.CollectionParkingLots, "lot-1", lotDoc(35.1, 33.3)))

	svc := NewService(mem, nil, 1000, logging.Default())

	err := svc.ReplaceOffers(ctx, "lot-1", nil)
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))

	err = svc.ReplaceOffers(ctx, "lot-1", []SlotOffer{{Duration: 2, Price: -1}})
	assert.Equal(t, fault.InvalidArgument, fault.KindOf(err))

	require.NoError(t, svc.ReplaceOffers(ctx, "lot-1", []SlotOffer{{Duration: 8, Price: 5}}))
	doc, err := mem.Get(ctx, store.CollectionParkingLots, "lot-1")
	require.NoError(t, err)
	lot, err := DecodeLot(doc)
	require.NoError(t, err)
	require.Len(t, lot.SlotOfferList, 1)
	assert.Equal(t, 5.0, lot.SlotOfferList[0].Price)
}
