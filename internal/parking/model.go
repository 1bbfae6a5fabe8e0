package parking

import (
	"errors"
	"fmt"
	"math"

	"github.com/cchristou3/cyparking-cloud/internal/geo"
	"github.com/cchristou3/cyparking-cloud/internal/store"
)

// Lot document field names.
const (
	FieldCoordinates     = "coordinates"
	FieldLatitude        = "latitude"
	FieldLongitude       = "longitude"
	FieldCapacity        = "capacity"
	FieldAvailableSpaces = "availableSpaces"
	FieldSlotOfferList   = "slotOfferList"
	FieldOpeningHours    = "openingHours"
)

// ErrCapacityInvariant is returned when availableSpaces leaves the
// [0, capacity] range.
var ErrCapacityInvariant = errors.New("parking: availableSpaces must stay within [0, capacity]")

// SlotOffer is a bookable (duration, price) pair. Uniqueness is not
// enforced at storage time and ordering is imposed only at charge time.
type SlotOffer struct {
	Duration float64 `json:"duration"`
	Price    float64 `json:"price"`
}

// Lot is the typed form of a parking-lot document.
type Lot struct {
	OperatorID      string
	Coordinate      *geo.Point
	Capacity        int
	AvailableSpaces int
	SlotOfferList   []SlotOffer
	OpeningHours    string
}

// DecodeLot converts an untyped store document into a Lot at the
// store-read edge. A missing or malformed coordinate yields a nil
// Coordinate rather than an error, so geofiltering can exclude the lot
// silently; structural violations (capacity invariant, bad offers) are
// errors.
func DecodeLot(doc store.Document) (*Lot, error) {
	lot := &Lot{}
	lot.OperatorID, _ = doc[store.FieldOperatorID].(string)
	lot.OpeningHours, _ = doc[FieldOpeningHours].(string)

	capacity, capOK := asInt(doc[FieldCapacity])
	available, availOK := asInt(doc[FieldAvailableSpaces])
	if !capOK || !availOK {
		return nil, fmt.Errorf("parking: lot document missing capacity fields")
	}
	if available < 0 || available > capacity {
		return nil, ErrCapacityInvariant
	}
	lot.Capacity = capacity
	lot.AvailableSpaces = available

	lot.Coordinate = decodeCoordinate(doc[FieldCoordinates])

	offers, err := decodeOffers(doc[FieldSlotOfferList])
	if err != nil {
		return nil, err
	}
	lot.SlotOfferList = offers

	return lot, nil
}

// Encode converts the lot back into a store document.
func (l *Lot) Encode() store.Document {
	doc := store.Document{
		store.FieldOperatorID: l.OperatorID,
		FieldCapacity:         l.Capacity,
		FieldAvailableSpaces:  l.AvailableSpaces,
		FieldOpeningHours:     l.OpeningHours,
	}
	if l.Coordinate != nil {
		doc[FieldCoordinates] = map[string]any{
			FieldLatitude:  l.Coordinate.Latitude,
			FieldLongitude: l.Coordinate.Longitude,
		}
	}
	offers := make([]any, 0, len(l.SlotOfferList))
	for _, o := range l.SlotOfferList {
		offers = append(offers, map[string]any{
			"duration": o.Duration,
			"price":    o.Price,
		})
	}
	doc[FieldSlotOfferList] = offers
	return doc
}

func decodeCoordinate(v any) *geo.Point {
	coords, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	lat, latOK := asFloat(coords[FieldLatitude])
	lng, lngOK := asFloat(coords[FieldLongitude])
	if !latOK || !lngOK {
		return nil
	}
	p := geo.Point{Latitude: lat, Longitude: lng}
	if !p.Valid() {
		return nil
	}
	return &p
}

func decodeOffers(v any) ([]SlotOffer, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("parking: slotOfferList is not a list")
	}
	offers := make([]SlotOffer, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parking: slot offer %d is not an object", i)
		}
		price, priceOK := asFloat(entry["price"])
		duration, durationOK := asFloat(entry["duration"])
		if !priceOK || !durationOK {
			return nil, fmt.Errorf("parking: slot offer %d missing duration or price", i)
		}
		offers = append(offers, SlotOffer{Duration: duration, Price: price})
	}
	return offers, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
