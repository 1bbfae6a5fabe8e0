package parking

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cchristou3/cyparking-cloud/internal/api/respond"
	"github.com/cchristou3/cyparking-cloud/internal/fault"
	"github.com/cchristou3/cyparking-cloud/internal/geo"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

// Handler exposes the parking endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the parking HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type nearbyRequest struct {
	// Pointers distinguish an absent parameter from a legitimate zero
	// coordinate.
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Nearby handles POST /lots/nearby: the getNearbyParkingLots callable.
// Both parameters are required; a request with only one is never
// partially processed.
func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	var req nearbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fault(w, fault.New(fault.InvalidArgument, "Missing one or both parameters: latitude, longitude"))
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respond.Fault(w, fault.New(fault.InvalidArgument, "Missing one or both parameters: latitude, longitude"))
		return
	}

	ids, err := h.service.NearbyLotIDs(r.Context(), *req.Latitude, *req.Longitude)
	if err != nil {
		respond.Fault(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, ids)
}

type registerLotRequest struct {
	OperatorID      string      `json:"operatorId"`
	Latitude        *float64    `json:"latitude"`
	Longitude       *float64    `json:"longitude"`
	Capacity        int         `json:"capacity"`
	AvailableSpaces int         `json:"availableSpaces"`
	SlotOffers      []SlotOffer `json:"slotOfferList"`
	OpeningHours    string      `json:"openingHours"`
}

// Register handles POST /lots.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fault(w, fault.New(fault.InvalidArgument, "Malformed lot registration payload."))
		return
	}

	lot := &Lot{
		OperatorID:      req.OperatorID,
		Capacity:        req.Capacity,
		AvailableSpaces: req.AvailableSpaces,
		SlotOfferList:   req.SlotOffers,
		OpeningHours:    req.OpeningHours,
	}
	if req.Latitude != nil && req.Longitude != nil {
		lot.Coordinate = &geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}
		if !lot.Coordinate.Valid() {
			lot.Coordinate = nil
		}
	}

	id, err := h.service.RegisterLot(r.Context(), lot)
	if err != nil {
		respond.Fault(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]string{"lotDocId": id})
}

type availabilityRequest struct {
	Delta int `json:"delta"`
}

// Availability handles POST /lots/{lotID}/availability with a +1/-1
// style delta.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")
	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Delta == 0 {
		respond.Fault(w, fault.New(fault.InvalidArgument, "A non-zero delta is required."))
		return
	}
	if err := h.service.AdjustAvailability(r.Context(), lotID, req.Delta); err != nil {
		respond.Fault(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"updated": true})
}

type offersRequest struct {
	SlotOffers []SlotOffer `json:"slotOfferList"`
}

// Offers handles PUT /lots/{lotID}/offers, replacing the offer list.
func (h *Handler) Offers(w http.ResponseWriter, r *http.Request) {
	lotID := chi.URLParam(r, "lotID")
	var req offersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fault(w, fault.New(fault.InvalidArgument, "Malformed slot offer payload."))
		return
	}
	if err := h.service.ReplaceOffers(r.Context(), lotID, req.SlotOffers); err != nil {
		respond.Fault(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"updated": true})
}
