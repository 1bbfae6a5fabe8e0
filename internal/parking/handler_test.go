package parking

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchristou3/cyparking-cloud/internal/store"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

func newTestHandler(t *testing.T) (*Handler, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	svc := NewService(mem, nil, 1000, logging.Default())
	return NewHandler(svc, logging.Default()), mem
}

func TestNearbyMissingParameterIsInvalidArgument(t *testing.T) {
	h, _ := newTestHandler(t)

	bodies := []string{
		`{"latitude": 35.1856}`,
		`{"longitude": 33.3823}`,
		`{}`,
		`not json`,
	}
	for _, body := range bodies {
		req := httptest.NewRequest(http.MethodPost, "/lots/nearby", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		h.Nearby(rr, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "body %q", body)
		assert.Contains(t, rr.Body.String(), "Missing one or both parameters: latitude, longitude")
	}
}

func TestNearbyReturnsMatchingIDs(t *testing.T) {
	h, mem := newTestHandler(t)
	seedLots(t, mem)

	req := httptest.NewRequest(http.MethodPost, "/lots/nearby",
		bytes.NewBufferString(`{"latitude": 35.1856, "longitude": 33.3823}`))
	rr := httptest.NewRecorder()
	h.Nearby(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var ids []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ids))
	assert.Equal(t, []string{"near"}, ids)
}

func TestNearbyZeroCoordinatesAreNotMissing(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/lots/nearby",
		bytes.NewBufferString(`{"latitude": 0, "longitude": 0}`))
	rr := httptest.NewRecorder()
	h.Nearby(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var ids []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ids))
	assert.Empty(t, ids)
}

func TestRegisterLot(t *testing.T) {
	h, mem := newTestHandler(t)

	payload := `{
		"operatorId": "op-1",
		"latitude": 35.1856,
		"longitude": 33.3823,
		"capacity": 30,
		"availableSpaces": 30,
		"slotOfferList": [{"duration": 2, "price": 1.5}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/lots", bytes.NewBufferString(payload))
	rr := httptest.NewRecorder()
	h.Register(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["lotDocId"])

	doc, err := mem.Get(req.Context(), store.CollectionParkingLots, resp["lotDocId"])
	require.NoError(t, err)
	lot, err := DecodeLot(doc)
	require.NoError(t, err)
	assert.Equal(t, "op-1", lot.OperatorID)
	assert.Equal(t, 30, lot.Capacity)
}
