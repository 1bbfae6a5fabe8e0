package respond

import (
	"encoding/json"
	"net/http"

	"github.com/cchristou3/cyparking-cloud/internal/fault"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Fault writes err using the fault taxonomy's status mapping. Internal
// causes are never leaked; only the fault's own message travels.
func Fault(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	JSON(w, fault.HTTPStatus(kind), errorBody{
		Error: errorDetail{
			Status:  string(kind),
			Message: fault.MessageOf(err),
		},
	})
}
