package accounts

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cchristou3/cyparking-cloud/internal/api/respond"
	"github.com/cchristou3/cyparking-cloud/internal/events"
	"github.com/cchristou3/cyparking-cloud/internal/fault"
	"github.com/cchristou3/cyparking-cloud/internal/http/middleware"
	"github.com/cchristou3/cyparking-cloud/internal/queue"
	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

// Handler exposes the account lifecycle endpoints.
type Handler struct {
	service  *Service
	teardown queue.Queue
	logger   *logging.Logger
}

// NewHandler wires the account endpoints. teardown may be nil, in
// which case deletion runs synchronously.
func NewHandler(service *Service, teardown queue.Queue, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, teardown: teardown, logger: logger}
}

type registerRequest struct {
	Email string `json:"email"`
}

// Register handles POST /accounts.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Fault(w, fault.New(fault.FailedPrecondition, "The function must be called while authenticated!"))
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fault(w, fault.New(fault.InvalidArgument, "The request body could not be parsed."))
		return
	}

	if err := h.service.Register(r.Context(), userID, req.Email); err != nil {
		respond.Fault(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]string{"userId": userID})
}

type updateEmailRequest struct {
	Email string `json:"email"`
}

// UpdateEmail handles POST /accounts/email.
func (h *Handler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Fault(w, fault.New(fault.FailedPrecondition, "The function must be called while authenticated!"))
		return
	}

	var req updateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fault(w, fault.New(fault.InvalidArgument, "The request body could not be parsed."))
		return
	}

	if err := h.service.UpdateEmail(r.Context(), userID, req.Email); err != nil {
		respond.Fault(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"email": req.Email})
}

// Delete handles DELETE /accounts. Teardown is heavy, so it is handed
// to the background worker when a queue is configured.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Fault(w, fault.New(fault.FailedPrecondition, "The function must be called while authenticated!"))
		return
	}

	if h.teardown == nil {
		if err := h.service.Teardown(r.Context(), userID); err != nil {
			respond.Fault(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		return
	}

	evt := events.AccountDeletedV1{UserID: userID, OccurredAt: time.Now().UTC()}
	body, err := json.Marshal(evt)
	if err != nil {
		respond.Fault(w, fault.Wrap(fault.Internal, "The deletion request could not be encoded.", err))
		return
	}
	if err := h.teardown.Send(r.Context(), string(body)); err != nil {
		h.logger.Error("failed to enqueue account teardown", "user_id", userID, "error", err)
		respond.Fault(w, fault.Wrap(fault.Internal, "The deletion request could not be enqueued.", err))
		return
	}
	respond.JSON(w, http.StatusAccepted, map[string]string{"status": "deletion scheduled"})
}
