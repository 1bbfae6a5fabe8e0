package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cchristou3/cyparking-cloud/pkg/logging"
)

// GenericUserMessage replaces any error that is not safe to surface.
const GenericUserMessage = "An error occurred, developers have been alerted"

// Context carries free-form context attached to an error event.
type Context struct {
	User string `json:"user,omitempty"`
}

// Entry is the structured error event written to the sinks.
type Entry struct {
	Message    string    `json:"message"`
	Service    string    `json:"service"`
	Context    Context   `json:"context"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Sink receives error entries. Implementations must tolerate being
// called concurrently.
type Sink interface {
	Write(ctx context.Context, logName string, entry Entry) error
}

// Reporter fans error events out to its sinks. Reporting is
// fire-and-forget: sink failures are logged, never propagated.
type Reporter struct {
	logName string
	service string
	sinks   []Sink
	logger  *logging.Logger
}

// NewReporter validates the log name and builds a reporter. The name
// must contain "err" so entries are picked up by the error-aggregation
// system; that is a vendor requirement, not a style choice.
func NewReporter(logName, service string, logger *logging.Logger, sinks ...Sink) (*Reporter, error) {
	if !strings.Contains(logName, "err") {
		return nil, fmt.Errorf("report: log name %q must contain \"err\"", logName)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reporter{logName: logName, service: service, sinks: sinks, logger: logger}, nil
}

// Report writes err to every sink. Safe to call with a nil receiver or
// nil error.
func (r *Reporter) Report(ctx context.Context, err error, rctx Context) {
	if r == nil || err == nil {
		return
	}
	entry := Entry{
		Message:    err.Error(),
		Service:    r.service,
		Context:    rctx,
		OccurredAt: time.Now().UTC(),
	}
	for _, sink := range r.sinks {
		if werr := sink.Write(ctx, r.logName, entry); werr != nil {
			r.logger.Error("error sink write failed", "error", werr, "log_name", r.logName)
		}
	}
}

// typedError is implemented by payment-processor errors whose message
// is user-safe by the processor's own contract.
type typedError interface {
	ErrorType() string
}

// UserFacingMessage sanitizes err for end-user display. Processor-typed
// errors pass their message through verbatim; everything else collapses
// to a generic notice so internals never leak.
func UserFacingMessage(err error) string {
	var te typedError
	if errors.As(err, &te) && te.ErrorType() != "" {
		return err.Error()
	}
	return GenericUserMessage
}
