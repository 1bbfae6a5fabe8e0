package fault

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(InvalidArgument, "missing latitude")
	if got := KindOf(err); got != InvalidArgument {
		t.Fatalf("expected invalid-argument, got %s", got)
	}

	wrapped := fmt.Errorf("handler: %w", Wrap(FailedPrecondition, "bad index", errors.New("boom")))
	if got := KindOf(wrapped); got != FailedPrecondition {
		t.Fatalf("expected failed-precondition through wrapping, got %s", got)
	}

	if got := KindOf(errors.New("plain")); got != Internal {
		t.Fatalf("unclassified errors must default to internal, got %s", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		InvalidArgument:    http.StatusUnprocessableEntity,
		FailedPrecondition: http.StatusPreconditionFailed,
		Unauthenticated:    http.StatusUnauthorized,
		Internal:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Errorf("%s: expected %d, got %d", kind, want, got)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dynamo down")
	err := Wrap(Internal, "store read failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
}
