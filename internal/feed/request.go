package feed

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dshills/feedcore/internal/message"
)

// Request is an externally triggered request flowing through a
// SourceContext, such as a refresh or a page request.
type Request interface {
	requestKind() string
}

// RefreshRequest asks every feed of a context to reload.
type RefreshRequest struct {
	ID uuid.UUID
}

func (RefreshRequest) requestKind() string { return "refresh" }

// PageRequest asks paginated feeds of a context to load more items.
type PageRequest struct {
	ID uuid.UUID
	// DesiredPageSize is a hint; 0 lets the feed choose.
	DesiredPageSize uint
}

func (PageRequest) requestKind() string { return "page" }

// ExecuteRequest describes one trigger of a feed execution. Pending
// requests are coalesced into the next execution.
type ExecuteRequest struct {
	// Issuer identifies what asked for the execution, typically a
	// dependency.
	Issuer any

	// Reason is a human-readable description, used in logs.
	Reason string

	// AsyncAxis and AsyncValue are published as transient values if the
	// execution does not complete quickly, e.g. a loading flag on the
	// pagination axis.
	AsyncAxis  message.Axis
	AsyncValue message.AxisValue
}

// HasAsyncHint reports whether the request carries a transient value.
func (r ExecuteRequest) HasAsyncHint() bool {
	return r.AsyncValue.IsSet && r.AsyncAxis != message.AxisData && r.AsyncAxis.IsValid()
}

// String returns the reason of the request.
func (r ExecuteRequest) String() string {
	if r.HasAsyncHint() {
		return fmt.Sprintf("%s (%s)", r.Reason, r.AsyncAxis)
	}
	return r.Reason
}
