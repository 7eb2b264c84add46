package inventory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rentloop/rentloop-backend/internal/pkg/apperror"
)

var (
	ErrRecordNotFound   = apperror.New(http.StatusNotFound, apperror.KindNotFound, "inventory record not found")
	ErrInvalidDateRange = apperror.New(http.StatusBadRequest, apperror.KindValidation, "start date must be before end date")
	ErrInvalidQuantity  = apperror.New(http.StatusBadRequest, apperror.KindValidation, "total quantity cannot be negative")
)

// ReasonNoInventory marks an availability result for a product that has no
// stock record at the queried location.
const ReasonNoInventory = "no_inventory"

// Record is the authoritative stock count for one product at one location.
// Free capacity is never stored on the record; it is always derived from
// overlapping holds and bookings so there is no second source of truth.
type Record struct {
	ID            string
	ProductID     string
	LocationID    string
	TotalQuantity int
	MinQuantity   int // policy bound, informational
	MaxQuantity   int // policy bound, informational
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Availability is the derived free-capacity view for a date range.
type Availability struct {
	ProductID         string
	LocationID        string
	StartDate         time.Time
	EndDate           time.Time
	TotalStock        int
	BookedQuantity    int
	HeldQuantity      int
	AvailableQuantity int
	Reason            string
}

// CapacityConflictError reports a reservation attempt that exceeds the
// quantity currently available. It carries the real remaining quantity so
// the caller can offer a reduced request.
type CapacityConflictError struct {
	Requested int
	Remaining int
}

func (e *CapacityConflictError) Error() string {
	return fmt.Sprintf("requested %d units but only %d available", e.Requested, e.Remaining)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Adjacent intervals (aEnd == bStart) do not
// overlap. The repository queries implement the same predicate in SQL.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
