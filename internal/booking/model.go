package booking

import (
	"net/http"
	"time"

	"github.com/rentloop/rentloop-backend/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, apperror.KindNotFound, "booking not found")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, apperror.KindForbidden, "permission denied")
	ErrInvalidStatus    = apperror.New(http.StatusBadRequest, apperror.KindValidation, "invalid booking status")
	ErrInvalidQuantity  = apperror.New(http.StatusBadRequest, apperror.KindValidation, "quantity must be at least 1")
	ErrInvalidDateRange = apperror.New(http.StatusBadRequest, apperror.KindValidation, "start date must be before end date")
	ErrStartDatePast    = apperror.New(http.StatusBadRequest, apperror.KindValidation, "cannot create booking in the past")
	ErrInvalidInput     = apperror.New(http.StatusBadRequest, apperror.KindValidation, "invalid input parameters")
)

// Booking is a hard reservation. It occupies capacity for its interval while
// the status occupies capacity (see Status.OccupiesCapacity).
type Booking struct {
	ID            string
	BookingNumber string
	CustomerID    string
	ProductID     string
	LocationID    string
	Quantity      int
	StartDate     time.Time
	EndDate       time.Time
	Status        Status
	OriginHoldID  *string    // back-reference to the converted hold, if any
	ActualStartAt *time.Time // stamped on pickup
	ActualEndAt   *time.Time // stamped on return
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Filter defines parameters for listing bookings.
type Filter struct {
	CustomerID string
	ProductID  string
	LocationID string
	Status     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
