package hold

import (
	"net/http"
	"time"

	"github.com/rentloop/rentloop-backend/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, apperror.KindNotFound, "hold not found")
	ErrNotActive        = apperror.New(http.StatusConflict, apperror.KindStateTransition, "hold is no longer active")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, apperror.KindForbidden, "permission denied")
	ErrDuplicateHold    = apperror.New(http.StatusConflict, apperror.KindDuplicateHold, "an overlapping active hold already exists for this user")
	ErrExtensionBounds  = apperror.New(http.StatusBadRequest, apperror.KindBounds, "extension exceeds the maximum hold duration")
	ErrInvalidExtension = apperror.New(http.StatusBadRequest, apperror.KindValidation, "additional minutes must be between 1 and 30")
	ErrInvalidQuantity  = apperror.New(http.StatusBadRequest, apperror.KindValidation, "quantity must be at least 1")
	ErrInvalidDateRange = apperror.New(http.StatusBadRequest, apperror.KindValidation, "start date must be before end date")
	ErrStartDatePast    = apperror.New(http.StatusBadRequest, apperror.KindValidation, "start date cannot be in the past")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusConverted Status = "converted"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
// Every status except active is terminal; there is no un-expiring a hold.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// Hold is a time-bounded soft reservation. It occupies capacity only while
// status is active AND expires_at is in the future; readers never trust the
// status column alone. Holds are retired via status, never deleted.
type Hold struct {
	ID                   string
	UserID               string
	ProductID            string
	LocationID           string
	Quantity             int
	StartDate            time.Time
	EndDate              time.Time
	Status               Status
	ExpiresAt            time.Time
	ConvertedToBookingID *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ActiveAt reports whether the hold occupies capacity at the given instant.
func (h *Hold) ActiveAt(now time.Time) bool {
	return h.Status == StatusActive && h.ExpiresAt.After(now)
}
