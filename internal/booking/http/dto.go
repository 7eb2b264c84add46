package http

import (
	"time"

	"github.com/rentloop/rentloop-backend/internal/booking"
	"github.com/rentloop/rentloop-backend/internal/pkg/request"
)

type CreateBookingRequest struct {
	// Either hold_id alone, or the full product/location/quantity/date set.
	HoldID     string    `json:"hold_id" binding:"omitempty,uuid"`
	ProductID  string    `json:"product_id" binding:"omitempty,uuid"`
	LocationID string    `json:"location_id" binding:"omitempty,uuid"`
	Quantity   int       `json:"quantity" binding:"omitempty,min=1"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

// Validate checks that the request is either a hold conversion or a complete
// direct booking, not a mix of neither.
func (r *CreateBookingRequest) Validate() error {
	if r.HoldID != "" {
		return nil
	}
	if r.ProductID == "" || r.LocationID == "" || r.Quantity < 1 {
		return booking.ErrInvalidInput
	}
	if !r.StartDate.Before(r.EndDate) {
		return booking.ErrInvalidDateRange
	}
	return nil
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ListBookingsRequest struct {
	request.ListParams

	ProductID  string `form:"product_id" binding:"omitempty,uuid"`
	LocationID string `form:"location_id" binding:"omitempty,uuid"`
	Status     string `form:"status"`
	SortBy     string `form:"sort_by" binding:"omitempty,oneof=start_date created_at status"`
}

type BookingResponse struct {
	ID            string     `json:"id"`
	BookingNumber string     `json:"booking_number"`
	CustomerID    string     `json:"customer_id"`
	ProductID     string     `json:"product_id"`
	LocationID    string     `json:"location_id"`
	Quantity      int        `json:"quantity"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       time.Time  `json:"end_date"`
	Status        string     `json:"status"`
	OriginHoldID  *string    `json:"origin_hold_id,omitempty"`
	ActualStartAt *time.Time `json:"actual_start_at,omitempty"`
	ActualEndAt   *time.Time `json:"actual_end_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID,
		BookingNumber: b.BookingNumber,
		CustomerID:    b.CustomerID,
		ProductID:     b.ProductID,
		LocationID:    b.LocationID,
		Quantity:      b.Quantity,
		StartDate:     b.StartDate,
		EndDate:       b.EndDate,
		Status:        string(b.Status),
		OriginHoldID:  b.OriginHoldID,
		ActualStartAt: b.ActualStartAt,
		ActualEndAt:   b.ActualEndAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}
