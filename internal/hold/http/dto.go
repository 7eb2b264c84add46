package http

import (
	"time"

	"github.com/rentloop/rentloop-backend/internal/hold"
)

type CreateHoldRequest struct {
	ProductID  string    `json:"product_id" binding:"required,uuid"`
	LocationID string    `json:"location_id" binding:"required,uuid"`
	Quantity   int       `json:"quantity" binding:"required,min=1"`
	StartDate  time.Time `json:"start_date" binding:"required"`
	EndDate    time.Time `json:"end_date" binding:"required"`
}

// Validate performs custom validation for CreateHoldRequest.
func (r *CreateHoldRequest) Validate() error {
	if !r.StartDate.Before(r.EndDate) {
		return hold.ErrInvalidDateRange
	}
	return nil
}

type ExtendHoldRequest struct {
	AdditionalMinutes int `json:"additional_minutes" binding:"required,min=1,max=30"`
}

type ListHoldsRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=active expired converted cancelled"`
}

type HoldResponse struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	ProductID            string    `json:"product_id"`
	LocationID           string    `json:"location_id"`
	Quantity             int       `json:"quantity"`
	StartDate            time.Time `json:"start_date"`
	EndDate              time.Time `json:"end_date"`
	Status               string    `json:"status"`
	ExpiresAt            time.Time `json:"expires_at"`
	ConvertedToBookingID *string   `json:"converted_to_booking_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

func NewHoldResponse(h *hold.Hold) HoldResponse {
	return HoldResponse{
		ID:                   h.ID,
		UserID:               h.UserID,
		ProductID:            h.ProductID,
		LocationID:           h.LocationID,
		Quantity:             h.Quantity,
		StartDate:            h.StartDate,
		EndDate:              h.EndDate,
		Status:               string(h.Status),
		ExpiresAt:            h.ExpiresAt,
		ConvertedToBookingID: h.ConvertedToBookingID,
		CreatedAt:            h.CreatedAt,
	}
}
