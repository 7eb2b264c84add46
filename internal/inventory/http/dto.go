package http

import (
	"time"

	"github.com/rentloop/rentloop-backend/internal/inventory"
)

// AvailabilityRequest defines query parameters for the availability endpoint.
type AvailabilityRequest struct {
	ProductID  string    `form:"product_id" binding:"required,uuid"`
	LocationID string    `form:"location_id" binding:"required,uuid"`
	StartDate  time.Time `form:"start_date" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	EndDate    time.Time `form:"end_date" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Validate performs custom validation for AvailabilityRequest.
func (r *AvailabilityRequest) Validate() error {
	if !r.StartDate.Before(r.EndDate) {
		return inventory.ErrInvalidDateRange
	}
	return nil
}

type AvailabilityResponse struct {
	ProductID         string    `json:"product_id"`
	LocationID        string    `json:"location_id"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	TotalStock        int       `json:"total_stock"`
	BookedQuantity    int       `json:"booked_quantity"`
	HeldQuantity      int       `json:"held_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	Reason            string    `json:"reason,omitempty"`
}

func NewAvailabilityResponse(a *inventory.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		ProductID:         a.ProductID,
		LocationID:        a.LocationID,
		StartDate:         a.StartDate,
		EndDate:           a.EndDate,
		TotalStock:        a.TotalStock,
		BookedQuantity:    a.BookedQuantity,
		HeldQuantity:      a.HeldQuantity,
		AvailableQuantity: a.AvailableQuantity,
		Reason:            a.Reason,
	}
}

type RestockRequest struct {
	ProductID     string `json:"product_id" binding:"required,uuid"`
	LocationID    string `json:"location_id" binding:"required,uuid"`
	TotalQuantity *int   `json:"total_quantity" binding:"required,min=0"`
	MinQuantity   int    `json:"min_quantity" binding:"omitempty,min=0"`
	MaxQuantity   int    `json:"max_quantity" binding:"omitempty,min=0"`
}

type RecordResponse struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	LocationID    string    `json:"location_id"`
	TotalQuantity int       `json:"total_quantity"`
	MinQuantity   int       `json:"min_quantity"`
	MaxQuantity   int       `json:"max_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewRecordResponse(rec *inventory.Record) RecordResponse {
	return RecordResponse{
		ID:            rec.ID,
		ProductID:     rec.ProductID,
		LocationID:    rec.LocationID,
		TotalQuantity: rec.TotalQuantity,
		MinQuantity:   rec.MinQuantity,
		MaxQuantity:   rec.MaxQuantity,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}
