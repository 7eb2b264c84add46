package catalog

import (
	"net/http"
	"time"

	"github.com/rentloop/rentloop-backend/internal/pkg/apperror"
)

var (
	ErrProductNotFound    = apperror.New(http.StatusNotFound, apperror.KindNotFound, "product not found")
	ErrLocationNotFound   = apperror.New(http.StatusNotFound, apperror.KindNotFound, "location not found")
	ErrProductNotBookable = apperror.New(http.StatusConflict, apperror.KindConflict, "product is not bookable")
	ErrLocationInactive   = apperror.New(http.StatusConflict, apperror.KindConflict, "location is not active")
	ErrEmptyName          = apperror.New(http.StatusBadRequest, apperror.KindValidation, "name cannot be empty")
	ErrInvalidStatus      = apperror.New(http.StatusBadRequest, apperror.KindValidation, "invalid product status")
)

type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Product is a rentable catalog entry. Pricing, media and descriptions live
// in the marketplace service; this backend only needs identity and status.
type Product struct {
	ID        string
	Name      string
	Status    ProductStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location is a pickup/fulfilment site products are stocked at.
type Location struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
}
