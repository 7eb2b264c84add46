package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentloop/rentloop-backend/internal/inventory"
	"github.com/rentloop/rentloop-backend/internal/pkg/response"
)

type Handler struct {
	service inventory.Service
}

func NewHandler(service inventory.Service) *Handler {
	return &Handler{service: service}
}

// GetAvailability answers "how many units are free for [start, end)".
func (h *Handler) GetAvailability(c *gin.Context) {
	var query AvailabilityRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	if err := query.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	avail, err := h.service.ComputeAvailability(
		c.Request.Context(),
		query.ProductID, query.LocationID,
		query.StartDate, query.EndDate,
	)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewAvailabilityResponse(avail))
}

// Restock sets the authoritative stock count for a product at a location.
func (h *Handler) Restock(c *gin.Context) {
	var body RestockRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	rec, err := h.service.Restock(c.Request.Context(), inventory.RestockRequest{
		ProductID:     body.ProductID,
		LocationID:    body.LocationID,
		TotalQuantity: *body.TotalQuantity,
		MinQuantity:   body.MinQuantity,
		MaxQuantity:   body.MaxQuantity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewRecordResponse(rec))
}
