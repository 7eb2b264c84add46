package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentloop/rentloop-backend/internal/auth"
	"github.com/rentloop/rentloop-backend/internal/hold"
	"github.com/rentloop/rentloop-backend/internal/inventory"
	"github.com/rentloop/rentloop-backend/internal/pkg/request"
	"github.com/rentloop/rentloop-backend/internal/pkg/response"
)

type Handler struct {
	service hold.Service
}

func NewHandler(service hold.Service) *Handler {
	return &Handler{service: service}
}

// capacityConflict reports the real remaining quantity so the client can
// offer a reduced request.
func capacityConflict(c *gin.Context, capErr *inventory.CapacityConflictError) {
	c.JSON(http.StatusConflict, gin.H{
		"error":              capErr.Error(),
		"kind":               "capacity_conflict",
		"requested_quantity": capErr.Requested,
		"remaining_quantity": capErr.Remaining,
	})
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateHoldRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := body.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	userID := auth.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	created, err := h.service.Create(c.Request.Context(), hold.CreateRequest{
		UserID:     userID,
		ProductID:  body.ProductID,
		LocationID: body.LocationID,
		Quantity:   body.Quantity,
		StartDate:  body.StartDate,
		EndDate:    body.EndDate,
	})
	if err != nil {
		var capErr *inventory.CapacityConflictError
		if errors.As(err, &capErr) {
			capacityConflict(c, capErr)
			return
		}
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewHoldResponse(created))
}

func (h *Handler) List(c *gin.Context) {
	var query ListHoldsRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	userID := auth.GetUserID(c)
	holds, err := h.service.ListByUser(c.Request.Context(), userID, query.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]HoldResponse, len(holds))
	for i, held := range holds {
		items[i] = NewHoldResponse(held)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	found, err := h.service.GetByID(c.Request.Context(), uri.ID, auth.GetUserID(c), auth.IsStaff(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewHoldResponse(found))
}

func (h *Handler) Extend(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	var body ExtendHoldRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	extended, err := h.service.Extend(c.Request.Context(), uri.ID, auth.GetUserID(c), body.AdditionalMinutes)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewHoldResponse(extended))
}

func (h *Handler) Cancel(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	reason := c.Query("reason")

	err := h.service.Cancel(c.Request.Context(), uri.ID, auth.GetUserID(c), auth.IsStaff(c), reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
