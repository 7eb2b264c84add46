package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentloop/rentloop-backend/internal/auth"
	"github.com/rentloop/rentloop-backend/internal/booking"
	"github.com/rentloop/rentloop-backend/internal/inventory"
	"github.com/rentloop/rentloop-backend/internal/pkg/request"
	"github.com/rentloop/rentloop-backend/internal/pkg/response"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateBookingRequest
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

	created, err := h.service.Create(c.Request.Context(), booking.CreateRequest{
		CustomerID: userID,
		ProductID:  body.ProductID,
		LocationID: body.LocationID,
		Quantity:   body.Quantity,
		StartDate:  body.StartDate,
		EndDate:    body.EndDate,
		HoldID:     body.HoldID,
	})
	if err != nil {
		var capErr *inventory.CapacityConflictError
		if errors.As(err, &capErr) {
			c.JSON(http.StatusConflict, gin.H{
				"error":              capErr.Error(),
				"kind":               "capacity_conflict",
				"requested_quantity": capErr.Requested,
				"remaining_quantity": capErr.Remaining,
			})
			return
		}
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewBookingResponse(created))
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

	c.JSON(http.StatusOK, NewBookingResponse(found))
}

func (h *Handler) List(c *gin.Context) {
	var query ListBookingsRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	filter := booking.Filter{
		ProductID:  query.ProductID,
		LocationID: query.LocationID,
		Status:     query.Status,
		Page:       query.Page,
		PageSize:   query.PageSize,
		SortBy:     query.SortBy,
		SortOrder:  query.SortOrder,
	}
	// Non-staff callers only ever see their own bookings.
	if !auth.IsStaff(c) {
		filter.CustomerID = auth.GetUserID(c)
	} else if cid := c.Query("customer_id"); cid != "" {
		filter.CustomerID = cid
	}

	bookings, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, page, pageSize, total))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	var body UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	updated, err := h.service.UpdateStatus(c.Request.Context(), booking.UpdateStatusRequest{
		ID:          uri.ID,
		NewStatus:   booking.Status(body.Status),
		RequesterID: auth.GetUserID(c),
		IsStaff:     auth.IsStaff(c),
	})
	if err != nil {
		var trErr *booking.TransitionError
		if errors.As(err, &trErr) {
			c.JSON(http.StatusConflict, gin.H{
				"error": trErr.Error(),
				"kind":  "state_transition",
				"from":  string(trErr.From),
				"to":    string(trErr.To),
			})
			return
		}
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(updated))
}
