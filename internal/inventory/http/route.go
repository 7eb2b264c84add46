package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	g.GET("/availability", h.GetAvailability)

	staff := g.Group("/inventory")
	staff.Use(authMiddleware, staffMiddleware)
	{
		staff.PUT("", h.Restock)
	}
}
