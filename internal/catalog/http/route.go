package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	products := g.Group("/products")
	{
		products.GET("", h.ListProducts)
		products.GET("/:id", h.GetProduct)

		staff := products.Group("")
		staff.Use(authMiddleware, staffMiddleware)
		{
			staff.POST("", h.CreateProduct)
			staff.PATCH("/:id/status", h.UpdateProductStatus)
		}
	}

	locations := g.Group("/locations")
	{
		locations.GET("", h.ListLocations)
		locations.GET("/:id", h.GetLocation)

		staff := locations.Group("")
		staff.Use(authMiddleware, staffMiddleware)
		{
			staff.POST("", h.CreateLocation)
		}
	}
}
