package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rentloop/rentloop-backend/internal/auth"
	"github.com/rentloop/rentloop-backend/internal/booking"
	bookingHttp "github.com/rentloop/rentloop-backend/internal/booking/http"
	"github.com/rentloop/rentloop-backend/internal/catalog"
	catalogHttp "github.com/rentloop/rentloop-backend/internal/catalog/http"
	"github.com/rentloop/rentloop-backend/internal/event"
	eventHttp "github.com/rentloop/rentloop-backend/internal/event/http"
	"github.com/rentloop/rentloop-backend/internal/hold"
	holdHttp "github.com/rentloop/rentloop-backend/internal/hold/http"
	"github.com/rentloop/rentloop-backend/internal/inventory"
	inventoryHttp "github.com/rentloop/rentloop-backend/internal/inventory/http"
	"github.com/rentloop/rentloop-backend/internal/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Config holds the services and settings the router needs.
type Config struct {
	IsProduction     bool
	ProdOrigins      string
	CatalogService   catalog.Service
	InventoryService inventory.Service
	HoldService      hold.Service
	BookingService   booking.Service
	Hub              *event.Hub
	JWTManager       *auth.JWTManager
	Logger           *logrus.Logger
	Metrics          *metrics.Metrics
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global Middleware:
	// - Logger: Logs request information to the console.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(Observe(cfg.Metrics))

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	if cfg.IsProduction {
		corsConfig.AllowOrigins = strings.Split(cfg.ProdOrigins, ",")
	} else {
		corsConfig.AllowOrigins = []string{
			"http://localhost:8081", // Swagger
			"http://localhost:3000", // local frontend
		}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// staffMiddleware: Further checks the staff claim on the validated token.
	staffMiddleware := RequireStaff()

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	catalogHandler := catalogHttp.NewHandler(cfg.CatalogService)
	inventoryHandler := inventoryHttp.NewHandler(cfg.InventoryService)
	holdHandler := holdHttp.NewHandler(cfg.HoldService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)
	eventHandler := eventHttp.NewHandler(cfg.Hub, cfg.Logger)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		catalogHttp.RegisterRoutes(v1, catalogHandler, authMiddleware, staffMiddleware)
		inventoryHttp.RegisterRoutes(v1, inventoryHandler, authMiddleware, staffMiddleware)
		holdHttp.RegisterRoutes(v1, holdHandler, authMiddleware)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware)
		eventHttp.RegisterRoutes(v1, eventHandler)
	}

	return r
}
