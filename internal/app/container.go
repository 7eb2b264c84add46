package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/rentloop/rentloop-backend/internal/api"
	"github.com/rentloop/rentloop-backend/internal/auth"
	"github.com/rentloop/rentloop-backend/internal/booking"
	"github.com/rentloop/rentloop-backend/internal/catalog"
	"github.com/rentloop/rentloop-backend/internal/event"
	"github.com/rentloop/rentloop-backend/internal/hold"
	"github.com/rentloop/rentloop-backend/internal/inventory"
	"github.com/rentloop/rentloop-backend/internal/pkg/clock"
	"github.com/rentloop/rentloop-backend/internal/pkg/metrics"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction    bool
	ProdOrigins     string
	DBPool          *pgxpool.Pool
	Logger          *logrus.Logger
	JWTSecret       string
	JWTTTL          time.Duration
	HoldDuration    time.Duration
	HoldMaxDuration time.Duration
	SweepInterval   time.Duration
	SweepBatchSize  int
	Clock           clock.Clock // defaults to the system clock
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager
	Hub        *event.Hub
	Sweeper    *hold.Sweeper
	Metrics    *metrics.Metrics
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	m := metrics.New()
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}

	// Event hub: fan-out of domain events to websocket subscribers.
	hub := event.NewHub(cfg.Logger, m)

	// Catalog Module
	catRepo := catalog.NewPgxRepository(cfg.DBPool)
	catService := catalog.NewService(catRepo)

	// Inventory Module
	invRepo := inventory.NewPgxRepository(cfg.DBPool)
	invService := inventory.NewService(invRepo, cfg.DBPool, hub, clk, cfg.Logger)

	// Hold Module
	holdRepo := hold.NewPgxRepository(cfg.DBPool)
	holdService := hold.NewService(hold.Config{
		Repo:         holdRepo,
		InvService:   invService,
		CatService:   catService,
		Publisher:    hub,
		Clock:        clk,
		Logger:       cfg.Logger,
		Metrics:      m,
		HoldDuration: cfg.HoldDuration,
		MaxDuration:  cfg.HoldMaxDuration,
	})

	// Booking Module
	bookingRepo := booking.NewPgxRepository(cfg.DBPool)
	bookingService := booking.NewService(booking.Config{
		Repo:        bookingRepo,
		HoldService: holdService,
		InvService:  invService,
		CatService:  catService,
		Publisher:   hub,
		Clock:       clk,
		Logger:      cfg.Logger,
		Metrics:     m,
	})

	// Background sweeper retiring expired holds.
	sweeper := hold.NewSweeper(holdRepo, hub, clk, cfg.Logger, m, cfg.SweepInterval, cfg.SweepBatchSize)

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:     cfg.IsProduction,
		ProdOrigins:      cfg.ProdOrigins,
		CatalogService:   catService,
		InventoryService: invService,
		HoldService:      holdService,
		BookingService:   bookingService,
		Hub:              hub,
		JWTManager:       jwtManager,
		Logger:           cfg.Logger,
		Metrics:          m,
	})

	return &Container{
		Router:     router,
		JWTManager: jwtManager,
		Hub:        hub,
		Sweeper:    sweeper,
		Metrics:    m,
	}
}
