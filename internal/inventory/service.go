package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/rentloop/rentloop-backend/internal/db"
	"github.com/rentloop/rentloop-backend/internal/event"
	"github.com/rentloop/rentloop-backend/internal/pkg/clock"
)

type RestockRequest struct {
	ProductID     string
	LocationID    string
	TotalQuantity int
	MinQuantity   int
	MaxQuantity   int
}

type Service interface {
	// ComputeAvailability derives the free capacity for [start, end).
	// Read-only; the result is a point-in-time view and is not a promise
	// that capacity remains available for a later reservation.
	ComputeAvailability(ctx context.Context, productID, locationID string, start, end time.Time) (*Availability, error)

	// AvailabilityForUpdate is the transactional variant: it locks the
	// ledger row before recomputing, so the result stays valid for the
	// rest of the enclosing transaction. excludeHoldID ignores the hold
	// being converted to a booking.
	AvailabilityForUpdate(ctx context.Context, productID, locationID string, start, end time.Time, excludeHoldID string) (*Availability, error)

	GetRecord(ctx context.Context, productID, locationID string) (*Record, error)

	// Restock is the administrative mutation path for total stock.
	Restock(ctx context.Context, req RestockRequest) (*Record, error)
}

type service struct {
	repo      Repository
	pool      *pgxpool.Pool
	publisher event.Publisher
	clock     clock.Clock
	logger    *logrus.Logger
}

func NewService(repo Repository, pool *pgxpool.Pool, publisher event.Publisher, clk clock.Clock, logger *logrus.Logger) Service {
	return &service{
		repo:      repo,
		pool:      pool,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
	}
}

func (s *service) compute(ctx context.Context, productID, locationID string, start, end time.Time, forUpdate bool, excludeHoldID string) (*Availability, error) {
	if !start.Before(end) {
		return nil, ErrInvalidDateRange
	}

	avail := &Availability{
		ProductID:  productID,
		LocationID: locationID,
		StartDate:  start,
		EndDate:    end,
	}

	var rec *Record
	var err error
	if forUpdate {
		rec, err = s.repo.GetRecordForUpdate(ctx, productID, locationID)
	} else {
		rec, err = s.repo.GetRecord(ctx, productID, locationID)
	}
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			// Not stocked at this location: zero availability, not an error.
			avail.Reason = ReasonNoInventory
			return avail, nil
		}
		return nil, err
	}

	booked, err := s.repo.SumBookedQuantity(ctx, productID, locationID, start, end)
	if err != nil {
		return nil, err
	}

	held, err := s.repo.SumHeldQuantity(ctx, productID, locationID, start, end, s.clock.Now(), excludeHoldID)
	if err != nil {
		return nil, err
	}

	avail.TotalStock = rec.TotalQuantity
	avail.BookedQuantity = booked
	avail.HeldQuantity = held
	avail.AvailableQuantity = rec.TotalQuantity - booked - held
	if avail.AvailableQuantity < 0 {
		avail.AvailableQuantity = 0
	}
	return avail, nil
}

func (s *service) ComputeAvailability(ctx context.Context, productID, locationID string, start, end time.Time) (*Availability, error) {
	return s.compute(ctx, productID, locationID, start, end, false, "")
}

func (s *service) AvailabilityForUpdate(ctx context.Context, productID, locationID string, start, end time.Time, excludeHoldID string) (*Availability, error) {
	return s.compute(ctx, productID, locationID, start, end, true, excludeHoldID)
}

func (s *service) GetRecord(ctx context.Context, productID, locationID string) (*Record, error) {
	return s.repo.GetRecord(ctx, productID, locationID)
}

func (s *service) Restock(ctx context.Context, req RestockRequest) (*Record, error) {
	if req.TotalQuantity < 0 {
		return nil, ErrInvalidQuantity
	}

	rec := &Record{
		ProductID:     req.ProductID,
		LocationID:    req.LocationID,
		TotalQuantity: req.TotalQuantity,
		MinQuantity:   req.MinQuantity,
		MaxQuantity:   req.MaxQuantity,
	}

	err := db.WithTx(ctx, s.pool, func(txCtx context.Context) error {
		return s.repo.UpsertRecord(txCtx, rec)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"product_id":     rec.ProductID,
		"location_id":    rec.LocationID,
		"total_quantity": rec.TotalQuantity,
	}).Info("inventory restocked")

	s.publisher.Publish(event.Event{
		Kind:       event.KindInventoryChanged,
		ProductID:  rec.ProductID,
		LocationID: rec.LocationID,
		Quantity:   rec.TotalQuantity,
		Timestamp:  s.clock.Now(),
	})

	return rec, nil
}
