package booking

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentloop/rentloop-backend/internal/catalog"
	"github.com/rentloop/rentloop-backend/internal/db"
	"github.com/rentloop/rentloop-backend/internal/event"
	"github.com/rentloop/rentloop-backend/internal/hold"
	"github.com/rentloop/rentloop-backend/internal/inventory"
	"github.com/rentloop/rentloop-backend/internal/pkg/clock"
	"github.com/rentloop/rentloop-backend/internal/pkg/metrics"
)

type CreateRequest struct {
	CustomerID string
	ProductID  string
	LocationID string
	Quantity   int
	StartDate  time.Time
	EndDate    time.Time

	// HoldID converts an existing active hold instead of competing for open
	// capacity. When set, the other fields are taken from the hold.
	HoldID string
}

type UpdateStatusRequest struct {
	ID          string
	NewStatus   Status
	RequesterID string
	IsStaff     bool
}

type Service interface {
	// Create inserts a booking, either directly or by converting a hold.
	// Direct bookings start pending; conversions start confirmed so the
	// capacity the hold protected is never released to a third party.
	Create(ctx context.Context, req CreateRequest) (*Booking, error)

	GetByID(ctx context.Context, id, requesterID string, isStaff bool) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)

	// UpdateStatus advances the booking through its lifecycle. Only moves
	// present in the transition table are allowed; non-staff callers may
	// only cancel their own bookings.
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*Booking, error)
}

type service struct {
	repo        Repository
	holdService hold.Service
	invService  inventory.Service
	catService  catalog.Service
	publisher   event.Publisher
	clock       clock.Clock
	logger      *logrus.Logger
	metrics     *metrics.Metrics
}

type Config struct {
	Repo        Repository
	HoldService hold.Service
	InvService  inventory.Service
	CatService  catalog.Service
	Publisher   event.Publisher
	Clock       clock.Clock
	Logger      *logrus.Logger
	Metrics     *metrics.Metrics
}

func NewService(cfg Config) Service {
	return &service{
		repo:        cfg.Repo,
		holdService: cfg.HoldService,
		invService:  cfg.InvService,
		catService:  cfg.CatService,
		publisher:   cfg.Publisher,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	if req.HoldID != "" {
		return s.createFromHold(ctx, req)
	}
	return s.createDirect(ctx, req)
}

func (s *service) createDirect(ctx context.Context, req CreateRequest) (*Booking, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, ErrInvalidDateRange
	}

	now := s.clock.Now()
	if req.StartDate.Before(now) {
		return nil, ErrStartDatePast
	}

	if err := s.catService.CheckBookable(ctx, req.ProductID, req.LocationID); err != nil {
		return nil, err
	}

	b := &Booking{
		CustomerID: req.CustomerID,
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		Quantity:   req.Quantity,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Status:     StatusPending,
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		avail, err := s.invService.AvailabilityForUpdate(txCtx, req.ProductID, req.LocationID, req.StartDate, req.EndDate, "")
		if err != nil {
			return err
		}
		if req.Quantity > avail.AvailableQuantity {
			return &inventory.CapacityConflictError{
				Requested: req.Quantity,
				Remaining: avail.AvailableQuantity,
			}
		}
		return s.insert(txCtx, b, now)
	})
	if err != nil {
		if _, ok := err.(*inventory.CapacityConflictError); ok && s.metrics != nil {
			s.metrics.CapacityConflicts.Inc()
		}
		return nil, err
	}

	s.afterCreate(b)
	return b, nil
}

func (s *service) createFromHold(ctx context.Context, req CreateRequest) (*Booking, error) {
	now := s.clock.Now()
	var b *Booking

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		// Lock order is hold row first, ledger row second; hold creation only
		// ever locks the ledger row, so the orderings cannot deadlock.
		h, err := s.holdService.GetActiveForUpdate(txCtx, req.HoldID, req.CustomerID)
		if err != nil {
			return err
		}

		// The product may have been deactivated since the hold was taken.
		// A hold guarantees priority, not an unconditional right to book;
		// on failure the rollback leaves it active for a retry.
		if err := s.catService.CheckBookable(txCtx, h.ProductID, h.LocationID); err != nil {
			return err
		}

		// Re-check capacity ignoring the hold's own contribution: the stock
		// it shielded flows directly into the booking.
		avail, err := s.invService.AvailabilityForUpdate(txCtx, h.ProductID, h.LocationID, h.StartDate, h.EndDate, h.ID)
		if err != nil {
			return err
		}
		if h.Quantity > avail.AvailableQuantity {
			return &inventory.CapacityConflictError{
				Requested: h.Quantity,
				Remaining: avail.AvailableQuantity,
			}
		}

		holdID := h.ID
		b = &Booking{
			CustomerID:   h.UserID,
			ProductID:    h.ProductID,
			LocationID:   h.LocationID,
			Quantity:     h.Quantity,
			StartDate:    h.StartDate,
			EndDate:      h.EndDate,
			Status:       StatusConfirmed,
			OriginHoldID: &holdID,
		}
		if err := s.insert(txCtx, b, now); err != nil {
			return err
		}

		return s.holdService.ConvertToBooking(txCtx, h.ID, b.ID)
	})
	if err != nil {
		if _, ok := err.(*inventory.CapacityConflictError); ok && s.metrics != nil {
			s.metrics.CapacityConflicts.Inc()
		}
		return nil, err
	}

	s.afterCreate(b)

	// The hold's shielded stock became booked stock; subscribers watching
	// the pair should refetch.
	s.publisher.Publish(event.Event{
		Kind:       event.KindInventoryChanged,
		ProductID:  b.ProductID,
		LocationID: b.LocationID,
		Quantity:   b.Quantity,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		Timestamp:  s.clock.Now(),
	})

	return b, nil
}

// insert assigns a booking number and writes the row, falling back to a
// timestamp-based number if a concurrent insert grabbed the sequence slot.
// The first attempt runs under a savepoint: a unique violation aborts the
// surrounding transaction otherwise, and the fallback insert would fail
// with in_failed_sql_transaction.
func (s *service) insert(ctx context.Context, b *Booking, now time.Time) error {
	count, err := s.repo.CountForDay(ctx, now)
	if err != nil {
		return err
	}
	b.BookingNumber = FormatNumber(now, count+1)

	err = s.repo.WithSavepoint(ctx, func(spCtx context.Context) error {
		return s.repo.Create(spCtx, b)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			b.BookingNumber = FallbackNumber(now)
			return s.repo.Create(ctx, b)
		}
		return err
	}
	return nil
}

func (s *service) afterCreate(b *Booking) {
	if s.metrics != nil {
		s.metrics.BookingsCreated.Inc()
	}
	s.logger.WithFields(logrus.Fields{
		"booking_id":     b.ID,
		"booking_number": b.BookingNumber,
		"customer_id":    b.CustomerID,
		"product_id":     b.ProductID,
		"location_id":    b.LocationID,
		"quantity":       b.Quantity,
		"status":         b.Status,
	}).Info("booking created")

	s.publisher.Publish(event.Event{
		Kind:       event.KindBookingStatusChanged,
		ProductID:  b.ProductID,
		LocationID: b.LocationID,
		Quantity:   b.Quantity,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		Timestamp:  s.clock.Now(),
		UserID:     b.CustomerID,
		BookingID:  b.ID,
		NewStatus:  string(b.Status),
	})
}

func (s *service) GetByID(ctx context.Context, id, requesterID string, isStaff bool) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.CustomerID != requesterID && !isStaff {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

// listSortColumns are the only columns List may order by. The repository
// splices sort fields into the query text, so they are whitelisted here as
// well as at the binding layer.
var listSortColumns = map[string]bool{
	"start_date": true,
	"created_at": true,
	"status":     true,
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	if filter.Status != "" && !Status(filter.Status).Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if filter.SortBy != "" && !listSortColumns[filter.SortBy] {
		return nil, 0, ErrInvalidInput
	}
	switch strings.ToUpper(filter.SortOrder) {
	case "", "ASC", "DESC":
	default:
		return nil, 0, ErrInvalidInput
	}
	return s.repo.List(ctx, filter)
}

func (s *service) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*Booking, error) {
	if !req.NewStatus.Valid() {
		return nil, ErrInvalidStatus
	}

	var updated *Booking
	var previous Status

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		b, err := s.repo.GetByIDForUpdate(txCtx, req.ID)
		if err != nil {
			return err
		}

		if !req.IsStaff {
			if b.CustomerID != req.RequesterID {
				return ErrPermissionDenied
			}
			// Customers can only cancel; the rest of the lifecycle is run by
			// staff at the counter.
			if req.NewStatus != StatusCancelled {
				return ErrPermissionDenied
			}
		}

		if !CanTransition(b.Status, req.NewStatus) {
			return &TransitionError{From: b.Status, To: req.NewStatus}
		}

		previous = b.Status
		b.Status = req.NewStatus

		now := s.clock.Now()
		switch req.NewStatus {
		case StatusPickedUp:
			b.ActualStartAt = &now
		case StatusReturned:
			b.ActualEndAt = &now
		}

		if err := s.repo.Update(txCtx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":      updated.ID,
		"booking_number":  updated.BookingNumber,
		"previous_status": previous,
		"new_status":      updated.Status,
	}).Info("booking status changed")

	s.publisher.Publish(event.Event{
		Kind:           event.KindBookingStatusChanged,
		ProductID:      updated.ProductID,
		LocationID:     updated.LocationID,
		Quantity:       updated.Quantity,
		StartDate:      updated.StartDate,
		EndDate:        updated.EndDate,
		Timestamp:      s.clock.Now(),
		UserID:         updated.CustomerID,
		BookingID:      updated.ID,
		NewStatus:      string(updated.Status),
		PreviousStatus: string(previous),
	})

	// A move out of a capacity-occupying status frees stock for the interval,
	// which watchers of this product/location care about.
	if previous.OccupiesCapacity() != updated.Status.OccupiesCapacity() {
		s.publisher.Publish(event.Event{
			Kind:       event.KindInventoryChanged,
			ProductID:  updated.ProductID,
			LocationID: updated.LocationID,
			Quantity:   updated.Quantity,
			StartDate:  updated.StartDate,
			EndDate:    updated.EndDate,
			Timestamp:  s.clock.Now(),
		})
	}

	return updated, nil
}
