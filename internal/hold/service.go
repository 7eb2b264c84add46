package hold

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentloop/rentloop-backend/internal/catalog"
	"github.com/rentloop/rentloop-backend/internal/event"
	"github.com/rentloop/rentloop-backend/internal/inventory"
	"github.com/rentloop/rentloop-backend/internal/pkg/clock"
	"github.com/rentloop/rentloop-backend/internal/pkg/metrics"
)

const (
	minExtensionMinutes = 1
	maxExtensionMinutes = 30
)

type CreateRequest struct {
	UserID     string
	ProductID  string
	LocationID string
	Quantity   int
	StartDate  time.Time
	EndDate    time.Time
}

type Service interface {
	// Create re-validates availability and inserts the hold as one atomic
	// step: the ledger row is locked for the duration of the check-then-
	// insert sequence, so two concurrent requests for the last unit cannot
	// both succeed.
	Create(ctx context.Context, req CreateRequest) (*Hold, error)

	GetByID(ctx context.Context, id, requesterID string, isStaff bool) (*Hold, error)
	ListByUser(ctx context.Context, userID string, status string) ([]*Hold, error)

	// Extend pushes expires_at out by additionalMinutes. It does not re-check
	// capacity since no quantity is added, but the total lifetime is capped.
	Extend(ctx context.Context, id, requesterID string, additionalMinutes int) (*Hold, error)

	// Cancel retires an active hold. Owner or staff only.
	Cancel(ctx context.Context, id, requesterID string, isStaff bool, reason string) error

	// GetActiveForUpdate locks the hold row and returns it if the requester
	// owns it and it is active and unexpired. Must run inside a transaction;
	// used by the booking conversion flow.
	GetActiveForUpdate(ctx context.Context, id, requesterID string) (*Hold, error)

	// ConvertToBooking flips an active hold to converted and stamps the
	// booking reference. Must run in the same transaction as the booking
	// insert and its capacity re-check.
	ConvertToBooking(ctx context.Context, id, bookingID string) error
}

type service struct {
	repo         Repository
	invService   inventory.Service
	catService   catalog.Service
	publisher    event.Publisher
	clock        clock.Clock
	logger       *logrus.Logger
	metrics      *metrics.Metrics
	holdDuration time.Duration
	maxDuration  time.Duration
}

type Config struct {
	Repo         Repository
	InvService   inventory.Service
	CatService   catalog.Service
	Publisher    event.Publisher
	Clock        clock.Clock
	Logger       *logrus.Logger
	Metrics      *metrics.Metrics
	HoldDuration time.Duration // lifetime of a new hold
	MaxDuration  time.Duration // ceiling on total lifetime incl. extensions
}

func NewService(cfg Config) Service {
	return &service{
		repo:         cfg.Repo,
		invService:   cfg.InvService,
		catService:   cfg.CatService,
		publisher:    cfg.Publisher,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		holdDuration: cfg.HoldDuration,
		maxDuration:  cfg.MaxDuration,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Hold, error) {
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

	h := &Hold{
		UserID:     req.UserID,
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		Quantity:   req.Quantity,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Status:     StatusActive,
		ExpiresAt:  now.Add(s.holdDuration),
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		// Lock the ledger row first: this serializes every capacity
		// decision for the (product, location) pair without touching
		// unrelated inventory.
		avail, err := s.invService.AvailabilityForUpdate(txCtx, req.ProductID, req.LocationID, req.StartDate, req.EndDate, "")
		if err != nil {
			return err
		}

		dup, err := s.repo.HasOverlappingActive(txCtx, req.UserID, req.ProductID, req.LocationID, req.StartDate, req.EndDate, now)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateHold
		}

		if req.Quantity > avail.AvailableQuantity {
			return &inventory.CapacityConflictError{
				Requested: req.Quantity,
				Remaining: avail.AvailableQuantity,
			}
		}

		return s.repo.Create(txCtx, h)
	})
	if err != nil {
		if _, ok := err.(*inventory.CapacityConflictError); ok && s.metrics != nil {
			s.metrics.CapacityConflicts.Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.HoldsCreated.Inc()
	}
	s.logger.WithFields(logrus.Fields{
		"hold_id":     h.ID,
		"user_id":     h.UserID,
		"product_id":  h.ProductID,
		"location_id": h.LocationID,
		"quantity":    h.Quantity,
		"expires_at":  h.ExpiresAt,
	}).Info("hold created")

	s.publisher.Publish(event.Event{
		Kind:       event.KindHoldCreated,
		ProductID:  h.ProductID,
		LocationID: h.LocationID,
		Quantity:   h.Quantity,
		StartDate:  h.StartDate,
		EndDate:    h.EndDate,
		Timestamp:  s.clock.Now(),
		UserID:     h.UserID,
		HoldID:     h.ID,
	})

	return h, nil
}

func (s *service) GetByID(ctx context.Context, id, requesterID string, isStaff bool) (*Hold, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.UserID != requesterID && !isStaff {
		return nil, ErrPermissionDenied
	}
	return h, nil
}

func (s *service) ListByUser(ctx context.Context, userID string, status string) ([]*Hold, error) {
	return s.repo.ListByUser(ctx, userID, status)
}

func (s *service) Extend(ctx context.Context, id, requesterID string, additionalMinutes int) (*Hold, error) {
	if additionalMinutes < minExtensionMinutes || additionalMinutes > maxExtensionMinutes {
		return nil, ErrInvalidExtension
	}

	var extended *Hold
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		h, err := s.repo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if h.UserID != requesterID {
			return ErrPermissionDenied
		}

		now := s.clock.Now()
		if !h.ActiveAt(now) {
			return ErrNotActive
		}

		newExpiry := h.ExpiresAt.Add(time.Duration(additionalMinutes) * time.Minute)
		if newExpiry.Sub(h.CreatedAt) > s.maxDuration {
			return ErrExtensionBounds
		}

		if err := s.repo.UpdateExpiry(txCtx, h.ID, newExpiry); err != nil {
			return err
		}
		h.ExpiresAt = newExpiry
		extended = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"hold_id":    extended.ID,
		"expires_at": extended.ExpiresAt,
	}).Info("hold extended")

	return extended, nil
}

func (s *service) Cancel(ctx context.Context, id, requesterID string, isStaff bool, reason string) error {
	var cancelled *Hold
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		h, err := s.repo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if h.UserID != requesterID && !isStaff {
			return ErrPermissionDenied
		}
		if !h.ActiveAt(s.clock.Now()) {
			return ErrNotActive
		}

		if err := s.repo.UpdateStatus(txCtx, h.ID, StatusActive, StatusCancelled); err != nil {
			return err
		}
		cancelled = h
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.HoldsCancelled.Inc()
	}
	s.logger.WithFields(logrus.Fields{
		"hold_id": cancelled.ID,
		"user_id": cancelled.UserID,
		"reason":  reason,
	}).Info("hold cancelled")

	s.publisher.Publish(event.Event{
		Kind:       event.KindHoldReleased,
		ProductID:  cancelled.ProductID,
		LocationID: cancelled.LocationID,
		Quantity:   cancelled.Quantity,
		StartDate:  cancelled.StartDate,
		EndDate:    cancelled.EndDate,
		Timestamp:  s.clock.Now(),
		UserID:     cancelled.UserID,
		HoldID:     cancelled.ID,
		Reason:     "cancelled",
	})

	return nil
}

func (s *service) GetActiveForUpdate(ctx context.Context, id, requesterID string) (*Hold, error) {
	h, err := s.repo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.UserID != requesterID {
		return nil, ErrPermissionDenied
	}
	if !h.ActiveAt(s.clock.Now()) {
		return nil, ErrNotActive
	}
	return h, nil
}

func (s *service) ConvertToBooking(ctx context.Context, id, bookingID string) error {
	if err := s.repo.MarkConverted(ctx, id, bookingID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.HoldsConverted.Inc()
	}
	return nil
}
