package hold

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentloop/rentloop-backend/internal/event"
	"github.com/rentloop/rentloop-backend/internal/pkg/clock"
	"github.com/rentloop/rentloop-backend/internal/pkg/metrics"
)

// Sweeper periodically flips expired holds from active to expired and
// notifies subscribers. It is a cleanup and notification mechanism, not a
// correctness dependency: capacity arithmetic already ignores holds past
// their expiry.
type Sweeper struct {
	repo      Repository
	publisher event.Publisher
	clock     clock.Clock
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int
}

func NewSweeper(repo Repository, publisher event.Publisher, clk clock.Clock, logger *logrus.Logger, m *metrics.Metrics, interval time.Duration, batchSize int) *Sweeper {
	if batchSize < 1 {
		batchSize = 500
	}
	return &Sweeper{
		repo:      repo,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		metrics:   m,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. Sweep failures are
// logged and retried on the next tick; they never propagate.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.WithField("interval", s.interval).Info("hold sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("hold sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				if s.metrics != nil {
					s.metrics.SweepFailures.Inc()
				}
				s.logger.WithField("err", err).Error("hold sweep failed")
			}
		}
	}
}

// SweepOnce expires every overdue hold currently in the store and returns
// how many were flipped. Safe to call repeatedly: the status flip is one-way
// and rows already flipped are skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	start := time.Now()
	total := 0

	for {
		now := s.clock.Now()
		expired, err := s.repo.FindExpired(ctx, now, s.batchSize)
		if err != nil {
			return total, err
		}
		if len(expired) == 0 {
			break
		}

		ids := make([]string, len(expired))
		for i, h := range expired {
			ids[i] = h.ID
		}

		flippedIDs, err := s.repo.MarkExpired(ctx, ids)
		if err != nil {
			// Rows already flipped stay expired; the next tick picks up
			// the remainder.
			return total, err
		}
		total += len(flippedIDs)

		flipped := make(map[string]struct{}, len(flippedIDs))
		for _, id := range flippedIDs {
			flipped[id] = struct{}{}
		}

		for _, h := range expired {
			if _, ok := flipped[h.ID]; !ok {
				// Lost a race to a cancel or convert; that path already
				// notified subscribers.
				continue
			}
			s.publisher.Publish(event.Event{
				Kind:       event.KindHoldReleased,
				ProductID:  h.ProductID,
				LocationID: h.LocationID,
				Quantity:   h.Quantity,
				StartDate:  h.StartDate,
				EndDate:    h.EndDate,
				Timestamp:  now,
				UserID:     h.UserID,
				HoldID:     h.ID,
				Reason:     "expired",
			})
		}

		if len(expired) < s.batchSize {
			break
		}
	}

	if s.metrics != nil {
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
		s.metrics.HoldsExpired.Add(float64(total))
	}
	if total > 0 {
		s.logger.WithField("count", total).Info("expired holds swept")
	}
	return total, nil
}
