package hold

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentloop/rentloop-backend/internal/catalog"
	"github.com/rentloop/rentloop-backend/internal/event"
	"github.com/rentloop/rentloop-backend/internal/inventory"
	"github.com/rentloop/rentloop-backend/internal/pkg/clock"
)

// fakeHoldRepo keeps holds in memory. WithTx serializes callers the way the
// ledger row lock does in Postgres.
type fakeHoldRepo struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	clk    clock.Clock
	holds  map[string]*Hold
	nextID int
}

func newFakeHoldRepo(clk clock.Clock) *fakeHoldRepo {
	return &fakeHoldRepo{clk: clk, holds: make(map[string]*Hold)}
}

func (f *fakeHoldRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return fn(ctx)
}

func (f *fakeHoldRepo) Create(_ context.Context, h *Hold) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	h.ID = fmt.Sprintf("hold-%d", f.nextID)
	h.CreatedAt = f.clk.Now()
	h.UpdatedAt = h.CreatedAt
	cp := *h
	f.holds[h.ID] = &cp
	return nil
}

func (f *fakeHoldRepo) get(id string) (*Hold, error) {
	h, ok := f.holds[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (f *fakeHoldRepo) GetByID(_ context.Context, id string) (*Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(id)
}

func (f *fakeHoldRepo) GetByIDForUpdate(_ context.Context, id string) (*Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(id)
}

func (f *fakeHoldRepo) ListByUser(_ context.Context, userID string, status string) ([]*Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Hold
	for _, h := range f.holds {
		if h.UserID != userID {
			continue
		}
		if status != "" && string(h.Status) != status {
			continue
		}
		cp := *h
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeHoldRepo) HasOverlappingActive(_ context.Context, userID, productID, locationID string, start, end, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.holds {
		if h.UserID != userID || h.ProductID != productID || h.LocationID != locationID {
			continue
		}
		if !h.ActiveAt(now) {
			continue
		}
		if inventory.Overlaps(h.StartDate, h.EndDate, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeHoldRepo) UpdateStatus(_ context.Context, id string, from, to Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok || h.Status != from {
		return ErrNotActive
	}
	h.Status = to
	return nil
}

func (f *fakeHoldRepo) MarkConverted(_ context.Context, id, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok || h.Status != StatusActive {
		return ErrNotActive
	}
	h.Status = StatusConverted
	h.ConvertedToBookingID = &bookingID
	return nil
}

func (f *fakeHoldRepo) UpdateExpiry(_ context.Context, id string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok || h.Status != StatusActive {
		return ErrNotActive
	}
	h.ExpiresAt = expiresAt
	return nil
}

func (f *fakeHoldRepo) FindExpired(_ context.Context, now time.Time, limit int) ([]*Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Hold
	for _, h := range f.holds {
		if h.Status != StatusActive || h.ExpiresAt.After(now) {
			continue
		}
		cp := *h
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeHoldRepo) MarkExpired(_ context.Context, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var flipped []string
	for _, id := range ids {
		h, ok := f.holds[id]
		if !ok || h.Status != StatusActive {
			continue
		}
		h.Status = StatusExpired
		flipped = append(flipped, id)
	}
	return flipped, nil
}

// fakeInventory derives availability from the fake hold store, mirroring the
// real derived-capacity arithmetic minus bookings.
type fakeInventory struct {
	inventory.Service

	repo  *fakeHoldRepo
	clk   clock.Clock
	total int
}

func (f *fakeInventory) availability(productID, locationID string, start, end time.Time, excludeHoldID string) *inventory.Availability {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()

	now := f.clk.Now()
	held := 0
	for _, h := range f.repo.holds {
		if h.ID == excludeHoldID || h.ProductID != productID || h.LocationID != locationID {
			continue
		}
		if !h.ActiveAt(now) {
			continue
		}
		if inventory.Overlaps(h.StartDate, h.EndDate, start, end) {
			held += h.Quantity
		}
	}

	free := f.total - held
	if free < 0 {
		free = 0
	}
	return &inventory.Availability{
		ProductID:         productID,
		LocationID:        locationID,
		StartDate:         start,
		EndDate:           end,
		TotalStock:        f.total,
		HeldQuantity:      held,
		AvailableQuantity: free,
	}
}

func (f *fakeInventory) ComputeAvailability(_ context.Context, productID, locationID string, start, end time.Time) (*inventory.Availability, error) {
	return f.availability(productID, locationID, start, end, ""), nil
}

func (f *fakeInventory) AvailabilityForUpdate(_ context.Context, productID, locationID string, start, end time.Time, excludeHoldID string) (*inventory.Availability, error) {
	return f.availability(productID, locationID, start, end, excludeHoldID), nil
}

type fakeCatalog struct {
	catalog.Service

	err error
}

func (f *fakeCatalog) CheckBookable(context.Context, string, string) error {
	return f.err
}

type capturePublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *capturePublisher) Publish(evt event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *capturePublisher) byKind(kind event.Kind) []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.Event
	for _, e := range p.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	svc       Service
	repo      *fakeHoldRepo
	inv       *fakeInventory
	publisher *capturePublisher
	clk       *clock.Manual
}

func newTestEnv(totalStock int) *testEnv {
	clk := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := newFakeHoldRepo(clk)
	inv := &fakeInventory{repo: repo, clk: clk, total: totalStock}
	publisher := &capturePublisher{}

	svc := NewService(Config{
		Repo:         repo,
		InvService:   inv,
		CatService:   &fakeCatalog{},
		Publisher:    publisher,
		Clock:        clk,
		Logger:       logrus.New(),
		HoldDuration: 10 * time.Minute,
		MaxDuration:  30 * time.Minute,
	})

	return &testEnv{svc: svc, repo: repo, inv: inv, publisher: publisher, clk: clk}
}

func (e *testEnv) createReq(userID string, quantity int) CreateRequest {
	now := e.clk.Now()
	return CreateRequest{
		UserID:     userID,
		ProductID:  "prod-1",
		LocationID: "loc-1",
		Quantity:   quantity,
		StartDate:  now.Add(24 * time.Hour),
		EndDate:    now.Add(96 * time.Hour),
	}
}

func (e *testEnv) available(t *testing.T, start, end time.Time) int {
	t.Helper()
	avail, err := e.inv.ComputeAvailability(context.Background(), "prod-1", "loc-1", start, end)
	require.NoError(t, err)
	return avail.AvailableQuantity
}

func TestService_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("hold reduces availability for the overlap window", func(t *testing.T) {
		env := newTestEnv(5)
		req := env.createReq("user-1", 3)

		h, err := env.svc.Create(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, h.Status)
		assert.Equal(t, env.clk.Now().Add(10*time.Minute), h.ExpiresAt)

		assert.Equal(t, 2, env.available(t, req.StartDate, req.EndDate))

		created := env.publisher.byKind(event.KindHoldCreated)
		require.Len(t, created, 1)
		assert.Equal(t, h.ID, created[0].HoldID)
	})

	t.Run("rejects request exceeding remaining capacity with real remainder", func(t *testing.T) {
		env := newTestEnv(5)
		_, err := env.svc.Create(ctx, env.createReq("user-1", 3))
		require.NoError(t, err)

		_, err = env.svc.Create(ctx, env.createReq("user-2", 3))
		var capErr *inventory.CapacityConflictError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, 3, capErr.Requested)
		assert.Equal(t, 2, capErr.Remaining)

		// A reduced request for the remainder still succeeds.
		h, err := env.svc.Create(ctx, env.createReq("user-2", 2))
		require.NoError(t, err)
		assert.Equal(t, 0, env.available(t, h.StartDate, h.EndDate))
	})

	t.Run("rejects second overlapping hold from the same user", func(t *testing.T) {
		env := newTestEnv(10)
		_, err := env.svc.Create(ctx, env.createReq("user-1", 2))
		require.NoError(t, err)

		_, err = env.svc.Create(ctx, env.createReq("user-1", 1))
		assert.ErrorIs(t, err, ErrDuplicateHold)
	})

	t.Run("allows non-overlapping hold from the same user", func(t *testing.T) {
		env := newTestEnv(10)
		req := env.createReq("user-1", 2)
		_, err := env.svc.Create(ctx, req)
		require.NoError(t, err)

		later := req
		later.StartDate = req.EndDate
		later.EndDate = req.EndDate.Add(48 * time.Hour)
		_, err = env.svc.Create(ctx, later)
		assert.NoError(t, err)
	})

	t.Run("validates quantity and dates", func(t *testing.T) {
		env := newTestEnv(5)

		req := env.createReq("user-1", 0)
		_, err := env.svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidQuantity)

		req = env.createReq("user-1", 1)
		req.StartDate, req.EndDate = req.EndDate, req.StartDate
		_, err = env.svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidDateRange)

		req = env.createReq("user-1", 1)
		req.StartDate = env.clk.Now().Add(-time.Hour)
		_, err = env.svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrStartDatePast)
	})

	t.Run("propagates catalog rejection", func(t *testing.T) {
		env := newTestEnv(5)
		svc := NewService(Config{
			Repo:         env.repo,
			InvService:   env.inv,
			CatService:   &fakeCatalog{err: catalog.ErrProductNotBookable},
			Publisher:    env.publisher,
			Clock:        env.clk,
			Logger:       logrus.New(),
			HoldDuration: 10 * time.Minute,
			MaxDuration:  30 * time.Minute,
		})

		_, err := svc.Create(ctx, env.createReq("user-1", 1))
		assert.ErrorIs(t, err, catalog.ErrProductNotBookable)
	})
}

func TestService_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("expired hold stops counting without the sweeper", func(t *testing.T) {
		env := newTestEnv(5)
		req := env.createReq("user-1", 3)
		_, err := env.svc.Create(ctx, req)
		require.NoError(t, err)
		require.Equal(t, 2, env.available(t, req.StartDate, req.EndDate))

		env.clk.Advance(10*time.Minute + time.Second)
		assert.Equal(t, 5, env.available(t, req.StartDate, req.EndDate))
	})

	t.Run("expired hold cannot be extended or cancelled", func(t *testing.T) {
		env := newTestEnv(5)
		h, err := env.svc.Create(ctx, env.createReq("user-1", 1))
		require.NoError(t, err)

		env.clk.Advance(11 * time.Minute)

		_, err = env.svc.Extend(ctx, h.ID, "user-1", 5)
		assert.ErrorIs(t, err, ErrNotActive)

		err = env.svc.Cancel(ctx, h.ID, "user-1", false, "")
		assert.ErrorIs(t, err, ErrNotActive)
	})
}

func TestService_Extend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("extension pushes expiry out", func(t *testing.T) {
		env := newTestEnv(5)
		h, err := env.svc.Create(ctx, env.createReq("user-1", 1))
		require.NoError(t, err)

		extended, err := env.svc.Extend(ctx, h.ID, "user-1", 5)
		require.NoError(t, err)
		assert.Equal(t, h.ExpiresAt.Add(5*time.Minute), extended.ExpiresAt)
	})

	t.Run("total lifetime is capped", func(t *testing.T) {
		env := newTestEnv(5)
		h, err := env.svc.Create(ctx, env.createReq("user-1", 1))
		require.NoError(t, err)

		// 10m initial + 25m would exceed the 30m ceiling.
		_, err = env.svc.Extend(ctx, h.ID, "user-1", 25)
		assert.ErrorIs(t, err, ErrExtensionBounds)

		// 10m initial + 20m lands exactly on the ceiling.
		extended, err := env.svc.Extend(ctx, h.ID, "user-1", 20)
		require.NoError(t, err)
		assert.Equal(t, h.CreatedAt.Add(30*time.Minute), extended.ExpiresAt)

		_, err = env.svc.Extend(ctx, h.ID, "user-1", 1)
		assert.ErrorIs(t, err, ErrExtensionBounds)
	})

	t.Run("rejects out-of-range extension minutes", func(t *testing.T) {
		env := newTestEnv(5)
		h, err := env.svc.Create(ctx, env.createReq("user-1", 1))
		require.NoError(t, err)

		for _, minutes := range []int{0, -5, 31} {
			_, err = env.svc.Extend(ctx, h.ID, "user-1", minutes)
			assert.ErrorIs(t, err, ErrInvalidExtension, "minutes=%d", minutes)
		}
	})

	t.Run("only the owner can extend", func(t *testing.T) {
		env := newTestEnv(5)
		h, err := env.svc.Create(ctx, env.createReq("user-1", 1))
		require.NoError(t, err)

		_, err = env.svc.Extend(ctx, h.ID, "user-2", 5)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})
}

func TestService_Cancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("cancel frees capacity immediately", func(t *testing.T) {
		env := newTestEnv(5)
		req := env.createReq("user-1", 3)
		h, err := env.svc.Create(ctx, req)
		require.NoError(t, err)

		require.NoError(t, env.svc.Cancel(ctx, h.ID, "user-1", false, "changed my mind"))
		assert.Equal(t, 5, env.available(t, req.StartDate, req.EndDate))

		released := env.publisher.byKind(event.KindHoldReleased)
		require.Len(t, released, 1)
		assert.Equal(t, "cancelled", released[0].Reason)
	})

	t.Run("staff can cancel another user's hold", func(t *testing.T) {
		env := newTestEnv(5)
		h, err := env.svc.Create(ctx, env.createReq("user-1", 1))
		require.NoError(t, err)

		assert.NoError(t, env.svc.Cancel(ctx, h.ID, "staff-1", true, "fraud"))
	})

	t.Run("non-owner without staff is rejected", func(t *testing.T) {
		env := newTestEnv(5)
		h, err := env.svc.Create(ctx, env.createReq("user-1", 1))
		require.NoError(t, err)

		err = env.svc.Cancel(ctx, h.ID, "user-2", false, "")
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("cancel is not idempotent on a terminal hold", func(t *testing.T) {
		env := newTestEnv(5)
		h, err := env.svc.Create(ctx, env.createReq("user-1", 1))
		require.NoError(t, err)

		require.NoError(t, env.svc.Cancel(ctx, h.ID, "user-1", false, ""))
		err = env.svc.Cancel(ctx, h.ID, "user-1", false, "")
		assert.ErrorIs(t, err, ErrNotActive)
	})
}

func TestService_ConcurrentCreateNeverOversells(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const totalStock = 3
	const attempts = 20

	env := newTestEnv(totalStock)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Distinct users so the duplicate-hold rule stays out of the way.
			_, errs[i] = env.svc.Create(ctx, env.createReq(fmt.Sprintf("user-%d", i), 1))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var capErr *inventory.CapacityConflictError
		require.True(t, errors.As(err, &capErr), "unexpected error: %v", err)
	}
	assert.Equal(t, totalStock, succeeded)

	req := env.createReq("checker", 1)
	assert.Equal(t, 0, env.available(t, req.StartDate, req.EndDate))
}
