package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentloop/rentloop-backend/internal/catalog"
	"github.com/rentloop/rentloop-backend/internal/event"
	"github.com/rentloop/rentloop-backend/internal/hold"
	"github.com/rentloop/rentloop-backend/internal/inventory"
	"github.com/rentloop/rentloop-backend/internal/pkg/clock"
)

// fakeRepo keeps bookings in memory and mimics Postgres transaction
// poisoning: after a statement fails inside a transaction, every later
// statement fails with in_failed_sql_transaction until a savepoint
// rollback clears it.
type fakeRepo struct {
	mu     sync.Mutex
	clk    clock.Clock
	rows   map[string]*Booking
	nextID int

	// failNextCreate simulates a booking_number unique violation once.
	failNextCreate bool
	inTx           bool
	aborted        bool
}

func newFakeRepo(clk clock.Clock) *fakeRepo {
	return &fakeRepo{clk: clk, rows: make(map[string]*Booking)}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.inTx = true
	f.mu.Unlock()

	err := fn(ctx)

	f.mu.Lock()
	f.inTx = false
	f.aborted = false
	f.mu.Unlock()
	return err
}

func (f *fakeRepo) WithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err != nil {
		f.mu.Lock()
		f.aborted = false
		f.mu.Unlock()
	}
	return err
}

func (f *fakeRepo) Create(_ context.Context, b *Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.aborted {
		return &pgconn.PgError{Code: pgerrcode.InFailedSQLTransaction}
	}
	if f.failNextCreate {
		f.failNextCreate = false
		if f.inTx {
			f.aborted = true
		}
		return &pgconn.PgError{Code: pgerrcode.UniqueViolation}
	}
	f.nextID++
	b.ID = fmt.Sprintf("booking-%d", f.nextID)
	b.CreatedAt = f.clk.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	f.rows[b.ID] = &cp
	return nil
}

func (f *fakeRepo) get(id string) (*Booking, error) {
	b, ok := f.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(id)
}

func (f *fakeRepo) GetByIDForUpdate(_ context.Context, id string) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(id)
}

func (f *fakeRepo) List(_ context.Context, filter Filter) ([]*Booking, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Booking
	for _, b := range f.rows {
		if filter.CustomerID != "" && b.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && string(b.Status) != filter.Status {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Update(_ context.Context, b *Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[b.ID]; !ok {
		return ErrNotFound
	}
	cp := *b
	f.rows[b.ID] = &cp
	return nil
}

func (f *fakeRepo) CountForDay(_ context.Context, day time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, b := range f.rows {
		if b.CreatedAt.UTC().Truncate(24 * time.Hour).Equal(day.UTC().Truncate(24 * time.Hour)) {
			count++
		}
	}
	return count, nil
}

type fakeHoldService struct {
	hold.Service

	hold          *hold.Hold
	getErr        error
	converted     bool
	convertedToID string
}

func (f *fakeHoldService) GetActiveForUpdate(_ context.Context, id, requesterID string) (*hold.Hold, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.hold == nil || f.hold.ID != id {
		return nil, hold.ErrNotFound
	}
	if f.hold.UserID != requesterID {
		return nil, hold.ErrPermissionDenied
	}
	cp := *f.hold
	return &cp, nil
}

func (f *fakeHoldService) ConvertToBooking(_ context.Context, id, bookingID string) error {
	if f.hold == nil || f.hold.ID != id {
		return hold.ErrNotFound
	}
	f.converted = true
	f.convertedToID = bookingID
	return nil
}

type fakeInvService struct {
	inventory.Service

	available   int
	lastExclude string
	calls       int
}

func (f *fakeInvService) AvailabilityForUpdate(_ context.Context, productID, locationID string, start, end time.Time, excludeHoldID string) (*inventory.Availability, error) {
	f.lastExclude = excludeHoldID
	f.calls++
	return &inventory.Availability{
		ProductID:         productID,
		LocationID:        locationID,
		StartDate:         start,
		EndDate:           end,
		AvailableQuantity: f.available,
	}, nil
}

type fakeCatService struct {
	catalog.Service

	err error
}

func (f *fakeCatService) CheckBookable(context.Context, string, string) error {
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
	repo      *fakeRepo
	holds     *fakeHoldService
	inv       *fakeInvService
	publisher *capturePublisher
	clk       *clock.Manual
}

func newTestEnv(available int) *testEnv {
	clk := clock.NewManual(time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC))
	repo := newFakeRepo(clk)
	holds := &fakeHoldService{}
	inv := &fakeInvService{available: available}
	publisher := &capturePublisher{}

	svc := NewService(Config{
		Repo:        repo,
		HoldService: holds,
		InvService:  inv,
		CatService:  &fakeCatService{},
		Publisher:   publisher,
		Clock:       clk,
		Logger:      logrus.New(),
	})

	return &testEnv{svc: svc, repo: repo, holds: holds, inv: inv, publisher: publisher, clk: clk}
}

func (e *testEnv) createReq(customerID string, quantity int) CreateRequest {
	now := e.clk.Now()
	return CreateRequest{
		CustomerID: customerID,
		ProductID:  "prod-1",
		LocationID: "loc-1",
		Quantity:   quantity,
		StartDate:  now.Add(24 * time.Hour),
		EndDate:    now.Add(96 * time.Hour),
	}
}

func TestService_CreateDirect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("starts pending with a daily sequential number", func(t *testing.T) {
		env := newTestEnv(5)

		b, err := env.svc.Create(ctx, env.createReq("cust-1", 2))
		require.NoError(t, err)
		assert.Equal(t, StatusPending, b.Status)
		assert.Equal(t, "RL-20260307-0001", b.BookingNumber)
		assert.Nil(t, b.OriginHoldID)

		b2, err := env.svc.Create(ctx, env.createReq("cust-2", 1))
		require.NoError(t, err)
		assert.Equal(t, "RL-20260307-0002", b2.BookingNumber)
	})

	t.Run("rejects when capacity is insufficient", func(t *testing.T) {
		env := newTestEnv(1)

		_, err := env.svc.Create(ctx, env.createReq("cust-1", 2))
		var capErr *inventory.CapacityConflictError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, 2, capErr.Requested)
		assert.Equal(t, 1, capErr.Remaining)
	})

	t.Run("falls back to a timestamp number on collision", func(t *testing.T) {
		// The first insert runs inside the creation transaction, so its
		// unique violation poisons the transaction; the retry with the
		// fallback number only works from behind a savepoint.
		env := newTestEnv(5)
		env.repo.failNextCreate = true

		b, err := env.svc.Create(ctx, env.createReq("cust-1", 1))
		require.NoError(t, err)
		assert.NotEqual(t, "RL-20260307-0001", b.BookingNumber)
		assert.Contains(t, b.BookingNumber, "RL-20260307-")

		got, err := env.repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.BookingNumber, got.BookingNumber)
	})

	t.Run("validates input", func(t *testing.T) {
		env := newTestEnv(5)

		req := env.createReq("cust-1", 0)
		_, err := env.svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidQuantity)

		req = env.createReq("cust-1", 1)
		req.StartDate, req.EndDate = req.EndDate, req.StartDate
		_, err = env.svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidDateRange)

		req = env.createReq("cust-1", 1)
		req.StartDate = env.clk.Now().Add(-time.Hour)
		_, err = env.svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrStartDatePast)
	})

	t.Run("publishes a status event", func(t *testing.T) {
		env := newTestEnv(5)

		b, err := env.svc.Create(ctx, env.createReq("cust-1", 1))
		require.NoError(t, err)

		evts := env.publisher.byKind(event.KindBookingStatusChanged)
		require.Len(t, evts, 1)
		assert.Equal(t, b.ID, evts[0].BookingID)
		assert.Equal(t, string(StatusPending), evts[0].NewStatus)
	})
}

func TestService_CreateFromHold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	activeHold := func(clk clock.Clock) *hold.Hold {
		now := clk.Now()
		return &hold.Hold{
			ID:         "hold-1",
			UserID:     "cust-1",
			ProductID:  "prod-1",
			LocationID: "loc-1",
			Quantity:   3,
			StartDate:  now.Add(24 * time.Hour),
			EndDate:    now.Add(96 * time.Hour),
			Status:     hold.StatusActive,
			ExpiresAt:  now.Add(10 * time.Minute),
		}
	}

	t.Run("conversion starts confirmed and retires the hold", func(t *testing.T) {
		env := newTestEnv(3)
		env.holds.hold = activeHold(env.clk)

		b, err := env.svc.Create(ctx, CreateRequest{CustomerID: "cust-1", HoldID: "hold-1"})
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, b.Status)
		require.NotNil(t, b.OriginHoldID)
		assert.Equal(t, "hold-1", *b.OriginHoldID)
		assert.Equal(t, 3, b.Quantity)

		assert.True(t, env.holds.converted)
		assert.Equal(t, b.ID, env.holds.convertedToID)
		assert.Len(t, env.publisher.byKind(event.KindInventoryChanged), 1)
	})

	t.Run("capacity re-check excludes the converting hold", func(t *testing.T) {
		env := newTestEnv(3)
		env.holds.hold = activeHold(env.clk)

		_, err := env.svc.Create(ctx, CreateRequest{CustomerID: "cust-1", HoldID: "hold-1"})
		require.NoError(t, err)
		assert.Equal(t, "hold-1", env.inv.lastExclude)
	})

	t.Run("deactivated product blocks conversion and keeps the hold", func(t *testing.T) {
		env := newTestEnv(3)
		env.holds.hold = activeHold(env.clk)

		svc := NewService(Config{
			Repo:        env.repo,
			HoldService: env.holds,
			InvService:  env.inv,
			CatService:  &fakeCatService{err: catalog.ErrProductNotBookable},
			Publisher:   env.publisher,
			Clock:       env.clk,
			Logger:      logrus.New(),
		})

		_, err := svc.Create(ctx, CreateRequest{CustomerID: "cust-1", HoldID: "hold-1"})
		assert.ErrorIs(t, err, catalog.ErrProductNotBookable)
		assert.False(t, env.holds.converted)
	})

	t.Run("propagates inactive hold error", func(t *testing.T) {
		env := newTestEnv(3)
		env.holds.getErr = hold.ErrNotActive

		_, err := env.svc.Create(ctx, CreateRequest{CustomerID: "cust-1", HoldID: "hold-1"})
		assert.ErrorIs(t, err, hold.ErrNotActive)
		assert.False(t, env.holds.converted)
	})

	t.Run("only the hold owner can convert", func(t *testing.T) {
		env := newTestEnv(3)
		env.holds.hold = activeHold(env.clk)

		_, err := env.svc.Create(ctx, CreateRequest{CustomerID: "cust-2", HoldID: "hold-1"})
		assert.ErrorIs(t, err, hold.ErrPermissionDenied)
	})
}

func TestService_UpdateStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	seed := func(env *testEnv, status Status) *Booking {
		b, err := env.svc.Create(ctx, env.createReq("cust-1", 1))
		require.NoError(t, err)
		if status != StatusPending {
			env.repo.mu.Lock()
			env.repo.rows[b.ID].Status = status
			env.repo.mu.Unlock()
			b.Status = status
		}
		return b
	}

	staffReq := func(id string, to Status) UpdateStatusRequest {
		return UpdateStatusRequest{ID: id, NewStatus: to, RequesterID: "staff-1", IsStaff: true}
	}

	t.Run("staff walks the full lifecycle", func(t *testing.T) {
		env := newTestEnv(5)
		b := seed(env, StatusPending)

		for _, to := range []Status{StatusConfirmed, StatusApproved, StatusPickedUp, StatusInUse, StatusReturned, StatusCompleted} {
			updated, err := env.svc.UpdateStatus(ctx, staffReq(b.ID, to))
			require.NoError(t, err, "transition to %s", to)
			assert.Equal(t, to, updated.Status)
		}
	})

	t.Run("pickup and return stamp actual times", func(t *testing.T) {
		env := newTestEnv(5)
		b := seed(env, StatusApproved)

		updated, err := env.svc.UpdateStatus(ctx, staffReq(b.ID, StatusPickedUp))
		require.NoError(t, err)
		require.NotNil(t, updated.ActualStartAt)
		assert.Equal(t, env.clk.Now(), *updated.ActualStartAt)
		assert.Nil(t, updated.ActualEndAt)

		env.clk.Advance(48 * time.Hour)
		updated, err = env.svc.UpdateStatus(ctx, staffReq(b.ID, StatusReturned))
		require.NoError(t, err)
		require.NotNil(t, updated.ActualEndAt)
		assert.Equal(t, env.clk.Now(), *updated.ActualEndAt)
	})

	t.Run("rejects transitions outside the table", func(t *testing.T) {
		env := newTestEnv(5)
		b := seed(env, StatusPending)

		_, err := env.svc.UpdateStatus(ctx, staffReq(b.ID, StatusInUse))
		var trErr *TransitionError
		require.ErrorAs(t, err, &trErr)
		assert.Equal(t, StatusPending, trErr.From)
		assert.Equal(t, StatusInUse, trErr.To)
	})

	t.Run("terminal statuses admit no moves", func(t *testing.T) {
		env := newTestEnv(5)
		b := seed(env, StatusCancelled)

		_, err := env.svc.UpdateStatus(ctx, staffReq(b.ID, StatusConfirmed))
		var trErr *TransitionError
		assert.ErrorAs(t, err, &trErr)
	})

	t.Run("customer may cancel own booking but nothing else", func(t *testing.T) {
		env := newTestEnv(5)
		b := seed(env, StatusPending)

		_, err := env.svc.UpdateStatus(ctx, UpdateStatusRequest{
			ID: b.ID, NewStatus: StatusConfirmed, RequesterID: "cust-1",
		})
		assert.ErrorIs(t, err, ErrPermissionDenied)

		updated, err := env.svc.UpdateStatus(ctx, UpdateStatusRequest{
			ID: b.ID, NewStatus: StatusCancelled, RequesterID: "cust-1",
		})
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, updated.Status)
	})

	t.Run("stranger cannot touch the booking", func(t *testing.T) {
		env := newTestEnv(5)
		b := seed(env, StatusPending)

		_, err := env.svc.UpdateStatus(ctx, UpdateStatusRequest{
			ID: b.ID, NewStatus: StatusCancelled, RequesterID: "cust-2",
		})
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("occupancy changes publish an inventory event", func(t *testing.T) {
		env := newTestEnv(5)
		b := seed(env, StatusConfirmed)

		// confirmed -> cancelled frees capacity.
		_, err := env.svc.UpdateStatus(ctx, staffReq(b.ID, StatusCancelled))
		require.NoError(t, err)
		assert.Len(t, env.publisher.byKind(event.KindInventoryChanged), 1)
	})

	t.Run("moves within occupancy publish no inventory event", func(t *testing.T) {
		env := newTestEnv(5)
		b := seed(env, StatusPickedUp)

		_, err := env.svc.UpdateStatus(ctx, staffReq(b.ID, StatusInUse))
		require.NoError(t, err)
		assert.Empty(t, env.publisher.byKind(event.KindInventoryChanged))
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		env := newTestEnv(5)
		b := seed(env, StatusPending)

		_, err := env.svc.UpdateStatus(ctx, staffReq(b.ID, Status("shipped")))
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("confirming a pending booking never re-checks capacity", func(t *testing.T) {
		// The transition table admits pending -> confirmed unconditionally;
		// capacity was checked at creation and is not consulted again.
		env := newTestEnv(5)
		b := seed(env, StatusPending)

		env.inv.calls = 0
		env.inv.available = 0

		updated, err := env.svc.UpdateStatus(ctx, staffReq(b.ID, StatusConfirmed))
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, updated.Status)
		assert.Equal(t, 0, env.inv.calls)
	})
}

func TestService_List(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(5)
	_, err := env.svc.Create(ctx, env.createReq("cust-1", 1))
	require.NoError(t, err)

	t.Run("accepts whitelisted sort fields", func(t *testing.T) {
		for _, sortBy := range []string{"", "start_date", "created_at", "status"} {
			for _, order := range []string{"", "asc", "DESC"} {
				_, _, err := env.svc.List(ctx, Filter{SortBy: sortBy, SortOrder: order})
				assert.NoError(t, err, "sort_by=%q sort_order=%q", sortBy, order)
			}
		}
	})

	t.Run("rejects sort column outside the whitelist", func(t *testing.T) {
		_, _, err := env.svc.List(ctx, Filter{SortBy: "booking_number; drop table bookings"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects sort order outside asc and desc", func(t *testing.T) {
		_, _, err := env.svc.List(ctx, Filter{SortOrder: "desc; --"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects unknown status filter", func(t *testing.T) {
		_, _, err := env.svc.List(ctx, Filter{Status: "shipped"})
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}

func TestService_GetByID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(5)
	b, err := env.svc.Create(ctx, env.createReq("cust-1", 1))
	require.NoError(t, err)

	got, err := env.svc.GetByID(ctx, b.ID, "cust-1", false)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = env.svc.GetByID(ctx, b.ID, "cust-2", false)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	got, err = env.svc.GetByID(ctx, b.ID, "staff-1", true)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = env.svc.GetByID(ctx, "missing", "cust-1", false)
	assert.ErrorIs(t, err, ErrNotFound)
}
