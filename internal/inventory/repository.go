package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentloop/rentloop-backend/internal/db"
)

// capacityStatuses are the booking statuses that count against capacity.
// An overdue booking does not count here; late stock is reconciled when the
// item is actually returned.
var capacityStatuses = []string{"confirmed", "approved", "picked_up", "in_use"}

type Repository interface {
	GetRecord(ctx context.Context, productID, locationID string) (*Record, error)

	// GetRecordForUpdate locks the ledger row for the rest of the enclosing
	// transaction. This is the per-key serialization point for every
	// capacity-check-then-reserve sequence.
	GetRecordForUpdate(ctx context.Context, productID, locationID string) (*Record, error)

	UpsertRecord(ctx context.Context, rec *Record) error

	// SumBookedQuantity totals capacity-occupying bookings overlapping
	// [start, end) for the product/location pair.
	SumBookedQuantity(ctx context.Context, productID, locationID string, start, end time.Time) (int, error)

	// SumHeldQuantity totals active, unexpired holds overlapping [start, end).
	// The expires_at filter means holds past their expiry stop counting
	// immediately, regardless of sweeper latency. excludeHoldID ignores the
	// hold being converted during booking creation.
	SumHeldQuantity(ctx context.Context, productID, locationID string, start, end, now time.Time, excludeHoldID string) (int, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) getRecord(ctx context.Context, productID, locationID string, forUpdate bool) (*Record, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(
		"id", "product_id", "location_id",
		"total_quantity", "min_quantity", "max_quantity",
		"created_at", "updated_at",
	).
		From("public.inventory_records").
		Where(squirrel.Eq{"product_id": productID, "location_id": locationID})

	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get inventory record query failed: %w", err)
	}

	var rec Record
	err = db.QuerierFrom(ctx, r.pool).QueryRow(ctx, sql, args...).Scan(
		&rec.ID, &rec.ProductID, &rec.LocationID,
		&rec.TotalQuantity, &rec.MinQuantity, &rec.MaxQuantity,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidUUID(err) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("get inventory record failed: %w", err)
	}
	return &rec, nil
}

func (r *pgxRepository) GetRecord(ctx context.Context, productID, locationID string) (*Record, error) {
	return r.getRecord(ctx, productID, locationID, false)
}

func (r *pgxRepository) GetRecordForUpdate(ctx context.Context, productID, locationID string) (*Record, error) {
	return r.getRecord(ctx, productID, locationID, true)
}

func (r *pgxRepository) UpsertRecord(ctx context.Context, rec *Record) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.inventory_records").
		Columns("product_id", "location_id", "total_quantity", "min_quantity", "max_quantity").
		Values(rec.ProductID, rec.LocationID, rec.TotalQuantity, rec.MinQuantity, rec.MaxQuantity).
		Suffix(`ON CONFLICT (product_id, location_id) DO UPDATE
SET total_quantity = EXCLUDED.total_quantity,
    min_quantity = EXCLUDED.min_quantity,
    max_quantity = EXCLUDED.max_quantity,
    updated_at = now()
RETURNING id, created_at, updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert inventory record query failed: %w", err)
	}

	err = db.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, args...).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert inventory record failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) SumBookedQuantity(ctx context.Context, productID, locationID string, start, end time.Time) (int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("COALESCE(SUM(quantity), 0)").
		From("public.bookings").
		Where(squirrel.Eq{"product_id": productID, "location_id": locationID}).
		Where(squirrel.Eq{"status": capacityStatuses}).
		Where(squirrel.Lt{"start_date": end}).
		Where(squirrel.Gt{"end_date": start}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum booked quantity query failed: %w", err)
	}

	var total int
	if err := db.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum booked quantity failed: %w", err)
	}
	return total, nil
}

func (r *pgxRepository) SumHeldQuantity(ctx context.Context, productID, locationID string, start, end, now time.Time, excludeHoldID string) (int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select("COALESCE(SUM(quantity), 0)").
		From("public.holds").
		Where(squirrel.Eq{"product_id": productID, "location_id": locationID}).
		Where(squirrel.Eq{"status": "active"}).
		Where(squirrel.Gt{"expires_at": now}).
		Where(squirrel.Lt{"start_date": end}).
		Where(squirrel.Gt{"end_date": start})

	if excludeHoldID != "" {
		query = query.Where(squirrel.NotEq{"id": excludeHoldID})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum held quantity query failed: %w", err)
	}

	var total int
	if err := db.QuerierFrom(ctx, r.pool).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum held quantity failed: %w", err)
	}
	return total, nil
}
