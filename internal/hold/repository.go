package hold

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

type Repository interface {
	// WithTx runs fn inside a transaction carried in the context, so calls
	// into other repositories join it.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	Create(ctx context.Context, h *Hold) error
	GetByID(ctx context.Context, id string) (*Hold, error)
	GetByIDForUpdate(ctx context.Context, id string) (*Hold, error)
	ListByUser(ctx context.Context, userID string, status string) ([]*Hold, error)

	// HasOverlappingActive reports whether the user already has an active,
	// unexpired hold overlapping [start, end) for the product/location.
	HasOverlappingActive(ctx context.Context, userID, productID, locationID string, start, end, now time.Time) (bool, error)

	// UpdateStatus flips status from one value to another. Returns
	// ErrNotActive when the row is no longer in the expected state.
	UpdateStatus(ctx context.Context, id string, from, to Status) error

	// MarkConverted stamps the booking reference while flipping to converted.
	MarkConverted(ctx context.Context, id, bookingID string) error

	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error

	// FindExpired returns active holds whose expiry has passed.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*Hold, error)

	// MarkExpired flips the given holds to expired if still active and
	// returns the ids actually flipped. Idempotent: rows already flipped
	// (or cancelled/converted in the meantime) are skipped.
	MarkExpired(ctx context.Context, ids []string) ([]string, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

const holdColumns = "id, user_id, product_id, location_id, quantity, start_date, end_date, status, expires_at, converted_to_booking_id, created_at, updated_at"

func scanHold(row pgx.Row) (*Hold, error) {
	var h Hold
	err := row.Scan(
		&h.ID, &h.UserID, &h.ProductID, &h.LocationID, &h.Quantity,
		&h.StartDate, &h.EndDate, &h.Status, &h.ExpiresAt,
		&h.ConvertedToBookingID, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *pgxRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *pgxRepository) Create(ctx context.Context, h *Hold) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.holds").
		Columns("user_id", "product_id", "location_id", "quantity", "start_date", "end_date", "status", "expires_at").
		Values(h.UserID, h.ProductID, h.LocationID, h.Quantity, h.StartDate, h.EndDate, h.Status, h.ExpiresAt).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create hold query failed: %w", err)
	}

	return db.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, args...).
		Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
}

func (r *pgxRepository) getByID(ctx context.Context, id string, forUpdate bool) (*Hold, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(holdColumns).
		From("public.holds").
		Where(squirrel.Eq{"id": id})

	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get hold query failed: %w", err)
	}

	h, err := scanHold(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidUUID(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get hold failed: %w", err)
	}
	return h, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Hold, error) {
	return r.getByID(ctx, id, false)
}

func (r *pgxRepository) GetByIDForUpdate(ctx context.Context, id string) (*Hold, error) {
	return r.getByID(ctx, id, true)
}

func (r *pgxRepository) ListByUser(ctx context.Context, userID string, status string) ([]*Hold, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(holdColumns).
		From("public.holds").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC")

	if status != "" {
		query = query.Where(squirrel.Eq{"status": status})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list holds query failed: %w", err)
	}

	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list holds failed: %w", err)
	}
	defer rows.Close()

	var holds []*Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hold failed: %w", err)
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

func (r *pgxRepository) HasOverlappingActive(ctx context.Context, userID, productID, locationID string, start, end, now time.Time) (bool, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	subQuery := psql.Select("1").
		From("public.holds").
		Where(squirrel.Eq{"user_id": userID, "product_id": productID, "location_id": locationID}).
		Where(squirrel.Eq{"status": StatusActive}).
		Where(squirrel.Gt{"expires_at": now}).
		Where(squirrel.Lt{"start_date": end}).
		Where(squirrel.Gt{"end_date": start})

	sql, args, err := subQuery.ToSql()
	if err != nil {
		return false, fmt.Errorf("build overlapping hold query failed: %w", err)
	}

	var exists bool
	err = db.QuerierFrom(ctx, r.pool).QueryRow(ctx, "SELECT EXISTS ("+sql+")", args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check overlapping hold failed: %w", err)
	}
	return exists, nil
}

func (r *pgxRepository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.holds").
		Set("status", to).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "status": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update hold status query failed: %w", err)
	}

	ct, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update hold status failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotActive
	}
	return nil
}

func (r *pgxRepository) MarkConverted(ctx context.Context, id, bookingID string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.holds").
		Set("status", StatusConverted).
		Set("converted_to_booking_id", bookingID).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "status": StatusActive}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark hold converted query failed: %w", err)
	}

	ct, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark hold converted failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotActive
	}
	return nil
}

func (r *pgxRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.holds").
		Set("expires_at", expiresAt).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "status": StatusActive}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update hold expiry query failed: %w", err)
	}

	ct, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update hold expiry failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotActive
	}
	return nil
}

func (r *pgxRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*Hold, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(holdColumns).
		From("public.holds").
		Where(squirrel.Eq{"status": StatusActive}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		OrderBy("expires_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find expired holds query failed: %w", err)
	}

	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find expired holds failed: %w", err)
	}
	defer rows.Close()

	var holds []*Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired hold failed: %w", err)
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

func (r *pgxRepository) MarkExpired(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.holds").
		Set("status", StatusExpired).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": ids, "status": StatusActive}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build mark holds expired query failed: %w", err)
	}

	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mark holds expired failed: %w", err)
	}
	defer rows.Close()

	var flipped []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired hold id failed: %w", err)
		}
		flipped = append(flipped, id)
	}
	return flipped, rows.Err()
}
