package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX matches the pgx surface shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists coupons in Postgres.
type PGStore struct {
	DB DBTX
}

// WithTx returns a store bound to the given transaction.
func (s PGStore) WithTx(tx pgx.Tx) PGStore {
	return PGStore{DB: tx}
}

const couponColumns = `id, code, kind, value, min_order_amount, max_discount,
	start_at, end_at, usage_limit, used_count, status, product_ids, category_ids`

// GetByCode loads a coupon by its case-sensitive code.
func (s PGStore) GetByCode(ctx context.Context, code string) (Coupon, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
	return scanCoupon(row)
}

// GetByCodeForUpdate loads a coupon and locks its row for the transaction,
// so concurrent redemptions serialise on the usage counter.
func (s PGStore) GetByCodeForUpdate(ctx context.Context, code string) (Coupon, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1 FOR UPDATE`, code)
	return scanCoupon(row)
}

// Create inserts a new coupon.
func (s PGStore) Create(ctx context.Context, c Coupon) (Coupon, error) {
	row := s.DB.QueryRow(ctx, `
		INSERT INTO coupons (code, kind, value, min_order_amount, max_discount,
			start_at, end_at, usage_limit, status, product_ids, category_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+couponColumns,
		c.Code, string(c.Kind), c.Value, c.MinOrderAmount, nullableInt64(c.MaxDiscount),
		c.StartAt, c.EndAt, nullableInt32(c.UsageLimit), string(c.Status),
		toPGUUIDs(c.ProductIDs), toPGUUIDs(c.CategoryIDs))
	return scanCoupon(row)
}

// Update rewrites the mutable coupon fields for a code.
func (s PGStore) Update(ctx context.Context, c Coupon) (Coupon, error) {
	row := s.DB.QueryRow(ctx, `
		UPDATE coupons
		SET kind = $2, value = $3, min_order_amount = $4, max_discount = $5,
			start_at = $6, end_at = $7, usage_limit = $8, status = $9,
			product_ids = $10, category_ids = $11, updated_at = now()
		WHERE code = $1
		RETURNING `+couponColumns,
		c.Code, string(c.Kind), c.Value, c.MinOrderAmount, nullableInt64(c.MaxDiscount),
		c.StartAt, c.EndAt, nullableInt32(c.UsageLimit), string(c.Status),
		toPGUUIDs(c.ProductIDs), toPGUUIDs(c.CategoryIDs))
	return scanCoupon(row)
}

// SetStatus flips the administrative status of a coupon.
func (s PGStore) SetStatus(ctx context.Context, code string, status Status) error {
	tag, err := s.DB.Exec(ctx,
		`UPDATE coupons SET status = $2, updated_at = now() WHERE code = $1`,
		code, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Redeem consumes one usage of the coupon as a single conditional update. The
// guard on used_count makes concurrent checkouts safe: once the limit is
// reached the update matches no row and the redemption fails. Reaching the
// limit also flips the coupon inactive in the same statement.
func (s PGStore) Redeem(ctx context.Context, id uuid.UUID) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1,
			status = CASE
				WHEN usage_limit IS NOT NULL AND used_count + 1 >= usage_limit THEN 'inactive'
				ELSE status
			END,
			updated_at = now()
		WHERE id = $1
			AND status = 'active'
			AND (usage_limit IS NULL OR used_count < usage_limit)`,
		pgtype.UUID{Bytes: id, Valid: true})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUsageExhausted
	}
	return nil
}

func scanCoupon(row pgx.Row) (Coupon, error) {
	var (
		c           Coupon
		id          pgtype.UUID
		maxDiscount pgtype.Int8
		usageLimit  pgtype.Int4
		kind        string
		status      string
		startAt     pgtype.Timestamptz
		endAt       pgtype.Timestamptz
		productIDs  []pgtype.UUID
		categoryIDs []pgtype.UUID
	)
	err := row.Scan(&id, &c.Code, &kind, &c.Value, &c.MinOrderAmount, &maxDiscount,
		&startAt, &endAt, &usageLimit, &c.UsedCount, &status, &productIDs, &categoryIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, ErrNotFound
		}
		return Coupon{}, err
	}
	c.ID = uuid.UUID(id.Bytes)
	c.Kind = Kind(kind)
	c.Status = Status(status)
	c.StartAt = timeFromPG(startAt)
	c.EndAt = timeFromPG(endAt)
	if maxDiscount.Valid {
		v := maxDiscount.Int64
		c.MaxDiscount = &v
	}
	if usageLimit.Valid {
		v := usageLimit.Int32
		c.UsageLimit = &v
	}
	c.ProductIDs = fromPGUUIDs(productIDs)
	c.CategoryIDs = fromPGUUIDs(categoryIDs)
	return c, nil
}

func nullableInt64(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func nullableInt32(v *int32) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: *v, Valid: true}
}

func toPGUUIDs(values []uuid.UUID) []pgtype.UUID {
	if len(values) == 0 {
		return nil
	}
	out := make([]pgtype.UUID, 0, len(values))
	for _, v := range values {
		out = append(out, pgtype.UUID{Bytes: v, Valid: true})
	}
	return out
}

func fromPGUUIDs(values []pgtype.UUID) []uuid.UUID {
	if len(values) == 0 {
		return nil
	}
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		if v.Valid {
			out = append(out, uuid.UUID(v.Bytes))
		}
	}
	return out
}

func timeFromPG(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}
