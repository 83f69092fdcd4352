package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNotFound indicates the requested cart or item could not be located.
var ErrNotFound = errors.New("cart not found")

// Cart is an anonymous shopping cart identified by an opaque token.
type Cart struct {
	ID         uuid.UUID `json:"id"`
	Token      string    `json:"token"`
	CouponCode *string   `json:"couponCode,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Item is one cart line. UnitPrice and DiscountPercent are snapshots taken
// when the item was added so later catalog edits do not silently reprice
// carts. CategoryID is joined from the live product for coupon scoping.
type Item struct {
	ID              uuid.UUID  `json:"id"`
	CartID          uuid.UUID  `json:"-"`
	ProductID       uuid.UUID  `json:"productId"`
	VariantID       uuid.UUID  `json:"variantId"`
	Title           string     `json:"title"`
	Size            string     `json:"size"`
	Color           string     `json:"color"`
	UnitPrice       int64      `json:"unitPrice"`
	DiscountPercent int32      `json:"discountPercent"`
	Qty             int32      `json:"qty"`
	CategoryID      *uuid.UUID `json:"categoryId,omitempty"`
}

// DBTX matches the pgx surface shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists carts in Postgres.
type PGStore struct {
	DB DBTX
}

// WithTx returns a store bound to the given transaction.
func (s PGStore) WithTx(tx pgx.Tx) PGStore {
	return PGStore{DB: tx}
}

const cartColumns = `id, token, coupon_code, expires_at, created_at`

// GetByToken loads an unexpired cart by its opaque token.
func (s PGStore) GetByToken(ctx context.Context, token string) (Cart, error) {
	row := s.DB.QueryRow(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE token = $1 AND expires_at > now()`, token)
	return scanCart(row)
}

// Create inserts a new cart with the given token and expiry.
func (s PGStore) Create(ctx context.Context, token string, expiresAt time.Time) (Cart, error) {
	row := s.DB.QueryRow(ctx,
		`INSERT INTO carts (token, expires_at) VALUES ($1, $2) RETURNING `+cartColumns,
		token, expiresAt)
	return scanCart(row)
}

// Touch extends the cart expiry.
func (s PGStore) Touch(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error {
	_, err := s.DB.Exec(ctx,
		`UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1`,
		pgUUID(cartID), expiresAt)
	return err
}

// SetCoupon attaches or clears the applied coupon code on a cart.
func (s PGStore) SetCoupon(ctx context.Context, cartID uuid.UUID, code *string) error {
	var value pgtype.Text
	if code != nil {
		value = pgtype.Text{String: *code, Valid: true}
	}
	tag, err := s.DB.Exec(ctx,
		`UPDATE carts SET coupon_code = $2, updated_at = now() WHERE id = $1`,
		pgUUID(cartID), value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertItem adds a variant to the cart or increments its quantity, keeping
// the original price snapshot on increments.
func (s PGStore) UpsertItem(ctx context.Context, item Item) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, variant_id, title, size, color,
			unit_price, discount_percent, qty)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (cart_id, variant_id)
		DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty, updated_at = now()`,
		pgUUID(item.CartID), pgUUID(item.ProductID), pgUUID(item.VariantID),
		item.Title, item.Size, item.Color, item.UnitPrice, item.DiscountPercent, item.Qty)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

// UpdateItemQty replaces the quantity of an item owned by the cart.
func (s PGStore) UpdateItemQty(ctx context.Context, cartID, itemID uuid.UUID, qty int32) error {
	tag, err := s.DB.Exec(ctx,
		`UPDATE cart_items SET qty = $3, updated_at = now() WHERE id = $2 AND cart_id = $1`,
		pgUUID(cartID), pgUUID(itemID), qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveItem deletes an item owned by the cart.
func (s PGStore) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	tag, err := s.DB.Exec(ctx,
		`DELETE FROM cart_items WHERE id = $2 AND cart_id = $1`,
		pgUUID(cartID), pgUUID(itemID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearItems empties a cart after a successful checkout.
func (s PGStore) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, pgUUID(cartID))
	return err
}

// ListItems returns the cart lines joined with the live product category.
func (s PGStore) ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.variant_id, ci.title, ci.size,
			ci.color, ci.unit_price, ci.discount_percent, ci.qty, p.category_id
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at`, pgUUID(cartID))
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var (
			it         Item
			id         pgtype.UUID
			cID        pgtype.UUID
			productID  pgtype.UUID
			variantID  pgtype.UUID
			categoryID pgtype.UUID
		)
		err := rows.Scan(&id, &cID, &productID, &variantID, &it.Title, &it.Size,
			&it.Color, &it.UnitPrice, &it.DiscountPercent, &it.Qty, &categoryID)
		if err != nil {
			return nil, err
		}
		it.ID = uuid.UUID(id.Bytes)
		it.CartID = uuid.UUID(cID.Bytes)
		it.ProductID = uuid.UUID(productID.Bytes)
		it.VariantID = uuid.UUID(variantID.Bytes)
		if categoryID.Valid {
			cat := uuid.UUID(categoryID.Bytes)
			it.CategoryID = &cat
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanCart(row pgx.Row) (Cart, error) {
	var (
		c          Cart
		id         pgtype.UUID
		couponCode pgtype.Text
		expiresAt  pgtype.Timestamptz
		createdAt  pgtype.Timestamptz
	)
	if err := row.Scan(&id, &c.Token, &couponCode, &expiresAt, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, err
	}
	c.ID = uuid.UUID(id.Bytes)
	if couponCode.Valid {
		code := couponCode.String
		c.CouponCode = &code
	}
	if expiresAt.Valid {
		c.ExpiresAt = expiresAt.Time
	}
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time
	}
	return c, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
