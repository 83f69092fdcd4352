package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-storefront/internal/shipping"
)

// ErrNotFound indicates the requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a placed order with its totals frozen at checkout time.
type Order struct {
	ID             uuid.UUID       `json:"id"`
	CartToken      string          `json:"-"`
	CustomerName   string          `json:"customerName"`
	CustomerEmail  string          `json:"customerEmail"`
	CustomerPhone  string          `json:"customerPhone,omitempty"`
	Address        string          `json:"address"`
	Status         Status          `json:"status"`
	CouponCode     *string         `json:"couponCode,omitempty"`
	ShippingMethod shipping.Method `json:"shippingMethod"`
	Subtotal       int64           `json:"subtotal"`
	Discount       int64           `json:"discount"`
	ShippingFee    int64           `json:"shippingFee"`
	Total          int64           `json:"total"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Item is one frozen order line.
type Item struct {
	ID              uuid.UUID `json:"id"`
	OrderID         uuid.UUID `json:"-"`
	ProductID       uuid.UUID `json:"productId"`
	VariantID       uuid.UUID `json:"variantId"`
	Title           string    `json:"title"`
	Size            string    `json:"size"`
	Color           string    `json:"color"`
	UnitPrice       int64     `json:"unitPrice"`
	DiscountPercent int32     `json:"discountPercent"`
	Qty             int32     `json:"qty"`
	Net             int64     `json:"net"`
	CouponDiscount  int64     `json:"couponDiscount"`
}

// ListParams filters the admin order listing.
type ListParams struct {
	Status Status
	Page   int
	Limit  int
}

// DBTX matches the pgx surface shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists orders in Postgres.
type PGStore struct {
	DB DBTX
}

// WithTx returns a store bound to the given transaction.
func (s PGStore) WithTx(tx pgx.Tx) PGStore {
	return PGStore{DB: tx}
}

const orderColumns = `id, cart_token, customer_name, customer_email, customer_phone,
	address, status, coupon_code, shipping_method, subtotal, discount, shipping_fee,
	total, created_at, updated_at`

// Create inserts the order header and its items.
func (s PGStore) Create(ctx context.Context, o Order, items []Item) (Order, error) {
	var couponCode pgtype.Text
	if o.CouponCode != nil {
		couponCode = pgtype.Text{String: *o.CouponCode, Valid: true}
	}
	row := s.DB.QueryRow(ctx, `
		INSERT INTO orders (cart_token, customer_name, customer_email, customer_phone,
			address, status, coupon_code, shipping_method, subtotal, discount,
			shipping_fee, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+orderColumns,
		o.CartToken, o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.Address,
		string(o.Status), couponCode, string(o.ShippingMethod),
		o.Subtotal, o.Discount, o.ShippingFee, o.Total)
	created, err := scanOrder(row)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	for _, item := range items {
		_, err := s.DB.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, variant_id, title, size,
				color, unit_price, discount_percent, qty, net, coupon_discount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			pgUUID(created.ID), pgUUID(item.ProductID), pgUUID(item.VariantID),
			item.Title, item.Size, item.Color, item.UnitPrice, item.DiscountPercent,
			item.Qty, item.Net, item.CouponDiscount)
		if err != nil {
			return Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}
	return created, nil
}

// GetByID loads one order.
func (s PGStore) GetByID(ctx context.Context, id uuid.UUID) (Order, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, pgUUID(id))
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

// ListByCartToken returns the orders placed from one cart token, newest first.
func (s PGStore) ListByCartToken(ctx context.Context, token string) ([]Order, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE cart_token = $1 ORDER BY created_at DESC`,
		token)
	if err != nil {
		return nil, fmt.Errorf("list orders by token: %w", err)
	}
	return collectOrders(rows)
}

// Count returns the number of orders matching the filter.
func (s PGStore) Count(ctx context.Context, params ListParams) (int64, error) {
	where, args := orderFilter(params)
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return total, nil
}

// List returns a page of orders, newest first.
func (s PGStore) List(ctx context.Context, params ListParams) ([]Order, error) {
	where, args := orderFilter(params)
	offset := (params.Page - 1) * params.Limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, params.Limit, offset)
	sql := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return collectOrders(rows)
}

// ListItems returns the lines of an order.
func (s PGStore) ListItems(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, title, size, color, unit_price,
			discount_percent, qty, net, coupon_discount
		FROM order_items WHERE order_id = $1 ORDER BY created_at`, pgUUID(orderID))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var (
			it        Item
			id        pgtype.UUID
			oID       pgtype.UUID
			productID pgtype.UUID
			variantID pgtype.UUID
		)
		err := rows.Scan(&id, &oID, &productID, &variantID, &it.Title, &it.Size,
			&it.Color, &it.UnitPrice, &it.DiscountPercent, &it.Qty, &it.Net, &it.CouponDiscount)
		if err != nil {
			return nil, err
		}
		it.ID = uuid.UUID(id.Bytes)
		it.OrderID = uuid.UUID(oID.Bytes)
		it.ProductID = uuid.UUID(productID.Bytes)
		it.VariantID = uuid.UUID(variantID.Bytes)
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateStatus moves an order to the next status. The current status rides in
// the WHERE clause so concurrent updates cannot race past the state machine.
func (s PGStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := s.DB.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		pgUUID(id), string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func orderFilter(params ListParams) (string, []any) {
	if params.Status == "" {
		return "", nil
	}
	return " WHERE status = $1", []any{string(params.Status)}
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o          Order
		id         pgtype.UUID
		phone      pgtype.Text
		couponCode pgtype.Text
		status     string
		method     string
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)
	err := row.Scan(&id, &o.CartToken, &o.CustomerName, &o.CustomerEmail, &phone,
		&o.Address, &status, &couponCode, &method, &o.Subtotal, &o.Discount,
		&o.ShippingFee, &o.Total, &createdAt, &updatedAt)
	if err != nil {
		return Order{}, err
	}
	o.ID = uuid.UUID(id.Bytes)
	o.Status = Status(status)
	o.ShippingMethod = shipping.Method(method)
	if phone.Valid {
		o.CustomerPhone = phone.String
	}
	if couponCode.Valid {
		code := couponCode.String
		o.CouponCode = &code
	}
	if createdAt.Valid {
		o.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		o.UpdatedAt = updatedAt.Time
	}
	return o, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
