package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNotFound indicates the requested product or category does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Category is a product grouping used for coupon scoping and filtering.
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// Product is the sellable catalog entry. Price is in minor currency units and
// DiscountPercent is the standing product-level markdown applied before any
// coupon.
type Product struct {
	ID              uuid.UUID  `json:"id"`
	Slug            string     `json:"slug"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	CategoryID      *uuid.UUID `json:"categoryId,omitempty"`
	Price           int64      `json:"price"`
	DiscountPercent int32      `json:"discountPercent"`
	Thumbnail       *string    `json:"thumbnail,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Variant is a concrete purchasable combination of a product.
type Variant struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Size      string    `json:"size"`
	Color     string    `json:"color"`
	Stock     int32     `json:"stock"`
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Page     int
	Limit    int
}

// DBTX matches the pgx surface shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore reads catalog data from Postgres.
type PGStore struct {
	DB DBTX
}

const productColumns = `p.id, p.slug, p.title, p.description, p.category_id,
	p.price, p.discount_percent, p.thumbnail, p.created_at`

// ListCategories returns all categories ordered by name.
func (s PGStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var (
			c  Category
			id pgtype.UUID
		)
		if err := rows.Scan(&id, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		c.ID = uuid.UUID(id.Bytes)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountProducts returns the number of products matching the filters.
func (s PGStore) CountProducts(ctx context.Context, params ListParams) (int64, error) {
	where, args := productFilter(params)
	var total int64
	err := s.DB.QueryRow(ctx,
		`SELECT count(*) FROM products p LEFT JOIN categories c ON c.id = p.category_id`+where,
		args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

// ListProducts returns a page of products matching the filters, newest first.
func (s PGStore) ListProducts(ctx context.Context, params ListParams) ([]Product, error) {
	where, args := productFilter(params)
	offset := (params.Page - 1) * params.Limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, params.Limit, offset)
	sql := fmt.Sprintf(`SELECT %s FROM products p LEFT JOIN categories c ON c.id = p.category_id%s
		ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args))

	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetBySlug loads one product by its slug.
func (s PGStore) GetBySlug(ctx context.Context, slug string) (Product, error) {
	row := s.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.slug = $1`, slug)
	return scanProductRow(row)
}

// GetByID loads one product by id.
func (s PGStore) GetByID(ctx context.Context, id uuid.UUID) (Product, error) {
	row := s.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.id = $1`,
		pgtype.UUID{Bytes: id, Valid: true})
	return scanProductRow(row)
}

// ListVariants returns the variants of a product.
func (s PGStore) ListVariants(ctx context.Context, productID uuid.UUID) ([]Variant, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT id, product_id, size, color, stock FROM product_variants
		WHERE product_id = $1 ORDER BY size, color`,
		pgtype.UUID{Bytes: productID, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var out []Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetVariant resolves a product variant by its size and color combination.
func (s PGStore) GetVariant(ctx context.Context, productID uuid.UUID, size, color string) (Variant, error) {
	row := s.DB.QueryRow(ctx,
		`SELECT id, product_id, size, color, stock FROM product_variants
		WHERE product_id = $1 AND size = $2 AND color = $3`,
		pgtype.UUID{Bytes: productID, Valid: true}, size, color)
	v, err := scanVariant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Variant{}, ErrNotFound
		}
		return Variant{}, err
	}
	return v, nil
}

func productFilter(params ListParams) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if q := strings.TrimSpace(params.Query); q != "" {
		args = append(args, "%"+q+"%")
		clauses = append(clauses, fmt.Sprintf("p.title ILIKE $%d", len(args)))
	}
	if cat := strings.TrimSpace(params.Category); cat != "" {
		args = append(args, cat)
		clauses = append(clauses, fmt.Sprintf("c.slug = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanProductRow(row pgx.Row) (Product, error) {
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p          Product
		id         pgtype.UUID
		categoryID pgtype.UUID
		desc       pgtype.Text
		thumb      pgtype.Text
		createdAt  pgtype.Timestamptz
	)
	err := row.Scan(&id, &p.Slug, &p.Title, &desc, &categoryID,
		&p.Price, &p.DiscountPercent, &thumb, &createdAt)
	if err != nil {
		return Product{}, err
	}
	p.ID = uuid.UUID(id.Bytes)
	if categoryID.Valid {
		cid := uuid.UUID(categoryID.Bytes)
		p.CategoryID = &cid
	}
	if desc.Valid {
		p.Description = desc.String
	}
	if thumb.Valid {
		t := thumb.String
		p.Thumbnail = &t
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	return p, nil
}

func scanVariant(row pgx.Row) (Variant, error) {
	var (
		v         Variant
		id        pgtype.UUID
		productID pgtype.UUID
	)
	if err := row.Scan(&id, &productID, &v.Size, &v.Color, &v.Stock); err != nil {
		return Variant{}, err
	}
	v.ID = uuid.UUID(id.Bytes)
	v.ProductID = uuid.UUID(productID.Bytes)
	return v, nil
}
