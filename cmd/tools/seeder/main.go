package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close(ctx)

	seedCatalog(ctx, conn)
	seedCoupons(ctx, conn)

	log.Println("Seeding completed successfully!")
}

func seedCatalog(ctx context.Context, conn *pgx.Conn) {
	log.Println("Seeding catalog...")

	categories := []struct {
		Name string
		Slug string
	}{
		{"Sepatu", "sepatu"},
		{"Pakaian", "pakaian"},
		{"Aksesoris", "aksesoris"},
	}
	categoryIDs := map[string]string{}
	for _, c := range categories {
		var id string
		err := conn.QueryRow(ctx, `
			INSERT INTO categories (name, slug) VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, c.Name, c.Slug).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed category %s: %v", c.Slug, err)
		}
		categoryIDs[c.Slug] = id
	}

	products := []struct {
		Slug            string
		Title           string
		Category        string
		Price           int64
		DiscountPercent int
		Sizes           []string
		Colors          []string
	}{
		{"sneakers-classic", "Sneakers Classic", "sepatu", 1_250_000, 0, []string{"40", "41", "42", "43"}, []string{"white", "black"}},
		{"running-pro", "Running Pro", "sepatu", 5_589_000, 32, []string{"41", "42", "43"}, []string{"red", "black"}},
		{"basic-tee", "Basic Tee", "pakaian", 150_000, 0, []string{"S", "M", "L", "XL"}, []string{"white", "navy", "olive"}},
		{"denim-jacket", "Denim Jacket", "pakaian", 780_000, 15, []string{"M", "L", "XL"}, []string{"blue"}},
		{"canvas-tote", "Canvas Tote", "aksesoris", 220_000, 10, []string{"one-size"}, []string{"natural", "black"}},
	}
	for _, p := range products {
		var id string
		err := conn.QueryRow(ctx, `
			INSERT INTO products (slug, title, category_id, price, discount_percent)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (slug) DO UPDATE SET
				title = EXCLUDED.title,
				price = EXCLUDED.price,
				discount_percent = EXCLUDED.discount_percent
			RETURNING id`,
			p.Slug, p.Title, categoryIDs[p.Category], p.Price, p.DiscountPercent).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Slug, err)
		}
		for _, size := range p.Sizes {
			for _, color := range p.Colors {
				_, err := conn.Exec(ctx, `
					INSERT INTO product_variants (product_id, size, color, stock)
					VALUES ($1, $2, $3, 25)
					ON CONFLICT (product_id, size, color) DO NOTHING`,
					id, size, color)
				if err != nil {
					log.Fatalf("Failed to seed variant %s %s/%s: %v", p.Slug, size, color, err)
				}
			}
		}
	}
}

func seedCoupons(ctx context.Context, conn *pgx.Conn) {
	log.Println("Seeding coupons...")

	now := time.Now()
	coupons := []struct {
		Code           string
		Kind           string
		Value          int64
		MinOrderAmount int64
		MaxDiscount    *int64
		StartAt        time.Time
		EndAt          time.Time
		UsageLimit     *int32
	}{
		{"WELCOME10", "percent", 10, 0, ptr64(100_000), now.AddDate(0, -1, 0), now.AddDate(0, 2, 0), nil},
		{"HEMAT50K", "fixed", 50_000, 500_000, nil, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0), ptr32(500)},
		{"FLASH25", "percent", 25, 1_000_000, ptr64(300_000), now, now.AddDate(0, 0, 7), ptr32(100)},
	}
	for _, c := range coupons {
		_, err := conn.Exec(ctx, `
			INSERT INTO coupons (code, kind, value, min_order_amount, max_discount,
				start_at, end_at, usage_limit)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (code) DO UPDATE SET
				value = EXCLUDED.value,
				min_order_amount = EXCLUDED.min_order_amount,
				max_discount = EXCLUDED.max_discount,
				start_at = EXCLUDED.start_at,
				end_at = EXCLUDED.end_at,
				usage_limit = EXCLUDED.usage_limit`,
			c.Code, c.Kind, c.Value, c.MinOrderAmount, c.MaxDiscount,
			c.StartAt, c.EndAt, c.UsageLimit)
		if err != nil {
			log.Fatalf("Failed to seed coupon %s: %v", c.Code, err)
		}
	}
}

func ptr64(v int64) *int64 { return &v }
func ptr32(v int32) *int32 { return &v }
