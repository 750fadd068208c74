package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

type option struct {
	size       string
	medium     string
	modifier   int64
	trackStock bool
	stock      int32
}

type product struct {
	title     string
	slug      string
	basePrice int64
	options   []option
}

var seedProducts = []product{
	{
		title:     "Dawn over the Cascades",
		slug:      "dawn-over-the-cascades",
		basePrice: 4500,
		options: []option{
			{size: "8x10", medium: "Lustre Paper", modifier: 0},
			{size: "16x20", medium: "Lustre Paper", modifier: 3000},
			{size: "16x20", medium: "Metal", modifier: 7500, trackStock: true, stock: 12},
			{size: "24x36", medium: "Canvas", modifier: 11000, trackStock: true, stock: 5},
		},
	},
	{
		title:     "Salt Flats at Dusk",
		slug:      "salt-flats-at-dusk",
		basePrice: 5500,
		options: []option{
			{size: "8x10", medium: "Lustre Paper", modifier: 0},
			{size: "16x20", medium: "Metal", modifier: 6500, trackStock: true, stock: 8},
		},
	},
	{
		title:     "Harbor Fog, Morning",
		slug:      "harbor-fog-morning",
		basePrice: 3900,
		options: []option{
			{size: "8x10", medium: "Lustre Paper", modifier: 0},
			{size: "16x20", medium: "Lustre Paper", modifier: 2800},
			{size: "24x36", medium: "Metal", modifier: 12500, trackStock: true, stock: 3},
		},
	},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	for _, p := range seedProducts {
		if err := seedProduct(ctx, pool, p); err != nil {
			log.Fatalf("seed %s: %v", p.slug, err)
		}
	}
	log.Println("seeding completed successfully")
}

func seedProduct(ctx context.Context, pool *pgxpool.Pool, p product) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var productID string
	err = tx.QueryRow(ctx, `
		INSERT INTO products (title, slug, base_price, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (slug) DO UPDATE
		SET title = EXCLUDED.title, base_price = EXCLUDED.base_price, updated_at = now()
		RETURNING id`, p.title, p.slug, p.basePrice).Scan(&productID)
	if err != nil {
		return err
	}

	// Replace options wholesale so reseeding is deterministic.
	if _, err := tx.Exec(ctx, `DELETE FROM print_options WHERE product_id = $1`, productID); err != nil {
		return err
	}
	for _, o := range p.options {
		if _, err := tx.Exec(ctx, `
			INSERT INTO print_options (product_id, size, medium, price_modifier, track_stock, stock)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			productID, o.size, o.medium, o.modifier, o.trackStock, o.stock); err != nil {
			return err
		}
	}
	log.Printf("seeded %s (%d options)", p.slug, len(p.options))
	return tx.Commit(ctx)
}
