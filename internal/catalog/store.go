package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aperture-prints/backend-prints/internal/pricing"
)

// ErrNotFound is returned when a catalog record does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Store reads catalog records from Postgres. The pricing engine only ever
// reads this data; catalog writes happen elsewhere.
type Store struct {
	Pool *pgxpool.Pool
}

// NewStore wraps the connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// ProductsByID bulk-fetches products for the deduplicated id set, in the
// pricing engine's shape. Missing ids are simply absent from the result map.
func (s *Store) ProductsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]pricing.Product, error) {
	result := make(map[uuid.UUID]pricing.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, title, slug, base_price, active, created_at, updated_at
		FROM products
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.BasePrice, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		result[p.ID] = p.ForPricing()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate products: %w", err)
	}
	return result, nil
}

// PrintOptionsByID bulk-fetches print options for the deduplicated id set,
// in the pricing engine's shape.
func (s *Store) PrintOptionsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]pricing.PrintOption, error) {
	result := make(map[uuid.UUID]pricing.PrintOption, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, product_id, size, medium, price_modifier, track_stock, stock
		FROM print_options
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch print options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o PrintOption
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Size, &o.Medium, &o.PriceModifier, &o.TrackStock, &o.Stock); err != nil {
			return nil, fmt.Errorf("catalog: scan print option: %w", err)
		}
		result[o.ID] = o.ForPricing()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate print options: %w", err)
	}
	return result, nil
}

// ListActive returns a page of active products ordered by newest first, plus
// the total count for pagination metadata.
func (s *Store) ListActive(ctx context.Context, limit, offset int) ([]Product, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE active`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count products: %w", err)
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, title, slug, base_price, active, created_at, updated_at
		FROM products
		WHERE active
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()
	products := make([]Product, 0, limit)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.BasePrice, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("catalog: scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("catalog: iterate products: %w", err)
	}
	return products, total, nil
}

// BySlug fetches an active product and its print options by slug.
func (s *Store) BySlug(ctx context.Context, slug string) (Product, []PrintOption, error) {
	var p Product
	err := s.Pool.QueryRow(ctx, `
		SELECT id, title, slug, base_price, active, created_at, updated_at
		FROM products
		WHERE slug = $1 AND active`, slug).
		Scan(&p.ID, &p.Title, &p.Slug, &p.BasePrice, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, nil, ErrNotFound
		}
		return Product{}, nil, fmt.Errorf("catalog: fetch product by slug: %w", err)
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, product_id, size, medium, price_modifier, track_stock, stock
		FROM print_options
		WHERE product_id = $1
		ORDER BY price_modifier, size`, p.ID)
	if err != nil {
		return Product{}, nil, fmt.Errorf("catalog: fetch product options: %w", err)
	}
	defer rows.Close()
	var options []PrintOption
	for rows.Next() {
		var o PrintOption
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Size, &o.Medium, &o.PriceModifier, &o.TrackStock, &o.Stock); err != nil {
			return Product{}, nil, fmt.Errorf("catalog: scan print option: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return Product{}, nil, fmt.Errorf("catalog: iterate print options: %w", err)
	}
	return p, options, nil
}
