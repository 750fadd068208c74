package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aperture-prints/backend-prints/internal/pricing"
)

// ProductView is the public product shape. Prices render as dollars.
type ProductView struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Slug      string        `json:"slug"`
	BasePrice pricing.Money `json:"basePrice"`
}

// OptionView is the public print option shape.
type OptionView struct {
	ID      string        `json:"id"`
	Size    string        `json:"size,omitempty"`
	Medium  string        `json:"medium,omitempty"`
	Details string        `json:"details"`
	Price   pricing.Money `json:"price"`
	InStock bool          `json:"inStock"`
}

// ProductDetail is a product with its purchasable options.
type ProductDetail struct {
	ProductView
	Options []OptionView `json:"options"`
}

// ListResult is a page of products plus the total count.
type ListResult struct {
	Products []ProductView `json:"products"`
	Total    int           `json:"total"`
}

// Service serves read-only catalog views with a Redis cache in front of
// Postgres. Cache failures degrade to direct reads.
type Service struct {
	Store  *Store
	Cache  *Cache
	Logger zerolog.Logger
}

// List returns a page of active products.
func (s *Service) List(ctx context.Context, limit, offset int) (ListResult, error) {
	cacheKey := fmt.Sprintf("catalog:list:%d:%d", limit, offset)
	var cached ListResult
	if hit, err := s.Cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		s.Logger.Warn().Err(err).Str("key", cacheKey).Msg("catalog_cache_read_failed")
	} else if hit {
		return cached, nil
	}

	products, total, err := s.Store.ListActive(ctx, limit, offset)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Products: make([]ProductView, 0, len(products)), Total: total}
	for _, p := range products {
		result.Products = append(result.Products, productView(p))
	}
	if err := s.Cache.SetJSON(ctx, cacheKey, result); err != nil {
		s.Logger.Warn().Err(err).Str("key", cacheKey).Msg("catalog_cache_write_failed")
	}
	return result, nil
}

// BySlug returns one product and its options. Returns ErrNotFound for
// unknown or inactive slugs.
func (s *Service) BySlug(ctx context.Context, slug string) (ProductDetail, error) {
	cacheKey := "catalog:product:" + slug
	var cached ProductDetail
	if hit, err := s.Cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		s.Logger.Warn().Err(err).Str("key", cacheKey).Msg("catalog_cache_read_failed")
	} else if hit {
		return cached, nil
	}

	product, options, err := s.Store.BySlug(ctx, slug)
	if err != nil {
		return ProductDetail{}, err
	}
	detail := ProductDetail{ProductView: productView(product)}
	for _, o := range options {
		detail.Options = append(detail.Options, OptionView{
			ID:      o.ID.String(),
			Size:    o.Size,
			Medium:  o.Medium,
			Details: o.ForPricing().Details(),
			Price:   pricing.Money(product.BasePrice + o.PriceModifier),
			InStock: !o.TrackStock || o.Stock > 0,
		})
	}
	if err := s.Cache.SetJSON(ctx, cacheKey, detail); err != nil {
		s.Logger.Warn().Err(err).Str("key", cacheKey).Msg("catalog_cache_write_failed")
	}
	return detail, nil
}

func productView(p Product) ProductView {
	return ProductView{
		ID:        p.ID.String(),
		Title:     p.Title,
		Slug:      p.Slug,
		BasePrice: pricing.Money(p.BasePrice),
	}
}
