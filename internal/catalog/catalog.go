package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/aperture-prints/backend-prints/internal/pricing"
)

// Product is a photographic print listing. BasePrice is stored in cents.
type Product struct {
	ID        uuid.UUID
	Title     string
	Slug      string
	BasePrice int64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PrintOption is a purchasable variant of a product (size and medium).
// PriceModifier is added to the product base price, in cents.
type PrintOption struct {
	ID            uuid.UUID
	ProductID     uuid.UUID
	Size          string
	Medium        string
	PriceModifier int64
	TrackStock    bool
	Stock         int32
}

// ForPricing converts the row to the pricing engine's view of the product.
func (p Product) ForPricing() pricing.Product {
	return pricing.Product{
		ID:        p.ID,
		Title:     p.Title,
		BasePrice: pricing.Money(p.BasePrice),
		Active:    p.Active,
	}
}

// ForPricing converts the row to the pricing engine's view of the option.
func (o PrintOption) ForPricing() pricing.PrintOption {
	return pricing.PrintOption{
		ID:            o.ID,
		ProductID:     o.ProductID,
		Size:          o.Size,
		Medium:        o.Medium,
		PriceModifier: pricing.Money(o.PriceModifier),
		TrackStock:    o.TrackStock,
		Stock:         o.Stock,
	}
}
