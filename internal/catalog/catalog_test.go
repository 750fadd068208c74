package catalog_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aperture-prints/backend-prints/internal/catalog"
	"github.com/aperture-prints/backend-prints/internal/pricing"
)

func TestProductForPricing(t *testing.T) {
	id := uuid.New()
	row := catalog.Product{ID: id, Title: "Harbor Fog, Morning", Slug: "harbor-fog", BasePrice: 3900, Active: true}

	got := row.ForPricing()
	require.Equal(t, id, got.ID)
	require.Equal(t, "Harbor Fog, Morning", got.Title)
	require.Equal(t, pricing.Money(3900), got.BasePrice)
	require.True(t, got.Active)
}

func TestPrintOptionForPricing(t *testing.T) {
	id, productID := uuid.New(), uuid.New()
	row := catalog.PrintOption{
		ID:            id,
		ProductID:     productID,
		Size:          "16x20",
		Medium:        "Metal",
		PriceModifier: 1500,
		TrackStock:    true,
		Stock:         3,
	}

	got := row.ForPricing()
	require.Equal(t, id, got.ID)
	require.Equal(t, productID, got.ProductID)
	require.Equal(t, pricing.Money(1500), got.PriceModifier)
	require.True(t, got.TrackStock)
	require.Equal(t, int32(3), got.Stock)
	require.Equal(t, "16x20 - Metal", got.Details())
}

func TestPrintOptionDetailsFallbacks(t *testing.T) {
	require.Equal(t, "Standard Print", pricing.PrintOption{}.Details())
	require.Equal(t, "16x20", pricing.PrintOption{Size: "16x20"}.Details())
	require.Equal(t, "Canvas", pricing.PrintOption{Medium: "Canvas"}.Details())
}
