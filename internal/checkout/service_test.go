package checkout_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aperture-prints/backend-prints/internal/checkout"
	"github.com/aperture-prints/backend-prints/internal/payment"
	"github.com/aperture-prints/backend-prints/internal/pricing"
)

type stubCatalog struct {
	products map[uuid.UUID]pricing.Product
	options  map[uuid.UUID]pricing.PrintOption
}

func (s *stubCatalog) ProductsByID(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]pricing.Product, error) {
	result := make(map[uuid.UUID]pricing.Product)
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *stubCatalog) PrintOptionsByID(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]pricing.PrintOption, error) {
	result := make(map[uuid.UUID]pricing.PrintOption)
	for _, id := range ids {
		if o, ok := s.options[id]; ok {
			result[id] = o
		}
	}
	return result, nil
}

type stubGateway struct {
	calls    int
	lastReq  payment.AuthorizationRequest
	err      error
	response payment.Authorization
}

func (g *stubGateway) CreateAuthorization(_ context.Context, req payment.AuthorizationRequest) (payment.Authorization, error) {
	g.calls++
	g.lastReq = req
	if g.err != nil {
		return payment.Authorization{}, g.err
	}
	return g.response, nil
}

func (g *stubGateway) VerifyEvent(*http.Request, []byte) (payment.Event, error) {
	return payment.Event{}, errors.New("not implemented")
}

func newService(t *testing.T) (*checkout.Service, *stubGateway, uuid.UUID) {
	t.Helper()
	productID := uuid.New()
	cat := &stubCatalog{
		products: map[uuid.UUID]pricing.Product{
			productID: {ID: productID, Title: "Salt Flats at Dusk", BasePrice: 4500, Active: true},
		},
	}
	gateway := &stubGateway{response: payment.Authorization{
		ID:           "pi_1",
		ClientSecret: "pi_1_secret",
		Status:       payment.StatusRequiresConfirmation,
	}}
	svc := &checkout.Service{
		Engine:   &pricing.Engine{Catalog: cat, Rates: pricing.DefaultRates()},
		Gateway:  gateway,
		Currency: "usd",
		Validate: validator.New(),
		Logger:   zerolog.Nop(),
	}
	return svc, gateway, productID
}

func TestCheckoutSubmitsServerComputedAmount(t *testing.T) {
	svc, gateway, productID := newService(t)

	out, err := svc.Checkout(context.Background(), checkout.Input{
		Items:           []pricing.CartLine{{ProductID: productID.String(), Quantity: 2}},
		Email:           "buyer@example.com",
		ShippingAddress: &pricing.Address{State: "CA", Country: "US"},
	})
	require.NoError(t, err)

	require.Equal(t, 1, gateway.calls)
	require.Equal(t, int64(10552), gateway.lastReq.AmountMinorUnits)
	require.Equal(t, "usd", gateway.lastReq.Currency)
	require.Equal(t, "pi_1_secret", out.ClientSecret)
	require.Equal(t, pricing.Money(10552), out.Breakdown.Total)

	// The order payload rides along in metadata and must round-trip.
	payload, err := payment.DecodeOrderPayload(gateway.lastReq.Metadata)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(10552), payload.Total)
	require.Equal(t, "buyer@example.com", payload.Email)
}

func TestCheckoutInvalidCartNeverReachesGateway(t *testing.T) {
	svc, gateway, _ := newService(t)

	_, err := svc.Checkout(context.Background(), checkout.Input{
		Items: []pricing.CartLine{{ProductID: uuid.NewString(), Quantity: 1}},
		Email: "buyer@example.com",
	})

	var invalid *pricing.InvalidCartError
	require.ErrorAs(t, err, &invalid)
	require.Zero(t, gateway.calls)
}

func TestCheckoutValidatesInput(t *testing.T) {
	svc, gateway, productID := newService(t)

	_, err := svc.Checkout(context.Background(), checkout.Input{
		Items: []pricing.CartLine{{ProductID: productID.String(), Quantity: 1}},
		Email: "not-an-email",
	})
	require.Error(t, err)
	require.Zero(t, gateway.calls)

	_, err = svc.Checkout(context.Background(), checkout.Input{Email: "buyer@example.com"})
	require.Error(t, err)
	require.Zero(t, gateway.calls)
}

func TestCheckoutRejectsUnchargeableTotalBeforeGateway(t *testing.T) {
	svc, gateway, _ := newService(t)

	// A 10 cent product is below the gateway's minimum chargeable amount even
	// after shipping is waived.
	cheapID := uuid.New()
	svc.Engine.Catalog.(*stubCatalog).products[cheapID] = pricing.Product{
		ID: cheapID, Title: "Sticker", BasePrice: 10, Active: true,
	}
	svc.Engine.Rates.FreeShippingThreshold = 0

	_, err := svc.Checkout(context.Background(), checkout.Input{
		Items: []pricing.CartLine{{ProductID: cheapID.String(), Quantity: 1}},
		Email: "buyer@example.com",
	})
	require.ErrorIs(t, err, checkout.ErrUnchargeableTotal)
	require.Zero(t, gateway.calls)
}

func TestCheckoutPropagatesGatewayError(t *testing.T) {
	svc, gateway, productID := newService(t)
	gateway.err = &payment.GatewayError{Op: "create authorization", Status: 503, Detail: "upstream down"}

	_, err := svc.Checkout(context.Background(), checkout.Input{
		Items: []pricing.CartLine{{ProductID: productID.String(), Quantity: 1}},
		Email: "buyer@example.com",
	})

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
}

func TestQuoteHasNoSideEffects(t *testing.T) {
	svc, gateway, productID := newService(t)

	breakdown, err := svc.Quote(context.Background(), []pricing.CartLine{
		{ProductID: productID.String(), Quantity: 1},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(4500+899), breakdown.Total)
	require.Zero(t, gateway.calls)
}
