package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aperture-prints/backend-prints/internal/obs"
	"github.com/aperture-prints/backend-prints/internal/payment"
	"github.com/aperture-prints/backend-prints/internal/pricing"
)

// ErrUnchargeableTotal marks a cart whose total is outside the gateway's
// processable bounds. Detected before any gateway call is spent.
var ErrUnchargeableTotal = errors.New("checkout: total outside chargeable bounds")

// Input is the client checkout request. The cart is untrusted; only the
// catalog decides prices.
type Input struct {
	Items           []pricing.CartLine `json:"items" validate:"required,min=1,dive"`
	Email           string             `json:"email" validate:"required,email"`
	Name            string             `json:"name,omitempty"`
	ShippingAddress *pricing.Address   `json:"shippingAddress,omitempty"`
}

// Output hands the client the authorization handle and the server-computed
// breakdown so the UI can display amounts without re-deriving them.
type Output struct {
	ClientSecret string            `json:"clientSecret"`
	Breakdown    pricing.Breakdown `json:"breakdown"`
}

// Service prices carts and opens payment authorizations against the computed
// total. Amounts submitted to the gateway always come from the pricing
// engine, never from the client.
type Service struct {
	Engine   *pricing.Engine
	Gateway  payment.Gateway
	Currency string
	Validate *validator.Validate
	Logger   zerolog.Logger
}

// Quote computes a pricing preview without any side effects.
func (s *Service) Quote(ctx context.Context, lines []pricing.CartLine, addr *pricing.Address) (pricing.Breakdown, error) {
	if s == nil || s.Engine == nil {
		return pricing.Breakdown{}, errors.New("checkout: service not configured")
	}
	return s.Engine.Compute(ctx, lines, addr)
}

// Checkout prices the cart, rejects unchargeable totals before spending a
// gateway call, then opens an authorization carrying the full serialized
// breakdown in its metadata.
func (s *Service) Checkout(ctx context.Context, in Input) (Output, error) {
	if s == nil || s.Engine == nil || s.Gateway == nil {
		return Output{}, errors.New("checkout: service not configured")
	}
	result := "error"
	defer func() {
		if obs.CheckoutTotal != nil {
			obs.CheckoutTotal.WithLabelValues(result).Inc()
		}
	}()
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			result = "invalid"
			return Output{}, fmt.Errorf("checkout: invalid request: %w", err)
		}
	}

	breakdown, err := s.Engine.Compute(ctx, in.Items, in.ShippingAddress)
	if err != nil {
		var invalid *pricing.InvalidCartError
		if errors.As(err, &invalid) {
			result = "invalid"
		}
		return Output{}, err
	}
	if err := breakdown.CheckChargeable(); err != nil {
		result = "invalid"
		return Output{}, fmt.Errorf("%w: %v", ErrUnchargeableTotal, err)
	}

	metadata, err := payment.EncodeOrderPayload(payment.OrderPayload{
		Items:    breakdown.Items,
		Address:  in.ShippingAddress,
		Email:    strings.TrimSpace(in.Email),
		Name:     strings.TrimSpace(in.Name),
		Subtotal: breakdown.Subtotal,
		Shipping: breakdown.Shipping,
		Tax:      breakdown.Tax,
		Total:    breakdown.Total,
	})
	if err != nil {
		return Output{}, err
	}

	auth, err := s.Gateway.CreateAuthorization(ctx, payment.AuthorizationRequest{
		AmountMinorUnits: breakdown.AmountMinorUnits(),
		Currency:         s.currency(),
		Metadata:         metadata,
	})
	if err != nil {
		s.Logger.Error().Err(err).Msg("checkout_authorization_failed")
		return Output{}, err
	}
	result = "ok"
	s.Logger.Info().
		Str("authorization_id", auth.ID).
		Str("total", breakdown.Total.String()).
		Msg("checkout_authorized")
	return Output{ClientSecret: auth.ClientSecret, Breakdown: breakdown}, nil
}

func (s *Service) currency() string {
	if trimmed := strings.TrimSpace(s.Currency); trimmed != "" {
		return trimmed
	}
	return "usd"
}
