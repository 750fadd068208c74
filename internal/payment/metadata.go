package payment

import (
	"encoding/json"
	"fmt"

	"github.com/aperture-prints/backend-prints/internal/pricing"
)

// MetadataOrderKey is the metadata field carrying the serialized order
// payload on a payment authorization.
const MetadataOrderKey = "order_payload"

// OrderPayload is the itemized order embedded in authorization metadata at
// checkout time. The reconciler rebuilds the order from it instead of
// re-trusting the client, so it is validated again on the way back in.
type OrderPayload struct {
	Items    []pricing.PricedLine `json:"items"`
	Address  *pricing.Address     `json:"address,omitempty"`
	Email    string               `json:"email"`
	Name     string               `json:"name,omitempty"`
	Subtotal pricing.Money        `json:"subtotal"`
	Shipping pricing.Money        `json:"shipping"`
	Tax      pricing.Money        `json:"tax"`
	Total    pricing.Money        `json:"total"`
}

// EncodeOrderPayload serializes the payload into authorization metadata.
func EncodeOrderPayload(p OrderPayload) (map[string]string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("payment: encode order payload: %w", err)
	}
	return map[string]string{MetadataOrderKey: string(data)}, nil
}

// DecodeOrderPayload parses and validates the payload from authorization
// metadata. Embedded data is treated as untrusted input.
func DecodeOrderPayload(metadata map[string]string) (OrderPayload, error) {
	raw, ok := metadata[MetadataOrderKey]
	if !ok || raw == "" {
		return OrderPayload{}, fmt.Errorf("payment: authorization metadata missing %s", MetadataOrderKey)
	}
	var payload OrderPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return OrderPayload{}, fmt.Errorf("payment: decode order payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return OrderPayload{}, err
	}
	return payload, nil
}

// Validate applies the same structural checks a fresh cart would get:
// quantity bounds, non-negative amounts, and internally consistent totals.
func (p OrderPayload) Validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("payment: order payload has no items")
	}
	var subtotal pricing.Money
	for i, item := range p.Items {
		if item.Quantity < pricing.MinQuantity || item.Quantity > pricing.MaxQuantity {
			return fmt.Errorf("payment: order payload item %d has quantity %d out of bounds", i, item.Quantity)
		}
		if item.UnitPrice < 0 || item.LineTotal < 0 {
			return fmt.Errorf("payment: order payload item %d has negative amount", i)
		}
		if item.LineTotal != item.UnitPrice*pricing.Money(item.Quantity) {
			return fmt.Errorf("payment: order payload item %d line total does not match unit price", i)
		}
		subtotal += item.LineTotal
	}
	if p.Subtotal < 0 || p.Shipping < 0 || p.Tax < 0 || p.Total < 0 {
		return fmt.Errorf("payment: order payload has negative totals")
	}
	if subtotal != p.Subtotal {
		return fmt.Errorf("payment: order payload subtotal %s does not match items", p.Subtotal)
	}
	if p.Total != p.Subtotal+p.Shipping+p.Tax {
		return fmt.Errorf("payment: order payload total %s does not match components", p.Total)
	}
	return nil
}
