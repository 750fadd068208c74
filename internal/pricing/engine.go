package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// MinQuantity and MaxQuantity bound a single cart line.
	MinQuantity = 1
	MaxQuantity = 100

	// MinChargeable and MaxChargeable bound the total the gateway will accept.
	MinChargeable Money = 50          // $0.50
	MaxChargeable Money = 999_999_900 // $9,999,999.00
)

// CartLine is a client-supplied product/option/quantity tuple. Nothing in it
// is trusted until priced against the catalog.
type CartLine struct {
	ProductID     string `json:"productId" validate:"required"`
	PrintOptionID string `json:"printOptionId,omitempty"`
	Quantity      int    `json:"quantity" validate:"required,min=1,max=100"`
}

// PricedLine is a cart line resolved against authoritative catalog state.
type PricedLine struct {
	ProductID     uuid.UUID  `json:"productId"`
	PrintOptionID *uuid.UUID `json:"printOptionId,omitempty"`
	Quantity      int        `json:"quantity"`
	UnitPrice     Money      `json:"unitPrice"`
	LineTotal     Money      `json:"lineTotal"`
	ProductTitle  string     `json:"productTitle"`
	PrintDetails  string     `json:"printDetails"`
}

// Breakdown is the authoritative server-computed price for a cart. It is the
// sole source of truth for amounts charged.
type Breakdown struct {
	Subtotal Money        `json:"subtotal"`
	Shipping Money        `json:"shipping"`
	Tax      Money        `json:"tax"`
	Total    Money        `json:"total"`
	Items    []PricedLine `json:"items"`
}

// AmountMinorUnits returns the total in cents, the exact figure submitted to
// the payment gateway.
func (b Breakdown) AmountMinorUnits() int64 {
	return int64(b.Total)
}

// CheckChargeable verifies the total is inside the gateway's processable
// bounds. Callers reject before spending a call on the gateway.
func (b Breakdown) CheckChargeable() error {
	if b.Total < MinChargeable {
		return fmt.Errorf("pricing: total %s below minimum chargeable amount", b.Total)
	}
	if b.Total > MaxChargeable {
		return fmt.Errorf("pricing: total %s above maximum chargeable amount", b.Total)
	}
	return nil
}

// Address is the shipping destination used for shipping and tax resolution.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Product is the authoritative product state the engine prices against.
type Product struct {
	ID        uuid.UUID
	Title     string
	BasePrice Money
	Active    bool
}

// PrintOption is a purchasable variant of a product. PriceModifier is added
// to the product base price.
type PrintOption struct {
	ID            uuid.UUID
	ProductID     uuid.UUID
	Size          string
	Medium        string
	PriceModifier Money
	TrackStock    bool
	Stock         int32
}

// Details renders the human readable option description frozen onto order
// items, e.g. "16x20 - Metal".
func (o PrintOption) Details() string {
	if o.Size == "" && o.Medium == "" {
		return "Standard Print"
	}
	if o.Medium == "" {
		return o.Size
	}
	if o.Size == "" {
		return o.Medium
	}
	return o.Size + " - " + o.Medium
}

// Catalog provides the authoritative product and option records the engine
// prices against.
type Catalog interface {
	ProductsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error)
	PrintOptionsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]PrintOption, error)
}

// Rates holds the flat-rate and tax configuration applied on top of catalog
// prices. All amounts in cents.
type Rates struct {
	FreeShippingThreshold Money
	DomesticShipping      Money
	InternationalShipping Money
	HomeCountry           string
	StateTaxBps           map[string]int
}

// DefaultRates mirrors the storefront's production configuration.
func DefaultRates() Rates {
	return Rates{
		FreeShippingThreshold: 10000, // $100.00
		DomesticShipping:      899,   // $8.99
		InternationalShipping: 2499,  // $24.99
		HomeCountry:           "US",
		StateTaxBps:           usStateTaxBps,
	}
}

// Engine computes tamper-resistant price breakdowns. It has no side effects;
// it is a pure function over the catalog state it fetches.
type Engine struct {
	Catalog Catalog
	Rates   Rates
}

// Compute prices the cart against the catalog and resolves shipping and tax
// for the optional destination address. Client-supplied prices and titles are
// never consulted.
func (e *Engine) Compute(ctx context.Context, lines []CartLine, addr *Address) (Breakdown, error) {
	if e == nil || e.Catalog == nil {
		return Breakdown{}, fmt.Errorf("pricing: engine not configured")
	}
	invalid := &InvalidCartError{}
	if len(lines) == 0 {
		invalid.add(0, "items", "cart is empty")
		return Breakdown{}, invalid
	}

	parsed := make([]parsedLine, len(lines))
	for i, line := range lines {
		if line.Quantity < MinQuantity || line.Quantity > MaxQuantity {
			invalid.add(i, "quantity", fmt.Sprintf("quantity must be between %d and %d", MinQuantity, MaxQuantity))
		}
		pid, err := uuid.Parse(strings.TrimSpace(line.ProductID))
		if err != nil {
			invalid.add(i, "productId", "invalid product id")
		}
		parsed[i] = parsedLine{productID: pid, quantity: line.Quantity}
		if trimmed := strings.TrimSpace(line.PrintOptionID); trimmed != "" {
			oid, err := uuid.Parse(trimmed)
			if err != nil {
				invalid.add(i, "printOptionId", "invalid print option id")
				continue
			}
			parsed[i].optionID = &oid
		}
	}
	if err := invalid.orNil(); err != nil {
		return Breakdown{}, err
	}

	products, err := e.Catalog.ProductsByID(ctx, dedupeProductIDs(parsed))
	if err != nil {
		return Breakdown{}, err
	}
	options, err := e.Catalog.PrintOptionsByID(ctx, dedupeOptionIDs(parsed))
	if err != nil {
		return Breakdown{}, err
	}

	items := make([]PricedLine, 0, len(parsed))
	var subtotal Money
	for i, line := range parsed {
		product, ok := products[line.productID]
		if !ok || !product.Active {
			invalid.add(i, "productId", "product not found or inactive")
			continue
		}
		unit := product.BasePrice
		details := "Standard Print"
		if line.optionID != nil {
			option, ok := options[*line.optionID]
			if !ok {
				invalid.add(i, "printOptionId", "print option not found")
				continue
			}
			if option.ProductID != product.ID {
				invalid.add(i, "printOptionId", "print option does not belong to product")
				continue
			}
			if option.TrackStock && int(option.Stock) < line.quantity {
				invalid.add(i, "quantity", fmt.Sprintf("only %d left in stock", option.Stock))
				continue
			}
			unit += option.PriceModifier
			details = option.Details()
		}
		lineTotal := unit * Money(line.quantity)
		items = append(items, PricedLine{
			ProductID:     product.ID,
			PrintOptionID: line.optionID,
			Quantity:      line.quantity,
			UnitPrice:     unit,
			LineTotal:     lineTotal,
			ProductTitle:  product.Title,
			PrintDetails:  details,
		})
		subtotal += lineTotal
	}
	if err := invalid.orNil(); err != nil {
		return Breakdown{}, err
	}

	shipping := e.shippingFor(subtotal, addr)
	tax := e.taxFor(subtotal, addr)
	return Breakdown{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal + shipping + tax,
		Items:    items,
	}, nil
}

// shippingFor applies the flat-rate schedule. An absent address is assumed
// domestic.
func (e *Engine) shippingFor(subtotal Money, addr *Address) Money {
	if subtotal >= e.Rates.FreeShippingThreshold {
		return 0
	}
	if addr == nil || strings.EqualFold(strings.TrimSpace(addr.Country), e.Rates.HomeCountry) {
		return e.Rates.DomesticShipping
	}
	return e.Rates.InternationalShipping
}

// taxFor applies the home-market state tax table. States missing from the
// table are taxed at 0, which is intentional policy.
func (e *Engine) taxFor(subtotal Money, addr *Address) Money {
	if addr == nil || !strings.EqualFold(strings.TrimSpace(addr.Country), e.Rates.HomeCountry) {
		return 0
	}
	bps := e.Rates.StateTaxBps[strings.ToUpper(strings.TrimSpace(addr.State))]
	if bps <= 0 {
		return 0
	}
	return mulBps(subtotal, bps)
}

type parsedLine struct {
	productID uuid.UUID
	optionID  *uuid.UUID
	quantity  int
}

func dedupeProductIDs(lines []parsedLine) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.productID]; ok {
			continue
		}
		seen[line.productID] = struct{}{}
		ids = append(ids, line.productID)
	}
	return ids
}

func dedupeOptionIDs(lines []parsedLine) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if line.optionID == nil {
			continue
		}
		if _, ok := seen[*line.optionID]; ok {
			continue
		}
		seen[*line.optionID] = struct{}{}
		ids = append(ids, *line.optionID)
	}
	return ids
}
