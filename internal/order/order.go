package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aperture-prints/backend-prints/internal/pricing"
)

// ErrNotFound is the lookup sentinel; callers branch on it instead of
// inspecting database errors.
var ErrNotFound = errors.New("order: not found")

// Status is the order lifecycle state.
type Status string

// Order lifecycle states. Settlement only ever produces confirmed or
// cancelled; the rest are admin-driven fulfilment states.
const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates a client-supplied status value.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("order: unknown status %q", value)
}

// Order is the durable record of a settled purchase. Number, totals and item
// snapshots never change after creation; only status, tracking, notes and
// updated_at may mutate.
type Order struct {
	ID                     uuid.UUID
	Number                 string
	Status                 Status
	Subtotal               pricing.Money
	Tax                    pricing.Money
	Shipping               pricing.Money
	Total                  pricing.Money
	PaymentAuthorizationID string
	Email                  string
	CustomerName           string
	ShippingAddress        *pricing.Address
	TrackingNumber         *string
	Notes                  *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Snapshot freezes the catalog details an item was sold under, so later
// catalog edits cannot retroactively alter historical orders.
type Snapshot struct {
	Title        string        `json:"title"`
	PrintDetails string        `json:"printDetails"`
	UnitPrice    pricing.Money `json:"unitPrice"`
}

// Item is one line of an order.
type Item struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	ProductID     uuid.UUID
	PrintOptionID *uuid.UUID
	Quantity      int
	UnitPrice     pricing.Money
	TotalPrice    pricing.Money
	Snapshot      Snapshot
}

// ItemParams describes an item for order creation.
type ItemParams struct {
	ProductID     uuid.UUID
	PrintOptionID *uuid.UUID
	Quantity      int
	UnitPrice     pricing.Money
	TotalPrice    pricing.Money
	Snapshot      Snapshot
}

// CreateParams carries everything needed to persist an order atomically.
type CreateParams struct {
	PaymentAuthorizationID string
	Status                 Status
	Subtotal               pricing.Money
	Tax                    pricing.Money
	Shipping               pricing.Money
	Total                  pricing.Money
	Email                  string
	CustomerName           string
	ShippingAddress        *pricing.Address
	Items                  []ItemParams
}
