package order

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aperture-prints/backend-prints/internal/common"
)

// Ledger is the subset of the store the handlers need.
type Ledger interface {
	GetByID(ctx context.Context, id string) (Order, error)
	GetByNumber(ctx context.Context, number string) (Order, error)
	GetByPaymentAuthorization(ctx context.Context, authorizationID string) (Order, error)
	Items(ctx context.Context, orderID string) ([]Item, error)
	UpdateStatus(ctx context.Context, id string, status Status, note string) (Order, error)
	AddTracking(ctx context.Context, id, tracking string) (Order, error)
	SetNotes(ctx context.Context, id, notes string) (Order, error)
}

// Handler serves customer-facing order lookups.
type Handler struct {
	Ledger Ledger
}

// Lookup resolves an order by exactly one of order_number, order_id or
// payment_authorization_id and returns a sanitized view.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order ledger not configured", nil)
		return
	}
	query := r.URL.Query()
	number := strings.TrimSpace(query.Get("order_number"))
	id := strings.TrimSpace(query.Get("order_id"))
	authID := strings.TrimSpace(query.Get("payment_authorization_id"))

	var (
		ord Order
		err error
	)
	switch {
	case number != "":
		ord, err = h.Ledger.GetByNumber(r.Context(), number)
	case id != "":
		ord, err = h.Ledger.GetByID(r.Context(), id)
	case authID != "":
		ord, err = h.Ledger.GetByPaymentAuthorization(r.Context(), authID)
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST",
			"one of order_number, order_id or payment_authorization_id is required", nil)
		return
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order lookup failed", nil)
		return
	}
	items, err := h.Ledger.Items(r.Context(), ord.ID.String())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order items", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sanitizedView(ord, items)})
}

// sanitizedView strips internal payment-provider identifiers from the order.
func sanitizedView(ord Order, items []Item) map[string]any {
	responseItems := make([]map[string]any, 0, len(items))
	for _, it := range items {
		responseItems = append(responseItems, map[string]any{
			"productId":    it.ProductID.String(),
			"quantity":     it.Quantity,
			"unitPrice":    it.UnitPrice,
			"totalPrice":   it.TotalPrice,
			"title":        it.Snapshot.Title,
			"printDetails": it.Snapshot.PrintDetails,
		})
	}
	view := map[string]any{
		"id":          ord.ID.String(),
		"orderNumber": ord.Number,
		"status":      ord.Status,
		"subtotal":    ord.Subtotal,
		"tax":         ord.Tax,
		"shipping":    ord.Shipping,
		"total":       ord.Total,
		"createdAt":   ord.CreatedAt,
		"updatedAt":   ord.UpdatedAt,
		"items":       responseItems,
	}
	if ord.ShippingAddress != nil {
		view["shippingAddress"] = ord.ShippingAddress
	}
	if ord.TrackingNumber != nil && *ord.TrackingNumber != "" {
		view["trackingNumber"] = *ord.TrackingNumber
	}
	return view
}
