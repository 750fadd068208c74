package settlement

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aperture-prints/backend-prints/internal/events"
	"github.com/aperture-prints/backend-prints/internal/obs"
	"github.com/aperture-prints/backend-prints/internal/order"
	"github.com/aperture-prints/backend-prints/internal/payment"
)

// Ledger is the subset of the order store the reconciler drives. Create has
// conflict-is-success semantics: created=false means an order already existed
// for the authorization.
type Ledger interface {
	Create(ctx context.Context, params order.CreateParams) (order.Order, []order.Item, bool, error)
	GetByPaymentAuthorization(ctx context.Context, authorizationID string) (order.Order, error)
	UpdateStatus(ctx context.Context, id string, status order.Status, note string) (order.Order, error)
}

// Reconciler turns verified provider events into durable order state. Every
// transition is idempotent under the provider's at-least-once redelivery; the
// reconciler itself never schedules retries.
type Reconciler struct {
	Ledger Ledger
	Bus    *events.Bus
	Logger zerolog.Logger
}

// Process routes one verified event through the settlement state machine.
// Unrecognized event types are acknowledged and ignored.
func (r *Reconciler) Process(ctx context.Context, ev payment.Event) error {
	if r == nil || r.Ledger == nil {
		return fmt.Errorf("settlement: reconciler not configured")
	}
	result := "ok"
	defer func() {
		if obs.SettlementTotal != nil {
			obs.SettlementTotal.WithLabelValues(eventLabel(ev.Type), result).Inc()
		}
	}()

	var err error
	switch ev.Type {
	case payment.EventSucceeded:
		err = r.settle(ctx, ev)
	case payment.EventPaymentFailed:
		err = r.cancel(ctx, ev.AuthorizationID, events.TopicPaymentFailed, "payment failed")
	case payment.EventCanceled:
		err = r.cancel(ctx, ev.AuthorizationID, events.TopicOrderCancelled, "payment canceled")
	case payment.EventDisputeCreated:
		note := "payment disputed"
		if strings.TrimSpace(ev.DisputeReason) != "" {
			note = "payment disputed: " + ev.DisputeReason
		}
		err = r.cancel(ctx, ev.AuthorizationID, events.TopicPaymentDisputed, note)
	default:
		r.Logger.Debug().Str("event_type", ev.Type).Msg("settlement_event_ignored")
		result = "ignored"
		return nil
	}
	if err != nil {
		result = "error"
	}
	return err
}

// settle creates the order for a succeeded authorization exactly once. The
// order is rebuilt from the authorization's embedded metadata, never from the
// live request.
func (r *Reconciler) settle(ctx context.Context, ev payment.Event) error {
	if strings.TrimSpace(ev.AuthorizationID) == "" {
		return fmt.Errorf("settlement: succeeded event missing authorization id")
	}
	payload, err := payment.DecodeOrderPayload(ev.Metadata)
	if err != nil {
		return err
	}
	if ev.AmountMinorUnits > 0 && ev.AmountMinorUnits != int64(payload.Total) {
		return fmt.Errorf("settlement: event amount %d does not match payload total %d",
			ev.AmountMinorUnits, int64(payload.Total))
	}

	items := make([]order.ItemParams, 0, len(payload.Items))
	for _, line := range payload.Items {
		items = append(items, order.ItemParams{
			ProductID:     line.ProductID,
			PrintOptionID: line.PrintOptionID,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			TotalPrice:    line.LineTotal,
			Snapshot: order.Snapshot{
				Title:        line.ProductTitle,
				PrintDetails: line.PrintDetails,
				UnitPrice:    line.UnitPrice,
			},
		})
	}

	ord, _, created, err := r.Ledger.Create(ctx, order.CreateParams{
		PaymentAuthorizationID: ev.AuthorizationID,
		Status:                 order.StatusConfirmed,
		Subtotal:               payload.Subtotal,
		Tax:                    payload.Tax,
		Shipping:               payload.Shipping,
		Total:                  payload.Total,
		Email:                  payload.Email,
		CustomerName:           payload.Name,
		ShippingAddress:        payload.Address,
		Items:                  items,
	})
	if err != nil {
		return err
	}
	if !created {
		// Duplicate delivery. Confirm a still-pending order, otherwise nothing
		// changes at all.
		if ord.Status == order.StatusPending {
			if _, err := r.Ledger.UpdateStatus(ctx, ord.ID.String(), order.StatusConfirmed, ""); err != nil {
				return err
			}
			r.notify(ctx, events.TopicOrderConfirmed, ev.AuthorizationID, ord, payload.Email)
			return nil
		}
		r.Logger.Info().
			Str("authorization_id", ev.AuthorizationID).
			Str("order_number", ord.Number).
			Msg("settlement_duplicate_event")
		return nil
	}

	r.Logger.Info().
		Str("authorization_id", ev.AuthorizationID).
		Str("order_number", ord.Number).
		Str("total", ord.Total.String()).
		Msg("order_settled")
	r.notify(ctx, events.TopicOrderConfirmed, ev.AuthorizationID, ord, payload.Email)
	return nil
}

// cancel marks the order for the authorization cancelled, recording why, and
// emits the outcome under the given topic. A missing order is a no-op: there
// is nothing to cancel.
func (r *Reconciler) cancel(ctx context.Context, authorizationID, topic, note string) error {
	if strings.TrimSpace(authorizationID) == "" {
		return nil
	}
	ord, err := r.Ledger.GetByPaymentAuthorization(ctx, authorizationID)
	if err != nil {
		if err == order.ErrNotFound {
			r.Logger.Debug().Str("authorization_id", authorizationID).Msg("settlement_cancel_noop")
			return nil
		}
		return err
	}
	if ord.Status == order.StatusCancelled {
		return nil
	}
	updated, err := r.Ledger.UpdateStatus(ctx, ord.ID.String(), order.StatusCancelled, note)
	if err != nil {
		return err
	}
	r.notify(ctx, topic, authorizationID, updated, updated.Email)
	return nil
}

// notify emits the domain event and fans out notification as a best-effort
// side effect. A notification failure is logged and swallowed; it must never
// roll back or fail the reconciliation.
func (r *Reconciler) notify(ctx context.Context, topic, authorizationID string, ord order.Order, email string) {
	if r.Bus == nil {
		return
	}
	payload := map[string]any{
		"orderId":     ord.ID.String(),
		"orderNumber": ord.Number,
		"status":      string(ord.Status),
		"total":       ord.Total,
	}
	if strings.TrimSpace(email) != "" {
		payload["email"] = email
	}
	if _, err := r.Bus.Emit(ctx, topic, authorizationID, payload); err != nil {
		r.Logger.Error().Err(err).
			Str("topic", topic).
			Str("order_number", ord.Number).
			Msg("settlement_notify_failed")
	}
}

func eventLabel(eventType string) string {
	trimmed := strings.TrimSpace(strings.ToLower(eventType))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
