package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aperture-prints/backend-prints/internal/common"
	"github.com/aperture-prints/backend-prints/internal/events"
)

// EmailNotifier sends transactional emails for settlement events. It
// implements events.Notifier so it can hang off the bus directly, and is also
// invoked by the worker when delivery runs asynchronously.
type EmailNotifier struct {
	Mail       common.EmailSender
	Enabled    bool
	AdminEmail string
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(_ context.Context, event events.DomainEvent) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	subject := subjectFor(event.Topic)
	body := bodyFor(event.Topic, payload, event.OccurredAt)

	if to := extractRecipient(payload); to != "" {
		if err := n.Mail.Send(to, subject, body); err != nil {
			return fmt.Errorf("email notify: customer: %w", err)
		}
	}
	if admin := strings.TrimSpace(n.AdminEmail); admin != "" {
		if err := n.Mail.Send(admin, "[admin] "+subject, body); err != nil {
			return fmt.Errorf("email notify: admin: %w", err)
		}
	}
	return nil
}

func extractRecipient(payload map[string]any) string {
	for _, key := range []string{"email", "customerEmail", "recipient"} {
		if s, ok := payload[key].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func subjectFor(topic string) string {
	switch topic {
	case events.TopicOrderConfirmed:
		return "Your print order is confirmed"
	case events.TopicOrderCancelled:
		return "Your print order was cancelled"
	case events.TopicPaymentFailed:
		return "Payment failed"
	case events.TopicPaymentDisputed:
		return "Payment disputed"
	default:
		return fmt.Sprintf("Notification: %s", topic)
	}
}

func bodyFor(topic string, payload map[string]any, occurred time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event %s at %s.", topic, occurred.Format(time.RFC3339))
	if number, ok := payload["orderNumber"].(string); ok && number != "" {
		fmt.Fprintf(&b, "\nOrder: %s", number)
	}
	if total, ok := payload["total"].(float64); ok {
		fmt.Fprintf(&b, "\nTotal: $%.2f", total)
	}
	if status, ok := payload["status"].(string); ok && status != "" {
		fmt.Fprintf(&b, "\nStatus: %s", status)
	}
	return b.String()
}
