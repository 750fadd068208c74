package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Authorization statuses reported by the gateway.
const (
	StatusRequiresConfirmation = "requires_confirmation"
	StatusSucceeded            = "succeeded"
	StatusFailed               = "failed"
	StatusCanceled             = "canceled"
)

// Event types the settlement pipeline understands. Anything else is
// acknowledged and ignored.
const (
	EventSucceeded      = "payment_intent.succeeded"
	EventPaymentFailed  = "payment_intent.payment_failed"
	EventCanceled       = "payment_intent.canceled"
	EventDisputeCreated = "charge.dispute.created"
)

// ErrInvalidSignature marks a webhook whose signature could not be verified.
// The event must not be processed and the transport must reject it so the
// provider retries.
var ErrInvalidSignature = errors.New("payment: invalid webhook signature")

// GatewayError wraps a remote authorization failure. Internal detail is
// logged only; users see a generic retry message.
type GatewayError struct {
	Op     string
	Status int
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("payment: %s: status %d: %s", e.Op, e.Status, e.Detail)
}

// Unwrap exposes the underlying error to errors.Is/As.
func (e *GatewayError) Unwrap() error { return e.Err }

// AuthorizationRequest carries the server-computed amount and the serialized
// order payload the reconciler later reads back.
type AuthorizationRequest struct {
	AmountMinorUnits int64
	Currency         string
	Metadata         map[string]string
}

// Authorization is the provider-side hold on a specific amount.
type Authorization struct {
	ID               string
	ClientSecret     string
	Status           string
	AmountMinorUnits int64
	Currency         string
	Metadata         map[string]string
}

// Event is a verified, normalised provider callback.
type Event struct {
	ID               string
	Type             string
	AuthorizationID  string
	AmountMinorUnits int64
	Metadata         map[string]string
	DisputeReason    string
	Raw              []byte
}

// Gateway abstracts the upstream payment provider.
type Gateway interface {
	CreateAuthorization(ctx context.Context, req AuthorizationRequest) (Authorization, error)
	VerifyEvent(r *http.Request, body []byte) (Event, error)
}
