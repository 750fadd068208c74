package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aperture-prints/backend-prints/internal/resilience"
)

const signatureTolerance = 5 * time.Minute

// Stripe implements the Gateway interface against the Stripe HTTP API.
// Outbound calls go through the resilience wrapper so transient provider
// hiccups retry behind the circuit breaker.
type Stripe struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	HTTP          *resilience.HTTPClient
	Now           func() time.Time
}

func (s Stripe) apiHost() string {
	host := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if host == "" {
		return "https://api.stripe.com"
	}
	return host
}

func (s Stripe) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateAuthorization opens a payment intent for the exact server-computed
// amount. The metadata travels with the intent so settlement can rebuild the
// order without any extra lookup table.
func (s Stripe) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (Authorization, error) {
	if s.HTTP == nil {
		return Authorization{}, &GatewayError{Op: "create authorization", Err: fmt.Errorf("http client not configured")}
	}
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountMinorUnits, 10))
	form.Set("currency", strings.ToLower(strings.TrimSpace(req.Currency)))
	form.Set("automatic_payment_methods[enabled]", "true")
	keys := make([]string, 0, len(req.Metadata))
	for key := range req.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		form.Set(fmt.Sprintf("metadata[%s]", key), req.Metadata[key])
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiHost()+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return Authorization{}, &GatewayError{Op: "create authorization", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+s.SecretKey)

	resp, err := s.HTTP.Do(ctx, httpReq)
	if err != nil {
		return Authorization{}, &GatewayError{Op: "create authorization", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Authorization{}, &GatewayError{Op: "create authorization", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Authorization{}, &GatewayError{Op: "create authorization", Status: resp.StatusCode, Detail: errorDetail(body)}
	}

	var intent struct {
		ID           string            `json:"id"`
		ClientSecret string            `json:"client_secret"`
		Status       string            `json:"status"`
		Amount       int64             `json:"amount"`
		Currency     string            `json:"currency"`
		Metadata     map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(body, &intent); err != nil {
		return Authorization{}, &GatewayError{Op: "create authorization", Err: err}
	}
	if intent.ID == "" {
		return Authorization{}, &GatewayError{Op: "create authorization", Status: resp.StatusCode, Detail: "response missing intent id"}
	}
	return Authorization{
		ID:               intent.ID,
		ClientSecret:     intent.ClientSecret,
		Status:           intent.Status,
		AmountMinorUnits: intent.Amount,
		Currency:         intent.Currency,
		Metadata:         intent.Metadata,
	}, nil
}

// VerifyEvent checks the Stripe-Signature header against the shared webhook
// secret and normalises the payload. A failed check is terminal; no state may
// change for the event.
func (s Stripe) VerifyEvent(r *http.Request, body []byte) (Event, error) {
	header := ""
	if r != nil {
		header = r.Header.Get("Stripe-Signature")
	}
	if err := s.checkSignature(header, body); err != nil {
		return Event{}, err
	}

	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Event{}, fmt.Errorf("payment: decode event: %w", err)
	}

	event := Event{ID: envelope.ID, Type: envelope.Type, Raw: body}
	switch envelope.Type {
	case EventDisputeCreated:
		var dispute struct {
			PaymentIntent string `json:"payment_intent"`
			Reason        string `json:"reason"`
		}
		if err := json.Unmarshal(envelope.Data.Object, &dispute); err != nil {
			return Event{}, fmt.Errorf("payment: decode dispute: %w", err)
		}
		event.AuthorizationID = dispute.PaymentIntent
		event.DisputeReason = dispute.Reason
	default:
		var intent struct {
			ID       string            `json:"id"`
			Amount   int64             `json:"amount"`
			Metadata map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(envelope.Data.Object, &intent); err != nil {
			return Event{}, fmt.Errorf("payment: decode intent: %w", err)
		}
		event.AuthorizationID = intent.ID
		event.AmountMinorUnits = intent.Amount
		event.Metadata = intent.Metadata
	}
	return event, nil
}

func (s Stripe) checkSignature(header string, body []byte) error {
	secret := strings.TrimSpace(s.WebhookSecret)
	if secret == "" || strings.TrimSpace(header) == "" {
		return ErrInvalidSignature
	}
	var timestamp int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = parsed
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return ErrInvalidSignature
	}
	age := s.now().Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(strings.TrimSpace(candidate))) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignPayload produces a Stripe-Signature header value for the given body.
// Exported for webhook tests and local tooling.
func SignPayload(secret string, at time.Time, body []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func errorDetail(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	return trimmed
}
