package payment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aperture-prints/backend-prints/internal/payment"
	"github.com/aperture-prints/backend-prints/internal/pricing"
	"github.com/aperture-prints/backend-prints/internal/resilience"
)

const webhookSecret = "whsec_test"

func newStripe(baseURL string) payment.Stripe {
	return payment.Stripe{
		SecretKey:     "sk_test",
		WebhookSecret: webhookSecret,
		BaseURL:       baseURL,
		HTTP: &resilience.HTTPClient{
			Client:      &http.Client{Timeout: time.Second},
			MaxAttempts: 1,
		},
	}
}

func TestCreateAuthorizationSubmitsExactAmount(t *testing.T) {
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret","status":"requires_confirmation","amount":10552,"currency":"usd","metadata":{"order_payload":"{}"}}`))
	}))
	defer server.Close()

	gw := newStripe(server.URL)
	auth, err := gw.CreateAuthorization(context.Background(), payment.AuthorizationRequest{
		AmountMinorUnits: 10552,
		Currency:         "USD",
		Metadata:         map[string]string{"order_payload": "{}"},
	})
	require.NoError(t, err)
	require.Equal(t, "pi_123", auth.ID)
	require.Equal(t, "pi_123_secret", auth.ClientSecret)
	require.Equal(t, int64(10552), auth.AmountMinorUnits)

	require.Equal(t, []string{"10552"}, gotForm["amount"])
	require.Equal(t, []string{"usd"}, gotForm["currency"])
	require.Equal(t, []string{"{}"}, gotForm["metadata[order_payload]"])
}

func TestCreateAuthorizationSurfacesProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"Your card was declined.","type":"card_error"}}`))
	}))
	defer server.Close()

	gw := newStripe(server.URL)
	_, err := gw.CreateAuthorization(context.Background(), payment.AuthorizationRequest{AmountMinorUnits: 50, Currency: "usd"})
	require.Error(t, err)

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, http.StatusPaymentRequired, gwErr.Status)
	require.Contains(t, gwErr.Detail, "declined")
}

func signedRequest(t *testing.T, body []byte, at time.Time) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil)
	req.Header.Set("Stripe-Signature", payment.SignPayload(webhookSecret, at, body))
	return req
}

func TestVerifyEventAcceptsValidSignature(t *testing.T) {
	gw := newStripe("")
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_9","amount":10552,"metadata":{"order_payload":"{}"}}}}`)

	ev, err := gw.VerifyEvent(signedRequest(t, body, time.Now()), body)
	require.NoError(t, err)
	require.Equal(t, payment.EventSucceeded, ev.Type)
	require.Equal(t, "pi_9", ev.AuthorizationID)
	require.Equal(t, int64(10552), ev.AmountMinorUnits)
	require.Equal(t, "{}", ev.Metadata["order_payload"])
}

func TestVerifyEventRejectsTamperedBody(t *testing.T) {
	gw := newStripe("")
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_9"}}}`)
	req := signedRequest(t, body, time.Now())

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] = 'x'
	_, err := gw.VerifyEvent(req, tampered)
	require.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestVerifyEventRejectsMissingHeader(t *testing.T) {
	gw := newStripe("")
	body := []byte(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil)
	_, err := gw.VerifyEvent(req, body)
	require.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestVerifyEventRejectsStaleTimestamp(t *testing.T) {
	gw := newStripe("")
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_9"}}}`)

	_, err := gw.VerifyEvent(signedRequest(t, body, time.Now().Add(-6*time.Minute)), body)
	require.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestVerifyEventParsesDispute(t *testing.T) {
	gw := newStripe("")
	body := []byte(`{"id":"evt_2","type":"charge.dispute.created","data":{"object":{"payment_intent":"pi_9","reason":"fraudulent"}}}`)

	ev, err := gw.VerifyEvent(signedRequest(t, body, time.Now()), body)
	require.NoError(t, err)
	require.Equal(t, payment.EventDisputeCreated, ev.Type)
	require.Equal(t, "pi_9", ev.AuthorizationID)
	require.Equal(t, "fraudulent", ev.DisputeReason)
}

func TestOrderPayloadRoundTrip(t *testing.T) {
	productID := uuid.New()
	payload := payment.OrderPayload{
		Items: []pricing.PricedLine{{
			ProductID:    productID,
			Quantity:     2,
			UnitPrice:    4500,
			LineTotal:    9000,
			ProductTitle: "Dawn over the Cascades",
			PrintDetails: "16x20 - Metal",
		}},
		Email:    "buyer@example.com",
		Subtotal: 9000,
		Shipping: 899,
		Tax:      653,
		Total:    10552,
	}

	metadata, err := payment.EncodeOrderPayload(payload)
	require.NoError(t, err)

	decoded, err := payment.DecodeOrderPayload(metadata)
	require.NoError(t, err)
	require.Equal(t, payload.Total, decoded.Total)
	require.Equal(t, productID, decoded.Items[0].ProductID)
}

func TestDecodeOrderPayloadRejectsInconsistentTotals(t *testing.T) {
	payload := payment.OrderPayload{
		Items: []pricing.PricedLine{{
			ProductID: uuid.New(),
			Quantity:  1,
			UnitPrice: 4500,
			LineTotal: 4500,
		}},
		Subtotal: 4500,
		Shipping: 899,
		Tax:      0,
		Total:    9999, // does not equal subtotal + shipping + tax
	}
	metadata, err := payment.EncodeOrderPayload(payload)
	require.NoError(t, err)

	_, err = payment.DecodeOrderPayload(metadata)
	require.Error(t, err)
}

func TestDecodeOrderPayloadRejectsTamperedLine(t *testing.T) {
	payload := payment.OrderPayload{
		Items: []pricing.PricedLine{{
			ProductID: uuid.New(),
			Quantity:  3,
			UnitPrice: 4500,
			LineTotal: 4500, // should be 13500
		}},
		Subtotal: 4500,
		Total:    4500,
	}
	metadata, err := payment.EncodeOrderPayload(payload)
	require.NoError(t, err)

	_, err = payment.DecodeOrderPayload(metadata)
	require.Error(t, err)
}

func TestDecodeOrderPayloadRequiresMetadataKey(t *testing.T) {
	_, err := payment.DecodeOrderPayload(map[string]string{})
	require.Error(t, err)
}
