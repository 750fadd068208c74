package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aperture-prints/backend-prints/internal/order"
)

type stubLedger struct {
	order         order.Order
	items         []order.Item
	err           error
	lastStatus    order.Status
	lastTracking  string
	statusUpdates int
}

func (s *stubLedger) GetByID(context.Context, string) (order.Order, error) {
	return s.order, s.err
}

func (s *stubLedger) GetByNumber(context.Context, string) (order.Order, error) {
	return s.order, s.err
}

func (s *stubLedger) GetByPaymentAuthorization(context.Context, string) (order.Order, error) {
	return s.order, s.err
}

func (s *stubLedger) Items(context.Context, string) ([]order.Item, error) {
	return s.items, nil
}

func (s *stubLedger) UpdateStatus(_ context.Context, _ string, status order.Status, _ string) (order.Order, error) {
	if s.err != nil {
		return order.Order{}, s.err
	}
	s.lastStatus = status
	s.statusUpdates++
	s.order.Status = status
	return s.order, nil
}

func (s *stubLedger) AddTracking(_ context.Context, _ string, tracking string) (order.Order, error) {
	if s.err != nil {
		return order.Order{}, s.err
	}
	s.lastTracking = tracking
	s.order.TrackingNumber = &tracking
	return s.order, nil
}

func (s *stubLedger) SetNotes(_ context.Context, _ string, notes string) (order.Order, error) {
	if s.err != nil {
		return order.Order{}, s.err
	}
	s.order.Notes = &notes
	return s.order, nil
}

func sampleOrder() order.Order {
	return order.Order{
		ID:                     uuid.New(),
		Number:                 "AP-000042",
		Status:                 order.StatusConfirmed,
		Subtotal:               9000,
		Shipping:               899,
		Tax:                    653,
		Total:                  10552,
		PaymentAuthorizationID: "pi_sample",
		Email:                  "buyer@example.com",
		CreatedAt:              time.Now().UTC(),
		UpdatedAt:              time.Now().UTC(),
	}
}

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"pending", "Confirmed", "PROCESSING", " shipped ", "delivered", "cancelled"} {
		status, err := order.ParseStatus(valid)
		require.NoError(t, err, valid)
		require.Equal(t, order.Status(strings.ToLower(strings.TrimSpace(valid))), status)
	}
	for _, invalid := range []string{"", "refunded", "canceled", "confirmed!"} {
		_, err := order.ParseStatus(invalid)
		require.Error(t, err, invalid)
	}
}

func TestLookupRequiresExactlyOneSelector(t *testing.T) {
	handler := &order.Handler{Ledger: &stubLedger{order: sampleOrder()}}

	rec := httptest.NewRecorder()
	handler.Lookup(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders/lookup", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookupSanitizesPaymentIdentifiers(t *testing.T) {
	ord := sampleOrder()
	handler := &order.Handler{Ledger: &stubLedger{
		order: ord,
		items: []order.Item{{
			ID:         uuid.New(),
			OrderID:    ord.ID,
			ProductID:  uuid.New(),
			Quantity:   2,
			UnitPrice:  4500,
			TotalPrice: 9000,
			Snapshot:   order.Snapshot{Title: "Salt Flats at Dusk", PrintDetails: "16x20 - Metal", UnitPrice: 4500},
		}},
	}}

	rec := httptest.NewRecorder()
	handler.Lookup(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders/lookup?order_number=AP-000042", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, "AP-000042")
	require.Contains(t, body, "Salt Flats at Dusk")
	require.NotContains(t, body, "pi_sample")
	require.NotContains(t, body, ord.Email)

	var envelope struct {
		Data struct {
			Total json.Number `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "105.52", envelope.Data.Total.String())
}

func TestLookupNotFound(t *testing.T) {
	handler := &order.Handler{Ledger: &stubLedger{err: order.ErrNotFound}}

	rec := httptest.NewRecorder()
	handler.Lookup(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders/lookup?order_id="+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func adminRequest(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	ctx := chi.NewRouteContext()
	ctx.URLParams.Add("id", uuid.NewString())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, ctx))
}

func TestAdminPatchStatus(t *testing.T) {
	ledger := &stubLedger{order: sampleOrder()}
	handler := &order.AdminHandler{Ledger: ledger}

	rec := httptest.NewRecorder()
	handler.PatchStatus(rec, adminRequest(t, http.MethodPatch, "/admin/orders/x/status", `{"status":"Shipped"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, order.StatusShipped, ledger.lastStatus)
}

func TestAdminPatchStatusRejectsUnknownValue(t *testing.T) {
	ledger := &stubLedger{order: sampleOrder()}
	handler := &order.AdminHandler{Ledger: ledger}

	rec := httptest.NewRecorder()
	handler.PatchStatus(rec, adminRequest(t, http.MethodPatch, "/admin/orders/x/status", `{"status":"refunded"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, ledger.statusUpdates)
}

func TestAdminPutTrackingRequiresValue(t *testing.T) {
	ledger := &stubLedger{order: sampleOrder()}
	handler := &order.AdminHandler{Ledger: ledger}

	rec := httptest.NewRecorder()
	handler.PutTracking(rec, adminRequest(t, http.MethodPut, "/admin/orders/x/tracking", `{"trackingNumber":"  "}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.PutTracking(rec, adminRequest(t, http.MethodPut, "/admin/orders/x/tracking", `{"trackingNumber":"1Z999"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1Z999", ledger.lastTracking)
}
