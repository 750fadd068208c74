package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aperture-prints/backend-prints/internal/common"
	"github.com/aperture-prints/backend-prints/internal/payment"
	"github.com/aperture-prints/backend-prints/internal/pricing"
)

// Handler exposes cart pricing and checkout over HTTP.
type Handler struct {
	Service *Service
	Logger  zerolog.Logger
}

type quoteRequest struct {
	Items           []pricing.CartLine `json:"items"`
	ShippingAddress *pricing.Address   `json:"shippingAddress,omitempty"`
}

// Quote prices a cart without side effects. POST /api/v1/pricing/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return
	}
	breakdown, err := h.Service.Quote(r.Context(), req.Items, req.ShippingAddress)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, breakdown)
}

// Checkout prices the cart and opens a payment authorization.
// POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return
	}
	out, err := h.Service.Checkout(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, out)
}

// writeError maps service failures to API responses. Cart problems carry the
// per-line violations back to the client; gateway failures never leak
// provider details, only a retryable message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *pricing.InvalidCartError
	if errors.As(err, &invalid) {
		common.JSONError(w, http.StatusBadRequest, "INVALID_CART", "cart cannot be priced", invalid.Violations)
		return
	}
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		details := make([]map[string]string, 0, len(vErrs))
		for _, fe := range vErrs {
			details = append(details, map[string]string{
				"field": fe.Field(),
				"rule":  fe.Tag(),
			})
		}
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "request failed validation", details)
		return
	}
	if errors.Is(err, ErrUnchargeableTotal) {
		common.JSONError(w, http.StatusBadRequest, "UNCHARGEABLE_TOTAL", "order total cannot be charged", nil)
		return
	}
	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) {
		h.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("payment_gateway_error")
		common.JSONError(w, http.StatusBadGateway, "PAYMENT_UNAVAILABLE", "payment could not be started, please try again", nil)
		return
	}
	h.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("checkout_error")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}
