package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aperture-prints/backend-prints/internal/common"
)

// AdminHandler provides elevated-privilege order management endpoints.
type AdminHandler struct {
	Ledger Ledger
}

type patchStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// PatchStatus updates the order status, rejecting unknown values.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order ledger not configured", nil)
		return
	}
	var req patchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported status", map[string]any{"status": req.Status})
		return
	}
	ord, err := h.Ledger.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status, req.Note)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": adminView(ord)})
}

type putTrackingRequest struct {
	TrackingNumber string `json:"trackingNumber"`
}

// PutTracking records a shipment tracking number on the order.
func (h *AdminHandler) PutTracking(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order ledger not configured", nil)
		return
	}
	var req putTrackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if strings.TrimSpace(req.TrackingNumber) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "trackingNumber is required", nil)
		return
	}
	ord, err := h.Ledger.AddTracking(r.Context(), chi.URLParam(r, "id"), req.TrackingNumber)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": adminView(ord)})
}

type putNotesRequest struct {
	Notes string `json:"notes"`
}

// PutNotes replaces the order notes.
func (h *AdminHandler) PutNotes(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order ledger not configured", nil)
		return
	}
	var req putNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	ord, err := h.Ledger.SetNotes(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": adminView(ord)})
}

func (h *AdminHandler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order update failed", nil)
}

func adminView(ord Order) map[string]any {
	view := map[string]any{
		"id":          ord.ID.String(),
		"orderNumber": ord.Number,
		"status":      ord.Status,
		"subtotal":    ord.Subtotal,
		"tax":         ord.Tax,
		"shipping":    ord.Shipping,
		"total":       ord.Total,
		"email":       ord.Email,
		"createdAt":   ord.CreatedAt,
		"updatedAt":   ord.UpdatedAt,
	}
	if ord.TrackingNumber != nil {
		view["trackingNumber"] = *ord.TrackingNumber
	}
	if ord.Notes != nil {
		view["notes"] = *ord.Notes
	}
	if ord.ShippingAddress != nil {
		view["shippingAddress"] = ord.ShippingAddress
	}
	return view
}
