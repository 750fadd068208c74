package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aperture-prints/backend-prints/internal/common"
)

// Handler exposes the public catalog endpoints.
type Handler struct {
	Service *Service
	Logger  zerolog.Logger
}

// List serves GET /api/v1/products.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	result, err := h.Service.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		h.Logger.Error().Err(err).Msg("catalog_list_failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"products": result.Products,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: result.Total,
		},
	})
}

// GetBySlug serves GET /api/v1/products/{slug}.
func (h *Handler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	detail, err := h.Service.BySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		h.Logger.Error().Err(err).Str("slug", slug).Msg("catalog_get_failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
		return
	}
	common.JSON(w, http.StatusOK, detail)
}
