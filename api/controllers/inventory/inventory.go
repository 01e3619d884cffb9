package inventory

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinytales/storefront-backend/api/controllers/orderview"
	"github.com/tinytales/storefront-backend/api/middleware"
	"github.com/tinytales/storefront-backend/api/responses"
	"github.com/tinytales/storefront-backend/api/validators"
	internalinventory "github.com/tinytales/storefront-backend/internal/inventory"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/logger"
)

type stockRequest struct {
	StockCount *int `json:"stockCount" validate:"required,min=0"`
}

// UpdateStock sets the absolute stock count for a variant.
func UpdateStock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		rawID := strings.TrimSpace(chi.URLParam(r, "variantId"))
		variantID, err := uuid.Parse(rawID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid variant id"))
			return
		}

		var payload stockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		variant, err := svc.UpdateStock(r.Context(), middleware.RoleFromContext(r.Context()), variantID, *payload.StockCount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{"variant_id": variantID.String(), "stock_count": variant.StockCount})
			logg.Info(ctx, "variant stock updated")
		}
		responses.WriteSuccess(w, orderview.NewVariant(*variant))
	}
}

// LowStock lists variants at or below their alert threshold.
func LowStock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		rows, err := svc.LowStock(r.Context(), middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]orderview.Variant, 0, len(rows))
		for _, row := range rows {
			out = append(out, orderview.NewVariant(row))
		}
		responses.WriteSuccess(w, map[string]any{"variants": out})
	}
}
