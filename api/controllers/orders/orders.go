package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinytales/storefront-backend/api/controllers/orderview"
	"github.com/tinytales/storefront-backend/api/middleware"
	"github.com/tinytales/storefront-backend/api/responses"
	"github.com/tinytales/storefront-backend/api/validators"
	internalorders "github.com/tinytales/storefront-backend/internal/orders"
	"github.com/tinytales/storefront-backend/pkg/enums"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/pagination"
)

type orderListResponse struct {
	Orders     []orderview.Order `json:"orders"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}

type paymentMethodRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required,payment_method"`
}

// List returns a page of orders, newest first, filtered by status, payment method, or a
// free-text query over customer name and phone.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		filters, err := buildFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderListResponse{
			Orders:     orderview.NewOrders(list.Orders),
			NextCursor: list.NextCursor,
		})
	}
}

// Detail returns one order with its items and invoice.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderview.NewOrder(order))
	}
}

func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), middleware.RoleFromContext(r.Context()), orderID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderview.NewOrder(order))
	}
}

func UpdatePaymentMethod(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentMethodRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.UpdatePaymentMethod(r.Context(), middleware.RoleFromContext(r.Context()), orderID, method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderview.NewOrder(order))
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

func buildFilters(r *http.Request) (internalorders.ListFilters, error) {
	filters := internalorders.ListFilters{Query: strings.TrimSpace(r.URL.Query().Get("q"))}

	status, err := validators.ParseQueryOptional(r, "status", enums.ParseOrderStatus)
	if err != nil {
		return filters, err
	}
	method, err := validators.ParseQueryOptional(r, "paymentMethod", enums.ParsePaymentMethod)
	if err != nil {
		return filters, err
	}
	filters.Status, filters.PaymentMethod = status, method
	return filters, nil
}
