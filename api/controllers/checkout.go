package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tinytales/storefront-backend/api/controllers/orderview"
	"github.com/tinytales/storefront-backend/api/middleware"
	"github.com/tinytales/storefront-backend/api/responses"
	"github.com/tinytales/storefront-backend/api/validators"
	checkoutsvc "github.com/tinytales/storefront-backend/internal/checkout"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/logger"
)

// Checkout creates a guest order with its invoice in one transaction.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateOrder(r.Context(), payload.toInput(optionalUserID(r)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:      orderview.NewOrder(result.Order),
			Invoice:    orderview.NewInvoice(result.Invoice),
			NextAction: string(result.NextAction),
		})
	}
}

const (
	maxCustomerName = 200
	maxContactPhone = 32
	maxAddress      = 500
)

type checkoutRequest struct {
	CustomerName    string                `json:"customerName" validate:"required,max=200"`
	CustomerEmail   *string               `json:"customerEmail,omitempty" validate:"omitempty,email"`
	ContactPhone    string                `json:"contactPhone" validate:"required,max=32,phone"`
	ShippingAddress string                `json:"shippingAddress" validate:"required,max=500"`
	IsInternational bool                  `json:"isInternational"`
	PaymentMethod   string                `json:"paymentMethod" validate:"required,payment_method"`
	Items           []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

type checkoutItemRequest struct {
	VariantID uuid.UUID `json:"variantId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

func (p checkoutRequest) toInput(userID *uuid.UUID) checkoutsvc.CreateOrderInput {
	items := make([]checkoutsvc.ItemInput, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, checkoutsvc.ItemInput{VariantID: item.VariantID, Quantity: item.Quantity})
	}
	return checkoutsvc.CreateOrderInput{
		Customer: checkoutsvc.Customer{
			Name:            validators.CleanText(p.CustomerName, maxCustomerName),
			Email:           p.CustomerEmail,
			Phone:           validators.CleanText(p.ContactPhone, maxContactPhone),
			Address:         validators.CleanText(p.ShippingAddress, maxAddress),
			IsInternational: p.IsInternational,
		},
		PaymentMethod: p.PaymentMethod,
		Items:         items,
		UserID:        userID,
	}
}

type checkoutResponse struct {
	Order      *orderview.Order   `json:"order"`
	Invoice    *orderview.Invoice `json:"invoice"`
	NextAction string             `json:"nextAction"`
}

// optionalUserID links the order to a signed-in user when an upstream middleware set one.
func optionalUserID(r *http.Request) *uuid.UUID {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
