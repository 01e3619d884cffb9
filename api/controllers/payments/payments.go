package payments

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/tinytales/storefront-backend/api/responses"
	"github.com/tinytales/storefront-backend/api/validators"
	"github.com/tinytales/storefront-backend/internal/payments/callbacks"
	"github.com/tinytales/storefront-backend/internal/payments/esewa"
	"github.com/tinytales/storefront-backend/internal/payments/khalti"
	"github.com/tinytales/storefront-backend/pkg/enums"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/logger"
)

// Initiator starts a provider payment for a pending order.
type Initiator interface {
	InitiateEsewa(ctx context.Context, orderID uuid.UUID) (*esewa.Form, error)
	InitiateKhalti(ctx context.Context, orderID uuid.UUID) (*khalti.InitiateResponse, error)
}

// CallbackHandler reconciles provider callbacks into order state.
type CallbackHandler interface {
	HandleEsewa(ctx context.Context, rawOrderID, data string) callbacks.Outcome
	HandleKhalti(ctx context.Context, rawOrderID, pidx string) callbacks.Outcome
}

type initiateRequest struct {
	OrderID uuid.UUID `json:"orderId" validate:"required"`
}

type khaltiInitiateResponse struct {
	PaymentURL string `json:"paymentUrl"`
	Pidx       string `json:"pidx"`
}

// InitiateEsewa returns the signed form the storefront auto-submits to eSewa.
func InitiateEsewa(svc Initiator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		var payload initiateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		form, err := svc.InitiateEsewa(r.Context(), payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, form)
	}
}

// InitiateKhalti returns the hosted payment page URL.
func InitiateKhalti(svc Initiator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		var payload initiateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp, err := svc.InitiateKhalti(r.Context(), payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, khaltiInitiateResponse{PaymentURL: resp.PaymentURL, Pidx: resp.Pidx})
	}
}

// EsewaCallback handles the browser redirect back from eSewa. It always answers with a redirect.
func EsewaCallback(handler CallbackHandler, siteURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		out := handler.HandleEsewa(r.Context(), query.Get("orderId"), query.Get("data"))
		http.Redirect(w, r, RedirectURL(siteURL, out), http.StatusFound)
	}
}

// KhaltiCallback handles the browser redirect back from Khalti. It always answers with a redirect.
func KhaltiCallback(handler CallbackHandler, siteURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		out := handler.HandleKhalti(r.Context(), query.Get("orderId"), query.Get("pidx"))
		http.Redirect(w, r, RedirectURL(siteURL, out), http.StatusFound)
	}
}

// RedirectURL picks the storefront page for a callback outcome. Request and server faults go
// back to checkout; payment failures go to the failure page.
func RedirectURL(siteURL string, out callbacks.Outcome) string {
	base := strings.TrimRight(siteURL, "/")
	if out.Success {
		return base + "/checkout/success?orderId=" + url.QueryEscape(out.OrderID)
	}
	reason := url.QueryEscape(out.Reason.String())
	if returnsToCheckout(out.Reason) {
		return base + "/checkout?error=" + reason
	}
	return base + "/checkout/failed?reason=" + reason
}

func returnsToCheckout(reason enums.PaymentFailureReason) bool {
	switch reason {
	case enums.PaymentFailureInvalidCallback,
		enums.PaymentFailureServerConfig,
		enums.PaymentFailurePending,
		enums.PaymentFailureEsewaProcessing,
		enums.PaymentFailureKhaltiProcessing:
		return true
	}
	return false
}
