package gateway

import (
	"errors"

	"github.com/tinytales/storefront-backend/pkg/enums"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
)

var (
	ErrGatewayConfig     = errors.New("payment gateway not configured")
	ErrGatewayInitiation = errors.New("payment gateway initiation failed")
	ErrGatewayLookup     = errors.New("payment gateway lookup failed")
	ErrInvalidCallback   = errors.New("invalid payment callback")
)

// Config reports a provider whose credentials are missing.
func Config(provider enums.PaymentMethod) error {
	return pkgerrors.Wrap(pkgerrors.CodeGatewayConfig, ErrGatewayConfig, "payment provider is not configured").
		WithDetails(map[string]any{"provider": provider.String()})
}

// Initiation wraps a failed provider call made while starting a payment.
func Initiation(provider enums.PaymentMethod, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeGatewayInitiation, errors.Join(ErrGatewayInitiation, cause), "payment initiation failed").
		WithDetails(map[string]any{"provider": provider.String()})
}

// Lookup wraps a failed provider verification call.
func Lookup(provider enums.PaymentMethod, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, errors.Join(ErrGatewayLookup, cause), "payment lookup failed").
		WithDetails(map[string]any{"provider": provider.String()})
}

// InvalidCallback reports a callback payload that cannot be decoded.
func InvalidCallback(cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, errors.Join(ErrInvalidCallback, cause), "invalid payment callback")
}
