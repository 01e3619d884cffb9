package inventory

import (
	"errors"

	"github.com/google/uuid"

	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
)

var (
	// ErrInsufficientStock is returned when a reservation would take stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrVariantNotFound is returned when a requested variant id does not exist.
	ErrVariantNotFound = errors.New("variant not found")
)

// InsufficientStock builds the coded error for a failed reservation of sku.
func InsufficientStock(sku string) error {
	return pkgerrors.Wrap(pkgerrors.CodeOutOfStock, ErrInsufficientStock, "insufficient stock for "+sku).
		WithDetails(map[string]any{"sku": sku})
}

// VariantNotFound builds the coded error for an unknown variant id.
func VariantNotFound(id uuid.UUID) error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrVariantNotFound, "variant not found").
		WithDetails(map[string]any{"variantId": id.String()})
}
