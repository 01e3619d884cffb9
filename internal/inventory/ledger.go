package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tinytales/storefront-backend/pkg/db/models"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
)

// Ledger mutates variant stock. Every call must run on the caller's transaction so the
// decrement commits or rolls back with the order that caused it.
type Ledger struct{}

// NewLedger returns the stock ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Reserve decrements stock_count by qty only if enough stock remains. The guard lives in
// the UPDATE itself so concurrent reservations cannot oversell.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, sku string, qty int) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"sku": sku})
	}

	res := tx.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND stock_count >= ?", variantID, qty).
		Update("stock_count", gorm.Expr("stock_count - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 0 {
		return InsufficientStock(sku)
	}
	return nil
}

// Restock returns qty units to the variant.
func (l *Ledger) Restock(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	res := tx.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("stock_count", gorm.Expr("stock_count + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock variant")
	}
	if res.RowsAffected == 0 {
		return VariantNotFound(variantID)
	}
	return nil
}

// RestockItems returns every line item's quantity to stock.
func (l *Ledger) RestockItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error {
	for _, item := range items {
		if err := l.Restock(ctx, tx, item.VariantID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}
