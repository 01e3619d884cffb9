package invoices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
)

// Repository persists invoices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error)
	MarkCancelled(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an invoices repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// MarkPaid settles an unpaid invoice in full. It reports false when the invoice was not
// UNPAID or OVERDUE.
func (r *repository) MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("order_id = ? AND status IN ?", orderID, []enums.InvoiceStatus{enums.InvoiceStatusUnpaid, enums.InvoiceStatusOverdue}).
		Updates(map[string]any{
			"status":      enums.InvoiceStatusPaid,
			"amount_paid": gorm.Expr("amount_due"),
		})
	return res.RowsAffected > 0, res.Error
}

// MarkCancelled voids an invoice that has not been paid.
func (r *repository) MarkCancelled(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("order_id = ? AND status <> ?", orderID, enums.InvoiceStatusPaid).
		Update("status", enums.InvoiceStatusCancelled)
	return res.RowsAffected > 0, res.Error
}
