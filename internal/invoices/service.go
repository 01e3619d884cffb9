package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/tinytales/storefront-backend/pkg/db"
	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
)

const (
	invoiceNumberConstraint = "invoices_invoice_number_key"
	invoiceNumberColumn     = "invoices.invoice_number"
	issueSavepoint          = "issue_invoice"
)

// ErrTransactionConflict is returned when two checkouts keep racing for the same number.
var ErrTransactionConflict = errors.New("transaction conflict")

// Service issues invoices inside the caller's checkout transaction.
type Service struct {
	numberer *Numberer
	repo     Repository
	now      func() time.Time
}

// NewService builds the invoice service.
func NewService(numberer *Numberer, repo Repository) (*Service, error) {
	if numberer == nil {
		return nil, fmt.Errorf("invoice numberer required")
	}
	if repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	return &Service{numberer: numberer, repo: repo, now: time.Now}, nil
}

// Issue creates the UNPAID invoice for order. The insert runs under a savepoint so a
// number collision can be retried once without aborting the outer transaction.
func (s *Service) Issue(ctx context.Context, tx *gorm.DB, order models.Order, amountDue, tax decimal.Decimal) (*models.Invoice, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)
	year := s.now().Year()

	for attempt := 0; attempt < 2; attempt++ {
		number, err := s.numberer.Next(ctx, tx, year)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invoice number")
		}

		invoice := &models.Invoice{
			OrderID:       order.ID,
			InvoiceNumber: number,
			AmountDue:     amountDue,
			TaxAmount:     tax,
			AmountPaid:    decimal.Zero,
			Status:        enums.InvoiceStatusUnpaid,
		}

		if err := tx.SavePoint(issueSavepoint).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create savepoint")
		}
		err = repo.Create(ctx, invoice)
		if err == nil {
			return invoice, nil
		}
		if rbErr := tx.RollbackTo(issueSavepoint).Error; rbErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, rbErr, "rollback invoice savepoint")
		}
		if !dbpkg.IsUniqueViolation(err, invoiceNumberConstraint, invoiceNumberColumn) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert invoice")
		}
	}

	return nil, pkgerrors.Wrap(pkgerrors.CodeTransactionRetry, ErrTransactionConflict, "invoice number conflict, retry checkout")
}
