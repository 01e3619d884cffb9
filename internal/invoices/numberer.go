package invoices

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/tinytales/storefront-backend/pkg/db/models"
)

var sequenceSuffix = regexp.MustCompile(`-(\d+)$`)

// Numberer derives the next year-scoped invoice number from the latest issued one.
type Numberer struct {
	prefix string
}

// NewNumberer builds a Numberer for the configured prefix (e.g. "TT").
func NewNumberer(prefix string) *Numberer {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "TT"
	}
	return &Numberer{prefix: prefix}
}

// Next returns PREFIX-YEAR-NNNN for the sequence after the latest invoice of that year.
// The read happens in tx; uniqueness is enforced by the invoice_number constraint.
func (n *Numberer) Next(ctx context.Context, tx *gorm.DB, year int) (string, error) {
	if tx == nil {
		return "", fmt.Errorf("transaction required")
	}
	yearPrefix := fmt.Sprintf("%s-%d-", n.prefix, year)

	var latest models.Invoice
	err := tx.WithContext(ctx).
		Select("invoice_number").
		Where("invoice_number LIKE ?", yearPrefix+"%").
		Order("created_at DESC").
		Order("invoice_number DESC").
		Limit(1).
		Take(&latest).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("load latest invoice: %w", err)
	}

	seq := 0
	if err == nil {
		seq = parseSequence(latest.InvoiceNumber)
	}
	return fmt.Sprintf("%s%04d", yearPrefix, seq+1), nil
}

func parseSequence(number string) int {
	m := sequenceSuffix.FindStringSubmatch(number)
	if len(m) != 2 {
		return 0
	}
	seq, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return seq
}
