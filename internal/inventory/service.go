package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
)

// Service exposes the admin inventory operations.
type Service interface {
	UpdateStock(ctx context.Context, actingRole enums.AdminRole, variantID uuid.UUID, count int) (*models.ProductVariant, error)
	LowStock(ctx context.Context, actingRole enums.AdminRole) ([]models.ProductVariant, error)
}

type service struct {
	repo Repository
}

// NewService builds the inventory service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) UpdateStock(ctx context.Context, actingRole enums.AdminRole, variantID uuid.UUID, count int) (*models.ProductVariant, error) {
	if actingRole != enums.AdminRoleSuperAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only super admins can change stock")
	}
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if count < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock count cannot be negative")
	}

	if err := s.repo.SetStock(ctx, variantID, count); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, VariantNotFound(variantID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update stock")
	}

	variant, err := s.repo.FindVariant(ctx, variantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload variant")
	}
	return variant, nil
}

func (s *service) LowStock(ctx context.Context, actingRole enums.AdminRole) ([]models.ProductVariant, error) {
	if !actingRole.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	rows, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock")
	}
	return rows, nil
}

// IsLowStock reports whether the variant is at or below its alert threshold.
func IsLowStock(v models.ProductVariant) bool {
	return v.StockCount <= v.LowStockThreshold
}
