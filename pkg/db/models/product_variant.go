package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultLowStockThreshold applies when a variant is created without an explicit threshold.
const DefaultLowStockThreshold = 5

// ProductVariant is a purchasable SKU (size x color). StockCount never drops below zero;
// the database enforces it with a CHECK constraint and conditional decrements.
type ProductVariant struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Product           *Product  `gorm:"foreignKey:ProductID"`
	SKU               string    `gorm:"column:sku;not null;uniqueIndex"`
	Size              string    `gorm:"column:size"`
	Color             string    `gorm:"column:color"`
	StockCount        int       `gorm:"column:stock_count;not null;default:0;check:product_variants_stock_nonnegative,stock_count >= 0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:5"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductVariant) TableName() string { return "product_variants" }

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.LowStockThreshold == 0 {
		v.LowStockThreshold = DefaultLowStockThreshold
	}
	return nil
}
