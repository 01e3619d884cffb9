package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tinytales/storefront-backend/pkg/enums"
)

// Order is a purchase attempt. TotalAmount holds the pre-tax subtotal and TaxAmount the
// VAT, so the amount due is their sum. Orders are never deleted.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CustomerName     string              `gorm:"column:customer_name;not null"`
	CustomerEmail    *string             `gorm:"column:customer_email"`
	ContactPhone     string              `gorm:"column:contact_phone;not null"`
	ShippingAddress  string              `gorm:"column:shipping_address;not null"`
	IsInternational  bool                `gorm:"column:is_international;not null;default:false"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentReference *string             `gorm:"column:payment_reference;index:ux_orders_payment_reference,unique,where:payment_reference IS NOT NULL"`
	TotalAmount      decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	TaxAmount        decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null"`
	UserID           *uuid.UUID          `gorm:"column:user_id;type:uuid"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID"`
	Invoice          *Invoice            `gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// AmountDue is the subtotal plus VAT.
func (o Order) AmountDue() decimal.Decimal {
	return o.TotalAmount.Add(o.TaxAmount)
}
