package orders

import (
	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
)

// ListFilters narrows the admin order list.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentMethod *enums.PaymentMethod
	Query         string
}

// OrderList is one page of orders, newest first.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// CancelCause explains why a pending order is being canceled by the system.
type CancelCause struct {
	Provider enums.PaymentMethod
	Reason   enums.PaymentFailureReason
	Expired  bool
}

// PaymentConfirmation carries the verified provider evidence for a pending order.
type PaymentConfirmation struct {
	Provider  enums.PaymentMethod
	Reference string
}
