package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/tinytales/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once checkout commits an order and its invoice.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	InvoiceNumber string              `json:"invoice_number"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	AmountDue     string              `json:"amount_due"`
	ItemCount     int                 `json:"item_count"`
	CustomerEmail *string             `json:"customer_email,omitempty"`
}

// OrderStatusChangedEvent drives the customer notification for customer-facing statuses.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Status         enums.OrderStatus `json:"status"`
	CustomerName   string            `json:"customer_name"`
	CustomerEmail  *string           `json:"customer_email,omitempty"`
	InvoiceNumber  string            `json:"invoice_number,omitempty"`
	AmountDue      string            `json:"amount_due"`
	ChangedAt      time.Time         `json:"changed_at"`
}

// PaymentSettledEvent records a verified provider payment.
type PaymentSettledEvent struct {
	OrderID    uuid.UUID           `json:"order_id"`
	InvoiceID  uuid.UUID           `json:"invoice_id"`
	Provider   enums.PaymentMethod `json:"provider"`
	Reference  string              `json:"reference,omitempty"`
	AmountPaid string              `json:"amount_paid"`
	SettledAt  time.Time           `json:"settled_at"`
}

// PaymentFailedEvent records a rejected or unverifiable provider callback.
type PaymentFailedEvent struct {
	OrderID  uuid.UUID                  `json:"order_id"`
	Provider enums.PaymentMethod        `json:"provider"`
	Reason   enums.PaymentFailureReason `json:"reason"`
	FailedAt time.Time                  `json:"failed_at"`
}

// OrderExpiredEvent is emitted by the stale pending sweep.
type OrderExpiredEvent struct {
	OrderID      uuid.UUID           `json:"order_id"`
	Method       enums.PaymentMethod `json:"payment_method"`
	PendingSince time.Time           `json:"pending_since"`
	ExpiredAt    time.Time           `json:"expired_at"`
}

// OrderScoped is implemented by every payload. Publishers use the order id as the
// ordering key so one order's events reach subscribers in commit order.
type OrderScoped interface {
	OrderRef() uuid.UUID
}

func (e OrderCreatedEvent) OrderRef() uuid.UUID       { return e.OrderID }
func (e OrderStatusChangedEvent) OrderRef() uuid.UUID { return e.OrderID }
func (e PaymentSettledEvent) OrderRef() uuid.UUID     { return e.OrderID }
func (e PaymentFailedEvent) OrderRef() uuid.UUID      { return e.OrderID }
func (e OrderExpiredEvent) OrderRef() uuid.UUID       { return e.OrderID }
