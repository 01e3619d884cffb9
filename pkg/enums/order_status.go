package enums

import "slices"

// OrderStatus tracks the lifecycle of a storefront order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusPacked         OrderStatus = "PACKED"
	OrderStatusShipped        OrderStatus = "SHIPPED"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCanceled       OrderStatus = "CANCELED"
	OrderStatusReturned       OrderStatus = "RETURNED"
)

// orderProgression is the linear fulfilment path; side branches are handled separately.
var orderProgression = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPacked,
	OrderStatusShipped,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
}

var orderStatuses = append(set[OrderStatus]{OrderStatusCanceled, OrderStatusReturned}, orderProgression...)

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool {
	return orderStatuses.has(s)
}

// IsTerminal reports whether no further transition is allowed except DELIVERED -> RETURNED.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled || s == OrderStatusReturned
}

// Rank returns the position on the forward path, or -1 for side branches.
func (s OrderStatus) Rank() int {
	return slices.Index(orderProgression, s)
}

// NotifiesCustomer reports whether entering this status triggers a customer notification.
func (s OrderStatus) NotifiesCustomer() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusShipped, OrderStatusOutForDelivery, OrderStatusDelivered:
		return true
	}
	return false
}

// ParseOrderStatus is case-insensitive.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return orderStatuses.parseUpper("order status", value)
}
