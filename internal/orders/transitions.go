package orders

import "github.com/tinytales/storefront-backend/pkg/enums"

// CanTransition reports whether an order may move from one status to another. Forward
// moves are one step at a time, any live order may be canceled, and only a delivered
// order may be returned.
func CanTransition(from, to enums.OrderStatus) bool {
	if !from.IsValid() || !to.IsValid() || from == to {
		return false
	}
	switch to {
	case enums.OrderStatusCanceled:
		return !from.IsTerminal()
	case enums.OrderStatusReturned:
		return from == enums.OrderStatusDelivered
	}
	fromRank, toRank := from.Rank(), to.Rank()
	return fromRank >= 0 && toRank == fromRank+1
}

// RestocksOnEntry reports whether moving from one status to another puts the order's
// items back on sale. A return always does. A cancel does only while the parcel is
// still in the warehouse; once SHIPPED the goods are gone until they come back as a
// return.
func RestocksOnEntry(from, to enums.OrderStatus) bool {
	switch to {
	case enums.OrderStatusReturned:
		return true
	case enums.OrderStatusCanceled:
		return from.Rank() >= 0 && from.Rank() <= enums.OrderStatusPacked.Rank()
	}
	return false
}
