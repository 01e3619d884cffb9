package enums

// OutboxAggregateType is the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateInvoice OutboxAggregateType = "invoice"
)

func (a OutboxAggregateType) IsValid() bool {
	return set[OutboxAggregateType]{AggregateOrder, AggregateInvoice}.has(a)
}

// OutboxEventType is the event_type column of outbox_events and the
// event_type attribute on published messages.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventPaymentSettled     OutboxEventType = "payment_settled"
	EventPaymentFailed      OutboxEventType = "payment_failed"
	EventOrderExpired       OutboxEventType = "order_expired"
)

var outboxEventTypes = set[OutboxEventType]{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventPaymentSettled,
	EventPaymentFailed,
	EventOrderExpired,
}

func (e OutboxEventType) IsValid() bool {
	return outboxEventTypes.has(e)
}
