// Package registry knows every outbox event type: the aggregate that owns it and
// the payload struct its data decodes into. The publisher and the notification
// consumer read the same table.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tinytales/storefront-backend/pkg/enums"
	"github.com/tinytales/storefront-backend/pkg/outbox/payloads"
)

// PayloadVersion is the only envelope version producers currently write.
const PayloadVersion = 1

// ErrPermanent marks an event that fails the same way on every attempt.
var ErrPermanent = errors.New("permanent event failure")

type eventKind struct {
	aggregate enums.OutboxAggregateType
	decode    func(json.RawMessage) (any, error)
}

var catalog = map[enums.OutboxEventType]eventKind{
	enums.EventOrderCreated:       {enums.AggregateOrder, decodeInto[payloads.OrderCreatedEvent]},
	enums.EventOrderStatusChanged: {enums.AggregateOrder, decodeInto[payloads.OrderStatusChangedEvent]},
	enums.EventPaymentSettled:     {enums.AggregateInvoice, decodeInto[payloads.PaymentSettledEvent]},
	enums.EventPaymentFailed:      {enums.AggregateOrder, decodeInto[payloads.PaymentFailedEvent]},
	enums.EventOrderExpired:       {enums.AggregateOrder, decodeInto[payloads.OrderExpiredEvent]},
}

func decodeInto[T any](data json.RawMessage) (any, error) {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode returns a pointer to the payload struct registered for eventType.
func Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	kind, ok := catalog[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrPermanent, eventType)
	}
	if version != PayloadVersion {
		return nil, fmt.Errorf("%w: %s has no decoder for v%d", ErrPermanent, eventType, version)
	}
	payload, err := kind.decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrPermanent, eventType, err)
	}
	return payload, nil
}

// DecodeAs is Decode for callers that know which payload they expect.
func DecodeAs[T any](eventType enums.OutboxEventType, version int, data json.RawMessage) (*T, error) {
	payload, err := Decode(eventType, version, data)
	if err != nil {
		return nil, err
	}
	typed, ok := payload.(*T)
	if !ok {
		return nil, fmt.Errorf("%w: %s decodes to %T", ErrPermanent, eventType, payload)
	}
	return typed, nil
}
