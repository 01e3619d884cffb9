package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/outbox"
)

// Route is an outbox row that passed validation, ready to publish.
type Route struct {
	Topic    string
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// Router sends every order lifecycle event to the orders topic so the notification
// worker sees one order's events in sequence.
type Router struct {
	ordersTopic string
}

func NewRouter(cfg config.PubSubConfig) (*Router, error) {
	if cfg.OrdersTopic == "" {
		return nil, fmt.Errorf("orders topic is required")
	}
	return &Router{ordersTopic: cfg.OrdersTopic}, nil
}

// Resolve checks the row against the catalog. Every error it returns wraps
// ErrPermanent.
func (r *Router) Resolve(event models.OutboxEvent) (*Route, error) {
	kind, ok := catalog[event.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrPermanent, event.EventType)
	}
	if kind.aggregate != event.AggregateType {
		return nil, fmt.Errorf("%w: %s belongs to %s, row says %s", ErrPermanent, event.EventType, kind.aggregate, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, fmt.Errorf("%w: %s row has no aggregate id", ErrPermanent, event.EventType)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: envelope: %w", ErrPermanent, err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("%w: %s envelope has no data", ErrPermanent, event.EventType)
	}
	version := envelope.Version
	if version == 0 {
		version = PayloadVersion
	}
	payload, err := Decode(event.EventType, version, envelope.Data)
	if err != nil {
		return nil, err
	}
	return &Route{Topic: r.ordersTopic, Envelope: envelope, Payload: payload}, nil
}
