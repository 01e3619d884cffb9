package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/tinytales/storefront-backend/pkg/enums"
	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/outbox"
	"github.com/tinytales/storefront-backend/pkg/outbox/payloads"
	"github.com/tinytales/storefront-backend/pkg/outbox/registry"
)

// DedupeScope namespaces the event ids this consumer has mailed for.
const DedupeScope = "evt:order-notifications"

// processedTracker is satisfied by *dedupe.Set.
type processedTracker interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// Consumer turns order status changes into customer emails. It never writes to the
// order; a failed send is retried by Pub/Sub redelivery.
type Consumer struct {
	subscription *pubsub.Subscriber
	processed    processedTracker
	mailer       Mailer
	logg         *logger.Logger
}

func NewConsumer(subscription *pubsub.Subscriber, processed processedTracker, mailer Mailer, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if processed == nil {
		return nil, fmt.Errorf("dedupe set required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: subscription,
		processed:    processed,
		mailer:       mailer,
		logg:         logg,
	}, nil
}

// Run pulls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) == redeliver {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// verdict is what happens to a message after processing. Anything that would
// fail the same way again is settled so it stops coming back.
type verdict int

const (
	settle verdict = iota
	redeliver
)

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) verdict {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	ctx = c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})
	if eventType != enums.EventOrderStatusChanged {
		return settle
	}

	eventID, event, err := decodeStatusChange(msg.Data)
	if err != nil {
		c.logg.Error(ctx, "dropping undecodable message", err)
		return settle
	}
	ctx = c.logg.WithOrderID(ctx, event.OrderID.String())
	ctx = c.logg.WithField(ctx, "status", event.Status.String())

	email, ok := statusEmail(*event)
	switch {
	case !ok:
		c.logg.Debug(ctx, "status change has no customer email")
		return settle
	case !c.mailer.Enabled():
		c.logg.Warn(ctx, "mailer disabled, skipping customer email")
		return settle
	}
	return c.sendOnce(ctx, eventID, email)
}

// sendOnce claims the event id before sending and gives the claim back when the
// send fails, so the redelivery can try again.
func (c *Consumer) sendOnce(ctx context.Context, eventID string, email Message) verdict {
	first, err := c.processed.Claim(ctx, eventID)
	if err != nil {
		c.logg.Error(ctx, "dedupe claim failed", err)
		return redeliver
	}
	if !first {
		c.logg.Info(ctx, "event already handled")
		return settle
	}
	if err := c.mailer.Send(ctx, email); err != nil {
		c.logg.Error(ctx, "customer email failed", err)
		if err := c.processed.Release(ctx, eventID); err != nil {
			c.logg.Error(ctx, "dedupe release failed", err)
		}
		return redeliver
	}
	c.logg.Info(ctx, "customer notified of status change")
	return settle
}

func decodeStatusChange(data []byte) (string, *payloads.OrderStatusChangedEvent, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", nil, fmt.Errorf("envelope: %w", err)
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return "", nil, fmt.Errorf("event id: %w", err)
	}
	version := envelope.Version
	if version == 0 {
		version = registry.PayloadVersion
	}
	event, err := registry.DecodeAs[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, version, envelope.Data)
	if err != nil {
		return "", nil, err
	}
	return eventID.String(), event, nil
}
