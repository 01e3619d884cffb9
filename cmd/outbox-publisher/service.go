package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/outbox/payloads"
	"github.com/tinytales/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error
	ParkTx(tx *gorm.DB, event models.OutboxEvent, reason enums.DeadLetterReason, cause error, terminalAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.Route, error)
}

// publisher is the slice of *gcppubsub.Publisher the relay uses. Tests swap it out.
type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       dbClient
	PubSub   pubSubClient
	Store    outboxStore
	Resolver eventResolver
	// Publishers overrides how topic publishers are built. Defaults to PubSub.
	Publishers func(topic string) publisher
}

// Service relays committed order events from outbox_events to Pub/Sub. Each row is
// published at least once; rows that cannot be delivered are parked with a reason.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	pubsub      pubSubClient
	store       outboxStore
	resolver    eventResolver
	newPub      func(topic string) publisher
	publishers  map[string]publisher
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Config == nil:
		return nil, errors.New("config is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case p.Store == nil:
		return nil, errors.New("outbox store is required")
	case p.Resolver == nil:
		return nil, errors.New("event resolver is required")
	}

	newPub := p.Publishers
	if newPub == nil {
		newPub = func(topic string) publisher {
			if gp := p.PubSub.Publisher(topic); gp != nil {
				return &orderedPublisher{pub: gp}
			}
			return nil
		}
	}

	cfg := p.Config.Outbox
	s := &Service{
		logg:        p.Logger,
		db:          p.DB,
		pubsub:      p.PubSub,
		store:       p.Store,
		resolver:    p.Resolver,
		newPub:      newPub,
		publishers:  map[string]publisher{},
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		poll:        defaultPoll,
	}
	if cfg.BatchSize > 0 {
		s.batchSize = cfg.BatchSize
	}
	if cfg.MaxAttempts > 0 {
		s.maxAttempts = cfg.MaxAttempts
	}
	if cfg.PollIntervalMS > 0 {
		s.poll = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	return s, nil
}

// Run relays until ctx is canceled. A full batch is followed immediately by the next
// one; an empty or failed batch backs off.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := s.poll
	for {
		handled, err := s.relayBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox relay batch failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case handled == s.batchSize:
			wait = s.poll
			if ctx.Err() == nil {
				continue
			}
		default:
			wait = s.poll
		}

		timer := time.NewTimer(wait + rand.N(jitterWindow))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logg.Info(ctx, "outbox relay stopping")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// relayBatch publishes one locked batch and records each row's outcome in the same
// transaction. It returns how many rows it handled.
func (s *Service) relayBatch(ctx context.Context) (int, error) {
	handled := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.store.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, event := range events {
			if err := s.settle(ctx, tx, event); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	return handled, err
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":    event.ID.String(),
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID.String(),
		"attempt":      event.AttemptCount + 1,
	})

	reason, err := s.deliver(ctx, event)
	if err == nil {
		if markErr := s.store.MarkPublishedTx(tx, event.ID); markErr != nil {
			return fmt.Errorf("mark %s published: %w", event.ID, markErr)
		}
		s.logg.Debug(logCtx, "outbox event published")
		return nil
	}

	if reason == "" && event.AttemptCount+1 >= s.maxAttempts {
		reason = enums.DeadLetterRetriesExhausted
	}
	logCtx = s.logg.WithField(logCtx, "error", err.Error())
	if reason == "" {
		s.logg.Warn(logCtx, "outbox publish failed, will retry")
		if markErr := s.store.MarkFailedTx(tx, event.ID, err); markErr != nil {
			return fmt.Errorf("mark %s failed: %w", event.ID, markErr)
		}
		return nil
	}

	s.logg.Warn(s.logg.WithField(logCtx, "reason", string(reason)), "outbox event parked")
	if parkErr := s.store.ParkTx(tx, event, reason, err, s.maxAttempts); parkErr != nil {
		return fmt.Errorf("park %s: %w", event.ID, parkErr)
	}
	return nil
}

// deliver publishes one row. A non-empty reason means retrying cannot help.
func (s *Service) deliver(ctx context.Context, event models.OutboxEvent) (enums.DeadLetterReason, error) {
	route, err := s.resolver.Resolve(event)
	if err != nil {
		return enums.DeadLetterUndecodable, err
	}
	topic := route.Topic
	pub := s.publisherFor(topic)
	if pub == nil {
		return enums.DeadLetterUnroutable, fmt.Errorf("no publisher for topic %q", topic)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(pubCtx, message(event, route))
	if result == nil {
		return enums.DeadLetterUnroutable, fmt.Errorf("publisher for topic %q returned no result", topic)
	}
	if _, err := result.Get(pubCtx); err != nil {
		if errors.Is(err, registry.ErrPermanent) {
			return enums.DeadLetterUnroutable, err
		}
		return "", err
	}
	return "", nil
}

func (s *Service) publisherFor(topic string) publisher {
	if pub, ok := s.publishers[topic]; ok {
		return pub
	}
	pub := s.newPub(topic)
	if pub != nil {
		s.publishers[topic] = pub
	}
	return pub
}

// message carries the stored envelope unchanged. Events are keyed by order so a
// status change is never delivered ahead of the order_created it follows.
func message(event models.OutboxEvent, route *registry.Route) *gcppubsub.Message {
	orderID := event.AggregateID
	if scoped, ok := route.Payload.(payloads.OrderScoped); ok && scoped.OrderRef() != uuid.Nil {
		orderID = scoped.OrderRef()
	}
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: orderID.String(),
		Attributes: map[string]string{
			"event_id":       route.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"order_id":       orderID.String(),
		},
	}
}

// orderedPublisher resumes an ordering key after a failed publish; Pub/Sub pauses
// the key until then.
type orderedPublisher struct {
	pub *gcppubsub.Publisher
}

func (p *orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &orderedResult{res: p.pub.Publish(ctx, msg), pub: p.pub, key: msg.OrderingKey}
}

type orderedResult struct {
	res *gcppubsub.PublishResult
	pub *gcppubsub.Publisher
	key string
}

func (r *orderedResult) Get(ctx context.Context) (string, error) {
	id, err := r.res.Get(ctx)
	if err != nil && r.key != "" {
		r.pub.ResumePublish(r.key)
	}
	return id, err
}
