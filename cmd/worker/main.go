package main

import (
	"context"

	"github.com/tinytales/storefront-backend/internal/app"
	"github.com/tinytales/storefront-backend/internal/notifications"
	"github.com/tinytales/storefront-backend/pkg/dedupe"
	"github.com/tinytales/storefront-backend/pkg/httpclient"
)

func main() {
	app.Run("worker", func(ctx context.Context, p *app.Process) error {
		cfg := p.Config
		redisClient, err := p.Redis(ctx)
		if err != nil {
			return err
		}
		pubsubClient, err := p.PubSub(ctx)
		if err != nil {
			return err
		}

		processed, err := dedupe.New(redisClient, notifications.DedupeScope, cfg.Eventing.ConsumerIdempotencyTTL)
		if err != nil {
			return err
		}
		mailer := notifications.NewResendMailer(cfg.Mailer, httpclient.New(cfg.HTTPClient))
		if !mailer.Enabled() {
			p.Logger.Warn(ctx, "mailer api key missing, order emails will be skipped")
		}
		consumer, err := notifications.NewConsumer(pubsubClient.OrdersSubscription(), processed, mailer, p.Logger)
		if err != nil {
			return err
		}

		service, err := NewService(ServiceParams{
			Logger:       p.Logger,
			Dependencies: map[string]pinger{"redis": redisClient, "pubsub": pubsubClient},
			Subscribers:  map[string]subscriber{"order-notifications": consumer},
		})
		if err != nil {
			return err
		}
		return service.Run(ctx)
	})
}
