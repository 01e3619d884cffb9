package main

import (
	"context"

	"github.com/tinytales/storefront-backend/internal/app"
	"github.com/tinytales/storefront-backend/pkg/outbox"
	"github.com/tinytales/storefront-backend/pkg/outbox/registry"
)

func main() {
	app.Run("outbox-publisher", func(ctx context.Context, p *app.Process) error {
		dbClient, err := p.Database(ctx)
		if err != nil {
			return err
		}
		pubsubClient, err := p.PubSub(ctx)
		if err != nil {
			return err
		}
		router, err := registry.NewRouter(p.Config.PubSub)
		if err != nil {
			return err
		}

		relay, err := NewService(ServiceParams{
			Config:   p.Config,
			Logger:   p.Logger,
			DB:       dbClient,
			PubSub:   pubsubClient,
			Store:    outbox.NewRepository(dbClient.DB()),
			Resolver: router,
		})
		if err != nil {
			return err
		}
		return relay.Run(ctx)
	})
}
