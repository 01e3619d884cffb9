package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tinytales/storefront-backend/internal/app"
	"github.com/tinytales/storefront-backend/internal/cron"
	"github.com/tinytales/storefront-backend/internal/inventory"
	"github.com/tinytales/storefront-backend/internal/invoices"
	"github.com/tinytales/storefront-backend/internal/orders"
	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/db"
	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/metrics"
	"github.com/tinytales/storefront-backend/pkg/outbox"
)

func main() {
	app.Run("cron-worker", func(ctx context.Context, p *app.Process) error {
		dbClient, err := p.Database(ctx)
		if err != nil {
			return err
		}
		redisClient, err := p.Redis(ctx)
		if err != nil {
			return err
		}
		jobs, err := buildJobs(ctx, p.Config, p.Logger, dbClient)
		if err != nil {
			return err
		}

		service, err := cron.NewService(cron.ServiceParams{
			Logger:   p.Logger,
			Jobs:     jobs,
			Leases:   redisClient,
			Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
			Interval: p.Config.Cron.Interval,
			LeaseTTL: p.Config.Cron.LeaseTTL,
		})
		if err != nil {
			return err
		}
		return service.Run(ctx)
	})
}

func buildJobs(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:              logg,
		Repository:          outboxRepo,
		Retention:           cfg.Outbox.Retention,
		DeadLetterRetention: cfg.Outbox.DeadLetterRetention,
		BatchSize:           cfg.Outbox.PruneBatchSize,
	})
	if err != nil {
		return nil, err
	}
	jobs := []cron.Job{retention}

	if !cfg.Cron.StalePendingEnabled {
		logg.Info(ctx, "stale pending sweep disabled")
		return jobs, nil
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersSvc, err := orders.NewService(
		dbClient,
		ordersRepo,
		invoices.NewRepository(dbClient.DB()),
		inventory.NewLedger(),
		outbox.NewService(outboxRepo, logg),
		logg,
	)
	if err != nil {
		return nil, err
	}
	stale, err := cron.NewStalePendingJob(cron.StalePendingJobParams{
		Logger:     logg,
		Orders:     ordersRepo,
		Canceler:   ordersSvc,
		PendingTTL: cfg.Cron.PendingTTL,
	})
	if err != nil {
		return nil, err
	}
	return append(jobs, stale), nil
}
