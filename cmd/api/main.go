package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tinytales/storefront-backend/api/routes"
	"github.com/tinytales/storefront-backend/internal/app"
	"github.com/tinytales/storefront-backend/internal/checkout"
	"github.com/tinytales/storefront-backend/internal/inventory"
	"github.com/tinytales/storefront-backend/internal/invoices"
	"github.com/tinytales/storefront-backend/internal/orders"
	"github.com/tinytales/storefront-backend/internal/payments"
	"github.com/tinytales/storefront-backend/internal/payments/callbacks"
	"github.com/tinytales/storefront-backend/internal/payments/esewa"
	"github.com/tinytales/storefront-backend/internal/payments/khalti"
	"github.com/tinytales/storefront-backend/pkg/auth"
	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/db"
	"github.com/tinytales/storefront-backend/pkg/httpclient"
	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/metrics"
	"github.com/tinytales/storefront-backend/pkg/outbox"
	"github.com/tinytales/storefront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app.Run("api", serve)
}

// serve listens until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, p *app.Process) error {
	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := p.Redis(ctx)
	if err != nil {
		return err
	}
	params, err := buildRouterParams(ctx, p.Config, p.Logger, dbClient, redisClient)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = p.Config.App.Port
	}
	instance := os.Getenv("DYNO")
	if instance == "" {
		instance = "local"
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(routes.NewRouter(params), "api"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx = p.Logger.WithFields(ctx, map[string]any{"addr": server.Addr, "instance": instance})

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	p.Logger.Info(ctx, "api listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildRouterParams(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.RouterParams, error) {
	gormDB := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)
	ledger := inventory.NewLedger()
	inventoryRepo := inventory.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	invoicesRepo := invoices.NewRepository(gormDB)

	ordersSvc, err := orders.NewService(dbClient, ordersRepo, invoicesRepo, ledger, outboxSvc, logg)
	if err != nil {
		return routes.RouterParams{}, err
	}

	invoiceSvc, err := invoices.NewService(invoices.NewNumberer(cfg.Invoice.Prefix), invoicesRepo)
	if err != nil {
		return routes.RouterParams{}, err
	}

	checkoutSvc, err := checkout.NewService(dbClient, inventoryRepo, ledger, ordersRepo, invoiceSvc, outboxSvc, logg)
	if err != nil {
		return routes.RouterParams{}, err
	}

	inventorySvc, err := inventory.NewService(inventoryRepo)
	if err != nil {
		return routes.RouterParams{}, err
	}

	httpClient := httpclient.New(cfg.HTTPClient)
	esewaAdapter := esewa.NewAdapter(cfg.Esewa, cfg.Storefront)
	khaltiClient := khalti.NewClient(cfg.Khalti, cfg.Storefront, httpClient)

	paymentsSvc, err := payments.NewService(ordersSvc, esewaAdapter, khaltiClient, logg)
	if err != nil {
		return routes.RouterParams{}, err
	}

	guard, err := callbacks.NewGuard(redisClient, cfg.Eventing.CallbackIdempotencyTTL)
	if err != nil {
		return routes.RouterParams{}, err
	}
	reconciler, err := callbacks.NewReconciler(
		ordersSvc,
		esewaAdapter,
		khaltiClient,
		guard,
		metrics.NewPaymentCallbackMetrics(prometheus.DefaultRegisterer),
		logg,
	)
	if err != nil {
		return routes.RouterParams{}, err
	}

	if !esewaAdapter.Configured() {
		logg.Warn(ctx, "esewa secret not configured; esewa payments disabled")
	}
	if !khaltiClient.Configured() {
		logg.Warn(ctx, "khalti secret not configured; khalti payments disabled")
	}

	signer, err := auth.NewSigner(cfg.JWT)
	if err != nil {
		return routes.RouterParams{}, err
	}

	return routes.RouterParams{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Cache:     redisClient,
		Gatherer:  prometheus.DefaultGatherer,
		Checkout:  checkoutSvc,
		Orders:    ordersSvc,
		Inventory: inventorySvc,
		Payments:  paymentsSvc,
		Callbacks: reconciler,
		Tokens:    signer,

		HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
	}, nil
}
