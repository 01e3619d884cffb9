package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinytales/storefront-backend/api/controllers"
	inventorycontrollers "github.com/tinytales/storefront-backend/api/controllers/inventory"
	ordercontrollers "github.com/tinytales/storefront-backend/api/controllers/orders"
	paymentcontrollers "github.com/tinytales/storefront-backend/api/controllers/payments"
	"github.com/tinytales/storefront-backend/api/middleware"
	checkoutsvc "github.com/tinytales/storefront-backend/internal/checkout"
	"github.com/tinytales/storefront-backend/internal/inventory"
	"github.com/tinytales/storefront-backend/internal/orders"
	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/enums"
	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/metrics"
	pkgredis "github.com/tinytales/storefront-backend/pkg/redis"
)

// CacheStore is the Redis surface the HTTP layer needs.
type CacheStore interface {
	pkgredis.IdempotencyStore
	middleware.RateLimitStore
	Ping(ctx context.Context) error
}

// RouterParams carries the services mounted on the API.
type RouterParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        controllers.Pinger
	Cache     CacheStore
	Gatherer  prometheus.Gatherer
	Checkout  checkoutsvc.Service
	Orders    orders.Service
	Inventory inventory.Service
	Payments  paymentcontrollers.Initiator
	Callbacks paymentcontrollers.CallbackHandler
	Tokens    middleware.TokenVerifier
	// HTTPMetrics may be nil; requests are then only logged.
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.AccessLog(logg, p.HTTPMetrics),
		middleware.CORS(cfg.Storefront.SiteURL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": p.DB,
			"redis":    p.Cache,
		}))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.Window, cfg.RateLimit.IPLimit, cfg.RateLimit.PhoneLimit)
	paymentPolicy := middleware.NewRateLimitPolicy("payment_initiate", cfg.RateLimit.Window, cfg.RateLimit.IPLimit, 0)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", controllers.Ping("public"))

		r.With(
			middleware.Idempotent(p.Cache, logg, middleware.CheckoutReplayTTL),
			middleware.RateLimit(checkoutPolicy, p.Cache, logg),
		).Post("/checkout", controllers.Checkout(p.Checkout, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(
					middleware.Idempotent(p.Cache, logg, middleware.DefaultReplayTTL),
					middleware.RateLimit(paymentPolicy, p.Cache, logg),
				)
				r.Post("/esewa/initiate", paymentcontrollers.InitiateEsewa(p.Payments, logg))
				r.Post("/khalti/initiate", paymentcontrollers.InitiateKhalti(p.Payments, logg))
			})
			r.Get("/esewa/callback", paymentcontrollers.EsewaCallback(p.Callbacks, cfg.Storefront.SiteURL))
			r.Get("/khalti/callback", paymentcontrollers.KhaltiCallback(p.Callbacks, cfg.Storefront.SiteURL))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(p.Tokens, logg))
		r.Use(middleware.RequireAnyRole(logg, enums.AdminRoleSuperAdmin, enums.AdminRoleSalesAdmin, enums.AdminRoleAccountsAdmin))
		r.Use(middleware.Idempotent(p.Cache, logg, middleware.DefaultReplayTTL))

		r.Get("/ping", controllers.Ping("admin"))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			r.With(middleware.RequireAnyRole(logg, enums.AdminRoleSuperAdmin, enums.AdminRoleSalesAdmin)).
				Post("/{orderId}/status", ordercontrollers.UpdateStatus(p.Orders, logg))
			r.Post("/{orderId}/payment-method", ordercontrollers.UpdatePaymentMethod(p.Orders, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/low-stock", inventorycontrollers.LowStock(p.Inventory, logg))
			r.With(middleware.RequireAnyRole(logg, enums.AdminRoleSuperAdmin)).
				Put("/variants/{variantId}/stock", inventorycontrollers.UpdateStock(p.Inventory, logg))
		})
	})

	return r
}
