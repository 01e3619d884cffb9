package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/tinytales/storefront-backend/internal/orders"
	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
	"github.com/tinytales/storefront-backend/pkg/logger"
)

const (
	defaultPendingTTL    = 48 * time.Hour
	stalePendingPageSize = 100
)

// StalePendingJobParams configure the sweep that expires abandoned provider checkouts.
type StalePendingJobParams struct {
	Logger     *logger.Logger
	Orders     pendingOrderFinder
	Canceler   pendingCanceler
	PendingTTL time.Duration
}

type pendingOrderFinder interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time, methods []enums.PaymentMethod, limit int) ([]models.Order, error)
}

type pendingCanceler interface {
	CancelPending(ctx context.Context, orderID uuid.UUID, cause orders.CancelCause) (bool, error)
}

// NewStalePendingJob builds the job that cancels eSewa and Khalti orders whose customer
// never returned from the gateway, releasing their reserved stock.
func NewStalePendingJob(params StalePendingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Canceler == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &stalePendingJob{
		logg:     params.Logger,
		orders:   params.Orders,
		canceler: params.Canceler,
		ttl:      ttl,
		pageSize: stalePendingPageSize,
		now:      time.Now,
	}, nil
}

type stalePendingJob struct {
	logg     *logger.Logger
	orders   pendingOrderFinder
	canceler pendingCanceler
	ttl      time.Duration
	pageSize int
	now      func() time.Time
}

func (j *stalePendingJob) Name() string { return "stale-pending-orders" }

func (j *stalePendingJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	methods := []enums.PaymentMethod{enums.PaymentMethodEsewa, enums.PaymentMethodKhalti}

	var errs []error
	expired := 0
	seen := map[uuid.UUID]struct{}{}
	for {
		batch, err := j.orders.FindPendingBefore(ctx, cutoff, methods, j.pageSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("query stale pending orders: %w", err))
			break
		}
		progressed := false
		for _, order := range batch {
			if _, ok := seen[order.ID]; ok {
				continue
			}
			seen[order.ID] = struct{}{}
			progressed = true

			applied, err := j.canceler.CancelPending(ctx, order.ID, orders.CancelCause{
				Provider: order.PaymentMethod,
				Expired:  true,
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
				continue
			}
			if applied {
				expired++
				logCtx := j.logg.WithOrderID(ctx, order.ID.String())
				logCtx = j.logg.WithFields(logCtx, map[string]any{
					"payment_method": order.PaymentMethod.String(),
					"pending_since":  order.CreatedAt,
				})
				j.logg.Info(logCtx, "stale pending order expired")
			}
		}
		if len(batch) < j.pageSize || !progressed {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"orders_closed": expired,
	})
	j.logg.Info(logCtx, "stale pending sweep complete")
	return multierr.Combine(errs...)
}
