package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tinytales/storefront-backend/internal/invoices"
	dbpkg "github.com/tinytales/storefront-backend/pkg/db"
	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/money"
	"github.com/tinytales/storefront-backend/pkg/outbox"
	"github.com/tinytales/storefront-backend/pkg/outbox/payloads"
	"github.com/tinytales/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockRestorer interface {
	RestockItems(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitOnce(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the order lifecycle after checkout.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	UpdateStatus(ctx context.Context, actingRole enums.AdminRole, orderID uuid.UUID, newStatus enums.OrderStatus) (*models.Order, error)
	UpdatePaymentMethod(ctx context.Context, actingRole enums.AdminRole, orderID uuid.UUID, method enums.PaymentMethod) (*models.Order, error)
	SetPaymentReference(ctx context.Context, orderID uuid.UUID, reference string) error
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, payment PaymentConfirmation) (bool, error)
	CancelPending(ctx context.Context, orderID uuid.UUID, cause CancelCause) (bool, error)
}

type service struct {
	tx       txRunner
	repo     Repository
	invoices invoices.Repository
	ledger   stockRestorer
	outbox   outboxPublisher
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(
	tx txRunner,
	repo Repository,
	invoiceRepo invoices.Repository,
	ledger stockRestorer,
	publisher outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if invoiceRepo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		invoices: invoiceRepo,
		ledger:   ledger,
		outbox:   publisher,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list orders")
	}
	return list, nil
}

// UpdateStatus applies an admin status change. Stock is returned on a return, or on a
// cancel before the order ships, and customer-facing statuses queue a notification in the same
// transaction; delivery of that notification never affects the transition.
func (s *service) UpdateStatus(ctx context.Context, actingRole enums.AdminRole, orderID uuid.UUID, newStatus enums.OrderStatus) (*models.Order, error) {
	if !actingRole.In(enums.AdminRoleSuperAdmin, enums.AdminRoleSalesAdmin) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot change order status")
	}
	if !newStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": string(newStatus)})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		from := order.Status
		if from == newStatus {
			return nil
		}
		if !CanTransition(from, newStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
				WithDetails(map[string]any{"from": string(from), "to": string(newStatus)})
		}

		applied, err := repo.UpdateStatus(ctx, orderID, from, newStatus)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
		}

		if RestocksOnEntry(from, newStatus) {
			if err := s.restock(ctx, tx, repo, orderID); err != nil {
				return err
			}
		}
		if newStatus == enums.OrderStatusCanceled && from == enums.OrderStatusPending {
			if _, err := s.invoices.WithTx(tx).MarkCancelled(ctx, orderID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel invoice")
			}
		}

		order.Status = newStatus
		if newStatus.NotifiesCustomer() {
			actor := &outbox.ActorRef{Role: string(actingRole)}
			if err := s.emitStatusChanged(ctx, tx, order, from, actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, orderID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{"status": string(newStatus), "role": string(actingRole)})
		s.logg.Info(logCtx, "order status updated")
	}
	return s.Get(ctx, orderID)
}

func (s *service) UpdatePaymentMethod(ctx context.Context, actingRole enums.AdminRole, orderID uuid.UUID, method enums.PaymentMethod) (*models.Order, error) {
	if !actingRole.In(enums.AdminRoleSuperAdmin, enums.AdminRoleSalesAdmin, enums.AdminRoleAccountsAdmin) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot change payment method")
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if err := s.repo.UpdatePaymentMethod(ctx, orderID, method); err != nil {
		return nil, mapLoadError(err)
	}
	return s.Get(ctx, orderID)
}

const (
	paymentReferenceConstraint = "ux_orders_payment_reference"
	paymentReferenceColumn     = "orders.payment_reference"
)

// SetPaymentReference records the provider reference for a pending payment. A reference
// belongs to one order only.
func (s *service) SetPaymentReference(ctx context.Context, orderID uuid.UUID, reference string) error {
	if err := s.repo.SetPaymentReference(ctx, orderID, reference); err != nil {
		if dbpkg.IsUniqueViolation(err, paymentReferenceConstraint, paymentReferenceColumn) {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment reference already used by another order")
		}
		return mapLoadError(err)
	}
	return nil
}

// ConfirmPayment settles a PENDING order after provider verification. It reports false
// when the order already left PENDING, which makes repeated callbacks harmless.
func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID, payment PaymentConfirmation) (bool, error) {
	var applied bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.UpdateStatus(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm order")
		}
		if !ok {
			return nil
		}
		applied = true

		if payment.Reference != "" {
			if err := repo.SetPaymentReference(ctx, orderID, payment.Reference); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment reference")
			}
		}
		if _, err := s.invoices.WithTx(tx).MarkPaid(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark invoice paid")
		}

		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		if err := s.emitStatusChanged(ctx, tx, order, enums.OrderStatusPending, nil); err != nil {
			return err
		}
		if order.Invoice == nil {
			return nil
		}
		return s.outbox.EmitOnce(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentSettled,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   order.Invoice.ID,
			Version:       1,
			Data: payloads.PaymentSettledEvent{
				OrderID:    order.ID,
				InvoiceID:  order.Invoice.ID,
				Provider:   payment.Provider,
				Reference:  payment.Reference,
				AmountPaid: money.String(order.Invoice.AmountDue),
				SettledAt:  s.now().UTC(),
			},
		})
	})
	return applied, err
}

// CancelPending cancels an order that is still PENDING, returns its stock, and voids the
// invoice. It reports false when the order was no longer PENDING.
func (s *service) CancelPending(ctx context.Context, orderID uuid.UUID, cause CancelCause) (bool, error) {
	var applied bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		ok, err := repo.UpdateStatus(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusCanceled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}
		if !ok {
			return nil
		}
		applied = true

		if err := s.restock(ctx, tx, repo, orderID); err != nil {
			return err
		}
		if _, err := s.invoices.WithTx(tx).MarkCancelled(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel invoice")
		}

		now := s.now().UTC()
		if cause.Reason != "" {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentFailed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Version:       1,
				Data: payloads.PaymentFailedEvent{
					OrderID:  orderID,
					Provider: cause.Provider,
					Reason:   cause.Reason,
					FailedAt: now,
				},
			}); err != nil {
				return err
			}
		}
		if cause.Expired {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Version:       1,
				Data: payloads.OrderExpiredEvent{
					OrderID:      orderID,
					Method:       order.PaymentMethod,
					PendingSince: order.CreatedAt,
					ExpiredAt:    now,
				},
			})
		}
		return nil
	})
	return applied, err
}

func (s *service) restock(ctx context.Context, tx *gorm.DB, repo Repository, orderID uuid.UUID) error {
	items, err := repo.FindItems(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order items")
	}
	return s.ledger.RestockItems(ctx, tx, items)
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, from enums.OrderStatus, actor *outbox.ActorRef) error {
	event := payloads.OrderStatusChangedEvent{
		OrderID:        order.ID,
		PreviousStatus: from,
		Status:         order.Status,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		AmountDue:      money.String(order.AmountDue()),
		ChangedAt:      s.now().UTC(),
	}
	if order.Invoice != nil {
		event.InvoiceNumber = order.Invoice.InvoiceNumber
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Version:       1,
		Data:          event,
	})
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}
