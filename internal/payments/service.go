package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinytales/storefront-backend/internal/payments/esewa"
	"github.com/tinytales/storefront-backend/internal/payments/khalti"
	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/money"
)

type orderStore interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	SetPaymentReference(ctx context.Context, orderID uuid.UUID, reference string) error
}

type esewaForms interface {
	BuildForm(orderID uuid.UUID, amount decimal.Decimal) (*esewa.Form, error)
}

type khaltiInitiator interface {
	Initiate(ctx context.Context, req khalti.InitiateRequest) (*khalti.InitiateResponse, error)
}

// Service starts provider payments for orders that were already committed as PENDING.
// Amounts always come from the stored order.
type Service struct {
	orders orderStore
	esewa  esewaForms
	khalti khaltiInitiator
	logg   *logger.Logger
}

func NewService(orders orderStore, esewaAdapter esewaForms, khaltiClient khaltiInitiator, logg *logger.Logger) (*Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if esewaAdapter == nil {
		return nil, fmt.Errorf("esewa adapter required")
	}
	if khaltiClient == nil {
		return nil, fmt.Errorf("khalti client required")
	}
	return &Service{orders: orders, esewa: esewaAdapter, khalti: khaltiClient, logg: logg}, nil
}

func (s *Service) InitiateEsewa(ctx context.Context, orderID uuid.UUID) (*esewa.Form, error) {
	order, err := s.payableOrder(ctx, orderID, enums.PaymentMethodEsewa)
	if err != nil {
		return nil, err
	}

	form, err := s.esewa.BuildForm(order.ID, order.AmountDue())
	if err != nil {
		return nil, err
	}
	if err := s.orders.SetPaymentReference(ctx, order.ID, form.Fields.TransactionUUID); err != nil {
		return nil, err
	}

	s.logInitiated(ctx, order, form.Fields.TransactionUUID)
	return form, nil
}

func (s *Service) InitiateKhalti(ctx context.Context, orderID uuid.UUID) (*khalti.InitiateResponse, error) {
	order, err := s.payableOrder(ctx, orderID, enums.PaymentMethodKhalti)
	if err != nil {
		return nil, err
	}

	resp, err := s.khalti.Initiate(ctx, khalti.InitiateRequest{
		OrderID:     order.ID,
		AmountPaisa: money.ToPaisa(order.AmountDue()),
		Customer: khalti.Customer{
			Name:  order.CustomerName,
			Email: order.CustomerEmail,
			Phone: order.ContactPhone,
		},
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "khalti initiation failed", err)
		}
		return nil, err
	}
	if err := s.orders.SetPaymentReference(ctx, order.ID, resp.Pidx); err != nil {
		return nil, err
	}

	s.logInitiated(ctx, order, resp.Pidx)
	return resp, nil
}

func (s *Service) payableOrder(ctx context.Context, orderID uuid.UUID, method enums.PaymentMethod) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required")
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != method {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order uses a different payment method").
			WithDetails(map[string]any{"paymentMethod": order.PaymentMethod.String()})
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	return order, nil
}

func (s *Service) logInitiated(ctx context.Context, order *models.Order, reference string) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{
		"provider":   order.PaymentMethod.String(),
		"reference":  reference,
		"amount_due": money.String(order.AmountDue()),
	})
	s.logg.Info(ctx, "payment initiated")
}
