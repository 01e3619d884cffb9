package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tinytales/storefront-backend/internal/inventory"
	"github.com/tinytales/storefront-backend/internal/orders"
	"github.com/tinytales/storefront-backend/internal/pricing"
	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/money"
	"github.com/tinytales/storefront-backend/pkg/outbox"
	"github.com/tinytales/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, sku string, qty int) error
}

type invoiceIssuer interface {
	Issue(ctx context.Context, tx *gorm.DB, order models.Order, amountDue, tax decimal.Decimal) (*models.Invoice, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// NextAction tells the storefront what to do after the order is created.
type NextAction string

const (
	// NextActionNone means payment is collected offline and an admin confirms the order.
	NextActionNone NextAction = "none"
	// NextActionRedirect means the customer must be sent to the payment provider.
	NextActionRedirect NextAction = "redirect"
)

// Customer captures contact and shipping details for a guest order.
type Customer struct {
	Name            string
	Email           *string
	Phone           string
	Address         string
	IsInternational bool
}

// ItemInput is one requested line.
type ItemInput struct {
	VariantID uuid.UUID
	Quantity  int
}

// CreateOrderInput is the checkout request.
type CreateOrderInput struct {
	Customer      Customer
	PaymentMethod string
	Items         []ItemInput
	UserID        *uuid.UUID
}

// Result is the committed order with its invoice.
type Result struct {
	Order      *models.Order
	Invoice    *models.Invoice
	NextAction NextAction
}

// Service executes checkout orchestration.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Result, error)
}

type service struct {
	tx       txRunner
	variants inventory.Repository
	ledger   stockReserver
	orders   orders.Repository
	invoices invoiceIssuer
	outbox   outboxPublisher
	logg     *logger.Logger
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	variants inventory.Repository,
	ledger stockReserver,
	ordersRepo orders.Repository,
	invoices invoiceIssuer,
	publisher outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if variants == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if invoices == nil {
		return nil, fmt.Errorf("invoice issuer required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:       tx,
		variants: variants,
		ledger:   ledger,
		orders:   ordersRepo,
		invoices: invoices,
		outbox:   publisher,
		logg:     logg,
	}, nil
}

// CreateOrder validates the request, then reserves stock, prices the lines, and writes the
// PENDING order with its items, invoice and outbox event in one transaction. Any failure
// rolls all of it back.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Result, error) {
	method, items, err := validateInput(input)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ids := make([]uuid.UUID, len(items))
		for i, item := range items {
			ids[i] = item.VariantID
		}
		variants, err := s.variants.WithTx(tx).LoadVariants(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variants")
		}

		lines := make([]pricing.Line, 0, len(items))
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			variant, ok := variants[item.VariantID]
			if !ok || variant.Product == nil {
				return inventory.VariantNotFound(item.VariantID)
			}
			if variant.StockCount < item.Quantity {
				return inventory.InsufficientStock(variant.SKU)
			}
			price := variant.Product.BasePrice
			lines = append(lines, pricing.Line{UnitPrice: price, Quantity: item.Quantity})
			orderItems = append(orderItems, models.OrderItem{
				VariantID:       variant.ID,
				Quantity:        item.Quantity,
				PriceAtPurchase: price,
			})
		}

		// Reserve in a stable order so concurrent checkouts lock rows the same way.
		for _, idx := range reservationOrder(items) {
			variant := variants[items[idx].VariantID]
			if err := s.ledger.Reserve(ctx, tx, variant.ID, variant.SKU, items[idx].Quantity); err != nil {
				return err
			}
		}

		totals := pricing.Calculate(lines).Rounded()
		order := &models.Order{
			CustomerName:    strings.TrimSpace(input.Customer.Name),
			CustomerEmail:   normalizeEmail(input.Customer.Email),
			ContactPhone:    strings.TrimSpace(input.Customer.Phone),
			ShippingAddress: strings.TrimSpace(input.Customer.Address),
			IsInternational: input.Customer.IsInternational,
			PaymentMethod:   method,
			TotalAmount:     totals.Subtotal,
			TaxAmount:       totals.Tax,
			Status:          enums.OrderStatusPending,
			UserID:          input.UserID,
			Items:           orderItems,
		}
		if err := s.orders.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		invoice, err := s.invoices.Issue(ctx, tx, *order, totals.Total, totals.Tax)
		if err != nil {
			return err
		}
		order.Invoice = invoice

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				InvoiceNumber: invoice.InvoiceNumber,
				PaymentMethod: method,
				AmountDue:     money.String(invoice.AmountDue),
				ItemCount:     len(orderItems),
				CustomerEmail: order.CustomerEmail,
			},
		}); err != nil {
			return err
		}

		result = &Result{Order: order, Invoice: invoice, NextAction: nextActionFor(method)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, result.Order.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"invoice_number": result.Invoice.InvoiceNumber,
			"payment_method": string(result.Order.PaymentMethod),
			"amount_due":     money.String(result.Invoice.AmountDue),
		})
		s.logg.Info(logCtx, "order created")
	}
	return result, nil
}

func validateInput(input CreateOrderInput) (enums.PaymentMethod, []ItemInput, error) {
	if len(input.Items) == 0 {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "Order must contain at least one item")
	}
	missing := []string{}
	if strings.TrimSpace(input.Customer.Name) == "" {
		missing = append(missing, "customerName")
	}
	if strings.TrimSpace(input.Customer.Phone) == "" {
		missing = append(missing, "contactPhone")
	}
	if strings.TrimSpace(input.Customer.Address) == "" {
		missing = append(missing, "shippingAddress")
	}
	if len(missing) > 0 {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "customer details incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	method, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
			WithDetails(map[string]any{"paymentMethod": input.PaymentMethod})
	}

	merged := make([]ItemInput, 0, len(input.Items))
	index := make(map[uuid.UUID]int, len(input.Items))
	for _, item := range input.Items {
		if item.VariantID == uuid.Nil {
			return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
		}
		if item.Quantity < 1 {
			return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"variantId": item.VariantID.String()})
		}
		if pos, ok := index[item.VariantID]; ok {
			merged[pos].Quantity += item.Quantity
			continue
		}
		index[item.VariantID] = len(merged)
		merged = append(merged, item)
	}
	return method, merged, nil
}

func reservationOrder(items []ItemInput) []int {
	order := make([]int, len(items))
	for i := range items {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return items[order[a]].VariantID.String() < items[order[b]].VariantID.String()
	})
	return order
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*email)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// nextActionFor tells the storefront whether to hand off to a provider. Every order
// starts PENDING either way.
func nextActionFor(method enums.PaymentMethod) NextAction {
	if method.IsImmediateSettlement() {
		return NextActionNone
	}
	return NextActionRedirect
}
