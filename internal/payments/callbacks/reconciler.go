package callbacks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinytales/storefront-backend/internal/orders"
	"github.com/tinytales/storefront-backend/internal/payments/esewa"
	"github.com/tinytales/storefront-backend/internal/payments/gateway"
	"github.com/tinytales/storefront-backend/internal/payments/khalti"
	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/metrics"
	"github.com/tinytales/storefront-backend/pkg/money"
)

type orderSettler interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, payment orders.PaymentConfirmation) (bool, error)
	CancelPending(ctx context.Context, orderID uuid.UUID, cause orders.CancelCause) (bool, error)
}

type esewaVerifier interface {
	Configured() bool
	VerifyCallback(encoded string) (*esewa.CallbackPayload, error)
}

type khaltiLookup interface {
	Configured() bool
	Lookup(ctx context.Context, pidx string) (*khalti.LookupResponse, error)
}

type callbackMetrics interface {
	Observe(provider, outcome string)
}

// Outcome is what the customer's browser is redirected with.
type Outcome struct {
	Success bool
	OrderID string
	Reason  enums.PaymentFailureReason
}

func success(orderID uuid.UUID) Outcome {
	return Outcome{Success: true, OrderID: orderID.String()}
}

func failure(orderID string, reason enums.PaymentFailureReason) Outcome {
	return Outcome{OrderID: orderID, Reason: reason}
}

const (
	defaultSettleWait = 3 * time.Second
	defaultSettlePoll = 150 * time.Millisecond
)

type Reconciler struct {
	orders  orderSettler
	esewa   esewaVerifier
	khalti  khaltiLookup
	guard   *Guard
	metrics callbackMetrics
	logg    *logger.Logger

	// settleWait bounds how long a duplicate callback waits for the first delivery.
	settleWait time.Duration
	settlePoll time.Duration
}

// NewReconciler wires the callback handler. guard and m may be nil.
func NewReconciler(orderSvc orderSettler, esewaAdapter esewaVerifier, khaltiClient khaltiLookup, guard *Guard, m callbackMetrics, logg *logger.Logger) (*Reconciler, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if esewaAdapter == nil {
		return nil, fmt.Errorf("esewa adapter required")
	}
	if khaltiClient == nil {
		return nil, fmt.Errorf("khalti client required")
	}
	if m == nil {
		m = metrics.NewPaymentCallbackMetrics(nil)
	}
	return &Reconciler{
		orders:  orderSvc,
		esewa:   esewaAdapter,
		khalti:  khaltiClient,
		guard:   guard,
		metrics: m,
		logg:    logg,

		settleWait: defaultSettleWait,
		settlePoll: defaultSettlePoll,
	}, nil
}

// HandleEsewa verifies the signed eSewa payload and settles or cancels the order.
func (r *Reconciler) HandleEsewa(ctx context.Context, rawOrderID, data string) Outcome {
	const provider = enums.PaymentMethodEsewa
	out := r.handleEsewa(ctx, rawOrderID, strings.TrimSpace(data))
	r.observe(provider, out)
	return out
}

func (r *Reconciler) handleEsewa(ctx context.Context, rawOrderID, data string) Outcome {
	const provider = enums.PaymentMethodEsewa

	orderID, ok := parseOrderID(rawOrderID)
	if !ok || data == "" {
		return failure(rawOrderID, enums.PaymentFailureInvalidCallback)
	}
	ctx = r.withOrder(ctx, orderID, provider)
	if !r.esewa.Configured() {
		r.warn(ctx, "esewa secret is not configured")
		return failure(rawOrderID, enums.PaymentFailureServerConfig)
	}

	order, out, done := r.pendingOrder(ctx, orderID, provider)
	if done {
		return out
	}

	if out, done := r.claim(ctx, provider, orderID, data); done {
		return out
	}

	payload, err := r.esewa.VerifyCallback(data)
	if err != nil {
		r.error(ctx, "esewa callback could not be decoded", err)
		r.cancel(ctx, orderID, provider, enums.PaymentFailureEsewaProcessing)
		return failure(rawOrderID, enums.PaymentFailureEsewaProcessing)
	}
	if reason := esewaMismatch(order, payload); reason != "" {
		r.warn(r.withField(ctx, "verification", reason), "esewa callback failed verification")
		r.cancel(ctx, orderID, provider, enums.PaymentFailureEsewaVerification)
		return failure(rawOrderID, enums.PaymentFailureEsewaVerification)
	}

	return r.confirm(ctx, order, provider, payload.TransactionUUID, data, enums.PaymentFailureEsewaProcessing)
}

// HandleKhalti looks the payment up server-to-server and settles or cancels the order.
func (r *Reconciler) HandleKhalti(ctx context.Context, rawOrderID, pidx string) Outcome {
	const provider = enums.PaymentMethodKhalti
	out := r.handleKhalti(ctx, rawOrderID, strings.TrimSpace(pidx))
	r.observe(provider, out)
	return out
}

func (r *Reconciler) handleKhalti(ctx context.Context, rawOrderID, pidx string) Outcome {
	const provider = enums.PaymentMethodKhalti

	orderID, ok := parseOrderID(rawOrderID)
	if !ok || pidx == "" {
		return failure(rawOrderID, enums.PaymentFailureInvalidCallback)
	}
	ctx = r.withOrder(ctx, orderID, provider)
	if !r.khalti.Configured() {
		r.warn(ctx, "khalti secret is not configured")
		return failure(rawOrderID, enums.PaymentFailureServerConfig)
	}

	order, out, done := r.pendingOrder(ctx, orderID, provider)
	if done {
		return out
	}
	// The lookup does not name the order, so the pidx must be the one this order initiated.
	if order.PaymentReference == nil || *order.PaymentReference != pidx {
		r.warn(ctx, "khalti pidx does not match the initiated payment")
		return failure(rawOrderID, enums.PaymentFailureInvalidCallback)
	}

	if out, done := r.claim(ctx, provider, orderID, pidx); done {
		return out
	}

	lookup, err := r.khalti.Lookup(ctx, pidx)
	if err != nil {
		r.error(ctx, "khalti lookup failed", err)
		r.cancel(ctx, orderID, provider, enums.PaymentFailureKhaltiLookup)
		return failure(rawOrderID, enums.PaymentFailureKhaltiLookup)
	}
	if !lookup.Completed() {
		reason := enums.KhaltiStatusReason(lookup.Status)
		r.warn(r.withField(ctx, "khalti_status", lookup.Status), "khalti payment not completed")
		r.cancel(ctx, orderID, provider, reason)
		return failure(rawOrderID, reason)
	}
	if expected := money.ToPaisa(order.AmountDue()); lookup.TotalAmount != expected {
		reason := enums.KhaltiStatusReason("amount_mismatch")
		r.warn(r.withField(ctx, "khalti_amount", lookup.TotalAmount), "khalti amount does not match order")
		r.cancel(ctx, orderID, provider, reason)
		return failure(rawOrderID, reason)
	}

	return r.confirm(ctx, order, provider, pidx, pidx, enums.PaymentFailureKhaltiProcessing)
}

// pendingOrder loads the order and resolves callbacks for orders that already left
// PENDING without touching them again.
func (r *Reconciler) pendingOrder(ctx context.Context, orderID uuid.UUID, provider enums.PaymentMethod) (*models.Order, Outcome, bool) {
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			r.warn(ctx, "callback for unknown order")
			return nil, failure(orderID.String(), enums.PaymentFailureInvalidCallback), true
		}
		r.error(ctx, "load order for callback", err)
		r.cancel(ctx, orderID, provider, processingReason(provider))
		return nil, failure(orderID.String(), processingReason(provider)), true
	}
	if order.PaymentMethod != provider {
		r.warn(r.withField(ctx, "order_method", order.PaymentMethod.String()), "callback provider does not match order")
		return nil, failure(orderID.String(), enums.PaymentFailureInvalidCallback), true
	}
	if order.Status != enums.OrderStatusPending {
		return nil, settledOutcome(order), true
	}
	return order, Outcome{}, false
}

// claim applies the replay guard. A replay that loses the race waits for the first
// delivery to settle the order and is answered from the order's state.
func (r *Reconciler) claim(ctx context.Context, provider enums.PaymentMethod, orderID uuid.UUID, evidence string) (Outcome, bool) {
	if r.guard == nil {
		return Outcome{}, false
	}
	seen, err := r.guard.CheckAndMark(ctx, provider, orderID, evidence)
	if err != nil {
		r.warn(r.withField(ctx, "error", err.Error()), "callback guard unavailable")
		return Outcome{}, false
	}
	if !seen {
		return Outcome{}, false
	}
	return r.awaitSettled(ctx, orderID), true
}

func (r *Reconciler) awaitSettled(ctx context.Context, orderID uuid.UUID) Outcome {
	deadline := time.NewTimer(r.settleWait)
	defer deadline.Stop()
	poll := time.NewTicker(r.settlePoll)
	defer poll.Stop()

	for {
		order, err := r.orders.Get(ctx, orderID)
		if err == nil && order.Status != enums.OrderStatusPending {
			return settledOutcome(order)
		}
		select {
		case <-ctx.Done():
			return failure(orderID.String(), enums.PaymentFailurePending)
		case <-deadline.C:
			r.warn(ctx, "duplicate callback timed out waiting for the first delivery")
			return failure(orderID.String(), enums.PaymentFailurePending)
		case <-poll.C:
		}
	}
}

func (r *Reconciler) confirm(ctx context.Context, order *models.Order, provider enums.PaymentMethod, reference, evidence string, processing enums.PaymentFailureReason) Outcome {
	applied, err := r.orders.ConfirmPayment(ctx, order.ID, orders.PaymentConfirmation{Provider: provider, Reference: reference})
	if err != nil {
		r.error(r.withField(ctx, "reference", reference), "confirm verified payment", err)
		r.cancel(ctx, order.ID, provider, processing)
		if relErr := r.guard.Release(ctx, provider, order.ID, evidence); relErr != nil {
			r.warn(r.withField(ctx, "error", relErr.Error()), "release callback guard")
		}
		return failure(order.ID.String(), processing)
	}
	if !applied {
		current, err := r.orders.Get(ctx, order.ID)
		if err != nil {
			return failure(order.ID.String(), enums.PaymentFailureAlreadyProcessed)
		}
		return settledOutcome(current)
	}
	if r.logg != nil {
		r.logg.Info(r.withField(ctx, "reference", reference), "payment confirmed")
	}
	return success(order.ID)
}

// cancel releases the order's stock. Its failure is logged and never changes the
// outcome already decided for the customer.
func (r *Reconciler) cancel(ctx context.Context, orderID uuid.UUID, provider enums.PaymentMethod, reason enums.PaymentFailureReason) {
	applied, err := r.orders.CancelPending(ctx, orderID, orders.CancelCause{Provider: provider, Reason: reason})
	if err != nil {
		r.error(ctx, "cancel order after failed payment", err)
		return
	}
	if applied && r.logg != nil {
		r.logg.Info(r.withField(ctx, "reason", reason.String()), "order canceled after failed payment")
	}
}

func settledOutcome(order *models.Order) Outcome {
	switch order.Status {
	case enums.OrderStatusCanceled, enums.OrderStatusReturned:
		return failure(order.ID.String(), enums.PaymentFailureAlreadyProcessed)
	default:
		return success(order.ID)
	}
}

func esewaMismatch(order *models.Order, payload *esewa.CallbackPayload) string {
	if !payload.SignatureValid {
		return "signature"
	}
	if payload.Status != esewa.StatusComplete {
		return "status"
	}
	// Every form built for the order carries its prefix, and the signature covers the
	// uuid, so a payment made from an older form still settles the order.
	if !strings.HasPrefix(payload.TransactionUUID, "TT-"+gateway.ShortOrderRef(order.ID)+"-") {
		return "transaction_uuid"
	}
	amount, err := payload.Amount()
	if err != nil || !money.Round2(amount).Equal(money.Round2(order.AmountDue())) {
		return "amount"
	}
	return ""
}

func processingReason(provider enums.PaymentMethod) enums.PaymentFailureReason {
	if provider == enums.PaymentMethodKhalti {
		return enums.PaymentFailureKhaltiProcessing
	}
	return enums.PaymentFailureEsewaProcessing
}

func parseOrderID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func (r *Reconciler) observe(provider enums.PaymentMethod, out Outcome) {
	outcome := metrics.OutcomeFailed
	switch {
	case out.Success:
		outcome = metrics.OutcomeSuccess
	case out.Reason == enums.PaymentFailureAlreadyProcessed, out.Reason == enums.PaymentFailurePending:
		outcome = metrics.OutcomeDuplicate
	}
	r.metrics.Observe(provider.String(), outcome)
}

func (r *Reconciler) withOrder(ctx context.Context, orderID uuid.UUID, provider enums.PaymentMethod) context.Context {
	if r.logg == nil {
		return ctx
	}
	return r.logg.WithPayment(ctx, orderID.String(), provider.String())
}

func (r *Reconciler) withField(ctx context.Context, key string, value any) context.Context {
	if r.logg == nil {
		return ctx
	}
	return r.logg.WithField(ctx, key, value)
}

func (r *Reconciler) warn(ctx context.Context, msg string) {
	if r.logg != nil {
		r.logg.Warn(ctx, msg)
	}
}

func (r *Reconciler) error(ctx context.Context, msg string, err error) {
	if r.logg != nil {
		r.logg.Error(ctx, msg, err)
	}
}
