package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinytales/storefront-backend/api/middleware"
	internalorders "github.com/tinytales/storefront-backend/internal/orders"
	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/pagination"
)

type stubOrdersService struct {
	internalorders.Service

	list         func(ctx context.Context, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error)
	get          func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	updateStatus func(ctx context.Context, role enums.AdminRole, id uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	updateMethod func(ctx context.Context, role enums.AdminRole, id uuid.UUID, method enums.PaymentMethod) (*models.Order, error)
}

func (s *stubOrdersService) List(ctx context.Context, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error) {
	return s.list(ctx, params, filters)
}

func (s *stubOrdersService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.get(ctx, id)
}

func (s *stubOrdersService) UpdateStatus(ctx context.Context, role enums.AdminRole, id uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	return s.updateStatus(ctx, role, id, status)
}

func (s *stubOrdersService) UpdatePaymentMethod(ctx context.Context, role enums.AdminRole, id uuid.UUID, method enums.PaymentMethod) (*models.Order, error) {
	return s.updateMethod(ctx, role, id, method)
}

func sampleOrder(id uuid.UUID, status enums.OrderStatus) *models.Order {
	return &models.Order{
		ID:            id,
		CustomerName:  "Asha",
		ContactPhone:  "9800000000",
		PaymentMethod: enums.PaymentMethodCOD,
		Status:        status,
		TotalAmount:   decimal.RequireFromString("1000"),
		TaxAmount:     decimal.RequireFromString("130"),
	}
}

func withOrderID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestListParsesFilters(t *testing.T) {
	t.Parallel()

	var gotParams pagination.Params
	var gotFilters internalorders.ListFilters
	svc := &stubOrdersService{list: func(ctx context.Context, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error) {
		gotParams, gotFilters = params, filters
		return &internalorders.OrderList{
			Orders:     []models.Order{*sampleOrder(uuid.New(), enums.OrderStatusPending)},
			NextCursor: "next",
		}, nil
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders?limit=10&cursor=abc&status=pending&paymentMethod=esewa&q=asha", nil)
	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if gotParams.Limit != 10 || gotParams.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", gotParams)
	}
	if gotFilters.Status == nil || *gotFilters.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending status filter")
	}
	if gotFilters.PaymentMethod == nil || *gotFilters.PaymentMethod != enums.PaymentMethodEsewa {
		t.Fatalf("expected esewa filter")
	}
	if gotFilters.Query != "asha" {
		t.Fatalf("unexpected query %q", gotFilters.Query)
	}

	var envelope struct {
		Data orderListResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data.Orders) != 1 || envelope.Data.NextCursor != "next" {
		t.Fatalf("unexpected list %+v", envelope.Data)
	}
	if envelope.Data.Orders[0].AmountDue != "1130.00" {
		t.Fatalf("unexpected amount due %s", envelope.Data.Orders[0].AmountDue)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	svc := &stubOrdersService{list: func(ctx context.Context, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error) {
		t.Errorf("service should not be called")
		return nil, nil
	}}
	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders?status=LOST", nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestDetailNotFound(t *testing.T) {
	t.Parallel()

	svc := &stubOrdersService{get: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}}
	req := withOrderID(httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders/x", nil), uuid.NewString())
	resp := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestDetailInvalidID(t *testing.T) {
	t.Parallel()

	req := withOrderID(httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders/x", nil), "not-a-uuid")
	resp := httptest.NewRecorder()
	Detail(&stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestUpdateStatusPassesActingRole(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	var gotRole enums.AdminRole
	var gotStatus enums.OrderStatus
	svc := &stubOrdersService{updateStatus: func(ctx context.Context, role enums.AdminRole, id uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
		gotRole, gotStatus = role, status
		return sampleOrder(id, status), nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/x/status", strings.NewReader(`{"status":"shipped"}`))
	req = req.WithContext(middleware.WithActor(req.Context(), middleware.Actor{Role: enums.AdminRoleSalesAdmin}))
	req = withOrderID(req, orderID.String())
	resp := httptest.NewRecorder()
	UpdateStatus(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if gotRole != enums.AdminRoleSalesAdmin || gotStatus != enums.OrderStatusShipped {
		t.Fatalf("unexpected role/status %s/%s", gotRole, gotStatus)
	}
}

func TestUpdateStatusForbiddenRole(t *testing.T) {
	t.Parallel()

	svc := &stubOrdersService{updateStatus: func(ctx context.Context, role enums.AdminRole, id uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot change order status")
	}}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/x/status", strings.NewReader(`{"status":"CONFIRMED"}`))
	req = req.WithContext(middleware.WithActor(req.Context(), middleware.Actor{Role: enums.AdminRoleAccountsAdmin}))
	req = withOrderID(req, uuid.NewString())
	resp := httptest.NewRecorder()
	UpdateStatus(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestUpdatePaymentMethod(t *testing.T) {
	t.Parallel()

	var gotMethod enums.PaymentMethod
	svc := &stubOrdersService{updateMethod: func(ctx context.Context, role enums.AdminRole, id uuid.UUID, method enums.PaymentMethod) (*models.Order, error) {
		gotMethod = method
		order := sampleOrder(id, enums.OrderStatusConfirmed)
		order.PaymentMethod = method
		return order, nil
	}}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/x/payment-method", strings.NewReader(`{"paymentMethod":"BANK"}`))
	req = req.WithContext(middleware.WithActor(req.Context(), middleware.Actor{Role: enums.AdminRoleSuperAdmin}))
	req = withOrderID(req, uuid.NewString())
	resp := httptest.NewRecorder()
	UpdatePaymentMethod(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if gotMethod != enums.PaymentMethodBank {
		t.Fatalf("unexpected method %s", gotMethod)
	}
}
