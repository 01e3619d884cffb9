package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	checkoutsvc "github.com/tinytales/storefront-backend/internal/checkout"
	"github.com/tinytales/storefront-backend/internal/inventory"
	"github.com/tinytales/storefront-backend/internal/orders"
	"github.com/tinytales/storefront-backend/internal/payments/callbacks"
	"github.com/tinytales/storefront-backend/internal/payments/esewa"
	"github.com/tinytales/storefront-backend/internal/payments/khalti"
	pkgauth "github.com/tinytales/storefront-backend/pkg/auth"
	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryCache struct {
	data     map[string]string
	counters map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}, counters: map[string]int64{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryCache) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryCache) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memoryCache) RateLimitKey(scope string) string {
	return "rl:" + scope
}

func (m *memoryCache) Ping(context.Context) error {
	return nil
}

type stubCheckout struct {
	calls int
}

func (s *stubCheckout) CreateOrder(ctx context.Context, input checkoutsvc.CreateOrderInput) (*checkoutsvc.Result, error) {
	s.calls++
	order := &models.Order{ID: uuid.New(), CustomerName: input.Customer.Name, Status: enums.OrderStatusPending}
	invoice := &models.Invoice{ID: uuid.New(), OrderID: order.ID, InvoiceNumber: fmt.Sprintf("TT-2026-%04d", s.calls)}
	return &checkoutsvc.Result{Order: order, Invoice: invoice, NextAction: checkoutsvc.NextActionNone}, nil
}

type stubOrders struct {
	orders.Service
}

func (stubOrders) List(ctx context.Context, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (stubOrders) UpdateStatus(ctx context.Context, role enums.AdminRole, id uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	return &models.Order{ID: id, Status: status}, nil
}

type stubInventory struct {
	inventory.Service
}

func (stubInventory) UpdateStock(ctx context.Context, role enums.AdminRole, id uuid.UUID, count int) (*models.ProductVariant, error) {
	return &models.ProductVariant{ID: id, StockCount: count}, nil
}

type stubPayments struct{}

func (stubPayments) InitiateEsewa(ctx context.Context, orderID uuid.UUID) (*esewa.Form, error) {
	return &esewa.Form{Endpoint: "https://esewa.test/form"}, nil
}

func (stubPayments) InitiateKhalti(ctx context.Context, orderID uuid.UUID) (*khalti.InitiateResponse, error) {
	return &khalti.InitiateResponse{PaymentURL: "https://khalti.test/pay", Pidx: "p"}, nil
}

type stubCallbacks struct{}

func (stubCallbacks) HandleEsewa(ctx context.Context, rawOrderID, data string) callbacks.Outcome {
	return callbacks.Outcome{Reason: enums.PaymentFailureInvalidCallback}
}

func (stubCallbacks) HandleKhalti(ctx context.Context, rawOrderID, pidx string) callbacks.Outcome {
	return callbacks.Outcome{Success: true, OrderID: rawOrderID}
}

func testConfig() *config.Config {
	return &config.Config{
		App:        config.AppConfig{Env: "test", Port: "0"},
		JWT:        config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60},
		Storefront: config.StorefrontConfig{SiteURL: "https://shop.test"},
		RateLimit:  config.RateLimitConfig{Window: time.Minute, IPLimit: 100, PhoneLimit: 2},
	}
}

type testRouter struct {
	http.Handler
	checkout *stubCheckout
}

func newTestRouter(cfg *config.Config) testRouter {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	checkout := &stubCheckout{}
	return testRouter{
		Handler: NewRouter(RouterParams{
			Config:    cfg,
			Logger:    logg,
			DB:        stubPinger{},
			Cache:     newMemoryCache(),
			Gatherer:  prometheus.NewRegistry(),
			Checkout:  checkout,
			Orders:    stubOrders{},
			Inventory: stubInventory{},
			Payments:  stubPayments{},
			Callbacks: stubCallbacks{},
			Tokens:    mustSigner(cfg),
		}),
		checkout: checkout,
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.AdminRole) string {
	t.Helper()
	token, err := mustSigner(cfg).Issue(uuid.New(), role)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func mustSigner(cfg *config.Config) *pkgauth.Signer {
	signer, err := pkgauth.NewSigner(cfg.JWT)
	if err != nil {
		panic(err)
	}
	return signer
}

const checkoutBody = `{"customerName":"Asha","contactPhone":"98-0000-0000","shippingAddress":"Lalitpur","paymentMethod":"COD","items":[{"variantId":"%s","quantity":1}]}`

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(testConfig())

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	router := newTestRouter(testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(fmt.Sprintf(checkoutBody, uuid.NewString())))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key got %d", resp.Code)
	}
	if router.checkout.calls != 0 {
		t.Fatalf("checkout should not run without a key")
	}
}

func TestCheckoutReplaysSameKey(t *testing.T) {
	router := newTestRouter(testConfig())
	body := fmt.Sprintf(checkoutBody, uuid.NewString())

	var first string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "key-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d: %s", i, resp.Code, resp.Body.String())
		}
		if i == 0 {
			first = resp.Body.String()
		} else if resp.Body.String() != first {
			t.Fatalf("expected replayed body")
		}
	}
	if router.checkout.calls != 1 {
		t.Fatalf("expected one checkout, got %d", router.checkout.calls)
	}
}

func TestCheckoutRateLimitedPerPhone(t *testing.T) {
	router := newTestRouter(testConfig())

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(fmt.Sprintf(checkoutBody, uuid.NewString())))
		req.Header.Set("Idempotency-Key", fmt.Sprintf("key-%d", i))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
}

func TestPaymentCallbacksRedirect(t *testing.T) {
	router := newTestRouter(testConfig())
	orderID := uuid.NewString()

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/payments/khalti/callback?orderId="+orderID+"&pidx=p", nil))
	if resp.Code != http.StatusFound || resp.Header().Get("Location") != "https://shop.test/checkout/success?orderId="+orderID {
		t.Fatalf("unexpected khalti redirect %d %s", resp.Code, resp.Header().Get("Location"))
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/payments/esewa/callback", nil))
	if resp.Code != http.StatusFound || resp.Header().Get("Location") != "https://shop.test/checkout?error=invalid_callback" {
		t.Fatalf("unexpected esewa redirect %d %s", resp.Code, resp.Header().Get("Location"))
	}
}

func TestAdminRoutesRequireJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestAdminOrderListAllowsEveryAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	for _, role := range []enums.AdminRole{enums.AdminRoleSuperAdmin, enums.AdminRoleSalesAdmin, enums.AdminRoleAccountsAdmin} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, role))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", role, resp.Code)
		}
	}
}

func TestAdminStatusRouteRoles(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	cases := []struct {
		role enums.AdminRole
		want int
	}{
		{role: enums.AdminRoleAccountsAdmin, want: http.StatusForbidden},
		{role: enums.AdminRoleSalesAdmin, want: http.StatusOK},
	}
	for i, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/"+uuid.NewString()+"/status", strings.NewReader(`{"status":"SHIPPED"}`))
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, tc.role))
		req.Header.Set("Idempotency-Key", fmt.Sprintf("status-%d", i))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.role, tc.want, resp.Code)
		}
	}
}

func TestAdminStockRouteRequiresSuperAdmin(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	cases := []struct {
		role enums.AdminRole
		want int
	}{
		{role: enums.AdminRoleSalesAdmin, want: http.StatusForbidden},
		{role: enums.AdminRoleSuperAdmin, want: http.StatusOK},
	}
	for i, tc := range cases {
		req := httptest.NewRequest(http.MethodPut, "/api/admin/v1/inventory/variants/"+uuid.NewString()+"/stock", strings.NewReader(`{"stockCount":12}`))
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, tc.role))
		req.Header.Set("Idempotency-Key", fmt.Sprintf("stock-%d", i))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.role, tc.want, resp.Code)
		}
	}
}
