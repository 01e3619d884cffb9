package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	checkoutsvc "github.com/tinytales/storefront-backend/internal/checkout"
	"github.com/tinytales/storefront-backend/internal/inventory"
	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/enums"
)

type stubCheckoutService struct {
	result *checkoutsvc.Result
	err    error
	input  checkoutsvc.CreateOrderInput
}

func (s *stubCheckoutService) CreateOrder(ctx context.Context, input checkoutsvc.CreateOrderInput) (*checkoutsvc.Result, error) {
	s.input = input
	return s.result, s.err
}

func TestCheckoutSuccess(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	variantID := uuid.New()
	invoice := &models.Invoice{
		ID:            uuid.New(),
		OrderID:       orderID,
		InvoiceNumber: "TT-2026-0001",
		AmountDue:     decimal.RequireFromString("2260"),
		TaxAmount:     decimal.RequireFromString("260"),
		Status:        enums.InvoiceStatusUnpaid,
	}
	svc := &stubCheckoutService{result: &checkoutsvc.Result{
		Order: &models.Order{
			ID:            orderID,
			CustomerName:  "Asha",
			ContactPhone:  "9800000000",
			PaymentMethod: enums.PaymentMethodEsewa,
			Status:        enums.OrderStatusPending,
			TotalAmount:   decimal.RequireFromString("2000"),
			TaxAmount:     decimal.RequireFromString("260"),
			Items: []models.OrderItem{{
				ID:              uuid.New(),
				OrderID:         orderID,
				VariantID:       variantID,
				Quantity:        2,
				PriceAtPurchase: decimal.RequireFromString("1000"),
			}},
		},
		Invoice:    invoice,
		NextAction: checkoutsvc.NextActionRedirect,
	}}

	body := `{"customerName":"Asha","contactPhone":"9800000000","shippingAddress":"Lalitpur","paymentMethod":"ESEWA","items":[{"variantId":"` + variantID.String() + `","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	resp := httptest.NewRecorder()

	Checkout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data struct {
			Order struct {
				ID        string `json:"id"`
				Subtotal  string `json:"subtotal"`
				Tax       string `json:"tax"`
				AmountDue string `json:"amountDue"`
				Items     []struct {
					LineTotal string `json:"lineTotal"`
				} `json:"items"`
			} `json:"order"`
			Invoice struct {
				InvoiceNumber string `json:"invoiceNumber"`
			} `json:"invoice"`
			NextAction string `json:"nextAction"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Order.ID != orderID.String() {
		t.Fatalf("unexpected order id %s", envelope.Data.Order.ID)
	}
	if envelope.Data.Order.AmountDue != "2260.00" || envelope.Data.Order.Tax != "260.00" {
		t.Fatalf("unexpected totals: %+v", envelope.Data.Order)
	}
	if len(envelope.Data.Order.Items) != 1 || envelope.Data.Order.Items[0].LineTotal != "2000.00" {
		t.Fatalf("unexpected items: %+v", envelope.Data.Order.Items)
	}
	if envelope.Data.Invoice.InvoiceNumber != "TT-2026-0001" {
		t.Fatalf("unexpected invoice number %s", envelope.Data.Invoice.InvoiceNumber)
	}
	if envelope.Data.NextAction != "redirect" {
		t.Fatalf("unexpected next action %s", envelope.Data.NextAction)
	}
	if svc.input.Customer.Address != "Lalitpur" || svc.input.Items[0].Quantity != 2 {
		t.Fatalf("unexpected service input: %+v", svc.input)
	}
	if svc.input.UserID != nil {
		t.Fatalf("expected guest checkout")
	}
}

func TestCheckoutCleansCustomerText(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{result: &checkoutsvc.Result{
		Order:      &models.Order{ID: uuid.New(), Status: enums.OrderStatusPending},
		Invoice:    &models.Invoice{ID: uuid.New()},
		NextAction: checkoutsvc.NextActionNone,
	}}
	body := `{"customerName":"  Asha\n  Shrestha ","contactPhone":" 980 000 0000 ","shippingAddress":"Ward 3,\n\tJhamsikhel","paymentMethod":"COD","items":[{"variantId":"` + uuid.NewString() + `","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	resp := httptest.NewRecorder()

	Checkout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	customer := svc.input.Customer
	if customer.Name != "Asha Shrestha" || customer.Phone != "980 000 0000" || customer.Address != "Ward 3, Jhamsikhel" {
		t.Fatalf("unexpected cleaned customer: %+v", customer)
	}
}

func TestCheckoutRejectsMissingItems(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{}
	body := `{"customerName":"Asha","contactPhone":"9800000000","shippingAddress":"Lalitpur","paymentMethod":"COD","items":[]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	resp := httptest.NewRecorder()

	Checkout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if svc.input.PaymentMethod != "" {
		t.Fatalf("service should not be called")
	}
}

func TestCheckoutMapsInsufficientStock(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{err: inventory.InsufficientStock("SKU-1")}
	body := `{"customerName":"Asha","contactPhone":"9800000000","shippingAddress":"Lalitpur","paymentMethod":"COD","items":[{"variantId":"` + uuid.NewString() + `","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	resp := httptest.NewRecorder()

	Checkout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Message != "insufficient stock for SKU-1" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
}
