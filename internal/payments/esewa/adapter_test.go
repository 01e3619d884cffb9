package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinytales/storefront-backend/internal/payments/gateway"
	"github.com/tinytales/storefront-backend/pkg/config"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
)

const testSecret = "8gBm/:&EnhH.1/q"

func newTestAdapter(env string) *Adapter {
	a := NewAdapter(
		config.EsewaConfig{SecretKey: testSecret, Env: env},
		config.StorefrontConfig{SiteURL: "https://tinytales.com.np/", APIURL: "https://api.tinytales.com.np"},
	)
	a.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return a
}

func signFor(message string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func encodeCallback(t *testing.T, payload map[string]string) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal callback: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestBuildFormSignsTotalUUIDAndProductCode(t *testing.T) {
	a := newTestAdapter("test")
	orderID := uuid.MustParse("0b1c5a5e-3e8f-4c55-9a07-7d2b9c1fab12")

	form, err := a.BuildForm(orderID, decimal.RequireFromString("4294"))
	if err != nil {
		t.Fatalf("build form: %v", err)
	}

	f := form.Fields
	if form.Endpoint != TestFormURL {
		t.Fatalf("expected test endpoint, got %s", form.Endpoint)
	}
	if f.TransactionUUID != "TT-9C1FAB12-1700000000123" {
		t.Fatalf("unexpected transaction uuid %s", f.TransactionUUID)
	}
	if f.Amount != "4294.00" || f.TotalAmount != "4294.00" {
		t.Fatalf("expected two-decimal amounts, got %s / %s", f.Amount, f.TotalAmount)
	}
	if f.TaxAmount != "0" || f.ProductServiceCharge != "0" || f.ProductDeliveryCharge != "0" {
		t.Fatalf("expected zero charges, got %+v", f)
	}
	if f.ProductCode != "EPAYTEST" {
		t.Fatalf("expected default product code, got %s", f.ProductCode)
	}
	if f.SignedFieldNames != "total_amount,transaction_uuid,product_code" {
		t.Fatalf("unexpected signed fields %s", f.SignedFieldNames)
	}
	want := signFor("total_amount=4294.00,transaction_uuid=TT-9C1FAB12-1700000000123,product_code=EPAYTEST")
	if f.Signature != want {
		t.Fatalf("signature mismatch: got %s want %s", f.Signature, want)
	}
	if f.SuccessURL != "https://api.tinytales.com.np/api/v1/payments/esewa/callback?orderId="+orderID.String() {
		t.Fatalf("unexpected success url %s", f.SuccessURL)
	}
	if f.FailureURL != "https://tinytales.com.np/checkout?error=payment_failed" {
		t.Fatalf("unexpected failure url %s", f.FailureURL)
	}
}

func TestBuildFormUsesLiveEndpoint(t *testing.T) {
	form, err := newTestAdapter("live").BuildForm(uuid.New(), decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("build form: %v", err)
	}
	if form.Endpoint != LiveFormURL {
		t.Fatalf("expected live endpoint, got %s", form.Endpoint)
	}
}

func TestBuildFormRequiresSecret(t *testing.T) {
	a := NewAdapter(config.EsewaConfig{}, config.StorefrontConfig{})
	_, err := a.BuildForm(uuid.New(), decimal.NewFromInt(100))
	if !pkgerrors.IsCode(err, pkgerrors.CodeGatewayConfig) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestVerifyCallbackAcceptsValidSignature(t *testing.T) {
	a := newTestAdapter("test")
	encoded := encodeCallback(t, map[string]string{
		"transaction_code":   "000AWEO",
		"status":             "COMPLETE",
		"total_amount":       "1,000.0",
		"transaction_uuid":   "TT-9C1FAB12-1",
		"product_code":       "EPAYTEST",
		"signed_field_names": "transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names",
		"signature":          signFor("transaction_code=000AWEO,status=COMPLETE,total_amount=1,000.0,transaction_uuid=TT-9C1FAB12-1,product_code=EPAYTEST,signed_field_names=transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names"),
	})

	payload, err := a.VerifyCallback(encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !payload.Completed() {
		t.Fatalf("expected completed payload, got %+v", payload)
	}
	amount, err := payload.Amount()
	if err != nil || !amount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected amount 1000, got %s (%v)", amount, err)
	}
}

func TestVerifyCallbackIgnoresEchoedProductCode(t *testing.T) {
	a := newTestAdapter("test")
	encoded := encodeCallback(t, map[string]string{
		"status":             "COMPLETE",
		"total_amount":       "100.00",
		"transaction_uuid":   "TT-X-1",
		"product_code":       "ATTACKER",
		"signed_field_names": "status,total_amount,transaction_uuid,product_code",
		"signature":          signFor("status=COMPLETE,total_amount=100.00,transaction_uuid=TT-X-1,product_code=ATTACKER"),
	})

	payload, err := a.VerifyCallback(encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if payload.SignatureValid {
		t.Fatalf("signature over a foreign product code must not verify")
	}
}

func TestVerifyCallbackReportsIncompleteStatus(t *testing.T) {
	a := newTestAdapter("test")
	encoded := encodeCallback(t, map[string]string{
		"status":             "PENDING",
		"total_amount":       "100.00",
		"transaction_uuid":   "TT-X-1",
		"signed_field_names": "status,total_amount,transaction_uuid,product_code",
		"signature":          signFor("status=PENDING,total_amount=100.00,transaction_uuid=TT-X-1,product_code=EPAYTEST"),
	})

	payload, err := a.VerifyCallback(encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !payload.SignatureValid || payload.Completed() {
		t.Fatalf("expected valid signature with incomplete status, got %+v", payload)
	}
}

func TestVerifyCallbackRejectsReplayedFormSignature(t *testing.T) {
	a := newTestAdapter("test")
	form, err := a.BuildForm(uuid.New(), decimal.NewFromInt(1695))
	if err != nil {
		t.Fatalf("build form: %v", err)
	}

	encoded := encodeCallback(t, map[string]string{
		"transaction_code":   "000AWEO",
		"status":             "COMPLETE",
		"total_amount":       form.Fields.TotalAmount,
		"transaction_uuid":   form.Fields.TransactionUUID,
		"product_code":       form.Fields.ProductCode,
		"signed_field_names": form.Fields.SignedFieldNames,
		"signature":          form.Fields.Signature,
	})

	payload, err := a.VerifyCallback(encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if payload.SignatureValid || payload.Completed() {
		t.Fatalf("a signature that does not cover status must not verify, got %+v", payload)
	}
}

func TestVerifyCallbackRejectsGarbage(t *testing.T) {
	a := newTestAdapter("test")
	for _, input := range []string{"%%%", base64.StdEncoding.EncodeToString([]byte("not json")), encodeCallback(t, map[string]string{"status": "COMPLETE"})} {
		_, err := a.VerifyCallback(input)
		if !errors.Is(err, gateway.ErrInvalidCallback) {
			t.Fatalf("expected invalid callback for %q, got %v", input, err)
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation code, got %v", err)
		}
	}
}

func TestSigningMessageFollowsSignedFieldOrder(t *testing.T) {
	values := map[string]string{
		"total_amount":     "4294.00",
		"transaction_uuid": "TT-9C1FAB12-1700000000123",
		"product_code":     "EPAYTEST",
		"status":           "COMPLETE",
	}

	got := signingMessage(signedFieldNames, values)
	if got != "total_amount=4294.00,transaction_uuid=TT-9C1FAB12-1700000000123,product_code=EPAYTEST" {
		t.Fatalf("unexpected form message %q", got)
	}

	got = signingMessage("status, ,total_amount", values)
	if got != "status=COMPLETE,total_amount=4294.00" {
		t.Fatalf("expected list order with blanks dropped, got %q", got)
	}
}
