package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinytales/storefront-backend/internal/payments/gateway"
	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/enums"
	"github.com/tinytales/storefront-backend/pkg/money"
)

const (
	LiveFormURL = "https://epay.esewa.com.np/api/epay/main/v2/form"
	TestFormURL = "https://rc-epay.esewa.com.np/api/epay/main/v2/form"

	StatusComplete = "COMPLETE"

	defaultProductCode = "EPAYTEST"
	signedFieldNames   = "total_amount,transaction_uuid,product_code"
	callbackPath       = "/api/v1/payments/esewa/callback"
	failurePath        = "/checkout"
)

// callbackSignedFields must all be covered by a callback signature. The form signature
// covers the first three only, so a replayed form signature never verifies a status.
var callbackSignedFields = []string{"total_amount", "transaction_uuid", "product_code", "status"}

// FormFields are posted by the browser to the eSewa ePay v2 form endpoint.
type FormFields struct {
	Amount                string `json:"amount"`
	TaxAmount             string `json:"tax_amount"`
	TotalAmount           string `json:"total_amount"`
	TransactionUUID       string `json:"transaction_uuid"`
	ProductCode           string `json:"product_code"`
	ProductServiceCharge  string `json:"product_service_charge"`
	ProductDeliveryCharge string `json:"product_delivery_charge"`
	SuccessURL            string `json:"success_url"`
	FailureURL            string `json:"failure_url"`
	SignedFieldNames      string `json:"signed_field_names"`
	Signature             string `json:"signature"`
}

// Form is the signed payload plus the endpoint it must be submitted to.
type Form struct {
	Endpoint string     `json:"endpoint"`
	Fields   FormFields `json:"fields"`
}

// CallbackPayload is the decoded `data` parameter eSewa appends to the success URL.
type CallbackPayload struct {
	TransactionCode  string `json:"transaction_code"`
	Status           string `json:"status"`
	TotalAmount      string `json:"total_amount"`
	TransactionUUID  string `json:"transaction_uuid"`
	ProductCode      string `json:"product_code"`
	SignedFieldNames string `json:"signed_field_names"`
	Signature        string `json:"signature"`

	SignatureValid bool `json:"-"`
}

// Completed reports a verified signature with a COMPLETE status.
func (p CallbackPayload) Completed() bool {
	return p.SignatureValid && p.Status == StatusComplete
}

// Amount parses the signed total. eSewa may render thousands separators.
func (p CallbackPayload) Amount() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(p.TotalAmount), ",", ""))
}

// Adapter signs eSewa forms and verifies callbacks with the merchant secret.
type Adapter struct {
	secret      string
	productCode string
	live        bool
	apiURL      string
	siteURL     string
	now         func() time.Time
}

func NewAdapter(cfg config.EsewaConfig, storefront config.StorefrontConfig) *Adapter {
	productCode := strings.TrimSpace(cfg.ProductCode)
	if productCode == "" {
		productCode = defaultProductCode
	}
	return &Adapter{
		secret:      strings.TrimSpace(cfg.SecretKey),
		productCode: productCode,
		live:        cfg.IsLive(),
		apiURL:      strings.TrimRight(storefront.APIURL, "/"),
		siteURL:     strings.TrimRight(storefront.SiteURL, "/"),
		now:         time.Now,
	}
}

// Configured reports whether a merchant secret is present.
func (a *Adapter) Configured() bool {
	return a != nil && a.secret != ""
}

func (a *Adapter) Endpoint() string {
	if a.live {
		return LiveFormURL
	}
	return TestFormURL
}

// BuildForm produces the signed form for a pending order. amount is the full amount due.
func (a *Adapter) BuildForm(orderID uuid.UUID, amount decimal.Decimal) (*Form, error) {
	if !a.Configured() {
		return nil, gateway.Config(enums.PaymentMethodEsewa)
	}

	total := money.String(amount)
	transactionUUID := fmt.Sprintf("TT-%s-%d", gateway.ShortOrderRef(orderID), a.now().UnixMilli())

	fields := FormFields{
		Amount:                total,
		TaxAmount:             "0",
		TotalAmount:           total,
		TransactionUUID:       transactionUUID,
		ProductCode:           a.productCode,
		ProductServiceCharge:  "0",
		ProductDeliveryCharge: "0",
		SuccessURL:            a.apiURL + callbackPath + "?orderId=" + url.QueryEscape(orderID.String()),
		FailureURL:            a.siteURL + failurePath + "?error=payment_failed",
		SignedFieldNames:      signedFieldNames,
	}
	fields.Signature = a.sign(signingMessage(signedFieldNames, map[string]string{
		"total_amount":     fields.TotalAmount,
		"transaction_uuid": fields.TransactionUUID,
		"product_code":     fields.ProductCode,
	}))

	return &Form{Endpoint: a.Endpoint(), Fields: fields}, nil
}

// VerifyCallback decodes the base64 JSON payload and checks its signature against the
// fields it declares as signed. The declared list must include every callback field the
// order is settled on. The server product code always replaces the echoed one.
func (a *Adapter) VerifyCallback(encoded string) (*CallbackPayload, error) {
	if !a.Configured() {
		return nil, gateway.Config(enums.PaymentMethodEsewa)
	}

	raw, err := decodeBase64(strings.TrimSpace(encoded))
	if err != nil {
		return nil, gateway.InvalidCallback(err)
	}

	var payload CallbackPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, gateway.InvalidCallback(err)
	}
	if payload.SignedFieldNames == "" || payload.Signature == "" {
		return nil, gateway.InvalidCallback(fmt.Errorf("signature fields missing"))
	}

	values := map[string]string{
		"transaction_code": payload.TransactionCode,
		"status":           payload.Status,
		"total_amount":     payload.TotalAmount,
		"transaction_uuid": payload.TransactionUUID,
		"product_code":     a.productCode,

		"signed_field_names": payload.SignedFieldNames,
	}
	expected := a.sign(signingMessage(payload.SignedFieldNames, values))
	payload.SignatureValid = coversCallbackFields(payload.SignedFieldNames) && hmac.Equal([]byte(expected), []byte(payload.Signature))
	return &payload, nil
}

// splitFieldNames reads a signed_field_names list, dropping blanks.
func splitFieldNames(names string) []string {
	var fields []string
	for _, field := range strings.Split(names, ",") {
		if field = strings.TrimSpace(field); field != "" {
			fields = append(fields, field)
		}
	}
	return fields
}

// signingMessage is "name=value" for each listed field, comma-joined in list order.
// Form and callback signatures are both built here.
func signingMessage(names string, values map[string]string) string {
	fields := splitFieldNames(names)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+"="+values[field])
	}
	return strings.Join(parts, ",")
}

func coversCallbackFields(names string) bool {
	signed := splitFieldNames(names)
	for _, field := range callbackSignedFields {
		if !slices.Contains(signed, field) {
			return false
		}
	}
	return true
}

func (a *Adapter) sign(message string) string {
	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func decodeBase64(value string) ([]byte, error) {
	if raw, err := base64.StdEncoding.DecodeString(value); err == nil {
		return raw, nil
	}
	return base64.URLEncoding.DecodeString(value)
}
