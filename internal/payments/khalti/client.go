package khalti

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/tinytales/storefront-backend/internal/payments/gateway"
	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/enums"
	"github.com/tinytales/storefront-backend/pkg/httpclient"
)

const (
	StatusCompleted = "Completed"

	initiatePath      = "/api/v2/epayment/initiate/"
	lookupPath        = "/api/v2/epayment/lookup/"
	callbackPath      = "/api/v1/payments/khalti/callback"
	defaultEmail      = "customer@tinytales.com.np"
	orderNamePrefix   = "Tiny Tales Order #"
	authorizationKind = "Key "
)

type Customer struct {
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
	Phone string  `json:"phone"`
}

type InitiateRequest struct {
	OrderID     uuid.UUID
	AmountPaisa int64
	Customer    Customer
}

type InitiateResponse struct {
	PaymentURL string `json:"payment_url"`
	Pidx       string `json:"pidx"`
}

// LookupResponse is Khalti's authoritative view of a payment. TotalAmount is in paisa.
type LookupResponse struct {
	Pidx          string `json:"pidx"`
	Status        string `json:"status"`
	TotalAmount   int64  `json:"total_amount"`
	TransactionID string `json:"transaction_id"`
}

// Completed reports whether the lookup settled the payment.
func (l LookupResponse) Completed() bool {
	return l.Status == StatusCompleted
}

type initiatePayload struct {
	ReturnURL         string       `json:"return_url"`
	WebsiteURL        string       `json:"website_url"`
	Amount            int64        `json:"amount"`
	PurchaseOrderID   string       `json:"purchase_order_id"`
	PurchaseOrderName string       `json:"purchase_order_name"`
	CustomerInfo      customerInfo `json:"customer_info"`
}

type customerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Client talks to the Khalti ePayment API server-to-server.
type Client struct {
	secret  string
	baseURL string
	apiURL  string
	siteURL string
	http    *http.Client
}

func NewClient(cfg config.KhaltiConfig, storefront config.StorefrontConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httpclient.New(config.HTTPClientConfig{})
	}
	return &Client{
		secret:  strings.TrimSpace(cfg.SecretKey),
		baseURL: cfg.Endpoint(),
		apiURL:  strings.TrimRight(storefront.APIURL, "/"),
		siteURL: strings.TrimRight(storefront.SiteURL, "/"),
		http:    httpClient,
	}
}

// Configured reports whether a merchant secret is present.
func (c *Client) Configured() bool {
	return c != nil && c.secret != ""
}

// Initiate registers a payment with Khalti and returns the hosted payment page.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	if !c.Configured() {
		return nil, gateway.Config(enums.PaymentMethodKhalti)
	}
	if req.AmountPaisa <= 0 {
		return nil, gateway.Initiation(enums.PaymentMethodKhalti, fmt.Errorf("amount must be positive"))
	}

	email := defaultEmail
	if req.Customer.Email != nil && strings.TrimSpace(*req.Customer.Email) != "" {
		email = strings.TrimSpace(*req.Customer.Email)
	}

	payload := initiatePayload{
		ReturnURL:         c.apiURL + callbackPath + "?orderId=" + url.QueryEscape(req.OrderID.String()),
		WebsiteURL:        c.siteURL,
		Amount:            req.AmountPaisa,
		PurchaseOrderID:   req.OrderID.String(),
		PurchaseOrderName: orderNamePrefix + gateway.ShortOrderRef(req.OrderID),
		CustomerInfo: customerInfo{
			Name:  req.Customer.Name,
			Email: email,
			Phone: req.Customer.Phone,
		},
	}

	var out InitiateResponse
	if err := c.post(ctx, initiatePath, payload, &out); err != nil {
		return nil, gateway.Initiation(enums.PaymentMethodKhalti, err)
	}
	if out.Pidx == "" || out.PaymentURL == "" {
		return nil, gateway.Initiation(enums.PaymentMethodKhalti, fmt.Errorf("khalti: initiate response missing pidx or payment_url"))
	}
	return &out, nil
}

// Lookup asks Khalti for the status of a payment. Query parameters on the callback are
// never trusted; this is the only source of truth.
func (c *Client) Lookup(ctx context.Context, pidx string) (*LookupResponse, error) {
	if !c.Configured() {
		return nil, gateway.Config(enums.PaymentMethodKhalti)
	}
	pidx = strings.TrimSpace(pidx)
	if pidx == "" {
		return nil, gateway.InvalidCallback(fmt.Errorf("pidx is required"))
	}

	var out LookupResponse
	if err := c.post(ctx, lookupPath, map[string]string{"pidx": pidx}, &out); err != nil {
		return nil, gateway.Lookup(enums.PaymentMethodKhalti, err)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", authorizationKind+c.secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("khalti: %s status %d: %s", path, resp.StatusCode, httpclient.DrainError(resp.Body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
