// Package orderview maps order aggregates to their JSON representation.
package orderview

import (
	"time"

	"github.com/google/uuid"

	"github.com/tinytales/storefront-backend/pkg/db/models"
	"github.com/tinytales/storefront-backend/pkg/money"
)

type Order struct {
	ID               uuid.UUID  `json:"id"`
	Status           string     `json:"status"`
	PaymentMethod    string     `json:"paymentMethod"`
	PaymentReference *string    `json:"paymentReference,omitempty"`
	CustomerName     string     `json:"customerName"`
	CustomerEmail    *string    `json:"customerEmail,omitempty"`
	ContactPhone     string     `json:"contactPhone"`
	ShippingAddress  string     `json:"shippingAddress"`
	IsInternational  bool       `json:"isInternational"`
	Subtotal         string     `json:"subtotal"`
	Tax              string     `json:"tax"`
	AmountDue        string     `json:"amountDue"`
	Items            []Item     `json:"items"`
	Invoice          *Invoice   `json:"invoice,omitempty"`
	UserID           *uuid.UUID `json:"userId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type Item struct {
	ID              uuid.UUID `json:"id"`
	VariantID       uuid.UUID `json:"variantId"`
	SKU             string    `json:"sku,omitempty"`
	ProductName     string    `json:"productName,omitempty"`
	Size            string    `json:"size,omitempty"`
	Color           string    `json:"color,omitempty"`
	Quantity        int       `json:"quantity"`
	PriceAtPurchase string    `json:"priceAtPurchase"`
	LineTotal       string    `json:"lineTotal"`
}

type Invoice struct {
	ID            uuid.UUID `json:"id"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Status        string    `json:"status"`
	AmountDue     string    `json:"amountDue"`
	TaxAmount     string    `json:"taxAmount"`
	AmountPaid    string    `json:"amountPaid"`
}

type Variant struct {
	ID                uuid.UUID `json:"id"`
	ProductID         uuid.UUID `json:"productId"`
	ProductName       string    `json:"productName,omitempty"`
	SKU               string    `json:"sku"`
	Size              string    `json:"size,omitempty"`
	Color             string    `json:"color,omitempty"`
	StockCount        int       `json:"stockCount"`
	LowStockThreshold int       `json:"lowStockThreshold"`
}

func NewOrder(order *models.Order) *Order {
	if order == nil {
		return nil
	}
	items := make([]Item, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, newItem(item))
	}
	view := &Order{
		ID:               order.ID,
		Status:           string(order.Status),
		PaymentMethod:    string(order.PaymentMethod),
		PaymentReference: order.PaymentReference,
		CustomerName:     order.CustomerName,
		CustomerEmail:    order.CustomerEmail,
		ContactPhone:     order.ContactPhone,
		ShippingAddress:  order.ShippingAddress,
		IsInternational:  order.IsInternational,
		Subtotal:         money.String(order.TotalAmount),
		Tax:              money.String(order.TaxAmount),
		AmountDue:        money.String(order.AmountDue()),
		Items:            items,
		UserID:           order.UserID,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	view.Invoice = NewInvoice(order.Invoice)
	return view
}

func NewOrders(orders []models.Order) []Order {
	out := make([]Order, 0, len(orders))
	for i := range orders {
		out = append(out, *NewOrder(&orders[i]))
	}
	return out
}

func NewInvoice(invoice *models.Invoice) *Invoice {
	if invoice == nil {
		return nil
	}
	return &Invoice{
		ID:            invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        string(invoice.Status),
		AmountDue:     money.String(invoice.AmountDue),
		TaxAmount:     money.String(invoice.TaxAmount),
		AmountPaid:    money.String(invoice.AmountPaid),
	}
}

func NewVariant(variant models.ProductVariant) Variant {
	view := Variant{
		ID:                variant.ID,
		ProductID:         variant.ProductID,
		SKU:               variant.SKU,
		Size:              variant.Size,
		Color:             variant.Color,
		StockCount:        variant.StockCount,
		LowStockThreshold: variant.LowStockThreshold,
	}
	if variant.Product != nil {
		view.ProductName = variant.Product.Name
	}
	return view
}

func newItem(item models.OrderItem) Item {
	view := Item{
		ID:              item.ID,
		VariantID:       item.VariantID,
		Quantity:        item.Quantity,
		PriceAtPurchase: money.String(item.PriceAtPurchase),
		LineTotal:       money.String(item.LineTotal()),
	}
	if item.Variant != nil {
		view.SKU = item.Variant.SKU
		view.Size = item.Variant.Size
		view.Color = item.Variant.Color
		if item.Variant.Product != nil {
			view.ProductName = item.Variant.Product.Name
		}
	}
	return view
}
