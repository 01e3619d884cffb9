package notifications

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tinytales/storefront-backend/pkg/enums"
	"github.com/tinytales/storefront-backend/pkg/money"
	"github.com/tinytales/storefront-backend/pkg/outbox/payloads"
)

const siteName = "Tiny Tales"

// statusEmail renders the customer email for a status change. It reports false for
// statuses that do not notify or events without a recipient.
func statusEmail(event payloads.OrderStatusChangedEvent) (Message, bool) {
	if !event.Status.NotifiesCustomer() || event.CustomerEmail == nil {
		return Message{}, false
	}
	to := strings.TrimSpace(*event.CustomerEmail)
	if to == "" {
		return Message{}, false
	}

	ref := orderRef(event)
	name := strings.TrimSpace(event.CustomerName)
	if name == "" {
		name = "there"
	}

	var subject, lead string
	switch event.Status {
	case enums.OrderStatusConfirmed:
		subject = fmt.Sprintf("Your %s order %s is confirmed", siteName, ref)
		lead = "Thank you for shopping with us. We have received your order and are getting it ready."
	case enums.OrderStatusShipped:
		subject = fmt.Sprintf("Your %s order %s has shipped", siteName, ref)
		lead = "Good news! Your order is on its way."
	case enums.OrderStatusOutForDelivery:
		subject = fmt.Sprintf("Your %s order %s is out for delivery", siteName, ref)
		lead = "Your order is out for delivery and should reach you today."
	case enums.OrderStatusDelivered:
		subject = fmt.Sprintf("Your %s order %s was delivered", siteName, ref)
		lead = "Your order has been delivered. We hope your little one loves it!"
	default:
		return Message{}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n%s\n\n", name, lead)
	fmt.Fprintf(&b, "Order: %s\n", ref)
	if amount, err := decimal.NewFromString(event.AmountDue); err == nil {
		fmt.Fprintf(&b, "Amount: %s\n", money.FormatNPR(amount))
	}
	fmt.Fprintf(&b, "\nWarm regards,\nThe %s team\n", siteName)

	return Message{To: to, Subject: subject, Text: b.String()}, true
}

func orderRef(event payloads.OrderStatusChangedEvent) string {
	if event.InvoiceNumber != "" {
		return event.InvoiceNumber
	}
	id := event.OrderID.String()
	return "#" + strings.ToUpper(id[len(id)-8:])
}
