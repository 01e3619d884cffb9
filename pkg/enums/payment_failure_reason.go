package enums

import "strings"

// PaymentFailureReason is the reason code appended to the checkout failure redirect.
type PaymentFailureReason string

const (
	PaymentFailureInvalidCallback    PaymentFailureReason = "invalid_callback"
	PaymentFailureServerConfig       PaymentFailureReason = "server_config"
	PaymentFailureEsewaVerification  PaymentFailureReason = "esewa_verification_failed"
	PaymentFailureEsewaProcessing    PaymentFailureReason = "esewa_processing_failed"
	PaymentFailureKhaltiLookup       PaymentFailureReason = "khalti_lookup_failed"
	PaymentFailureKhaltiProcessing   PaymentFailureReason = "khalti_processing_failed"
	PaymentFailureKhaltiNotCompleted PaymentFailureReason = "khalti_not_completed"
	PaymentFailureAlreadyProcessed   PaymentFailureReason = "already_processed"
	// PaymentFailurePending answers a duplicate callback whose first delivery is still
	// being settled. It is not a failure of the payment.
	PaymentFailurePending            PaymentFailureReason = "payment_pending"
	paymentFailureKhaltiStatusPrefix                      = "khalti_"
)

// String implements fmt.Stringer.
func (r PaymentFailureReason) String() string {
	return string(r)
}

// KhaltiStatusReason maps a non-completed Khalti lookup status to its reason code.
func KhaltiStatusReason(status string) PaymentFailureReason {
	normalized := strings.ToLower(strings.TrimSpace(status))
	if normalized == "" {
		return PaymentFailureKhaltiNotCompleted
	}
	normalized = strings.ReplaceAll(normalized, " ", "_")
	return PaymentFailureReason(paymentFailureKhaltiStatusPrefix + normalized)
}
