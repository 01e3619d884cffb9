package enums

// PaymentMethod names the channel a customer chose at checkout.
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodBank   PaymentMethod = "BANK"
	PaymentMethodEsewa  PaymentMethod = "ESEWA"
	PaymentMethodKhalti PaymentMethod = "KHALTI"
)

var paymentMethods = set[PaymentMethod]{
	PaymentMethodCOD,
	PaymentMethodBank,
	PaymentMethodEsewa,
	PaymentMethodKhalti,
}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool {
	return paymentMethods.has(p)
}

// IsImmediateSettlement is true for methods settled outside an online gateway.
func (p PaymentMethod) IsImmediateSettlement() bool {
	return p == PaymentMethodCOD || p == PaymentMethodBank
}

// IsProvider is true for methods that redirect the customer to a gateway.
func (p PaymentMethod) IsProvider() bool {
	return p == PaymentMethodEsewa || p == PaymentMethodKhalti
}

// ParsePaymentMethod accepts any case, so "esewa" reads as ESEWA.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return paymentMethods.parseUpper("payment method", value)
}
