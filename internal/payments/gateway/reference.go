package gateway

import (
	"strings"

	"github.com/google/uuid"
)

// ShortOrderRef is the upper-cased last eight characters of an order id, used in
// provider-visible references.
func ShortOrderRef(orderID uuid.UUID) string {
	id := orderID.String()
	return strings.ToUpper(id[len(id)-8:])
}
