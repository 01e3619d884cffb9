package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tinytales/storefront-backend/pkg/enums"
)

// Claims is the back-office access token body. The admin's id travels in sub.
type Claims struct {
	Role enums.AdminRole `json:"role"`
	jwt.RegisteredClaims
}

// AdminID parses the subject claim.
func (c *Claims) AdminID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("subject is not an admin id: %w", err)
	}
	return id, nil
}
