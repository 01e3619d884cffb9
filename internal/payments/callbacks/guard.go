package callbacks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/tinytales/storefront-backend/pkg/dedupe"
	"github.com/tinytales/storefront-backend/pkg/enums"
	"github.com/tinytales/storefront-backend/pkg/redis"
)

// Guard claims callback evidence so concurrent replays of one redirect do not race
// each other into the order service.
type Guard struct {
	seen *dedupe.Set
}

func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	seen, err := dedupe.New(store, "callback", ttl)
	if err != nil {
		return nil, err
	}
	return &Guard{seen: seen}, nil
}

// CheckAndMark reports true when the same evidence was already claimed for the order.
func (g *Guard) CheckAndMark(ctx context.Context, provider enums.PaymentMethod, orderID uuid.UUID, evidence string) (bool, error) {
	if g == nil {
		return false, nil
	}
	first, err := g.seen.Claim(ctx, evidenceID(provider, orderID, evidence))
	return !first, err
}

// Release forgets the evidence so a retry can be processed.
func (g *Guard) Release(ctx context.Context, provider enums.PaymentMethod, orderID uuid.UUID, evidence string) error {
	if g == nil {
		return nil
	}
	return g.seen.Release(ctx, evidenceID(provider, orderID, evidence))
}

// evidenceID hashes the raw payload; it can be a kilobyte of base64.
func evidenceID(provider enums.PaymentMethod, orderID uuid.UUID, evidence string) string {
	sum := sha256.Sum256([]byte(evidence))
	return string(provider) + ":" + orderID.String() + ":" + hex.EncodeToString(sum[:16])
}
