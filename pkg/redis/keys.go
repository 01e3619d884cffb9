package redis

import "strings"

const keyNamespace = "tt"

// Keyspace builds the namespaced keys shared by every storefront process.
type Keyspace struct{}

func (Keyspace) IdempotencyKey(scope, id string) string {
	return buildKey("idempotency", scope, id)
}

func (Keyspace) RateLimitKey(scope string) string {
	return buildKey("rate_limit", scope)
}

func (Keyspace) LockKey(name string) string {
	return buildKey("lock", name)
}

func buildKey(parts ...string) string {
	key := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			key = append(key, part)
		}
	}
	return strings.Join(key, ":")
}
