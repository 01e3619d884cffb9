package cron

import (
	"context"
	"time"
)

// Job is one periodic maintenance task. Name doubles as its lease name, so two
// replicas never run the same job at once.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Leaser hands out named, expiring leases. pkg/redis.Client implements it.
type Leaser interface {
	AcquireLease(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLease(ctx context.Context, name, token string) (bool, error)
}
