package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/tinytales/storefront-backend/pkg/logger"
)

const (
	defaultOutboxRetention     = 30 * 24 * time.Hour
	defaultDeadLetterRetention = 90 * 24 * time.Hour
	defaultPruneBatch          = 500
)

type OutboxRetentionJobParams struct {
	Logger              *logger.Logger
	Repository          outboxPruner
	Retention           time.Duration
	DeadLetterRetention time.Duration
	BatchSize           int
}

type outboxPruner interface {
	PrunePublished(ctx context.Context, cutoff time.Time, batch int) (int64, error)
	PruneDeadLetters(ctx context.Context, cutoff time.Time, batch int) (int64, error)
}

// NewOutboxRetentionJob deletes published outbox rows and old dead letters in
// bounded batches so a large backlog never holds one long delete.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:       params.Logger,
		repo:       params.Repository,
		published:  params.Retention,
		deadLetter: params.DeadLetterRetention,
		batch:      params.BatchSize,
		now:        time.Now,
	}
	if job.published <= 0 {
		job.published = defaultOutboxRetention
	}
	if job.deadLetter <= 0 {
		job.deadLetter = defaultDeadLetterRetention
	}
	if job.batch <= 0 {
		job.batch = defaultPruneBatch
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg       *logger.Logger
	repo       outboxPruner
	published  time.Duration
	deadLetter time.Duration
	batch      int
	now        func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	events, err := j.drain(ctx, now.Add(-j.published), j.repo.PrunePublished)
	if err != nil {
		return fmt.Errorf("prune published events: %w", err)
	}
	letters, err := j.drain(ctx, now.Add(-j.deadLetter), j.repo.PruneDeadLetters)
	if err != nil {
		return fmt.Errorf("prune dead letters: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"events_deleted":       events,
		"dead_letters_deleted": letters,
		"batch":                j.batch,
	}), "outbox retention complete")
	return nil
}

// drain repeats prune until a batch comes back short.
func (j *outboxRetentionJob) drain(ctx context.Context, cutoff time.Time, prune func(context.Context, time.Time, int) (int64, error)) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := prune(ctx, cutoff, j.batch)
		total += n
		if err != nil {
			return total, err
		}
		if n < int64(j.batch) {
			return total, nil
		}
	}
}
