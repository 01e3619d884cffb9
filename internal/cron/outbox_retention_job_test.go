package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tinytales/storefront-backend/pkg/logger"
)

func TestOutboxRetentionDrainsInBatches(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	pruner := &fakePruner{published: 25, letters: 3}
	job := newRetentionJob(t, pruner, OutboxRetentionJobParams{BatchSize: 10})
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	require.Zero(t, pruner.published)
	require.Zero(t, pruner.letters)
	// 10 + 10 + 5, then one short batch for dead letters.
	require.Equal(t, 3, pruner.publishedCalls)
	require.Equal(t, 1, pruner.letterCalls)
	require.Equal(t, now.Add(-defaultOutboxRetention), pruner.publishedCutoff)
	require.Equal(t, now.Add(-defaultDeadLetterRetention), pruner.letterCutoff)
}

func TestOutboxRetentionExactMultipleNeedsOneEmptyBatch(t *testing.T) {
	pruner := &fakePruner{published: 20}
	job := newRetentionJob(t, pruner, OutboxRetentionJobParams{BatchSize: 10})

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 3, pruner.publishedCalls)
}

func TestOutboxRetentionHonoursConfiguredWindows(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	pruner := &fakePruner{}
	job := newRetentionJob(t, pruner, OutboxRetentionJobParams{
		Retention:           72 * time.Hour,
		DeadLetterRetention: 240 * time.Hour,
	})
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC), pruner.publishedCutoff)
	require.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), pruner.letterCutoff)
	require.Equal(t, defaultPruneBatch, pruner.lastBatch)
}

func TestOutboxRetentionStopsOnError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("boom")}
	job := newRetentionJob(t, pruner, OutboxRetentionJobParams{})

	err := job.Run(context.Background())
	require.ErrorContains(t, err, "prune published events")
	require.Zero(t, pruner.letterCalls)
}

func TestOutboxRetentionStopsWhenCancelled(t *testing.T) {
	pruner := &fakePruner{published: 1000}
	job := newRetentionJob(t, pruner, OutboxRetentionJobParams{BatchSize: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, job.Run(ctx), context.Canceled)
	require.Zero(t, pruner.publishedCalls)
}

func TestNewOutboxRetentionJobRequiresRepository(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	require.Error(t, err)
}

func newRetentionJob(t *testing.T, pruner *fakePruner, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.New(logger.Options{ServiceName: "test"})
	params.Repository = pruner
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

type fakePruner struct {
	published, letters            int64
	publishedCalls, letterCalls   int
	publishedCutoff, letterCutoff time.Time
	lastBatch                     int
	err                           error
}

func (f *fakePruner) PrunePublished(_ context.Context, cutoff time.Time, batch int) (int64, error) {
	f.publishedCalls++
	f.publishedCutoff = cutoff
	f.lastBatch = batch
	if f.err != nil {
		return 0, f.err
	}
	return take(&f.published, batch), nil
}

func (f *fakePruner) PruneDeadLetters(_ context.Context, cutoff time.Time, batch int) (int64, error) {
	f.letterCalls++
	f.letterCutoff = cutoff
	return take(&f.letters, batch), nil
}

func take(remaining *int64, batch int) int64 {
	n := min(*remaining, int64(batch))
	*remaining -= n
	return n
}
