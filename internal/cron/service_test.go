package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/metrics"
)

type memoryLeases struct {
	held     map[string]string
	released []string
	expire   bool
}

func (m *memoryLeases) AcquireLease(_ context.Context, name string, _ time.Duration) (string, bool, error) {
	if m.held == nil {
		m.held = map[string]string{}
	}
	if _, ok := m.held[name]; ok {
		return "", false, nil
	}
	m.held[name] = "token-" + name
	return m.held[name], true, nil
}

func (m *memoryLeases) ReleaseLease(_ context.Context, name, token string) (bool, error) {
	if m.expire || m.held[name] != token {
		return false, nil
	}
	delete(m.held, name)
	m.released = append(m.released, name)
	return true, nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func newTestService(t *testing.T, leases Leaser, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Jobs:    jobs,
		Leases:  leases,
		Metrics: metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return svc
}

func TestRunCycleRunsEveryJobEvenAfterAFailure(t *testing.T) {
	ok := &countingJob{name: "outbox-retention"}
	failing := &countingJob{name: "stale-pending-orders", err: errors.New("db down")}
	leases := &memoryLeases{}

	newTestService(t, leases, failing, ok).runCycle(context.Background())

	require.Equal(t, 1, failing.runs)
	require.Equal(t, 1, ok.runs)
	require.ElementsMatch(t, []string{"outbox-retention", "stale-pending-orders"}, leases.released)
	require.Empty(t, leases.held)
}

func TestJobHeldElsewhereIsSkipped(t *testing.T) {
	held := &countingJob{name: "stale-pending-orders"}
	free := &countingJob{name: "outbox-retention"}
	leases := &memoryLeases{held: map[string]string{"stale-pending-orders": "other-replica"}}

	newTestService(t, leases, held, free).runCycle(context.Background())

	require.Zero(t, held.runs)
	require.Equal(t, 1, free.runs)
	require.Equal(t, "other-replica", leases.held["stale-pending-orders"])
}

func TestExpiredLeaseStillRecordsTheRun(t *testing.T) {
	job := &countingJob{name: "outbox-retention"}
	newTestService(t, &memoryLeases{expire: true}, job).runCycle(context.Background())
	require.Equal(t, 1, job.runs)
}

func TestNewServiceRejectsDuplicateJobs(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Leases: &memoryLeases{},
		Jobs:   []Job{&countingJob{name: "a"}, &countingJob{name: "a"}},
	})
	require.Error(t, err)

	_, err = NewService(ServiceParams{Logger: logger.New(logger.Options{Output: io.Discard})})
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "outbox-retention"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newTestService(t, &memoryLeases{}, job).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
