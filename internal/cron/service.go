package cron

import (
	"context"
	"errors"
	"time"

	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/metrics"
)

const (
	defaultInterval = 15 * time.Minute
	defaultLeaseTTL = 10 * time.Minute
)

type ServiceParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Leases   Leaser
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// LeaseTTL bounds how long a crashed replica can block a job.
	LeaseTTL time.Duration
}

// Service runs every job once per interval. Jobs hold independent leases, so a
// slow retention sweep does not delay the stale-order sweep on another replica.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	leases   Leaser
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	leaseTTL time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	if p.Leases == nil {
		return nil, errors.New("lease store required")
	}
	seen := make(map[string]struct{}, len(p.Jobs))
	for _, job := range p.Jobs {
		if job == nil || job.Name() == "" {
			return nil, errors.New("cron jobs must be named")
		}
		if _, dup := seen[job.Name()]; dup {
			return nil, errors.New("duplicate cron job " + job.Name())
		}
		seen[job.Name()] = struct{}{}
	}

	s := &Service{
		logg:     p.Logger,
		jobs:     p.Jobs,
		leases:   p.Leases,
		metrics:  p.Metrics,
		interval: p.Interval,
		leaseTTL: p.LeaseTTL,
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.leaseTTL <= 0 {
		s.leaseTTL = defaultLeaseTTL
	}
	return s, nil
}

// Run fires a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.runCycle(ctx)
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, job)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())

	token, ok, err := s.leases.AcquireLease(jobCtx, job.Name(), s.leaseTTL)
	if err != nil {
		s.logg.Error(jobCtx, "cron lease unavailable", err)
		s.metrics.Observe(job.Name(), 0, err)
		return
	}
	if !ok {
		s.logg.Debug(jobCtx, "cron job held by another replica")
		s.metrics.Skipped(job.Name())
		return
	}
	defer func() {
		released, err := s.leases.ReleaseLease(context.WithoutCancel(jobCtx), job.Name(), token)
		switch {
		case err != nil:
			s.logg.Error(jobCtx, "cron lease release failed", err)
		case !released:
			s.logg.Warn(jobCtx, "cron lease expired before the job finished")
		}
	}()

	start := time.Now()
	err = job.Run(jobCtx)
	took := time.Since(start)
	s.metrics.Observe(job.Name(), took, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		return
	}
	s.logg.Info(jobCtx, "cron job completed")
}
