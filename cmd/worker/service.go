package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinytales/storefront-backend/pkg/logger"
)

const readinessTimeout = 10 * time.Second

type pinger interface {
	Ping(context.Context) error
}

// subscriber is one long-running Pub/Sub consumer.
type subscriber interface {
	Run(context.Context) error
}

type ServiceParams struct {
	Logger *logger.Logger
	// Dependencies are pinged once, by name, before any subscriber starts.
	Dependencies map[string]pinger
	Subscribers  map[string]subscriber
}

// Service runs every subscriber until one fails or ctx ends. A failing subscriber
// stops the rest so the process restarts as a whole.
type Service struct {
	logg        *logger.Logger
	deps        map[string]pinger
	subscribers map[string]subscriber
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(p.Subscribers) == 0 {
		return nil, errors.New("at least one subscriber is required")
	}
	for name, dep := range p.Dependencies {
		if dep == nil {
			return nil, fmt.Errorf("dependency %s is nil", name)
		}
	}
	return &Service{logg: p.Logger, deps: p.Dependencies, subscribers: p.Subscribers}, nil
}

func (s *Service) ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	for _, name := range sortedKeys(s.deps) {
		if err := s.deps[name].Ping(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", name, err)
		}
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		s.logg.Error(ctx, "worker dependencies unavailable", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range sortedKeys(s.subscribers) {
		sub := s.subscribers[name]
		subCtx := s.logg.WithField(gctx, "subscriber", name)
		g.Go(func() error {
			s.logg.Info(subCtx, "subscriber started")
			err := sub.Run(subCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(subCtx, "subscriber stopped", err)
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
