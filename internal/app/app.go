// Package app is the startup and shutdown plumbing every binary shares: load
// .env and config, build the logger, open backing services, and close them in
// reverse order once the body returns.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/db"
	"github.com/tinytales/storefront-backend/pkg/logger"
	"github.com/tinytales/storefront-backend/pkg/migrate"
	"github.com/tinytales/storefront-backend/pkg/pubsub"
	"github.com/tinytales/storefront-backend/pkg/redis"
)

// Body is a binary's main loop. It should return once ctx is cancelled.
type Body func(ctx context.Context, p *Process) error

// Process is handed to a Body. Everything opened through it is closed after the
// Body returns.
type Process struct {
	Name    string
	Config  *config.Config
	Logger  *logger.Logger
	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Run executes body as the named binary and exits with its status.
func Run(name string, body Body) {
	os.Exit(run(name, body))
}

func run(name string, body Body) int {
	boot := logger.New(logger.Options{ServiceName: name})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		return 1
	}

	logg := logger.New(logger.Options{
		ServiceName: name,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": name,
	})

	p := &Process{Name: name, Config: cfg, Logger: logg}
	defer p.closeAll(context.WithoutCancel(ctx))

	logg.Info(ctx, "starting "+name)
	return p.exitCode(ctx, body(ctx, p))
}

func (p *Process) exitCode(ctx context.Context, err error) int {
	if err != nil && !errors.Is(err, context.Canceled) {
		p.Logger.Error(ctx, p.Name+" stopped unexpectedly", err)
		return 1
	}
	p.Logger.Info(ctx, p.Name+" shut down gracefully")
	return 0
}

// OnClose registers fn to run at shutdown. Closers run last-registered first.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

func (p *Process) closeAll(ctx context.Context) {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil {
			p.Logger.Error(ctx, "error closing "+c.name, err)
		}
	}
	p.closers = nil
}

// Database connects to Postgres (or SQLite in dev) and applies dev migrations.
func (p *Process) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, p.Config.DB, p.Config.FeatureFlags.UseSQLite, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	p.OnClose("database", client.Close)
	if err := migrate.MaybeRunDev(ctx, p.Config, p.Logger, client); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return client, nil
}

func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	p.OnClose("redis", client.Close)
	return client, nil
}

func (p *Process) PubSub(ctx context.Context) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap pubsub: %w", err)
	}
	p.OnClose("pubsub client", client.Close)
	return client, nil
}
