package controllers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinytales/storefront-backend/api/middleware"
	"github.com/tinytales/storefront-backend/api/responses"
	"github.com/tinytales/storefront-backend/pkg/config"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/logger"
)

const (
	envHeader    = "X-TinyTales-Env"
	pingTimeout = 3 * time.Second
)

// Pinger is a dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency in parallel. Any failure answers 503 with
// the per-dependency results in the error details.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks, err := checkDeps(r.Context(), deps)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "not ready").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

func checkDeps(ctx context.Context, deps map[string]Pinger) (map[string]string, error) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(deps))
		failed []error
	)
	var g errgroup.Group
	for name, dep := range deps {
		if dep == nil {
			continue
		}
		g.Go(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()
			err := dep.Ping(pingCtx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[name] = "unavailable"
				failed = append(failed, errors.New(name+": "+err.Error()))
				return nil
			}
			checks[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()
	return checks, errors.Join(failed...)
}

// Ping answers with the caller's admin role when there is one, so a client can
// check which surface and credentials it is talking to.
func Ping(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"scope": scope, "status": "ok"}
		if actor, ok := middleware.ActorFromContext(r.Context()); ok {
			body["role"] = actor.Role.String()
		}
		responses.WriteSuccess(w, body)
	}
}
