package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinytales/storefront-backend/api/middleware"
	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/enums"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type slowPinger struct{}

func (slowPinger) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHealthReady(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	cases := []struct {
		name   string
		deps   map[string]Pinger
		status int
		checks map[string]string
	}{
		{
			name:   "all healthy",
			deps:   map[string]Pinger{"database": stubPinger{}, "redis": stubPinger{}},
			status: http.StatusOK,
			checks: map[string]string{"database": "ok", "redis": "ok"},
		},
		{
			name:   "redis down",
			deps:   map[string]Pinger{"database": stubPinger{}, "redis": stubPinger{err: errors.New("refused")}},
			status: http.StatusServiceUnavailable,
			checks: map[string]string{"database": "ok", "redis": "unavailable"},
		},
		{
			name:   "nil dependency skipped",
			deps:   map[string]Pinger{"database": stubPinger{}, "redis": nil},
			status: http.StatusOK,
			checks: map[string]string{"database": "ok"},
		},
		{name: "no deps", status: http.StatusOK, checks: map[string]string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp := httptest.NewRecorder()
			HealthReady(cfg, nil, tc.deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			require.Equal(t, tc.status, resp.Code)
			require.Equal(t, "test", resp.Header().Get(envHeader))

			var body struct {
				Data  struct{ Checks map[string]string } `json:"data"`
				Error struct{ Details map[string]string } `json:"error"`
			}
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			got := body.Data.Checks
			if tc.status != http.StatusOK {
				got = body.Error.Details
			}
			if got == nil {
				got = map[string]string{}
			}
			require.Equal(t, tc.checks, got)
		})
	}
}

func TestCheckDepsReportsHungDependencyOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checks, err := checkDeps(ctx, map[string]Pinger{"pubsub": slowPinger{}})
	require.ErrorContains(t, err, "pubsub")
	require.Equal(t, map[string]string{"pubsub": "unavailable"}, checks)
}

func TestPingReportsActorRole(t *testing.T) {
	resp := httptest.NewRecorder()
	Ping("public").ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.JSONEq(t, `{"data":{"scope":"public","status":"ok"}}`, resp.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req = req.WithContext(middleware.WithActor(req.Context(), middleware.Actor{Role: enums.AdminRoleSalesAdmin}))
	resp = httptest.NewRecorder()
	Ping("admin").ServeHTTP(resp, req)
	require.JSONEq(t, `{"data":{"scope":"admin","status":"ok","role":"SALES_ADMIN"}}`, resp.Body.String())
}
