package httpclient

import (
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tinytales/storefront-backend/pkg/config"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 2048
)

// New returns an instrumented client for outbound provider calls.
func New(cfg config.HTTPClientConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// DrainError reads a bounded slice of an error response body for logs.
func DrainError(body io.Reader) string {
	if body == nil {
		return ""
	}
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return strings.TrimSpace(string(raw))
}
