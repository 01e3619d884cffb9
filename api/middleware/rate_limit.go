package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/tinytales/storefront-backend/api/responses"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/logger"
)

const maxPeekBytes = 1 << 20

// RateLimitStore counts requests per key within a window.
type RateLimitStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// RateLimitPolicy throttles one public surface per client IP and, when perPhone
// is set, per contact phone found in the JSON body. A zero limit turns that
// dimension off.
type RateLimitPolicy struct {
	name     string
	window   time.Duration
	perIP    int64
	perPhone int64
}

func NewRateLimitPolicy(name string, window time.Duration, perIP, perPhone int) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "public"
	}
	return RateLimitPolicy{name: name, window: window, perIP: int64(perIP), perPhone: int64(perPhone)}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.perIP > 0 || p.perPhone > 0)
}

// subject is one counter a request is charged against.
type subject struct {
	dimension string
	value     string
	limit     int64
}

// subjects lists the counters for r. Reading the phone consumes the body, so it
// is put back for the handler.
func (p RateLimitPolicy) subjects(r *http.Request) ([]subject, error) {
	var out []subject
	if ip := clientIP(r); p.perIP > 0 && ip != "" {
		out = append(out, subject{dimension: "ip", value: ip, limit: p.perIP})
	}
	if p.perPhone <= 0 || r.Body == nil {
		return out, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if phone := phoneDigits(body); phone != "" {
		sum := sha256.Sum256([]byte(phone))
		out = append(out, subject{dimension: "phone", value: hex.EncodeToString(sum[:]), limit: p.perPhone})
	}
	return out, nil
}

// RateLimit charges every request to each of its subjects and answers 429 with
// Retry-After once any counter passes its limit.
func RateLimit(policy RateLimitPolicy, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			subjects, err := policy.subjects(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body could not be read"))
				return
			}
			for _, s := range subjects {
				key := store.RateLimitKey(policy.name + ":" + s.dimension + ":" + s.value)
				count, err := store.IncrWithTTL(ctx, key, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
					return
				}
				if count > s.limit {
					rejectOverLimit(ctx, logg, w, policy, s, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectOverLimit(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, s subject, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":    policy.name,
			"dimension": s.dimension,
			"subject":   s.value,
			"attempts":  count,
			"limit":     s.limit,
		}), "rate limit exceeded")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(policy.window.Seconds()))))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests, try again later"))
}

// clientIP takes the first parseable X-Forwarded-For hop, then X-Real-IP, then
// the socket address.
func clientIP(r *http.Request) string {
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(hop)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// phoneDigits pulls contactPhone out of a JSON body and keeps only its digits,
// so "980-000-0000" and "9800000000" share a counter.
func phoneDigits(body []byte) string {
	var payload struct {
		ContactPhone string `json:"contactPhone"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, payload.ContactPhone)
}
