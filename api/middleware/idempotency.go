package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/tinytales/storefront-backend/api/responses"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/logger"
	pkgredis "github.com/tinytales/storefront-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	// CheckoutReplayTTL keeps checkout answers long enough to cover a customer
	// retrying from a stale tab days later.
	CheckoutReplayTTL = 7 * 24 * time.Hour
	DefaultReplayTTL  = 24 * time.Hour

	// inFlightTTL caps how long a crashed request can block its key.
	inFlightTTL = 2 * time.Minute
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotent replays the first answer given to an Idempotency-Key. A second request
// that arrives while the first is still running gets 409 instead of a second order.
// Safe methods pass through untouched.
func Idempotent(store pkgredis.IdempotencyStore, logg *logger.Logger, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := requestHash(body)

			key := store.IdempotencyKey(requestScope(r), clientKey)
			doneKey, lockKey := key+":done", key+":lock"

			if replayed, err := replay(w, r, store, doneKey, hash, logg); err != nil || replayed {
				return
			}

			won, err := store.SetNX(ctx, lockKey, hash, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !won {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
				return
			}
			defer func() {
				if err := store.Del(ctx, lockKey); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency reservation", err)
				}
			}()

			// The first holder may have finished between our lookup and reservation.
			if replayed, err := replay(w, r, store, doneKey, hash, logg); err != nil || replayed {
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// 5xx answers are not remembered so the client can retry with the same key.
			if capture.status >= http.StatusInternalServerError {
				return
			}
			record, err := json.Marshal(storedResponse{
				Status:      capture.statusOrOK(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, doneKey, string(record), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "store idempotent response", err)
			}
		})
	}
}

// replay writes the stored answer for doneKey, if any. err is non-nil only after an
// error response has already been written.
func replay(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, doneKey, hash string, logg *logger.Logger) (bool, error) {
	ctx := r.Context()
	raw, err := store.Get(ctx, doneKey)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return false, nil
	}
	if err != nil {
		err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up idempotency key")
		responses.WriteError(ctx, logg, w, err)
		return false, err
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode stored response")
		responses.WriteError(ctx, logg, w, wrapped)
		return false, wrapped
	}
	if stored.RequestHash != hash {
		mismatch := pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body")
		responses.WriteError(ctx, logg, w, mismatch)
		return false, mismatch
	}

	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
	return true, nil
}

// requestScope ties a key to the caller and the route so two customers, or one
// customer on two endpoints, never share an answer.
func requestScope(r *http.Request) string {
	actor := UserIDFromContext(r.Context())
	if actor == "" {
		actor = "anon"
	}
	route := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.Contains(pattern, "*") {
			route = pattern
		}
	}
	return actor + "|" + r.Method + "|" + route
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
