package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tinytales/storefront-backend/pkg/auth"
	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/enums"
)

func testSigner(t *testing.T) *auth.Signer {
	t.Helper()
	signer, err := auth.NewSigner(config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60})
	require.NoError(t, err)
	return signer
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	signer := testSigner(t)
	handler := Auth(signer, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := map[string]string{
		"missing":        "",
		"wrong scheme":   "Basic dXNlcjpwYXNz",
		"bare token":     "eyJhbGciOiJIUzI1NiJ9",
		"empty bearer":   "Bearer ",
		"not a jwt":      "Bearer invalid",
		"bearer garbage": "bearer a.b.c",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			require.Equal(t, http.StatusUnauthorized, resp.Code)
		})
	}
}

func TestAuthSeedsActor(t *testing.T) {
	signer := testSigner(t)
	adminID := uuid.New()
	token, err := signer.Issue(adminID, enums.AdminRoleSalesAdmin)
	require.NoError(t, err)

	var seen Actor
	handler := Auth(signer, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "BEARER "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, Actor{ID: adminID.String(), Role: enums.AdminRoleSalesAdmin}, seen)
}

func TestAuthReportsExpiredToken(t *testing.T) {
	signer, err := auth.NewSigner(config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 1})
	require.NoError(t, err)
	token := expiredToken(t)

	handler := Auth(signer, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusUnauthorized, resp.Code)
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "token expired", body.Error.Message)
}

func TestRequireAnyRole(t *testing.T) {
	tests := []struct {
		name string
		role enums.AdminRole
		want int
	}{
		{"allowed", enums.AdminRoleAccountsAdmin, http.StatusOK},
		{"other admin", enums.AdminRoleSalesAdmin, http.StatusForbidden},
		{"anonymous", "", http.StatusForbidden},
	}
	handler := RequireAnyRole(nil, enums.AdminRoleSuperAdmin, enums.AdminRoleAccountsAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.role != "" {
				req = req.WithContext(WithActor(req.Context(), Actor{ID: uuid.NewString(), Role: tt.role}))
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			require.Equal(t, tt.want, resp.Code)
		})
	}
}

// expiredToken signs a token with a clock two hours in the past.
func expiredToken(t *testing.T) string {
	t.Helper()
	past := auth.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	signer, err := auth.NewSigner(config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 1}, past)
	require.NoError(t, err)
	token, err := signer.Issue(uuid.New(), enums.AdminRoleSuperAdmin)
	require.NoError(t, err)
	return token
}
