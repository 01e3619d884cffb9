package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/enums"
)

var testConfig = config.JWTConfig{Secret: "secret", Issuer: "tinytales", ExpirationMinutes: 30}

func newTestSigner(t *testing.T, now time.Time) *Signer {
	t.Helper()
	signer, err := NewSigner(testConfig, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return signer
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	signer := newTestSigner(t, now)
	adminID := uuid.New()

	token, err := signer.Issue(adminID, enums.AdminRoleSalesAdmin)
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, enums.AdminRoleSalesAdmin, claims.Role)
	require.Equal(t, "tinytales", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{Audience}, claims.Audience)
	require.NotEmpty(t, claims.ID)
	require.True(t, claims.ExpiresAt.Time.Equal(now.Add(30*time.Minute)))

	got, err := claims.AdminID()
	require.NoError(t, err)
	require.Equal(t, adminID, got)
}

func TestVerifyExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	signer := newTestSigner(t, issued)
	token, err := signer.Issue(uuid.New(), enums.AdminRoleSuperAdmin)
	require.NoError(t, err)

	// Within the skew allowance the token still passes.
	signer.now = func() time.Time { return issued.Add(30*time.Minute + 10*time.Second) }
	_, err = signer.Verify(token)
	require.NoError(t, err)

	signer.now = func() time.Time { return issued.Add(31 * time.Minute) }
	_, err = signer.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejects(t *testing.T) {
	now := time.Now()
	signer := newTestSigner(t, now)
	valid, err := signer.Issue(uuid.New(), enums.AdminRoleAccountsAdmin)
	require.NoError(t, err)

	otherIssuer, err := NewSigner(config.JWTConfig{Secret: "secret", Issuer: "someone-else", ExpirationMinutes: 5})
	require.NoError(t, err)
	foreign, err := otherIssuer.Issue(uuid.New(), enums.AdminRoleAccountsAdmin)
	require.NoError(t, err)

	cases := map[string]string{
		"tampered":       valid + "x",
		"garbage":        "not-a-jwt",
		"foreign issuer": foreign,
		"unknown role": sign(t, Claims{
			Role:             "CUSTOMER",
			RegisteredClaims: baseClaims(now, uuid.NewString()),
		}),
		"subject not uuid": sign(t, Claims{
			Role:             enums.AdminRoleSuperAdmin,
			RegisteredClaims: baseClaims(now, "admin@tinytales"),
		}),
		"no audience": sign(t, Claims{
			Role: enums.AdminRoleSuperAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.NewString(),
				Issuer:    testConfig.Issuer,
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			},
		}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := signer.Verify(token)
			require.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestIssueValidatesInput(t *testing.T) {
	signer := newTestSigner(t, time.Now())

	_, err := signer.Issue(uuid.Nil, enums.AdminRoleSuperAdmin)
	require.Error(t, err)
	_, err = signer.Issue(uuid.New(), "")
	require.Error(t, err)
}

func TestNewSignerValidatesConfig(t *testing.T) {
	for _, cfg := range []config.JWTConfig{
		{Issuer: "tinytales", ExpirationMinutes: 5},
		{Secret: "secret", ExpirationMinutes: 5},
		{Secret: "secret", Issuer: "tinytales"},
	} {
		_, err := NewSigner(cfg)
		require.Error(t, err)
	}
}

func baseClaims(now time.Time, subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    testConfig.Issuer,
		Audience:  jwt.ClaimStrings{Audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
}

func sign(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)
	return token
}
