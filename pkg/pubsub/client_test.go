package pubsub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinytales/storefront-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		kind, id, want string
	}{
		{kindTopic, "tt-order-events", "projects/shop/topics/tt-order-events"},
		{kindSubscription, " tt-order-notifications ", "projects/shop/subscriptions/tt-order-notifications"},
		{kindTopic, "projects/other/topics/events", "projects/other/topics/events"},
		{kindSubscription, "   ", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, resourceName("shop", tc.kind, tc.id), tc.id)
	}
}

func TestCredentials(t *testing.T) {
	require.Empty(t, credentials(config.GCPConfig{ProjectID: "p"}))
	require.Len(t, credentials(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds.json"}), 1)
	require.Len(t, credentials(config.GCPConfig{ApplicationCredentials: "/tmp/creds.json"}), 1)
}

func TestDescribe(t *testing.T) {
	require.NoError(t, describe("topic", "t", nil))
	require.EqualError(t,
		describe("topic", "projects/p/topics/t", status.Error(codes.NotFound, "gone")),
		`topic "projects/p/topics/t" does not exist`)

	err := describe("subscription", "s", status.Error(codes.PermissionDenied, "nope"))
	require.Equal(t, codes.PermissionDenied, status.Code(errors.Unwrap(err)))
}

func TestNilClientPing(t *testing.T) {
	var c *Client
	require.Error(t, c.Ping(t.Context()))
	require.NoError(t, c.Close())
}
