package amazon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"pricescout-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func testCredentials(tokenEndpoint string) Credentials {
	return Credentials{
		ClientId:        "amzn1.application-oa2-client.test",
		ClientSecret:    "secret",
		RefreshToken:    "Atzr|refresh",
		AccessKeyId:     "AKIATEST",
		SecretAccessKey: "aws-secret",
		Region:          "us-west-2",
		MarketplaceId:   "A1VC38T7YXB528",
		Endpoint:        "sellingpartnerapi-fe.amazon.com",
		TokenEndpoint:   tokenEndpoint,
	}
}

func TestTokenRefreshSingleFlight(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:amazon")
	defer cleanup()

	var refreshCalls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.FormValue("grant_type"))
		require.Equal(t, "Atzr|refresh", r.FormValue("refresh_token"))

		refreshCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"Atza|access-1","expires_in":3600,"token_type":"bearer"}`))
	}))
	defer server.Close()

	cache := NewTokenCache(testCredentials(server.URL))
	ctx := context.Background()

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := cache.Token(ctx)
			require.NoError(t, err)
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	for _, token := range tokens {
		require.Equal(t, "Atza|access-1", token)
	}
	require.Equal(t, int64(1), refreshCalls.Load())

	// cached: no further refresh
	_, err := cache.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), refreshCalls.Load())

	// explicit invalidation forces one more
	cache.Invalidate()
	_, err = cache.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), refreshCalls.Load())
}

func TestTokenRefreshAuthFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	cache := NewTokenCache(testCredentials(server.URL))
	_, err := cache.Token(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAuthFailed))
}

func TestCredentialsValidate(t *testing.T) {
	require.NoError(t, testCredentials("").Validate())

	creds := testCredentials("")
	creds.ClientSecret = ""
	creds.Region = ""
	err := creds.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "client_secret")
	require.Contains(t, err.Error(), "region")
}
