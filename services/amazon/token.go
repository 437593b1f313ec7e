package amazon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pricescout-backend/lib/restyutil"

	"github.com/dubonzi/otelresty"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

// expirySafetyMargin trims the advertised token lifetime so a token is
// never used right at its expiry edge.
const expirySafetyMargin = time.Minute

// TokenCache holds the short-lived LWA access token and refreshes it
// lazily through the long-lived refresh credential. Refreshes are
// single-flighted: concurrent callers share one refresh call.
type TokenCache struct {
	http  *resty.Client
	creds Credentials
	now   func() time.Time

	group singleflight.Group

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewTokenCache(creds Credentials) *TokenCache {
	client := resty.New()
	client.SetTimeout(time.Second * 15)
	otelresty.TraceClient(client, otelresty.WithTracerName("amazon-lwa-http"))
	restyutil.RecordTraffic(client, restyOutput)

	return &TokenCache{
		http:  client,
		creds: creds,
		now:   time.Now,
	}
}

// Token returns a valid access token, refreshing if the cached one is
// absent or expired.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	// the key is the credential identity: one refresh in flight per
	// client id
	v, err, _ := c.group.Do(c.creds.ClientId, func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next call refreshes. Called
// when the api rejects a request as unauthorized.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.accessToken = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

type lwaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "TokenCache:refresh")
	defer span.End()

	// a caller racing the budget must not poison the shared refresh,
	// so double check under the lock before hitting the network
	c.mu.Lock()
	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	var out lwaTokenResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": c.creds.RefreshToken,
			"client_id":     c.creds.ClientId,
			"client_secret": c.creds.ClientSecret,
		}).
		SetResult(&out).
		Post(c.creds.tokenEndpoint())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token refresh request failed")
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case res.StatusCode() == 200:
	case res.StatusCode() >= 400 && res.StatusCode() < 500:
		span.SetStatus(codes.Error, "token refresh rejected")
		return "", fmt.Errorf("%w: token refresh status %d", ErrAuthFailed, res.StatusCode())
	default:
		span.SetStatus(codes.Error, "token endpoint unavailable")
		return "", fmt.Errorf("%w: token refresh status %d", ErrUnavailable, res.StatusCode())
	}

	if out.AccessToken == "" {
		span.SetStatus(codes.Error, "token refresh returned no token")
		return "", fmt.Errorf("%w: empty access token", ErrAuthFailed)
	}

	c.mu.Lock()
	c.accessToken = out.AccessToken
	c.expiresAt = c.now().Add(time.Duration(out.ExpiresIn)*time.Second - expirySafetyMargin)
	c.mu.Unlock()

	return out.AccessToken, nil
}
