// Package amazon is a client for the selling-partner api: LWA token
// refresh, SigV4-signed catalog search and competitive pricing.
package amazon

import (
	"errors"
	"fmt"
	"strings"

	"pricescout-backend/lib/restyutil"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("pricescout.services.amazon")

var restyOutput restyutil.Output

// SetRestyInstrumentOutput enables transcript recording on clients
// constructed after the call.
func SetRestyInstrumentOutput(output restyutil.Output) {
	restyOutput = output
}

var (
	// ErrAuthFailed is non-transient: bad or missing credentials are
	// never retried.
	ErrAuthFailed  = errors.New("marketplace auth failed")
	ErrRateLimited = errors.New("marketplace rate limited")
	ErrUnavailable = errors.New("marketplace unavailable")
)

const defaultTokenEndpoint = "https://api.amazon.com/auth/o2/token"

type Credentials struct {
	ClientId        string `json:"client_id"`
	ClientSecret    string `json:"client_secret"`
	RefreshToken    string `json:"refresh_token"`
	AccessKeyId     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Region          string `json:"region"`
	MarketplaceId   string `json:"marketplace_id"`
	// Endpoint is the sp-api host, with or without a scheme, e.g.
	// "sellingpartnerapi-fe.amazon.com".
	Endpoint string `json:"endpoint"`
	// StorefrontUrl builds customer-facing product links.
	StorefrontUrl string `json:"storefront_url"`
	// TokenEndpoint overrides the LWA token url. Leave empty outside
	// of tests.
	TokenEndpoint string `json:"token_endpoint"`
}

// Validate reports every missing required credential. A failure here
// is a startup configuration error, not a per-request one.
func (c Credentials) Validate() error {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"client_id", c.ClientId},
		{"client_secret", c.ClientSecret},
		{"refresh_token", c.RefreshToken},
		{"access_key_id", c.AccessKeyId},
		{"secret_access_key", c.SecretAccessKey},
		{"region", c.Region},
		{"marketplace_id", c.MarketplaceId},
		{"endpoint", c.Endpoint},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing marketplace credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c Credentials) tokenEndpoint() string {
	if c.TokenEndpoint != "" {
		return c.TokenEndpoint
	}
	return defaultTokenEndpoint
}

func (c Credentials) storefrontUrl() string {
	if c.StorefrontUrl != "" {
		return strings.TrimSuffix(c.StorefrontUrl, "/")
	}
	return "https://www.amazon.co.jp"
}

// hostAndBase splits the configured endpoint into the bare host (which
// participates in request signing) and a base url for the http client.
func (c Credentials) hostAndBase() (string, string) {
	scheme := "https"
	host := c.Endpoint
	if idx := strings.Index(host, "://"); idx >= 0 {
		scheme = host[:idx]
		host = host[idx+3:]
	}
	return host, scheme + "://" + host
}
