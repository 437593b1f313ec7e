package amazon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"pricescout-backend/lib/listing"
	"pricescout-backend/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// spapiFixture serves the LWA token endpoint plus canned catalog and
// pricing responses on one server.
func spapiFixture(t *testing.T, pricingStatus int) (*httptest.Server, *Client) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/o2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"Atza|access","expires_in":3600}`))
	})
	mux.HandleFunc(catalogSearchPath, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Atza|access", r.Header.Get("x-amz-access-token"))
		require.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "AWS4-HMAC-SHA256 Credential=AKIATEST/"))
		require.NotEmpty(t, r.Header.Get("x-amz-date"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{
				"numberOfResults": 3,
				"pagination": {"nextToken": "page-2"},
				"items": [
					{"asin": "B0AAA", "summaries": [{"itemName": "カークランド バスティッシュ 30ロール"}]},
					{"asin": "B0BBB", "summaries": [{"itemName": "パステルカラーペーパー 10冊"}]}
				]
			}`))
			return
		}
		w.Write([]byte(`{
			"numberOfResults": 3,
			"pagination": {},
			"items": [
				{"asin": "B0CCC", "summaries": [{"itemName": "未価格の商品"}]}
			]
		}`))
	})
	mux.HandleFunc(competitivePricePath, func(w http.ResponseWriter, r *http.Request) {
		if pricingStatus != http.StatusOK {
			w.WriteHeader(pricingStatus)
			return
		}
		require.Equal(t, "B0AAA,B0BBB,B0CCC", r.URL.Query().Get("Asins"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"payload": [
				{"ASIN": "B0AAA", "Product": {"CompetitivePricing": {"CompetitivePrices": [
					{"Price": {"LandedPrice": {"CurrencyCode": "JPY", "Amount": 2500}}}
				]}}},
				{"ASIN": "B0BBB", "Product": {"CompetitivePricing": {"CompetitivePrices": [
					{"Price": {"LandedPrice": {"CurrencyCode": "JPY", "Amount": 1500}}}
				]}}},
				{"ASIN": "B0CCC", "Product": {"CompetitivePricing": {"CompetitivePrices": []}}}
			]
		}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	creds := testCredentials(server.URL + "/auth/o2/token")
	creds.Endpoint = server.URL
	creds.StorefrontUrl = "https://www.amazon.co.jp"

	tokens := NewTokenCache(creds)
	client := NewClient(creds, tokens, ClientOptions{
		MaxCandidates: 20,
		PageSize:      2,
		RetryCount:    2,
		RetryWaitTime: time.Millisecond * 10,
	})
	return server, client
}

func TestSearch(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:amazon")
	defer cleanup()

	_, client := spapiFixture(t, http.StatusOK)

	items, err := client.Search(context.Background(), "トイレットペーパー")
	require.NoError(t, err)

	expected := []listing.Raw{
		{
			Name:   "カークランド バスティッシュ 30ロール",
			Price:  2500,
			Url:    "https://www.amazon.co.jp/dp/B0AAA",
			Source: listing.SourceAmazon,
		},
		{
			Name:   "パステルカラーペーパー 10冊",
			Price:  1500,
			Url:    "https://www.amazon.co.jp/dp/B0BBB",
			Source: listing.SourceAmazon,
		},
	}
	if diff := cmp.Diff(expected, items); diff != "" {
		t.Fatalf("unexpected listings (-want +got):\n%s", diff)
	}
}

func TestSearchRateLimited(t *testing.T) {
	_, client := spapiFixture(t, http.StatusTooManyRequests)

	_, err := client.Search(context.Background(), "トイレットペーパー")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrRateLimited))
}

func TestSearchUnavailable(t *testing.T) {
	_, client := spapiFixture(t, http.StatusServiceUnavailable)

	_, err := client.Search(context.Background(), "トイレットペーパー")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnavailable))
}

func TestCanonicalQuery(t *testing.T) {
	query := url.Values{}
	query.Set("keywords", "トイレ ペーパー")
	query.Set("marketplaceIds", "A1VC38T7YXB528")
	query.Set("pageSize", "10")

	canonical := canonicalQuery(query)
	require.Equal(
		t,
		fmt.Sprintf(
			"keywords=%s&marketplaceIds=A1VC38T7YXB528&pageSize=10",
			"%E3%83%88%E3%82%A4%E3%83%AC%20%E3%83%9A%E3%83%BC%E3%83%91%E3%83%BC",
		),
		canonical,
	)
	// never the form-style plus
	require.NotContains(t, canonical, "+")
}

func TestSignRequestDeterministic(t *testing.T) {
	creds := testCredentials("")
	query := url.Values{}
	query.Set("Asins", "B0AAA")
	query.Set("MarketplaceId", "A1VC38T7YXB528")

	at := time.Date(2025, 7, 1, 12, 30, 0, 0, time.UTC)
	a := signRequest(creds, "GET", "sellingpartnerapi-fe.amazon.com", competitivePricePath, query, nil, at)
	b := signRequest(creds, "GET", "sellingpartnerapi-fe.amazon.com", competitivePricePath, query, nil, at)

	require.Equal(t, a, b)
	require.Equal(t, "20250701T123000Z", a["x-amz-date"])
	require.Contains(t, a["Authorization"], "Credential=AKIATEST/20250701/us-west-2/execute-api/aws4_request")
	require.Contains(t, a["Authorization"], "SignedHeaders=host;user-agent;x-amz-date")
}
