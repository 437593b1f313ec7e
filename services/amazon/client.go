package amazon

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pricescout-backend/lib/listing"
	"pricescout-backend/lib/restyutil"

	"github.com/dubonzi/otelresty"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	catalogSearchPath    = "/catalog/2020-12-01/items"
	competitivePricePath = "/pricing/v0/competitivePrice"
)

type ClientOptions struct {
	// MaxCandidates bounds how many search hits are priced and
	// returned per term, which in turn bounds matching cost.
	MaxCandidates int
	PageSize      int
	RetryCount    int
	RetryWaitTime time.Duration
}

// Client issues signed search and pricing requests against the sp-api.
type Client struct {
	http   *resty.Client
	creds  Credentials
	tokens *TokenCache
	opts   ClientOptions
	host   string
	now    func() time.Time
}

func NewClient(creds Credentials, tokens *TokenCache, opts ClientOptions) *Client {
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = 20
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.RetryCount <= 0 {
		opts.RetryCount = 3
	}
	if opts.RetryWaitTime <= 0 {
		opts.RetryWaitTime = time.Second
	}

	host, base := creds.hostAndBase()

	client := resty.New()
	client.SetBaseURL(base)
	client.SetTimeout(time.Second * 30)
	client.SetRetryCount(opts.RetryCount)
	client.SetRetryWaitTime(opts.RetryWaitTime)
	client.SetRetryMaxWaitTime(opts.RetryWaitTime * 16)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil || res == nil {
			return false
		}
		return res.StatusCode() == 429 || res.StatusCode() >= 500
	})
	client.SetRetryAfter(func(c *resty.Client, res *resty.Response) (time.Duration, error) {
		// honor the server's hint when it gives one
		if hint := res.Header().Get("Retry-After"); hint != "" {
			if secs, err := strconv.Atoi(hint); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second, nil
			}
		}
		return c.RetryWaitTime, nil
	})

	otelresty.TraceClient(client, otelresty.WithTracerName("amazon-spapi-http"))
	restyutil.RecordTraffic(client, restyOutput)

	return &Client{
		http:   client,
		creds:  creds,
		tokens: tokens,
		opts:   opts,
		host:   host,
		now:    time.Now,
	}
}

type catalogSearchResponse struct {
	NumberOfResults int `json:"numberOfResults"`
	Pagination      struct {
		NextToken string `json:"nextToken"`
	} `json:"pagination"`
	Items []struct {
		Asin      string `json:"asin"`
		Summaries []struct {
			MarketplaceId string `json:"marketplaceId"`
			ItemName      string `json:"itemName"`
		} `json:"summaries"`
	} `json:"items"`
}

type competitivePriceResponse struct {
	Payload []struct {
		ASIN    string `json:"ASIN"`
		Product struct {
			CompetitivePricing struct {
				CompetitivePrices []struct {
					Price struct {
						LandedPrice struct {
							CurrencyCode string  `json:"CurrencyCode"`
							Amount       float64 `json:"Amount"`
						} `json:"LandedPrice"`
					} `json:"Price"`
				} `json:"CompetitivePrices"`
			} `json:"CompetitivePricing"`
		} `json:"Product"`
	} `json:"payload"`
}

// Search looks a term up in the catalog, follows continuation tokens
// up to the candidate bound, then prices every hit in one batched
// pricing call. Hits the catalog never priced are dropped.
func (c *Client) Search(ctx context.Context, term string) ([]listing.Raw, error) {
	ctx, span := tracer.Start(ctx, "Client:Search")
	defer span.End()
	span.SetAttributes(attribute.String("custom.term", term))

	type candidate struct {
		asin string
		name string
	}
	var candidates []candidate

	pageToken := ""
	for len(candidates) < c.opts.MaxCandidates {
		query := url.Values{}
		query.Set("keywords", term)
		query.Set("marketplaceIds", c.creds.MarketplaceId)
		query.Set("includedData", "summaries")
		query.Set("pageSize", strconv.Itoa(c.opts.PageSize))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var out catalogSearchResponse
		err := c.signedGet(ctx, catalogSearchPath, query, &out)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "catalog search failed")
			return nil, err
		}

		for _, item := range out.Items {
			if item.Asin == "" || len(item.Summaries) == 0 || item.Summaries[0].ItemName == "" {
				continue
			}
			candidates = append(candidates, candidate{asin: item.Asin, name: item.Summaries[0].ItemName})
			if len(candidates) >= c.opts.MaxCandidates {
				break
			}
		}

		pageToken = out.Pagination.NextToken
		if pageToken == "" {
			break
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	asins := make([]string, len(candidates))
	for i, cand := range candidates {
		asins[i] = cand.asin
	}

	query := url.Values{}
	query.Set("MarketplaceId", c.creds.MarketplaceId)
	query.Set("Asins", strings.Join(asins, ","))

	var priced competitivePriceResponse
	err := c.signedGet(ctx, competitivePricePath, query, &priced)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "competitive pricing failed")
		return nil, err
	}

	prices := map[string]int64{}
	for _, p := range priced.Payload {
		if len(p.Product.CompetitivePricing.CompetitivePrices) == 0 {
			continue
		}
		amount := p.Product.CompetitivePricing.CompetitivePrices[0].Price.LandedPrice.Amount
		if amount <= 0 {
			continue
		}
		// jpy carries no minor unit, the landed amount is already
		// integral yen
		prices[p.ASIN] = int64(math.Round(amount))
	}

	var items []listing.Raw
	for _, cand := range candidates {
		price, ok := prices[cand.asin]
		if !ok {
			continue
		}
		items = append(items, listing.Raw{
			Name:   cand.name,
			Price:  price,
			Url:    fmt.Sprintf("%s/dp/%s", c.creds.storefrontUrl(), cand.asin),
			Source: listing.SourceAmazon,
		})
	}

	span.SetAttributes(
		attribute.Int("custom.candidates", len(candidates)),
		attribute.Int("custom.priced", len(items)),
	)
	return items, nil
}

// signedGet issues one SigV4-signed, token-bearing GET and maps the
// terminal status to the error taxonomy. Transient statuses were
// already retried by the http client by the time they surface here.
func (c *Client) signedGet(ctx context.Context, path string, query url.Values, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	headers := signRequest(c.creds, "GET", c.host, path, query, nil, c.now())
	headers["x-amz-access-token"] = token
	headers["Content-Type"] = "application/json"

	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(out).
		Get(path + "?" + canonicalQuery(query))
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case res.StatusCode() == 200:
		return nil
	case res.StatusCode() == 401 || res.StatusCode() == 403:
		c.tokens.Invalidate()
		return fmt.Errorf("%w: status %d", ErrAuthFailed, res.StatusCode())
	case res.StatusCode() == 429:
		return fmt.Errorf("%w: status %d", ErrRateLimited, res.StatusCode())
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode())
	}
}
