package costco

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"pricescout-backend/lib/listing"
	"pricescout-backend/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	fakeua "github.com/EDDYCJY/fake-useragent"
	"github.com/dubonzi/otelresty"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultSearchApiUrl = "https://search.costco.com/api/apps/www_costco_com/query/www_costco_com_navigation"

type SearchApiOptions struct {
	Endpoint string
	Rows     int
	MaxPages int
}

// SearchApiSource queries the storefront's json search endpoint
// directly. Much cheaper than the browser, but the endpoint is just as
// unversioned as the DOM.
type SearchApiSource struct {
	http *resty.Client
	opts SearchApiOptions
}

func NewSearchApiSource(opts SearchApiOptions) SearchApiSource {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultSearchApiUrl
	}
	if opts.Rows <= 0 {
		opts.Rows = 24
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 5
	}

	client := resty.New()
	client.SetTimeout(time.Second * 30)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", fakeua.Random())
	client.SetHeader("accept", "application/json")
	client.SetHeader("referer", "https://www.costco.com/")
	client.SetHeader("origin", "https://www.costco.com")

	otelresty.TraceClient(client, otelresty.WithTracerName("costco-search-http"))
	restyutil.RecordTraffic(client, restyOutput)

	return SearchApiSource{http: client, opts: opts}
}

type searchApiResponse struct {
	Response struct {
		Docs []searchApiDoc `json:"docs"`
	} `json:"response"`
}

type searchApiDoc struct {
	Name       string  `json:"item_product_name"`
	SalePrice  float64 `json:"item_location_pricing_salePrice"`
	ListPrice  float64 `json:"item_location_pricing_listPrice"`
	ItemNumber string  `json:"item_number"`
}

func (s SearchApiSource) Search(ctx context.Context, term string) ([]listing.Raw, error) {
	ctx, span := tracer.Start(ctx, "searchapi:Search")
	defer span.End()
	span.SetAttributes(attribute.String("custom.term", term))

	var items []listing.Raw
	for page := 0; page < s.opts.MaxPages; page++ {
		var out searchApiResponse
		res, err := s.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"expoption": "def",
				"q":         term,
				"locale":    "en-US",
				"start":     strconv.Itoa(page * s.opts.Rows),
				"rows":      strconv.Itoa(s.opts.Rows),
				"expand":    "false",
				"loc":       "*",
			}).
			SetResult(&out).
			Get(s.opts.Endpoint)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "search request failed")
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
		}
		if res.StatusCode() != 200 {
			span.SetStatus(codes.Error, "search returned non-200")
			return nil, fmt.Errorf("%w: status %d", ErrNavigationFailed, res.StatusCode())
		}
		if len(out.Response.Docs) == 0 {
			break
		}

		for _, doc := range out.Response.Docs {
			price := doc.SalePrice
			if price <= 0 {
				price = doc.ListPrice
			}
			if doc.Name == "" || price <= 0 {
				continue
			}
			items = append(items, listing.Raw{
				Name:   doc.Name,
				Price:  int64(math.Round(price * 100)),
				Url:    fmt.Sprintf("https://www.costco.com/product/%s", doc.ItemNumber),
				Source: listing.SourceCostco,
			})
		}
	}

	span.SetAttributes(attribute.Int("custom.listings", len(items)))
	return items, nil
}
