package costco

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"pricescout-backend/lib/htmlutil"
	"pricescout-backend/lib/listing"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultSearchUrl = "https://www.costco.co.jp/CatalogSearch?dept=All&keyword=%s"

type BrowserOptions struct {
	// SearchUrl is a template whose %s is replaced with the escaped
	// search term.
	SearchUrl string
	// Bin optionally pins the chromium binary instead of letting the
	// launcher resolve one.
	Bin         string
	MaxPages    int
	WaitTimeout time.Duration
	NavRetries  int
}

// BrowserSource scrapes the js-rendered storefront through a headless
// chromium session. The session is transient: one browser per Search
// call, closed on every exit path.
type BrowserSource struct {
	opts BrowserOptions
}

func NewBrowserSource(opts BrowserOptions) BrowserSource {
	if opts.SearchUrl == "" {
		opts.SearchUrl = defaultSearchUrl
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 5
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if opts.NavRetries <= 0 {
		opts.NavRetries = 3
	}
	return BrowserSource{opts: opts}
}

func (s BrowserSource) Search(ctx context.Context, term string) ([]listing.Raw, error) {
	ctx, span := tracer.Start(ctx, "browser:Search")
	defer span.End()
	span.SetAttributes(attribute.String("custom.term", term))

	l := launcher.New().Headless(true).NoSandbox(true)
	if s.opts.Bin != "" {
		l = l.Bin(s.opts.Bin)
	}
	controlUrl, err := l.Launch()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to launch chromium")
		return nil, fmt.Errorf("%w: launch: %v", ErrNavigationFailed, err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlUrl).Context(ctx)
	err = browser.Connect()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to connect to chromium")
		return nil, fmt.Errorf("%w: connect: %v", ErrNavigationFailed, err)
	}
	defer browser.Close()

	searchUrl := fmt.Sprintf(s.opts.SearchUrl, url.QueryEscape(term))

	var lastErr error
	for attempt := 0; attempt < s.opts.NavRetries; attempt++ {
		if attempt > 0 {
			// exponential backoff, base 1s, factor 2
			delay := time.Second << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
		}

		items, err := s.scrape(ctx, browser, searchUrl)
		if err == nil {
			span.SetAttributes(attribute.Int("custom.listings", len(items)))
			return items, nil
		}
		lastErr = err
		if !errors.Is(err, ErrNavigationFailed) && !errors.Is(err, ErrTimeout) {
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "scrape exhausted retries")
	return nil, lastErr
}

func (s BrowserSource) scrape(ctx context.Context, browser *rod.Browser, searchUrl string) ([]listing.Raw, error) {
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("%w: open page: %v", ErrNavigationFailed, err)
	}
	defer page.Close()
	page = page.Context(ctx)

	err = page.Navigate(searchUrl)
	if err != nil {
		return nil, fmt.Errorf("%w: navigate: %v", ErrNavigationFailed, err)
	}
	err = page.WaitLoad()
	if err != nil {
		return nil, fmt.Errorf("%w: wait load: %v", ErrNavigationFailed, err)
	}

	base, err := url.Parse(searchUrl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNavigationFailed, err)
	}

	var items []listing.Raw
	for pageNum := 0; pageNum < s.opts.MaxPages; pageNum++ {
		err := s.waitForResults(ctx, page)
		if errors.Is(err, ErrResultsSelectorMissing) && pageNum == 0 {
			// a rendered no-results page is a normal empty outcome
			if noResults, _, herr := page.Has(selectorNoResults); herr == nil && noResults {
				return nil, nil
			}
			return nil, err
		}
		if err != nil {
			return nil, err
		}

		pageItems, err := s.extract(page, base)
		if err != nil {
			return nil, err
		}
		items = append(items, pageItems...)

		hasNext, next, err := page.Has(selectorNext)
		if err != nil || !hasNext {
			break
		}
		err = next.Click(proto.InputMouseButtonLeft, 1)
		if err != nil {
			break
		}
		// the product list swaps in place, no full load event
		page.WaitStable(time.Second)
	}

	return items, nil
}

// waitForResults blocks until the listing container attaches, bounded
// by the configured wait.
func (s BrowserSource) waitForResults(ctx context.Context, page *rod.Page) error {
	bounded := page.Timeout(s.opts.WaitTimeout)
	defer bounded.CancelTimeout()

	_, err := bounded.Element(selectorItem)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %q", ErrResultsSelectorMissing, selectorItem)
	}
	return fmt.Errorf("%w: %v", ErrNavigationFailed, err)
}

func (s BrowserSource) extract(page *rod.Page, base *url.URL) ([]listing.Raw, error) {
	elements, err := page.Elements(selectorItem)
	if err != nil {
		return nil, fmt.Errorf("%w: query items: %v", ErrNavigationFailed, err)
	}

	var items []listing.Raw
	for _, el := range elements {
		hasName, nameEl, err := el.Has(selectorName)
		if err != nil || !hasName {
			continue
		}
		hasPrice, priceEl, err := el.Has(selectorPrice)
		if err != nil || !hasPrice {
			continue
		}

		name, err := nameEl.Text()
		if err != nil {
			continue
		}
		name = htmlutil.CleanText(name)
		if name == "" {
			continue
		}
		priceText, err := priceEl.Text()
		if err != nil {
			continue
		}
		price, ok := parsePrice(priceText)
		if !ok {
			continue
		}

		href := ""
		if attr, err := nameEl.Attribute("href"); err == nil && attr != nil {
			href = htmlutil.ResolveHref(base, *attr)
		}

		items = append(items, listing.Raw{
			Name:   name,
			Price:  price,
			Url:    href,
			Source: listing.SourceCostco,
		})
	}
	return items, nil
}
