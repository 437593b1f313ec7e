package costco

import (
	"bytes"
	"context"
	"net/url"

	"pricescout-backend/lib/htmlutil"
	"pricescout-backend/lib/listing"

	"github.com/PuerkitoBio/goquery"
)

// FixtureSource replays a recorded search-results page. It backs
// deterministic tests and local development without a live browser.
type FixtureSource struct {
	items []listing.Raw
}

// NewFixtureSource extracts listings out of recorded storefront html
// using the same selectors the browser source drives.
func NewFixtureSource(html []byte, baseUrl string) (FixtureSource, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return FixtureSource{}, err
	}
	base, err := url.Parse(baseUrl)
	if err != nil {
		return FixtureSource{}, err
	}

	var items []listing.Raw
	doc.Find(selectorItem).Each(func(_ int, sel *goquery.Selection) {
		nameEl := sel.Find(selectorName)
		name := htmlutil.CleanText(nameEl.Text())
		if name == "" {
			return
		}
		price, ok := parsePrice(sel.Find(selectorPrice).Text())
		if !ok {
			return
		}

		href := ""
		if attr, exists := nameEl.Attr("href"); exists {
			href = htmlutil.ResolveHref(base, attr)
		}

		items = append(items, listing.Raw{
			Name:   name,
			Price:  price,
			Url:    href,
			Source: listing.SourceCostco,
		})
	})

	return FixtureSource{items: items}, nil
}

func (s FixtureSource) Search(ctx context.Context, term string) ([]listing.Raw, error) {
	return s.items, nil
}
