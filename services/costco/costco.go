// Package costco acquires product listings from the Costco online
// storefront. The storefront has no stable api contract: the selectors
// and endpoints in this package are a maintenance hazard and must be
// revisited whenever the markup changes.
package costco

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"pricescout-backend/lib/listing"
	"pricescout-backend/lib/restyutil"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("pricescout.services.costco")

var restyOutput restyutil.Output

// SetRestyInstrumentOutput enables transcript recording on clients
// constructed after the call.
func SetRestyInstrumentOutput(output restyutil.Output) {
	restyOutput = output
}

// CatalogSource is the capability interface over the storefront.
// Implementations are the headless browser scraper, the search-api
// client and a recorded-fixture source for deterministic tests.
type CatalogSource interface {
	Search(ctx context.Context, term string) ([]listing.Raw, error)
}

var (
	ErrNavigationFailed       = errors.New("storefront navigation failed")
	ErrTimeout                = errors.New("storefront timed out")
	ErrResultsSelectorMissing = errors.New("results container never attached")
)

// selectors scraped off the rendered product list. Sole contract with
// the storefront DOM.
const (
	selectorItem      = "li.product-list__item"
	selectorName      = "a.product-card__name"
	selectorPrice     = "span.price"
	selectorNext      = "a.pagination-next"
	selectorNoResults = ".search-no-results"
)

var nonDigitRegex = regexp.MustCompile(`\D`)

// parsePrice strips everything but digits out of a rendered price
// string and parses the remainder as an integer amount in the smallest
// currency unit.
func parsePrice(text string) (int64, bool) {
	digits := nonDigitRegex.ReplaceAllString(text, "")
	if digits == "" {
		return 0, false
	}
	price, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}
