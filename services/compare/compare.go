// Package compare pairs matched listings into ranked price
// comparisons and orchestrates the full scrape → search → match →
// compare pipeline.
package compare

import (
	"math"
	"sort"

	"pricescout-backend/lib/listing"
)

// DefaultMinPercentage is the significance threshold: pairs whose
// prices differ by less are not worth reporting.
const DefaultMinPercentage = 20.0

// Compare derives the price delta for every pair, keeps those at or
// above the significance threshold and ranks them largest disparity
// first. Pure and deterministic: equal disparities keep their input
// order.
func Compare(pairs []listing.MatchedPair, minPercentage float64) []listing.ComparisonResult {
	var results []listing.ComparisonResult
	for _, pair := range pairs {
		if pair.Costco.Price <= 0 {
			continue
		}
		result := listing.NewComparisonResult(pair)
		if math.Abs(result.PercentageDifference) >= minPercentage {
			results = append(results, result)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return math.Abs(results[i].PercentageDifference) > math.Abs(results[j].PercentageDifference)
	})
	return results
}
