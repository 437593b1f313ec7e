package listing

// Source identifies which catalog a listing came from.
type Source string

const (
	SourceCostco Source = "costco"
	SourceAmazon Source = "amazon"
)

// Raw is a single product offering from one source. Prices are always
// integers in the smallest currency unit (yen), never floats.
type Raw struct {
	Name   string `json:"name"`
	Price  int64  `json:"price"`
	Url    string `json:"url"`
	Source Source `json:"source"`
}

// MatchedPair is a costco listing and the amazon listing judged to
// represent the same product, along with the score that judgement
// was made on.
type MatchedPair struct {
	Costco     Raw     `json:"costco"`
	Amazon     Raw     `json:"amazon"`
	Similarity float64 `json:"similarity"`
}

// ComparisonResult is a matched pair with its price delta.
// PriceDifference = amazon - costco, so a positive value means amazon
// is the more expensive of the two.
type ComparisonResult struct {
	Pair                 MatchedPair `json:"pair"`
	PriceDifference      int64       `json:"price_difference"`
	PercentageDifference float64     `json:"percentage_difference"`
}

// NewComparisonResult derives the price delta for a matched pair.
func NewComparisonResult(pair MatchedPair) ComparisonResult {
	diff := pair.Amazon.Price - pair.Costco.Price
	return ComparisonResult{
		Pair:                 pair,
		PriceDifference:      diff,
		PercentageDifference: float64(diff) / float64(pair.Costco.Price) * 100,
	}
}
