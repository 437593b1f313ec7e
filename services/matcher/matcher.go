// Package matcher correlates costco listings with amazon candidates.
// The two catalogs share no identifier, so matching is probabilistic:
// a similarity score over normalized names, accepted above a
// confidence threshold.
package matcher

import (
	"pricescout-backend/lib/listing"
	"pricescout-backend/lib/textutil"

	"github.com/antzucaro/matchr"
)

// DefaultThreshold is the minimum score for a candidate to be
// considered the same product.
const DefaultThreshold = 0.75

// Scorer rates how likely two normalized product names describe the
// same product, in [0, 1]. It is a policy, not a law: swap it to tune
// matching quality without touching the pipeline.
type Scorer interface {
	Score(a, b string) float64
}

// BlendedScorer combines token-set overlap with a string-similarity
// component. Token overlap dominates for space-separated names;
// JaroWinkler carries continuous-script names where tokenization gives
// little to work with.
type BlendedScorer struct {
	TokenWeight  float64
	StringWeight float64
}

func NewBlendedScorer() BlendedScorer {
	return BlendedScorer{TokenWeight: 0.6, StringWeight: 0.4}
}

func (s BlendedScorer) Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	jaccard := textutil.JaccardTokens(a, b)
	edit := matchr.JaroWinkler(a, b, false)
	return s.TokenWeight*jaccard + s.StringWeight*edit
}

type Matcher struct {
	scorer    Scorer
	threshold float64
	stopTerms []string
}

type Options struct {
	// Scorer defaults to NewBlendedScorer().
	Scorer Scorer
	// Threshold defaults to DefaultThreshold.
	Threshold float64
	// StopTerms defaults to textutil.DefaultStopTerms.
	StopTerms []string
}

func New(opts Options) Matcher {
	if opts.Scorer == nil {
		opts.Scorer = NewBlendedScorer()
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.StopTerms == nil {
		opts.StopTerms = textutil.DefaultStopTerms
	}
	return Matcher{
		scorer:    opts.Scorer,
		threshold: opts.Threshold,
		stopTerms: opts.StopTerms,
	}
}

// Match scores every candidate against the costco listing and returns
// the best-scoring pair, or false when no candidate clears the
// threshold. Ties favor the cheaper candidate, consistent with the
// pipeline's purpose of surfacing savings.
func (m Matcher) Match(costco listing.Raw, candidates []listing.Raw) (listing.MatchedPair, bool) {
	normalized := textutil.NormalizeName(costco.Name, m.stopTerms)

	best := listing.Raw{}
	bestScore := 0.0
	found := false

	for _, candidate := range candidates {
		score := m.scorer.Score(normalized, textutil.NormalizeName(candidate.Name, m.stopTerms))
		if score < m.threshold {
			continue
		}
		if !found || score > bestScore || (score == bestScore && candidate.Price < best.Price) {
			best = candidate
			bestScore = score
			found = true
		}
	}

	if !found {
		return listing.MatchedPair{}, false
	}
	return listing.MatchedPair{
		Costco:     costco,
		Amazon:     best,
		Similarity: bestScore,
	}, true
}
