package matcher

import (
	"testing"

	"pricescout-backend/lib/listing"

	"github.com/stretchr/testify/require"
)

func costcoItem(name string, price int64) listing.Raw {
	return listing.Raw{Name: name, Price: price, Url: "https://www.costco.co.jp/p/1", Source: listing.SourceCostco}
}

func amazonItem(name string, price int64) listing.Raw {
	return listing.Raw{Name: name, Price: price, Url: "https://www.amazon.co.jp/dp/B0", Source: listing.SourceAmazon}
}

func TestMatchPicksBestCandidate(t *testing.T) {
	m := New(Options{})

	pair, ok := m.Match(
		costcoItem("Kirkland Signature Bath Tissue 30 rolls", 3198),
		[]listing.Raw{
			amazonItem("Duracell AA Batteries 40 pack", 4500),
			amazonItem("Kirkland Signature Bath Tissue", 2500),
			amazonItem("Generic Paper Towels", 1200),
		},
	)
	require.True(t, ok)
	require.Equal(t, "Kirkland Signature Bath Tissue", pair.Amazon.Name)
	require.Equal(t, listing.SourceCostco, pair.Costco.Source)
	require.Equal(t, listing.SourceAmazon, pair.Amazon.Source)
	require.GreaterOrEqual(t, pair.Similarity, DefaultThreshold)
	require.LessOrEqual(t, pair.Similarity, 1.0)
}

func TestMatchReturnsNoneBelowThreshold(t *testing.T) {
	m := New(Options{})

	_, ok := m.Match(
		costcoItem("Kirkland Signature Bath Tissue 30 rolls", 3198),
		[]listing.Raw{
			amazonItem("USB-C Charging Cable 2m", 999),
			amazonItem("Stainless Steel Water Bottle", 1800),
		},
	)
	require.False(t, ok)
}

func TestMatchEmptyCandidates(t *testing.T) {
	m := New(Options{})
	_, ok := m.Match(costcoItem("anything", 100), nil)
	require.False(t, ok)
}

// constantScorer makes every candidate score identically so the
// tie-break is observable.
type constantScorer struct{ score float64 }

func (s constantScorer) Score(a, b string) float64 { return s.score }

func TestMatchTieBreakPrefersCheaper(t *testing.T) {
	m := New(Options{Scorer: constantScorer{score: 0.9}})

	pair, ok := m.Match(
		costcoItem("Kirkland Signature Bath Tissue", 3198),
		[]listing.Raw{
			amazonItem("candidate expensive", 4000),
			amazonItem("candidate cheap", 2500),
			amazonItem("candidate middle", 3000),
		},
	)
	require.True(t, ok)
	require.Equal(t, "candidate cheap", pair.Amazon.Name)
	require.Equal(t, int64(2500), pair.Amazon.Price)
}

func TestMatchAllBelowThresholdWithForcedScorer(t *testing.T) {
	m := New(Options{Scorer: constantScorer{score: 0.5}})
	_, ok := m.Match(costcoItem("x", 1), []listing.Raw{amazonItem("y", 2)})
	require.False(t, ok)
}

func TestBlendedScorerIdenticalNames(t *testing.T) {
	s := NewBlendedScorer()
	score := s.Score("kirkland signature bath tissue", "kirkland signature bath tissue")
	require.InDelta(t, 1.0, score, 1e-9)
}

func TestBlendedScorerMonotone(t *testing.T) {
	s := NewBlendedScorer()
	near := s.Score("kirkland signature bath tissue", "kirkland bath tissue")
	far := s.Score("kirkland signature bath tissue", "usb charging cable")
	require.Greater(t, near, far)
}
