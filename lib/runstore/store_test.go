package runstore

import (
	"context"
	"testing"
	"time"

	"pricescout-backend/lib/listing"
	"pricescout-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "runstore",
		DbSchema: Schema,
	})
	defer cleanup()

	store := NewStore(res.DB)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	{
		runs, err := store.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 0)
	}

	result := listing.NewComparisonResult(listing.MatchedPair{
		Costco: listing.Raw{
			Name:   "kirkland signature toilet paper",
			Price:  3198,
			Url:    "https://www.costco.co.jp/p/1713045",
			Source: listing.SourceCostco,
		},
		Amazon: listing.Raw{
			Name:   "kirkland toilet paper 30 rolls",
			Price:  2500,
			Url:    "https://www.amazon.co.jp/dp/B0TESTASIN",
			Source: listing.SourceAmazon,
		},
		Similarity: 0.91,
	})

	started := time.Now().Add(-10 * time.Second)
	runId, err := store.Record(ctx, Run{
		Term:           "toilet paper",
		State:          "done",
		StartedAt:      started,
		FinishedAt:     time.Now(),
		Scraped:        12,
		Matched:        4,
		SearchFailures: 1,
		Results:        []listing.ComparisonResult{result},
	})
	require.NoError(t, err)

	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "toilet paper", runs[0].Term)
	require.Equal(t, "done", runs[0].State)
	require.Equal(t, 12, runs[0].Scraped)
	require.Equal(t, 1, runs[0].SearchFailures)

	results, err := store.Results(ctx, runId)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, result, results[0])
}
