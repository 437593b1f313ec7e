package compare

import (
	"context"
	"testing"
	"time"

	"pricescout-backend/lib/listing"
	"pricescout-backend/lib/runstore"
	"pricescout-backend/services/amazon"
	"pricescout-backend/services/matcher"

	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	listings []listing.Raw
	err      error
}

func (s stubCatalog) Search(ctx context.Context, term string) ([]listing.Raw, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.listings, nil
}

type blockingCatalog struct{}

func (blockingCatalog) Search(ctx context.Context, term string) ([]listing.Raw, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type stubMarketplace struct {
	byName map[string][]listing.Raw
	err    error
}

func (s stubMarketplace) Search(ctx context.Context, term string) ([]listing.Raw, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byName[term], nil
}

func costcoListing(name string, price int64) listing.Raw {
	return listing.Raw{
		Name:   name,
		Price:  price,
		Url:    "https://www.costco.co.jp/p/" + name,
		Source: listing.SourceCostco,
	}
}

func amazonListing(name string, price int64) listing.Raw {
	return listing.Raw{
		Name:   name,
		Price:  price,
		Url:    "https://www.amazon.co.jp/dp/" + name,
		Source: listing.SourceAmazon,
	}
}

func testService(catalog stubCatalog, marketplace Marketplace, store *runstore.Store) Service {
	return NewService(
		catalog,
		marketplace,
		matcher.New(matcher.Options{}),
		store,
		Options{MinPercentage: 10},
	)
}

func TestRunFindsGaps(t *testing.T) {
	catalog := stubCatalog{listings: []listing.Raw{
		costcoListing("kirkland signature mixed nuts 1.13kg", 3198),
		costcoListing("oxiclean stain remover", 2000),
	}}
	marketplace := stubMarketplace{byName: map[string][]listing.Raw{
		"kirkland signature mixed nuts 1.13kg": {
			amazonListing("kirkland signature mixed nuts 1.13kg", 2500),
		},
		"oxiclean stain remover": {
			amazonListing("oxiclean stain remover", 2100),
		},
	}}

	report, err := testService(catalog, marketplace, nil).Run(context.Background(), "kirkland")
	require.NoError(t, err)
	require.Equal(t, StateDone, report.State)
	require.Equal(t, 2, report.Scraped)
	require.Equal(t, 2, report.Matched)
	require.Zero(t, report.SearchFailures)

	// only the nuts clear the 10% floor
	require.Len(t, report.Results, 1)
	require.Equal(t, int64(-698), report.Results[0].PriceDifference)
	require.InDelta(t, -21.83, report.Results[0].PercentageDifference, 0.01)
}

func TestRunEmptyCatalogIsDone(t *testing.T) {
	report, err := testService(stubCatalog{}, stubMarketplace{}, nil).Run(context.Background(), "nothing")
	require.NoError(t, err)
	require.Equal(t, StateDone, report.State)
	require.Empty(t, report.Results)
	require.Zero(t, report.Scraped)
}

func TestRunAllSearchesFailed(t *testing.T) {
	catalog := stubCatalog{listings: []listing.Raw{
		costcoListing("kirkland signature mixed nuts", 3198),
		costcoListing("oxiclean stain remover", 2000),
	}}
	marketplace := stubMarketplace{err: amazon.ErrRateLimited}

	report, err := testService(catalog, marketplace, nil).Run(context.Background(), "kirkland")
	require.ErrorIs(t, err, ErrAllSearchesFailed)
	require.Equal(t, StateFailed, report.State)
	require.Equal(t, 2, report.SearchFailures)
}

func TestRunToleratesPartialFailures(t *testing.T) {
	catalog := stubCatalog{listings: []listing.Raw{
		costcoListing("kirkland signature mixed nuts", 3198),
		costcoListing("oxiclean stain remover", 2000),
	}}
	marketplace := stubMarketplace{byName: map[string][]listing.Raw{
		"kirkland signature mixed nuts": {
			amazonListing("kirkland signature mixed nuts", 2500),
		},
		// no entry for oxiclean: nil candidates, no match, not a failure
	}}

	report, err := testService(catalog, marketplace, nil).Run(context.Background(), "kirkland")
	require.NoError(t, err)
	require.Equal(t, StateDone, report.State)
	require.Equal(t, 1, report.Matched)
	require.Len(t, report.Results, 1)
}

func TestRunBudgetExceeded(t *testing.T) {
	service := NewService(
		blockingCatalog{},
		stubMarketplace{},
		matcher.New(matcher.Options{}),
		nil,
		Options{Timeout: 20 * time.Millisecond},
	)

	report, err := service.Run(context.Background(), "kirkland")
	require.ErrorIs(t, err, ErrOverallTimeout)
	require.Equal(t, StateFailed, report.State)
}

func TestRunRecordsHistory(t *testing.T) {
	store, err := runstore.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	catalog := stubCatalog{listings: []listing.Raw{
		costcoListing("kirkland signature mixed nuts", 3198),
	}}
	marketplace := stubMarketplace{byName: map[string][]listing.Raw{
		"kirkland signature mixed nuts": {
			amazonListing("kirkland signature mixed nuts", 2500),
		},
	}}

	report, err := testService(catalog, marketplace, &store).Run(context.Background(), "kirkland")
	require.NoError(t, err)
	require.Equal(t, StateDone, report.State)

	recent, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "kirkland", recent[0].Term)
	require.Equal(t, string(StateDone), recent[0].State)
	require.Equal(t, 1, recent[0].Matched)

	results, err := store.Results(context.Background(), recent[0].Id)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int64(-698), results[0].PriceDifference)
}
