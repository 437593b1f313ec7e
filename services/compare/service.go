package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pricescout-backend/lib/listing"
	"pricescout-backend/lib/runstore"
	"pricescout-backend/services/costco"
	"pricescout-backend/services/matcher"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("pricescout.services.compare")

// State is where a run currently is in the pipeline.
type State string

const (
	StatePending   State = "pending"
	StateScraping  State = "scraping"
	StateSearching State = "searching"
	StateMatching  State = "matching"
	StateComparing State = "comparing"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

var (
	ErrOverallTimeout    = errors.New("comparison run exceeded its time budget")
	ErrAllSearchesFailed = errors.New("marketplace search failed for every listing")
)

// Marketplace searches the partner catalog for candidates of one term.
type Marketplace interface {
	Search(ctx context.Context, term string) ([]listing.Raw, error)
}

type Options struct {
	// Timeout is the wall-clock budget for one whole run.
	Timeout time.Duration
	// MaxInFlight bounds concurrent marketplace searches, respecting
	// the partner api's rate limits.
	MaxInFlight   int
	MinPercentage float64
}

// Service drives one request through the whole pipeline.
type Service struct {
	catalog     costco.CatalogSource
	marketplace Marketplace
	matcher     matcher.Matcher
	store       *runstore.Store
	opts        Options
}

// NewService wires the pipeline. The run store is optional: pass nil
// to skip recording run history.
func NewService(catalog costco.CatalogSource, marketplace Marketplace, m matcher.Matcher, store *runstore.Store, opts Options) Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 5
	}
	if opts.MinPercentage <= 0 {
		opts.MinPercentage = DefaultMinPercentage
	}
	return Service{
		catalog:     catalog,
		marketplace: marketplace,
		matcher:     m,
		store:       store,
		opts:        opts,
	}
}

// Report is the outcome of one run. State is StateDone or StateFailed
// by the time Run returns.
type Report struct {
	Term           string
	State          State
	Results        []listing.ComparisonResult
	Scraped        int
	Matched        int
	SearchFailures int
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Run executes scrape → search → match → compare for one term under
// the overall time budget. Zero scraped listings is a successful empty
// run; individual marketplace failures are tolerated unless every
// listing fails that way.
func (s Service) Run(ctx context.Context, term string) (Report, error) {
	ctx, span := tracer.Start(ctx, "Service:Run")
	defer span.End()
	span.SetAttributes(attribute.String("custom.term", term))

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	report := Report{
		Term:      term,
		State:     StatePending,
		StartedAt: time.Now(),
	}

	report.State = StateScraping
	scraped, err := s.catalog.Search(ctx, term)
	if err != nil {
		return s.fail(ctx, span, report, fmt.Errorf("scrape: %w", s.budgetErr(ctx, err)))
	}
	report.Scraped = len(scraped)
	span.SetAttributes(attribute.Int("custom.scraped", len(scraped)))

	if len(scraped) == 0 {
		// no results and failed are distinct outcomes
		return s.done(ctx, report), nil
	}

	report.State = StateSearching
	candidates, failures := s.searchAll(ctx, term, scraped)
	if ctx.Err() != nil {
		return s.fail(ctx, span, report, ErrOverallTimeout)
	}
	report.SearchFailures = failures
	span.SetAttributes(attribute.Int("custom.search_failures", failures))
	if failures == len(scraped) {
		return s.fail(ctx, span, report, ErrAllSearchesFailed)
	}

	report.State = StateMatching
	var pairs []listing.MatchedPair
	for i, item := range scraped {
		if candidates[i] == nil {
			continue
		}
		pair, ok := s.matcher.Match(item, candidates[i])
		if !ok {
			continue
		}
		pairs = append(pairs, pair)
	}
	report.Matched = len(pairs)
	span.SetAttributes(attribute.Int("custom.matched", len(pairs)))

	report.State = StateComparing
	report.Results = Compare(pairs, s.opts.MinPercentage)

	return s.done(ctx, report), nil
}

// searchAll issues one marketplace search per scraped listing through
// a bounded worker pool. A failed search leaves a nil candidate slot
// and is counted; it never aborts the other workers.
func (s Service) searchAll(ctx context.Context, term string, scraped []listing.Raw) ([][]listing.Raw, int) {
	candidates := make([][]listing.Raw, len(scraped))
	failed := make([]bool, len(scraped))

	group := &errgroup.Group{}
	group.SetLimit(s.opts.MaxInFlight)

	for i, item := range scraped {
		if ctx.Err() != nil {
			failed[i] = true
			continue
		}
		i, item := i, item
		group.Go(func() error {
			found, err := s.marketplace.Search(ctx, item.Name)
			if err != nil {
				slog.WarnContext(ctx, "marketplace search failed",
					"term", term,
					"listing", item.Name,
					"err", err,
				)
				failed[i] = true
				return nil
			}
			candidates[i] = found
			return nil
		})
	}
	group.Wait()

	failures := 0
	for _, f := range failed {
		if f {
			failures++
		}
	}
	return candidates, failures
}

func (s Service) done(ctx context.Context, report Report) Report {
	report.State = StateDone
	report.FinishedAt = time.Now()
	s.record(ctx, report)
	return report
}

func (s Service) fail(ctx context.Context, span trace.Span, report Report, err error) (Report, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "run failed")

	report.State = StateFailed
	report.FinishedAt = time.Now()
	s.record(ctx, report)
	return report, err
}

func (s Service) budgetErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrOverallTimeout
	}
	return err
}

// record persists the run outcome. Recording must survive a blown run
// budget, so it runs on a detached context.
func (s Service) record(ctx context.Context, report Report) {
	if s.store == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	_, err := s.store.Record(recordCtx, runstore.Run{
		Term:           report.Term,
		State:          string(report.State),
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
		Scraped:        report.Scraped,
		Matched:        report.Matched,
		SearchFailures: report.SearchFailures,
		Results:        report.Results,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to record run", "term", report.Term, "err", err)
	}
}
