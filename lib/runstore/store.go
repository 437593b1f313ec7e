package runstore

import (
	"context"
	"database/sql"
	"time"

	"pricescout-backend/lib/listing"

	_ "modernc.org/sqlite"
)

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	term TEXT NOT NULL,
	state TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	scraped INTEGER NOT NULL,
	matched INTEGER NOT NULL,
	search_failures INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_results (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	costco_name TEXT NOT NULL,
	costco_price INTEGER NOT NULL,
	costco_url TEXT NOT NULL,
	amazon_name TEXT NOT NULL,
	amazon_price INTEGER NOT NULL,
	amazon_url TEXT NOT NULL,
	similarity REAL NOT NULL,
	price_difference INTEGER NOT NULL,
	percentage_difference REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_results_run_id ON run_results(run_id);
`

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Open opens (and migrates) a sqlite-backed store at the given path.
func Open(path string) (Store, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, err
	}
	_, err = database.Exec(Schema)
	if err != nil {
		database.Close()
		return Store{}, err
	}
	return Store{db: database}, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

// Run is one completed (or failed) pipeline execution.
type Run struct {
	Term           string
	State          string
	StartedAt      time.Time
	FinishedAt     time.Time
	Scraped        int
	Matched        int
	SearchFailures int
	Results        []listing.ComparisonResult
}

func (s Store) Record(ctx context.Context, run Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (term, state, started_at, finished_at, scraped, matched, search_failures)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Term, run.State,
		run.StartedAt.Unix(), run.FinishedAt.Unix(),
		run.Scraped, run.Matched, run.SearchFailures,
	)
	if err != nil {
		return 0, err
	}
	runId, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, r := range run.Results {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_results (
				run_id,
				costco_name, costco_price, costco_url,
				amazon_name, amazon_price, amazon_url,
				similarity, price_difference, percentage_difference
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runId,
			r.Pair.Costco.Name, r.Pair.Costco.Price, r.Pair.Costco.Url,
			r.Pair.Amazon.Name, r.Pair.Amazon.Price, r.Pair.Amazon.Url,
			r.Pair.Similarity, r.PriceDifference, r.PercentageDifference,
		)
		if err != nil {
			return 0, err
		}
	}

	return runId, tx.Commit()
}

type RunSummary struct {
	Id             int64
	Term           string
	State          string
	StartedAt      time.Time
	FinishedAt     time.Time
	Scraped        int
	Matched        int
	SearchFailures int
}

func (s Store) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, term, state, started_at, finished_at, scraped, matched, search_failures
		 FROM runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished int64
		err := rows.Scan(
			&r.Id, &r.Term, &r.State,
			&started, &finished,
			&r.Scraped, &r.Matched, &r.SearchFailures,
		)
		if err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0)
		r.FinishedAt = time.Unix(finished, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s Store) Results(ctx context.Context, runId int64) ([]listing.ComparisonResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT costco_name, costco_price, costco_url,
			amazon_name, amazon_price, amazon_url,
			similarity, price_difference, percentage_difference
		 FROM run_results WHERE run_id = ?`,
		runId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []listing.ComparisonResult
	for rows.Next() {
		var r listing.ComparisonResult
		err := rows.Scan(
			&r.Pair.Costco.Name, &r.Pair.Costco.Price, &r.Pair.Costco.Url,
			&r.Pair.Amazon.Name, &r.Pair.Amazon.Price, &r.Pair.Amazon.Url,
			&r.Pair.Similarity, &r.PriceDifference, &r.PercentageDifference,
		)
		if err != nil {
			return nil, err
		}
		r.Pair.Costco.Source = listing.SourceCostco
		r.Pair.Amazon.Source = listing.SourceAmazon
		out = append(out, r)
	}
	return out, rows.Err()
}
