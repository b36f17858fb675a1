package loader

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/tracing"
)

// PostgresSource reads the dataset from two tables:
//
//	CREATE TABLE movie_titles (
//	    title     TEXT PRIMARY KEY,
//	    row_index INT  NOT NULL UNIQUE
//	);
//	CREATE TABLE similarity_rows (
//	    row_index INT PRIMARY KEY,
//	    scores    DOUBLE PRECISION[] NOT NULL
//	);
//
// Both tables are read inside one read-only snapshot.
type PostgresSource struct {
	client *postgres.Client
}

func NewPostgresSource(client *postgres.Client) *PostgresSource {
	return &PostgresSource{client: client}
}

func (s *PostgresSource) Load(ctx context.Context) ([]catalog.Entry, [][]float64, error) {
	var (
		entries []catalog.Entry
		rows    [][]float64
	)
	err := s.client.ReadSnapshot(ctx, func(tx *sql.Tx) error {
		var err error
		if entries, err = queryTitles(ctx, tx); err != nil {
			return err
		}
		rows, err = queryRows(ctx, tx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return entries, rows, nil
}

func (s *PostgresSource) String() string {
	return "postgres"
}

func queryTitles(ctx context.Context, tx *sql.Tx) ([]catalog.Entry, error) {
	ctx, span := tracing.Start(ctx, "query movie_titles")
	defer span.End()
	rs, err := tx.QueryContext(ctx, `SELECT title, row_index FROM movie_titles ORDER BY row_index`)
	if err != nil {
		return nil, fmt.Errorf("querying movie_titles: %w", err)
	}
	defer rs.Close()

	var entries []catalog.Entry
	for rs.Next() {
		var e catalog.Entry
		if err := rs.Scan(&e.Title, &e.Index); err != nil {
			return nil, fmt.Errorf("scanning movie_titles: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterating movie_titles: %w", err)
	}
	return entries, nil
}

func queryRows(ctx context.Context, tx *sql.Tx) ([][]float64, error) {
	ctx, span := tracing.Start(ctx, "query similarity_rows")
	defer span.End()
	rs, err := tx.QueryContext(ctx, `SELECT row_index, scores FROM similarity_rows ORDER BY row_index`)
	if err != nil {
		return nil, fmt.Errorf("querying similarity_rows: %w", err)
	}
	defer rs.Close()

	var rows [][]float64
	for rs.Next() {
		var (
			idx    int
			scores pq.Float64Array
		)
		if err := rs.Scan(&idx, &scores); err != nil {
			return nil, fmt.Errorf("scanning similarity_rows: %w", err)
		}
		if err := checkRowOrder(idx, len(rows)); err != nil {
			return nil, err
		}
		rows = append(rows, []float64(scores))
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterating similarity_rows: %w", err)
	}
	return rows, nil
}

// checkRowOrder requires similarity_rows to hold rows 0..N-1 with no gaps,
// so the slice position equals the matrix row.
func checkRowOrder(got, want int) error {
	if got != want {
		return fmt.Errorf("similarity_rows: found row_index %d where %d was expected: %w", got, want, apperrors.ErrIndexOutOfRange)
	}
	return nil
}
