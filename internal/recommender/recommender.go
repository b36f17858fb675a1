// Package recommender ranks the titles most similar to a queried movie using
// the loaded catalog and similarity matrix. Recommend is pure and may be
// called from any number of goroutines.
package recommender

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
)

// Recommendation is one similar title and its similarity to the query.
type Recommendation struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Status distinguishes a ranked answer from an unknown query title.
type Status int

const (
	StatusFound Status = iota
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Result is the outcome of a query. Recommendations is empty, never nil,
// when Status is StatusNotFound.
type Result struct {
	Query           string
	Status          Status
	Recommendations []Recommendation
}

func (r Result) Found() bool {
	return r.Status == StatusFound
}

type Recommender struct {
	catalog *catalog.Catalog
	store   *similarity.Store
}

// New pairs a catalog with its matrix. Both must describe the same N movies.
func New(cat *catalog.Catalog, store *similarity.Store) (*Recommender, error) {
	if cat.Len() != store.Size() {
		return nil, fmt.Errorf("catalog has %d titles, matrix is %dx%d: %w",
			cat.Len(), store.Size(), store.Size(), apperrors.ErrDimensionMismatch)
	}
	return &Recommender{catalog: cat, store: store}, nil
}

type scored struct {
	row   int
	score float64
}

// Recommend returns up to k titles most similar to title, highest score
// first. Equal scores are ordered by ascending row index. The query itself is
// excluded by row identity wherever it would rank. An unknown title yields
// StatusNotFound with a nil error; a non-nil error means the catalog and
// matrix disagree.
func (r *Recommender) Recommend(title string, k int) (Result, error) {
	row, err := r.catalog.TitleToRow(title)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnknownTitle) {
			return Result{Query: title, Status: StatusNotFound, Recommendations: []Recommendation{}}, nil
		}
		return Result{}, err
	}

	scores, err := r.store.Row(row)
	if err != nil {
		return Result{}, fmt.Errorf("similarity row for %q: %w", title, err)
	}

	candidates := make([]scored, 0, len(scores))
	for j, s := range scores {
		candidates = append(candidates, scored{row: j, score: s})
	}
	sort.Slice(candidates, func(a, b int) bool {
		return ranksBefore(candidates[a], candidates[b])
	})

	if k < 0 {
		k = 0
	}
	out := make([]Recommendation, 0, min(k, len(candidates)))
	for _, c := range candidates {
		if len(out) == k {
			break
		}
		if c.row == row {
			continue
		}
		other, err := r.catalog.RowToTitle(c.row)
		if err != nil {
			return Result{}, fmt.Errorf("ranking %q: %w", title, err)
		}
		out = append(out, Recommendation{Title: other, Score: c.score})
	}
	return Result{Query: title, Status: StatusFound, Recommendations: out}, nil
}

// Size is the number of titles the recommender can answer for.
func (r *Recommender) Size() int {
	return r.catalog.Len()
}

// ranksBefore orders by score, highest first, then by row. The store holds
// only finite scores so the comparison is a strict weak order.
func ranksBefore(a, b scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.row < b.row
}
