// Package catalog maps movie titles to dense matrix row indices and back.
// A Catalog is immutable once built and safe for concurrent readers.
package catalog

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
)

// Entry is one (title, row index) pair from the external title index.
type Entry struct {
	Title string
	Index int
}

type Catalog struct {
	rows   map[string]int
	titles []string
}

// New builds a Catalog from entries, which must cover rows [0, len(entries))
// exactly once. Duplicate titles are rejected rather than overwritten.
func New(entries []Entry) (*Catalog, error) {
	n := len(entries)
	c := &Catalog{
		rows:   make(map[string]int, n),
		titles: make([]string, n),
	}
	seen := make([]bool, n)
	for _, e := range entries {
		if e.Index < 0 || e.Index >= n {
			return nil, fmt.Errorf("title %q: row %d outside [0, %d): %w", e.Title, e.Index, n, apperrors.ErrIndexOutOfRange)
		}
		if seen[e.Index] {
			return nil, fmt.Errorf("row %d assigned to both %q and %q: %w", e.Index, c.titles[e.Index], e.Title, apperrors.ErrIndexOutOfRange)
		}
		if prev, ok := c.rows[e.Title]; ok {
			return nil, fmt.Errorf("title %q at rows %d and %d: %w", e.Title, prev, e.Index, apperrors.ErrDuplicateTitle)
		}
		seen[e.Index] = true
		c.rows[e.Title] = e.Index
		c.titles[e.Index] = e.Title
	}
	return c, nil
}

// TitleToRow resolves an exact title. No case folding or trimming is applied.
func (c *Catalog) TitleToRow(title string) (int, error) {
	row, ok := c.rows[title]
	if !ok {
		return 0, fmt.Errorf("%q: %w", title, apperrors.ErrUnknownTitle)
	}
	return row, nil
}

func (c *Catalog) RowToTitle(row int) (string, error) {
	if row < 0 || row >= len(c.titles) {
		return "", fmt.Errorf("row %d outside [0, %d): %w", row, len(c.titles), apperrors.ErrIndexOutOfRange)
	}
	return c.titles[row], nil
}

func (c *Catalog) Len() int {
	return len(c.titles)
}

// Titles returns a copy of all titles ordered by row index.
func (c *Catalog) Titles() []string {
	out := make([]string, len(c.titles))
	copy(out, c.titles)
	return out
}
