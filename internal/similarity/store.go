// Package similarity holds the dense N×N movie similarity matrix. Row i is
// the similarity of movie i against every movie, itself included.
package similarity

import (
	"fmt"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
)

// Store is read-only after New returns.
type Store struct {
	n      int
	values []float64
}

// New copies rows into a Store. n is the expected dimension, normally the
// catalog size; any other row or column count fails with ErrDimensionMismatch.
// NaN and infinite scores fail with ErrInvalidScore.
func New(rows [][]float64, n int) (*Store, error) {
	if len(rows) != n {
		return nil, fmt.Errorf("matrix has %d rows, catalog has %d titles: %w", len(rows), n, apperrors.ErrDimensionMismatch)
	}
	values := make([]float64, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("matrix row %d has %d columns, want %d: %w", i, len(row), n, apperrors.ErrDimensionMismatch)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("matrix cell (%d, %d) is %v: %w", i, j, v, apperrors.ErrInvalidScore)
			}
		}
		values = append(values, row...)
	}
	return &Store{n: n, values: values}, nil
}

// Row returns a copy of row i.
func (s *Store) Row(i int) ([]float64, error) {
	if i < 0 || i >= s.n {
		return nil, fmt.Errorf("row %d outside [0, %d): %w", i, s.n, apperrors.ErrIndexOutOfRange)
	}
	out := make([]float64, s.n)
	copy(out, s.values[i*s.n:(i+1)*s.n])
	return out, nil
}

func (s *Store) Score(i, j int) (float64, error) {
	if i < 0 || i >= s.n || j < 0 || j >= s.n {
		return 0, fmt.Errorf("cell (%d, %d) outside %dx%d: %w", i, j, s.n, s.n, apperrors.ErrIndexOutOfRange)
	}
	return s.values[i*s.n+j], nil
}

func (s *Store) Size() int {
	return s.n
}
