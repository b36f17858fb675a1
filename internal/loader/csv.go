package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/tracing"
)

// ctxCheckInterval is how many CSV records are read between cancellation
// checks.
const ctxCheckInterval = 1024

// CSVSource reads the title index and the similarity matrix from two CSV
// files. The matrix file has a header row and a leading index column, both
// of which are discarded. The index file has a header naming a "title" and
// an "index" column; other columns are ignored.
type CSVSource struct {
	MatrixPath string
	IndexPath  string
}

// Load reads both files concurrently.
func (s CSVSource) Load(ctx context.Context) ([]catalog.Entry, [][]float64, error) {
	var (
		entries []catalog.Entry
		rows    [][]float64
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = readFile(ctx, s.IndexPath, ReadIndex)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = readFile(ctx, s.MatrixPath, ReadMatrix)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return entries, rows, nil
}

func (s CSVSource) String() string {
	return fmt.Sprintf("csv(matrix=%s, index=%s)", s.MatrixPath, s.IndexPath)
}

func readFile[T any](ctx context.Context, path string, read func(context.Context, io.Reader) (T, error)) (T, error) {
	var zero T
	ctx, span := tracing.Start(ctx, "read "+filepath.Base(path))
	defer span.End()
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	v, err := read(ctx, f)
	if err != nil {
		return zero, fmt.Errorf("reading %s: %w", path, err)
	}
	return v, nil
}

// ReadMatrix parses a similarity matrix CSV. Every data row must have the
// same number of fields as the header and every score must be finite. Error
// positions are physical lines and byte columns in the file.
func ReadMatrix(ctx context.Context, r io.Reader) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("matrix file is empty")
		}
		return nil, fmt.Errorf("reading matrix header: %w", err)
	}

	var rows [][]float64
	for n := 1; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("matrix: %w", err)
		}
		if len(record) < 1 {
			return nil, fmt.Errorf("matrix record %d: missing index column", n)
		}
		row := make([]float64, len(record)-1)
		for j, cell := range record[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
				err = apperrors.ErrInvalidScore
			}
			if err != nil {
				line, col := cr.FieldPos(j + 1)
				return nil, fmt.Errorf("matrix line %d column %d: %w", line, col, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadIndex parses a title index CSV into catalog entries. Titles are kept
// verbatim.
func ReadIndex(ctx context.Context, r io.Reader) ([]catalog.Entry, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("index file is empty")
		}
		return nil, fmt.Errorf("reading index header: %w", err)
	}
	titleCol, indexCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case "title":
			titleCol = i
		case "index":
			indexCol = i
		}
	}
	if titleCol < 0 || indexCol < 0 {
		return nil, fmt.Errorf("index header %q must contain \"title\" and \"index\" columns", header)
	}

	var entries []catalog.Entry
	for n := 1; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(record[indexCol]))
		if err != nil {
			line, _ := cr.FieldPos(indexCol)
			return nil, fmt.Errorf("index line %d: %w", line, err)
		}
		entries = append(entries, catalog.Entry{Title: record[titleCol], Index: idx})
	}
	return entries, nil
}
