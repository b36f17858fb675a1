// Package loader reads the title index and the similarity matrix from an
// external source once at startup and validates them against each other.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/similarity"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/tracing"
)

// Source supplies the raw (title, index) pairs and matrix rows.
type Source interface {
	Load(ctx context.Context) ([]catalog.Entry, [][]float64, error)
}

// Dataset is the immutable pair served for the lifetime of the process.
type Dataset struct {
	Catalog  *catalog.Catalog
	Store    *similarity.Store
	LoadTime time.Duration
}

// Load reads src within timeout and builds a Dataset. Any error here is
// fatal for the caller: the matrix and catalog must agree before serving.
func Load(ctx context.Context, src Source, timeout time.Duration) (*Dataset, error) {
	log := logger.WithComponent("loader").With("source", fmt.Sprint(src))
	start := time.Now()
	ctx, span := tracing.Start(ctx, "dataset.load")
	defer func() {
		span.End()
		span.Log(log)
	}()

	var (
		entries []catalog.Entry
		rows    [][]float64
	)
	err := resilience.WithTimeout(ctx, timeout, "dataset load", func(ctx context.Context) error {
		var err error
		entries, rows, err = src.Load(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}

	_, buildSpan := tracing.Start(ctx, "build")
	ds, err := Build(entries, rows)
	buildSpan.End()
	if err != nil {
		return nil, err
	}
	ds.LoadTime = time.Since(start)
	log.Info("dataset loaded",
		"titles", ds.Catalog.Len(),
		"duration", ds.LoadTime,
	)
	return ds, nil
}

// Build validates entries and rows and assembles a Dataset.
func Build(entries []catalog.Entry, rows [][]float64) (*Dataset, error) {
	cat, err := catalog.New(entries)
	if err != nil {
		return nil, fmt.Errorf("building catalog: %w", err)
	}
	store, err := similarity.New(rows, cat.Len())
	if err != nil {
		return nil, fmt.Errorf("building similarity store: %w", err)
	}
	return &Dataset{Catalog: cat, Store: store}, nil
}
