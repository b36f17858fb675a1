package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender/handler"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	matrixPath := flag.String("matrix", "", "similarity matrix CSV, overrides data.matrixPath")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *matrixPath != "" {
		cfg.Data.MatrixPath = *matrixPath
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting recommendation service", "port", cfg.Server.Port, "source", cfg.Data.Source)

	m := metrics.New(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := loadDataset(ctx, cfg)
	if err != nil {
		slog.Error("failed to load dataset", "error", err)
		os.Exit(1)
	}
	m.CatalogTitles.Set(float64(ds.Catalog.Len()))
	m.DatasetLoadDuration.Set(ds.LoadTime.Seconds())

	rec, err := recommender.New(ds.Catalog, ds.Store)
	if err != nil {
		slog.Error("failed to build recommender", "error", err)
		os.Exit(1)
	}

	var (
		tracker    handler.Tracker
		aggregator *analytics.Aggregator
	)
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize, m.AnalyticsEventsDropped.Inc)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

		aggregator = analytics.NewAggregator()
		consumer := kafka.NewConsumer(cfg.AggregatorKafka(), cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics aggregator started", "group", cfg.Analytics.ConsumerGroup)
	}

	checker := health.NewChecker()
	checker.Register("dataset", func(ctx context.Context) health.ComponentHealth {
		if rec.Size() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d titles loaded", rec.Size())}
		}
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "catalog is empty"}
	})

	h := handler.New(rec, m, tracker, cfg.Recommend.DefaultLimit, cfg.Recommend.MaxResults)
	analyticsH := analytics.NewHandler(aggregator)

	chain := newRouter(ctx, cfg, m, h, analyticsH, checker)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("recommendation service listening", "addr", server.Addr, "titles", rec.Size())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("recommendation service stopped")
}

// loadDataset reads the catalog and matrix from the configured source. The
// postgres connection is only needed for the load and is closed afterwards.
func loadDataset(ctx context.Context, cfg *config.Config) (*loader.Dataset, error) {
	switch cfg.Data.Source {
	case config.SourcePostgres:
		client, err := postgres.New(ctx, cfg.Postgres, resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 500 * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		defer client.Close()
		return loader.Load(ctx, loader.NewPostgresSource(client), cfg.Data.LoadTimeout)
	default:
		src := loader.CSVSource{MatrixPath: cfg.Data.MatrixPath, IndexPath: cfg.Data.IndexPath}
		return loader.Load(ctx, src, cfg.Data.LoadTimeout)
	}
}
