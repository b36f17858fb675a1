package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/kafka"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalQueries     int64        `json:"total_queries"`
	FoundCount       int64        `json:"found_count"`
	NotFoundCount    int64        `json:"not_found_count"`
	ErrorCount       int64        `json:"error_count"`
	AvgLatencyMs     float64      `json:"avg_latency_ms"`
	P50LatencyMs     int64        `json:"p50_latency_ms"`
	P95LatencyMs     int64        `json:"p95_latency_ms"`
	P99LatencyMs     int64        `json:"p99_latency_ms"`
	TopMovies        []MovieCount `json:"top_movies"`
	NotFoundMovies   []MovieCount `json:"not_found_movies"`
	QueriesPerMinute float64      `json:"queries_per_minute"`
}

type MovieCount struct {
	Movie string `json:"movie"`
	Count int64  `json:"count"`
}

// Aggregator folds consumed RecommendationEvents into running stats.
type Aggregator struct {
	mu             sync.RWMutex
	total          int64
	found          int64
	notFound       int64
	errors         int64
	latencies      []int64
	next           int
	movieCounts    map[string]int64
	notFoundCounts map[string]int64
	startTime      time.Time
	logger         *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:      make([]int64, 0, maxLatencySamples),
		movieCounts:    make(map[string]int64),
		notFoundCounts: make(map[string]int64),
		startTime:      time.Now(),
		logger:         slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable
// messages are logged and skipped so they are still committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RecommendationEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event RecommendationEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	switch event.Type {
	case EventRecommendation:
		a.found++
		a.movieCounts[event.Movie]++
	case EventNotFound:
		a.notFound++
		a.notFoundCounts[event.Movie]++
	case EventError:
		a.errors++
	}

	// Ring buffer keeps memory bounded for long-running consumers.
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:  a.total,
		FoundCount:    a.found,
		NotFoundCount: a.notFound,
		ErrorCount:    a.errors,
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopMovies = topN(a.movieCounts, 10)
	stats.NotFoundMovies = topN(a.notFoundCounts, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []MovieCount {
	result := make([]MovieCount, 0, len(counts))
	for movie, count := range counts {
		result = append(result, MovieCount{Movie: movie, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Movie < result[j].Movie
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
