// Command loadtest drives a running recommendation service with concurrent
// queries and checks every answer it gets back.
//
// Each worker walks a plan of (movie, limit) pairs so that the same title is
// asked for at several result limits. Responses are decoded and checked: a
// found movie must not appear in its own results, must return at most limit
// results, and must list them with non-increasing scores; an unknown movie
// must come back as 404 with found=false and no results. Any violation makes
// the command exit non-zero.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-index indices.csv] [-limits 1,5,10,25]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender/handler"
)

const recommendationsPath = "/api/v1/recommendations"

// Violation kinds reported by checkResponse.
const (
	violationUndecodable   = "undecodable body"
	violationMovieEcho     = "movie not echoed"
	violationFoundFlag     = "found flag disagrees with status"
	violationQueryReturned = "query title in results"
	violationOverLimit     = "more results than limit"
	violationScoreOrder    = "scores increase"
	violationDuplicate     = "duplicate title"
	violationNotFoundBody  = "not-found answer has results"
)

var defaultMovies = []string{
	"Avatar",
	"The Dark Knight Rises",
	"Spectre",
	"John Carter",
	"Tangled",
	"Avengers: Age of Ultron",
	"Interstellar",
	"Inception",
	"The Matrix",
	"Toy Story",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Plan        []query
}

type query struct {
	movie string
	limit int
}

// buildPlan pairs every movie with every limit, shifting the limit by one
// for each movie so neighbouring requests ask for different sizes.
func buildPlan(movies []string, limits []int) []query {
	plan := make([]query, 0, len(movies)*len(limits))
	for round := range limits {
		for m, movie := range movies {
			plan = append(plan, query{movie: movie, limit: limits[(round+m)%len(limits)]})
		}
	}
	return plan
}

type Stats struct {
	total      atomic.Int64
	found      atomic.Int64
	notFound   atomic.Int64
	errors     atomic.Int64
	violations atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
	byKind    map[string]int64
	examples  []string
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
		byKind:    make(map[string]int64),
	}
}

const maxExamples = 10

func (s *Stats) record(q query, latency time.Duration, status int, err error, violations []string) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	switch status {
	case http.StatusOK:
		s.found.Add(1)
	case http.StatusNotFound:
		s.notFound.Add(1)
	default:
		s.errors.Add(1)
	}
	s.violations.Add(int64(len(violations)))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, latency)
	s.codes[status]++
	for _, v := range violations {
		s.byKind[v]++
		if len(s.examples) < maxExamples {
			s.examples = append(s.examples, fmt.Sprintf("movie=%q limit=%d: %s", q.movie, q.limit, v))
		}
	}
}

// checkResponse returns the violations found in one answer. Statuses other
// than 200 and 404 are counted as errors by the caller and not inspected.
func checkResponse(q query, status int, body []byte) []string {
	if status != http.StatusOK && status != http.StatusNotFound {
		return nil
	}
	var resp handler.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return []string{violationUndecodable}
	}

	var out []string
	if resp.Movie != q.movie {
		out = append(out, violationMovieEcho)
	}
	if resp.Found != (status == http.StatusOK) {
		out = append(out, violationFoundFlag)
	}
	if status == http.StatusNotFound {
		if len(resp.Results) != 0 {
			out = append(out, violationNotFoundBody)
		}
		return out
	}

	if len(resp.Results) > q.limit {
		out = append(out, violationOverLimit)
	}
	seen := make(map[string]bool, len(resp.Results))
	queryReturned, duplicate, increasing := false, false, false
	for i, r := range resp.Results {
		if r.Title == q.movie {
			queryReturned = true
		}
		if seen[r.Title] {
			duplicate = true
		}
		seen[r.Title] = true
		if i > 0 && r.Score > resp.Results[i-1].Score {
			increasing = true
		}
	}
	if queryReturned {
		out = append(out, violationQueryReturned)
	}
	if duplicate {
		out = append(out, violationDuplicate)
	}
	if increasing {
		out = append(out, violationScoreOrder)
	}
	return out
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the recommendation service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	limitsFlag := flag.String("limits", "1,5,10,25", "comma-separated result limits to cycle through")
	indexPath := flag.String("index", "", "title index CSV to draw movies from; a built-in list is used when empty")
	unknown := flag.String("unknown", "Not A Real Movie", "title expected to be unknown to the service; empty disables")
	flag.Parse()

	limits, err := parseLimits(*limitsFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -limits: %v\n", err)
		os.Exit(2)
	}
	movies := defaultMovies
	if *indexPath != "" {
		if movies, err = readMovies(*indexPath); err != nil {
			fmt.Fprintf(os.Stderr, "reading %s: %v\n", *indexPath, err)
			os.Exit(2)
		}
	}
	if *unknown != "" {
		movies = append(movies, *unknown)
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Plan:        buildPlan(movies, limits),
	}

	fmt.Println("=== Movie Recommender Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Movies:      %d unique, limits %v\n", len(movies), limits)
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()
	stats := runLoadTest(ctx, cfg, newClient(cfg.Concurrency), os.Stdout)
	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

func parseLimits(s string) ([]int, error) {
	var limits []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%q is not a positive integer", part)
		}
		limits = append(limits, n)
	}
	return limits, nil
}

func readMovies(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := loader.ReadIndex(context.Background(), f)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no titles in index")
	}
	movies := make([]string, len(entries))
	for i, e := range entries {
		movies[i] = e.Title
	}
	return movies, nil
}

func newClient(concurrency int) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// runLoadTest runs cfg.Concurrency workers until ctx is done. Progress dots
// go to progress.
func runLoadTest(ctx context.Context, cfg Config, client *http.Client, progress io.Writer) *Stats {
	stats := NewStats()
	fmt.Fprint(progress, "Running")

	var g errgroup.Group
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				q := cfg.Plan[i%len(cfg.Plan)]
				latency, status, body, err := send(ctx, client, cfg.BaseURL, q)
				if ctx.Err() != nil {
					// Requests cut off by the end of the run are not results.
					return nil
				}
				stats.record(q, latency, status, err, checkResponse(q, status, body))
			}
			return nil
		})
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Fprint(progress, ".")
			}
		}
	}()

	g.Wait()
	fmt.Fprintln(progress, " done!")
	fmt.Fprintln(progress)
	return stats
}

func send(ctx context.Context, client *http.Client, baseURL string, q query) (time.Duration, int, []byte, error) {
	target := fmt.Sprintf("%s%s?movie=%s&limit=%d", baseURL, recommendationsPath, url.QueryEscape(q.movie), q.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, 0, nil, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return time.Since(start), 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return time.Since(start), resp.StatusCode, body, err
}

// printReport writes the summary and reports whether the run was clean: at
// least one request completed and no answer violated a check.
func printReport(w io.Writer, stats *Stats, duration time.Duration) bool {
	total := stats.total.Load()
	violations := stats.violations.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Found:           %d\n", stats.found.Load())
	fmt.Fprintf(w, "Not Found:       %d\n", stats.notFound.Load())
	fmt.Fprintf(w, "Errors:          %d\n", stats.errors.Load())
	fmt.Fprintf(w, "Violations:      %d\n", violations)
	if total > 0 {
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()

	if len(stats.latencies) > 0 {
		latencies := append([]time.Duration(nil), stats.latencies...)
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.codes[code])
	}

	if violations > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Violations ===")
		kinds := make([]string, 0, len(stats.byKind))
		for k := range stats.byKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", k, stats.byKind[k])
		}
		for _, e := range stats.examples {
			fmt.Fprintf(w, "  e.g. %s\n", e)
		}
	}

	if total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the service running?")
		return false
	}
	return violations == 0
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}
