package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender/handler"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/middleware"
)

const (
	testMatrix = `,0,1,2,3
0,1.0,0.31,0.72,0.05
1,0.31,1.0,0.31,0.44
2,0.72,0.31,1.0,0.12
3,0.05,0.44,0.12,1.0
`
	testIndex = `,title,index
0,Avatar,0
1,Spectre,1
2,John Carter,2
3,Tangled,3
`
)

// newTestServer loads the CSV dataset from a temp dir and serves the full
// middleware chain.
func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Data.MatrixPath = filepath.Join(dir, "matrix.csv")
	cfg.Data.IndexPath = filepath.Join(dir, "indices.csv")
	if mutate != nil {
		mutate(cfg)
	}
	if err := os.WriteFile(cfg.Data.MatrixPath, []byte(testMatrix), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Data.IndexPath, []byte(testIndex), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ds, err := loadDataset(ctx, cfg)
	if err != nil {
		t.Fatalf("loadDataset: %v", err)
	}
	rec, err := recommender.New(ds.Catalog, ds.Store)
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New(prometheus.NewRegistry())
	h := handler.New(rec, m, nil, cfg.Recommend.DefaultLimit, cfg.Recommend.MaxResults)
	srv := httptest.NewServer(newRouter(ctx, cfg, m, h, analytics.NewHandler(nil), health.NewChecker()))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string, query url.Values) (*http.Response, handler.Response) {
	t.Helper()
	resp, err := http.Get(srv.URL + path + "?" + query.Encode())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body handler.Response
	json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestRecommendationsEndToEnd(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := get(t, srv, routeRecommendations, url.Values{"movie": {"Avatar"}, "limit": {"2"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request ID header")
	}
	want := []string{"John Carter", "Spectre"}
	if len(body.Results) != len(want) {
		t.Fatalf("results = %+v", body.Results)
	}
	for i, title := range want {
		if body.Results[i].Title != title {
			t.Errorf("results[%d] = %q, want %q", i, body.Results[i].Title, title)
		}
	}
}

func TestLegacyRouteExcludesQueryAndDefaultsToTen(t *testing.T) {
	srv := newTestServer(t, nil)

	_, body := get(t, srv, routeLegacy, url.Values{"movie": {"Spectre"}})
	if len(body.Results) != 3 {
		t.Fatalf("results = %+v, want all 3 other titles", body.Results)
	}
	for _, r := range body.Results {
		if r.Title == "Spectre" {
			t.Error("query title returned in its own recommendations")
		}
	}
	// Avatar and John Carter tie at 0.31; Avatar has the lower row.
	if body.Results[0].Title != "Tangled" || body.Results[1].Title != "Avatar" || body.Results[2].Title != "John Carter" {
		t.Errorf("order = %+v", body.Results)
	}
}

func TestUnknownMovieIsNotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := get(t, srv, routeRecommendations, url.Values{"movie": {"Spoderman"}})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body.Found || len(body.Results) != 0 {
		t.Errorf("body = %+v", body)
	}
}

func TestRateLimitedRouter(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}
	})

	first, _ := get(t, srv, routeCatalogStats, nil)
	second, _ := get(t, srv, routeCatalogStats, nil)
	if first.StatusCode != http.StatusOK || second.StatusCode != http.StatusTooManyRequests {
		t.Errorf("codes = %d, %d; want 200, 429", first.StatusCode, second.StatusCode)
	}
	live, _ := get(t, srv, routeLive, nil)
	if live.StatusCode != http.StatusOK {
		t.Errorf("health probe limited: %d", live.StatusCode)
	}
}

func TestHealthAndAnalyticsRoutes(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{routeLive, routeReady, routeAnalytics, routeCatalogStats} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status = %d", path, resp.StatusCode)
		}
	}
}

func TestLoadDatasetRejectsNaNRow(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Data.MatrixPath = filepath.Join(dir, "matrix.csv")
	cfg.Data.IndexPath = filepath.Join(dir, "indices.csv")
	matrix := ",0,1,2,3\n0,0.1,0.9,NaN,0.9\n1,0.9,1,0,0\n2,0,0,1,0\n3,0.9,0,0,1\n"
	if err := os.WriteFile(cfg.Data.MatrixPath, []byte(matrix), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Data.IndexPath, []byte(",title,index\n0,A,0\n1,B,1\n2,C,2\n3,D,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := loadDataset(context.Background(), cfg); !errors.Is(err, apperrors.ErrInvalidScore) {
		t.Errorf("loadDataset err = %v, want ErrInvalidScore", err)
	}
}
