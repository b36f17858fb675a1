package recommender

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
)

func build(t testing.TB, titles []string, rows [][]float64) *Recommender {
	t.Helper()
	entries := make([]catalog.Entry, len(titles))
	for i, title := range titles {
		entries[i] = catalog.Entry{Title: title, Index: i}
	}
	cat, err := catalog.New(entries)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	store, err := similarity.New(rows, cat.Len())
	if err != nil {
		t.Fatalf("similarity.New: %v", err)
	}
	r, err := New(cat, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func abc(t testing.TB) *Recommender {
	return build(t, []string{"A", "B", "C"}, [][]float64{
		{1.0, 0.8, 0.2},
		{0.8, 1.0, 0.5},
		{0.2, 0.5, 1.0},
	})
}

func mustRecommend(t *testing.T, r *Recommender, title string, k int) Result {
	t.Helper()
	res, err := r.Recommend(title, k)
	if err != nil {
		t.Fatalf("Recommend(%q, %d): %v", title, k, err)
	}
	return res
}

func TestRecommendScenarios(t *testing.T) {
	r := abc(t)
	tests := []struct {
		title string
		k     int
		want  []Recommendation
	}{
		{"A", 10, []Recommendation{{"B", 0.8}, {"C", 0.2}}},
		{"A", 1, []Recommendation{{"B", 0.8}}},
		{"A", 2, []Recommendation{{"B", 0.8}, {"C", 0.2}}},
		{"B", 10, []Recommendation{{"A", 0.8}, {"C", 0.5}}},
		{"C", 10, []Recommendation{{"B", 0.5}, {"A", 0.2}}},
		{"A", 0, []Recommendation{}},
		{"A", -3, []Recommendation{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_k%d", tt.title, tt.k), func(t *testing.T) {
			res := mustRecommend(t, r, tt.title, tt.k)
			if !res.Found() {
				t.Fatalf("status = %v, want found", res.Status)
			}
			if !reflect.DeepEqual(res.Recommendations, tt.want) {
				t.Errorf("got %v, want %v", res.Recommendations, tt.want)
			}
		})
	}
}

func TestRecommendUnknownTitle(t *testing.T) {
	r := abc(t)
	for _, title := range []string{"Z", "", "a", "A ", "AA", "b"} {
		res := mustRecommend(t, r, title, 10)
		if res.Status != StatusNotFound {
			t.Errorf("Recommend(%q) status = %v, want not_found", title, res.Status)
		}
		if res.Recommendations == nil || len(res.Recommendations) != 0 {
			t.Errorf("Recommend(%q) recommendations = %#v, want empty", title, res.Recommendations)
		}
	}
}

func TestRecommendSingleTitle(t *testing.T) {
	r := build(t, []string{"A"}, [][]float64{{1.0}})
	res := mustRecommend(t, r, "A", 10)
	if !res.Found() || len(res.Recommendations) != 0 {
		t.Errorf("got %+v, want found with no recommendations", res)
	}
}

func TestRecommendTiesOrderedByRow(t *testing.T) {
	r := build(t, []string{"W", "X", "Y", "Z", "Q"}, [][]float64{
		{1.0, 0.5, 0.7, 0.5, 0.7},
		{0.5, 1.0, 0.0, 0.0, 0.0},
		{0.7, 0.0, 1.0, 0.0, 0.0},
		{0.5, 0.0, 0.0, 1.0, 0.0},
		{0.7, 0.0, 0.0, 0.0, 1.0},
	})
	want := []Recommendation{{"Y", 0.7}, {"Q", 0.7}, {"X", 0.5}, {"Z", 0.5}}
	for i := 0; i < 5; i++ {
		got := mustRecommend(t, r, "W", 10).Recommendations
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d: got %v, want %v", i, got, want)
		}
	}
}

func TestRecommendExcludesSelfByIdentity(t *testing.T) {
	tests := []struct {
		name  string
		query string
		rows  [][]float64
		want  []Recommendation
	}{
		{
			name:  "other title outscores self",
			query: "A",
			rows: [][]float64{
				{0.3, 0.9, 0.1},
				{0.9, 1.0, 0.0},
				{0.1, 0.0, 1.0},
			},
			want: []Recommendation{{"B", 0.9}, {"C", 0.1}},
		},
		{
			name:  "other title ties self at a lower row",
			query: "B",
			rows: [][]float64{
				{1.0, 0.2, 0.0},
				{1.0, 1.0, 0.4},
				{0.0, 0.4, 1.0},
			},
			want: []Recommendation{{"A", 1.0}, {"C", 0.4}},
		},
		{
			name:  "self scores lowest",
			query: "A",
			rows: [][]float64{
				{-1.0, 0.5, 0.6},
				{0.5, 1.0, 0.0},
				{0.6, 0.0, 1.0},
			},
			want: []Recommendation{{"C", 0.6}, {"B", 0.5}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := build(t, []string{"A", "B", "C"}, tt.rows)
			got := mustRecommend(t, r, tt.query, 10).Recommendations
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecommendProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 40
	titles := make([]string, n)
	rows := make([][]float64, n)
	for i := range titles {
		titles[i] = fmt.Sprintf("movie-%02d", i)
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			// Coarse buckets so ties are common.
			rows[i][j] = float64(rng.Intn(5)) / 4
		}
	}
	r := build(t, titles, rows)
	rowOf := make(map[string]int, n)
	for i, title := range titles {
		rowOf[title] = i
	}

	for _, title := range titles {
		for _, k := range []int{0, 1, 5, n - 1, n, 3 * n} {
			res := mustRecommend(t, r, title, k)
			got := res.Recommendations
			if len(got) > k || len(got) > n-1 {
				t.Fatalf("%s k=%d: %d results", title, k, len(got))
			}
			if k >= n-1 && len(got) != n-1 {
				t.Fatalf("%s k=%d: %d results, want %d", title, k, len(got), n-1)
			}
			for i, rec := range got {
				if rec.Title == title {
					t.Fatalf("%s k=%d: query returned at position %d", title, k, i)
				}
				if i == 0 {
					continue
				}
				prev := got[i-1]
				if prev.Score < rec.Score {
					t.Fatalf("%s k=%d: scores increase at %d: %v", title, k, i, got)
				}
				if prev.Score == rec.Score && rowOf[prev.Title] > rowOf[rec.Title] {
					t.Fatalf("%s k=%d: tie at %d not ordered by row: %v", title, k, i, got)
				}
			}
			again := mustRecommend(t, r, title, k)
			if !reflect.DeepEqual(res, again) {
				t.Fatalf("%s k=%d: not idempotent", title, k)
			}
		}
	}
}

func TestRecommendConcurrentReaders(t *testing.T) {
	r := abc(t)
	want := mustRecommend(t, r, "A", 10)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Recommend("A", 10)
			if err != nil {
				errs <- err
				return
			}
			if !reflect.DeepEqual(got, want) {
				errs <- fmt.Errorf("got %v, want %v", got, want)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNewDimensionMismatch(t *testing.T) {
	entries := make([]catalog.Entry, 5)
	for i := range entries {
		entries[i] = catalog.Entry{Title: fmt.Sprintf("t%d", i), Index: i}
	}
	cat, err := catalog.New(entries)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	four := make([][]float64, 4)
	for i := range four {
		four[i] = make([]float64, 4)
	}
	store, err := similarity.New(four, 4)
	if err != nil {
		t.Fatalf("similarity.New: %v", err)
	}
	if _, err := New(cat, store); !errors.Is(err, apperrors.ErrDimensionMismatch) {
		t.Errorf("New err = %v, want ErrDimensionMismatch", err)
	}
	if _, err := similarity.New(four, cat.Len()); !errors.Is(err, apperrors.ErrDimensionMismatch) {
		t.Errorf("similarity.New err = %v, want ErrDimensionMismatch", err)
	}
}

func TestStatusString(t *testing.T) {
	if StatusFound.String() != "found" || StatusNotFound.String() != "not_found" {
		t.Errorf("unexpected status strings: %s, %s", StatusFound, StatusNotFound)
	}
}

func BenchmarkRecommend(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		b.Run(fmt.Sprintf("titles_%d", n), func(b *testing.B) {
			rng := rand.New(rand.NewSource(1))
			titles := make([]string, n)
			rows := make([][]float64, n)
			for i := range titles {
				titles[i] = fmt.Sprintf("movie-%d", i)
				rows[i] = make([]float64, n)
				for j := range rows[i] {
					rows[i][j] = rng.Float64()
				}
				rows[i][i] = 1
			}
			r := build(b, titles, rows)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := r.Recommend(titles[i%n], 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
