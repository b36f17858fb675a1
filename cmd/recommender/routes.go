package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender/handler"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/ratelimit"
)

const (
	routeRecommendations = "/api/v1/recommendations"
	routeLegacy          = "/recommendation"
	routeCatalogStats    = "/api/v1/catalog/stats"
	routeAnalytics       = "/api/v1/analytics"
	routeLive            = "/health/live"
	routeReady           = "/health/ready"
)

// newRouter registers the API routes and wraps them in the middleware chain.
// ctx bounds background work such as rate-limiter eviction.
func newRouter(ctx context.Context, cfg *config.Config, m *metrics.Metrics, h *handler.Handler, analyticsH *analytics.Handler, checker *health.Checker) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+routeRecommendations, h.Recommend)
	mux.HandleFunc("GET "+routeLegacy, h.Recommend)
	mux.HandleFunc("GET "+routeCatalogStats, h.CatalogStats)
	mux.HandleFunc("GET "+routeAnalytics, analyticsH.Stats)
	mux.HandleFunc("GET "+routeLive, checker.LiveHandler())
	mux.HandleFunc("GET "+routeReady, checker.ReadyHandler())

	var chain http.Handler = mux
	if cfg.Server.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.Server.RateLimit.RequestsPerMinute, time.Minute)
		go limiter.Run(ctx, 5*time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
		slog.Info("rate limiting enabled", "requests_per_minute", cfg.Server.RateLimit.RequestsPerMinute)
	}
	chain = middleware.Metrics(m, routeRecommendations, routeLegacy, routeCatalogStats, routeAnalytics, routeLive, routeReady)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if len(cfg.Server.CORS.AllowOrigins) > 0 {
		chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORS.AllowOrigins))(chain)
	}
	return middleware.RequestID(chain)
}
