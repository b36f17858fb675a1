package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/internal/recommender"
	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/middleware"
)

type Recommender interface {
	Recommend(title string, k int) (recommender.Result, error)
	Size() int
}

// Tracker receives one event per answered query. Track must not block.
type Tracker interface {
	Track(event analytics.RecommendationEvent)
}

type Response struct {
	Movie   string                       `json:"movie"`
	Found   bool                         `json:"found"`
	Results []recommender.Recommendation `json:"results"`
}

type Handler struct {
	rec          Recommender
	metrics      *metrics.Metrics
	tracker      Tracker
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New builds the query handler. m and tracker may be nil.
func New(rec Recommender, m *metrics.Metrics, tracker Tracker, defaultLimit, maxResults int) *Handler {
	return &Handler{
		rec:          rec,
		metrics:      m,
		tracker:      tracker,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "recommend-handler"),
	}
}

func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	movie := r.URL.Query().Get("movie")
	if movie == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'movie' is required"))
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer, got %q", limitStr))
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	result, err := h.rec.Recommend(movie, limit)
	latency := time.Since(start)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("recommendation failed",
			"movie", movie,
			"error", err,
			"status_code", statusCode,
		)
		h.observe(metrics.OutcomeError, latency, 0)
		h.track(r, analytics.EventError, movie, limit, 0, latency)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, statusCode, "recommendation failed"))
		return
	}

	resp := Response{Movie: movie, Found: result.Found(), Results: result.Recommendations}
	if resp.Results == nil {
		resp.Results = []recommender.Recommendation{}
	}

	if !result.Found() {
		log.Info("movie not found", "movie", movie)
		h.observe(metrics.OutcomeNotFound, latency, 0)
		h.track(r, analytics.EventNotFound, movie, limit, 0, latency)
		h.writeJSON(w, apperrors.HTTPStatusCode(apperrors.ErrUnknownTitle), resp)
		return
	}

	log.Info("recommendation completed",
		"movie", movie,
		"limit", limit,
		"returned", len(resp.Results),
		"latency_ms", latency.Milliseconds(),
	)
	h.observe(metrics.OutcomeFound, latency, len(resp.Results))
	h.track(r, analytics.EventRecommendation, movie, limit, len(resp.Results), latency)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CatalogStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]int{"titles": h.rec.Size()})
}

func (h *Handler) observe(outcome string, latency time.Duration, returned int) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecommendationsTotal.WithLabelValues(outcome).Inc()
	h.metrics.RecommendationLatency.Observe(latency.Seconds())
	if outcome == metrics.OutcomeFound {
		h.metrics.RecommendationsCount.Observe(float64(returned))
	}
}

func (h *Handler) track(r *http.Request, typ analytics.EventType, movie string, limit, returned int, latency time.Duration) {
	if h.tracker == nil {
		return
	}
	h.tracker.Track(analytics.RecommendationEvent{
		Type:      typ,
		Movie:     movie,
		Limit:     limit,
		Returned:  returned,
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

// writeJSON encodes data before committing the status so an unencodable
// value becomes a 500 instead of a truncated body.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to encode response", "error", err, "status_code", status)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError reports err with the status and message it carries. Errors
// that are not an AppError are answered with a generic message.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	message := "internal error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": message})
}
