package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/kafka"
)

const (
	eventKey          = "recommendation"
	defaultBufferSize = 10000
	maxBatchSize      = 100
	flushInterval     = time.Second
)

// Publisher is the subset of kafka.Producer the collector needs.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector queues events without blocking request handlers and publishes
// them in batches. Events are dropped when the buffer is full.
type Collector struct {
	publisher Publisher
	eventCh   chan RecommendationEvent
	onDrop    func()
	logger    *slog.Logger
	quit      chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// NewCollector creates a Collector. onDrop, if non-nil, is called for every
// event discarded because the buffer was full.
func NewCollector(publisher Publisher, bufferSize int, onDrop func()) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Collector{
		publisher: publisher,
		eventCh:   make(chan RecommendationEvent, bufferSize),
		onDrop:    onDrop,
		logger:    slog.Default().With("component", "analytics-collector"),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. It stops after ctx is cancelled or Close
// is called, flushing whatever is still queued.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		batch := make([]kafka.Event, 0, maxBatchSize)
		for {
			select {
			case event := <-c.eventCh:
				batch = append(batch, kafka.Event{Key: eventKey, Value: event})
				if len(batch) >= maxBatchSize {
					c.flush(ctx, batch)
					batch = batch[:0]
				}
			case <-ticker.C:
				c.flush(ctx, batch)
				batch = batch[:0]
			case <-ctx.Done():
				c.stop(batch)
				return
			case <-c.quit:
				c.stop(batch)
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// stop publishes whatever is still queued with a bounded deadline.
func (c *Collector) stop(batch []kafka.Event) {
	batch = c.drainRemaining(batch)
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(flushCtx, batch)
}

// Track enqueues event. It never blocks.
func (c *Collector) Track(event RecommendationEvent) {
	select {
	case c.eventCh <- event:
	default:
		if c.onDrop != nil {
			c.onDrop()
		}
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops the publish loop after a final flush and waits for it.
// Events tracked after Close are queued but never published.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
	<-c.done
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
	}
}

func (c *Collector) drainRemaining(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event := <-c.eventCh:
			batch = append(batch, kafka.Event{Key: eventKey, Value: event})
		default:
			return batch
		}
	}
}
