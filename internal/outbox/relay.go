package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Store interface {
	Pending(ctx context.Context, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Publisher delivers one message to the event stream.
type Publisher interface {
	Publish(ctx context.Context, key, eventType string, payload []byte) error
}

// Relay polls the outbox and publishes pending messages in creation order.
type Relay struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	published prometheus.Counter
	failures  prometheus.Counter
}

type RelayOption func(*Relay)

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithRegisterer exports relay counters.
func WithRegisterer(reg prometheus.Registerer) RelayOption {
	return func(r *Relay) {
		factory := promauto.With(reg)
		r.published = factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_outbox_published_total",
			Help: "Outbox messages published to the event stream.",
		})
		r.failures = factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_outbox_publish_failures_total",
			Help: "Outbox publish attempts that failed and will be retried.",
		})
	}
}

func NewRelay(store Store, publisher Publisher, opts ...RelayOption) *Relay {
	r := &Relay{
		store:     store,
		publisher: publisher,
		interval:  time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil && r.logger != nil {
				r.logger.WarnContext(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

// RunOnce publishes up to one batch. It stops at the first publish failure
// so later messages never overtake an earlier one; the next pass retries it.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.store.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, msg := range pending {
		if err := r.publisher.Publish(ctx, msg.AggregateID, msg.EventType, msg.Payload); err != nil {
			if r.failures != nil {
				r.failures.Inc()
			}
			if r.logger != nil {
				r.logger.ErrorContext(ctx, "outbox publish failed",
					"outbox_id", msg.ID,
					"event_type", msg.EventType,
					"error", err,
				)
			}
			return sent, err
		}
		if err := r.store.MarkPublished(ctx, msg.ID, time.Now().UTC()); err != nil {
			return sent, err
		}
		if r.published != nil {
			r.published.Inc()
		}
		sent++
	}
	return sent, nil
}

// LogPublisher writes messages to the log. It stands in for the broker when
// none is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, key, eventType string, payload []byte) error {
	p.logger.InfoContext(ctx, "outbox event",
		"key", key,
		"event_type", eventType,
		"payload", string(payload),
	)
	return nil
}
