package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/bookingflow/pkg/backoff"
	"github.com/dmehra2102/bookingflow/pkg/broker"
	"github.com/dmehra2102/bookingflow/pkg/event"
	"github.com/dmehra2102/bookingflow/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var (
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_events_processed_total",
		Help: "Events whose side effect was applied and recorded.",
	}, []string{"consumer"})
	eventsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_events_duplicate_total",
		Help: "Deliveries suppressed by the processed-event ledger.",
	}, []string{"consumer"})
	eventsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_events_retried_total",
		Help: "Events republished to the retry destination.",
	}, []string{"consumer"})
	eventsDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_events_dead_lettered_total",
		Help: "Events routed to the dead-letter destination.",
	}, []string{"consumer"})
)

// ErrPermanent marks a handler failure that cannot succeed on retry; the
// event goes straight to the dead-letter destination.
var ErrPermanent = errors.New("permanent handler failure")

var errDuplicate = errors.New("duplicate event")

// handlerFailure separates a handler's own error from ledger/transaction
// infrastructure errors: only the former consumes retry budget, the latter
// leave the delivery unacknowledged.
type handlerFailure struct {
	err error
}

func (f *handlerFailure) Error() string { return f.err.Error() }
func (f *handlerFailure) Unwrap() error { return f.err }

// Handler applies the side effect of one event. It runs inside the ledger
// transaction: whatever it writes through the ambient pgx transaction
// commits atomically with the processed_events insert.
type Handler interface {
	Handle(ctx context.Context, env event.Envelope) error
}

type HandlerFunc func(ctx context.Context, env event.Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env event.Envelope) error {
	return f(ctx, env)
}

// Source is the subscription side of the broker client.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher is the explicit-topic publish capability used for retry and
// dead-letter routing.
type Publisher interface {
	PublishTo(ctx context.Context, topic string, key, value []byte, headers []kafka.Header) error
}

// Ledger is the durable processed-event set.
type Ledger interface {
	MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error)
}

// Cache is an optional duplicate pre-filter (redis); nil disables it.
type Cache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// TxRunner runs fn in one atomic transaction injected into the context.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
	// Name labels logs and metrics, e.g. "payment-service".
	Name string
	// RetryTopic receives republished envelopes with retry_count incremented.
	RetryTopic string
	// DeadLetterTopic receives poison messages and events past MaxRetries.
	DeadLetterTopic string
	// MaxRetries bounds republish attempts before dead-lettering. Zero means
	// the default of 3.
	MaxRetries int
}

// Runtime is the idempotent consumer loop: fetch, deduplicate, apply the
// handler atomically with the ledger insert, then resolve the delivery to
// exactly one of ack, retry-republish or dead-letter.
type Runtime struct {
	log        *slog.Logger
	cfg        Config
	src        Source
	pub        Publisher
	ledger     Ledger
	cache      Cache
	tx         TxRunner
	handler    Handler
	maxRetries int
	retry      backoff.Policy
}

func NewRuntime(log *slog.Logger, cfg Config, src Source, pub Publisher, tx TxRunner, ledger Ledger, cache Cache, h Handler) *Runtime {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Runtime{
		log:        log.With("consumer", cfg.Name),
		cfg:        cfg,
		src:        src,
		pub:        pub,
		ledger:     ledger,
		cache:      cache,
		tx:         tx,
		handler:    h,
		maxRetries: maxRetries,
		retry:      backoff.Policy{Base: time.Second, Max: time.Minute},
	}
}

// Run fetches until ctx is cancelled. Fetch errors back off and retry
// forever; a message that could not be resolved is left uncommitted so the
// broker redelivers it.
func (r *Runtime) Run(ctx context.Context) error {
	fetchFailures := 0
	for {
		msg, err := r.src.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.log.Info("consumer stopping")
				return nil
			}
			fetchFailures++
			delay := r.retry.Delay(fetchFailures)
			r.log.Error("fetch failed", "failures", fetchFailures, "backoff", delay, "err", err)
			if err := backoff.SleepWithContext(ctx, delay); err != nil {
				return nil
			}
			continue
		}
		fetchFailures = 0

		if err := r.process(ctx, msg); err != nil {
			// Unresolved: no commit, broker redelivery is the safety net.
			r.log.Error("message left unresolved", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		}
	}
}

func (r *Runtime) process(ctx context.Context, msg kafka.Message) error {
	env, err := event.Decode(msg.Value)
	if err != nil {
		// Poison: structurally invalid input cannot succeed on retry.
		r.log.Warn("malformed message, dead-lettering", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		if err := r.deadLetter(ctx, msg.Key, msg.Value, msg.Headers); err != nil {
			return err
		}
		return r.src.Commit(ctx, msg)
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)

	if r.cache != nil {
		seen, err := r.cache.Seen(msgCtx, env.EventID)
		if err != nil {
			r.log.Warn("duplicate cache unavailable", "err", err)
		} else if seen {
			eventsDuplicate.WithLabelValues(r.cfg.Name).Inc()
			return r.src.Commit(ctx, msg)
		}
	}

	applyErr := r.tx.WithinTx(msgCtx, func(txCtx context.Context) error {
		fresh, err := r.ledger.MarkProcessed(txCtx, env.EventID, env.EventType)
		if err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
		if !fresh {
			return errDuplicate
		}
		if err := r.handler.Handle(txCtx, env); err != nil {
			return &handlerFailure{err: err}
		}
		return nil
	})

	switch {
	case applyErr == nil:
		eventsProcessed.WithLabelValues(r.cfg.Name).Inc()
		if r.cache != nil {
			if err := r.cache.Mark(msgCtx, env.EventID); err != nil {
				r.log.Warn("duplicate cache mark failed", "event_id", env.EventID, "err", err)
			}
		}
		return r.src.Commit(ctx, msg)

	case errors.Is(applyErr, errDuplicate):
		r.log.Info("duplicate delivery suppressed", "event_id", env.EventID)
		eventsDuplicate.WithLabelValues(r.cfg.Name).Inc()
		return r.src.Commit(ctx, msg)

	default:
		var hf *handlerFailure
		if errors.As(applyErr, &hf) {
			return r.resolveFailure(ctx, msg, env, hf.err)
		}
		// Ledger or transaction I/O failure: do not acknowledge, the broker
		// redelivers and the ledger suppresses any half-applied duplicate.
		return applyErr
	}
}

// resolveFailure converts a handler failure into exactly one of
// retry-republish or dead-letter, then acknowledges the original. If the
// republish itself fails the original stays unacknowledged.
func (r *Runtime) resolveFailure(ctx context.Context, msg kafka.Message, env event.Envelope, applyErr error) error {
	retries := broker.RetryCount(msg.Headers)

	if errors.Is(applyErr, ErrPermanent) || retries >= r.maxRetries {
		r.log.Error("dead-lettering event", "event_id", env.EventID, "retries", retries, "err", applyErr)
		if err := r.deadLetter(ctx, msg.Key, msg.Value, msg.Headers); err != nil {
			return err
		}
		return r.src.Commit(ctx, msg)
	}

	headers := broker.WithRetryCount(msg.Headers, retries+1)
	if err := r.pub.PublishTo(ctx, r.cfg.RetryTopic, msg.Key, msg.Value, headers); err != nil {
		return fmt.Errorf("republish for retry: %w", err)
	}
	eventsRetried.WithLabelValues(r.cfg.Name).Inc()
	r.log.Warn("event scheduled for retry", "event_id", env.EventID, "retry_count", retries+1, "err", applyErr)
	return r.src.Commit(ctx, msg)
}

func (r *Runtime) deadLetter(ctx context.Context, key, value []byte, headers []kafka.Header) error {
	if err := r.pub.PublishTo(ctx, r.cfg.DeadLetterTopic, key, value, headers); err != nil {
		return fmt.Errorf("dead-letter publish: %w", err)
	}
	eventsDeadLettered.WithLabelValues(r.cfg.Name).Inc()
	return nil
}
