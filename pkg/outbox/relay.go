package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmehra2102/bookingflow/pkg/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_relay_published_total",
		Help: "Outbox entries successfully published to the broker.",
	}, []string{"relay"})
	publishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_relay_publish_failures_total",
		Help: "Outbox publish attempts that failed and were released for retry.",
	}, []string{"relay"})
)

// Store is the persistence capability the relay polls.
type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Entry, error)
	MarkSent(ctx context.Context, ids []string) error
	Release(ctx context.Context, id string, errMsg string) error
	ReapExpired(ctx context.Context) (int64, error)
}

// Relay is the at-least-once delivery engine: it claims pending entries,
// publishes them and marks them sent. A crash between publish and mark
// leaves the row claimable again, so the same event_id is republished on a
// later cycle; consumers absorb the duplicate.
type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  *Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
	retry     backoff.Policy
}

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string) *Relay {
	return &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 50,
		interval:  2 * time.Second,
		lease:     30 * time.Second,
		retry:     backoff.Policy{Base: time.Second, Max: time.Minute},
	}
}

func (r *Relay) WithInterval(d time.Duration) *Relay {
	r.interval = d
	return r
}

func (r *Relay) WithBatchSize(n int) *Relay {
	r.batchSize = n
	return r
}

// Run polls until ctx is cancelled. Broker or storage trouble never
// terminates the loop: failed cycles back off exponentially with jitter up
// to a cap and the first good cycle resets the delay.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			if err := r.cycle(ctx); err != nil {
				failures++
				delay := r.retry.Delay(failures)
				r.log.Error("relay cycle failed", "relay_id", r.relayID, "failures", failures, "backoff", delay, "err", err)
				if err := backoff.SleepWithContext(ctx, delay); err != nil {
					return nil
				}
				continue
			}
			failures = 0
		}
	}
}

func (r *Relay) cycle(ctx context.Context) error {
	if n, err := r.store.ReapExpired(ctx); err != nil {
		return err
	} else if n > 0 {
		r.log.Warn("reaped expired outbox leases", "relay_id", r.relayID, "count", n)
	}

	entries, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	sent := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			publishFailures.WithLabelValues(r.relayID).Inc()
			if relErr := r.store.Release(ctx, e.ID, err.Error()); relErr != nil {
				r.log.Error("relay release failed", "event_id", e.ID, "err", relErr)
			}
			continue
		}
		entriesPublished.WithLabelValues(r.relayID).Inc()
		sent = append(sent, e.ID)
	}

	if len(sent) > 0 {
		if err := r.store.MarkSent(ctx, sent); err != nil {
			// Published but not marked: the lease expires and the entries are
			// redelivered. At-least-once, never loss.
			return err
		}
	}
	return nil
}
