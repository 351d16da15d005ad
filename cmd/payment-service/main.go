package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/bookingflow/internal/config"
	"github.com/dmehra2102/bookingflow/internal/payment/application"
	"github.com/dmehra2102/bookingflow/internal/payment/infrastructure/gateway"
	paymentpg "github.com/dmehra2102/bookingflow/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/bookingflow/pkg/broker"
	"github.com/dmehra2102/bookingflow/pkg/consumer"
	"github.com/dmehra2102/bookingflow/pkg/idempotency"
	"github.com/dmehra2102/bookingflow/pkg/logging"
	"github.com/dmehra2102/bookingflow/pkg/outbox"
	"github.com/dmehra2102/bookingflow/pkg/pgtx"
	"github.com/dmehra2102/bookingflow/pkg/shutdown"
	"github.com/dmehra2102/bookingflow/pkg/tracing"
)

const serviceName = "payment-service"

// Charges above this are declined, which drives the saga's cancellation
// branch end to end.
const chargeLimitCents = 1_000_000

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.Log.Level).With("service", serviceName)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tracing.Setup()

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := paymentpg.Migrate(ctx, pool); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	pub := broker.NewPublisher(log, cfg.Kafka.Brokers)
	defer pub.Close()

	var wg sync.WaitGroup

	// Outbox relay for payment events.
	store := outbox.NewPGStore(pool)
	dispatch := outbox.NewDispatcher(log, pub)
	relay := outbox.NewRelay(log, store, dispatch, serviceName+"-relay").
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped", "err", err)
		}
	}()

	repo := paymentpg.NewRepository(log, pool, store)
	gw := gateway.NewThresholdGateway(log, chargeLimitCents)
	svc := application.NewService(log, repo, gw)

	sub := broker.NewSubscriber(cfg.Kafka.Brokers, serviceName, "booking.events", serviceName+".retry")
	defer sub.Close()

	runtime := consumer.NewRuntime(log, consumer.Config{
		Name:            serviceName,
		RetryTopic:      serviceName + ".retry",
		DeadLetterTopic: serviceName + ".dlq",
		MaxRetries:      cfg.Consumer.MaxRetries,
	}, sub, pub, pgtx.NewManager(pool), idempotency.NewLedger(pool, serviceName),
		idempotency.NewCache(rdb, serviceName, 24*time.Hour), application.NewBookingEventHandler(svc))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runtime.Run(ctx); err != nil {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	go serveMetrics(log, cfg.HTTP.Addr)

	<-ctx.Done()
	wg.Wait()
	log.Info("shutdown complete")
}

func serveMetrics(log *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server error", "err", err)
	}
}
