package main

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/bookingflow/internal/booking/application"
	bookinghttp "github.com/dmehra2102/bookingflow/internal/booking/infrastructure/http"
	"github.com/dmehra2102/bookingflow/internal/booking/infrastructure/http/middleware"
	bookingpg "github.com/dmehra2102/bookingflow/internal/booking/infrastructure/postgres"
	"github.com/dmehra2102/bookingflow/internal/config"
	"github.com/dmehra2102/bookingflow/pkg/broker"
	"github.com/dmehra2102/bookingflow/pkg/consumer"
	"github.com/dmehra2102/bookingflow/pkg/idempotency"
	"github.com/dmehra2102/bookingflow/pkg/logging"
	"github.com/dmehra2102/bookingflow/pkg/outbox"
	"github.com/dmehra2102/bookingflow/pkg/pgtx"
	"github.com/dmehra2102/bookingflow/pkg/shutdown"
	"github.com/dmehra2102/bookingflow/pkg/tracing"
)

const serviceName = "booking-service"

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

	if err := bookingpg.Migrate(ctx, pool); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	pub := broker.NewPublisher(log, cfg.Kafka.Brokers)
	defer pub.Close()

	var wg sync.WaitGroup

	// Outbox relay for booking events.
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

	repo := bookingpg.NewRepository(log, pool, store)
	svc := application.NewService(log, repo)

	// Confirmation/cancellation saga steps driven by payment events.
	sub := broker.NewSubscriber(cfg.Kafka.Brokers, serviceName, "payment.events", serviceName+".retry")
	defer sub.Close()

	runtime := consumer.NewRuntime(log, consumer.Config{
		Name:            serviceName,
		RetryTopic:      serviceName + ".retry",
		DeadLetterTopic: serviceName + ".dlq",
		MaxRetries:      cfg.Consumer.MaxRetries,
	}, sub, pub, pgtx.NewManager(pool), idempotency.NewLedger(pool, serviceName),
		idempotency.NewCache(rdb, serviceName, 24*time.Hour), application.NewPaymentEventHandler(svc))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runtime.Run(ctx); err != nil {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	handler := bookinghttp.NewHandler(log, svc)
	r := chi.NewRouter()
	r.Use(middleware.Idempotency(rdb))
	r.Mount("/", handler.Routes())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
	log.Info("shutdown complete")
}
