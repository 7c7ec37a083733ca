package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/countwatch/countwatch/pkg/collector"
	"github.com/countwatch/countwatch/pkg/config"
	"github.com/countwatch/countwatch/pkg/dispatch"
	"github.com/countwatch/countwatch/pkg/observe"
	"github.com/countwatch/countwatch/pkg/queue"
	"github.com/countwatch/countwatch/pkg/recorder"
	"github.com/countwatch/countwatch/pkg/sampler"
	"github.com/countwatch/countwatch/pkg/server"
	badgerstore "github.com/countwatch/countwatch/pkg/storage/badger"
)

func main() {
	log.Println("Starting countwatch...")

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	log.Printf("Configuration: api=%s data=%s port=%s", cfg.APIBaseURL, cfg.DataDir, cfg.Port)

	store, err := badgerstore.New(badgerstore.Config{
		Path:        cfg.DataDir,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		log.Fatalf("Failed to open metric store: %v", err)
	}
	log.Println("BadgerDB metric store initialized")

	metrics := observe.New(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live record feed
	hub := server.NewRecordHub()
	go hub.Run(ctx)

	// Sampling pipeline: queue -> collector -> recorder
	q := queue.New(config.QueueCapacity)
	coll := collector.New(
		sampler.New(cfg.APIBaseURL, config.FetchTimeout),
		recorder.New(store),
		collector.Config{
			FetchTimeout: config.FetchTimeout,
			StoreTimeout: config.StoreTimeout,
		},
		metrics,
		hub,
	)
	consumer := queue.NewConsumer(q, coll.ProcessBatch, queue.ConsumerConfig{
		BatchSize:       config.QueueBatchSize,
		MaxReceive:      config.QueueMaxReceive,
		RedeliveryDelay: config.RedeliveryDelay,
		PollInterval:    config.QueuePollInterval,
	}, metrics)
	go consumer.Run(ctx)

	// Per-minute trigger expanding into 5-second slots
	dispatcher := dispatch.New(q, config.SampleIntervalSeconds, config.MessagesPerMinute, metrics)
	go dispatch.RunTrigger(ctx, dispatcher)
	log.Printf("Dispatch trigger started (%d messages per minute, %ds interval)",
		config.MessagesPerMinute, config.SampleIntervalSeconds)

	// Badger value log GC
	go runBadgerGC(ctx, store)

	router := mux.NewRouter()
	server.SetupRoutes(router, store, q, hub)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	q.Close()
	if err := store.Close(); err != nil {
		log.Printf("Store close error: %v", err)
	}
	log.Println("Shutdown complete")
}

// runBadgerGC reclaims value log space periodically.
func runBadgerGC(ctx context.Context, store *badgerstore.Store) {
	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := store.RunGC(0.5); err != nil {
				// Badger returns an error when no rewrite was needed.
				log.Printf("GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		}
	}
}
