package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filedepot/filedepot/core/depot"
	"github.com/filedepot/filedepot/core/infra/buildinfo"
	"github.com/filedepot/filedepot/core/infra/bus"
	"github.com/filedepot/filedepot/core/infra/config"
	infraMetrics "github.com/filedepot/filedepot/core/infra/metrics"
	"github.com/filedepot/filedepot/core/infra/recordstore"
)

func main() {
	log.Println("filedepot sweeper starting...")
	buildinfo.Log("filedepot-sweeper")

	cfg := config.Load()

	strategy, err := config.LoadStrategyConfig(cfg.StrategyConfigPath)
	if err != nil {
		log.Printf("using default strategy (could not load %s): %v", cfg.StrategyConfigPath, err)
		strategy = depot.DefaultStrategy()
	}

	metrics := infraMetrics.NewProm("filedepot")
	sweeps := infraMetrics.NewSweepProm("filedepot")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", infraMetrics.Handler())
		srv := &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		log.Printf("sweeper metrics on %s/metrics", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	store, err := recordstore.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to Redis for record store: %v", err)
	}
	defer store.Close()

	opts := depot.Options{
		Strategy:      &strategy,
		Meta:          store,
		Metrics:       metrics,
		Sweeps:        sweeps,
		SweepInterval: cfg.SweepInterval,
	}
	if cfg.PublishEvents {
		natsBus, err := bus.NewNatsBus(cfg.NatsURL)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		defer natsBus.Close()
		opts.Events = natsBus
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := depot.New(ctx, store, opts)
	if err != nil {
		log.Fatalf("failed to start persistence engine: %v", err)
	}

	log.Println("sweeper running. waiting for signals...")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("sweeper shutting down")
	if err := engine.Close(); err != nil {
		log.Printf("engine close failed: %v", err)
	}
}
