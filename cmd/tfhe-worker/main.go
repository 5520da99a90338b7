// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Command tfhe-worker pops bootstrap jobs from the shared queue and writes
// results to the shared blob storage.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/tfhe/internal/config"
	"github.com/luxfi/tfhe/internal/metrics"
	"github.com/luxfi/tfhe/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tfhe-worker",
		Short:        "Run TFHE bootstrap workers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.BuildViper(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := config.NewConfig(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	config.AddFlags(cmd.Flags())
	cmd.Flags().String(config.MetricsAddrKey, ":9090", "metrics and health listen address")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	params, err := cfg.Parameters()
	if err != nil {
		return err
	}
	store, err := cfg.Storage.Open()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()
	q, err := cfg.Queue.Open()
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer q.Close()

	registry := prometheus.NewRegistry()
	pool, err := worker.New(worker.Config{
		Workers: cfg.Workers,
		Params:  params,
		Queue:   q,
		Storage: store,
		Metrics: metrics.NewWorkerMetrics(registry),
		Log:     log,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	log.Info("worker starting",
		zap.Stringer("params", params),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("queue", cfg.Queue.Backend),
		zap.String("metrics", cfg.MetricsAddr),
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	eg.Go(func() error { return pool.Run(ctx) })

	err = eg.Wait()
	log.Info("worker stopped")
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
