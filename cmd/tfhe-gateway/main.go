// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Command tfhe-gateway serves the blob and job HTTP API. With the memory
// queue backend it also runs the worker pool in process.
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
	"github.com/luxfi/tfhe/server"
)

const shutdownTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tfhe-gateway",
		Short:        "Serve the TFHE blob and job API",
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
	cmd.Flags().String(config.APIAddrKey, ":8080", "API listen address")
	cmd.Flags().String(config.MetricsAddrKey, ":9090", "metrics listen address")
	return cmd
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, eg *errgroup.Group, srv *http.Server) {
	eg.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
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
	api := server.New(server.Config{
		Params:  params,
		Queue:   q,
		Storage: store,
		Metrics: metrics.NewGatewayMetrics(registry),
		Log:     log,
	})

	eg, ctx := errgroup.WithContext(ctx)
	serve(ctx, eg, &http.Server{Addr: cfg.APIAddr, Handler: api, ReadHeaderTimeout: 10 * time.Second})
	serve(ctx, eg, &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(registry), ReadHeaderTimeout: 10 * time.Second})

	// A memory queue is invisible to other processes.
	if cfg.Queue.Backend == config.BackendMemory {
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
		eg.Go(func() error { return pool.Run(ctx) })
	}

	log.Info("gateway starting",
		zap.Stringer("params", params),
		zap.String("api", cfg.APIAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("queue", cfg.Queue.Backend),
	)
	err = eg.Wait()
	log.Info("gateway stopped")
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
