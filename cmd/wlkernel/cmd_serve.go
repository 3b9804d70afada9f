// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/cache"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/config"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/storage/badger"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/telemetry"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, appConfig)
}

// serve runs the HTTP API until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config) error {
	cfg.Telemetry.ServiceVersion = version
	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	resultCache, closeCache, err := openCache(cfg.Cache)
	if err != nil {
		return err
	}
	defer closeCache()

	svc := wlkernel.NewService(wlkernel.ServiceConfigFrom(cfg, version), resultCache)
	if err := svc.LoadDatasets(ctx, cfg.Datasets); err != nil {
		return err
	}

	if strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := wlkernel.NewRouter(wlkernel.NewHandlers(svc), wlkernel.RouterConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		Metrics:        telemetry.MetricsHandler(),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("wlkernel server starting",
			slog.String("address", cfg.Server.Address),
			slog.Int("datasets", len(cfg.Datasets)),
			slog.Bool("cache", resultCache != nil),
			slog.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// openCache opens the Badger-backed matrix cache. A disabled cache yields a
// nil *cache.Cache and a no-op close.
func openCache(cfg config.CacheConfig) (*cache.Cache, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}
	bcfg := badger.DefaultConfig()
	if cfg.InMemory {
		bcfg = badger.InMemoryConfig()
	} else {
		bcfg.Path = expandHome(cfg.Path)
		bcfg.GCInterval = cfg.GCInterval
	}
	bcfg.Logger = slog.Default()

	store, err := badger.Open(bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			slog.Warn("cache close failed", slog.String("error", err.Error()))
		}
	}
	return cache.New(store, cache.WithTTL(cfg.TTL)), closeFn, nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
