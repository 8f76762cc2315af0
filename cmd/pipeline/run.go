// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"image-pipeline/pkg/core/config"
	"image-pipeline/pkg/core/logging"
	"image-pipeline/pkg/metrics"
	"image-pipeline/pkg/pipeline"
	"image-pipeline/pkg/render"
	"image-pipeline/pkg/server"
	"image-pipeline/pkg/storage"
	"image-pipeline/pkg/templatestore"
)

var runConfigPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the image pipeline service",
	Long: `Run the image pipeline service.

The service exposes POST /pipeline/v2/process, a health probe, static file
serving for rendered outputs, and Prometheus metrics on a separate port.

Configuration is loaded from:
1. Environment variables (highest priority)
2. An optional YAML config file (--config)
3. Default values (lowest priority)

Example usage:
  # Run with defaults (listens on 0.0.0.0:9002)
  pipeline run

  # Run with a config file
  pipeline run --config /etc/pipeline/config.yaml`,
	RunE: runService,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "",
		"Path to YAML config file (optional)")
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	// Log detected resource limits for observability.
	gomaxprocs := runtime.GOMAXPROCS(0)
	var gomemlimit string
	if limit := debug.SetMemoryLimit(-1); limit != math.MaxInt64 {
		gomemlimit = fmt.Sprintf("%d bytes (%.2f MiB)", limit, float64(limit)/(1024*1024))
	} else {
		gomemlimit = "unlimited"
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	metricsPort := cfg.Metrics.GetPort()
	metricsAddr := "disabled"
	if metricsPort != 0 {
		metricsAddr = net.JoinHostPort(cfg.Server.Host, strconv.Itoa(metricsPort))
	}

	logger.Info("image pipeline starting",
		"version", "v0.1.0",
		"addr", addr,
		"metrics_addr", metricsAddr,
		"data_dir", cfg.Storage.DataDir,
		"cache_dir", cfg.Template.CacheDir,
		"public_base_url", cfg.Storage.PublicBaseURL,
		"log_level", cfg.Logging.Level,
		"gomaxprocs", gomaxprocs,
		"gomemlimit", gomemlimit)

	store, err := storage.New(cfg.Storage.DataDir, cfg.Storage.PublicBaseURL, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	templates := templatestore.New(cfg.Template.CacheDir, templatestore.Options{
		ConnectTimeout: cfg.Template.GetConnectTimeout(),
		ReadTimeout:    cfg.Template.GetReadTimeout(),
		Retries:        cfg.Template.DownloadRetries,
	}, logger)

	registry := prometheus.NewRegistry()
	instruments := metrics.NewPipeline(registry)

	p := pipeline.New(templates, store, render.New(logger), instruments, logger)
	httpServer := server.New(addr, p, store.BaseDir(), logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return httpServer.Start(ctx) })
	if metricsPort != 0 {
		metricsServer := metrics.NewServer(metricsAddr, registry, logger)
		group.Go(func() error { return metricsServer.Start(ctx) })
	}

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("service failed: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
