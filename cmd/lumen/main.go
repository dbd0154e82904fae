// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command lumen starts the Lumen analysis server.
//
// Lumen provides incremental language analysis for editors:
//   - Resilient parsing with full-fidelity syntax trees
//   - Memoized queries with fine-grained invalidation
//   - Revision-stamped snapshots with cooperative cancellation
//   - Live diagnostics over websocket
//
// Usage:
//
//	go run ./cmd/lumen
//	go run ./cmd/lumen -port 9090 -watch ./src
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/analysis/health
//
//	# Add a file
//	curl -X POST http://localhost:8080/v1/analysis/files \
//	  -H "Content-Type: application/json" \
//	  -d '{"path": "main.lum", "text": "fn main() { 1 + 2 }"}'
//
//	# Query diagnostics
//	curl -X POST http://localhost:8080/v1/analysis/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"kind": "diagnostics", "file": 1}'
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/lumen/pkg/logging"
	"github.com/AleutianAI/lumen/pkg/telemetry"
	"github.com/AleutianAI/lumen/services/analysis"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	configPath := flag.String("config", "", "Path to YAML config file")
	workers := flag.Int("workers", 0, "Override analysis worker count")
	watch := flag.String("watch", "", "Directory to watch for source files")
	traceExporter := flag.String("trace", "", "Trace exporter: otlp, stdout, or none")
	logDir := flag.String("log-dir", "", "Directory for JSON log files")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	level := logging.ParseLevel(*logLevel)
	if *debug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{Level: level, LogDir: *logDir, Service: "lumen"})
	defer logger.Close()

	cfg := analysis.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := analysis.LoadServiceConfig(*configPath)
		if err != nil {
			logger.Error("Failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *watch != "" {
		cfg.WatchRoot = *watch
	}

	registry := prometheus.NewRegistry()

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Registry = registry
	if *traceExporter != "" {
		telemetryCfg.TraceExporter = *traceExporter
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryCfg)
	if err != nil {
		logger.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	svc := analysis.NewService(cfg,
		analysis.WithServiceLogger(logger.Slog()),
		analysis.WithMetricsRegistry(registry),
	)
	if err := svc.StartWatcher(); err != nil {
		logger.Error("Failed to start watcher", "root", cfg.WatchRoot, "error", err)
		os.Exit(1)
	}

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("lumen-analysis"))
	if *debug {
		router.Use(gin.Logger())
	}

	handlers := analysis.NewHandlers(svc)
	analysis.RegisterRoutes(router.Group("/v1/analysis"), handlers)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	printBanner(*port, cfg.WatchRoot)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("Shutting down Lumen analysis server")
		svc.StopWatcher()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
		logger.Close()
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("Starting Lumen analysis server", "address", addr, "workers", cfg.Workers)
	if err := router.Run(addr); err != nil {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}

func printBanner(port int, watchRoot string) {
	watchStatus := "disabled (pass -watch <dir> to enable)"
	if watchRoot != "" {
		watchStatus = watchRoot
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                      LUMEN ANALYSIS SERVER                        ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Incremental language analysis for editors.                       ║
║  Watch root: %-50s   ║
║                                                                   ║
║  Quick Start:                                                     ║
║    curl http://localhost:%-5d/v1/analysis/health                  ║
║    curl http://localhost:%-5d/metrics                             ║
║                                                                   ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, truncate(watchStatus, 50), port, port)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
