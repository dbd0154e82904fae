// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis provides the Lumen language-analysis HTTP service.
//
// The service answers IDE-style queries (hover, completion,
// diagnostics, navigation) over source files that change continuously
// as a user types. Edits flow into the Analysis Host, which commits
// one revision per batch; queries run on a bounded worker pool
// against revision-stamped snapshots and are cancelled the moment a
// newer edit supersedes them.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/lumen/services/analysis/engine"
	"github.com/AleutianAI/lumen/services/analysis/host"
	"github.com/AleutianAI/lumen/services/analysis/scheduler"
	"github.com/AleutianAI/lumen/services/analysis/semantic"
)

// ServiceConfig configures the analysis service.
type ServiceConfig struct {
	// Workers bounds the concurrent analysis requests.
	// Default: 4
	Workers int `yaml:"workers"`

	// MaxReissues bounds how often a superseded latest-policy request
	// is re-issued. Default: 3
	MaxReissues int `yaml:"max_reissues"`

	// MaxFileSize rejects larger file adds. Default: 10MB
	MaxFileSize int `yaml:"max_file_size"`

	// WatchRoot, when set, enables the filesystem watcher feeding
	// edits from disk. Default: "" (disabled)
	WatchRoot string `yaml:"watch_root"`

	// WatchExtensions are the file extensions the watcher ingests.
	// Default: [".lum"]
	WatchExtensions []string `yaml:"watch_extensions"`

	// StreamBuffer is the per-subscriber event buffer on the
	// diagnostics stream. Default: 64
	StreamBuffer int `yaml:"stream_buffer"`
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Workers:         4,
		MaxReissues:     3,
		MaxFileSize:     10 * 1024 * 1024, // 10MB
		WatchExtensions: []string{".lum"},
		StreamBuffer:    64,
	}
}

// LoadServiceConfig reads a YAML config file over the defaults.
func LoadServiceConfig(path string) (ServiceConfig, error) {
	cfg := DefaultServiceConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Service is the analysis service: host, scheduler, and diagnostics
// stream hub behind one API.
//
// Thread Safety: safe for concurrent use.
type Service struct {
	config ServiceConfig
	host   *host.Host
	sched  *scheduler.Scheduler
	hub    *hub
	logger *slog.Logger

	watcherMu sync.Mutex
	watcher   *watcher
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceBuild)

type serviceBuild struct {
	logger    *slog.Logger
	registry  prometheus.Registerer
	engineOps []engine.Option
}

// WithServiceLogger sets the structured logger. Default: slog.Default().
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(b *serviceBuild) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetricsRegistry registers engine and scheduler metrics with
// reg. Default: no metrics (tests build many services; registering
// the same collectors twice panics).
func WithMetricsRegistry(reg prometheus.Registerer) ServiceOption {
	return func(b *serviceBuild) { b.registry = reg }
}

// NewService creates the service with the given configuration.
func NewService(config ServiceConfig, opts ...ServiceOption) *Service {
	b := &serviceBuild{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}

	engineOpts := []engine.Option{engine.WithLogger(b.logger)}
	schedOpts := []scheduler.Option{
		scheduler.WithWorkers(config.Workers),
		scheduler.WithMaxReissues(config.MaxReissues),
		scheduler.WithLogger(b.logger),
	}
	if b.registry != nil {
		engineOpts = append(engineOpts, engine.WithMetrics(engine.NewMetrics(b.registry)))
		schedOpts = append(schedOpts, scheduler.WithMetrics(scheduler.NewMetrics(b.registry)))
	}

	h := host.New(host.WithLogger(b.logger), host.WithEngineOptions(engineOpts...))
	return &Service{
		config: config,
		host:   h,
		sched:  scheduler.New(h, schedOpts...),
		hub:    newHub(config.StreamBuffer, b.logger),
		logger: b.logger,
	}
}

// Host returns the analysis host.
func (s *Service) Host() *host.Host { return s.host }

// Scheduler returns the request scheduler.
func (s *Service) Scheduler() *scheduler.Scheduler { return s.sched }

// Config returns the service configuration.
func (s *Service) Config() ServiceConfig { return s.config }

// AddFile installs a file and pushes its diagnostics to stream
// subscribers.
func (s *Service) AddFile(path, text string) (semantic.FileID, engine.Revision, error) {
	if len(text) > s.config.MaxFileSize {
		return 0, s.host.Revision(), fmt.Errorf("file %q exceeds maximum size %d", path, s.config.MaxFileSize)
	}
	id, rev := s.host.AddFile(path, text)
	s.publishDiagnostics(id)
	return id, rev, nil
}

// RemoveFile drops a file from analysis.
func (s *Service) RemoveFile(id semantic.FileID) (engine.Revision, error) {
	return s.host.RemoveFile(id)
}

// ApplyEdits commits one atomic edit batch and pushes fresh
// diagnostics for the touched files.
func (s *Service) ApplyEdits(batch []host.FileEdits) (engine.Revision, error) {
	rev, err := s.host.ApplyEdits(batch)
	if err != nil {
		return rev, err
	}
	seen := map[semantic.FileID]bool{}
	for _, fe := range batch {
		if !seen[fe.File] {
			seen[fe.File] = true
			s.publishDiagnostics(fe.File)
		}
	}
	return rev, nil
}

// Query answers one query request through the scheduler. Completion
// wants the latest revision and is re-issued on supersession; the
// other kinds answer as of submission.
func (s *Service) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query request: %w", err)
	}
	policy := scheduler.PolicyAsOf
	if req.Kind == QueryKindCompletion {
		policy = scheduler.PolicyLatest
	}
	file := semantic.FileID(req.File)

	type payload struct {
		revision engine.Revision
		result   any
	}
	out, err := scheduler.Dispatch(ctx, s.sched, policy, func(snap *host.Snapshot) (payload, error) {
		var (
			result any
			err    error
		)
		switch req.Kind {
		case QueryKindHover:
			result, err = snap.Hover(file, req.Offset)
		case QueryKindCompletion:
			result, err = snap.Completion(file, req.Offset)
		case QueryKindDiagnostics:
			result, err = snap.Diagnostics(file)
		case QueryKindDefinitions:
			result, err = snap.Definitions(file)
		case QueryKindSymbols:
			result, err = snap.Symbols(file)
		case QueryKindWorkspaceSymbols:
			result, err = snap.WorkspaceSymbols()
		case QueryKindResolve:
			result, err = snap.Resolve(file, req.Name)
		}
		if err != nil {
			return payload{}, err
		}
		return payload{revision: snap.Revision(), result: result}, nil
	})
	if err != nil {
		return nil, err
	}
	return &QueryResponse{Kind: req.Kind, Revision: uint64(out.revision), Result: out.result}, nil
}

// publishDiagnostics computes a file's diagnostics at the newest
// revision and broadcasts them. Runs asynchronously; a stream update
// must never block the edit path.
func (s *Service) publishDiagnostics(file semantic.FileID) {
	if !s.hub.hasSubscribers() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		type payload struct {
			revision engine.Revision
			diags    []semantic.Diagnostic
		}
		// The revision is read from the same snapshot that computed
		// the diagnostics; a commit landing after the dispatch must
		// not relabel them as newer.
		out, err := scheduler.Dispatch(ctx, s.sched, scheduler.PolicyLatest,
			func(snap *host.Snapshot) (payload, error) {
				diags, err := snap.Diagnostics(file)
				if err != nil {
					return payload{}, err
				}
				return payload{revision: snap.Revision(), diags: diags}, nil
			})
		if err != nil {
			// Superseded again or the file is gone; the next commit
			// publishes fresh data.
			s.logger.Debug("stream diagnostics skipped", "file", uint64(file), "error", err)
			return
		}
		path, _ := s.host.Path(file)
		s.hub.broadcast(StreamEvent{
			Type:        "diagnostics",
			Revision:    uint64(out.revision),
			File:        uint32(file),
			Path:        path,
			Diagnostics: out.diags,
		})
	}()
}

// FileCount returns the number of files under analysis.
func (s *Service) FileCount() int {
	return s.host.FileCount()
}
