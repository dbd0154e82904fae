// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scheduler dispatches analysis requests onto a bounded
// worker pool, one fresh snapshot per request.
//
// Supersession policy: when a newer edit lands while a request is in
// flight, the host's cancellation flag aborts the computation. What
// happens next depends on the request's declared semantics. Requests
// that want "latest" (completion-style) are re-issued against a fresh
// snapshot; requests that want "as of submission" (hover-style)
// surface Cancelled to the caller, who may retry. Whichever policy a
// request declares is applied consistently; a stale result is never
// passed off as current.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/lumen/services/analysis/engine"
	"github.com/AleutianAI/lumen/services/analysis/host"
)

// Policy declares a request's supersession semantics.
type Policy string

const (
	// PolicyAsOf answers against the revision current at submission;
	// supersession surfaces Cancelled.
	PolicyAsOf Policy = "as_of"

	// PolicyLatest re-issues superseded work against the newest
	// revision before giving up.
	PolicyLatest Policy = "latest"
)

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 4

// DefaultMaxReissues bounds how often one PolicyLatest request chases
// new revisions before surfacing Cancelled anyway.
const DefaultMaxReissues = 3

// Handler is the analysis body of one request. It must do all its
// reads through the snapshot and return promptly once a query call
// reports cancellation.
type Handler func(snap *host.Snapshot) (any, error)

// Scheduler owns the worker pool.
//
// Thread Safety: safe for concurrent use.
type Scheduler struct {
	host        *host.Host
	sem         *semaphore.Weighted
	maxReissues int
	logger      *slog.Logger
	metrics     *Metrics
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers bounds the number of concurrently running requests.
// Waiters queue in submission order. Default: DefaultWorkers.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithMaxReissues bounds PolicyLatest re-issues. Default:
// DefaultMaxReissues.
func WithMaxReissues(n int) Option {
	return func(s *Scheduler) {
		if n >= 0 {
			s.maxReissues = n
		}
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics attaches Prometheus metrics. Default: none.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a scheduler over h.
func New(h *host.Host, opts ...Option) *Scheduler {
	s := &Scheduler{
		host:        h,
		sem:         semaphore.NewWeighted(DefaultWorkers),
		maxReissues: DefaultMaxReissues,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Host returns the host the scheduler dispatches against.
func (s *Scheduler) Host() *host.Host { return s.host }

// Dispatch runs one request on the pool.
//
// Description:
//
//	Blocks until a worker slot is free (FIFO) or ctx is done, takes a
//	fresh snapshot, runs the handler, and releases the snapshot. On
//	supersession the policy decides between re-issuing and returning
//	engine.ErrCancelled.
//
// Outputs:
//   - any: the handler's result.
//   - error: ctx.Err(), engine.ErrCancelled, a *engine.CycleError, or
//     the handler's own error.
func (s *Scheduler) Dispatch(ctx context.Context, policy Policy, handler Handler) (any, error) {
	requestID := uuid.NewString()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	if s.metrics != nil {
		s.metrics.InFlight.Inc()
		defer s.metrics.InFlight.Dec()
	}
	start := time.Now()

	reissues := 0
	for {
		res, err := s.runOnce(handler)
		switch {
		case err == nil:
			s.observe(policy, "ok", start)
			return res, nil
		case engine.IsCancelled(err) && policy == PolicyLatest && reissues < s.maxReissues:
			reissues++
			if s.metrics != nil {
				s.metrics.ReissuesTotal.Inc()
			}
			s.logger.Debug("request superseded, re-issuing",
				slog.String("request_id", requestID),
				slog.Int("attempt", reissues))
		case engine.IsCancelled(err):
			s.observe(policy, "cancelled", start)
			return nil, err
		default:
			s.observe(policy, "error", start)
			return nil, err
		}
	}
}

func (s *Scheduler) runOnce(handler Handler) (any, error) {
	snap := s.host.Snapshot()
	defer snap.Release()
	return handler(snap)
}

func (s *Scheduler) observe(policy Policy, outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RequestsTotal.WithLabelValues(string(policy), outcome).Inc()
	s.metrics.RequestDurationSeconds.WithLabelValues(string(policy)).Observe(time.Since(start).Seconds())
}

// Dispatch runs a typed request on sched's pool. Go methods cannot be
// generic, hence the package-level form.
func Dispatch[T any](ctx context.Context, sched *Scheduler, policy Policy, handler func(snap *host.Snapshot) (T, error)) (T, error) {
	res, err := sched.Dispatch(ctx, policy, func(snap *host.Snapshot) (any, error) {
		return handler(snap)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}
