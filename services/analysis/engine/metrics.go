// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the query engine.
//
// Thread Safety: Safe for concurrent use (Prometheus metrics are thread-safe).
type Metrics struct {
	// MemoHitsTotal counts lookups answered from a memo already
	// verified at the current revision.
	MemoHitsTotal *prometheus.CounterVec

	// RevalidationsTotal counts stale memos re-validated in place
	// without recomputation.
	RevalidationsTotal *prometheus.CounterVec

	// ComputationsTotal counts full query computations.
	ComputationsTotal *prometheus.CounterVec

	// ComputeDurationSeconds measures query computation time.
	ComputeDurationSeconds *prometheus.HistogramVec

	// CancellationsTotal counts computations abandoned because their
	// snapshot was superseded.
	CancellationsTotal prometheus.Counter

	// CyclesTotal counts detected query cycles.
	CyclesTotal prometheus.Counter

	// CommitsTotal counts committed revisions.
	CommitsTotal prometheus.Counter
}

// NewMetrics creates and registers all engine metrics with reg.
//
// Use prometheus.DefaultRegisterer in production. Tests that build
// multiple databases should pass their own registry or no metrics at
// all, since registering the same collectors twice panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MemoHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lumen",
				Subsystem: "engine",
				Name:      "memo_hits_total",
				Help:      "Lookups answered from an already-verified memo",
			},
			[]string{"query"},
		),
		RevalidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lumen",
				Subsystem: "engine",
				Name:      "revalidations_total",
				Help:      "Stale memos re-validated without recomputation",
			},
			[]string{"query"},
		),
		ComputationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lumen",
				Subsystem: "engine",
				Name:      "computations_total",
				Help:      "Full query computations",
			},
			[]string{"query"},
		),
		ComputeDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lumen",
				Subsystem: "engine",
				Name:      "compute_duration_seconds",
				Help:      "Query computation time",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"query"},
		),
		CancellationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lumen",
				Subsystem: "engine",
				Name:      "cancellations_total",
				Help:      "Computations abandoned due to snapshot supersession",
			},
		),
		CyclesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lumen",
				Subsystem: "engine",
				Name:      "cycles_total",
				Help:      "Detected query dependency cycles",
			},
		),
		CommitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lumen",
				Subsystem: "engine",
				Name:      "commits_total",
				Help:      "Committed revisions",
			},
		),
	}
}
