// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the request scheduler.
//
// Thread Safety: Safe for concurrent use (Prometheus metrics are thread-safe).
type Metrics struct {
	// RequestsTotal counts requests by policy and outcome.
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures wall time per request including
	// queueing and re-issues.
	RequestDurationSeconds *prometheus.HistogramVec

	// ReissuesTotal counts superseded PolicyLatest requests re-issued
	// against a fresh snapshot.
	ReissuesTotal prometheus.Counter

	// InFlight is the number of requests currently holding a worker.
	InFlight prometheus.Gauge
}

// NewMetrics creates and registers all scheduler metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lumen",
				Subsystem: "scheduler",
				Name:      "requests_total",
				Help:      "Requests by policy and outcome",
			},
			[]string{"policy", "outcome"},
		),
		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lumen",
				Subsystem: "scheduler",
				Name:      "request_duration_seconds",
				Help:      "Wall time per request including queueing and re-issues",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"policy"},
		),
		ReissuesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lumen",
				Subsystem: "scheduler",
				Name:      "reissues_total",
				Help:      "Superseded latest-policy requests re-issued",
			},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "lumen",
				Subsystem: "scheduler",
				Name:      "in_flight",
				Help:      "Requests currently holding a worker",
			},
		),
	}
}
