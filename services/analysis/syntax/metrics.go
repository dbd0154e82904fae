// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for parse instrumentation.
var meter = otel.Meter("lumen.syntax")

var (
	parseLatency metric.Float64Histogram
	parseTotal   metric.Int64Counter
	syntaxErrors metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"syntax_parse_duration_seconds",
			metric.WithDescription("Duration of parse and reparse operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseTotal, err = meter.Int64Counter(
			"syntax_parse_total",
			metric.WithDescription("Total parse operations by mode"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		syntaxErrors, err = meter.Int64Histogram(
			"syntax_errors_per_parse",
			metric.WithDescription("Syntax errors recorded per parse"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

// recordParse records one parse operation. Metric failures are
// ignored; parsing must not depend on the telemetry pipeline.
func recordParse(ctx context.Context, d time.Duration, errCount int, incremental bool) {
	if initMetrics() != nil {
		return
	}
	mode := "full"
	if incremental {
		mode = "incremental"
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	parseLatency.Record(ctx, d.Seconds(), attrs)
	parseTotal.Add(ctx, 1, attrs)
	syntaxErrors.Record(ctx, int64(errCount), attrs)
}
