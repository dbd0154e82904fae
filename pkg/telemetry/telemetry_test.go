// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg := DefaultConfig()
	if cfg.ServiceName != "lumen" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.TraceExporter != "none" {
		t.Errorf("TraceExporter = %q, want none", cfg.TraceExporter)
	}
	if cfg.OTLPEndpoint != "localhost:4317" {
		t.Errorf("OTLPEndpoint = %q", cfg.OTLPEndpoint)
	}
}

func TestDefaultConfigEnvOverride(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg := DefaultConfig()
	if cfg.TraceExporter != "stdout" {
		t.Errorf("TraceExporter = %q", cfg.TraceExporter)
	}
	if cfg.OTLPEndpoint != "collector:4317" {
		t.Errorf("OTLPEndpoint = %q", cfg.OTLPEndpoint)
	}
}

func TestInitNoneExporter(t *testing.T) {
	cfg := Config{
		ServiceName:   "lumen-test",
		TraceExporter: "none",
	}
	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitUnknownExporter(t *testing.T) {
	cfg := Config{
		ServiceName:   "lumen-test",
		TraceExporter: "carrier-pigeon",
	}
	if _, err := Init(context.Background(), cfg); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("err = %v, want ErrUnknownExporter", err)
	}
}

func TestInitWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := Config{
		ServiceName:   "lumen-test",
		TraceExporter: "none",
		Registry:      reg,
	}
	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer shutdown(context.Background())

	// The bridged meter provider must feed the registry.
	meter := otel.Meter("telemetry-test")
	counter, err := meter.Int64Counter("test_events_total")
	if err != nil {
		t.Fatalf("Int64Counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "test_events_total" {
			found = true
		}
	}
	if !found {
		t.Error("bridged metric missing from registry")
	}
}
