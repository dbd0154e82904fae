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
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/lumen/services/analysis/engine"
	"github.com/AleutianAI/lumen/services/analysis/host"
	"github.com/AleutianAI/lumen/services/analysis/semantic"
)

func TestDispatchReturnsHandlerResult(t *testing.T) {
	h := host.New()
	id, _ := h.AddFile("a.lum", "fn a() { 1 }")
	s := New(h)

	syms, err := Dispatch(context.Background(), s, PolicyAsOf,
		func(snap *host.Snapshot) ([]semantic.Symbol, error) {
			return snap.Symbols(id)
		})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(syms) != 1 || syms[0].Name != "a" {
		t.Errorf("symbols = %+v", syms)
	}
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	h := host.New()
	s := New(h)
	sentinel := errors.New("boom")

	_, err := s.Dispatch(context.Background(), PolicyAsOf,
		func(snap *host.Snapshot) (any, error) {
			return nil, sentinel
		})
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v", err)
	}
}

func TestBoundedConcurrency(t *testing.T) {
	const workers = 2
	h := host.New()
	s := New(h, WithWorkers(workers))

	var running, peak atomic.Int64
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Dispatch(context.Background(), PolicyAsOf,
				func(snap *host.Snapshot) (any, error) {
					n := running.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					<-release
					running.Add(-1)
					return nil, nil
				})
		}()
	}

	// Let the pool fill, then drain.
	deadline := time.After(2 * time.Second)
	for running.Load() < workers {
		select {
		case <-deadline:
			t.Fatal("pool never filled")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(release)
	wg.Wait()

	if got := peak.Load(); got > workers {
		t.Errorf("peak concurrency = %d, want <= %d", got, workers)
	}
}

func TestDispatchHonorsContext(t *testing.T) {
	h := host.New()
	s := New(h, WithWorkers(1))

	// Occupy the only slot.
	occupied := make(chan struct{})
	release := make(chan struct{})
	go s.Dispatch(context.Background(), PolicyAsOf,
		func(snap *host.Snapshot) (any, error) {
			close(occupied)
			<-release
			return nil, nil
		})
	<-occupied
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Dispatch(ctx, PolicyAsOf,
		func(snap *host.Snapshot) (any, error) {
			t.Error("handler ran despite expired context")
			return nil, nil
		})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

// superseder edits the file the moment a handler signals it has
// started, guaranteeing the handler's snapshot is cancelled.
func supersede(h *host.Host, id semantic.FileID) {
	h.ApplyEdits([]host.FileEdits{{
		File:  id,
		Edits: []host.Edit{{Start: 0, End: 0, Text: " "}},
	}})
}

func TestPolicyAsOfSurfacesCancelled(t *testing.T) {
	h := host.New()
	id, _ := h.AddFile("a.lum", "fn a() { 1 }")
	s := New(h)

	_, err := s.Dispatch(context.Background(), PolicyAsOf,
		func(snap *host.Snapshot) (any, error) {
			go supersede(h, id)
			deadline := time.After(2 * time.Second)
			for !snap.Cancelled() {
				select {
				case <-deadline:
					t.Fatal("snapshot never cancelled")
				default:
					time.Sleep(time.Millisecond)
				}
			}
			return snap.Diagnostics(id)
		})
	if !engine.IsCancelled(err) {
		t.Errorf("err = %v, want cancelled", err)
	}
}

func TestPolicyLatestReissues(t *testing.T) {
	h := host.New()
	id, _ := h.AddFile("a.lum", "fn a() { 1 }")
	s := New(h)

	var attempts atomic.Int64
	res, err := Dispatch(context.Background(), s, PolicyLatest,
		func(snap *host.Snapshot) ([]semantic.Symbol, error) {
			if attempts.Add(1) == 1 {
				// First attempt gets superseded mid-flight.
				go supersede(h, id)
				deadline := time.After(2 * time.Second)
				for !snap.Cancelled() {
					select {
					case <-deadline:
						t.Fatal("snapshot never cancelled")
					default:
						time.Sleep(time.Millisecond)
					}
				}
				return nil, engine.ErrCancelled
			}
			return snap.Symbols(id)
		})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
	if len(res) != 1 || res[0].Name != "a" {
		t.Errorf("symbols = %+v", res)
	}
}

func TestPolicyLatestGivesUpAfterMaxReissues(t *testing.T) {
	h := host.New()
	h.AddFile("a.lum", "fn a() { 1 }")
	s := New(h, WithMaxReissues(2))

	var attempts atomic.Int64
	_, err := s.Dispatch(context.Background(), PolicyLatest,
		func(snap *host.Snapshot) (any, error) {
			attempts.Add(1)
			return nil, engine.ErrCancelled
		})
	if !engine.IsCancelled(err) {
		t.Errorf("err = %v", err)
	}
	if attempts.Load() != 3 { // initial attempt + 2 re-issues
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestReissueSeesNewRevision(t *testing.T) {
	h := host.New()
	id, _ := h.AddFile("a.lum", "fn old() { 1 }")
	s := New(h)

	var attempts atomic.Int64
	syms, err := Dispatch(context.Background(), s, PolicyLatest,
		func(snap *host.Snapshot) ([]semantic.Symbol, error) {
			if attempts.Add(1) == 1 {
				// The write blocks until this snapshot releases; the
				// pending writer keeps the re-issued snapshot from
				// starting until the commit lands.
				go h.AddFile("a.lum", "fn renamed() { 1 }")
				deadline := time.After(2 * time.Second)
				for !snap.Cancelled() {
					select {
					case <-deadline:
						t.Fatal("snapshot never cancelled")
					default:
						time.Sleep(time.Millisecond)
					}
				}
				return nil, engine.ErrCancelled
			}
			return snap.Symbols(id)
		})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(syms) != 1 || syms[0].Name != "renamed" {
		t.Errorf("symbols = %+v, re-issue must observe the edit", syms)
	}
}
