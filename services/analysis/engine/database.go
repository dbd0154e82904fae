// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine is a generic incremental computation substrate:
// memoized pure queries over versioned inputs, with automatic
// dependency tracking, precise invalidation, cooperative
// cancellation, and cycle detection.
//
// The design follows a single-writer / multiple-reader protocol. All
// mutation goes through Commit, which bumps the global revision
// exactly once per batch. Readers work through revision-stamped
// Snapshots; committing a new revision first raises the cancellation
// flag shared by all outstanding snapshots, then waits for them to be
// released before touching state.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Revision is the monotonically increasing counter marking one
// committed edit batch. Revisions are totally ordered and never
// revisited.
type Revision uint64

// depKey identifies an input entry or a memo entry. Query keys must
// be comparable; the same constraint Go places on map keys.
type depKey struct {
	input bool
	name  string
	key   any
}

type inputEntry struct {
	value      any
	changedAt  Revision
	durability Durability
}

type memo struct {
	value      any
	changedAt  Revision // last revision at which the value actually differed
	verifiedAt Revision // last revision at which the entry was known valid
	deps       []depKey // reads made while computing, in order
	durability Durability
}

type inflight struct {
	done chan struct{}
}

// QueryStats are per-query-kind counters, primarily for tests and
// introspection; Prometheus metrics cover production observability.
type QueryStats struct {
	Computes      uint64
	Revalidations uint64
	MemoHits      uint64
}

// Database owns the inputs, the memo table, and the revision counter.
//
// Thread Safety:
//
//	Reads happen through Snapshots and are safe from any number of
//	goroutines. Commit must be called from one writer at a time; the
//	Analysis Host enforces that discipline.
type Database struct {
	mu      sync.RWMutex // writer excludes live snapshots
	stateMu sync.Mutex   // guards the maps and counters below

	inputs     map[depKey]*inputEntry
	memos      map[depKey]*memo
	inflight   map[depKey]*inflight
	defs       map[string]*erasedDef
	stats      map[string]*QueryStats
	lastChange [durabilityCount]Revision

	revision atomic.Uint64
	cancel   atomic.Pointer[atomic.Bool]

	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(db *Database) {
		if l != nil {
			db.logger = l
		}
	}
}

// WithMetrics attaches Prometheus metrics. Default: none.
func WithMetrics(m *Metrics) Option {
	return func(db *Database) { db.metrics = m }
}

// New creates an empty database at revision 0.
func New(opts ...Option) *Database {
	db := &Database{
		inputs:   make(map[depKey]*inputEntry),
		memos:    make(map[depKey]*memo),
		inflight: make(map[depKey]*inflight),
		defs:     make(map[string]*erasedDef),
		stats:    make(map[string]*QueryStats),
		logger:   slog.Default(),
	}
	db.cancel.Store(&atomic.Bool{})
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Revision returns the current committed revision.
func (db *Database) Revision() Revision {
	return Revision(db.revision.Load())
}

// StatsFor returns a copy of the counters for one query kind.
func (db *Database) StatsFor(name string) QueryStats {
	db.stateMu.Lock()
	defer db.stateMu.Unlock()
	if s := db.stats[name]; s != nil {
		return *s
	}
	return QueryStats{}
}

// Snapshot returns a read handle bound to the current revision. O(1);
// it does not block on other in-flight readers. The caller must
// Release the snapshot, or commits will stall forever.
func (db *Database) Snapshot() *Snapshot {
	db.mu.RLock()
	return &Snapshot{
		db:       db,
		revision: Revision(db.revision.Load()),
		cancel:   db.cancel.Load(),
	}
}

// Writer applies input mutations for the revision being committed.
// Valid only inside the Commit callback.
type Writer struct {
	db       *Database
	revision Revision
}

// Revision returns the revision this writer is creating.
func (w *Writer) Revision() Revision { return w.revision }

func (w *Writer) set(name string, key, value any, durability Durability) {
	ik := depKey{input: true, name: name, key: key}
	w.db.stateMu.Lock()
	w.db.inputs[ik] = &inputEntry{value: value, changedAt: w.revision, durability: durability}
	w.db.bumpLastChange(durability)
	w.db.stateMu.Unlock()
}

func (w *Writer) remove(name string, key any) {
	ik := depKey{input: true, name: name, key: key}
	w.db.stateMu.Lock()
	delete(w.db.inputs, ik)
	// Removal can affect anything, treat it as a low-durability change.
	w.db.bumpLastChangeAll()
	w.db.stateMu.Unlock()
}

// bumpLastChange records a change to an input of the given
// durability. A memo whose dependencies all have durability >= d is
// only threatened by changes at levels >= d, so lastChange[m] tracks
// the newest change among levels m and above. Caller holds stateMu.
func (db *Database) bumpLastChange(d Durability) {
	rev := Revision(db.revision.Load()) + 1
	for m := Durability(0); m <= d; m++ {
		db.lastChange[m] = rev
	}
}

func (db *Database) bumpLastChangeAll() {
	db.bumpLastChange(durabilityCount - 1)
}

// Commit applies one atomic batch of input mutations and advances the
// revision by exactly one.
//
// Description:
//
//	The shared cancellation flag is raised first, so computations
//	still running against older snapshots abort at their next poll
//	point. Commit then waits for every outstanding snapshot to be
//	released before mutating state: no reader ever observes a
//	half-applied batch. Validation must happen before Commit; the
//	callback must not fail.
//
// Outputs:
//   - Revision: the newly committed revision.
func (db *Database) Commit(fn func(*Writer)) Revision {
	db.cancel.Load().Store(true)

	db.mu.Lock()
	defer db.mu.Unlock()

	next := Revision(db.revision.Load()) + 1
	fn(&Writer{db: db, revision: next})
	db.revision.Store(uint64(next))
	db.cancel.Store(&atomic.Bool{})

	db.logger.Debug("revision committed", "revision", uint64(next))
	if db.metrics != nil {
		db.metrics.CommitsTotal.Inc()
	}
	return next
}

func (db *Database) peekInput(name string, key any) (any, bool) {
	ik := depKey{input: true, name: name, key: key}
	db.stateMu.Lock()
	defer db.stateMu.Unlock()
	e := db.inputs[ik]
	if e == nil {
		return nil, false
	}
	return e.value, true
}

func (db *Database) registerDef(d *erasedDef) {
	db.stateMu.Lock()
	if db.defs[d.name] == nil {
		db.defs[d.name] = d
		db.stats[d.name] = &QueryStats{}
	}
	db.stateMu.Unlock()
}

func (db *Database) statFor(name string) *QueryStats {
	s := db.stats[name]
	if s == nil {
		s = &QueryStats{}
		db.stats[name] = s
	}
	return s
}

// fetch returns an up-to-date memo for mk, computing or re-validating
// as needed. Concurrent fetches of the same key are de-duplicated
// through the inflight table.
func (db *Database) fetch(ctx *Context, d *erasedDef, mk depKey) (*memo, error) {
	db.registerDef(d)
	rev := ctx.snap.revision
	for {
		db.stateMu.Lock()
		m := db.memos[mk]
		if m != nil && m.verifiedAt >= rev {
			db.statFor(mk.name).MemoHits++
			db.stateMu.Unlock()
			if db.metrics != nil {
				db.metrics.MemoHitsTotal.WithLabelValues(mk.name).Inc()
			}
			return m, nil
		}
		if m != nil && db.lastChange[m.durability] <= m.verifiedAt {
			// Durability shortcut: nothing this memo can depend on has
			// changed since it was last verified.
			m.verifiedAt = rev
			db.statFor(mk.name).Revalidations++
			db.stateMu.Unlock()
			if db.metrics != nil {
				db.metrics.RevalidationsTotal.WithLabelValues(mk.name).Inc()
			}
			return m, nil
		}
		if fl := db.inflight[mk]; fl != nil {
			db.stateMu.Unlock()
			<-fl.done
			continue
		}
		fl := &inflight{done: make(chan struct{})}
		db.inflight[mk] = fl
		db.stateMu.Unlock()

		m2, err := db.update(ctx, d, mk, m, rev)

		db.stateMu.Lock()
		delete(db.inflight, mk)
		db.stateMu.Unlock()
		close(fl.done)
		return m2, err
	}
}

// update re-validates or recomputes one memo at rev. Called with the
// inflight claim held.
func (db *Database) update(ctx *Context, d *erasedDef, mk depKey, old *memo, rev Revision) (*memo, error) {
	if old != nil {
		ok, err := db.deepVerify(ctx, mk, old, rev)
		if err != nil {
			return nil, err
		}
		if ok {
			db.stateMu.Lock()
			old.verifiedAt = rev
			db.statFor(mk.name).Revalidations++
			db.stateMu.Unlock()
			if db.metrics != nil {
				db.metrics.RevalidationsTotal.WithLabelValues(mk.name).Inc()
			}
			return old, nil
		}
	}

	if ctx.snap.Cancelled() {
		db.noteCancelled(mk)
		return nil, ErrCancelled
	}

	child := &Context{
		snap:  ctx.snap,
		stack: append(append([]depKey{}, ctx.stack...), mk),
		frame: &frameRec{durability: durabilityCount - 1},
	}
	start := time.Now()
	var (
		value any
		err   error
	)
	if old != nil && d.recompute != nil {
		value, err = d.recompute(child, mk.key, old.value)
	} else {
		value, err = d.compute(child, mk.key)
	}
	if err != nil {
		// Failed or cancelled computations leave no trace in the memo
		// table; a retry against a fresh snapshot starts clean.
		if IsCancelled(err) {
			db.noteCancelled(mk)
		}
		return nil, err
	}

	changedAt := rev
	if old != nil && d.equal(old.value, value) {
		// Early cutoff: keep the old instance and its changedAt so
		// downstream memos re-validate instead of recomputing, and so
		// identity-based subtree reuse survives the recompute.
		value = old.value
		changedAt = old.changedAt
	}
	m := &memo{
		value:      value,
		changedAt:  changedAt,
		verifiedAt: rev,
		deps:       child.frame.deps,
		durability: child.frame.durability,
	}
	db.stateMu.Lock()
	db.memos[mk] = m
	db.statFor(mk.name).Computes++
	db.stateMu.Unlock()
	if db.metrics != nil {
		db.metrics.ComputationsTotal.WithLabelValues(mk.name).Inc()
		db.metrics.ComputeDurationSeconds.WithLabelValues(mk.name).Observe(time.Since(start).Seconds())
	}
	return m, nil
}

// deepVerify walks a stale memo's recorded dependencies in order and
// reports whether every one is unchanged since the memo was last
// verified. Cost is O(dependency count) when nothing changed; the
// recursive check is memoized per revision through verifiedAt.
func (db *Database) deepVerify(ctx *Context, mk depKey, m *memo, rev Revision) (bool, error) {
	for _, dk := range m.deps {
		if ctx.snap.Cancelled() {
			db.noteCancelled(mk)
			return false, ErrCancelled
		}
		if dk.input {
			db.stateMu.Lock()
			e := db.inputs[dk]
			db.stateMu.Unlock()
			if e == nil || e.changedAt > m.verifiedAt {
				return false, nil
			}
			continue
		}
		db.stateMu.Lock()
		dd := db.defs[dk.name]
		db.stateMu.Unlock()
		if dd == nil {
			// Dep's query kind not seen this process run; recompute.
			return false, nil
		}
		vctx := &Context{snap: ctx.snap, stack: append(append([]depKey{}, ctx.stack...), mk)}
		if err := vctx.checkCycle(dk); err != nil {
			return false, err
		}
		sub, err := db.fetch(vctx, dd, dk)
		if err != nil {
			var cyc *CycleError
			if IsCancelled(err) || errors.As(err, &cyc) {
				return false, err
			}
			// Any other dependency failure just means this memo is
			// stale. Recompute the parent so its own computation reads
			// the dependency and decides what the error means.
			return false, nil
		}
		if sub.changedAt > m.verifiedAt {
			return false, nil
		}
	}
	return true, nil
}

func (db *Database) noteCancelled(mk depKey) {
	db.logger.Debug("computation cancelled", "query", mk.name)
	if db.metrics != nil {
		db.metrics.CancellationsTotal.Inc()
	}
}

// Context carries one computation chain: the snapshot it reads
// through, the call stack for cycle detection, and the dependency
// recording frame of the query currently being computed.
type Context struct {
	snap  *Snapshot
	stack []depKey
	frame *frameRec
}

type frameRec struct {
	deps       []depKey
	durability Durability
}

// Snapshot returns the snapshot this context reads through.
func (ctx *Context) Snapshot() *Snapshot { return ctx.snap }

func (ctx *Context) get(d *erasedDef, key any) (any, error) {
	if ctx.snap.Cancelled() {
		ctx.snap.db.noteCancelled(depKey{name: d.name, key: key})
		return nil, ErrCancelled
	}
	mk := depKey{name: d.name, key: key}
	if err := ctx.checkCycle(mk); err != nil {
		return nil, err
	}
	m, err := ctx.snap.db.fetch(ctx, d, mk)
	if err != nil {
		// A caller may handle the failure and fold it into its own
		// value, so the failed read is still a dependency; without it
		// the caller's memo would never re-validate against the key.
		var cyc *CycleError
		if !IsCancelled(err) && !errors.As(err, &cyc) {
			ctx.recordDep(mk, DurabilityLow)
		}
		return nil, err
	}
	ctx.recordDep(mk, m.durability)
	return m.value, nil
}

func (ctx *Context) getInput(name string, key any) (any, error) {
	if ctx.snap.Cancelled() {
		return nil, ErrCancelled
	}
	ik := depKey{input: true, name: name, key: key}
	db := ctx.snap.db
	db.stateMu.Lock()
	e := db.inputs[ik]
	db.stateMu.Unlock()
	if e == nil {
		// Observing absence is a read too: a later Set of this key
		// must invalidate whatever memo saw it missing.
		ctx.recordDep(ik, DurabilityLow)
		return nil, fmt.Errorf("%w: %s(%v)", ErrUnknownInput, name, key)
	}
	ctx.recordDep(ik, e.durability)
	return e.value, nil
}

func (ctx *Context) checkCycle(mk depKey) error {
	for i, k := range ctx.stack {
		if k == mk {
			keys := make([]string, 0, len(ctx.stack)-i)
			for _, c := range ctx.stack[i:] {
				keys = append(keys, formatKey(c))
			}
			if ctx.snap.db.metrics != nil {
				ctx.snap.db.metrics.CyclesTotal.Inc()
			}
			return &CycleError{Keys: keys}
		}
	}
	return nil
}

func (ctx *Context) recordDep(k depKey, durability Durability) {
	if ctx.frame == nil {
		return
	}
	ctx.frame.deps = append(ctx.frame.deps, k)
	if durability < ctx.frame.durability {
		ctx.frame.durability = durability
	}
}
