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
	"fmt"
	"reflect"
	"sync"
)

// Durability classifies how often an input is expected to change.
// The validity walk short-circuits memos whose dependencies all sit
// at a durability level with no changes since the memo was verified.
type Durability uint8

const (
	// DurabilityLow is for inputs that change constantly, such as the
	// text of the file being edited.
	DurabilityLow Durability = iota

	// DurabilityHigh is for rarely-changing inputs such as project
	// configuration.
	DurabilityHigh

	durabilityCount
)

// Def declares one query kind: a named, pure, memoized function from
// K to V. Defs are package-level values forming the closed table of
// query kinds; the engine stays generic over them.
//
// Determinism is a correctness obligation on Compute: two calls with
// the same key against the same committed state must produce equal
// values, or memoization will return wrong answers.
type Def[K comparable, V any] struct {
	// Name uniquely identifies the query kind.
	Name string

	// Compute produces the value from scratch. It must read database
	// state only through ctx (Get / GetInput) so dependencies are
	// recorded, and it must poll cancellation by making those calls at
	// bounded intervals.
	Compute func(ctx *Context, key K) (V, error)

	// Recompute, when set, is used instead of Compute whenever a
	// previous value exists, enabling incremental reuse (e.g. the
	// parse query reuses unaffected subtrees). It must produce a value
	// equal to what Compute would.
	Recompute func(ctx *Context, key K, old V) (V, error)

	// Equal compares two values for the early-cutoff check. Defaults
	// to reflect.DeepEqual.
	Equal func(a, b V) bool

	once sync.Once
	ed   *erasedDef
}

// erasedDef is the type-erased form stored in the engine's tables.
type erasedDef struct {
	name      string
	compute   func(*Context, any) (any, error)
	recompute func(*Context, any, any) (any, error)
	equal     func(a, b any) bool
}

func (d *Def[K, V]) erased() *erasedDef {
	d.once.Do(func() {
		ed := &erasedDef{name: d.Name}
		ed.compute = func(ctx *Context, key any) (any, error) {
			return d.Compute(ctx, key.(K))
		}
		if d.Recompute != nil {
			ed.recompute = func(ctx *Context, key, old any) (any, error) {
				return d.Recompute(ctx, key.(K), old.(V))
			}
		}
		eq := d.Equal
		if eq == nil {
			eq = func(a, b V) bool { return reflect.DeepEqual(a, b) }
		}
		ed.equal = func(a, b any) bool { return eq(a.(V), b.(V)) }
		d.ed = ed
	})
	return d.ed
}

// Get returns the query's value for key, memoized at the snapshot's
// revision. The read is recorded as a dependency of the enclosing
// computation, if any.
//
// Outputs:
//   - V: the memoized or freshly computed value.
//   - error: ErrCancelled, a *CycleError, or an error from Compute.
func Get[K comparable, V any](ctx *Context, def *Def[K, V], key K) (V, error) {
	v, err := ctx.get(def.erased(), key)
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Input declares one input kind: base data written only by the
// Analysis Host through a Writer. Inputs are the leaves of every
// dependency graph and are always considered changed when written.
type Input[K comparable, V any] struct {
	// Name uniquely identifies the input kind.
	Name string
}

// GetInput reads an input value, recording the read as a dependency.
// Returns ErrUnknownInput when the key was never set.
func GetInput[K comparable, V any](ctx *Context, in *Input[K, V], key K) (V, error) {
	v, err := ctx.getInput(in.Name, key)
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Set writes an input at the revision being committed.
func Set[K comparable, V any](w *Writer, in *Input[K, V], key K, value V, durability Durability) {
	w.set(in.Name, key, value, durability)
}

// Remove deletes an input at the revision being committed. Queries
// still reading the key will fail with ErrUnknownInput.
func Remove[K comparable, V any](w *Writer, in *Input[K, V], key K) {
	w.remove(in.Name, key)
}

// Peek reads an input's current value outside any snapshot. Intended
// for the single writer's pre-commit validation; concurrent use with
// a commit in progress sees either the old or the new value.
func Peek[K comparable, V any](db *Database, in *Input[K, V], key K) (V, bool) {
	v, ok := db.peekInput(in.Name, key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

func formatKey(k depKey) string {
	return fmt.Sprintf("%s(%v)", k.name, k.key)
}
