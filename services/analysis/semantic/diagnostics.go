// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package semantic

import (
	"fmt"
	"sort"

	"github.com/AleutianAI/lumen/services/analysis/engine"
	"github.com/AleutianAI/lumen/services/analysis/syntax"
)

// Severity grades a diagnostic.
type Severity string

const (
	// SeverityError marks code that is wrong.
	SeverityError Severity = "error"

	// SeverityWarning marks code that is suspect but legal.
	SeverityWarning Severity = "warning"
)

// Diagnostic is one finding about a file, positioned by byte offset.
type Diagnostic struct {
	Offset   int      `json:"offset"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`

	// Source is "syntax" for parser diagnostics and "semantic" for
	// resolution and arity findings.
	Source string `json:"source"`
}

// DiagnosticsQuery collects all findings for one file: embedded
// syntax errors, unresolved names, duplicate definitions, and calls
// with the wrong argument count.
var DiagnosticsQuery = &engine.Def[FileID, []Diagnostic]{
	Name: "diagnostics",
	Compute: func(ctx *engine.Context, file FileID) ([]Diagnostic, error) {
		tree, err := engine.Get(ctx, ParseQuery, file)
		if err != nil {
			return nil, err
		}
		diags := []Diagnostic{}
		for _, e := range tree.Errors() {
			diags = append(diags, Diagnostic{
				Offset:   e.Offset,
				Message:  e.Message,
				Severity: SeverityError,
				Source:   "syntax",
			})
		}

		// Duplicate top-level definitions.
		syms, err := engine.Get(ctx, SymbolsQuery, file)
		if err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		dups := map[string]bool{}
		for _, s := range syms {
			if seen[s.Name] {
				dups[s.Name] = true
			}
			seen[s.Name] = true
		}
		defs, err := engine.Get(ctx, DefIndexQuery, file)
		if err != nil {
			return nil, err
		}
		reported := map[string]int{}
		for _, d := range defs {
			reported[d.Name]++
			if dups[d.Name] && reported[d.Name] > 1 {
				diags = append(diags, Diagnostic{
					Offset:   d.NameOffset,
					Message:  fmt.Sprintf("duplicate definition of '%s'", d.Name),
					Severity: SeverityError,
					Source:   "semantic",
				})
			}
		}

		refDiags, err := checkNameRefs(ctx, file, tree)
		if err != nil {
			return nil, err
		}
		diags = append(diags, refDiags...)

		sort.SliceStable(diags, func(i, j int) bool { return diags[i].Offset < diags[j].Offset })
		return diags, nil
	},
}

// checkNameRefs walks every name reference in the tree, resolving
// against local bindings first and the workspace second. Resolution
// lookups go through ResolveQuery so each name becomes its own
// dependency edge.
func checkNameRefs(ctx *engine.Context, file FileID, tree *syntax.Tree) ([]Diagnostic, error) {
	var diags []Diagnostic
	var walk func(n *syntax.Node) error
	walk = func(n *syntax.Node) error {
		for _, c := range n.ChildNodes() {
			if c.Kind() == syntax.KindNameRef {
				d, err := checkOneRef(ctx, file, c)
				if err != nil {
					return err
				}
				if d != nil {
					diags = append(diags, *d)
				}
			}
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(tree.Root()); err != nil {
		return nil, err
	}
	return diags, nil
}

func checkOneRef(ctx *engine.Context, file FileID, ref *syntax.Node) (*Diagnostic, error) {
	name := ref.Text()
	if name == "" {
		return nil, nil
	}
	if fn := enclosingFn(ref); fn != nil {
		if lookupLocal(fn, name, ref.Offset()) != nil {
			return nil, nil
		}
	}
	res, err := engine.Get(ctx, ResolveQuery, ResolveKey{File: file, Name: name})
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return &Diagnostic{
			Offset:   ref.Offset(),
			Message:  fmt.Sprintf("unresolved name '%s'", name),
			Severity: SeverityError,
			Source:   "semantic",
		}, nil
	}
	// Arity check when the reference is the callee of a call.
	if parent := ref.Parent(); parent != nil && parent.Kind() == syntax.KindCallExpr {
		if callee := parent.FirstChildOfKind(syntax.KindNameRef); callee != nil && callee.Offset() == ref.Offset() {
			got := countArgs(parent)
			if got != res.Arity {
				return &Diagnostic{
					Offset:   ref.Offset(),
					Message:  fmt.Sprintf("'%s' expects %d argument(s), got %d", name, res.Arity, got),
					Severity: SeverityWarning,
					Source:   "semantic",
				}, nil
			}
		}
	}
	return nil, nil
}

func countArgs(call *syntax.Node) int {
	args := call.FirstChildOfKind(syntax.KindArgList)
	if args == nil {
		return 0
	}
	n := 0
	for _, c := range args.ChildNodes() {
		switch c.Kind() {
		case syntax.KindLParen, syntax.KindRParen, syntax.KindComma, syntax.KindErrorNode:
		default:
			n++
		}
	}
	return n
}
