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
	"github.com/AleutianAI/lumen/services/analysis/engine"
	"github.com/AleutianAI/lumen/services/analysis/syntax"
)

// ResolveKey identifies one name-resolution request: a name as seen
// from a file, at top-level (function) scope.
type ResolveKey struct {
	File FileID
	Name string
}

// Resolution is the position-free answer to "what does this name
// refer to". Local bindings (params, lets) are resolved separately by
// the position-aware IDE queries; this query covers callable,
// workspace-visible names.
type Resolution struct {
	// Found reports whether the name resolved at all.
	Found bool `json:"found"`

	// Kind is the resolved symbol's kind when found.
	Kind string `json:"kind,omitempty"`

	// File is the file declaring the symbol when found.
	File FileID `json:"file,omitempty"`

	// Arity is the declared parameter count when found.
	Arity int `json:"arity,omitempty"`
}

// ResolveQuery resolves a function name: first against the file's own
// symbols, then across the workspace. It depends only on position-
// free symbol values, so reformatting edits never recompute it.
var ResolveQuery = &engine.Def[ResolveKey, Resolution]{
	Name: "resolve",
	Compute: func(ctx *engine.Context, key ResolveKey) (Resolution, error) {
		own, err := engine.Get(ctx, SymbolsQuery, key.File)
		if err != nil {
			return Resolution{}, err
		}
		for _, s := range own {
			if s.Name == key.Name {
				return Resolution{Found: true, Kind: s.Kind, File: key.File, Arity: s.Arity}, nil
			}
		}
		all, err := engine.Get(ctx, WorkspaceSymbolsQuery, WorkspaceSymbolsKey())
		if err != nil {
			return Resolution{}, err
		}
		for _, ws := range all {
			if ws.Symbol.Name == key.Name {
				return Resolution{Found: true, Kind: ws.Symbol.Kind, File: ws.File, Arity: ws.Symbol.Arity}, nil
			}
		}
		return Resolution{}, nil
	},
}

// localBinding is a param or let binding visible at some point inside
// a function body.
type localBinding struct {
	name   string
	kind   string // "parameter" or "let"
	offset int    // where the binding's name token starts
}

// enclosingFn walks up from node to the containing fn declaration,
// or nil at file level.
func enclosingFn(node *syntax.Node) *syntax.Node {
	var fn *syntax.Node
	node.Ancestors(func(n *syntax.Node) bool {
		if n.Kind() == syntax.KindFn {
			fn = n
			return false
		}
		return true
	})
	return fn
}

// localBindings lists the bindings of fn visible at byte offset
// `before`: all parameters, plus let bindings introduced earlier in
// the body.
func localBindings(fn *syntax.Node, before int) []localBinding {
	var out []localBinding
	if params := fn.FirstChildOfKind(syntax.KindParamList); params != nil {
		for _, p := range params.ChildNodes() {
			if p.Kind() != syntax.KindParam {
				continue
			}
			if tok := p.FirstChildOfKind(syntax.KindIdent); tok != nil {
				out = append(out, localBinding{name: tok.Text(), kind: "parameter", offset: tok.Offset()})
			}
		}
	}
	body := fn.FirstChildOfKind(syntax.KindBlock)
	if body == nil {
		return out
	}
	for _, stmt := range body.ChildNodes() {
		if stmt.Kind() != syntax.KindLetStmt || stmt.Offset() >= before {
			continue
		}
		if tok := stmt.FirstChildOfKind(syntax.KindIdent); tok != nil {
			out = append(out, localBinding{name: tok.Text(), kind: "let", offset: tok.Offset()})
		}
	}
	return out
}

// lookupLocal returns the innermost binding for name visible at
// offset, or nil.
func lookupLocal(fn *syntax.Node, name string, offset int) *localBinding {
	bindings := localBindings(fn, offset)
	for i := len(bindings) - 1; i >= 0; i-- {
		if bindings[i].name == name {
			return &bindings[i]
		}
	}
	return nil
}
