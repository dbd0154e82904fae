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
	"strings"

	"github.com/AleutianAI/lumen/services/analysis/engine"
	"github.com/AleutianAI/lumen/services/analysis/syntax"
)

// PositionKey identifies a position-based IDE request.
type PositionKey struct {
	File   FileID
	Offset int
}

// Hover describes the symbol under a byte offset.
type Hover struct {
	Found bool `json:"found"`

	// Name is the hovered identifier.
	Name string `json:"name,omitempty"`

	// Kind is "function", "parameter", or "let".
	Kind string `json:"kind,omitempty"`

	// Detail is a one-line rendering, e.g. "fn add(2 params)".
	Detail string `json:"detail,omitempty"`

	// Start and End are the byte span of the hovered token.
	Start int `json:"start,omitempty"`
	End   int `json:"end,omitempty"`
}

// HoverQuery answers "what is under the cursor". Position-sensitive
// by nature; its key carries the offset.
var HoverQuery = &engine.Def[PositionKey, Hover]{
	Name: "hover",
	Compute: func(ctx *engine.Context, key PositionKey) (Hover, error) {
		tree, err := engine.Get(ctx, ParseQuery, key.File)
		if err != nil {
			return Hover{}, err
		}
		node := tree.Root().NodeAt(key.Offset)
		if node.Kind() != syntax.KindIdent {
			return Hover{}, nil
		}
		name := node.Text()
		h := Hover{Found: true, Name: name, Start: node.Offset(), End: node.EndOffset()}

		if fn := enclosingFn(node); fn != nil {
			// The fn's own name token hovers as the function itself.
			if tok := fn.FirstChildOfKind(syntax.KindIdent); tok == nil || tok.Offset() != node.Offset() {
				if b := lookupLocal(fn, name, node.EndOffset()); b != nil {
					h.Kind = b.kind
					h.Detail = fmt.Sprintf("%s %s", b.kind, name)
					return h, nil
				}
			}
		}
		res, err := engine.Get(ctx, ResolveQuery, ResolveKey{File: key.File, Name: name})
		if err != nil {
			return Hover{}, err
		}
		if !res.Found {
			return Hover{}, nil
		}
		h.Kind = res.Kind
		h.Detail = fmt.Sprintf("fn %s(%d param(s))", name, res.Arity)
		return h, nil
	},
}

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// CompletionQuery lists names visible at an offset: enclosing
// parameters and earlier lets, plus every workspace function.
var CompletionQuery = &engine.Def[PositionKey, []CompletionItem]{
	Name: "completion",
	Compute: func(ctx *engine.Context, key PositionKey) ([]CompletionItem, error) {
		tree, err := engine.Get(ctx, ParseQuery, key.File)
		if err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		items := []CompletionItem{}

		node := tree.Root().NodeAt(key.Offset)
		if fn := enclosingFn(node); fn != nil {
			for _, b := range localBindings(fn, key.Offset) {
				if !seen[b.name] {
					seen[b.name] = true
					items = append(items, CompletionItem{Label: b.name, Kind: b.kind})
				}
			}
		}
		all, err := engine.Get(ctx, WorkspaceSymbolsQuery, WorkspaceSymbolsKey())
		if err != nil {
			return nil, err
		}
		for _, ws := range all {
			if !seen[ws.Symbol.Name] {
				seen[ws.Symbol.Name] = true
				items = append(items, CompletionItem{Label: ws.Symbol.Name, Kind: ws.Symbol.Kind})
			}
		}
		sort.Slice(items, func(i, j int) bool {
			if items[i].Label != items[j].Label {
				return strings.Compare(items[i].Label, items[j].Label) < 0
			}
			return items[i].Kind < items[j].Kind
		})
		return items, nil
	},
}
