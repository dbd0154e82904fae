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

// Symbol is a position-free fact about one top-level definition.
// Keeping positions out of this value is deliberate: whitespace-only
// edits reproduce the same symbols, the engine backdates the memo,
// and everything downstream re-validates instead of recomputing.
type Symbol struct {
	// Name is the declared function name.
	Name string `json:"name"`

	// Kind is the symbol kind. Currently always "function".
	Kind string `json:"kind"`

	// Arity is the declared parameter count.
	Arity int `json:"arity"`
}

// SymbolKindFunction is the kind of a top-level fn declaration.
const SymbolKindFunction = "function"

// SymbolsQuery lists the named top-level definitions of a file.
// Unnamed (malformed) declarations are skipped; they surface through
// DiagnosticsQuery instead.
var SymbolsQuery = &engine.Def[FileID, []Symbol]{
	Name: "symbols",
	Compute: func(ctx *engine.Context, file FileID) ([]Symbol, error) {
		tree, err := engine.Get(ctx, ParseQuery, file)
		if err != nil {
			return nil, err
		}
		syms := []Symbol{}
		for _, item := range tree.Root().ChildNodes() {
			if item.Kind() != syntax.KindFn {
				continue
			}
			name := fnName(item)
			if name == "" {
				continue
			}
			syms = append(syms, Symbol{
				Name:  name,
				Kind:  SymbolKindFunction,
				Arity: fnArity(item),
			})
		}
		return syms, nil
	},
}

// Definition is a position-bearing record of one top-level
// definition, for navigation requests.
type Definition struct {
	// Name is the declared function name.
	Name string `json:"name"`

	// Offset and End are the byte span of the whole declaration.
	Offset int `json:"offset"`
	End    int `json:"end"`

	// NameOffset is the byte offset of the name token itself.
	NameOffset int `json:"name_offset"`
}

// DefIndexQuery maps a file's definitions to their byte spans.
// Position-sensitive by design; navigation answers must move when the
// text moves.
var DefIndexQuery = &engine.Def[FileID, []Definition]{
	Name: "def_index",
	Compute: func(ctx *engine.Context, file FileID) ([]Definition, error) {
		tree, err := engine.Get(ctx, ParseQuery, file)
		if err != nil {
			return nil, err
		}
		defs := []Definition{}
		for _, item := range tree.Root().ChildNodes() {
			if item.Kind() != syntax.KindFn {
				continue
			}
			nameTok := item.FirstChildOfKind(syntax.KindIdent)
			if nameTok == nil {
				continue
			}
			defs = append(defs, Definition{
				Name:       nameTok.Text(),
				Offset:     item.Offset(),
				End:        item.EndOffset(),
				NameOffset: nameTok.Offset(),
			})
		}
		return defs, nil
	},
}

// WorkspaceSymbol pairs a symbol with the file declaring it.
type WorkspaceSymbol struct {
	File   FileID `json:"file"`
	Symbol Symbol `json:"symbol"`
}

// wsKey is the singleton key for workspace-wide queries.
type wsKey struct{}

// WorkspaceSymbolsQuery lists every symbol in the workspace, in
// FileID order. Its validity walk touches one dependency per file
// plus the high-durability file set.
var WorkspaceSymbolsQuery = &engine.Def[wsKey, []WorkspaceSymbol]{
	Name: "workspace_symbols",
	Compute: func(ctx *engine.Context, _ wsKey) ([]WorkspaceSymbol, error) {
		files, err := engine.GetInput(ctx, FileSet, FileSetKey())
		if err != nil {
			return nil, err
		}
		out := []WorkspaceSymbol{}
		for _, f := range files {
			syms, err := engine.Get(ctx, SymbolsQuery, f)
			if err != nil {
				return nil, err
			}
			for _, s := range syms {
				out = append(out, WorkspaceSymbol{File: f, Symbol: s})
			}
		}
		return out, nil
	},
}

// WorkspaceSymbolsKey returns the singleton key for
// WorkspaceSymbolsQuery.
func WorkspaceSymbolsKey() wsKey { return wsKey{} }

func fnName(fn *syntax.Node) string {
	if tok := fn.FirstChildOfKind(syntax.KindIdent); tok != nil {
		return tok.Text()
	}
	return ""
}

func fnArity(fn *syntax.Node) int {
	params := fn.FirstChildOfKind(syntax.KindParamList)
	if params == nil {
		return 0
	}
	n := 0
	for _, c := range params.ChildNodes() {
		if c.Kind() == syntax.KindParam {
			n++
		}
	}
	return n
}
