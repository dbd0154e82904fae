// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package host

import (
	"github.com/AleutianAI/lumen/services/analysis/engine"
	"github.com/AleutianAI/lumen/services/analysis/semantic"
	"github.com/AleutianAI/lumen/services/analysis/syntax"
)

// Snapshot is the read surface handed to analysis workers: the
// semantic queries, bound to one revision.
//
// All methods may return engine.ErrCancelled once a newer revision
// has begun committing; the result of the next call against a fresh
// snapshot will be consistent with that newer revision.
//
// Thread Safety: safe for concurrent use. Release must be called
// exactly when the request owning the snapshot completes.
type Snapshot struct {
	snap *engine.Snapshot
}

// Revision returns the revision the snapshot is bound to.
func (s *Snapshot) Revision() engine.Revision { return s.snap.Revision() }

// Cancelled reports whether the snapshot has been superseded.
func (s *Snapshot) Cancelled() bool { return s.snap.Cancelled() }

// Release returns the snapshot to the host. Idempotent.
func (s *Snapshot) Release() { s.snap.Release() }

// Tree returns the file's syntax tree.
func (s *Snapshot) Tree(file semantic.FileID) (*syntax.Tree, error) {
	return engine.Get(s.snap.NewContext(), semantic.ParseQuery, file)
}

// Symbols returns the file's position-free symbol list.
func (s *Snapshot) Symbols(file semantic.FileID) ([]semantic.Symbol, error) {
	return engine.Get(s.snap.NewContext(), semantic.SymbolsQuery, file)
}

// Definitions returns the file's definitions with byte spans.
func (s *Snapshot) Definitions(file semantic.FileID) ([]semantic.Definition, error) {
	return engine.Get(s.snap.NewContext(), semantic.DefIndexQuery, file)
}

// WorkspaceSymbols returns every symbol in the workspace.
func (s *Snapshot) WorkspaceSymbols() ([]semantic.WorkspaceSymbol, error) {
	return engine.Get(s.snap.NewContext(), semantic.WorkspaceSymbolsQuery, semantic.WorkspaceSymbolsKey())
}

// Resolve resolves a function name as seen from file.
func (s *Snapshot) Resolve(file semantic.FileID, name string) (semantic.Resolution, error) {
	return engine.Get(s.snap.NewContext(), semantic.ResolveQuery, semantic.ResolveKey{File: file, Name: name})
}

// Diagnostics returns all findings for the file.
func (s *Snapshot) Diagnostics(file semantic.FileID) ([]semantic.Diagnostic, error) {
	return engine.Get(s.snap.NewContext(), semantic.DiagnosticsQuery, file)
}

// Hover describes the symbol at a byte offset.
func (s *Snapshot) Hover(file semantic.FileID, offset int) (semantic.Hover, error) {
	return engine.Get(s.snap.NewContext(), semantic.HoverQuery, semantic.PositionKey{File: file, Offset: offset})
}

// Completion lists names visible at a byte offset.
func (s *Snapshot) Completion(file semantic.FileID, offset int) ([]semantic.CompletionItem, error) {
	return engine.Get(s.snap.NewContext(), semantic.CompletionQuery, semantic.PositionKey{File: file, Offset: offset})
}
