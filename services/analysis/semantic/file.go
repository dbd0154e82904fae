// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package semantic defines the analysis service's query kinds:
// parsing, symbols, name resolution, diagnostics, and the IDE-facing
// hover/completion queries.
//
// Every semantic fact is expressed as a query-engine client. There is
// no side channel to file text: all reads go through engine.Get and
// engine.GetInput so dependencies are recorded and invalidation stays
// precise. Queries that only need name-level facts depend on the
// position-free symbol queries, so edits that merely reformat
// whitespace re-validate them without recomputation.
package semantic

import "github.com/AleutianAI/lumen/services/analysis/engine"

// FileID is the stable integer identity of one file. Assigned by the
// Analysis Host when the file is first added and never reused.
type FileID uint32

// FileText is the text input for one file: the base case of every
// dependency graph. Written only by the Analysis Host.
var FileText = &engine.Input[FileID, string]{Name: "file_text"}

// fileSetKey is the singleton key for the FileSet input.
type fileSetKey struct{}

// FileSet is the set of files under analysis, in FileID order. It
// changes only when files are added or removed, so the host writes it
// with high durability and workspace-wide queries short-circuit their
// validity walk while the file set is stable.
var FileSet = &engine.Input[fileSetKey, []FileID]{Name: "file_set"}

// FileSetKey returns the FileSet singleton key.
func FileSetKey() fileSetKey { return fileSetKey{} }
