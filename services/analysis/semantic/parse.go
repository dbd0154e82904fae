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
	"reflect"

	"github.com/AleutianAI/lumen/services/analysis/engine"
	"github.com/AleutianAI/lumen/services/analysis/syntax"
)

// ParseQuery turns a file's text into its lossless syntax tree.
//
// Recompute hands the previous tree to syntax.Reparse so an edit
// confined to one block reuses every other green subtree by pointer.
// Equal compares structure and errors; when an edit round-trips to an
// identical tree the engine keeps the old instance, preserving
// subtree identity for downstream consumers.
var ParseQuery = &engine.Def[FileID, *syntax.Tree]{
	Name: "parse",
	Compute: func(ctx *engine.Context, file FileID) (*syntax.Tree, error) {
		text, err := engine.GetInput(ctx, FileText, file)
		if err != nil {
			return nil, err
		}
		return syntax.Parse(text), nil
	},
	Recompute: func(ctx *engine.Context, file FileID, old *syntax.Tree) (*syntax.Tree, error) {
		text, err := engine.GetInput(ctx, FileText, file)
		if err != nil {
			return nil, err
		}
		return syntax.Reparse(old, text), nil
	},
	Equal: func(a, b *syntax.Tree) bool {
		if a == b {
			return true
		}
		if a == nil || b == nil {
			return false
		}
		return syntax.StructurallyEqual(a.GreenRoot(), b.GreenRoot()) &&
			reflect.DeepEqual(a.Errors(), b.Errors())
	},
}
