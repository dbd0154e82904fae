// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import (
	"context"
	"sort"
	"time"
)

// Reparse builds the tree for newText, reusing green subtrees of old
// where the change does not reach.
//
// Description:
//
//	The edited region is derived by common prefix/suffix comparison of
//	the two texts. When the edit falls strictly inside one block, only
//	that block is re-parsed and the spine above it rebuilt; every other
//	subtree of the old tree is reused by pointer. When no such block
//	exists, or the re-parsed fragment is not a cleanly closed block,
//	Reparse falls back to a full parse.
//
//	The result is always structurally identical to Parse(newText),
//	errors included. Reuse is an optimization, never a semantic change.
//
// Thread Safety: safe for concurrent use; old is not modified.
func Reparse(old *Tree, newText string) *Tree {
	if old == nil {
		return Parse(newText)
	}
	oldText := old.Text()
	if oldText == newText {
		return old
	}
	start, oldEnd, newEnd := diffRange(oldText, newText)
	if t := reparseBlock(old, newText, start, oldEnd, newEnd); t != nil {
		return t
	}
	return Parse(newText)
}

// diffRange returns the minimal edit window between two texts as the
// common-prefix offset and the per-text ends of the changed region.
func diffRange(oldText, newText string) (start, oldEnd, newEnd int) {
	limit := len(oldText)
	if len(newText) < limit {
		limit = len(newText)
	}
	start = 0
	for start < limit && oldText[start] == newText[start] {
		start++
	}
	oldEnd, newEnd = len(oldText), len(newText)
	for oldEnd > start && newEnd > start && oldText[oldEnd-1] == newText[newEnd-1] {
		oldEnd--
		newEnd--
	}
	return start, oldEnd, newEnd
}

// reparseBlock attempts the single-block fast path. Returns nil when
// the edit cannot be confined to one block.
func reparseBlock(old *Tree, newText string, start, oldEnd, newEnd int) *Tree {
	began := time.Now()
	block, path := coveringBlock(old.root, start, oldEnd)
	if block == nil {
		return nil
	}
	delta := newEnd - oldEnd
	blockStart := block.offset
	blockEnd := block.EndOffset() + delta
	if blockEnd > len(newText) {
		return nil
	}
	frag, fragErrs, ok := parseBlockFragment(newText[blockStart:blockEnd])
	if !ok {
		return nil
	}
	// The fragment must be a closed block, otherwise statements after
	// the edit could belong to a different node than a full parse
	// would give them.
	if !isClosedBlock(frag) {
		return nil
	}

	// Rebuild the spine from the replaced block up to the root.
	repl := frag
	for i := len(path) - 1; i >= 0; i-- {
		repl = path[i].green.replaceChild(path[i].childIdx, repl)
	}

	errs := spliceErrors(old.errors, fragErrs, blockStart, block.EndOffset(), delta)
	recordParse(context.Background(), time.Since(began), len(errs), true)
	return &Tree{root: repl, text: newText, errors: errs}
}

// isClosedBlock reports whether the block's closing brace is present.
// An unclosed block parks its "expected '}'" error past the block's
// span, so splicing one would leave a stale diagnostic behind.
func isClosedBlock(g *Green) bool {
	return len(g.children) > 0 && g.children[len(g.children)-1].kind == KindRBrace
}

type spineStep struct {
	green    *Green
	childIdx int
}

// coveringBlock finds the deepest block whose interior (between the
// braces) strictly contains [start, oldEnd), along with the root-to-
// parent spine needed to rebuild the tree around it.
func coveringBlock(root *Green, start, oldEnd int) (*Node, []spineStep) {
	var (
		found *Node
		path  []spineStep
	)
	cur := &Node{green: root}
	var curPath []spineStep
descend:
	for {
		off := cur.offset
		for i, c := range cur.green.children {
			end := off + c.width
			if start >= off && oldEnd <= end && c.width > 0 {
				child := &Node{green: c, parent: cur, offset: off}
				curPath = append(curPath, spineStep{green: cur.green, childIdx: i})
				if c.kind == KindBlock && isClosedBlock(c) && start >= off+1 && oldEnd <= end-1 {
					found = child
					path = append([]spineStep(nil), curPath...)
				}
				cur = child
				continue descend
			}
			off = end
		}
		return found, path
	}
}

// spliceErrors merges errors outside the replaced block (shifting the
// ones after it) with the fragment's own errors.
func spliceErrors(oldErrs, fragErrs []SyntaxError, blockStart, blockEnd, delta int) []SyntaxError {
	var errs []SyntaxError
	for _, e := range oldErrs {
		switch {
		// An error at blockStart itself points at the '{' but belongs
		// to the construct before the block (e.g. a missing param
		// list); fragment errors always fall after the '{'.
		case e.Offset <= blockStart:
			errs = append(errs, e)
		case e.Offset >= blockEnd:
			errs = append(errs, SyntaxError{Offset: e.Offset + delta, Message: e.Message})
		}
	}
	for _, e := range fragErrs {
		errs = append(errs, SyntaxError{Offset: e.Offset + blockStart, Message: e.Message})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Offset < errs[j].Offset })
	return errs
}
