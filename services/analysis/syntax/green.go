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

import "strings"

// Green is an immutable, position-independent tree node.
//
// Description:
//
//	Green nodes carry only their kind, total text width, and either
//	token text (leaves) or children (interior nodes). Because they
//	store no absolute offsets they can be shared freely between trees:
//	an incremental re-parse reuses the green subtrees of unaffected
//	regions by pointer, which is what makes re-parsing after a small
//	edit cheap and what lets cache-validity checks compare subtree
//	identity instead of content.
//
// Thread Safety:
//
//	Green nodes are immutable after construction and safe to share
//	across any number of goroutines.
type Green struct {
	kind     Kind
	width    int
	text     string // leaves only
	children []*Green
}

func newLeaf(kind Kind, text string) *Green {
	return &Green{kind: kind, width: len(text), text: text}
}

func newNode(kind Kind, children []*Green) *Green {
	width := 0
	for _, c := range children {
		width += c.width
	}
	return &Green{kind: kind, width: width, children: children}
}

// Kind returns the node's kind.
func (g *Green) Kind() Kind { return g.kind }

// Width returns the total source width covered by the node in bytes.
func (g *Green) Width() int { return g.width }

// IsLeaf reports whether the node is a token leaf.
func (g *Green) IsLeaf() bool { return g.kind.IsToken() }

// LeafText returns the token text for leaves and "" for interior nodes.
func (g *Green) LeafText() string { return g.text }

// Children returns the node's children. The returned slice must not
// be modified.
func (g *Green) Children() []*Green { return g.children }

// writeTo appends the node's full source text to sb.
func (g *Green) writeTo(sb *strings.Builder) {
	if g.IsLeaf() {
		sb.WriteString(g.text)
		return
	}
	for _, c := range g.children {
		c.writeTo(sb)
	}
}

// Text reconstructs the exact source text covered by the node.
func (g *Green) Text() string {
	var sb strings.Builder
	sb.Grow(g.width)
	g.writeTo(&sb)
	return sb.String()
}

// StructurallyEqual reports whether two green trees have identical
// shape, kinds, and leaf texts. Shared subtrees compare equal by
// pointer without descending.
func StructurallyEqual(a, b *Green) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.kind != b.kind || a.width != b.width {
		return false
	}
	if a.IsLeaf() {
		return a.text == b.text
	}
	if len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !StructurallyEqual(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}

// replaceChild returns a copy of g with the child at index i swapped
// for repl. Siblings are shared, not copied.
func (g *Green) replaceChild(i int, repl *Green) *Green {
	children := make([]*Green, len(g.children))
	copy(children, g.children)
	children[i] = repl
	return newNode(g.kind, children)
}
