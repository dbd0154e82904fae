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

// Tree is one parse of one file: an immutable green root plus the
// syntax errors recorded while building it.
//
// Thread Safety: immutable, safe for concurrent use.
type Tree struct {
	root   *Green
	text   string
	errors []SyntaxError
}

// Root returns a cursor positioned at the root node.
func (t *Tree) Root() *Node {
	return &Node{green: t.root}
}

// GreenRoot returns the underlying green root. Exposed so callers can
// check subtree identity across revisions.
func (t *Tree) GreenRoot() *Green { return t.root }

// Text returns the exact source text the tree was built from.
func (t *Tree) Text() string { return t.text }

// Errors returns the syntax errors recorded during parsing, in source
// order. The returned slice must not be modified.
func (t *Tree) Errors() []SyntaxError { return t.errors }

// Node is a cursor into a tree: a green node paired with its absolute
// byte offset and parent link. Nodes are built on demand while
// walking; the green layer stays shared.
type Node struct {
	green  *Green
	parent *Node
	offset int
}

// Kind returns the node's kind.
func (n *Node) Kind() Kind { return n.green.kind }

// Green returns the underlying green node.
func (n *Node) Green() *Green { return n.green }

// Offset returns the node's absolute start offset in bytes.
func (n *Node) Offset() int { return n.offset }

// EndOffset returns the node's absolute end offset in bytes.
func (n *Node) EndOffset() int { return n.offset + n.green.width }

// Parent returns the parent cursor, or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// Text reconstructs the source text covered by the node.
func (n *Node) Text() string { return n.green.Text() }

// Children returns cursors for all children, trivia included.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.green.children))
	off := n.offset
	for _, c := range n.green.children {
		out = append(out, &Node{green: c, parent: n, offset: off})
		off += c.width
	}
	return out
}

// ChildNodes returns cursors for non-trivia children.
func (n *Node) ChildNodes() []*Node {
	var out []*Node
	off := n.offset
	for _, c := range n.green.children {
		if !c.kind.IsTrivia() {
			out = append(out, &Node{green: c, parent: n, offset: off})
		}
		off += c.width
	}
	return out
}

// FirstChildOfKind returns the first non-trivia child with the given
// kind, or nil.
func (n *Node) FirstChildOfKind(kind Kind) *Node {
	off := n.offset
	for _, c := range n.green.children {
		if c.kind == kind {
			return &Node{green: c, parent: n, offset: off}
		}
		off += c.width
	}
	return nil
}

// NodeAt descends to the deepest node whose span contains the byte
// offset. Zero-width nodes are skipped. Returns n itself when no child
// contains the offset.
func (n *Node) NodeAt(offset int) *Node {
	cur := n
descend:
	for {
		off := cur.offset
		for _, c := range cur.green.children {
			end := off + c.width
			if c.width > 0 && offset >= off && offset < end {
				cur = &Node{green: c, parent: cur, offset: off}
				continue descend
			}
			off = end
		}
		return cur
	}
}

// Ancestors walks from n up to the root, calling fn on each node
// starting with n itself. Walking stops when fn returns false.
func (n *Node) Ancestors(fn func(*Node) bool) {
	for cur := n; cur != nil; cur = cur.parent {
		if !fn(cur) {
			return
		}
	}
}
