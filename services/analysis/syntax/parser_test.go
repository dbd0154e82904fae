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
	"strings"
	"testing"
)

// brokenInputs is a grab bag of malformed programs. The parser must
// survive all of them and keep the tree lossless.
var brokenInputs = []string{
	"",
	"fn",
	"fn (",
	"fn f(",
	"fn f()",
	"fn f() {",
	"fn f() { 1 + }",
	"fn f() { let }",
	"fn f() { let x }",
	"fn f() { let x = }",
	"fn f() { (1 + 2 }",
	"fn f() { g(1, }",
	"garbage before fn ok() {}",
	"fn a() { fn b() {}",
	"}}}}",
	"fn f(,,,) {}",
	"fn f() { @@ }",
	"fn dup() {} fn dup() {}",
	"1 + 2",
	"// only a comment",
}

func TestParseLossless(t *testing.T) {
	inputs := append([]string{
		"fn main() { 1 + 2 * 3 }",
		"fn add(a, b) { let s = a + b; s }",
		"// header\nfn f() {}\n\nfn g() { f() }",
	}, brokenInputs...)
	for _, text := range inputs {
		tree := Parse(text)
		if got := tree.Root().Text(); got != text {
			t.Errorf("round-trip failed for %q: got %q", text, got)
		}
		if tree.Text() != text {
			t.Errorf("Tree.Text() = %q, want %q", tree.Text(), text)
		}
	}
}

func TestParseDeterministic(t *testing.T) {
	for _, text := range brokenInputs {
		a, b := Parse(text), Parse(text)
		if !StructurallyEqual(a.GreenRoot(), b.GreenRoot()) {
			t.Errorf("two parses of %q differ structurally", text)
		}
		if len(a.Errors()) != len(b.Errors()) {
			t.Fatalf("two parses of %q differ in errors", text)
		}
		for i := range a.Errors() {
			if a.Errors()[i] != b.Errors()[i] {
				t.Errorf("error %d differs for %q: %v vs %v", i, text, a.Errors()[i], b.Errors()[i])
			}
		}
	}
}

func TestParseValidProgram(t *testing.T) {
	tree := Parse("fn add(a, b) { let s = a + b; s }")
	if len(tree.Errors()) != 0 {
		t.Fatalf("valid program produced errors: %v", tree.Errors())
	}
	items := tree.Root().ChildNodes()
	if len(items) != 1 || items[0].Kind() != KindFn {
		t.Fatalf("file children = %v", items)
	}
	fn := items[0]
	if fn.FirstChildOfKind(KindIdent).Text() != "add" {
		t.Errorf("fn name = %q", fn.FirstChildOfKind(KindIdent).Text())
	}
	params := fn.FirstChildOfKind(KindParamList)
	if params == nil {
		t.Fatal("missing param list")
	}
	var count int
	for _, c := range params.ChildNodes() {
		if c.Kind() == KindParam {
			count++
		}
	}
	if count != 2 {
		t.Errorf("param count = %d, want 2", count)
	}
	if fn.FirstChildOfKind(KindBlock) == nil {
		t.Error("missing body block")
	}
}

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 must parse as 1 + (2 * 3).
	tree := Parse("fn f() { 1 + 2 * 3 }")
	block := tree.Root().ChildNodes()[0].FirstChildOfKind(KindBlock)
	stmt := block.FirstChildOfKind(KindExprStmt)
	outer := stmt.FirstChildOfKind(KindBinaryExpr)
	if outer == nil {
		t.Fatal("expected binary expression")
	}
	var kids []*Node
	for _, c := range outer.ChildNodes() {
		kids = append(kids, c)
	}
	// literal, +, binary(2*3)
	if kids[0].Kind() != KindLiteral {
		t.Errorf("lhs kind = %v", kids[0].Kind())
	}
	if kids[len(kids)-1].Kind() != KindBinaryExpr {
		t.Errorf("rhs kind = %v, want nested binary_expr", kids[len(kids)-1].Kind())
	}
}

func TestParseLeftAssociativity(t *testing.T) {
	// 1 - 2 - 3 must parse as (1 - 2) - 3.
	tree := Parse("fn f() { 1 - 2 - 3 }")
	stmt := tree.Root().ChildNodes()[0].FirstChildOfKind(KindBlock).FirstChildOfKind(KindExprStmt)
	outer := stmt.FirstChildOfKind(KindBinaryExpr)
	inner := outer.FirstChildOfKind(KindBinaryExpr)
	if inner == nil {
		t.Fatal("expected left-nested binary expression")
	}
	if !strings.HasPrefix(strings.TrimSpace(inner.Text()), "1") {
		t.Errorf("inner expression = %q, want the 1 - 2 half", inner.Text())
	}
}

func TestParseCallExpr(t *testing.T) {
	tree := Parse("fn f() { g(1, 2 + 3) }")
	stmt := tree.Root().ChildNodes()[0].FirstChildOfKind(KindBlock).FirstChildOfKind(KindExprStmt)
	call := stmt.FirstChildOfKind(KindCallExpr)
	if call == nil {
		t.Fatal("expected call expression")
	}
	if call.FirstChildOfKind(KindNameRef) == nil {
		t.Error("call missing callee name ref")
	}
	args := call.FirstChildOfKind(KindArgList)
	if args == nil {
		t.Fatal("call missing arg list")
	}
	var exprs int
	for _, c := range args.ChildNodes() {
		switch c.Kind() {
		case KindLParen, KindRParen, KindComma:
		default:
			exprs++
		}
	}
	if exprs != 2 {
		t.Errorf("argument count = %d, want 2", exprs)
	}
}

func TestParseMissingOperand(t *testing.T) {
	tree := Parse("fn f() { 1 + }")
	errs := tree.Errors()
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want exactly one", errs)
	}
	if errs[0].Message != "expected expression" {
		t.Errorf("message = %q", errs[0].Message)
	}
	// The error node stands in for the operand, zero-width, inside the
	// binary expression.
	if got := tree.Root().Text(); got != "fn f() { 1 + }" {
		t.Errorf("round-trip = %q", got)
	}
}

func TestParseErrorOffsets(t *testing.T) {
	text := "fn f() { let = 1; }"
	tree := Parse(text)
	if len(tree.Errors()) == 0 {
		t.Fatal("expected errors")
	}
	for _, e := range tree.Errors() {
		if e.Offset < 0 || e.Offset > len(text) {
			t.Errorf("error offset %d outside [0, %d]", e.Offset, len(text))
		}
	}
}

func TestParseUnclosedBlockStopsAtNextFn(t *testing.T) {
	tree := Parse("fn a() { 1 +\nfn b() { 2 }")
	items := tree.Root().ChildNodes()
	var fns int
	for _, item := range items {
		if item.Kind() == KindFn {
			fns++
		}
	}
	if fns != 2 {
		t.Fatalf("fn count = %d, want 2 (unclosed block must not swallow the next item)", fns)
	}
	// b parses cleanly inside its own declaration.
	b := items[1]
	if b.FirstChildOfKind(KindIdent).Text() != "b" {
		t.Errorf("second fn name = %q", b.FirstChildOfKind(KindIdent).Text())
	}
}

func TestParseGarbageBetweenItems(t *testing.T) {
	tree := Parse("???\nfn ok() {}")
	items := tree.Root().ChildNodes()
	if items[0].Kind() != KindErrorNode {
		t.Errorf("leading garbage should be an error node, got %v", items[0].Kind())
	}
	var fn *Node
	for _, item := range items {
		if item.Kind() == KindFn {
			fn = item
		}
	}
	if fn == nil {
		t.Fatal("fn after garbage not recovered")
	}
	if len(tree.Errors()) == 0 {
		t.Error("garbage produced no diagnostic")
	}
}

func TestNodeAt(t *testing.T) {
	text := "fn add(a, b) { a + b }"
	tree := Parse(text)
	// Offset of the second 'a' (inside the body).
	off := strings.Index(text, "a + b")
	node := tree.Root().NodeAt(off)
	if node.Kind() != KindIdent || node.Text() != "a" {
		t.Errorf("NodeAt(%d) = %v %q", off, node.Kind(), node.Text())
	}
	if node.Parent().Kind() != KindNameRef {
		t.Errorf("parent = %v, want name_ref", node.Parent().Kind())
	}
	if node.Offset() != off || node.EndOffset() != off+1 {
		t.Errorf("span = [%d, %d), want [%d, %d)", node.Offset(), node.EndOffset(), off, off+1)
	}
}

func TestAncestors(t *testing.T) {
	text := "fn f() { 1 }"
	tree := Parse(text)
	leaf := tree.Root().NodeAt(strings.Index(text, "1"))
	var kinds []Kind
	leaf.Ancestors(func(n *Node) bool {
		kinds = append(kinds, n.Kind())
		return true
	})
	if kinds[len(kinds)-1] != KindFile {
		t.Errorf("ancestor walk should end at file, got %v", kinds)
	}
}

func TestTriviaPreserved(t *testing.T) {
	text := "fn f() {\n\t// inner comment\n\t1\n}"
	tree := Parse(text)
	if len(tree.Errors()) != 0 {
		t.Fatalf("errors: %v", tree.Errors())
	}
	if got := tree.Root().Text(); got != text {
		t.Errorf("trivia lost: %q", got)
	}
}
