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

func TestLexLossless(t *testing.T) {
	cases := []string{
		"",
		"fn main() { 1 + 2 }",
		"let x = 3;",
		"  \t\n  ",
		"// a comment\nfn f() {}",
		"fn f(a, b) { a * b - -a }",
		"@#$%", // unlexable bytes
		"fn 日本語() {}",
		"x123 _y 9abc",
	}
	for _, text := range cases {
		var sb strings.Builder
		for _, tok := range lex(text) {
			sb.WriteString(tok.text)
		}
		if sb.String() != text {
			t.Errorf("lex not lossless for %q: got back %q", text, sb.String())
		}
	}
}

func TestLexKinds(t *testing.T) {
	toks := lex("fn add(a, b) { let x = a + b; x }")
	want := []Kind{
		KindFnKw, KindWhitespace, KindIdent, KindLParen, KindIdent,
		KindComma, KindWhitespace, KindIdent, KindRParen, KindWhitespace,
		KindLBrace, KindWhitespace, KindLetKw, KindWhitespace, KindIdent,
		KindWhitespace, KindEq, KindWhitespace, KindIdent, KindWhitespace,
		KindPlus, KindWhitespace, KindIdent, KindSemi, KindWhitespace,
		KindIdent, KindWhitespace, KindRBrace,
	}
	if len(toks) != len(want) {
		t.Fatalf("token count = %d, want %d", len(toks), len(want))
	}
	for i, tok := range toks {
		if tok.kind != want[i] {
			t.Errorf("token %d (%q) kind = %v, want %v", i, tok.text, tok.kind, want[i])
		}
	}
}

func TestLexComments(t *testing.T) {
	toks := lex("// until eol\nfn")
	if toks[0].kind != KindComment || toks[0].text != "// until eol" {
		t.Errorf("comment token = %v %q", toks[0].kind, toks[0].text)
	}
	if toks[1].kind != KindWhitespace {
		t.Errorf("newline after comment should be whitespace, got %v", toks[1].kind)
	}
	// A comment at end of input has no trailing newline to stop at.
	toks = lex("// eof")
	if len(toks) != 1 || toks[0].kind != KindComment {
		t.Errorf("eof comment lexed as %v", toks)
	}
}

func TestLexErrorTokens(t *testing.T) {
	toks := lex("a @@ b")
	var errCount int
	for _, tok := range toks {
		if tok.kind == KindErrorToken {
			errCount++
			if len(tok.text) != 1 {
				t.Errorf("error token should be one byte, got %q", tok.text)
			}
		}
	}
	if errCount != 2 {
		t.Errorf("error token count = %d, want 2", errCount)
	}
}

func TestLexKeywordBoundaries(t *testing.T) {
	// Identifiers that merely start with a keyword stay identifiers.
	toks := lex("fnord letter")
	if toks[0].kind != KindIdent {
		t.Errorf("fnord lexed as %v", toks[0].kind)
	}
	if toks[2].kind != KindIdent {
		t.Errorf("letter lexed as %v", toks[2].kind)
	}
}

func TestLexSlashVsComment(t *testing.T) {
	toks := lex("a / b")
	if toks[2].kind != KindSlash {
		t.Errorf("single slash lexed as %v", toks[2].kind)
	}
}
