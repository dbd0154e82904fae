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

// Kind identifies a token or node in the syntax tree.
//
// Tokens and interior nodes share one kind space so a tree can be
// walked uniformly. Kinds below KindFile are tokens; the rest are
// interior nodes.
type Kind uint8

const (
	// KindErrorToken marks a token the lexer could not classify.
	KindErrorToken Kind = iota

	// Trivia tokens. Trivia is preserved in the tree but skipped by the
	// parser when matching grammar productions.
	KindWhitespace
	KindComment

	// Literal and name tokens.
	KindIdent
	KindNumber

	// Keywords.
	KindFnKw
	KindLetKw

	// Punctuation.
	KindLParen
	KindRParen
	KindLBrace
	KindRBrace
	KindComma
	KindSemi
	KindEq
	KindPlus
	KindMinus
	KindStar
	KindSlash

	// Interior node kinds.
	KindFile
	KindFn
	KindParamList
	KindParam
	KindBlock
	KindLetStmt
	KindExprStmt
	KindBinaryExpr
	KindUnaryExpr
	KindParenExpr
	KindCallExpr
	KindArgList
	KindNameRef
	KindLiteral

	// KindErrorNode wraps tokens that could not be matched to any
	// production, or stands in (zero-width) for a missing one.
	KindErrorNode
)

var kindNames = [...]string{
	KindErrorToken: "error_token",
	KindWhitespace: "whitespace",
	KindComment:    "comment",
	KindIdent:      "ident",
	KindNumber:     "number",
	KindFnKw:       "fn_kw",
	KindLetKw:      "let_kw",
	KindLParen:     "l_paren",
	KindRParen:     "r_paren",
	KindLBrace:     "l_brace",
	KindRBrace:     "r_brace",
	KindComma:      "comma",
	KindSemi:       "semi",
	KindEq:         "eq",
	KindPlus:       "plus",
	KindMinus:      "minus",
	KindStar:       "star",
	KindSlash:      "slash",
	KindFile:       "file",
	KindFn:         "fn",
	KindParamList:  "param_list",
	KindParam:      "param",
	KindBlock:      "block",
	KindLetStmt:    "let_stmt",
	KindExprStmt:   "expr_stmt",
	KindBinaryExpr: "binary_expr",
	KindUnaryExpr:  "unary_expr",
	KindParenExpr:  "paren_expr",
	KindCallExpr:   "call_expr",
	KindArgList:    "arg_list",
	KindNameRef:    "name_ref",
	KindLiteral:    "literal",
	KindErrorNode:  "error_node",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsTrivia reports whether the kind is whitespace or a comment.
func (k Kind) IsTrivia() bool {
	return k == KindWhitespace || k == KindComment
}

// IsToken reports whether the kind is a leaf token kind.
func (k Kind) IsToken() bool {
	return k < KindFile
}
