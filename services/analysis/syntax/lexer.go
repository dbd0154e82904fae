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

// token is a lexed piece of source text. The concatenation of all
// token texts reproduces the input exactly.
type token struct {
	kind Kind
	text string
}

// lex splits text into tokens. It never fails: bytes that do not start
// any recognized token become KindErrorToken tokens, one byte each, so
// the token stream stays lossless.
func lex(text string) []token {
	var toks []token
	i := 0
	n := len(text)
	for i < n {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			j := i + 1
			for j < n && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
				j++
			}
			toks = append(toks, token{KindWhitespace, text[i:j]})
			i = j
		case c == '/' && i+1 < n && text[i+1] == '/':
			j := i + 2
			for j < n && text[j] != '\n' {
				j++
			}
			toks = append(toks, token{KindComment, text[i:j]})
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < n && isIdentContinue(text[j]) {
				j++
			}
			word := text[i:j]
			toks = append(toks, token{keywordOrIdent(word), word})
			i = j
		case c >= '0' && c <= '9':
			j := i + 1
			for j < n && text[j] >= '0' && text[j] <= '9' {
				j++
			}
			toks = append(toks, token{KindNumber, text[i:j]})
			i = j
		default:
			kind, ok := punctKind(c)
			if !ok {
				kind = KindErrorToken
			}
			toks = append(toks, token{kind, text[i : i+1]})
			i++
		}
	}
	return toks
}

func keywordOrIdent(word string) Kind {
	switch word {
	case "fn":
		return KindFnKw
	case "let":
		return KindLetKw
	}
	return KindIdent
}

func punctKind(c byte) (Kind, bool) {
	switch c {
	case '(':
		return KindLParen, true
	case ')':
		return KindRParen, true
	case '{':
		return KindLBrace, true
	case '}':
		return KindRBrace, true
	case ',':
		return KindComma, true
	case ';':
		return KindSemi, true
	case '=':
		return KindEq, true
	case '+':
		return KindPlus, true
	case '-':
		return KindMinus, true
	case '*':
		return KindStar, true
	case '/':
		return KindSlash, true
	}
	return 0, false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentContinue(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
