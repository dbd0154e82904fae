// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syntax implements a resilient, lossless parser for the
// analysis service's subject language: a small expression language
// with function declarations, let bindings, calls, and arithmetic.
//
// The parser never fails. Malformed input produces a complete tree
// with explicit error nodes where the grammar could not be matched,
// and one positioned SyntaxError per deviation. Every byte of the
// input, trivia included, is reachable by walking the tree, so the
// tree reconstructs the source text exactly.
//
// Trees use a green/red split: immutable position-independent green
// nodes shared across revisions, and on-demand red cursors carrying
// absolute offsets. Reparse exploits the sharing to rebuild only the
// region touched by an edit.
package syntax

import (
	"context"
	"time"
)

// kindEOF is a sentinel returned by peek at end of input. It is never
// stored in a tree.
const kindEOF Kind = 0xFF

// Parse builds a lossless syntax tree from text.
//
// Description:
//
//	Parse is total and deterministic: the same text always yields a
//	structurally identical tree with identical errors, which the query
//	engine's memoization depends on. Syntax errors are embedded as
//	diagnostics, never returned as a failure.
//
// Inputs:
//   - text: Raw source text. Any byte sequence is accepted.
//
// Outputs:
//   - *Tree: Complete tree covering every input byte. Never nil.
//
// Thread Safety: safe for concurrent use.
func Parse(text string) *Tree {
	start := time.Now()
	toks := lex(text)
	p := &parser{toks: toks}
	root := p.parseFile()
	recordParse(context.Background(), time.Since(start), len(p.errs), false)
	return &Tree{root: root, text: text, errors: p.errs}
}

type frame struct {
	kind     Kind
	children []*Green
}

type parser struct {
	toks   []token
	pos    int
	offset int
	stack  []frame
	errs   []SyntaxError
}

func (p *parser) top() *frame {
	return &p.stack[len(p.stack)-1]
}

func (p *parser) start(kind Kind) {
	p.stack = append(p.stack, frame{kind: kind})
}

func (p *parser) finish() {
	f := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	node := newNode(f.kind, f.children)
	parent := p.top()
	parent.children = append(parent.children, node)
}

func (p *parser) finishRoot() *Green {
	f := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return newNode(f.kind, f.children)
}

// checkpoint flushes pending trivia and marks the position where the
// next expression begins, so a later startAt can wrap it.
func (p *parser) checkpoint() int {
	p.flushTrivia()
	return len(p.top().children)
}

// startAt opens a node that retroactively contains everything emitted
// since the checkpoint. Used to build left-nested binary expressions
// and call expressions.
func (p *parser) startAt(cp int, kind Kind) {
	f := p.top()
	moved := append([]*Green(nil), f.children[cp:]...)
	f.children = f.children[:cp]
	p.stack = append(p.stack, frame{kind: kind, children: moved})
}

func (p *parser) addLeaf(t token) {
	f := p.top()
	f.children = append(f.children, newLeaf(t.kind, t.text))
	p.offset += len(t.text)
	p.pos++
}

func (p *parser) flushTrivia() {
	for p.pos < len(p.toks) && p.toks[p.pos].kind.IsTrivia() {
		p.addLeaf(p.toks[p.pos])
	}
}

// peek returns the kind of the next non-trivia token, or kindEOF.
func (p *parser) peek() Kind {
	for i := p.pos; i < len(p.toks); i++ {
		if !p.toks[i].kind.IsTrivia() {
			return p.toks[i].kind
		}
	}
	return kindEOF
}

// peekOffset returns the byte offset of the next non-trivia token, or
// of end-of-input.
func (p *parser) peekOffset() int {
	off := p.offset
	for i := p.pos; i < len(p.toks); i++ {
		if !p.toks[i].kind.IsTrivia() {
			return off
		}
		off += len(p.toks[i].text)
	}
	return off
}

// bump consumes the next non-trivia token (and any trivia before it)
// into the current node.
func (p *parser) bump() {
	p.flushTrivia()
	if p.pos < len(p.toks) {
		p.addLeaf(p.toks[p.pos])
	}
}

// bumpError consumes the next token wrapped in an error node.
func (p *parser) bumpError() {
	p.flushTrivia()
	p.start(KindErrorNode)
	if p.pos < len(p.toks) {
		p.addLeaf(p.toks[p.pos])
	}
	p.finish()
}

// errorf records a syntax error at the next non-trivia position.
func (p *parser) errorf(msg string) {
	p.errs = append(p.errs, SyntaxError{Offset: p.peekOffset(), Message: msg})
}

// missing records an error and emits a zero-width error node standing
// in for the expected production.
func (p *parser) missing(msg string) {
	p.errorf(msg)
	p.flushTrivia()
	f := p.top()
	f.children = append(f.children, newNode(KindErrorNode, nil))
}

func (p *parser) parseFile() *Green {
	p.start(KindFile)
	for p.peek() != kindEOF {
		// Trivia between items stays at file level so edits in it do
		// not dirty item subtrees.
		p.flushTrivia()
		if p.peek() == KindFnKw {
			p.parseFn()
			continue
		}
		p.errorf("expected 'fn'")
		p.start(KindErrorNode)
		for p.peek() != kindEOF && p.peek() != KindFnKw {
			p.bump()
		}
		p.finish()
	}
	p.flushTrivia()
	return p.finishRoot()
}

func (p *parser) parseFn() {
	p.flushTrivia()
	p.start(KindFn)
	p.bump() // fn
	if p.peek() == KindIdent {
		p.bump()
	} else {
		p.missing("expected function name")
	}
	if p.peek() == KindLParen {
		p.parseParamList()
	} else {
		p.missing("expected '('")
	}
	if p.peek() == KindLBrace {
		p.parseBlock()
	} else {
		p.missing("expected '{'")
	}
	p.finish()
}

func (p *parser) parseParamList() {
	p.flushTrivia()
	p.start(KindParamList)
	p.bump() // (
	for p.peek() != KindRParen && p.peek() != kindEOF && p.peek() != KindLBrace {
		switch p.peek() {
		case KindIdent:
			p.flushTrivia()
			p.start(KindParam)
			p.bump()
			p.finish()
		case KindComma:
			p.bump()
		default:
			p.errorf("expected parameter name")
			p.bumpError()
		}
	}
	if p.peek() == KindRParen {
		p.bump()
	} else {
		p.missing("expected ')'")
	}
	p.finish()
}

func (p *parser) parseBlock() {
	p.flushTrivia()
	p.start(KindBlock)
	p.bump() // {
	for p.peek() != KindRBrace && p.peek() != kindEOF {
		// An unclosed block must not swallow the next item.
		if p.peek() == KindFnKw {
			break
		}
		p.parseStmt()
	}
	if p.peek() == KindRBrace {
		p.bump()
	} else {
		p.missing("expected '}'")
	}
	p.finish()
}

func (p *parser) parseStmt() {
	switch {
	case p.peek() == KindLetKw:
		p.flushTrivia()
		p.start(KindLetStmt)
		p.bump() // let
		if p.peek() == KindIdent {
			p.bump()
		} else {
			p.missing("expected name after 'let'")
		}
		if p.peek() == KindEq {
			p.bump()
		} else {
			p.missing("expected '='")
		}
		p.parseExpr(1)
		if p.peek() == KindSemi {
			p.bump()
		}
		p.finish()
	case p.peek() == KindSemi:
		p.bump()
	case canStartExpr(p.peek()):
		p.flushTrivia()
		p.start(KindExprStmt)
		p.parseExpr(1)
		if p.peek() == KindSemi {
			p.bump()
		}
		p.finish()
	default:
		p.errorf("expected statement")
		p.bumpError()
	}
}

func canStartExpr(k Kind) bool {
	switch k {
	case KindIdent, KindNumber, KindLParen, KindMinus:
		return true
	}
	return false
}

func binPrec(k Kind) int {
	switch k {
	case KindPlus, KindMinus:
		return 1
	case KindStar, KindSlash:
		return 2
	}
	return 0
}

func (p *parser) parseExpr(minPrec int) {
	cp := p.checkpoint()
	p.parseUnary()
	for {
		prec := binPrec(p.peek())
		if prec == 0 || prec < minPrec {
			return
		}
		p.startAt(cp, KindBinaryExpr)
		p.bump() // operator
		p.parseExpr(prec + 1)
		p.finish()
	}
}

func (p *parser) parseUnary() {
	if p.peek() == KindMinus {
		p.flushTrivia()
		p.start(KindUnaryExpr)
		p.bump()
		p.parseUnary()
		p.finish()
		return
	}
	p.parsePrimary()
}

func (p *parser) parsePrimary() {
	switch p.peek() {
	case KindNumber:
		p.flushTrivia()
		p.start(KindLiteral)
		p.bump()
		p.finish()
	case KindIdent:
		cp := p.checkpoint()
		p.start(KindNameRef)
		p.bump()
		p.finish()
		if p.peek() == KindLParen {
			p.startAt(cp, KindCallExpr)
			p.parseArgList()
			p.finish()
		}
	case KindLParen:
		p.flushTrivia()
		p.start(KindParenExpr)
		p.bump()
		p.parseExpr(1)
		if p.peek() == KindRParen {
			p.bump()
		} else {
			p.missing("expected ')'")
		}
		p.finish()
	default:
		p.missing("expected expression")
	}
}

func (p *parser) parseArgList() {
	p.flushTrivia()
	p.start(KindArgList)
	p.bump() // (
	for p.peek() != KindRParen && p.peek() != kindEOF && p.peek() != KindRBrace && p.peek() != KindSemi {
		switch {
		case canStartExpr(p.peek()):
			p.parseExpr(1)
		case p.peek() == KindComma:
			p.bump()
		default:
			p.errorf("expected argument")
			p.bumpError()
		}
	}
	if p.peek() == KindRParen {
		p.bump()
	} else {
		p.missing("expected ')'")
	}
	p.finish()
}

// parseBlockFragment parses text that is expected to be exactly one
// block, for incremental reparsing. Reports ok=false when the text is
// not a clean standalone block, in which case the caller falls back to
// a full parse.
func parseBlockFragment(text string) (*Green, []SyntaxError, bool) {
	toks := lex(text)
	p := &parser{toks: toks}
	if p.peek() != KindLBrace || p.peekOffset() != 0 {
		return nil, nil, false
	}
	p.start(KindFile) // scratch root to collect the block
	p.parseBlock()
	if p.pos != len(p.toks) {
		return nil, nil, false
	}
	root := p.finishRoot()
	if len(root.children) != 1 || root.children[0].kind != KindBlock {
		return nil, nil, false
	}
	block := root.children[0]
	if block.width != len(text) {
		return nil, nil, false
	}
	return block, p.errs, true
}
