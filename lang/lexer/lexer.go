// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package lexer implements a single-pass, no-backtracking lexer for the Perl
// execution core's source front end.
//
// Design principles (carried over unchanged):
//   - single pass, no backtracking
//   - '#' introduces a line comment; there is no block-comment syntax
//   - sigils ($ @ % *) are folded into the following identifier to produce
//     SCALAR/ARRAYVAR/HASHVAR/GLOBVAR tokens directly, since Perl's variable
//     kind is part of its lexical spelling
//   - string literals ("...") support standard escape sequences; single-quoted
//     strings ('...') are lexed as STRING too, with escapes left undecoded for
//     the parser/compiler to interpret per-quote-style
package lexer

import (
	"github.com/perlrt/gperl/lang/token"
)

// Lexer holds the state for a single-pass tokenization run.
type Lexer struct {
	filename string
	input    []byte

	// pos is the index into input of the next byte to be loaded into ch.
	// After advance(), ch == input[pos-1] and pos points one past it.
	pos  int
	line int // 1-based current line number
	col  int // 1-based current column number

	ch byte // current character; 0 when past end
}

// New creates a new Lexer for the given filename and input string.
func New(filename, input string) *Lexer {
	l := &Lexer{
		filename: filename,
		input:    []byte(input),
		line:     1,
		col:      0,
	}
	l.advance() // prime l.ch with the first byte
	return l
}

// advance moves to the next byte in the input, updating line/column tracking.
// When the end of input is reached, ch is set to 0.
func (l *Lexer) advance() {
	if l.ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	if l.pos >= len(l.input) {
		l.ch = 0
		return
	}
	l.ch = l.input[l.pos]
	l.pos++
}

// peek returns the byte after the current character without consuming it.
// Returns 0 if at or past end.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

// currentPos returns a token.Position capturing the lexer's state right now.
// Call this before consuming the first character of a token.
func (l *Lexer) currentPos() token.Position {
	return token.Position{
		File:   l.filename,
		Line:   l.line,
		Column: l.col,
		Offset: l.pos - 1,
	}
}

func makeToken(typ token.Type, literal string, pos token.Position) token.Token {
	return token.Token{Type: typ, Literal: literal, Pos: pos}
}

// skipWhitespace consumes space, tab, carriage return, newline, and '#'
// line comments.
func (l *Lexer) skipWhitespace() {
	for {
		switch l.ch {
		case ' ', '\t', '\r', '\n':
			l.advance()
		case '#':
			for l.ch != '\n' && l.ch != 0 {
				l.advance()
			}
		default:
			return
		}
	}
}

// NextToken scans and returns the next token from the input.
// After EOF is reached, subsequent calls continue returning EOF tokens.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()

	pos := l.currentPos()
	ch := l.ch

	if ch == 0 {
		return makeToken(token.EOF, "", pos)
	}

	l.advance() // consume ch; from here on, l.ch is the character AFTER ch

	switch {
	// -------------------------------------------------------------------------
	// Sigil-prefixed variables
	// -------------------------------------------------------------------------
	case ch == '$':
		name := l.readSigilName()
		return makeToken(token.SCALAR, "$"+name, pos)

	case ch == '@':
		name := l.readSigilName()
		if name == "" {
			return makeToken(token.ILLEGAL, "@", pos)
		}
		return makeToken(token.ARRAYVAR, "@"+name, pos)

	case ch == '%':
		if isIdentStart(l.ch) || l.ch == '_' {
			name := l.readSigilName()
			return makeToken(token.HASHVAR, "%"+name, pos)
		}
		return makeToken(token.PERCENT, "%", pos)

	// -------------------------------------------------------------------------
	// Identifiers and keywords
	// -------------------------------------------------------------------------
	case isIdentStart(ch):
		lit := l.readIdentFromFirst(ch)
		// "::"-qualified barewords (Pkg::name) are re-assembled by the parser
		// from IDENT COLONCOLON IDENT sequences.
		typ := token.LookupIdent(lit)
		return makeToken(typ, lit, pos)

	// -------------------------------------------------------------------------
	// Numeric literals
	// -------------------------------------------------------------------------
	case isDigit(ch):
		typ, lit := l.readNumberFromFirst(ch)
		return makeToken(typ, lit, pos)

	// -------------------------------------------------------------------------
	// String literals
	// -------------------------------------------------------------------------
	case ch == '"':
		lit, ok := l.readQuotedBody('"')
		if !ok {
			return makeToken(token.ILLEGAL, lit, pos)
		}
		return makeToken(token.STRING, lit, pos)

	case ch == '\'':
		lit, ok := l.readQuotedBody('\'')
		if !ok {
			return makeToken(token.ILLEGAL, lit, pos)
		}
		return makeToken(token.STRING, lit, pos)

	// -------------------------------------------------------------------------
	// Slash: division or regex-adjacent contexts (treated as division; regex
	// literal parsing is an external collaborator's concern)
	// -------------------------------------------------------------------------
	case ch == '/':
		switch l.ch {
		case '/':
			l.advance()
			if l.ch == '=' {
				l.advance()
				return makeToken(token.DSLASHEQ, "//=", pos)
			}
			return makeToken(token.DSLASH, "//", pos)
		case '=':
			l.advance()
			return makeToken(token.SLASHEQ, "/=", pos)
		default:
			return makeToken(token.SLASH, "/", pos)
		}

	// -------------------------------------------------------------------------
	// Arithmetic and compound-assignment operators
	// -------------------------------------------------------------------------
	case ch == '+':
		switch l.ch {
		case '=':
			l.advance()
			return makeToken(token.PLUSEQ, "+=", pos)
		case '+':
			l.advance()
			return makeToken(token.INC, "++", pos)
		default:
			return makeToken(token.PLUS, "+", pos)
		}

	case ch == '-':
		switch l.ch {
		case '=':
			l.advance()
			return makeToken(token.MINUSEQ, "-=", pos)
		case '>':
			l.advance()
			return makeToken(token.ARROW, "->", pos)
		case '-':
			l.advance()
			return makeToken(token.DEC, "--", pos)
		default:
			return makeToken(token.MINUS, "-", pos)
		}

	case ch == '*':
		switch l.ch {
		case '*':
			l.advance()
			return makeToken(token.POW, "**", pos)
		case '=':
			l.advance()
			return makeToken(token.STAREQ, "*=", pos)
		default:
			return makeToken(token.STAR, "*", pos)
		}

	// -------------------------------------------------------------------------
	// Bitwise / logical operators
	// -------------------------------------------------------------------------
	case ch == '&':
		switch l.ch {
		case '&':
			l.advance()
			if l.ch == '=' {
				l.advance()
				return makeToken(token.ANDANDEQ, "&&=", pos)
			}
			return makeToken(token.ANDAND, "&&", pos)
		default:
			return makeToken(token.AMP, "&", pos)
		}

	case ch == '|':
		switch l.ch {
		case '|':
			l.advance()
			if l.ch == '=' {
				l.advance()
				return makeToken(token.OROREQ, "||=", pos)
			}
			return makeToken(token.OROR, "||", pos)
		default:
			return makeToken(token.PIPE, "|", pos)
		}

	case ch == '^':
		return makeToken(token.CARET, "^", pos)

	// -------------------------------------------------------------------------
	// Comparison and assignment operators
	// -------------------------------------------------------------------------
	case ch == '!':
		switch l.ch {
		case '=':
			l.advance()
			return makeToken(token.NEQ, "!=", pos)
		case '~':
			l.advance()
			return makeToken(token.NOTMATCH, "!~", pos)
		default:
			return makeToken(token.BANG, "!", pos)
		}

	case ch == '=':
		switch l.ch {
		case '=':
			l.advance()
			return makeToken(token.EQ, "==", pos)
		case '>':
			l.advance()
			return makeToken(token.FATARROW, "=>", pos)
		case '~':
			l.advance()
			return makeToken(token.MATCH, "=~", pos)
		default:
			return makeToken(token.ASSIGN, "=", pos)
		}

	case ch == '<':
		switch l.ch {
		case '<':
			l.advance()
			return makeToken(token.LSHIFT, "<<", pos)
		case '=':
			l.advance()
			if l.ch == '>' {
				l.advance()
				return makeToken(token.CMP, "<=>", pos)
			}
			return makeToken(token.LTE, "<=", pos)
		default:
			return makeToken(token.LT, "<", pos)
		}

	case ch == '>':
		switch l.ch {
		case '>':
			l.advance()
			return makeToken(token.RSHIFT, ">>", pos)
		case '=':
			l.advance()
			return makeToken(token.GTE, ">=", pos)
		default:
			return makeToken(token.GT, ">", pos)
		}

	// -------------------------------------------------------------------------
	// Dot: concatenation, dot-assign, or range (..)
	// -------------------------------------------------------------------------
	case ch == '.':
		switch {
		case l.ch == '.':
			l.advance()
			return makeToken(token.DOTDOT, "..", pos)
		case l.ch == '=':
			l.advance()
			return makeToken(token.DOTEQ, ".=", pos)
		default:
			return makeToken(token.DOT, ".", pos)
		}

	// -------------------------------------------------------------------------
	// Colon: label/ternary colon (:) or package separator (::)
	// -------------------------------------------------------------------------
	case ch == ':':
		if l.ch == ':' {
			l.advance()
			return makeToken(token.COLONCOLON, "::", pos)
		}
		return makeToken(token.COLON, ":", pos)

	// -------------------------------------------------------------------------
	// Single-character punctuation
	// -------------------------------------------------------------------------
	case ch == '~':
		return makeToken(token.TILDE, "~", pos)
	case ch == '\\':
		return makeToken(token.BACKSLASH, "\\", pos)
	case ch == '?':
		return makeToken(token.QUESTION, "?", pos)
	case ch == '(':
		return makeToken(token.LPAREN, "(", pos)
	case ch == ')':
		return makeToken(token.RPAREN, ")", pos)
	case ch == '[':
		return makeToken(token.LBRACKET, "[", pos)
	case ch == ']':
		return makeToken(token.RBRACKET, "]", pos)
	case ch == '{':
		return makeToken(token.LBRACE, "{", pos)
	case ch == '}':
		return makeToken(token.RBRACE, "}", pos)
	case ch == ',':
		return makeToken(token.COMMA, ",", pos)
	case ch == ';':
		return makeToken(token.SEMICOLON, ";", pos)
	}

	return makeToken(token.ILLEGAL, string([]byte{ch}), pos)
}

// Tokenize returns all tokens (including the final EOF) produced by repeated
// calls to NextToken.
func (l *Lexer) Tokenize() []token.Token {
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return toks
}

// ---------------------------------------------------------------------------
// Internal readers
// ---------------------------------------------------------------------------

// readSigilName reads the identifier (or special punctuation variable name
// like `_`, `@`, `1`..`9`) that follows a sigil already consumed by the
// caller.
func (l *Lexer) readSigilName() string {
	// Special punctuation variables: $_, $@, $1.."9", $!, $0
	if isDigit(l.ch) {
		buf := make([]byte, 0, 4)
		for isDigit(l.ch) {
			buf = append(buf, l.ch)
			l.advance()
		}
		return string(buf)
	}
	switch l.ch {
	case '_', '@', '!', '0', '/', '\\', '&':
		ch := l.ch
		l.advance()
		return string([]byte{ch})
	}
	if !isIdentStart(l.ch) {
		return ""
	}
	buf := make([]byte, 0, 16)
	for isIdentContinue(l.ch) || l.ch == ':' && l.peek() == ':' {
		if l.ch == ':' {
			buf = append(buf, ':', ':')
			l.advance()
			l.advance()
			continue
		}
		buf = append(buf, l.ch)
		l.advance()
	}
	return string(buf)
}

func (l *Lexer) readIdentFromFirst(first byte) string {
	buf := make([]byte, 1, 16)
	buf[0] = first
	for isIdentContinue(l.ch) {
		buf = append(buf, l.ch)
		l.advance()
	}
	return string(buf)
}

// readNumberFromFirst parses an integer or float literal given the
// already-consumed first digit `first`.
func (l *Lexer) readNumberFromFirst(first byte) (token.Type, string) {
	buf := make([]byte, 1, 24)
	buf[0] = first

	if first == '0' && (l.ch == 'x' || l.ch == 'X') {
		buf = append(buf, l.ch)
		l.advance()
		for isHexDigit(l.ch) {
			buf = append(buf, l.ch)
			l.advance()
		}
		return token.INT, string(buf)
	}

	for isDigit(l.ch) || l.ch == '_' {
		if l.ch != '_' {
			buf = append(buf, l.ch)
		}
		l.advance()
	}

	if l.ch == '.' && isDigit(l.peek()) {
		buf = append(buf, '.')
		l.advance()
		for isDigit(l.ch) {
			buf = append(buf, l.ch)
			l.advance()
		}
		if l.ch == 'e' || l.ch == 'E' {
			buf = append(buf, l.ch)
			l.advance()
			if l.ch == '+' || l.ch == '-' {
				buf = append(buf, l.ch)
				l.advance()
			}
			for isDigit(l.ch) {
				buf = append(buf, l.ch)
				l.advance()
			}
		}
		return token.FLOAT, string(buf)
	}

	return token.INT, string(buf)
}

// readQuotedBody reads the content of a quoted string literal after the
// opening quote has been consumed.  It returns the full literal — including
// both quote characters — and a bool that is false when the string was
// unterminated. Escape sequences are preserved verbatim; decoding is a
// compiler-time concern (single- vs double-quote semantics differ in Perl).
func (l *Lexer) readQuotedBody(quote byte) (string, bool) {
	buf := make([]byte, 1, 32)
	buf[0] = quote
	for {
		switch l.ch {
		case 0, '\n':
			return string(buf), false
		case '\\':
			buf = append(buf, '\\')
			l.advance()
			if l.ch == 0 {
				return string(buf), false
			}
			buf = append(buf, l.ch)
			l.advance()
		case quote:
			buf = append(buf, quote)
			l.advance()
			return string(buf), true
		default:
			buf = append(buf, l.ch)
			l.advance()
		}
	}
}

// ---------------------------------------------------------------------------
// Character classification helpers
// ---------------------------------------------------------------------------

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return (ch >= '0' && ch <= '9') ||
		(ch >= 'a' && ch <= 'f') ||
		(ch >= 'A' && ch <= 'F')
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentContinue(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
