// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package parser implements a recursive-descent / Pratt parser for the Perl
// execution core's source front end.
//
// Design overview (unchanged from the teacher):
//
//   - Declarations and statements are parsed with recursive descent.
//   - Expressions are parsed with a Pratt (top-down operator precedence)
//     table.
//   - Errors are collected rather than aborting; the parser attempts to
//     recover by skipping to the next semicolon or closing brace so that
//     subsequent statements can still be parsed.
//   - Comments are skipped by the lexer already; the parser never sees them.
package parser

import (
	"fmt"
	"strings"

	"github.com/perlrt/gperl/lang/ast"
	"github.com/perlrt/gperl/lang/lexer"
	"github.com/perlrt/gperl/lang/token"
)

// ---------------------------------------------------------------------------
// Precedence levels (Pratt), lowest to highest binding power.
// ---------------------------------------------------------------------------

type precedence int

const (
	precLowest precedence = iota
	precAssign            // = += .= ||= //= &&=
	precTernary           // ?:
	precRange             // ..
	precOrOrHigh          // ||
	precDefinedOr         // //
	precAndHigh           // &&
	precBitOr             // | ^
	precBitAnd            // &
	precEquality          // == != eq ne <=> cmp
	precRelational        // < > <= >= lt gt le ge
	precShift             // << >>
	precAdd               // + - .
	precMul               // * / %
	precMatch             // =~ !~
	precUnary             // ! ~ unary - \ ++ --
	precPow               // **
	precPostfix           // -> [] {} ()
)

var infixPrecedence = map[token.Type]precedence{
	token.OROR:     precOrOrHigh,
	token.DSLASH:   precDefinedOr,
	token.ANDAND:   precAndHigh,
	token.PIPE:     precBitOr,
	token.CARET:    precBitOr,
	token.AMP:      precBitAnd,
	token.EQ:       precEquality,
	token.NEQ:      precEquality,
	token.SEQ:      precEquality,
	token.SNEQ:     precEquality,
	token.CMP:      precEquality,
	token.SCMP:     precEquality,
	token.LT:       precRelational,
	token.GT:       precRelational,
	token.LTE:      precRelational,
	token.GTE:      precRelational,
	token.SLT:      precRelational,
	token.SGT:      precRelational,
	token.SLE:      precRelational,
	token.SGE:      precRelational,
	token.LSHIFT:   precShift,
	token.RSHIFT:   precShift,
	token.PLUS:     precAdd,
	token.MINUS:    precAdd,
	token.DOT:      precAdd,
	token.STAR:     precMul,
	token.SLASH:    precMul,
	token.PERCENT:  precMul,
	token.MATCH:    precMatch,
	token.NOTMATCH: precMatch,
	token.POW:      precPow,
	token.DOTDOT:   precRange,
	token.QUESTION: precTernary,
	token.ASSIGN:   precAssign,
	token.PLUSEQ:   precAssign,
	token.MINUSEQ:  precAssign,
	token.STAREQ:   precAssign,
	token.SLASHEQ:  precAssign,
	token.DOTEQ:    precAssign,
	token.OROREQ:   precAssign,
	token.ANDANDEQ: precAssign,
	token.DSLASHEQ: precAssign,
	token.ARROW:    precPostfix,
	token.LBRACKET: precPostfix,
	token.LBRACE:   precPostfix,
	token.LPAREN:   precPostfix,
}

// rightAssoc holds operators that bind right-to-left, so parseExpression
// must recurse at the SAME precedence rather than one level higher.
var rightAssoc = map[token.Type]bool{
	token.ASSIGN: true, token.PLUSEQ: true, token.MINUSEQ: true,
	token.STAREQ: true, token.SLASHEQ: true, token.DOTEQ: true,
	token.OROREQ: true, token.ANDANDEQ: true, token.DSLASHEQ: true,
	token.POW: true,
}

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

// Parser holds the mutable state for a single parse run.
type Parser struct {
	lex    *lexer.Lexer
	cur    token.Token
	peek   token.Token
	errors []error
}

func newParser(filename, source string) *Parser {
	p := &Parser{lex: lexer.New(filename, source)}
	p.advance()
	p.advance()
	return p
}

// Parse is the public entry point. It tokenizes source, runs the parser, and
// returns the program AST together with any non-fatal errors collected
// during parsing.
func Parse(filename, source string) (*ast.Program, []error) {
	p := newParser(filename, source)
	prog := p.parseProgram()
	return prog, p.errors
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
}

func (p *Parser) expect(typ token.Type) (token.Token, bool) {
	if p.cur.Type == typ {
		tok := p.cur
		p.advance()
		return tok, true
	}
	p.errorf(p.cur.Pos, "expected %s, got %s (%q)", typ, p.cur.Type, p.cur.Literal)
	return p.cur, false
}

func (p *Parser) curIs(typ token.Type) bool  { return p.cur.Type == typ }
func (p *Parser) peekIs(typ token.Type) bool { return p.peek.Type == typ }

func (p *Parser) skipTo(types ...token.Type) {
	for p.cur.Type != token.EOF {
		for _, t := range types {
			if p.cur.Type == t {
				return
			}
		}
		p.advance()
	}
}

func (p *Parser) errorf(pos token.Position, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Errorf("%s: %s", pos, msg))
}

// ---------------------------------------------------------------------------
// Program / statements
// ---------------------------------------------------------------------------

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.curIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	return prog
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Type {
	case token.MY, token.OUR, token.LOCAL, token.STATEKW:
		return p.parseVarDeclStmt()
	case token.SUB:
		return p.parseSubDeclStmt()
	case token.PACKAGE:
		return p.parsePackageDeclStmt()
	case token.IF, token.UNLESS:
		return p.parseIfStmt()
	case token.WHILE, token.UNTIL:
		return p.parseWhileStmt("")
	case token.FOR:
		return p.parseForStmt("")
	case token.FOREACH:
		return p.parseForeachStmt("")
	case token.RETURN:
		return p.parseReturnStmt()
	case token.LAST, token.NEXT, token.REDO:
		return p.parseLoopControlStmt()
	case token.GOTO:
		return p.parseGotoStmt()
	case token.DIE:
		return p.parseDieStmt()
	case token.WARN:
		return p.parseWarnStmt()
	case token.PRINT, token.SAY:
		return p.parsePrintStmt()
	case token.SEMICOLON:
		p.advance()
		return nil
	case token.IDENT:
		// LABEL: while/for/foreach
		if p.peekIs(token.COLON) {
			label := p.cur.Literal
			p.advance() // ident
			p.advance() // colon
			switch p.cur.Type {
			case token.WHILE, token.UNTIL:
				return p.parseWhileStmt(label)
			case token.FOR:
				return p.parseForStmt(label)
			case token.FOREACH:
				return p.parseForeachStmt(label)
			default:
				p.errorf(p.cur.Pos, "expected loop after label %q", label)
			}
		}
	}
	return p.parseExprStmt()
}

func (p *Parser) parseBlock() *ast.BlockExpr {
	tok := p.cur
	if !p.curIs(token.LBRACE) {
		p.expect(token.LBRACE) //nolint
		p.skipTo(token.RBRACE, token.EOF)
	} else {
		p.advance()
	}
	blk := &ast.BlockExpr{}
	blk.P = tok.Pos
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			blk.Statements = append(blk.Statements, stmt)
		}
	}
	p.expect(token.RBRACE) //nolint
	return blk
}

func (p *Parser) parseVarDeclStmt() ast.Statement {
	decl := p.parseVarDeclCore()
	p.expect(token.SEMICOLON) //nolint
	stmt := &ast.DeclStmt{D: decl}
	stmt.P = decl.Pos()
	return stmt
}

// parseVarDeclCore parses the my/our/local/state declaration itself,
// without consuming a terminating semicolon (shared by statement and
// for-init contexts).
func (p *Parser) parseVarDeclCore() ast.Declaration {
	pos := p.cur.Pos
	var kind ast.DeclKind
	switch p.cur.Type {
	case token.MY:
		kind = ast.DeclMy
	case token.OUR:
		kind = ast.DeclOur
	case token.LOCAL:
		kind = ast.DeclLocal
	case token.STATEKW:
		kind = ast.DeclState
	}
	p.advance()

	var names []*ast.Ident
	if p.curIs(token.LPAREN) {
		p.advance()
		for !p.curIs(token.RPAREN) && !p.curIs(token.EOF) {
			names = append(names, p.parseVarIdent())
			if p.curIs(token.COMMA) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(token.RPAREN) //nolint
	} else {
		names = append(names, p.parseVarIdent())
	}

	var value ast.Expression
	if p.curIs(token.ASSIGN) {
		p.advance()
		value = p.parseExpression(precAssign)
	}

	decl := &ast.VarDecl{Kind: kind, Names: names, Value: value}
	decl.P = pos
	return decl
}

// parseVarIdent parses a single sigiled variable ($x, @a, %h) as an
// *ast.Ident.
func (p *Parser) parseVarIdent() *ast.Ident {
	tok := p.cur
	id := &ast.Ident{}
	id.P = tok.Pos
	switch tok.Type {
	case token.SCALAR:
		id.Sigil = ast.SigilScalar
		id.Name = tok.Literal[1:]
	case token.ARRAYVAR:
		id.Sigil = ast.SigilArray
		id.Name = tok.Literal[1:]
	case token.HASHVAR:
		id.Sigil = ast.SigilHash
		id.Name = tok.Literal[1:]
	default:
		p.errorf(tok.Pos, "expected variable, got %s (%q)", tok.Type, tok.Literal)
	}
	p.advance()
	return id
}

func (p *Parser) parseSubDeclStmt() ast.Statement {
	pos := p.cur.Pos
	p.advance() // 'sub'
	name := p.cur.Literal
	p.expect(token.IDENT) //nolint
	body := p.parseBlock()
	decl := &ast.SubDecl{Name: name, Body: body}
	decl.P = pos
	stmt := &ast.DeclStmt{D: decl}
	stmt.P = pos
	return stmt
}

// parseSubExpr parses an anonymous subroutine expression `sub { ... }`
// (§4.C5 "Closure emission"), distinct from parseSubDeclStmt's named-sub
// form: no identifier follows `sub` in expression position.
func (p *Parser) parseSubExpr() ast.Expression {
	pos := p.cur.Pos
	p.advance() // 'sub'
	body := p.parseBlock()
	expr := &ast.SubExpr{Body: body}
	expr.P = pos
	return expr
}

func (p *Parser) parsePackageDeclStmt() ast.Statement {
	pos := p.cur.Pos
	p.advance()
	name := p.parsePackageName()
	p.expect(token.SEMICOLON) //nolint
	decl := &ast.PackageDecl{Name: name}
	decl.P = pos
	stmt := &ast.DeclStmt{D: decl}
	stmt.P = pos
	return stmt
}

func (p *Parser) parsePackageName() string {
	var sb strings.Builder
	sb.WriteString(p.cur.Literal)
	p.advance()
	for p.curIs(token.COLONCOLON) {
		p.advance()
		sb.WriteString("::")
		sb.WriteString(p.cur.Literal)
		p.advance()
	}
	return sb.String()
}

func (p *Parser) parseIfStmt() ast.Statement {
	pos := p.cur.Pos
	unless := p.curIs(token.UNLESS)
	p.advance()
	p.expect(token.LPAREN) //nolint
	cond := p.parseExpression(precLowest)
	p.expect(token.RPAREN) //nolint
	then := p.parseBlock()

	stmt := &ast.IfStmt{Unless: unless, Cond: cond, Then: then}
	stmt.P = pos

	if p.curIs(token.ELSIF) {
		stmt.Else = p.parseElsif()
	} else if p.curIs(token.ELSE) {
		p.advance()
		stmt.Else = p.parseBlock()
	}
	return stmt
}

func (p *Parser) parseElsif() ast.Statement {
	pos := p.cur.Pos
	p.advance() // 'elsif'
	p.expect(token.LPAREN) //nolint
	cond := p.parseExpression(precLowest)
	p.expect(token.RPAREN) //nolint
	then := p.parseBlock()
	stmt := &ast.IfStmt{Cond: cond, Then: then}
	stmt.P = pos
	if p.curIs(token.ELSIF) {
		stmt.Else = p.parseElsif()
	} else if p.curIs(token.ELSE) {
		p.advance()
		stmt.Else = p.parseBlock()
	}
	return stmt
}

func (p *Parser) parseWhileStmt(label string) ast.Statement {
	pos := p.cur.Pos
	until := p.curIs(token.UNTIL)
	p.advance()
	p.expect(token.LPAREN) //nolint
	cond := p.parseExpression(precLowest)
	p.expect(token.RPAREN) //nolint
	body := p.parseBlock()
	stmt := &ast.WhileStmt{Label: label, Until: until, Cond: cond, Body: body}
	stmt.P = pos
	return stmt
}

func (p *Parser) parseForStmt(label string) ast.Statement {
	pos := p.cur.Pos
	p.advance() // 'for'
	p.expect(token.LPAREN) //nolint

	var init ast.Statement
	if !p.curIs(token.SEMICOLON) {
		if p.curIs(token.MY) || p.curIs(token.OUR) || p.curIs(token.LOCAL) {
			decl := p.parseVarDeclCore()
			s := &ast.DeclStmt{D: decl}
			s.P = decl.Pos()
			init = s
		} else {
			expr := p.parseExpression(precLowest)
			s := &ast.ExprStmt{X: expr}
			s.P = expr.Pos()
			init = s
		}
	}
	p.expect(token.SEMICOLON) //nolint

	var cond ast.Expression
	if !p.curIs(token.SEMICOLON) {
		cond = p.parseExpression(precLowest)
	}
	p.expect(token.SEMICOLON) //nolint

	var post ast.Expression
	if !p.curIs(token.RPAREN) {
		post = p.parseExpression(precLowest)
	}
	p.expect(token.RPAREN) //nolint

	body := p.parseBlock()
	stmt := &ast.ForStmt{Label: label, Init: init, Cond: cond, Post: post, Body: body}
	stmt.P = pos
	return stmt
}

func (p *Parser) parseForeachStmt(label string) ast.Statement {
	pos := p.cur.Pos
	p.advance() // 'foreach'
	varMy := false
	if p.curIs(token.MY) {
		varMy = true
		p.advance()
	}
	v := p.parseVarIdent()
	p.expect(token.LPAREN) //nolint
	list := p.parseExpression(precLowest)
	p.expect(token.RPAREN) //nolint
	body := p.parseBlock()
	stmt := &ast.ForeachStmt{Label: label, VarMy: varMy, Var: v, List: list, Body: body}
	stmt.P = pos
	return stmt
}

func (p *Parser) parseReturnStmt() ast.Statement {
	pos := p.cur.Pos
	p.advance()
	var value ast.Expression
	if !p.curIs(token.SEMICOLON) && !p.isStmtModifierStart() {
		value = p.parseExpression(precLowest)
	}
	stmt := &ast.ReturnStmt{Value: value}
	stmt.P = pos
	return p.finishSimpleStmt(pos, stmt)
}

func (p *Parser) parseLoopControlStmt() ast.Statement {
	pos := p.cur.Pos
	kind := p.cur.Type
	p.advance()
	label := ""
	if p.curIs(token.IDENT) {
		label = p.cur.Literal
		p.advance()
	}
	stmt := &ast.LoopControlStmt{Kind: kind, Label: label}
	stmt.P = pos
	return p.finishSimpleStmt(pos, stmt)
}

// isStmtModifierStart reports whether the current token begins a trailing
// statement modifier (`if`/`unless`/`while`/`until`) rather than the start
// of an expression — lets callers with an optional leading expression (e.g.
// bare `return;`) tell "no value, modifier follows" from "value follows".
func (p *Parser) isStmtModifierStart() bool {
	switch p.cur.Type {
	case token.IF, token.UNLESS, token.WHILE, token.UNTIL:
		return true
	default:
		return false
	}
}

// finishSimpleStmt consumes an optional trailing statement modifier
// (`STMT if COND;`, `STMT unless COND;`, `STMT while COND;`, `STMT until
// COND;`) and the terminating semicolon, wrapping inner in an IfStmt/
// WhileStmt when a modifier is present. Used by every simple (non-block)
// statement form: return, die, warn, print/say, loop control, and bare
// expression statements.
func (p *Parser) finishSimpleStmt(pos token.Position, inner ast.Statement) ast.Statement {
	switch p.cur.Type {
	case token.IF, token.UNLESS:
		unless := p.curIs(token.UNLESS)
		p.advance()
		cond := p.parseExpression(precLowest)
		p.expect(token.SEMICOLON) //nolint
		blk := &ast.BlockExpr{Statements: []ast.Statement{inner}}
		blk.P = pos
		stmt := &ast.IfStmt{Unless: unless, Cond: cond, Then: blk}
		stmt.P = pos
		return stmt
	case token.WHILE, token.UNTIL:
		until := p.curIs(token.UNTIL)
		p.advance()
		cond := p.parseExpression(precLowest)
		p.expect(token.SEMICOLON) //nolint
		blk := &ast.BlockExpr{Statements: []ast.Statement{inner}}
		blk.P = pos
		stmt := &ast.WhileStmt{Until: until, Cond: cond, Body: blk}
		stmt.P = pos
		return stmt
	default:
		// The last statement of a block may omit its semicolon.
		if p.curIs(token.RBRACE) {
			return inner
		}
		p.expect(token.SEMICOLON) //nolint
		return inner
	}
}

func (p *Parser) parseGotoStmt() ast.Statement {
	pos := p.cur.Pos
	p.advance() // 'goto'
	stmt := &ast.GotoStmt{}
	stmt.P = pos
	if p.curIs(token.AMP) {
		p.advance()
		stmt.Sub = p.parseExpression(precUnary)
	} else if p.curIs(token.IDENT) {
		stmt.Label = p.cur.Literal
		p.advance()
	}
	if !p.curIs(token.RBRACE) {
		p.expect(token.SEMICOLON) //nolint
	}
	return stmt
}

func (p *Parser) parseDieStmt() ast.Statement {
	pos := p.cur.Pos
	p.advance()
	args := p.parseCallArgsBareword()
	stmt := &ast.DieStmt{Args: args}
	stmt.P = pos
	return p.finishSimpleStmt(pos, stmt)
}

func (p *Parser) parseWarnStmt() ast.Statement {
	pos := p.cur.Pos
	p.advance()
	args := p.parseCallArgsBareword()
	stmt := &ast.WarnStmt{Args: args}
	stmt.P = pos
	return p.finishSimpleStmt(pos, stmt)
}

func (p *Parser) parsePrintStmt() ast.Statement {
	pos := p.cur.Pos
	say := p.curIs(token.SAY)
	p.advance()
	args := p.parseCallArgsBareword()
	stmt := &ast.PrintStmt{Args: args, Say: say}
	stmt.P = pos
	return p.finishSimpleStmt(pos, stmt)
}

// parseCallArgsBareword parses a comma-separated argument list for
// print/say/die/warn, which accept arguments with or without surrounding
// parentheses.
func (p *Parser) parseCallArgsBareword() []ast.Expression {
	paren := false
	if p.curIs(token.LPAREN) {
		paren = true
		p.advance()
	}
	var args []ast.Expression
	for !p.curIs(token.SEMICOLON) && !p.curIs(token.EOF) {
		if paren && p.curIs(token.RPAREN) {
			break
		}
		args = append(args, p.parseExpression(precAssign))
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if paren {
		p.expect(token.RPAREN) //nolint
	}
	return args
}

func (p *Parser) parseExprStmt() ast.Statement {
	pos := p.cur.Pos
	expr := p.parseExpression(precLowest)
	if expr == nil {
		p.skipTo(token.SEMICOLON, token.EOF)
		if p.curIs(token.SEMICOLON) {
			p.advance()
		}
		return nil
	}
	inner := &ast.ExprStmt{X: expr}
	inner.P = pos
	return p.finishSimpleStmt(pos, inner)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression(prec precedence) ast.Expression {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}
	for {
		if (p.curIs(token.INC) || p.curIs(token.DEC)) && prec < precPostfix {
			// Postfix ++/-- builds the same node as the prefix form (Left
			// nil), so the expression's value is the updated operand.
			tok := p.cur
			p.advance()
			e := &ast.OperatorExpr{Op: tok.Type, Right: left}
			e.P = tok.Pos
			left = e
			continue
		}
		infixPrec, hasInfix := infixPrecedence[p.cur.Type]
		if !hasInfix {
			break
		}
		if rightAssoc[p.cur.Type] {
			if infixPrec < prec {
				break
			}
		} else if infixPrec <= prec {
			break
		}
		left = p.parseInfix(left, infixPrec)
		if left == nil {
			break
		}
	}
	return left
}

func (p *Parser) parsePrefix() ast.Expression {
	switch p.cur.Type {
	case token.INT, token.FLOAT:
		return p.parseNumberLiteral()
	case token.STRING:
		return p.parseStringLiteral()
	case token.TRUE_:
		tok := p.cur
		p.advance()
		b := &ast.BoolLiteral{Value: true}
		b.P = tok.Pos
		return b
	case token.FALSE_:
		tok := p.cur
		p.advance()
		b := &ast.BoolLiteral{Value: false}
		b.P = tok.Pos
		return b
	case token.UNDEF:
		tok := p.cur
		p.advance()
		u := &ast.UndefLiteral{}
		u.P = tok.Pos
		return u
	case token.WANTARRAY:
		tok := p.cur
		p.advance()
		w := &ast.WantarrayExpr{}
		w.P = tok.Pos
		return w
	case token.SCALAR, token.ARRAYVAR, token.HASHVAR:
		return p.parseVarIdent()
	case token.GLOBVAR:
		tok := p.cur
		p.advance()
		id := &ast.Ident{Sigil: ast.SigilGlob, Name: tok.Literal[1:]}
		id.P = tok.Pos
		return id
	case token.IDENT:
		return p.parseIdentOrCall()
	case token.AMP:
		return p.parseAmpCall()
	case token.BACKSLASH:
		tok := p.cur
		p.advance()
		target := p.parseExpression(precUnary)
		r := &ast.RefExpr{Target: target}
		r.P = tok.Pos
		return r
	case token.MINUS, token.BANG, token.TILDE, token.INC, token.DEC:
		return p.parseUnaryExpr()
	case token.LPAREN:
		return p.parseParenExpr()
	case token.LBRACKET:
		return p.parseArrayLiteral()
	case token.LBRACE:
		return p.parseHashLiteral()
	case token.EVAL:
		return p.parseEvalExpr()
	case token.DO:
		p.advance()
		return p.parseBlock()
	case token.SUB:
		return p.parseSubExpr()
	default:
		p.errorf(p.cur.Pos, "unexpected token %s (%q) in expression", p.cur.Type, p.cur.Literal)
		p.advance()
		return nil
	}
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	tok := p.cur
	p.advance()
	n := &ast.NumberLiteral{IsFloat: tok.Type == token.FLOAT, Text: tok.Literal}
	n.P = tok.Pos
	return n
}

// parseStringLiteral decodes a quoted literal's body and, for double-quoted
// strings, splits out $scalar/@array interpolations into StringParts.
func (p *Parser) parseStringLiteral() ast.Expression {
	tok := p.cur
	p.advance()
	raw := tok.Literal
	quote := raw[0]
	body := raw[1 : len(raw)-1]

	s := &ast.StringLiteral{}
	s.P = tok.Pos

	if quote == '\'' {
		s.Parts = []ast.StringPart{{Text: decodeSingleQuoteEscapes(body)}}
		return s
	}

	// Double-quoted: split on $name / @name interpolation points.
	var sb strings.Builder
	i := 0
	flush := func() {
		if sb.Len() > 0 {
			s.Parts = append(s.Parts, ast.StringPart{Text: sb.String()})
			sb.Reset()
		}
	}
	for i < len(body) {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			sb.WriteByte(decodeEscape(body[i+1]))
			i += 2
			continue
		}
		if (c == '$' || c == '@') && i+1 < len(body) && isIdentByte(body[i+1]) {
			flush()
			j := i + 1
			for j < len(body) && isIdentByte(body[j]) {
				j++
			}
			name := body[i+1 : j]
			sig := ast.SigilScalar
			if c == '@' {
				sig = ast.SigilArray
			}
			part := ast.StringPart{
				Expr:         &ast.Ident{Sigil: sig, Name: name},
				Interpolated: true,
			}
			s.Parts = append(s.Parts, part)
			i = j
			continue
		}
		sb.WriteByte(c)
		i++
	}
	flush()
	return s
}

func isIdentByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

func decodeEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return c
	}
}

func decodeSingleQuoteEscapes(body string) string {
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) && (body[i+1] == '\\' || body[i+1] == '\'') {
			sb.WriteByte(body[i+1])
			i++
			continue
		}
		sb.WriteByte(body[i])
	}
	return sb.String()
}

func (p *Parser) parseIdentOrCall() ast.Expression {
	tok := p.cur
	name := tok.Literal
	p.advance()
	for p.curIs(token.COLONCOLON) {
		p.advance()
		name += "::" + p.cur.Literal
		p.advance()
	}

	id := &ast.Ident{Name: name}
	id.P = tok.Pos

	if p.curIs(token.LPAREN) {
		p.advance()
		args := p.parseExprList(token.RPAREN)
		p.expect(token.RPAREN) //nolint
		call := &ast.CallExpr{Callee: id, Args: args}
		call.P = tok.Pos
		return call
	}
	return id
}

func (p *Parser) parseAmpCall() ast.Expression {
	tok := p.cur
	p.advance() // '&'
	name := p.cur.Literal
	p.advance()
	id := &ast.Ident{Name: name}
	id.P = tok.Pos
	call := &ast.CallExpr{Callee: id, Amp: true}
	call.P = tok.Pos
	if p.curIs(token.LPAREN) {
		p.advance()
		call.Args = p.parseExprList(token.RPAREN)
		p.expect(token.RPAREN) //nolint
	}
	return call
}

func (p *Parser) parseExprList(end token.Type) []ast.Expression {
	var list []ast.Expression
	for !p.curIs(end) && !p.curIs(token.EOF) {
		e := p.parseExpression(precAssign)
		if e == nil {
			break
		}
		list = append(list, e)
		if p.curIs(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return list
}

func (p *Parser) parseUnaryExpr() ast.Expression {
	tok := p.cur
	op := tok.Type
	p.advance()
	operand := p.parseExpression(precUnary)
	e := &ast.OperatorExpr{Op: op, Right: operand}
	e.P = tok.Pos
	return e
}

func (p *Parser) parseParenExpr() ast.Expression {
	tok := p.cur
	p.advance()
	if p.curIs(token.RPAREN) {
		p.advance()
		l := &ast.ListExpr{}
		l.P = tok.Pos
		return l
	}
	first := p.parseExpression(precAssign)
	if p.curIs(token.COMMA) || p.curIs(token.FATARROW) {
		elems := []ast.Expression{first}
		for p.curIs(token.COMMA) || p.curIs(token.FATARROW) {
			p.advance()
			if p.curIs(token.RPAREN) {
				break
			}
			elems = append(elems, p.parseExpression(precAssign))
		}
		p.expect(token.RPAREN) //nolint
		l := &ast.ListExpr{Elems: elems}
		l.P = tok.Pos
		return l
	}
	p.expect(token.RPAREN) //nolint
	return first
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	tok := p.cur
	p.advance()
	elems := p.parseExprList(token.RBRACKET)
	p.expect(token.RBRACKET) //nolint
	a := &ast.ArrayLiteral{Elems: elems}
	a.P = tok.Pos
	return a
}

func (p *Parser) parseHashLiteral() ast.Expression {
	tok := p.cur
	p.advance()
	h := &ast.HashLiteral{}
	h.P = tok.Pos
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		key := p.parseExpression(precAssign)
		h.Keys = append(h.Keys, key)
		if p.curIs(token.FATARROW) || p.curIs(token.COMMA) {
			p.advance()
		}
		if p.curIs(token.RBRACE) {
			u := &ast.UndefLiteral{}
			u.P = p.cur.Pos
			h.Values = append(h.Values, u)
			break
		}
		val := p.parseExpression(precAssign)
		h.Values = append(h.Values, val)
		if p.curIs(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RBRACE) //nolint
	return h
}

func (p *Parser) parseEvalExpr() ast.Expression {
	tok := p.cur
	p.advance()
	if p.curIs(token.LBRACE) {
		body := p.parseBlock()
		e := &ast.EvalBlockExpr{Body: body}
		e.P = tok.Pos
		return e
	}
	src := p.parseExpression(precUnary)
	e := &ast.EvalStringExpr{Source: src}
	e.P = tok.Pos
	return e
}

func (p *Parser) parseInfix(left ast.Expression, prec precedence) ast.Expression {
	switch p.cur.Type {
	case token.ASSIGN, token.PLUSEQ, token.MINUSEQ, token.STAREQ, token.SLASHEQ,
		token.DOTEQ, token.OROREQ, token.ANDANDEQ, token.DSLASHEQ:
		return p.parseAssignExpr(left, prec)
	case token.QUESTION:
		return p.parseTernaryExpr(left)
	case token.DOTDOT:
		tok := p.cur
		p.advance()
		right := p.parseExpression(prec)
		e := &ast.RangeExpr{Low: left, High: right}
		e.P = tok.Pos
		return e
	case token.ARROW:
		return p.parseArrowExpr(left)
	case token.LBRACKET:
		return p.parseBareIndexExpr(left, false)
	case token.LBRACE:
		return p.parseBareIndexExpr(left, true)
	default:
		return p.parseBinaryExpr(left, prec)
	}
}

func (p *Parser) parseAssignExpr(left ast.Expression, prec precedence) ast.Expression {
	tok := p.cur
	op := tok.Type
	p.advance()
	right := p.parseExpression(prec - 1) // right-assoc
	e := &ast.AssignExpr{Op: op, Target: left, Value: right}
	e.P = tok.Pos
	return e
}

func (p *Parser) parseTernaryExpr(cond ast.Expression) ast.Expression {
	tok := p.cur
	p.advance() // '?'
	then := p.parseExpression(precAssign)
	p.expect(token.COLON) //nolint
	els := p.parseExpression(precTernary - 1)
	e := &ast.TernaryExpr{Cond: cond, Then: then, Else: els}
	e.P = tok.Pos
	return e
}

func (p *Parser) parseBinaryExpr(left ast.Expression, prec precedence) ast.Expression {
	tok := p.cur
	op := tok.Type
	p.advance()
	right := p.parseExpression(prec)
	e := &ast.OperatorExpr{Op: op, Left: left, Right: right}
	e.P = tok.Pos
	return e
}

// parseArrowExpr handles ->method(...), ->$m(...), ->[idx], ->{key}, and
// ->(args).
func (p *Parser) parseArrowExpr(left ast.Expression) ast.Expression {
	tok := p.cur
	p.advance() // '->'
	switch p.cur.Type {
	case token.LBRACKET:
		p.advance()
		idx := p.parseExpression(precLowest)
		p.expect(token.RBRACKET) //nolint
		e := &ast.IndexExpr{Container: left, Index: idx, Arrow: true}
		e.P = tok.Pos
		return e
	case token.LBRACE:
		p.advance()
		idx := p.parseHashKey()
		p.expect(token.RBRACE) //nolint
		e := &ast.IndexExpr{Container: left, Index: idx, IsHash: true, Arrow: true}
		e.P = tok.Pos
		return e
	case token.LPAREN:
		p.advance()
		args := p.parseExprList(token.RPAREN)
		p.expect(token.RPAREN) //nolint
		e := &ast.CallExpr{Callee: left, Args: args}
		e.P = tok.Pos
		return e
	case token.SCALAR:
		dyn := p.parseVarIdent()
		p.expect(token.LPAREN) //nolint
		args := p.parseExprList(token.RPAREN)
		p.expect(token.RPAREN) //nolint
		e := &ast.MethodCallExpr{Receiver: left, Dynamic: dyn, Args: args}
		e.P = tok.Pos
		return e
	default:
		name := p.cur.Literal
		p.advance()
		var args []ast.Expression
		if p.curIs(token.LPAREN) {
			p.advance()
			args = p.parseExprList(token.RPAREN)
			p.expect(token.RPAREN) //nolint
		}
		e := &ast.MethodCallExpr{Receiver: left, Method: name, Args: args}
		e.P = tok.Pos
		return e
	}
}

// parseBareIndexExpr handles $a[0] / $h{key} (no arrow) immediately
// following a variable or another index expression (chained subscripts).
func (p *Parser) parseBareIndexExpr(left ast.Expression, isHash bool) ast.Expression {
	tok := p.cur
	if isHash {
		p.advance()
		key := p.parseHashKey()
		p.expect(token.RBRACE) //nolint
		e := &ast.IndexExpr{Container: left, Index: key, IsHash: true}
		e.P = tok.Pos
		return e
	}
	p.advance()
	idx := p.parseExpression(precLowest)
	p.expect(token.RBRACKET) //nolint
	e := &ast.IndexExpr{Container: left, Index: idx}
	e.P = tok.Pos
	return e
}

// parseHashKey parses a hash subscript, treating a bareword as an implicit
// string key (Perl's auto-quoting of simple hash keys).
func (p *Parser) parseHashKey() ast.Expression {
	if p.curIs(token.IDENT) && p.peekIs(token.RBRACE) {
		tok := p.cur
		p.advance()
		s := &ast.StringLiteral{Parts: []ast.StringPart{{Text: tok.Literal}}}
		s.P = tok.Pos
		return s
	}
	return p.parseExpression(precLowest)
}
