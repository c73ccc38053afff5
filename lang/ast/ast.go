// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ast defines the syntax tree produced by the parser and consumed by
// the capture analyzer and bytecode compiler. Every node carries its source
// Position so the compiler can bake "at FILE line N" strings into die/warn
// sites without per-invocation work.
package ast

import "github.com/perlrt/gperl/lang/token"

// Node is the base interface implemented by every AST node.
type Node interface {
	Pos() token.Position
	node()
}

// Expression is a node that yields a value (in whatever context it is
// evaluated: void, scalar, or list).
type Expression interface {
	Node
	expressionNode()
}

// Statement is a node executed for effect.
type Statement interface {
	Node
	statementNode()
}

// Declaration is a top-level or block-scoped declaration: a sub, package, or
// lexical variable declaration.
type Declaration interface {
	Node
	declarationNode()
}

type base struct {
	P token.Position
}

func (b base) Pos() token.Position { return b.P }
func (base) node()                 {}

// Program is the root node: a file's top-level statement list.
type Program struct {
	base
	Statements []Statement
}

// ---------------------------------------------------------------------------
// Identifier / literal / operator expression nodes (§6 external-interface
// node categories)
// ---------------------------------------------------------------------------

// Sigil distinguishes the kind of a variable reference by its leading
// punctuation character.
type Sigil byte

const (
	SigilScalar Sigil = '$'
	SigilArray  Sigil = '@'
	SigilHash   Sigil = '%'
	SigilGlob   Sigil = '*'
)

// Ident is an identifier node: a variable reference ($x, @a, %h, *g) or a
// bareword (function/package name).
type Ident struct {
	base
	Sigil Sigil  // zero value for barewords
	Name  string // name without sigil; may be package-qualified (Foo::Bar::baz)
}

func (*Ident) expressionNode() {}

// NumberLiteral is a number node that keeps the literal's original source
// spelling in Text (§6). The compiler derives the numeric value from Text
// and emits only that value; the spelling is not kept at run time.
type NumberLiteral struct {
	base
	IsFloat bool
	Text    string // original source spelling
}

func (*NumberLiteral) expressionNode() {}

// StringLiteral is a string node. Interpolation of embedded $scalar/@array
// references (double-quoted strings) is resolved by the parser into Parts;
// a single-quoted or non-interpolating string has exactly one StringPart
// with Interpolated == false.
type StringLiteral struct {
	base
	Parts []StringPart
}

func (*StringLiteral) expressionNode() {}

// StringPart is either a literal text run or an interpolated expression
// inside a double-quoted string.
type StringPart struct {
	Text         string     // literal text (already escape-decoded), when Expr == nil
	Expr         Expression // interpolated sub-expression, when non-nil
	Interpolated bool
}

// BoolLiteral, UndefLiteral are the remaining scalar literal forms.
type BoolLiteral struct {
	base
	Value bool
}

func (*BoolLiteral) expressionNode() {}

type UndefLiteral struct {
	base
}

func (*UndefLiteral) expressionNode() {}

// ListExpr is a list node: a parenthesized, comma-separated expression list,
// e.g. the RHS of `my ($n, $acc) = @_;` or `(1, 2, 3)`.
type ListExpr struct {
	base
	Elems []Expression
}

func (*ListExpr) expressionNode() {}

// ArrayLiteral is `[ ... ]` — an anonymous array-reference constructor.
type ArrayLiteral struct {
	base
	Elems []Expression
}

func (*ArrayLiteral) expressionNode() {}

// HashLiteral is `{ ... }` used in expression position as an anonymous
// hash-reference constructor (key/value pairs, keys evaluated in order).
type HashLiteral struct {
	base
	Keys   []Expression
	Values []Expression
}

func (*HashLiteral) expressionNode() {}

// OperatorExpr is the generic operator node (§6): a prefix or binary
// operator applied to one or two operands. Binary nodes (explicitly named
// in §6) are OperatorExpr with both operands set.
type OperatorExpr struct {
	base
	Op    token.Type
	Left  Expression // nil for prefix operators
	Right Expression
}

func (*OperatorExpr) expressionNode() {}

// AssignExpr covers `=`, `+=`, `.=`, `||=`, `//=`, etc.
type AssignExpr struct {
	base
	Op     token.Type // ASSIGN, PLUSEQ, DOTEQ, OROREQ, ANDANDEQ, DSLASHEQ, ...
	Target Expression
	Value  Expression
}

func (*AssignExpr) expressionNode() {}

// IndexExpr is array/hash element access: `$a[0]`, `$h{key}`, `$ref->[0]`,
// `$ref->{key}`.
type IndexExpr struct {
	base
	Container Expression
	Index     Expression
	IsHash    bool // true for {...}, false for [...]
	Arrow     bool // true when reached via -> (dereferencing)
}

func (*IndexExpr) expressionNode() {}

// CallExpr is a subroutine call: `name(args...)`, `&name(args...)`, or a
// call through a CODE_REF value (`$coderef->(args...)`).
type CallExpr struct {
	base
	Callee Expression // Ident for named calls, any Expression for $ref->(...)
	Args   []Expression
	Amp    bool // explicit &name(...) call form (bypasses prototype checks)
}

func (*CallExpr) expressionNode() {}

// MethodCallExpr is `$obj->method(args...)` or `$obj->$methodname(args...)`.
type MethodCallExpr struct {
	base
	Receiver Expression
	Method   string     // static method name; empty when Dynamic != nil
	Dynamic  Expression // dynamic method-name expression ($obj->$m())
	Args     []Expression
}

func (*MethodCallExpr) expressionNode() {}

// RefExpr is `\expr`: take a reference.
type RefExpr struct {
	base
	Target Expression
}

func (*RefExpr) expressionNode() {}

// DerefExpr is `@{$ref}`, `%{$ref}`, `${$ref}`, `&{$ref}`.
type DerefExpr struct {
	base
	Sigil  Sigil
	Target Expression
}

func (*DerefExpr) expressionNode() {}

// RangeExpr is `lo .. hi`.
type RangeExpr struct {
	base
	Low, High Expression
}

func (*RangeExpr) expressionNode() {}

// TernaryExpr is `cond ? a : b`.
type TernaryExpr struct {
	base
	Cond, Then, Else Expression
}

func (*TernaryExpr) expressionNode() {}

// SubExpr is an anonymous subroutine expression: `sub { ... }`. Named subs
// are SubDecl (a Declaration); SubExpr produces a CODE_REF value directly.
type SubExpr struct {
	base
	Body *BlockExpr
}

func (*SubExpr) expressionNode() {}

// BlockExpr is the block node (§6): a brace-delimited statement sequence,
// usable in expression position (e.g. the body of eval BLOCK, or a bare
// `do { ... }`). Its value in non-void context is the value of its last
// statement.
type BlockExpr struct {
	base
	Statements []Statement
}

func (*BlockExpr) expressionNode() {}

// BlockExpr also satisfies Statement so it can sit directly in IfStmt.Else
// (a bare `else { ... }` block) without a wrapping ExprStmt.
func (*BlockExpr) statementNode() {}

// EvalBlockExpr is `eval { ... }`: executes Body, catching any die into
// `$@`.
type EvalBlockExpr struct {
	base
	Body *BlockExpr
}

func (*EvalBlockExpr) expressionNode() {}

// EvalStringExpr is `eval STRING` / `eval $x`: compiles and runs Source as
// fresh Perl code at runtime.
type EvalStringExpr struct {
	base
	Source Expression
}

func (*EvalStringExpr) expressionNode() {}

// TrExpr is `$target =~ tr/SEARCH/REPLACE/FLAGS` reduced to its load-bearing
// fields. With Replace == "" and no /d or /r flag it is a pure counting
// operation — the single case the read-only invariant carves out (§4.C1).
type TrExpr struct {
	base
	Target  Expression
	Search  string
	Replace string
	Flags   string
}

func (*TrExpr) expressionNode() {}

// WantarrayExpr is the `wantarray` builtin.
type WantarrayExpr struct {
	base
}

func (*WantarrayExpr) expressionNode() {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// ExprStmt wraps an expression evaluated for its side effects (void
// context).
type ExprStmt struct {
	base
	X Expression
}

func (*ExprStmt) statementNode() {}

// DeclStmt wraps a Declaration appearing where a statement is expected (my/
// our/local/sub/package).
type DeclStmt struct {
	base
	D Declaration
}

func (*DeclStmt) statementNode() {}

// ReturnStmt is `return EXPR;` or bare `return;`.
type ReturnStmt struct {
	base
	Value Expression // nil for bare return
}

func (*ReturnStmt) statementNode() {}

// IfStmt covers `if`/`unless` with an elsif chain and optional else,
// collapsed into nested IfStmt.Else.
type IfStmt struct {
	base
	Unless bool
	Cond   Expression
	Then   *BlockExpr
	Else   Statement // *IfStmt (elsif) or *BlockExpr (else) or nil
}

func (*IfStmt) statementNode() {}

// WhileStmt covers `while`/`until`, with an optional Label for `last LABEL`
// etc (label nodes, §6).
type WhileStmt struct {
	base
	Label string
	Until bool
	Cond  Expression
	Body  *BlockExpr
}

func (*WhileStmt) statementNode() {}

// ForStmt is the C-style three-clause for loop (the for3 node named in §6):
// `for (init; cond; post) { ... }`.
type ForStmt struct {
	base
	Label string
	Init  Statement // DeclStmt or ExprStmt; nil if omitted
	Cond  Expression
	Post  Expression
	Body  *BlockExpr
}

func (*ForStmt) statementNode() {}

// ForeachStmt is `foreach my $x (LIST) { ... }`.
type ForeachStmt struct {
	base
	Label string
	VarMy bool
	Var   *Ident
	List  Expression
	Body  *BlockExpr
}

func (*ForeachStmt) statementNode() {}

// LoopControlStmt covers `last`, `next`, `redo`, each optionally targeting a
// LABEL (the label node, §6).
type LoopControlStmt struct {
	base
	Kind  token.Type // LAST, NEXT, REDO
	Label string
}

func (*LoopControlStmt) statementNode() {}

// GotoStmt covers `goto &NAME` / `goto &$coderef` (tail call) and
// `goto LABEL`.
type GotoStmt struct {
	base
	Sub   Expression // non-nil for goto &NAME / goto &$coderef
	Label string     // non-empty for goto LABEL
}

func (*GotoStmt) statementNode() {}

// DieStmt / WarnStmt / PrintStmt are the miscellaneous I/O operations named
// in §4.C2's fast opcode list, modeled as statements since their return
// value is conventionally discarded.
type DieStmt struct {
	base
	Args []Expression
}

func (*DieStmt) statementNode() {}

type WarnStmt struct {
	base
	Args []Expression
}

func (*WarnStmt) statementNode() {}

type PrintStmt struct {
	base
	Args []Expression
	Say  bool
}

func (*PrintStmt) statementNode() {}

// ---------------------------------------------------------------------------
// Declaration nodes
// ---------------------------------------------------------------------------

// DeclKind distinguishes my/our/local/state declarations.
type DeclKind int

const (
	DeclMy DeclKind = iota
	DeclOur
	DeclLocal
	DeclState
)

// VarDecl is `my/our/local/state ($a, $b) = EXPR;` or the single-variable
// form.
type VarDecl struct {
	base
	Kind  DeclKind
	Names []*Ident
	Value Expression // nil when declared without an initializer
}

func (*VarDecl) declarationNode() {}

// SubDecl is a named subroutine declaration: `sub NAME { ... }`. This is the
// subroutine node named in §6.
type SubDecl struct {
	base
	Name string
	Body *BlockExpr
}

func (*SubDecl) declarationNode() {}

// PackageDecl is `package NAME;`.
type PackageDecl struct {
	base
	Name string
}

func (*PackageDecl) declarationNode() {}
