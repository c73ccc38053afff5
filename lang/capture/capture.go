// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package capture implements the closure capture analyzer (§4.C3): an AST
// walk that classifies every variable reference inside a sub body as a
// local, a captured upvalue from an enclosing sub, or a package global left
// for C10 to resolve, producing the ordered captured_slots list C5 bakes
// into each SUB opcode's closure snapshot.
package capture

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/perlrt/gperl/lang/ast"
)

// Slot describes one captured upvalue: a name captured from an enclosing
// sub, at the recorded lexical depth (1 = the immediately enclosing sub,
// 2 = two subs out, and so on), together with its sigil.
type Slot struct {
	Name  string
	Sigil ast.Sigil
	Depth int
}

// key identifies a Slot for de-duplication within one sub: Perl allows
// `$x`/`@x`/`%x` to coexist as distinct variables sharing a name.
type key struct {
	name  string
	sigil ast.Sigil
}

// alwaysGlobal holds the punctuation and numbered capture variables that
// are never local to a sub body regardless of any same-named `my`
// declaration that might shadow them syntactically.
var alwaysGlobal = mapset.NewSet(
	"_", "@", "!", "0", "/", "\\", ",", "\"",
	"1", "2", "3", "4", "5", "6", "7", "8", "9",
)

// frame is one lexical scope level: a sub body, a block, or a loop body.
type frame struct {
	names       map[key]bool
	subBoundary bool // true for the top frame of a sub body
}

// subRecord accumulates the capture list for one sub body as the analyzer
// walks it; captures are recorded in first-use order.
type subRecord struct {
	body     ast.Node // *ast.SubExpr or *ast.SubDecl, used as the result map key
	captures []Slot
	seen     map[key]bool
}

// Result maps a sub body node (an *ast.SubExpr or an *ast.SubDecl.Body's
// owning declaration, keyed by the SubExpr/SubDecl itself) to its ordered
// captured_slots.
type Result map[ast.Node][]Slot

type analyzer struct {
	frames []*frame
	subs   []*subRecord
	result Result
}

// Analyze walks prog and returns the capture map for every nested sub
// expression and sub declaration it contains. Top-level `my`/`our`/`local`/
// `state` declarations are tracked as the outermost (file-level) scope.
func Analyze(prog *ast.Program) Result {
	a := &analyzer{result: make(Result)}
	a.pushFrame(false)
	for _, s := range prog.Statements {
		a.walkStmt(s)
	}
	a.popFrame()
	return a.result
}

func (a *analyzer) pushFrame(subBoundary bool) {
	a.frames = append(a.frames, &frame{names: make(map[key]bool), subBoundary: subBoundary})
	if subBoundary {
		a.subs = append(a.subs, &subRecord{seen: make(map[key]bool)})
	}
}

func (a *analyzer) popFrame() {
	top := a.frames[len(a.frames)-1]
	a.frames = a.frames[:len(a.frames)-1]
	if top.subBoundary {
		rec := a.subs[len(a.subs)-1]
		a.subs = a.subs[:len(a.subs)-1]
		if rec.body != nil {
			a.result[rec.body] = rec.captures
		}
	}
}

func (a *analyzer) declare(name string, sigil ast.Sigil) {
	a.frames[len(a.frames)-1].names[key{name, sigil}] = true
}

// use resolves a read/write reference to name, walking outward from the
// innermost frame. Crossing sub boundaries increments the capture depth;
// a hit inside an enclosing sub records a Slot on every sub frame crossed
// on the way there (so an intermediate sub also forwards the upvalue),
// matching how a nested closure chain must thread a grandparent's lexical
// through its immediate parent.
func (a *analyzer) use(name string, sigil ast.Sigil) {
	if alwaysGlobal.Contains(name) {
		return
	}
	k := key{name, sigil}
	depth := 0
	crossedSubs := []*subRecord{}
	for i := len(a.frames) - 1; i >= 0; i-- {
		f := a.frames[i]
		if f.names[k] {
			if depth == 0 {
				return // local to the current sub (or file scope)
			}
			for j := len(crossedSubs) - 1; j >= 0; j-- {
				rec := crossedSubs[j]
				if rec.seen[k] {
					continue
				}
				rec.seen[k] = true
				rec.captures = append(rec.captures, Slot{Name: name, Sigil: sigil, Depth: depth})
			}
			return
		}
		if f.subBoundary {
			depth++
			crossedSubs = append(crossedSubs, a.subForFrame(i))
		}
	}
	// Not found in any enclosing lexical scope: a package global, left for
	// C10 to resolve by name.
}

// subForFrame returns the subRecord associated with the subBoundary frame
// at index i in a.frames.
func (a *analyzer) subForFrame(i int) *subRecord {
	n := 0
	for j := 0; j <= i; j++ {
		if a.frames[j].subBoundary {
			n++
		}
	}
	return a.subs[n-1]
}

func (a *analyzer) walkBlock(b *ast.BlockExpr) {
	if b == nil {
		return
	}
	a.pushFrame(false)
	for _, s := range b.Statements {
		a.walkStmt(s)
	}
	a.popFrame()
}

func (a *analyzer) walkSubBody(owner ast.Node, body *ast.BlockExpr) {
	a.pushFrame(true)
	a.subs[len(a.subs)-1].body = owner
	if body != nil {
		for _, s := range body.Statements {
			a.walkStmt(s)
		}
	}
	a.popFrame()
}

func (a *analyzer) walkStmt(s ast.Statement) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		a.walkExpr(n.X)
	case *ast.DeclStmt:
		a.walkDecl(n.D)
	case *ast.ReturnStmt:
		a.walkExpr(n.Value)
	case *ast.IfStmt:
		a.walkExpr(n.Cond)
		a.walkBlock(n.Then)
		switch e := n.Else.(type) {
		case *ast.IfStmt:
			a.walkStmt(e)
		case *ast.BlockExpr:
			a.walkBlock(e)
		}
	case *ast.WhileStmt:
		a.walkExpr(n.Cond)
		a.walkBlock(n.Body)
	case *ast.ForStmt:
		a.pushFrame(false)
		if n.Init != nil {
			a.walkStmt(n.Init)
		}
		a.walkExpr(n.Cond)
		a.walkExpr(n.Post)
		a.walkBlock(n.Body)
		a.popFrame()
	case *ast.ForeachStmt:
		a.pushFrame(false)
		if n.VarMy && n.Var != nil {
			a.declare(n.Var.Name, n.Var.Sigil)
		} else if n.Var != nil {
			a.use(n.Var.Name, n.Var.Sigil)
		}
		a.walkExpr(n.List)
		a.walkBlock(n.Body)
		a.popFrame()
	case *ast.LoopControlStmt, *ast.GotoStmt:
		// no variable references beyond the label, which isn't a variable
	case *ast.DieStmt:
		for _, e := range n.Args {
			a.walkExpr(e)
		}
	case *ast.WarnStmt:
		for _, e := range n.Args {
			a.walkExpr(e)
		}
	case *ast.PrintStmt:
		for _, e := range n.Args {
			a.walkExpr(e)
		}
	}
}

func (a *analyzer) walkDecl(d ast.Declaration) {
	switch n := d.(type) {
	case *ast.VarDecl:
		a.walkExpr(n.Value)
		for _, id := range n.Names {
			a.declare(id.Name, id.Sigil)
		}
	case *ast.SubDecl:
		a.walkSubBody(n, n.Body)
	case *ast.PackageDecl:
		// no variable references
	}
}

func (a *analyzer) walkExpr(e ast.Expression) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.Ident:
		if n.Sigil != 0 {
			a.use(n.Name, n.Sigil)
		}
	case *ast.NumberLiteral, *ast.BoolLiteral, *ast.UndefLiteral:
		// no references
	case *ast.StringLiteral:
		for _, p := range n.Parts {
			if p.Interpolated {
				a.walkExpr(p.Expr)
			}
		}
	case *ast.ListExpr:
		for _, el := range n.Elems {
			a.walkExpr(el)
		}
	case *ast.ArrayLiteral:
		for _, el := range n.Elems {
			a.walkExpr(el)
		}
	case *ast.HashLiteral:
		for _, k := range n.Keys {
			a.walkExpr(k)
		}
		for _, v := range n.Values {
			a.walkExpr(v)
		}
	case *ast.OperatorExpr:
		a.walkExpr(n.Left)
		a.walkExpr(n.Right)
	case *ast.AssignExpr:
		a.walkExpr(n.Target)
		a.walkExpr(n.Value)
	case *ast.IndexExpr:
		a.walkExpr(n.Container)
		a.walkExpr(n.Index)
	case *ast.CallExpr:
		a.walkExpr(n.Callee)
		for _, arg := range n.Args {
			a.walkExpr(arg)
		}
	case *ast.MethodCallExpr:
		a.walkExpr(n.Receiver)
		a.walkExpr(n.Dynamic)
		for _, arg := range n.Args {
			a.walkExpr(arg)
		}
	case *ast.RefExpr:
		a.walkExpr(n.Target)
	case *ast.DerefExpr:
		a.walkExpr(n.Target)
	case *ast.RangeExpr:
		a.walkExpr(n.Low)
		a.walkExpr(n.High)
	case *ast.TernaryExpr:
		a.walkExpr(n.Cond)
		a.walkExpr(n.Then)
		a.walkExpr(n.Else)
	case *ast.SubExpr:
		a.walkSubBody(n, n.Body)
	case *ast.BlockExpr:
		a.walkBlock(n)
	case *ast.EvalBlockExpr:
		a.walkBlock(n.Body)
	case *ast.EvalStringExpr:
		a.walkExpr(n.Source)
	case *ast.TrExpr:
		a.walkExpr(n.Target)
	case *ast.WantarrayExpr:
		// no references
	}
}
