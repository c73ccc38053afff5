// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"strconv"

	"github.com/perlrt/gperl/lang/ast"
	"github.com/perlrt/gperl/lang/opcode"
	"github.com/perlrt/gperl/lang/perlerr"
	"github.com/perlrt/gperl/lang/register"
	"github.com/perlrt/gperl/lang/token"
	"github.com/perlrt/gperl/lang/value"
)

var binOp = map[token.Type]opcode.Op{
	token.PLUS: opcode.ADD, token.MINUS: opcode.SUB, token.STAR: opcode.MUL,
	token.SLASH: opcode.DIV, token.PERCENT: opcode.MOD, token.POW: opcode.POW,
	token.DOT: opcode.CONCAT,
	token.EQ: opcode.NUM_EQ, token.NEQ: opcode.NUM_NEQ, token.LT: opcode.NUM_LT,
	token.GT: opcode.NUM_GT, token.LTE: opcode.NUM_LTE, token.GTE: opcode.NUM_GTE,
	token.CMP: opcode.NUM_CMP,
	token.SEQ: opcode.STR_EQ, token.SNEQ: opcode.STR_NEQ, token.SLT: opcode.STR_LT,
	token.SGT: opcode.STR_GT, token.SLE: opcode.STR_LTE, token.SGE: opcode.STR_GTE,
	token.SCMP: opcode.STR_CMP,
	token.ANDAND: opcode.LOGICAL_AND, token.OROR: opcode.LOGICAL_OR,
}

// compoundOp maps a `OP=` assignment token to the binary operator it
// applies before writing back.
var compoundOp = map[token.Type]token.Type{
	token.PLUSEQ: token.PLUS, token.MINUSEQ: token.MINUS, token.STAREQ: token.STAR,
	token.SLASHEQ: token.SLASH, token.DOTEQ: token.DOT,
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) compileStmt(s ast.Statement, ctx Context) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		c.compileExpr(n.X, CtxVoid)
	case *ast.DeclStmt:
		c.compileDecl(n.D)
	case *ast.ReturnStmt:
		var r uint16
		if n.Value != nil {
			r = c.compileExpr(n.Value, ctx)
		} else {
			r = c.temp()
			c.emit(opcode.LOAD_UNDEF)
			c.emitReg(r)
		}
		c.emit(opcode.RETURN)
		c.emitReg(r)
	case *ast.IfStmt:
		c.compileIf(n)
	case *ast.WhileStmt:
		c.compileWhile(n)
	case *ast.ForStmt:
		c.compileFor(n)
	case *ast.ForeachStmt:
		c.compileForeach(n)
	case *ast.LoopControlStmt:
		c.compileLoopControl(n)
	case *ast.GotoStmt:
		c.compileGoto(n)
	case *ast.DieStmt:
		c.compileDieWarn(n.Args, n.Pos().Line, opcode.DIE)
	case *ast.WarnStmt:
		c.compileDieWarn(n.Args, n.Pos().Line, opcode.WARN)
	case *ast.PrintStmt:
		c.compilePrint(n)
	}
}

func (c *Compiler) compileDieWarn(args []ast.Expression, line int, op opcode.Op) {
	regs := make([]uint16, 0, len(args)+1)
	for _, a := range args {
		regs = append(regs, c.compileExpr(a, CtxScalar))
	}
	suffix := c.temp()
	c.emit(opcode.LOAD_STRING)
	c.emitReg(suffix)
	c.emitImm32(int32(c.locationSuffix(line)))
	regs = append(regs, suffix)
	c.emit(op)
	c.emitWord(uint16(len(regs)))
	for _, r := range regs {
		c.emitReg(r)
	}
}

func (c *Compiler) compilePrint(n *ast.PrintStmt) {
	regs := make([]uint16, 0, len(n.Args))
	for _, a := range n.Args {
		regs = append(regs, c.compileExpr(a, CtxScalar))
	}
	op := opcode.PRINT
	if n.Say {
		op = opcode.SAY
	}
	c.emit(op)
	c.emitWord(uint16(len(regs)))
	for _, r := range regs {
		c.emitReg(r)
	}
}

func (c *Compiler) compileIf(n *ast.IfStmt) {
	cond := c.compileExpr(n.Cond, CtxScalar)
	op := opcode.GOTO_IF_FALSE
	if n.Unless {
		op = opcode.GOTO_IF_TRUE
	}
	c.emit(op)
	c.emitReg(cond)
	falsePos := c.emitBranchPlaceholder()
	c.compileBlockVoid(n.Then)
	if n.Else != nil {
		c.emit(opcode.GOTO)
		endPos := c.emitBranchPlaceholder()
		c.patch(falsePos)
		switch e := n.Else.(type) {
		case *ast.IfStmt:
			c.compileIf(e)
		case *ast.BlockExpr:
			c.compileBlockVoid(e)
		}
		c.patch(endPos)
		return
	}
	c.patch(falsePos)
}

func (c *Compiler) compileBlockVoid(b *ast.BlockExpr) {
	if b == nil {
		return
	}
	c.curBody().alloc.OpenScope()
	for _, s := range b.Statements {
		c.compileStmt(s, CtxVoid)
	}
	c.curBody().alloc.CloseScope()
}

func (c *Compiler) pushLoop(label string) {
	b := c.curBody()
	b.loopLabels = append(b.loopLabels, loopLabel{name: label})
}

func (c *Compiler) loopTop() *loopLabel {
	b := c.curBody()
	return &b.loopLabels[len(b.loopLabels)-1]
}

func (c *Compiler) popLoop() loopLabel {
	b := c.curBody()
	n := len(b.loopLabels)
	top := b.loopLabels[n-1]
	b.loopLabels = b.loopLabels[:n-1]
	return top
}

func (c *Compiler) compileWhile(n *ast.WhileStmt) {
	c.pushLoop(n.Label)
	testPos := c.here()
	c.loopTop().testPos = testPos
	cond := c.compileExpr(n.Cond, CtxScalar)
	op := opcode.GOTO_IF_FALSE
	if n.Until {
		op = opcode.GOTO_IF_TRUE
	}
	c.emit(op)
	c.emitReg(cond)
	exitPos := c.emitBranchPlaceholder()
	c.loopTop().bodyStart = c.here()
	c.compileBlockVoid(n.Body)
	c.emit(opcode.GOTO)
	c.emitBranchTo(testPos)
	c.patch(exitPos)
	loop := c.popLoop()
	for _, p := range loop.breaks {
		c.patch(p)
	}
}

func (c *Compiler) compileFor(n *ast.ForStmt) {
	c.curBody().alloc.OpenScope()
	if n.Init != nil {
		c.compileStmt(n.Init, CtxVoid)
	}
	c.pushLoop(n.Label)
	testPos := c.here()
	c.loopTop().testPos = testPos
	exitPos := -1
	if n.Cond != nil {
		cond := c.compileExpr(n.Cond, CtxScalar)
		c.emit(opcode.GOTO_IF_FALSE)
		c.emitReg(cond)
		exitPos = c.emitBranchPlaceholder()
	}
	c.loopTop().bodyStart = c.here()
	c.compileBlockVoid(n.Body)
	postPos := c.here()
	if n.Post != nil {
		c.compileExpr(n.Post, CtxVoid)
	}
	c.emit(opcode.GOTO)
	c.emitBranchTo(testPos)
	_ = postPos
	if exitPos >= 0 {
		c.patch(exitPos)
	}
	loop := c.popLoop()
	for _, p := range loop.breaks {
		c.patch(p)
	}
	c.curBody().alloc.CloseScope()
}

func (c *Compiler) compileForeach(n *ast.ForeachStmt) {
	c.curBody().alloc.OpenScope()
	list := c.compileExpr(n.List, CtxList)
	idx := c.temp()
	c.emit(opcode.LOAD_INT)
	c.emitReg(idx)
	c.emitImm32(0)
	length := c.temp()
	c.emit(opcode.ARRAY_SIZE)
	c.emitReg(length)
	c.emitReg(list)

	var varReg uint16
	if n.Var != nil {
		key := sigilKey(n.Var.Sigil, n.Var.Name)
		if n.VarMy {
			r, err := c.curBody().alloc.Declare(key)
			if err != nil {
				c.fail(err)
			}
			varReg = r
		} else if r, ok := c.curBody().alloc.Lookup(key); ok {
			varReg = r
		} else {
			varReg = c.temp()
		}
	} else {
		varReg = c.temp()
	}

	c.pushLoop(n.Label)
	testPos := c.here()
	c.loopTop().testPos = testPos
	cmp := c.temp()
	c.emit(opcode.NUM_LT)
	c.emitReg(cmp)
	c.emitReg(idx)
	c.emitReg(length)
	c.emit(opcode.GOTO_IF_FALSE)
	c.emitReg(cmp)
	exitPos := c.emitBranchPlaceholder()

	c.loopTop().bodyStart = c.here()
	c.emit(opcode.ARRAY_GET)
	c.emitReg(varReg)
	c.emitReg(list)
	c.emitReg(idx)
	c.compileBlockVoid(n.Body)

	one := c.temp()
	c.emit(opcode.LOAD_INT)
	c.emitReg(one)
	c.emitImm32(1)
	c.emit(opcode.ADD_INT)
	c.emitReg(idx)
	c.emitReg(idx)
	c.emitReg(one)
	c.emit(opcode.GOTO)
	c.emitBranchTo(testPos)
	c.patch(exitPos)
	loop := c.popLoop()
	for _, p := range loop.breaks {
		c.patch(p)
	}
	c.curBody().alloc.CloseScope()
}

func (c *Compiler) findLoop(label string) *loopLabel {
	b := c.curBody()
	if label == "" {
		if len(b.loopLabels) == 0 {
			return nil
		}
		return &b.loopLabels[len(b.loopLabels)-1]
	}
	for i := len(b.loopLabels) - 1; i >= 0; i-- {
		if b.loopLabels[i].name == label {
			return &b.loopLabels[i]
		}
	}
	return nil
}

func (c *Compiler) compileLoopControl(n *ast.LoopControlStmt) {
	loop := c.findLoop(n.Label)
	if loop == nil {
		c.fail(perlerr.New(perlerr.KindCompileError, perlerr.Location{File: c.curBody().source, Line: n.Pos().Line},
			"Can't \"%s\" outside a loop block", n.Kind))
		return
	}
	switch n.Kind {
	case token.NEXT:
		c.emit(opcode.GOTO)
		c.emitBranchTo(loop.testPos)
	case token.REDO:
		c.emit(opcode.GOTO)
		c.emitBranchTo(loop.bodyStart)
	case token.LAST:
		c.emit(opcode.GOTO)
		pos := c.emitBranchPlaceholder()
		loop.breaks = append(loop.breaks, pos)
	}
}

func (c *Compiler) compileGoto(n *ast.GotoStmt) {
	if n.Sub != nil {
		// `goto &NAME` / `goto &$coderef` tail call (§4.C6): replaces the
		// current call frame with the target, running it against the
		// current @_. TAIL_CALL_SUB is interpreted in place by the VM
		// (vm.go's run loop), never recursing through invoke, so frame
		// depth stays constant across arbitrarily deep recursion.
		callee := c.compileExpr(n.Sub, CtxScalar)
		c.emit(opcode.TAIL_CALL_SUB)
		c.emitReg(callee)
		c.emitWord(spreadSentinel)
		c.emitReg(register.RegArgs)
		return
	}
	// `goto LABEL`: not supported by this execution core (only the tail-
	// call form is exercised by the spec's seed scenarios); emit a
	// compile error rather than silently miscompiling.
	c.fail(perlerr.New(perlerr.KindCompileError, perlerr.Location{File: c.curBody().source, Line: n.Pos().Line},
		"goto LABEL is not supported"))
}

// spreadSentinel marks a CALL_SUB/TAIL_CALL_SUB argument-count word as "the
// next word is a single register holding a *container.Array to spread as
// the full argument list"; compileGoto emits it with TAIL_CALL_SUB for
// goto &sub tail calls.
const spreadSentinel = 0xFFFF

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (c *Compiler) compileDecl(d ast.Declaration) {
	switch n := d.(type) {
	case *ast.VarDecl:
		c.compileVarDecl(n)
	case *ast.SubDecl:
		c.compileSubDecl(n)
	case *ast.PackageDecl:
		c.curBody().pkg = n.Name
	}
}

func (c *Compiler) compileVarDecl(n *ast.VarDecl) {
	b := c.curBody()
	if len(n.Names) == 1 {
		id := n.Names[0]
		key := sigilKey(id.Sigil, id.Name)
		var reg uint16
		var err error
		switch n.Kind {
		case ast.DeclState:
			reg, err = b.alloc.DeclarePersistent(key)
		default:
			reg, err = b.alloc.Declare(key)
		}
		if err != nil {
			c.fail(err)
			return
		}
		if n.Value != nil {
			ctx := CtxScalar
			if id.Sigil == ast.SigilArray || id.Sigil == ast.SigilHash {
				ctx = CtxList
			}
			src := c.compileExpr(n.Value, ctx)
			c.emitMove(reg, src, id.Sigil)
		} else {
			c.initEmpty(reg, id.Sigil)
		}
		if n.Kind == ast.DeclLocal {
			c.emitLocalSave(id, reg)
		}
		return
	}

	// Multi-name form: `my ($a, $b, ...) = EXPR;` — EXPR is evaluated in
	// list context and destructured positionally. A trailing array-sigil
	// name slurps the remainder (hash-sigil slurp is not supported).
	var srcArr uint16
	if n.Value != nil {
		srcArr = c.compileExpr(n.Value, CtxList)
	}
	for i, id := range n.Names {
		key := sigilKey(id.Sigil, id.Name)
		reg, err := b.alloc.Declare(key)
		if err != nil {
			c.fail(err)
			continue
		}
		if n.Value == nil {
			c.initEmpty(reg, id.Sigil)
			continue
		}
		if id.Sigil == ast.SigilArray {
			idxReg := c.temp()
			c.emit(opcode.LOAD_INT)
			c.emitReg(idxReg)
			c.emitImm32(int32(i))
			c.emit(opcode.CALL_BUILTIN)
			c.emitReg(reg)
			c.emitWord(c.stringIndex("__slurp_rest"))
			c.emitWord(uint16(CtxList))
			c.emitWord(2)
			c.emitReg(srcArr)
			c.emitReg(idxReg)
			continue
		}
		idxReg := c.temp()
		c.emit(opcode.LOAD_INT)
		c.emitReg(idxReg)
		c.emitImm32(int32(i))
		c.emit(opcode.ARRAY_GET)
		c.emitReg(reg)
		c.emitReg(srcArr)
		c.emitReg(idxReg)
	}
}

func (c *Compiler) initEmpty(reg uint16, sigil ast.Sigil) {
	switch sigil {
	case ast.SigilArray:
		c.emit(opcode.ARRAY_CREATE)
		c.emitReg(reg)
	case ast.SigilHash:
		c.emit(opcode.HASH_CREATE)
		c.emitReg(reg)
	default:
		c.emit(opcode.LOAD_UNDEF)
		c.emitReg(reg)
	}
}

// emitMove copies src into dst with a MOVE. The VM copies by value for
// scalars, arrays and hashes alike: it assigns src's contents into the
// cell dst already holds, or stores a fresh clone of src when dst holds
// none, so `my @b = @a` gets its own container. sigil is not used.
func (c *Compiler) emitMove(dst, src uint16, sigil ast.Sigil) {
	c.emit(opcode.MOVE)
	c.emitReg(dst)
	c.emitReg(src)
}

func (c *Compiler) emitLocalSave(id *ast.Ident, valReg uint16) {
	pkg := c.curBody().pkg
	name := qualify(pkg, id.Name)
	c.emit(opcode.SLOW_OP)
	c.emitWord(uint16(opcode.SUB_LOCAL_PUSH))
	c.emitWord(uint16(id.Sigil))
	c.emitWord(c.stringIndex(name))
	c.emitReg(valReg)
}

func (c *Compiler) compileSubDecl(n *ast.SubDecl) {
	pkg := c.curBody().pkg
	line := n.Pos().Line
	cc := c.compileSubBody(n, n.Body, pkg, n.Name, line)
	closureReg := c.temp()
	c.emit(opcode.SUB)
	c.emitReg(closureReg)
	c.emitImm32(int32(c.constIndex(codeConst(cc))))
	c.emitCaptureRegs(cc)
	c.emit(opcode.STORE_PKG_CODE)
	c.emitReg(closureReg)
	c.emitImm32(int32(c.stringIndex(qualify(pkg, n.Name))))
}

// codeConst wraps a freshly compiled CompiledCode as a constant-pool
// placeholder Scalar carrying the code pointer, so SUB can find it by
// constant index at runtime and build the closure (with its
// captured_values snapshot) there.
func codeConst(cc *CompiledCode) *value.Scalar {
	return value.CodeRef(&codeHolder{cc: cc})
}

// codeHolder implements value.RefTarget so a not-yet-closed-over
// CompiledCode can sit in the constant pool until SUB executes.
type codeHolder struct{ cc *CompiledCode }

func (h *codeHolder) RefKind() string { return "CODE" }

// CodeOf extracts the CompiledCode from a constant-pool CODE_REF produced
// by codeConst, for the interpreter's SUB-opcode handler.
func CodeOf(s *value.Scalar) *CompiledCode {
	if h, ok := s.CodeTarget().(*codeHolder); ok {
		return h.cc
	}
	if cl, ok := s.CodeTarget().(*Closure); ok {
		return cl.Code
	}
	return nil
}

func (c *Compiler) compileSubBody(owner ast.Node, blk *ast.BlockExpr, pkg, name string, line int) *CompiledCode {
	c.pushBody(pkg, name, c.curBody().source, line)
	b := c.curBody()
	b.captures = c.captures[owner]
	for _, slot := range b.captures {
		key := sigilKey(slot.Sigil, slot.Name)
		if _, err := b.alloc.DeclarePersistent(key); err != nil {
			c.fail(err)
		}
	}
	if blk != nil {
		n := len(blk.Statements)
		for i, s := range blk.Statements {
			if i == n-1 {
				if es, ok := s.(*ast.ExprStmt); ok {
					r := c.compileExpr(es.X, CtxScalar)
					c.emit(opcode.RETURN)
					c.emitReg(r)
					return c.popBody()
				}
			}
			c.compileStmt(s, CtxVoid)
		}
	}
	r := c.temp()
	c.emit(opcode.LOAD_UNDEF)
	c.emitReg(r)
	c.emit(opcode.RETURN)
	c.emitReg(r)
	return c.popBody()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) compileExpr(e ast.Expression, ctx Context) uint16 {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		return c.compileNumberLiteral(n)
	case *ast.StringLiteral:
		return c.compileStringLiteral(n)
	case *ast.BoolLiteral:
		r := c.temp()
		c.emit(opcode.LOAD_CONST)
		c.emitReg(r)
		c.emitImm32(int32(c.constIndex(value.Bool(n.Value))))
		return r
	case *ast.UndefLiteral:
		r := c.temp()
		c.emit(opcode.LOAD_UNDEF)
		c.emitReg(r)
		return r
	case *ast.Ident:
		return c.compileIdentRead(n, ctx)
	case *ast.ListExpr:
		return c.compileListExpr(n, ctx)
	case *ast.ArrayLiteral:
		return c.compileArrayLiteral(n)
	case *ast.HashLiteral:
		return c.compileHashLiteral(n)
	case *ast.OperatorExpr:
		return c.compileOperatorExpr(n, ctx)
	case *ast.AssignExpr:
		return c.compileAssignExpr(n, ctx)
	case *ast.IndexExpr:
		return c.compileIndexRead(n)
	case *ast.CallExpr:
		return c.compileCallExpr(n, ctx)
	case *ast.MethodCallExpr:
		return c.compileMethodCallExpr(n, ctx)
	case *ast.RefExpr:
		return c.compileRefExpr(n)
	case *ast.DerefExpr:
		return c.compileDerefExpr(n)
	case *ast.TernaryExpr:
		return c.compileTernary(n, ctx)
	case *ast.SubExpr:
		return c.compileSubExpr(n)
	case *ast.BlockExpr:
		return c.compileDoBlock(n, ctx)
	case *ast.EvalBlockExpr:
		return c.compileEvalBlock(n)
	case *ast.EvalStringExpr:
		return c.compileEvalString(n)
	case *ast.TrExpr:
		return c.compileTr(n)
	case *ast.WantarrayExpr:
		return c.compileWantarray()
	case *ast.RangeExpr:
		return c.compileRange(n, ctx)
	}
	r := c.temp()
	c.emit(opcode.LOAD_UNDEF)
	c.emitReg(r)
	return r
}

func (c *Compiler) compileNumberLiteral(n *ast.NumberLiteral) uint16 {
	r := c.temp()
	if !n.IsFloat {
		if iv, ok := parseIntText(n.Text); ok {
			c.emit(opcode.LOAD_INT)
			c.emitReg(r)
			c.emitImm32(int32(iv))
			return r
		}
	}
	f := parseFloatText(n.Text)
	c.emit(opcode.LOAD_CONST)
	c.emitReg(r)
	c.emitImm32(int32(c.constIndex(value.Double(f))))
	return r
}

// parseIntText reads an integer literal's spelling (decimal, 0x, 0b, leading-0
// octal, '_' separators); ok is false when it does not fit a 32-bit immediate.
func parseIntText(text string) (int64, bool) {
	v, err := strconv.ParseInt(text, 0, 64)
	return v, err == nil && v >= -1<<31 && v < 1<<31
}

// parseFloatText reads a numeric literal's spelling as a double.
func parseFloatText(text string) float64 {
	if v, err := strconv.ParseInt(text, 0, 64); err == nil {
		return float64(v)
	}
	f, _ := strconv.ParseFloat(text, 64)
	return f
}

func (c *Compiler) compileStringLiteral(n *ast.StringLiteral) uint16 {
	if len(n.Parts) == 0 {
		r := c.temp()
		c.emit(opcode.LOAD_STRING)
		c.emitReg(r)
		c.emitImm32(int32(c.stringIndex("")))
		return r
	}
	var acc uint16
	first := true
	for _, p := range n.Parts {
		var reg uint16
		if p.Interpolated {
			reg = c.compileExpr(p.Expr, CtxScalar)
		} else {
			reg = c.temp()
			c.emit(opcode.LOAD_STRING)
			c.emitReg(reg)
			c.emitImm32(int32(c.stringIndex(p.Text)))
		}
		if first {
			acc = reg
			first = false
			continue
		}
		dst := c.temp()
		c.emit(opcode.CONCAT)
		c.emitReg(dst)
		c.emitReg(acc)
		c.emitReg(reg)
		acc = dst
	}
	return acc
}

// compileIdentRead resolves a variable reference: a local/captured
// register if declared lexically in this body, otherwise a package
// global qualified by the current compile-time package.
func (c *Compiler) compileIdentRead(n *ast.Ident, ctx Context) uint16 {
	key := sigilKey(n.Sigil, n.Name)
	if r, ok := c.curBody().alloc.Lookup(key); ok {
		return r
	}
	qname := qualify(c.curBody().pkg, n.Name)
	r := c.temp()
	switch n.Sigil {
	case ast.SigilArray:
		c.emit(opcode.LOAD_PKG_ARRAY)
	case ast.SigilHash:
		c.emit(opcode.LOAD_PKG_HASH)
	default:
		c.emit(opcode.LOAD_PKG_SCALAR)
	}
	c.emitReg(r)
	c.emitImm32(int32(c.stringIndex(qname)))
	return r
}

func (c *Compiler) compileListExpr(n *ast.ListExpr, ctx Context) uint16 {
	if ctx != CtxList {
		if len(n.Elems) == 0 {
			r := c.temp()
			c.emit(opcode.LOAD_UNDEF)
			c.emitReg(r)
			return r
		}
		var last uint16
		for _, el := range n.Elems {
			last = c.compileExpr(el, CtxScalar)
		}
		return last
	}
	arr := c.temp()
	c.emit(opcode.ARRAY_CREATE)
	c.emitReg(arr)
	for _, el := range n.Elems {
		v := c.compileExpr(el, CtxScalar)
		c.emit(opcode.ARRAY_PUSH)
		c.emitReg(arr)
		c.emitWord(1)
		c.emitReg(v)
	}
	return arr
}

func (c *Compiler) compileArrayLiteral(n *ast.ArrayLiteral) uint16 {
	arr := c.temp()
	c.emit(opcode.ARRAY_CREATE)
	c.emitReg(arr)
	for _, el := range n.Elems {
		v := c.compileExpr(el, CtxScalar)
		c.emit(opcode.ARRAY_PUSH)
		c.emitReg(arr)
		c.emitWord(1)
		c.emitReg(v)
	}
	ref := c.temp()
	c.emit(opcode.CREATE_REF)
	c.emitReg(ref)
	c.emitReg(arr)
	return ref
}

func (c *Compiler) compileHashLiteral(n *ast.HashLiteral) uint16 {
	h := c.temp()
	c.emit(opcode.HASH_CREATE)
	c.emitReg(h)
	for i := range n.Keys {
		k := c.compileExpr(n.Keys[i], CtxScalar)
		v := c.compileExpr(n.Values[i], CtxScalar)
		c.emit(opcode.HASH_SET)
		c.emitReg(h)
		c.emitReg(k)
		c.emitReg(v)
	}
	ref := c.temp()
	c.emit(opcode.CREATE_REF)
	c.emitReg(ref)
	c.emitReg(h)
	return ref
}

func (c *Compiler) compileOperatorExpr(n *ast.OperatorExpr, ctx Context) uint16 {
	if n.Left == nil {
		return c.compileUnary(n)
	}
	if op, ok := binOp[n.Op]; ok {
		l := c.compileExpr(n.Left, CtxScalar)
		r := c.compileExpr(n.Right, CtxScalar)
		dst := c.temp()
		c.emit(op)
		c.emitReg(dst)
		c.emitReg(l)
		c.emitReg(r)
		return dst
	}
	r := c.temp()
	c.emit(opcode.LOAD_UNDEF)
	c.emitReg(r)
	return r
}

func (c *Compiler) compileUnary(n *ast.OperatorExpr) uint16 {
	switch n.Op {
	case token.MINUS:
		v := c.compileExpr(n.Right, CtxScalar)
		dst := c.temp()
		c.emit(opcode.NEG)
		c.emitReg(dst)
		c.emitReg(v)
		return dst
	case token.BANG:
		v := c.compileExpr(n.Right, CtxScalar)
		dst := c.temp()
		c.emit(opcode.LOGICAL_NOT)
		c.emitReg(dst)
		c.emitReg(v)
		return dst
	case token.INC:
		// ++ on a STRING matching ^[A-Za-z]*[0-9]*$ is Perl's "magic"
		// string increment; everything else is plain numeric increment.
		// Both live behind one opcode since the distinction is a runtime
		// property of the operand, not something codegen can know.
		target := c.compileExpr(n.Right, CtxScalar)
		c.emit(opcode.INCR_MAGIC)
		c.emitReg(target)
		return target
	case token.DEC:
		// Perl never applies magic string decrement, only numeric.
		target := c.compileExpr(n.Right, CtxScalar)
		imm := c.temp()
		c.emit(opcode.LOAD_INT)
		c.emitReg(imm)
		c.emitImm32(-1)
		c.emit(opcode.ADD_INT)
		c.emitReg(target)
		c.emitReg(target)
		c.emitReg(imm)
		return target
	}
	r := c.temp()
	c.emit(opcode.LOAD_UNDEF)
	c.emitReg(r)
	return r
}

func (c *Compiler) compileAssignExpr(n *ast.AssignExpr, ctx Context) uint16 {
	if n.Op == token.ASSIGN {
		valCtx := CtxScalar
		if isAggregate(n.Target) {
			valCtx = CtxList
		}
		v := c.compileExpr(n.Value, valCtx)
		c.compileStore(n.Target, v)
		return v
	}
	if base, ok := compoundOp[n.Op]; ok {
		cur := c.compileExpr(n.Target, CtxScalar)
		rhs := c.compileExpr(n.Value, CtxScalar)
		dst := c.temp()
		c.emit(binOp[base])
		c.emitReg(dst)
		c.emitReg(cur)
		c.emitReg(rhs)
		c.compileStore(n.Target, dst)
		return dst
	}
	switch n.Op {
	case token.OROREQ, token.DSLASHEQ:
		cur := c.compileExpr(n.Target, CtxScalar)
		c.emit(opcode.LOGICAL_NOT)
		notCur := c.temp()
		c.emitReg(notCur)
		c.emitReg(cur)
		_ = notCur
		truthy := c.temp()
		c.emit(opcode.LOGICAL_NOT)
		c.emitReg(truthy)
		c.emitReg(notCur)
		c.emit(opcode.GOTO_IF_TRUE)
		c.emitReg(truthy)
		skip := c.emitBranchPlaceholder()
		rhs := c.compileExpr(n.Value, CtxScalar)
		c.compileStore(n.Target, rhs)
		c.emitMove(cur, rhs, ast.SigilScalar)
		c.patch(skip)
		return cur
	case token.ANDANDEQ:
		cur := c.compileExpr(n.Target, CtxScalar)
		c.emit(opcode.GOTO_IF_FALSE)
		c.emitReg(cur)
		skip := c.emitBranchPlaceholder()
		rhs := c.compileExpr(n.Value, CtxScalar)
		c.compileStore(n.Target, rhs)
		c.emitMove(cur, rhs, ast.SigilScalar)
		c.patch(skip)
		return cur
	}
	return c.compileExpr(n.Value, CtxScalar)
}

func isAggregate(e ast.Expression) bool {
	id, ok := e.(*ast.Ident)
	return ok && (id.Sigil == ast.SigilArray || id.Sigil == ast.SigilHash)
}

// compileStore writes valReg into target's addressed location: a lexical/
// global scalar or aggregate, or an array/hash element.
func (c *Compiler) compileStore(target ast.Expression, valReg uint16) {
	switch t := target.(type) {
	case *ast.Ident:
		key := sigilKey(t.Sigil, t.Name)
		if r, ok := c.curBody().alloc.Lookup(key); ok {
			c.emitMove(r, valReg, t.Sigil)
			return
		}
		qname := qualify(c.curBody().pkg, t.Name)
		switch t.Sigil {
		case ast.SigilArray:
			c.emit(opcode.STORE_PKG_ARRAY)
		case ast.SigilHash:
			c.emit(opcode.STORE_PKG_HASH)
		default:
			c.emit(opcode.STORE_PKG_SCALAR)
		}
		c.emitReg(valReg)
		c.emitImm32(int32(c.stringIndex(qname)))
	case *ast.IndexExpr:
		container, key := c.compileIndexTarget(t)
		op := opcode.ARRAY_SET
		if t.IsHash {
			op = opcode.HASH_SET
		}
		c.emit(op)
		c.emitReg(container)
		c.emitReg(key)
		c.emitReg(valReg)
	}
}

// compileIndexTarget resolves an IndexExpr's container (an Array or Hash
// register) and its index/key register, for both read and write paths.
func (c *Compiler) compileIndexTarget(n *ast.IndexExpr) (containerReg, keyReg uint16) {
	if n.Arrow {
		ref := c.compileExpr(n.Container, CtxScalar)
		container := c.temp()
		c.emit(opcode.DEREF)
		c.emitReg(container)
		c.emitReg(ref)
		key := c.compileExpr(n.Index, CtxScalar)
		return container, key
	}
	if id, ok := n.Container.(*ast.Ident); ok {
		sig := ast.SigilArray
		if n.IsHash {
			sig = ast.SigilHash
		}
		aliasID := &ast.Ident{Sigil: sig, Name: id.Name}
		aliasID.P = id.Pos()
		container := c.compileIdentRead(aliasID, CtxList)
		key := c.compileExpr(n.Index, CtxScalar)
		return container, key
	}
	container := c.compileExpr(n.Container, CtxList)
	key := c.compileExpr(n.Index, CtxScalar)
	return container, key
}

func (c *Compiler) compileIndexRead(n *ast.IndexExpr) uint16 {
	container, key := c.compileIndexTarget(n)
	dst := c.temp()
	op := opcode.ARRAY_GET
	if n.IsHash {
		op = opcode.HASH_GET
	}
	c.emit(op)
	c.emitReg(dst)
	c.emitReg(container)
	c.emitReg(key)
	return dst
}

func (c *Compiler) compileRefExpr(n *ast.RefExpr) uint16 {
	target := c.compileExpr(n.Target, CtxList)
	dst := c.temp()
	c.emit(opcode.CREATE_REF)
	c.emitReg(dst)
	c.emitReg(target)
	return dst
}

func (c *Compiler) compileDerefExpr(n *ast.DerefExpr) uint16 {
	ref := c.compileExpr(n.Target, CtxScalar)
	dst := c.temp()
	c.emit(opcode.DEREF)
	c.emitReg(dst)
	c.emitReg(ref)
	return dst
}

func (c *Compiler) compileTernary(n *ast.TernaryExpr, ctx Context) uint16 {
	cond := c.compileExpr(n.Cond, CtxScalar)
	c.emit(opcode.GOTO_IF_FALSE)
	c.emitReg(cond)
	falsePos := c.emitBranchPlaceholder()
	dst := c.temp()
	thenReg := c.compileExpr(n.Then, ctx)
	c.emitMove(dst, thenReg, ast.SigilScalar)
	c.emit(opcode.GOTO)
	endPos := c.emitBranchPlaceholder()
	c.patch(falsePos)
	elseReg := c.compileExpr(n.Else, ctx)
	c.emitMove(dst, elseReg, ast.SigilScalar)
	c.patch(endPos)
	return dst
}

func (c *Compiler) compileRange(n *ast.RangeExpr, ctx Context) uint16 {
	lo := c.compileExpr(n.Low, CtxScalar)
	hi := c.compileExpr(n.High, CtxScalar)
	arr := c.temp()
	c.emit(opcode.CALL_BUILTIN)
	c.emitReg(arr)
	c.emitWord(c.stringIndex("__range"))
	c.emitWord(uint16(CtxList))
	c.emitWord(2)
	c.emitReg(lo)
	c.emitReg(hi)
	return arr
}

func (c *Compiler) compileSubExpr(n *ast.SubExpr) uint16 {
	cc := c.compileSubBody(n, n.Body, c.curBody().pkg, "", n.Pos().Line)
	dst := c.temp()
	c.emit(opcode.SUB)
	c.emitReg(dst)
	c.emitImm32(int32(c.constIndex(codeConst(cc))))
	c.emitCaptureRegs(cc)
	return dst
}

// emitCaptureRegs emits one register word per entry of cc.CapturedSlots,
// resolved against the enclosing (currently compiling) body — the
// registers the SUB opcode reads at closure-creation time to snapshot
// captured_values. A slot absent from the enclosing body (an intermediate
// sub that never itself referenced the name) cannot occur: the capture
// analyzer records the slot on every sub frame it crosses (see
// lang/capture), so the enclosing body always has a persisted register for
// it by the time its own compileSubBody ran.
func (c *Compiler) emitCaptureRegs(cc *CompiledCode) {
	for _, slot := range cc.CapturedSlots {
		key := sigilKey(slot.Sigil, slot.Name)
		r, ok := c.curBody().alloc.Lookup(key)
		if !ok {
			c.fail(perlerr.New(perlerr.KindCompileError, perlerr.Location{File: c.curBody().source, Line: 0},
				"unresolved capture %q in enclosing scope", slot.Name))
			r = 0
		}
		c.emitReg(r)
	}
}

func (c *Compiler) compileDoBlock(n *ast.BlockExpr, ctx Context) uint16 {
	c.curBody().alloc.OpenScope()
	dst := c.temp()
	c.emit(opcode.LOAD_UNDEF)
	c.emitReg(dst)
	m := len(n.Statements)
	for i, s := range n.Statements {
		if i == m-1 {
			if es, ok := s.(*ast.ExprStmt); ok {
				r := c.compileExpr(es.X, ctx)
				c.emitMove(dst, r, ast.SigilScalar)
				continue
			}
		}
		c.compileStmt(s, CtxVoid)
	}
	c.curBody().alloc.CloseScope()
	return dst
}

// compileEvalBlock compiles `eval { ... }` inline into the current body
// (same register file, same lexical scope) rather than as a nested
// CompiledCode, so references to enclosing `my` variables resolve exactly
// as they would outside the eval — no closure boundary is crossed. A die
// inside the protected region is caught by the interpreter's eval stack
// (pushed by SUB_EVAL_BLOCK_ENTER, popped by SUB_EVAL_BLOCK_LEAVE) which
// sets $@ and jumps to the landing pad on the ENTER operand; dst stays
// UNDEF in that case since it was primed before the protected region ran.
func (c *Compiler) compileEvalBlock(n *ast.EvalBlockExpr) uint16 {
	dst := c.temp()
	c.emit(opcode.LOAD_UNDEF)
	c.emitReg(dst)
	c.emit(opcode.SLOW_OP)
	c.emitWord(uint16(opcode.SUB_EVAL_BLOCK_ENTER))
	landingPad := c.emitBranchPlaceholder()

	c.curBody().alloc.OpenScope()
	if n.Body != nil {
		m := len(n.Body.Statements)
		for i, s := range n.Body.Statements {
			if i == m-1 {
				if es, ok := s.(*ast.ExprStmt); ok {
					r := c.compileExpr(es.X, CtxScalar)
					c.emitMove(dst, r, ast.SigilScalar)
					continue
				}
			}
			c.compileStmt(s, CtxVoid)
		}
	}
	c.curBody().alloc.CloseScope()

	c.emit(opcode.SLOW_OP)
	c.emitWord(uint16(opcode.SUB_EVAL_BLOCK_LEAVE))
	c.patch(landingPad)
	return dst
}

func (c *Compiler) compileEvalString(n *ast.EvalStringExpr) uint16 {
	src := c.compileExpr(n.Source, CtxScalar)
	dst := c.temp()
	c.emit(opcode.SLOW_OP)
	c.emitWord(uint16(opcode.SUB_EVAL_STRING))
	c.emitReg(src)
	c.emitWord(c.stringIndex(c.curBody().pkg))
	c.emitWord(c.stringIndex(c.curBody().source))
	c.emitReg(dst)
	return dst
}

func (c *Compiler) compileTr(n *ast.TrExpr) uint16 {
	target := c.compileExpr(n.Target, CtxScalar)
	dst := c.temp()
	c.emit(opcode.SLOW_OP)
	c.emitWord(uint16(opcode.SUB_TR))
	c.emitReg(target)
	c.emitWord(c.stringIndex(n.Search))
	c.emitWord(c.stringIndex(n.Replace))
	c.emitWord(c.stringIndex(n.Flags))
	c.emitReg(dst)
	return dst
}

func (c *Compiler) compileWantarray() uint16 {
	dst := c.temp()
	c.emit(opcode.SLOW_OP)
	c.emitWord(uint16(opcode.SUB_WANTARRAY))
	c.emitReg(dst)
	return dst
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

var arrayBuiltins = map[string]bool{
	"push": true, "pop": true, "shift": true, "unshift": true,
}

func (c *Compiler) compileCallExpr(n *ast.CallExpr, ctx Context) uint16 {
	if id, ok := n.Callee.(*ast.Ident); ok && id.Sigil == 0 {
		switch id.Name {
		case "push", "unshift":
			return c.compileArrayMutator(id.Name, n.Args)
		case "pop", "shift":
			return c.compileArrayPopper(id.Name, n.Args)
		case "keys", "values":
			return c.compileHashEnumerate(id.Name, n.Args)
		case "exists":
			return c.compileExists(n.Args)
		case "delete":
			return c.compileDelete(n.Args)
		case "scalar":
			return c.compileScalarCoerce(n.Args)
		case "length":
			return c.compileLength(n.Args)
		case "defined", "ref", "bless", "sprintf", "join", "lc", "uc", "reverse", "sort", "chomp",
			"caller", "splice", "weaken":
			return c.compileGenericBuiltin(id.Name, n.Args, ctx)
		}
		// Named sub call: resolve via the current package, qualified at
		// compile time.
		return c.compileNamedCall(id.Name, n.Args, ctx)
	}
	callee := c.compileExpr(n.Callee, CtxScalar)
	return c.emitCall(callee, n.Args, ctx)
}

func (c *Compiler) compileArrayMutator(name string, args []ast.Expression) uint16 {
	arrExpr := args[0]
	var arrReg uint16
	if id, ok := arrExpr.(*ast.Ident); ok {
		arrReg = c.compileIdentRead(&ast.Ident{Sigil: ast.SigilArray, Name: id.Name}, CtxList)
	} else {
		arrReg = c.compileExpr(arrExpr, CtxList)
	}
	op := opcode.ARRAY_PUSH
	if name == "unshift" {
		op = opcode.ARRAY_UNSHIFT
	}
	rest := args[1:]
	c.emit(op)
	c.emitReg(arrReg)
	c.emitWord(uint16(len(rest)))
	for _, a := range rest {
		c.emitReg(c.compileExpr(a, CtxScalar))
	}
	dst := c.temp()
	c.emit(opcode.ARRAY_SIZE)
	c.emitReg(dst)
	c.emitReg(arrReg)
	return dst
}

func (c *Compiler) compileArrayPopper(name string, args []ast.Expression) uint16 {
	var arrReg uint16
	if id, ok := args[0].(*ast.Ident); ok {
		arrReg = c.compileIdentRead(&ast.Ident{Sigil: ast.SigilArray, Name: id.Name}, CtxList)
	} else {
		arrReg = c.compileExpr(args[0], CtxList)
	}
	op := opcode.ARRAY_POP
	if name == "shift" {
		op = opcode.ARRAY_SHIFT
	}
	dst := c.temp()
	c.emit(op)
	c.emitReg(dst)
	c.emitReg(arrReg)
	return dst
}

func (c *Compiler) compileHashEnumerate(name string, args []ast.Expression) uint16 {
	var hReg uint16
	if id, ok := args[0].(*ast.Ident); ok {
		hReg = c.compileIdentRead(&ast.Ident{Sigil: ast.SigilHash, Name: id.Name}, CtxList)
	} else {
		hReg = c.compileExpr(args[0], CtxList)
	}
	op := opcode.HASH_KEYS
	if name == "values" {
		op = opcode.HASH_VALUES
	}
	dst := c.temp()
	c.emit(op)
	c.emitReg(dst)
	c.emitReg(hReg)
	return dst
}

func (c *Compiler) compileExists(args []ast.Expression) uint16 {
	idx, ok := args[0].(*ast.IndexExpr)
	if !ok {
		r := c.temp()
		c.emit(opcode.LOAD_CONST)
		c.emitReg(r)
		c.emitImm32(int32(c.constIndex(value.Bool(false))))
		return r
	}
	container, key := c.compileIndexTarget(idx)
	dst := c.temp()
	c.emit(opcode.HASH_EXISTS)
	c.emitReg(dst)
	c.emitReg(container)
	c.emitReg(key)
	return dst
}

func (c *Compiler) compileDelete(args []ast.Expression) uint16 {
	idx, ok := args[0].(*ast.IndexExpr)
	if !ok {
		r := c.temp()
		c.emit(opcode.LOAD_UNDEF)
		c.emitReg(r)
		return r
	}
	container, key := c.compileIndexTarget(idx)
	dst := c.temp()
	c.emit(opcode.HASH_DELETE)
	c.emitReg(dst)
	c.emitReg(container)
	c.emitReg(key)
	return dst
}

func (c *Compiler) compileScalarCoerce(args []ast.Expression) uint16 {
	v := c.compileExpr(args[0], CtxScalar)
	dst := c.temp()
	c.emit(opcode.LIST_TO_SCALAR)
	c.emitReg(dst)
	c.emitReg(v)
	return dst
}

func (c *Compiler) compileLength(args []ast.Expression) uint16 {
	v := c.compileExpr(args[0], CtxScalar)
	dst := c.temp()
	c.emit(opcode.LENGTH)
	c.emitReg(dst)
	c.emitReg(v)
	return dst
}

func (c *Compiler) compileGenericBuiltin(name string, args []ast.Expression, ctx Context) uint16 {
	regs := make([]uint16, 0, len(args))
	for _, a := range args {
		regs = append(regs, c.compileExpr(a, CtxScalar))
	}
	dst := c.temp()
	c.emit(opcode.CALL_BUILTIN)
	c.emitReg(dst)
	c.emitWord(c.stringIndex(name))
	c.emitWord(uint16(ctx))
	c.emitWord(uint16(len(regs)))
	for _, r := range regs {
		c.emitReg(r)
	}
	return dst
}

func (c *Compiler) compileNamedCall(name string, args []ast.Expression, ctx Context) uint16 {
	qname := qualify(c.curBody().pkg, name)
	callee := c.temp()
	c.emit(opcode.LOAD_PKG_CODE)
	c.emitReg(callee)
	c.emitImm32(int32(c.stringIndex(qname)))
	return c.emitCall(callee, args, ctx)
}

func (c *Compiler) emitCall(callee uint16, args []ast.Expression, ctx Context) uint16 {
	regs := make([]uint16, 0, len(args))
	for _, a := range args {
		regs = append(regs, c.compileExpr(a, CtxScalar))
	}
	dst := c.temp()
	c.emit(opcode.CALL_SUB)
	c.emitReg(dst)
	c.emitReg(callee)
	c.emitWord(uint16(ctx))
	c.emitWord(uint16(len(regs)))
	for _, r := range regs {
		c.emitReg(r)
	}
	return dst
}

func (c *Compiler) compileMethodCallExpr(n *ast.MethodCallExpr, ctx Context) uint16 {
	recv := c.compileMethodReceiver(n.Receiver)
	regs := make([]uint16, 0, len(n.Args))
	for _, a := range n.Args {
		regs = append(regs, c.compileExpr(a, CtxScalar))
	}
	dst := c.temp()
	c.emit(opcode.CALL_METHOD)
	c.emitReg(dst)
	c.emitReg(recv)
	if n.Dynamic != nil {
		dynReg := c.compileExpr(n.Dynamic, CtxScalar)
		c.emitWord(1)
		c.emitReg(dynReg)
	} else {
		c.emitWord(0)
		c.emitWord(c.stringIndex(n.Method))
	}
	c.emitWord(uint16(ctx))
	c.emitWord(uint16(len(regs)))
	for _, r := range regs {
		c.emitReg(r)
	}
	return dst
}

// compileMethodReceiver handles the one place a bareword Ident does not mean
// "look up a package scalar of this name": Class->method() names a package
// directly, so it must compile to the literal class-name string rather than
// the lvalue $Class would resolve to.
func (c *Compiler) compileMethodReceiver(e ast.Expression) uint16 {
	if id, ok := e.(*ast.Ident); ok && id.Sigil == 0 {
		r := c.temp()
		c.emit(opcode.LOAD_STRING)
		c.emitReg(r)
		c.emitImm32(int32(c.stringIndex(id.Name)))
		return r
	}
	return c.compileExpr(e, CtxScalar)
}
