// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package vm implements the execution core's bytecode interpreter (§4.C6)
// and its cold-path slow-op handler (§4.C7): a register-machine dispatch
// loop that decodes a compiler.CompiledCode's 16-bit instruction stream and
// executes it against a register file of untyped cells (*value.Scalar,
// *container.Array, or *container.Hash), wired to lang/namespace for
// package globals and `local`, lang/frame for the caller-visible call
// stack, and lang/perlerr for every runtime fault. Grounded on the
// teacher's vm.go Step/execute dispatch loop shape (a decode-then-switch
// per instruction, a callStack for nested invocations); the teacher's
// gas metering, halted flag, and blockchain/agent fields have no
// counterpart in this domain and are dropped rather than generalized (see
// DESIGN.md).
package vm

import (
	"os"
	"strings"

	"github.com/perlrt/gperl/internal/plog"
	"github.com/perlrt/gperl/lang/compiler"
	"github.com/perlrt/gperl/lang/container"
	"github.com/perlrt/gperl/lang/frame"
	"github.com/perlrt/gperl/lang/ioruntime"
	"github.com/perlrt/gperl/lang/namespace"
	"github.com/perlrt/gperl/lang/opcode"
	"github.com/perlrt/gperl/lang/perlerr"
	"github.com/perlrt/gperl/lang/register"
	"github.com/perlrt/gperl/lang/value"
)

// Interp is one execution-core instance (§5): its own namespace, call-frame
// stack, and I/O streams, so multiple instances never share mutable state.
type Interp struct {
	NS     *namespace.Namespace
	frames *frame.Stack
	Stdout ioruntime.FileHandle
	Stderr ioruntime.FileHandle
}

// New returns a fresh instance with its own namespace and frame stack,
// writing PRINT/SAY/DIE/WARN output to os.Stdout/os.Stderr by default.
func New() *Interp {
	return &Interp{
		NS:     namespace.New(),
		frames: frame.New(),
		Stdout: ioruntime.NewWriter(os.Stdout),
		Stderr: ioruntime.NewWriter(os.Stderr),
	}
}

// execFrame is one active CompiledCode invocation's mutable execution
// state: its register file and program counter, plus the eval-block
// protection stack active within it. Kept separate from frame.Frame (which
// is the caller()/backtrace-facing record) to avoid coupling lang/frame to
// the interpreter's register representation.
type execFrame struct {
	fr         *frame.Frame
	cc         *compiler.CompiledCode
	regs       []interface{}
	pc         int
	evalGuards []evalGuard
}

// evalGuard records one active `eval { ... }` protected region: where to
// resume on a caught die, and the `local` stack depth to unwind to (§5
// "guaranteed release on all exit paths" applies equally to an eval catch).
type evalGuard struct {
	landingPC int
	mark      namespace.Mark
}

func splitQual(qname string) (pkg, name string) {
	if i := strings.LastIndex(qname, "::"); i >= 0 {
		return qname[:i], qname[i+2:]
	}
	return "main", qname
}

func decodeImm32(hi, lo uint16) int32 {
	return int32(uint32(hi)<<16 | uint32(lo))
}

// assignScalar writes src's value into dst in place when dst already holds
// an identity (preserving any closure/aliasing that identity participates
// in), or clones src into a fresh Scalar when dst is the zero value (first
// write into a register or container slot). This single rule, applied
// uniformly by MOVE, ARRAY_SET, HASH_SET, and STORE_PKG_SCALAR, is what
// makes closures over `my` variables and `local`/global writes observe
// each other correctly despite the compiler emitting the same MOVE op for
// both "declare" and "reassign".
func assignScalar(dst, src *value.Scalar) *value.Scalar {
	if dst != nil {
		dst.Assign(src)
		return dst
	}
	return src.Clone()
}

// RunProgram executes a top-level CompiledCode (the main script, or a
// freshly parsed `eval STRING` body) to completion and returns its final
// RETURN value.
func (vm *Interp) RunProgram(cc *compiler.CompiledCode) (interface{}, error) {
	return vm.invoke(cc, nil, container.NewArray(), frame.Void, value.Undef())
}

// invoke pushes a new call frame for cc, binds captured/@_ /invocant, runs
// the body to its RETURN, and pops the frame (unwinding `local`s) on every
// exit path.
func (vm *Interp) invoke(cc *compiler.CompiledCode, captured []interface{}, args *container.Array, ctx frame.Context, invocant *value.Scalar) (interface{}, error) {
	regs := make([]interface{}, cc.MaxRegisters)
	regs[register.RegThis] = invocant
	regs[register.RegArgs] = args
	regs[register.RegWantarray] = value.Int(int64(ctx))
	for i, c := range captured {
		regs[register.FirstUser+i] = c
	}

	fr := &frame.Frame{
		Code:       cc,
		Package:    cc.PackageName,
		SubName:    cc.SubName,
		Context:    ctx,
		Line:       cc.SourceLine,
		LocalMark:  vm.NS.Mark(),
		SourceFile: cc.SourceName,
	}
	vm.frames.Push(fr)
	plog.Trace("invoke", "package", fr.Package, "sub", fr.SubName, "depth", vm.frames.Depth())
	ef := &execFrame{fr: fr, cc: cc, regs: regs}
	defer func() {
		vm.NS.UnwindTo(fr.LocalMark)
		vm.frames.Pop()
	}()

	result, err := vm.run(ef)
	return result, err
}

// tailCallSignal is step()'s internal control transfer for a `goto &sub`
// tail call (§4.C6): run() intercepts it before treating it as an
// ordinary error and reuses the current execFrame in place via tailInto,
// rather than recursing through invoke. It never escapes this package.
type tailCallSignal struct {
	closure *compiler.Closure
	args    *container.Array
}

func (s *tailCallSignal) Error() string { return "internal: unhandled tail call signal" }

// resolveTailCall decodes TAIL_CALL_SUB's (calleeReg, countWord, N arg regs
// | spreadSentinel + one reg) layout and resolves the callee to a Closure,
// mirroring execCallSub's resolution without invoking it.
func (vm *Interp) resolveTailCall(ef *execFrame, reg, word func() uint16, loc func() perlerr.Location) (*tailCallSignal, error) {
	calleeReg := reg()
	count := word()

	var args *container.Array
	if count == spreadSentinel {
		src := reg()
		args = asArray(ef.regs[src])
	} else {
		vals := make([]*value.Scalar, count)
		for i := 0; i < int(count); i++ {
			vals[i] = ef.regs[reg()].(*value.Scalar)
		}
		args = container.NewArray(vals...)
	}

	callee, ok := ef.regs[calleeReg].(*value.Scalar)
	if !ok || callee.Tag() != value.TagCodeRef {
		return nil, perlerr.New(perlerr.KindUndefinedSub, loc(), "Undefined subroutine called")
	}
	closure, ok := callee.CodeTarget().(*compiler.Closure)
	if !ok {
		if cc := compiler.CodeOf(callee); cc != nil {
			closure = &compiler.Closure{Code: cc}
		} else {
			return nil, perlerr.New(perlerr.KindUndefinedSub, loc(), "Not a CODE reference")
		}
	}
	return &tailCallSignal{closure: closure, args: args}, nil
}

// tailInto replaces ef's code, registers, and program counter with
// closure's in place, and repoints ef.fr (the same frame.Frame the caller
// stack already holds) at the new code, so frame depth and the Go call
// stack both stay exactly where they were across a `goto &sub` chain of
// any length instead of growing with recursion depth.
func (vm *Interp) tailInto(ef *execFrame, closure *compiler.Closure, args *container.Array) {
	vm.NS.UnwindTo(ef.fr.LocalMark)

	cc := closure.Code
	regs := make([]interface{}, cc.MaxRegisters)
	regs[register.RegThis] = ef.regs[register.RegThis]
	regs[register.RegArgs] = args
	regs[register.RegWantarray] = ef.regs[register.RegWantarray]
	for i, c := range closure.Captured {
		regs[register.FirstUser+i] = c
	}

	ef.cc = cc
	ef.regs = regs
	ef.pc = 0
	ef.evalGuards = nil

	ef.fr.Code = cc
	ef.fr.Package = cc.PackageName
	ef.fr.SubName = cc.SubName
	ef.fr.Line = cc.SourceLine
	ef.fr.SourceFile = cc.SourceName
	ef.fr.LocalMark = vm.NS.Mark()

	plog.Trace("tail call", "package", ef.fr.Package, "sub", ef.fr.SubName, "depth", vm.frames.Depth())
}

// run decodes and dispatches ef.cc.Code starting at ef.pc until a RETURN is
// reached or an uncaught error propagates out. A die caught by an active
// eval-block guard resumes execution at the guard's landing pad instead of
// returning.
func (vm *Interp) run(ef *execFrame) (interface{}, error) {
	for {
		// Re-read ef.cc.Code every iteration rather than caching it once:
		// a tail call (below) swaps ef.cc in place mid-loop.
		code := ef.cc.Code
		if ef.pc >= len(code) {
			return value.Undef(), nil
		}
		ef.fr.PC = ef.pc
		if line, ok := ef.cc.PCToLine[ef.pc]; ok {
			ef.fr.Line = line
		}
		result, done, err := vm.step(ef)
		if err != nil {
			if sig, ok := err.(*tailCallSignal); ok {
				vm.tailInto(ef, sig.closure, sig.args)
				continue
			}
			if pe, ok := err.(*perlerr.PerlError); ok && len(ef.evalGuards) > 0 {
				g := ef.evalGuards[len(ef.evalGuards)-1]
				ef.evalGuards = ef.evalGuards[:len(ef.evalGuards)-1]
				vm.NS.UnwindTo(g.mark)
				// Frames ride along on the error for an explicit
				// Carp::longmess($@)-equivalent call; plain $@ is just the
				// die message (Perl never folds the backtrace into $@
				// itself).
				pe.Frames = vm.frames.Backtrace()
				vm.NS.SetScalar(ef.fr.Package, "@", value.String(pe.Error()))
				ef.pc = g.landingPC
				continue
			}
			return nil, err
		}
		if done {
			return result, nil
		}
	}
}

// step decodes and executes exactly one instruction, advancing ef.pc past
// its operands (or leaving ef.pc at a branch target it already set). done
// is true once a RETURN has produced the frame's result.
func (vm *Interp) step(ef *execFrame) (result interface{}, done bool, err error) {
	code := ef.cc.Code
	op := opcode.Op(code[ef.pc])
	ef.pc++
	loc := func() perlerr.Location { return perlerr.Location{File: ef.cc.SourceName, Line: ef.fr.Line} }

	reg := func() uint16 { r := code[ef.pc]; ef.pc++; return r }
	word := func() uint16 { w := code[ef.pc]; ef.pc++; return w }
	imm32 := func() int32 {
		hi, lo := code[ef.pc], code[ef.pc+1]
		ef.pc += 2
		return decodeImm32(hi, lo)
	}
	branchTarget := func() int {
		off := int(imm32())
		return ef.pc + off
	}

	switch op {
	case opcode.NOP:
		return nil, false, nil

	case opcode.RETURN:
		r := reg()
		return ef.regs[r], true, nil

	case opcode.GOTO:
		ef.pc = branchTarget()
		return nil, false, nil

	case opcode.GOTO_IF_FALSE:
		c := reg()
		target := branchTarget()
		if !truthyCell(ef.regs[c]) {
			ef.pc = target
		}
		return nil, false, nil

	case opcode.GOTO_IF_TRUE:
		c := reg()
		target := branchTarget()
		if truthyCell(ef.regs[c]) {
			ef.pc = target
		}
		return nil, false, nil

	case opcode.MOVE:
		dst, src := reg(), reg()
		ef.regs[dst] = vm.moveInto(ef.regs[dst], ef.regs[src])
		return nil, false, nil

	case opcode.LOAD_CONST:
		dst := reg()
		idx := imm32()
		ef.regs[dst] = ef.cc.Constants[idx].Clone()
		return nil, false, nil

	case opcode.LOAD_INT:
		dst := reg()
		v := imm32()
		ef.regs[dst] = value.Int(int64(v))
		return nil, false, nil

	case opcode.LOAD_STRING:
		dst := reg()
		idx := imm32()
		ef.regs[dst] = value.String(ef.cc.Strings[idx])
		return nil, false, nil

	case opcode.LOAD_UNDEF:
		dst := reg()
		ef.regs[dst] = value.Undef()
		return nil, false, nil

	case opcode.LOAD_PKG_SCALAR:
		dst := reg()
		qname := ef.cc.Strings[imm32()]
		pkg, name := splitQual(qname)
		ef.regs[dst] = vm.NS.Scalar(pkg, name)
		return nil, false, nil

	case opcode.STORE_PKG_SCALAR:
		src := reg()
		qname := ef.cc.Strings[imm32()]
		pkg, name := splitQual(qname)
		cur := vm.NS.Scalar(pkg, name)
		if err := cur.CheckWritable(loc()); err != nil {
			return nil, false, err
		}
		vm.NS.SetScalar(pkg, name, assignScalar(cur, ef.regs[src].(*value.Scalar)))
		return nil, false, nil

	case opcode.LOAD_PKG_ARRAY:
		dst := reg()
		qname := ef.cc.Strings[imm32()]
		pkg, name := splitQual(qname)
		ef.regs[dst] = vm.NS.Array(pkg, name)
		return nil, false, nil

	case opcode.STORE_PKG_ARRAY:
		src := reg()
		qname := ef.cc.Strings[imm32()]
		pkg, name := splitQual(qname)
		vm.NS.SetArray(pkg, name, asArray(ef.regs[src]).Clone())
		return nil, false, nil

	case opcode.LOAD_PKG_HASH:
		dst := reg()
		qname := ef.cc.Strings[imm32()]
		pkg, name := splitQual(qname)
		ef.regs[dst] = vm.NS.Hash(pkg, name)
		return nil, false, nil

	case opcode.STORE_PKG_HASH:
		src := reg()
		qname := ef.cc.Strings[imm32()]
		pkg, name := splitQual(qname)
		vm.NS.SetHash(pkg, name, asHash(ef.regs[src]).Clone())
		return nil, false, nil

	case opcode.LOAD_PKG_CODE:
		dst := reg()
		qname := ef.cc.Strings[imm32()]
		pkg, name := splitQual(qname)
		if code, ok := vm.NS.LookupSub(pkg, name); ok {
			ef.regs[dst] = code
		} else {
			ef.regs[dst] = value.Undef()
		}
		return nil, false, nil

	case opcode.STORE_PKG_CODE:
		src := reg()
		qname := ef.cc.Strings[imm32()]
		pkg, name := splitQual(qname)
		vm.NS.RegisterSub(pkg, name, ef.regs[src].(*value.Scalar))
		return nil, false, nil

	case opcode.ADD, opcode.SUB, opcode.MUL, opcode.DIV, opcode.MOD, opcode.POW,
		opcode.CONCAT, opcode.REPEAT,
		opcode.NUM_EQ, opcode.NUM_NEQ, opcode.NUM_LT, opcode.NUM_GT, opcode.NUM_LTE, opcode.NUM_GTE, opcode.NUM_CMP,
		opcode.STR_EQ, opcode.STR_NEQ, opcode.STR_LT, opcode.STR_GT, opcode.STR_LTE, opcode.STR_GTE, opcode.STR_CMP,
		opcode.LOGICAL_AND, opcode.LOGICAL_OR:
		dst, a, b := reg(), reg(), reg()
		l, r := ef.regs[a].(*value.Scalar), ef.regs[b].(*value.Scalar)
		v, err := vm.binaryOp(op, l, r, loc())
		if err != nil {
			return nil, false, err
		}
		ef.regs[dst] = v
		return nil, false, nil

	case opcode.ADD_INT, opcode.SUB_INT, opcode.MUL_INT:
		dst, a, b := reg(), reg(), reg()
		l, r := ef.regs[a].(*value.Scalar), ef.regs[b].(*value.Scalar)
		var n int64
		switch op {
		case opcode.ADD_INT:
			n = l.Int64() + r.Int64()
		case opcode.SUB_INT:
			n = l.Int64() - r.Int64()
		case opcode.MUL_INT:
			n = l.Int64() * r.Int64()
		}
		ef.regs[dst] = value.Int(n)
		return nil, false, nil

	case opcode.NEG:
		dst, src := reg(), reg()
		s := ef.regs[src].(*value.Scalar)
		if s.Tag() == value.TagInt {
			ef.regs[dst] = value.Int(-s.Int64())
		} else {
			ef.regs[dst] = value.Double(-s.Float64())
		}
		return nil, false, nil

	case opcode.INCR_MAGIC:
		r := reg()
		ef.regs[r].(*value.Scalar).Increment()
		return nil, false, nil

	case opcode.LENGTH:
		dst, src := reg(), reg()
		ef.regs[dst] = value.Int(int64(len(ef.regs[src].(*value.Scalar).Str())))
		return nil, false, nil

	case opcode.LOGICAL_NOT:
		dst, src := reg(), reg()
		ef.regs[dst] = value.Bool(!truthyCell(ef.regs[src]))
		return nil, false, nil

	case opcode.ARRAY_CREATE:
		dst := reg()
		ef.regs[dst] = container.NewArray()
		return nil, false, nil

	case opcode.ARRAY_GET:
		dst, arr, idx := reg(), reg(), reg()
		ef.regs[dst] = asArray(ef.regs[arr]).Get(int(ef.regs[idx].(*value.Scalar).Int64()))
		return nil, false, nil

	case opcode.ARRAY_SET:
		arr, idx, src := reg(), reg(), reg()
		a := asArray(ef.regs[arr])
		i := int(ef.regs[idx].(*value.Scalar).Int64())
		a.Set(i, assignScalar(a.Get(i), ef.regs[src].(*value.Scalar)))
		return nil, false, nil

	case opcode.ARRAY_PUSH:
		return nil, false, vm.execArrayPush(ef, reg, word, false)

	case opcode.ARRAY_UNSHIFT:
		return nil, false, vm.execArrayPush(ef, reg, word, true)

	case opcode.ARRAY_POP:
		dst, arr := reg(), reg()
		ef.regs[dst] = asArray(ef.regs[arr]).Pop()
		return nil, false, nil

	case opcode.ARRAY_SHIFT:
		dst, arr := reg(), reg()
		ef.regs[dst] = asArray(ef.regs[arr]).Shift()
		return nil, false, nil

	case opcode.ARRAY_SIZE:
		dst, arr := reg(), reg()
		ef.regs[dst] = value.Int(int64(asArray(ef.regs[arr]).Len()))
		return nil, false, nil

	case opcode.HASH_CREATE:
		dst := reg()
		ef.regs[dst] = container.NewHash()
		return nil, false, nil

	case opcode.HASH_GET:
		dst, h, k := reg(), reg(), reg()
		ef.regs[dst] = asHash(ef.regs[h]).Get(ef.regs[k].(*value.Scalar).Str())
		return nil, false, nil

	case opcode.HASH_SET:
		h, k, src := reg(), reg(), reg()
		hh := asHash(ef.regs[h])
		key := ef.regs[k].(*value.Scalar).Str()
		hh.Set(key, assignScalar(hh.Get(key), ef.regs[src].(*value.Scalar)))
		return nil, false, nil

	case opcode.HASH_EXISTS:
		dst, h, k := reg(), reg(), reg()
		ef.regs[dst] = value.Bool(asHash(ef.regs[h]).Exists(ef.regs[k].(*value.Scalar).Str()))
		return nil, false, nil

	case opcode.HASH_DELETE:
		dst, h, k := reg(), reg(), reg()
		ef.regs[dst] = asHash(ef.regs[h]).Delete(ef.regs[k].(*value.Scalar).Str())
		return nil, false, nil

	case opcode.HASH_KEYS:
		dst, h := reg(), reg()
		keys := asHash(ef.regs[h]).Keys()
		vals := make([]*value.Scalar, len(keys))
		for i, k := range keys {
			vals[i] = value.String(k)
		}
		ef.regs[dst] = container.NewArray(vals...)
		return nil, false, nil

	case opcode.HASH_VALUES:
		dst, h := reg(), reg()
		ef.regs[dst] = container.NewArray(asHash(ef.regs[h]).Values()...)
		return nil, false, nil

	case opcode.CALL_SUB:
		return nil, false, vm.execCallSub(ef, reg, word)

	case opcode.CALL_METHOD:
		return nil, false, vm.execCallMethod(ef, reg, word)

	case opcode.CALL_BUILTIN:
		return nil, false, vm.execCallBuiltin(ef, reg, word)

	case opcode.TAIL_CALL_SUB:
		sig, err := vm.resolveTailCall(ef, reg, word, loc)
		if err != nil {
			return nil, false, err
		}
		return nil, false, sig

	case opcode.LIST_TO_SCALAR:
		dst, src := reg(), reg()
		switch v := ef.regs[src].(type) {
		case *container.Array:
			ef.regs[dst] = value.Int(int64(v.Len()))
		case *container.Hash:
			ef.regs[dst] = value.Int(int64(v.Len()))
		default:
			ef.regs[dst] = v.(*value.Scalar)
		}
		return nil, false, nil

	case opcode.SCALAR_TO_LIST:
		dst, src := reg(), reg()
		ef.regs[dst] = container.NewArray(ef.regs[src].(*value.Scalar))
		return nil, false, nil

	case opcode.CREATE_REF:
		dst, src := reg(), reg()
		target := ef.regs[src].(value.RefTarget)
		ef.regs[dst] = value.Reference(target, "")
		return nil, false, nil

	case opcode.DEREF:
		dst, src := reg(), reg()
		s := ef.regs[src].(*value.Scalar)
		if s.Tag() != value.TagReference && s.Tag() != value.TagWeakReference {
			return nil, false, perlerr.New(perlerr.KindTypeError, loc(), "Not a reference")
		}
		if s.Ref() == nil {
			return nil, false, perlerr.New(perlerr.KindUndefined, loc(), "Can't use an undefined value as a reference")
		}
		ef.regs[dst] = s.Ref()
		return nil, false, nil

	case opcode.GET_TYPE:
		dst, src := reg(), reg()
		ef.regs[dst] = value.String(cellRefKind(ef.regs[src]))
		return nil, false, nil

	case opcode.PRINT, opcode.SAY:
		return nil, false, vm.execPrint(ef, op, word, reg)

	case opcode.DIE, opcode.WARN:
		return nil, false, vm.execDieWarn(ef, op, word, reg, loc)

	case opcode.SUB:
		dst := reg()
		idx := imm32()
		inner := compiler.CodeOf(ef.cc.Constants[idx])
		captured := make([]interface{}, len(inner.CapturedSlots))
		for i := range inner.CapturedSlots {
			captured[i] = ef.regs[reg()]
		}
		ef.regs[dst] = value.CodeRef(&compiler.Closure{Code: inner, Captured: captured})
		return nil, false, nil

	case opcode.CREATE_LAST, opcode.CREATE_NEXT, opcode.CREATE_REDO, opcode.CREATE_GOTO,
		opcode.IS_CONTROL_FLOW, opcode.GET_CONTROL_FLOW_TYPE, opcode.SUBSTR:
		// Never emitted by this front end: loop control is lowered directly
		// to GOTO at compile time and `goto &sub` lowers to TAIL_CALL_SUB
		// (see codegen.go's compileLoopControl/compileGoto), and substr()
		// has no compileGenericBuiltin entry to reach this opcode from.
		// Decoded here only so a hand-assembled program using them fails
		// loudly rather than misinterpreting operand words as something
		// else.
		return nil, false, perlerr.New(perlerr.KindNotImplemented, loc(), "opcode %s is not implemented by this execution core", op)

	case opcode.SLOW_OP:
		return vm.execSlowOp(ef, reg, word, loc)
	}
	return nil, false, perlerr.New(perlerr.KindNotImplemented, loc(), "unknown opcode %d", op)
}

func truthyCell(cell interface{}) bool {
	switch v := cell.(type) {
	case *value.Scalar:
		return v.Truthy()
	case *container.Array:
		return v.Len() > 0
	case *container.Hash:
		return v.Len() > 0
	}
	return false
}

func asArray(cell interface{}) *container.Array {
	if a, ok := cell.(*container.Array); ok {
		return a
	}
	return container.NewArray()
}

func asHash(cell interface{}) *container.Hash {
	if h, ok := cell.(*container.Hash); ok {
		return h
	}
	return container.NewHash()
}

func cellRefKind(cell interface{}) string {
	switch v := cell.(type) {
	case *value.Scalar:
		return v.RefKindOf()
	case *container.Array:
		return "ARRAY"
	case *container.Hash:
		return "HASH"
	}
	return ""
}

// moveInto implements MOVE's dst-identity-preserving-or-fresh-clone rule
// (see assignScalar) generalized across the three register-cell shapes.
func (vm *Interp) moveInto(dst, src interface{}) interface{} {
	switch sv := src.(type) {
	case *value.Scalar:
		if dv, ok := dst.(*value.Scalar); ok && dv != nil {
			dv.Assign(sv)
			return dv
		}
		return sv.Clone()
	case *container.Array:
		if dv, ok := dst.(*container.Array); ok && dv != nil {
			dv.Assign(sv)
			return dv
		}
		return sv.Clone()
	case *container.Hash:
		if dv, ok := dst.(*container.Hash); ok && dv != nil {
			dv.Assign(sv)
			return dv
		}
		return sv.Clone()
	default:
		return src
	}
}

func (vm *Interp) execArrayPush(ef *execFrame, reg, word func() uint16, unshift bool) error {
	arr := reg()
	n := int(word())
	vals := make([]*value.Scalar, n)
	for i := 0; i < n; i++ {
		vals[i] = ef.regs[reg()].(*value.Scalar).Clone()
	}
	a := asArray(ef.regs[arr])
	if unshift {
		a.Unshift(vals...)
	} else {
		a.Push(vals...)
	}
	return nil
}

func (vm *Interp) execPrint(ef *execFrame, op opcode.Op, word func() uint16, reg func() uint16) error {
	n := int(word())
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString(ef.regs[reg()].(*value.Scalar).Str())
	}
	if op == opcode.SAY {
		sb.WriteByte('\n')
	}
	_, err := vm.Stdout.Write([]byte(sb.String()))
	return err
}

func (vm *Interp) execDieWarn(ef *execFrame, op opcode.Op, word func() uint16, reg func() uint16, loc func() perlerr.Location) error {
	n := int(word())
	var parts []string
	for i := 0; i < n; i++ {
		parts = append(parts, ef.regs[reg()].(*value.Scalar).Str())
	}
	// The last part is the compiler-baked " at FILE line N." suffix
	// (codegen.go's compileDieWarn); Perl suppresses it when the message
	// already ends in a newline.
	suffix := ""
	if len(parts) > 0 {
		suffix = parts[len(parts)-1]
		parts = parts[:len(parts)-1]
	}
	msg := strings.Join(parts, "")
	if op == opcode.WARN {
		if msg == "" {
			msg = "Warning: something's wrong"
		}
		if !strings.HasSuffix(msg, "\n") {
			msg += suffix
		}
		vm.Stderr.Write([]byte(msg))
		return nil
	}
	if msg == "" {
		msg = "Died"
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += suffix
	}
	pe := &perlerr.PerlError{Kind: perlerr.KindDie, Message: msg}
	return pe
}
