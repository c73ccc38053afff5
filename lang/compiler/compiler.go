// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package compiler implements the bytecode compiler (§4.C5): a recursive
// AST walk that emits a CompiledCode (§3.2) — a flat 16-bit instruction
// stream, a constant pool, and an interned-string pool — threading void/
// scalar/list context top-down, allocating registers via lang/register and
// resolving closure captures via lang/capture. Grounded on the teacher's
// codegen.go emit/patch helper shape (emit4/emitImm/labels/patches),
// carried here directly since this spec has no separate IR stage to lower
// from (see DESIGN.md).
//
// Register cells are untyped (interface{}): a register holds whichever of
// *value.Scalar, *container.Array, *container.Hash, or *compiler.Closure
// the opcode that last wrote it produced. This mirrors how the teacher's
// codegen targets an untyped SSA value slot and lets the bytecode's own
// opcode determine the cell's shape, rather than tagging registers
// statically.
package compiler

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/sha3"

	"github.com/perlrt/gperl/lang/ast"
	"github.com/perlrt/gperl/lang/capture"
	"github.com/perlrt/gperl/lang/opcode"
	"github.com/perlrt/gperl/lang/parser"
	"github.com/perlrt/gperl/lang/perlerr"
	"github.com/perlrt/gperl/lang/register"
	"github.com/perlrt/gperl/lang/value"
)

// parseSource parses an `eval STRING` body using the same front end as
// top-level source, under a synthetic file name for location baking.
func parseSource(name, src string) (*ast.Program, []error) {
	prog, errs := parser.Parse(name, src)
	return prog, errs
}

// CompiledCode is the compiler's output (§3.2): immutable after emission,
// shareable across closures that wrap the same body with different
// captured_values snapshots.
type CompiledCode struct {
	Code          []uint16
	Constants     []*value.Scalar
	Strings       []string
	MaxRegisters  uint16
	SourceName    string
	SourceLine    int
	PCToLine      map[int]int
	CapturedSlots []capture.Slot
	PackageName   string
	SubName       string
}

// Closure pairs an (immutable) CompiledCode with the captured_values
// snapshot taken at SUB-opcode execution time (§3.2 "A closure is a
// CompiledCode paired with a fresh captured_values array"). Scalars are
// shared by pointer (boxed slot); arrays/hashes share the underlying
// container so mutation propagates (§4.C3).
type Closure struct {
	Code     *CompiledCode
	Captured []interface{} // *value.Scalar | *container.Array | *container.Hash
}

// RefKind implements value.RefTarget.
func (*Closure) RefKind() string { return "CODE" }

// Context mirrors the tri-valued call-context tag (§3.4, §4.C6 register 2).
// lang/frame.Context is the sibling type the interpreter surfaces to
// `caller`/`wantarray`; the two are kept numerically identical so the VM
// can convert with a bare type conversion.
type Context int

const (
	CtxVoid Context = iota
	CtxScalar
	CtxList
)

// ---------------------------------------------------------------------------
// eval STRING compilation cache (§4.C5, §6 "Persisted state")
// ---------------------------------------------------------------------------

type evalCache struct{ cache *lru.Cache }

var sharedEvalCache = newEvalCache()

func newEvalCache() *evalCache {
	c, _ := lru.New(128)
	return &evalCache{cache: c}
}

// FingerprintSource returns the cache key for a piece of `eval STRING`
// source text: a SHAKE256 digest, grounded on the teacher's vm_test.go use
// of golang.org/x/crypto/sha3 for expected-hash assertions.
func FingerprintSource(src string) string {
	h := make([]byte, 32)
	sh := sha3.NewShake256()
	sh.Write([]byte(src))
	sh.Read(h)
	return fmt.Sprintf("%x", h)
}

// CachedEval returns a previously compiled `eval STRING` body for the given
// fingerprint, if present.
func CachedEval(fingerprint string) (*CompiledCode, bool) {
	v, ok := sharedEvalCache.cache.Get(fingerprint)
	if !ok {
		return nil, false
	}
	return v.(*CompiledCode), true
}

// PutCachedEval stores a freshly compiled `eval STRING` body under its
// fingerprint.
func PutCachedEval(fingerprint string, cc *CompiledCode) {
	sharedEvalCache.cache.Add(fingerprint, cc)
}

// ---------------------------------------------------------------------------
// Compiler / body state
// ---------------------------------------------------------------------------

// body accumulates one CompiledCode's emission state (one per sub body,
// the top-level program, or an eval STRING body).
type body struct {
	code       []uint16
	constants  []*value.Scalar
	strings    []string
	stringIdx  map[string]int
	pcToLine   map[int]int
	alloc      *register.Allocator
	pkg        string
	subName    string
	source     string
	sourceLine int
	captures   []capture.Slot
	loopLabels []loopLabel
}

type loopLabel struct {
	name      string
	testPos   int // GOTO target for `next`/loop re-test
	bodyStart int // GOTO target for `redo`
	breaks    []int // placeholder positions needing patch to the loop's exit
}

// Compiler walks a parsed Program (or a single sub body, for nested
// closures and `eval STRING`) and emits CompiledCode. One Compiler is used
// per top-level Compile/CompileEvalString call; nested bodies push/pop
// `body` frames and share the single capture.Result computed once over the
// whole tree being compiled.
type Compiler struct {
	captures capture.Result
	bodies   []*body
	errs     []error
}

// Compile lowers a top-level Program into its CompiledCode (§4.C5). pkg is
// the starting package (normally "main"); source is the file name baked
// into die/warn location strings.
func Compile(prog *ast.Program, pkg, source string) (*CompiledCode, []error) {
	c := &Compiler{captures: capture.Analyze(prog)}
	c.pushBody(pkg, "", source, 0)
	for _, s := range prog.Statements {
		c.compileStmt(s, CtxVoid)
	}
	r := c.temp()
	c.emit(opcode.LOAD_UNDEF)
	c.emitReg(r)
	c.emit(opcode.RETURN)
	c.emitReg(r)
	cc := c.popBody()
	return cc, c.errs
}

// CompileEvalString compiles a fresh `eval STRING` body, reusing the
// calling body's package as its starting package (dynamic `eval STRING`
// inherits the enclosing package, per Perl semantics).
func CompileEvalString(src, pkg, source string, line int) (*CompiledCode, []error) {
	prog, perrs := parseSource(source, src)
	if len(perrs) > 0 {
		return nil, perrs
	}
	c := &Compiler{captures: capture.Analyze(prog)}
	c.pushBody(pkg, "", source, line)
	for _, s := range prog.Statements {
		c.compileStmt(s, CtxVoid)
	}
	r := c.temp()
	c.emit(opcode.LOAD_UNDEF)
	c.emitReg(r)
	c.emit(opcode.RETURN)
	c.emitReg(r)
	return c.popBody(), c.errs
}

func (c *Compiler) pushBody(pkg, name, source string, line int) {
	c.bodies = append(c.bodies, &body{
		alloc:      register.New(),
		pkg:        pkg,
		subName:    name,
		source:     source,
		sourceLine: line,
		stringIdx:  make(map[string]int),
		pcToLine:   make(map[int]int),
	})
}

func (c *Compiler) popBody() *CompiledCode {
	n := len(c.bodies)
	b := c.bodies[n-1]
	c.bodies = c.bodies[:n-1]
	return &CompiledCode{
		Code:          b.code,
		Constants:     b.constants,
		Strings:       b.strings,
		MaxRegisters:  b.alloc.MaxUsed(),
		SourceName:    b.source,
		SourceLine:    b.sourceLine,
		PCToLine:      b.pcToLine,
		CapturedSlots: b.captures,
		PackageName:   b.pkg,
		SubName:       b.subName,
	}
}

func (c *Compiler) curBody() *body { return c.bodies[len(c.bodies)-1] }

func (c *Compiler) fail(err error) { c.errs = append(c.errs, err) }

func sigilKey(sig ast.Sigil, name string) string {
	return string(rune(sig)) + name
}

func qualify(pkg, name string) string {
	for i := 0; i+1 < len(name); i++ {
		if name[i] == ':' && name[i+1] == ':' {
			return name
		}
	}
	return pkg + "::" + name
}

// ---------------------------------------------------------------------------
// emit helpers
// ---------------------------------------------------------------------------

func (c *Compiler) emit(op opcode.Op) { b := c.curBody(); b.code = append(b.code, uint16(op)) }

func (c *Compiler) emitWord(w uint16) { b := c.curBody(); b.code = append(b.code, w) }

func (c *Compiler) emitImm32(v int32) {
	b := c.curBody()
	b.code = append(b.code, uint16(uint32(v)>>16), uint16(uint32(v)))
}

// emitReg emits a register index as an operand word (kept as a named
// helper, distinct from emitImm32, purely for readability at call sites).
func (c *Compiler) emitReg(r uint16) { c.emitWord(r) }

func (c *Compiler) temp() uint16 {
	r, err := c.curBody().alloc.Temp()
	if err != nil {
		c.fail(err)
	}
	return r
}

func (c *Compiler) here() int { return len(c.curBody().code) }

// emitBranchPlaceholder emits a 2-word placeholder offset and returns its
// position for a later Patch call.
func (c *Compiler) emitBranchPlaceholder() int {
	pos := c.here()
	c.emitImm32(0)
	return pos
}

// patch backfills a previously emitted placeholder with the forward offset
// from just after the placeholder to the current position.
func (c *Compiler) patch(pos int) {
	b := c.curBody()
	target := int32(len(b.code) - (pos + 2))
	b.code[pos] = uint16(uint32(target) >> 16)
	b.code[pos+1] = uint16(uint32(target))
}

// emitBranchTo emits a 2-word offset targeting a previously recorded
// position (a backward branch, e.g. a loop's re-test).
func (c *Compiler) emitBranchTo(dest int) {
	b := c.curBody()
	target := int32(dest - (len(b.code) + 2))
	c.emitImm32(target)
}

func (c *Compiler) constIndex(v *value.Scalar) uint16 {
	b := c.curBody()
	b.constants = append(b.constants, v)
	return uint16(len(b.constants) - 1)
}

func (c *Compiler) stringIndex(s string) uint16 {
	b := c.curBody()
	if i, ok := b.stringIdx[s]; ok {
		return uint16(i)
	}
	b.strings = append(b.strings, s)
	idx := len(b.strings) - 1
	b.stringIdx[s] = idx
	return uint16(idx)
}

// locationSuffix bakes the " at FILE line N." suffix (§4.C5 die/warn
// precomputation) into the string pool and returns its index — computed
// once per call site, not per invocation.
func (c *Compiler) locationSuffix(line int) uint16 {
	loc := perlerr.Location{File: c.curBody().source, Line: line}
	return c.stringIndex(loc.String())
}
