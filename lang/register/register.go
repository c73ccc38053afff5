// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package register implements the per-compiled-body register allocator
// (§4.C4): a name -> register-index map with scope discipline, grounded on
// the teacher's codegen.go regMap/nextReg pair, generalized from a flat
// SSA-value map to a stack of lexical scopes.
package register

import "github.com/perlrt/gperl/lang/perlerr"

// Reserved register indices, fixed by the spec for every compiled body.
const (
	RegThis      = 0 // invocant, for method bodies
	RegArgs      = 1 // @_
	RegWantarray = 2 // call-context word

	// FirstUser is the first index available for declared/temp/persisted
	// registers. Captured-slot registers are claimed here in
	// CompiledCode.CapturedSlots order by compileSubBody before anything
	// else in the body is compiled, so the interpreter's SUB-opcode
	// handler can place capture i directly at FirstUser+i without a name
	// lookup.
	FirstUser = 3
)

// MaxRegisters is the hard cap (§4.C4): compilation fails past this point.
const MaxRegisters = 65535

type scope struct {
	names map[string]uint16 // declared names claimed in this scope
	start uint16            // lowest index claimed in this scope
}

// Allocator tracks register claims for a single compiled body (one sub
// body, the top-level program, or an eval STRING body). Temporaries and
// lexical declarations share the same index pool; a scope-exit releases
// everything claimed since the matching OpenScope, per §4.C4 "tie-break"
// and reuse rules.
type Allocator struct {
	next      uint16
	high      uint16 // high-water mark, becomes CompiledCode.max_registers
	scopes    []*scope
	persisted map[string]uint16 // closure captures / state vars: never reused
}

// New returns an allocator with the three reserved registers pre-claimed.
func New() *Allocator {
	a := &Allocator{next: FirstUser, persisted: make(map[string]uint16)}
	a.OpenScope()
	return a
}

// MaxUsed returns the high-water mark, i.e. CompiledCode.max_registers.
func (a *Allocator) MaxUsed() uint16 { return a.high }

// OpenScope begins a new lexical scope (sub body, block, loop body).
func (a *Allocator) OpenScope() {
	a.scopes = append(a.scopes, &scope{names: make(map[string]uint16), start: a.next})
}

// CloseScope releases every register claimed since the matching OpenScope,
// making those indices available for reuse by later sibling scopes — but
// never by anything still live within the scope that just closed (§4.C4:
// "no register reuse before scope exit").
func (a *Allocator) CloseScope() {
	n := len(a.scopes)
	if n == 0 {
		return
	}
	top := a.scopes[n-1]
	a.scopes = a.scopes[:n-1]
	a.next = top.start
	// Persistent registers outlive the scope that claimed them.
	for _, r := range a.persisted {
		if r >= a.next {
			a.next = r + 1
		}
	}
}

func (a *Allocator) claim() (uint16, error) {
	if a.next >= MaxRegisters {
		return 0, perlerr.New(perlerr.KindTooManyRegisters, perlerr.Location{},
			"body requires more than %d registers", MaxRegisters)
	}
	r := a.next
	a.next++
	if a.next > a.high {
		a.high = a.next
	}
	return r, nil
}

// Declare claims a fresh register for a my/our/local/state-declared name in
// the current scope and records the binding for Lookup.
func (a *Allocator) Declare(name string) (uint16, error) {
	r, err := a.claim()
	if err != nil {
		return 0, err
	}
	a.scopes[len(a.scopes)-1].names[name] = r
	return r, nil
}

// DeclarePersistent claims a register that is never reused for the
// lifetime of the body, for closure captures and `state` variables.
func (a *Allocator) DeclarePersistent(name string) (uint16, error) {
	r, err := a.claim()
	if err != nil {
		return 0, err
	}
	a.persisted[name] = r
	return r, nil
}

// Temp claims a scratch register within the current scope; its lifetime
// ends at the next statement boundary by convention (the compiler must not
// hold a Temp's value live across a statement it doesn't own).
func (a *Allocator) Temp() (uint16, error) {
	return a.claim()
}

// Lookup resolves name to its register index by walking scopes innermost
// first, then the persisted set. ok is false when name is not a lexical in
// this body (the compiler should then resolve it via C10 as a package
// global).
func (a *Allocator) Lookup(name string) (uint16, bool) {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if r, ok := a.scopes[i].names[name]; ok {
			return r, true
		}
	}
	if r, ok := a.persisted[name]; ok {
		return r, true
	}
	return 0, false
}
