// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package frame implements the call frame manager (§4.C8): a per-instance
// LIFO stack of interpreter frames backing `caller(n)`, back-trace
// construction, and `wantarray`. Grounded on the teacher's vm.go
// callStack []frame ring, generalized from a fixed-size gas-metered ring
// to a growable slice (no gas/halting concept applies to this domain) and
// tagged with a per-instance UUID for multi-instance diagnostics
// correlation (§5: each host thread may own an independent instance).
package frame

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/perlrt/gperl/lang/namespace"
)

// Context is the tri-valued call-context tag (§3.4, §4.C6 register 2).
type Context int

const (
	Void Context = iota
	Scalar
	List
)

func (c Context) String() string {
	switch c {
	case Void:
		return "void"
	case Scalar:
		return "scalar"
	default:
		return "list"
	}
}

// CallerInfo is the modern 11-field long form of `caller(n)` (§9 Open
// Question 2, fixed by SPEC_FULL.md §C).
type CallerInfo struct {
	Package    string
	Filename   string
	Line       int
	Subroutine string
	HasArgs    bool
	Wantarray  Context
	Evaltext   string
	IsRequire  bool
	Hints      int
	Bitmask    string
	Hinthash   map[string]interface{}
}

// Frame records one active CompiledCode invocation (§3.4). PC is updated by
// the interpreter as it executes; Code is an opaque handle (the
// compiler.CompiledCode pointer) kept as interface{} to avoid an import
// cycle between frame and compiler.
type Frame struct {
	Code       interface{} // *compiler.CompiledCode
	Package    string
	SubName    string // "" for anonymous / top-level
	Context    Context
	PC         int
	Line       int // source line for the currently executing PC, kept in step by the interpreter
	LocalMark  namespace.Mark
	EvalText   string // non-empty when this frame is an `eval STRING` body
	SourceFile string
}

// Stack is the per-interpreter-instance LIFO frame stack.
type Stack struct {
	ID     uuid.UUID
	frames []*Frame
}

// New returns an empty stack tagged with a fresh instance UUID.
func New() *Stack {
	return &Stack{ID: uuid.New()}
}

// Push pushes f as the new innermost frame.
func (s *Stack) Push(f *Frame) { s.frames = append(s.frames, f) }

// Pop removes and returns the innermost frame.
func (s *Stack) Pop() *Frame {
	n := len(s.frames)
	if n == 0 {
		return nil
	}
	f := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return f
}

// Top returns the innermost frame without removing it, or nil if empty.
func (s *Stack) Top() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Depth returns the number of active frames (used by the frame-balance
// property test in §8.1).
func (s *Stack) Depth() int { return len(s.frames) }

// At returns the frame n levels out from the innermost (0 = the innermost
// frame, i.e. the currently executing sub; 1 = its caller), or nil if n
// exceeds the stack depth — backing `caller(n)`.
func (s *Stack) At(n int) *Frame {
	idx := len(s.frames) - 1 - n
	if idx < 0 || idx >= len(s.frames) {
		return nil
	}
	return s.frames[idx]
}

// Caller builds the 11-field long form for depth n, or ok=false if there is
// no such frame.
func (s *Stack) Caller(n int) (CallerInfo, bool) {
	f := s.At(n)
	if f == nil {
		return CallerInfo{}, false
	}
	return CallerInfo{
		Package:    f.Package,
		Filename:   f.SourceFile,
		Line:       f.Line,
		Subroutine: f.Package + "::" + f.SubName,
		HasArgs:    true,
		Wantarray:  f.Context,
		Evaltext:   f.EvalText,
		IsRequire:  false,
		Hints:      0,
		Bitmask:    "",
	}, true
}

// Backtrace renders every active frame, innermost first, in the
// Carp::longmess line format fixed by SPEC_FULL.md §C:
// "PACKAGE::SUB() called at FILE line N".
func (s *Stack) Backtrace() []string {
	lines := make([]string, 0, len(s.frames))
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		sub := f.SubName
		if sub == "" {
			sub = "__ANON__"
		}
		lines = append(lines, fmt.Sprintf("%s::%s() called at %s line %d", f.Package, sub, f.SourceFile, f.Line))
	}
	return lines
}
