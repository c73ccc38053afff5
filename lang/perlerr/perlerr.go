// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package perlerr defines the execution core's error/location model (§4.C9):
// a closed set of error kinds, each carrying a baked "at FILE line N"
// location string computed once at compile time rather than on every
// raise.
package perlerr

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories the interpreter can raise.
type Kind int

const (
	KindGeneric Kind = iota
	KindDivisionByZero
	KindModuloByZero
	KindTypeError
	KindReadOnly
	KindTooManyRegisters
	KindUndefinedSub
	KindUndefinedMethod
	KindNoSuchPackage
	KindBadIndex
	KindCompileError
	KindDie             // user-level `die` with no explicit location override
	KindUndefined       // dereference of / method call through an undef value
	KindIoError
	KindArgumentCount
	KindNotImplemented // a decoded opcode this front end never emits but the VM must still dispatch
)

var kindNames = [...]string{
	KindGeneric:          "Generic",
	KindDivisionByZero:   "DivisionByZero",
	KindModuloByZero:     "ModuloByZero",
	KindTypeError:        "TypeError",
	KindReadOnly:         "ReadOnly",
	KindTooManyRegisters: "TooManyRegisters",
	KindUndefinedSub:     "UndefinedSub",
	KindUndefinedMethod:  "UndefinedMethod",
	KindNoSuchPackage:    "NoSuchPackage",
	KindBadIndex:         "BadIndex",
	KindCompileError:     "CompileError",
	KindDie:              "Die",
	KindUndefined:        "Undefined",
	KindIoError:          "IoError",
	KindArgumentCount:    "ArgumentCount",
	KindNotImplemented:   "NotImplemented",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinel errors for errors.Is matching against a Kind, independent of the
// dynamic message/location payload carried by a given PerlError.
var (
	ErrDivisionByZero   = errors.New("division by zero")
	ErrModuloByZero     = errors.New("illegal modulus zero")
	ErrTypeError        = errors.New("type error")
	ErrReadOnly         = errors.New("modification of a read-only value attempted")
	ErrTooManyRegisters = errors.New("too many registers required for this body")
	ErrUndefinedSub     = errors.New("undefined subroutine called")
	ErrUndefinedMethod  = errors.New("can't locate object method")
	ErrNoSuchPackage    = errors.New("package does not exist")
	ErrBadIndex         = errors.New("index out of range")
	ErrCompileError     = errors.New("compile error")
	ErrDie              = errors.New("died")
	ErrUndefined        = errors.New("not defined")
	ErrIoError          = errors.New("i/o error")
	ErrArgumentCount    = errors.New("wrong number of arguments")
	ErrNotImplemented   = errors.New("not implemented")
)

var sentinels = map[Kind]error{
	KindDivisionByZero:   ErrDivisionByZero,
	KindModuloByZero:     ErrModuloByZero,
	KindTypeError:        ErrTypeError,
	KindReadOnly:         ErrReadOnly,
	KindTooManyRegisters: ErrTooManyRegisters,
	KindUndefinedSub:     ErrUndefinedSub,
	KindUndefinedMethod:  ErrUndefinedMethod,
	KindNoSuchPackage:    ErrNoSuchPackage,
	KindBadIndex:         ErrBadIndex,
	KindCompileError:     ErrCompileError,
	KindDie:              ErrDie,
	KindUndefined:        ErrUndefined,
	KindIoError:          ErrIoError,
	KindArgumentCount:    ErrArgumentCount,
	KindNotImplemented:   ErrNotImplemented,
}

// Location is a precomputed "FILE line N" pair, baked once at compile time
// by C5 and reused by every die/warn/error raised from that source point —
// zero per-invocation formatting work.
type Location struct {
	File string
	Line int
}

// String renders the canonical Perl suffix form: " at FILE line N.".
func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	return fmt.Sprintf(" at %s line %d.", l.File, l.Line)
}

// PerlError is the error type raised by interpreter operations and by
// user-level `die`. Message is the raw die payload (never includes the
// location suffix); Error() appends it, matching Perl's own die(3)
// rendering.
type PerlError struct {
	Kind     Kind
	Message  string
	Loc      Location
	Frames   []string // Carp::longmess-style call-stack lines, outermost last
	Value    interface{} // original scalar payload for `die $ref`; nil for plain string dies
}

func New(kind Kind, loc Location, format string, args ...interface{}) *PerlError {
	return &PerlError{Kind: kind, Message: fmt.Sprintf(format, args...), Loc: loc}
}

func (e *PerlError) Error() string {
	if e.Loc.File == "" {
		return e.Message
	}
	return e.Message + e.Loc.String()
}

// Unwrap exposes the Kind's sentinel so callers can use errors.Is(err,
// perlerr.ErrDivisionByZero) without caring about the dynamic message.
func (e *PerlError) Unwrap() error {
	return sentinels[e.Kind]
}

// Longmess renders a Carp::longmess-style backtrace: the error message
// followed by one call-stack frame per line, innermost call first, each in
// the fixed form "\tPACKAGE::SUB() called at FILE line N".
func (e *PerlError) Longmess() string {
	s := e.Error()
	for _, f := range e.Frames {
		s += "\n\t" + f
	}
	return s
}
