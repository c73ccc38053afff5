// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perlrt/gperl/lang/compiler"
	"github.com/perlrt/gperl/lang/ioruntime"
	"github.com/perlrt/gperl/lang/parser"
	"github.com/perlrt/gperl/lang/vm"
)

// runSource compiles and executes src as a top-level program, capturing
// everything written to STDOUT, matching the teacher's newTestVM-style
// helper constructor convention adapted to end-to-end source programs.
func runSource(t *testing.T, src string) (stdout string, err error) {
	t.Helper()
	prog, perrs := parser.Parse("test.pl", src)
	require.Empty(t, perrs, "parse errors for %q", src)

	cc, cerrs := compiler.Compile(prog, "main", "test.pl")
	require.Empty(t, cerrs, "compile errors for %q", src)

	var buf bytes.Buffer
	interp := vm.New()
	interp.Stdout = ioruntime.NewWriter(&buf)

	_, err = interp.RunProgram(cc)
	return buf.String(), err
}

// TestDualvarArithmetic is §8.2 scenario 1: a numeric-string operand
// coerces to INT under `+`.
func TestDualvarArithmetic(t *testing.T) {
	out, err := runSource(t, `my $x = "10"; my $y = $x + 5; print $y;`)
	require.NoError(t, err)
	require.Equal(t, "15", out)
}

// TestClosureState is §8.2 scenario 2: a closure over a captured lexical
// shares the boxed slot across every call.
func TestClosureState(t *testing.T) {
	out, err := runSource(t, `my $n = 0; my $inc = sub { ++$n }; $inc->(); $inc->(); $inc->(); print $n;`)
	require.NoError(t, err)
	require.Equal(t, "3", out)
}

// TestClosureSharing is §8.1's closure-sharing invariant: two closures
// over the same lexical observe each other's mutation.
func TestClosureSharing(t *testing.T) {
	out, err := runSource(t, `my $x = 1; my $f = sub { $x++ }; my $g = sub { $x }; $f->(); $f->(); print $g->();`)
	require.NoError(t, err)
	require.Equal(t, "3", out)
}

// TestDynamicEval is §8.2 scenario 5: `eval STRING` compiles and runs a
// fresh body that sees the enclosing lexical scope's package globals.
func TestDynamicEval(t *testing.T) {
	out, err := runSource(t, `our $x = 10; my $r = eval "$x + 32"; print $r;`)
	require.NoError(t, err)
	require.Equal(t, "42", out)
}

// TestSayAppendsNewline exercises the SAY opcode's only difference from
// PRINT.
func TestSayAppendsNewline(t *testing.T) {
	out, err := runSource(t, `my $x = "hi"; say $x;`)
	require.NoError(t, err)
	require.Equal(t, "hi\n", out)
}

// TestEvalBlockCatchesDie is §8.2 scenario 3: a die inside a nested call
// propagates up to the nearest enclosing eval block and populates $@.
func TestEvalBlockCatchesDie(t *testing.T) {
	out, err := runSource(t, "sub a { b() }\nsub b { die \"boom\\n\" }\neval { a() };\nprint $@;")
	require.NoError(t, err)
	require.Equal(t, "boom\n", out)
}

// TestGotoSubTailCall is §8.2 scenario 6: `goto &fac` re-dispatches with
// the rebound @_ and returns the callee's result directly.
func TestGotoSubTailCall(t *testing.T) {
	out, err := runSource(t, `sub fac { my ($n, $acc) = @_; $acc //= 1; return $acc if $n == 0; @_ = ($n - 1, $n * $acc); goto &fac } print fac(5);`)
	require.NoError(t, err)
	require.Equal(t, "120", out)
}
