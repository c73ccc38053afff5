// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perlrt/gperl/lang/compiler"
	"github.com/perlrt/gperl/lang/parser"
)

func TestCompileSimpleProgram(t *testing.T) {
	prog, errs := parser.Parse("t.pl", `my $x = 1 + 2; print $x;`)
	require.Empty(t, errs)

	cc, cerrs := compiler.Compile(prog, "main", "t.pl")
	require.Empty(t, cerrs)
	require.NotNil(t, cc)
	require.NotEmpty(t, cc.Code)
	require.Equal(t, "main", cc.PackageName)
	require.Equal(t, "t.pl", cc.SourceName)
}

func TestDisassembleProducesOneInstructionPerOp(t *testing.T) {
	prog, errs := parser.Parse("t.pl", `my $x = 1; print $x;`)
	require.Empty(t, errs)

	cc, cerrs := compiler.Compile(prog, "main", "t.pl")
	require.Empty(t, cerrs)

	instrs := compiler.Disassemble(cc)
	require.NotEmpty(t, instrs)
	for _, in := range instrs {
		require.True(t, in.PC >= 0)
	}
}

func TestEvalCacheRoundTrip(t *testing.T) {
	src := "1 + 1"
	fp := compiler.FingerprintSource(src)

	_, ok := compiler.CachedEval(fp)
	require.False(t, ok)

	cc, cerrs := compiler.CompileEvalString(src, "main", "t.pl", 1)
	require.Empty(t, cerrs)
	compiler.PutCachedEval(fp, cc)

	got, ok := compiler.CachedEval(fp)
	require.True(t, ok)
	require.Same(t, cc, got)
}

func TestFingerprintIsStableAndDistinct(t *testing.T) {
	require.Equal(t, compiler.FingerprintSource("abc"), compiler.FingerprintSource("abc"))
	require.NotEqual(t, compiler.FingerprintSource("abc"), compiler.FingerprintSource("abd"))
}
