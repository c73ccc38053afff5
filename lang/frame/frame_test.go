// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package frame_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perlrt/gperl/lang/frame"
)

func TestPushPopDepth(t *testing.T) {
	s := frame.New()
	require.Equal(t, 0, s.Depth())

	s.Push(&frame.Frame{Package: "main", SubName: "foo", Line: 10})
	s.Push(&frame.Frame{Package: "main", SubName: "bar", Line: 20})
	require.Equal(t, 2, s.Depth())

	require.Equal(t, "bar", s.Top().SubName)

	popped := s.Pop()
	require.Equal(t, "bar", popped.SubName)
	require.Equal(t, 1, s.Depth())
}

func TestCallerAt(t *testing.T) {
	s := frame.New()
	s.Push(&frame.Frame{Package: "main", SubName: "outer", SourceFile: "t.pl", Line: 1, Context: frame.Scalar})
	s.Push(&frame.Frame{Package: "main", SubName: "inner", SourceFile: "t.pl", Line: 5, Context: frame.Void})

	info, ok := s.Caller(1)
	require.True(t, ok)
	require.Equal(t, "main::outer", info.Subroutine)
	require.Equal(t, frame.Scalar, info.Wantarray)

	_, ok = s.Caller(5)
	require.False(t, ok)
}

func TestBacktraceOrderAndAnon(t *testing.T) {
	s := frame.New()
	s.Push(&frame.Frame{Package: "main", SubName: "", SourceFile: "t.pl", Line: 3})
	s.Push(&frame.Frame{Package: "main", SubName: "deep", SourceFile: "t.pl", Line: 9})

	bt := s.Backtrace()
	require.Len(t, bt, 2)
	require.Equal(t, "main::deep() called at t.pl line 9", bt[0])
	require.Equal(t, "main::__ANON__() called at t.pl line 3", bt[1])
}

func TestStackHasUniqueID(t *testing.T) {
	a, b := frame.New(), frame.New()
	require.NotEqual(t, a.ID, b.ID)
}
