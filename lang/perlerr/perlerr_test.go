// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package perlerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perlrt/gperl/lang/perlerr"
)

func TestErrorAppendsLocation(t *testing.T) {
	e := perlerr.New(perlerr.KindDie, perlerr.Location{File: "t.pl", Line: 7}, "boom")
	require.Equal(t, "boom at t.pl line 7.", e.Error())
}

func TestErrorWithoutLocation(t *testing.T) {
	e := perlerr.New(perlerr.KindDie, perlerr.Location{}, "boom")
	require.Equal(t, "boom", e.Error())
}

func TestUnwrapMatchesSentinel(t *testing.T) {
	e := perlerr.New(perlerr.KindDivisionByZero, perlerr.Location{}, "illegal division by zero")
	require.True(t, errors.Is(e, perlerr.ErrDivisionByZero))
	require.False(t, errors.Is(e, perlerr.ErrTypeError))
}

func TestLongmessFormatsBacktrace(t *testing.T) {
	e := perlerr.New(perlerr.KindDie, perlerr.Location{File: "t.pl", Line: 3}, "boom")
	e.Frames = []string{
		"main::inner() called at t.pl line 9",
		"main::outer() called at t.pl line 3",
	}

	want := "boom at t.pl line 3.\n" +
		"\tmain::inner() called at t.pl line 9\n" +
		"\tmain::outer() called at t.pl line 3"
	require.Equal(t, want, e.Longmess())
}

func TestKindString(t *testing.T) {
	require.Equal(t, "DivisionByZero", perlerr.KindDivisionByZero.String())
}
