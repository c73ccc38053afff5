// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package namespace_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perlrt/gperl/lang/namespace"
	"github.com/perlrt/gperl/lang/value"
)

func TestScalarAutoviv(t *testing.T) {
	ns := namespace.New()
	s := ns.Scalar("main", "x")
	require.NotNil(t, s)
	require.True(t, s.IsUndef())

	ns.SetScalar("main", "x", value.Int(7))
	require.Equal(t, int64(7), ns.Scalar("main", "x").Int64())
}

func TestLocalUnwind(t *testing.T) {
	ns := namespace.New()
	ns.SetScalar("main", "x", value.Int(1))

	mark := ns.Mark()
	ns.LocalScalar("main", "x", value.Int(2))
	require.Equal(t, int64(2), ns.Scalar("main", "x").Int64())

	ns.LocalScalar("main", "x", value.Int(3))
	require.Equal(t, int64(3), ns.Scalar("main", "x").Int64())

	ns.UnwindTo(mark)
	require.Equal(t, int64(1), ns.Scalar("main", "x").Int64())
}

func TestMROLinearLinearChain(t *testing.T) {
	ns := namespace.New()
	ns.SetISA("Dog", []string{"Animal"})
	ns.SetISA("Animal", []string{})

	require.Equal(t, []string{"Dog", "Animal"}, ns.MRO("Dog"))
}

func TestMROC3Diamond(t *testing.T) {
	ns := namespace.New()
	ns.SetISA("A", nil)
	ns.SetISA("B", []string{"A"})
	ns.SetISA("C", []string{"A"})
	ns.SetISA("D", []string{"B", "C"})

	require.Equal(t, []string{"D", "B", "C", "A"}, ns.MRO("D"))
}

func TestLookupMethodWalksMRO(t *testing.T) {
	ns := namespace.New()
	ns.SetISA("Dog", []string{"Animal"})
	speak := value.Int(0) // stand-in CODE_REF identity
	ns.RegisterSub("Animal", "speak", speak)

	found, class, ok := ns.LookupMethod("Dog", "speak")
	require.True(t, ok)
	require.Equal(t, "Animal", class)
	require.Same(t, speak, found)
}

func TestLookupSubQualifiedName(t *testing.T) {
	ns := namespace.New()
	fn := value.Int(0)
	ns.RegisterSub("Foo::Bar", "baz", fn)

	found, ok := ns.LookupSub("main", "Foo::Bar::baz")
	require.True(t, ok)
	require.Same(t, fn, found)

	_, ok = ns.LookupSub("main", "nope")
	require.False(t, ok)
}

func TestInstallOverloadRoundTrip(t *testing.T) {
	ns := namespace.New()
	require.Nil(t, ns.Overloads("Vector"))

	handler := value.Int(0)
	ns.InstallOverload("Vector", "+", handler)

	table := ns.Overloads("Vector")
	require.NotNil(t, table)
}
