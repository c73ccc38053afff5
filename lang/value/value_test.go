// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perlrt/gperl/lang/perlerr"
	"github.com/perlrt/gperl/lang/value"
)

func TestCoercion(t *testing.T) {
	cases := []struct {
		name    string
		s       *value.Scalar
		wantInt int64
		wantStr string
	}{
		{"int", value.Int(42), 42, "42"},
		{"double", value.Double(3.5), 3, "3.5"},
		{"string numeric prefix", value.String("17 apples"), 17, "17 apples"},
		{"string no digits", value.String("abc"), 0, "abc"},
		{"undef", value.Undef(), 0, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.s.Int64(); got != c.wantInt {
				t.Errorf("Int64() = %d, want %d", got, c.wantInt)
			}
			if got := c.s.Str(); got != c.wantStr {
				t.Errorf("Str() = %q, want %q", got, c.wantStr)
			}
		})
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		s    *value.Scalar
		want bool
	}{
		{"undef", value.Undef(), false},
		{"empty string", value.String(""), false},
		{"string zero", value.String("0"), false},
		{"string zero point zero", value.String("0.0"), true},
		{"int zero", value.Int(0), false},
		{"int nonzero", value.Int(1), true},
		{"nonempty string", value.String("0 but true"), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.s.Truthy(); got != c.want {
				t.Errorf("Truthy() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestDualvar(t *testing.T) {
	d := value.DualInt("17 but true", 17)
	if got := d.Str(); got != "17 but true" {
		t.Errorf("Str() = %q, want %q", got, "17 but true")
	}
	if got := d.Int64(); got != 17 {
		t.Errorf("Int64() = %d, want 17", got)
	}

	// Mutating the dualvar breaks the cache: after SetInt, Str() must
	// reflect the new numeric value, not the stale string.
	d.SetInt(99)
	if got := d.Str(); got != "99" {
		t.Errorf("after SetInt, Str() = %q, want %q", got, "99")
	}
}

func TestMagicStringIncrement(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Az", "Ba"},
		{"zz", "aaa"},
		{"a9", "b0"},
		{"Aa9", "Ab0"},
	}
	for _, c := range cases {
		s := value.String(c.in)
		s.Increment()
		if got := s.Str(); got != c.want {
			t.Errorf("Increment(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNumCmpNaN(t *testing.T) {
	nan := value.Double(0)
	nan.SetDouble(nanValue())
	_, ok := value.NumCmp(nan, value.Int(1))
	if ok {
		t.Error("NumCmp with NaN operand should report ok=false")
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestStrCmp(t *testing.T) {
	if value.StrCmp(value.String("abc"), value.String("abd")) >= 0 {
		t.Error(`StrCmp("abc","abd") should be negative`)
	}
	if value.StrCmp(value.String("abc"), value.String("abc")) != 0 {
		t.Error(`StrCmp("abc","abc") should be 0`)
	}
}

func TestReadOnly(t *testing.T) {
	s := value.Int(1)
	s.SetReadOnly()
	err := s.CheckWritable(perlerr.Location{})
	require.Error(t, err)
	pe, ok := err.(*perlerr.PerlError)
	require.True(t, ok, "CheckWritable must return a *perlerr.PerlError")
	require.Equal(t, perlerr.KindReadOnly, pe.Kind)
}

// TestStringDoubleRoundTrip exercises §8.1's invariant: for a non-integral
// double, get_double(get_string(x)) must recover x within a relative
// tolerance, since the shortest round-tripping decimal stringification is
// not bit-exact for every input.
func TestStringDoubleRoundTrip(t *testing.T) {
	cases := []float64{3.14159265358979, 1e300, -2.5e-10, 0.1}
	for _, want := range cases {
		s := value.Double(want)
		back := value.String(s.Str())
		got := back.Float64()
		require.InEpsilon(t, want, got, 1e-9, "round-trip of %v through Str()", want)
	}
}

func TestNumCmpNaNRequire(t *testing.T) {
	nan := value.Double(math.NaN())
	_, ok := value.NumCmp(nan, value.Int(1))
	require.False(t, ok, "NumCmp with NaN must report ok=false")
}
