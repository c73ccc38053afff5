// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package container_test

import (
	"testing"

	"github.com/perlrt/gperl/lang/container"
	"github.com/perlrt/gperl/lang/value"
)

func ints(vals ...int64) *container.Array {
	scalars := make([]*value.Scalar, len(vals))
	for i, v := range vals {
		scalars[i] = value.Int(v)
	}
	return container.NewArray(scalars...)
}

func TestArrayPushPopShiftUnshift(t *testing.T) {
	a := ints(1, 2, 3)
	a.Push(value.Int(4))
	if got := a.Len(); got != 4 {
		t.Fatalf("Len() = %d, want 4", got)
	}
	if got := a.Pop().Int64(); got != 4 {
		t.Errorf("Pop() = %d, want 4", got)
	}
	if got := a.Shift().Int64(); got != 1 {
		t.Errorf("Shift() = %d, want 1", got)
	}
	a.Unshift(value.Int(0))
	if got := a.Get(0).Int64(); got != 0 {
		t.Errorf("Get(0) = %d, want 0", got)
	}
}

func TestArrayNegativeIndex(t *testing.T) {
	a := ints(10, 20, 30)
	if got := a.Get(-1).Int64(); got != 30 {
		t.Errorf("Get(-1) = %d, want 30", got)
	}
	if got := a.Get(-2).Int64(); got != 20 {
		t.Errorf("Get(-2) = %d, want 20", got)
	}
}

func TestArrayAutoviv(t *testing.T) {
	a := container.NewArray()
	a.Set(2, value.Int(9))
	if got := a.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	if !a.Get(0).IsUndef() {
		t.Error("Get(0) should be UNDEF after autoviv")
	}
	if got := a.Get(2).Int64(); got != 9 {
		t.Errorf("Get(2) = %d, want 9", got)
	}
}

func TestArraySplice(t *testing.T) {
	a := ints(1, 2, 3, 4, 5)
	removed := a.Splice(1, 2, value.Int(99))
	if len(removed) != 2 || removed[0].Int64() != 2 || removed[1].Int64() != 3 {
		t.Fatalf("removed = %v, want [2 3]", removed)
	}
	if a.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", a.Len())
	}
	if got := a.Get(1).Int64(); got != 99 {
		t.Errorf("Get(1) = %d, want 99", got)
	}
}

func TestArrayMapFilterReduce(t *testing.T) {
	a := ints(1, 2, 3, 4)
	doubled := a.Map(func(v *value.Scalar) *value.Scalar { return value.Int(v.Int64() * 2) })
	if got := doubled.Get(2).Int64(); got != 6 {
		t.Errorf("doubled[2] = %d, want 6", got)
	}
	evens := a.Filter(func(v *value.Scalar) bool { return v.Int64()%2 == 0 })
	if evens.Len() != 2 {
		t.Fatalf("evens.Len() = %d, want 2", evens.Len())
	}
	sum := a.Reduce(value.Int(0), func(acc, v *value.Scalar) *value.Scalar {
		return value.Int(acc.Int64() + v.Int64())
	})
	if got := sum.Int64(); got != 10 {
		t.Errorf("sum = %d, want 10", got)
	}
}

func TestHashOrderAndEach(t *testing.T) {
	h := container.NewHash()
	h.Set("b", value.Int(2))
	h.Set("a", value.Int(1))
	h.Set("c", value.Int(3))

	if got := h.Keys(); got[0] != "b" || got[1] != "a" || got[2] != "c" {
		t.Fatalf("Keys() = %v, want [b a c] (insertion order)", got)
	}

	seen := map[string]int64{}
	for {
		k, v, ok := h.Each()
		if !ok {
			break
		}
		seen[k] = v.Int64()
	}
	if len(seen) != 3 || seen["a"] != 1 || seen["b"] != 2 || seen["c"] != 3 {
		t.Errorf("each() collected %v", seen)
	}
}

func TestHashDelete(t *testing.T) {
	h := container.NewHash()
	h.Set("x", value.Int(1))
	if !h.Exists("x") {
		t.Fatal("expected x to exist")
	}
	h.Delete("x")
	if h.Exists("x") {
		t.Error("x should not exist after Delete")
	}
	if !h.Get("x").IsUndef() {
		t.Error("Get(x) after delete should be UNDEF")
	}
}

func TestTypeglobAlias(t *testing.T) {
	src := container.NewTypeglob("main::x")
	src.Scalar = value.Int(5)
	src.Array = ints(1, 2)

	dst := container.NewTypeglob("main::y")
	dst.AliasFrom(src)

	if dst.Scalar == nil || dst.Scalar.Int64() != 5 {
		t.Error("dst.Scalar not aliased")
	}
	if dst.Array == nil || dst.Array.Len() != 2 {
		t.Error("dst.Array not aliased")
	}
}
