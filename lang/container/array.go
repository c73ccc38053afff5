// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package container implements the Perl aggregate containers (§3.3):
// Array, Hash, and Typeglob. Array is adapted from the teacher's
// stdlib/math U64Array — same Map/Filter/Reduce shape, generalized from
// uint64 payloads to *value.Scalar.
package container

import "github.com/perlrt/gperl/lang/value"

// Array is an ordered sequence of Scalars (§3.3): push/pop/shift/unshift/
// splice, slicing, negative indexing, size query, exists/delete per index.
type Array struct {
	Data []*value.Scalar
}

// NewArray creates an array from the given values (copied by reference —
// callers that need value semantics should Clone first).
func NewArray(vals ...*value.Scalar) *Array {
	data := make([]*value.Scalar, len(vals))
	copy(data, vals)
	return &Array{Data: data}
}

// RefKind implements value.RefTarget.
func (a *Array) RefKind() string { return "ARRAY" }

// Len returns the array's element count.
func (a *Array) Len() int { return len(a.Data) }

// resolveIndex converts a possibly-negative Perl index into a Go index,
// returning ok=false when out of range on the low side.
func (a *Array) resolveIndex(i int) (int, bool) {
	if i < 0 {
		i += len(a.Data)
	}
	return i, i >= 0
}

// Get returns the element at index i (Perl semantics: negative counts from
// the end, out-of-range reads return UNDEF rather than erroring).
func (a *Array) Get(i int) *value.Scalar {
	idx, ok := a.resolveIndex(i)
	if !ok || idx >= len(a.Data) {
		return value.Undef()
	}
	return a.Data[idx]
}

// Set stores v at index i, autovivifying intervening slots to UNDEF when i
// extends past the current length (Perl's array autoviv-on-store).
func (a *Array) Set(i int, v *value.Scalar) {
	idx, ok := a.resolveIndex(i)
	if !ok {
		return
	}
	if idx >= len(a.Data) {
		grown := make([]*value.Scalar, idx+1)
		copy(grown, a.Data)
		for j := len(a.Data); j < idx; j++ {
			grown[j] = value.Undef()
		}
		a.Data = grown
	}
	a.Data[idx] = v
}

// Exists reports whether index i is within bounds.
func (a *Array) Exists(i int) bool {
	idx, ok := a.resolveIndex(i)
	return ok && idx < len(a.Data)
}

// Delete removes index i's value, replacing it with UNDEF (matching Perl's
// `delete $a[$i]` on a non-tail element, which leaves a hole rather than
// shifting).
func (a *Array) Delete(i int) {
	idx, ok := a.resolveIndex(i)
	if !ok || idx >= len(a.Data) {
		return
	}
	if idx == len(a.Data)-1 {
		a.Data = a.Data[:idx]
		return
	}
	a.Data[idx] = value.Undef()
}

// Push appends values to the end.
func (a *Array) Push(vals ...*value.Scalar) {
	a.Data = append(a.Data, vals...)
}

// Pop removes and returns the last element, or UNDEF if empty.
func (a *Array) Pop() *value.Scalar {
	if len(a.Data) == 0 {
		return value.Undef()
	}
	v := a.Data[len(a.Data)-1]
	a.Data = a.Data[:len(a.Data)-1]
	return v
}

// Shift removes and returns the first element, or UNDEF if empty.
func (a *Array) Shift() *value.Scalar {
	if len(a.Data) == 0 {
		return value.Undef()
	}
	v := a.Data[0]
	a.Data = a.Data[1:]
	return v
}

// Unshift prepends values to the front.
func (a *Array) Unshift(vals ...*value.Scalar) {
	a.Data = append(append([]*value.Scalar{}, vals...), a.Data...)
}

// Splice implements Perl's splice(@a, offset, length, replacement...),
// returning the removed elements.
func (a *Array) Splice(offset, length int, replacement ...*value.Scalar) []*value.Scalar {
	n := len(a.Data)
	if offset < 0 {
		offset += n
		if offset < 0 {
			offset = 0
		}
	}
	if offset > n {
		offset = n
	}
	if length < 0 {
		length = n - offset + length
	}
	if length < 0 {
		length = 0
	}
	end := offset + length
	if end > n {
		end = n
	}
	removed := append([]*value.Scalar{}, a.Data[offset:end]...)
	tail := append([]*value.Scalar{}, a.Data[end:]...)
	a.Data = append(append(a.Data[:offset], replacement...), tail...)
	return removed
}

// Slice returns a new Array over Perl-style (possibly negative) indices.
func (a *Array) Slice(indices []int) *Array {
	out := make([]*value.Scalar, len(indices))
	for i, idx := range indices {
		out[i] = a.Get(idx)
	}
	return &Array{Data: out}
}

// Map applies f to each element, producing a new Array (J/APL-style
// monadic map, kept from the teacher's U64Array.Map).
func (a *Array) Map(f func(*value.Scalar) *value.Scalar) *Array {
	result := make([]*value.Scalar, len(a.Data))
	for i, v := range a.Data {
		result[i] = f(v)
	}
	return &Array{Data: result}
}

// Filter returns a new Array of elements matching predicate f.
func (a *Array) Filter(f func(*value.Scalar) bool) *Array {
	var result []*value.Scalar
	for _, v := range a.Data {
		if f(v) {
			result = append(result, v)
		}
	}
	return &Array{Data: result}
}

// Reduce folds the array with a binary function, seeded by init.
func (a *Array) Reduce(init *value.Scalar, f func(acc, v *value.Scalar) *value.Scalar) *value.Scalar {
	acc := init
	for _, v := range a.Data {
		acc = f(acc, v)
	}
	return acc
}

// Clone returns a fresh Array with every element given its own Scalar
// identity, mirroring value.Scalar.Clone at the container level (§4.C3
// "my @b = @a" value-copy semantics).
func (a *Array) Clone() *Array {
	out := make([]*value.Scalar, len(a.Data))
	for i, v := range a.Data {
		out[i] = v.Clone()
	}
	return &Array{Data: out}
}

// Assign replaces a's contents in place with a clone of src's elements,
// keeping a's own identity intact — the container counterpart of
// value.Scalar.Assign, used when an already-captured array (aliased by a
// closure or a persisted register) is reassigned wholesale.
func (a *Array) Assign(src *Array) {
	a.Data = src.Clone().Data
}
