// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package container

import "github.com/perlrt/gperl/lang/value"

// Hash is a string-keyed mapping to Scalars (§3.3) that preserves
// insertion order for deterministic keys/values/each, and supports
// per-hash iteration position for `each`.
type Hash struct {
	data   map[string]*value.Scalar
	order  []string
	iterAt int
}

// NewHash returns an empty Hash.
func NewHash() *Hash {
	return &Hash{data: make(map[string]*value.Scalar)}
}

// RefKind implements value.RefTarget.
func (h *Hash) RefKind() string { return "HASH" }

// Len returns the number of keys.
func (h *Hash) Len() int { return len(h.order) }

// Get returns the value for key, or UNDEF if absent.
func (h *Hash) Get(key string) *value.Scalar {
	if v, ok := h.data[key]; ok {
		return v
	}
	return value.Undef()
}

// Set stores v under key, appending to the insertion order on first write.
func (h *Hash) Set(key string, v *value.Scalar) {
	if _, exists := h.data[key]; !exists {
		h.order = append(h.order, key)
	}
	h.data[key] = v
}

// Exists reports whether key is present.
func (h *Hash) Exists(key string) bool {
	_, ok := h.data[key]
	return ok
}

// Delete removes key, returning the removed value (UNDEF if absent).
func (h *Hash) Delete(key string) *value.Scalar {
	v, ok := h.data[key]
	if !ok {
		return value.Undef()
	}
	delete(h.data, key)
	for i, k := range h.order {
		if k == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	if h.iterAt > len(h.order) {
		h.iterAt = len(h.order)
	}
	return v
}

// Keys returns the keys in insertion order.
func (h *Hash) Keys() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Values returns the values in the same order as Keys.
func (h *Hash) Values() []*value.Scalar {
	out := make([]*value.Scalar, len(h.order))
	for i, k := range h.order {
		out[i] = h.data[k]
	}
	return out
}

// Each advances the per-hash iterator, returning the next (key, value,
// true), or ("", nil, false) once exhausted. A subsequent call after
// exhaustion restarts from the beginning, matching Perl's each().
func (h *Hash) Each() (string, *value.Scalar, bool) {
	if h.iterAt >= len(h.order) {
		h.iterAt = 0
		return "", nil, false
	}
	k := h.order[h.iterAt]
	h.iterAt++
	return k, h.data[k], true
}

// ResetIter rewinds the each() iteration position to the start.
func (h *Hash) ResetIter() { h.iterAt = 0 }

// Clone returns a fresh Hash with every value given its own Scalar
// identity, preserving key insertion order (§4.C3 "my %b = %a").
func (h *Hash) Clone() *Hash {
	out := NewHash()
	for _, k := range h.order {
		out.Set(k, h.data[k].Clone())
	}
	return out
}

// Assign replaces h's contents in place with a clone of src's entries,
// keeping h's own identity intact — the container counterpart of
// value.Scalar.Assign, used when an already-captured hash is reassigned
// wholesale.
func (h *Hash) Assign(src *Hash) {
	clone := src.Clone()
	h.data = clone.data
	h.order = clone.order
	h.iterAt = 0
}
