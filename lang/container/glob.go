// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package container

import "github.com/perlrt/gperl/lang/value"

// Typeglob maps the five slot kinds {SCALAR, ARRAY, HASH, CODE, IO} to
// their respective aggregate handle (§3.3). Any slot may be absent; glob
// aliasing (`*dst = *src`) copies whichever slots are populated.
type Typeglob struct {
	Name   string // fully-qualified Pkg::name
	Scalar *value.Scalar
	Array  *Array
	Hash   *Hash
	Code   *value.Scalar // CODE_REF scalar
	IO     interface{}   // opaque IO handle; out of scope for this core
}

// NewTypeglob returns an empty glob under the given fully-qualified name.
func NewTypeglob(name string) *Typeglob {
	return &Typeglob{Name: name}
}

// RefKind implements value.RefTarget.
func (g *Typeglob) RefKind() string { return "GLOB" }

// AliasFrom copies every populated slot of src into g, implementing
// `*dst = *src` typeglob assignment.
func (g *Typeglob) AliasFrom(src *Typeglob) {
	if src.Scalar != nil {
		g.Scalar = src.Scalar
	}
	if src.Array != nil {
		g.Array = src.Array
	}
	if src.Hash != nil {
		g.Hash = src.Hash
	}
	if src.Code != nil {
		g.Code = src.Code
	}
	if src.IO != nil {
		g.IO = src.IO
	}
}
