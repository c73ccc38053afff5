// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

// OverloadTable holds the per-class operator-overload entries installed by
// `use overload`. The namespace package owns one instance per package
// stash; the interpreter consults it before falling back to default
// numeric/string behavior (§4.C1 "Overload dispatch").
type OverloadTable struct {
	entries map[string]*Scalar // operator symbol ("+", "\"\"", "0+", "bool", ...) -> CODE_REF
	nomethod *Scalar
}

// NewOverloadTable returns an empty table.
func NewOverloadTable() *OverloadTable {
	return &OverloadTable{entries: make(map[string]*Scalar)}
}

// Install registers the handler for operator op.
func (t *OverloadTable) Install(op string, handler *Scalar) {
	t.entries[op] = handler
}

// InstallNomethod registers the catch-all fallback handler.
func (t *OverloadTable) InstallNomethod(handler *Scalar) {
	t.nomethod = handler
}

// Lookup returns the handler for op, or nil if none installed.
func (t *OverloadTable) Lookup(op string) *Scalar {
	if t == nil {
		return nil
	}
	return t.entries[op]
}

// Nomethod returns the catch-all fallback, or nil.
func (t *OverloadTable) Nomethod() *Scalar {
	if t == nil {
		return nil
	}
	return t.nomethod
}

// ClassOverloads resolves the OverloadTable for a blessed class. It is
// satisfied by the namespace package's stash lookup; wired at interpreter
// construction time to avoid an import cycle between value and namespace.
type ClassOverloads func(class string) *OverloadTable

// ResolveOverload implements the §4.C1 dispatch rule for a binary operator:
// try the left operand's class, then the right's; if both absent, the
// caller falls back to nomethod (if installed on either) or default
// behavior. lookup is nil-safe for non-reference operands.
func ResolveOverload(lookup ClassOverloads, op string, left, right *Scalar) (handler *Scalar, swapped bool) {
	if lookup == nil {
		return nil, false
	}
	if left != nil && (left.Tag() == TagReference) && left.Blessed() != "" {
		if t := lookup(left.Blessed()); t != nil {
			if h := t.Lookup(op); h != nil {
				return h, false
			}
		}
	}
	if right != nil && (right.Tag() == TagReference) && right.Blessed() != "" {
		if t := lookup(right.Blessed()); t != nil {
			if h := t.Lookup(op); h != nil {
				return h, true
			}
		}
	}
	if left != nil && left.Tag() == TagReference && left.Blessed() != "" {
		if t := lookup(left.Blessed()); t != nil && t.Nomethod() != nil {
			return t.Nomethod(), false
		}
	}
	if right != nil && right.Tag() == TagReference && right.Blessed() != "" {
		if t := lookup(right.Blessed()); t != nil && t.Nomethod() != nil {
			return t.Nomethod(), true
		}
	}
	return nil, false
}
