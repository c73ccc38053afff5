// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package namespace implements the global namespace interface (§4.C10): a
// process-wide map from fully-qualified names to a stash entry with scalar,
// array, hash and code slots (there is no io slot), subroutine registration, typeglob
// aliasing, the `local` dynamic-scope save stack, and C3-linearized MRO
// lookup cached per class. Grounded on the teacher's vm.go resource-map
// pattern (a bounds-checked, centrally owned table), generalized from byte
// ranges to stash slot kinds.
package namespace

import (
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/perlrt/gperl/internal/plog"
	"github.com/perlrt/gperl/lang/container"
	"github.com/perlrt/gperl/lang/value"
)

// Stash is one package's entry, owned by name rather than by reference:
// scalar, array, hash and code slots plus the package's overload table and
// @ISA. It has no io slot.
type Stash struct {
	Scalar   map[string]*value.Scalar
	Array    map[string]*container.Array
	Hash     map[string]*container.Hash
	Code     map[string]*value.Scalar // CODE_REF scalar, holds a *compiler.Closure or host-native callable
	Overload map[string]*value.OverloadTable
	ISA      []string
}

func newStash() *Stash {
	return &Stash{
		Scalar:   make(map[string]*value.Scalar),
		Array:    make(map[string]*container.Array),
		Hash:     make(map[string]*container.Hash),
		Code:     make(map[string]*value.Scalar),
		Overload: make(map[string]*value.OverloadTable),
	}
}

// localSave is one entry on the per-instance `local` stack: a slot
// identifier (package, kind, name) and the value it held before `local`
// rebound it, restored on scope unwind.
type localSave struct {
	pkg, name, kind string
	scalarOld       *value.Scalar
	arrayOld        *container.Array
	hashOld         *container.Hash
}

// Namespace is the per-interpreter-instance global stash table (§5: "the
// package stash is process-wide... implementations should isolate
// per-instance state in a context object" — so one Namespace lives per
// Interp, not a true OS-process global).
type Namespace struct {
	stashes map[string]*Stash
	mro     *lru.Cache // class name -> []string linearization
	locals  []localSave
}

// New returns an empty namespace with an MRO cache sized for a typical
// program's class count.
func New() *Namespace {
	cache, _ := lru.New(256)
	return &Namespace{stashes: make(map[string]*Stash), mro: cache}
}

func (ns *Namespace) stash(pkg string) *Stash {
	s, ok := ns.stashes[pkg]
	if !ok {
		s = newStash()
		ns.stashes[pkg] = s
	}
	return s
}

// Scalar returns the package-scalar slot, creating it (as UNDEF) on first
// access — matches Perl's implicit global autoviv.
func (ns *Namespace) Scalar(pkg, name string) *value.Scalar {
	s := ns.stash(pkg)
	v, ok := s.Scalar[name]
	if !ok {
		v = value.Undef()
		s.Scalar[name] = v
	}
	return v
}

// SetScalar rebinds the package-scalar slot to a specific Scalar identity
// (used by `local` and typeglob aliasing, which must swap the slot itself
// rather than mutate through it).
func (ns *Namespace) SetScalar(pkg, name string, v *value.Scalar) {
	ns.stash(pkg).Scalar[name] = v
}

// Array returns the package-array slot, creating it empty on first access.
func (ns *Namespace) Array(pkg, name string) *container.Array {
	s := ns.stash(pkg)
	a, ok := s.Array[name]
	if !ok {
		a = container.NewArray()
		s.Array[name] = a
	}
	return a
}

func (ns *Namespace) SetArray(pkg, name string, a *container.Array) {
	ns.stash(pkg).Array[name] = a
}

// Hash returns the package-hash slot, creating it empty on first access.
func (ns *Namespace) Hash(pkg, name string) *container.Hash {
	s := ns.stash(pkg)
	h, ok := s.Hash[name]
	if !ok {
		h = container.NewHash()
		s.Hash[name] = h
	}
	return h
}

func (ns *Namespace) SetHash(pkg, name string, h *container.Hash) {
	ns.stash(pkg).Hash[name] = h
}

// RegisterSub binds a CODE_REF scalar (wrapping a *compiler.Closure or a
// host-native callable) under pkg::name, implementing `sub NAME { ... }`
// registration. ISA-affecting aliasing is handled separately by SetISA.
func (ns *Namespace) RegisterSub(pkg, name string, code *value.Scalar) {
	ns.stash(pkg).Code[name] = code
}

// LookupSub resolves pkg::name directly (no MRO walk) — the plain,
// non-method call path.
func (ns *Namespace) LookupSub(pkg, name string) (*value.Scalar, bool) {
	// Already fully qualified?
	if i := strings.LastIndex(name, "::"); i >= 0 {
		pkg, name = name[:i], name[i+2:]
	}
	s, ok := ns.stashes[pkg]
	if !ok {
		return nil, false
	}
	v, ok := s.Code[name]
	return v, ok
}

// SetISA replaces pkg's @ISA list and invalidates any cached MRO entries
// that might depend on it (the whole cache, conservatively — cheap to
// rebuild, and §4.C10 only requires invalidation on @ISA mutation, not
// surgical precision).
func (ns *Namespace) SetISA(pkg string, parents []string) {
	ns.stash(pkg).ISA = parents
	ns.mro.Purge()
	plog.Debug("mro cache invalidated", "package", pkg, "isa", parents)
}

// MRO returns the C3 linearization of pkg's ancestor chain, computing and
// caching it on first request.
func (ns *Namespace) MRO(pkg string) []string {
	if v, ok := ns.mro.Get(pkg); ok {
		return v.([]string)
	}
	lin := ns.linearize(pkg)
	ns.mro.Add(pkg, lin)
	return lin
}

// linearize implements the C3 merge over @ISA.
func (ns *Namespace) linearize(pkg string) []string {
	isa := ns.stash(pkg).ISA
	if len(isa) == 0 {
		return []string{pkg}
	}
	var seqs [][]string
	for _, parent := range isa {
		seqs = append(seqs, ns.linearize(parent))
	}
	seqs = append(seqs, append([]string{}, isa...))
	merged := c3Merge(seqs)
	return append([]string{pkg}, merged...)
}

func c3Merge(seqs [][]string) []string {
	var result []string
	for {
		seqs = dropEmpty(seqs)
		if len(seqs) == 0 {
			return result
		}
		var candidate string
		found := false
	candLoop:
		for _, seq := range seqs {
			candidate = seq[0]
			for _, other := range seqs {
				if inTail(other, candidate) {
					continue candLoop
				}
			}
			found = true
			break
		}
		if !found {
			// Inconsistent hierarchy; fall back to first head to avoid
			// looping forever (Perl itself would die with an MRO error).
			candidate = seqs[0][0]
		}
		result = append(result, candidate)
		for i, seq := range seqs {
			seqs[i] = removeFirst(seq, candidate)
		}
	}
}

func dropEmpty(seqs [][]string) [][]string {
	out := seqs[:0]
	for _, s := range seqs {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func inTail(seq []string, name string) bool {
	for i := 1; i < len(seq); i++ {
		if seq[i] == name {
			return true
		}
	}
	return false
}

func removeFirst(seq []string, name string) []string {
	if len(seq) > 0 && seq[0] == name {
		return seq[1:]
	}
	return seq
}

// LookupMethod resolves a method call by walking pkg's MRO (§4.C10,
// `SUPER::` resolves relative to the calling class's MRO per §4.C10's last
// sentence — callers pass the appropriate starting class for that).
func (ns *Namespace) LookupMethod(pkg, method string) (*value.Scalar, string, bool) {
	for _, class := range ns.MRO(pkg) {
		if s, ok := ns.stashes[class]; ok {
			if v, ok := s.Code[method]; ok {
				return v, class, true
			}
		}
	}
	return nil, "", false
}

// Overloads returns the OverloadTable for class, or nil if none installed
// — the value.ClassOverloads hook this namespace wires into the interpreter.
func (ns *Namespace) Overloads(class string) *value.OverloadTable {
	s, ok := ns.stashes[class]
	if !ok {
		return nil
	}
	if t, ok := s.Overload[class]; ok {
		return t
	}
	return nil
}

// InstallOverload registers handler for operator op under class's table,
// creating the table on first use (`use overload '+' => \&add, ...`).
func (ns *Namespace) InstallOverload(class, op string, handler *value.Scalar) {
	s := ns.stash(class)
	t, ok := s.Overload[class]
	if !ok {
		t = value.NewOverloadTable()
		s.Overload[class] = t
	}
	t.Install(op, handler)
}

// ---------------------------------------------------------------------------
// `local` dynamic-scope stack (§5, §C.10 addition)
// ---------------------------------------------------------------------------

// Mark is an opaque position in the local stack, returned by Mark and
// consumed by UnwindTo.
type Mark int

// Mark returns the current local-stack depth, to be paired with a later
// UnwindTo call on scope exit.
func (ns *Namespace) Mark() Mark { return Mark(len(ns.locals)) }

// LocalScalar saves pkg::name's current scalar slot and rebinds it to v,
// implementing `local $pkg::name = v`.
func (ns *Namespace) LocalScalar(pkg, name string, v *value.Scalar) {
	old := ns.Scalar(pkg, name)
	ns.locals = append(ns.locals, localSave{pkg: pkg, name: name, kind: "scalar", scalarOld: old})
	ns.SetScalar(pkg, name, v)
}

// LocalArray / LocalHash mirror LocalScalar for the other aggregate slots.
func (ns *Namespace) LocalArray(pkg, name string, a *container.Array) {
	old := ns.Array(pkg, name)
	ns.locals = append(ns.locals, localSave{pkg: pkg, name: name, kind: "array", arrayOld: old})
	ns.SetArray(pkg, name, a)
}

func (ns *Namespace) LocalHash(pkg, name string, h *container.Hash) {
	old := ns.Hash(pkg, name)
	ns.locals = append(ns.locals, localSave{pkg: pkg, name: name, kind: "hash", hashOld: old})
	ns.SetHash(pkg, name, h)
}

// UnwindTo restores every local binding made since mark, in reverse order
// — invoked by the interpreter's frame-pop path (C8) on every exit
// (normal, non-local control flow, or exception propagation), matching
// §5's "scoped acquisition with guaranteed release on all exit paths".
func (ns *Namespace) UnwindTo(mark Mark) {
	for i := len(ns.locals) - 1; i >= int(mark); i-- {
		save := ns.locals[i]
		switch save.kind {
		case "scalar":
			ns.SetScalar(save.pkg, save.name, save.scalarOld)
		case "array":
			ns.SetArray(save.pkg, save.name, save.arrayOld)
		case "hash":
			ns.SetHash(save.pkg, save.name, save.hashOld)
		}
	}
	ns.locals = ns.locals[:mark]
}
