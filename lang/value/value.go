// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package value implements the Perl Scalar (§3.1/§4.C1): a tagged union
// over the handful of payload shapes a Perl scalar can hold, with lazy
// numeric<->string coercion, dualvar caching, and overload dispatch for
// blessed references.
package value

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/perlrt/gperl/lang/perlerr"
)

// Tag identifies which payload field of a Scalar is active.
type Tag int

const (
	TagUndef Tag = iota
	TagInt
	TagDouble
	TagString
	TagBool
	TagVString
	TagCodeRef
	TagGlob
	TagRegex
	TagReference
	TagWeakReference
	TagTied
)

var tagNames = [...]string{
	TagUndef: "UNDEF", TagInt: "INT", TagDouble: "DOUBLE", TagString: "STRING",
	TagBool: "BOOLEAN", TagVString: "VSTRING", TagCodeRef: "CODE_REF",
	TagGlob: "GLOB", TagRegex: "REGEX", TagReference: "REFERENCE",
	TagWeakReference: "WEAK_REFERENCE", TagTied: "TIED",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) && tagNames[t] != "" {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", int(t))
}

// RefTarget is implemented by anything a REFERENCE/WEAK_REFERENCE scalar can
// point at: another Scalar, an Array, a Hash, a CODE_REF, or a typeglob.
// lang/container supplies the Array/Hash implementations.
type RefTarget interface {
	RefKind() string // SCALAR | ARRAY | HASH | CODE | GLOB | Regexp
}

// TiedHandler implements the method protocol a TIED scalar dispatches
// through. It mirrors Perl's tie() FETCH/STORE pair at the granularity this
// execution core needs.
type TiedHandler interface {
	Fetch() *Scalar
	Store(v *Scalar)
}

// Scalar is the execution core's single value representation. Only one of
// the payload fields is meaningful at a time, selected by Tag, except for
// the dualvar case where Tag == TagString and numCache is also populated.
type Scalar struct {
	tag Tag

	i   int64
	f   float64
	s   string
	b   bool
	ref RefTarget
	tied TiedHandler

	blessed string // non-empty iff this REFERENCE/WEAK_REFERENCE is blessed
	weak    bool   // true for WEAK_REFERENCE

	readOnly bool

	numCacheValid bool
	numCacheInt   bool // true -> numCache holds an int, false -> a float
	numCacheI     int64
	numCacheF     float64
}

// Undef returns a fresh UNDEF scalar.
func Undef() *Scalar { return &Scalar{tag: TagUndef} }

// Int returns a fresh INT scalar.
func Int(i int64) *Scalar { return &Scalar{tag: TagInt, i: i} }

// Double returns a fresh DOUBLE scalar.
func Double(f float64) *Scalar { return &Scalar{tag: TagDouble, f: f} }

// String returns a fresh STRING scalar with no numeric cache.
func String(s string) *Scalar { return &Scalar{tag: TagString, s: s} }

// Bool returns a fresh BOOLEAN scalar, distinct from INT 0/1 for `is_bool`.
func Bool(b bool) *Scalar { return &Scalar{tag: TagBool, b: b} }

// VString returns a fresh VSTRING (version literal) scalar.
func VString(s string) *Scalar { return &Scalar{tag: TagVString, s: s} }

// DualInt builds a dualvar: a STRING payload with an INT numeric view
// attached, per §4.C1's "caller explicitly builds a dualvar" case. Neither
// view is invalidated until a mutating op touches the scalar.
func DualInt(s string, i int64) *Scalar {
	return &Scalar{tag: TagString, s: s, numCacheValid: true, numCacheInt: true, numCacheI: i}
}

// DualDouble is DualInt's floating-point counterpart.
func DualDouble(s string, f float64) *Scalar {
	return &Scalar{tag: TagString, s: s, numCacheValid: true, numCacheInt: false, numCacheF: f}
}

// Reference returns a strong REFERENCE scalar pointing at target, optionally
// blessed into class (empty string for unblessed).
func Reference(target RefTarget, class string) *Scalar {
	return &Scalar{tag: TagReference, ref: target, blessed: class}
}

// WeakReference returns a WEAK_REFERENCE scalar. It holds target through an
// ordinary Go pointer, so the target stays reachable through it and the
// scalar does not turn into UNDEF on its own.
func WeakReference(target RefTarget, class string) *Scalar {
	return &Scalar{tag: TagWeakReference, ref: target, blessed: class, weak: true}
}

// Tied returns a TIED scalar dispatching FETCH/STORE through h.
func Tied(h TiedHandler) *Scalar { return &Scalar{tag: TagTied, tied: h} }

// CodeRef returns a fresh CODE_REF scalar wrapping target, which is
// typically a *compiler.Closure (RefKind "CODE") supplied by the call
// frame manager at SUB-opcode execution time.
func CodeRef(target RefTarget) *Scalar { return &Scalar{tag: TagCodeRef, ref: target} }

// CodeTarget returns s's CODE_REF payload, or nil if s is not a CODE_REF.
func (s *Scalar) CodeTarget() RefTarget {
	if s.tag != TagCodeRef {
		return nil
	}
	return s.ref
}

// Tag reports the scalar's active variant.
func (s *Scalar) Tag() Tag { return s.tag }

// IsReadOnly reports the read-only flag (independent of Tag).
func (s *Scalar) IsReadOnly() bool { return s.readOnly }

// SetReadOnly marks s permanently read-only (e.g. a literal constant or a
// loop-foreach alias over a constant list).
func (s *Scalar) SetReadOnly() { s.readOnly = true }

// CheckWritable returns ErrReadOnly unless s may be mutated. tr///-counting
// (no replacement) is the one exception carved out by §4.C1 and is checked
// by the caller, not here.
func (s *Scalar) CheckWritable(loc perlerr.Location) error {
	if s.readOnly {
		return perlerr.New(perlerr.KindReadOnly, loc, "Modification of a read-only value attempted")
	}
	return nil
}

// RefKind implements RefTarget so a Scalar can itself be the target of a
// SCALAR reference.
func (s *Scalar) RefKind() string { return "SCALAR" }

// ---------------------------------------------------------------------------
// Coercion (§4.C1 public contract)
// ---------------------------------------------------------------------------

// Int64 returns the integer view of s.
func (s *Scalar) Int64() int64 {
	if s.tag == TagTied {
		return s.tied.Fetch().Int64()
	}
	if s.numCacheValid {
		if s.numCacheInt {
			return s.numCacheI
		}
		return int64(s.numCacheF)
	}
	switch s.tag {
	case TagUndef:
		return 0
	case TagInt:
		return s.i
	case TagDouble:
		return int64(s.f)
	case TagBool:
		if s.b {
			return 1
		}
		return 0
	case TagString, TagVString:
		return parseLeadingInt(s.s)
	default:
		return 0
	}
}

// Float64 returns the floating-point view of s.
func (s *Scalar) Float64() float64 {
	if s.tag == TagTied {
		return s.tied.Fetch().Float64()
	}
	if s.numCacheValid {
		if s.numCacheInt {
			return float64(s.numCacheI)
		}
		return s.numCacheF
	}
	switch s.tag {
	case TagUndef:
		return 0
	case TagInt:
		return float64(s.i)
	case TagDouble:
		return s.f
	case TagBool:
		if s.b {
			return 1
		}
		return 0
	case TagString, TagVString:
		return parseLeadingFloat(s.s)
	default:
		return 0
	}
}

// Str returns the canonical Perl stringification of s.
func (s *Scalar) Str() string {
	if s.tag == TagTied {
		return s.tied.Fetch().Str()
	}
	switch s.tag {
	case TagUndef:
		return ""
	case TagInt:
		return strconv.FormatInt(s.i, 10)
	case TagDouble:
		return formatPerlDouble(s.f)
	case TagString, TagVString:
		return s.s
	case TagBool:
		if s.b {
			return "1"
		}
		return ""
	case TagReference, TagWeakReference:
		kind := s.ref.RefKind()
		class := s.blessed
		if class == "" {
			class = kind
		}
		return fmt.Sprintf("%s=%s(0x%x)", class, kind, refAddr(s))
	case TagCodeRef:
		return fmt.Sprintf("CODE(0x%x)", refAddr(s))
	case TagGlob:
		return fmt.Sprintf("GLOB(0x%x)", refAddr(s))
	case TagRegex:
		return fmt.Sprintf("(?^:%s)", s.s)
	default:
		return ""
	}
}

// refAddr produces the stable per-process address Perl's "0xADDR"
// stringification convention expects.
func refAddr(s *Scalar) uintptr {
	return reflect.ValueOf(s).Pointer()
}

// Truthy implements the §4.C1 truthiness table.
func (s *Scalar) Truthy() bool {
	if s.tag == TagTied {
		return s.tied.Fetch().Truthy()
	}
	switch s.tag {
	case TagUndef:
		return false
	case TagString:
		return s.s != "" && s.s != "0"
	case TagVString:
		return s.s != ""
	case TagInt:
		return s.i != 0
	case TagDouble:
		return s.f != 0
	case TagBool:
		return s.b
	default:
		return true
	}
}

// IsUndef reports whether s is the UNDEF variant.
func (s *Scalar) IsUndef() bool { return s.tag == TagUndef }

// Ref returns s's reference target (for a REFERENCE, WEAK_REFERENCE or
// CODE_REF), or nil for the other variants.
func (s *Scalar) Ref() RefTarget { return s.ref }

// Blessed returns the blessed class name, or "" if unblessed/non-reference.
func (s *Scalar) Blessed() string { return s.blessed }

// Bless marks s, in place, as blessed into class. Mutating s directly (rather
// than returning a new Scalar) matches Perl's bless($ref, $class): every
// alias of $ref observes the class afterward.
func (s *Scalar) Bless(class string) { s.blessed = class }

// Weaken turns s into a WEAK_REFERENCE in place, like Scalar::Util::weaken:
// it mutates the reference scalar itself, not a copy, so every alias sees
// the new tag. The target pointer is kept, so s still keeps its target
// alive.
func (s *Scalar) Weaken() {
	if s.tag != TagReference && s.tag != TagWeakReference {
		return
	}
	s.tag = TagWeakReference
	s.weak = true
}

// RefKindOf returns the `ref(x)` result: the variant kind, or the blessed
// class if blessed.
func (s *Scalar) RefKindOf() string {
	if s.tag != TagReference && s.tag != TagWeakReference {
		return ""
	}
	if s.blessed != "" {
		return s.blessed
	}
	return s.ref.RefKind()
}

// ---------------------------------------------------------------------------
// Mutation
// ---------------------------------------------------------------------------

// SetInt overwrites s in place with an INT payload, invalidating any string
// cache (matches Perl: arithmetic drops the old string view).
func (s *Scalar) SetInt(i int64) {
	s.tag, s.i = TagInt, i
	s.numCacheValid = false
}

// SetDouble overwrites s in place with a DOUBLE payload.
func (s *Scalar) SetDouble(f float64) {
	s.tag, s.f = TagDouble, f
	s.numCacheValid = false
}

// SetString overwrites s in place with a STRING payload and clears any
// numeric cache — the dualvar is broken by an explicit string write.
func (s *Scalar) SetString(str string) {
	s.tag, s.s = TagString, str
	s.numCacheValid = false
}

// SetUndef overwrites s in place with UNDEF.
func (s *Scalar) SetUndef() {
	*s = Scalar{tag: TagUndef, readOnly: s.readOnly}
}

// Assign copies src's value (not its identity) into s, preserving s's own
// read-only flag slot (the flag itself was already checked by the caller
// via CheckWritable before calling Assign).
func (s *Scalar) Assign(src *Scalar) {
	ro := s.readOnly
	*s = *src
	s.readOnly = ro
}

// Clone returns a fresh Scalar with the same value as s (not read-only,
// regardless of s's flag) — used when a list/array element needs its own
// identity (e.g. `my @b = @a`).
func (s *Scalar) Clone() *Scalar {
	c := *s
	c.readOnly = false
	return &c
}

// ---------------------------------------------------------------------------
// Increment (§4.C1 "magic" string increment)
// ---------------------------------------------------------------------------

var magicIncrPattern = func(s string) bool {
	i := 0
	for i < len(s) && ((s[i] >= 'a' && s[i] <= 'z') || (s[i] >= 'A' && s[i] <= 'Z')) {
		i++
	}
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	return len(s) > 0 && j == len(s)
}

// Increment implements Perl's `++$x`, including the "magic" string bump
// ("Az" -> "Ba") when the string matches ^[A-Za-z]*[0-9]*$.
func (s *Scalar) Increment() {
	if s.tag == TagString && magicIncrPattern(s.s) {
		s.s = magicIncrementString(s.s)
		s.numCacheValid = false
		return
	}
	switch s.tag {
	case TagInt:
		s.i++
	case TagDouble:
		s.f++
	case TagUndef:
		s.tag, s.i = TagInt, 1
	default:
		s.SetInt(s.Int64() + 1)
	}
}

func magicIncrementString(str string) string {
	b := []byte(str)
	for i := len(b) - 1; i >= 0; i-- {
		switch {
		case b[i] >= '0' && b[i] < '9', b[i] >= 'a' && b[i] < 'z', b[i] >= 'A' && b[i] < 'Z':
			b[i]++
			return string(b)
		case b[i] == '9':
			b[i] = '0'
		case b[i] == 'z':
			b[i] = 'a'
		case b[i] == 'Z':
			b[i] = 'A'
		default:
			return string(b)
		}
	}
	// carried out of the most-significant digit: prepend per the digit class.
	switch {
	case b[0] == '0':
		return "1" + string(b)
	case b[0] == 'a':
		return "a" + string(b)
	case b[0] == 'A':
		return "A" + string(b)
	}
	return string(b)
}

// ---------------------------------------------------------------------------
// Comparison (§4.C1: <=> / cmp return {-1,0,+1}, NaN -> UNDEF)
// ---------------------------------------------------------------------------

// NumCmp implements `<=>`. The second return is false when either operand is
// NaN, signaling the caller to produce UNDEF instead of an INT result.
func NumCmp(a, b *Scalar) (int, bool) {
	x, y := a.Float64(), b.Float64()
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	default:
		return 0, true
	}
}

// StrCmp implements `cmp`.
func StrCmp(a, b *Scalar) int {
	return strings.Compare(a.Str(), b.Str())
}

// ---------------------------------------------------------------------------
// internal parsing helpers
// ---------------------------------------------------------------------------

func parseLeadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\n")
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == i {
		return 0
	}
	n, err := strconv.ParseInt(s[:j], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseLeadingFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t\n")
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	j := i
	sawDigit := false
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
		sawDigit = true
	}
	if j < len(s) && s[j] == '.' {
		j++
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			sawDigit = true
		}
	}
	if !sawDigit {
		return 0
	}
	if j < len(s) && (s[j] == 'e' || s[j] == 'E') {
		k := j + 1
		if k < len(s) && (s[k] == '+' || s[k] == '-') {
			k++
		}
		expStart := k
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			k++
		}
		if k > expStart {
			j = k
		}
	}
	f, err := strconv.ParseFloat(s[:j], 64)
	if err != nil {
		return 0
	}
	return f
}

// formatPerlDouble renders a double the way Perl's stringification does:
// shortest round-tripping decimal, with Inf/-Inf/NaN spelled out.
func formatPerlDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
