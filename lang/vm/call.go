// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/perlrt/gperl/lang/compiler"
	"github.com/perlrt/gperl/lang/container"
	"github.com/perlrt/gperl/lang/frame"
	"github.com/perlrt/gperl/lang/opcode"
	"github.com/perlrt/gperl/lang/perlerr"
	"github.com/perlrt/gperl/lang/value"
)

// spreadSentinel marks a CALL_SUB/TAIL_CALL_SUB argument count word as
// "spread the named register's current @_ instead of reading N following
// registers", the encoding codegen.go's compileGoto emits with TAIL_CALL_SUB
// to lower `goto &sub`/`goto &$coderef`.
const spreadSentinel = 0xFFFF

// operatorSymbol maps an opcode in the binOp arithmetic/comparison range to
// the `use overload` operator string §4.C1 dispatches against.
var operatorSymbol = map[string]string{
	"ADD": "+", "SUB": "-", "MUL": "*", "DIV": "/", "MOD": "%", "POW": "**",
	"CONCAT": ".",
	"NUM_EQ": "==", "NUM_NEQ": "!=", "NUM_LT": "<", "NUM_GT": ">",
	"NUM_LTE": "<=", "NUM_GTE": ">=", "NUM_CMP": "<=>",
	"STR_EQ": "eq", "STR_NEQ": "ne", "STR_LT": "lt", "STR_GT": "gt",
	"STR_LTE": "le", "STR_GTE": "ge", "STR_CMP": "cmp",
}

func (vm *Interp) classOverloads(class string) *value.OverloadTable {
	return vm.NS.Overloads(class)
}

// binaryOp implements every opcode in codegen.go's binOp table plus
// LOGICAL_AND/LOGICAL_OR, trying overload dispatch first for blessed
// reference operands (§4.C1 "Overload dispatch").
func (vm *Interp) binaryOp(op opcode.Op, l, r *value.Scalar, loc perlerr.Location) (*value.Scalar, error) {
	name := op.String()
	if sym, ok := operatorSymbol[name]; ok {
		if handler, swapped := value.ResolveOverload(vm.classOverloads, sym, l, r); handler != nil {
			a, b := l, r
			if swapped {
				a, b = r, l
			}
			args := container.NewArray(a, b.Clone())
			result, err := vm.callCode(handler, args, frame.Scalar, a)
			if err != nil {
				return nil, err
			}
			return toScalarResult(result), nil
		}
	}

	switch name {
	case "ADD":
		return arith(l, r, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }), nil
	case "SUB":
		return arith(l, r, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b }), nil
	case "MUL":
		return arith(l, r, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }), nil
	case "DIV":
		if r.Float64() == 0 {
			return nil, perlerr.New(perlerr.KindDivisionByZero, loc, "Illegal division by zero")
		}
		return value.Double(l.Float64() / r.Float64()), nil
	case "MOD":
		ri := r.Int64()
		if ri == 0 {
			return nil, perlerr.New(perlerr.KindModuloByZero, loc, "Illegal modulus zero")
		}
		m := l.Int64() % ri
		if (m != 0) && ((m < 0) != (ri < 0)) {
			m += ri
		}
		return value.Int(m), nil
	case "POW":
		return value.Double(perlPow(l.Float64(), r.Float64())), nil
	case "CONCAT":
		return value.String(l.Str() + r.Str()), nil
	case "REPEAT":
		n := r.Int64()
		if n <= 0 {
			return value.String(""), nil
		}
		return value.String(strings.Repeat(l.Str(), int(n))), nil
	case "NUM_EQ":
		return value.Bool(l.Float64() == r.Float64()), nil
	case "NUM_NEQ":
		return value.Bool(l.Float64() != r.Float64()), nil
	case "NUM_LT":
		return value.Bool(l.Float64() < r.Float64()), nil
	case "NUM_GT":
		return value.Bool(l.Float64() > r.Float64()), nil
	case "NUM_LTE":
		return value.Bool(l.Float64() <= r.Float64()), nil
	case "NUM_GTE":
		return value.Bool(l.Float64() >= r.Float64()), nil
	case "NUM_CMP":
		c, ok := value.NumCmp(l, r)
		if !ok {
			return value.Undef(), nil
		}
		return value.Int(int64(c)), nil
	case "STR_EQ":
		return value.Bool(l.Str() == r.Str()), nil
	case "STR_NEQ":
		return value.Bool(l.Str() != r.Str()), nil
	case "STR_LT":
		return value.Bool(l.Str() < r.Str()), nil
	case "STR_GT":
		return value.Bool(l.Str() > r.Str()), nil
	case "STR_LTE":
		return value.Bool(l.Str() <= r.Str()), nil
	case "STR_GTE":
		return value.Bool(l.Str() >= r.Str()), nil
	case "STR_CMP":
		return value.Int(int64(value.StrCmp(l, r))), nil
	case "LOGICAL_AND":
		if !l.Truthy() {
			return l, nil
		}
		return r, nil
	case "LOGICAL_OR":
		if l.Truthy() {
			return l, nil
		}
		return r, nil
	}
	return nil, perlerr.New(perlerr.KindNotImplemented, loc, "unhandled binary operator %s", name)
}

func arith(l, r *value.Scalar, iop func(a, b int64) int64, fop func(a, b float64) float64) *value.Scalar {
	if l.Tag() == value.TagInt && r.Tag() == value.TagInt {
		return value.Int(iop(l.Int64(), r.Int64()))
	}
	return value.Double(fop(l.Float64(), r.Float64()))
}

func perlPow(base, exp float64) float64 {
	return math.Pow(base, exp)
}

func toScalarResult(cell interface{}) *value.Scalar {
	if s, ok := cell.(*value.Scalar); ok {
		return s
	}
	return value.Undef()
}

// execCallSub implements CALL_SUB's (dst, calleeReg, ctxWord, countWord, N
// arg regs) layout, including the spreadSentinel tail-call encoding.
func (vm *Interp) execCallSub(ef *execFrame, reg, word func() uint16) error {
	dst := reg()
	calleeReg := reg()
	ctx := frame.Context(word())
	count := word()

	var args *container.Array
	if count == spreadSentinel {
		src := reg()
		args = asArray(ef.regs[src])
	} else {
		vals := make([]*value.Scalar, count)
		for i := 0; i < int(count); i++ {
			vals[i] = ef.regs[reg()].(*value.Scalar)
		}
		args = container.NewArray(vals...)
	}

	callee, ok := ef.regs[calleeReg].(*value.Scalar)
	if !ok || callee.Tag() != value.TagCodeRef {
		return perlerr.New(perlerr.KindUndefinedSub, frameLoc(ef), "Undefined subroutine called")
	}
	result, err := vm.callCode(callee, args, ctx, value.Undef())
	if err != nil {
		return err
	}
	ef.regs[dst] = result
	return nil
}

// execCallMethod implements CALL_METHOD's (dst, recv, dynFlagWord,
// [dynReg|methodNameIdx], ctxWord, countWord, N arg regs) layout, including
// `SUPER::method` resolution against the enclosing sub's compile-time
// package rather than the receiver's runtime class.
func (vm *Interp) execCallMethod(ef *execFrame, reg, word func() uint16) error {
	dst := reg()
	recvReg := reg()
	dynFlag := word()
	var methodName string
	if dynFlag == 1 {
		dynReg := reg()
		methodName = ef.regs[dynReg].(*value.Scalar).Str()
	} else {
		idx := word()
		methodName = ef.cc.Strings[idx]
	}
	ctx := frame.Context(word())
	count := word()
	vals := make([]*value.Scalar, count)
	for i := 0; i < int(count); i++ {
		vals[i] = ef.regs[reg()].(*value.Scalar)
	}

	recv := ef.regs[recvReg].(*value.Scalar)

	var startClass string
	var invocant *value.Scalar
	if recv.Tag() == value.TagString {
		startClass = recv.Str()
		invocant = recv
	} else {
		startClass = recv.Blessed()
		if startClass == "" {
			return perlerr.New(perlerr.KindUndefinedMethod, frameLoc(ef), "Can't call method %q on unblessed reference", methodName)
		}
		invocant = recv
	}

	if strings.HasPrefix(methodName, "SUPER::") {
		methodName = strings.TrimPrefix(methodName, "SUPER::")
		mro := vm.NS.MRO(ef.cc.PackageName)
		var code *value.Scalar
		for i, class := range mro {
			if class == ef.cc.PackageName && i+1 < len(mro) {
				for _, anc := range mro[i+1:] {
					if c, ok := vm.NS.LookupSub(anc, methodName); ok {
						code = c
						break
					}
				}
				break
			}
		}
		if code == nil {
			return perlerr.New(perlerr.KindUndefinedMethod, frameLoc(ef), "Can't locate object method %q via SUPER", methodName)
		}
		args := container.NewArray(vals...)
		result, err := vm.callCode(code, args, ctx, invocant)
		if err != nil {
			return err
		}
		ef.regs[dst] = result
		return nil
	}

	code, _, ok := vm.NS.LookupMethod(startClass, methodName)
	if !ok {
		return perlerr.New(perlerr.KindUndefinedMethod, frameLoc(ef), "Can't locate object method %q via package %q", methodName, startClass)
	}
	args := container.NewArray(vals...)
	result, err := vm.callCode(code, args, ctx, invocant)
	if err != nil {
		return err
	}
	ef.regs[dst] = result
	return nil
}

// callCode resolves a CODE_REF scalar to its CompiledCode/captured pair and
// invokes it, binding @_ to args WITHOUT cloning its elements (§4.C3 `@_`
// aliasing lets the callee mutate the caller's argument scalars in place).
func (vm *Interp) callCode(code *value.Scalar, args *container.Array, ctx frame.Context, invocant *value.Scalar) (interface{}, error) {
	closure, ok := code.CodeTarget().(*compiler.Closure)
	if !ok {
		if cc := compiler.CodeOf(code); cc != nil {
			closure = &compiler.Closure{Code: cc}
		} else {
			return nil, perlerr.New(perlerr.KindUndefinedSub, perlerr.Location{}, "Not a CODE reference")
		}
	}
	return vm.invoke(closure.Code, closure.Captured, args, ctx, invocant)
}

func frameLoc(ef *execFrame) perlerr.Location {
	return perlerr.Location{File: ef.cc.SourceName, Line: ef.fr.Line}
}

// execCallBuiltin implements CALL_BUILTIN's (dst, nameIdx, ctxWord,
// countWord, N arg regs) layout and dispatches the fixed builtin set
// codegen.go's compileGenericBuiltin/compileArrayMutator/etc. can emit.
func (vm *Interp) execCallBuiltin(ef *execFrame, reg, word func() uint16) error {
	dst := reg()
	name := ef.cc.Strings[word()]
	ctx := frame.Context(word())
	count := int(word())
	cells := make([]interface{}, count)
	for i := 0; i < count; i++ {
		cells[i] = ef.regs[reg()]
	}
	loc := frameLoc(ef)

	result, err := vm.dispatchBuiltin(ef, name, ctx, cells, loc)
	if err != nil {
		return err
	}
	ef.regs[dst] = result
	return nil
}

func scalarArg(cells []interface{}, i int) *value.Scalar {
	if i >= len(cells) {
		return value.Undef()
	}
	if s, ok := cells[i].(*value.Scalar); ok {
		return s
	}
	return value.Undef()
}

func (vm *Interp) dispatchBuiltin(ef *execFrame, name string, ctx frame.Context, cells []interface{}, loc perlerr.Location) (interface{}, error) {
	switch name {
	case "defined":
		return value.Bool(!scalarArg(cells, 0).IsUndef()), nil
	case "ref":
		return value.String(scalarArg(cells, 0).RefKindOf()), nil
	case "bless":
		s := scalarArg(cells, 0)
		class := "main"
		if len(cells) > 1 {
			class = scalarArg(cells, 1).Str()
		}
		s.Bless(class)
		return s, nil
	case "weaken":
		scalarArg(cells, 0).Weaken()
		return value.Undef(), nil
	case "sprintf":
		return value.String(perlSprintf(scalarArg(cells, 0).Str(), cells[1:])), nil
	case "join":
		sep := scalarArg(cells, 0).Str()
		var parts []string
		for _, c := range cells[1:] {
			parts = append(parts, toScalarCell(c).Str())
		}
		return value.String(strings.Join(parts, sep)), nil
	case "lc":
		return value.String(strings.ToLower(scalarArg(cells, 0).Str())), nil
	case "uc":
		return value.String(strings.ToUpper(scalarArg(cells, 0).Str())), nil
	case "reverse":
		if ctx == frame.List && len(cells) > 0 {
			if a, ok := cells[0].(*container.Array); ok {
				n := a.Len()
				out := make([]*value.Scalar, n)
				for i := 0; i < n; i++ {
					out[i] = a.Get(n - 1 - i)
				}
				return container.NewArray(out...), nil
			}
		}
		s := scalarArg(cells, 0).Str()
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return value.String(string(runes)), nil
	case "sort":
		arr := asArray(cells[0]).Clone()
		sort.SliceStable(arr.Data, func(i, j int) bool {
			return arr.Data[i].Str() < arr.Data[j].Str()
		})
		return arr, nil
	case "chomp":
		s := scalarArg(cells, 0)
		str := s.Str()
		if strings.HasSuffix(str, "\n") {
			s.SetString(strings.TrimSuffix(str, "\n"))
		}
		return value.Int(0), nil
	case "caller":
		depth := 0
		if len(cells) > 0 {
			depth = int(scalarArg(cells, 0).Int64())
		}
		info, ok := vm.frames.Caller(depth + 1)
		if !ok {
			if ctx == frame.List {
				return container.NewArray(), nil
			}
			return value.Undef(), nil
		}
		if ctx != frame.List {
			return value.String(info.Package), nil
		}
		// List context returns the full 11-field long form (§4.C8, §9 OQ2);
		// hinthash is always undef since this execution core never
		// populates %^H.
		wantarray := value.Bool(false)
		switch info.Wantarray {
		case frame.Void:
			wantarray = value.Undef()
		case frame.List:
			wantarray = value.Bool(true)
		}
		return container.NewArray(
			value.String(info.Package),
			value.String(info.Filename),
			value.Int(int64(info.Line)),
			value.String(info.Subroutine),
			value.Bool(info.HasArgs),
			wantarray,
			value.String(info.Evaltext),
			value.Bool(info.IsRequire),
			value.Int(int64(info.Hints)),
			value.String(info.Bitmask),
			value.Undef(),
		), nil
	case "splice":
		arr := asArray(cells[0])
		offset, length := 0, arr.Len()
		if len(cells) > 1 {
			offset = int(scalarArg(cells, 1).Int64())
		}
		if len(cells) > 2 {
			length = int(scalarArg(cells, 2).Int64())
		}
		var repl []*value.Scalar
		for _, c := range cells[3:] {
			repl = append(repl, toScalarCell(c))
		}
		removed := arr.Splice(offset, length, repl...)
		return container.NewArray(removed...), nil
	case "__slurp_rest":
		arr := asArray(cells[0])
		start := int(scalarArg(cells, 1).Int64())
		if start >= arr.Len() {
			return container.NewArray(), nil
		}
		return arr.Slice(rangeInts(start, arr.Len()-1)), nil
	case "__range":
		lo := scalarArg(cells, 0).Int64()
		hi := scalarArg(cells, 1).Int64()
		var out []*value.Scalar
		for i := lo; i <= hi; i++ {
			out = append(out, value.Int(i))
		}
		return container.NewArray(out...), nil
	}
	return nil, perlerr.New(perlerr.KindNotImplemented, loc, "builtin %q is not implemented by this execution core", name)
}

func toScalarCell(c interface{}) *value.Scalar {
	if s, ok := c.(*value.Scalar); ok {
		return s
	}
	return value.Undef()
}

func rangeInts(lo, hi int) []int {
	if hi < lo {
		return nil
	}
	out := make([]int, hi-lo+1)
	for i := range out {
		out[i] = lo + i
	}
	return out
}

// perlSprintf implements the subset of Perl's sprintf this front end's
// compileGenericBuiltin can produce: %s/%d/%i/%u/%f/%g/%e/%x/%o/%b/%c/%%,
// with the usual flag/width/precision modifiers, pulling each argument's
// numeric or string view per verb since a Scalar isn't directly one of
// fmt's primitive types.
func perlSprintf(format string, args []interface{}) string {
	scalars := make([]*value.Scalar, len(args))
	for i, a := range args {
		scalars[i] = toScalarCell(a)
	}
	var out strings.Builder
	argi := 0
	next := func() *value.Scalar {
		if argi < len(scalars) {
			s := scalars[argi]
			argi++
			return s
		}
		return value.Undef()
	}
	i := 0
	for i < len(format) {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			i++
			continue
		}
		j := i + 1
		for j < len(format) && strings.ContainsRune("-+ 0#", rune(format[j])) {
			j++
		}
		for j < len(format) && format[j] >= '0' && format[j] <= '9' {
			j++
		}
		if j < len(format) && format[j] == '.' {
			j++
			for j < len(format) && format[j] >= '0' && format[j] <= '9' {
				j++
			}
		}
		if j >= len(format) {
			out.WriteByte('%')
			break
		}
		verb := format[j]
		spec := format[i : j+1]
		switch verb {
		case '%':
			out.WriteByte('%')
		case 's':
			out.WriteString(fmt.Sprintf(spec, next().Str()))
		case 'd', 'i', 'u':
			out.WriteString(fmt.Sprintf(spec[:len(spec)-1]+"d", next().Int64()))
		case 'f', 'g', 'e', 'G', 'E':
			out.WriteString(fmt.Sprintf(spec, next().Float64()))
		case 'x', 'X', 'o', 'b':
			out.WriteString(fmt.Sprintf(spec, next().Int64()))
		case 'c':
			out.WriteString(string(rune(next().Int64())))
		default:
			out.WriteString(spec)
		}
		i = j + 1
	}
	return out.String()
}
