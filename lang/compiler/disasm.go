// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"fmt"

	"github.com/perlrt/gperl/lang/opcode"
)

// Instruction is one decoded row of a disassembly listing: the program
// counter it starts at, its mnemonic, its operand words rendered as text,
// and the source line pc_to_line maps it to (0 if unmapped).
type Instruction struct {
	PC      int
	Op      opcode.Op
	SubOp   opcode.SubOp // only meaningful when Op == opcode.SLOW_OP
	Operand string
	Line    int
}

// Disassemble walks cc's bytecode stream one instruction at a time,
// decoding operand words generically from opcode.Op's WordCount/operand
// shape, mirroring the teacher's Disassemble() human-readable dump (the
// table is the new part — see cmd/gperl, which renders this via
// tablewriter rather than bare Printf).
func Disassemble(cc *CompiledCode) []Instruction {
	var out []Instruction
	code := cc.Code
	pc := 0
	for pc < len(code) {
		start := pc
		op := opcode.Op(code[pc])
		pc++
		inst := Instruction{PC: start, Op: op, Line: cc.PCToLine[start]}

		switch {
		case op == opcode.SLOW_OP:
			sub := opcode.SubOp(code[pc])
			pc++
			inst.SubOp = sub
			// Sub-op payload length varies by sub-op; the remaining words up
			// to the next recognizable opcode boundary aren't statically
			// knowable from the catalog alone, so only the sub-op id is
			// shown; the sub-op's operand words are not consumed here.
			inst.Operand = sub.String()
		case op.WordCount() >= 0:
			n := op.WordCount()
			words := code[pc : pc+n]
			pc += n
			inst.Operand = formatOperands(words)
		default:
			// Variable-length (operandRegN): first word is dst, second is
			// count, followed by count register words.
			if pc+1 < len(code) {
				dst := code[pc]
				n := int(code[pc+1])
				lo := pc + 2
				hi := lo + n
				if hi > len(code) {
					hi = len(code)
				}
				regs := code[lo:hi]
				inst.Operand = fmt.Sprintf("r%d, n=%d, %s", dst, n, formatOperands(regs))
				pc = hi
			}
		}
		out = append(out, inst)
	}
	return out
}

func formatOperands(words []uint16) string {
	s := ""
	for i, w := range words {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d", w)
	}
	return s
}
