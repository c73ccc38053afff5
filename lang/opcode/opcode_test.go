// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package opcode_test

import (
	"testing"

	"github.com/perlrt/gperl/lang/opcode"
)

func TestFastSlowPartition(t *testing.T) {
	if !opcode.ADD.IsFast() {
		t.Error("ADD should be a fast opcode")
	}
	if opcode.SLOW_OP.IsFast() {
		t.Error("SLOW_OP should not be classified as fast")
	}
}

func TestMnemonics(t *testing.T) {
	cases := []struct {
		op   opcode.Op
		want string
	}{
		{opcode.ADD, "ADD"},
		{opcode.GOTO_IF_FALSE, "GOTO_IF_FALSE"},
		{opcode.CALL_METHOD, "CALL_METHOD"},
		{opcode.SLOW_OP, "SLOW_OP"},
	}
	for _, c := range cases {
		if got := c.op.String(); got != c.want {
			t.Errorf("%d.String() = %q, want %q", c.op, got, c.want)
		}
	}
}

func TestWordCounts(t *testing.T) {
	if got := opcode.NOP.WordCount(); got != 0 {
		t.Errorf("NOP.WordCount() = %d, want 0", got)
	}
	if got := opcode.MOVE.WordCount(); got != 2 {
		t.Errorf("MOVE.WordCount() = %d, want 2", got)
	}
	if got := opcode.LOAD_CONST.WordCount(); got != 3 {
		t.Errorf("LOAD_CONST.WordCount() = %d, want 3 (1 reg + 2-word imm)", got)
	}
	if got := opcode.CALL_SUB.WordCount(); got != -1 {
		t.Errorf("CALL_SUB.WordCount() = %d, want -1 (variable length)", got)
	}
}

func TestSubOpNames(t *testing.T) {
	if got := opcode.SUB_EVAL_STRING.String(); got != "EVAL_STRING" {
		t.Errorf("SUB_EVAL_STRING.String() = %q, want EVAL_STRING", got)
	}
}
