// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package capture_test

import (
	"testing"

	"github.com/perlrt/gperl/lang/capture"
	"github.com/perlrt/gperl/lang/parser"
)

func TestCounterClosureCapturesOuterLexical(t *testing.T) {
	src := `
my $count = 0;
my $inc = sub { $count = $count + 1; return $count; };
`
	prog, errs := parser.Parse("test.pl", src)
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	result := capture.Analyze(prog)
	if len(result) != 1 {
		t.Fatalf("expected exactly one sub body analyzed, got %d", len(result))
	}
	for _, slots := range result {
		if len(slots) != 1 {
			t.Fatalf("expected 1 captured slot, got %d: %v", len(slots), slots)
		}
		if slots[0].Name != "count" || slots[0].Depth != 1 {
			t.Errorf("got %+v, want {count ... depth=1}", slots[0])
		}
	}
}

func TestNoCaptureForOwnLexical(t *testing.T) {
	src := `
my $f = sub { my $x = 1; return $x; };
`
	prog, errs := parser.Parse("test.pl", src)
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	result := capture.Analyze(prog)
	for _, slots := range result {
		if len(slots) != 0 {
			t.Errorf("own lexical should not be captured, got %v", slots)
		}
	}
}

func TestUnderscoreNeverCaptured(t *testing.T) {
	src := `
for (1..3) {
	my $f = sub { return $_; };
}
`
	prog, errs := parser.Parse("test.pl", src)
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	result := capture.Analyze(prog)
	for _, slots := range result {
		for _, s := range slots {
			if s.Name == "_" {
				t.Error("$_ must never appear as a captured slot")
			}
		}
	}
}

func TestNestedClosureForwardsGrandparentLexical(t *testing.T) {
	src := `
my $base = 10;
sub outer {
	my $mid = sub {
		my $inner = sub { return $base; };
		return $inner;
	};
	return $mid;
}
`
	prog, errs := parser.Parse("test.pl", src)
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	result := capture.Analyze(prog)
	found := 0
	for _, slots := range result {
		for _, s := range slots {
			if s.Name == "base" {
				found++
			}
		}
	}
	if found < 2 {
		t.Errorf("expected $base forwarded through both the mid and inner sub frames, found in %d", found)
	}
}
