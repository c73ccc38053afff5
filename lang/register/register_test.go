// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package register_test

import (
	"errors"
	"testing"

	"github.com/perlrt/gperl/lang/perlerr"
	"github.com/perlrt/gperl/lang/register"
)

func TestReservedRegisters(t *testing.T) {
	a := register.New()
	r, err := a.Declare("x")
	if err != nil {
		t.Fatal(err)
	}
	if r < 3 {
		t.Errorf("Declare(x) = %d, want >= 3 (0..2 reserved)", r)
	}
}

func TestDeclareAndLookup(t *testing.T) {
	a := register.New()
	r, _ := a.Declare("n")
	got, ok := a.Lookup("n")
	if !ok || got != r {
		t.Fatalf("Lookup(n) = (%d, %v), want (%d, true)", got, ok, r)
	}
	if _, ok := a.Lookup("missing"); ok {
		t.Error("Lookup(missing) should fail")
	}
}

func TestScopeReleaseNotBeforeExit(t *testing.T) {
	a := register.New()
	r1, _ := a.Declare("a")

	a.OpenScope()
	r2, _ := a.Declare("b")
	if r2 <= r1 {
		t.Fatalf("inner scope register %d should be allocated after outer %d", r2, r1)
	}
	// b is still visible while its scope is open.
	if _, ok := a.Lookup("b"); !ok {
		t.Fatal("b should be visible inside its own scope")
	}
	a.CloseScope()

	// b is gone once its scope closes.
	if _, ok := a.Lookup("b"); ok {
		t.Error("b should not be visible after CloseScope")
	}
	// The index b held is now free for reuse by a later sibling scope.
	a.OpenScope()
	r3, _ := a.Declare("c")
	if r3 != r2 {
		t.Errorf("sibling scope should reuse register %d, got %d", r2, r3)
	}
	a.CloseScope()
}

func TestTempLifetimeWithinScope(t *testing.T) {
	a := register.New()
	t1, _ := a.Temp()
	t2, _ := a.Temp()
	if t2 != t1+1 {
		t.Errorf("second temp should follow first: got %d after %d", t2, t1)
	}
}

func TestPersistentNeverReused(t *testing.T) {
	a := register.New()
	a.OpenScope()
	p, _ := a.DeclarePersistent("captured")
	a.CloseScope()

	a.OpenScope()
	r, _ := a.Declare("other")
	a.CloseScope()

	if r == p {
		t.Errorf("persistent register %d must not be reused by %d", p, r)
	}
	if _, ok := a.Lookup("captured"); !ok {
		t.Error("persistent binding should remain visible after its scope closes")
	}
}

func TestTooManyRegisters(t *testing.T) {
	a := register.New()
	var lastErr error
	for i := 0; i < register.MaxRegisters+10; i++ {
		if _, err := a.Temp(); err != nil {
			lastErr = err
			break
		}
	}
	if lastErr == nil {
		t.Fatal("expected an error after exceeding MaxRegisters")
	}
	var pe *perlerr.PerlError
	if !errors.As(lastErr, &pe) || pe.Kind != perlerr.KindTooManyRegisters {
		t.Errorf("expected KindTooManyRegisters, got %v", lastErr)
	}
}

func TestMaxUsedHighWaterMark(t *testing.T) {
	a := register.New()
	a.OpenScope()
	a.Declare("x")
	a.Declare("y")
	a.CloseScope()
	if a.MaxUsed() < 5 {
		t.Errorf("MaxUsed() = %d, want >= 5 (3 reserved + 2 declared)", a.MaxUsed())
	}
}
