// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package parser_test

import (
	"testing"

	"github.com/perlrt/gperl/lang/ast"
	"github.com/perlrt/gperl/lang/parser"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, errs := parser.Parse("test.pl", src)
	if len(errs) != 0 {
		for _, e := range errs {
			t.Errorf("parse error: %v", e)
		}
		t.FailNow()
	}
	return prog
}

func TestParseVarDecl(t *testing.T) {
	prog := mustParse(t, `my $x = 10;`)
	if len(prog.Statements) != 1 {
		t.Fatalf("got %d statements, want 1", len(prog.Statements))
	}
	ds, ok := prog.Statements[0].(*ast.DeclStmt)
	if !ok {
		t.Fatalf("statement[0] = %T, want *ast.DeclStmt", prog.Statements[0])
	}
	vd, ok := ds.D.(*ast.VarDecl)
	if !ok {
		t.Fatalf("decl = %T, want *ast.VarDecl", ds.D)
	}
	if vd.Kind != ast.DeclMy {
		t.Errorf("kind = %v, want DeclMy", vd.Kind)
	}
	if len(vd.Names) != 1 || vd.Names[0].Name != "x" {
		t.Fatalf("names = %+v, want [x]", vd.Names)
	}
	if _, ok := vd.Value.(*ast.NumberLiteral); !ok {
		t.Errorf("value = %T, want *ast.NumberLiteral", vd.Value)
	}
}

func TestParseListDecl(t *testing.T) {
	prog := mustParse(t, `my ($n, $acc) = @_;`)
	vd := prog.Statements[0].(*ast.DeclStmt).D.(*ast.VarDecl)
	if len(vd.Names) != 2 {
		t.Fatalf("got %d names, want 2", len(vd.Names))
	}
	if vd.Names[0].Name != "n" || vd.Names[1].Name != "acc" {
		t.Errorf("names = %+v", vd.Names)
	}
	arg, ok := vd.Value.(*ast.Ident)
	if !ok || arg.Sigil != ast.SigilArray || arg.Name != "_" {
		t.Errorf("value = %+v, want @_", vd.Value)
	}
}

func TestParseSubDecl(t *testing.T) {
	prog := mustParse(t, `
sub fac {
	my ($n) = @_;
	return 1 if $n <= 1;
	return $n * fac($n - 1);
}`)
	if len(prog.Statements) != 1 {
		t.Fatalf("got %d statements, want 1", len(prog.Statements))
	}
	sd := prog.Statements[0].(*ast.DeclStmt).D.(*ast.SubDecl)
	if sd.Name != "fac" {
		t.Errorf("name = %q, want fac", sd.Name)
	}
	if len(sd.Body.Statements) != 3 {
		t.Fatalf("got %d body statements, want 3", len(sd.Body.Statements))
	}
	// statement 1 is `return 1 if $n <= 1;`, desugared into an IfStmt
	// wrapping a ReturnStmt.
	ifs, ok := sd.Body.Statements[1].(*ast.IfStmt)
	if !ok {
		t.Fatalf("statement[1] = %T, want *ast.IfStmt", sd.Body.Statements[1])
	}
	if _, ok := ifs.Cond.(*ast.OperatorExpr); !ok {
		t.Errorf("cond = %T, want *ast.OperatorExpr", ifs.Cond)
	}
	if _, ok := ifs.Then.Statements[0].(*ast.ReturnStmt); !ok {
		t.Errorf("then[0] = %T, want *ast.ReturnStmt", ifs.Then.Statements[0])
	}
	// statement 2 is the recursive multiply/call return.
	ret := sd.Body.Statements[2].(*ast.ReturnStmt)
	mul, ok := ret.Value.(*ast.OperatorExpr)
	if !ok {
		t.Fatalf("return value = %T, want *ast.OperatorExpr", ret.Value)
	}
	if _, ok := mul.Right.(*ast.CallExpr); !ok {
		t.Errorf("mul.Right = %T, want *ast.CallExpr", mul.Right)
	}
}

func TestParseIfElsif(t *testing.T) {
	prog := mustParse(t, `
if ($x == 1) {
	print "one";
} elsif ($x == 2) {
	print "two";
} else {
	print "other";
}`)
	top := prog.Statements[0].(*ast.IfStmt)
	elsif, ok := top.Else.(*ast.IfStmt)
	if !ok {
		t.Fatalf("top.Else = %T, want *ast.IfStmt", top.Else)
	}
	if _, ok := elsif.Else.(*ast.BlockExpr); !ok {
		t.Fatalf("elsif.Else = %T, want *ast.BlockExpr", elsif.Else)
	}
}

func TestParseForeach(t *testing.T) {
	prog := mustParse(t, `
OUTER: foreach my $x (1 .. 10) {
	next OUTER if $x % 2 == 0;
	print $x;
}`)
	fe, ok := prog.Statements[0].(*ast.ForeachStmt)
	if !ok {
		t.Fatalf("statement[0] = %T, want *ast.ForeachStmt", prog.Statements[0])
	}
	if fe.Label != "OUTER" {
		t.Errorf("label = %q, want OUTER", fe.Label)
	}
	if !fe.VarMy || fe.Var.Name != "x" {
		t.Errorf("var = %+v", fe.Var)
	}
	if _, ok := fe.List.(*ast.RangeExpr); !ok {
		t.Errorf("list = %T, want *ast.RangeExpr", fe.List)
	}
	lc := fe.Body.Statements[0].(*ast.IfStmt).Then.Statements[0].(*ast.LoopControlStmt)
	if lc.Label != "OUTER" {
		t.Errorf("next label = %q, want OUTER", lc.Label)
	}
}

func TestParseCStyleFor(t *testing.T) {
	prog := mustParse(t, `for (my $i = 0; $i < 10; $i++) { print $i; }`)
	fs, ok := prog.Statements[0].(*ast.ForStmt)
	if !ok {
		t.Fatalf("statement[0] = %T, want *ast.ForStmt", prog.Statements[0])
	}
	if fs.Init == nil || fs.Cond == nil || fs.Post == nil {
		t.Fatalf("for clauses missing: init=%v cond=%v post=%v", fs.Init, fs.Cond, fs.Post)
	}
}

func TestParseHashAndIndex(t *testing.T) {
	prog := mustParse(t, `my %h = (a => 1, b => 2); my $v = $h{a};`)
	vd := prog.Statements[0].(*ast.DeclStmt).D.(*ast.VarDecl)
	hl, ok := vd.Value.(*ast.ListExpr)
	if !ok {
		t.Fatalf("value = %T, want *ast.ListExpr", vd.Value)
	}
	if len(hl.Elems) != 4 {
		t.Fatalf("got %d list elems, want 4", len(hl.Elems))
	}

	vd2 := prog.Statements[1].(*ast.DeclStmt).D.(*ast.VarDecl)
	idx, ok := vd2.Value.(*ast.IndexExpr)
	if !ok {
		t.Fatalf("value = %T, want *ast.IndexExpr", vd2.Value)
	}
	if !idx.IsHash {
		t.Error("IsHash = false, want true")
	}
	key, ok := idx.Index.(*ast.StringLiteral)
	if !ok || key.Parts[0].Text != "a" {
		t.Errorf("index = %+v, want bareword-quoted \"a\"", idx.Index)
	}
}

func TestParseMethodCallAndRef(t *testing.T) {
	prog := mustParse(t, `my $obj = Foo->new(); my $r = \$obj; $obj->bark(1, 2);`)
	vd := prog.Statements[0].(*ast.DeclStmt).D.(*ast.VarDecl)
	call, ok := vd.Value.(*ast.MethodCallExpr)
	if !ok {
		t.Fatalf("value = %T, want *ast.MethodCallExpr", vd.Value)
	}
	if call.Method != "new" {
		t.Errorf("method = %q, want new", call.Method)
	}

	vd2 := prog.Statements[1].(*ast.DeclStmt).D.(*ast.VarDecl)
	if _, ok := vd2.Value.(*ast.RefExpr); !ok {
		t.Fatalf("value = %T, want *ast.RefExpr", vd2.Value)
	}

	es := prog.Statements[2].(*ast.ExprStmt)
	mc, ok := es.X.(*ast.MethodCallExpr)
	if !ok {
		t.Fatalf("expr = %T, want *ast.MethodCallExpr", es.X)
	}
	if len(mc.Args) != 2 {
		t.Errorf("got %d args, want 2", len(mc.Args))
	}
}

func TestParseStringInterpolation(t *testing.T) {
	prog := mustParse(t, `my $msg = "hello $name, you have @items";`)
	vd := prog.Statements[0].(*ast.DeclStmt).D.(*ast.VarDecl)
	sl, ok := vd.Value.(*ast.StringLiteral)
	if !ok {
		t.Fatalf("value = %T, want *ast.StringLiteral", vd.Value)
	}
	var interpolated []string
	for _, part := range sl.Parts {
		if part.Interpolated {
			id := part.Expr.(*ast.Ident)
			interpolated = append(interpolated, string(id.Sigil)+id.Name)
		}
	}
	if len(interpolated) != 2 || interpolated[0] != "$name" || interpolated[1] != "@items" {
		t.Errorf("interpolated = %v, want [$name @items]", interpolated)
	}
}

func TestParseEvalBlockAndString(t *testing.T) {
	prog := mustParse(t, `
eval { die "boom"; };
my $code = "1 + 1";
my $r = eval $code;
`)
	if _, ok := prog.Statements[0].(*ast.ExprStmt).X.(*ast.EvalBlockExpr); !ok {
		t.Fatalf("statement[0] expr = %T, want *ast.EvalBlockExpr", prog.Statements[0].(*ast.ExprStmt).X)
	}
	vd := prog.Statements[2].(*ast.DeclStmt).D.(*ast.VarDecl)
	es, ok := vd.Value.(*ast.EvalStringExpr)
	if !ok {
		t.Fatalf("value = %T, want *ast.EvalStringExpr", vd.Value)
	}
	if _, ok := es.Source.(*ast.Ident); !ok {
		t.Errorf("source = %T, want *ast.Ident ($code)", es.Source)
	}
}

func TestParseTernaryAndAssignOps(t *testing.T) {
	prog := mustParse(t, `my $x = $a > $b ? $a : $b; $x += 1; $y //= 5;`)
	vd := prog.Statements[0].(*ast.DeclStmt).D.(*ast.VarDecl)
	if _, ok := vd.Value.(*ast.TernaryExpr); !ok {
		t.Fatalf("value = %T, want *ast.TernaryExpr", vd.Value)
	}

	es1 := prog.Statements[1].(*ast.ExprStmt).X.(*ast.AssignExpr)
	if es1.Op.String() != "+=" {
		t.Errorf("op = %s, want +=", es1.Op)
	}

	es2 := prog.Statements[2].(*ast.ExprStmt).X.(*ast.AssignExpr)
	if es2.Op.String() != "//=" {
		t.Errorf("op = %s, want //=", es2.Op)
	}
}

func TestParseGotoAmp(t *testing.T) {
	prog := mustParse(t, `goto &fac;`)
	g, ok := prog.Statements[0].(*ast.GotoStmt)
	if !ok {
		t.Fatalf("statement[0] = %T, want *ast.GotoStmt", prog.Statements[0])
	}
	id, ok := g.Sub.(*ast.Ident)
	if !ok || id.Name != "fac" {
		t.Errorf("sub = %+v, want fac", g.Sub)
	}
}
