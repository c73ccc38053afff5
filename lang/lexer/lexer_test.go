// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package lexer_test

import (
	"testing"

	"github.com/perlrt/gperl/lang/lexer"
	"github.com/perlrt/gperl/lang/token"
)

// tokenCase is a single expected token in a table-driven test.
type tokenCase struct {
	typ     token.Type
	literal string
}

// runTokenize lexes input and checks that it produces exactly the expected
// sequence (plus a final EOF).
func runTokenize(t *testing.T, name, input string, want []tokenCase) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		t.Helper()
		l := lexer.New("test.pl", input)
		toks := l.Tokenize()

		if len(toks) == 0 {
			t.Fatal("Tokenize returned empty slice")
		}
		last := toks[len(toks)-1]
		if last.Type != token.EOF {
			t.Errorf("last token is %s, want EOF", last.Type)
		}
		body := toks[:len(toks)-1]

		if len(body) != len(want) {
			t.Errorf("got %d tokens (excl. EOF), want %d", len(body), len(want))
			for i, tok := range body {
				t.Logf("  [%d] %s %q", i, tok.Type, tok.Literal)
			}
			return
		}
		for i, w := range want {
			got := body[i]
			if got.Type != w.typ {
				t.Errorf("token[%d]: type = %s, want %s (literal %q)", i, got.Type, w.typ, got.Literal)
			}
			if got.Literal != w.literal {
				t.Errorf("token[%d]: literal = %q, want %q", i, got.Literal, w.literal)
			}
		}
	})
}

func TestLexer(t *testing.T) {
	runTokenize(t, "scalar decl", `my $x = "10";`, []tokenCase{
		{token.MY, "my"},
		{token.SCALAR, "$x"},
		{token.ASSIGN, "="},
		{token.STRING, `"10"`},
		{token.SEMICOLON, ";"},
	})

	runTokenize(t, "arithmetic and comment", "my $y = $x + 5; # add five\n", []tokenCase{
		{token.MY, "my"},
		{token.SCALAR, "$y"},
		{token.ASSIGN, "="},
		{token.SCALAR, "$x"},
		{token.PLUS, "+"},
		{token.INT, "5"},
		{token.SEMICOLON, ";"},
	})

	runTokenize(t, "special vars", `$_ $@ $1 @_`, []tokenCase{
		{token.SCALAR, "$_"},
		{token.SCALAR, "$@"},
		{token.SCALAR, "$1"},
		{token.ARRAYVAR, "@_"},
	})

	runTokenize(t, "sub decl", "sub fac { return 1; }", []tokenCase{
		{token.SUB, "sub"},
		{token.IDENT, "fac"},
		{token.LBRACE, "{"},
		{token.RETURN, "return"},
		{token.INT, "1"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
	})

	runTokenize(t, "string comparisons and goto-amp", `$s eq "x" and goto &fac`, []tokenCase{
		{token.SCALAR, "$s"},
		{token.SEQ, "eq"},
		{token.STRING, `"x"`},
		{token.IDENT, "and"},
		{token.GOTO, "goto"},
		{token.AMP, "&"},
		{token.IDENT, "fac"},
	})

	runTokenize(t, "match operator", `$s =~ tr/A-Z//`, []tokenCase{
		{token.SCALAR, "$s"},
		{token.MATCH, "=~"},
		{token.IDENT, "tr"},
		{token.SLASH, "/"},
		{token.IDENT, "A"},
		{token.MINUS, "-"},
		{token.IDENT, "Z"},
		{token.DSLASH, "//"},
	})

	runTokenize(t, "three-way cmp and defined-or", `$a <=> $b; $c //= 1;`, []tokenCase{
		{token.SCALAR, "$a"},
		{token.CMP, "<=>"},
		{token.SCALAR, "$b"},
		{token.SEMICOLON, ";"},
		{token.SCALAR, "$c"},
		{token.DSLASHEQ, "//="},
		{token.INT, "1"},
		{token.SEMICOLON, ";"},
	})
}
