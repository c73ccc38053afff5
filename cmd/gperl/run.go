// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v1"

	"github.com/perlrt/gperl/lang/compiler"
	"github.com/perlrt/gperl/lang/parser"
	"github.com/perlrt/gperl/lang/perlerr"
	"github.com/perlrt/gperl/lang/vm"
)

var runCommand = cli.Command{
	Action:    runAction,
	Name:      "run",
	Usage:     "compile and execute a source file (or -e CODE)",
	ArgsUsage: "[source.pl]",
	Flags:     []cli.Flag{evalFlag},
}

// runAction implements §6's CLI entry: a source file or `-e CODE`, exit
// code 0 on success, 1 on an uncaught die (or any runtime fault that
// reaches the top level uncaught), 2 on a compile error.
func runAction(ctx *cli.Context) error {
	source, filename, err := readSource(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gperl: %v\n", err)
		os.Exit(2)
	}

	prog, perrs := parser.Parse(filename, source)
	if len(perrs) > 0 {
		for _, e := range perrs {
			fmt.Fprintf(os.Stderr, "%v\n", e)
		}
		os.Exit(2)
	}

	cc, cerrs := compiler.Compile(prog, "main", filename)
	if len(cerrs) > 0 {
		for _, e := range cerrs {
			fmt.Fprintf(os.Stderr, "%v\n", e)
		}
		os.Exit(2)
	}

	interp := vm.New()
	if _, err := interp.RunProgram(cc); err != nil {
		printUncaught(err)
		os.Exit(1)
	}
	return nil
}

// printUncaught formats an error that escaped every `eval` the way §7's
// "User-visible behavior" mandates: "MESSAGE at FILE line N." plus, when
// the error carries a back-trace, one Carp-style caller line per frame.
func printUncaught(err error) {
	if pe, ok := err.(*perlerr.PerlError); ok {
		fmt.Fprintln(os.Stderr, pe.Longmess())
		return
	}
	fmt.Fprintln(os.Stderr, err.Error())
}

// readSource resolves the `-e CODE` flag or the positional source-file
// argument into (source text, a synthetic or real file name).
func readSource(ctx *cli.Context) (source, filename string, err error) {
	if code := ctx.String(evalFlag.Name); code != "" {
		return code, "-e", nil
	}
	if ctx.NArg() < 1 {
		return "", "", fmt.Errorf("usage: gperl run [-e CODE] <source.pl>")
	}
	name := ctx.Args().Get(0)
	b, err := os.ReadFile(name)
	if err != nil {
		return "", "", err
	}
	return string(b), name, nil
}
