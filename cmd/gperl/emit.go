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

	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/perlrt/gperl/lang/ast"
	"github.com/perlrt/gperl/lang/compiler"
	"github.com/perlrt/gperl/lang/lexer"
	"github.com/perlrt/gperl/lang/parser"
)

var tokensCommand = cli.Command{
	Action:    tokensAction,
	Name:      "tokens",
	Usage:     "emit the lexer's token stream for a source file",
	ArgsUsage: "<source.pl>",
}

var astCommand = cli.Command{
	Action:    astAction,
	Name:      "ast",
	Usage:     "emit the parsed syntax tree for a source file",
	ArgsUsage: "<source.pl>",
}

var bytecodeCommand = cli.Command{
	Action:    bytecodeAction,
	Name:      "bytecode",
	Usage:     "compile a source file and emit its disassembled bytecode",
	ArgsUsage: "<source.pl>",
}

func tokensAction(ctx *cli.Context) error {
	filename, source, err := requireSourceFile(ctx)
	if err != nil {
		return err
	}
	l := lexer.New(filename, source)
	for _, tok := range l.Tokenize() {
		fmt.Printf("%s\t%s\t%q\n", tok.Pos, tok.Type, tok.Literal)
	}
	return nil
}

func astAction(ctx *cli.Context) error {
	filename, source, err := requireSourceFile(ctx)
	if err != nil {
		return err
	}
	prog, perrs := parser.Parse(filename, source)
	for _, e := range perrs {
		fmt.Fprintln(os.Stderr, e)
	}
	if len(perrs) > 0 {
		os.Exit(2)
	}
	fmt.Print(ast.Dump(prog))
	return nil
}

func bytecodeAction(ctx *cli.Context) error {
	filename, source, err := requireSourceFile(ctx)
	if err != nil {
		return err
	}
	prog, perrs := parser.Parse(filename, source)
	if len(perrs) > 0 {
		for _, e := range perrs {
			fmt.Fprintln(os.Stderr, e)
		}
		os.Exit(2)
	}
	cc, cerrs := compiler.Compile(prog, "main", filename)
	if len(cerrs) > 0 {
		for _, e := range cerrs {
			fmt.Fprintln(os.Stderr, e)
		}
		os.Exit(2)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"PC", "Line", "Op", "Operands"})
	for _, inst := range compiler.Disassemble(cc) {
		op := inst.Op.String()
		table.Append([]string{fmt.Sprint(inst.PC), fmt.Sprint(inst.Line), op, inst.Operand})
	}
	table.Render()
	return nil
}

func requireSourceFile(ctx *cli.Context) (filename, source string, err error) {
	if ctx.NArg() < 1 {
		return "", "", fmt.Errorf("usage: gperl %s <source.pl>", ctx.Command.Name)
	}
	name := ctx.Args().Get(0)
	b, err := os.ReadFile(name)
	if err != nil {
		return "", "", err
	}
	return name, string(b), nil
}
