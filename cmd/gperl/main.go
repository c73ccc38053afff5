// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command gperl is the execution core's command-line driver (SPEC_FULL.md
// §A.3): compile-and-run a source file or `-e` one-liner, or emit an
// intermediate compilation stage. Built on gopkg.in/urfave/cli.v1, the same
// framework the teacher uses for cmd/gprobe and cmd/devp2p, replacing the
// prior flag-package stub.
package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v1"

	"github.com/perlrt/gperl/internal/plog"
)

var gitCommit = "" // set via -ldflags at release builds; empty in dev checkouts

const clientIdentifier = "gperl"

var (
	evalFlag = cli.StringFlag{
		Name:  "e",
		Usage: "execute CODE instead of reading a source file",
	}
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file (see `gperl dumpconfig`)",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "verbose",
		Usage: "enable diagnostics-pragma tracing via internal/plog",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = clientIdentifier
	app.Usage = "compile and execute Perl source against the register-bytecode execution core"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{configFlag, verboseFlag}
	app.Commands = []cli.Command{
		runCommand,
		dumpConfigCommand,
		tokensCommand,
		astCommand,
		bytecodeCommand,
	}
	app.Before = func(ctx *cli.Context) error {
		if ctx.GlobalBool(verboseFlag.Name) {
			plog.SetHandler(plog.NewTerminalHandler(os.Stderr))
		}
		return nil
	}
	app.Action = runAction

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
