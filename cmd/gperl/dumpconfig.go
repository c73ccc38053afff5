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

	"github.com/perlrt/gperl/internal/rtconfig"
)

var dumpConfigCommand = cli.Command{
	Action:    dumpConfigAction,
	Name:      "dumpconfig",
	Usage:     "show the effective interpreter configuration",
	ArgsUsage: "",
}

// dumpConfigAction mirrors the teacher's dumpConfig command, upgraded from
// a raw TOML Printf dump to an aligned tablewriter table per SPEC_FULL.md
// §B's role for this dependency.
func dumpConfigAction(ctx *cli.Context) error {
	cfg := rtconfig.Defaults
	if file := ctx.GlobalString(configFlag.Name); file != "" {
		loaded, err := rtconfig.LoadFile(file)
		if err != nil {
			return fmt.Errorf("gperl: %w", err)
		}
		cfg = loaded
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Setting", "Value"})
	table.Append([]string{"MaxRegisters", fmt.Sprint(cfg.MaxRegisters)})
	table.Append([]string{"EvalCacheSize", fmt.Sprint(cfg.EvalCacheSize)})
	table.Append([]string{"Warnings", fmt.Sprint(cfg.Warnings)})
	table.Append([]string{"Diagnostics", fmt.Sprint(cfg.Diagnostics)})
	table.Append([]string{"FrameRingSize", fmt.Sprint(cfg.FrameRingSize)})
	table.Render()
	return nil
}
