// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package rtconfig loads the execution core's interpreter tunables from a
// TOML document, following the teacher's tomlSettings/MissingField
// pattern in cmd/gprobe/config.go verbatim: field names match TOML keys
// exactly and unknown fields are rejected with a contextual error naming
// the struct and field (SPEC_FULL.md §A.2).
package rtconfig

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
)

// Config holds every interpreter tunable named in SPEC_FULL.md §A.2:
// register/eval-cache limits, diagnostics verbosity, and the warnings
// switch governing §7's "silently yield 0 plus a warning" coercion policy.
// The values are loaded and reported by `gperl dumpconfig` only; the
// compiler, register allocator, interpreter and frame stack do not read
// them and run with their own built-in settings.
type Config struct {
	// MaxRegisters is the configured register limit (§4.C4). The
	// allocator enforces its own fixed register.MaxRegisters (65535).
	MaxRegisters int
	// EvalCacheSize is the configured `eval STRING` cache size (§4.C5,
	// §6 "Persisted state"). The compiler's cache holds a fixed 128
	// entries.
	EvalCacheSize int
	// Warnings is the configured switch for "uninitialized
	// value"/numeric-coercion warnings (§4.C1, §7).
	Warnings bool
	// Diagnostics is the configured switch for plog-backed dispatch
	// tracing and MRO cache-invalidation logging (SPEC_FULL.md §A.1).
	Diagnostics bool
	// FrameRingSize is the configured initial call-frame capacity
	// (§4.C8). The frame stack is a slice that starts empty and grows.
	FrameRingSize int
}

// Defaults mirrors the teacher's DefaultConfig package-level value
// convention (node.DefaultConfig, probeconfig.Defaults).
var Defaults = Config{
	MaxRegisters:  65535,
	EvalCacheSize: 128,
	Warnings:      true,
	Diagnostics:   false,
	FrameRingSize: 256,
}

// tomlSettings enforces exact-field-name matching and rejects unknown
// fields, verbatim in spirit to cmd/gprobe/config.go's tomlSettings.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see the rtconfig.Config definition for available fields")
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// LoadFile reads and decodes a TOML document into a copy of Defaults,
// returning the effective configuration.
func LoadFile(path string) (Config, error) {
	cfg := Defaults
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	return cfg, err
}

// WriteTOML marshals cfg back to TOML text, round-tripping with LoadFile.
func WriteTOML(cfg Config) ([]byte, error) {
	return tomlSettings.Marshal(&cfg)
}
