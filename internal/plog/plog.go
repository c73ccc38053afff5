// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package plog is a leveled, structured logger used for the execution
// core's own diagnostics (bytecode dispatch tracing, MRO cache
// invalidation, eval-cache hits) — never for `$@`/STDOUT user-visible
// interpreter output, which goes through lang/perlerr and the
// lang/ioruntime surface directly (SPEC_FULL.md §A.1).
//
// The calling convention (`Warn("message", "key", value, ...)`) is
// grounded on the call sites observed in the teacher's
// cmd/gprobe/config.go (`log.Warn("Config field is deprecated...", "name",
// id)`); go-ethereum's own `log` package is not present in the retrieval
// pack, so the package itself is net-new, built to match that convention.
package plog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is the severity of a log record, ordered most severe (LvlCrit = 0)
// to least severe (LvlTrace).
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

var lvlNames = [...]string{
	LvlCrit: "CRIT", LvlError: "ERROR", LvlWarn: "WARN",
	LvlInfo: "INFO", LvlDebug: "DEBUG", LvlTrace: "TRACE",
}

func (l Lvl) String() string {
	if int(l) < len(lvlNames) {
		return lvlNames[l]
	}
	return "UNKNOWN"
}

var lvlColor = [...]*color.Color{
	LvlCrit:  color.New(color.FgRed, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgMagenta),
}

// Logger is the interface satisfied by the package-level root logger and
// any child built with New(ctx...).
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	New(ctx ...interface{}) Logger
}

// Handler processes one formatted record; Root's default is a terminal
// handler, swappable via SetHandler for test capture or file output.
type Handler interface {
	Log(lvl Lvl, msg string, callSite string, ctx []interface{}) error
}

type logger struct {
	ctx     []interface{}
	handler *swappableHandler
}

type swappableHandler struct {
	mu sync.Mutex
	h  Handler
}

func (s *swappableHandler) Log(lvl Lvl, msg, site string, ctx []interface{}) error {
	s.mu.Lock()
	h := s.h
	s.mu.Unlock()
	return h.Log(lvl, msg, site, ctx)
}

func (s *swappableHandler) swap(h Handler) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

var root = &logger{handler: &swappableHandler{h: NewTerminalHandler(os.Stderr)}}

// Root returns the package-level root logger.
func Root() Logger { return root }

// SetHandler replaces the root logger's handler (and, transitively, every
// child logger's, since children share the root's swappableHandler).
func SetHandler(h Handler) { root.handler.swap(h) }

func (l *logger) New(ctx ...interface{}) Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &logger{ctx: merged, handler: l.handler}
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	site := ""
	if lvl == LvlCrit || lvl == LvlError {
		site = callSite()
	}
	l.handler.Log(lvl, msg, site, merged)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

// Package-level convenience wrappers delegating to Root(), matching the
// teacher's flat `log.Warn(...)` call style.
func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }

// callSite captures the immediate caller's Go source location via
// go-stack/stack, distinct from the interpreted Perl "at FILE line N"
// which lang/perlerr tracks separately.
func callSite() string {
	cs := stack.Caller(3)
	return fmt.Sprintf("%+v", cs)
}

// terminalHandler renders records as "LVL[timestamp] msg key=value ...",
// colorizing the level prefix when writing to a TTY and stripping codes
// automatically (via go-colorable) when the stream is redirected.
type terminalHandler struct {
	mu     sync.Mutex
	out    io.Writer
	isatty bool
}

// NewTerminalHandler wraps w (typically os.Stdout/os.Stderr) with
// colorable so ANSI codes degrade gracefully when w isn't a terminal.
func NewTerminalHandler(w io.Writer) Handler {
	isTTY := false
	if f, ok := w.(*os.File); ok {
		isTTY = isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return &terminalHandler{out: w, isatty: isTTY}
}

func (h *terminalHandler) Log(lvl Lvl, msg, site string, ctx []interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ts := time.Now().Format("15:04:05.000")
	prefix := fmt.Sprintf("%-5s", lvl.String())
	if h.isatty {
		prefix = lvlColor[lvl].Sprintf("%-5s", lvl.String())
	}
	line := fmt.Sprintf("%s[%s] %s", prefix, ts, msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		line += fmt.Sprintf(" %v=%v", ctx[i], ctx[i+1])
	}
	if site != "" {
		line += fmt.Sprintf(" site=%s", site)
	}
	_, err := fmt.Fprintln(h.out, line)
	return err
}
