// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package progress reports long-running conversion progress. On a
// terminal it rewrites a single status line in place; otherwise it
// logs periodic milestones so batch logs stay readable.
package progress

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Reporter receives progress updates. Implementations must be safe
// for concurrent use: conversion workers advance the count from many
// goroutines.
type Reporter interface {
	// Start begins a new phase with the given unit count.
	Start(label string, total int64)

	// Advance adds n completed units to the current phase.
	Advance(n int64)

	// Finish completes the current phase.
	Finish()
}

// Nop is a Reporter that discards all updates.
type Nop struct{}

func (Nop) Start(string, int64) {}
func (Nop) Advance(int64)       {}
func (Nop) Finish()             {}

// New returns a terminal reporter when stderr is a TTY, and a logging
// reporter otherwise.
func New(logger *slog.Logger) Reporter {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return newTerminalReporter()
	}
	return &logReporter{logger: logger}
}

// minRedraw limits how often the terminal line is rewritten.
const minRedraw = 100 * time.Millisecond

// terminalReporter rewrites one status line in place on stderr.
type terminalReporter struct {
	output *termenv.Output

	mu       sync.Mutex
	label    string
	total    int64
	done     atomic.Int64
	lastDraw time.Time
	started  time.Time
}

func newTerminalReporter() *terminalReporter {
	return &terminalReporter{output: termenv.NewOutput(os.Stderr)}
}

func (r *terminalReporter) Start(label string, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.label = label
	r.total = total
	r.done.Store(0)
	r.started = time.Now()
	r.lastDraw = time.Time{}
	r.drawLocked()
}

func (r *terminalReporter) Advance(n int64) {
	r.done.Add(n)
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastDraw) < minRedraw {
		return
	}
	r.drawLocked()
}

func (r *terminalReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drawLocked()
	fmt.Fprintln(os.Stderr)
}

// drawLocked renders the status line. Callers hold r.mu.
func (r *terminalReporter) drawLocked() {
	done := r.done.Load()
	r.output.ClearLine()
	if r.total > 0 {
		percent := float64(done) / float64(r.total) * 100
		fmt.Fprintf(os.Stderr, "\r%s: %d/%d (%.1f%%), %s elapsed",
			r.label, done, r.total, percent, time.Since(r.started).Round(time.Second))
	} else {
		fmt.Fprintf(os.Stderr, "\r%s: %d, %s elapsed",
			r.label, done, time.Since(r.started).Round(time.Second))
	}
	r.lastDraw = time.Now()
}

// logInterval is how often the logging reporter emits a milestone.
const logInterval = 10 * time.Second

// logReporter emits periodic structured log lines for non-TTY runs.
type logReporter struct {
	logger *slog.Logger

	mu      sync.Mutex
	label   string
	total   int64
	done    atomic.Int64
	lastLog time.Time
	started time.Time
}

func (r *logReporter) Start(label string, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.label = label
	r.total = total
	r.done.Store(0)
	r.started = time.Now()
	r.lastLog = time.Now()
	r.logger.Info("phase started", "phase", label, "total", total)
}

func (r *logReporter) Advance(n int64) {
	r.done.Add(n)
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastLog) < logInterval {
		return
	}
	r.lastLog = time.Now()
	r.logger.Info("phase progress",
		"phase", r.label,
		"done", r.done.Load(),
		"total", r.total,
		"elapsed", time.Since(r.started).Round(time.Second))
}

func (r *logReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Info("phase finished",
		"phase", r.label,
		"done", r.done.Load(),
		"elapsed", time.Since(r.started).Round(time.Second))
}
