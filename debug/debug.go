// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package debug provides a gated, structured tracer used by the
// transport/channel/session layers. Unlike the teacher's package-global
// log.Printf gate, the level and sink are carried on a *Logger value so a
// Server or Client can run with independent, isolated log streams; no
// package-level state is load-bearing.
package debug

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Logger gates trace-level output behind an Enabled flag and writes
// through a *slog.Logger. The zero value is usable and discards everything.
type Logger struct {
	enabled atomic.Bool
	sl      *slog.Logger
}

// New returns a Logger writing to sl. If sl is nil, slog.Default() is used.
func New(sl *slog.Logger) *Logger {
	if sl == nil {
		sl = slog.Default()
	}
	return &Logger{sl: sl}
}

// Enable turns trace-level output on or off.
func (l *Logger) Enable(v bool) {
	if l == nil {
		return
	}
	l.enabled.Store(v)
}

// Printf logs a trace message with printf-style formatting when enabled.
func (l *Logger) Printf(format string, args ...interface{}) {
	if l == nil || !l.enabled.Load() {
		return
	}
	l.sl.Debug(fmt.Sprintf(format, args...))
}

// Trace logs a structured trace message with key/value pairs when enabled.
func (l *Logger) Trace(msg string, kv ...interface{}) {
	if l == nil || !l.enabled.Load() {
		return
	}
	l.sl.Debug(msg, kv...)
}
