// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package logging wraps go.uber.org/zap behind the small surface the
// engine needs: leveled progress lines, and the two diagnostic verbs
// spec.md §7 calls cast_warning and cast_error.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// Logger prefixes diagnostics with the directory of whichever context is
// current when the message is cast, per spec.md §7 ("Both prefix the
// current context directory to the message when one exists").
type Logger struct {
	z *zap.Logger
}

// New builds a Logger. Verbose selects a development configuration
// (debug level, caller info); otherwise only info-and-above lines are
// emitted, matching --verbose in spec.md §6.
func New(verbose bool) *Logger {
	var z *zap.Logger
	var err error
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		z, err = cfg.Build()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.TimeKey = "t"
		z, err = cfg.Build()
	}
	if err != nil {
		// zap configuration failures are effectively unreachable (no file
		// sinks, no sampling misconfiguration); fall back to a no-op logger
		// rather than panic on a logging path.
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// Nop returns a Logger that discards everything, used as the default when
// a component is constructed without an explicit Logger.
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

// Infof emits a progress line at info level.
func (l *Logger) Infof(format string, args ...any) {
	if l == nil {
		return
	}
	l.z.Info(fmt.Sprintf(format, args...))
}

// Debugf emits a diagnostic line, visible only with --verbose.
func (l *Logger) Debugf(format string, args ...any) {
	if l == nil {
		return
	}
	l.z.Debug(fmt.Sprintf(format, args...))
}

// Warn prints a diagnostic and continues (spec.md §7 cast_warning). dir is
// the directory of the current context, or "" when none is current.
func (l *Logger) Warn(dir, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if dir != "" {
		msg = dir + ": " + msg
	}
	if l == nil {
		return
	}
	l.z.Warn(msg)
}

// Error prints a diagnostic for a fatal condition (spec.md §7
// cast_error). The caller is still responsible for terminating the run;
// Error only logs.
func (l *Logger) Error(dir, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if dir != "" {
		msg = dir + ": " + msg
	}
	if l == nil {
		return
	}
	l.z.Error(msg)
}

// Sync flushes any buffered log entries. Errors from Sync on stderr/stdout
// sinks are routinely ENOTTY on a pipe and are intentionally ignored.
func (l *Logger) Sync() {
	if l == nil {
		return
	}
	_ = l.z.Sync()
}
