// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import "github.com/gitpan/conjury/internal/logging"

// fakeExecutor records every shell/argv invocation instead of spawning a
// real process, and lets tests force a particular exit code.
type fakeExecutor struct {
	shellCalls [][2]string // [command, cwd] pairs are not tracked; just command
	argvCalls  [][]string
	code       int
	err        error
}

func (f *fakeExecutor) SpawnShell(command string) (int, error) {
	f.shellCalls = append(f.shellCalls, [2]string{command, ""})
	return f.code, f.err
}

func (f *fakeExecutor) SpawnArgv(argv []string) (int, error) {
	cp := append([]string(nil), argv...)
	f.argvCalls = append(f.argvCalls, cp)
	return f.code, f.err
}

func newTestRegistry(opts *Options) *Registry {
	return NewRegistry(opts, logging.Nop(), &fakeExecutor{})
}
