// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package execaction implements the action executor collaborator of
// spec.md §6 (spawn_shell, spawn_argv) on top of os/exec, following the
// teacher's command-running idiom in pkg/orchestrator/build.go and
// pkg/orchestrator/commands.go.
package execaction

import (
	"os"
	"os/exec"
	"runtime"
)

// Executor runs shell strings and argv vectors as child processes with
// inherited stdio, returning the exit code (0 on success). It implements
// engine.Executor.
type Executor struct{}

// New returns an Executor.
func New() *Executor { return &Executor{} }

// SpawnShell runs command through the platform shell.
func (e *Executor) SpawnShell(command string) (int, error) {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/C", command)
	} else {
		cmd = exec.Command("/bin/sh", "-c", command)
	}
	return run(cmd)
}

// SpawnArgv runs argv[0] directly with the remaining elements as
// arguments, with no shell interpretation.
func (e *Executor) SpawnArgv(argv []string) (int, error) {
	if len(argv) == 0 {
		return 1, nil
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	return run(cmd)
}

func run(cmd *exec.Cmd) (int, error) {
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 1, err
}
