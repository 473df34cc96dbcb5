// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewContext_RegistersAndLoads(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry(NewOptions())

	var loadedDir string
	load := func(r *Registry, d string) error {
		loadedDir = d
		if r.CurrentContext() == nil {
			t.Fatal("expected a current context while load runs")
		}
		return nil
	}

	ctx, err := NewContext(reg, dir, load)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(ctx.Dir)
	if got != want {
		t.Fatalf("ctx.Dir = %q, want %q", ctx.Dir, dir)
	}
	if loadedDir != ctx.Dir {
		t.Fatalf("load called with %q, want %q", loadedDir, ctx.Dir)
	}
	if reg.CurrentContext() != nil {
		t.Fatal("expected no current context after NewContext returns")
	}
}

func TestNewContext_DuplicateIsConsistencyError(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry(NewOptions())

	if _, err := NewContext(reg, dir, nil); err != nil {
		t.Fatalf("first NewContext: %v", err)
	}
	_, err := NewContext(reg, dir, nil)
	if err == nil {
		t.Fatal("expected an error constructing a second context for the same directory")
	}
	var ce *ConsistencyError
	if !asConsistencyError(err, &ce) {
		t.Fatalf("expected a ConsistencyError, got %v (%T)", err, err)
	}
}

// asConsistencyError unwraps a possibly-FatalError-wrapped error looking
// for a *ConsistencyError.
func asConsistencyError(err error, out **ConsistencyError) bool {
	for err != nil {
		if ce, ok := err.(*ConsistencyError); ok {
			*out = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func TestPushPop_RestoresWorkingDirectoryOnError(t *testing.T) {
	startDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	reg := newTestRegistry(NewOptions())

	loadErr := &LoadError{Dir: dir, Err: os.ErrInvalid}
	_, err = NewContext(reg, dir, func(r *Registry, d string) error {
		return loadErr
	})
	if err == nil {
		t.Fatal("expected load error to propagate")
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	wantCwd, _ := filepath.EvalSymlinks(startDir)
	gotCwd, _ := filepath.EvalSymlinks(cwd)
	if gotCwd != wantCwd {
		t.Fatalf("working directory not restored after load error: got %q, want %q", cwd, startDir)
	}
}

func TestContextFor_ReturnsExistingBeforeConstructing(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry(NewOptions())

	calls := 0
	load := func(r *Registry, d string) error { calls++; return nil }

	first, err := ContextFor(reg, dir, load)
	if err != nil {
		t.Fatalf("ContextFor (1st): %v", err)
	}
	second, err := ContextFor(reg, dir, load)
	if err != nil {
		t.Fatalf("ContextFor (2nd): %v", err)
	}
	if first != second {
		t.Fatal("expected the same *Context instance on repeated ContextFor calls")
	}
	if calls != 1 {
		t.Fatalf("load called %d times, want 1", calls)
	}
}

func TestNameTable_InsertionOrderAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	reg := newTestRegistry(NewOptions())
	ctx, err := NewContext(reg, dir, nil)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	if err := reg.Push(ctx); err != nil {
		t.Fatal(err)
	}
	defer reg.Pop(ctx)

	s1, err := NewSpell(reg, SpellOptions{Name: "build"})
	if err != nil {
		t.Fatalf("NewSpell s1: %v", err)
	}
	s2, err := NewSpell(reg, SpellOptions{Name: "build"})
	if err != nil {
		t.Fatalf("NewSpell s2: %v", err)
	}
	d1, err := NewSpell(reg, SpellOptions{})
	if err != nil {
		t.Fatalf("NewSpell default: %v", err)
	}

	got := ctx.FetchSpells("build")
	if len(got) != 2 || got[0] != s1 || got[1] != s2 {
		t.Fatalf("FetchSpells(build) = %v, want [s1 s2] in insertion order", got)
	}
	if defaults := ctx.DefaultSpells(); len(defaults) != 1 || defaults[0] != d1 {
		t.Fatalf("DefaultSpells = %v, want [d1]", defaults)
	}
}
