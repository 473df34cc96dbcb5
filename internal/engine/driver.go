// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"fmt"
	"path/filepath"
)

// Execute is the top-level entry point of spec.md §4.7: it bootstraps the
// root Context at topDir (triggering load for that directory), constructs
// a Context for every reg.Options.PreloadDirs entry (SPEC_FULL.md §A.3),
// resolves currentDir's Context, looks up targets in that context's name
// table, and invokes the resulting spells in order. It returns a non-nil
// error on any fatal condition; a nil error corresponds to exit code 0.
func Execute(reg *Registry, topDir, currentDir string, load Loader, targets []string) error {
	if reg.CurrentContext() != nil {
		return &UsageError{Field: "context", Msg: "Execute requires no current context"}
	}

	root, err := NewContext(reg, topDir, load)
	if err != nil {
		return err
	}

	for _, d := range reg.Options.PreloadDirs {
		abs := d
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(topDir, abs)
		}
		if _, err := ContextFor(reg, abs, load); err != nil {
			return err
		}
	}

	startDir, err := canonicalize(currentDir)
	if err != nil {
		return Fatal(currentDir, &FilesystemError{Op: "resolving current dir " + currentDir, Err: err})
	}
	cur := reg.lookupContext(startDir)
	if cur == nil {
		// currentDir may be a subdirectory the loader never visited
		// directly; construct (and load) its context on demand.
		cur, err = ContextFor(reg, startDir, load)
		if err != nil {
			return err
		}
	}
	_ = root // root is reachable via reg; kept for clarity of bootstrap order

	spells, err := resolveTargets(cur, targets)
	if err != nil {
		return err
	}

	for _, sp := range spells {
		if _, err := sp.Invoke(reg); err != nil {
			return err
		}
	}
	return nil
}

// resolveTargets maps target names to spells via cur's name table. An
// empty targets list resolves to cur's default spells. Unresolvable names
// are a ResolutionError.
func resolveTargets(cur *Context, targets []string) ([]*Spell, error) {
	if len(targets) == 0 {
		return cur.DefaultSpells(), nil
	}
	var out []*Spell
	for _, name := range targets {
		matches := cur.FetchSpells(name)
		if len(matches) == 0 {
			return nil, &ResolutionError{Name: name, Dir: cur.Dir}
		}
		out = append(out, matches...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no spells resolved for targets %v", targets)
	}
	return out, nil
}
