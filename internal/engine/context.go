// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"errors"
	"os"
	"sync"
)

// Loader is the external collaborator of spec.md §6: given a directory, it
// runs synchronously and registers spells/stages into whichever Context is
// currently pushed. The core never loads description files itself.
type Loader func(reg *Registry, dir string) error

// Context is a directory and its local spell namespace (spec.md §4.3).
// Contexts are never destroyed during a run; the first one constructed is
// the root.
type Context struct {
	Dir string

	mu            sync.RWMutex
	spellsByName  map[string][]*Spell
	defaultSpells []*Spell
}

// NewContext constructs a Context for dir (defaulting to the process's
// current working directory when dir is ""), canonicalizes it, registers
// it in reg's directory→Context index (re-registration is a
// ConsistencyError), pushes it, runs load against it, and pops. Pop
// happens on every exit path, including when load returns an error.
func NewContext(reg *Registry, dir string, load Loader) (*Context, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, Fatal("", &FilesystemError{Op: "getwd for new context", Err: err})
		}
		dir = cwd
	}
	abs, err := canonicalize(dir)
	if err != nil {
		return nil, Fatal(dir, &FilesystemError{Op: "resolving context dir " + dir, Err: err})
	}

	ctx := &Context{Dir: abs, spellsByName: make(map[string][]*Spell)}
	if err := reg.registerContext(abs, ctx); err != nil {
		return nil, err
	}

	if err := reg.Push(ctx); err != nil {
		return nil, err
	}
	var loadErr error
	if load != nil {
		if err := load(reg, abs); err != nil {
			loadErr = &LoadError{Dir: abs, Err: err}
		}
	}
	if err := reg.Pop(ctx); err != nil {
		// A chdir failure while restoring is itself fatal and takes
		// precedence for the caller's attention, but loadErr (if any) must
		// not be silently dropped — report the pop failure together with
		// it.
		if loadErr != nil {
			return nil, errors.Join(err, Fatal(abs, loadErr))
		}
		return nil, err
	}
	if loadErr != nil {
		return nil, Fatal(abs, loadErr)
	}
	return ctx, nil
}

// ContextFor returns the already-registered Context for dir (canonicalized),
// constructing one via NewContext if none exists yet (spec.md §4.6
// "Deferral": "if a context is not yet registered for it, one is
// constructed").
func ContextFor(reg *Registry, dir string, load Loader) (*Context, error) {
	abs, err := canonicalize(dir)
	if err != nil {
		return nil, Fatal(dir, &FilesystemError{Op: "resolving dir " + dir, Err: err})
	}
	if ctx := reg.lookupContext(abs); ctx != nil {
		return ctx, nil
	}
	return NewContext(reg, abs, load)
}

// AddSpell inserts sp into the name table: under name if non-empty
// (insertion order preserved, duplicates allowed), otherwise into the
// default-spells list (spec.md §4.3 "Name table").
func (c *Context) AddSpell(name string, sp *Spell) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" {
		c.defaultSpells = append(c.defaultSpells, sp)
		return
	}
	c.spellsByName[name] = append(c.spellsByName[name], sp)
}

// FetchSpells returns the spells registered under name in this context, in
// insertion order. A copy is returned so callers cannot mutate internal
// state.
func (c *Context) FetchSpells(name string) []*Spell {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.spellsByName[name]
	if len(src) == 0 {
		return nil
	}
	out := make([]*Spell, len(src))
	copy(out, src)
	return out
}

// DefaultSpells returns the context's unnamed spells, in insertion order.
func (c *Context) DefaultSpells() []*Spell {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Spell, len(c.defaultSpells))
	copy(out, c.defaultSpells)
	return out
}
