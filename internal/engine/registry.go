// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gitpan/conjury/internal/logging"
)

// Registry is the process-wide, single-run state of spec.md §4.5 and §9
// ("Model as an explicit Engine value threaded through operations... Avoid
// hidden mutable state; make lifetime visible"). A Registry is created
// once per Driver.Execute run and holds the three indexes (directory→
// Context, directory→Stage, product-path→Spell) plus the current-context/
// working-directory stack used by the Push/Pop discipline of spec.md §4.3.
type Registry struct {
	mu sync.RWMutex

	contexts map[string]*Context
	stages   map[string]*Stage
	products map[string]*Spell

	stack []frame // push/pop stack; stack[len-1] is current

	Options  *Options
	Log      *logging.Logger
	Executor Executor

	engineID   string
	pid        int
	startTime  time.Time
}

type frame struct {
	ctx *Context
	cwd string
}

// NewRegistry constructs an empty Registry for one run. exec is the action
// executor collaborator of spec.md §6; it may be nil for runs that never
// invoke a shell/argv action (e.g. pure analysis over computed profiles).
func NewRegistry(opts *Options, log *logging.Logger, exec Executor) *Registry {
	if opts == nil {
		opts = &Options{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		contexts:  make(map[string]*Context),
		stages:    make(map[string]*Stage),
		products:  make(map[string]*Spell),
		Options:   opts,
		Log:       log,
		Executor:  exec,
		engineID:  uuid.NewString(),
		pid:       os.Getpid(),
		startTime: time.Now(),
	}
}

// defaultSpellProfile returns the process-wide, intentionally unstable
// default profile for action-less spells (spec.md §4.4: "<engine-id> <pid>
// <start-time> — unique per process but intentionally unstable across
// runs"). It is fixed once per Registry so every action-less spell in a
// run shares the same value, rather than varying per spell.
func (r *Registry) defaultSpellProfile() string {
	return fmt.Sprintf("%s %d %s", r.engineID, r.pid, r.startTime.Format(time.RFC3339Nano))
}

// CurrentContext returns the currently-pushed Context, or nil if none.
func (r *Registry) CurrentContext() *Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[len(r.stack)-1].ctx
}

// currentDir returns the directory of the current context, or "" if none
// — used to prefix diagnostics per spec.md §7.
func (r *Registry) currentDir() string {
	if c := r.CurrentContext(); c != nil {
		return c.Dir
	}
	return ""
}

// lookupContext returns the Context registered for an already-canonical
// absolute directory, if any.
func (r *Registry) lookupContext(dir string) *Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contexts[dir]
}

// registerContext inserts ctx under dir; re-registration is a
// ConsistencyError (spec.md §4.3).
func (r *Registry) registerContext(dir string, ctx *Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.contexts[dir]; exists {
		return &ConsistencyError{Kind: "context", Key: dir}
	}
	r.contexts[dir] = ctx
	return nil
}

// registerStage inserts st under dir; re-registration is a
// ConsistencyError (spec.md §4.2).
func (r *Registry) registerStage(dir string, st *Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stages[dir]; exists {
		return &ConsistencyError{Kind: "stage", Key: dir}
	}
	r.stages[dir] = st
	return nil
}

// lookupStage returns the Stage registered for dir, if any.
func (r *Registry) lookupStage(dir string) *Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stages[dir]
}

// registerProduct inserts spell under absPath; re-registration is a
// ConsistencyError (spec.md §4.4 invariant: "every absolute product path
// maps to exactly one spell in the global index").
func (r *Registry) registerProduct(absPath string, sp *Spell) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.products[absPath]; exists {
		return &ConsistencyError{Kind: "product", Key: absPath}
	}
	r.products[absPath] = sp
	return nil
}

// SpellForProduct returns the Spell that claims absPath as a product, if
// any.
func (r *Registry) SpellForProduct(absPath string) *Spell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.products[absPath]
}

// Push saves the current context and process working directory, makes ctx
// current, and chdir's into ctx.Dir. Every Push grows the stack by
// exactly one frame and must be matched by exactly one Pop, even when ctx
// is already current (spec.md §4.3 "push-into-self is a no-op" — the
// chdir and the saved cwd both collapse to identities in that case, but
// the stack discipline itself stays symmetric). Callers must call Pop on
// every exit path, including errors.
func (r *Registry) Push(ctx *Context) error {
	cwd, err := os.Getwd()
	if err != nil {
		return Fatal(ctx.Dir, &FilesystemError{Op: "getwd before push", Err: err})
	}
	if err := os.Chdir(ctx.Dir); err != nil {
		return Fatal(ctx.Dir, &FilesystemError{Op: "chdir", Err: err})
	}

	r.mu.Lock()
	r.stack = append(r.stack, frame{ctx: ctx, cwd: cwd})
	r.mu.Unlock()
	return nil
}

// Pop restores the context and working directory saved by the matching
// Push.
func (r *Registry) Pop(ctx *Context) error {
	r.mu.Lock()
	if len(r.stack) == 0 || r.stack[len(r.stack)-1].ctx != ctx {
		r.mu.Unlock()
		return nil
	}
	top := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	r.mu.Unlock()

	if err := os.Chdir(top.cwd); err != nil {
		return Fatal(ctx.Dir, &FilesystemError{Op: "chdir restoring " + top.cwd, Err: err})
	}
	return nil
}

// canonicalize resolves path to an absolute, cleaned form.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
