// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Factor is a dependency of a Spell: either a reference to another Spell,
// or a name resolved at invoke time (spec.md §4.4, §9 "Factor-as-variant").
// Exactly one field is set.
type Factor struct {
	Spell *Spell
	Name  string
}

// SpellRef builds a Factor that refers directly to another Spell.
func SpellRef(s *Spell) Factor { return Factor{Spell: s} }

// NameFactor builds a Factor resolved by name at invoke time: first
// against the owning context's name table, falling back to a source-file
// stat (spec.md §4.4 step 4).
func NameFactor(name string) Factor { return Factor{Name: name} }

func (f Factor) isSpellRef() bool { return f.Spell != nil }

// ProfileSpec is the profile of spec.md §3: either a static string or a
// thunk evaluated at invoke time (spec.md §9 "Profile-as-closure").
// Exactly one of Static/Computed should be set; a nil *ProfileSpec means
// "no profile supplied" (the construction-time default applies).
type ProfileSpec struct {
	Static   string
	Computed func() (string, error)
	isSet    bool
}

// StaticProfile builds a ProfileSpec from a fixed string.
func StaticProfile(s string) *ProfileSpec { return &ProfileSpec{Static: s, isSet: true} }

// ComputedProfile builds a ProfileSpec from a thunk evaluated once per
// Invoke, before the factor loop runs (spec.md §4.4 step 2).
func ComputedProfile(fn func() (string, error)) *ProfileSpec {
	return &ProfileSpec{Computed: fn, isSet: true}
}

func (p *ProfileSpec) eval() (string, error) {
	if p == nil {
		return "", nil
	}
	if p.Computed != nil {
		return p.Computed()
	}
	return p.Static, nil
}

// SpellOptions are the construction-time arguments for NewSpell.
type SpellOptions struct {
	// Name registers the spell under this name in the owning context; when
	// empty, it is appended to the context's default-spells list instead
	// (spec.md §4.3 "Name table").
	Name string

	Factors  []Factor
	Products []string // relative or absolute; canonicalized during construction
	Profile  *ProfileSpec
	Action   ActionSpec
}

// Spell is a node in the dependency graph (spec.md §4.4).
type Spell struct {
	Context *Context
	Journal *Journal // resolved in NewSpell for spells with products; nil otherwise

	Name     string
	Factors  []Factor
	Products []string // canonical absolute paths, insertion order

	profile     *ProfileSpec
	description string // printed before the action runs, if non-empty
	action      func() (int, error)
	hadAction   bool // set at construction, never cleared; used for "force"

	mu        sync.Mutex
	cachedSig *Signature
}

// NewSpell constructs a Spell in the context currently pushed on reg.
// Construction requires a non-empty current context (spec.md §4.4).
func NewSpell(reg *Registry, opts SpellOptions) (*Spell, error) {
	ctx := reg.CurrentContext()
	if ctx == nil {
		return nil, &UsageError{Field: "context", Msg: "no current context; spells must be constructed while a context is pushed"}
	}
	if len(opts.Products) > 0 && opts.Action.isZero() && !reg.Options.Undo {
		return nil, &UsageError{Field: "action", Msg: "a spell with declared products requires an action"}
	}

	canonProducts := make([]string, 0, len(opts.Products))
	for _, p := range opts.Products {
		abs, err := canonicalize(p)
		if err != nil {
			return nil, Fatal(ctx.Dir, &FilesystemError{Op: "resolving product path " + p, Err: err})
		}
		canonProducts = append(canonProducts, abs)
	}

	sp := &Spell{
		Context:  ctx,
		Name:     opts.Name,
		Factors:  append([]Factor(nil), opts.Factors...),
		Products: canonProducts,
	}

	for _, abs := range canonProducts {
		if err := reg.registerProduct(abs, sp); err != nil {
			return nil, err
		}
	}

	if err := sp.configureAction(reg, opts); err != nil {
		return nil, err
	}

	if len(canonProducts) > 0 {
		j, err := resolveJournal(reg, ctx)
		if err != nil {
			return nil, err
		}
		sp.Journal = j
	}

	ctx.AddSpell(opts.Name, sp)
	return sp, nil
}

// configureAction applies the undo-mode action rewrite (spec.md §4.4) and
// otherwise wraps the supplied ActionSpec into a runnable thunk, deriving
// a default profile when the caller did not supply one.
func (sp *Spell) configureAction(reg *Registry, opts SpellOptions) error {
	undoRewrite := reg.Options.Undo && len(sp.Products) > 0

	switch {
	case undoRewrite:
		sp.action = unlinkAction(sp.Products)
		sp.hadAction = true
		sp.description = "undo " + joinSorted(sp.Products)
		sp.profile = StaticProfile(sp.description)

	case !opts.Action.isZero():
		sp.hadAction = true
		sp.description = opts.Action.describe()
		sp.action = opts.Action.toThunk(reg.Executor)
		if opts.Action.Closure != nil && (opts.Profile == nil || !opts.Profile.isSet) {
			return &UsageError{Field: "profile", Msg: "a closure action requires a caller-supplied profile"}
		}
		if opts.Profile != nil && opts.Profile.isSet {
			sp.profile = opts.Profile
		} else {
			sp.profile = StaticProfile(sp.description)
		}

	default:
		sp.hadAction = false
		sp.action = nil
		if opts.Profile != nil && opts.Profile.isSet {
			sp.profile = opts.Profile
		} else {
			sp.profile = StaticProfile(reg.defaultSpellProfile())
		}
	}
	return nil
}

func joinSorted(paths []string) string {
	out := ""
	for i, p := range paths {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

// resolveJournal finds the Journal of the nearest registered Stage on dir's
// path, walking up through parent directories. If none is registered, a
// Stage is auto-created at dir (spec.md §4.4 scenario 4: "Y's journal
// lives in the nearest stage on /a/sub's path").
func resolveJournal(reg *Registry, ctx *Context) (*Journal, error) {
	dir := ctx.Dir
	for {
		if st := reg.lookupStage(dir); st != nil {
			return st.Journal, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	st, err := NewStage(reg, ctx.Dir, nil, reg.Log)
	if err != nil {
		return nil, err
	}
	return st.Journal, nil
}

// Invoke computes (memoized) or returns the spell's signature, running its
// action if the journal or filesystem say it is out of date (spec.md
// §4.4 "Invoke"). Invoke is idempotent: the first successful call caches
// the signature and clears the action; later calls return the cached
// value without re-running anything.
func (sp *Spell) Invoke(reg *Registry) (Signature, error) {
	sp.mu.Lock()
	if sp.cachedSig != nil {
		sig := *sp.cachedSig
		sp.mu.Unlock()
		return sig, nil
	}
	sp.mu.Unlock()

	// Step 2: evaluate the profile thunk before pushing the owning
	// context (spec.md §4.4 step order).
	base, err := sp.profile.eval()
	if err != nil {
		return "", Fatal(sp.Context.Dir, err)
	}

	if err := reg.Push(sp.Context); err != nil {
		return "", err
	}
	sig, runErr := sp.runLocked(reg, base)
	if popErr := reg.Pop(sp.Context); popErr != nil {
		if runErr == nil {
			runErr = popErr
		}
	}
	if runErr != nil {
		return "", runErr
	}

	sp.mu.Lock()
	cached := sig
	sp.cachedSig = &cached
	sp.action = nil
	sp.mu.Unlock()
	return sig, nil
}

// runLocked implements steps 4-7 of spec.md §4.4's Invoke algorithm. The
// owning context must already be pushed.
func (sp *Spell) runLocked(reg *Registry, base string) (Signature, error) {
	pb := newProfileBuilder(base)
	force := reg.Options.Force

	for _, f := range sp.Factors {
		if f.isSpellRef() {
			if f.Spell == sp {
				continue // self-factor references are silently skipped
			}
			sig, err := f.Spell.Invoke(reg)
			if err != nil {
				return "", err
			}
			pb.addSignature(sig)
			if !f.Spell.hadAction {
				force = true
			}
			continue
		}

		resolved := sp.Context.FetchSpells(f.Name)
		if len(resolved) > 0 {
			for _, rs := range resolved {
				if rs == sp {
					continue
				}
				sig, err := rs.Invoke(reg)
				if err != nil {
					return "", err
				}
				pb.addSignature(sig)
				if !rs.hadAction {
					force = true
				}
			}
			continue
		}

		info, err := os.Stat(f.Name)
		if err != nil {
			return "", Fatal(sp.Context.Dir, &ResolutionError{Name: f.Name, Dir: sp.Context.Dir})
		}
		pb.addSourceFile(f.Name, info.ModTime().Unix())
	}

	sig := computeSignature(pb.String())
	shouldRun := sp.decideShouldRun(reg, sig, force)

	if shouldRun {
		if reg.Options.Undo && !reg.Options.Preview {
			for _, p := range sp.Products {
				if sp.Journal != nil {
					if _, err := sp.Journal.Delete(p); err != nil {
						return "", err
					}
				}
			}
		}

		if sp.description != "" {
			reg.Log.Infof("%s", sp.description)
		}

		if !reg.Options.Preview && sp.action != nil {
			code, err := sp.action()
			if err != nil {
				return "", Fatal(sp.Context.Dir, fmt.Errorf("running action: %w", err))
			}
			if code != 0 {
				return "", Fatal(sp.Context.Dir, &ActionError{Code: code})
			}
		}

		if !reg.Options.Preview && !reg.Options.Undo {
			for _, p := range sp.Products {
				// An empty signature is never journaled (Journal.Put
				// rejects it).
				if sp.Journal == nil || sig == "" {
					continue
				}
				if err := sp.Journal.Put(p, sig); err != nil {
					return "", err
				}
			}
		}
	}

	return sig, nil
}

// decideShouldRun implements spec.md §4.4 step 6: force (either from the
// global --force flag, folded into force by the caller, or from an
// action-less factor) always wins over the journal/filesystem check.
func (sp *Spell) decideShouldRun(reg *Registry, sig Signature, force bool) bool {
	if force {
		return true
	}
	if reg.Options.Undo {
		for _, p := range sp.Products {
			if fileExists(p) {
				return true
			}
		}
		return false
	}
	for _, p := range sp.Products {
		if !fileExists(p) {
			return true
		}
		if sig == "" {
			// An empty signature is never journaled, so only a missing
			// product makes such a spell run.
			continue
		}
		recorded, has := (Signature)(""), false
		if sp.Journal != nil {
			recorded, has = sp.Journal.Get(p)
		}
		if !has || recorded != sig {
			return true
		}
	}
	return false
}
