// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"
)

// DeferOptions configures Defer (spec.md §4.6 "Deferral").
type DeferOptions struct {
	// Name, if non-empty, registers the deferral spell under this name in
	// the current context; otherwise it becomes a default spell.
	Name string

	// Dirs lists sibling directories to defer to.
	Dirs []string

	// Targets, if non-empty, names the spells fetched from each deferred
	// context; when empty, each context's default spells are used
	// instead.
	Targets []string

	// IfPresent downgrades a missing directory from fatal to a
	// warning-and-skip (spec.md §4.6).
	IfPresent bool

	// Load is the loader invoked for any directory that does not already
	// have a registered Context.
	Load Loader
}

// Defer builds a spell whose factors are the spells fetched (by name, or
// the default spells when Targets is empty) from each of Dirs' contexts,
// constructing those contexts (and so triggering their description-file
// loads) if they are not already registered (spec.md §4.6 "Deferral").
func Defer(reg *Registry, opts DeferOptions) (*Spell, error) {
	var factors []Factor

	for _, dir := range opts.Dirs {
		abs, err := canonicalize(dir)
		if err != nil {
			return nil, Fatal(dir, &FilesystemError{Op: "resolving deferral dir " + dir, Err: err})
		}
		if _, statErr := os.Stat(abs); statErr != nil {
			if opts.IfPresent {
				reg.Log.Warn(reg.currentDir(), "deferral target %s missing, skipping", abs)
				continue
			}
			return nil, Fatal(abs, &FilesystemError{Op: "deferral target missing", Err: statErr})
		}

		depCtx, err := ContextFor(reg, abs, opts.Load)
		if err != nil {
			return nil, err
		}

		if len(opts.Targets) == 0 {
			for _, s := range depCtx.DefaultSpells() {
				factors = append(factors, SpellRef(s))
			}
			continue
		}
		for _, name := range opts.Targets {
			matches := depCtx.FetchSpells(name)
			if len(matches) == 0 {
				return nil, Fatal(abs, &ResolutionError{Name: name, Dir: abs})
			}
			for _, s := range matches {
				factors = append(factors, SpellRef(s))
			}
		}
	}

	return NewSpell(reg, SpellOptions{
		Name:    opts.Name,
		Factors: factors,
	})
}

// FileCopyOptions configures FileCopy (spec.md §4.6 "File copy").
type FileCopyOptions struct {
	Name      string
	Directory string
	Files     []string
	// Permission, when non-zero, is applied via chmod after copying.
	Permission os.FileMode
	// Owner/Group, when non-empty, are resolved to numeric ids and
	// applied via chown after copying (and after chmod).
	Owner string
	Group string
}

// FileCopy builds a spell that copies each of Files into Directory,
// producing destdir/basename(src) for each source, with the sources
// themselves as factors so their mtimes enter the profile (spec.md §4.6
// "File copy").
func FileCopy(reg *Registry, opts FileCopyOptions) (*Spell, error) {
	if opts.Directory == "" {
		return nil, &UsageError{Field: "Directory", Msg: "must be non-empty"}
	}
	if len(opts.Files) == 0 {
		return nil, &UsageError{Field: "Files", Msg: "must be non-empty"}
	}

	destDir, err := canonicalize(opts.Directory)
	if err != nil {
		return nil, Fatal(opts.Directory, &FilesystemError{Op: "resolving destination " + opts.Directory, Err: err})
	}

	products := make([]string, 0, len(opts.Files))
	factors := make([]Factor, 0, len(opts.Files))
	for _, src := range opts.Files {
		products = append(products, filepath.Join(destDir, filepath.Base(src)))
		factors = append(factors, NameFactor(src))
	}

	sortedFiles := append([]string(nil), opts.Files...)
	sort.Strings(sortedFiles)
	profile := fmt.Sprintf("filecopy dest=%s perm=%s owner=%s:%s files=%v",
		destDir, opts.Permission, opts.Owner, opts.Group, sortedFiles)

	action := func() (int, error) {
		if err := doFileCopy(opts.Files, destDir, opts.Permission, opts.Owner, opts.Group); err != nil {
			for _, p := range products {
				_ = removeIfExists(p)
			}
			return 1, err
		}
		return 0, nil
	}

	return NewSpell(reg, SpellOptions{
		Name:     opts.Name,
		Factors:  factors,
		Products: products,
		Profile:  StaticProfile(profile),
		Action:   ActionSpec{Closure: action},
	})
}

// doFileCopy performs the copy / chmod / chown sequence of spec.md §4.6,
// stopping at the first failure. Any produced files are unlinked by the
// caller on error.
func doFileCopy(files []string, destDir string, perm os.FileMode, owner, group string) error {
	if err := os.MkdirAll(destDir, 0o777); err != nil {
		return fmt.Errorf("creating destination %s: %w", destDir, err)
	}

	uid, gid, resolved := -1, -1, false
	for _, src := range files {
		dst := filepath.Join(destDir, filepath.Base(src))
		if err := copyFileContents(src, dst); err != nil {
			return fmt.Errorf("copying %s to %s: %w", src, dst, err)
		}
		if perm != 0 {
			if err := os.Chmod(dst, perm); err != nil {
				return fmt.Errorf("chmod %s: %w", dst, err)
			}
		}
		if owner != "" || group != "" {
			if !resolved {
				var err error
				uid, gid, err = resolveOwnerGroup(owner, group)
				if err != nil {
					return err
				}
				resolved = true
			}
			if err := os.Chown(dst, uid, gid); err != nil {
				return fmt.Errorf("chown %s: %w", dst, err)
			}
		}
	}
	return nil
}

// copyFileContents copies src to dst, creating parent directories as
// needed, following the teacher's copyFile helper (scaffold.go).
func copyFileContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o777); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// resolveOwnerGroup resolves textual user/group names to numeric ids.
// Either may be empty, in which case -1 (leave unchanged) is returned for
// that half.
func resolveOwnerGroup(owner, group string) (int, int, error) {
	resolvedUID, resolvedGID := -1, -1
	if owner != "" {
		u, err := user.Lookup(owner)
		if err != nil {
			return -1, -1, fmt.Errorf("looking up user %s: %w", owner, err)
		}
		n, err := strconv.Atoi(u.Uid)
		if err != nil {
			return -1, -1, fmt.Errorf("parsing uid for %s: %w", owner, err)
		}
		resolvedUID = n
	}
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return -1, -1, fmt.Errorf("looking up group %s: %w", group, err)
		}
		n, err := strconv.Atoi(g.Gid)
		if err != nil {
			return -1, -1, fmt.Errorf("parsing gid for %s: %w", group, err)
		}
		resolvedGID = n
	}
	return resolvedUID, resolvedGID, nil
}
