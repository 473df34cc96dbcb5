// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"os"
	"path/filepath"

	"github.com/gitpan/conjury/internal/logging"
)

// Stage is a directory that owns a Journal (spec.md §4.2).
type Stage struct {
	Dir     string
	Journal *Journal
}

// NewStage constructs a Stage rooted at dir (defaulting to the current
// Context's directory when dir is ""). If journal is nil, a journal file is
// opened under the stage directory, named by reg.Options.JournalBasename
// when set, otherwise by the platform default. The stage directory is
// created with mkdir -p semantics, and the stage is registered in reg's
// directory→Stage index; re-registering an already-known directory is a
// construction error.
func NewStage(reg *Registry, dir string, journal *Journal, log *logging.Logger) (*Stage, error) {
	if log == nil {
		log = logging.Nop()
	}
	if dir == "" {
		cur := reg.CurrentContext()
		if cur == nil {
			return nil, &UsageError{Field: "dir", Msg: "no directory given and no current context"}
		}
		dir = cur.Dir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, Fatal("", &FilesystemError{Op: "resolving stage dir " + dir, Err: err})
	}
	abs = filepath.Clean(abs)

	if err := os.MkdirAll(abs, 0o777); err != nil {
		return nil, Fatal(abs, &FilesystemError{Op: "creating stage directory", Err: err})
	}

	if journal == nil {
		basename := reg.Options.JournalBasename
		if basename == "" {
			basename = defaultJournalBasename()
		}
		jpath := filepath.Join(abs, basename)
		journal, err = OpenJournal(jpath, log)
		if err != nil {
			return nil, err
		}
	}

	st := &Stage{Dir: abs, Journal: journal}
	if err := reg.registerStage(abs, st); err != nil {
		return nil, err
	}
	return st, nil
}

// MakeSubdir creates a subdirectory under the stage directory with
// mkdir -p semantics. Absolute paths are rejected (spec.md §4.2).
func (s *Stage) MakeSubdir(relativePath string) error {
	if filepath.IsAbs(relativePath) {
		return &UsageError{Field: "relativePath", Msg: "must be relative, got " + relativePath}
	}
	target := filepath.Join(s.Dir, relativePath)
	if err := os.MkdirAll(target, 0o777); err != nil {
		return Fatal(s.Dir, &FilesystemError{Op: "creating subdirectory " + target, Err: err})
	}
	return nil
}
