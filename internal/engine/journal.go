// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/gitpan/conjury/internal/logging"
)

// Journal is the append-only key→signature store of spec.md §4.1. Records
// are written one per call, with no buffering beyond the single write —
// after Put or Delete returns, either the in-memory state matches what a
// fresh Open would reconstruct, or a FatalError was raised.
type Journal struct {
	mu   sync.RWMutex
	path string
	live map[string]Signature
	log  *logging.Logger
}

// OpenJournal opens (or creates) the journal file at path. If the file
// exists its records are folded left-to-right into an in-memory map
// ('+' sets, '-' removes); the file is then unlinked and rewritten as a
// compacted log containing only '+' records for currently-live entries,
// per spec.md §4.1 ("Rewrite policy").
func OpenJournal(path string, log *logging.Logger) (*Journal, error) {
	if log == nil {
		log = logging.Nop()
	}
	j := &Journal{path: path, live: make(map[string]Signature), log: log}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		foldRecords(data, j.live)
	case os.IsNotExist(err):
		// Start empty; nothing to fold.
	default:
		// Journal-read failures degrade to a warning and an empty map
		// (spec.md §7 "Filesystem errors").
		log.Warn("", "reading journal %s: %v (starting empty)", path, err)
	}

	if err := j.rewriteCompacted(); err != nil {
		return nil, err
	}
	return j, nil
}

// foldRecords parses newline-delimited "<op> <sig> <name>" records and
// folds them into live: '+' sets an entry, '-' removes one. Unknown ops
// are ignored (spec.md §6).
func foldRecords(data []byte, live map[string]Signature) {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		op, sig, name, ok := parseRecord(line)
		if !ok {
			continue
		}
		switch op {
		case '+':
			live[name] = Signature(sig)
		case '-':
			delete(live, name)
		}
	}
}

// parseRecord splits a record line into its op, signature, and name
// fields. Fields are separated by runs of whitespace; name absorbs
// everything after the first two fields and so may itself contain spaces
// (spec.md §6).
func parseRecord(line string) (op byte, sig, name string, ok bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return 0, "", "", false
	}
	op = trimmed[0]
	if op != '+' && op != '-' {
		return 0, "", "", false
	}
	rest := strings.TrimLeft(trimmed[1:], " \t")
	i := strings.IndexAny(rest, " \t")
	if i < 0 {
		return 0, "", "", false
	}
	sig = rest[:i]
	name = strings.TrimLeft(rest[i+1:], " \t")
	if name == "" {
		return 0, "", "", false
	}
	return op, sig, name, true
}

// rewriteCompacted unlinks the journal file and rewrites it with exactly
// one '+' record per live entry (spec.md §4.1 "Rewrite policy"). Unlink
// failure degrades to a warning; open-for-write failure is fatal.
func (j *Journal) rewriteCompacted() error {
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		j.log.Warn("", "unlinking journal %s for compaction: %v", j.path, err)
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Fatal("", &FilesystemError{Op: "open journal " + j.path, Err: err})
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for name, sig := range j.live {
		if _, err := fmt.Fprintf(w, "+ %s %s\n", sig, name); err != nil {
			return Fatal("", &FilesystemError{Op: "compacting journal " + j.path, Err: err})
		}
	}
	if err := w.Flush(); err != nil {
		return Fatal("", &FilesystemError{Op: "compacting journal " + j.path, Err: err})
	}
	return nil
}

// Get returns the recorded signature for name, if any.
func (j *Journal) Get(name string) (Signature, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	sig, ok := j.live[name]
	return sig, ok
}

// Has reports whether name has a recorded signature.
func (j *Journal) Has(name string) bool {
	_, ok := j.Get(name)
	return ok
}

// Iterate calls fn for every (name, signature) pair currently live. The
// order is unspecified.
func (j *Journal) Iterate(fn func(name string, sig Signature)) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for name, sig := range j.live {
		fn(name, sig)
	}
}

// appendRecord appends a single line to the journal file. The file is
// opened, written, and closed within this call — no handle survives
// across suspendable work (spec.md §5 "Scoped resources").
func (j *Journal) appendRecord(line string) error {
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Fatal("", &FilesystemError{Op: "appending to journal " + j.path, Err: err})
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return Fatal("", &FilesystemError{Op: "appending to journal " + j.path, Err: err})
	}
	return nil
}

// Put records signature as the current value for name: name must be
// non-empty, signature non-empty and whitespace-free (spec.md §4.1).
func (j *Journal) Put(name string, sig Signature) error {
	if name == "" {
		return &UsageError{Field: "name", Msg: "must be non-empty"}
	}
	if sig == "" || strings.ContainsAny(string(sig), " \t\n") {
		return &UsageError{Field: "signature", Msg: "must be non-empty and whitespace-free"}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.appendRecord(fmt.Sprintf("+ %s %s\n", sig, name)); err != nil {
		return err
	}
	j.live[name] = sig
	return nil
}

// Delete removes name's entry, returning its prior signature if any.
func (j *Journal) Delete(name string) (Signature, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	prior, had := j.live[name]
	if err := j.appendRecord(fmt.Sprintf("- - %s\n", name)); err != nil {
		return "", err
	}
	delete(j.live, name)
	if !had {
		return "", nil
	}
	return prior, nil
}

// Clear unlinks the journal file and resets the in-memory map. Unlink
// failure is fatal (spec.md §4.1).
func (j *Journal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return Fatal("", &FilesystemError{Op: "clearing journal " + j.path, Err: err})
	}
	j.live = make(map[string]Signature)
	return nil
}

// Path returns the journal's backing file path.
func (j *Journal) Path() string { return j.path }
