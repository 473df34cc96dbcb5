// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"crypto/md5"
	"encoding/base64"
	"strconv"
	"strings"
)

// Signature is an opaque base64(MD5(profile)) string, or the empty string
// for a spell whose profile is empty (spec.md §3).
type Signature string

// profileBuilder accumulates the textual pre-image of a Signature, per
// spec.md §3: a base string, then a signature or "path mtime" fragment per
// factor, in declaration order. Ordering is significant and never
// reordered or deduplicated — a profile is a sequence, not a set
// (spec.md §4.4 "Tie-breaks").
type profileBuilder struct {
	sb strings.Builder
}

func newProfileBuilder(base string) *profileBuilder {
	p := &profileBuilder{}
	p.sb.WriteString(base)
	return p
}

// addSignature appends another spell's signature to the profile.
func (p *profileBuilder) addSignature(sig Signature) {
	p.sb.WriteString(string(sig))
}

// addSourceFile appends a source-file path and its modification time
// (seconds since epoch), per spec.md §3 (iii).
func (p *profileBuilder) addSourceFile(path string, mtimeUnix int64) {
	p.sb.WriteByte(' ')
	p.sb.WriteString(path)
	p.sb.WriteByte(' ')
	p.sb.WriteString(strconv.FormatInt(mtimeUnix, 10))
}

// String returns the accumulated profile text.
func (p *profileBuilder) String() string { return p.sb.String() }

// computeSignature hashes a profile string into a Signature. An empty
// profile yields the empty Signature (spec.md §3, §4.4 step 5).
func computeSignature(profile string) Signature {
	if profile == "" {
		return ""
	}
	sum := md5.Sum([]byte(profile))
	return Signature(base64.StdEncoding.EncodeToString(sum[:]))
}
