// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import "runtime"

// defaultJournalBasename returns the platform-specific default journal
// filename of spec.md §6's table. Go's runtime.GOOS does not distinguish
// VMS, OS/2, or classic Mac OS (none are supported Go targets), so those
// three rows of the spec's table collapse into the POSIX default here;
// only the Windows row is distinguishable at runtime. This is a
// deliberate narrowing (SPEC_FULL.md §B).
func defaultJournalBasename() string {
	if runtime.GOOS == "windows" {
		return "CONJURY.JNL"
	}
	return ".conjury-journal"
}
