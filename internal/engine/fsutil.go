// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import "os"

// fileExists reports whether path names an existing file (or directory).
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// removeIfExists unlinks path, treating "already gone" as success.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
