// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sandbox enforces the directory allow-list that bounds every
// mutating filesystem operation.
//
// # Description
//
// A Guard is configured once at startup with a list of allowed directories.
// Every path that the change engine reads or writes is resolved to its
// canonical form and checked against that list first. Resolution failures
// deny rather than allow.
//
// # Thread Safety
//
// Guard is immutable after construction and safe for concurrent use.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// Errors
// =============================================================================

// DeniedError indicates a path resolved outside every allowed directory.
type DeniedError struct {
	// Path is the path as the caller supplied it.
	Path string
}

// Error returns the denial message.
func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s is outside the allowed directories", e.Path)
}

// =============================================================================
// Guard
// =============================================================================

// Guard validates paths against a fixed set of allowed directories.
type Guard struct {
	// dirs holds the resolved allowed directories, in configuration order.
	dirs []string
}

// New creates a Guard for the given directories.
//
// # Description
//
// Each directory is resolved to an absolute, symlink-free form. An empty
// list defaults to the process working directory. Directories that cannot
// be resolved at all are kept in their absolute form so that lexical
// checks still apply.
//
// # Inputs
//
//   - dirs: Allowed directories, absolute or relative to the working dir.
//
// # Outputs
//
//   - *Guard: Ready-to-use guard.
//   - error: Non-nil if the working directory cannot be determined.
func New(dirs []string) (*Guard, error) {
	if len(dirs) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		dirs = []string{wd}
	}

	resolved := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", dir, err)
		}
		resolved = append(resolved, resolveWithAncestors(abs))
	}

	return &Guard{dirs: resolved}, nil
}

// Dirs returns a copy of the allowed directories.
func (g *Guard) Dirs() []string {
	out := make([]string, len(g.dirs))
	copy(out, g.dirs)
	return out
}

// Allowed reports whether path resolves inside an allowed directory.
//
// # Description
//
// The path is made absolute, symlinks are resolved (walking up to the
// nearest existing ancestor for paths that do not exist yet), and the
// result is compared against each allowed directory. A path is allowed
// when it equals a directory exactly or is nested under one; the nesting
// check appends a separator so "/allowed-evil" never matches "/allowed".
//
// Any resolution error denies.
func (g *Guard) Allowed(path string) bool {
	_, err := g.Check(path)
	return err == nil
}

// Check resolves path and returns its canonical form, or a DeniedError.
//
// # Inputs
//
//   - path: Absolute or relative path to validate.
//
// # Outputs
//
//   - string: The resolved path, valid only when error is nil.
//   - error: *DeniedError when the path is outside the sandbox or cannot
//     be resolved.
func (g *Guard) Check(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &DeniedError{Path: path}
	}

	real := resolveWithAncestors(abs)

	for _, dir := range g.dirs {
		if real == dir || strings.HasPrefix(real, dir+string(filepath.Separator)) {
			return real, nil
		}
	}

	return "", &DeniedError{Path: path}
}

// resolveWithAncestors resolves symlinks, tolerating missing leaf paths.
//
// For a path that does not exist yet (staging a new file), the nearest
// existing ancestor is resolved and the missing components are rejoined
// onto it. This closes the hole where a symlinked ancestor points outside
// the sandbox but the target file itself has not been created.
func resolveWithAncestors(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}

	current := path
	var missing []string

	for {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}

		if real, err := filepath.EvalSymlinks(parent); err == nil {
			real = filepath.Join(real, filepath.Base(current))
			for i := len(missing) - 1; i >= 0; i-- {
				real = filepath.Join(real, missing[i])
			}
			return real
		}

		missing = append(missing, filepath.Base(current))
		current = parent
	}

	return path
}
