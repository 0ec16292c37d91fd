// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diff

import (
	"fmt"
	"strings"
)

// maxFuzzOffset bounds how far from a hunk's declared position the
// expected old-side lines are searched before declaring a conflict.
const maxFuzzOffset = 50

// =============================================================================
// Conflict Error
// =============================================================================

// ConflictError indicates a well-formed patch whose expected old-side
// content does not match the target. This is how external edits since
// the patch was generated are detected.
type ConflictError struct {
	// Hunk is the 1-based index of the conflicting hunk.
	Hunk int

	// Line is the 1-based content line where matching was attempted.
	Line int

	// Expected is the first expected line that failed to match.
	Expected string

	// Found is what the content holds at that position ("<end of file>"
	// when the content is shorter than the hunk requires).
	Found string
}

// Error returns a human-readable explanation of the drift.
func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"hunk %d does not apply at line %d: expected %q, found %q (content has changed since the patch was generated)",
		e.Hunk, e.Line, e.Expected, e.Found)
}

// =============================================================================
// Apply
// =============================================================================

// Apply applies unified diff text to a content string.
//
// # Description
//
// Parses patchText and rewrites each hunk's old-line range inside
// content. Hunks are applied in order against the evolving content so
// later hunk offsets stay consistent with earlier edits. Application is
// all-or-nothing: the first conflicting hunk aborts and the original
// content is returned unchanged alongside the error.
//
// The patch must concern a single file; multi-file patches are rejected.
// Empty patch text, which Compute produces for identical contents, is a
// no-op and returns the content unchanged.
//
// # Inputs
//
//   - content: The content to transform.
//   - patchText: Unified diff text.
//
// # Outputs
//
//   - string: Transformed content on success, the input content otherwise.
//   - error: *ParseError for malformed text, *ConflictError for drift.
func Apply(content, patchText string) (string, error) {
	if strings.TrimSpace(patchText) == "" {
		return content, nil
	}

	patches, err := Parse(patchText)
	if err != nil {
		return content, err
	}
	if len(patches) == 0 {
		return content, nil
	}
	if len(patches) > 1 {
		return content, &ParseError{Message: fmt.Sprintf("patch affects %d files, expected one", len(patches))}
	}

	result, err := applyFilePatch(content, patches[0])
	if err != nil {
		return content, err
	}
	return result, nil
}

// ApplyPatch applies an already-parsed single-file patch and reports a
// structured Outcome. On success Outcome.Content holds the transformed
// content and HunksApplied equals HunksTotal.
func ApplyPatch(content string, patch *FilePatch) *Outcome {
	outcome := &Outcome{HunksTotal: len(patch.Hunks)}

	if len(patch.Hunks) == 0 {
		outcome.Success = true
		outcome.Content = content
		outcome.Warnings = append(outcome.Warnings, "patch contains no hunks")
		return outcome
	}

	result, err := applyFilePatch(content, patch)
	if err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		return outcome
	}

	outcome.Success = true
	outcome.Content = result
	outcome.HunksApplied = len(patch.Hunks)
	return outcome
}

// applyFilePatch applies every hunk of one file patch, atomically.
func applyFilePatch(content string, patch *FilePatch) (string, error) {
	lines := strings.Split(content, "\n")
	offset := 0

	for i, hunk := range patch.Hunks {
		expected := hunk.oldLines()

		// 0-based position the header claims, adjusted for earlier hunks.
		pos := hunk.OldStart - 1 + offset
		if hunk.OldCount == 0 {
			// insertion point: "after line OldStart"
			pos = hunk.OldStart + offset
		}

		matched, conflict := locateHunk(lines, expected, pos, i+1)
		if conflict != nil {
			return "", conflict
		}

		replacement := hunk.newLines()
		next := make([]string, 0, len(lines)-len(expected)+len(replacement))
		next = append(next, lines[:matched]...)
		next = append(next, replacement...)
		next = append(next, lines[matched+len(expected):]...)
		lines = next

		offset += len(replacement) - len(expected)
	}

	return strings.Join(lines, "\n"), nil
}

// locateHunk finds where the expected lines match, trying the declared
// position first and then nearby offsets up to maxFuzzOffset away.
func locateHunk(lines, expected []string, pos, hunkNo int) (int, *ConflictError) {
	if pos < 0 {
		pos = 0
	}

	if matchesAt(lines, expected, pos) {
		return pos, nil
	}

	for delta := 1; delta <= maxFuzzOffset; delta++ {
		if matchesAt(lines, expected, pos-delta) {
			return pos - delta, nil
		}
		if matchesAt(lines, expected, pos+delta) {
			return pos + delta, nil
		}
	}

	// Report the mismatch at the declared position.
	conflict := &ConflictError{Hunk: hunkNo, Line: pos + 1}
	for k, want := range expected {
		at := pos + k
		if at >= len(lines) {
			conflict.Line = at + 1
			conflict.Expected = want
			conflict.Found = "<end of file>"
			return 0, conflict
		}
		if lines[at] != want {
			conflict.Line = at + 1
			conflict.Expected = want
			conflict.Found = lines[at]
			return 0, conflict
		}
	}
	// expected was empty and position is past the end
	conflict.Expected = "<insertion point>"
	conflict.Found = "<end of file>"
	return 0, conflict
}

// matchesAt reports whether expected matches lines starting at pos.
// An empty expectation matches any position inside the content.
func matchesAt(lines, expected []string, pos int) bool {
	if pos < 0 || pos+len(expected) > len(lines) {
		return pos >= 0 && len(expected) == 0 && pos <= len(lines)
	}
	for k, want := range expected {
		if lines[pos+k] != want {
			return false
		}
	}
	return true
}
