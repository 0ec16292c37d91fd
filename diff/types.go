// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diff computes, parses, reverses, and applies unified diffs.
//
// # Description
//
// This package is the core of the change engine. It produces standard
// unified-diff text (3 lines of context), parses arbitrary unified-diff
// text into a structural form, and applies parsed patches to content
// strings with conflict detection when the target content has drifted
// from what the patch expects.
//
// # Thread Safety
//
// All operations are pure functions over their inputs. Parsed structures
// are not safe for concurrent modification but may be read concurrently.
package diff

import (
	"fmt"
	"strings"
)

// ContextLines is the number of unchanged lines emitted around each hunk.
const ContextLines = 3

// =============================================================================
// Line Types
// =============================================================================

// LineType categorizes diff lines.
type LineType string

const (
	// LineContext represents unchanged context lines.
	LineContext LineType = " "

	// LineAdded represents added lines.
	LineAdded LineType = "+"

	// LineRemoved represents removed lines.
	LineRemoved LineType = "-"
)

// String returns the string representation of the line type.
func (lt LineType) String() string {
	return string(lt)
}

// Line is a single line within a hunk.
type Line struct {
	// Type is the line type (context, added, removed).
	Type LineType

	// Content is the line content without the prefix character.
	Content string
}

// String returns the line as it appears in patch text.
func (l Line) String() string {
	return string(l.Type) + l.Content
}

// =============================================================================
// Hunk
// =============================================================================

// Hunk represents one contiguous change region of a patch.
type Hunk struct {
	// OldStart is the 1-based starting line in the old content.
	// When OldCount is zero it names the line after which new lines
	// are inserted (0 for the start of the file).
	OldStart int

	// OldCount is the number of old-content lines the hunk covers.
	OldCount int

	// NewStart is the 1-based starting line in the new content.
	NewStart int

	// NewCount is the number of new-content lines the hunk produces.
	NewCount int

	// Lines holds the hunk body in order.
	Lines []Line
}

// Header returns the unified diff header for this hunk.
func (h *Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

// AddedCount returns the number of added lines.
func (h *Hunk) AddedCount() int {
	count := 0
	for _, line := range h.Lines {
		if line.Type == LineAdded {
			count++
		}
	}
	return count
}

// RemovedCount returns the number of removed lines.
func (h *Hunk) RemovedCount() int {
	count := 0
	for _, line := range h.Lines {
		if line.Type == LineRemoved {
			count++
		}
	}
	return count
}

// oldLines returns the old-side line contents (context + removed) in order.
func (h *Hunk) oldLines() []string {
	var out []string
	for _, line := range h.Lines {
		if line.Type == LineContext || line.Type == LineRemoved {
			out = append(out, line.Content)
		}
	}
	return out
}

// newLines returns the new-side line contents (context + added) in order.
func (h *Hunk) newLines() []string {
	var out []string
	for _, line := range h.Lines {
		if line.Type == LineContext || line.Type == LineAdded {
			out = append(out, line.Content)
		}
	}
	return out
}

// =============================================================================
// File Patch
// =============================================================================

// FilePatch is the parsed patch for a single file.
type FilePatch struct {
	// OldName is the old-side filename from the --- header.
	OldName string

	// NewName is the new-side filename from the +++ header.
	NewName string

	// Hunks holds the ordered change regions.
	Hunks []*Hunk
}

// Stats returns total lines added and removed across all hunks.
func (p *FilePatch) Stats() (added, removed int) {
	for _, hunk := range p.Hunks {
		added += hunk.AddedCount()
		removed += hunk.RemovedCount()
	}
	return
}

// Text renders the patch back to unified diff text.
func (p *FilePatch) Text() string {
	var sb strings.Builder
	sb.WriteString("--- " + p.OldName + "\n")
	sb.WriteString("+++ " + p.NewName + "\n")
	for _, hunk := range p.Hunks {
		sb.WriteString(hunk.Header())
		sb.WriteString("\n")
		for _, line := range hunk.Lines {
			sb.WriteString(line.String())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Render joins multiple file patches into one patch document.
func Render(patches []*FilePatch) string {
	var sb strings.Builder
	for _, p := range patches {
		sb.WriteString(p.Text())
	}
	return sb.String()
}

// =============================================================================
// Outcome
// =============================================================================

// Outcome reports the result of applying a patch.
type Outcome struct {
	// Success is true when every hunk applied.
	Success bool `json:"success"`

	// Content is the transformed content on success, or an analysis
	// summary for dry runs. Empty on failure.
	Content string `json:"content,omitempty"`

	// Errors lists what prevented application.
	Errors []string `json:"errors,omitempty"`

	// Warnings lists non-fatal observations.
	Warnings []string `json:"warnings,omitempty"`

	// HunksApplied is the number of hunks applied. Application is
	// all-or-nothing, so this equals HunksTotal on success and 0 otherwise.
	HunksApplied int `json:"hunks_applied"`

	// HunksTotal is the number of hunks the patch contains.
	HunksTotal int `json:"hunks_total"`
}
