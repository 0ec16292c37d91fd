// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate checks unified-diff text for structural problems
// without applying anything.
package validate

import (
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/stagehand/diff"
)

// =============================================================================
// Result Types
// =============================================================================

// PatchStats summarizes a patch.
type PatchStats struct {
	// FilesAffected is the number of file sections in the patch.
	FilesAffected int `json:"files_affected"`

	// LinesAdded is the total count of added lines.
	LinesAdded int `json:"lines_added"`

	// LinesRemoved is the total count of removed lines.
	LinesRemoved int `json:"lines_removed"`

	// Hunks is the total hunk count.
	Hunks int `json:"hunks"`
}

// Result is the outcome of validating patch text.
type Result struct {
	// Valid is false when the patch cannot be parsed or a hunk has a
	// negative start line. Warnings never invalidate.
	Valid bool `json:"valid"`

	// Errors lists fatal structural problems.
	Errors []string `json:"errors"`

	// Warnings lists non-fatal observations (empty hunks, zero hunks).
	Warnings []string `json:"warnings"`

	// AffectedFiles is the de-duplicated union of old and new filenames,
	// with git a/ b/ prefixes stripped and /dev/null excluded.
	AffectedFiles []string `json:"affected_files"`

	// Stats summarizes the parsed patch. Zero-valued when parsing failed.
	Stats PatchStats `json:"stats"`
}

// =============================================================================
// Validate
// =============================================================================

// Validate checks patch text structurally.
//
// # Description
//
// Parsing failures and negative hunk start lines are errors; a patch
// with zero hunks, or hunks with empty bodies, is valid with warnings.
// Patches that the in-repo parser accepts are additionally offered to
// the strict go-diff reader; a strict-side rejection is surfaced as a
// warning so interoperability problems are visible without blocking.
//
// Validate is stateless: calling it twice on the same text yields
// identical results.
func Validate(patchText string) *Result {
	result := &Result{
		Valid:         true,
		Errors:        []string{},
		Warnings:      []string{},
		AffectedFiles: []string{},
	}

	patches, err := diff.Parse(patchText)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.AffectedFiles = affectedFiles(patches)
	result.Stats.FilesAffected = len(patches)

	totalHunks := 0
	for _, p := range patches {
		name := displayName(p)
		if len(p.Hunks) == 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("file %s: patch names no hunks", name))
		}
		for hi, h := range p.Hunks {
			totalHunks++
			if h.OldStart < 0 || h.NewStart < 0 {
				result.Valid = false
				result.Errors = append(result.Errors,
					fmt.Sprintf("file %s hunk %d: negative start line in %s", name, hi+1, h.Header()))
			}
			if len(h.Lines) == 0 {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("file %s hunk %d: empty hunk", name, hi+1))
			}
			added, removed := h.AddedCount(), h.RemovedCount()
			result.Stats.LinesAdded += added
			result.Stats.LinesRemoved += removed
		}
	}
	result.Stats.Hunks = totalHunks

	// zero-hunk files already carry a per-file warning above
	if len(patches) == 0 {
		result.Warnings = append(result.Warnings, "patch contains no hunks")
	}

	if result.Valid {
		if _, err := strictParse(patchText); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("strict diff reader rejected patch: %v", err))
		}
	}

	return result
}

// strictParse runs the go-diff multi-file reader over the patch.
func strictParse(patchText string) ([]*godiff.FileDiff, error) {
	return godiff.NewMultiFileDiffReader(strings.NewReader(patchText)).ReadAllFiles()
}

// =============================================================================
// Analyze
// =============================================================================

// Analyze returns a human-readable summary of patch text.
//
// # Description
//
// Purely derived from the parsed structure: per-file hunk counts,
// added/removed totals, and each hunk's location marker. Malformed
// patches yield a one-line description of the parse failure.
func Analyze(patchText string) string {
	patches, err := diff.Parse(patchText)
	if err != nil {
		return fmt.Sprintf("Patch analysis: unparseable (%v)", err)
	}

	var sb strings.Builder
	totalAdded, totalRemoved, totalHunks := 0, 0, 0
	for _, p := range patches {
		added, removed := p.Stats()
		totalAdded += added
		totalRemoved += removed
		totalHunks += len(p.Hunks)

		fmt.Fprintf(&sb, "File: %s (%d hunks, +%d -%d)\n",
			displayName(p), len(p.Hunks), added, removed)
		for i, h := range p.Hunks {
			fmt.Fprintf(&sb, "  hunk %d: %s (+%d -%d)\n",
				i+1, h.Header(), h.AddedCount(), h.RemovedCount())
		}
	}
	fmt.Fprintf(&sb, "Total: %d files, %d hunks, +%d -%d\n",
		len(patches), totalHunks, totalAdded, totalRemoved)
	return sb.String()
}

// =============================================================================
// Helpers
// =============================================================================

// affectedFiles returns the de-duplicated union of old and new names.
func affectedFiles(patches []*diff.FilePatch) []string {
	files := []string{}
	seen := make(map[string]bool)

	add := func(name string) {
		name = stripPrefix(name)
		if name == "" || name == "/dev/null" || seen[name] {
			return
		}
		seen[name] = true
		files = append(files, name)
	}

	for _, p := range patches {
		add(p.OldName)
		add(p.NewName)
	}
	return files
}

// stripPrefix removes the git a/ or b/ name prefix.
func stripPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

// displayName picks the most useful filename for messages.
func displayName(p *diff.FilePatch) string {
	name := stripPrefix(p.NewName)
	if name == "" || name == "/dev/null" {
		name = stripPrefix(p.OldName)
	}
	if name == "" {
		name = "<unnamed>"
	}
	return name
}
