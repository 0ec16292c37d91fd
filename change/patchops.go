// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package change

import (
	"fmt"

	"github.com/AleutianAI/stagehand/diff"
	"github.com/AleutianAI/stagehand/validate"
)

// =============================================================================
// Ad Hoc Patch Operations
// =============================================================================
//
// These bypass the staging lifecycle: nothing is recorded and nothing
// can be undone through the store. Paths are still sandbox-checked.

// ApplyPatchFile applies unified diff text to a file on disk.
//
// # Description
//
// With dryRun the patch is attempted against the file's current content
// in memory and nothing is written; the Outcome's Content field carries
// the patch analysis summary rather than file content. Without dryRun a
// successful application is written back to the file.
//
// # Inputs
//
//   - path: Target file.
//   - patchText: Unified diff text.
//   - dryRun: When true, never write.
//
// # Outputs
//
//   - *diff.Outcome: Hunk accounting plus errors/warnings.
//   - error: *sandbox.DeniedError or an I/O failure; patch-level
//     problems are reported inside the Outcome instead.
func (m *Manager) ApplyPatchFile(path, patchText string, dryRun bool) (*diff.Outcome, error) {
	resolved, err := m.guard.Check(path)
	if err != nil {
		return nil, err
	}

	patches, err := diff.Parse(patchText)
	if err != nil {
		return &diff.Outcome{Errors: []string{err.Error()}}, nil
	}
	if len(patches) != 1 {
		return &diff.Outcome{
			Errors: []string{fmt.Sprintf("patch affects %d files, expected one", len(patches))},
		}, nil
	}

	content, err := readFileOrEmpty(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", resolved, err)
	}

	outcome := diff.ApplyPatch(content, patches[0])

	if dryRun {
		outcome.Content = validate.Analyze(patchText)
		m.logger.Info("dry-run patch", "path", resolved,
			"success", outcome.Success, "hunks", outcome.HunksTotal)
		return outcome, nil
	}

	if !outcome.Success {
		return outcome, nil
	}

	if err := writeFile(resolved, outcome.Content); err != nil {
		return nil, fmt.Errorf("writing %s: %w", resolved, err)
	}

	m.logger.Info("applied patch", "path", resolved, "hunks", outcome.HunksApplied)
	return outcome, nil
}

// ValidatePatch checks patch text structurally without applying it.
func (m *Manager) ValidatePatch(patchText string) *validate.Result {
	return validate.Validate(patchText)
}

// GeneratePatch computes a unified diff between two files on disk.
//
// Both paths are sandbox-checked; a missing file reads as empty so a
// patch can be generated for file creation.
func (m *Manager) GeneratePatch(oldPath, newPath string) (string, error) {
	oldResolved, err := m.guard.Check(oldPath)
	if err != nil {
		return "", err
	}
	newResolved, err := m.guard.Check(newPath)
	if err != nil {
		return "", err
	}

	oldContent, err := readFileOrEmpty(oldResolved)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", oldResolved, err)
	}
	newContent, err := readFileOrEmpty(newResolved)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", newResolved, err)
	}

	return diff.ComputeLabeled(oldContent, newContent, oldPath, newPath), nil
}
