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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/stagehand/diff"
	"github.com/AleutianAI/stagehand/pkg/logging"
	"github.com/AleutianAI/stagehand/sandbox"
)

// =============================================================================
// Manager
// =============================================================================

// Manager orchestrates the change lifecycle: stage, preview, apply,
// undo, reject, plus the ad hoc patch operations that bypass staging.
//
// # Thread Safety
//
// Safe for concurrent use. Operations on the same change id serialize
// on the store's per-id lock; concurrent apply/reject on one id cannot
// interleave, and the loser fails with NotFoundError.
type Manager struct {
	guard  *sandbox.Guard
	store  *Store
	logger *logging.Logger
}

// NewManager creates a Manager.
//
// # Inputs
//
//   - guard: Directory allow-list; every mutating path is checked first.
//   - store: Record store, typically fresh from NewStore.
//   - logger: Destination for operational logs. Nil uses the default.
func NewManager(guard *sandbox.Guard, store *Store, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{guard: guard, store: store, logger: logger}
}

// Store exposes the underlying record store.
func (m *Manager) Store() *Store {
	return m.store
}

// =============================================================================
// Stage
// =============================================================================

// Stage records a proposed edit without touching the target file.
//
// # Description
//
// The path is sandbox-checked, the current content is read (a missing
// file stages as empty), and forward and reverse diffs are computed so
// the change can be previewed now and undone later.
//
// # Inputs
//
//   - path: Target file, absolute or relative.
//   - newContent: Full proposed content.
//   - description: Caller's rationale, shown in listings.
//
// # Outputs
//
//   - string: The new change id.
//   - error: *sandbox.DeniedError, or a read failure.
func (m *Manager) Stage(path, newContent, description string) (string, error) {
	resolved, err := m.guard.Check(path)
	if err != nil {
		return "", err
	}

	original, err := readFileOrEmpty(resolved)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", resolved, err)
	}

	id := m.store.NewID()
	now := time.Now()
	m.store.PutPending(&PendingChange{
		ID:              id,
		Path:            resolved,
		OriginalContent: original,
		NewContent:      newContent,
		ForwardDiff:     diff.Compute(original, newContent, displayLabel(resolved)),
		ReverseDiff:     diff.Compute(newContent, original, displayLabel(resolved)),
		Timestamp:       now,
		Description:     description,
	})

	m.logger.Info("staged change", "id", id, "path", resolved)
	return id, nil
}

// =============================================================================
// Preview and Listings
// =============================================================================

// Preview returns the forward diff of a pending change.
func (m *Manager) Preview(id string) (string, error) {
	pc, err := m.store.GetPending(id)
	if err != nil {
		return "", err
	}
	if pc.ForwardDiff == "" {
		return fmt.Sprintf("Change %s: no difference against %s\n", pc.ID, pc.Path), nil
	}
	return pc.ForwardDiff, nil
}

// ListPending returns a stable human-readable summary of staged changes.
func (m *Manager) ListPending() string {
	pending := m.store.Pending()
	if len(pending) == 0 {
		return "No pending changes.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d pending change(s):\n", len(pending))
	for _, pc := range pending {
		fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
			pc.ID, pc.Timestamp.Format(time.RFC3339), pc.Path, pc.Description)
	}
	return sb.String()
}

// ListApplied returns applied changes, most recent undo candidate first.
func (m *Manager) ListApplied() string {
	applied := m.store.Applied()
	if len(applied) == 0 {
		return "No applied changes.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d applied change(s), newest first:\n", len(applied))
	for _, ac := range applied {
		fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
			ac.ID, ac.Timestamp.Format(time.RFC3339), ac.Path, ac.Description)
	}
	return sb.String()
}

// =============================================================================
// Apply
// =============================================================================

// Apply writes a pending change's content to its target file.
//
// # Description
//
// No conflict check is performed against the staged original: apply
// writes the full proposed content even if the file changed since
// staging. On success the record moves from pending to applied,
// retaining only the reverse diff needed for undo.
//
// # Outputs
//
//   - string: Confirmation message.
//   - error: *NotFoundError, *sandbox.DeniedError, or the write failure.
func (m *Manager) Apply(id string) (string, error) {
	unlock := m.store.LockID(id)
	defer unlock()

	pc, err := m.store.GetPending(id)
	if err != nil {
		return "", err
	}
	if _, err := m.guard.Check(pc.Path); err != nil {
		return "", err
	}

	if err := writeFile(pc.Path, pc.NewContent); err != nil {
		return "", fmt.Errorf("writing %s: %w", pc.Path, err)
	}

	m.store.PutApplied(&AppliedChange{
		ID:          pc.ID,
		Path:        pc.Path,
		ReverseDiff: pc.ReverseDiff,
		Timestamp:   time.Now(),
		Description: pc.Description,
	})
	m.store.DeletePending(id)

	m.logger.Info("applied change", "id", id, "path", pc.Path)
	return fmt.Sprintf("Applied change %s to %s (undo available)\n", id, pc.Path), nil
}

// =============================================================================
// Undo
// =============================================================================

// Undo reverts an applied change by applying its reverse diff.
//
// # Description
//
// The current file content is read and the stored reverse diff applied
// to it. A conflict means the file drifted after apply; the file is
// left untouched and a *ConflictError is returned. On success the file
// is rewritten and the applied record removed, so undo succeeds at most
// once per id.
func (m *Manager) Undo(id string) (string, error) {
	unlock := m.store.LockID(id)
	defer unlock()

	ac, err := m.store.GetApplied(id)
	if err != nil {
		return "", err
	}
	if _, err := m.guard.Check(ac.Path); err != nil {
		return "", err
	}

	current, err := readFileOrEmpty(ac.Path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", ac.Path, err)
	}

	restored, err := diff.Apply(current, ac.ReverseDiff)
	if err != nil {
		var conflict *diff.ConflictError
		if errors.As(err, &conflict) {
			return "", &ConflictError{ID: id, Path: ac.Path, Cause: conflict}
		}
		return "", fmt.Errorf("undoing change %s: %w", id, err)
	}

	if err := writeFile(ac.Path, restored); err != nil {
		return "", fmt.Errorf("writing %s: %w", ac.Path, err)
	}
	m.store.DeleteApplied(id)

	m.logger.Info("undid change", "id", id, "path", ac.Path)
	return fmt.Sprintf("Undid change %s on %s\n", id, ac.Path), nil
}

// =============================================================================
// Reject
// =============================================================================

// Reject discards a pending change without touching its target file.
func (m *Manager) Reject(id string) (string, error) {
	unlock := m.store.LockID(id)
	defer unlock()

	pc, err := m.store.GetPending(id)
	if err != nil {
		return "", err
	}
	m.store.DeletePending(id)

	m.logger.Info("rejected change", "id", id, "path", pc.Path)
	return fmt.Sprintf("Rejected change %s (%s untouched)\n", id, pc.Path), nil
}

// =============================================================================
// File Helpers
// =============================================================================

// readFileOrEmpty reads a file, treating absence as empty content.
func readFileOrEmpty(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// writeFile writes content, creating parent directories as needed.
func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// displayLabel renders a path for diff headers; relative to the working
// directory when possible so previews stay short.
func displayLabel(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
