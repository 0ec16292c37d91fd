// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package change stages proposed file edits for review and tracks
// applied edits so they can be undone.
//
// # Description
//
// Each proposed edit moves through a small lifecycle:
//
//	stage -> preview -> apply -> undo
//	                 \-> reject
//
// The Store owns the pending and applied record maps and mirrors each
// record to a JSON file on disk; the Manager orchestrates the lifecycle
// on top of the Store, the sandbox Guard, and the diff engine.
package change

import (
	"fmt"
	"time"
)

// =============================================================================
// Records
// =============================================================================

// PendingChange is a staged edit awaiting apply or reject.
type PendingChange struct {
	// ID uniquely identifies the change.
	ID string `json:"id"`

	// Path is the resolved target file.
	Path string `json:"path"`

	// OriginalContent is the file content at staging time ("" when the
	// file did not exist).
	OriginalContent string `json:"original_content"`

	// NewContent is the full proposed content.
	NewContent string `json:"new_content"`

	// ForwardDiff transforms OriginalContent into NewContent.
	ForwardDiff string `json:"forward_diff"`

	// ReverseDiff transforms NewContent back into OriginalContent.
	ReverseDiff string `json:"reverse_diff"`

	// Timestamp is when the change was staged.
	Timestamp time.Time `json:"timestamp"`

	// Description is the caller's rationale for the edit.
	Description string `json:"description"`
}

// AppliedChange is an applied edit that can still be undone. Only the
// reverse diff is retained; the content snapshots are dropped on apply.
type AppliedChange struct {
	// ID uniquely identifies the change.
	ID string `json:"id"`

	// Path is the resolved target file.
	Path string `json:"path"`

	// ReverseDiff undoes the applied edit on matching content.
	ReverseDiff string `json:"reverse_diff"`

	// Timestamp is when the change was applied.
	Timestamp time.Time `json:"timestamp"`

	// Description is carried over from the pending record.
	Description string `json:"description"`
}

// =============================================================================
// Errors
// =============================================================================

// NotFoundError indicates an id with no record in the queried state.
type NotFoundError struct {
	// ID is the change id the caller asked for.
	ID string

	// State names the store the id was missing from ("pending" or "applied").
	State string
}

// Error returns the not-found message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s change with id %s", e.State, e.ID)
}

// ConflictError indicates an undo whose reverse diff no longer applies.
type ConflictError struct {
	// ID is the change id being undone.
	ID string

	// Path is the target file.
	Path string

	// Cause is the underlying diff conflict.
	Cause error
}

// Error returns the conflict message.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot undo change %s: %s may have been modified since the change was applied: %v",
		e.ID, e.Path, e.Cause)
}

// Unwrap exposes the underlying diff conflict.
func (e *ConflictError) Unwrap() error {
	return e.Cause
}
