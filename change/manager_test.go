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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/stagehand/diff"
	"github.com/AleutianAI/stagehand/sandbox"
)

// testEnv bundles a manager sandboxed to its own work directory.
type testEnv struct {
	manager *Manager
	workDir string
	// stateDir backs the store; reused to simulate restarts.
	stateDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	workDir := t.TempDir()
	stateDir := t.TempDir()

	guard, err := sandbox.New([]string{workDir})
	require.NoError(t, err)
	store, err := NewStore(stateDir, quietLogger())
	require.NoError(t, err)

	return &testEnv{
		manager:  NewManager(guard, store, quietLogger()),
		workDir:  workDir,
		stateDir: stateDir,
	}
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.workDir, name)
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	p := e.path(name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func (e *testEnv) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(e.path(name))
	require.NoError(t, err)
	return string(data)
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestManager_FullLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "notes.txt", "shopping list\n- milk\n- eggs\n")

	id, err := env.manager.Stage(env.path("notes.txt"),
		"shopping list\n- milk\n- eggs\n- bread\n", "add bread")
	require.NoError(t, err)
	require.Len(t, id, 12)

	// staging must not touch the file
	assert.Equal(t, "shopping list\n- milk\n- eggs\n", env.read(t, "notes.txt"))

	preview, err := env.manager.Preview(id)
	require.NoError(t, err)
	assert.Contains(t, preview, "+- bread")
	assert.NotContains(t, preview, "-- milk")

	listing := env.manager.ListPending()
	assert.Contains(t, listing, id)
	assert.Contains(t, listing, "add bread")

	msg, err := env.manager.Apply(id)
	require.NoError(t, err)
	assert.Contains(t, msg, "undo available")
	assert.Equal(t, "shopping list\n- milk\n- eggs\n- bread\n", env.read(t, "notes.txt"))

	// moved from pending to applied
	assert.Contains(t, env.manager.ListPending(), "No pending changes")
	assert.Contains(t, env.manager.ListApplied(), id)

	var notFound *NotFoundError
	_, err = env.manager.Preview(id)
	assert.ErrorAs(t, err, &notFound)
	_, err = env.manager.Apply(id)
	assert.ErrorAs(t, err, &notFound)

	_, err = env.manager.Undo(id)
	require.NoError(t, err)
	assert.Equal(t, "shopping list\n- milk\n- eggs\n", env.read(t, "notes.txt"))

	// undo works at most once
	_, err = env.manager.Undo(id)
	assert.ErrorAs(t, err, &notFound)
}

func TestManager_StageNewFile(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.manager.Stage(env.path("created.txt"), "first line\n", "create file")
	require.NoError(t, err)

	_, statErr := os.Stat(env.path("created.txt"))
	assert.True(t, os.IsNotExist(statErr), "staging must not create the file")

	_, err = env.manager.Apply(id)
	require.NoError(t, err)
	assert.Equal(t, "first line\n", env.read(t, "created.txt"))

	_, err = env.manager.Undo(id)
	require.NoError(t, err)
	assert.Equal(t, "", env.read(t, "created.txt"))
}

func TestManager_Reject(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "keep.txt", "original\n")

	id, err := env.manager.Stage(env.path("keep.txt"), "replaced\n", "")
	require.NoError(t, err)

	msg, err := env.manager.Reject(id)
	require.NoError(t, err)
	assert.Contains(t, msg, "untouched")
	assert.Equal(t, "original\n", env.read(t, "keep.txt"))

	// gone from pending; apply now fails
	_, err = env.manager.Apply(id)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "pending", notFound.State)
}

func TestManager_PreviewNoDifference(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "same.txt", "unchanged\n")

	id, err := env.manager.Stage(env.path("same.txt"), "unchanged\n", "")
	require.NoError(t, err)

	preview, err := env.manager.Preview(id)
	require.NoError(t, err)
	assert.Contains(t, preview, "no difference")
}

// A change whose content matches the file has empty forward and reverse
// diffs. Its full lifecycle must still complete, in particular undo, or
// the applied record could never be removed.
func TestManager_NoOpChangeLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "same.txt", "unchanged\n")

	id, err := env.manager.Stage(env.path("same.txt"), "unchanged\n", "no-op")
	require.NoError(t, err)

	_, err = env.manager.Apply(id)
	require.NoError(t, err)
	assert.Equal(t, "unchanged\n", env.read(t, "same.txt"))

	_, err = env.manager.Undo(id)
	require.NoError(t, err)
	assert.Equal(t, "unchanged\n", env.read(t, "same.txt"))

	// exactly once: the record is gone after a successful undo
	var notFound *NotFoundError
	_, err = env.manager.Undo(id)
	require.ErrorAs(t, err, &notFound)
}

// =============================================================================
// Drift
// =============================================================================

func TestManager_ApplyAfterExternalOverwrite(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "drift.txt", "original\n")

	id, err := env.manager.Stage(env.path("drift.txt"), "staged content\n", "")
	require.NoError(t, err)

	// apply writes the full staged content, so an external edit between
	// staging and apply is simply overwritten
	env.write(t, "drift.txt", "externally changed\n")

	_, err = env.manager.Apply(id)
	require.NoError(t, err)
	assert.Equal(t, "staged content\n", env.read(t, "drift.txt"))
}

func TestManager_UndoConflictAfterExternalEdit(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "drift.txt", "line1\nline2\nline3\n")

	id, err := env.manager.Stage(env.path("drift.txt"), "line1\nEDITED\nline3\n", "")
	require.NoError(t, err)
	_, err = env.manager.Apply(id)
	require.NoError(t, err)

	// the file drifts after apply; the reverse diff no longer matches
	env.write(t, "drift.txt", "completely\nrewritten\nby someone else\n")

	_, err = env.manager.Undo(id)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, id, conflict.ID)
	assert.Contains(t, err.Error(), "may have been modified")

	// conflicted undo leaves the file alone and the record undoable
	assert.Equal(t, "completely\nrewritten\nby someone else\n", env.read(t, "drift.txt"))
	assert.Contains(t, env.manager.ListApplied(), id)
}

// =============================================================================
// Sandbox Enforcement
// =============================================================================

func TestManager_DeniesOutsidePaths(t *testing.T) {
	env := newTestEnv(t)
	outside := filepath.Join(t.TempDir(), "outside.txt")

	var denied *sandbox.DeniedError

	_, err := env.manager.Stage(outside, "content", "")
	assert.ErrorAs(t, err, &denied)

	_, err = env.manager.ApplyPatchFile(outside, "", false)
	assert.ErrorAs(t, err, &denied)

	_, err = env.manager.GeneratePatch(outside, env.path("in.txt"))
	assert.ErrorAs(t, err, &denied)

	_, err = env.manager.GeneratePatch(env.path("in.txt"), outside)
	assert.ErrorAs(t, err, &denied)
}

// =============================================================================
// Restart
// =============================================================================

func TestManager_StagedWorkSurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "persist.txt", "v1\n")
	target := env.path("persist.txt")

	id, err := env.manager.Stage(target, "v2\n", "survives restart")
	require.NoError(t, err)

	// rebuild guard, store, and manager over the same state directory
	guard, err := sandbox.New([]string{env.workDir})
	require.NoError(t, err)
	store, err := NewStore(env.stateDir, quietLogger())
	require.NoError(t, err)
	restarted := NewManager(guard, store, quietLogger())

	preview, err := restarted.Preview(id)
	require.NoError(t, err)
	assert.Contains(t, preview, "+v2")

	_, err = restarted.Apply(id)
	require.NoError(t, err)
	assert.Equal(t, "v2\n", env.read(t, "persist.txt"))
}

// =============================================================================
// Ad Hoc Patch Operations
// =============================================================================

func TestManager_ApplyPatchFile(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "code.txt", "alpha\nbeta\ngamma\n")
	patch := diff.Compute("alpha\nbeta\ngamma\n", "alpha\nBETA\ngamma\n", "code.txt")

	outcome, err := env.manager.ApplyPatchFile(env.path("code.txt"), patch, false)
	require.NoError(t, err)
	require.True(t, outcome.Success, "errors: %v", outcome.Errors)
	assert.Equal(t, outcome.HunksTotal, outcome.HunksApplied)
	assert.Equal(t, "alpha\nBETA\ngamma\n", env.read(t, "code.txt"))
}

func TestManager_ApplyPatchFileDryRun(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "code.txt", "alpha\nbeta\ngamma\n")
	patch := diff.Compute("alpha\nbeta\ngamma\n", "alpha\nBETA\ngamma\n", "code.txt")

	outcome, err := env.manager.ApplyPatchFile(env.path("code.txt"), patch, true)
	require.NoError(t, err)
	assert.True(t, outcome.Success)

	// dry run reports the analysis and never writes
	assert.Contains(t, outcome.Content, "Total:")
	assert.Equal(t, "alpha\nbeta\ngamma\n", env.read(t, "code.txt"))
}

func TestManager_ApplyPatchFileConflict(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "code.txt", "totally\ndifferent\nfile\n")
	patch := diff.Compute("alpha\nbeta\ngamma\n", "alpha\nBETA\ngamma\n", "code.txt")

	outcome, err := env.manager.ApplyPatchFile(env.path("code.txt"), patch, false)
	require.NoError(t, err, "conflicts are reported in the outcome, not the error")
	assert.False(t, outcome.Success)
	assert.NotEmpty(t, outcome.Errors)
	assert.Equal(t, "totally\ndifferent\nfile\n", env.read(t, "code.txt"))
}

func TestManager_ApplyPatchFileUnparseable(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "code.txt", "content\n")

	outcome, err := env.manager.ApplyPatchFile(env.path("code.txt"), "garbage", false)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.NotEmpty(t, outcome.Errors)
}

func TestManager_GeneratePatch(t *testing.T) {
	env := newTestEnv(t)
	oldPath := env.write(t, "old.txt", "one\ntwo\nthree\n")
	newPath := env.write(t, "new.txt", "one\nTWO\nthree\n")

	patch, err := env.manager.GeneratePatch(oldPath, newPath)
	require.NoError(t, err)
	assert.Contains(t, patch, "--- "+oldPath)
	assert.Contains(t, patch, "+++ "+newPath)

	// the generated patch transforms old into new
	got, err := diff.Apply("one\ntwo\nthree\n", patch)
	require.NoError(t, err)
	assert.Equal(t, "one\nTWO\nthree\n", got)
}

func TestManager_GeneratePatchIdentical(t *testing.T) {
	env := newTestEnv(t)
	a := env.write(t, "a.txt", "same\n")
	b := env.write(t, "b.txt", "same\n")

	patch, err := env.manager.GeneratePatch(a, b)
	require.NoError(t, err)
	assert.Empty(t, patch)
}

func TestManager_ValidatePatch(t *testing.T) {
	env := newTestEnv(t)

	result := env.manager.ValidatePatch("not a patch")
	assert.False(t, result.Valid)

	good := diff.Compute("a\n", "b\n", "f")
	result = env.manager.ValidatePatch(good)
	assert.True(t, result.Valid)
}

// =============================================================================
// Concurrency
// =============================================================================

func TestManager_ConcurrentApplyReject(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "contested.txt", "original\n")

	id, err := env.manager.Stage(env.path("contested.txt"), "new\n", "")
	require.NoError(t, err)

	type outcome struct {
		applied bool
		err     error
	}
	results := make(chan outcome, 2)
	go func() {
		_, err := env.manager.Apply(id)
		results <- outcome{applied: true, err: err}
	}()
	go func() {
		_, err := env.manager.Reject(id)
		results <- outcome{applied: false, err: err}
	}()

	a, b := <-results, <-results

	// exactly one of the two wins; the loser gets NotFoundError
	winners := 0
	for _, r := range []outcome{a, b} {
		if r.err == nil {
			winners++
			continue
		}
		var notFound *NotFoundError
		assert.ErrorAs(t, r.err, &notFound)
	}
	assert.Equal(t, 1, winners)

	content := env.read(t, "contested.txt")
	if a.err == nil && a.applied || b.err == nil && b.applied {
		assert.Equal(t, "new\n", content)
	} else {
		assert.Equal(t, "original\n", content)
	}
}

func TestManager_ConcurrentStaging(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "busy.txt", "base\n")

	const n = 8
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			id, err := env.manager.Stage(env.path("busy.txt"),
				strings.Repeat("x", i+1)+"\n", "")
			if err != nil {
				t.Errorf("Stage() error = %v", err)
				ids <- ""
				return
			}
			ids <- id
		}(i)
	}

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		id := <-ids
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, env.manager.Store().Pending(), n)
}
