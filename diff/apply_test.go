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
	"errors"
	"strings"
	"testing"
)

func TestApply_Basic(t *testing.T) {
	content := "one\ntwo\nthree\n"
	patch := "--- a/f.txt\n" +
		"+++ b/f.txt\n" +
		"@@ -1,3 +1,3 @@\n" +
		" one\n" +
		"-two\n" +
		"+TWO\n" +
		" three\n"

	got, err := Apply(content, patch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if want := "one\nTWO\nthree\n"; got != want {
		t.Errorf("Apply() = %q, want %q", got, want)
	}
}

func TestApply_EmptyPatch(t *testing.T) {
	content := "one\ntwo\nthree\n"

	for _, patch := range []string{"", "\n", "  \n\t\n"} {
		got, err := Apply(content, patch)
		if err != nil {
			t.Fatalf("Apply(%q) error = %v", patch, err)
		}
		if got != content {
			t.Errorf("Apply(%q) = %q, want content unchanged", patch, got)
		}
	}

	// Compute returns "" for identical contents; applying that result
	// must round-trip back to the same content.
	got, err := Apply(content, Compute(content, content, "f.txt"))
	if err != nil {
		t.Fatalf("Apply(Compute(a, a)) error = %v", err)
	}
	if got != content {
		t.Errorf("Apply(Compute(a, a)) = %q, want %q", got, content)
	}
}

func TestApply_Conflict(t *testing.T) {
	content := "one\nDRIFTED\nthree\n"
	patch := "--- a/f.txt\n" +
		"+++ b/f.txt\n" +
		"@@ -1,3 +1,3 @@\n" +
		" one\n" +
		"-two\n" +
		"+TWO\n" +
		" three\n"

	got, err := Apply(content, patch)
	if err == nil {
		t.Fatal("Apply() succeeded on drifted content")
	}

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error type = %T, want *ConflictError", err)
	}
	if conflict.Hunk != 1 {
		t.Errorf("ConflictError.Hunk = %d, want 1", conflict.Hunk)
	}
	if got != content {
		t.Errorf("content modified on conflict: %q", got)
	}
	if !strings.Contains(err.Error(), "content has changed") {
		t.Errorf("error message missing drift explanation: %v", err)
	}
}

func TestApply_MultipleHunksWithOffset(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "l"+string(rune('a'+i)))
	}
	old := strings.Join(lines, "\n")

	modified := append([]string{}, lines...)
	modified[1] = "CHANGED-1"
	// grow the file before the second change so later hunks need offsets
	modified = append(modified[:3], append([]string{"inserted-a", "inserted-b"}, modified[3:]...)...)
	modified[18] = "CHANGED-2"
	new := strings.Join(modified, "\n")

	patch := Compute(old, new, "f")
	got, err := Apply(old, patch)
	if err != nil {
		t.Fatalf("Apply() error = %v\npatch:\n%s", err, patch)
	}
	if got != new {
		t.Errorf("Apply() = %q, want %q", got, new)
	}
}

func TestApply_FuzzOffset(t *testing.T) {
	// Patch claims line 2 but the real location is line 5 after three
	// lines were prepended since the patch was generated.
	content := "p1\np2\np3\none\ntwo\nthree\n"
	patch := "--- a/f.txt\n" +
		"+++ b/f.txt\n" +
		"@@ -1,3 +1,3 @@\n" +
		" one\n" +
		"-two\n" +
		"+TWO\n" +
		" three\n"

	got, err := Apply(content, patch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if want := "p1\np2\np3\none\nTWO\nthree\n"; got != want {
		t.Errorf("Apply() = %q, want %q", got, want)
	}
}

func TestApply_FuzzLimit(t *testing.T) {
	var filler []string
	for i := 0; i < maxFuzzOffset+10; i++ {
		filler = append(filler, "filler")
	}
	content := strings.Join(filler, "\n") + "\none\ntwo\nthree\n"
	patch := "--- a/f.txt\n" +
		"+++ b/f.txt\n" +
		"@@ -1,3 +1,3 @@\n" +
		" one\n" +
		"-two\n" +
		"+TWO\n" +
		" three\n"

	if _, err := Apply(content, patch); err == nil {
		t.Error("Apply() found a match beyond the fuzz limit")
	}
}

func TestApply_Insertion(t *testing.T) {
	// "-2,0" means insert after line 2 without consuming old lines.
	content := "a\nb\nc\n"
	patch := "--- a/f.txt\n" +
		"+++ b/f.txt\n" +
		"@@ -2,0 +3,2 @@\n" +
		"+x\n" +
		"+y\n"

	got, err := Apply(content, patch)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if want := "a\nb\nx\ny\nc\n"; got != want {
		t.Errorf("Apply() = %q, want %q", got, want)
	}
}

func TestApply_MultiFileRejected(t *testing.T) {
	patch := "--- a/one.txt\n" +
		"+++ b/one.txt\n" +
		"@@ -1,1 +1,1 @@\n" +
		"-a\n" +
		"+b\n" +
		"--- a/two.txt\n" +
		"+++ b/two.txt\n" +
		"@@ -1,1 +1,1 @@\n" +
		"-c\n" +
		"+d\n"

	_, err := Apply("a\n", patch)
	if err == nil {
		t.Fatal("Apply() accepted a multi-file patch")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
}

func TestApply_NotAPatch(t *testing.T) {
	content := "keep me\n"
	got, err := Apply(content, "this is not a diff at all")
	if err == nil {
		t.Fatal("Apply() accepted non-diff text")
	}
	if got != content {
		t.Errorf("content modified on parse failure: %q", got)
	}
}

func TestApplyPatch_EmptyHunks(t *testing.T) {
	outcome := ApplyPatch("content\n", &FilePatch{OldName: "a/f", NewName: "b/f"})
	if !outcome.Success {
		t.Error("ApplyPatch() with no hunks should succeed")
	}
	if outcome.Content != "content\n" {
		t.Errorf("Content = %q, want unchanged", outcome.Content)
	}
	if len(outcome.Warnings) == 0 {
		t.Error("expected a no-hunks warning")
	}
}

func TestApplyPatch_Outcome(t *testing.T) {
	patch := Compute("a\nb\nc\n", "a\nB\nc\n", "f")
	patches, err := Parse(patch)
	if err != nil {
		t.Fatal(err)
	}

	outcome := ApplyPatch("a\nb\nc\n", patches[0])
	if !outcome.Success {
		t.Fatalf("ApplyPatch() failed: %v", outcome.Errors)
	}
	if outcome.HunksApplied != outcome.HunksTotal || outcome.HunksTotal != 1 {
		t.Errorf("hunks %d/%d, want 1/1", outcome.HunksApplied, outcome.HunksTotal)
	}
	if outcome.Content != "a\nB\nc\n" {
		t.Errorf("Content = %q", outcome.Content)
	}
}

func TestApplyPatch_ConflictOutcome(t *testing.T) {
	patch := Compute("a\nb\nc\n", "a\nB\nc\n", "f")
	patches, err := Parse(patch)
	if err != nil {
		t.Fatal(err)
	}

	outcome := ApplyPatch("completely\ndifferent\nnow\n", patches[0])
	if outcome.Success {
		t.Fatal("ApplyPatch() succeeded on drifted content")
	}
	if outcome.HunksApplied != 0 {
		t.Errorf("HunksApplied = %d, want 0 (all-or-nothing)", outcome.HunksApplied)
	}
	if len(outcome.Errors) == 0 {
		t.Error("expected a conflict error in Outcome.Errors")
	}
}
