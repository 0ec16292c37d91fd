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
	"strings"
)

// =============================================================================
// Diff Computation
// =============================================================================

// Compute produces a unified diff between two content strings.
//
// # Description
//
// Standard unified diff with ContextLines lines of context. The file
// headers are derived from label as "--- a/<label>" and "+++ b/<label>".
// Returns the empty string when the contents are identical.
//
// # Inputs
//
//   - oldContent: The original content.
//   - newContent: The proposed content.
//   - label: Filename used in both headers.
//
// # Outputs
//
//   - string: Unified diff text, "" when there is nothing to change.
func Compute(oldContent, newContent, label string) string {
	return ComputeLabeled(oldContent, newContent, "a/"+label, "b/"+label)
}

// ComputeLabeled is Compute with explicit old and new header labels.
func ComputeLabeled(oldContent, newContent, oldLabel, newLabel string) string {
	if oldContent == newContent {
		return ""
	}

	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")

	hunks := buildHunks(computeScript(oldLines, newLines), oldLines, newLines)
	if len(hunks) == 0 {
		return ""
	}

	patch := &FilePatch{OldName: oldLabel, NewName: newLabel, Hunks: hunks}
	return patch.Text()
}

// =============================================================================
// Edit Script
// =============================================================================

type editOp int

const (
	opEqual editOp = iota
	opDelete
	opInsert
)

// edit is one step of the line-level edit script. a and b index into the
// old and new line slices; for opInsert, a is the number of old lines
// preceding the insertion.
type edit struct {
	op   editOp
	a, b int
}

// computeScript returns the full LCS edit script, equal lines included.
// Common prefix and suffix lines are matched before the LCS backtracker
// runs: on repeated content the backtracker's tie-breaking would
// otherwise scatter one logical change across distant hunks.
func computeScript(oldLines, newLines []string) []edit {
	prefix := 0
	for prefix < len(oldLines) && prefix < len(newLines) &&
		oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldLines)-prefix && suffix < len(newLines)-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	script := make([]edit, 0, len(oldLines)+len(newLines))
	for i := 0; i < prefix; i++ {
		script = append(script, edit{op: opEqual, a: i, b: i})
	}
	script = append(script, lcsScript(
		oldLines[prefix:len(oldLines)-suffix],
		newLines[prefix:len(newLines)-suffix],
		prefix)...)
	for k := suffix; k > 0; k-- {
		script = append(script, edit{op: opEqual, a: len(oldLines) - k, b: len(newLines) - k})
	}
	return script
}

// lcsScript backtracks an LCS table over a window of the line slices.
// offset shifts the emitted a and b indices back into full-slice terms;
// the window always starts at the same position on both sides because
// the caller trimmed an equal prefix.
func lcsScript(oldLines, newLines []string, offset int) []edit {
	m, n := len(oldLines), len(newLines)

	lcs := make([][]int, m+1)
	for i := range lcs {
		lcs[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if oldLines[i-1] == newLines[j-1] {
				lcs[i][j] = lcs[i-1][j-1] + 1
			} else if lcs[i-1][j] >= lcs[i][j-1] {
				lcs[i][j] = lcs[i-1][j]
			} else {
				lcs[i][j] = lcs[i][j-1]
			}
		}
	}

	script := make([]edit, 0, m+n)
	i, j := m, n
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && oldLines[i-1] == newLines[j-1]:
			script = append(script, edit{op: opEqual, a: i - 1 + offset, b: j - 1 + offset})
			i--
			j--
		case j > 0 && (i == 0 || lcs[i][j-1] >= lcs[i-1][j]):
			script = append(script, edit{op: opInsert, a: i + offset, b: j - 1 + offset})
			j--
		default:
			script = append(script, edit{op: opDelete, a: i - 1 + offset, b: j + offset})
			i--
		}
	}

	// backtracking built the script in reverse
	for l, r := 0, len(script)-1; l < r; l, r = l+1, r-1 {
		script[l], script[r] = script[r], script[l]
	}
	return script
}

// =============================================================================
// Hunk Grouping
// =============================================================================

// buildHunks groups the edit script into hunks with surrounding context.
// Changes separated by more than 2*ContextLines unchanged lines open a
// new hunk.
func buildHunks(script []edit, oldLines, newLines []string) []*Hunk {
	// Locate change clusters by script index.
	type cluster struct{ first, last int }
	var clusters []cluster

	idx := 0
	for idx < len(script) {
		if script[idx].op == opEqual {
			idx++
			continue
		}
		c := cluster{first: idx, last: idx}
		run := 0
		for x := idx + 1; x < len(script); x++ {
			if script[x].op == opEqual {
				run++
				if run > 2*ContextLines {
					break
				}
				continue
			}
			c.last = x
			run = 0
		}
		clusters = append(clusters, c)
		idx = c.last + 1
	}

	hunks := make([]*Hunk, 0, len(clusters))
	for _, c := range clusters {
		start := c.first
		for start > 0 && c.first-start < ContextLines && script[start-1].op == opEqual {
			start--
		}
		end := c.last
		for end < len(script)-1 && end-c.last < ContextLines && script[end+1].op == opEqual {
			end++
		}

		hunk := &Hunk{}
		for _, e := range script[start : end+1] {
			switch e.op {
			case opEqual:
				hunk.Lines = append(hunk.Lines, Line{Type: LineContext, Content: oldLines[e.a]})
				hunk.OldCount++
				hunk.NewCount++
			case opDelete:
				hunk.Lines = append(hunk.Lines, Line{Type: LineRemoved, Content: oldLines[e.a]})
				hunk.OldCount++
			case opInsert:
				hunk.Lines = append(hunk.Lines, Line{Type: LineAdded, Content: newLines[e.b]})
				hunk.NewCount++
			}
		}

		hunk.OldStart, hunk.NewStart = hunkStarts(script[start], hunk.OldCount, hunk.NewCount)
		hunks = append(hunks, hunk)
	}

	return hunks
}

// hunkStarts derives the 1-based header start positions from the first
// edit of a hunk. Hunks that touch no line on one side use the unified
// convention of naming the preceding line on that side (0 at file start).
func hunkStarts(first edit, oldCount, newCount int) (oldStart, newStart int) {
	// first.a is the 0-based old index for ops that consume an old line
	// and the count of preceding old lines otherwise; either way the
	// hunk's first old line, when it has one, is first.a+1 in 1-based
	// terms. Same reasoning for first.b on the new side.
	oldStart = first.a
	if oldCount > 0 {
		oldStart = first.a + 1
	}
	newStart = first.b
	if newCount > 0 {
		newStart = first.b + 1
	}
	return oldStart, newStart
}
