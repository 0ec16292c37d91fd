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
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// Parse Errors
// =============================================================================

// ParseError indicates patch text with no recognizable diff structure
// or a malformed header.
type ParseError struct {
	// Line is the 1-based line number in the patch text, 0 when the
	// problem is the document as a whole.
	Line int

	// Message describes the problem.
	Message string
}

// Error returns the parse failure message.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid patch at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("invalid patch: %s", e.Message)
}

// hunkHeaderRegex matches hunk headers like "@@ -1,5 +1,7 @@ func name".
// Counts are optional ("-3 +3" means one line each). Negative starts are
// accepted here so validation can flag them instead of losing the hunk.
var hunkHeaderRegex = regexp.MustCompile(`^@@ -(-?\d+)(?:,(\d+))? \+(-?\d+)(?:,(\d+))? @@(.*)$`)

// =============================================================================
// Parser
// =============================================================================

// Parse parses unified diff text into file patches.
//
// # Description
//
// Accepts both plain "diff -u" output and git diff output (the
// "diff --git", "index", and mode lines are skipped; "a/" and "b/"
// name prefixes are preserved in OldName/NewName for callers that
// want them). A *ParseError is returned when the text contains no
// ---/+++/@@ structure at all or a hunk header is malformed.
//
// # Inputs
//
//   - patchText: The unified diff text.
//
// # Outputs
//
//   - []*FilePatch: One entry per file section, in input order.
//   - error: *ParseError on malformed input.
func Parse(patchText string) ([]*FilePatch, error) {
	var patches []*FilePatch
	var current *FilePatch
	var hunk *Hunk
	var oldLeft, newLeft int

	sawStructure := false
	lineNo := 0

	closeHunk := func() {
		if current != nil && hunk != nil {
			current.Hunks = append(current.Hunks, hunk)
		}
		hunk = nil
	}
	closeFile := func() {
		closeHunk()
		if current != nil {
			patches = append(patches, current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(patchText))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		lineNo++

		// While the current hunk still owes lines per its header counts,
		// everything classifiable is body. This keeps removed lines that
		// begin with "--" from being mistaken for a file header.
		if hunk != nil && (oldLeft > 0 || newLeft > 0) {
			if strings.HasPrefix(line, `\ No newline`) {
				continue
			}
			if l, ok := parseBodyLine(line); ok {
				hunk.Lines = append(hunk.Lines, l)
				switch l.Type {
				case LineContext:
					oldLeft--
					newLeft--
				case LineRemoved:
					oldLeft--
				case LineAdded:
					newLeft--
				}
				continue
			}
		}

		switch {
		case strings.HasPrefix(line, "diff "):
			closeFile()

		case strings.HasPrefix(line, "index ") && hunk == nil,
			strings.HasPrefix(line, "new file mode") && hunk == nil,
			strings.HasPrefix(line, "deleted file mode") && hunk == nil,
			strings.HasPrefix(line, "similarity index") && hunk == nil:
			// git metadata between the diff line and the headers

		case strings.HasPrefix(line, "--- "):
			sawStructure = true
			// "---" after hunks starts the next file section
			if current != nil && (len(current.Hunks) > 0 || hunk != nil) {
				closeFile()
			}
			if current == nil {
				current = &FilePatch{}
			}
			current.OldName = parseHeaderName(line[4:])

		case strings.HasPrefix(line, "+++ "):
			sawStructure = true
			if current == nil {
				current = &FilePatch{}
			}
			current.NewName = parseHeaderName(line[4:])

		case strings.HasPrefix(line, "@@"):
			sawStructure = true
			closeHunk()
			parsed, err := parseHunkHeader(line)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Message: err.Error()}
			}
			if current == nil {
				current = &FilePatch{}
			}
			hunk = parsed
			oldLeft, newLeft = max(hunk.OldCount, 0), max(hunk.NewCount, 0)

		case strings.HasPrefix(line, `\ No newline`):
			// marker only; content fidelity is the caller's concern

		case hunk != nil:
			l, ok := parseBodyLine(line)
			if !ok {
				// diff context ended; anything else closes the hunk
				closeHunk()
				continue
			}
			hunk.Lines = append(hunk.Lines, l)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("reading patch: %v", err)}
	}

	closeFile()

	if !sawStructure {
		return nil, &ParseError{Message: "no ---/+++/@@ diff structure found"}
	}

	return patches, nil
}

// parseHeaderName extracts the filename from a ---/+++ header payload,
// dropping an old-style timestamp suffix.
func parseHeaderName(s string) string {
	if idx := strings.IndexByte(s, '\t'); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// parseHunkHeader parses one @@ header line.
func parseHunkHeader(line string) (*Hunk, error) {
	matches := hunkHeaderRegex.FindStringSubmatch(line)
	if matches == nil {
		return nil, fmt.Errorf("malformed hunk header %q", line)
	}

	hunk := &Hunk{OldCount: 1, NewCount: 1}

	hunk.OldStart, _ = strconv.Atoi(matches[1])
	if matches[2] != "" {
		hunk.OldCount, _ = strconv.Atoi(matches[2])
	}
	hunk.NewStart, _ = strconv.Atoi(matches[3])
	if matches[4] != "" {
		hunk.NewCount, _ = strconv.Atoi(matches[4])
	}

	return hunk, nil
}

// parseBodyLine classifies one hunk body line.
func parseBodyLine(line string) (Line, bool) {
	if line == "" {
		// some tools strip trailing whitespace from empty context lines
		return Line{Type: LineContext, Content: ""}, true
	}
	switch line[0] {
	case '+':
		return Line{Type: LineAdded, Content: line[1:]}, true
	case '-':
		return Line{Type: LineRemoved, Content: line[1:]}, true
	case ' ':
		return Line{Type: LineContext, Content: line[1:]}, true
	default:
		return Line{}, false
	}
}
