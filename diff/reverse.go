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

// Reverse derives the inverse of a patch without recomputing a diff.
//
// # Description
//
// Swaps the added/removed role of every line and the old/new sides of
// every header, so that applying the result to the patched content
// reproduces the original exactly.
//
// # Inputs
//
//   - patchText: Unified diff text to invert.
//
// # Outputs
//
//   - string: The inverse patch.
//   - error: *ParseError when patchText is malformed.
func Reverse(patchText string) (string, error) {
	patches, err := Parse(patchText)
	if err != nil {
		return "", err
	}

	reversed := make([]*FilePatch, 0, len(patches))
	for _, p := range patches {
		reversed = append(reversed, reverseFilePatch(p))
	}

	return Render(reversed), nil
}

// reverseFilePatch swaps every old/new role in one file patch.
func reverseFilePatch(p *FilePatch) *FilePatch {
	out := &FilePatch{
		OldName: p.NewName,
		NewName: p.OldName,
		Hunks:   make([]*Hunk, 0, len(p.Hunks)),
	}

	for _, h := range p.Hunks {
		rh := &Hunk{
			OldStart: h.NewStart,
			OldCount: h.NewCount,
			NewStart: h.OldStart,
			NewCount: h.OldCount,
			Lines:    make([]Line, 0, len(h.Lines)),
		}
		for _, line := range h.Lines {
			switch line.Type {
			case LineAdded:
				rh.Lines = append(rh.Lines, Line{Type: LineRemoved, Content: line.Content})
			case LineRemoved:
				rh.Lines = append(rh.Lines, Line{Type: LineAdded, Content: line.Content})
			default:
				rh.Lines = append(rh.Lines, line)
			}
		}
		out.Hunks = append(out.Hunks, rh)
	}

	return out
}
