// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	patchDryRun bool   // Report what would change without writing
	patchOutput string // File to write the generated patch to; empty means stdout
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	patchApplyCmd.Flags().BoolVar(&patchDryRun, "dry-run", false,
		"Analyze the patch against the file without writing anything")
	patchGenerateCmd.Flags().StringVarP(&patchOutput, "output", "o", "",
		"Write the generated patch to this file instead of stdout")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runPatchApply applies a unified diff patch to a single file.
//
// # Description
//
// Loads the patch text and applies it to the target with drift
// detection. With --dry-run, prints the patch analysis instead of
// writing. A partial failure leaves the file untouched.
//
// # Inputs
//
//   - args[0]: target file path (must be inside the allow-list)
//   - args[1]: patch file path
func runPatchApply(cmd *cobra.Command, args []string) error {
	patchText, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read patch file: %w", err)
	}

	outcome, err := manager.ApplyPatchFile(args[0], string(patchText), patchDryRun)
	if err != nil {
		return err
	}

	for _, w := range outcome.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	if !outcome.Success {
		for _, e := range outcome.Errors {
			fmt.Fprintf(os.Stderr, "Error: %s\n", e)
		}
		return fmt.Errorf("applied %d of %d hunks", outcome.HunksApplied, outcome.HunksTotal)
	}

	if patchDryRun {
		fmt.Print(outcome.Content)
		fmt.Printf("Dry run: %d/%d hunks would apply cleanly.\n",
			outcome.HunksApplied, outcome.HunksTotal)
		return nil
	}

	fmt.Printf("Applied %d/%d hunks to %s\n",
		outcome.HunksApplied, outcome.HunksTotal, args[0])
	return nil
}

// runPatchValidate reports structural problems in a patch file.
func runPatchValidate(cmd *cobra.Command, args []string) error {
	patchText, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read patch file: %w", err)
	}

	result := manager.ValidatePatch(string(patchText))

	for _, w := range result.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	for _, e := range result.Errors {
		fmt.Printf("Error: %s\n", e)
	}

	if !result.Valid {
		return fmt.Errorf("patch is invalid")
	}

	fmt.Printf("Patch OK: %d file(s), %d hunk(s), +%d -%d\n",
		result.Stats.FilesAffected, result.Stats.Hunks,
		result.Stats.LinesAdded, result.Stats.LinesRemoved)
	return nil
}

// runPatchGenerate computes a unified diff between two files.
func runPatchGenerate(cmd *cobra.Command, args []string) error {
	patchText, err := manager.GeneratePatch(args[0], args[1])
	if err != nil {
		return err
	}

	if patchText == "" {
		fmt.Println("Files are identical.")
		return nil
	}

	if patchOutput != "" {
		if err := os.WriteFile(patchOutput, []byte(patchText), 0644); err != nil {
			return fmt.Errorf("write patch file: %w", err)
		}
		fmt.Printf("Wrote patch to %s\n", patchOutput)
		return nil
	}

	fmt.Print(patchText)
	return nil
}
