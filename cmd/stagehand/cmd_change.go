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
	"io"
	"os"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	stageFrom        string // File holding the replacement content; "-" or empty reads stdin
	stageDescription string // Short description recorded with the change
)

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	stageCmd.Flags().StringVar(&stageFrom, "from", "",
		"Read replacement content from this file instead of stdin")
	stageCmd.Flags().StringVarP(&stageDescription, "message", "m", "",
		"Description recorded with the change")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runStage stages replacement content for the target file.
//
// # Description
//
// Reads the full replacement content from --from (or stdin), diffs it
// against the current file content, and records a pending change. The
// target file is not modified.
//
// # Inputs
//
//   - args[0]: target file path (must be inside the allow-list)
//
// # Outputs
//
// Prints the new change id to stdout.
func runStage(cmd *cobra.Command, args []string) error {
	content, err := readStageContent()
	if err != nil {
		return err
	}

	id, err := manager.Stage(args[0], content, stageDescription)
	if err != nil {
		return err
	}

	fmt.Printf("Staged change %s for %s (use 'stagehand preview %s' to review)\n",
		id, args[0], id)
	return nil
}

func runPending(cmd *cobra.Command, args []string) error {
	fmt.Print(manager.ListPending())
	return nil
}

func runApplied(cmd *cobra.Command, args []string) error {
	fmt.Print(manager.ListApplied())
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	diffText, err := manager.Preview(args[0])
	if err != nil {
		return err
	}
	fmt.Print(diffText)
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	msg, err := manager.Apply(args[0])
	if err != nil {
		return err
	}
	fmt.Print(msg)
	return nil
}

func runUndo(cmd *cobra.Command, args []string) error {
	msg, err := manager.Undo(args[0])
	if err != nil {
		return err
	}
	fmt.Print(msg)
	return nil
}

func runReject(cmd *cobra.Command, args []string) error {
	msg, err := manager.Reject(args[0])
	if err != nil {
		return err
	}
	fmt.Print(msg)
	return nil
}

// readStageContent returns the staged replacement content from the
// --from file, or stdin when --from is empty or "-".
func readStageContent() (string, error) {
	if stageFrom != "" && stageFrom != "-" {
		data, err := os.ReadFile(stageFrom)
		if err != nil {
			return "", fmt.Errorf("read --from file: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
