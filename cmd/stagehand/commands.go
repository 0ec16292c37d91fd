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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/stagehand/change"
	"github.com/AleutianAI/stagehand/config"
	"github.com/AleutianAI/stagehand/pkg/logging"
	"github.com/AleutianAI/stagehand/sandbox"
)

// --- Global Command Variables ---
var (
	configPath string
	allowDirs  string // CLI override for allowed_dirs (comma-separated or JSON array)
	stateDir   string
	logLevel   string
	quiet      bool

	cfg     *config.Config
	logger  *logging.Logger
	manager *change.Manager

	rootCmd = &cobra.Command{
		Use:   "stagehand",
		Short: "A cli to stage, review, and apply file changes safely",
		Long: `Stagehand manages file modifications as reviewable changes.
Edits are staged as unified diffs, previewed, then applied or rejected.
Every applied change keeps a reverse diff so it can be undone later.
All file access is restricted to an explicit directory allow-list.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupApp,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	// --- Staged Change Lifecycle ---
	stageCmd = &cobra.Command{
		Use:   "stage [target-file]",
		Short: "Stage new content for a file as a pending change",
		Long: `Reads replacement content from --from (or stdin) and records a
pending change holding the forward and reverse diffs. Nothing is
written to the target until the change is applied.`,
		Args: cobra.ExactArgs(1),
		RunE: runStage, // Defined in cmd_change.go
	}
	pendingCmd = &cobra.Command{
		Use:   "pending",
		Short: "List staged changes awaiting review",
		Args:  cobra.NoArgs,
		RunE:  runPending, // Defined in cmd_change.go
	}
	appliedCmd = &cobra.Command{
		Use:   "applied",
		Short: "List applied changes that can still be undone",
		Args:  cobra.NoArgs,
		RunE:  runApplied, // Defined in cmd_change.go
	}
	previewCmd = &cobra.Command{
		Use:   "preview [change-id]",
		Short: "Show the diff a pending change would apply",
		Args:  cobra.ExactArgs(1),
		RunE:  runPreview, // Defined in cmd_change.go
	}
	applyCmd = &cobra.Command{
		Use:   "apply [change-id]",
		Short: "Write a pending change to disk (undo stays available)",
		Args:  cobra.ExactArgs(1),
		RunE:  runApply, // Defined in cmd_change.go
	}
	undoCmd = &cobra.Command{
		Use:   "undo [change-id]",
		Short: "Revert an applied change using its reverse diff",
		Args:  cobra.ExactArgs(1),
		RunE:  runUndo, // Defined in cmd_change.go
	}
	rejectCmd = &cobra.Command{
		Use:   "reject [change-id]",
		Short: "Discard a pending change without touching the file",
		Args:  cobra.ExactArgs(1),
		RunE:  runReject, // Defined in cmd_change.go
	}

	// --- Ad Hoc Patch Operations ---
	patchCmd = &cobra.Command{
		Use:   "patch",
		Short: "Work with unified diff patches directly",
	}
	patchApplyCmd = &cobra.Command{
		Use:   "apply [target-file] [patch-file]",
		Short: "Apply a unified diff patch to a file",
		Args:  cobra.ExactArgs(2),
		RunE:  runPatchApply, // Defined in cmd_patch.go
	}
	patchValidateCmd = &cobra.Command{
		Use:   "validate [patch-file]",
		Short: "Check a patch for structural problems without applying it",
		Args:  cobra.ExactArgs(1),
		RunE:  runPatchValidate, // Defined in cmd_patch.go
	}
	patchGenerateCmd = &cobra.Command{
		Use:   "generate [old-file] [new-file]",
		Short: "Compute a unified diff between two files",
		Args:  cobra.ExactArgs(2),
		RunE:  runPatchGenerate, // Defined in cmd_patch.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&allowDirs, "allow", "",
		"Directory allow-list (comma-separated or JSON array); defaults to the working directory")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "",
		"Directory for change records (default ~/.stagehand)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"Suppress log output on stderr")

	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(appliedCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(rejectCmd)

	patchCmd.AddCommand(patchApplyCmd)
	patchCmd.AddCommand(patchValidateCmd)
	patchCmd.AddCommand(patchGenerateCmd)
	rootCmd.AddCommand(patchCmd)
}

// setupApp loads configuration, applies CLI overrides, and wires the
// guard, store, and manager used by every subcommand.
func setupApp(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.Default()
	}

	if allowDirs != "" {
		dirs, err := config.ParseAllowedDirs(allowDirs)
		if err != nil {
			return fmt.Errorf("parse --allow: %w", err)
		}
		cfg.AllowedDirs = dirs
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger = logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		Service: "stagehand",
		Quiet:   quiet,
	})

	guard, err := sandbox.New(cfg.AllowedDirs)
	if err != nil {
		return fmt.Errorf("configure allow-list: %w", err)
	}

	store, err := change.NewStore(cfg.StateDir, logger)
	if err != nil {
		return fmt.Errorf("open change store: %w", err)
	}

	manager = change.NewManager(guard, store, logger)
	return nil
}
