// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Empty(t, cfg.AllowedDirs)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, filepath.IsAbs(cfg.StateDir))
	assert.Equal(t, ".stagehand", filepath.Base(cfg.StateDir))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "allowed_dirs:\n" +
		"  - /srv/projects\n" +
		"  - relative/dir\n" +
		"state_dir: /var/lib/stagehand\n" +
		"log_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/stagehand", cfg.StateDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.Len(t, cfg.AllowedDirs, 2)
	assert.Equal(t, "/srv/projects", cfg.AllowedDirs[0])
	assert.True(t, filepath.IsAbs(cfg.AllowedDirs[1]), "relative entries are resolved")
}

func TestLoad_PartialOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	// unset keys keep their defaults
	assert.Equal(t, Default().StateDir, cfg.StateDir)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("allowed_dirs: {not: [valid"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestParseAllowedDirs(t *testing.T) {
	t.Run("json_array", func(t *testing.T) {
		dirs, err := ParseAllowedDirs(`["/a", "/b/c"]`)
		require.NoError(t, err)
		assert.Equal(t, []string{"/a", "/b/c"}, dirs)
	})

	t.Run("comma_separated", func(t *testing.T) {
		dirs, err := ParseAllowedDirs("/a, /b/c ,/d")
		require.NoError(t, err)
		assert.Equal(t, []string{"/a", "/b/c", "/d"}, dirs)
	})

	t.Run("single_dir", func(t *testing.T) {
		dirs, err := ParseAllowedDirs("/only")
		require.NoError(t, err)
		assert.Equal(t, []string{"/only"}, dirs)
	})

	t.Run("empty", func(t *testing.T) {
		dirs, err := ParseAllowedDirs("  ")
		require.NoError(t, err)
		assert.Nil(t, dirs)
	})

	t.Run("bad_json", func(t *testing.T) {
		_, err := ParseAllowedDirs(`["/a",`)
		assert.Error(t, err)
	})

	t.Run("relative_resolved", func(t *testing.T) {
		dirs, err := ParseAllowedDirs("some/dir")
		require.NoError(t, err)
		require.Len(t, dirs, 1)
		assert.True(t, filepath.IsAbs(dirs[0]))
	})
}
