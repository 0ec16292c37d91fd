// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds process configuration for the change engine.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration, fixed after startup.
type Config struct {
	// AllowedDirs is the directory allow-list. Empty means the working
	// directory only.
	AllowedDirs []string `yaml:"allowed_dirs"`

	// StateDir is where pending/applied records are mirrored.
	StateDir string `yaml:"state_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		StateDir: filepath.Join(homeDir(), ".stagehand"),
		LogLevel: "info",
	}
}

// Load reads a YAML config file and overlays it on the defaults.
//
// # Inputs
//
//   - path: Config file path.
//
// # Outputs
//
//   - *Config: Merged configuration.
//   - error: Non-nil when the file is missing or malformed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.AllowedDirs = resolveDirs(cfg.AllowedDirs)
	return cfg, nil
}

// ParseAllowedDirs parses an allow-list value.
//
// # Description
//
// Accepts either a JSON array literal (`["/a", "/b"]`) or a
// comma-separated string (`/a,/b`). Relative entries are resolved
// against the working directory. An empty value yields an empty list,
// which downstream defaults to the working directory.
func ParseAllowedDirs(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var dirs []string
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &dirs); err != nil {
			return nil, fmt.Errorf("parsing allow-list %q as JSON array: %w", s, err)
		}
	} else {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				dirs = append(dirs, part)
			}
		}
	}

	return resolveDirs(dirs), nil
}

// resolveDirs makes every entry absolute against the working directory.
func resolveDirs(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if abs, err := filepath.Abs(dir); err == nil {
			out = append(out, abs)
		} else {
			out = append(out, dir)
		}
	}
	return out
}

// homeDir returns the user home, falling back to the working directory.
func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	wd, _ := os.Getwd()
	return wd
}
