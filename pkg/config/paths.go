// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetMeshDataDir returns the query mesh data directory.
//
// Priority:
// 1. MESH_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.loomquery (default)
//
// The returned path is always absolute. Tilde (~) in MESH_DATA_DIR is expanded to the user's home directory.
// Relative paths in MESH_DATA_DIR are converted to absolute paths.
//
// This function is called during bootstrap (before config file is loaded) to locate the config file itself.
// After config is loaded, use config.DataDir for consistency.
//
// Examples:
//
//	MESH_DATA_DIR=/custom/loom        -> /custom/loom
//	MESH_DATA_DIR=~/my-loom           -> /home/user/my-loom
//	MESH_DATA_DIR=relative/path       -> /current/dir/relative/path
//	MESH_DATA_DIR not set             -> /home/user/.loomquery
//
// Note: This function reads directly from os.Getenv(), not from viper, to avoid
// circular dependency during config initialization.
func GetMeshDataDir() string {
	// Check environment variable first
	if dataDir := os.Getenv("MESH_DATA_DIR"); dataDir != "" {
		return expandPath(dataDir)
	}

	// Fall back to ~/.loomquery
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir cannot be determined
		return ".loomquery"
	}
	return filepath.Join(homeDir, ".loomquery")
}

// GetMeshSandboxDir returns the agent execution sandbox directory.
//
// Priority:
// 1. MESH_SANDBOX_DIR environment variable (if set and non-empty)
// 2. MESH_DATA_DIR (default)
//
// This directory is where shell_execute runs commands by default.
// It is separate from MESH_DATA_DIR (which stores internal loom data like databases, artifacts, and configs).
//
// The returned path is always absolute. Tilde (~) in MESH_SANDBOX_DIR is expanded to the user's home directory.
//
// Examples:
//
//	MESH_SANDBOX_DIR=/project/myapp    -> /project/myapp
//	MESH_SANDBOX_DIR=~/workspace       -> /home/user/workspace
//	MESH_SANDBOX_DIR not set           -> /home/user/.loomquery (MESH_DATA_DIR)
//
// Note: This provides clear separation of concerns:
//   - MESH_DATA_DIR: Internal loom data (databases, artifacts, configs)
//   - MESH_SANDBOX_DIR: Agent execution context (where shell commands run)
func GetMeshSandboxDir() string {
	// Check environment variable first
	if sandboxDir := os.Getenv("MESH_SANDBOX_DIR"); sandboxDir != "" {
		return expandPath(sandboxDir)
	}

	// Default to MESH_DATA_DIR (changed from cwd)
	return GetMeshDataDir()
}

// GetMeshSubDir returns a subdirectory within the query mesh data directory.
// Example: GetMeshSubDir("agents") returns ~/.loomquery/agents
func GetMeshSubDir(subdir string) string {
	return filepath.Join(GetMeshDataDir(), subdir)
}

// expandPath expands ~ and resolves to absolute path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path // Return as-is if we can't get home dir
		}
		return filepath.Join(homeDir, path[2:])
	}

	// Make path absolute
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path // Return as-is if we can't make it absolute
	}
	return absPath
}
