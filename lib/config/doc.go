// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the
// voxelforge tool.
//
// Configuration is loaded from a single file specified by either the
// VOXELFORGE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search; without a file the
// defaults apply. Command-line flags override file values.
//
// Variable expansion is performed on the raw file before parsing:
// ${VAR} and ${VAR:-default} patterns are replaced from the
// environment.
//
// Key exports:
//
//   - [Config] -- conversion and HTTP settings
//   - [Default] -- returns a Config with the standard defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
