// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands defines the voxelforge command tree.
package commands

import (
	"github.com/voxelforge/voxelforge/cmd/voxelforge/cli"
)

// Root returns the root command of the voxelforge CLI.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "voxelforge",
		Summary: "Convert chunked volume datasets between precomputed and zarr formats",
		Description: "voxelforge converts multiscale volume images between the\n" +
			"Neuroglancer precomputed format and OME-NGFF zarr (v2 read, v3\n" +
			"sharded write), and verifies converted datasets against their\n" +
			"stored manifests.",
		Subcommands: []*cli.Command{
			infoCommand(),
			convertCommand(),
			verifyCommand(),
			versionCommand(),
		},
	}
}
