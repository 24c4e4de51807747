// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/voxelforge/voxelforge/cmd/voxelforge/cli"
	"github.com/voxelforge/voxelforge/lib/version"
)

func versionCommand() *cli.Command {
	var full bool

	return &cli.Command{
		Name:    "version",
		Summary: "Print the voxelforge version",
		Usage:   "voxelforge version [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flags.BoolVar(&full, "full", false, "include Go version and platform")
			return flags
		},
		Run: func(args []string) error {
			if full {
				fmt.Println(version.Full())
			} else {
				fmt.Println(version.Info())
			}
			return nil
		},
	}
}
