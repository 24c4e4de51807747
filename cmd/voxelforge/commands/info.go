// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/voxelforge/voxelforge/cmd/voxelforge/cli"
	"github.com/voxelforge/voxelforge/lib/config"
)

func infoCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:    "info",
		Summary: "Describe a dataset's format, data type, and scales",
		Usage:   "voxelforge info <dataset> [flags]",
		Examples: []cli.Example{
			{
				Description: "Describe a local precomputed dataset",
				Command:     "voxelforge info /data/volumes/hippocampus",
			},
			{
				Description: "Describe a remote dataset",
				Command:     "voxelforge info https://example.org/data/hippocampus",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("info", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "config file path (default: $VOXELFORGE_CONFIG)")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one dataset argument, got %d", len(args))
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			acc, err := newAccessor(args[0], cfg.HTTP.Timeout)
			if err != nil {
				return err
			}
			_, info, format, err := openSource(ctx, acc)
			if err != nil {
				return err
			}

			fmt.Printf("format:       %s\n", format)
			fmt.Printf("type:         %s\n", info.Type)
			fmt.Printf("data type:    %s\n", info.DataType)
			fmt.Printf("channels:     %d\n", info.NumChannels)
			fmt.Printf("scales:       %d\n\n", len(info.Scales))

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "  KEY\tSIZE\tRESOLUTION (nm)\tCHUNKS\tENCODING")
			for i := range info.Scales {
				scale := &info.Scales[i]
				chunks := ""
				for _, chunkSize := range scale.ChunkSizes {
					if chunks != "" {
						chunks += " "
					}
					chunks += fmt.Sprintf("%dx%dx%d", chunkSize[0], chunkSize[1], chunkSize[2])
				}
				fmt.Fprintf(tw, "  %s\t%dx%dx%d\t%gx%gx%g\t%s\t%s\n",
					scale.Key,
					scale.Size[0], scale.Size[1], scale.Size[2],
					scale.Resolution[0], scale.Resolution[1], scale.Resolution[2],
					chunks, scale.Encoding)
			}
			return tw.Flush()
		},
	}
}

// loadConfig loads the configuration from an explicit path, or from
// $VOXELFORGE_CONFIG (falling back to defaults) when none is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
