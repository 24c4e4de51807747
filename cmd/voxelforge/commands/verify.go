// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/voxelforge/voxelforge/cmd/voxelforge/cli"
	"github.com/voxelforge/voxelforge/lib/accessor"
	"github.com/voxelforge/voxelforge/lib/config"
	"github.com/voxelforge/voxelforge/lib/mirror"
	"github.com/voxelforge/voxelforge/lib/progress"
	"github.com/voxelforge/voxelforge/lib/zarr3"
)

func verifyCommand() *cli.Command {
	var (
		configPath string
		workers    int
		sourceRef  string
	)
	var flags *pflag.FlagSet

	return &cli.Command{
		Name:    "verify",
		Summary: "Verify a converted dataset against its manifest",
		Description: "Verify fetches every blob recorded in the dataset's manifest and\n" +
			"checks its BLAKE3 hash. With --source, it additionally re-reads every\n" +
			"chunk from both datasets and compares the decoded samples.\n\n" +
			"Exits 1 when the dataset is missing blobs or corrupted.",
		Usage: "voxelforge verify <dataset> [flags]",
		Examples: []cli.Example{
			{
				Description: "Check manifest hashes",
				Command:     "voxelforge verify /data/zarr/hippocampus",
			},
			{
				Description: "Compare samples against the original",
				Command:     "voxelforge verify /data/zarr/hippocampus --source /data/volumes/hippocampus",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags = pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "config file path (default: $VOXELFORGE_CONFIG)")
			flags.IntVar(&workers, "workers", 0, "concurrent fetch workers (0 = one per CPU)")
			flags.StringVar(&sourceRef, "source", "", "original dataset to compare samples against")
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
			if flags.Changed("workers") {
				cfg.Convert.Workers = workers
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			acc, err := newAccessor(args[0], cfg.HTTP.Timeout)
			if err != nil {
				return err
			}
			logger := cli.NewCommandLogger().With("command", "verify")
			reporter := progress.New(logger)

			result, err := mirror.Verify(ctx, acc, cfg.Convert.Workers, reporter)
			if err != nil {
				return err
			}
			logger.Info("manifest checked",
				"blobs", result.Blobs,
				"bytes", result.Bytes,
				"missing", len(result.Missing),
				"mismatched", len(result.Mismatched))
			if !result.OK() {
				for _, name := range result.Missing {
					fmt.Fprintf(os.Stderr, "missing: %s\n", name)
				}
				for _, name := range result.Mismatched {
					fmt.Fprintf(os.Stderr, "corrupted: %s\n", name)
				}
				return &cli.ExitError{Code: 1}
			}

			if sourceRef == "" {
				return nil
			}
			return compareAgainstSource(ctx, cfg, sourceRef, acc, reporter)
		},
	}
}

// compareAgainstSource re-reads every chunk from the original dataset
// and the converted one and compares the decoded samples.
func compareAgainstSource(ctx context.Context, cfg *config.Config, sourceRef string, destAcc accessor.Accessor, reporter progress.Reporter) error {
	sourceAcc, err := newAccessor(sourceRef, cfg.HTTP.Timeout)
	if err != nil {
		return err
	}
	source, _, _, err := openSource(ctx, sourceAcc)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}

	dest, err := zarr3.Open(ctx, destAcc)
	if err != nil {
		return fmt.Errorf("opening converted dataset: %w", err)
	}
	info, err := dest.Info()
	if err != nil {
		return err
	}

	shapes := make(map[string][3]int)
	for _, path := range dest.Datasets() {
		shape, err := dest.ReadShape(path)
		if err != nil {
			return err
		}
		shapes[path] = shape
	}

	if err := mirror.CompareData(ctx, source, dest, info, shapes, reporter); err != nil {
		fmt.Fprintf(os.Stderr, "sample comparison failed: %v\n", err)
		return &cli.ExitError{Code: 1}
	}
	return nil
}
