// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/voxelforge/voxelforge/cmd/voxelforge/cli"
	"github.com/voxelforge/voxelforge/lib/mirror"
	"github.com/voxelforge/voxelforge/lib/progress"
	"github.com/voxelforge/voxelforge/lib/zarr3"
)

func convertCommand() *cli.Command {
	var (
		configPath  string
		workers     int
		gzipLevel   int
		shardFanout int
		noManifest  bool
		dryRun      bool
	)
	var flags *pflag.FlagSet

	return &cli.Command{
		Name:    "convert",
		Summary: "Convert a dataset to sharded zarr v3",
		Description: "Convert reads a precomputed or zarr dataset and writes a zarr v3\n" +
			"dataset with OME-NGFF metadata, sharded chunks, and a blob manifest\n" +
			"for later verification.",
		Usage: "voxelforge convert <source> <dest> [flags]",
		Examples: []cli.Example{
			{
				Description: "Convert a local precomputed dataset",
				Command:     "voxelforge convert /data/volumes/hippocampus /data/zarr/hippocampus",
			},
			{
				Description: "Convert a remote dataset with 8 workers",
				Command:     "voxelforge convert https://example.org/data/hippocampus ./hippocampus --workers 8",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags = pflag.NewFlagSet("convert", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "config file path (default: $VOXELFORGE_CONFIG)")
			flags.IntVar(&workers, "workers", 0, "concurrent shard workers (0 = one per CPU)")
			flags.IntVar(&gzipLevel, "gzip-level", 0, "chunk compression level 1-9 (0 = config default)")
			flags.IntVar(&shardFanout, "shard-fanout", 0, "max shards per axis (0 = config default)")
			flags.BoolVar(&noManifest, "no-manifest", false, "skip writing the blob manifest")
			flags.BoolVar(&dryRun, "dry-run", false, "print the conversion plan without writing")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected <source> and <dest> arguments, got %d", len(args))
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if flags.Changed("workers") {
				cfg.Convert.Workers = workers
			}
			if flags.Changed("gzip-level") {
				cfg.Convert.GzipLevel = gzipLevel
			}
			if flags.Changed("shard-fanout") {
				cfg.Convert.ShardFanout = shardFanout
			}
			writeManifest := *cfg.Convert.WriteManifest && !noManifest
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sourceAcc, err := newAccessor(args[0], cfg.HTTP.Timeout)
			if err != nil {
				return err
			}
			source, info, format, err := openSource(ctx, sourceAcc)
			if err != nil {
				return fmt.Errorf("opening source: %w", err)
			}

			group, arrays, err := zarr3.FromPrecomputedInfo(info, zarr3.ConvertOptions{
				ShardFanout: cfg.Convert.ShardFanout,
				GzipLevel:   cfg.Convert.GzipLevel,
			})
			if err != nil {
				return err
			}

			if dryRun {
				return printPlan(format, arrays, group)
			}

			destAcc, err := newAccessor(args[1], cfg.HTTP.Timeout)
			if err != nil {
				return err
			}
			if !destAcc.CanWrite() {
				return fmt.Errorf("destination %q is not writable", args[1])
			}
			dest, err := zarr3.Create(ctx, destAcc, group, arrays)
			if err != nil {
				return fmt.Errorf("creating destination: %w", err)
			}

			logger := cli.NewCommandLogger().With("command", "convert")
			logger.Info("converting",
				"source", args[0],
				"source_format", format,
				"dest", args[1],
				"scales", len(info.Scales),
				"workers", cfg.Convert.Workers)

			engine := mirror.New(source, info, dest, mirror.Options{
				Workers:       cfg.Convert.Workers,
				WriteManifest: writeManifest,
				Progress:      progress.New(logger),
				Logger:        logger,
			})
			manifest, err := engine.Run(ctx)
			if err != nil {
				return err
			}
			logger.Info("conversion complete", "blobs", manifest.Len())
			return nil
		},
	}
}

// printPlan writes the per-scale shard layout a conversion would use.
func printPlan(format string, arrays map[string]*zarr3.ArrayMetadata, group *zarr3.GroupMetadata) error {
	fmt.Printf("source format: %s\n\n", format)
	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "  SCALE\tSIZE\tSHARD\tINNER CHUNK")
	for _, dataset := range group.Attributes.OME.Multiscales[0].Datasets {
		meta := arrays[dataset.Path]
		shard := meta.ChunkShape()
		chain, err := zarr3.ParseChain(meta.Codecs)
		if err != nil {
			return err
		}
		inner := chain.Sharding.InnerShape()
		fmt.Fprintf(tw, "  %s\t%dx%dx%d\t%dx%dx%d\t%dx%dx%d\n",
			dataset.Path,
			meta.Shape[0], meta.Shape[1], meta.Shape[2],
			shard[0], shard[1], shard[2],
			inner[0], inner[1], inner[2])
	}
	return tw.Flush()
}
