// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/voxelforge/voxelforge/lib/precomputed"
	"github.com/voxelforge/voxelforge/lib/progress"
	"github.com/voxelforge/voxelforge/lib/voxel"
	"github.com/voxelforge/voxelforge/lib/zarr3"
)

// Source reads chunks of a multiscale volume. The precomputed and
// zarr stores both satisfy it. box must be one of the scale's
// grid-aligned chunk boxes, clamped at the volume bounds; missing
// chunks read as fill-value chunks.
type Source interface {
	ReadChunk(ctx context.Context, key string, box voxel.Box) (*voxel.Chunk, error)
}

// Options tunes a conversion run.
type Options struct {
	// Workers is the number of concurrent shard workers. Zero means
	// GOMAXPROCS.
	Workers int

	// WriteManifest stores the blob manifest in the destination after
	// all scales are converted.
	WriteManifest bool

	// Progress receives per-scale progress. Nil means no reporting.
	Progress progress.Reporter

	// Logger receives per-scale summaries. Nil means slog.Default.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Progress == nil {
		o.Progress = progress.Nop{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Engine mirrors a source volume into a zarr v3 destination, shard by
// shard.
type Engine struct {
	source Source
	info   *precomputed.Info
	dest   *zarr3.Store
	opts   Options
}

// New prepares a conversion of source (described by info) into dest.
// The destination metadata must already exist; dest datasets are
// matched to info scales by key.
func New(source Source, info *precomputed.Info, dest *zarr3.Store, opts Options) *Engine {
	return &Engine{
		source: source,
		info:   info,
		dest:   dest,
		opts:   opts.withDefaults(),
	}
}

// Run converts every scale and returns the manifest of stored blobs.
// The manifest covers the metadata files and every shard; empty
// (all-background) shards store no blob and appear in no manifest
// entry.
func (e *Engine) Run(ctx context.Context) (*Manifest, error) {
	manifest := NewManifest()
	if err := e.recordMetadata(ctx, manifest); err != nil {
		return nil, err
	}

	for i := range e.info.Scales {
		if err := e.runScale(ctx, &e.info.Scales[i], manifest); err != nil {
			return nil, err
		}
	}

	if e.opts.WriteManifest {
		if err := manifest.Store(ctx, e.dest.Accessor()); err != nil {
			return nil, err
		}
	}
	return manifest, nil
}

// recordMetadata hashes the group and per-scale metadata blobs the
// destination already holds.
func (e *Engine) recordMetadata(ctx context.Context, manifest *Manifest) error {
	names := []string{zarr3.MetadataName}
	for _, path := range e.dest.Datasets() {
		names = append(names, path+"/"+zarr3.MetadataName)
	}
	for _, name := range names {
		data, err := e.dest.Accessor().Fetch(ctx, name)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", name, err)
		}
		manifest.Add(name, data)
	}
	return nil
}

// runScale converts one scale with a pool of shard workers. Each
// shard is owned by exactly one worker from first source read to
// final store.
func (e *Engine) runScale(ctx context.Context, scale *precomputed.Scale, manifest *Manifest) error {
	meta, err := e.dest.Array(scale.Key)
	if err != nil {
		return err
	}
	if meta.Size() != scale.Size {
		return fmt.Errorf("scale %q: destination shape %v does not match source %v",
			scale.Key, meta.Size(), scale.Size)
	}
	innerShape, err := e.dest.ReadShape(scale.Key)
	if err != nil {
		return err
	}
	shardShape := meta.ChunkShape()
	shardBoxes := voxel.ChunkBoxes(scale.Size, shardShape)

	e.opts.Progress.Start(scale.Key, int64(len(shardBoxes)))
	defer e.opts.Progress.Finish()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		firstErr error
		errOnce  sync.Once
		stored   atomic.Int64
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	jobs := make(chan voxel.Box)
	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for box := range jobs {
				name, err := e.convertShard(ctx, scale, shardShape, innerShape, box, manifest)
				if err != nil {
					fail(fmt.Errorf("scale %q shard %s: %w", scale.Key, box, err))
					return
				}
				if name != "" {
					stored.Add(1)
				}
				e.opts.Progress.Advance(1)
			}
		}()
	}

dispatch:
	for _, box := range shardBoxes {
		select {
		case jobs <- box:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	e.opts.Logger.Info("scale converted",
		"scale", scale.Key,
		"shards", len(shardBoxes),
		"stored", stored.Load())
	return nil
}

// convertShard reads all inner chunks of one shard from the source,
// pads boundary chunks, and stores the assembled shard. It returns
// the stored blob name, or "" for an empty shard.
func (e *Engine) convertShard(ctx context.Context, scale *precomputed.Scale, shardShape, innerShape [3]int, shardBox voxel.Box, manifest *Manifest) (string, error) {
	builder, err := e.dest.NewShardBuilder(scale.Key)
	if err != nil {
		return "", err
	}

	for z := shardBox.Min[2]; z < shardBox.Max[2]; z += innerShape[2] {
		for y := shardBox.Min[1]; y < shardBox.Max[1]; y += innerShape[1] {
			for x := shardBox.Min[0]; x < shardBox.Max[0]; x += innerShape[0] {
				if err := ctx.Err(); err != nil {
					return "", err
				}
				innerBox := voxel.Box{
					Min: [3]int{x, y, z},
					Max: [3]int{x + innerShape[0], y + innerShape[1], z + innerShape[2]},
				}.Clamp(scale.Size)

				chunk, err := e.source.ReadChunk(ctx, scale.Key, innerBox)
				if err != nil {
					return "", fmt.Errorf("chunk %s: %w", innerBox, err)
				}
				if allZero(chunk.Data) {
					continue
				}
				padded, err := chunk.PadEdge(innerShape)
				if err != nil {
					return "", fmt.Errorf("chunk %s: %w", innerBox, err)
				}
				inner := [3]int{
					(x - shardBox.Min[0]) / innerShape[0],
					(y - shardBox.Min[1]) / innerShape[1],
					(z - shardBox.Min[2]) / innerShape[2],
				}
				if err := builder.Put(inner, padded); err != nil {
					return "", err
				}
			}
		}
	}

	if builder.Empty() {
		return "", nil
	}
	var shardGrid [3]int
	for axis := 0; axis < 3; axis++ {
		shardGrid[axis] = shardBox.Min[axis] / shardShape[axis]
	}
	name, err := e.dest.BlobName(scale.Key, shardGrid)
	if err != nil {
		return "", err
	}
	blob := builder.Bytes()
	if err := e.dest.Accessor().Store(ctx, name, blob); err != nil {
		return "", fmt.Errorf("storing %s: %w", name, err)
	}
	manifest.Add(name, blob)
	return name, nil
}

// allZero reports whether every byte of data is zero, i.e. the chunk
// is entirely fill value for every supported data type.
func allZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
