// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/voxelforge/voxelforge/lib/accessor"
	"github.com/voxelforge/voxelforge/lib/precomputed"
	"github.com/voxelforge/voxelforge/lib/progress"
	"github.com/voxelforge/voxelforge/lib/voxel"
)

// VerifyResult summarizes a manifest verification.
type VerifyResult struct {
	// Blobs is the number of manifest entries checked.
	Blobs int

	// Bytes is the total size of all fetched blobs.
	Bytes int64

	// Missing lists manifest entries whose blob no longer exists.
	Missing []string

	// Mismatched lists blobs whose hash differs from the manifest.
	Mismatched []string
}

// OK reports whether every blob was present with the recorded hash.
func (r *VerifyResult) OK() bool {
	return len(r.Missing) == 0 && len(r.Mismatched) == 0
}

// Verify fetches every blob recorded in the dataset's manifest and
// compares its BLAKE3 hash against the recorded one. Transport
// failures abort the run; missing or corrupted blobs are collected in
// the result.
func Verify(ctx context.Context, acc accessor.Accessor, workers int, reporter progress.Reporter) (*VerifyResult, error) {
	manifest, err := OpenManifest(ctx, acc)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if reporter == nil {
		reporter = progress.Nop{}
	}

	names := make([]string, 0, len(manifest.Blobs))
	for name := range manifest.Blobs {
		names = append(names, name)
	}
	sort.Strings(names)

	reporter.Start("verify", int64(len(names)))
	defer reporter.Finish()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		result   = VerifyResult{Blobs: len(names)}
		firstErr error
		errOnce  sync.Once
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	jobs := make(chan string)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				data, err := acc.Fetch(ctx, name)
				switch {
				case accessor.IsNotFound(err):
					mu.Lock()
					result.Missing = append(result.Missing, name)
					mu.Unlock()
				case err != nil:
					fail(fmt.Errorf("fetching %s: %w", name, err))
					return
				default:
					sum := blake3.Sum256(data)
					mu.Lock()
					result.Bytes += int64(len(data))
					if !bytes.Equal(sum[:], manifest.Blobs[name]) {
						result.Mismatched = append(result.Mismatched, name)
					}
					mu.Unlock()
				}
				reporter.Advance(1)
			}
		}()
	}

dispatch:
	for _, name := range names {
		select {
		case jobs <- name:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	sort.Strings(result.Missing)
	sort.Strings(result.Mismatched)
	return &result, nil
}

// CompareData reads every chunk of every scale from both sides and
// compares the decoded samples. It catches errors a hash check
// cannot: a correct manifest over wrongly converted data. chunkShape
// per scale is the destination's read shape; both sides must be
// addressable on that grid.
func CompareData(ctx context.Context, source, dest Source, info *precomputed.Info, chunkShapes map[string][3]int, reporter progress.Reporter) error {
	if reporter == nil {
		reporter = progress.Nop{}
	}
	for i := range info.Scales {
		scale := &info.Scales[i]
		chunkShape, ok := chunkShapes[scale.Key]
		if !ok {
			return fmt.Errorf("no chunk shape for scale %q", scale.Key)
		}
		boxes := voxel.ChunkBoxes(scale.Size, chunkShape)
		reporter.Start("compare "+scale.Key, int64(len(boxes)))
		for _, box := range boxes {
			if err := ctx.Err(); err != nil {
				reporter.Finish()
				return err
			}
			want, err := source.ReadChunk(ctx, scale.Key, box)
			if err != nil {
				reporter.Finish()
				return fmt.Errorf("scale %q chunk %s: reading source: %w", scale.Key, box, err)
			}
			got, err := dest.ReadChunk(ctx, scale.Key, box)
			if err != nil {
				reporter.Finish()
				return fmt.Errorf("scale %q chunk %s: reading destination: %w", scale.Key, box, err)
			}
			if !bytes.Equal(want.Data, got.Data) {
				reporter.Finish()
				return fmt.Errorf("scale %q chunk %s: samples differ", scale.Key, box)
			}
			reporter.Advance(1)
		}
		reporter.Finish()
	}
	return nil
}
