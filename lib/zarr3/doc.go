// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package zarr3 reads and writes Zarr v3 multiscale image datasets
// with OME-NGFF v0.5 group attributes. It is the destination format
// of the conversion pipeline: a precomputed dataset's metadata maps
// onto a zarr v3 hierarchy via [FromPrecomputedInfo], and chunk data
// flows through the v3 codec chain (bytes, gzip, zstd, and the
// sharding_indexed codec with a crc32c-checksummed index).
//
// Sharded writes go through a [ShardBuilder]: all inner chunks of a
// shard are encoded and accumulated in memory, then the complete
// shard file (index plus payload) is stored in a single call. The
// predecessor of this pipeline appended inner chunks to shard files
// from concurrent workers and suffered nondeterministic corruption;
// building shards as a unit removes the shared-file write ordering
// problem entirely.
package zarr3
