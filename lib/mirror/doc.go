// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package mirror converts chunked volume datasets into zarr v3. The
// [Engine] reads chunks from any [Source] (a precomputed store, or a
// zarr v2/v3 store exposing the same read interface), assembles them
// into shards, and writes each shard as a single blob. Every stored
// blob is BLAKE3-hashed into a deterministic CBOR [Manifest], which
// [Verify] later checks against the destination without touching the
// source.
//
// Shards are built whole in memory by one worker and stored in one
// call. No two workers ever touch the same destination blob, so
// conversion output is byte-stable regardless of worker count or
// scheduling.
package mirror
