// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package zarr reads and writes Zarr v2 multiscale image datasets
// following the OME-NGFF v0.4 layout: a ".zgroup" marker, ".zattrs"
// with a single multiscales entry, and one ".zarray" plus chunk files
// per resolution level.
//
// The package maps a zarr hierarchy onto the same dataset model the
// rest of the pipeline uses (a precomputed-style Info), so zarr
// datasets can act as a mirror source interchangeably with
// precomputed ones. Sample data is converted to the pipeline's
// x-fastest little-endian chunk layout on read and back on write.
//
// Chunk compression supports the numcodecs ids "zlib", "gzip", "lz4",
// "zstd", and uncompressed arrays. Blosc is not supported.
package zarr
