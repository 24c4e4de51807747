// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunkenc implements the chunk encodings of the Neuroglancer
// precomputed format: "raw" (plain little-endian samples), "gzip"
// (raw wrapped in a gzip stream), and "compressed_segmentation"
// (block-wise palette compression for uint32/uint64 label volumes).
//
// An [Encoder] is constructed per scale from the scale's encoding
// name, data type, and (for compressed segmentation) block size.
// Encode and Decode round-trip exactly; Decode verifies that the
// decoded sample count matches the chunk geometry it was given.
//
// Lossy encodings (jpeg) are deliberately not supported: the
// conversion pipeline only performs lossless transport of sample
// data between formats.
package chunkenc
