// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package voxel provides the in-memory representation of volumetric
// chunk data: the set of sample data types supported by the converter
// and a 3-D chunk buffer with the layout operations the conversion
// pipeline needs (padding, transposition, byte-order conversion).
//
// A [Chunk] stores samples in x-fastest order (the Neuroglancer
// precomputed convention for a single-channel volume): the sample at
// (x, y, z) lives at index x + sx*(y + sy*z). Formats that store
// z-fastest C-order data (zarr with dimension names x, y, z) convert
// through [Chunk.COrderBytes] and [ChunkFromCOrder].
//
// All multi-byte samples are held in little-endian order in memory.
// Byte-order conversion happens at the codec boundary.
package voxel
