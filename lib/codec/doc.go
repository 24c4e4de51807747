// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the shared CBOR encoding configuration.
//
// Voxelforge uses two serialization formats with a clear boundary:
// JSON for dataset metadata, which other tools read and write (the
// precomputed info file, zarr .zgroup/.zattrs/.zarray, zarr.json), and
// CBOR for voxelforge's own artifacts, currently the blob manifest a
// conversion leaves behind.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes, which is what
// makes the manifest of a conversion comparable across runs.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
package codec
