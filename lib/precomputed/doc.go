// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package precomputed reads and writes datasets in the Neuroglancer
// precomputed format: a JSON "info" file describing a multiscale
// volume, plus one encoded chunk file per chunk-grid cell named
// "<key>/<xmin>-<xmax>_<ymin>-<ymax>_<zmin>-<zmax>".
//
// Info parsing is comment-tolerant (JSONC) because hand-maintained
// info files in the wild carry trailing commas and comments;
// serialization always emits strict JSON.
package precomputed
