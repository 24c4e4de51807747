// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package accessor provides the storage backends datasets are read
// from and written to. An [Accessor] addresses blobs (metadata files,
// chunks, shards) by slash-separated relative name.
//
// Three implementations exist:
//
//   - [FileAccessor]: a directory tree on the local filesystem, with
//     optional transparent gzip of stored files and atomic writes.
//   - [HTTPAccessor]: read-only access to a dataset served over
//     HTTP(S), with bounded response reads.
//   - [MemoryAccessor]: an in-memory map, used by tests and for
//     staging.
//
// Missing blobs are reported as [ErrNotFound] so that callers can
// distinguish "chunk absent, substitute fill value" from real I/O
// failures.
package accessor
