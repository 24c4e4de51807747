// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package accessor

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Fetch when the named blob does not exist
// in the backing store. Chunk readers treat this as "missing chunk"
// and substitute a fill-value chunk; any other error is propagated.
var ErrNotFound = errors.New("accessor: blob not found")

// Accessor is a blob store addressed by slash-separated relative
// names. Implementations must be safe for concurrent use: the mirror
// engine fetches and stores from many goroutines at once.
type Accessor interface {
	// Fetch returns the contents of the named blob, or ErrNotFound.
	Fetch(ctx context.Context, name string) ([]byte, error)

	// Store writes the named blob, replacing any previous contents.
	Store(ctx context.Context, name string, data []byte) error

	// CanRead reports whether Fetch is supported.
	CanRead() bool

	// CanWrite reports whether Store is supported.
	CanWrite() bool
}

// IsNotFound reports whether err indicates a missing blob.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
