// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package accessor

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryAccessor is an in-memory blob store. It backs tests and
// metadata staging (generating a dataset skeleton before committing it
// to disk). Safe for concurrent use.
type MemoryAccessor struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryAccessor returns an empty in-memory store.
func NewMemoryAccessor() *MemoryAccessor {
	return &MemoryAccessor{blobs: make(map[string][]byte)}
}

func (a *MemoryAccessor) CanRead() bool  { return true }
func (a *MemoryAccessor) CanWrite() bool { return true }

func (a *MemoryAccessor) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	data, ok := a.blobs[name]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	// Return a copy: callers may retain and mutate fetched data.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (a *MemoryAccessor) Store(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	a.mu.Lock()
	a.blobs[name] = stored
	a.mu.Unlock()
	return nil
}

// Delete removes a stored blob, if present.
func (a *MemoryAccessor) Delete(name string) {
	a.mu.Lock()
	delete(a.blobs, name)
	a.mu.Unlock()
}

// Names returns the stored blob names in sorted order.
func (a *MemoryAccessor) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.blobs))
	for name := range a.blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of stored blobs.
func (a *MemoryAccessor) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.blobs)
}
