// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"context"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/voxelforge/voxelforge/lib/accessor"
	"github.com/voxelforge/voxelforge/lib/codec"
)

// ManifestName is the blob name the manifest is stored under in the
// destination dataset.
const ManifestName = "voxelforge-manifest.cbor"

// manifestFormatVersion is bumped on incompatible manifest changes.
const manifestFormatVersion = 1

// Manifest records the BLAKE3-256 hash of every blob a conversion
// stored. The CBOR encoding is deterministic, so converting the same
// source twice produces byte-identical manifests.
type Manifest struct {
	FormatVersion int               `cbor:"format_version"`
	Blobs         map[string][]byte `cbor:"blobs"`

	mu sync.Mutex
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		FormatVersion: manifestFormatVersion,
		Blobs:         make(map[string][]byte),
	}
}

// Add hashes data and records it under name. Safe for concurrent use.
func (m *Manifest) Add(name string, data []byte) {
	sum := blake3.Sum256(data)
	m.mu.Lock()
	m.Blobs[name] = sum[:]
	m.mu.Unlock()
}

// Len returns the number of recorded blobs.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Blobs)
}

// Encode serializes the manifest as deterministic CBOR.
func (m *Manifest) Encode() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return codec.Marshal(m)
}

// ParseManifest decodes a stored manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := codec.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if manifest.FormatVersion != manifestFormatVersion {
		return nil, fmt.Errorf("manifest format version %d not supported, want %d",
			manifest.FormatVersion, manifestFormatVersion)
	}
	if manifest.Blobs == nil {
		manifest.Blobs = make(map[string][]byte)
	}
	return &manifest, nil
}

// Store writes the manifest to the accessor under [ManifestName].
func (m *Manifest) Store(ctx context.Context, acc accessor.Accessor) error {
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("serializing manifest: %w", err)
	}
	return acc.Store(ctx, ManifestName, data)
}

// OpenManifest fetches and parses the manifest of a dataset.
func OpenManifest(ctx context.Context, acc accessor.Accessor) (*Manifest, error) {
	data, err := acc.Fetch(ctx, ManifestName)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ManifestName, err)
	}
	return ParseManifest(data)
}
