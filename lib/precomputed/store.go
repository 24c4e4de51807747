// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package precomputed

import (
	"context"
	"fmt"
	"sync"

	"github.com/voxelforge/voxelforge/lib/accessor"
	"github.com/voxelforge/voxelforge/lib/chunkenc"
	"github.com/voxelforge/voxelforge/lib/voxel"
)

// InfoName is the blob name of the dataset metadata file.
const InfoName = "info"

// Store reads and writes chunks of a precomputed dataset through an
// accessor. Safe for concurrent use.
type Store struct {
	info *Info
	acc  accessor.Accessor

	mu       sync.Mutex
	encoders map[string]chunkenc.Encoder // by scale key, built lazily
}

// Open fetches and parses the dataset's info file.
func Open(ctx context.Context, acc accessor.Accessor) (*Store, error) {
	data, err := acc.Fetch(ctx, InfoName)
	if err != nil {
		return nil, fmt.Errorf("fetching info: %w", err)
	}
	info, err := ParseInfo(data)
	if err != nil {
		return nil, err
	}
	return NewStore(info, acc), nil
}

// NewStore wraps an already-parsed Info and an accessor.
func NewStore(info *Info, acc accessor.Accessor) *Store {
	return &Store{
		info:     info,
		acc:      acc,
		encoders: make(map[string]chunkenc.Encoder),
	}
}

// Info returns the dataset metadata.
func (s *Store) Info() *Info { return s.info }

// Accessor returns the underlying accessor.
func (s *Store) Accessor() accessor.Accessor { return s.acc }

// WriteInfo stores the dataset metadata file.
func (s *Store) WriteInfo(ctx context.Context) error {
	data, err := s.info.MarshalIndent()
	if err != nil {
		return fmt.Errorf("serializing info: %w", err)
	}
	return s.acc.Store(ctx, InfoName, data)
}

// encoder returns the chunk encoder for a scale, building it on first
// use.
func (s *Store) encoder(scale *Scale) (chunkenc.Encoder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if encoder, ok := s.encoders[scale.Key]; ok {
		return encoder, nil
	}
	encoder, err := chunkenc.New(scale.Encoding, s.info.DataType, scale.CompressedSegmentationBlockSize)
	if err != nil {
		return nil, fmt.Errorf("scale %q: %w", scale.Key, err)
	}
	s.encoders[scale.Key] = encoder
	return encoder, nil
}

// ReadChunk reads the chunk covering box in the given scale. The box
// must be one of the scale's grid-aligned (bounds-clamped) chunk
// boxes. A missing chunk decodes to a fill-value chunk of the box's
// extents, matching how sparse datasets are served.
func (s *Store) ReadChunk(ctx context.Context, key string, box voxel.Box) (*voxel.Chunk, error) {
	scale, err := s.info.Scale(key)
	if err != nil {
		return nil, err
	}
	encoder, err := s.encoder(scale)
	if err != nil {
		return nil, err
	}

	data, err := s.acc.Fetch(ctx, ChunkName(key, box))
	if err != nil {
		if accessor.IsNotFound(err) {
			return voxel.NewChunk(s.info.DataType, box.Extents()), nil
		}
		return nil, err
	}

	chunk, err := encoder.Decode(data, s.info.DataType, box.Extents())
	if err != nil {
		return nil, fmt.Errorf("decoding chunk %s: %w", ChunkName(key, box), err)
	}
	return chunk, nil
}

// WriteChunk encodes and stores the chunk covering box in the given
// scale. The chunk extents must match the box.
func (s *Store) WriteChunk(ctx context.Context, key string, box voxel.Box, chunk *voxel.Chunk) error {
	if chunk.Size != box.Extents() {
		return fmt.Errorf("chunk extents %v do not match box %s", chunk.Size, box)
	}
	scale, err := s.info.Scale(key)
	if err != nil {
		return err
	}
	encoder, err := s.encoder(scale)
	if err != nil {
		return err
	}

	data, err := encoder.Encode(chunk)
	if err != nil {
		return fmt.Errorf("encoding chunk %s: %w", ChunkName(key, box), err)
	}
	return s.acc.Store(ctx, ChunkName(key, box), data)
}
