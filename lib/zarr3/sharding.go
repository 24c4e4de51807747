// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package zarr3

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/voxelforge/voxelforge/lib/voxel"
)

// missingEntry marks an absent inner chunk in the shard index.
const missingEntry = math.MaxUint64

// ShardingConfig is the wire configuration of the sharding_indexed
// codec.
type ShardingConfig struct {
	ChunkShape    []int       `json:"chunk_shape"`
	Codecs        []CodecSpec `json:"codecs"`
	IndexCodecs   []CodecSpec `json:"index_codecs"`
	IndexLocation string      `json:"index_location,omitempty"`
}

// ShardingCodec packs a grid of inner chunks into one stored object
// with an offset/size index. The index is a uint64 array of shape
// grid+[2], serialized little-endian, optionally protected by a
// trailing crc32c checksum.
type ShardingCodec struct {
	config ShardingConfig
	inner  *Chain

	innerShape    [3]int
	indexAtStart  bool
	indexChecksum bool
	indexBig      bool
}

func parseShardingCodec(raw json.RawMessage) (*ShardingCodec, error) {
	config := ShardingConfig{IndexLocation: "end"}
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("parsing sharding_indexed configuration: %w", err)
	}

	if len(config.ChunkShape) != 3 {
		return nil, fmt.Errorf("sharding chunk_shape %v is not rank 3", config.ChunkShape)
	}
	codec := &ShardingCodec{config: config}
	for i, extent := range config.ChunkShape {
		if extent <= 0 {
			return nil, fmt.Errorf("sharding chunk_shape %v has non-positive extent", config.ChunkShape)
		}
		codec.innerShape[i] = extent
	}

	switch config.IndexLocation {
	case "start":
		codec.indexAtStart = true
	case "end":
	default:
		return nil, fmt.Errorf("sharding index_location %q invalid", config.IndexLocation)
	}

	inner, err := ParseChain(config.Codecs)
	if err != nil {
		return nil, fmt.Errorf("sharding inner codecs: %w", err)
	}
	if inner.Sharding != nil {
		return nil, fmt.Errorf("nested sharding_indexed codecs are not supported")
	}
	codec.inner = inner

	// The index must have a fixed encoded size so its position in the
	// shard is known before reading; that limits its chain to the
	// bytes codec plus an optional crc32c.
	if len(config.IndexCodecs) == 0 || config.IndexCodecs[0].Name != "bytes" {
		return nil, fmt.Errorf("sharding index_codecs must start with \"bytes\"")
	}
	indexBytes, err := parseBytesCodec(config.IndexCodecs[0].Configuration)
	if err != nil {
		return nil, fmt.Errorf("sharding index_codecs: %w", err)
	}
	codec.indexBig = indexBytes.Endian == "big"
	for _, spec := range config.IndexCodecs[1:] {
		if spec.Name != "crc32c" {
			return nil, fmt.Errorf("sharding index codec %q not supported, want crc32c", spec.Name)
		}
		codec.indexChecksum = true
	}
	return codec, nil
}

func (s *ShardingCodec) spec() CodecSpec {
	config, _ := json.Marshal(s.config)
	return CodecSpec{Name: "sharding_indexed", Configuration: config}
}

// InnerShape returns the inner chunk shape of the shard grid.
func (s *ShardingCodec) InnerShape() [3]int {
	return s.innerShape
}

// ValidateShardShape checks that a shard (the array's outer chunk) is
// an exact multiple of the inner chunk shape on every axis.
func (s *ShardingCodec) ValidateShardShape(shardShape [3]int) error {
	for axis := range shardShape {
		if shardShape[axis]%s.innerShape[axis] != 0 {
			return fmt.Errorf("shard shape %v is not a multiple of inner chunk shape %v",
				shardShape, s.innerShape)
		}
	}
	return nil
}

// Grid returns the inner chunk grid dimensions of a shard.
func (s *ShardingCodec) Grid(shardShape [3]int) [3]int {
	var grid [3]int
	for axis := range shardShape {
		grid[axis] = shardShape[axis] / s.innerShape[axis]
	}
	return grid
}

// indexEntryCount returns the number of uint64 values in the index.
func (s *ShardingCodec) indexEntryCount(grid [3]int) int {
	return grid[0] * grid[1] * grid[2] * 2
}

// indexEncodedSize returns the stored size of the index in bytes.
func (s *ShardingCodec) indexEncodedSize(grid [3]int) int {
	size := s.indexEntryCount(grid) * 8
	if s.indexChecksum {
		size += 4
	}
	return size
}

// indexPosition returns the entry pair index of an inner chunk. The
// index array is C-ordered over the grid dimensions.
func indexPosition(grid, inner [3]int) int {
	return (inner[0]*grid[1]+inner[1])*grid[2] + inner[2]
}

func (s *ShardingCodec) encodeIndex(entries []uint64) []byte {
	data := make([]byte, len(entries)*8, len(entries)*8+4)
	for i, entry := range entries {
		if s.indexBig {
			binary.BigEndian.PutUint64(data[i*8:], entry)
		} else {
			binary.LittleEndian.PutUint64(data[i*8:], entry)
		}
	}
	if s.indexChecksum {
		out, _ := crc32cCodec{}.encode(data)
		return out
	}
	return data
}

func (s *ShardingCodec) decodeIndex(data []byte, grid [3]int) ([]uint64, error) {
	if s.indexChecksum {
		var err error
		data, err = crc32cCodec{}.decode(data, s.indexEntryCount(grid)*8)
		if err != nil {
			return nil, fmt.Errorf("shard index: %w", err)
		}
	}
	count := s.indexEntryCount(grid)
	if len(data) != count*8 {
		return nil, fmt.Errorf("shard index is %d bytes, want %d", len(data), count*8)
	}
	entries := make([]uint64, count)
	for i := range entries {
		if s.indexBig {
			entries[i] = binary.BigEndian.Uint64(data[i*8:])
		} else {
			entries[i] = binary.LittleEndian.Uint64(data[i*8:])
		}
	}
	return entries, nil
}

// DecodeInner extracts and decodes one inner chunk from a complete
// shard. The boolean result is false when the index marks the chunk
// as absent.
func (s *ShardingCodec) DecodeInner(shard []byte, dt voxel.DataType, shardShape, inner [3]int) (*voxel.Chunk, bool, error) {
	grid := s.Grid(shardShape)
	for axis := range inner {
		if inner[axis] < 0 || inner[axis] >= grid[axis] {
			return nil, false, fmt.Errorf("inner chunk %v outside shard grid %v", inner, grid)
		}
	}

	indexSize := s.indexEncodedSize(grid)
	if len(shard) < indexSize {
		return nil, false, fmt.Errorf("shard is %d bytes, smaller than its %d-byte index", len(shard), indexSize)
	}
	var indexData []byte
	if s.indexAtStart {
		indexData = shard[:indexSize]
	} else {
		indexData = shard[len(shard)-indexSize:]
	}
	entries, err := s.decodeIndex(indexData, grid)
	if err != nil {
		return nil, false, err
	}

	position := indexPosition(grid, inner)
	offset, nbytes := entries[position*2], entries[position*2+1]
	if offset == missingEntry && nbytes == missingEntry {
		return nil, false, nil
	}
	if offset > uint64(len(shard)) || nbytes > uint64(len(shard))-offset {
		return nil, false, fmt.Errorf("shard index entry %d+%d exceeds %d-byte shard", offset, nbytes, len(shard))
	}

	chunk, err := s.inner.DecodeChunk(shard[offset:offset+nbytes], dt, s.innerShape)
	if err != nil {
		return nil, false, fmt.Errorf("inner chunk %v: %w", inner, err)
	}
	return chunk, true, nil
}

// ShardBuilder assembles one complete shard in memory. Inner chunks
// are encoded as they arrive; Bytes lays out the index and payload as
// a single buffer that the caller stores atomically. A builder is not
// safe for concurrent use; the conversion pipeline dedicates each
// shard to one worker.
type ShardBuilder struct {
	codec      *ShardingCodec
	shardShape [3]int
	grid       [3]int
	entries    []uint64
	payload    bytes.Buffer
	count      int
}

// NewShardBuilder prepares a builder for one shard of the given shape.
func NewShardBuilder(codec *ShardingCodec, shardShape [3]int) (*ShardBuilder, error) {
	if err := codec.ValidateShardShape(shardShape); err != nil {
		return nil, err
	}
	grid := codec.Grid(shardShape)
	entries := make([]uint64, codec.indexEntryCount(grid))
	for i := range entries {
		entries[i] = missingEntry
	}
	return &ShardBuilder{
		codec:      codec,
		shardShape: shardShape,
		grid:       grid,
		entries:    entries,
	}, nil
}

// Put encodes one inner chunk at the given grid coordinates. The chunk
// extents must match the inner chunk shape; callers pad edge chunks
// before calling.
func (b *ShardBuilder) Put(inner [3]int, chunk *voxel.Chunk) error {
	for axis := range inner {
		if inner[axis] < 0 || inner[axis] >= b.grid[axis] {
			return fmt.Errorf("inner chunk %v outside shard grid %v", inner, b.grid)
		}
	}
	if chunk.Size != b.codec.innerShape {
		return fmt.Errorf("chunk extents %v do not match inner chunk shape %v", chunk.Size, b.codec.innerShape)
	}
	position := indexPosition(b.grid, inner)
	if b.entries[position*2] != missingEntry {
		return fmt.Errorf("inner chunk %v written twice", inner)
	}

	encoded, err := b.codec.inner.EncodeChunk(chunk)
	if err != nil {
		return fmt.Errorf("inner chunk %v: %w", inner, err)
	}
	b.entries[position*2] = uint64(b.payload.Len())
	b.entries[position*2+1] = uint64(len(encoded))
	b.payload.Write(encoded)
	b.count++
	return nil
}

// Empty reports whether no inner chunk has been written.
func (b *ShardBuilder) Empty() bool {
	return b.count == 0
}

// Bytes returns the complete shard. Payload offsets in the index are
// absolute file offsets, so with the index at the start every payload
// entry is shifted by the index size.
func (b *ShardBuilder) Bytes() []byte {
	indexSize := b.codec.indexEncodedSize(b.grid)
	entries := b.entries
	if b.codec.indexAtStart {
		entries = make([]uint64, len(b.entries))
		copy(entries, b.entries)
		for i := 0; i < len(entries); i += 2 {
			if entries[i] != missingEntry {
				entries[i] += uint64(indexSize)
			}
		}
	}
	index := b.codec.encodeIndex(entries)

	shard := make([]byte, 0, indexSize+b.payload.Len())
	if b.codec.indexAtStart {
		shard = append(shard, index...)
		shard = append(shard, b.payload.Bytes()...)
	} else {
		shard = append(shard, b.payload.Bytes()...)
		shard = append(shard, index...)
	}
	return shard
}
