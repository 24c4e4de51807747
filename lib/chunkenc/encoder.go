// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package chunkenc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/voxelforge/voxelforge/lib/voxel"
)

// Encoder converts between in-memory chunks and the encoded bytes
// stored in a precomputed dataset. Implementations are stateless and
// safe for concurrent use.
type Encoder interface {
	// Name returns the encoding name as it appears in the info file.
	Name() string

	// Encode serializes a chunk.
	Encode(chunk *voxel.Chunk) ([]byte, error)

	// Decode deserializes chunk data for the given geometry.
	Decode(data []byte, dt voxel.DataType, size [3]int) (*voxel.Chunk, error)
}

// New returns the encoder for a scale. blockSize is only consulted by
// compressed segmentation; pass the scale's
// compressed_segmentation_block_size (or the zero value to get the
// 8x8x8 default).
func New(encoding string, dt voxel.DataType, blockSize [3]int) (Encoder, error) {
	switch encoding {
	case "raw":
		return rawEncoder{}, nil
	case "gzip":
		return gzipEncoder{}, nil
	case "compressed_segmentation":
		if dt != voxel.Uint32 && dt != voxel.Uint64 {
			return nil, fmt.Errorf("compressed_segmentation requires uint32 or uint64 samples, got %s", dt)
		}
		if blockSize == ([3]int{}) {
			blockSize = [3]int{8, 8, 8}
		}
		for axis := 0; axis < 3; axis++ {
			if blockSize[axis] <= 0 {
				return nil, fmt.Errorf("invalid compressed_segmentation block size %v", blockSize)
			}
		}
		return segmentationEncoder{blockSize: blockSize}, nil
	default:
		return nil, fmt.Errorf("unsupported chunk encoding %q", encoding)
	}
}

// rawEncoder stores samples as little-endian bytes in x-fastest order,
// exactly the chunk's in-memory layout.
type rawEncoder struct{}

func (rawEncoder) Name() string { return "raw" }

func (rawEncoder) Encode(chunk *voxel.Chunk) ([]byte, error) {
	return chunk.Data, nil
}

func (rawEncoder) Decode(data []byte, dt voxel.DataType, size [3]int) (*voxel.Chunk, error) {
	return voxel.ChunkFromBytes(dt, size, data)
}

// gzipEncoder wraps the raw layout in a gzip stream.
type gzipEncoder struct{}

func (gzipEncoder) Name() string { return "gzip" }

func (gzipEncoder) Encode(chunk *voxel.Chunk) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(chunk.Data); err != nil {
		return nil, fmt.Errorf("gzip encode: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipEncoder) Decode(data []byte, dt voxel.DataType, size [3]int) (*voxel.Chunk, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip decode: %w", err)
	}
	defer reader.Close()

	want := size[0] * size[1] * size[2] * dt.Size()
	raw := make([]byte, want)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return nil, fmt.Errorf("gzip decode: %w", err)
	}
	// A longer stream than the chunk geometry allows is corruption.
	var extra [1]byte
	if n, _ := reader.Read(extra[:]); n != 0 {
		return nil, fmt.Errorf("gzip decode: stream longer than %d-byte chunk", want)
	}
	return voxel.ChunkFromBytes(dt, size, raw)
}
