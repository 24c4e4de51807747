// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package voxel

import (
	"fmt"
)

// Chunk is a dense 3-D buffer of samples covering a box-shaped region
// of a volume. Samples are stored little-endian in x-fastest order:
// the sample at (x, y, z) starts at byte offset
// (x + Size[0]*(y + Size[1]*z)) * DataType.Size().
type Chunk struct {
	// DataType is the sample type of every element in Data.
	DataType DataType

	// Size holds the chunk extents along x, y, z.
	Size [3]int

	// Data is the raw little-endian sample data. Its length is always
	// Size[0]*Size[1]*Size[2]*DataType.Size().
	Data []byte
}

// NewChunk allocates a zero-filled chunk. Zero is the fill value for
// every supported data type (including floats: all-zero bytes decode
// to 0.0), so NewChunk also serves as the fill-value chunk for reads
// of missing data.
func NewChunk(dt DataType, size [3]int) *Chunk {
	return &Chunk{
		DataType: dt,
		Size:     size,
		Data:     make([]byte, size[0]*size[1]*size[2]*dt.Size()),
	}
}

// ChunkFromBytes wraps existing little-endian x-fastest data in a
// Chunk, verifying the length matches the declared extents.
func ChunkFromBytes(dt DataType, size [3]int, data []byte) (*Chunk, error) {
	want := size[0] * size[1] * size[2] * dt.Size()
	if len(data) != want {
		return nil, fmt.Errorf("chunk data is %d bytes, want %d for %v %s",
			len(data), want, size, dt)
	}
	return &Chunk{DataType: dt, Size: size, Data: data}, nil
}

// NumSamples returns the number of samples in the chunk.
func (c *Chunk) NumSamples() int {
	return c.Size[0] * c.Size[1] * c.Size[2]
}

// offset returns the byte offset of the sample at (x, y, z).
func (c *Chunk) offset(x, y, z int) int {
	return (x + c.Size[0]*(y+c.Size[1]*z)) * c.DataType.Size()
}

// sampleAt copies the sample at (x, y, z) into dst, which must be at
// least DataType.Size() bytes.
func (c *Chunk) sampleAt(x, y, z int, dst []byte) {
	offset := c.offset(x, y, z)
	copy(dst, c.Data[offset:offset+c.DataType.Size()])
}

// PadEdge returns a chunk of the target extents with this chunk's data
// in the low corner and the boundary samples replicated outward along
// each axis (edge padding). Target extents must be >= the chunk's own
// extents in every dimension. If the extents already match, the chunk
// is returned unchanged.
//
// Edge padding (rather than zero fill) keeps downsampled border blocks
// from bleeding background values into the volume, matching what the
// conversion pipeline has always done for partial boundary chunks.
func (c *Chunk) PadEdge(target [3]int) (*Chunk, error) {
	for axis := 0; axis < 3; axis++ {
		if target[axis] < c.Size[axis] {
			return nil, fmt.Errorf("pad target %v smaller than chunk %v on axis %d",
				target, c.Size, axis)
		}
	}
	if target == c.Size {
		return c, nil
	}

	sampleSize := c.DataType.Size()
	padded := NewChunk(c.DataType, target)

	clamp := func(v, limit int) int {
		if v >= limit {
			return limit - 1
		}
		return v
	}

	// Fill row by row: each destination row (y, z) copies from the
	// clamped source row, then the last source sample is replicated
	// across the x padding.
	for z := 0; z < target[2]; z++ {
		srcZ := clamp(z, c.Size[2])
		for y := 0; y < target[1]; y++ {
			srcY := clamp(y, c.Size[1])

			srcRow := c.Data[c.offset(0, srcY, srcZ) : c.offset(0, srcY, srcZ)+c.Size[0]*sampleSize]
			dstStart := padded.offset(0, y, z)
			copy(padded.Data[dstStart:], srcRow)

			last := srcRow[(c.Size[0]-1)*sampleSize:]
			for x := c.Size[0]; x < target[0]; x++ {
				copy(padded.Data[dstStart+x*sampleSize:], last)
			}
		}
	}
	return padded, nil
}

// COrderBytes returns the chunk samples serialized in C order over the
// dimension order (x, y, z), i.e. z fastest-varying. This is the byte
// layout of a zarr array with dimension_names ["x", "y", "z"]. For
// single-byte samples of a degenerate chunk (any extent 1 in y and z)
// the layouts coincide and the internal buffer is returned directly.
func (c *Chunk) COrderBytes() []byte {
	if c.Size[1] == 1 && c.Size[2] == 1 {
		return c.Data
	}

	sampleSize := c.DataType.Size()
	out := make([]byte, len(c.Data))
	i := 0
	for x := 0; x < c.Size[0]; x++ {
		for y := 0; y < c.Size[1]; y++ {
			for z := 0; z < c.Size[2]; z++ {
				src := c.offset(x, y, z)
				copy(out[i:], c.Data[src:src+sampleSize])
				i += sampleSize
			}
		}
	}
	return out
}

// ChunkFromCOrder builds a chunk from samples serialized in C order
// over (x, y, z) — the inverse of [Chunk.COrderBytes]. The data must
// already be little-endian.
func ChunkFromCOrder(dt DataType, size [3]int, data []byte) (*Chunk, error) {
	want := size[0] * size[1] * size[2] * dt.Size()
	if len(data) != want {
		return nil, fmt.Errorf("C-order data is %d bytes, want %d for %v %s",
			len(data), want, size, dt)
	}
	if size[1] == 1 && size[2] == 1 {
		return &Chunk{DataType: dt, Size: size, Data: data}, nil
	}

	sampleSize := dt.Size()
	chunk := NewChunk(dt, size)
	i := 0
	for x := 0; x < size[0]; x++ {
		for y := 0; y < size[1]; y++ {
			for z := 0; z < size[2]; z++ {
				dst := chunk.offset(x, y, z)
				copy(chunk.Data[dst:dst+sampleSize], data[i:])
				i += sampleSize
			}
		}
	}
	return chunk, nil
}

// SwapEndianness returns a copy of data with every sample's bytes
// reversed, for the given sample width. Width 1 returns the input
// unchanged. The input length must be a multiple of the width.
func SwapEndianness(data []byte, width int) ([]byte, error) {
	if width == 1 {
		return data, nil
	}
	if len(data)%width != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of sample width %d",
			len(data), width)
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += width {
		for j := 0; j < width; j++ {
			out[i+j] = data[i+width-1-j]
		}
	}
	return out, nil
}
