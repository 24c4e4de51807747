// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package chunkenc

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/voxelforge/voxelforge/lib/voxel"
)

// segmentationEncoder implements the Neuroglancer compressed
// segmentation encoding for label volumes. The chunk is divided into
// blocks (typically 8x8x8); each block stores a palette of its
// distinct label values plus a packed index per voxel. Label volumes
// have few distinct values per block, so most blocks pack voxels into
// 0, 1, 2, or 4 bits.
//
// Single-channel layout, in little-endian uint32 words:
//
//	word 0:            offset of the channel data (always 1)
//	per block, 2 words: palette offset | bits<<24, value-stream offset
//	...                 value streams and palettes, per block
//
// Offsets are in 32-bit units relative to the start of the channel
// data. Blocks are ordered x-fastest over the block grid; voxels are
// ordered x-fastest within each (bounds-clamped) block. A block whose
// voxels are all one label stores a 1-entry palette and no value
// stream (0 bits per voxel).
type segmentationEncoder struct {
	blockSize [3]int
}

func (segmentationEncoder) Name() string { return "compressed_segmentation" }

// allowedBits are the valid packed index widths, smallest first.
var allowedBits = [...]uint32{0, 1, 2, 4, 8, 16, 32}

func bitsForPalette(size int) (uint32, error) {
	for _, bits := range allowedBits {
		if bits == 32 || size <= 1<<bits {
			return bits, nil
		}
	}
	return 0, fmt.Errorf("palette of %d values cannot be packed", size)
}

func (e segmentationEncoder) Encode(chunk *voxel.Chunk) ([]byte, error) {
	wordsPerLabel := chunk.DataType.Size() / 4
	if wordsPerLabel != 1 && wordsPerLabel != 2 {
		return nil, fmt.Errorf("compressed_segmentation: unsupported data type %s", chunk.DataType)
	}

	size := chunk.Size
	block := e.blockSize
	grid := [3]int{
		(size[0] + block[0] - 1) / block[0],
		(size[1] + block[1] - 1) / block[1],
		(size[2] + block[2] - 1) / block[2],
	}
	numBlocks := grid[0] * grid[1] * grid[2]

	// words[0] is the channel offset; the channel data follows it.
	words := make([]uint32, 1, 1+2*numBlocks)
	words[0] = 1
	header := make([]uint32, 2*numBlocks)
	var body []uint32
	bodyBase := 2 * numBlocks // body words start here, relative to channel start

	labelAt := func(x, y, z int) uint64 {
		offset := (x + size[0]*(y+size[1]*z)) * chunk.DataType.Size()
		if wordsPerLabel == 1 {
			return uint64(binary.LittleEndian.Uint32(chunk.Data[offset:]))
		}
		return binary.LittleEndian.Uint64(chunk.Data[offset:])
	}

	blockIndex := 0
	for gz := 0; gz < grid[2]; gz++ {
		for gy := 0; gy < grid[1]; gy++ {
			for gx := 0; gx < grid[0]; gx++ {
				box := voxel.Box{
					Min: [3]int{gx * block[0], gy * block[1], gz * block[2]},
					Max: [3]int{(gx + 1) * block[0], (gy + 1) * block[1], (gz + 1) * block[2]},
				}.Clamp(size)

				// Gather the block's labels in x-fastest order.
				labels := make([]uint64, 0, box.NumVoxels())
				seen := make(map[uint64]struct{})
				for z := box.Min[2]; z < box.Max[2]; z++ {
					for y := box.Min[1]; y < box.Max[1]; y++ {
						for x := box.Min[0]; x < box.Max[0]; x++ {
							value := labelAt(x, y, z)
							labels = append(labels, value)
							seen[value] = struct{}{}
						}
					}
				}

				palette := make([]uint64, 0, len(seen))
				for value := range seen {
					palette = append(palette, value)
				}
				sort.Slice(palette, func(i, j int) bool { return palette[i] < palette[j] })

				bits, err := bitsForPalette(len(palette))
				if err != nil {
					return nil, err
				}

				// Value stream first, then the palette.
				valuesOffset := bodyBase + len(body)
				if bits > 0 {
					index := make(map[uint64]uint32, len(palette))
					for i, value := range palette {
						index[value] = uint32(i)
					}
					packed := make([]uint32, (len(labels)*int(bits)+31)/32)
					for i, value := range labels {
						bit := i * int(bits)
						packed[bit/32] |= index[value] << (bit % 32)
					}
					body = append(body, packed...)
				}

				paletteOffset := bodyBase + len(body)
				if paletteOffset >= 1<<24 {
					return nil, fmt.Errorf("compressed_segmentation: palette offset %d exceeds 24 bits", paletteOffset)
				}
				for _, value := range palette {
					body = append(body, uint32(value))
					if wordsPerLabel == 2 {
						body = append(body, uint32(value>>32))
					}
				}

				header[2*blockIndex] = uint32(paletteOffset) | bits<<24
				header[2*blockIndex+1] = uint32(valuesOffset)
				blockIndex++
			}
		}
	}

	words = append(words, header...)
	words = append(words, body...)

	out := make([]byte, 4*len(words))
	for i, word := range words {
		binary.LittleEndian.PutUint32(out[4*i:], word)
	}
	return out, nil
}

func (e segmentationEncoder) Decode(data []byte, dt voxel.DataType, size [3]int) (*voxel.Chunk, error) {
	if len(data)%4 != 0 || len(data) < 4 {
		return nil, fmt.Errorf("compressed_segmentation: %d bytes is not a word stream", len(data))
	}
	wordsPerLabel := dt.Size() / 4
	if wordsPerLabel != 1 && wordsPerLabel != 2 {
		return nil, fmt.Errorf("compressed_segmentation: unsupported data type %s", dt)
	}

	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[4*i:])
	}

	channelOffset := int(words[0])
	if channelOffset < 1 || channelOffset >= len(words) {
		return nil, fmt.Errorf("compressed_segmentation: channel offset %d out of range", channelOffset)
	}
	channel := words[channelOffset:]

	block := e.blockSize
	grid := [3]int{
		(size[0] + block[0] - 1) / block[0],
		(size[1] + block[1] - 1) / block[1],
		(size[2] + block[2] - 1) / block[2],
	}
	numBlocks := grid[0] * grid[1] * grid[2]
	if len(channel) < 2*numBlocks {
		return nil, fmt.Errorf("compressed_segmentation: truncated block headers (%d words, need %d)",
			len(channel), 2*numBlocks)
	}

	chunk := voxel.NewChunk(dt, size)
	putLabel := func(x, y, z int, value uint64) {
		offset := (x + size[0]*(y+size[1]*z)) * dt.Size()
		if wordsPerLabel == 1 {
			binary.LittleEndian.PutUint32(chunk.Data[offset:], uint32(value))
		} else {
			binary.LittleEndian.PutUint64(chunk.Data[offset:], value)
		}
	}

	blockIndex := 0
	for gz := 0; gz < grid[2]; gz++ {
		for gy := 0; gy < grid[1]; gy++ {
			for gx := 0; gx < grid[0]; gx++ {
				word0 := channel[2*blockIndex]
				valuesOffset := int(channel[2*blockIndex+1])
				blockIndex++

				paletteOffset := int(word0 & 0xFFFFFF)
				bits := word0 >> 24
				switch bits {
				case 0, 1, 2, 4, 8, 16, 32:
				default:
					return nil, fmt.Errorf("compressed_segmentation: invalid bit width %d", bits)
				}

				box := voxel.Box{
					Min: [3]int{gx * block[0], gy * block[1], gz * block[2]},
					Max: [3]int{(gx + 1) * block[0], (gy + 1) * block[1], (gz + 1) * block[2]},
				}.Clamp(size)

				readPalette := func(index uint32) (uint64, error) {
					wordPos := paletteOffset + int(index)*wordsPerLabel
					if wordPos+wordsPerLabel > len(channel) {
						return 0, fmt.Errorf("compressed_segmentation: palette read past end")
					}
					value := uint64(channel[wordPos])
					if wordsPerLabel == 2 {
						value |= uint64(channel[wordPos+1]) << 32
					}
					return value, nil
				}

				voxelIndex := 0
				for z := box.Min[2]; z < box.Max[2]; z++ {
					for y := box.Min[1]; y < box.Max[1]; y++ {
						for x := box.Min[0]; x < box.Max[0]; x++ {
							var paletteIndex uint32
							if bits > 0 {
								bit := voxelIndex * int(bits)
								wordPos := valuesOffset + bit/32
								if wordPos >= len(channel) {
									return nil, fmt.Errorf("compressed_segmentation: value read past end")
								}
								mask := uint32(0xFFFFFFFF)
								if bits < 32 {
									mask = 1<<bits - 1
								}
								paletteIndex = (channel[wordPos] >> (bit % 32)) & mask
							}
							value, err := readPalette(paletteIndex)
							if err != nil {
								return nil, err
							}
							putLabel(x, y, z, value)
							voxelIndex++
						}
					}
				}
			}
		}
	}
	return chunk, nil
}
