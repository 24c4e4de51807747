// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package zarr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor handles the per-chunk compression of a zarr v2 array, as
// declared by the numcodecs "id" in the array's compressor object.
// Decompress verifies the output length against the expected
// uncompressed size.
type Compressor interface {
	ID() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte, uncompressedSize int) ([]byte, error)
}

// NewCompressor returns the compressor for a numcodecs id. The empty
// id (a null compressor in the metadata) returns a passthrough.
func NewCompressor(id string) (Compressor, error) {
	switch id {
	case "":
		return nullCompressor{}, nil
	case "zlib":
		return zlibCompressor{}, nil
	case "gzip":
		return gzipCompressor{}, nil
	case "lz4":
		return lz4Compressor{}, nil
	case "zstd":
		return zstdCompressor{}, nil
	default:
		return nil, fmt.Errorf("unsupported zarr compressor %q", id)
	}
}

type nullCompressor struct{}

func (nullCompressor) ID() string { return "" }

func (nullCompressor) Compress(data []byte) ([]byte, error) { return data, nil }

func (nullCompressor) Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	if len(data) != uncompressedSize {
		return nil, fmt.Errorf("uncompressed chunk is %d bytes, want %d", len(data), uncompressedSize)
	}
	return data, nil
}

type zlibCompressor struct{}

func (zlibCompressor) ID() string { return "zlib" }

func (zlibCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := zlib.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (zlibCompressor) Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	defer reader.Close()
	return readExactly(reader, uncompressedSize, "zlib")
}

type gzipCompressor struct{}

func (gzipCompressor) ID() string { return "gzip" }

func (gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}
	defer reader.Close()
	return readExactly(reader, uncompressedSize, "gzip")
}

// lz4Compressor implements the numcodecs LZ4 layout: a 4-byte
// little-endian uncompressed size header followed by a single LZ4
// block.
type lz4Compressor struct{}

func (lz4Compressor) ID() string { return "lz4" }

func (lz4Compressor) Compress(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	out := make([]byte, 4+bound)
	binary.LittleEndian.PutUint32(out, uint32(len(data)))

	written, err := lz4.CompressBlock(data, out[4:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if written == 0 {
		// CompressBlock returns 0 for incompressible input. The chunk
		// must still be stored as a valid LZ4 block, so emit it as a
		// single literal run.
		block := literalBlock(data)
		out = make([]byte, 4+len(block))
		binary.LittleEndian.PutUint32(out, uint32(len(data)))
		copy(out[4:], block)
		return out, nil
	}
	return out[:4+written], nil
}

func (lz4Compressor) Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("lz4 decompress: %d-byte input has no size header", len(data))
	}
	declared := int(binary.LittleEndian.Uint32(data))
	if declared != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: header declares %d bytes, chunk geometry needs %d",
			declared, uncompressedSize)
	}
	out := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(data[4:], out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, want %d", read, uncompressedSize)
	}
	return out, nil
}

// literalBlock encodes data as an LZ4 block consisting of one literal
// run and no matches. The last sequence of a block is allowed to be
// literals only, so this is always a valid block (slightly larger than
// the input).
func literalBlock(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/255+16)
	length := len(data)
	if length < 15 {
		out = append(out, byte(length)<<4)
	} else {
		out = append(out, 0xF0)
		remaining := length - 15
		for remaining >= 255 {
			out = append(out, 255)
			remaining -= 255
		}
		out = append(out, byte(remaining))
	}
	return append(out, data...)
}

// zstdEncoder and zstdDecoder are shared: both are safe for concurrent
// use and creating them per chunk is wasteful.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("zarr: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("zarr: zstd decoder initialization failed: " + err.Error())
	}
}

type zstdCompressor struct{}

func (zstdCompressor) ID() string { return "zstd" }

func (zstdCompressor) Compress(data []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(data, nil), nil
}

func (zstdCompressor) Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(out) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, want %d", len(out), uncompressedSize)
	}
	return out, nil
}

// readExactly reads exactly n bytes and verifies the stream ends
// there.
func readExactly(reader io.Reader, n int, codec string) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("%s decompress: %w", codec, err)
	}
	var extra [1]byte
	if read, _ := reader.Read(extra[:]); read != 0 {
		return nil, fmt.Errorf("%s decompress: stream longer than expected %d bytes", codec, n)
	}
	return out, nil
}
