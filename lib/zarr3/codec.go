// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package zarr3

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/voxelforge/voxelforge/lib/voxel"
)

// CodecSpec is the wire form of one codec in an array's codec chain:
// a registered name plus a codec-specific configuration object.
type CodecSpec struct {
	Name          string          `json:"name"`
	Configuration json.RawMessage `json:"configuration,omitempty"`
}

// bytesBytesCodec transforms encoded byte streams (compression,
// checksums). Decode is given the expected decoded size.
type bytesBytesCodec interface {
	spec() CodecSpec
	encode(data []byte) ([]byte, error)
	decode(data []byte, decodedSize int) ([]byte, error)
}

// Chain is a parsed array codec chain: one array→bytes codec (bytes)
// followed by any number of bytes→bytes codecs, or a single
// sharding_indexed codec.
type Chain struct {
	Sharding *ShardingCodec

	bytes      *bytesCodec
	byteCodecs []bytesBytesCodec
}

// ParseChain parses and validates a codec chain.
func ParseChain(specs []CodecSpec) (*Chain, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("empty codec chain")
	}

	if specs[0].Name == "sharding_indexed" {
		if len(specs) != 1 {
			return nil, fmt.Errorf("sharding_indexed must be the only codec in the chain")
		}
		sharding, err := parseShardingCodec(specs[0].Configuration)
		if err != nil {
			return nil, err
		}
		return &Chain{Sharding: sharding}, nil
	}

	if specs[0].Name != "bytes" {
		return nil, fmt.Errorf("codec chain must start with \"bytes\" or \"sharding_indexed\", got %q", specs[0].Name)
	}
	bytesC, err := parseBytesCodec(specs[0].Configuration)
	if err != nil {
		return nil, err
	}

	chain := &Chain{bytes: bytesC}
	for _, spec := range specs[1:] {
		codec, err := parseBytesBytesCodec(spec)
		if err != nil {
			return nil, err
		}
		chain.byteCodecs = append(chain.byteCodecs, codec)
	}
	return chain, nil
}

// Specs returns the wire form of the chain.
func (c *Chain) Specs() []CodecSpec {
	if c.Sharding != nil {
		return []CodecSpec{c.Sharding.spec()}
	}
	specs := []CodecSpec{c.bytes.spec()}
	for _, codec := range c.byteCodecs {
		specs = append(specs, codec.spec())
	}
	return specs
}

// EncodeChunk serializes a chunk through a non-sharding chain.
func (c *Chain) EncodeChunk(chunk *voxel.Chunk) ([]byte, error) {
	if c.Sharding != nil {
		return nil, fmt.Errorf("sharded arrays are written through a ShardBuilder")
	}
	data, err := c.bytes.encodeArray(chunk)
	if err != nil {
		return nil, err
	}
	for _, codec := range c.byteCodecs {
		data, err = codec.encode(data)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// DecodeChunk deserializes a chunk through a non-sharding chain.
func (c *Chain) DecodeChunk(data []byte, dt voxel.DataType, extents [3]int) (*voxel.Chunk, error) {
	if c.Sharding != nil {
		return nil, fmt.Errorf("sharded arrays are read through the shard index")
	}
	decodedSize := extents[0] * extents[1] * extents[2] * dt.Size()
	var err error
	for i := len(c.byteCodecs) - 1; i >= 0; i-- {
		data, err = c.byteCodecs[i].decode(data, decodedSize)
		if err != nil {
			return nil, err
		}
	}
	return c.bytes.decodeArray(data, dt, extents)
}

// bytesCodec is the array→bytes codec: C-order serialization with a
// declared endianness.
type bytesCodec struct {
	Endian string `json:"endian"`
}

func parseBytesCodec(config json.RawMessage) (*bytesCodec, error) {
	codec := bytesCodec{Endian: "little"}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &codec); err != nil {
			return nil, fmt.Errorf("parsing bytes codec: %w", err)
		}
	}
	if codec.Endian != "little" && codec.Endian != "big" {
		return nil, fmt.Errorf("bytes codec endian %q invalid", codec.Endian)
	}
	return &codec, nil
}

func (c *bytesCodec) spec() CodecSpec {
	config, _ := json.Marshal(c)
	return CodecSpec{Name: "bytes", Configuration: config}
}

func (c *bytesCodec) encodeArray(chunk *voxel.Chunk) ([]byte, error) {
	data := chunk.COrderBytes()
	if c.Endian == "big" {
		return voxel.SwapEndianness(data, chunk.DataType.Size())
	}
	// COrderBytes may alias the chunk's buffer for degenerate shapes;
	// the caller treats the result as read-only, so that is fine.
	return data, nil
}

func (c *bytesCodec) decodeArray(data []byte, dt voxel.DataType, extents [3]int) (*voxel.Chunk, error) {
	var err error
	if c.Endian == "big" {
		data, err = voxel.SwapEndianness(data, dt.Size())
		if err != nil {
			return nil, err
		}
	}
	return voxel.ChunkFromCOrder(dt, extents, data)
}

// gzipCodec is the registered gzip bytes→bytes codec.
type gzipCodec struct {
	Level int `json:"level"`
}

func parseGzipCodec(config json.RawMessage) (*gzipCodec, error) {
	codec := gzipCodec{Level: gzip.DefaultCompression}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &codec); err != nil {
			return nil, fmt.Errorf("parsing gzip codec: %w", err)
		}
	}
	if codec.Level < gzip.HuffmanOnly || codec.Level > gzip.BestCompression {
		return nil, fmt.Errorf("gzip level %d out of range", codec.Level)
	}
	return &codec, nil
}

func (c *gzipCodec) spec() CodecSpec {
	config, _ := json.Marshal(c)
	return CodecSpec{Name: "gzip", Configuration: config}
}

func (c *gzipCodec) encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, c.Level)
	if err != nil {
		return nil, fmt.Errorf("gzip codec: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("gzip codec: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip codec: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *gzipCodec) decode(data []byte, decodedSize int) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip codec: %w", err)
	}
	defer reader.Close()
	out := make([]byte, decodedSize)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("gzip codec: %w", err)
	}
	var extra [1]byte
	if n, _ := reader.Read(extra[:]); n != 0 {
		return nil, fmt.Errorf("gzip codec: stream longer than %d bytes", decodedSize)
	}
	return out, nil
}

// zstdCodec is the registered zstd bytes→bytes codec.
type zstdCodec struct {
	Level int `json:"level"`
}

var (
	zstdChunkDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdChunkDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("zarr3: zstd decoder initialization failed: " + err.Error())
	}
}

func parseZstdCodec(config json.RawMessage) (*zstdCodec, error) {
	codec := zstdCodec{Level: 3}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &codec); err != nil {
			return nil, fmt.Errorf("parsing zstd codec: %w", err)
		}
	}
	return &codec, nil
}

func (c *zstdCodec) spec() CodecSpec {
	config, _ := json.Marshal(c)
	return CodecSpec{Name: "zstd", Configuration: config}
}

func (c *zstdCodec) encode(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.Level)))
	if err != nil {
		return nil, fmt.Errorf("zstd codec: %w", err)
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}

func (c *zstdCodec) decode(data []byte, decodedSize int) ([]byte, error) {
	out, err := zstdChunkDecoder.DecodeAll(data, make([]byte, 0, decodedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd codec: %w", err)
	}
	if len(out) != decodedSize {
		return nil, fmt.Errorf("zstd codec: got %d bytes, want %d", len(out), decodedSize)
	}
	return out, nil
}

// crc32cCodec appends a little-endian CRC-32C (Castagnoli) checksum.
// It appears in shard index chains, where it protects the offset
// table that every chunk read depends on.
type crc32cCodec struct{}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func (crc32cCodec) spec() CodecSpec {
	return CodecSpec{Name: "crc32c"}
}

func (crc32cCodec) encode(data []byte) ([]byte, error) {
	out := make([]byte, len(data)+4)
	copy(out, data)
	binary.LittleEndian.PutUint32(out[len(data):], crc32.Checksum(data, castagnoli))
	return out, nil
}

func (crc32cCodec) decode(data []byte, decodedSize int) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("crc32c codec: %d-byte input has no checksum", len(data))
	}
	payload := data[:len(data)-4]
	stored := binary.LittleEndian.Uint32(data[len(data)-4:])
	if computed := crc32.Checksum(payload, castagnoli); computed != stored {
		return nil, fmt.Errorf("crc32c mismatch: stored %08x, computed %08x", stored, computed)
	}
	if len(payload) != decodedSize {
		return nil, fmt.Errorf("crc32c codec: payload is %d bytes, want %d", len(payload), decodedSize)
	}
	return payload, nil
}

// parseBytesBytesCodec dispatches on the registered codec name.
func parseBytesBytesCodec(spec CodecSpec) (bytesBytesCodec, error) {
	switch spec.Name {
	case "gzip":
		return parseGzipCodec(spec.Configuration)
	case "zstd":
		return parseZstdCodec(spec.Configuration)
	case "crc32c":
		return crc32cCodec{}, nil
	default:
		return nil, fmt.Errorf("codec %q not in registry", spec.Name)
	}
}
