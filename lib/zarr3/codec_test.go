// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package zarr3

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/voxelforge/voxelforge/lib/voxel"
)

func rawSpec(t *testing.T, name, config string) CodecSpec {
	t.Helper()
	spec := CodecSpec{Name: name}
	if config != "" {
		spec.Configuration = json.RawMessage(config)
	}
	return spec
}

func patternChunk(size [3]int) *voxel.Chunk {
	chunk := voxel.NewChunk(voxel.Uint16, size)
	for i := 0; i < chunk.NumSamples(); i++ {
		binary.LittleEndian.PutUint16(chunk.Data[i*2:], uint16(i*3+1))
	}
	return chunk
}

func TestParseChain_Rules(t *testing.T) {
	if _, err := ParseChain(nil); err == nil {
		t.Error("empty chain should be rejected")
	}
	if _, err := ParseChain([]CodecSpec{rawSpec(t, "gzip", "")}); err == nil {
		t.Error("chain must start with bytes or sharding_indexed")
	}
	if _, err := ParseChain([]CodecSpec{rawSpec(t, "bytes", ""), rawSpec(t, "blosc", "")}); err == nil {
		t.Error("unregistered codec should be rejected")
	}
	if _, err := ParseChain([]CodecSpec{rawSpec(t, "bytes", `{"endian": "middle"}`)}); err == nil {
		t.Error("invalid endian should be rejected")
	}

	sharding := `{
		"chunk_shape": [2, 2, 2],
		"codecs": [{"name": "bytes"}],
		"index_codecs": [{"name": "bytes"}]
	}`
	if _, err := ParseChain([]CodecSpec{rawSpec(t, "sharding_indexed", sharding), rawSpec(t, "gzip", "")}); err == nil {
		t.Error("sharding_indexed must be the sole codec")
	}
	chain, err := ParseChain([]CodecSpec{rawSpec(t, "sharding_indexed", sharding)})
	if err != nil {
		t.Fatalf("sole sharding_indexed failed: %v", err)
	}
	if chain.Sharding == nil {
		t.Error("sharding chain should expose its codec")
	}
}

func TestChain_RoundTrips(t *testing.T) {
	cases := []struct {
		name  string
		specs []CodecSpec
	}{
		{"bytes only", []CodecSpec{rawSpec(t, "bytes", `{"endian": "little"}`)}},
		{"bytes big endian", []CodecSpec{rawSpec(t, "bytes", `{"endian": "big"}`)}},
		{"gzip", []CodecSpec{rawSpec(t, "bytes", ""), rawSpec(t, "gzip", `{"level": 5}`)}},
		{"zstd", []CodecSpec{rawSpec(t, "bytes", ""), rawSpec(t, "zstd", `{"level": 3}`)}},
		{"gzip then crc32c", []CodecSpec{rawSpec(t, "bytes", ""), rawSpec(t, "gzip", `{"level": 1}`), rawSpec(t, "crc32c", "")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain, err := ParseChain(tc.specs)
			if err != nil {
				t.Fatalf("ParseChain failed: %v", err)
			}
			chunk := patternChunk([3]int{4, 3, 5})

			encoded, err := chain.EncodeChunk(chunk)
			if err != nil {
				t.Fatalf("EncodeChunk failed: %v", err)
			}
			decoded, err := chain.DecodeChunk(encoded, voxel.Uint16, chunk.Size)
			if err != nil {
				t.Fatalf("DecodeChunk failed: %v", err)
			}
			if !bytes.Equal(decoded.Data, chunk.Data) {
				t.Fatal("round trip changed the data")
			}
		})
	}
}

func TestBytesCodec_BigEndianLayout(t *testing.T) {
	chain, err := ParseChain([]CodecSpec{rawSpec(t, "bytes", `{"endian": "big"}`)})
	if err != nil {
		t.Fatal(err)
	}
	chunk := voxel.NewChunk(voxel.Uint16, [3]int{1, 1, 1})
	binary.LittleEndian.PutUint16(chunk.Data, 0x1234)

	encoded, err := chain.EncodeChunk(chunk)
	if err != nil {
		t.Fatal(err)
	}
	if encoded[0] != 0x12 || encoded[1] != 0x34 {
		t.Errorf("big-endian encoding produced % x", encoded)
	}
}

func TestCrc32c_DetectsCorruption(t *testing.T) {
	chain, err := ParseChain([]CodecSpec{rawSpec(t, "bytes", ""), rawSpec(t, "crc32c", "")})
	if err != nil {
		t.Fatal(err)
	}
	chunk := patternChunk([3]int{2, 2, 2})
	encoded, err := chain.EncodeChunk(chunk)
	if err != nil {
		t.Fatal(err)
	}

	encoded[3] ^= 0xFF
	if _, err := chain.DecodeChunk(encoded, voxel.Uint16, chunk.Size); err == nil {
		t.Fatal("corrupted payload should fail the checksum")
	}
}

func TestChain_SpecsRoundTrip(t *testing.T) {
	specs := []CodecSpec{rawSpec(t, "bytes", `{"endian": "little"}`), rawSpec(t, "gzip", `{"level": 9}`)}
	chain, err := ParseChain(specs)
	if err != nil {
		t.Fatal(err)
	}

	reparsed, err := ParseChain(chain.Specs())
	if err != nil {
		t.Fatalf("reparsing emitted specs failed: %v", err)
	}
	chunk := patternChunk([3]int{3, 3, 3})
	encoded, err := chain.EncodeChunk(chunk)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := reparsed.DecodeChunk(encoded, voxel.Uint16, chunk.Size)
	if err != nil {
		t.Fatalf("decoding with reparsed chain failed: %v", err)
	}
	if !bytes.Equal(decoded.Data, chunk.Data) {
		t.Fatal("reparsed chain decoded different data")
	}
}

func TestGzipCodec_RejectsOversizedStream(t *testing.T) {
	chain, err := ParseChain([]CodecSpec{rawSpec(t, "bytes", ""), rawSpec(t, "gzip", "")})
	if err != nil {
		t.Fatal(err)
	}
	chunk := patternChunk([3]int{4, 4, 4})
	encoded, err := chain.EncodeChunk(chunk)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := chain.DecodeChunk(encoded, voxel.Uint16, [3]int{2, 2, 2}); err == nil {
		t.Fatal("stream longer than the chunk should be rejected")
	}
}
