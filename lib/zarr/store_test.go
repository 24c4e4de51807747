// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package zarr

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/voxelforge/voxelforge/lib/accessor"
	"github.com/voxelforge/voxelforge/lib/voxel"
)

// spatialDataset builds a single-channel dataset whose stored dimension
// order is (z, y, x), the common NGFF layout, so axis permutation is
// exercised on every access.
func spatialDataset(t *testing.T) accessor.Accessor {
	t.Helper()
	ctx := context.Background()
	acc := accessor.NewMemoryAccessor()

	store := func(name, data string) {
		if err := acc.Store(ctx, name, []byte(data)); err != nil {
			t.Fatal(err)
		}
	}
	store(".zgroup", `{"zarr_format": 2}`)
	store(".zattrs", `{
		"multiscales": [{
			"version": "0.4",
			"axes": [
				{"name": "z", "type": "space", "unit": "micrometer"},
				{"name": "y", "type": "space", "unit": "micrometer"},
				{"name": "x", "type": "space", "unit": "micrometer"}
			],
			"datasets": [{
				"path": "s0",
				"coordinateTransformations": [{"type": "scale", "scale": [2, 2, 1]}]
			}]
		}]
	}`)
	store("s0/.zarray", `{
		"zarr_format": 2,
		"shape": [7, 10, 12],
		"chunks": [4, 5, 6],
		"dtype": "<u2",
		"compressor": {"id": "zlib", "level": 1},
		"fill_value": 0,
		"order": "C"
	}`)
	return acc
}

func TestOpen_ResolvesPermutedAxes(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, spatialDataset(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if store.DataType() != voxel.Uint16 {
		t.Errorf("data type %q", store.DataType())
	}
	if store.NumChannels() != 1 {
		t.Errorf("channels %d", store.NumChannels())
	}
	if paths := store.Datasets(); len(paths) != 1 || paths[0] != "s0" {
		t.Errorf("datasets %v", paths)
	}

	info, err := store.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	scale := info.Scales[0]
	// Stored order is (z, y, x): shape [7 10 12] is x=12, y=10, z=7.
	if scale.Size != [3]int{12, 10, 7} {
		t.Errorf("size %v, want {12 10 7}", scale.Size)
	}
	// Scale factors are in stored order too, scaled by the micrometer
	// unit: x=1um, y=2um, z=2um.
	if scale.Resolution != [3]float64{1000, 2000, 2000} {
		t.Errorf("resolution %v, want {1000 2000 2000}", scale.Resolution)
	}
	if scale.ChunkSizes[0] != [3]int{6, 5, 4} {
		t.Errorf("chunk size %v, want {6 5 4}", scale.ChunkSizes[0])
	}
}

func TestStore_WriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, spatialDataset(t))
	if err != nil {
		t.Fatal(err)
	}

	chunk := voxel.NewChunk(voxel.Uint16, [3]int{6, 5, 4})
	for i := 0; i < chunk.NumSamples(); i++ {
		binary.LittleEndian.PutUint16(chunk.Data[i*2:], uint16(i+100))
	}
	box := voxel.Box{Min: [3]int{0, 5, 0}, Max: [3]int{6, 10, 4}}

	if err := store.WriteChunk(ctx, "s0", box, chunk); err != nil {
		t.Fatalf("WriteChunk failed: %v", err)
	}
	read, err := store.ReadChunk(ctx, "s0", box)
	if err != nil {
		t.Fatalf("ReadChunk failed: %v", err)
	}
	if !bytes.Equal(read.Data, chunk.Data) {
		t.Fatal("round trip through stored C-order changed the data")
	}
}

func TestStore_ClampedReadCropsStoredChunk(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, spatialDataset(t))
	if err != nil {
		t.Fatal(err)
	}

	// z runs 0..7 with chunk extent 4, so the last z chunk is stored
	// full (padded) but read clamped to 3 planes.
	full := voxel.NewChunk(voxel.Uint16, [3]int{6, 5, 4})
	for i := 0; i < full.NumSamples(); i++ {
		binary.LittleEndian.PutUint16(full.Data[i*2:], uint16(i+1))
	}
	writeBox := voxel.Box{Min: [3]int{0, 0, 4}, Max: [3]int{6, 5, 8}}
	if err := store.WriteChunk(ctx, "s0", writeBox, full); err != nil {
		t.Fatalf("WriteChunk failed: %v", err)
	}

	readBox := voxel.Box{Min: [3]int{0, 0, 4}, Max: [3]int{6, 5, 7}}
	read, err := store.ReadChunk(ctx, "s0", readBox)
	if err != nil {
		t.Fatalf("ReadChunk failed: %v", err)
	}
	if read.Size != [3]int{6, 5, 3} {
		t.Fatalf("clamped chunk size %v", read.Size)
	}
	// The clamped chunk is the first 3 z planes of the stored chunk.
	if !bytes.Equal(read.Data, full.Data[:len(read.Data)]) {
		t.Fatal("cropped chunk does not match the stored planes")
	}
}

func TestStore_MissingChunkReadsAsFill(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, spatialDataset(t))
	if err != nil {
		t.Fatal(err)
	}

	box := voxel.Box{Min: [3]int{6, 0, 0}, Max: [3]int{12, 5, 4}}
	chunk, err := store.ReadChunk(ctx, "s0", box)
	if err != nil {
		t.Fatalf("ReadChunk failed: %v", err)
	}
	for _, b := range chunk.Data {
		if b != 0 {
			t.Fatal("missing chunk should read as the fill value")
		}
	}
}

// channelDataset stores two channels of 4x4x4 uint8 data with a leading
// channel axis, one channel per chunk file, no compressor.
func channelDataset(t *testing.T) accessor.Accessor {
	t.Helper()
	ctx := context.Background()
	acc := accessor.NewMemoryAccessor()

	store := func(name string, data []byte) {
		if err := acc.Store(ctx, name, data); err != nil {
			t.Fatal(err)
		}
	}
	store(".zgroup", []byte(`{"zarr_format": 2}`))
	store(".zattrs", []byte(`{
		"multiscales": [{
			"axes": [
				{"name": "c", "type": "channel"},
				{"name": "x", "type": "space", "unit": "nanometer"},
				{"name": "y", "type": "space", "unit": "nanometer"},
				{"name": "z", "type": "space", "unit": "nanometer"}
			],
			"datasets": [{
				"path": "s0",
				"coordinateTransformations": [{"type": "scale", "scale": [1, 10, 10, 10]}]
			}]
		}]
	}`))
	store("s0/.zarray", []byte(`{
		"zarr_format": 2,
		"shape": [2, 4, 4, 4],
		"chunks": [1, 4, 4, 4],
		"dtype": "|u1",
		"compressor": null,
		"fill_value": 0,
		"order": "C"
	}`))

	// Stored buffers are C order over (c, x, y, z) with a single
	// channel per file: index (x*4 + y)*4 + z.
	for channel := 0; channel < 2; channel++ {
		raw := make([]byte, 64)
		for i := range raw {
			raw[i] = byte(channel*100 + i)
		}
		store("s0/"+string(rune('0'+channel))+".0.0.0", raw)
	}
	return acc
}

func TestStore_ReadChunkChannel(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, channelDataset(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if store.NumChannels() != 2 {
		t.Fatalf("channels %d, want 2", store.NumChannels())
	}

	box := voxel.Box{Min: [3]int{0, 0, 0}, Max: [3]int{4, 4, 4}}
	for channel := 0; channel < 2; channel++ {
		chunk, err := store.ReadChunkChannel(ctx, "s0", box, channel)
		if err != nil {
			t.Fatalf("ReadChunkChannel(%d) failed: %v", channel, err)
		}
		for z := 0; z < 4; z++ {
			for y := 0; y < 4; y++ {
				for x := 0; x < 4; x++ {
					want := byte(channel*100 + (x*4+y)*4 + z)
					got := chunk.Data[x+4*(y+4*z)]
					if got != want {
						t.Fatalf("channel %d sample (%d,%d,%d): got %d, want %d",
							channel, x, y, z, got, want)
					}
				}
			}
		}
	}

	if _, err := store.ReadChunkChannel(ctx, "s0", box, 2); err == nil {
		t.Error("expected error for out-of-range channel")
	}
	if err := store.WriteChunk(ctx, "s0", box, voxel.NewChunk(voxel.Uint8, [3]int{4, 4, 4})); err == nil {
		t.Error("WriteChunk should reject multi-channel datasets")
	}
}

func TestStore_UnknownDataset(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, spatialDataset(t))
	if err != nil {
		t.Fatal(err)
	}
	box := voxel.Box{Min: [3]int{0, 0, 0}, Max: [3]int{6, 5, 4}}
	if _, err := store.ReadChunk(ctx, "s1", box); err == nil {
		t.Fatal("expected error for unknown dataset path")
	}
}
