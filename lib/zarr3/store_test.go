// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package zarr3

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/voxelforge/voxelforge/lib/accessor"
	"github.com/voxelforge/voxelforge/lib/precomputed"
	"github.com/voxelforge/voxelforge/lib/voxel"
)

func convertInfo() *precomputed.Info {
	return &precomputed.Info{
		Type:        "image",
		DataType:    voxel.Uint16,
		NumChannels: 1,
		Scales: []precomputed.Scale{
			{
				Key:        "20um",
				Size:       [3]int{100, 100, 100},
				Resolution: [3]float64{20000, 20000, 20000},
				ChunkSizes: [][3]int{{25, 25, 25}},
				Encoding:   "raw",
			},
			{
				Key:         "40um",
				Size:        [3]int{50, 50, 50},
				Resolution:  [3]float64{40000, 40000, 40000},
				ChunkSizes:  [][3]int{{25, 25, 25}},
				Encoding:    "raw",
				VoxelOffset: [3]int{2, 0, 0},
			},
		},
	}
}

func TestFromPrecomputedInfo(t *testing.T) {
	group, arrays, err := FromPrecomputedInfo(convertInfo(), ConvertOptions{})
	if err != nil {
		t.Fatalf("FromPrecomputedInfo failed: %v", err)
	}

	multiscale := group.Attributes.OME.Multiscales[0]
	if group.Attributes.OME.Version != "0.5" {
		t.Errorf("ome version %q", group.Attributes.OME.Version)
	}
	if len(multiscale.Axes) != 3 || multiscale.Axes[0].Name != "x" || multiscale.Axes[0].Unit != "nanometer" {
		t.Errorf("unexpected axes %+v", multiscale.Axes)
	}

	// 20um: 4 chunks per axis, fanout 4 -> 1 chunk per shard, shard 25.
	array := arrays["20um"]
	if array.ChunkShape() != [3]int{25, 25, 25} {
		t.Errorf("20um shard shape %v, want {25 25 25}", array.ChunkShape())
	}
	// 40um: 2 chunks per axis, fanout 4 -> still 1 chunk per shard.
	if arrays["40um"].ChunkShape() != [3]int{25, 25, 25} {
		t.Errorf("40um shard shape %v", arrays["40um"].ChunkShape())
	}

	// A smaller fanout packs more chunks per shard.
	_, arrays, err = FromPrecomputedInfo(convertInfo(), ConvertOptions{ShardFanout: 2})
	if err != nil {
		t.Fatal(err)
	}
	if arrays["20um"].ChunkShape() != [3]int{50, 50, 50} {
		t.Errorf("fanout 2 shard shape %v, want {50 50 50}", arrays["20um"].ChunkShape())
	}

	// Transforms: scale first, then the voxel-offset translation.
	datasets := multiscale.Datasets
	if len(datasets[0].CoordinateTransformations) != 1 {
		t.Errorf("20um transforms %+v", datasets[0].CoordinateTransformations)
	}
	transforms := datasets[1].CoordinateTransformations
	if len(transforms) != 2 || transforms[0].Type != "scale" || transforms[1].Type != "translation" {
		t.Fatalf("40um transforms %+v", transforms)
	}
	if transforms[1].Translation[0] != 2*40000 {
		t.Errorf("translation %v, want x = 80000", transforms[1].Translation)
	}
}

func TestFromPrecomputedInfo_RejectsMultiChannel(t *testing.T) {
	info := convertInfo()
	info.NumChannels = 3
	if _, _, err := FromPrecomputedInfo(info, ConvertOptions{}); err == nil {
		t.Fatal("expected error for multi-channel source")
	}
}

// createTestStore writes a two-scale dataset into a fresh memory
// accessor and fills the 20um scale with a deterministic pattern.
func createTestStore(t *testing.T) (*Store, accessor.Accessor) {
	t.Helper()
	ctx := context.Background()
	acc := accessor.NewMemoryAccessor()

	group, arrays, err := FromPrecomputedInfo(convertInfo(), ConvertOptions{})
	if err != nil {
		t.Fatal(err)
	}
	store, err := Create(ctx, acc, group, arrays)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return store, acc
}

func sampleAt(box voxel.Box, x, y, z int) uint16 {
	return uint16((box.Min[0] + x) + 100*(box.Min[1]+y) + 7*(box.Min[2]+z))
}

func fillChunk(box voxel.Box) *voxel.Chunk {
	extents := box.Extents()
	chunk := voxel.NewChunk(voxel.Uint16, extents)
	for z := 0; z < extents[2]; z++ {
		for y := 0; y < extents[1]; y++ {
			for x := 0; x < extents[0]; x++ {
				offset := (x + extents[0]*(y+extents[1]*z)) * 2
				binary.LittleEndian.PutUint16(chunk.Data[offset:], sampleAt(box, x, y, z))
			}
		}
	}
	return chunk
}

func TestStore_ShardRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := createTestStore(t)

	// One shard holds a single 25^3 inner chunk at fanout 4.
	builder, err := store.NewShardBuilder("20um")
	if err != nil {
		t.Fatalf("NewShardBuilder failed: %v", err)
	}
	box := voxel.Box{Min: [3]int{25, 50, 0}, Max: [3]int{50, 75, 25}}
	if err := builder.Put([3]int{0, 0, 0}, fillChunk(box)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.StoreShard(ctx, "20um", [3]int{1, 2, 0}, builder); err != nil {
		t.Fatalf("StoreShard failed: %v", err)
	}

	// Reopen from the stored metadata and read the chunk back.
	reopened, err := Open(ctx, store.Accessor())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	chunk, err := reopened.ReadChunk(ctx, "20um", box)
	if err != nil {
		t.Fatalf("ReadChunk failed: %v", err)
	}
	if !bytes.Equal(chunk.Data, fillChunk(box).Data) {
		t.Fatal("shard round trip changed the data")
	}
}

func TestStore_EmptyShardNotStored(t *testing.T) {
	ctx := context.Background()
	store, acc := createTestStore(t)

	builder, err := store.NewShardBuilder("20um")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.StoreShard(ctx, "20um", [3]int{0, 0, 0}, builder); err != nil {
		t.Fatalf("StoreShard failed: %v", err)
	}

	name, err := store.BlobName("20um", [3]int{0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := acc.Fetch(ctx, name); !accessor.IsNotFound(err) {
		t.Error("empty shard should not produce a blob")
	}
}

func TestStore_MissingShardReadsAsFill(t *testing.T) {
	ctx := context.Background()
	store, _ := createTestStore(t)

	box := voxel.Box{Min: [3]int{75, 75, 75}, Max: [3]int{100, 100, 100}}
	chunk, err := store.ReadChunk(ctx, "20um", box)
	if err != nil {
		t.Fatalf("ReadChunk failed: %v", err)
	}
	for _, b := range chunk.Data {
		if b != 0 {
			t.Fatal("missing shard should read as the fill value")
		}
	}
}

func TestStore_BlobName(t *testing.T) {
	store, _ := createTestStore(t)
	name, err := store.BlobName("20um", [3]int{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if name != "20um/c/1/2/3" {
		t.Errorf("blob name %q, want 20um/c/1/2/3", name)
	}
	if _, err := store.BlobName("80um", [3]int{0, 0, 0}); err == nil {
		t.Error("expected error for unknown dataset")
	}
}

func TestStore_ReadShape(t *testing.T) {
	store, _ := createTestStore(t)
	shape, err := store.ReadShape("20um")
	if err != nil {
		t.Fatal(err)
	}
	// Sharded arrays are addressed by their inner chunk shape.
	if shape != [3]int{25, 25, 25} {
		t.Errorf("read shape %v, want {25 25 25}", shape)
	}
}

func TestStore_Info(t *testing.T) {
	store, _ := createTestStore(t)
	info, err := store.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Type != "image" {
		t.Errorf("type %q for uint16 data", info.Type)
	}
	if info.DataType != voxel.Uint16 {
		t.Errorf("data type %q", info.DataType)
	}
	scale := info.Scales[0]
	if scale.Resolution != [3]float64{20000, 20000, 20000} {
		t.Errorf("resolution %v", scale.Resolution)
	}
	if scale.ChunkSizes[0] != [3]int{25, 25, 25} {
		t.Errorf("chunk size %v", scale.ChunkSizes[0])
	}
	if info.Scales[1].VoxelOffset != [3]int{2, 0, 0} {
		t.Errorf("voxel offset %v, want {2 0 0}", info.Scales[1].VoxelOffset)
	}
}

func TestStore_NonShardedWriteRead(t *testing.T) {
	ctx := context.Background()
	acc := accessor.NewMemoryAccessor()

	group, arrays, err := FromPrecomputedInfo(convertInfo(), ConvertOptions{})
	if err != nil {
		t.Fatal(err)
	}
	// Swap the 20um codec chain for a plain bytes+gzip chain.
	plain := arrays["20um"]
	bytesLittle := bytesCodec{Endian: "little"}
	gzipOuter := gzipCodec{Level: 5}
	plain.Codecs = []CodecSpec{bytesLittle.spec(), gzipOuter.spec()}
	plain.ChunkGrid.Configuration.ChunkShape = []int{25, 25, 25}

	store, err := Create(ctx, acc, group, arrays)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	box := voxel.Box{Min: [3]int{50, 0, 25}, Max: [3]int{75, 25, 50}}
	chunk := fillChunk(box)
	if err := store.WriteChunk(ctx, "20um", box, chunk); err != nil {
		t.Fatalf("WriteChunk failed: %v", err)
	}
	read, err := store.ReadChunk(ctx, "20um", box)
	if err != nil {
		t.Fatalf("ReadChunk failed: %v", err)
	}
	if !bytes.Equal(read.Data, chunk.Data) {
		t.Fatal("non-sharded round trip changed the data")
	}

	// A sharded scale rejects direct chunk writes.
	if err := store.WriteChunk(ctx, "40um", voxel.Box{Min: [3]int{0, 0, 0}, Max: [3]int{25, 25, 25}},
		voxel.NewChunk(voxel.Uint16, [3]int{25, 25, 25})); err == nil {
		t.Error("WriteChunk on a sharded dataset should fail")
	}
}

func TestOpen_RejectsPermutedAxes(t *testing.T) {
	ctx := context.Background()
	_, acc := createTestStore(t)

	// Rewrite the group metadata with z, y, x axes.
	group, _, err := FromPrecomputedInfo(convertInfo(), ConvertOptions{})
	if err != nil {
		t.Fatal(err)
	}
	axes := group.Attributes.OME.Multiscales[0].Axes
	axes[0].Name, axes[2].Name = axes[2].Name, axes[0].Name
	data, err := group.MarshalIndent()
	if err != nil {
		t.Fatal(err)
	}
	if err := acc.Store(ctx, MetadataName, data); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(ctx, acc); err == nil {
		t.Fatal("permuted axes should be rejected")
	}
}
