// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package zarr3

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/voxelforge/voxelforge/lib/accessor"
	"github.com/voxelforge/voxelforge/lib/precomputed"
	"github.com/voxelforge/voxelforge/lib/voxel"
)

// unitToNanometers converts NGFF axis units to the nanometer
// resolutions used by precomputed info. An axis without a unit is
// treated as millimeters, matching the zarr v2 reader.
var unitToNanometers = map[string]float64{
	"nanometer":  1,
	"micrometer": 1e3,
	"millimeter": 1e6,
	"centimeter": 1e7,
	"meter":      1e9,
	"":           1e6,
}

// arrayNode is one resolution level: its parsed metadata and codec
// chain.
type arrayNode struct {
	meta  *ArrayMetadata
	chain *Chain
}

// Store is an open zarr v3 multiscale dataset. All methods are safe
// for concurrent use.
type Store struct {
	acc   accessor.Accessor
	group *GroupMetadata
	paths []string

	arrays map[string]*arrayNode

	// Sequential readers revisit the same shard for every inner chunk;
	// keeping the last shard fetched per dataset avoids refetching it.
	mu         sync.Mutex
	shardName  string
	shardBlob  []byte
	shardFound bool
}

// Open reads and validates the group and array metadata of an
// existing dataset. Array metadata files are fetched concurrently.
func Open(ctx context.Context, acc accessor.Accessor) (*Store, error) {
	if !acc.CanRead() {
		return nil, fmt.Errorf("accessor does not support reading")
	}
	groupData, err := acc.Fetch(ctx, MetadataName)
	if err != nil {
		return nil, fmt.Errorf("fetching group %s: %w", MetadataName, err)
	}
	group, err := ParseGroupMetadata(groupData)
	if err != nil {
		return nil, err
	}

	store := &Store{
		acc:    acc,
		group:  group,
		arrays: make(map[string]*arrayNode),
	}

	datasets := group.Attributes.OME.Multiscales[0].Datasets
	type fetched struct {
		path string
		node *arrayNode
		err  error
	}
	results := make(chan fetched, len(datasets))
	var wg sync.WaitGroup
	for _, dataset := range datasets {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			node, err := openArray(ctx, acc, path)
			results <- fetched{path: path, node: node, err: err}
		}(dataset.Path)
	}
	wg.Wait()
	close(results)

	for result := range results {
		if result.err != nil {
			return nil, result.err
		}
		store.arrays[result.path] = result.node
	}
	for _, dataset := range datasets {
		store.paths = append(store.paths, dataset.Path)
	}
	if err := store.validateAxes(); err != nil {
		return nil, err
	}
	return store, nil
}

func openArray(ctx context.Context, acc accessor.Accessor, path string) (*arrayNode, error) {
	data, err := acc.Fetch(ctx, path+"/"+MetadataName)
	if err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", path, MetadataName, err)
	}
	meta, err := ParseArrayMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", path, err)
	}
	chain, err := ParseChain(meta.Codecs)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", path, err)
	}
	if chain.Sharding != nil {
		if err := chain.Sharding.ValidateShardShape(meta.ChunkShape()); err != nil {
			return nil, fmt.Errorf("dataset %q: %w", path, err)
		}
	}
	return &arrayNode{meta: meta, chain: chain}, nil
}

// validateAxes requires the axes the pipeline writes: exactly x, y, z
// space axes in that order. Datasets with channel or time axes, or
// permuted spatial axes, go through the zarr v2 reader instead.
func (s *Store) validateAxes() error {
	axes := s.group.Attributes.OME.Multiscales[0].Axes
	if len(axes) != 3 {
		return fmt.Errorf("multiscale has %d axes, want exactly x, y, z", len(axes))
	}
	names := [3]string{"x", "y", "z"}
	for i, axis := range axes {
		if axis.Name != names[i] {
			return fmt.Errorf("axis %d is %q, want %q", i, axis.Name, names[i])
		}
		if axis.Type != "" && axis.Type != "space" {
			return fmt.Errorf("axis %q has type %q, want \"space\"", axis.Name, axis.Type)
		}
	}
	return nil
}

// Create writes the group and array metadata of a new dataset.
func Create(ctx context.Context, acc accessor.Accessor, group *GroupMetadata, arrays map[string]*ArrayMetadata) (*Store, error) {
	if !acc.CanWrite() {
		return nil, fmt.Errorf("accessor does not support writing")
	}

	store := &Store{
		acc:    acc,
		group:  group,
		arrays: make(map[string]*arrayNode),
	}
	for _, dataset := range group.Attributes.OME.Multiscales[0].Datasets {
		meta, ok := arrays[dataset.Path]
		if !ok {
			return nil, fmt.Errorf("no array metadata for dataset %q", dataset.Path)
		}
		if err := meta.Validate(); err != nil {
			return nil, fmt.Errorf("dataset %q: %w", dataset.Path, err)
		}
		chain, err := ParseChain(meta.Codecs)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", dataset.Path, err)
		}
		if chain.Sharding != nil {
			if err := chain.Sharding.ValidateShardShape(meta.ChunkShape()); err != nil {
				return nil, fmt.Errorf("dataset %q: %w", dataset.Path, err)
			}
		}
		store.arrays[dataset.Path] = &arrayNode{meta: meta, chain: chain}
		store.paths = append(store.paths, dataset.Path)
	}
	if err := store.validateAxes(); err != nil {
		return nil, err
	}

	groupData, err := group.MarshalIndent()
	if err != nil {
		return nil, err
	}
	if err := acc.Store(ctx, MetadataName, groupData); err != nil {
		return nil, fmt.Errorf("storing group %s: %w", MetadataName, err)
	}
	for _, path := range store.paths {
		arrayData, err := store.arrays[path].meta.MarshalIndent()
		if err != nil {
			return nil, err
		}
		if err := acc.Store(ctx, path+"/"+MetadataName, arrayData); err != nil {
			return nil, fmt.Errorf("storing %s/%s: %w", path, MetadataName, err)
		}
	}
	return store, nil
}

// Group returns the parsed group metadata.
func (s *Store) Group() *GroupMetadata { return s.group }

// Accessor returns the underlying accessor.
func (s *Store) Accessor() accessor.Accessor { return s.acc }

// Datasets returns the dataset paths in multiscale order.
func (s *Store) Datasets() []string { return s.paths }

// Array returns the array metadata for a dataset path.
func (s *Store) Array(path string) (*ArrayMetadata, error) {
	node, ok := s.arrays[path]
	if !ok {
		return nil, fmt.Errorf("no dataset with path %q", path)
	}
	return node.meta, nil
}

// ReadShape returns the chunk shape reads are addressed by: the inner
// chunk shape of a sharded array, or the chunk grid shape otherwise.
func (s *Store) ReadShape(path string) ([3]int, error) {
	node, ok := s.arrays[path]
	if !ok {
		return [3]int{}, fmt.Errorf("no dataset with path %q", path)
	}
	if node.chain.Sharding != nil {
		return node.chain.Sharding.InnerShape(), nil
	}
	return node.meta.ChunkShape(), nil
}

// Info derives a precomputed-style Info from the multiscale metadata,
// so zarr v3 datasets can act as mirror and verification sources.
func (s *Store) Info() (*precomputed.Info, error) {
	multiscale := &s.group.Attributes.OME.Multiscales[0]

	var dataType voxel.DataType
	info := &precomputed.Info{NumChannels: 1}
	for _, dataset := range multiscale.Datasets {
		node := s.arrays[dataset.Path]
		meta := node.meta
		if dataType == "" {
			dataType = meta.DataType
		} else if meta.DataType != dataType {
			return nil, fmt.Errorf("dataset %q has data type %s, others have %s",
				dataset.Path, meta.DataType, dataType)
		}

		readShape, err := s.ReadShape(dataset.Path)
		if err != nil {
			return nil, err
		}

		scale := precomputed.Scale{
			Key:        dataset.Path,
			Size:       meta.Size(),
			ChunkSizes: [][3]int{readShape},
			Encoding:   "raw",
		}
		var scaleValues []float64
		var translation []float64
		for _, transform := range dataset.CoordinateTransformations {
			switch transform.Type {
			case "scale":
				scaleValues = transform.Scale
			case "translation":
				translation = transform.Translation
			}
		}
		if len(scaleValues) != 3 {
			return nil, fmt.Errorf("dataset %q scale transformation has rank %d, want 3",
				dataset.Path, len(scaleValues))
		}
		for axis := 0; axis < 3; axis++ {
			unit := multiscale.Axes[axis].Unit
			factor, ok := unitToNanometers[unit]
			if !ok {
				return nil, fmt.Errorf("dataset %q: unsupported axis unit %q", dataset.Path, unit)
			}
			scale.Resolution[axis] = scaleValues[axis] * factor
			if translation != nil && scaleValues[axis] != 0 {
				scale.VoxelOffset[axis] = int(math.Round(translation[axis] / scaleValues[axis]))
			}
		}
		info.Scales = append(info.Scales, scale)
	}

	info.DataType = dataType
	info.Type = "image"
	if dataType == voxel.Uint32 || dataType == voxel.Uint64 {
		info.Type = "segmentation"
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}

// chunkName returns the blob name of the chunk at grid coordinates.
func chunkName(path string, meta *ArrayMetadata, grid [3]int) string {
	return path + "/" + meta.ChunkKey(grid)
}

// BlobName returns the stored object name of the chunk (or shard) at
// outer grid coordinates.
func (s *Store) BlobName(path string, grid [3]int) (string, error) {
	node, ok := s.arrays[path]
	if !ok {
		return "", fmt.Errorf("no dataset with path %q", path)
	}
	return chunkName(path, node.meta, grid), nil
}

// gridAlign converts a box origin to grid coordinates for the given
// chunk shape, rejecting unaligned boxes.
func gridAlign(box voxel.Box, shape [3]int) ([3]int, error) {
	var grid [3]int
	for axis := 0; axis < 3; axis++ {
		if box.Min[axis]%shape[axis] != 0 {
			return [3]int{}, fmt.Errorf("box %s is not aligned to chunk shape %v", box, shape)
		}
		grid[axis] = box.Min[axis] / shape[axis]
	}
	return grid, nil
}

// ReadChunk reads the chunk covering box in the given dataset. box
// must be aligned to the read shape (the inner chunk shape for
// sharded arrays); its extents may be clamped at the volume bounds,
// in which case the stored full-shape chunk is cropped. Missing
// chunks yield fill-value chunks.
func (s *Store) ReadChunk(ctx context.Context, path string, box voxel.Box) (*voxel.Chunk, error) {
	node, ok := s.arrays[path]
	if !ok {
		return nil, fmt.Errorf("no dataset with path %q", path)
	}
	meta := node.meta
	extents := box.Clamp(meta.Size()).Extents()

	if node.chain.Sharding != nil {
		return s.readInnerChunk(ctx, path, node, box, extents)
	}

	chunkShape := meta.ChunkShape()
	grid, err := gridAlign(box, chunkShape)
	if err != nil {
		return nil, err
	}
	data, err := s.acc.Fetch(ctx, chunkName(path, meta, grid))
	if accessor.IsNotFound(err) {
		return voxel.NewChunk(meta.DataType, extents), nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching chunk %v of %q: %w", grid, path, err)
	}
	chunk, err := node.chain.DecodeChunk(data, meta.DataType, chunkShape)
	if err != nil {
		return nil, fmt.Errorf("chunk %v of %q: %w", grid, path, err)
	}
	return cropChunk(chunk, extents), nil
}

// readInnerChunk resolves box to a shard and an inner chunk within it.
func (s *Store) readInnerChunk(ctx context.Context, path string, node *arrayNode, box voxel.Box, extents [3]int) (*voxel.Chunk, error) {
	meta := node.meta
	sharding := node.chain.Sharding
	innerShape := sharding.InnerShape()
	shardShape := meta.ChunkShape()

	if _, err := gridAlign(box, innerShape); err != nil {
		return nil, err
	}
	var shardGrid, inner [3]int
	for axis := 0; axis < 3; axis++ {
		shardGrid[axis] = box.Min[axis] / shardShape[axis]
		inner[axis] = (box.Min[axis] % shardShape[axis]) / innerShape[axis]
	}

	name := chunkName(path, meta, shardGrid)
	shard, found, err := s.fetchShard(ctx, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return voxel.NewChunk(meta.DataType, extents), nil
	}

	chunk, present, err := sharding.DecodeInner(shard, meta.DataType, shardShape, inner)
	if err != nil {
		return nil, fmt.Errorf("shard %v of %q: %w", shardGrid, path, err)
	}
	if !present {
		return voxel.NewChunk(meta.DataType, extents), nil
	}
	return cropChunk(chunk, extents), nil
}

// fetchShard fetches a shard blob through the one-entry cache.
func (s *Store) fetchShard(ctx context.Context, name string) ([]byte, bool, error) {
	s.mu.Lock()
	if s.shardName == name {
		blob, found := s.shardBlob, s.shardFound
		s.mu.Unlock()
		return blob, found, nil
	}
	s.mu.Unlock()

	blob, err := s.acc.Fetch(ctx, name)
	found := true
	if accessor.IsNotFound(err) {
		blob, found, err = nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetching shard %s: %w", name, err)
	}

	s.mu.Lock()
	s.shardName, s.shardBlob, s.shardFound = name, blob, found
	s.mu.Unlock()
	return blob, found, nil
}

// cropChunk returns the low-corner subregion of a full-shape chunk.
func cropChunk(chunk *voxel.Chunk, extents [3]int) *voxel.Chunk {
	if extents == chunk.Size {
		return chunk
	}
	sampleSize := chunk.DataType.Size()
	cropped := voxel.NewChunk(chunk.DataType, extents)
	rowBytes := extents[0] * sampleSize
	i := 0
	for z := 0; z < extents[2]; z++ {
		for y := 0; y < extents[1]; y++ {
			src := (chunk.Size[0] * (y + chunk.Size[1]*z)) * sampleSize
			copy(cropped.Data[i:i+rowBytes], chunk.Data[src:])
			i += rowBytes
		}
	}
	return cropped
}

// WriteChunk encodes and stores a full-shape chunk of a non-sharded
// array. Sharded arrays are written shard-at-a-time through
// [Store.NewShardBuilder] and [Store.StoreShard].
func (s *Store) WriteChunk(ctx context.Context, path string, box voxel.Box, chunk *voxel.Chunk) error {
	node, ok := s.arrays[path]
	if !ok {
		return fmt.Errorf("no dataset with path %q", path)
	}
	if node.chain.Sharding != nil {
		return fmt.Errorf("dataset %q is sharded; write through a shard builder", path)
	}
	meta := node.meta
	chunkShape := meta.ChunkShape()
	if chunk.Size != chunkShape {
		return fmt.Errorf("chunk extents %v do not match chunk shape %v; pad boundary chunks before writing",
			chunk.Size, chunkShape)
	}
	grid, err := gridAlign(box, chunkShape)
	if err != nil {
		return err
	}
	data, err := node.chain.EncodeChunk(chunk)
	if err != nil {
		return fmt.Errorf("chunk %v of %q: %w", grid, path, err)
	}
	return s.acc.Store(ctx, chunkName(path, meta, grid), data)
}

// NewShardBuilder prepares a builder for one shard of a sharded
// dataset.
func (s *Store) NewShardBuilder(path string) (*ShardBuilder, error) {
	node, ok := s.arrays[path]
	if !ok {
		return nil, fmt.Errorf("no dataset with path %q", path)
	}
	if node.chain.Sharding == nil {
		return nil, fmt.Errorf("dataset %q is not sharded", path)
	}
	return NewShardBuilder(node.chain.Sharding, node.meta.ChunkShape())
}

// StoreShard stores a completed shard at the given outer grid
// coordinates. Empty shards (every inner chunk absent) are skipped so
// all-background regions produce no blob, matching what readers
// expect of a missing shard.
func (s *Store) StoreShard(ctx context.Context, path string, shardGrid [3]int, builder *ShardBuilder) error {
	node, ok := s.arrays[path]
	if !ok {
		return fmt.Errorf("no dataset with path %q", path)
	}
	if builder.Empty() {
		return nil
	}
	return s.acc.Store(ctx, chunkName(path, node.meta, shardGrid), builder.Bytes())
}

// ConvertOptions tunes the metadata generated by
// [FromPrecomputedInfo].
type ConvertOptions struct {
	// ShardFanout caps the number of shards per axis. The shard shape
	// of each scale is the chunk shape multiplied by
	// ceil(chunks/ShardFanout) per axis. Zero means 4.
	ShardFanout int

	// GzipLevel is the inner chunk compression level. Zero means 9.
	GzipLevel int
}

func (o ConvertOptions) withDefaults() ConvertOptions {
	if o.ShardFanout == 0 {
		o.ShardFanout = 4
	}
	if o.GzipLevel == 0 {
		o.GzipLevel = 9
	}
	return o
}

// FromPrecomputedInfo derives zarr v3 group and array metadata from a
// precomputed info: OME-NGFF v0.5 attributes with nanometer x, y, z
// axes, and per-scale sharded arrays whose inner chunks match the
// precomputed chunk shape.
func FromPrecomputedInfo(info *precomputed.Info, opts ConvertOptions) (*GroupMetadata, map[string]*ArrayMetadata, error) {
	if err := info.Validate(); err != nil {
		return nil, nil, err
	}
	if info.NumChannels != 1 {
		return nil, nil, fmt.Errorf("source has %d channels; zarr v3 output is single-channel", info.NumChannels)
	}
	opts = opts.withDefaults()

	multiscale := Multiscale{
		Name: "converted from precomputed",
		Axes: []Axis{
			{Name: "x", Type: "space", Unit: "nanometer"},
			{Name: "y", Type: "space", Unit: "nanometer"},
			{Name: "z", Type: "space", Unit: "nanometer"},
		},
	}

	arrays := make(map[string]*ArrayMetadata)
	for i := range info.Scales {
		scale := &info.Scales[i]
		chunkSize, err := scale.ChunkSize()
		if err != nil {
			return nil, nil, err
		}

		transforms := []Transform{{Type: "scale", Scale: scale.Resolution[:]}}
		if scale.VoxelOffset != [3]int{} {
			translation := make([]float64, 3)
			for axis := 0; axis < 3; axis++ {
				translation[axis] = float64(scale.VoxelOffset[axis]) * scale.Resolution[axis]
			}
			transforms = append(transforms, Transform{Type: "translation", Translation: translation})
		}
		multiscale.Datasets = append(multiscale.Datasets, Dataset{
			Path:                      scale.Key,
			CoordinateTransformations: transforms,
		})

		var shardShape [3]int
		for axis := 0; axis < 3; axis++ {
			numChunks := (scale.Size[axis] + chunkSize[axis] - 1) / chunkSize[axis]
			chunksPerShard := (numChunks + opts.ShardFanout - 1) / opts.ShardFanout
			shardShape[axis] = chunkSize[axis] * chunksPerShard
		}

		arrays[scale.Key] = &ArrayMetadata{
			ZarrFormat: 3,
			NodeType:   "array",
			Shape:      scale.Size[:],
			DataType:   info.DataType,
			ChunkGrid: ChunkGrid{
				Name:          "regular",
				Configuration: ChunkGridConfig{ChunkShape: shardShape[:]},
			},
			ChunkKeyEncoding: ChunkKeyEncoding{
				Name:          "default",
				Configuration: ChunkKeyConfig{Separator: "/"},
			},
			FillValue:      0,
			Codecs:         []CodecSpec{shardingSpec(chunkSize, opts.GzipLevel)},
			DimensionNames: []string{"x", "y", "z"},
		}
	}

	group := &GroupMetadata{
		ZarrFormat: 3,
		NodeType:   "group",
		Attributes: GroupAttributes{
			OME: &OME{
				Version:     "0.5",
				Multiscales: []Multiscale{multiscale},
			},
		},
	}
	return group, arrays, nil
}

// shardingSpec builds the sharding_indexed codec spec used for
// converted scales: gzip-compressed little-endian inner chunks and a
// crc32c-checksummed index at the start of the shard.
func shardingSpec(chunkSize [3]int, gzipLevel int) CodecSpec {
	bytesLittle := bytesCodec{Endian: "little"}
	gzipInner := gzipCodec{Level: gzipLevel}
	config := ShardingConfig{
		ChunkShape: chunkSize[:],
		Codecs: []CodecSpec{
			bytesLittle.spec(),
			gzipInner.spec(),
		},
		IndexCodecs: []CodecSpec{
			bytesLittle.spec(),
			crc32cCodec{}.spec(),
		},
		IndexLocation: "start",
	}
	sharding := &ShardingCodec{config: config}
	return sharding.spec()
}
