// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package zarr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/voxelforge/voxelforge/lib/accessor"
	"github.com/voxelforge/voxelforge/lib/precomputed"
	"github.com/voxelforge/voxelforge/lib/voxel"
)

// unitToNanometers converts NGFF axis units to the nanometer
// resolutions used by precomputed info. An axis without a unit is
// treated as millimeters, which is what NIfTI-derived datasets in the
// wild actually mean when they omit the unit.
var unitToNanometers = map[string]float64{
	"nanometer":  1,
	"micrometer": 1e3,
	"millimeter": 1e6,
	"":           1e6,
}

// Store provides chunk access to a zarr v2 multiscale dataset. Safe
// for concurrent use after Open.
type Store struct {
	acc    accessor.Accessor
	attrs  *Attributes
	arrays map[string]*Array
	paths  []string // dataset paths in multiscale order

	dataType    voxel.DataType
	numChannels int

	// channelDim is the index of the channel dimension in the stored
	// arrays, or -1. spatialDims maps pipeline axes (x, y, z) to
	// stored dimension indices.
	channelDim  int
	spatialDims [3]int

	mu          sync.Mutex
	compressors map[string]Compressor
}

// Open reads and cross-validates the dataset metadata. Array metadata
// files are fetched concurrently: datasets are often remote and the
// fetches are independent.
func Open(ctx context.Context, acc accessor.Accessor) (*Store, error) {
	groupData, err := acc.Fetch(ctx, ".zgroup")
	if err != nil {
		return nil, fmt.Errorf("fetching .zgroup: %w", err)
	}
	if _, err := ParseGroup(groupData); err != nil {
		return nil, err
	}

	attrsData, err := acc.Fetch(ctx, ".zattrs")
	if err != nil {
		return nil, fmt.Errorf("fetching .zattrs: %w", err)
	}
	attrs, err := ParseAttributes(attrsData)
	if err != nil {
		return nil, err
	}

	multiscale := &attrs.Multiscales[0]
	paths := make([]string, len(multiscale.Datasets))
	for i, dataset := range multiscale.Datasets {
		paths[i] = dataset.Path
	}

	// Fetch every .zarray concurrently.
	type fetchResult struct {
		index int
		array *Array
		err   error
	}
	results := make(chan fetchResult, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()
			data, err := acc.Fetch(ctx, path+"/.zarray")
			if err != nil {
				results <- fetchResult{index: index, err: fmt.Errorf("fetching %s/.zarray: %w", path, err)}
				return
			}
			array, err := ParseArray(data)
			results <- fetchResult{index: index, array: array, err: err}
		}(i, path)
	}
	wg.Wait()
	close(results)

	arrays := make(map[string]*Array, len(paths))
	for result := range results {
		if result.err != nil {
			return nil, result.err
		}
		arrays[paths[result.index]] = result.array
	}

	store := &Store{
		acc:         acc,
		attrs:       attrs,
		arrays:      arrays,
		paths:       paths,
		compressors: make(map[string]Compressor),
	}
	if err := store.resolveAxes(); err != nil {
		return nil, err
	}
	return store, nil
}

// resolveAxes works out the channel dimension, the mapping from
// pipeline axes to stored dimensions, the shared data type, and the
// channel count.
func (s *Store) resolveAxes() error {
	multiscale := &s.attrs.Multiscales[0]
	axes := multiscale.Axes
	if len(axes) == 0 {
		return fmt.Errorf("multiscale declares no axes")
	}

	s.channelDim = -1
	spatialByName := map[string]int{}
	for dim, axis := range axes {
		switch axis.Type {
		case "channel":
			if s.channelDim != -1 {
				return fmt.Errorf("multiple channel axes")
			}
			if dim != 0 && dim != len(axes)-1 {
				return fmt.Errorf("channel axis must be the first or last axis, found at %d", dim)
			}
			s.channelDim = dim
		case "space", "":
			spatialByName[axis.Name] = dim
		default:
			return fmt.Errorf("unsupported axis type %q", axis.Type)
		}
	}
	if len(spatialByName) != 3 {
		return fmt.Errorf("found %d spatial axes, want 3", len(spatialByName))
	}
	for i, name := range []string{"x", "y", "z"} {
		dim, ok := spatialByName[name]
		if !ok {
			return fmt.Errorf("no spatial axis named %q", name)
		}
		s.spatialDims[i] = dim
	}

	// All arrays must share a data type, and their rank must match
	// the axes.
	for _, path := range s.paths {
		array := s.arrays[path]
		if len(array.Shape) != len(axes) {
			return fmt.Errorf("dataset %q has rank %d, axes declare %d", path, len(array.Shape), len(axes))
		}
		dt, _, err := ParseDType(array.DType)
		if err != nil {
			return fmt.Errorf("dataset %q: %w", path, err)
		}
		if s.dataType == "" {
			s.dataType = dt
		} else if s.dataType != dt {
			return fmt.Errorf("datasets disagree on data type: %s vs %s", s.dataType, dt)
		}
	}

	s.numChannels = 1
	if s.channelDim != -1 {
		for _, path := range s.paths {
			array := s.arrays[path]
			channels := array.Shape[s.channelDim]
			if s.numChannels == 1 {
				s.numChannels = channels
			} else if s.numChannels != channels {
				return fmt.Errorf("datasets disagree on channel count")
			}
			// Each chunk file must hold a single channel — the chunk
			// naming scheme indexes channels by grid position.
			if array.Chunks[s.channelDim] != 1 {
				return fmt.Errorf("dataset %q chunks %d channels per file, want 1", path, array.Chunks[s.channelDim])
			}
		}
	}
	return nil
}

// DataType returns the shared sample type of all resolution levels.
func (s *Store) DataType() voxel.DataType { return s.dataType }

// NumChannels returns the channel count (1 when no channel axis).
func (s *Store) NumChannels() int { return s.numChannels }

// Datasets returns the dataset paths in multiscale order.
func (s *Store) Datasets() []string { return s.paths }

// Array returns the array metadata for a dataset path.
func (s *Store) Array(path string) (*Array, error) {
	array, ok := s.arrays[path]
	if !ok {
		return nil, fmt.Errorf("no dataset with path %q", path)
	}
	return array, nil
}

// Info derives a precomputed-style Info from the multiscale metadata,
// so zarr datasets can act as mirror sources.
func (s *Store) Info() (*precomputed.Info, error) {
	multiscale := &s.attrs.Multiscales[0]

	info := &precomputed.Info{
		Type:        "image",
		DataType:    s.dataType,
		NumChannels: s.numChannels,
	}

	for _, dataset := range multiscale.Datasets {
		array := s.arrays[dataset.Path]

		if len(dataset.CoordinateTransformations) != 1 {
			return nil, fmt.Errorf("dataset %q has %d coordinate transformations, want exactly 1",
				dataset.Path, len(dataset.CoordinateTransformations))
		}
		transform := dataset.CoordinateTransformations[0]
		if transform.Type != "scale" || len(transform.Scale) != len(multiscale.Axes) {
			return nil, fmt.Errorf("dataset %q: coordinate transformation must be a full-rank scale", dataset.Path)
		}

		var scale precomputed.Scale
		scale.Key = dataset.Path
		scale.Encoding = "raw"
		for axis := 0; axis < 3; axis++ {
			dim := s.spatialDims[axis]
			unit := multiscale.Axes[dim].Unit
			factor, ok := unitToNanometers[unit]
			if !ok {
				return nil, fmt.Errorf("dataset %q: unsupported axis unit %q", dataset.Path, unit)
			}
			scale.Resolution[axis] = transform.Scale[dim] * factor
			scale.Size[axis] = array.Shape[dim]
		}
		chunkSize := [3]int{}
		for axis := 0; axis < 3; axis++ {
			chunkSize[axis] = array.Chunks[s.spatialDims[axis]]
		}
		scale.ChunkSizes = [][3]int{chunkSize}

		info.Scales = append(info.Scales, scale)
	}
	return info, nil
}

// compressor returns the (cached) compressor for a dataset.
func (s *Store) compressor(array *Array) (Compressor, error) {
	id := array.CompressorID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if compressor, ok := s.compressors[id]; ok {
		return compressor, nil
	}
	compressor, err := NewCompressor(id)
	if err != nil {
		return nil, err
	}
	s.compressors[id] = compressor
	return compressor, nil
}

// chunkName builds the chunk blob name for the given grid coordinates
// in stored dimension order.
func chunkName(path, separator string, gridIndices []int) string {
	parts := make([]string, len(gridIndices))
	for i, index := range gridIndices {
		parts[i] = fmt.Sprintf("%d", index)
	}
	return path + "/" + strings.Join(parts, separator)
}

// gridIndices computes the stored-order chunk grid coordinates for a
// chunk-aligned box and channel.
func (s *Store) gridIndices(array *Array, box voxel.Box, channel int) []int {
	indices := make([]int, len(array.Shape))
	if s.channelDim != -1 {
		indices[s.channelDim] = channel
	}
	for axis := 0; axis < 3; axis++ {
		dim := s.spatialDims[axis]
		indices[dim] = box.Min[axis] / array.Chunks[dim]
	}
	return indices
}

// ReadChunk reads channel 0 of the chunk covering box in the given
// dataset. box must be grid-aligned; its extents may be clamped at
// the volume bounds, in which case the stored full-shape chunk is
// cropped. A missing chunk file yields a fill-value chunk.
func (s *Store) ReadChunk(ctx context.Context, path string, box voxel.Box) (*voxel.Chunk, error) {
	return s.ReadChunkChannel(ctx, path, box, 0)
}

// ReadChunkChannel reads one channel of the chunk covering box.
func (s *Store) ReadChunkChannel(ctx context.Context, path string, box voxel.Box, channel int) (*voxel.Chunk, error) {
	array, err := s.Array(path)
	if err != nil {
		return nil, err
	}
	if channel < 0 || channel >= s.numChannels {
		return nil, fmt.Errorf("channel %d out of range (dataset has %d)", channel, s.numChannels)
	}

	extents := box.Extents()
	name := chunkName(path, array.Separator(), s.gridIndices(array, box, channel))

	data, err := s.acc.Fetch(ctx, name)
	if err != nil {
		if accessor.IsNotFound(err) {
			return voxel.NewChunk(s.dataType, extents), nil
		}
		return nil, err
	}

	storedSamples := 1
	for _, c := range array.Chunks {
		storedSamples *= c
	}
	compressor, err := s.compressor(array)
	if err != nil {
		return nil, err
	}
	raw, err := compressor.Decompress(data, storedSamples*s.dataType.Size())
	if err != nil {
		return nil, fmt.Errorf("decoding chunk %s: %w", name, err)
	}

	_, bigEndian, err := ParseDType(array.DType)
	if err != nil {
		return nil, err
	}
	if bigEndian {
		raw, err = voxel.SwapEndianness(raw, s.dataType.Size())
		if err != nil {
			return nil, err
		}
	}

	return s.cropToChunk(array, raw, extents), nil
}

// cropToChunk copies the requested spatial region out of a stored
// C-order chunk buffer into the pipeline's x-fastest layout.
func (s *Store) cropToChunk(array *Array, raw []byte, extents [3]int) *voxel.Chunk {
	sampleSize := s.dataType.Size()

	// Strides of the stored chunk buffer, in samples.
	strides := make([]int, len(array.Chunks))
	stride := 1
	for dim := len(array.Chunks) - 1; dim >= 0; dim-- {
		strides[dim] = stride
		stride *= array.Chunks[dim]
	}

	chunk := voxel.NewChunk(s.dataType, extents)
	for z := 0; z < extents[2]; z++ {
		for y := 0; y < extents[1]; y++ {
			for x := 0; x < extents[0]; x++ {
				source := x*strides[s.spatialDims[0]] +
					y*strides[s.spatialDims[1]] +
					z*strides[s.spatialDims[2]]
				destination := (x + extents[0]*(y+extents[1]*z)) * sampleSize
				copy(chunk.Data[destination:destination+sampleSize], raw[source*sampleSize:])
			}
		}
	}
	return chunk
}

// WriteChunk encodes and stores a full-shape chunk for a
// single-channel dataset. The chunk extents must equal the array's
// spatial chunk shape (callers pad boundary chunks before writing —
// zarr v2 always stores full chunks).
func (s *Store) WriteChunk(ctx context.Context, path string, box voxel.Box, chunk *voxel.Chunk) error {
	if s.numChannels != 1 {
		return fmt.Errorf("writing requires a single-channel dataset, this one has %d channels", s.numChannels)
	}
	array, err := s.Array(path)
	if err != nil {
		return err
	}

	for axis := 0; axis < 3; axis++ {
		if chunk.Size[axis] != array.Chunks[s.spatialDims[axis]] {
			return fmt.Errorf("chunk extents %v do not match array chunk shape", chunk.Size)
		}
	}

	sampleSize := s.dataType.Size()
	storedSamples := 1
	for _, c := range array.Chunks {
		storedSamples *= c
	}
	strides := make([]int, len(array.Chunks))
	stride := 1
	for dim := len(array.Chunks) - 1; dim >= 0; dim-- {
		strides[dim] = stride
		stride *= array.Chunks[dim]
	}

	raw := make([]byte, storedSamples*sampleSize)
	for z := 0; z < chunk.Size[2]; z++ {
		for y := 0; y < chunk.Size[1]; y++ {
			for x := 0; x < chunk.Size[0]; x++ {
				destination := x*strides[s.spatialDims[0]] +
					y*strides[s.spatialDims[1]] +
					z*strides[s.spatialDims[2]]
				source := (x + chunk.Size[0]*(y+chunk.Size[1]*z)) * sampleSize
				copy(raw[destination*sampleSize:(destination+1)*sampleSize], chunk.Data[source:])
			}
		}
	}

	_, bigEndian, err := ParseDType(array.DType)
	if err != nil {
		return err
	}
	if bigEndian {
		raw, err = voxel.SwapEndianness(raw, sampleSize)
		if err != nil {
			return err
		}
	}

	compressor, err := s.compressor(array)
	if err != nil {
		return err
	}
	encoded, err := compressor.Compress(raw)
	if err != nil {
		return err
	}

	name := chunkName(path, array.Separator(), s.gridIndices(array, box, 0))
	return s.acc.Store(ctx, name, encoded)
}
