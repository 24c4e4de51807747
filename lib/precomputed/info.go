// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package precomputed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/jsonc"

	"github.com/voxelforge/voxelforge/lib/voxel"
)

// Info is the top-level metadata of a precomputed dataset.
type Info struct {
	// Type is "image" or "segmentation".
	Type string `json:"type"`

	// DataType is the sample type shared by all scales.
	DataType voxel.DataType `json:"data_type"`

	// NumChannels is the channel count. The conversion pipeline
	// handles single-channel volumes.
	NumChannels int `json:"num_channels"`

	// Scales lists the resolution levels, full resolution first.
	Scales []Scale `json:"scales"`
}

// Scale describes one resolution level.
type Scale struct {
	// Key is the scale's directory name, conventionally the
	// resolution in nanometers (e.g. "20um" or "40_40_40").
	Key string `json:"key"`

	// Size is the volume extent in voxels along x, y, z.
	Size [3]int `json:"size"`

	// Resolution is the voxel spacing in nanometers along x, y, z.
	Resolution [3]float64 `json:"resolution"`

	// ChunkSizes lists the chunk shapes available for this scale.
	// Datasets may offer several; the converter requires exactly one.
	ChunkSizes [][3]int `json:"chunk_sizes"`

	// Encoding is the chunk encoding: "raw", "gzip" (an extension
	// used by locally converted datasets), or
	// "compressed_segmentation".
	Encoding string `json:"encoding"`

	// CompressedSegmentationBlockSize is the palette block shape for
	// compressed_segmentation scales.
	CompressedSegmentationBlockSize [3]int `json:"compressed_segmentation_block_size,omitempty"`

	// VoxelOffset is the coordinate of the first voxel.
	VoxelOffset [3]int `json:"voxel_offset"`
}

// ChunkSize returns the scale's single chunk shape. Scales advertising
// multiple chunk shapes are rejected because the chunk file names (and
// therefore the set of stored blobs) are ambiguous for a converter
// that processes every chunk exactly once.
func (s *Scale) ChunkSize() ([3]int, error) {
	if len(s.ChunkSizes) != 1 {
		return [3]int{}, fmt.Errorf("scale %q has %d chunk sizes, want exactly 1",
			s.Key, len(s.ChunkSizes))
	}
	return s.ChunkSizes[0], nil
}

// ChunkBoxes returns the bounds-clamped chunk boxes of the scale.
func (s *Scale) ChunkBoxes() ([]voxel.Box, error) {
	chunkSize, err := s.ChunkSize()
	if err != nil {
		return nil, err
	}
	return voxel.ChunkBoxes(s.Size, chunkSize), nil
}

// ParseInfo parses an info file. Comments and trailing commas are
// tolerated; unknown fields are ignored.
func ParseInfo(data []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(jsonc.ToJSON(data), &info); err != nil {
		return nil, fmt.Errorf("parsing info: %w", err)
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &info, nil
}

// MarshalIndent serializes the info as strict JSON for storage.
func (info *Info) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(info, "", "  ")
}

// Validate checks the invariants the conversion pipeline relies on.
func (info *Info) Validate() error {
	var errs []error

	if info.Type != "image" && info.Type != "segmentation" {
		errs = append(errs, fmt.Errorf("type is %q, want \"image\" or \"segmentation\"", info.Type))
	}
	if !info.DataType.Valid() {
		errs = append(errs, fmt.Errorf("unsupported data_type %q", string(info.DataType)))
	}
	if info.NumChannels < 1 {
		errs = append(errs, fmt.Errorf("num_channels is %d, want >= 1", info.NumChannels))
	}
	if len(info.Scales) == 0 {
		errs = append(errs, errors.New("no scales"))
	}

	seenKeys := make(map[string]bool)
	for i := range info.Scales {
		scale := &info.Scales[i]
		if scale.Key == "" {
			errs = append(errs, fmt.Errorf("scale %d has no key", i))
			continue
		}
		if seenKeys[scale.Key] {
			errs = append(errs, fmt.Errorf("duplicate scale key %q", scale.Key))
		}
		seenKeys[scale.Key] = true

		for axis := 0; axis < 3; axis++ {
			if scale.Size[axis] <= 0 {
				errs = append(errs, fmt.Errorf("scale %q size %v has non-positive extent", scale.Key, scale.Size))
				break
			}
		}
		if len(scale.ChunkSizes) == 0 {
			errs = append(errs, fmt.Errorf("scale %q has no chunk_sizes", scale.Key))
		}
		for _, chunkSize := range scale.ChunkSizes {
			for axis := 0; axis < 3; axis++ {
				if chunkSize[axis] <= 0 {
					errs = append(errs, fmt.Errorf("scale %q chunk size %v has non-positive extent", scale.Key, chunkSize))
					break
				}
			}
		}
		switch scale.Encoding {
		case "raw", "gzip", "compressed_segmentation":
		case "":
			errs = append(errs, fmt.Errorf("scale %q has no encoding", scale.Key))
		default:
			errs = append(errs, fmt.Errorf("scale %q has unsupported encoding %q", scale.Key, scale.Encoding))
		}
	}

	return errors.Join(errs...)
}

// Scale returns the scale with the given key.
func (info *Info) Scale(key string) (*Scale, error) {
	for i := range info.Scales {
		if info.Scales[i].Key == key {
			return &info.Scales[i], nil
		}
	}
	return nil, fmt.Errorf("no scale with key %q", key)
}

// ChunkName returns the blob name of the chunk covering box within the
// scale identified by key.
func ChunkName(key string, box voxel.Box) string {
	return fmt.Sprintf("%s/%d-%d_%d-%d_%d-%d", key,
		box.Min[0], box.Max[0], box.Min[1], box.Max[1], box.Min[2], box.Max[2])
}
