// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package zarr

import (
	"encoding/json"
	"fmt"

	"github.com/voxelforge/voxelforge/lib/voxel"
)

// Group is the parsed ".zgroup" file. The format requires it to
// contain exactly the zarr_format key.
type Group struct {
	ZarrFormat int `json:"zarr_format"`
}

// ParseGroup parses and validates a ".zgroup" file.
func ParseGroup(data []byte) (*Group, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing .zgroup: %w", err)
	}
	if _, ok := raw["zarr_format"]; !ok {
		return nil, fmt.Errorf(".zgroup has no zarr_format key")
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf(".zgroup has %d keys, want only zarr_format", len(raw))
	}

	var group Group
	if err := json.Unmarshal(data, &group); err != nil {
		return nil, fmt.Errorf("parsing .zgroup: %w", err)
	}
	if group.ZarrFormat != 2 {
		return nil, fmt.Errorf(".zgroup declares zarr_format %d, want 2", group.ZarrFormat)
	}
	return &group, nil
}

// Attributes is the parsed ".zattrs" file of an OME-NGFF group.
type Attributes struct {
	Multiscales []Multiscale `json:"multiscales"`
}

// Multiscale describes one multiscale image per NGFF v0.4.
type Multiscale struct {
	Version  string    `json:"version,omitempty"`
	Name     string    `json:"name,omitempty"`
	Axes     []Axis    `json:"axes"`
	Datasets []Dataset `json:"datasets"`
}

// Axis is an NGFF axis declaration.
type Axis struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"` // "space", "channel", "time"
	Unit string `json:"unit,omitempty"`
}

// Dataset points at one resolution level's array.
type Dataset struct {
	Path                      string      `json:"path"`
	CoordinateTransformations []Transform `json:"coordinateTransformations"`
}

// Transform is an NGFF coordinate transformation.
type Transform struct {
	Type        string    `json:"type"`
	Scale       []float64 `json:"scale,omitempty"`
	Translation []float64 `json:"translation,omitempty"`
}

// ParseAttributes parses ".zattrs" and validates that exactly one
// multiscale with at least one dataset is declared.
func ParseAttributes(data []byte) (*Attributes, error) {
	var attrs Attributes
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("parsing .zattrs: %w", err)
	}
	if len(attrs.Multiscales) != 1 {
		return nil, fmt.Errorf(".zattrs declares %d multiscales, want exactly 1", len(attrs.Multiscales))
	}
	multiscale := &attrs.Multiscales[0]
	if len(multiscale.Datasets) == 0 {
		return nil, fmt.Errorf("multiscale has no datasets")
	}
	for i, dataset := range multiscale.Datasets {
		if dataset.Path == "" {
			return nil, fmt.Errorf("multiscale dataset %d has no path", i)
		}
	}
	return &attrs, nil
}

// Array is the parsed ".zarray" file of one resolution level.
type Array struct {
	ZarrFormat         int              `json:"zarr_format"`
	Shape              []int            `json:"shape"`
	Chunks             []int            `json:"chunks"`
	DType              string           `json:"dtype"`
	Compressor         *CompressorSpec  `json:"compressor"`
	FillValue          any              `json:"fill_value"`
	Order              string           `json:"order"`
	Filters            []map[string]any `json:"filters"`
	DimensionSeparator string           `json:"dimension_separator,omitempty"`
}

// CompressorSpec is the numcodecs compressor declaration.
type CompressorSpec struct {
	ID string `json:"id"`
	// Remaining numcodecs parameters (level, shuffle, ...) do not
	// affect decoding for the supported codecs and are ignored.
}

// ParseArray parses and validates a ".zarray" file.
func ParseArray(data []byte) (*Array, error) {
	array := Array{Order: "C", DimensionSeparator: "."}
	if err := json.Unmarshal(data, &array); err != nil {
		return nil, fmt.Errorf("parsing .zarray: %w", err)
	}
	if array.ZarrFormat != 2 {
		return nil, fmt.Errorf(".zarray declares zarr_format %d, want 2", array.ZarrFormat)
	}
	if len(array.Shape) == 0 || len(array.Shape) != len(array.Chunks) {
		return nil, fmt.Errorf(".zarray shape %v and chunks %v are inconsistent", array.Shape, array.Chunks)
	}
	for i := range array.Shape {
		if array.Shape[i] <= 0 || array.Chunks[i] <= 0 {
			return nil, fmt.Errorf(".zarray has non-positive extent (shape %v, chunks %v)", array.Shape, array.Chunks)
		}
	}
	if array.Order != "C" {
		return nil, fmt.Errorf(".zarray order %q not supported, want \"C\"", array.Order)
	}
	if len(array.Filters) > 0 {
		return nil, fmt.Errorf(".zarray declares filters, which are not supported")
	}
	if array.DimensionSeparator != "." && array.DimensionSeparator != "/" {
		return nil, fmt.Errorf(".zarray dimension_separator %q invalid", array.DimensionSeparator)
	}
	if _, _, err := ParseDType(array.DType); err != nil {
		return nil, err
	}
	return &array, nil
}

// Separator returns the chunk-name dimension separator.
func (a *Array) Separator() string {
	if a.DimensionSeparator == "" {
		return "."
	}
	return a.DimensionSeparator
}

// CompressorID returns the numcodecs id, or "" for a null compressor.
func (a *Array) CompressorID() string {
	if a.Compressor == nil {
		return ""
	}
	return a.Compressor.ID
}

// ParseDType parses a numpy dtype string ("|u1", "<u2", ">f4", ...)
// into the pipeline data type and whether the stored bytes are
// big-endian. Native byte order ("=") is rejected: stored data with
// machine-dependent byte order is not portable and does not occur in
// valid zarr metadata.
func ParseDType(dtype string) (voxel.DataType, bool, error) {
	if len(dtype) != 3 {
		return "", false, fmt.Errorf("unsupported dtype %q", dtype)
	}

	var bigEndian bool
	switch dtype[0] {
	case '<', '|':
		bigEndian = false
	case '>':
		bigEndian = true
	default:
		return "", false, fmt.Errorf("unsupported dtype byte order in %q", dtype)
	}

	var dt voxel.DataType
	switch dtype[1:] {
	case "u1":
		dt = voxel.Uint8
	case "u2":
		dt = voxel.Uint16
	case "u4":
		dt = voxel.Uint32
	case "u8":
		dt = voxel.Uint64
	case "f4":
		dt = voxel.Float32
	case "f8":
		dt = voxel.Float64
	default:
		return "", false, fmt.Errorf("unsupported dtype %q", dtype)
	}

	if dt.Size() == 1 {
		bigEndian = false
	}
	return dt, bigEndian, nil
}

// FormatDType renders a data type as a numpy dtype string in
// little-endian order.
func FormatDType(dt voxel.DataType) string {
	var kind byte
	switch dt {
	case voxel.Float32, voxel.Float64:
		kind = 'f'
	default:
		kind = 'u'
	}
	if dt.Size() == 1 {
		return fmt.Sprintf("|%c1", kind)
	}
	return fmt.Sprintf("<%c%d", kind, dt.Size())
}
