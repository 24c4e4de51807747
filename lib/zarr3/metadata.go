// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package zarr3

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voxelforge/voxelforge/lib/voxel"
)

// MetadataName is the metadata file name of every zarr v3 node.
const MetadataName = "zarr.json"

// GroupMetadata is the root zarr.json of a multiscale dataset group.
type GroupMetadata struct {
	ZarrFormat int             `json:"zarr_format"`
	NodeType   string          `json:"node_type"`
	Attributes GroupAttributes `json:"attributes"`
}

// GroupAttributes holds the OME-NGFF block of a group.
type GroupAttributes struct {
	OME *OME `json:"ome,omitempty"`
}

// OME is the NGFF v0.5 attributes payload.
type OME struct {
	Version     string       `json:"version"`
	Multiscales []Multiscale `json:"multiscales"`
}

// Multiscale describes one multiscale image.
type Multiscale struct {
	Axes                      []Axis      `json:"axes"`
	Datasets                  []Dataset   `json:"datasets"`
	CoordinateTransformations []Transform `json:"coordinateTransformations,omitempty"`
	Name                      string      `json:"name,omitempty"`
	Type                      string      `json:"type,omitempty"`
}

// Axis is an NGFF axis declaration.
type Axis struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Unit string `json:"unit,omitempty"`
}

// Dataset points at one resolution level's array node.
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

// Validate checks a dataset's transformation list: exactly one scale,
// at most one translation, and the translation listed after the scale
// as NGFF requires.
func (d *Dataset) Validate() error {
	scaleCount, translationCount := 0, 0
	scaleSeen := false
	for _, transform := range d.CoordinateTransformations {
		switch transform.Type {
		case "scale":
			scaleCount++
			scaleSeen = true
		case "translation":
			translationCount++
			if !scaleSeen {
				return fmt.Errorf("dataset %q: translation listed before scale", d.Path)
			}
		default:
			return fmt.Errorf("dataset %q: unsupported transformation %q", d.Path, transform.Type)
		}
	}
	if scaleCount != 1 {
		return fmt.Errorf("dataset %q: %d scale transformations, want exactly 1", d.Path, scaleCount)
	}
	if translationCount > 1 {
		return fmt.Errorf("dataset %q: %d translations, want at most 1", d.Path, translationCount)
	}
	return nil
}

// ParseGroupMetadata parses and validates a group zarr.json.
func ParseGroupMetadata(data []byte) (*GroupMetadata, error) {
	var group GroupMetadata
	if err := json.Unmarshal(data, &group); err != nil {
		return nil, fmt.Errorf("parsing group zarr.json: %w", err)
	}
	if group.ZarrFormat != 3 {
		return nil, fmt.Errorf("group declares zarr_format %d, want 3", group.ZarrFormat)
	}
	if group.NodeType != "group" {
		return nil, fmt.Errorf("group declares node_type %q, want \"group\"", group.NodeType)
	}
	if group.Attributes.OME == nil {
		return nil, errors.New("group has no ome attributes")
	}
	if len(group.Attributes.OME.Multiscales) != 1 {
		return nil, fmt.Errorf("group declares %d multiscales, want exactly 1",
			len(group.Attributes.OME.Multiscales))
	}
	multiscale := &group.Attributes.OME.Multiscales[0]
	if len(multiscale.Datasets) == 0 {
		return nil, errors.New("multiscale has no datasets")
	}
	for i := range multiscale.Datasets {
		if err := multiscale.Datasets[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &group, nil
}

// ChunkGrid is the chunk grid declaration of an array. Only "regular"
// grids exist in v3 today.
type ChunkGrid struct {
	Name          string          `json:"name"`
	Configuration ChunkGridConfig `json:"configuration"`
}

// ChunkGridConfig holds the regular grid's chunk shape.
type ChunkGridConfig struct {
	ChunkShape []int `json:"chunk_shape"`
}

// ChunkKeyEncoding is the chunk key encoding declaration.
type ChunkKeyEncoding struct {
	Name          string         `json:"name"`
	Configuration ChunkKeyConfig `json:"configuration"`
}

// ChunkKeyConfig holds the default encoding's separator.
type ChunkKeyConfig struct {
	Separator string `json:"separator,omitempty"`
}

// ArrayMetadata is the zarr.json of an array node.
type ArrayMetadata struct {
	ZarrFormat       int              `json:"zarr_format"`
	NodeType         string           `json:"node_type"`
	Shape            []int            `json:"shape"`
	DataType         voxel.DataType   `json:"data_type"`
	ChunkGrid        ChunkGrid        `json:"chunk_grid"`
	ChunkKeyEncoding ChunkKeyEncoding `json:"chunk_key_encoding"`
	FillValue        float64          `json:"fill_value"`
	Codecs           []CodecSpec      `json:"codecs"`
	DimensionNames   []string         `json:"dimension_names"`
}

// ParseArrayMetadata parses and validates an array zarr.json. The
// pipeline handles 3-D arrays; codecs are validated separately when
// the chain is built.
func ParseArrayMetadata(data []byte) (*ArrayMetadata, error) {
	array := ArrayMetadata{
		ChunkKeyEncoding: ChunkKeyEncoding{
			Name:          "default",
			Configuration: ChunkKeyConfig{Separator: "/"},
		},
	}
	if err := json.Unmarshal(data, &array); err != nil {
		return nil, fmt.Errorf("parsing array zarr.json: %w", err)
	}
	if err := array.Validate(); err != nil {
		return nil, err
	}
	return &array, nil
}

// Validate checks the array metadata invariants.
func (a *ArrayMetadata) Validate() error {
	if a.ZarrFormat != 3 {
		return fmt.Errorf("array declares zarr_format %d, want 3", a.ZarrFormat)
	}
	if a.NodeType != "array" {
		return fmt.Errorf("array declares node_type %q, want \"array\"", a.NodeType)
	}
	if len(a.Shape) != 3 {
		return fmt.Errorf("array rank is %d, want 3", len(a.Shape))
	}
	for _, extent := range a.Shape {
		if extent <= 0 {
			return fmt.Errorf("array shape %v has non-positive extent", a.Shape)
		}
	}
	if !a.DataType.Valid() {
		return fmt.Errorf("unsupported data_type %q", string(a.DataType))
	}
	if a.ChunkGrid.Name != "regular" {
		return fmt.Errorf("chunk grid %q not supported, want \"regular\"", a.ChunkGrid.Name)
	}
	if len(a.ChunkGrid.Configuration.ChunkShape) != 3 {
		return fmt.Errorf("chunk shape %v is not rank 3", a.ChunkGrid.Configuration.ChunkShape)
	}
	for _, extent := range a.ChunkGrid.Configuration.ChunkShape {
		if extent <= 0 {
			return fmt.Errorf("chunk shape %v has non-positive extent", a.ChunkGrid.Configuration.ChunkShape)
		}
	}
	if a.ChunkKeyEncoding.Name != "default" {
		return fmt.Errorf("chunk key encoding %q not supported, want \"default\"", a.ChunkKeyEncoding.Name)
	}
	separator := a.ChunkKeyEncoding.Configuration.Separator
	if separator != "/" && separator != "." && separator != "" {
		return fmt.Errorf("chunk key separator %q invalid", separator)
	}
	if len(a.Codecs) == 0 {
		return errors.New("array declares no codecs")
	}
	return nil
}

// ChunkShape returns the regular grid's chunk shape as a fixed-size
// array.
func (a *ArrayMetadata) ChunkShape() [3]int {
	shape := a.ChunkGrid.Configuration.ChunkShape
	return [3]int{shape[0], shape[1], shape[2]}
}

// Size returns the array shape as a fixed-size array.
func (a *ArrayMetadata) Size() [3]int {
	return [3]int{a.Shape[0], a.Shape[1], a.Shape[2]}
}

// Separator returns the chunk key separator (default "/").
func (a *ArrayMetadata) Separator() string {
	if a.ChunkKeyEncoding.Configuration.Separator == "" {
		return "/"
	}
	return a.ChunkKeyEncoding.Configuration.Separator
}

// ChunkKey returns the chunk key for grid coordinates, per the
// default chunk key encoding: "c" joined with the indices by the
// separator.
func (a *ArrayMetadata) ChunkKey(grid [3]int) string {
	separator := a.Separator()
	return fmt.Sprintf("c%s%d%s%d%s%d", separator, grid[0], separator, grid[1], separator, grid[2])
}

// MarshalIndent serializes metadata for storage.
func (a *ArrayMetadata) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// MarshalIndent serializes metadata for storage.
func (g *GroupMetadata) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}
