// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package voxel

import "fmt"

// Box is a half-open axis-aligned region of a volume: it covers
// voxels with Min[axis] <= coordinate < Max[axis].
type Box struct {
	Min [3]int
	Max [3]int
}

// Extents returns the box size along each axis.
func (b Box) Extents() [3]int {
	return [3]int{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// NumVoxels returns the number of voxels covered by the box.
func (b Box) NumVoxels() int {
	e := b.Extents()
	return e[0] * e[1] * e[2]
}

// Valid reports whether every axis has Min >= 0 and Max > Min.
func (b Box) Valid() bool {
	for axis := 0; axis < 3; axis++ {
		if b.Min[axis] < 0 || b.Max[axis] <= b.Min[axis] {
			return false
		}
	}
	return true
}

// Clamp returns the box intersected with [0, bounds) on every axis.
func (b Box) Clamp(bounds [3]int) Box {
	clamped := b
	for axis := 0; axis < 3; axis++ {
		if clamped.Max[axis] > bounds[axis] {
			clamped.Max[axis] = bounds[axis]
		}
		if clamped.Min[axis] < 0 {
			clamped.Min[axis] = 0
		}
	}
	return clamped
}

func (b Box) String() string {
	return fmt.Sprintf("%d-%d_%d-%d_%d-%d",
		b.Min[0], b.Max[0], b.Min[1], b.Max[1], b.Min[2], b.Max[2])
}

// ChunkBoxes returns the chunk-aligned boxes that tile a volume of the
// given size with the given chunk shape, clamped at the volume bounds.
// Boxes are produced x-major (x varies fastest), matching the order
// the conversion pipeline reads and reports chunks in.
func ChunkBoxes(size, chunkShape [3]int) []Box {
	var boxes []Box
	for z := 0; z < size[2]; z += chunkShape[2] {
		for y := 0; y < size[1]; y += chunkShape[1] {
			for x := 0; x < size[0]; x += chunkShape[0] {
				box := Box{
					Min: [3]int{x, y, z},
					Max: [3]int{x + chunkShape[0], y + chunkShape[1], z + chunkShape[2]},
				}
				boxes = append(boxes, box.Clamp(size))
			}
		}
	}
	return boxes
}
