// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package voxel

import "testing"

func TestBoxBasics(t *testing.T) {
	box := Box{Min: [3]int{0, 4, 8}, Max: [3]int{4, 8, 16}}
	if box.Extents() != [3]int{4, 4, 8} {
		t.Errorf("extents %v, want {4 4 8}", box.Extents())
	}
	if box.NumVoxels() != 128 {
		t.Errorf("voxels %d, want 128", box.NumVoxels())
	}
	if !box.Valid() {
		t.Error("expected box to be valid")
	}
	if got := box.String(); got != "0-4_4-8_8-16" {
		t.Errorf("String() = %q", got)
	}

	if (Box{Min: [3]int{0, 0, 0}, Max: [3]int{0, 1, 1}}).Valid() {
		t.Error("zero-extent box should be invalid")
	}
	if (Box{Min: [3]int{-1, 0, 0}, Max: [3]int{1, 1, 1}}).Valid() {
		t.Error("negative-min box should be invalid")
	}
}

func TestBoxClamp(t *testing.T) {
	box := Box{Min: [3]int{8, 8, 8}, Max: [3]int{16, 16, 16}}
	clamped := box.Clamp([3]int{10, 16, 12})
	if clamped.Max != [3]int{10, 16, 12} {
		t.Errorf("clamped max %v, want {10 16 12}", clamped.Max)
	}
	if clamped.Min != box.Min {
		t.Errorf("clamp moved min to %v", clamped.Min)
	}
}

func TestChunkBoxes(t *testing.T) {
	boxes := ChunkBoxes([3]int{10, 8, 5}, [3]int{4, 4, 4})
	// ceil(10/4) * ceil(8/4) * ceil(5/4) = 3 * 2 * 2.
	if len(boxes) != 12 {
		t.Fatalf("got %d boxes, want 12", len(boxes))
	}

	// x varies fastest.
	if boxes[0] != (Box{Min: [3]int{0, 0, 0}, Max: [3]int{4, 4, 4}}) {
		t.Errorf("first box %v", boxes[0])
	}
	if boxes[1].Min != [3]int{4, 0, 0} {
		t.Errorf("second box min %v, want {4 0 0}", boxes[1].Min)
	}

	// The last box is clamped on every axis.
	last := boxes[len(boxes)-1]
	if last.Min != [3]int{8, 4, 4} || last.Max != [3]int{10, 8, 5} {
		t.Errorf("last box %v", last)
	}

	for _, box := range boxes {
		if !box.Valid() {
			t.Errorf("invalid box %v", box)
		}
		if box.Max[0] > 10 || box.Max[1] > 8 || box.Max[2] > 5 {
			t.Errorf("box %v exceeds volume bounds", box)
		}
	}
}
