// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package zarr

import (
	"testing"

	"github.com/voxelforge/voxelforge/lib/voxel"
)

func TestParseGroup(t *testing.T) {
	group, err := ParseGroup([]byte(`{"zarr_format": 2}`))
	if err != nil {
		t.Fatalf("ParseGroup failed: %v", err)
	}
	if group.ZarrFormat != 2 {
		t.Errorf("zarr_format %d", group.ZarrFormat)
	}

	for _, bad := range []string{
		`{"zarr_format": 3}`,
		`{"zarr_format": 2, "extra": true}`,
		`{}`,
		`not json`,
	} {
		if _, err := ParseGroup([]byte(bad)); err == nil {
			t.Errorf("ParseGroup(%q) should fail", bad)
		}
	}
}

func TestParseAttributes(t *testing.T) {
	attrs, err := ParseAttributes([]byte(`{
		"multiscales": [{
			"version": "0.4",
			"axes": [
				{"name": "x", "type": "space", "unit": "micrometer"},
				{"name": "y", "type": "space", "unit": "micrometer"},
				{"name": "z", "type": "space", "unit": "micrometer"}
			],
			"datasets": [
				{"path": "0", "coordinateTransformations": [{"type": "scale", "scale": [20, 20, 20]}]}
			]
		}]
	}`))
	if err != nil {
		t.Fatalf("ParseAttributes failed: %v", err)
	}
	multiscale := attrs.Multiscales[0]
	if len(multiscale.Axes) != 3 || multiscale.Axes[0].Name != "x" {
		t.Errorf("unexpected axes %+v", multiscale.Axes)
	}
	if multiscale.Datasets[0].Path != "0" {
		t.Errorf("dataset path %q", multiscale.Datasets[0].Path)
	}

	if _, err := ParseAttributes([]byte(`{"multiscales": []}`)); err == nil {
		t.Error("expected error for zero multiscales")
	}
	if _, err := ParseAttributes([]byte(`{"multiscales": [{"datasets": []}, {"datasets": []}]}`)); err == nil {
		t.Error("expected error for two multiscales")
	}
	if _, err := ParseAttributes([]byte(`{"multiscales": [{"datasets": [{"path": ""}]}]}`)); err == nil {
		t.Error("expected error for dataset without path")
	}
}

func TestParseArray(t *testing.T) {
	array, err := ParseArray([]byte(`{
		"zarr_format": 2,
		"shape": [60, 80, 100],
		"chunks": [16, 16, 16],
		"dtype": "<u2",
		"compressor": {"id": "zlib", "level": 1},
		"fill_value": 0,
		"order": "C"
	}`))
	if err != nil {
		t.Fatalf("ParseArray failed: %v", err)
	}
	if array.CompressorID() != "zlib" {
		t.Errorf("compressor %q", array.CompressorID())
	}
	if array.Separator() != "." {
		t.Errorf("separator %q, want default .", array.Separator())
	}

	array, err = ParseArray([]byte(`{
		"zarr_format": 2,
		"shape": [10, 10],
		"chunks": [5, 5],
		"dtype": "|u1",
		"compressor": null,
		"fill_value": 0,
		"order": "C",
		"dimension_separator": "/"
	}`))
	if err != nil {
		t.Fatalf("ParseArray with null compressor failed: %v", err)
	}
	if array.CompressorID() != "" {
		t.Errorf("null compressor id %q", array.CompressorID())
	}
	if array.Separator() != "/" {
		t.Errorf("separator %q", array.Separator())
	}
}

func TestParseArray_Rejections(t *testing.T) {
	cases := map[string]string{
		"wrong format":     `{"zarr_format": 3, "shape": [4], "chunks": [4], "dtype": "|u1", "order": "C"}`,
		"shape mismatch":   `{"zarr_format": 2, "shape": [4, 4], "chunks": [4], "dtype": "|u1", "order": "C"}`,
		"zero extent":      `{"zarr_format": 2, "shape": [0], "chunks": [4], "dtype": "|u1", "order": "C"}`,
		"fortran order":    `{"zarr_format": 2, "shape": [4], "chunks": [4], "dtype": "|u1", "order": "F"}`,
		"filters":          `{"zarr_format": 2, "shape": [4], "chunks": [4], "dtype": "|u1", "order": "C", "filters": [{"id": "delta"}]}`,
		"bad separator":    `{"zarr_format": 2, "shape": [4], "chunks": [4], "dtype": "|u1", "order": "C", "dimension_separator": "-"}`,
		"bad dtype":        `{"zarr_format": 2, "shape": [4], "chunks": [4], "dtype": "<i2", "order": "C"}`,
	}
	for name, data := range cases {
		if _, err := ParseArray([]byte(data)); err == nil {
			t.Errorf("%s: expected ParseArray to fail", name)
		}
	}
}

func TestParseDType(t *testing.T) {
	cases := []struct {
		dtype     string
		want      voxel.DataType
		bigEndian bool
	}{
		{"|u1", voxel.Uint8, false},
		{"<u2", voxel.Uint16, false},
		{">u2", voxel.Uint16, true},
		{"<u4", voxel.Uint32, false},
		{">u8", voxel.Uint64, true},
		{"<f4", voxel.Float32, false},
		{">f8", voxel.Float64, true},
	}
	for _, tc := range cases {
		dt, bigEndian, err := ParseDType(tc.dtype)
		if err != nil {
			t.Errorf("ParseDType(%q) failed: %v", tc.dtype, err)
			continue
		}
		if dt != tc.want || bigEndian != tc.bigEndian {
			t.Errorf("ParseDType(%q) = %q big=%v, want %q big=%v",
				tc.dtype, dt, bigEndian, tc.want, tc.bigEndian)
		}
	}

	for _, bad := range []string{"=u2", "<i4", "u2", "<u3", "<u16"} {
		if _, _, err := ParseDType(bad); err == nil {
			t.Errorf("ParseDType(%q) should fail", bad)
		}
	}
}

func TestFormatDType(t *testing.T) {
	cases := map[voxel.DataType]string{
		voxel.Uint8:   "|u1",
		voxel.Uint16:  "<u2",
		voxel.Uint64:  "<u8",
		voxel.Float32: "<f4",
	}
	for dt, want := range cases {
		if got := FormatDType(dt); got != want {
			t.Errorf("FormatDType(%q) = %q, want %q", dt, got, want)
		}
	}
}
