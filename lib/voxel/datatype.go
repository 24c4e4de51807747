// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package voxel

import "fmt"

// DataType identifies the sample type of a volume. The string values
// are the ones used verbatim in precomputed info files and zarr v3
// array metadata, so a DataType marshals to JSON as-is.
type DataType string

const (
	Uint8   DataType = "uint8"
	Uint16  DataType = "uint16"
	Uint32  DataType = "uint32"
	Uint64  DataType = "uint64"
	Float32 DataType = "float32"
	Float64 DataType = "float64"
)

// dataTypeSizes doubles as the set of supported types. Signed integer
// and complex types exist in both wire formats but are not produced by
// any supported source, so they are rejected at parse time.
var dataTypeSizes = map[DataType]int{
	Uint8:   1,
	Uint16:  2,
	Uint32:  4,
	Uint64:  8,
	Float32: 4,
	Float64: 8,
}

// ParseDataType validates a data type string from dataset metadata.
func ParseDataType(s string) (DataType, error) {
	dt := DataType(s)
	if _, ok := dataTypeSizes[dt]; !ok {
		return "", fmt.Errorf("unsupported data type %q", s)
	}
	return dt, nil
}

// Size returns the sample size in bytes. Panics on an unvalidated
// data type; all DataType values that cross a package boundary come
// from ParseDataType.
func (dt DataType) Size() int {
	size, ok := dataTypeSizes[dt]
	if !ok {
		panic(fmt.Sprintf("voxel: invalid data type %q", string(dt)))
	}
	return size
}

// Valid reports whether the data type is one of the supported types.
func (dt DataType) Valid() bool {
	_, ok := dataTypeSizes[dt]
	return ok
}

func (dt DataType) String() string {
	return string(dt)
}
