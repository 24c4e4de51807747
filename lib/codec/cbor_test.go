// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalDeterministic(t *testing.T) {
	// Deterministic encoding means map iteration order never leaks
	// into the output: repeated encodings are byte-identical.
	value := map[string][]byte{
		"40nm/c/0/0/0": {1, 2, 3},
		"40nm/c/1/0/0": {4, 5, 6},
		"zarr.json":    {7, 8, 9},
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for i := 0; i < 16; i++ {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding %d differs from first encoding", i)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	type manifest struct {
		FormatVersion int               `cbor:"format_version"`
		Blobs         map[string][]byte `cbor:"blobs"`
	}
	in := manifest{
		FormatVersion: 1,
		Blobs:         map[string][]byte{"info": {0xde, 0xad}},
	}

	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out manifest
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.FormatVersion != in.FormatVersion {
		t.Errorf("format version %d, want %d", out.FormatVersion, in.FormatVersion)
	}
	if !bytes.Equal(out.Blobs["info"], in.Blobs["info"]) {
		t.Errorf("blob hash %x, want %x", out.Blobs["info"], in.Blobs["info"])
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data, err := Marshal(map[string]any{
		"format_version": 1,
		"future_field":   "ignored",
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out struct {
		FormatVersion int `cbor:"format_version"`
	}
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.FormatVersion != 1 {
		t.Errorf("format version %d, want 1", out.FormatVersion)
	}
}

func TestStreamEncoder(t *testing.T) {
	var buf bytes.Buffer
	encoder := NewEncoder(&buf)
	for _, v := range []int{1, 2, 3} {
		if err := encoder.Encode(v); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}

	decoder := NewDecoder(&buf)
	for want := 1; want <= 3; want++ {
		var got int
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got != want {
			t.Errorf("decoded %d, want %d", got, want)
		}
	}
}
