// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package accessor

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestMemoryAccessor(t *testing.T) {
	ctx := context.Background()
	acc := NewMemoryAccessor()

	if _, err := acc.Fetch(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := acc.Store(ctx, "b/chunk", []byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := acc.Store(ctx, "a/chunk", []byte{3}); err != nil {
		t.Fatal(err)
	}

	data, err := acc.Fetch(ctx, "b/chunk")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{1, 2}) {
		t.Errorf("fetched %v, want [1 2]", data)
	}

	// Mutating the fetched slice must not corrupt the store.
	data[0] = 99
	again, _ := acc.Fetch(ctx, "b/chunk")
	if again[0] != 1 {
		t.Error("fetch returned an aliased buffer")
	}

	names := acc.Names()
	if len(names) != 2 || names[0] != "a/chunk" || names[1] != "b/chunk" {
		t.Errorf("Names() = %v, want sorted [a/chunk b/chunk]", names)
	}
}

func TestFileAccessor_RoundTrip(t *testing.T) {
	ctx := context.Background()
	acc := NewFileAccessor(t.TempDir(), false)

	if err := acc.Store(ctx, "20um/0-64_0-64_0-64", []byte("chunkdata")); err != nil {
		t.Fatal(err)
	}
	data, err := acc.Fetch(ctx, "20um/0-64_0-64_0-64")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "chunkdata" {
		t.Errorf("fetched %q", data)
	}

	if _, err := acc.Fetch(ctx, "20um/64-128_0-64_0-64"); !IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileAccessor_GzipFallback(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	acc := NewFileAccessor(dir, false)

	// A dataset written by gzip-enabled tooling holds name + ".gz".
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	writer.Write([]byte("compressed chunk"))
	writer.Close()
	if err := os.MkdirAll(filepath.Join(dir, "40um"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "40um", "info.gz"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := acc.Fetch(ctx, "40um/info")
	if err != nil {
		t.Fatalf("gzip fallback fetch failed: %v", err)
	}
	if string(data) != "compressed chunk" {
		t.Errorf("fetched %q", data)
	}
}

func TestFileAccessor_GzipStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	acc := NewFileAccessor(dir, true)

	if err := acc.Store(ctx, "chunk", []byte("squeeze me")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "chunk.gz")); err != nil {
		t.Fatalf("expected chunk.gz on disk: %v", err)
	}

	data, err := acc.Fetch(ctx, "chunk")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "squeeze me" {
		t.Errorf("fetched %q", data)
	}
}

func TestFileAccessor_RejectsEscapingNames(t *testing.T) {
	ctx := context.Background()
	acc := NewFileAccessor(t.TempDir(), false)

	for _, name := range []string{"", "../outside", "/absolute", "a/../../b"} {
		if err := acc.Store(ctx, name, []byte("x")); err == nil {
			t.Errorf("Store(%q) should have been rejected", name)
		}
	}
}

func TestHTTPAccessor(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/info":
			w.Write([]byte(`{"type":"image"}`))
		case "/data/gone":
			http.Error(w, "gone", http.StatusGone)
		case "/data/broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	acc, err := NewHTTPAccessor(server.URL+"/data", server.Client())
	if err != nil {
		t.Fatal(err)
	}
	if acc.CanWrite() {
		t.Error("HTTP accessor must be read-only")
	}

	data, err := acc.Fetch(ctx, "info")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"image"}` {
		t.Errorf("fetched %q", data)
	}

	if _, err := acc.Fetch(ctx, "missing"); !IsNotFound(err) {
		t.Errorf("404 should map to ErrNotFound, got %v", err)
	}
	if _, err := acc.Fetch(ctx, "gone"); !IsNotFound(err) {
		t.Errorf("410 should map to ErrNotFound, got %v", err)
	}
	if _, err := acc.Fetch(ctx, "broken"); err == nil || IsNotFound(err) {
		t.Errorf("500 should be a hard error, got %v", err)
	}

	if err := acc.Store(ctx, "info", []byte("x")); err == nil {
		t.Error("Store on HTTP accessor should fail")
	}
}
