// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package accessor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// FileAccessor stores a dataset as a directory tree. Writes are
// atomic: data is written to a temporary file in the destination
// directory and renamed into place, so a crashed or cancelled
// conversion never leaves a truncated chunk behind.
//
// When Gzip is enabled, stored blobs are compressed and saved under
// name + ".gz"; Fetch transparently tries the plain name first and
// falls back to the gzipped one. This mirrors the layout produced by
// the original conversion scripts, where a dataset directory may hold
// a mix of plain and gzipped chunk files.
type FileAccessor struct {
	root string
	gzip bool
}

// NewFileAccessor returns a FileAccessor rooted at dir. The directory
// is created on the first Store if it does not exist.
func NewFileAccessor(dir string, gzipFiles bool) *FileAccessor {
	return &FileAccessor{root: dir, gzip: gzipFiles}
}

// Root returns the accessor's base directory.
func (a *FileAccessor) Root() string { return a.root }

func (a *FileAccessor) CanRead() bool  { return true }
func (a *FileAccessor) CanWrite() bool { return true }

// Fetch reads the named blob. A name stored gzipped (name + ".gz") is
// decompressed transparently.
func (a *FileAccessor) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := a.resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	// Fall back to the gzipped variant.
	compressed, gzErr := os.ReadFile(path + ".gz")
	if gzErr != nil {
		if os.IsNotExist(gzErr) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("reading %s.gz: %w", name, gzErr)
	}

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompressing %s.gz: %w", name, err)
	}
	defer reader.Close()

	data, err = io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s.gz: %w", name, err)
	}
	return data, nil
}

// Store writes the named blob atomically. With gzip enabled, blobs are
// compressed unless the name indicates already-compressed content.
func (a *FileAccessor) Store(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := a.resolve(name)
	if err != nil {
		return err
	}

	if a.gzip && !strings.HasSuffix(name, ".gz") {
		var buf bytes.Buffer
		writer := gzip.NewWriter(&buf)
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf("compressing %s: %w", name, err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("compressing %s: %w", name, err)
		}
		path += ".gz"
		data = buf.Bytes()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	temp, err := os.CreateTemp(dir, ".voxelforge-*")
	if err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}
	tempName := temp.Name()
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempName)
		return fmt.Errorf("storing %s: %w", name, err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("storing %s: %w", name, err)
	}
	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("storing %s: %w", name, err)
	}
	return nil
}

// resolve maps a blob name to a filesystem path, rejecting names that
// would escape the root directory.
func (a *FileAccessor) resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty blob name")
	}
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(a.root, filepath.FromSlash(name)), nil
}
