// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/voxelforge/voxelforge/lib/accessor"
	"github.com/voxelforge/voxelforge/lib/mirror"
	"github.com/voxelforge/voxelforge/lib/precomputed"
	"github.com/voxelforge/voxelforge/lib/zarr"
	"github.com/voxelforge/voxelforge/lib/zarr3"
)

// newAccessor builds an accessor for a dataset reference: an
// http(s):// URL (read-only) or a local directory.
func newAccessor(ref string, timeout time.Duration) (accessor.Accessor, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return accessor.NewHTTPAccessor(ref, &http.Client{Timeout: timeout})
	}
	return accessor.NewFileAccessor(ref, false), nil
}

// openSource probes the dataset format and opens it as a mirror
// source. Formats are tried by their marker file: "info"
// (precomputed), ".zgroup" (zarr v2), "zarr.json" (zarr v3).
func openSource(ctx context.Context, acc accessor.Accessor) (mirror.Source, *precomputed.Info, string, error) {
	store, err := precomputed.Open(ctx, acc)
	if err == nil {
		return store, store.Info(), "precomputed", nil
	}
	if !accessor.IsNotFound(err) {
		return nil, nil, "", err
	}

	zarrStore, err := zarr.Open(ctx, acc)
	if err == nil {
		info, err := zarrStore.Info()
		if err != nil {
			return nil, nil, "", err
		}
		return zarrStore, info, "zarr v2", nil
	}
	if !accessor.IsNotFound(err) {
		return nil, nil, "", err
	}

	zarr3Store, err := zarr3.Open(ctx, acc)
	if err == nil {
		info, err := zarr3Store.Info()
		if err != nil {
			return nil, nil, "", err
		}
		return zarr3Store, info, "zarr v3", nil
	}
	if !accessor.IsNotFound(err) {
		return nil, nil, "", err
	}

	return nil, nil, "", fmt.Errorf("no %q, %q, or %q found: not a recognized dataset",
		precomputed.InfoName, ".zgroup", zarr3.MetadataName)
}
