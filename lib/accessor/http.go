// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

package accessor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxBlobSize bounds HTTP response body reads: 2 GB. A single shard
// of a large dataset can legitimately reach hundreds of megabytes;
// the bound only exists so a misbehaving server cannot exhaust
// memory with an endless body.
const MaxBlobSize int64 = 2 << 30

// HTTPAccessor reads a dataset served over HTTP(S). It is read-only:
// the precomputed datasets this tool mirrors are published behind
// plain object stores or static file servers with no write API.
type HTTPAccessor struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPAccessor returns an accessor for the dataset rooted at
// baseURL. A nil client uses a default with a 60 second timeout.
func NewHTTPAccessor(baseURL string, client *http.Client) (*HTTPAccessor, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q is not http(s)", baseURL)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPAccessor{base: parsed, client: client}, nil
}

func (a *HTTPAccessor) CanRead() bool  { return true }
func (a *HTTPAccessor) CanWrite() bool { return false }

// Fetch GETs base URL + name. 404 and 410 map to ErrNotFound; other
// non-2xx statuses are errors carrying a snippet of the body.
func (a *HTTPAccessor) Fetch(ctx context.Context, name string) ([]byte, error) {
	target := a.base.JoinPath(name)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", name, err)
	}

	response, err := a.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", name, err)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusNotFound,
		response.StatusCode == http.StatusGone:
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)

	case response.StatusCode < 200 || response.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return nil, fmt.Errorf("fetching %s: HTTP %d: %s",
			name, response.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, MaxBlobSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// Store always fails: HTTP datasets are read-only.
func (a *HTTPAccessor) Store(ctx context.Context, name string, data []byte) error {
	return fmt.Errorf("HTTP accessor is read-only, cannot store %s", name)
}
