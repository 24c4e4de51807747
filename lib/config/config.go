// Copyright 2026 The Voxelforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for voxelforge
// commands.
//
// Configuration is loaded from a single file specified by:
//   - VOXELFORGE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery; a run without a
// config file uses the built-in defaults. Command-line flags override
// config values, so interactive use never needs a file at all.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/klauspost/compress/gzip"
)

// Config is the configuration for voxelforge commands.
type Config struct {
	// Convert tunes conversion runs.
	Convert ConvertConfig `yaml:"convert"`

	// HTTP tunes remote dataset access.
	HTTP HTTPConfig `yaml:"http"`
}

// ConvertConfig tunes conversion runs.
type ConvertConfig struct {
	// Workers is the number of concurrent shard workers.
	// Default: 0 (one per CPU).
	Workers int `yaml:"workers"`

	// GzipLevel is the compression level for converted chunks, 1-9.
	// Default: 9.
	GzipLevel int `yaml:"gzip_level"`

	// ShardFanout caps the number of shards per axis of each scale.
	// Default: 4.
	ShardFanout int `yaml:"shard_fanout"`

	// WriteManifest stores a blob manifest in the destination for
	// later verification. Default: true.
	WriteManifest *bool `yaml:"write_manifest"`
}

// HTTPConfig tunes remote dataset access.
type HTTPConfig struct {
	// Timeout is the per-request timeout for remote chunk fetches.
	// Default: 60s.
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in defaults. They are a complete working
// configuration; the config file only overrides them.
func Default() *Config {
	writeManifest := true
	return &Config{
		Convert: ConvertConfig{
			Workers:       0,
			GzipLevel:     9,
			ShardFanout:   4,
			WriteManifest: &writeManifest,
		},
		HTTP: HTTPConfig{
			Timeout: 60 * time.Second,
		},
	}
}

// Load loads configuration from the VOXELFORGE_CONFIG environment
// variable, falling back to defaults when it is not set.
func Load() (*Config, error) {
	path := os.Getenv("VOXELFORGE_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults. The only expansion performed is ${VAR} and
// ${VAR:-default} in string values, for portability of shared config
// files.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := expandVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Convert.Workers < 0 {
		errs = append(errs, fmt.Errorf("convert.workers is %d, want >= 0", c.Convert.Workers))
	}
	if c.Convert.GzipLevel < gzip.BestSpeed || c.Convert.GzipLevel > gzip.BestCompression {
		errs = append(errs, fmt.Errorf("convert.gzip_level is %d, want %d-%d",
			c.Convert.GzipLevel, gzip.BestSpeed, gzip.BestCompression))
	}
	if c.Convert.ShardFanout < 1 {
		errs = append(errs, fmt.Errorf("convert.shard_fanout is %d, want >= 1", c.Convert.ShardFanout))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout is %s, want > 0", c.HTTP.Timeout))
	}

	return errors.Join(errs...)
}
