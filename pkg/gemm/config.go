// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// ConfigEnvVar is the environment variable with the configuration of the Default engine.
// See ParseConfig for the format.
const ConfigEnvVar = "DGEMM_CONFIG"

// DefaultConfig is used by Default if ConfigEnvVar is not set.
//
// It must be set before the first use of Default (or of the package level functions).
var DefaultConfig string

// Config of an Engine. The zero value is the automatic configuration.
type Config struct {
	// Kernel is the name of the kernel variant. If empty, the best for the CPU is used.
	// If the CPU doesn't support it, the scalar variant with the same tile shape is used instead.
	Kernel string

	// MaxThreads caps the threads of any call, on top of the maxThreads argument. 0 means runtime.NumCPU().
	MaxThreads int

	// MaxScratchBytes limits the scratch of each worker. 0 means no limit.
	MaxScratchBytes int64

	// Kc, Mc, Nc override the cache blocking of the kernel variant, if > 0.
	Kc, Mc, Nc int
}

// ParseConfig parses a configuration string formatted as a comma-separated list of "key=value" options:
//
//   - "kernel=<name>": kernel variant, e.g. "kernel=scalar-4x4" or "kernel=avx512-8x8".
//   - "max_threads=<int>": cap on the number of threads.
//   - "max_scratch=<size>": limit on the scratch per worker, e.g. "512MiB" or "1GB".
//   - "kc=<int>", "mc=<int>", "nc=<int>": cache blocking overrides.
//
// Spaces around options are ignored, and an empty string is the automatic configuration.
// Unknown options are an error.
func ParseConfig(config string) (Config, error) {
	var cfg Config
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return Config{}, errors.Wrapf(ErrInvalidConfig, "option %q is not in the format \"key=value\"", part)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		var err error
		switch key {
		case "kernel":
			cfg.Kernel = value
		case "max_threads":
			cfg.MaxThreads, err = parsePositive(key, value)
		case "max_scratch":
			var numBytes uint64
			numBytes, err = humanize.ParseBytes(value)
			if err != nil {
				err = errors.Wrapf(ErrInvalidConfig, "option %q: %v", part, err)
			} else if numBytes > math.MaxInt64 {
				err = errors.Wrapf(ErrInvalidConfig, "option %q: %d bytes is larger than the maximum %d", part, numBytes, int64(math.MaxInt64))
			}
			cfg.MaxScratchBytes = int64(numBytes)
		case "kc":
			cfg.Kc, err = parsePositive(key, value)
		case "mc":
			cfg.Mc, err = parsePositive(key, value)
		case "nc":
			cfg.Nc, err = parsePositive(key, value)
		default:
			err = errors.Wrapf(ErrInvalidConfig,
				"unknown configuration option %q (valid keys: kernel, max_threads, max_scratch, kc, mc, nc)", part)
		}
		if err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func parsePositive(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil || v < 1 {
		return 0, errors.Wrapf(ErrInvalidConfig, "option %q requires a positive integer, got %q", key, value)
	}
	return v, nil
}

// String returns the configuration in the format accepted by ParseConfig.
func (cfg Config) String() string {
	var parts []string
	if cfg.Kernel != "" {
		parts = append(parts, "kernel="+cfg.Kernel)
	}
	if cfg.MaxThreads > 0 {
		parts = append(parts, fmt.Sprintf("max_threads=%d", cfg.MaxThreads))
	}
	if cfg.MaxScratchBytes > 0 {
		parts = append(parts, "max_scratch="+humanize.IBytes(uint64(cfg.MaxScratchBytes)))
	}
	for _, override := range []struct {
		key   string
		value int
	}{{"kc", cfg.Kc}, {"mc", cfg.Mc}, {"nc", cfg.Nc}} {
		if override.value > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", override.key, override.value))
		}
	}
	return strings.Join(parts, ",")
}
