// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import "github.com/pkg/errors"

// CacheParams are the blocking parameters of a kernel variant.
//
// They are constants per variant, picked for "standard" modern cache sizes, and can be
// retuned per target hardware (see the kc/mc/nc engine configuration).
type CacheParams struct {
	Mr int // Tile height: rows of A held in registers.
	Nr int // Tile width: columns of B held in registers.

	Kc int // K-block depth: a packed [Kc, Nr] strip of B stays in L1.
	Mc int // M-block height: a packed [Mc, Kc] panel of A stays in L2. Multiple of Mr.
	Nc int // N panel width: a packed [Kc, Nc] panel of B stays in L3. Multiple of Nr.
}

// Validate returns an error if the parameters can't describe a consistent tiling.
func (p CacheParams) Validate() error {
	if p.Mr <= 0 || p.Nr <= 0 || p.Kc <= 0 || p.Mc <= 0 || p.Nc <= 0 {
		return errors.Errorf("cache params must be positive, got %+v", p)
	}
	if p.Mr*p.Nr > MaxTileSize {
		return errors.Errorf("tile %dx%d larger than the maximum tile size %d", p.Mr, p.Nr, MaxTileSize)
	}
	if p.Mc%p.Mr != 0 {
		return errors.Errorf("Mc=%d must be a multiple of Mr=%d", p.Mc, p.Mr)
	}
	if p.Nc%p.Nr != 0 {
		return errors.Errorf("Nc=%d must be a multiple of Nr=%d", p.Nc, p.Nr)
	}
	return nil
}

// TileSize is the number of elements of one output tile.
func (p CacheParams) TileSize() int { return p.Mr * p.Nr }

// PackedASize is the number of elements of the packed A panel buffer.
func (p CacheParams) PackedASize() int { return p.Mc * p.Kc }

// PackedBSize is the number of elements of the packed B panel buffer for a matrix with n columns:
// the panel never needs to be wider than n rounded up to Nr.
func (p CacheParams) PackedBSize(n int) int {
	width := min(p.Nc, RoundUp(n, p.Nr))
	return p.Kc * width
}

// RoundUp rounds n up to a multiple of m.
func RoundUp(n, m int) int {
	return (n + m - 1) / m * m
}
