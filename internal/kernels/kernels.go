// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package kernels holds the GEMM micro-kernels and the registry used to pick one.
//
// A micro-kernel computes one full [Mr, Nr] output tile from packed panels:
//
//   - packedA is organized as [kc, Mr] (the Mr rows of A for each k are contiguous);
//   - packedB is organized as [kc, Nr];
//   - c points to the top-left element of the tile, in a row-major buffer with row stride ldc.
//
// If accumulate is false, the accumulators start at zero and the tile is overwritten, otherwise they
// start with the current values of the tile. For each k in order every accumulator is updated
// with one fused multiply-add, acc = a*b + acc, rounded once. The per-element accumulation order is
// the same for every variant, so all variants agree up to FMA availability.
package kernels

import (
	"fmt"

	"github.com/gomlx/dgemm/internal/cpu"
)

// MaxTileSize is the largest Mr*Nr supported.
const MaxTileSize = 128

// Kernel is the tile-compute interface implemented by every variant.
type Kernel interface {
	Tile(kc int, packedA, packedB, c []float64, ldc int, accumulate bool)
}

// KernelFunc adapts a function to the Kernel interface.
type KernelFunc func(kc int, packedA, packedB, c []float64, ldc int, accumulate bool)

// Tile implements Kernel.
func (fn KernelFunc) Tile(kc int, packedA, packedB, c []float64, ldc int, accumulate bool) {
	fn(kc, packedA, packedB, c, ldc, accumulate)
}

// Priority orders variants when auto-selecting: higher is preferred.
type Priority int

const (
	// PriorityForceOnly variants are never auto-selected, they can only be requested by name.
	PriorityForceOnly Priority = -1

	PriorityScalar Priority = 0
	PriorityAVX2   Priority = 10
	PriorityAVX512 Priority = 20
)

// Variant is one registered micro-kernel with its tiling geometry.
type Variant struct {
	Name   string
	Params CacheParams

	// Requires is the capability level the kernel needs.
	Requires cpu.Level
	Priority Priority

	// Fallback names the variant used when Requires is not supported. It must have the same tile shape.
	Fallback string

	Kernel Kernel
}

// WithParams returns a copy of the variant using the given cache params.
// The tile shape (Mr, Nr) can't be changed, only Kc, Mc and Nc.
func (v *Variant) WithParams(kc, mc, nc int) (*Variant, error) {
	v2 := *v
	if kc > 0 {
		v2.Params.Kc = kc
	}
	if mc > 0 {
		v2.Params.Mc = mc
	}
	if nc > 0 {
		v2.Params.Nc = nc
	}
	if err := v2.Params.Validate(); err != nil {
		return nil, err
	}
	return &v2, nil
}

// String returns the name of the variant with its tile shape.
func (v *Variant) String() string {
	return fmt.Sprintf("%s(%dx%d)", v.Name, v.Params.Mr, v.Params.Nr)
}
