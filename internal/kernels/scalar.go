// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"math"

	"github.com/gomlx/dgemm/internal/cpu"
)

var (
	// Scalar4x4Params is also the geometry of the AVX2 4x4 kernel.
	Scalar4x4Params = CacheParams{
		Mr: 4,    // Rows of A in registers.
		Nr: 4,    // Cols of B in registers.
		Kc: 256,  // K-block depth.
		Mc: 128,  // M-block height.
		Nc: 2048, // N panel width.
	}

	// Scalar12x4Params is also the geometry of the AVX2 12x4 kernel.
	Scalar12x4Params = CacheParams{Mr: 12, Nr: 4, Kc: 256, Mc: 120, Nc: 2048}

	// Scalar8x8Params is also the geometry of the AVX-512 8x8 kernel.
	Scalar8x8Params = CacheParams{Mr: 8, Nr: 8, Kc: 256, Mc: 128, Nc: 2048}
)

func init() {
	Register(Variant{Name: "scalar-4x4", Params: Scalar4x4Params, Requires: cpu.LevelScalar,
		Priority: PriorityScalar + 2, Kernel: KernelFunc(scalarTile4x4)})
	Register(Variant{Name: "scalar-12x4", Params: Scalar12x4Params, Requires: cpu.LevelScalar,
		Priority: PriorityScalar + 1, Kernel: scalarTile(12, 4)})
	Register(Variant{Name: "scalar-8x8", Params: Scalar8x8Params, Requires: cpu.LevelScalar,
		Priority: PriorityScalar, Kernel: scalarTile(8, 8)})
}

// scalarTile4x4 keeps the 16 accumulators in local variables, so the compiler can hold them in registers.
func scalarTile4x4(kc int, packedA, packedB, c []float64, ldc int, accumulate bool) {
	var c00, c01, c02, c03 float64
	var c10, c11, c12, c13 float64
	var c20, c21, c22, c23 float64
	var c30, c31, c32, c33 float64
	// Early bounds check of the whole tile.
	_ = c[3*ldc+3]
	if accumulate {
		c00, c01, c02, c03 = c[0], c[1], c[2], c[3]
		c10, c11, c12, c13 = c[ldc], c[ldc+1], c[ldc+2], c[ldc+3]
		c20, c21, c22, c23 = c[2*ldc], c[2*ldc+1], c[2*ldc+2], c[2*ldc+3]
		c30, c31, c32, c33 = c[3*ldc], c[3*ldc+1], c[3*ldc+2], c[3*ldc+3]
	}

	a := packedA[:kc*4]
	b := packedB[:kc*4]
	for idx := 0; idx < len(a); idx += 4 {
		aWindow := a[idx : idx+4]
		bWindow := b[idx : idx+4]
		b0, b1, b2, b3 := bWindow[0], bWindow[1], bWindow[2], bWindow[3]

		a0 := aWindow[0]
		c00 = math.FMA(a0, b0, c00)
		c01 = math.FMA(a0, b1, c01)
		c02 = math.FMA(a0, b2, c02)
		c03 = math.FMA(a0, b3, c03)

		a1 := aWindow[1]
		c10 = math.FMA(a1, b0, c10)
		c11 = math.FMA(a1, b1, c11)
		c12 = math.FMA(a1, b2, c12)
		c13 = math.FMA(a1, b3, c13)

		a2 := aWindow[2]
		c20 = math.FMA(a2, b0, c20)
		c21 = math.FMA(a2, b1, c21)
		c22 = math.FMA(a2, b2, c22)
		c23 = math.FMA(a2, b3, c23)

		a3 := aWindow[3]
		c30 = math.FMA(a3, b0, c30)
		c31 = math.FMA(a3, b1, c31)
		c32 = math.FMA(a3, b2, c32)
		c33 = math.FMA(a3, b3, c33)
	}

	c[0], c[1], c[2], c[3] = c00, c01, c02, c03
	c[ldc], c[ldc+1], c[ldc+2], c[ldc+3] = c10, c11, c12, c13
	c[2*ldc], c[2*ldc+1], c[2*ldc+2], c[2*ldc+3] = c20, c21, c22, c23
	c[3*ldc], c[3*ldc+1], c[3*ldc+2], c[3*ldc+3] = c30, c31, c32, c33
}

// scalarTile returns a scalar kernel for an arbitrary [mr, nr] tile, with the accumulators
// in a stack array.
func scalarTile(mr, nr int) KernelFunc {
	return func(kc int, packedA, packedB, c []float64, ldc int, accumulate bool) {
		var accum [MaxTileSize]float64
		if accumulate {
			for row := range mr {
				copy(accum[row*nr:(row+1)*nr], c[row*ldc:row*ldc+nr])
			}
		}

		a := packedA[:kc*mr]
		b := packedB[:kc*nr]
		for k := range kc {
			aWindow := a[k*mr : (k+1)*mr]
			bWindow := b[k*nr : (k+1)*nr]
			for row, aValue := range aWindow {
				accumRow := accum[row*nr : (row+1)*nr]
				for col, bValue := range bWindow {
					accumRow[col] = math.FMA(aValue, bValue, accumRow[col])
				}
			}
		}

		for row := range mr {
			copy(c[row*ldc:row*ldc+nr], accum[row*nr:(row+1)*nr])
		}
	}
}
