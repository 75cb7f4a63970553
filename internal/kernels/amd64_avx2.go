// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build amd64 && goexperiment.simd

package kernels

import (
	"simd/archsimd"

	"github.com/gomlx/dgemm/internal/cpu"
)

func init() {
	Register(Variant{Name: "avx2-4x4", Params: Scalar4x4Params, Requires: cpu.LevelAVX2,
		Priority: PriorityAVX2, Fallback: "scalar-4x4", Kernel: KernelFunc(avx2Tile4x4)})
	Register(Variant{Name: "avx2-12x4", Params: Scalar12x4Params, Requires: cpu.LevelAVX2,
		Priority: PriorityAVX2 + 1, Fallback: "scalar-12x4", Kernel: KernelFunc(avx2Tile12x4)})
}

// avx2Tile4x4 holds one YMM accumulator (4 float64) per tile row.
//
// For each k it loads the 4 packed values of B once, and broadcasts each of the 4 packed values of A.
func avx2Tile4x4(kc int, packedA, packedB, c []float64, ldc int, accumulate bool) {
	_ = c[3*ldc+3]
	var acc0, acc1, acc2, acc3 archsimd.Float64x4
	if accumulate {
		acc0 = archsimd.LoadFloat64x4Slice(c[0:4])
		acc1 = archsimd.LoadFloat64x4Slice(c[ldc : ldc+4])
		acc2 = archsimd.LoadFloat64x4Slice(c[2*ldc : 2*ldc+4])
		acc3 = archsimd.LoadFloat64x4Slice(c[3*ldc : 3*ldc+4])
	} else {
		acc0 = archsimd.BroadcastFloat64x4(0.0)
		acc1 = archsimd.BroadcastFloat64x4(0.0)
		acc2 = archsimd.BroadcastFloat64x4(0.0)
		acc3 = archsimd.BroadcastFloat64x4(0.0)
	}

	a := packedA[:kc*4]
	b := packedB[:kc*4]
	for idx := 0; idx < len(a); idx += 4 {
		bVec := archsimd.LoadFloat64x4Slice(b[idx : idx+4])
		aWindow := a[idx : idx+4]
		acc0 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[0]), acc0)
		acc1 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[1]), acc1)
		acc2 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[2]), acc2)
		acc3 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[3]), acc3)
	}

	acc0.StoreSlice(c[0:4])
	acc1.StoreSlice(c[ldc : ldc+4])
	acc2.StoreSlice(c[2*ldc : 2*ldc+4])
	acc3.StoreSlice(c[3*ldc : 3*ldc+4])
}

// avx2Tile12x4 uses 12 YMM accumulators, one B vector and one broadcast register: 14 of the 16
// YMM registers.
func avx2Tile12x4(kc int, packedA, packedB, c []float64, ldc int, accumulate bool) {
	_ = c[11*ldc+3]
	var acc0, acc1, acc2, acc3, acc4, acc5, acc6, acc7, acc8, acc9, acc10, acc11 archsimd.Float64x4
	if accumulate {
		acc0 = archsimd.LoadFloat64x4Slice(c[0:4])
		acc1 = archsimd.LoadFloat64x4Slice(c[ldc : ldc+4])
		acc2 = archsimd.LoadFloat64x4Slice(c[2*ldc : 2*ldc+4])
		acc3 = archsimd.LoadFloat64x4Slice(c[3*ldc : 3*ldc+4])
		acc4 = archsimd.LoadFloat64x4Slice(c[4*ldc : 4*ldc+4])
		acc5 = archsimd.LoadFloat64x4Slice(c[5*ldc : 5*ldc+4])
		acc6 = archsimd.LoadFloat64x4Slice(c[6*ldc : 6*ldc+4])
		acc7 = archsimd.LoadFloat64x4Slice(c[7*ldc : 7*ldc+4])
		acc8 = archsimd.LoadFloat64x4Slice(c[8*ldc : 8*ldc+4])
		acc9 = archsimd.LoadFloat64x4Slice(c[9*ldc : 9*ldc+4])
		acc10 = archsimd.LoadFloat64x4Slice(c[10*ldc : 10*ldc+4])
		acc11 = archsimd.LoadFloat64x4Slice(c[11*ldc : 11*ldc+4])
	} else {
		zero := archsimd.BroadcastFloat64x4(0.0)
		acc0, acc1, acc2, acc3 = zero, zero, zero, zero
		acc4, acc5, acc6, acc7 = zero, zero, zero, zero
		acc8, acc9, acc10, acc11 = zero, zero, zero, zero
	}

	a := packedA[:kc*12]
	b := packedB[:kc*4]
	for k := range kc {
		bVec := archsimd.LoadFloat64x4Slice(b[k*4 : k*4+4])
		aWindow := a[k*12 : k*12+12]
		acc0 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[0]), acc0)
		acc1 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[1]), acc1)
		acc2 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[2]), acc2)
		acc3 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[3]), acc3)
		acc4 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[4]), acc4)
		acc5 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[5]), acc5)
		acc6 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[6]), acc6)
		acc7 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[7]), acc7)
		acc8 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[8]), acc8)
		acc9 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[9]), acc9)
		acc10 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[10]), acc10)
		acc11 = bVec.MulAdd(archsimd.BroadcastFloat64x4(aWindow[11]), acc11)
	}

	acc0.StoreSlice(c[0:4])
	acc1.StoreSlice(c[ldc : ldc+4])
	acc2.StoreSlice(c[2*ldc : 2*ldc+4])
	acc3.StoreSlice(c[3*ldc : 3*ldc+4])
	acc4.StoreSlice(c[4*ldc : 4*ldc+4])
	acc5.StoreSlice(c[5*ldc : 5*ldc+4])
	acc6.StoreSlice(c[6*ldc : 6*ldc+4])
	acc7.StoreSlice(c[7*ldc : 7*ldc+4])
	acc8.StoreSlice(c[8*ldc : 8*ldc+4])
	acc9.StoreSlice(c[9*ldc : 9*ldc+4])
	acc10.StoreSlice(c[10*ldc : 10*ldc+4])
	acc11.StoreSlice(c[11*ldc : 11*ldc+4])
}
