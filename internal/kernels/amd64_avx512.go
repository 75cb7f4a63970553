// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build amd64 && goexperiment.simd

package kernels

import (
	"simd/archsimd"
	"sync"

	"github.com/gomlx/dgemm/internal/cpu"
	"k8s.io/klog/v2"
)

func init() {
	Register(Variant{Name: "avx512-8x8", Params: Scalar8x8Params, Requires: cpu.LevelAVX512,
		Priority: PriorityAVX512, Fallback: "scalar-8x8", Kernel: KernelFunc(avx512Tile8x8)})
}

var avx512NoticeOnce sync.Once

// avx512Tile8x8 holds one ZMM accumulator (8 float64) per tile row.
func avx512Tile8x8(kc int, packedA, packedB, c []float64, ldc int, accumulate bool) {
	avx512NoticeOnce.Do(func() {
		klog.V(1).Infof("AVX512 8x8 GEMM kernel in use")
	})

	_ = c[7*ldc+7]
	var acc0, acc1, acc2, acc3, acc4, acc5, acc6, acc7 archsimd.Float64x8
	if accumulate {
		acc0 = archsimd.LoadFloat64x8Slice(c[0:8])
		acc1 = archsimd.LoadFloat64x8Slice(c[ldc : ldc+8])
		acc2 = archsimd.LoadFloat64x8Slice(c[2*ldc : 2*ldc+8])
		acc3 = archsimd.LoadFloat64x8Slice(c[3*ldc : 3*ldc+8])
		acc4 = archsimd.LoadFloat64x8Slice(c[4*ldc : 4*ldc+8])
		acc5 = archsimd.LoadFloat64x8Slice(c[5*ldc : 5*ldc+8])
		acc6 = archsimd.LoadFloat64x8Slice(c[6*ldc : 6*ldc+8])
		acc7 = archsimd.LoadFloat64x8Slice(c[7*ldc : 7*ldc+8])
	} else {
		zero := archsimd.BroadcastFloat64x8(0.0)
		acc0, acc1, acc2, acc3 = zero, zero, zero, zero
		acc4, acc5, acc6, acc7 = zero, zero, zero, zero
	}

	a := packedA[:kc*8]
	b := packedB[:kc*8]
	for idx := 0; idx < len(a); idx += 8 {
		bVec := archsimd.LoadFloat64x8Slice(b[idx : idx+8])
		aWindow := a[idx : idx+8]
		acc0 = bVec.MulAdd(archsimd.BroadcastFloat64x8(aWindow[0]), acc0)
		acc1 = bVec.MulAdd(archsimd.BroadcastFloat64x8(aWindow[1]), acc1)
		acc2 = bVec.MulAdd(archsimd.BroadcastFloat64x8(aWindow[2]), acc2)
		acc3 = bVec.MulAdd(archsimd.BroadcastFloat64x8(aWindow[3]), acc3)
		acc4 = bVec.MulAdd(archsimd.BroadcastFloat64x8(aWindow[4]), acc4)
		acc5 = bVec.MulAdd(archsimd.BroadcastFloat64x8(aWindow[5]), acc5)
		acc6 = bVec.MulAdd(archsimd.BroadcastFloat64x8(aWindow[6]), acc6)
		acc7 = bVec.MulAdd(archsimd.BroadcastFloat64x8(aWindow[7]), acc7)
	}

	acc0.StoreSlice(c[0:8])
	acc1.StoreSlice(c[ldc : ldc+8])
	acc2.StoreSlice(c[2*ldc : 2*ldc+8])
	acc3.StoreSlice(c[3*ldc : 3*ldc+8])
	acc4.StoreSlice(c[4*ldc : 4*ldc+8])
	acc5.StoreSlice(c[5*ldc : 5*ldc+8])
	acc6.StoreSlice(c[6*ldc : 6*ldc+8])
	acc7.StoreSlice(c[7*ldc : 7*ldc+8])
}
