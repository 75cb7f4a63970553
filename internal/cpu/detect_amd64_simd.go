// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build amd64 && goexperiment.simd

package cpu

import (
	"runtime"
	"simd/archsimd"

	"golang.org/x/sys/cpu"
)

func detectFeatures() Features {
	return Features{
		HasAVX2:      archsimd.X86.AVX2(),
		HasFMA:       cpu.X86.HasFMA,
		HasAVX512:    archsimd.X86.AVX512(),
		SIMDCompiled: true,
		Architecture: runtime.GOARCH,
	}
}
