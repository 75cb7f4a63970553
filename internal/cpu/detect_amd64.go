// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build amd64 && !goexperiment.simd

package cpu

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// detectFeatures reports the instruction sets, but without GOEXPERIMENT=simd the archsimd
// kernels are not compiled, so only the scalar level is usable.
func detectFeatures() Features {
	return Features{
		HasAVX2:      cpu.X86.HasAVX2,
		HasFMA:       cpu.X86.HasFMA,
		HasAVX512:    cpu.X86.HasAVX512F,
		Architecture: runtime.GOARCH,
	}
}
