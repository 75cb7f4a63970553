// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build arm64

package cpu

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// detectFeatures on arm64: NEON is reported but no archsimd kernel targets it yet.
func detectFeatures() Features {
	return Features{
		HasASIMD:     cpu.ARM64.HasASIMD,
		HasFMA:       cpu.ARM64.HasASIMD,
		Architecture: runtime.GOARCH,
	}
}
