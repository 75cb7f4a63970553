// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package cpu probes the vector instruction sets the GEMM kernels can use.
//
// Detection runs once per process, on the first call to Detect, and the result is cached.
// Tests can override it with SetForced and restore it with Reset.
package cpu

import (
	"os"
	"strconv"
	"sync"
)

// Level is a vector capability level, ordered from least to most capable.
type Level int

const (
	// LevelScalar is plain Go, always available.
	LevelScalar Level = iota

	// LevelAVX2 requires AVX2 and FMA, plus the archsimd kernels compiled in.
	LevelAVX2

	// LevelAVX512 requires AVX-512F and FMA, plus the archsimd kernels compiled in.
	LevelAVX512
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelScalar:
		return "scalar"
	case LevelAVX2:
		return "avx2"
	case LevelAVX512:
		return "avx512"
	default:
		return "Level(" + strconv.Itoa(int(l)) + ")"
	}
}

// Features describes the CPU capabilities relevant to kernel selection.
type Features struct {
	HasAVX2   bool
	HasFMA    bool
	HasAVX512 bool
	HasASIMD  bool // arm64 Advanced SIMD.

	// SIMDCompiled reports whether the archsimd kernels were compiled into this binary.
	// It requires amd64 and GOEXPERIMENT=simd.
	SIMDCompiled bool

	// ForceScalar disables every vector level, see NoSIMDEnvVar.
	ForceScalar bool

	Architecture string
}

// NoSIMDEnvVar is the environment variable that, when set to a true value, makes Detect
// report only LevelScalar.
const NoSIMDEnvVar = "DGEMM_NO_SIMD"

// Supports returns whether the given level can be used.
func (f Features) Supports(level Level) bool {
	if level == LevelScalar {
		return true
	}
	if f.ForceScalar || !f.SIMDCompiled || !f.HasFMA {
		return false
	}
	switch level {
	case LevelAVX2:
		return f.HasAVX2
	case LevelAVX512:
		return f.HasAVX512
	}
	return false
}

// Best returns the most capable level supported.
func (f Features) Best() Level {
	for _, level := range []Level{LevelAVX512, LevelAVX2} {
		if f.Supports(level) {
			return level
		}
	}
	return LevelScalar
}

var (
	muDetect sync.Mutex
	detected Features
	once     = new(sync.Once)
	forced   *Features
)

// Detect returns the features of the running CPU. The probe runs only once.
func Detect() Features {
	muDetect.Lock()
	defer muDetect.Unlock()
	if forced != nil {
		return *forced
	}
	once.Do(func() {
		detected = detectFeatures()
		detected.ForceScalar = noSIMDEnv()
	})
	return detected
}

// SetForced makes Detect return f until Reset is called. Used for testing.
func SetForced(f Features) {
	muDetect.Lock()
	defer muDetect.Unlock()
	forced = &f
}

// Reset drops forced features and the cached probe, so the next Detect probes again.
func Reset() {
	muDetect.Lock()
	defer muDetect.Unlock()
	forced = nil
	once = new(sync.Once)
}

// noSIMDEnv checks NoSIMDEnvVar: any non-empty value that doesn't parse as false counts as true.
func noSIMDEnv() bool {
	val := os.Getenv(NoSIMDEnvVar)
	if val == "" {
		return false
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return true
}
