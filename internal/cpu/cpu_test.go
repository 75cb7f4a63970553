// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cpu

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBest(t *testing.T) {
	testCases := []struct {
		name     string
		features Features
		want     Level
	}{
		{"nothing", Features{}, LevelScalar},
		{"avx2-not-compiled", Features{HasAVX2: true, HasFMA: true}, LevelScalar},
		{"avx2-no-fma", Features{HasAVX2: true, SIMDCompiled: true}, LevelScalar},
		{"avx2", Features{HasAVX2: true, HasFMA: true, SIMDCompiled: true}, LevelAVX2},
		{"avx512", Features{HasAVX2: true, HasAVX512: true, HasFMA: true, SIMDCompiled: true}, LevelAVX512},
		{"avx512-forced-scalar", Features{HasAVX2: true, HasAVX512: true, HasFMA: true, SIMDCompiled: true, ForceScalar: true}, LevelScalar},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.features.Best())
			assert.True(t, tc.features.Supports(LevelScalar))
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "scalar", LevelScalar.String())
	assert.Equal(t, "avx2", LevelAVX2.String())
	assert.Equal(t, "avx512", LevelAVX512.String())
	assert.Equal(t, "Level(7)", Level(7).String())
}

func TestDetect(t *testing.T) {
	defer Reset()
	Reset()
	f := Detect()
	require.Equal(t, runtime.GOARCH, f.Architecture)
	assert.Equal(t, f, Detect(), "Detect must return the cached probe")

	forced := Features{HasAVX2: true, HasFMA: true, SIMDCompiled: true, Architecture: "test"}
	SetForced(forced)
	assert.Equal(t, forced, Detect())
	Reset()
	assert.Equal(t, runtime.GOARCH, Detect().Architecture)
}

func TestNoSIMDEnv(t *testing.T) {
	defer Reset()
	for _, tc := range []struct {
		value string
		want  bool
	}{{"", false}, {"0", false}, {"false", false}, {"1", true}, {"true", true}, {"yes", true}} {
		t.Setenv(NoSIMDEnvVar, tc.value)
		assert.Equal(t, tc.want, noSIMDEnv(), "%s=%q", NoSIMDEnvVar, tc.value)
	}
	t.Setenv(NoSIMDEnvVar, "1")
	Reset()
	f := Detect()
	assert.True(t, f.ForceScalar)
	assert.Equal(t, LevelScalar, f.Best())
}
