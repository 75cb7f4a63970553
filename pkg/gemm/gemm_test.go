// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/dgemm/internal/kernels"
	"github.com/gomlx/dgemm/pkg/reference"
	"github.com/gomlx/dgemm/pkg/support/xslices"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forEachKernel runs testFn with an engine for every registered kernel. Kernels the CPU can't run
// resolve to their scalar fallback.
func forEachKernel(t *testing.T, testFn func(t *testing.T, e *Engine)) {
	for _, name := range Kernels() {
		t.Run(name, func(t *testing.T) {
			e, err := New("kernel=" + name)
			require.NoError(t, err)
			testFn(t, e)
		})
	}
}

// forceThreads makes the engine use exactly maxThreads threads (capped by rows) regardless of the size.
func forceThreads(e *Engine) {
	e.threadCount = func(m, n, k, maxThreads int) int { return min(maxThreads, m) }
}

func TestMultiplySmall(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{5, 6, 7, 8}
	want := []float64{19, 22, 43, 50}
	forEachKernel(t, func(t *testing.T, e *Engine) {
		forceThreads(e)
		for threads := 1; threads <= 8; threads++ {
			c := make([]float64, 4)
			require.NoError(t, e.MultiplyParallel(a, b, c, 2, 2, 2, threads))
			require.Equal(t, want, c, "threads=%d", threads)
		}
		c := []float64{-1, -1, -1, -1}
		require.NoError(t, e.Multiply(a, b, c, 2, 2, 2))
		require.Equal(t, want, c)
	})

	// 2x3 · 3x2.
	c := make([]float64, 4)
	require.NoError(t, Multiply([]float64{1, 2, 3, 4, 5, 6}, []float64{7, 8, 9, 10, 11, 12}, c, 2, 2, 3))
	assert.Equal(t, []float64{58, 64, 139, 154}, c)
}

func TestMultiplyEdges(t *testing.T) {
	forEachKernel(t, func(t *testing.T, e *Engine) {
		// 1x1x1.
		c := []float64{100}
		require.NoError(t, e.Multiply([]float64{3}, []float64{-2}, c, 1, 1, 1))
		assert.Equal(t, []float64{-6}, c)

		// K=1: outer product.
		c = make([]float64, 6)
		require.NoError(t, e.Multiply([]float64{1, 2, 3}, []float64{4, 5}, c, 3, 2, 1))
		assert.Equal(t, []float64{4, 5, 8, 10, 12, 15}, c)

		// M=1: row vector times matrix.
		c = make([]float64, 3)
		require.NoError(t, e.Multiply([]float64{1, 2}, []float64{1, 2, 3, 4, 5, 6}, c, 1, 3, 2))
		assert.Equal(t, []float64{9, 12, 15}, c)

		// N=1: matrix times column vector.
		c = make([]float64, 2)
		require.NoError(t, e.Multiply([]float64{1, 2, 3, 4, 5, 6}, []float64{1, 0, -1}, c, 2, 1, 3))
		assert.Equal(t, []float64{-2, -2}, c)
	})
}

func TestMultiplyIdentityAndZero(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for _, n := range []int{1, 5, 16, 37, 130} {
		a := xslices.Random(rng, n*n)
		forEachKernel(t, func(t *testing.T, e *Engine) {
			c := xslices.SliceWithValue(n*n, 42.0)
			require.NoError(t, e.Multiply(a, xslices.Identity(n), c, n, n, n))
			require.Empty(t, cmp.Diff(a, c), "A·I != A for n=%d", n)

			c = xslices.SliceWithValue(n*n, 42.0)
			require.NoError(t, e.Multiply(xslices.Identity(n), a, c, n, n, n))
			require.Empty(t, cmp.Diff(a, c), "I·A != A for n=%d", n)

			c = xslices.SliceWithValue(n*n, 42.0)
			require.NoError(t, e.Multiply(a, make([]float64, n*n), c, n, n, n))
			require.Equal(t, make([]float64, n*n), c, "A·0 != 0 for n=%d", n)
		})
	}
}

func TestMultiplyRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	shapes := [][3]int{{3, 5, 7}, {64, 64, 64}, {65, 63, 257}, {100, 1, 300}, {1, 100, 300}, {129, 131, 77}}
	forEachKernel(t, func(t *testing.T, e *Engine) {
		for _, shape := range shapes {
			m, n, k := shape[0], shape[1], shape[2]
			a, b := xslices.Random(rng, m*k), xslices.Random(rng, k*n)
			want := make([]float64, m*n)
			reference.Gonum(a, b, want, m, n, k)
			c := make([]float64, m*n)
			require.NoError(t, e.MultiplyParallel(a, b, c, m, n, k, 4))
			require.NoError(t, xslices.InRelDelta(c, want, 1e-10, 1e-10), "m=%d, n=%d, k=%d", m, n, k)
		}
	})
}

func TestThreadInvariance(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 17))
	m, n, k := 150, 70, 300
	a, b := xslices.Random(rng, m*k), xslices.Random(rng, k*n)
	forEachKernel(t, func(t *testing.T, e *Engine) {
		forceThreads(e)
		want := make([]float64, m*n)
		require.NoError(t, e.Multiply(a, b, want, m, n, k))
		for threads := 2; threads <= 8; threads++ {
			c := make([]float64, m*n)
			require.NoError(t, e.MultiplyParallel(a, b, c, m, n, k, threads))
			require.Empty(t, cmp.Diff(want, c), "result with %d threads differs from single threaded", threads)
		}
	})
}

func TestKernelInvariance(t *testing.T) {
	rng := rand.New(rand.NewPCG(19, 23))
	m, n, k := 45, 53, 600
	a, b := xslices.Random(rng, m*k), xslices.Random(rng, k*n)
	var want []float64
	var wantKernel string
	for _, name := range AvailableKernels() {
		e, err := New("kernel=" + name)
		require.NoError(t, err)
		c := make([]float64, m*n)
		require.NoError(t, e.Multiply(a, b, c, m, n, k))
		if want == nil {
			want, wantKernel = c, name
			continue
		}
		require.Emptyf(t, cmp.Diff(want, c), "kernel %q differs from %q", name, wantKernel)
	}
}

func TestMultiplyParallelAuto(t *testing.T) {
	// Large enough for the default policy to pick 2 threads.
	rng := rand.New(rand.NewPCG(29, 31))
	m, n, k := 512, 300, 700
	a, b := xslices.Random(rng, m*k), xslices.Random(rng, k*n)
	want := make([]float64, m*n)
	require.NoError(t, Multiply(a, b, want, m, n, k))
	c := make([]float64, m*n)
	require.NoError(t, MultiplyParallel(a, b, c, m, n, k, 4))
	require.Empty(t, cmp.Diff(want, c))
}

func TestMultiplyAdd(t *testing.T) {
	forEachKernel(t, func(t *testing.T, e *Engine) {
		forceThreads(e)
		for _, threads := range []int{1, 2} {
			c := []float64{1, 1, 1, 1}
			require.NoError(t, e.MultiplyAdd([]float64{1, 2, 3, 4}, []float64{5, 6, 7, 8}, c, 2, 2, 2, threads))
			assert.Equal(t, []float64{20, 23, 44, 51}, c)
		}
	})

	rng := rand.New(rand.NewPCG(37, 41))
	m, n, k := 33, 47, 290
	a, b := xslices.Random(rng, m*k), xslices.Random(rng, k*n)
	c0 := xslices.Random(rng, m*n)
	want := make([]float64, m*n)
	reference.NaiveIJK(a, b, want, m, n, k)
	for ii := range want {
		want[ii] += c0[ii]
	}
	c := xslices.Copy(c0)
	require.NoError(t, MultiplyAdd(a, b, c, m, n, k, 2))
	require.NoError(t, xslices.InRelDelta(c, want, 1e-10, 1e-10))
}

func TestErrors(t *testing.T) {
	a, b := make([]float64, 6), make([]float64, 6)
	testCases := []struct {
		name       string
		a, b       []float64
		cLen       int
		m, n, k    int
		maxThreads int
		wantErr    error
	}{
		{"zero-m", nil, b, 0, 0, 2, 3, 1, ErrDimension},
		{"zero-n", a, nil, 0, 2, 0, 3, 1, ErrDimension},
		{"zero-k", nil, nil, 4, 2, 2, 0, 1, ErrDimension},
		{"negative", a, b, 4, -2, 2, 3, 1, ErrDimension},
		{"short-a", a[:5], b, 4, 2, 2, 3, 1, ErrDimension},
		{"long-b", a, append(b, 0), 4, 2, 2, 3, 1, ErrDimension},
		{"short-c", a, b, 3, 2, 2, 3, 1, ErrDimension},
		{"overflow", nil, make([]float64, 16), 0, 1 << 62, 4, 4, 1, ErrDimension},
		{"overflow-b", nil, nil, 0, 1, math.MaxInt/2 + 1, 2, 1, ErrDimension},
		{"zero-threads", a, b, 4, 2, 2, 3, 0, ErrInvalidThreads},
		{"negative-threads", a, b, 4, 2, 2, 3, -1, ErrInvalidThreads},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := xslices.SliceWithValue(tc.cLen, 7.0)
			err := MultiplyParallel(tc.a, tc.b, c, tc.m, tc.n, tc.k, tc.maxThreads)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, xslices.SliceWithValue(tc.cLen, 7.0), c, "C must not be modified on error")
		})
	}

	err := Multiply(make([]float64, 5), make([]float64, 6), make([]float64, 4), 2, 2, 3)
	require.ErrorIs(t, err, ErrDimension)
	assert.Contains(t, err.Error(), "A: expected 2x3=6 elements, got 5")

	// Products that wrap around must not pass the length checks.
	e, err := New("kernel=scalar-4x4")
	require.NoError(t, err)
	err = e.Multiply(nil, make([]float64, 16), nil, 1<<62, 4, 4)
	require.ErrorIs(t, err, ErrDimension)
	assert.Contains(t, err.Error(), "overflows int")
}

func TestScratchLimit(t *testing.T) {
	e, err := New("max_scratch=1KiB")
	require.NoError(t, err)
	m, n, k := 64, 64, 64
	c := xslices.SliceWithValue(m*n, 3.0)
	for _, threads := range []int{1, 4} {
		forceThreads(e)
		err = e.MultiplyParallel(make([]float64, m*k), make([]float64, k*n), c, m, n, k, threads)
		require.ErrorIs(t, err, ErrScratchAllocation)
		assert.Equal(t, xslices.SliceWithValue(m*n, 3.0), c, "C must not be modified on error")
	}

	// Small problems still fit.
	c = make([]float64, 1)
	require.NoError(t, e.Multiply([]float64{2}, []float64{3}, c, 1, 1, 1))
	assert.Equal(t, []float64{6}, c)
}

func TestCancel(t *testing.T) {
	e, err := New("")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, n, k := 10, 10, 10
	err = e.MultiplyContext(ctx, make([]float64, m*k), make([]float64, k*n), make([]float64, m*n), m, n, k, 1, false)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentCalls(t *testing.T) {
	e := Default()
	rng := rand.New(rand.NewPCG(43, 47))
	m, n, k := 70, 90, 110
	a, b := xslices.Random(rng, m*k), xslices.Random(rng, k*n)
	want := make([]float64, m*n)
	require.NoError(t, e.Multiply(a, b, want, m, n, k))

	const numCalls = 8
	results := make([][]float64, numCalls)
	errs := make(chan error, numCalls)
	for ii := range numCalls {
		go func() {
			results[ii] = make([]float64, m*n)
			errs <- e.MultiplyParallel(a, b, results[ii], m, n, k, 3)
		}()
	}
	for range numCalls {
		require.NoError(t, <-errs)
	}
	for ii, c := range results {
		require.Empty(t, cmp.Diff(want, c), fmt.Sprintf("call #%d", ii))
	}
}

func TestEngine(t *testing.T) {
	e, err := New("kernel=scalar-4x4, max_threads=3, kc=64")
	require.NoError(t, err)
	assert.Equal(t, "scalar-4x4(4x4)", e.Variant())
	assert.Equal(t, 3, e.MaxThreads())
	assert.Equal(t, Config{Kernel: "scalar-4x4", MaxThreads: 3, Kc: 64}, e.Config())

	_, err = New("kernel=no-such-kernel")
	require.ErrorIs(t, err, ErrUnknownKernel)

	_, err = New("mc=5") // Not a multiple of Mr.
	require.ErrorIs(t, err, ErrInvalidConfig)

	assert.NotEmpty(t, AvailableKernels())
	assert.Subset(t, Kernels(), AvailableKernels())
	assert.Contains(t, AvailableKernels(), "scalar-4x4")

	// Without a kernel option, the cached default variant is used, and overrides don't change it.
	e, err = New("")
	require.NoError(t, err)
	assert.Same(t, kernels.Default(), e.variant)
	e, err = New("kc=32")
	require.NoError(t, err)
	assert.Equal(t, kernels.Default().Name, e.variant.Name)
	assert.Equal(t, 32, e.variant.Params.Kc)
	assert.NotEqual(t, 32, kernels.Default().Params.Kc)
}
