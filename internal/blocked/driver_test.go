// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocked

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/dgemm/internal/cpu"
	"github.com/gomlx/dgemm/internal/kernels"
	"github.com/gomlx/dgemm/pkg/reference"
	"github.com/gomlx/dgemm/pkg/support/xslices"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testShapes = [][3]int{ // m, n, k
	{1, 1, 1}, {2, 2, 2}, {3, 5, 7}, {7, 3, 5}, {11, 13, 17},
	{17, 1, 9}, {1, 19, 4}, {4, 4, 1}, {33, 29, 31}, {25, 40, 70},
}

// testVariants returns each usable variant with its default params, and with tiny blocks so that
// every loop of the nest runs several iterations and has remainders.
func testVariants(t *testing.T) []*kernels.Variant {
	var variants []*kernels.Variant
	for _, v := range kernels.Available(cpu.Detect()) {
		variants = append(variants, v)
		small, err := v.WithParams(5, 2*v.Params.Mr, 2*v.Params.Nr)
		require.NoError(t, err)
		small.Name += "-small-blocks"
		variants = append(variants, small)
	}
	return variants
}

func runAll(t *testing.T, v *kernels.Variant, a, b, c []float64, m, n, k int, accumulate bool) {
	ws, err := NewWorkspace(v.Params, m, n, k, 0)
	require.NoError(t, err)
	require.NoError(t, Run(context.Background(), v, ws, a, b, c, m, n, k, 0, m, accumulate))
}

func TestRun(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for _, v := range testVariants(t) {
		t.Run(v.Name, func(t *testing.T) {
			for _, shape := range testShapes {
				m, n, k := shape[0], shape[1], shape[2]
				a, b := xslices.Random(rng, m*k), xslices.Random(rng, k*n)
				want := make([]float64, m*n)
				reference.NaiveIJK(a, b, want, m, n, k)

				// C starts with garbage: it must be overwritten.
				c := xslices.SliceWithValue(m*n, 1e6)
				runAll(t, v, a, b, c, m, n, k, false)
				require.NoError(t, xslices.InRelDelta(c, want, 1e-12, 1e-12), "C=AxB for m=%d, n=%d, k=%d", m, n, k)

				// Accumulate: C += AxB.
				c = xslices.Copy(want)
				runAll(t, v, a, b, c, m, n, k, true)
				for ii := range want {
					want[ii] *= 2
				}
				require.NoError(t, xslices.InRelDelta(c, want, 1e-12, 1e-12), "C+=AxB for m=%d, n=%d, k=%d", m, n, k)
			}
		})
	}
}

func TestRunRowRanges(t *testing.T) {
	// Splitting the rows must give bit-identical results, and leave other rows untouched.
	rng := rand.New(rand.NewPCG(11, 13))
	const m, n, k = 23, 19, 37
	a, b := xslices.Random(rng, m*k), xslices.Random(rng, k*n)
	for _, v := range testVariants(t) {
		t.Run(v.Name, func(t *testing.T) {
			full := make([]float64, m*n)
			runAll(t, v, a, b, full, m, n, k, false)

			const sentinel = -7.0
			split := xslices.SliceWithValue(m*n, sentinel)
			ws, err := NewWorkspace(v.Params, m, n, k, 0)
			require.NoError(t, err)
			require.NoError(t, Run(context.Background(), v, ws, a, b, split, m, n, k, 5, 14, false))
			for ii, value := range split {
				row := ii / n
				if row < 5 || row >= 14 {
					require.Equal(t, sentinel, value, "row %d outside range was written", row)
				}
			}
			for _, rows := range [][2]int{{0, 5}, {14, 23}, {7, 7}} {
				require.NoError(t, Run(context.Background(), v, ws, a, b, split, m, n, k, rows[0], rows[1], false))
			}
			if diff := cmp.Diff(full, split); diff != "" {
				t.Errorf("split rows differ from full run (-full +split):\n%s", diff)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	v, found := kernels.Lookup("scalar-4x4")
	require.True(t, found)
	const m, n, k = 8, 8, 8
	ws, err := NewWorkspace(v.Params, m, n, k, 0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := make([]float64, m*n)
	err = Run(ctx, v, ws, make([]float64, m*k), make([]float64, k*n), c, m, n, k, 0, m, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	require.Panics(t, func() {
		_ = Run(context.Background(), v, ws, make([]float64, m*k), make([]float64, k*n), c, m, n, k, 4, m+1, false)
	})
}

func TestWorkspace(t *testing.T) {
	params := kernels.Scalar8x8Params
	sizeA, sizeB, sizeTile := workspaceSizes(params, 3, 10, 1000)
	assert.Equal(t, 8*params.Kc, sizeA, "rows rounded up to Mr")
	assert.Equal(t, 16*params.Kc, sizeB, "cols rounded up to Nr")
	assert.Equal(t, 64, sizeTile)
	assert.Equal(t, int64(sizeA+sizeB+sizeTile)*8, ScratchBytes(params, 3, 10, 1000))

	_, err := NewWorkspace(params, 1000, 1000, 1000, 1024)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScratchAllocation))

	pool := &WorkspacePool{}
	for _, size := range []int{100, 10, 200} {
		ws, err := pool.Get(params, size, size, size)
		require.NoError(t, err, fmt.Sprintf("size=%d", size))
		wantA, wantB, _ := workspaceSizes(params, size, size, size)
		require.Len(t, ws.packedA, wantA)
		require.Len(t, ws.packedB, wantB)
		pool.Put(ws)
	}
	pool.MaxScratchBytes = 1024
	_, err = pool.Get(params, 5000, 5000, 5000)
	assert.True(t, errors.Is(err, ErrScratchAllocation))
}
