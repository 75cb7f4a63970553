// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gomlx/dgemm/pkg/gemm"
	"github.com/gomlx/dgemm/pkg/reference"
	"github.com/gomlx/dgemm/pkg/support/xslices"
	"github.com/pkg/errors"
)

const (
	naiveIJKName = "naive (i-j-k)"
	naiveIKJName = "naive (i-k-j)"
	gonumName    = "gonum blas64"
)

// gemmFn computes C = A·B for [n, n] matrices.
type gemmFn func(a, b, c []float64, n int) error

// method is one benchmarked implementation.
type method struct {
	Name string
	Fn   gemmFn

	// Naive methods are only timed up to -naive_max.
	Naive bool
}

func naiveMethod(name string, fn func(a, b, c []float64, m, n, k int)) *method {
	return &method{Name: name, Naive: true, Fn: func(a, b, c []float64, n int) error {
		fn(a, b, c, n, n, n)
		return nil
	}}
}

// newMethods returns the benchmarked methods: the naive baselines, each kernel single and multi-threaded,
// the automatic engine and optionally gonum.
func newMethods(kernelNames []string, config string, threads int, withGonum bool) ([]*method, error) {
	methods := []*method{
		naiveMethod(naiveIJKName, reference.NaiveIJK),
		naiveMethod(naiveIKJName, reference.NaiveIKJ),
	}
	seen := make(map[string]bool)
	for _, name := range kernelNames {
		e, err := gemm.New(joinConfig(config, "kernel="+name))
		if err != nil {
			return nil, err
		}
		if seen[e.Variant()] {
			// Variant not supported by the CPU, resolved to a fallback already benchmarked.
			continue
		}
		seen[e.Variant()] = true
		methods = append(methods,
			&method{Name: e.Variant(), Fn: func(a, b, c []float64, n int) error {
				return e.Multiply(a, b, c, n, n, n)
			}},
			&method{Name: fmt.Sprintf("%s MT", e.Variant()), Fn: func(a, b, c []float64, n int) error {
				return e.MultiplyParallel(a, b, c, n, n, n, threads)
			}})
	}
	auto, err := gemm.New(config)
	if err != nil {
		return nil, err
	}
	methods = append(methods, &method{Name: fmt.Sprintf("auto %s MT", auto.Variant()), Fn: func(a, b, c []float64, n int) error {
		return auto.MultiplyParallel(a, b, c, n, n, n, threads)
	}})
	if withGonum {
		methods = append(methods, &method{Name: gonumName, Fn: func(a, b, c []float64, n int) error {
			reference.Gonum(a, b, c, n, n, n)
			return nil
		}})
	}
	return methods, nil
}

func joinConfig(parts ...string) string {
	var nonEmpty []string
	for _, part := range parts {
		if part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, ",")
}

// result of one method at one size.
type result struct {
	Method  string
	Size    int
	Seconds float64 // Best of the timed runs.
	GFLOPS  float64
	Skipped bool
	Err     error
}

// results indexed by method name and size.
type results map[string]map[int]*result

func (rs results) add(r *result) {
	if rs[r.Method] == nil {
		rs[r.Method] = make(map[int]*result)
	}
	rs[r.Method][r.Size] = r
}

// Get returns the result of method at the given size, or nil.
func (rs results) Get(method string, size int) *result {
	return rs[method][size]
}

// Failed returns the results with errors.
func (rs results) Failed() []*result {
	var failed []*result
	for _, bySize := range rs {
		for _, r := range bySize {
			if r.Err != nil {
				failed = append(failed, r)
			}
		}
	}
	return failed
}

// Speedup of method at the given size relative to the baseline method, or NaN if either wasn't timed.
func (rs results) Speedup(method, baseline string, size int) float64 {
	r, base := rs.Get(method, size), rs.Get(baseline, size)
	if r == nil || base == nil || r.Skipped || base.Skipped || r.Err != nil || base.Err != nil || r.Seconds == 0 {
		return math.NaN()
	}
	return base.Seconds / r.Seconds
}

// AverageSpeedup over the sizes where both the method and the baseline were timed, NaN if none.
func (rs results) AverageSpeedup(method, baseline string, sizes []int) float64 {
	var sum float64
	var count int
	for _, size := range sizes {
		if s := rs.Speedup(method, baseline, size); !math.IsNaN(s) {
			sum += s
			count++
		}
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

// benchmark runs all methods over all sizes.
type benchmark struct {
	methods  []*method
	sizes    []int
	repeat   int
	naiveMax int
	progress *progress
}

// Inputs follow a fixed pattern of small integers, so every method computes the exact same
// products and sums: results can be compared exactly.
func benchInput(n int) []float64 {
	s := make([]float64, n*n)
	for ii := range s {
		s[ii] = float64(ii % 100)
	}
	return s
}

// Run times every method at every size and verifies each result.
func (b *benchmark) Run() results {
	rs := make(results)
	for _, size := range b.sizes {
		a, bMat := benchInput(size), benchInput(size)
		want := make([]float64, size*size)
		reference.Gonum(a, bMat, want, size, size, size)
		for _, m := range b.methods {
			if b.progress != nil {
				b.progress.Describe(size, m.Name)
			}
			rs.add(b.runOne(m, size, a, bMat, want))
			if b.progress != nil {
				b.progress.Add()
			}
		}
	}
	return rs
}

func (b *benchmark) runOne(m *method, size int, a, bMat, want []float64) *result {
	r := &result{Method: m.Name, Size: size}
	if m.Naive && size > b.naiveMax {
		r.Skipped = true
		return r
	}
	c := make([]float64, size*size)
	// Warm-up, also used to verify the result.
	if err := m.Fn(a, bMat, c, size); err != nil {
		r.Err = err
		return r
	}
	if err := xslices.InRelDelta(c, want, 1e-8, 1e-8); err != nil {
		r.Err = errors.WithMessage(err, "wrong result")
		return r
	}
	r.Seconds = math.Inf(1)
	for range b.repeat {
		start := time.Now()
		if err := m.Fn(a, bMat, c, size); err != nil {
			r.Err = err
			return r
		}
		r.Seconds = min(r.Seconds, time.Since(start).Seconds())
	}
	r.GFLOPS = gflops(size, r.Seconds)
	return r
}

// gflops of an [n, n] x [n, n] multiplication taking the given seconds.
func gflops(n int, seconds float64) float64 {
	if seconds <= 0 {
		return math.Inf(1)
	}
	return 2 * math.Pow(float64(n), 3) / seconds / 1e9
}
