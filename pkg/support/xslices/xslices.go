// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provides slice helpers for building and comparing the flat, row-major
// matrices used by tests and benchmarks.
package xslices

import (
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Iota returns a slice of incremental values, starting with start and of length n.
// Eg: Iota(3.0, 2) -> []float64{3.0, 4.0}
func Iota[T constraints.Integer | constraints.Float](start T, n int) []T {
	slice := make([]T, n)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return slice
}

// SliceWithValue creates a slice of given size filled with given value.
func SliceWithValue[T any](size int, value T) []T {
	s := make([]T, size)
	for ii := range s {
		s[ii] = value
	}
	return s
}

// Copy creates a new copy of slice. It returns nil for an empty slice.
func Copy[T any](slice []T) []T {
	if len(slice) == 0 {
		return nil
	}
	slice2 := make([]T, len(slice))
	copy(slice2, slice)
	return slice2
}

// Random returns n values uniformly distributed in [-1, 1).
func Random(rng *rand.Rand, n int) []float64 {
	s := make([]float64, n)
	for ii := range s {
		s[ii] = 2*rng.Float64() - 1
	}
	return s
}

// Identity returns the row-major n x n identity matrix.
func Identity(n int) []float64 {
	s := make([]float64, n*n)
	for ii := range n {
		s[ii*n+ii] = 1
	}
	return s
}

// MaxAbsDiff returns the largest absolute element-wise difference. Slices must have the same length.
func MaxAbsDiff(s0, s1 []float64) float64 {
	var maxDiff float64
	for ii, v := range s0 {
		maxDiff = max(maxDiff, math.Abs(v-s1[ii]))
	}
	return maxDiff
}

// InRelDelta checks that every got[i] is within absDelta + relDelta*|want[i]| of want[i].
//
// It returns an error describing the first mismatch, or nil.
func InRelDelta(got, want []float64, relDelta, absDelta float64) error {
	if len(got) != len(want) {
		return errors.Errorf("length mismatch: got %d elements, want %d", len(got), len(want))
	}
	for ii, w := range want {
		g := got[ii]
		if math.IsNaN(g) != math.IsNaN(w) {
			return errors.Errorf("element #%d: got %g, want %g", ii, g, w)
		}
		if diff := math.Abs(g - w); diff > absDelta+relDelta*math.Abs(w) {
			return errors.Errorf("element #%d: got %g, want %g (diff %g, max allowed %g)",
				ii, g, w, diff, absDelta+relDelta*math.Abs(w))
		}
	}
	return nil
}

// Flag creates a flag for []T with the given name, description and default value.
// It takes as input a parser for an individual T value; the flag value is a comma-separated list.
func Flag[T any](name string, defaultValue []T, usage string,
	parserFn func(valueStr string) (T, error)) *[]T {
	f := &sliceFlag[T]{
		parsed:   defaultValue,
		parserFn: parserFn,
	}
	flag.Var(f, name, usage)
	return &f.parsed
}

// sliceFlag implements flag.Value for a slice of T.
type sliceFlag[T any] struct {
	parsed   []T
	parserFn func(valueStr string) (T, error)
}

func (f *sliceFlag[T]) String() string {
	parts := make([]string, len(f.parsed))
	for ii, elem := range f.parsed {
		parts[ii] = fmt.Sprint(elem)
	}
	return strings.Join(parts, ",")
}

func (f *sliceFlag[T]) Set(listStr string) error {
	if listStr == "" {
		f.parsed = nil
		return nil
	}
	parts := strings.Split(listStr, ",")
	parsed := make([]T, len(parts))
	for ii, part := range parts {
		var err error
		parsed[ii], err = f.parserFn(strings.TrimSpace(part))
		if err != nil {
			return errors.WithMessagef(err, "parsing element #%d (%q) of %q", ii, part, listStr)
		}
	}
	f.parsed = parsed
	return nil
}
