// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package threaded splits a GEMM across worker goroutines by rows of the output.
package threaded

const (
	// SingleThreadFlops is the total work (2*M*N*K flops) below which a GEMM runs single-threaded:
	// the overhead of starting workers would dominate.
	SingleThreadFlops = 100_000_000

	// TwoThreadFlops is the total work below which a GEMM uses at most two threads.
	TwoThreadFlops = 300_000_000

	// MinRowsPerThread is the minimum number of rows of C handed to a thread.
	MinRowsPerThread = 64
)

// ChooseThreadCount returns how many threads to use for an [m, k] x [k, n] GEMM, at most maxThreads.
//
// It's a pure function of the total work against fixed thresholds, capped so that each
// thread gets at least MinRowsPerThread rows. The result is always in [1, max(maxThreads, 1)].
func ChooseThreadCount(m, n, k, maxThreads int) int {
	maxThreads = max(maxThreads, 1)
	flops := 2 * float64(m) * float64(n) * float64(k)
	var threads int
	switch {
	case flops < SingleThreadFlops:
		threads = 1
	case flops < TwoThreadFlops:
		threads = 2
	default:
		threads = maxThreads
	}
	threadsByRows := max(m/MinRowsPerThread, 1)
	return min(threads, threadsByRows, maxThreads)
}

// RowRange is a half-open range [Start, End) of rows of the output.
type RowRange struct {
	Start, End int
}

// Len returns the number of rows in the range.
func (r RowRange) Len() int { return r.End - r.Start }

// Partition splits [0, m) into parts contiguous, disjoint ranges, covering all rows.
//
// Sizes differ by at most one: the m%parts remainder rows go one each to the first ranges.
// parts is clamped to [1, m], so no range is empty (unless m is 0, in which case the one
// range returned is empty).
func Partition(m, parts int) []RowRange {
	parts = max(min(parts, m), 1)
	base, remainder := m/parts, m%parts
	ranges := make([]RowRange, parts)
	start := 0
	for ii := range ranges {
		size := base
		if ii < remainder {
			size++
		}
		ranges[ii] = RowRange{Start: start, End: start + size}
		start += size
	}
	return ranges
}
