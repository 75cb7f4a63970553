// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package gemm

import (
	"math"

	"github.com/gomlx/dgemm/internal/blocked"
	"github.com/gomlx/dgemm/internal/kernels"
	"github.com/pkg/errors"
)

var (
	// ErrDimension is returned when a dimension is not positive, or a slice length doesn't match
	// the dimensions given. C is not modified.
	ErrDimension = errors.New("invalid GEMM dimensions")

	// ErrInvalidThreads is returned when the thread cap is smaller than 1. C is not modified.
	ErrInvalidThreads = errors.New("invalid number of threads")

	// ErrScratchAllocation is returned when the packing scratch buffers can't be allocated, either
	// because of the configured max_scratch limit or because the allocation failed. C is not modified.
	ErrScratchAllocation = blocked.ErrScratchAllocation

	// ErrUnknownKernel is returned by New when the kernel option names no registered variant.
	ErrUnknownKernel = kernels.ErrUnknownVariant

	// ErrInvalidConfig is returned by New and ParseConfig for a malformed configuration string.
	ErrInvalidConfig = errors.New("invalid GEMM engine configuration")
)

// validate checks dimensions and lengths, before anything is computed or written.
func validate(a, b, c []float64, m, n, k, maxThreads int) error {
	if m < 1 || n < 1 || k < 1 {
		return errors.Wrapf(ErrDimension, "dimensions must be positive, got M=%d, N=%d, K=%d", m, n, k)
	}
	for _, operand := range []struct {
		name       string
		rows, cols int
	}{{"A", m, k}, {"B", k, n}, {"C", m, n}} {
		if operand.rows > math.MaxInt/operand.cols {
			return errors.Wrapf(ErrDimension, "%s: %dx%d elements overflows int", operand.name, operand.rows, operand.cols)
		}
	}
	if len(a) != m*k {
		return errors.Wrapf(ErrDimension, "A: expected %dx%d=%d elements, got %d", m, k, m*k, len(a))
	}
	if len(b) != k*n {
		return errors.Wrapf(ErrDimension, "B: expected %dx%d=%d elements, got %d", k, n, k*n, len(b))
	}
	if len(c) != m*n {
		return errors.Wrapf(ErrDimension, "C: expected %dx%d=%d elements, got %d", m, n, m*n, len(c))
	}
	if maxThreads < 1 {
		return errors.Wrapf(ErrInvalidThreads, "maxThreads must be at least 1, got %d", maxThreads)
	}
	return nil
}
