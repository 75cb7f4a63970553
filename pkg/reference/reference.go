// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package reference implements straightforward matrix multiplications, used as correctness
// oracles and as the baseline ("1x") of the benchmarks.
//
// All functions compute C = A·B with A [m, k], B [k, n] and C [m, n], row-major and contiguous.
// They don't validate their inputs.
package reference

// NaiveIJK is the textbook triple loop: one dot product per element of C.
// The inner loop walks B by column, with stride n.
func NaiveIJK(a, b, c []float64, m, n, k int) {
	for i := range m {
		for j := range n {
			var sum float64
			for p := range k {
				sum += a[i*k+p] * b[p*n+j]
			}
			c[i*n+j] = sum
		}
	}
}

// NaiveIKJ reorders the loops so that the inner loop walks B and C by row, with unit stride.
func NaiveIKJ(a, b, c []float64, m, n, k int) {
	clear(c[:m*n])
	for i := range m {
		cRow := c[i*n : (i+1)*n]
		for p := range k {
			aValue := a[i*k+p]
			bRow := b[p*n : (p+1)*n]
			for j, bValue := range bRow {
				cRow[j] += aValue * bValue
			}
		}
	}
}

// IKJTransposed transposes B once, then computes every element of C as a dot product of two
// contiguous rows.
func IKJTransposed(a, b, c []float64, m, n, k int) {
	bt := make([]float64, k*n)
	Transpose(b, bt, k, n)
	for i := range m {
		aRow := a[i*k : (i+1)*k]
		for j := range n {
			btRow := bt[j*k : (j+1)*k]
			var sum float64
			for p, aValue := range aRow {
				sum += aValue * btRow[p]
			}
			c[i*n+j] = sum
		}
	}
}

// Transpose writes the transpose of src [rows, cols] into dst [cols, rows].
func Transpose(src, dst []float64, rows, cols int) {
	for i := range rows {
		for j := range cols {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
}

// Tiled4x4 computes C in 4x4 tiles held in local variables, reading A and B in place: register
// tiling without packing or cache blocking. Rows and columns left over by the tiles use NaiveIJK's loop.
func Tiled4x4(a, b, c []float64, m, n, k int) {
	mMain, nMain := m/4*4, n/4*4
	for i := 0; i < mMain; i += 4 {
		for j := 0; j < nMain; j += 4 {
			var c0, c1, c2, c3 [4]float64
			for p := range k {
				bRow := b[p*n+j : p*n+j+4]
				a0, a1, a2, a3 := a[i*k+p], a[(i+1)*k+p], a[(i+2)*k+p], a[(i+3)*k+p]
				for jj, bValue := range bRow {
					c0[jj] += a0 * bValue
					c1[jj] += a1 * bValue
					c2[jj] += a2 * bValue
					c3[jj] += a3 * bValue
				}
			}
			copy(c[i*n+j:], c0[:])
			copy(c[(i+1)*n+j:], c1[:])
			copy(c[(i+2)*n+j:], c2[:])
			copy(c[(i+3)*n+j:], c3[:])
		}
	}
	for i := range m {
		for j := range n {
			if i < mMain && j < nMain {
				continue
			}
			var sum float64
			for p := range k {
				sum += a[i*k+p] * b[p*n+j]
			}
			c[i*n+j] = sum
		}
	}
}
