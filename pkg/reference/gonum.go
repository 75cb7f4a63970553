// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package reference

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// Gonum computes C = A·B with gonum's pure Go BLAS (blas64.Gemm): an external implementation
// to compare against.
func Gonum(a, b, c []float64, m, n, k int) {
	aGeneral := blas64.General{Rows: m, Cols: k, Data: a, Stride: k}
	bGeneral := blas64.General{Rows: k, Cols: n, Data: b, Stride: n}
	cGeneral := blas64.General{Rows: m, Cols: n, Data: c, Stride: n}
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, aGeneral, bGeneral, 0, cGeneral)
}
