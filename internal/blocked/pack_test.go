// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocked

import (
	"testing"

	"github.com/gomlx/dgemm/pkg/support/xslices"
	"github.com/google/go-cmp/cmp"
)

func TestPackA(t *testing.T) {
	// A is [4, 3]: [[1 2 3] [4 5 6] [7 8 9] [10 11 12]].
	a := xslices.Iota(1.0, 12)
	dst := xslices.SliceWithValue(8, -1.0)
	PackA(dst, a, 3, 1, 3, 1, 2, 2)
	want := []float64{
		5, 8, 6, 9, // Strip of rows 1-2, k=1 and k=2.
		11, 0, 12, 0, // Strip of row 3, zero-padded.
	}
	if diff := cmp.Diff(want, dst); diff != "" {
		t.Errorf("PackA mismatch (-want +got):\n%s", diff)
	}
}

func TestPackB(t *testing.T) {
	// B is [3, 5]: [[1 .. 5] [6 .. 10] [11 .. 15]].
	b := xslices.Iota(1.0, 15)
	dst := xslices.SliceWithValue(8, -1.0)
	PackB(dst, b, 5, 1, 2, 1, 3, 2)
	want := []float64{
		7, 8, 12, 13, // Strip of cols 1-2, k=1 and k=2.
		9, 0, 14, 0, // Strip of col 3, zero-padded.
	}
	if diff := cmp.Diff(want, dst); diff != "" {
		t.Errorf("PackB mismatch (-want +got):\n%s", diff)
	}
}

func TestPackFullStrips(t *testing.T) {
	// A [4, 4] packed whole with mr=4 is its transpose; B [4, 4] packed with nr=4 is itself.
	m := xslices.Iota(0.0, 16)
	dst := make([]float64, 16)
	PackA(dst, m, 4, 0, 4, 0, 4, 4)
	want := []float64{0, 4, 8, 12, 1, 5, 9, 13, 2, 6, 10, 14, 3, 7, 11, 15}
	if diff := cmp.Diff(want, dst); diff != "" {
		t.Errorf("PackA mismatch (-want +got):\n%s", diff)
	}
	PackB(dst, m, 4, 0, 4, 0, 4, 4)
	if diff := cmp.Diff(m, dst); diff != "" {
		t.Errorf("PackB mismatch (-want +got):\n%s", diff)
	}
}
