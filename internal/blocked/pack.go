// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocked

// PackA packs the [rows, depth] block of A starting at (rowStart, kStart) into dst.
//
// It rearranges the block into horizontal strips of height mr, organized as [ceil(rows/mr), depth, mr]:
// for each k, the mr values of a strip used by one kernel step are contiguous.
// If the last strip has fewer than mr valid rows, it is zero-padded.
//
// lda is the row stride of A (its number of columns, K).
func PackA(dst, a []float64, lda, rowStart, rows, kStart, depth, mr int) {
	dstIdx := 0
	for stripRow := 0; stripRow < rows; stripRow += mr {
		validRows := min(mr, rows-stripRow)
		srcRowBase := (rowStart+stripRow)*lda + kStart
		for k := range depth {
			window := dst[dstIdx : dstIdx+mr]
			srcIdx := srcRowBase + k
			for r := range validRows {
				window[r] = a[srcIdx]
				srcIdx += lda
			}
			clear(window[validRows:])
			dstIdx += mr
		}
	}
}

// PackB packs the [depth, cols] block of B starting at (kStart, colStart) into dst.
//
// It rearranges the block into vertical strips of width nr, organized as [ceil(cols/nr), depth, nr]:
// for each k, the nr values of a strip used by one kernel step are contiguous.
// If the last strip has fewer than nr valid columns, it is zero-padded.
//
// ldb is the row stride of B (its number of columns, N).
func PackB(dst, b []float64, ldb, kStart, depth, colStart, cols, nr int) {
	dstIdx := 0
	for stripCol := 0; stripCol < cols; stripCol += nr {
		validCols := min(nr, cols-stripCol)
		for k := range depth {
			srcIdx := (kStart+k)*ldb + colStart + stripCol
			window := dst[dstIdx : dstIdx+nr]
			copy(window, b[srcIdx:srcIdx+validCols])
			clear(window[validCols:])
			dstIdx += nr
		}
	}
}
