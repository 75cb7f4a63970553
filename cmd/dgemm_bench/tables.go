// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/gomlx/dgemm/internal/cpu"
	"github.com/gomlx/dgemm/pkg/gemm"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
	footnoteStyle = lipgloss.NewStyle().Faint(true).PaddingLeft(2)

	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	redRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)
)

// tableWithReds is a table where some rows can be highlighted in red.
type tableWithReds struct {
	Table *lgtable.Table
	Count int
	Reds  map[int]bool
}

// Row appends a row, highlighted if isRed.
func (t *tableWithReds) Row(isRed bool, row ...string) {
	if isRed {
		t.Reds[t.Count] = true
	}
	t.Table.Row(row...)
	t.Count++
}

// Render the table.
func (t *tableWithReds) Render() string { return t.Table.Render() }

// newTable creates a table with the given column alignments; the last alignment is used
// for any extra columns.
func newTable(alignments ...lipgloss.Position) *tableWithReds {
	t := &tableWithReds{
		Reds: make(map[int]bool),
	}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				s = headerRowStyle
				return
			}
			if t.Reds[row] {
				s = redRowStyle
			} else if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			s = s.Align(alignment)
			return
		})
	return t
}

// newSystemTable describes the CPU and the kernels available.
func newSystemTable(features cpu.Features) *tableWithReds {
	t := newTable(lipgloss.Right, lipgloss.Left)
	t.Row(false, "architecture", fmt.Sprintf("%s (%d CPUs)", features.Architecture, runtime.NumCPU()))
	t.Row(false, "cpu level", features.Best().String())
	t.Row(false, "fma / avx2 / avx512", fmt.Sprintf("%v / %v / %v", features.HasFMA, features.HasAVX2, features.HasAVX512))
	t.Row(false, "simd compiled", fmt.Sprintf("%v", features.SIMDCompiled))
	t.Row(features.ForceScalar, "forced scalar", fmt.Sprintf("%v", features.ForceScalar))
	t.Row(false, "default kernel", gemm.Default().Variant())
	t.Row(false, "available kernels", strings.Join(gemm.AvailableKernels(), ", "))
	return t
}

// newSummaryTable has one row per method: the GFLOPS at each size and the average speedup over
// the naive baseline. Methods with a failed result are highlighted.
func newSummaryTable(sizes []int, methods []*method, rs results) *tableWithReds {
	t := newTable(lipgloss.Left, lipgloss.Right)
	headers := []string{"Method"}
	for _, size := range sizes {
		headers = append(headers, fmt.Sprintf("%d×%d", size, size))
	}
	headers = append(headers, "Speedup")
	t.Table.Headers(headers...)

	for _, m := range methods {
		row := []string{m.Name}
		var failed bool
		for _, size := range sizes {
			r := rs.Get(m.Name, size)
			switch {
			case r == nil || r.Skipped:
				row = append(row, "-")
			case r.Err != nil:
				failed = true
				row = append(row, "failed")
			default:
				row = append(row, fmt.Sprintf("%.2f GF", r.GFLOPS))
			}
		}
		speedup := rs.AverageSpeedup(m.Name, naiveIJKName, sizes)
		if math.IsNaN(speedup) {
			row = append(row, "-")
		} else {
			row = append(row, fmt.Sprintf("%.1f×", speedup))
		}
		t.Row(failed, row...)
	}
	return t
}
