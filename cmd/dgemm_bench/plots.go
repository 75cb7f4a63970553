// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// savePlot saves a PNG (or any format gonum/plot infers from the extension) with one line per
// method, GFLOPS by matrix size.
func savePlot(filePath string, sizes []int, methods []*method, rs results) error {
	p := plot.New()
	p.Title.Text = "GEMM performance (float64)"
	p.X.Label.Text = "matrix size n (n×n)"
	p.Y.Label.Text = "GFLOPS"
	p.Y.Min = 0
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	var lines []any
	for _, m := range methods {
		var pts plotter.XYs
		for _, size := range sizes {
			r := rs.Get(m.Name, size)
			if r == nil || r.Skipped || r.Err != nil {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(size), Y: r.GFLOPS})
		}
		if len(pts) == 0 {
			continue
		}
		lines = append(lines, m.Name, pts)
	}
	if len(lines) == 0 {
		return errors.New("no results to plot")
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return errors.Wrap(err, "failed to create plot lines")
	}
	if err := p.Save(12*vg.Inch, 6*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", filePath)
	}
	return nil
}
