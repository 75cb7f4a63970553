// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// dgemm_bench times the GEMM kernels against the naive triple loop (and optionally gonum) over a
// range of square matrix sizes, and prints GFLOPS and speedups.
//
// Example:
//
//	dgemm_bench -sizes=256,512,1024 -threads=8 -plot=gflops.png
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/gomlx/dgemm/internal/cpu"
	"github.com/gomlx/dgemm/pkg/gemm"
	"github.com/gomlx/dgemm/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagSizes = xslices.Flag("sizes", []int{64, 128, 256, 512, 1024},
		"Comma-separated list of the sizes n of the n x n matrices to benchmark.", strconv.Atoi)
	flagThreads = flag.Int("threads", runtime.NumCPU(), "Maximum number of threads for the multi-threaded runs.")
	flagRepeat  = flag.Int("repeat", 3, "Number of timed runs per method and size, the best is reported.")
	flagNaiveMax = flag.Int("naive_max", 1024,
		"Largest size timed with the naive baselines. Larger sizes are still verified (against gonum), "+
			"but they are left out of the average speedup.")
	flagKernels = xslices.Flag("kernels", nil,
		"Comma-separated list of kernel variants to benchmark. Default is all variants this CPU can run.",
		func(s string) (string, error) { return s, nil })
	flagGonum    = flag.Bool("gonum", true, "Include gonum's blas64.Gemm in the benchmark.")
	flagPlot     = flag.String("plot", "", "If set, saves a PNG plot of GFLOPS per size to the given path.")
	flagConfig   = flag.String("config", "", "Engine configuration, e.g. \"max_scratch=256MiB,kc=128\".")
	flagProgress = flag.Bool("progress", true, "Display a progress bar while benchmarking.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if len(*flagSizes) == 0 {
		klog.Errorf("No sizes given with -sizes. See 'dgemm_bench -help'.")
		os.Exit(1)
	}
	if *flagThreads < 1 || *flagRepeat < 1 {
		klog.Errorf("-threads and -repeat must be at least 1, got %d and %d.", *flagThreads, *flagRepeat)
		os.Exit(1)
	}

	features := cpu.Detect()
	fmt.Println(titleStyle.Render("GEMM benchmark"))
	fmt.Println(newSystemTable(features).Render())

	kernelNames := *flagKernels
	if len(kernelNames) == 0 {
		kernelNames = gemm.AvailableKernels()
	}
	methods, err := newMethods(kernelNames, *flagConfig, *flagThreads, *flagGonum)
	if err != nil {
		klog.Errorf("Failed to configure benchmark: %+v", err)
		os.Exit(1)
	}

	b := &benchmark{
		methods:  methods,
		sizes:    *flagSizes,
		repeat:   *flagRepeat,
		naiveMax: *flagNaiveMax,
	}
	if *flagProgress {
		b.progress = newProgress(len(b.sizes) * len(b.methods))
	}
	results := b.Run()
	if b.progress != nil {
		b.progress.Finish()
	}

	fmt.Println(titleStyle.Render("Summary"))
	fmt.Println(newSummaryTable(b.sizes, b.methods, results).Render())
	fmt.Println(footnoteStyle.Render(
		"GF = GFLOPS (billion floating point operations per second). Speedup is the average " +
			"over all sizes, relative to "+naiveIJKName+". Higher is better."))

	if failed := results.Failed(); len(failed) > 0 {
		for _, r := range failed {
			klog.Errorf("%s at %dx%d: %v", r.Method, r.Size, r.Size, r.Err)
		}
		os.Exit(1)
	}
	if *flagPlot != "" {
		must.M(savePlot(*flagPlot, b.sizes, b.methods, results))
		fmt.Printf("Plot saved to %q\n", *flagPlot)
	}
}
