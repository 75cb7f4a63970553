// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gemm multiplies dense row-major float64 matrices, C = A·B, with cache-blocked
// micro-kernels selected for the CPU it runs on.
//
// A is [M, K], B is [K, N] and C is [M, N], each a contiguous slice in row-major order.
// Multiply runs on the calling goroutine; MultiplyParallel splits the rows of C among worker
// goroutines when the matrices are large enough to pay for it.
//
// Results are the same, bit for bit, for any number of threads and for any of the kernel
// variants: every variant accumulates each output with one fused multiply-add per step of K,
// in the same order.
//
// Example:
//
//	a := []float64{1, 2, 3, 4}
//	b := []float64{5, 6, 7, 8}
//	c := make([]float64, 4)
//	err := gemm.Multiply(a, b, c, 2, 2, 2) // c = [19 22 43 50]
package gemm

import (
	"context"
	"os"
	"runtime"
	"sync"

	"github.com/gomlx/dgemm/internal/blocked"
	"github.com/gomlx/dgemm/internal/cpu"
	"github.com/gomlx/dgemm/internal/kernels"
	"github.com/gomlx/dgemm/internal/threaded"
	"github.com/gomlx/dgemm/internal/workerspool"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Engine holds a resolved kernel variant, its scratch and its worker goroutines.
// It is safe for concurrent use: concurrent calls share the worker pool.
type Engine struct {
	config     Config
	variant    *kernels.Variant
	workers    *workerspool.Pool
	workspaces *blocked.WorkspacePool

	// threadCount is the thread policy, threaded.ChooseThreadCount except in tests.
	threadCount func(m, n, k, maxThreads int) int
}

// New creates an Engine with the given configuration string, see ParseConfig for its format.
func New(config string) (*Engine, error) {
	cfg, err := ParseConfig(config)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates an Engine from a parsed configuration.
func NewWithConfig(cfg Config) (*Engine, error) {
	features := cpu.Detect()
	variant := kernels.Default()
	if cfg.Kernel != "" {
		var err error
		variant, err = kernels.Resolve(cfg.Kernel, features)
		if err != nil {
			return nil, errors.WithMessagef(err, "configuring GEMM engine %q", cfg)
		}
	}
	if cfg.Kc > 0 || cfg.Mc > 0 || cfg.Nc > 0 {
		var err error
		variant, err = variant.WithParams(cfg.Kc, cfg.Mc, cfg.Nc)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "cache params of %q: %v", cfg, err)
		}
	}
	maxThreads := cfg.MaxThreads
	if maxThreads <= 0 {
		maxThreads = runtime.NumCPU()
	}
	e := &Engine{
		config:      cfg,
		variant:     variant,
		workers:     workerspool.NewWithParallelism(maxThreads),
		workspaces:  &blocked.WorkspacePool{MaxScratchBytes: cfg.MaxScratchBytes},
		threadCount: threaded.ChooseThreadCount,
	}
	klog.V(1).Infof("GEMM engine %q: kernel %s %+v, cpu %s, max threads %d",
		cfg, variant, variant.Params, features.Best(), maxThreads)
	return e, nil
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
	defaultErr    error
)

// getDefault creates the default engine on the first call, from the DGEMM_CONFIG environment
// variable if set, or from DefaultConfig otherwise.
func getDefault() (*Engine, error) {
	defaultOnce.Do(func() {
		config, found := os.LookupEnv(ConfigEnvVar)
		if !found {
			config = DefaultConfig
		}
		defaultEngine, defaultErr = New(config)
		if defaultErr != nil {
			defaultErr = errors.WithMessagef(defaultErr, "default GEMM engine (%s=%q)", ConfigEnvVar, config)
		}
	})
	return defaultEngine, defaultErr
}

// Default returns the engine used by the package level functions.
//
// It is configured from the environment variable DGEMM_CONFIG if set, or DefaultConfig otherwise.
// It panics if that configuration is invalid.
func Default() *Engine {
	e, err := getDefault()
	if err != nil {
		exceptions.Panicf("%+v", err)
	}
	return e
}

// Multiply computes C = A·B on the calling goroutine, with the default engine.
func Multiply(a, b, c []float64, m, n, k int) error {
	e, err := getDefault()
	if err != nil {
		return err
	}
	return e.Multiply(a, b, c, m, n, k)
}

// MultiplyParallel computes C = A·B using up to maxThreads threads, with the default engine.
func MultiplyParallel(a, b, c []float64, m, n, k, maxThreads int) error {
	e, err := getDefault()
	if err != nil {
		return err
	}
	return e.MultiplyParallel(a, b, c, m, n, k, maxThreads)
}

// MultiplyAdd computes C += A·B using up to maxThreads threads, with the default engine.
func MultiplyAdd(a, b, c []float64, m, n, k, maxThreads int) error {
	e, err := getDefault()
	if err != nil {
		return err
	}
	return e.MultiplyAdd(a, b, c, m, n, k, maxThreads)
}

// Variant returns the name of the kernel variant used, with its tile shape, e.g. "avx2-4x4(4x4)".
func (e *Engine) Variant() string { return e.variant.String() }

// Config returns the configuration the engine was created with.
func (e *Engine) Config() Config { return e.config }

// MaxThreads returns the engine's cap on the number of threads of a call.
func (e *Engine) MaxThreads() int { return e.workers.MaxParallelism() }

// Multiply computes C = A·B on the calling goroutine.
//
// On error, C is not modified.
func (e *Engine) Multiply(a, b, c []float64, m, n, k int) error {
	return e.MultiplyContext(context.Background(), a, b, c, m, n, k, 1, false)
}

// MultiplyParallel computes C = A·B, splitting the rows of C among up to maxThreads threads.
// The number actually used depends on the size of the problem, see threaded.ChooseThreadCount.
//
// On error, C is not modified.
func (e *Engine) MultiplyParallel(a, b, c []float64, m, n, k, maxThreads int) error {
	return e.MultiplyContext(context.Background(), a, b, c, m, n, k, maxThreads, false)
}

// MultiplyAdd computes C += A·B, splitting the rows of C among up to maxThreads threads.
//
// On error, C is not modified.
func (e *Engine) MultiplyAdd(a, b, c []float64, m, n, k, maxThreads int) error {
	return e.MultiplyContext(context.Background(), a, b, c, m, n, k, maxThreads, true)
}

// MultiplyContext computes C = A·B, or C += A·B if accumulate is set, with up to maxThreads threads.
//
// Dimension, thread and scratch errors are returned before anything is written to C.
// If ctx is cancelled while computing, the context error is returned and the contents of C are undefined.
func (e *Engine) MultiplyContext(ctx context.Context, a, b, c []float64, m, n, k, maxThreads int, accumulate bool) error {
	if err := validate(a, b, c, m, n, k, maxThreads); err != nil {
		return err
	}
	maxThreads = min(maxThreads, e.workers.MaxParallelism())
	if e.threadCount(m, n, k, maxThreads) == 1 {
		return e.runSingle(ctx, a, b, c, m, n, k, accumulate)
	}
	return e.runParallel(ctx, a, b, c, m, n, k, maxThreads, accumulate)
}

func (e *Engine) runSingle(ctx context.Context, a, b, c []float64, m, n, k int, accumulate bool) error {
	ws, err := e.workspaces.Get(e.variant.Params, m, n, k)
	if err != nil {
		return err
	}
	defer e.workspaces.Put(ws)
	return blocked.Run(ctx, e.variant, ws, a, b, c, m, n, k, 0, m, accumulate)
}

func (e *Engine) runParallel(ctx context.Context, a, b, c []float64, m, n, k, maxThreads int, accumulate bool) error {
	dispatcher := threaded.New(e.workers)
	dispatcher.ThreadCount = e.threadCount
	ranges, err := dispatcher.Partition(m, n, k, maxThreads)
	if err != nil {
		return err
	}

	// Scratch for every worker is acquired before any of them starts, so a failure leaves C untouched.
	workspaces := make(map[int]*blocked.Workspace, len(ranges))
	defer func() {
		for _, ws := range workspaces {
			e.workspaces.Put(ws)
		}
	}()
	for _, rows := range ranges {
		ws, err := e.workspaces.Get(e.variant.Params, rows.Len(), n, k)
		if err != nil {
			return err
		}
		workspaces[rows.Start] = ws
	}

	// Each worker only sees its own rows of A and C.
	err = dispatcher.Execute(ctx, func(ctx context.Context, rows threaded.RowRange) error {
		workerA := a[rows.Start*k : rows.End*k]
		workerC := c[rows.Start*n : rows.End*n]
		numRows := rows.Len()
		return blocked.Run(ctx, e.variant, workspaces[rows.Start], workerA, b, workerC, numRows, n, k, 0, numRows, accumulate)
	})
	if err != nil {
		return err
	}
	return dispatcher.Join()
}

// Kernels returns the names of all registered kernel variants, in order of preference.
func Kernels() []string { return kernels.Names() }

// AvailableKernels returns the names of the kernel variants the CPU can run, in order of preference.
func AvailableKernels() []string {
	variants := kernels.Available(cpu.Detect())
	names := make([]string, len(variants))
	for ii, v := range variants {
		names[ii] = v.Name
	}
	return names
}
