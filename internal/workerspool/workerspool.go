// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool bounds the number of GEMM worker goroutines running at the same time,
// across all concurrent calls sharing the pool.
package workerspool

import (
	"sync"
)

// Pool hands out worker goroutines up to a parallelism limit.
//
// It doesn't keep goroutines alive: a task starts in a new goroutine if a slot is free, and the slot
// is returned when the task finishes.
type Pool struct {
	// maxParallelism is the limit of tasks running at once.
	// If 0, parallelism is disabled. If negative, it is unlimited.
	maxParallelism int
	mu             sync.Mutex
	numRunning     int
}

// NewWithParallelism returns a new Pool with the given maxParallelism.
// If 0, parallelism is disabled. If negative, it is unlimited.
func NewWithParallelism(maxParallelism int) *Pool {
	return &Pool{maxParallelism: maxParallelism}
}

// MaxParallelism returns the limit of tasks running at once.
// If 0 parallelism is disabled. If -1 parallelism is unlimited.
func (p *Pool) MaxParallelism() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxParallelism
}

// lockedIsFull returns whether all available slots are in use.
//
// It must be called with Pool.mu acquired.
func (p *Pool) lockedIsFull() bool {
	if p.maxParallelism == 0 {
		return true
	} else if p.maxParallelism < 0 {
		return false
	}
	return p.numRunning >= p.maxParallelism
}

// StartIfAvailable runs the task in a separate goroutine, if a slot is free.
// It returns true if the task was started, false otherwise.
//
// It's up to the caller to synchronize the end of the task.
func (p *Pool) StartIfAvailable(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lockedIsFull() {
		return false
	}
	p.lockedStart(task)
	return true
}

// lockedStart runs the task in a goroutine and keeps tabs on numRunning.
//
// It must be called with Pool.mu acquired.
func (p *Pool) lockedStart(task func()) {
	p.numRunning++
	go func() {
		defer func() {
			p.mu.Lock()
			p.numRunning--
			p.mu.Unlock()
		}()
		task()
	}()
}
