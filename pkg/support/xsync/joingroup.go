// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xsync implements synchronization primitives for fan-out/fan-in work.
package xsync

import (
	"sync"

	"github.com/pkg/errors"
)

// JoinGroup is a WaitGroup-like barrier where each task reports an error when it is done.
//
// Wait returns the first non-nil error reported, after all tasks finished.
// It uses sync.Cond to coordinate changes.
type JoinGroup struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending int
	err     error
}

// NewJoinGroup creates a new JoinGroup.
func NewJoinGroup() *JoinGroup {
	g := &JoinGroup{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Add adds delta pending tasks. It panics if the number of pending tasks becomes negative.
func (g *JoinGroup) Add(delta int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lockedAdd(delta)
}

func (g *JoinGroup) lockedAdd(delta int) {
	g.pending += delta
	if g.pending < 0 {
		panic(errors.Errorf("JoinGroup: negative counter"))
	}
	if g.pending == 0 {
		g.cond.Broadcast()
	}
}

// Done marks one task as finished, with its error (nil for success).
func (g *JoinGroup) Done(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil && g.err == nil {
		g.err = err
	}
	g.lockedAdd(-1)
}

// Wait blocks until there are no pending tasks, and returns the first error reported.
func (g *JoinGroup) Wait() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	// Loop because sync.Cond.Wait() can have spurious wakeups.
	for g.pending > 0 {
		g.cond.Wait()
	}
	return g.err
}
