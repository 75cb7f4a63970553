// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package threaded

import (
	"context"
	"fmt"

	"github.com/gomlx/dgemm/internal/workerspool"
	"github.com/gomlx/dgemm/pkg/support/xsync"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// State of a Dispatcher. It only moves forward: Idle → Partitioned → Executing → Joined.
type State int

const (
	Idle State = iota
	Partitioned
	Executing
	Joined
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Partitioned:
		return "Partitioned"
	case Executing:
		return "Executing"
	case Joined:
		return "Joined"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when a Dispatcher method is called out of order.
var ErrInvalidTransition = errors.New("invalid dispatcher state transition")

// WorkFn computes the rows of one range. Different calls get disjoint ranges and may run concurrently.
type WorkFn func(ctx context.Context, rows RowRange) error

// Dispatcher runs one parallel GEMM call: it partitions the rows, executes one task per range,
// and joins them. A Dispatcher is used once, by one goroutine.
type Dispatcher struct {
	// ThreadCount chooses the number of threads in Partition. If nil, ChooseThreadCount is used.
	ThreadCount func(m, n, k, maxThreads int) int

	pool   *workerspool.Pool
	state  State
	ranges []RowRange
	group  *xsync.JoinGroup
}

// New returns an Idle dispatcher whose tasks run on the given pool.
// If pool is nil, all tasks run on the calling goroutine.
func New(pool *workerspool.Pool) *Dispatcher {
	return &Dispatcher{pool: pool, state: Idle}
}

// State returns the current state.
func (d *Dispatcher) State() State { return d.state }

// Ranges returns the row ranges of the partition, nil before Partition.
func (d *Dispatcher) Ranges() []RowRange { return d.ranges }

func (d *Dispatcher) transition(from, to State) error {
	if d.state != from {
		return errors.Wrapf(ErrInvalidTransition, "cannot move to %s from %s (expected %s)", to, d.state, from)
	}
	d.state = to
	return nil
}

// Partition picks the number of threads with ThreadCount (ChooseThreadCount by default), and splits the m rows into that many
// ranges. Idle → Partitioned.
func (d *Dispatcher) Partition(m, n, k, maxThreads int) ([]RowRange, error) {
	if err := d.transition(Idle, Partitioned); err != nil {
		return nil, err
	}
	chooseFn := d.ThreadCount
	if chooseFn == nil {
		chooseFn = ChooseThreadCount
	}
	threads := chooseFn(m, n, k, maxThreads)
	d.ranges = Partition(m, threads)
	klog.V(2).Infof("GEMM [%d, %d]x[%d, %d]: %d thread(s), ranges %v", m, k, k, n, len(d.ranges), d.ranges)
	return d.ranges, nil
}

// Execute starts one task per range. Partitioned → Executing.
//
// Tasks for all ranges but the first are offered to the worker pool; the first range, and any range the
// pool had no room for, run on the calling goroutine, so Execute returns only after those finished.
// Call Join to wait for the rest.
func (d *Dispatcher) Execute(ctx context.Context, work WorkFn) error {
	if err := d.transition(Partitioned, Executing); err != nil {
		return err
	}
	d.group = xsync.NewJoinGroup()
	d.group.Add(len(d.ranges))
	var inline []RowRange
	for _, rows := range d.ranges[1:] {
		task := func() { d.group.Done(runTask(ctx, work, rows)) }
		if d.pool == nil || !d.pool.StartIfAvailable(task) {
			inline = append(inline, rows)
		}
	}
	d.group.Done(runTask(ctx, work, d.ranges[0]))
	for _, rows := range inline {
		d.group.Done(runTask(ctx, work, rows))
	}
	return nil
}

// runTask calls work for one range, converting a panic into the task's error.
func runTask(ctx context.Context, work WorkFn, rows RowRange) (err error) {
	exception := exceptions.Try(func() { err = work(ctx, rows) })
	if exception == nil {
		return err
	}
	if exceptionErr, ok := exception.(error); ok {
		return errors.WithMessagef(exceptionErr, "GEMM task for rows %v panicked", rows)
	}
	return errors.Errorf("GEMM task for rows %v panicked: %v", rows, exception)
}

// Join waits for all tasks, and returns the first error any of them reported or the first panic, as an error.
// Executing → Joined. After Join returns, every write of every task is visible to the caller.
func (d *Dispatcher) Join() error {
	if err := d.transition(Executing, Joined); err != nil {
		return err
	}
	return d.group.Wait()
}

// Run is a convenience that goes through all the states: Partition, Execute and Join.
func (d *Dispatcher) Run(ctx context.Context, m, n, k, maxThreads int, work WorkFn) error {
	if _, err := d.Partition(m, n, k, maxThreads); err != nil {
		return err
	}
	if err := d.Execute(ctx, work); err != nil {
		return err
	}
	return d.Join()
}
