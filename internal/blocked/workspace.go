// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package blocked

import (
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/dgemm/internal/kernels"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ErrScratchAllocation is returned when the packing scratch buffers can't be allocated.
var ErrScratchAllocation = errors.New("failed to allocate GEMM scratch buffers")

// Workspace holds the private scratch buffers of one worker: the packed A panel, the packed
// B panel and one tile used for the edges of the matrix.
type Workspace struct {
	packedA, packedB, edgeTile []float64
}

// workspaceSizes returns the number of elements of each buffer needed to multiply a [rows, k]
// block of A by a [k, n] B.
func workspaceSizes(params kernels.CacheParams, rows, n, k int) (sizeA, sizeB, sizeTile int) {
	depth := min(params.Kc, k)
	sizeA = min(params.Mc, kernels.RoundUp(rows, params.Mr)) * depth
	sizeB = min(params.Nc, kernels.RoundUp(n, params.Nr)) * depth
	sizeTile = params.TileSize()
	return
}

// ScratchBytes returns the bytes of scratch needed by a worker multiplying a [rows, k] block of A
// by a [k, n] B.
func ScratchBytes(params kernels.CacheParams, rows, n, k int) int64 {
	sizeA, sizeB, sizeTile := workspaceSizes(params, rows, n, k)
	return int64(sizeA+sizeB+sizeTile) * 8
}

// NewWorkspace allocates the scratch for a worker multiplying a [rows, k] block of A by a [k, n] B.
//
// If maxScratchBytes > 0 and the scratch would be larger, or if the allocation fails,
// it returns an error wrapping ErrScratchAllocation.
func NewWorkspace(params kernels.CacheParams, rows, n, k int, maxScratchBytes int64) (*Workspace, error) {
	sizeA, sizeB, sizeTile := workspaceSizes(params, rows, n, k)
	numBytes := ScratchBytes(params, rows, n, k)
	if maxScratchBytes > 0 && numBytes > maxScratchBytes {
		return nil, errors.Wrapf(ErrScratchAllocation, "needs %s, limit is %s",
			humanize.IBytes(uint64(numBytes)), humanize.IBytes(uint64(maxScratchBytes)))
	}
	ws := &Workspace{}
	err := exceptions.TryCatch[error](func() {
		ws.packedA = make([]float64, sizeA)
		ws.packedB = make([]float64, sizeB)
		ws.edgeTile = make([]float64, sizeTile)
	})
	if err != nil {
		return nil, errors.Wrapf(ErrScratchAllocation, "allocating %s: %v", humanize.IBytes(uint64(numBytes)), err)
	}
	return ws, nil
}

// fits returns whether the workspace has enough capacity, and reslices it if so.
func (ws *Workspace) fits(sizeA, sizeB, sizeTile int) bool {
	if cap(ws.packedA) < sizeA || cap(ws.packedB) < sizeB || cap(ws.edgeTile) < sizeTile {
		return false
	}
	ws.packedA = ws.packedA[:sizeA]
	ws.packedB = ws.packedB[:sizeB]
	ws.edgeTile = ws.edgeTile[:sizeTile]
	return true
}

// WorkspacePool reuses workspaces across calls. It is safe for concurrent use.
type WorkspacePool struct {
	pool sync.Pool

	// MaxScratchBytes limits the size of one workspace, 0 means no limit.
	MaxScratchBytes int64
}

// Get returns a workspace large enough to multiply a [rows, k] block of A by a [k, n] B,
// reusing a pooled one if possible.
func (p *WorkspacePool) Get(params kernels.CacheParams, rows, n, k int) (*Workspace, error) {
	if pooled, ok := p.pool.Get().(*Workspace); ok {
		if pooled.fits(workspaceSizes(params, rows, n, k)) {
			return pooled, nil
		}
	}
	return NewWorkspace(params, rows, n, k, p.MaxScratchBytes)
}

// Put returns the workspace to the pool.
func (p *WorkspacePool) Put(ws *Workspace) {
	if ws != nil {
		p.pool.Put(ws)
	}
}
