// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package blocked implements the cache-blocked GEMM driver (the GotoBLAS loop nest) and the packing
// of the A and B panels it feeds to the micro-kernels.
package blocked

import (
	"context"

	"github.com/gomlx/dgemm/internal/kernels"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Run computes the rows [rowStart, rowEnd) of C = A·B, or C += A·B if accumulate is set, using the
// kernel variant v and the scratch in ws.
//
// A is [m, k], B is [k, n] and C is [m, n], all row-major and contiguous. Only the rows
// [rowStart, rowEnd) of C are written, and only the same rows of A are read: workers running
// over disjoint row ranges don't need any synchronization.
//
// The workspace must have been created for at least rowEnd-rowStart rows, n and k.
//
// The context is checked once per M-block: if it is cancelled Run returns its error and the contents
// of the rows being computed are undefined.
func Run(ctx context.Context, v *kernels.Variant, ws *Workspace,
	a, b, c []float64, m, n, k int, rowStart, rowEnd int, accumulate bool) error {
	if rowStart < 0 || rowEnd > m || rowStart > rowEnd {
		exceptions.Panicf("blocked.Run: invalid row range [%d, %d) for %d rows", rowStart, rowEnd, m)
	}
	params := v.Params
	kernel := v.Kernel
	if klog.V(2).Enabled() {
		klog.Infof("blocked GEMM %s: rows [%d, %d) of [%d, %d]x[%d, %d], Kc=%d Mc=%d Nc=%d",
			v, rowStart, rowEnd, m, k, k, n, params.Kc, params.Mc, params.Nc)
	}

	// Loop 1: K-blocks, the depth of the packed panels.
	for kBlockIdx := 0; kBlockIdx < k; kBlockIdx += params.Kc {
		depth := min(params.Kc, k-kBlockIdx)

		// The first K-block initializes C (unless accumulating), the following ones add to it.
		accumulateBlock := accumulate || kBlockIdx > 0

		// Loop 2: N panels. B is packed once per panel and reused by every M-block.
		for nPanelIdx := 0; nPanelIdx < n; nPanelIdx += params.Nc {
			panelWidth := min(params.Nc, n-nPanelIdx)
			PackB(ws.packedB, b, n, kBlockIdx, depth, nPanelIdx, panelWidth, params.Nr)

			// Loop 3: M-blocks. A is packed once per block and reused by the whole N sweep.
			for mBlockIdx := rowStart; mBlockIdx < rowEnd; mBlockIdx += params.Mc {
				if err := ctx.Err(); err != nil {
					return errors.Wrapf(err, "GEMM interrupted at row %d, K-block %d", mBlockIdx, kBlockIdx)
				}
				blockHeight := min(params.Mc, rowEnd-mBlockIdx)
				PackA(ws.packedA, a, k, mBlockIdx, blockHeight, kBlockIdx, depth, params.Mr)

				// Loop 4: N-tiles.
				for nTileIdx := 0; nTileIdx < panelWidth; nTileIdx += params.Nr {
					tileWidth := min(params.Nr, panelWidth-nTileIdx)
					packedB := ws.packedB[(nTileIdx/params.Nr)*depth*params.Nr:]

					// Loop 5: M-tiles.
					for mTileIdx := 0; mTileIdx < blockHeight; mTileIdx += params.Mr {
						tileHeight := min(params.Mr, blockHeight-mTileIdx)
						packedA := ws.packedA[(mTileIdx/params.Mr)*depth*params.Mr:]
						outputIdx := (mBlockIdx+mTileIdx)*n + nPanelIdx + nTileIdx

						if tileHeight == params.Mr && tileWidth == params.Nr {
							kernel.Tile(depth, packedA, packedB, c[outputIdx:], n, accumulateBlock)
							continue
						}
						ws.edgeTileRun(kernel, params, depth, packedA, packedB, c[outputIdx:], n,
							tileHeight, tileWidth, accumulateBlock)
					}
				}
			}
		}
	}
	return nil
}

// edgeTileRun computes a tile that is cut by the edge of C: it runs the kernel on the full
// scratch tile and copies back only the active rows and columns.
// The padded rows and columns of the packed panels are zeros, so they don't affect the active values.
func (ws *Workspace) edgeTileRun(kernel kernels.Kernel, params kernels.CacheParams, depth int,
	packedA, packedB, c []float64, ldc int, activeRows, activeCols int, accumulate bool) {
	tile := ws.edgeTile[:params.TileSize()]
	if accumulate {
		clear(tile)
		for row := range activeRows {
			copy(tile[row*params.Nr:row*params.Nr+activeCols], c[row*ldc:row*ldc+activeCols])
		}
	}
	kernel.Tile(depth, packedA, packedB, tile, params.Nr, accumulate)
	for row := range activeRows {
		copy(c[row*ldc:row*ldc+activeCols], tile[row*params.Nr:row*params.Nr+activeCols])
	}
}
