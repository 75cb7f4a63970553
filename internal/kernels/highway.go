// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"github.com/ajroetker/go-highway/hwy"
	"github.com/gomlx/dgemm/internal/cpu"
	"k8s.io/klog/v2"
)

// HighwayParams is the geometry of the portable highway kernel: 4 rows by 2 vectors.
// Nr depends on the vector width go-highway picked for this CPU, up to 2*maxHighwayLanes.
var HighwayParams CacheParams

// maxHighwayLanes keeps the tile within MaxTileSize on wide vector hardware. Shorter vectors
// are fine: hwy operations work on the shortest of their operands.
const maxHighwayLanes = 8

func init() {
	lanes := min(hwy.MaxLanes[float64](), maxHighwayLanes)
	nr := 2 * lanes
	HighwayParams = CacheParams{Mr: 4, Nr: nr, Kc: 256, Mc: 128, Nc: RoundUp(2048, nr)}
	Register(Variant{Name: "highway-4xN", Params: HighwayParams, Requires: cpu.LevelScalar,
		Priority: PriorityForceOnly, Kernel: highwayTile(lanes)})
	klog.V(2).Infof("highway GEMM kernel: target %q, %d float64 lanes, tile 4x%d", hwy.CurrentName(), lanes, nr)
}

// highwayTile returns a [4, 2*lanes] kernel written with go-highway portable vectors.
//
// It is only selected when asked for by name: without native support the portable vectors
// are slices, and each operation allocates.
func highwayTile(lanes int) KernelFunc {
	const mr = 4
	nr := 2 * lanes
	return func(kc int, packedA, packedB, c []float64, ldc int, accumulate bool) {
		var accum [mr * 2]hwy.Vec[float64]
		for row := range mr {
			rowStart := row * ldc
			for v := range 2 {
				if accumulate {
					accum[row*2+v] = hwy.Load(c[rowStart+v*lanes : rowStart+(v+1)*lanes])
				} else {
					accum[row*2+v] = hwy.Zero[float64]()
				}
			}
		}

		for k := range kc {
			bWindow := packedB[k*nr : (k+1)*nr]
			b0 := hwy.Load(bWindow[:lanes])
			b1 := hwy.Load(bWindow[lanes:])
			for row := range mr {
				aVec := hwy.Set(packedA[k*mr+row])
				accum[row*2] = hwy.FMA(aVec, b0, accum[row*2])
				accum[row*2+1] = hwy.FMA(aVec, b1, accum[row*2+1])
			}
		}

		for row := range mr {
			rowStart := row * ldc
			for v := range 2 {
				hwy.Store(accum[row*2+v], c[rowStart+v*lanes:rowStart+(v+1)*lanes])
			}
		}
	}
}
