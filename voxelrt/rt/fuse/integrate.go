// Package fuse implements the TSDF integrator (spec §4.3): fusing one depth
// frame + camera pose into a volume.Grid via a truncated, weighted running
// average. The kernel itself never fails on data-dependent input (a bad
// pixel, an out-of-frustum voxel); it only returns an error on the
// structural preconditions spec §4.3 calls fatal.
package fuse

import (
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kfusion/tsdf/logging"
	"github.com/kfusion/tsdf/voxelrt/rt/core"
	"github.com/kfusion/tsdf/voxelrt/rt/depth"
	"github.com/kfusion/tsdf/voxelrt/rt/volume"
)

// WeightFunc computes the observation weight w_new for a voxel given the
// unit ray direction from the camera to that voxel (in world space). The
// default, DefaultWeight, always returns 1 (spec §4.3's baseline); a caller
// that wants the angle- or inverse-square-weighted refinement spec §4.3
// mentions can supply its own.
type WeightFunc func(rayDir mgl32.Vec3, camDepth float32) float32

// DefaultWeight implements the spec §4.3 baseline: unit weight.
func DefaultWeight(mgl32.Vec3, float32) float32 { return 1 }

// Integrate fuses depth into grid from cam's current pose, single-threaded.
// It is equivalent to IntegrateParallel(grid, d, cam, logger, 1, nil).
func Integrate(grid *volume.Grid, d *depth.Image, cam *core.Camera, logger logging.Logger) error {
	return IntegrateParallel(grid, d, cam, logger, 1, nil)
}

// IntegrateParallel is the worker-pool counterpart of Integrate: the grid's
// z-slices are partitioned across workers goroutines, each of which only
// ever writes voxels it owns (spec §5: "within one integrate call each
// voxel is written by exactly one thread"), so no locking is required.
// workers<=1 runs sequentially on the caller's goroutine. weight may be nil
// to use DefaultWeight.
func IntegrateParallel(grid *volume.Grid, d *depth.Image, cam *core.Camera, logger logging.Logger, workers int, weight WeightFunc) error {
	logger = logging.OrNop(logger)

	if err := d.Validate(cam.Width, cam.Height); err != nil {
		return err
	}
	if weight == nil {
		weight = DefaultWeight
	}
	if workers < 1 {
		workers = 1
	}
	if workers > grid.Dims[2] {
		workers = grid.Dims[2]
	}

	if workers == 1 {
		integrateSlices(grid, d, cam, weight, 0, grid.Dims[2])
		return nil
	}

	logger.Debugf("fuse: integrating frame across %d workers", workers)

	var wg sync.WaitGroup
	slicesPerWorker := (grid.Dims[2] + workers - 1) / workers
	for w := 0; w < workers; w++ {
		k0 := w * slicesPerWorker
		k1 := k0 + slicesPerWorker
		if k1 > grid.Dims[2] {
			k1 = grid.Dims[2]
		}
		if k0 >= k1 {
			continue
		}
		wg.Add(1)
		go func(k0, k1 int) {
			defer wg.Done()
			integrateSlices(grid, d, cam, weight, k0, k1)
		}(k0, k1)
	}
	wg.Wait()
	return nil
}

// DefaultWorkerCount mirrors the teacher's preference for sizing worker
// pools off GOMAXPROCS rather than a hardcoded constant.
func DefaultWorkerCount() int {
	return runtime.GOMAXPROCS(0)
}

func integrateSlices(grid *volume.Grid, d *depth.Image, cam *core.Camera, weight WeightFunc, k0, k1 int) {
	trunc := grid.Trunc

	for k := k0; k < k1; k++ {
		for j := 0; j < grid.Dims[1]; j++ {
			for i := 0; i < grid.Dims[0]; i++ {
				p := grid.VoxelCentre(i, j, k)

				u, v, zCam, valid := cam.WorldToPixel(p)
				if !valid {
					continue
				}

				ui, vi := int(u), int(v)
				if ui < 0 || vi < 0 || ui >= d.Width || vi >= d.Height {
					continue
				}

				dMeas := d.At(ui, vi)
				if dMeas == 0 {
					continue
				}

				sdf := float32(dMeas) - zCam
				if sdf < -trunc {
					continue
				}

				tsdf := clampf(sdf, -trunc, trunc) / trunc

				rayDir := p.Sub(cam.Pose.T)
				if l := rayDir.Len(); l > 1e-8 {
					rayDir = rayDir.Mul(1 / l)
				}
				wNew := weight(rayDir, zCam)
				if wNew <= 0 {
					continue
				}

				old, _ := grid.At(i, j, k)
				newWeight := old.Weight + wNew
				newDistance := (old.Weight*old.Distance + wNew*tsdf) / newWeight

				_ = grid.SetAt(i, j, k, volume.Voxel{Distance: newDistance, Weight: newWeight})
			}
		}
	}
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
