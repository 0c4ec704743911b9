package fuse

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfusion/tsdf/voxelrt/rt/core"
	"github.com/kfusion/tsdf/voxelrt/rt/depth"
	"github.com/kfusion/tsdf/voxelrt/rt/volume"
)

func planeScenarioGrid(t *testing.T) (*volume.Grid, *core.Camera) {
	t.Helper()
	g, err := volume.New(volume.Config{
		Dims:   [3]int{64, 64, 64},
		Size:   mgl32.Vec3{3000, 3000, 3000},
		Origin: mgl32.Vec3{-1500, -1500, 0},
		Trunc:  60,
		WMax:   32,
	})
	require.NoError(t, err)

	cam := core.NewCamera(core.Intrinsics{Fx: 525, Fy: 525, Cx: 319.5, Cy: 239.5, Width: 640, Height: 480})
	cam.MoveTo(mgl32.Vec3{0, 0, 0})
	cam.LookAt(mgl32.Vec3{0, 0, 1})
	return g, cam
}

func TestIntegrate_Plane(t *testing.T) {
	g, cam := planeScenarioGrid(t)
	d := volume.SyntheticPlaneDepth(cam.Width, cam.Height, 1500)

	require.NoError(t, Integrate(g, d, cam, nil))

	kPlane := int((1500 - g.Origin.Z()) / g.VoxelSize.Z())
	v, err := g.At(32, 32, kPlane)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, float64(v.Weight), 1e-3)
	assert.InDelta(t, 0.0, float64(v.Distance), 0.05)
}

func TestIntegrate_BlankFrameLeavesGridUnchanged(t *testing.T) {
	g, cam := planeScenarioGrid(t)
	d := depth.NewImage(cam.Width, cam.Height) // all zeros

	before := make([]volume.Voxel, len(g.Data))
	copy(before, g.Data)

	require.NoError(t, Integrate(g, d, cam, nil))

	for i, v := range g.Data {
		if v != before[i] {
			t.Fatalf("voxel %d changed from %v to %v after blank-frame integrate", i, before[i], v)
		}
	}
}

func TestIntegrateParallel_MatchesSequential(t *testing.T) {
	gSeq, cam := planeScenarioGrid(t)
	gPar, _ := volume.New(volume.Config{Dims: gSeq.Dims, Size: gSeq.Size, Origin: gSeq.Origin, Trunc: gSeq.Trunc, WMax: gSeq.WMax})

	d := volume.SyntheticPlaneDepth(cam.Width, cam.Height, 1500)

	require.NoError(t, Integrate(gSeq, d, cam, nil))
	require.NoError(t, IntegrateParallel(gPar, d, cam, nil, 8, nil))

	for i := range gSeq.Data {
		a, b := gSeq.Data[i], gPar.Data[i]
		if math.Abs(float64(a.Distance-b.Distance)) > 1e-5 || a.Weight != b.Weight {
			t.Fatalf("voxel %d diverged between sequential (%v) and parallel (%v)", i, a, b)
		}
	}
}

func TestIntegrate_RejectsMismatchedDepthDimensions(t *testing.T) {
	g, cam := planeScenarioGrid(t)
	d := depth.NewImage(10, 10)
	err := Integrate(g, d, cam, nil)
	require.Error(t, err)
}
