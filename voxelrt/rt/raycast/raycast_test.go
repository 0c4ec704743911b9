package raycast

import (
	"context"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfusion/tsdf/voxelrt/rt/core"
	"github.com/kfusion/tsdf/voxelrt/rt/volume"
)

func planeGridAndCamera(t *testing.T) (*volume.Grid, *core.Camera) {
	t.Helper()
	g, err := volume.New(volume.Config{
		Dims:   [3]int{64, 64, 64},
		Size:   mgl32.Vec3{3000, 3000, 3000},
		Origin: mgl32.Vec3{-1500, -1500, 0},
		Trunc:  60,
		WMax:   32,
	})
	require.NoError(t, err)
	volume.FillPlaneSDF(g, mgl32.Vec3{0, 0, 1500}, mgl32.Vec3{0, 0, -1})

	cam := core.NewCamera(core.Intrinsics{Fx: 525, Fy: 525, Cx: 319.5, Cy: 239.5, Width: 640, Height: 480})
	cam.MoveTo(mgl32.Vec3{0, 0, 0})
	cam.LookAt(mgl32.Vec3{0, 0, 1})
	return g, cam
}

func TestCPU_Raycast_HitsPlaneNearImageCentre(t *testing.T) {
	g, cam := planeGridAndCamera(t)
	rc := NewCPU(4)

	vertices, normals, err := rc.Raycast(context.Background(), g, cam, cam.Width, cam.Height)
	require.NoError(t, err)

	idx := cam.Height/2*cam.Width + cam.Width/2
	v := vertices[idx]
	require.False(t, IsSentinel(v), "expected a hit at the image centre")
	assert.InDelta(t, 1500.0, float64(v.Z()), 5.0)

	n := normals[idx]
	assert.Less(t, float64(n.Z()), -0.9, "normal should point towards the camera side of the plane (-Z)")
}

func TestCPU_Raycast_MissesWhenGridEmpty(t *testing.T) {
	g, err := volume.New(volume.Config{
		Dims:   [3]int{16, 16, 16},
		Size:   mgl32.Vec3{160, 160, 160},
		Origin: mgl32.Vec3{-80, -80, -80},
		Trunc:  10,
		WMax:   10,
	})
	require.NoError(t, err)

	cam := core.NewCamera(core.Intrinsics{Fx: 100, Fy: 100, Cx: 7.5, Cy: 7.5, Width: 16, Height: 16})
	cam.MoveTo(mgl32.Vec3{0, 0, -200})
	cam.LookAt(mgl32.Vec3{0, 0, 0})

	rc := NewCPU(1)
	vertices, _, err := rc.Raycast(context.Background(), g, cam, cam.Width, cam.Height)
	require.NoError(t, err)

	for i, v := range vertices {
		if !IsSentinel(v) {
			t.Fatalf("pixel %d: expected a miss in an unobserved grid, got %v", i, v)
		}
	}
}

func TestCPU_Raycast_SequentialMatchesParallel(t *testing.T) {
	g, cam := planeGridAndCamera(t)

	seq, _, err := NewCPU(1).Raycast(context.Background(), g, cam, cam.Width, cam.Height)
	require.NoError(t, err)
	par, _, err := NewCPU(8).Raycast(context.Background(), g, cam, cam.Width, cam.Height)
	require.NoError(t, err)

	for i := range seq {
		a, b := seq[i], par[i]
		if IsSentinel(a) != IsSentinel(b) {
			t.Fatalf("pixel %d: hit mismatch between worker counts", i)
		}
		if IsSentinel(a) {
			continue
		}
		if a.Sub(b).Len() > 1e-3 {
			t.Fatalf("pixel %d: vertex diverged: %v vs %v", i, a, b)
		}
	}
}

func TestCPU_Raycast_RejectsZeroDimensions(t *testing.T) {
	g, cam := planeGridAndCamera(t)
	_, _, err := NewCPU(1).Raycast(context.Background(), g, cam, 0, 10)
	require.Error(t, err)
}

func TestCPU_Raycast_RespectsCancellation(t *testing.T) {
	g, cam := planeGridAndCamera(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewCPU(2).Raycast(ctx, g, cam, cam.Width, cam.Height)
	if err == nil {
		t.Fatalf("expected a cancellation error")
	}
	if !math.IsNaN(float64(Sentinel.X())) {
		t.Fatalf("sentinel sanity check failed")
	}
}
