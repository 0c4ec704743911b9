package fusion

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfusion/tsdf/voxelrt/rt/core"
	"github.com/kfusion/tsdf/voxelrt/rt/raycast"
	"github.com/kfusion/tsdf/voxelrt/rt/volume"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	cam := core.NewCamera(core.Intrinsics{Fx: 200, Fy: 200, Cx: 79.5, Cy: 59.5, Width: 160, Height: 120})
	cam.MoveTo(mgl32.Vec3{0, 0, 0})
	cam.LookAt(mgl32.Vec3{0, 0, 1})

	s, err := NewSession(volume.Config{
		Dims:   [3]int{48, 48, 48},
		Size:   mgl32.Vec3{2000, 2000, 2000},
		Origin: mgl32.Vec3{-1000, -1000, 0},
		Trunc:  100,
		WMax:   16,
	}, cam, nil)
	require.NoError(t, err)
	return s
}

func TestSession_IntegrateRaycastExtractSaveLoadPipeline(t *testing.T) {
	s := newTestSession(t)

	depthImg := volume.SyntheticPlaneDepth(s.Camera().Width, s.Camera().Height, 1000)
	require.NoError(t, s.IntegrateFrame(depthImg))
	assert.Equal(t, 1, s.FramesFused())

	vertices, normals, err := s.Raycast(context.Background(), s.Camera().Width, s.Camera().Height)
	require.NoError(t, err)

	idx := s.Camera().Height/2*s.Camera().Width + s.Camera().Width/2
	require.False(t, raycast.IsSentinel(vertices[idx]))
	assert.InDelta(t, 1000.0, float64(vertices[idx].Z()), 10.0)
	assert.NotZero(t, normals[idx].Len())

	tris, err := s.ExtractMesh()
	require.NoError(t, err)
	require.NotEmpty(t, tris)

	dir := t.TempDir()
	gridPath := filepath.Join(dir, "scene.tsdf")
	meshPath := filepath.Join(dir, "scene.ply")
	require.NoError(t, s.Save(gridPath))
	require.NoError(t, s.SaveMesh(meshPath))

	s2 := newTestSession(t)
	require.NoError(t, s2.Load(gridPath))

	tris2, err := s2.ExtractMesh()
	require.NoError(t, err)
	assert.Equal(t, len(tris), len(tris2))
}

func TestSession_BlankFirstFrameProducesNoTriangles(t *testing.T) {
	s := newTestSession(t)

	blank := volume.SyntheticPlaneDepth(s.Camera().Width, s.Camera().Height, 0)
	require.NoError(t, s.IntegrateFrame(blank))

	tris, err := s.ExtractMesh()
	require.NoError(t, err)
	assert.Empty(t, tris)
}

func TestSession_RejectsNilCamera(t *testing.T) {
	_, err := NewSession(volume.Config{
		Dims: [3]int{4, 4, 4}, Size: mgl32.Vec3{4, 4, 4}, Trunc: 1, WMax: 1,
	}, nil, nil)
	require.Error(t, err)
}
