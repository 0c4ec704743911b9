package marchingcubes

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfusion/tsdf/voxelrt/rt/volume"
)

func sphereGrid(t *testing.T, dims int, radius float32) *volume.Grid {
	t.Helper()
	size := radius * 4
	g, err := volume.New(volume.Config{
		Dims:   [3]int{dims, dims, dims},
		Size:   mgl32.Vec3{size, size, size},
		Origin: mgl32.Vec3{-size / 2, -size / 2, -size / 2},
		Trunc:  size / float32(dims),
		WMax:   1,
	})
	require.NoError(t, err)
	volume.FillSphereSDF(g, mgl32.Vec3{0, 0, 0}, radius)
	return g
}

func TestExtract_EmptyGridProducesNoTriangles(t *testing.T) {
	g, err := volume.New(volume.Config{
		Dims:   [3]int{8, 8, 8},
		Size:   mgl32.Vec3{80, 80, 80},
		Origin: mgl32.Vec3{-40, -40, -40},
		Trunc:  10,
		WMax:   10,
	})
	require.NoError(t, err)

	tris, err := Extract(g)
	require.NoError(t, err)
	assert.Empty(t, tris)
}

func TestExtract_SphereProducesNonEmptyWatertightishMesh(t *testing.T) {
	g := sphereGrid(t, 32, 20)

	tris, err := Extract(g)
	require.NoError(t, err)
	require.NotEmpty(t, tris)

	for _, tr := range tris {
		for _, v := range []mgl32.Vec3{tr.V0, tr.V1, tr.V2} {
			r := v.Len()
			assert.InDelta(t, 20.0, float64(r), 3.0, "vertex should sit close to the sphere's surface")
		}
	}
}

func TestExtract_DeterministicAcrossRuns(t *testing.T) {
	g := sphereGrid(t, 24, 15)

	a, err := Extract(g)
	require.NoError(t, err)
	b, err := Extract(g)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.InDelta(t, 0.0, float64(a[i].V0.Sub(b[i].V0).Len()), 1e-5)
		assert.InDelta(t, 0.0, float64(a[i].V1.Sub(b[i].V1).Len()), 1e-5)
		assert.InDelta(t, 0.0, float64(a[i].V2.Sub(b[i].V2).Len()), 1e-5)
	}
}

func TestExtractParallel_MatchesSequential(t *testing.T) {
	g := sphereGrid(t, 24, 15)

	seq, err := Extract(g)
	require.NoError(t, err)
	par, err := ExtractParallel(g, 8)
	require.NoError(t, err)

	assert.Equal(t, len(seq), len(par))
}

func TestCubeIndex_AllInsideOrAllOutsideIsZero(t *testing.T) {
	assert.Equal(t, 0, edgeTableLookupZero(0))
	assert.Equal(t, 0, edgeTableLookupZero(0xFF))
}

func edgeTableLookupZero(bits uint8) int {
	return int(edgeTable[cubeIndex(bits)])
}
