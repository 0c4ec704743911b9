package serialize

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfusion/tsdf/voxelrt/rt/marchingcubes"
)

func TestWritePLY_HeaderCountsMatchMeshSize(t *testing.T) {
	tris := []marchingcubes.Triangle{
		{
			V0: mgl32.Vec3{0, 0, 0}, V1: mgl32.Vec3{1, 0, 0}, V2: mgl32.Vec3{0, 1, 0},
			N0: mgl32.Vec3{0, 0, 1}, N1: mgl32.Vec3{0, 0, 1}, N2: mgl32.Vec3{0, 0, 1},
		},
		{
			V0: mgl32.Vec3{1, 1, 0}, V1: mgl32.Vec3{2, 1, 0}, V2: mgl32.Vec3{1, 2, 0},
			N0: mgl32.Vec3{0, 0, 1}, N1: mgl32.Vec3{0, 0, 1}, N2: mgl32.Vec3{0, 0, 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePLY(&buf, tris))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "ply\n"))
	assert.Contains(t, out, "element vertex 6\n")
	assert.Contains(t, out, "element face 2\n")
	assert.Contains(t, out, "3 0 1 2\n")
	assert.Contains(t, out, "3 3 4 5\n")
}

func TestWritePLY_EmptyMeshHasZeroCounts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePLY(&buf, nil))
	assert.Contains(t, buf.String(), "element vertex 0\n")
	assert.Contains(t, buf.String(), "element face 0\n")
}
