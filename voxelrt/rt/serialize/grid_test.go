package serialize

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfusion/tsdf/voxelrt/rt/volume"
)

func sampleGrid(t *testing.T) *volume.Grid {
	t.Helper()
	g, err := volume.New(volume.Config{
		Dims:   [3]int{4, 5, 6},
		Size:   mgl32.Vec3{40, 50, 60},
		Origin: mgl32.Vec3{-20, -25, -30},
		Trunc:  5,
		WMax:   8,
	})
	require.NoError(t, err)
	volume.FillPlaneSDF(g, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1})
	return g
}

func TestWriteReadGrid_RoundTrip(t *testing.T) {
	g := sampleGrid(t)

	var buf bytes.Buffer
	require.NoError(t, WriteGrid(&buf, g))

	got, err := ReadGrid(&buf)
	require.NoError(t, err)

	assert.Equal(t, g.Dims, got.Dims)
	assert.Equal(t, g.Size, got.Size)
	assert.Equal(t, g.Origin, got.Origin)
	assert.Equal(t, g.Trunc, got.Trunc)
	assert.Equal(t, g.WMax, got.WMax)
	require.Equal(t, len(g.Data), len(got.Data))
	for i := range g.Data {
		assert.Equal(t, g.Data[i], got.Data[i])
	}
}

func TestSaveLoadGrid_RoundTripViaFile(t *testing.T) {
	g := sampleGrid(t)
	path := filepath.Join(t.TempDir(), "grid.tsdf")

	require.NoError(t, SaveGrid(path, g))
	got, err := LoadGrid(path)
	require.NoError(t, err)

	assert.Equal(t, g.Dims, got.Dims)
	for i := range g.Data {
		assert.Equal(t, g.Data[i], got.Data[i])
	}
}

func TestReadGrid_RejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("NOPE!garbage")
	_, err := ReadGrid(buf)
	require.Error(t, err)
}

func TestReadGrid_RejectsTruncatedPayload(t *testing.T) {
	g := sampleGrid(t)
	var buf bytes.Buffer
	require.NoError(t, WriteGrid(&buf, g))

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-4])
	_, err := ReadGrid(truncated)
	require.Error(t, err)
}

func TestWriteGrid_RejectsNilGrid(t *testing.T) {
	var buf bytes.Buffer
	err := WriteGrid(&buf, nil)
	require.Error(t, err)
}
