package gpu

import (
	"encoding/binary"
	"math"

	"github.com/kfusion/tsdf/voxelrt/rt/core"
	"github.com/kfusion/tsdf/voxelrt/rt/volume"
)

// packCamera lays out a CameraParams uniform buffer matching raycast.wgsl's
// struct layout exactly: a mat3x3<f32> occupies three 16-byte-aligned
// columns (48 bytes), followed by a 16-byte-aligned vec3<f32> origin (12
// bytes + 4 pad), then the four f32 intrinsics, then the two u32 image
// dimensions padded out to a 16-byte multiple. Total size: 96 bytes.
func packCamera(cam *core.Camera, width, height int) []byte {
	buf := make([]byte, 96)
	r := cam.Pose.R // column-major: r[0:3]=col0, r[3:6]=col1, r[6:9]=col2
	putF32(buf, 0, r[0])
	putF32(buf, 4, r[1])
	putF32(buf, 8, r[2])
	putF32(buf, 16, r[3])
	putF32(buf, 20, r[4])
	putF32(buf, 24, r[5])
	putF32(buf, 32, r[6])
	putF32(buf, 36, r[7])
	putF32(buf, 40, r[8])

	origin := cam.Pose.T
	putF32(buf, 48, origin.X())
	putF32(buf, 52, origin.Y())
	putF32(buf, 56, origin.Z())

	putF32(buf, 64, cam.Fx)
	putF32(buf, 68, cam.Fy)
	putF32(buf, 72, cam.Cx)
	putF32(buf, 76, cam.Cy)

	putU32(buf, 80, uint32(width))
	putU32(buf, 84, uint32(height))
	return buf
}

// packGrid lays out a GridParams uniform buffer matching raycast.wgsl:
// vec3<u32> dims (padded to 16), vec3<f32> origin (padded to 16),
// vec3<f32> voxel_size followed by the trunc/step scalars (16 bytes), then
// trailing padding up to the struct's 16-byte alignment. Total size: 80
// bytes. The step used for marching is half the smallest voxel dimension,
// mirroring raycast.CPU's default StepFraction.
func packGrid(g *volume.Grid) []byte {
	buf := make([]byte, 80)
	putU32(buf, 0, uint32(g.Dims[0]))
	putU32(buf, 4, uint32(g.Dims[1]))
	putU32(buf, 8, uint32(g.Dims[2]))

	putF32(buf, 16, g.Origin.X())
	putF32(buf, 20, g.Origin.Y())
	putF32(buf, 24, g.Origin.Z())

	putF32(buf, 32, g.VoxelSize.X())
	putF32(buf, 36, g.VoxelSize.Y())
	putF32(buf, 40, g.VoxelSize.Z())
	putF32(buf, 44, g.Trunc)

	step := 0.5 * minOf3(g.VoxelSize.X(), g.VoxelSize.Y(), g.VoxelSize.Z())
	putF32(buf, 48, step)
	return buf
}

// packVoxels serialises a grid's voxel data in the same (distance, weight)
// float32 pair layout the WGSL Voxel struct expects, index-for-index with
// voxel_index's i + nx*(j + ny*k) addressing.
func packVoxels(g *volume.Grid) []byte {
	buf := make([]byte, len(g.Data)*8)
	for i, v := range g.Data {
		putF32(buf, i*8, v.Distance)
		putF32(buf, i*8+4, v.Weight)
	}
	return buf
}

func putF32(buf []byte, offset int, v float32) {
	binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
}

func putU32(buf []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(buf[offset:], v)
}

func minOf3(a, b, c float32) float32 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
