package volume

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kfusion/tsdf/voxelrt/rt/depth"
)

// FillSphereSDF analytically initialises every voxel of g to the signed
// distance to a sphere (negative inside), normalised by g.Trunc and clamped
// to [-1,1], with full weight. Used by marching-cubes boundary-property
// tests (spec §8) where a ground-truth analytic field is needed instead of
// one built from fused depth frames.
//
// Descended from the teacher's volume.Sphere primitive filler
// (voxelrt/rt/volume/primitives.go), which painted a solid paletted sphere
// into a sparse brick map; here the same bounding-box scan instead samples
// a continuous signed distance into a dense grid.
func FillSphereSDF(g *Grid, center mgl32.Vec3, radius float32) {
	for k := 0; k < g.Dims[2]; k++ {
		for j := 0; j < g.Dims[1]; j++ {
			for i := 0; i < g.Dims[0]; i++ {
				p := g.VoxelCentre(i, j, k)
				d := p.Sub(center).Len() - radius
				n := clamp1(d / g.Trunc)
				g.Data[g.index(i, j, k)] = Voxel{Distance: n, Weight: g.WMax}
			}
		}
	}
}

// FillPlaneSDF analytically initialises g to the signed distance to the
// plane {p : dot(p-point, normal) == 0}, normal pointing towards the
// camera side (positive distance).
func FillPlaneSDF(g *Grid, point, normal mgl32.Vec3) {
	normal = normal.Normalize()
	for k := 0; k < g.Dims[2]; k++ {
		for j := 0; j < g.Dims[1]; j++ {
			for i := 0; i < g.Dims[0]; i++ {
				p := g.VoxelCentre(i, j, k)
				d := p.Sub(point).Dot(normal)
				n := clamp1(d / g.Trunc)
				g.Data[g.index(i, j, k)] = Voxel{Distance: n, Weight: g.WMax}
			}
		}
	}
}

func clamp1(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// SyntheticPlaneDepth synthesises a depth.Image of a fronto-parallel plane
// at distance d millimetres along camera +Z, as used by spec §8 scenario 3.
func SyntheticPlaneDepth(width, height int, d uint16) *depth.Image {
	img := depth.NewImage(width, height)
	for i := range img.Data {
		img.Data[i] = d
	}
	return img
}

// SyntheticSphereDepth synthesises a depth.Image of a sphere of the given
// radius centred at centerCam (camera-space) as seen by a camera at the
// origin looking down +Z, by intersecting each pixel's ray with the sphere
// in closed form (nearest root of the ray-sphere quadratic). Used by spec §8 scenario 4 (two-frame sphere fusion) to build
// depth frames without a real sensor.
func SyntheticSphereDepth(width, height int, fx, fy, cx, cy float32, centerCam mgl32.Vec3, radius float32) *depth.Image {
	img := depth.NewImage(width, height)
	for v := 0; v < height; v++ {
		for u := 0; u < width; u++ {
			x := (float32(u) + 0.5 - cx) / fx
			y := (float32(v) + 0.5 - cy) / fy
			dir := mgl32.Vec3{x, y, 1}.Normalize()

			// Ray-sphere intersection: |t*dir - centerCam| = radius.
			oc := centerCam.Mul(-1)
			b := dir.Dot(oc) * 2
			c := oc.Dot(oc) - radius*radius
			disc := b*b - 4*c
			if disc < 0 {
				continue
			}
			sq := float32(math.Sqrt(float64(disc)))
			t := (-b - sq) / 2
			if t <= 0 {
				t = (-b + sq) / 2
			}
			if t <= 0 {
				continue
			}
			hit := dir.Mul(t)
			img.Set(u, v, uint16(hit.Z()))
		}
	}
	return img
}

