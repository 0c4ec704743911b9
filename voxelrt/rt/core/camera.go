// Package core holds the pinhole camera model shared by the integrator,
// raycaster and marching-cubes extractor: intrinsics, rigid pose, and the
// pixel<->world transforms built from them.
//
// Convention (binding, spec §6): camera frame is +X right, +Y down, +Z
// forward (into the scene); world units are millimetres; world "up" for
// LookAt is +Y.
package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Intrinsics are the pinhole parameters: focal lengths, principal point and
// image size. They are set once per session and never mutated afterwards.
type Intrinsics struct {
	Fx, Fy float32
	Cx, Cy float32
	Width  int
	Height int
}

// Pose is a rigid transform: rotation (camera axes expressed in world
// coordinates) plus translation (camera origin in world coordinates). R is
// kept orthonormal with det(R)=1; Inverse is cached and always consistent
// with R/T.
type Pose struct {
	R mgl32.Mat3
	T mgl32.Vec3

	invR mgl32.Mat3
	invT mgl32.Vec3
}

// IdentityPose returns the pose of a camera sitting at the world origin
// with camera axes aligned to world axes.
func IdentityPose() Pose {
	p := Pose{R: mgl32.Ident3(), T: mgl32.Vec3{}}
	p.recomputeInverse()
	return p
}

func (p *Pose) recomputeInverse() {
	p.invR = p.R.Transpose()
	p.invT = p.invR.Mul3x1(p.T.Mul(-1))
}

// ToWorld transforms a camera-space point into world space.
func (p *Pose) ToWorld(pCam mgl32.Vec3) mgl32.Vec3 {
	return p.R.Mul3x1(pCam).Add(p.T)
}

// ToCamera transforms a world-space point into camera space.
func (p *Pose) ToCamera(pWorld mgl32.Vec3) mgl32.Vec3 {
	return p.invR.Mul3x1(pWorld).Add(p.invT)
}

// orthonormalize re-establishes R's orthonormality via Gram-Schmidt: the
// first column is kept (normalised), the second is made orthogonal to it,
// and the third is the cross product of the first two so det(R)=1.
func orthonormalize(r mgl32.Mat3) mgl32.Mat3 {
	c0 := (mgl32.Vec3{r[0], r[1], r[2]}).Normalize()
	c1raw := mgl32.Vec3{r[3], r[4], r[5]}
	c1 := c1raw.Sub(c0.Mul(c0.Dot(c1raw))).Normalize()
	c2 := c0.Cross(c1)
	return mat3FromColumns(c0, c1, c2)
}

func mat3FromColumns(c0, c1, c2 mgl32.Vec3) mgl32.Mat3 {
	return mgl32.Mat3{
		c0.X(), c0.Y(), c0.Z(),
		c1.X(), c1.Y(), c1.Z(),
		c2.X(), c2.Y(), c2.Z(),
	}
}

// Camera couples immutable Intrinsics with a mutable Pose.
type Camera struct {
	Intrinsics
	Pose Pose
}

// NewCamera builds a camera at the world origin looking down +Z.
func NewCamera(intr Intrinsics) *Camera {
	return &Camera{Intrinsics: intr, Pose: IdentityPose()}
}

// SetPose installs a new pose, re-orthonormalising R defensively (e.g.
// against drift accumulated by an external pose-estimation loop).
func (c *Camera) SetPose(r mgl32.Mat3, t mgl32.Vec3) {
	c.Pose.R = orthonormalize(r)
	c.Pose.T = t
	c.Pose.recomputeInverse()
}

// MoveTo translates the camera to p without changing its orientation.
func (c *Camera) MoveTo(p mgl32.Vec3) {
	c.Pose.T = p
	c.Pose.recomputeInverse()
}

// LookAt composes a pose whose camera +Z axis points from the camera's
// current position towards target, with world +Y as the up-vector
// reference. R is re-orthonormalised via Gram-Schmidt before being stored.
func (c *Camera) LookAt(target mgl32.Vec3) {
	eye := c.Pose.T
	forward := target.Sub(eye)
	if forward.Len() < 1e-8 {
		return
	}
	forward = forward.Normalize()

	worldUp := mgl32.Vec3{0, 1, 0}
	if math.Abs(float64(forward.Dot(worldUp))) > 0.999 {
		worldUp = mgl32.Vec3{1, 0, 0}
	}

	right := forward.Cross(worldUp).Normalize()
	down := forward.Cross(right)

	c.Pose.R = orthonormalize(mat3FromColumns(right, down, forward))
	c.Pose.recomputeInverse()
}

// PixelToRay back-projects pixel (u,v) -- using the pixel-centre convention
// (u+0.5, v+0.5) -- into a world-space ray: origin is the camera centre,
// dir is a unit vector.
func (c *Camera) PixelToRay(u, v int) (origin, dir mgl32.Vec3) {
	x := (float32(u) + 0.5 - c.Cx) / c.Fx
	y := (float32(v) + 0.5 - c.Cy) / c.Fy
	camDir := mgl32.Vec3{x, y, 1}.Normalize()
	return c.Pose.T, c.Pose.R.Mul3x1(camDir)
}

// WorldToPixel projects a world point into pixel space, returning the
// camera-space depth too (needed by the integrator to compute the SDF).
// valid is false when the point is behind the camera (zCam<=0).
func (c *Camera) WorldToPixel(p mgl32.Vec3) (u, v, zCam float32, valid bool) {
	pCam := c.Pose.ToCamera(p)
	zCam = pCam.Z()
	if zCam <= 0 {
		return 0, 0, zCam, false
	}
	u = c.Fx*pCam.X()/zCam + c.Cx
	v = c.Fy*pCam.Y()/zCam + c.Cy
	return u, v, zCam, true
}
