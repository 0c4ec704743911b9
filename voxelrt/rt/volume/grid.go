// Package volume holds the dense voxel grid that stores the fused TSDF:
// Voxel, Grid, and the trilinear sampling / gradient operations the
// raycaster and marching-cubes extractor read through. This replaces the
// teacher's sparse brick/sector voxel store (voxelrt/rt/volume/xbrickmap.go)
// with a single flat array addressed exactly as spec §6 requires
// (index = i + nx*(j + ny*k)), since a TSDF volume is densely observed
// across its truncation band rather than mostly-empty like a game world.
package volume

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/kfusion/tsdf/voxelrt/rt/errs"
)

// Voxel holds a distance sample and its accumulated confidence weight. A
// voxel with Weight==0 is "unseen"; its Distance is meaningless until then.
type Voxel struct {
	// Distance is the normalised TSDF value (sdf/trunc), clamped to
	// [-1, 1], per spec §9's recommended convention.
	Distance float32
	Weight   float32
}

// Config describes the fixed shape of a Grid at construction time.
type Config struct {
	Dims   [3]int
	Size   mgl32.Vec3 // physical extent, millimetres
	Origin mgl32.Vec3 // world coordinate of the corner of voxel (0,0,0)
	Trunc  float32     // truncation distance, millimetres
	WMax   float32
}

// Grid is a fixed-resolution dense TSDF volume. Storage is a single
// contiguous allocation, x-fastest then y then z (spec §6).
type Grid struct {
	Dims      [3]int
	Size      mgl32.Vec3
	VoxelSize mgl32.Vec3
	Origin    mgl32.Vec3
	Trunc     float32
	WMax      float32
	Data      []Voxel
}

// New allocates an empty grid (all weights 0) per the given Config.
func New(cfg Config) (*Grid, error) {
	nx, ny, nz := cfg.Dims[0], cfg.Dims[1], cfg.Dims[2]
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, errs.NewInvalidArgument("grid dims must be positive, got %v", cfg.Dims)
	}
	if cfg.Size.X() <= 0 || cfg.Size.Y() <= 0 || cfg.Size.Z() <= 0 {
		return nil, errs.NewInvalidArgument("grid size must be positive, got %v", cfg.Size)
	}
	if cfg.Trunc <= 0 {
		return nil, errs.NewInvalidArgument("trunc must be positive, got %f", cfg.Trunc)
	}
	if cfg.WMax <= 0 {
		return nil, errs.NewInvalidArgument("w_max must be positive, got %f", cfg.WMax)
	}

	voxelSize := mgl32.Vec3{
		cfg.Size.X() / float32(nx),
		cfg.Size.Y() / float32(ny),
		cfg.Size.Z() / float32(nz),
	}

	return &Grid{
		Dims:      cfg.Dims,
		Size:      cfg.Size,
		VoxelSize: voxelSize,
		Origin:    cfg.Origin,
		Trunc:     cfg.Trunc,
		WMax:      cfg.WMax,
		Data:      make([]Voxel, nx*ny*nz),
	}, nil
}

func (g *Grid) inBounds(i, j, k int) bool {
	return i >= 0 && j >= 0 && k >= 0 && i < g.Dims[0] && j < g.Dims[1] && k < g.Dims[2]
}

func (g *Grid) index(i, j, k int) int {
	return i + g.Dims[0]*(j+g.Dims[1]*k)
}

// At returns the voxel at integer index (i,j,k). Out-of-bounds access is a
// precondition violation (spec §4.2: "Bounds are debug-checked").
func (g *Grid) At(i, j, k int) (Voxel, error) {
	if !g.inBounds(i, j, k) {
		return Voxel{}, errs.NewPreconditionViolation("voxel index (%d,%d,%d) out of bounds %v", i, j, k, g.Dims)
	}
	return g.Data[g.index(i, j, k)], nil
}

// AtUnchecked is the release-build counterpart of At: callers on a hot path
// that have already validated (i,j,k) (e.g. the MC/raycast inner loops,
// which only ever visit in-bounds cells) can skip the bounds check.
func (g *Grid) AtUnchecked(i, j, k int) Voxel {
	return g.Data[g.index(i, j, k)]
}

// SetAt writes a voxel, clamping the normalised distance to [-1, 1] and
// weight to [0, WMax] so the grid's invariants always hold after a mutation.
func (g *Grid) SetAt(i, j, k int, v Voxel) error {
	if !g.inBounds(i, j, k) {
		return errs.NewPreconditionViolation("voxel index (%d,%d,%d) out of bounds %v", i, j, k, g.Dims)
	}
	if v.Distance > 1 {
		v.Distance = 1
	} else if v.Distance < -1 {
		v.Distance = -1
	}
	if v.Weight < 0 {
		v.Weight = 0
	} else if v.Weight > g.WMax {
		v.Weight = g.WMax
	}
	g.Data[g.index(i, j, k)] = v
	return nil
}

// VoxelCentre returns the world-space centre of voxel (i,j,k).
func (g *Grid) VoxelCentre(i, j, k int) mgl32.Vec3 {
	return mgl32.Vec3{
		g.Origin.X() + (float32(i)+0.5)*g.VoxelSize.X(),
		g.Origin.Y() + (float32(j)+0.5)*g.VoxelSize.Y(),
		g.Origin.Z() + (float32(k)+0.5)*g.VoxelSize.Z(),
	}
}

// Contains reports whether p lies within the grid's world-space AABB.
func (g *Grid) Contains(p mgl32.Vec3) bool {
	rel := p.Sub(g.Origin)
	return rel.X() >= 0 && rel.Y() >= 0 && rel.Z() >= 0 &&
		rel.X() <= g.Size.X() && rel.Y() <= g.Size.Y() && rel.Z() <= g.Size.Z()
}

// Bounds returns the grid's world-space AABB (min, max).
func (g *Grid) Bounds() (min, max mgl32.Vec3) {
	return g.Origin, g.Origin.Add(g.Size)
}

// gridCoord maps a world point to continuous grid-index space, where
// integer coordinates land on voxel centres.
func (g *Grid) gridCoord(p mgl32.Vec3) mgl32.Vec3 {
	rel := p.Sub(g.Origin)
	return mgl32.Vec3{
		rel.X()/g.VoxelSize.X() - 0.5,
		rel.Y()/g.VoxelSize.Y() - 0.5,
		rel.Z()/g.VoxelSize.Z() - 0.5,
	}
}

// TrilinearDistance interpolates Distance across the 8 voxels surrounding
// p. defined is false if p falls outside the grid or any of the 8
// surrounding voxels has weight 0.
func (g *Grid) TrilinearDistance(p mgl32.Vec3) (distance float32, defined bool) {
	gc := g.gridCoord(p)
	i0, j0, k0 := floorInt(gc.X()), floorInt(gc.Y()), floorInt(gc.Z())
	if i0 < 0 || j0 < 0 || k0 < 0 || i0+1 >= g.Dims[0] || j0+1 >= g.Dims[1] || k0+1 >= g.Dims[2] {
		return 0, false
	}

	fx, fy, fz := gc.X()-float32(i0), gc.Y()-float32(j0), gc.Z()-float32(k0)

	var corners [8]Voxel
	idx := 0
	for dk := 0; dk <= 1; dk++ {
		for dj := 0; dj <= 1; dj++ {
			for di := 0; di <= 1; di++ {
				corners[idx] = g.AtUnchecked(i0+di, j0+dj, k0+dk)
				if corners[idx].Weight == 0 {
					return 0, false
				}
				idx++
			}
		}
	}

	// corners ordering: index = di + 2*dj + 4*dk
	c := func(di, dj, dk int) float32 { return corners[di+2*dj+4*dk].Distance }

	c00 := lerp(c(0, 0, 0), c(1, 0, 0), fx)
	c10 := lerp(c(0, 1, 0), c(1, 1, 0), fx)
	c01 := lerp(c(0, 0, 1), c(1, 0, 1), fx)
	c11 := lerp(c(0, 1, 1), c(1, 1, 1), fx)
	c0 := lerp(c00, c10, fy)
	c1 := lerp(c01, c11, fy)
	return lerp(c0, c1, fz), true
}

// Gradient estimates the unnormalised gradient of the trilinear distance
// field at p via central differences with step equal to the voxel size
// along each axis. ok is false if the gradient can't be evaluated (p or its
// sampling neighbourhood lies outside the observed region).
func (g *Grid) Gradient(p mgl32.Vec3) (grad mgl32.Vec3, ok bool) {
	hx, hy, hz := g.VoxelSize.X(), g.VoxelSize.Y(), g.VoxelSize.Z()

	dxPlus, okXP := g.TrilinearDistance(p.Add(mgl32.Vec3{hx, 0, 0}))
	dxMinus, okXM := g.TrilinearDistance(p.Sub(mgl32.Vec3{hx, 0, 0}))
	dyPlus, okYP := g.TrilinearDistance(p.Add(mgl32.Vec3{0, hy, 0}))
	dyMinus, okYM := g.TrilinearDistance(p.Sub(mgl32.Vec3{0, hy, 0}))
	dzPlus, okZP := g.TrilinearDistance(p.Add(mgl32.Vec3{0, 0, hz}))
	dzMinus, okZM := g.TrilinearDistance(p.Sub(mgl32.Vec3{0, 0, hz}))

	if !okXP || !okXM || !okYP || !okYM || !okZP || !okZM {
		return mgl32.Vec3{}, false
	}

	return mgl32.Vec3{
		(dxPlus - dxMinus) / (2 * hx),
		(dyPlus - dyMinus) / (2 * hy),
		(dzPlus - dzMinus) / (2 * hz),
	}, true
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func floorInt(v float32) int {
	i := int(v)
	if v < 0 && float32(i) != v {
		i--
	}
	return i
}
