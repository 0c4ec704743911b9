package volume

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func smallGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := New(Config{
		Dims:   [3]int{8, 8, 8},
		Size:   mgl32.Vec3{80, 80, 80},
		Origin: mgl32.Vec3{-40, -40, -40},
		Trunc:  10,
		WMax:   10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestNew_RejectsInvalidArguments(t *testing.T) {
	cases := []Config{
		{Dims: [3]int{0, 8, 8}, Size: mgl32.Vec3{1, 1, 1}, Trunc: 1, WMax: 1},
		{Dims: [3]int{8, 8, 8}, Size: mgl32.Vec3{0, 1, 1}, Trunc: 1, WMax: 1},
		{Dims: [3]int{8, 8, 8}, Size: mgl32.Vec3{1, 1, 1}, Trunc: 0, WMax: 1},
		{Dims: [3]int{8, 8, 8}, Size: mgl32.Vec3{1, 1, 1}, Trunc: 1, WMax: 0},
	}
	for i, c := range cases {
		if _, err := New(c); err == nil {
			t.Errorf("case %d: expected error, got nil", i)
		}
	}
}

func TestVoxelCentre(t *testing.T) {
	g := smallGrid(t)
	c := g.VoxelCentre(0, 0, 0)
	want := mgl32.Vec3{-40 + 5, -40 + 5, -40 + 5} // voxel size = 10
	if c.Sub(want).Len() > 1e-4 {
		t.Errorf("VoxelCentre(0,0,0) = %v, want %v", c, want)
	}
}

func TestSetAt_ClampsInvariants(t *testing.T) {
	g := smallGrid(t)
	if err := g.SetAt(1, 1, 1, Voxel{Distance: 50, Weight: 1000}); err != nil {
		t.Fatalf("SetAt: %v", err)
	}
	v, err := g.At(1, 1, 1)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if v.Distance != 1 {
		t.Errorf("Distance = %f, want clamped to 1", v.Distance)
	}
	if v.Weight != g.WMax {
		t.Errorf("Weight = %f, want clamped to WMax=%f", v.Weight, g.WMax)
	}
}

func TestAt_OutOfBounds(t *testing.T) {
	g := smallGrid(t)
	if _, err := g.At(-1, 0, 0); err == nil {
		t.Errorf("expected error for out-of-bounds access")
	}
	if _, err := g.At(8, 0, 0); err == nil {
		t.Errorf("expected error for out-of-bounds access")
	}
}

func TestTrilinearDistance_UndefinedOutsideObservedRegion(t *testing.T) {
	g := smallGrid(t)
	// No voxel has been written; everything has weight 0.
	if _, ok := g.TrilinearDistance(g.VoxelCentre(4, 4, 4)); ok {
		t.Errorf("expected undefined distance in an unobserved grid")
	}
}

func TestTrilinearDistance_InterpolatesBetweenObservedVoxels(t *testing.T) {
	g := smallGrid(t)
	FillPlaneSDF(g, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1})

	p := g.VoxelCentre(4, 4, 4).Add(mgl32.Vec3{0, 0, g.VoxelSize.Z() / 2})
	d, ok := g.TrilinearDistance(p)
	if !ok {
		t.Fatalf("expected defined distance")
	}
	// p lies halfway between voxel k=4 (z=5, 0.5) and k=5 (z=15, 1.5
	// clamped to 1).
	want := float32(0.75)
	if math.Abs(float64(d-want)) > 0.05 {
		t.Errorf("TrilinearDistance = %f, want ~%f", d, want)
	}
}

func TestGradient_AlignsWithPlaneNormal(t *testing.T) {
	g := smallGrid(t)
	normal := mgl32.Vec3{0, 0, 1}
	FillPlaneSDF(g, mgl32.Vec3{0, 0, 0}, normal)

	grad, ok := g.Gradient(g.VoxelCentre(4, 4, 4))
	if !ok {
		t.Fatalf("expected defined gradient")
	}
	gn := grad.Normalize()
	if gn.Dot(normal) < 0.99 {
		t.Errorf("gradient %v not aligned with plane normal %v", gn, normal)
	}
}
