package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testIntrinsics() Intrinsics {
	return Intrinsics{Fx: 525, Fy: 525, Cx: 319.5, Cy: 239.5, Width: 640, Height: 480}
}

func TestPixelToRay_WorldToPixel_RoundTrip(t *testing.T) {
	cam := NewCamera(testIntrinsics())
	cam.MoveTo(mgl32.Vec3{10, -5, -100})
	cam.LookAt(mgl32.Vec3{0, 0, 1000})

	for _, px := range [][2]int{{0, 0}, {319, 239}, {639, 479}, {100, 400}} {
		origin, dir := cam.PixelToRay(px[0], px[1])

		tParam := float32(734.2)
		p := origin.Add(dir.Mul(tParam))

		u, v, zCam, valid := cam.WorldToPixel(p)
		if !valid {
			t.Fatalf("pixel %v: expected point in front of camera", px)
		}
		if zCam <= 0 {
			t.Fatalf("pixel %v: expected positive camera depth, got %f", px, zCam)
		}

		wantU := float32(px[0]) + 0.5
		wantV := float32(px[1]) + 0.5
		if math.Abs(float64(u-wantU)) > 1e-2 {
			t.Errorf("pixel %v: round-tripped u=%f, want ~%f", px, u, wantU)
		}
		if math.Abs(float64(v-wantV)) > 1e-2 {
			t.Errorf("pixel %v: round-tripped v=%f, want ~%f", px, v, wantV)
		}
	}
}

func TestLookAt_KeepsROrthonormal(t *testing.T) {
	cam := NewCamera(testIntrinsics())
	cam.MoveTo(mgl32.Vec3{0, 0, 0})
	cam.LookAt(mgl32.Vec3{3, 7, -2})

	r := cam.Pose.R
	c0 := mgl32.Vec3{r[0], r[1], r[2]}
	c1 := mgl32.Vec3{r[3], r[4], r[5]}
	c2 := mgl32.Vec3{r[6], r[7], r[8]}

	for name, v := range map[string]mgl32.Vec3{"c0": c0, "c1": c1, "c2": c2} {
		if math.Abs(float64(v.Len()-1)) > 1e-4 {
			t.Errorf("column %s not unit length: %f", name, v.Len())
		}
	}
	if math.Abs(float64(c0.Dot(c1))) > 1e-4 {
		t.Errorf("columns c0/c1 not orthogonal: dot=%f", c0.Dot(c1))
	}
	if math.Abs(float64(c1.Dot(c2))) > 1e-4 {
		t.Errorf("columns c1/c2 not orthogonal: dot=%f", c1.Dot(c2))
	}

	det := r.Det()
	if math.Abs(float64(det-1)) > 1e-3 {
		t.Errorf("det(R) = %f, want 1", det)
	}
}

func TestWorldToPixel_BehindCamera(t *testing.T) {
	cam := NewCamera(testIntrinsics())
	cam.MoveTo(mgl32.Vec3{0, 0, 1000})
	cam.LookAt(mgl32.Vec3{0, 0, 0}) // looks toward -Z world

	_, _, _, valid := cam.WorldToPixel(mgl32.Vec3{0, 0, 2000})
	if valid {
		t.Errorf("expected point behind camera to be invalid")
	}
}
