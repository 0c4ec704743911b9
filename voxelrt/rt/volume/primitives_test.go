package volume

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestSyntheticSphereDepth_HitsCentrePixelForOnAxisSphere(t *testing.T) {
	const width, height = 64, 48
	fx, fy := float32(50), float32(50)
	cx, cy := float32(width)/2, float32(height)/2
	centerCam := mgl32.Vec3{0, 0, 2000}
	radius := float32(600)

	img := SyntheticSphereDepth(width, height, fx, fy, cx, cy, centerCam, radius)

	u, v := width/2, height/2
	got := img.At(u, v)
	if got == 0 {
		t.Fatalf("At(%d,%d) = 0, want a hit near the sphere's front face", u, v)
	}
	want := uint16(centerCam.Z() - radius)
	const tolerance = 5
	if got < want-tolerance || got > want+tolerance {
		t.Errorf("At(%d,%d) = %d, want ~%d (front face at center_z - radius)", u, v, got, want)
	}
}

func TestSyntheticSphereDepth_MissesPixelsFarOffAxis(t *testing.T) {
	const width, height = 64, 48
	fx, fy := float32(50), float32(50)
	cx, cy := float32(width)/2, float32(height)/2
	centerCam := mgl32.Vec3{0, 0, 2000}
	radius := float32(60)

	img := SyntheticSphereDepth(width, height, fx, fy, cx, cy, centerCam, radius)

	if got := img.At(0, 0); got != 0 {
		t.Errorf("At(0,0) = %d, want 0 (corner ray should miss a small on-axis sphere)", got)
	}
}
