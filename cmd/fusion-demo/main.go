// Command fusion-demo fuses a handful of synthetic depth frames of a
// sphere into a TSDF volume, raycasts it back from the original camera
// pose, extracts a mesh, and writes both the grid and the mesh to disk.
// It exists to exercise fusion.Session end to end the way a real sensor
// driver would, without needing an actual depth camera.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/kfusion/tsdf/fusion"
	"github.com/kfusion/tsdf/logging"
	"github.com/kfusion/tsdf/voxelrt/rt/core"
	"github.com/kfusion/tsdf/voxelrt/rt/raycast"
	"github.com/kfusion/tsdf/voxelrt/rt/volume"
)

func main() {
	out := flag.String("out", ".", "directory to write scene.tsdf and scene.ply into")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := logging.NewDefaultLogger("fusion-demo", *debug)

	if err := run(*out, logger); err != nil {
		logger.Errorf("fusion-demo: %v", err)
		os.Exit(1)
	}
}

func run(outDir string, logger logging.Logger) error {
	const width, height = 640, 480

	cam := core.NewCamera(core.Intrinsics{Fx: 525, Fy: 525, Cx: 319.5, Cy: 239.5, Width: width, Height: height})
	cam.MoveTo(mgl32.Vec3{0, 0, 0})
	cam.LookAt(mgl32.Vec3{0, 0, 1})

	session, err := fusion.NewSession(volume.Config{
		Dims:   [3]int{128, 128, 128},
		Size:   mgl32.Vec3{3000, 3000, 3000},
		Origin: mgl32.Vec3{-1500, -1500, 500},
		Trunc:  40,
		WMax:   32,
	}, cam, logger)
	if err != nil {
		return err
	}

	radius := float32(600)
	centerCam := mgl32.Vec3{0, 0, 2000}

	poses := []mgl32.Vec3{
		{0, 0, 0},
		{-50, 0, 0},
		{50, 0, -20},
	}
	for i, eye := range poses {
		cam.MoveTo(eye)
		cam.LookAt(eye.Add(mgl32.Vec3{0, 0, 1}))

		d := volume.SyntheticSphereDepth(width, height, cam.Fx, cam.Fy, cam.Cx, cam.Cy, centerCam, radius)
		if err := session.IntegrateFrame(d); err != nil {
			return err
		}
		logger.Infof("fused frame %d from pose %v", i, eye)
	}

	cam.MoveTo(poses[0])
	cam.LookAt(poses[0].Add(mgl32.Vec3{0, 0, 1}))

	vertices, _, err := session.Raycast(context.Background(), width, height)
	if err != nil {
		return err
	}
	hits := 0
	for _, v := range vertices {
		if !raycast.IsSentinel(v) {
			hits++
		}
	}
	logger.Infof("raycast produced %d/%d hit pixels", hits, len(vertices))

	if err := session.Save(outDir + "/scene.tsdf"); err != nil {
		return err
	}
	if err := session.SaveMesh(outDir + "/scene.ply"); err != nil {
		return err
	}
	logger.Infof("wrote %s/scene.tsdf and %s/scene.ply", outDir, outDir)
	return nil
}
