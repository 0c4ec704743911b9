// Package fusion wires the TSDF kernels (volume, fuse, raycast,
// marchingcubes, serialize) into one Session per reconstructed scene,
// the way a caller — a live sensor driver, a batch replay tool, a test —
// actually uses them end to end.
//
// The builder shape is grounded on the teacher's App/AppBuilder
// (app_builder.go): NewSession returns a *Session a caller configures
// with chained With* calls before the first frame is integrated, mirroring
// AppBuilder.UseStates/UseModules's chained-method style; there is no
// install/build phase here since a Session has no systems to schedule,
// only a grid, a camera and a pair of kernel pools to hold onto.
package fusion

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kfusion/tsdf/logging"
	"github.com/kfusion/tsdf/voxelrt/rt/core"
	"github.com/kfusion/tsdf/voxelrt/rt/depth"
	"github.com/kfusion/tsdf/voxelrt/rt/errs"
	"github.com/kfusion/tsdf/voxelrt/rt/fuse"
	"github.com/kfusion/tsdf/voxelrt/rt/marchingcubes"
	"github.com/kfusion/tsdf/voxelrt/rt/raycast"
	"github.com/kfusion/tsdf/voxelrt/rt/serialize"
	"github.com/kfusion/tsdf/voxelrt/rt/volume"
	"github.com/go-gl/mathgl/mgl32"
)

// Session owns one grid and the camera currently fusing frames into it.
// ID correlates a session's log lines across a run; it is never part of
// the grid's on-disk binary format (spec §6 defines that format without
// any identifier field).
type Session struct {
	ID     uuid.UUID
	logger logging.Logger

	mu     sync.RWMutex
	grid   *volume.Grid
	camera *core.Camera

	workers    int
	weight     fuse.WeightFunc
	raycaster  raycast.Raycaster
	framesFused int
}

// NewSession creates a session around a freshly allocated grid of the
// given configuration and the supplied camera. The camera's pose is
// mutated externally by the caller (e.g. from ICP or ground truth) between
// calls to IntegrateFrame and Raycast.
func NewSession(cfg volume.Config, cam *core.Camera, logger logging.Logger) (*Session, error) {
	if cam == nil {
		return nil, errs.NewInvalidArgument("fusion: camera must be non-nil")
	}
	grid, err := volume.New(cfg)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	return &Session{
		ID:        id,
		logger:    logging.OrNop(logger).WithField("session", id),
		grid:      grid,
		camera:    cam,
		workers:   fuse.DefaultWorkerCount(),
		weight:    fuse.DefaultWeight,
		raycaster: raycast.NewCPU(fuse.DefaultWorkerCount()),
	}, nil
}

// WithWorkers sets the worker-pool size used by both integration and
// marching-cubes extraction. Returns the session for chaining.
func (s *Session) WithWorkers(n int) *Session {
	s.workers = n
	return s
}

// WithWeightFunc overrides the per-voxel observation weight used by
// IntegrateFrame (spec §4.3's extension point). Returns the session for
// chaining.
func (s *Session) WithWeightFunc(w fuse.WeightFunc) *Session {
	if w != nil {
		s.weight = w
	}
	return s
}

// WithRaycaster swaps in an alternative Raycaster (e.g. the GPU one from
// voxelrt/rt/gpu). Returns the session for chaining.
func (s *Session) WithRaycaster(rc raycast.Raycaster) *Session {
	if rc != nil {
		s.raycaster = rc
	}
	return s
}

// Camera returns the session's camera. Callers update its pose directly
// between frames (e.g. via SetPose or LookAt).
func (s *Session) Camera() *core.Camera {
	return s.camera
}

// FramesFused reports how many IntegrateFrame calls have succeeded so far.
func (s *Session) FramesFused() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.framesFused
}

// IntegrateFrame fuses d, observed at the camera's current pose, into the
// session's grid.
func (s *Session) IntegrateFrame(d *depth.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fuse.IntegrateParallel(s.grid, d, s.camera, s.logger, s.workers, s.weight); err != nil {
		return err
	}
	s.framesFused++
	s.logger.Debugf("integrated frame %d", s.framesFused)
	return nil
}

// Raycast produces a vertex/normal map of the grid from the camera's
// current pose, using the session's configured Raycaster.
func (s *Session) Raycast(ctx context.Context, width, height int) ([]mgl32.Vec3, []mgl32.Vec3, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raycaster.Raycast(ctx, s.grid, s.camera, width, height)
}

// ExtractMesh polygonises the current grid via marching cubes.
func (s *Session) ExtractMesh() ([]marchingcubes.Triangle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tris, err := marchingcubes.ExtractParallel(s.grid, s.workers)
	if err != nil {
		return nil, err
	}
	s.logger.Debugf("extracted %d triangles", len(tris))
	return tris, nil
}

// Save writes the session's grid to path in the spec §6 binary format.
func (s *Session) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return serialize.SaveGrid(path, s.grid)
}

// SaveMesh extracts the current grid's mesh and writes it to path as ASCII
// PLY.
func (s *Session) SaveMesh(path string) error {
	tris, err := s.ExtractMesh()
	if err != nil {
		return err
	}
	return serialize.WritePLYFile(path, tris)
}

// Load replaces the session's grid with the one stored at path. The
// camera and fused-frame counter are left untouched; callers resetting a
// session's pose history should do so themselves.
func (s *Session) Load(path string) error {
	grid, err := serialize.LoadGrid(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid = grid
	return nil
}
