// Package gpu implements raycast.Raycaster on top of a WebGPU compute
// pipeline, for callers that want raycasting off the CPU.
//
// Grounded on the teacher's voxelrt/rt/gpu.GpuBufferManager
// (manager.go/manager_hiz.go): buffer creation via
// Device.CreateBuffer+BufferDescriptor, upload via Queue.WriteBuffer,
// dispatch via CommandEncoder.BeginComputePass+DispatchWorkgroups, and
// readback via Buffer.MapAsync+Device.Poll+Buffer.GetMappedRange, the same
// four-step dance the teacher used for its Hi-Z occlusion readback. Where
// the teacher managed a couch of persistent, growable buffers reused
// across frames (ensureBuffer), this raycaster allocates fresh buffers
// per call: a TSDF raycast is not a per-frame hot path the way the
// teacher's renderer was, and grid/image sizes here rarely change between
// calls within one session anyway.
package gpu

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/kfusion/tsdf/voxelrt/rt/core"
	"github.com/kfusion/tsdf/voxelrt/rt/errs"
	"github.com/kfusion/tsdf/voxelrt/rt/shaders"
	"github.com/kfusion/tsdf/voxelrt/rt/volume"
)

const workgroupSize = 8

// Raycaster runs the raycast.wgsl compute kernel on a WebGPU device. It
// implements raycast.Raycaster.
type Raycaster struct {
	instance *wgpu.Instance
	device   *wgpu.Device
	queue    *wgpu.Queue
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
}

// NewRaycaster requests a high-performance adapter and compiles the
// raycast compute pipeline. It returns (nil, err) when no adapter is
// available, so callers can fall back to raycast.CPU.
func NewRaycaster() (*Raycaster, error) {
	instance := wgpu.CreateInstance(nil)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errs.WrapIOError(err, "gpu: no compatible adapter")
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "tsdf-raycast"})
	if err != nil {
		instance.Release()
		return nil, errs.WrapIOError(err, "gpu: device request failed")
	}
	queue := device.GetQueue()

	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "raycast",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.RaycastWGSL},
	})
	if err != nil {
		instance.Release()
		return nil, errs.WrapIOError(err, "gpu: shader compilation failed")
	}
	defer shader.Release()

	pipeline, err := device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "raycast",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shader,
			EntryPoint: "raycast_main",
		},
	})
	if err != nil {
		instance.Release()
		return nil, errs.WrapIOError(err, "gpu: compute pipeline creation failed")
	}

	return &Raycaster{
		instance: instance,
		device:   device,
		queue:    queue,
		pipeline: pipeline,
		layout:   pipeline.GetBindGroupLayout(0),
	}, nil
}

// Close releases the GPU device and instance. Safe to call once.
func (g *Raycaster) Close() {
	if g.layout != nil {
		g.layout.Release()
	}
	if g.pipeline != nil {
		g.pipeline.Release()
	}
	if g.device != nil {
		g.device.Release()
	}
	if g.instance != nil {
		g.instance.Release()
	}
}

// Raycast implements raycast.Raycaster.
func (g *Raycaster) Raycast(ctx context.Context, grid *volume.Grid, cam *core.Camera, width, height int) ([]mgl32.Vec3, []mgl32.Vec3, error) {
	if grid == nil || cam == nil {
		return nil, nil, errs.NewInvalidArgument("gpu: grid and camera must be non-nil")
	}
	if width <= 0 || height <= 0 {
		return nil, nil, errs.NewInvalidArgument("gpu: width/height must be positive, got %dx%d", width, height)
	}
	if ctx != nil && ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}

	cameraBytes := packCamera(cam, width, height)
	gridBytes := packGrid(grid)
	voxelBytes := packVoxels(grid)

	pixelCount := width * height
	outSize := uint64(pixelCount * 16)

	cameraBuf, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "camera-params", Size: uint64(len(cameraBytes)),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, errs.WrapIOError(err, "gpu: allocate camera buffer")
	}
	defer cameraBuf.Release()
	g.queue.WriteBuffer(cameraBuf, 0, cameraBytes)

	gridBuf, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "grid-params", Size: uint64(len(gridBytes)),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, errs.WrapIOError(err, "gpu: allocate grid params buffer")
	}
	defer gridBuf.Release()
	g.queue.WriteBuffer(gridBuf, 0, gridBytes)

	voxelBuf, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "voxels", Size: uint64(len(voxelBytes)),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, errs.WrapIOError(err, "gpu: allocate voxel buffer")
	}
	defer voxelBuf.Release()
	g.queue.WriteBuffer(voxelBuf, 0, voxelBytes)

	vertexBuf, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "out-vertices", Size: outSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, nil, errs.WrapIOError(err, "gpu: allocate vertex output buffer")
	}
	defer vertexBuf.Release()

	normalBuf, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "out-normals", Size: outSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, nil, errs.WrapIOError(err, "gpu: allocate normal output buffer")
	}
	defer normalBuf.Release()

	bindGroup, err := g.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "raycast-bindings",
		Layout: g.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: cameraBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: gridBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: voxelBuf, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: vertexBuf, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: normalBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return nil, nil, errs.WrapIOError(err, "gpu: bind group creation failed")
	}
	defer bindGroup.Release()

	vertexReadback, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "vertex-readback", Size: outSize,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, errs.WrapIOError(err, "gpu: allocate vertex readback buffer")
	}
	defer vertexReadback.Release()

	normalReadback, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "normal-readback", Size: outSize,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, errs.WrapIOError(err, "gpu: allocate normal readback buffer")
	}
	defer normalReadback.Release()

	encoder, err := g.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, nil, errs.WrapIOError(err, "gpu: command encoder creation failed")
	}

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(g.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32(ceilDiv(width, workgroupSize)), uint32(ceilDiv(height, workgroupSize)), 1)
	pass.End()

	encoder.CopyBufferToBuffer(vertexBuf, 0, vertexReadback, 0, outSize)
	encoder.CopyBufferToBuffer(normalBuf, 0, normalReadback, 0, outSize)

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, nil, errs.WrapIOError(err, "gpu: command buffer finish failed")
	}
	g.queue.Submit(cmd)

	vertexData, err := mapAndRead(g.device, vertexReadback, outSize)
	if err != nil {
		return nil, nil, err
	}
	normalData, err := mapAndRead(g.device, normalReadback, outSize)
	if err != nil {
		return nil, nil, err
	}

	vertices := make([]mgl32.Vec3, pixelCount)
	normals := make([]mgl32.Vec3, pixelCount)
	nan := float32(math.NaN())
	for i := 0; i < pixelCount; i++ {
		base := i * 16
		valid := math.Float32frombits(binary.LittleEndian.Uint32(vertexData[base+12:])) > 0.5
		if !valid {
			vertices[i] = mgl32.Vec3{nan, nan, nan}
			continue
		}
		vertices[i] = mgl32.Vec3{
			math.Float32frombits(binary.LittleEndian.Uint32(vertexData[base:])),
			math.Float32frombits(binary.LittleEndian.Uint32(vertexData[base+4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(vertexData[base+8:])),
		}
		normals[i] = mgl32.Vec3{
			math.Float32frombits(binary.LittleEndian.Uint32(normalData[base:])),
			math.Float32frombits(binary.LittleEndian.Uint32(normalData[base+4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(normalData[base+8:])),
		}
	}
	return vertices, normals, nil
}

func mapAndRead(device *wgpu.Device, buf *wgpu.Buffer, size uint64) ([]byte, error) {
	mapped := false
	var mapErr error
	buf.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status == wgpu.BufferMapAsyncStatusSuccess {
			mapped = true
		} else {
			mapErr = errs.NewIOError("gpu: buffer map failed with status %d", status)
		}
	})
	for !mapped && mapErr == nil {
		device.Poll(true, nil)
	}
	if mapErr != nil {
		return nil, mapErr
	}

	view := buf.GetMappedRange(0, uint(size))
	out := make([]byte, len(view))
	copy(out, view)
	buf.Unmap()
	return out, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
