// Package shaders embeds the WGSL compute kernels used by voxelrt/rt/gpu,
// following the teacher's shaders.go, which embedded its render-pipeline
// WGSL sources the same way.
package shaders

import (
	_ "embed"
)

//go:embed raycast.wgsl
var RaycastWGSL string
