// Package depth defines the DepthImage contract consumed by the integrator
// and raycaster. Decoding an actual depth sensor format (16-bit PNG/PGM,
// the TUM dataset layout, ...) is explicitly out of scope for this module;
// a caller populates an Image however it likes and hands it to fuse.Integrate.
package depth

import "github.com/kfusion/tsdf/voxelrt/rt/errs"

// Image is a row-major, millimetre-valued depth map. A value of 0 denotes
// "no measurement" at that pixel.
type Image struct {
	Width, Height int
	// Data holds Width*Height uint16 millimetre depths, row-major
	// (Data[v*Width+u] is the depth at pixel (u,v)).
	Data []uint16
}

// NewImage allocates a zeroed depth image of the given dimensions.
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Data: make([]uint16, width*height)}
}

// At returns the depth in millimetres at pixel (u,v), or 0 if out of range.
func (img *Image) At(u, v int) uint16 {
	if u < 0 || v < 0 || u >= img.Width || v >= img.Height {
		return 0
	}
	return img.Data[v*img.Width+u]
}

// Set stores the depth in millimetres at pixel (u,v).
func (img *Image) Set(u, v int, mm uint16) {
	img.Data[v*img.Width+u] = mm
}

// Validate checks the image against the width/height the caller expects to
// integrate against. A mismatch is a programmer error (spec: fatal
// precondition violation), not a data-dependent condition.
func (img *Image) Validate(width, height int) error {
	if img == nil {
		return errs.NewInvalidArgument("depth image is nil")
	}
	if img.Width != width || img.Height != height {
		return errs.NewPreconditionViolation(
			"depth image dims %dx%d do not match expected %dx%d", img.Width, img.Height, width, height)
	}
	if len(img.Data) != width*height {
		return errs.NewPreconditionViolation(
			"depth image backing array has %d elements, want %d", len(img.Data), width*height)
	}
	return nil
}
