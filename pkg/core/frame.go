package core

import (
	"fmt"
	"math"
)

// CameraBasis is the camera position and orthonormal view basis for a frame
type CameraBasis struct {
	Position Vec3
	Forward  Vec3
	Up       Vec3
	Right    Vec3
}

// Frame is everything the core reads while rendering one frame.
// It is built once before the frame and shared read-only by every worker.
type Frame struct {
	Camera CameraBasis
	Width  int
	Height int
	FOV    float64 // Vertical field of view in radians
	Bodies []Body
	Params Params
}

// Validate checks resolution, field of view, bodies and parameters
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: resolution must be positive, got %dx%d", ErrInvalidParams, f.Width, f.Height)
	}
	if !(f.FOV > 0) || f.FOV >= math.Pi {
		return fmt.Errorf("%w: field of view must be in (0, pi), got %g", ErrInvalidParams, f.FOV)
	}
	if f.Camera.Forward.LengthSquared() == 0 {
		return fmt.Errorf("%w: camera forward vector is zero", ErrInvalidParams)
	}
	if err := ValidateBodies(f.Bodies); err != nil {
		return err
	}
	return f.Params.Validate()
}
