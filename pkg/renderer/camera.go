package renderer

import (
	"math"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

// Camera generates primary rays from a camera basis and a vertical field of view
type Camera struct {
	origin     core.Vec3
	forward    core.Vec3
	up         core.Vec3
	right      core.Vec3
	width      int
	height     int
	tanHalfFOV float64
	aspect     float64
}

// NewCamera creates a pinhole camera for an image of width x height pixels
func NewCamera(basis core.CameraBasis, width, height int, fov float64) *Camera {
	return &Camera{
		origin:     basis.Position,
		forward:    basis.Forward.Normalize(),
		up:         basis.Up.Normalize(),
		right:      basis.Right.Normalize(),
		width:      width,
		height:     height,
		tanHalfFOV: math.Tan(fov / 2),
		aspect:     float64(width) / float64(height),
	}
}

// GetRay returns the ray through continuous pixel coordinates (px, py), measured
// from the top-left corner. The center of pixel (i, j) is (i+0.5, j+0.5).
func (c *Camera) GetRay(px, py float64) core.Ray {
	ndcX := (2*px/float64(c.width) - 1) * c.aspect * c.tanHalfFOV
	ndcY := (1 - 2*py/float64(c.height)) * c.tanHalfFOV

	direction := c.forward.
		Add(c.right.Multiply(ndcX)).
		Add(c.up.Multiply(ndcY)).
		Normalize()

	return core.NewRay(c.origin, direction)
}

// PixelCenterRay returns the ray through the center of pixel (i, j)
func (c *Camera) PixelCenterRay(i, j int) core.Ray {
	return c.GetRay(float64(i)+0.5, float64(j)+0.5)
}
