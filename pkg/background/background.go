// Package background maps escaped ray directions to a sky color.
package background

import (
	"math"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

// Mapper returns the background color seen along spherical angles theta (polar,
// from +Y) and phi (azimuth in the XZ plane). Implementations are pure.
type Mapper interface {
	Sample(theta, phi float64) core.Vec3
}

// DirectionAngles converts a direction to (theta, phi), theta in [0, π], phi in [-π, π]
func DirectionAngles(dir core.Vec3) (theta, phi float64) {
	d := dir.Normalize()
	theta = math.Acos(math.Max(-1, math.Min(1, d.Y)))
	phi = math.Atan2(d.Z, d.X)
	return theta, phi
}

// SampleDirection is a convenience wrapper that samples a mapper along a direction
func SampleDirection(m Mapper, dir core.Vec3) core.Vec3 {
	theta, phi := DirectionAngles(dir)
	return m.Sample(theta, phi)
}

// New returns the mapper for a background mode, defaulting to the starfield
func New(mode core.BackgroundMode) Mapper {
	switch mode {
	case core.BackgroundCheckerboard:
		return NewCheckerboard()
	default:
		return NewStarfield()
	}
}
