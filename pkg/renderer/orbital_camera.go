package renderer

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

// Orbit control limits
const (
	MinElevation = 0.1
	MaxElevation = math.Pi - 0.1
	MinDistance  = 1.5
	MaxDistance  = 100.0
)

var worldUp = mgl64.Vec3{0, 1, 0}

// OrbitalCamera places the camera on a sphere around a target point.
// Elevation is the polar angle from +Y and azimuth rotates about +Y.
type OrbitalCamera struct {
	Distance  float64
	Azimuth   float64
	Elevation float64
	Target    mgl64.Vec3
	FOV       float64 // Vertical field of view in radians
}

// NewOrbitalCamera creates a camera looking at the origin with a 1 radian field of view
func NewOrbitalCamera(distance, azimuth, elevation float64) *OrbitalCamera {
	return &OrbitalCamera{
		Distance:  distance,
		Azimuth:   azimuth,
		Elevation: elevation,
		FOV:       1.0,
	}
}

// Position returns the camera position in world space
func (c *OrbitalCamera) Position() mgl64.Vec3 {
	sinEl, cosEl := math.Sincos(c.Elevation)
	sinAz, cosAz := math.Sincos(c.Azimuth)
	offset := mgl64.Vec3{
		c.Distance * sinEl * cosAz,
		c.Distance * cosEl,
		c.Distance * sinEl * sinAz,
	}
	return c.Target.Add(offset)
}

// Forward returns the unit view direction
func (c *OrbitalCamera) Forward() mgl64.Vec3 {
	d := c.Target.Sub(c.Position())
	if d.Len() == 0 {
		return mgl64.Vec3{0, 0, -1}
	}
	return d.Normalize()
}

// Right returns the unit right vector, falling back to +X when looking along the pole
func (c *OrbitalCamera) Right() mgl64.Vec3 {
	r := c.Forward().Cross(worldUp)
	if r.Len() < 1e-6 {
		return mgl64.Vec3{1, 0, 0}
	}
	return r.Normalize()
}

// Up returns the unit up vector, falling back to +Z when looking along the pole
func (c *OrbitalCamera) Up() mgl64.Vec3 {
	f := c.Forward()
	r := f.Cross(worldUp)
	if r.Len() < 1e-6 {
		return mgl64.Vec3{0, 0, 1}
	}
	return r.Normalize().Cross(f).Normalize()
}

// Basis returns the camera basis consumed by the renderer
func (c *OrbitalCamera) Basis() core.CameraBasis {
	return core.CameraBasis{
		Position: fromMgl(c.Position()),
		Forward:  fromMgl(c.Forward()),
		Up:       fromMgl(c.Up()),
		Right:    fromMgl(c.Right()),
	}
}

// Orbit rotates the camera about the target; elevation stays clear of the poles
func (c *OrbitalCamera) Orbit(dAzimuth, dElevation float64) {
	c.Azimuth += dAzimuth
	c.Elevation = mgl64.Clamp(c.Elevation+dElevation, MinElevation, MaxElevation)
}

// Zoom moves the camera toward (positive) or away from (negative) the target
func (c *OrbitalCamera) Zoom(delta float64) {
	c.Distance = mgl64.Clamp(c.Distance-delta, MinDistance, MaxDistance)
}

// Pan moves the target along the view's forward and right directions
func (c *OrbitalCamera) Pan(forward, right float64) {
	c.Target = c.Target.Add(c.Forward().Mul(forward)).Add(c.Right().Mul(right))
}

func fromMgl(v mgl64.Vec3) core.Vec3 {
	return core.NewVec3(v[0], v[1], v[2])
}
