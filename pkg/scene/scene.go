// Package scene describes what to render: the camera, the output size, the
// frame parameters and the simulation that supplies the bodies. Scenes come
// from the built-in presets or from YAML files.
package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/renderer"
	"github.com/df07/go-spacetime-raytracer/pkg/simulation"
)

// CameraConfig places an orbital camera
type CameraConfig struct {
	Distance  float64
	Azimuth   float64
	Elevation float64 // Polar angle from +Y
	FOV       float64 // Vertical field of view in radians
	Target    core.Vec3
}

// DefaultCameraConfig returns the standard three-quarter view from distance 10
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Distance:  10.0,
		Azimuth:   0.5,
		Elevation: 1.2,
		FOV:       1.0,
	}
}

// Orbital builds the orbital camera for this configuration
func (c CameraConfig) Orbital() *renderer.OrbitalCamera {
	cam := renderer.NewOrbitalCamera(c.Distance, c.Azimuth, c.Elevation)
	cam.FOV = c.FOV
	cam.Target = mgl64.Vec3{c.Target.X, c.Target.Y, c.Target.Z}
	return cam
}

// Scene contains all the elements needed to build a frame
type Scene struct {
	Name        string
	Description string
	Camera      CameraConfig
	Width       int
	Height      int
	Params      core.Params
	Simulation  *simulation.Simulation
}

// Advance moves the simulation forward and keeps the disk animation clock in step
func (s *Scene) Advance(simTime float64) {
	if !(simTime > 0) {
		return
	}
	s.Simulation.Advance(simTime)
	s.Params.Time += simTime
}

// Frame snapshots the current bodies and builds a validated frame
func (s *Scene) Frame() (core.Frame, error) {
	bodies, err := s.Simulation.Snapshot()
	if err != nil {
		return core.Frame{}, fmt.Errorf("scene %q: %w", s.Name, err)
	}

	cam := s.Camera.Orbital()
	frame := core.Frame{
		Camera: cam.Basis(),
		Width:  s.Width,
		Height: s.Height,
		FOV:    cam.FOV,
		Bodies: bodies,
		Params: s.Params,
	}
	if err := frame.Validate(); err != nil {
		return core.Frame{}, fmt.Errorf("scene %q: %w", s.Name, err)
	}
	return frame, nil
}
