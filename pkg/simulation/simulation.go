// Package simulation moves the gravitating bodies between frames with a
// leapfrog N-body integrator. The renderer never sees this state directly:
// each frame borrows an immutable Snapshot of the bodies.
package simulation

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

const (
	// DefaultDiskInnerMult and DefaultDiskOuterMult bound the disk in multiples of rs
	DefaultDiskInnerMult = 3.0
	DefaultDiskOuterMult = 15.0

	// FrameSlice is the largest step Advance takes, one 60 Hz frame
	FrameSlice = 0.016

	// minSeparation skips pairs so close that the 1/r² pull would explode
	minSeparation = 0.1
)

// Body is a simulated black hole with its orbital state
type Body struct {
	Position      mgl64.Vec3
	Velocity      mgl64.Vec3
	Rs            float64
	DiskInnerMult float64
	DiskOuterMult float64
}

// NewBody creates a body with the default disk extent
func NewBody(position, velocity mgl64.Vec3, rs float64) Body {
	return Body{
		Position:      position,
		Velocity:      velocity,
		Rs:            rs,
		DiskInnerMult: DefaultDiskInnerMult,
		DiskOuterMult: DefaultDiskOuterMult,
	}
}

// Core converts the body to the renderer's read-only form
func (b Body) Core() core.Body {
	return core.NewBody(core.NewVec3(b.Position[0], b.Position[1], b.Position[2]), b.Rs, b.DiskInnerMult, b.DiskOuterMult)
}

// Preset names a built-in body configuration
type Preset int

const (
	PresetSingle Preset = iota
	PresetBinary
	PresetTriple
)

// Presets lists every preset in cycling order
var Presets = []Preset{PresetSingle, PresetBinary, PresetTriple}

func (p Preset) String() string {
	switch p {
	case PresetSingle:
		return "single"
	case PresetBinary:
		return "binary"
	case PresetTriple:
		return "triple"
	default:
		return fmt.Sprintf("Preset(%d)", int(p))
	}
}

// Next returns the preset after p, wrapping around
func (p Preset) Next() Preset {
	return Presets[(int(p)+1)%len(Presets)]
}

// ParsePreset looks a preset up by name
func ParsePreset(name string) (Preset, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "single":
		return PresetSingle, nil
	case "binary":
		return PresetBinary, nil
	case "triple":
		return PresetTriple, nil
	default:
		return 0, fmt.Errorf("unknown preset %q (options: single, binary, triple)", name)
	}
}

// Simulation holds the bodies and the simulation clock
type Simulation struct {
	Bodies []Body
	Time   float64
	Paused bool
	Speed  float64 // Multiplier on every dt passed to Step
	Preset Preset
}

// New creates a simulation loaded with a preset
func New(preset Preset) *Simulation {
	s := &Simulation{Speed: 1.0}
	s.LoadPreset(preset)
	return s
}

// LoadPreset replaces the bodies and resets the clock. The single body
// preset starts paused since nothing moves.
func (s *Simulation) LoadPreset(preset Preset) {
	s.Preset = preset
	s.Time = 0

	switch preset {
	case PresetBinary:
		const separation, rs = 6.0, 0.5
		// Circular orbit: each body pulls the other with rs/(2d²) at radius d/2
		v := math.Sqrt(rs / (4 * separation))
		s.Bodies = []Body{
			NewBody(mgl64.Vec3{separation / 2, 0, 0}, mgl64.Vec3{0, 0, v}, rs),
			NewBody(mgl64.Vec3{-separation / 2, 0, 0}, mgl64.Vec3{0, 0, -v}, rs),
		}
		s.Paused = false

	case PresetTriple:
		const radius, rs = 5.0, 0.4
		side := radius * math.Sqrt(3)
		v := math.Sqrt(2 * rs / (4 * side))
		s.Bodies = make([]Body, 0, 3)
		for i := 0; i < 3; i++ {
			sin, cos := math.Sincos(float64(i) * 2 * math.Pi / 3)
			pos := mgl64.Vec3{radius * cos, 0, radius * sin}
			tangent := mgl64.Vec3{-sin, 0, cos}
			s.Bodies = append(s.Bodies, NewBody(pos, tangent.Mul(v), rs))
		}
		s.Paused = false

	default:
		s.Preset = PresetSingle
		s.Bodies = []Body{NewBody(mgl64.Vec3{}, mgl64.Vec3{}, 1.0)}
		s.Paused = true
	}
}

// accelerations returns the Newtonian pull on every body with M = rs/2
func (s *Simulation) accelerations() []mgl64.Vec3 {
	accels := make([]mgl64.Vec3, len(s.Bodies))
	for i := range s.Bodies {
		for j := range s.Bodies {
			if i == j {
				continue
			}
			delta := s.Bodies[j].Position.Sub(s.Bodies[i].Position)
			r := delta.Len()
			if r < minSeparation {
				continue
			}
			mag := s.Bodies[j].Rs / (2 * r * r)
			accels[i] = accels[i].Add(delta.Mul(mag / r))
		}
	}
	return accels
}

// Step advances the bodies by dt scaled by Speed using kick-drift-kick leapfrog.
// A paused simulation or one with fewer than two bodies does not move.
func (s *Simulation) Step(dt float64) {
	if s.Paused || len(s.Bodies) <= 1 {
		return
	}
	dt *= s.Speed

	accels := s.accelerations()
	for i := range s.Bodies {
		s.Bodies[i].Velocity = s.Bodies[i].Velocity.Add(accels[i].Mul(dt / 2))
	}

	for i := range s.Bodies {
		s.Bodies[i].Position = s.Bodies[i].Position.Add(s.Bodies[i].Velocity.Mul(dt))
	}

	accels = s.accelerations()
	for i := range s.Bodies {
		s.Bodies[i].Velocity = s.Bodies[i].Velocity.Add(accels[i].Mul(dt / 2))
	}

	s.Time += dt
}

// Advance runs the simulation forward by simTime in equal slices no longer
// than FrameSlice, unpausing it first. Used for headless renders that start
// partway through an orbit.
func (s *Simulation) Advance(simTime float64) {
	if !(simTime > 0) {
		return
	}
	s.Paused = false
	steps := int(math.Ceil(simTime / FrameSlice))
	dt := simTime / float64(steps)
	for i := 0; i < steps; i++ {
		s.Step(dt)
	}
}

// Snapshot returns the bodies as the read-only slice a frame borrows
func (s *Simulation) Snapshot() ([]core.Body, error) {
	if len(s.Bodies) > core.MaxBodies {
		return nil, fmt.Errorf("%w: simulation has %d bodies, maximum is %d",
			core.ErrTooManyBodies, len(s.Bodies), core.MaxBodies)
	}
	bodies := make([]core.Body, len(s.Bodies))
	for i, b := range s.Bodies {
		bodies[i] = b.Core()
	}
	return bodies, nil
}

// CenterOfMass returns the rs-weighted mean position
func (s *Simulation) CenterOfMass() mgl64.Vec3 {
	var sum mgl64.Vec3
	total := 0.0
	for _, b := range s.Bodies {
		sum = sum.Add(b.Position.Mul(b.Rs))
		total += b.Rs
	}
	if total == 0 {
		return mgl64.Vec3{}
	}
	return sum.Mul(1 / total)
}

// Momentum returns the total rs-weighted momentum, conserved by Step
func (s *Simulation) Momentum() mgl64.Vec3 {
	var p mgl64.Vec3
	for _, b := range s.Bodies {
		p = p.Add(b.Velocity.Mul(b.Rs / 2))
	}
	return p
}
