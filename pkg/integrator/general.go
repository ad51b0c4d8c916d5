package integrator

import (
	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/field"
)

// General integrates (position, velocity) through the summed multi-body field
// with a fixed-step classical RK4 scheme.
type General struct {
	field    *field.Field
	stepSize float64
	maxSteps int
}

// NewGeneral creates a general 3D integrator
func NewGeneral(f *field.Field, stepSize float64, maxSteps int) *General {
	return &General{
		field:    f,
		stepSize: stepSize,
		maxSteps: maxSteps,
	}
}

// Trace advances the ray until a termination predicate fires or steps run out.
// Predicates are checked before every step in priority order capture, escape.
// A ray escapes once it is beyond the escape radius and moving away from every body.
func (g *General) Trace(ray core.Ray, obs StepObserver) Result {
	vel := ray.Direction.Normalize()
	pos, ok := approach(g.field, ray.Origin, vel)
	if !ok {
		return escaped(ray.Origin, vel, 0)
	}

	for step := 0; step < g.maxSteps; step++ {
		if idx, ok := g.field.Captured(pos); ok {
			return captured(pos, vel, idx, step)
		}
		if g.field.Escaping(pos, vel) {
			return escaped(pos, vel, step)
		}

		nextPos, nextVel := g.step(pos, vel)
		if obs != nil {
			obs.ObserveStep(pos, nextPos, nextVel)
		}
		pos, vel = nextPos, nextVel
	}

	// The predicates get one last look at the final state before the tie-break
	if idx, ok := g.field.Captured(pos); ok {
		return captured(pos, vel, idx, g.maxSteps)
	}
	if g.field.Escaping(pos, vel) {
		return escaped(pos, vel, g.maxSteps)
	}
	return tieBreak(g.field, pos, vel, g.maxSteps)
}

// step performs one RK4 step of x' = v, v' = a(x, v)
func (g *General) step(x, v core.Vec3) (core.Vec3, core.Vec3) {
	h := g.stepSize
	half := 0.5 * h

	k1x := v
	k1v := g.field.Acceleration(x, v)

	k2x := v.Add(k1v.Multiply(half))
	k2v := g.field.Acceleration(x.Add(k1x.Multiply(half)), k2x)

	k3x := v.Add(k2v.Multiply(half))
	k3v := g.field.Acceleration(x.Add(k2x.Multiply(half)), k3x)

	k4x := v.Add(k3v.Multiply(h))
	k4v := g.field.Acceleration(x.Add(k3x.Multiply(h)), k4x)

	sixth := h / 6.0
	nextX := x.Add(k1x.Add(k2x.Multiply(2)).Add(k3x.Multiply(2)).Add(k4x).Multiply(sixth))
	nextV := v.Add(k1v.Add(k2v.Multiply(2)).Add(k3v.Multiply(2)).Add(k4v).Multiply(sixth))
	return nextX, nextV
}
