// Package field evaluates the linearized multi-body gravitational model that
// bends light rays: summed accelerations, capture and escape predicates, and
// the gravitational redshift seen at a point.
package field

import (
	"math"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

// RedshiftFloor keeps the redshift square root real inside a horizon
const RedshiftFloor = 1e-4

// Field is a read-only view over one frame's bodies
type Field struct {
	bodies       []core.Body
	escapeRadius float64
}

// New creates a field over a snapshot of bodies. The slice is borrowed, not copied,
// and must not be mutated while the frame renders.
func New(bodies []core.Body, escapeRadius float64) *Field {
	return &Field{
		bodies:       bodies,
		escapeRadius: escapeRadius,
	}
}

// Bodies returns the borrowed body snapshot
func (f *Field) Bodies() []core.Body {
	return f.bodies
}

// NumBodies returns the number of bodies in the field
func (f *Field) NumBodies() int {
	return len(f.bodies)
}

// EscapeRadius returns the distance that must separate a ray from every body to escape
func (f *Field) EscapeRadius() float64 {
	return f.escapeRadius
}

// Acceleration returns the summed light-bending acceleration
//
//	a = Σ -1.5 rs / r^5 |d × v|^2 d,   d = pos - body
//
// Bodies closer than half their Schwarzschild radius are skipped; the ray is
// about to be classified captured anyway.
func (f *Field) Acceleration(pos, vel core.Vec3) core.Vec3 {
	var accel core.Vec3
	for i := range f.bodies {
		b := &f.bodies[i]
		d := pos.Subtract(b.Position)
		r2 := d.LengthSquared()
		if r2 < 0.25*b.Rs*b.Rs {
			continue
		}
		r := math.Sqrt(r2)
		h2 := d.Cross(vel).LengthSquared()
		r5 := r2 * r2 * r
		accel = accel.Add(d.Multiply(-1.5 * b.Rs * h2 / r5))
	}
	return accel
}

// Captured returns the index of the first body whose horizon contains pos
func (f *Field) Captured(pos core.Vec3) (int, bool) {
	for i := range f.bodies {
		b := &f.bodies[i]
		if pos.Subtract(b.Position).LengthSquared() < b.Rs*b.Rs {
			return i, true
		}
	}
	return -1, false
}

// Escaped reports whether pos is at least the escape radius from every body.
// The conjunction over all bodies is the escape policy; a ray must clear the
// whole system, not just its nearest neighbor.
func (f *Field) Escaped(pos core.Vec3) bool {
	r2 := f.escapeRadius * f.escapeRadius
	for i := range f.bodies {
		if pos.Subtract(f.bodies[i].Position).LengthSquared() < r2 {
			return false
		}
	}
	return true
}

// Escaping reports whether a ray at pos moving along vel has left the system:
// beyond the escape radius of every body and moving away from all of them.
// A ray that starts far out but is headed inward has not escaped.
func (f *Field) Escaping(pos, vel core.Vec3) bool {
	return f.Escaped(pos) && f.MovingAwayFromAll(pos, vel)
}

// EscapeEntry returns the distance along the unit direction dir at which a ray
// from origin first comes within the escape radius of some body. A ray already
// inside enters at 0; ok is false when the ray misses every escape sphere.
func (f *Field) EscapeEntry(origin, dir core.Vec3) (float64, bool) {
	if !f.Escaped(origin) {
		return 0, true
	}

	r2 := f.escapeRadius * f.escapeRadius
	best, ok := math.Inf(1), false
	for i := range f.bodies {
		oc := origin.Subtract(f.bodies[i].Position)
		b := oc.Dot(dir)
		disc := b*b - (oc.LengthSquared() - r2)
		if disc < 0 {
			continue
		}
		root := math.Sqrt(disc)
		if -b+root < 0 {
			continue // sphere is behind the ray
		}
		if t := math.Max(0, -b-root); t < best {
			best, ok = t, true
		}
	}
	return best, ok
}

// MovingAwayFromAll reports whether vel points away from (or tangent to) every body
func (f *Field) MovingAwayFromAll(pos, vel core.Vec3) bool {
	for i := range f.bodies {
		if vel.Dot(pos.Subtract(f.bodies[i].Position)) < 0 {
			return false
		}
	}
	return true
}

// Redshift returns sqrt(max(1 - Σ rs_i/d_i, floor)) summed over all bodies
func (f *Field) Redshift(pos core.Vec3) float64 {
	potential := 0.0
	for i := range f.bodies {
		b := &f.bodies[i]
		d := pos.Subtract(b.Position).Length()
		potential += b.Rs / max(d, 1e-9)
	}
	return math.Sqrt(max(1.0-potential, RedshiftFloor))
}

// OrbitRHS is the right-hand side of the single-body photon orbit equation
//
//	d²u/dφ² = -u + 1.5 rs u²
//
// written as the first-order system (u' = w, w' = -u + 1.5 rs u²).
func OrbitRHS(rs, u, w float64) (du, dw float64) {
	return w, -u + 1.5*rs*u*u
}
