package integrator

import (
	"math"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/field"
)

// radialEpsilon is the tangential speed below which a ray counts as radial
const radialEpsilon = 1e-9

// Reduced integrates the exact single-body photon orbit equation in its orbital
// plane. The state is (u, w) = (1/r, du/dφ) and the independent variable is the
// orbital angle φ, so StepSize is an angular step.
type Reduced struct {
	field    *field.Field
	body     core.Body
	stepSize float64
	maxSteps int
	fallback *General
}

// NewReduced creates a reduced integrator over the first body of the field
func NewReduced(f *field.Field, stepSize float64, maxSteps int) *Reduced {
	return &Reduced{
		field:    f,
		body:     f.Bodies()[0],
		stepSize: stepSize,
		maxSteps: maxSteps,
		fallback: NewGeneral(f, stepSize, maxSteps),
	}
}

// orbitPlane holds the fixed in-plane basis of one trace
type orbitPlane struct {
	center  core.Vec3
	radial  core.Vec3 // Unit vector from the body to the ray origin
	tangent core.Vec3 // Unit in-plane vector perpendicular to radial, along the motion
}

// at returns the unit radial direction at orbital angle phi
func (p orbitPlane) at(phi float64) core.Vec3 {
	s, c := math.Sincos(phi)
	return p.radial.Multiply(c).Add(p.tangent.Multiply(s))
}

// position converts (u, phi) back to world space
func (p orbitPlane) position(u, phi float64) core.Vec3 {
	return p.center.Add(p.at(phi).Multiply(1.0 / u))
}

// direction is the unit world-space propagation direction d(pos)/dφ
func (p orbitPlane) direction(u, w, phi float64) core.Vec3 {
	s, c := math.Sincos(phi)
	eR := p.radial.Multiply(c).Add(p.tangent.Multiply(s))
	ePhi := p.radial.Multiply(-s).Add(p.tangent.Multiply(c))
	return ePhi.Multiply(u).Subtract(eR.Multiply(w)).Normalize()
}

// Trace follows the ray in its orbital plane. A ray aimed straight at or away
// from the body has no orbital plane; it stays on its line and is handed to the
// general integrator, whose acceleration vanishes for radial motion.
func (r *Reduced) Trace(ray core.Ray, obs StepObserver) Result {
	dir := ray.Direction.Normalize()
	origin, ok := approach(r.field, ray.Origin, dir)
	if !ok {
		return escaped(ray.Origin, dir, 0)
	}
	rel := origin.Subtract(r.body.Position)
	dist := rel.Length()
	if dist == 0 {
		return captured(origin, dir, 0, 0)
	}

	radial := rel.Multiply(1.0 / dist)
	vr := dir.Dot(radial)
	tvec := dir.Subtract(radial.Multiply(vr))
	vt := tvec.Length()
	if vt < radialEpsilon {
		return r.fallback.Trace(core.NewRay(origin, dir), obs)
	}

	plane := orbitPlane{
		center:  r.body.Position,
		radial:  radial,
		tangent: tvec.Multiply(1.0 / vt),
	}

	u := 1.0 / dist
	w := -u * vr / vt
	phi := 0.0
	pos := origin
	h := r.stepSize

	for step := 0; step < r.maxSteps; step++ {
		if idx, ok := r.field.Captured(pos); ok {
			return captured(pos, plane.direction(u, w, phi), idx, step)
		}
		if w <= 0 && r.field.Escaped(pos) {
			return escaped(pos, plane.direction(u, w, phi), step)
		}

		nu, nw := r.step(u, w)
		if nu <= 0 {
			// The orbit reached infinity inside this step; exit along the asymptote
			phiInf := phi + h*u/(u-nu)
			exit := plane.at(phiInf)
			end := plane.center.Add(exit.Multiply(r.field.EscapeRadius()))
			if obs != nil {
				obs.ObserveStep(pos, end, exit)
			}
			return escaped(end, exit, step+1)
		}

		nphi := phi + h
		next := plane.position(nu, nphi)
		if obs != nil {
			obs.ObserveStep(pos, next, plane.direction(nu, nw, nphi))
		}
		u, w, phi, pos = nu, nw, nphi, next
	}

	if idx, ok := r.field.Captured(pos); ok {
		return captured(pos, plane.direction(u, w, phi), idx, r.maxSteps)
	}
	if w <= 0 && r.field.Escaped(pos) {
		return escaped(pos, plane.direction(u, w, phi), r.maxSteps)
	}

	// w ≤ 0 means r is not decreasing: the single-body form of moving away
	outcome := Captured
	if w <= 0 {
		outcome = Escaped
	}
	return Result{
		Outcome:       outcome,
		Termination:   TerminatedExhausted,
		ExitDirection: plane.direction(u, w, phi),
		Position:      pos,
		BodyIndex:     -1,
		Steps:         r.maxSteps,
	}
}

// step performs one RK4 step of the orbit equation in φ
func (r *Reduced) step(u, w float64) (float64, float64) {
	h := r.stepSize
	rs := r.body.Rs

	k1u, k1w := field.OrbitRHS(rs, u, w)
	k2u, k2w := field.OrbitRHS(rs, u+0.5*h*k1u, w+0.5*h*k1w)
	k3u, k3w := field.OrbitRHS(rs, u+0.5*h*k2u, w+0.5*h*k2w)
	k4u, k4w := field.OrbitRHS(rs, u+h*k3u, w+h*k3w)

	nu := u + h/6.0*(k1u+2*k2u+2*k3u+k4u)
	nw := w + h/6.0*(k1w+2*k2w+2*k3w+k4w)
	return nu, nw
}
