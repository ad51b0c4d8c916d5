package disk

import (
	"math"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/field"
)

// EchoDiscount weights each further crossing of the same ray (photon-ring echoes)
const EchoDiscount = 0.8

// Brightness scales the normalized disk emission before tonemapping
const Brightness = 1.5

// DetectCrossing reports whether the segment before→after crosses the plane
// y = planeY and returns the linearly interpolated crossing point. A segment
// ending exactly on the plane counts; one starting on it does not, so a
// touching pair of steps is counted once.
func DetectCrossing(before, after core.Vec3, planeY float64) (core.Vec3, bool) {
	yb := before.Y - planeY
	ya := after.Y - planeY

	crossed := (yb < 0 && ya > 0) || (yb > 0 && ya < 0) || (ya == 0 && yb != 0)
	if !crossed {
		return core.Vec3{}, false
	}

	t := math.Abs(yb) / (math.Abs(yb) + math.Abs(ya))
	return before.Lerp(after, t), true
}

// Shader computes the emitted color of a disk crossing
type Shader struct {
	DopplerExponent float64
}

// NewShader creates a disk shader for the frame parameters
func NewShader(params core.Params) *Shader {
	return &Shader{DopplerExponent: params.DopplerExponent}
}

// Shade returns the linear color and opacity of the body's disk at the crossing
// point. ok is false when the point lies outside the annulus. direction is the
// ray's propagation direction at the crossing; f supplies the redshift of all bodies.
func (s *Shader) Shade(crossing core.Vec3, body core.Body, direction core.Vec3, f *field.Field, time float64) (color core.Vec3, opacity float64, ok bool) {
	rel := crossing.Subtract(body.Position)
	r := math.Hypot(rel.X, rel.Z)
	if r < body.DiskInner || r > body.DiskOuter || r == 0 {
		return core.Vec3{}, 0, false
	}

	lum := NovikovThorne(r, body.Rs)
	base := Blackbody(Temperature(r, body.DiskInner))
	azimuth := math.Atan2(rel.Z, rel.X)
	detail := Turbulence(r, azimuth, body.Rs, time)

	// Gas orbits counter-clockwise about +Y: velocity direction ŷ × r̂
	orbit := core.NewVec3(rel.Z, 0, -rel.X).Multiply(1.0 / r)
	g := DopplerFactor(OrbitalSpeed(r, body.Rs), orbit.Dot(direction.Normalize()))
	beaming := math.Pow(g, s.DopplerExponent)

	redshift := f.Redshift(crossing)

	intensity := Brightness * lum * detail * beaming * redshift
	color = base.Multiply(intensity)

	fade := EdgeFade(r, body.DiskInner, body.DiskOuter, body.Rs)
	opacity = math.Max(0, math.Min(1, fade*(0.7+0.3*math.Min(lum, 1))))
	return color, opacity, true
}

// Accumulator composites disk crossings front to back
type Accumulator struct {
	Color     core.Vec3
	Opacity   float64
	Crossings int
}

// Add composites one crossing behind everything accumulated so far. Each
// crossing after the first is discounted by EchoDiscount per prior crossing.
// Opacity never exceeds 1.
func (a *Accumulator) Add(color core.Vec3, opacity float64) {
	weight := opacity * math.Pow(EchoDiscount, float64(a.Crossings))
	weight = math.Max(0, math.Min(1, weight))

	remaining := 1.0 - a.Opacity
	a.Color = a.Color.Add(color.Multiply(weight * remaining))
	a.Opacity = math.Min(1, a.Opacity+weight*remaining)
	a.Crossings++
}

// Over blends the accumulated disk over a background color
func (a *Accumulator) Over(background core.Vec3) core.Vec3 {
	return a.Color.Add(background.Multiply(1.0 - a.Opacity))
}

// Reset clears the accumulator for the next ray
func (a *Accumulator) Reset() {
	*a = Accumulator{}
}

// Tracker is the integrator step observer that finds and shades disk crossings
// for every body in the field. A Tracker is reused across rays by one worker and
// is not safe for concurrent use.
type Tracker struct {
	Accumulator

	shader *Shader
	field  *field.Field
	time   float64
}

// NewTracker creates a crossing tracker for one frame
func NewTracker(shader *Shader, f *field.Field, time float64) *Tracker {
	return &Tracker{
		shader: shader,
		field:  f,
		time:   time,
	}
}

// ObserveStep checks the step against every body's equatorial plane
func (t *Tracker) ObserveStep(before, after, direction core.Vec3) {
	bodies := t.field.Bodies()
	for i := range bodies {
		b := &bodies[i]
		crossing, ok := DetectCrossing(before, after, b.Position.Y)
		if !ok {
			continue
		}
		color, opacity, hit := t.shader.Shade(crossing, *b, direction, t.field, t.time)
		if !hit {
			continue
		}
		t.Add(color, opacity)
	}
}
