// Package overlay samples a flat-space 3D grid along the bent ray, so the
// lattice appears distorted exactly as much as spacetime bends the light.
package overlay

import (
	"math"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

// Grid defaults. Samples are taken every DefaultSampleSpacing of world-space
// path, half a line width, whatever the integrator's step length.
const (
	DefaultSpacing       = 1.0
	DefaultWidth         = 0.04
	DefaultSampleSpacing = DefaultWidth / 2
	DefaultStepOpacity   = 0.004
	DefaultExtent        = 20.0
)

// GridStrength returns the 0-1 line strength of an axis-aligned grid with the
// given spacing at pos. Each line family (parallel to X, Y or Z) is measured by
// the distance to its nearest line; the strongest family wins.
func GridStrength(pos core.Vec3, spacing, width float64) float64 {
	if spacing <= 0 || width <= 0 {
		return 0
	}

	dx := lineOffset(pos.X, spacing)
	dy := lineOffset(pos.Y, spacing)
	dz := lineOffset(pos.Z, spacing)

	alongX := math.Hypot(dy, dz)
	alongY := math.Hypot(dx, dz)
	alongZ := math.Hypot(dx, dy)

	nearest := math.Min(alongX, math.Min(alongY, alongZ))
	return 1.0 - smoothstep(0, width, nearest)
}

// lineOffset is the distance from v to the nearest multiple of spacing
func lineOffset(v, spacing float64) float64 {
	return math.Abs(v - spacing*math.Round(v/spacing))
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := math.Max(0, math.Min(1, (x-edge0)/(edge1-edge0)))
	return t * t * (3 - 2*t)
}

// Accumulator composites grid samples front to back along one ray.
// It implements the integrator step observer.
type Accumulator struct {
	Spacing       float64
	Width         float64
	SampleSpacing float64 // World-space path length between samples
	StepOpacity   float64 // Opacity of one sample on a line
	Extent        float64 // Samples outside this cube around the origin are ignored
	LineColor     core.Vec3

	Color   core.Vec3
	Opacity float64

	next float64 // Path distance from the start of the next segment to its first sample
}

// NewAccumulator creates an accumulator with the default grid
func NewAccumulator() *Accumulator {
	return &Accumulator{
		Spacing:       DefaultSpacing,
		Width:         DefaultWidth,
		SampleSpacing: DefaultSampleSpacing,
		StepOpacity:   DefaultStepOpacity,
		Extent:        DefaultExtent,
		LineColor:     core.NewVec3(0.2, 0.9, 1.0),
	}
}

// Sample adds the grid strength at pos with the per-step opacity
func (a *Accumulator) Sample(pos core.Vec3) {
	if math.Abs(pos.X) > a.Extent || math.Abs(pos.Y) > a.Extent || math.Abs(pos.Z) > a.Extent {
		return
	}
	alpha := a.StepOpacity * GridStrength(pos, a.Spacing, a.Width)
	if alpha <= 0 {
		return
	}
	remaining := 1.0 - a.Opacity
	a.Color = a.Color.Add(a.LineColor.Multiply(alpha * remaining))
	a.Opacity = math.Min(1, a.Opacity+alpha*remaining)
}

// ObserveStep marches the step's chord at SampleSpacing. The sample phase
// carries over between steps, so the grid sees the same path density whether
// the integrator takes many short steps or a few long ones.
func (a *Accumulator) ObserveStep(before, after, direction core.Vec3) {
	seg := after.Subtract(before)
	length := seg.Length()
	if a.SampleSpacing <= 0 || !(length > 0) || math.IsInf(length, 0) || a.Opacity >= 1 {
		return
	}

	next := a.next
	if t0, t1, ok := a.clip(before, seg); ok {
		t0, t1 = t0*length, t1*length
		if next < t0 {
			next += math.Ceil((t0-next)/a.SampleSpacing) * a.SampleSpacing
		}
		dir := seg.Multiply(1.0 / length)
		for ; next <= t1; next += a.SampleSpacing {
			a.Sample(before.Add(dir.Multiply(next)))
		}
	}
	if next < length {
		next += math.Ceil((length-next)/a.SampleSpacing) * a.SampleSpacing
	}
	a.next = next - length
}

// clip returns the parameter range [t0, t1] of origin + t*seg, t in [0, 1],
// that lies inside the extent cube
func (a *Accumulator) clip(origin, seg core.Vec3) (float64, float64, bool) {
	t0, t1 := 0.0, 1.0
	o := [3]float64{origin.X, origin.Y, origin.Z}
	d := [3]float64{seg.X, seg.Y, seg.Z}
	for i := range o {
		if d[i] == 0 {
			if math.Abs(o[i]) > a.Extent {
				return 0, 0, false
			}
			continue
		}
		ta := (-a.Extent - o[i]) / d[i]
		tb := (a.Extent - o[i]) / d[i]
		if ta > tb {
			ta, tb = tb, ta
		}
		t0 = math.Max(t0, ta)
		t1 = math.Min(t1, tb)
		if t0 > t1 {
			return 0, 0, false
		}
	}
	return t0, t1, true
}

// Over composites the accumulated grid over a color
func (a *Accumulator) Over(color core.Vec3) core.Vec3 {
	return a.Color.Add(color.Multiply(1.0 - a.Opacity))
}

// Reset clears the accumulated color, keeping the grid settings
func (a *Accumulator) Reset() {
	a.Color = core.Vec3{}
	a.Opacity = 0
	a.next = 0
}
