// Package compositor turns a traced ray's outcome into a displayable color.
package compositor

import (
	"math"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/disk"
	"github.com/df07/go-spacetime-raytracer/pkg/integrator"
	"github.com/df07/go-spacetime-raytracer/pkg/overlay"
)

// DisplayGamma is the display curve applied when gamma encoding is enabled
const DisplayGamma = 2.2

// ACES filmic fit constants
const (
	acesA = 2.51
	acesB = 0.03
	acesC = 2.43
	acesD = 0.59
	acesE = 0.14
)

// Compose returns the linear color of a ray. Escaped rays show the background
// behind the disk; captured rays show only the disk. The overlay, when present,
// is laid over the result.
func Compose(result integrator.Result, acc *disk.Accumulator, background core.Vec3, grid *overlay.Accumulator) core.Vec3 {
	var color core.Vec3
	if result.Outcome == integrator.Escaped {
		color = background
		if acc != nil {
			color = acc.Over(background)
		}
	} else if acc != nil {
		color = acc.Color
	}

	if grid != nil {
		color = grid.Over(color)
	}
	return color
}

// ACES applies the filmic rational tonemap curve to one channel, clamped to [0, 1]
func ACES(x float64) float64 {
	if !(x > 0) {
		return 0
	}
	// The curve saturates above 1 long before x² would overflow
	if x > 1e6 {
		return 1
	}
	y := (x * (acesA*x + acesB)) / (x*(acesC*x+acesD) + acesE)
	return math.Max(0, math.Min(1, y))
}

// Tonemap applies ACES per channel
func Tonemap(c core.Vec3) core.Vec3 {
	return core.NewVec3(ACES(c.X), ACES(c.Y), ACES(c.Z))
}

// Finisher maps linear colors to output values. Gamma is applied only when
// EncodeGamma is set; linear destinations such as EXR leave it off.
type Finisher struct {
	Exposure    float64
	EncodeGamma bool
}

// NewFinisher creates a finisher from frame parameters
func NewFinisher(params core.Params) Finisher {
	return Finisher{
		Exposure:    params.Exposure,
		EncodeGamma: params.EncodeGamma,
	}
}

// Finish exposes, tonemaps and optionally gamma-encodes a linear color
func (f Finisher) Finish(linear core.Vec3) core.Vec3 {
	exposure := f.Exposure
	if !(exposure > 0) {
		exposure = 1
	}
	out := Tonemap(linear.Multiply(exposure))
	if f.EncodeGamma {
		out = out.GammaCorrect(DisplayGamma)
	}
	return out
}
