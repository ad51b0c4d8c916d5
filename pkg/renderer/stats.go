package renderer

import (
	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/integrator"
)

// RenderStats contains statistics about the rendering process
type RenderStats struct {
	TotalPixels    int     // Total number of pixels rendered
	TotalSamples   int     // Total number of samples taken
	AverageSamples float64 // Average samples per pixel
	MaxSamples     int     // Maximum samples allowed per pixel
	MinSamples     int     // Minimum samples taken per pixel
	MaxSamplesUsed int     // Maximum samples actually used by any pixel
	MeanLuminance  float64 // Mean linear luminance before exposure and tonemapping

	Outcomes OutcomeCounts // Ray fates over every sample taken
}

// OutcomeCounts tallies how traced rays terminated
type OutcomeCounts struct {
	Captured  int // Rays that fell into a horizon or resolved captured on exhaustion
	Escaped   int // Rays that escaped or resolved escaped on exhaustion
	Exhausted int // Rays resolved by the directional tie-break
	DiskHits  int // Rays that crossed at least one disk annulus
}

// Record adds one traced sample
func (o *OutcomeCounts) Record(s Sample) {
	if s.Result.Outcome == integrator.Escaped {
		o.Escaped++
	} else {
		o.Captured++
	}
	if s.Result.Termination == integrator.TerminatedExhausted {
		o.Exhausted++
	}
	if s.DiskCrossings > 0 {
		o.DiskHits++
	}
}

// Merge adds another tally into this one
func (o *OutcomeCounts) Merge(other OutcomeCounts) {
	o.Captured += other.Captured
	o.Escaped += other.Escaped
	o.Exhausted += other.Exhausted
	o.DiskHits += other.DiskHits
}

// Total returns the number of recorded rays
func (o OutcomeCounts) Total() int {
	return o.Captured + o.Escaped
}

// PixelStats tracks sampling statistics for a single pixel
type PixelStats struct {
	ColorAccum       core.Vec3 // Linear RGB accumulator
	LuminanceAccum   float64   // Luminance accumulator for convergence
	LuminanceSqAccum float64   // Luminance squared for variance
	SampleCount      int       // Number of samples taken
}

// AddSample adds a new linear color sample to the pixel statistics
func (ps *PixelStats) AddSample(color core.Vec3) {
	ps.ColorAccum = ps.ColorAccum.Add(color)
	luminance := color.Luminance()
	ps.LuminanceAccum += luminance
	ps.LuminanceSqAccum += luminance * luminance
	ps.SampleCount++
}

// GetColor returns the current average linear color for this pixel
func (ps *PixelStats) GetColor() core.Vec3 {
	if ps.SampleCount == 0 {
		return core.Vec3{X: 0, Y: 0, Z: 0}
	}
	return ps.ColorAccum.Multiply(1.0 / float64(ps.SampleCount))
}
