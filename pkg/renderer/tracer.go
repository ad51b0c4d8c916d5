package renderer

import (
	"github.com/df07/go-spacetime-raytracer/pkg/background"
	"github.com/df07/go-spacetime-raytracer/pkg/compositor"
	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/disk"
	"github.com/df07/go-spacetime-raytracer/pkg/field"
	"github.com/df07/go-spacetime-raytracer/pkg/integrator"
	"github.com/df07/go-spacetime-raytracer/pkg/overlay"
)

// Sample is the result of tracing one primary ray
type Sample struct {
	Color         core.Vec3 // Linear color before exposure and tonemapping
	Result        integrator.Result
	DiskCrossings int
}

// Tracer evaluates the per-pixel pipeline: integrate the ray, shade disk
// crossings and overlay samples along the way, then composite against the
// background. The frame it reads is immutable; the per-ray accumulators are
// not, so each worker owns its own Tracer.
type Tracer struct {
	field      *field.Field
	integrator integrator.Integrator
	background background.Mapper
	finisher   compositor.Finisher
	tracker    *disk.Tracker        // nil when the disk is disabled
	grid       *overlay.Accumulator // nil when the overlay is disabled
	observer   integrator.StepObserver
}

// NewTracer creates a tracer for a validated frame. The integrator variant is
// chosen here, once per frame, by body count.
func NewTracer(frame core.Frame) *Tracer {
	params := frame.Params
	f := field.New(frame.Bodies, params.EscapeRadius)

	t := &Tracer{
		field:      f,
		integrator: integrator.New(f, params),
		background: background.New(params.BackgroundMode),
		finisher:   compositor.NewFinisher(params),
	}

	var observers integrator.Observers
	if params.DiskEnabled {
		t.tracker = disk.NewTracker(disk.NewShader(params), f, params.Time)
		observers = append(observers, t.tracker)
	}
	if params.OverlayEnabled {
		t.grid = overlay.NewAccumulator()
		observers = append(observers, t.grid)
	}

	switch len(observers) {
	case 0:
	case 1:
		t.observer = observers[0]
	default:
		t.observer = observers
	}
	return t
}

// TraceRay returns the linear color and fate of one ray
func (t *Tracer) TraceRay(ray core.Ray) Sample {
	var acc *disk.Accumulator
	if t.tracker != nil {
		t.tracker.Reset()
		acc = &t.tracker.Accumulator
	}
	if t.grid != nil {
		t.grid.Reset()
	}

	res := t.integrator.Trace(ray, t.observer)

	var bg core.Vec3
	if res.Outcome == integrator.Escaped {
		bg = background.SampleDirection(t.background, res.ExitDirection)
	}

	sample := Sample{
		Color:  compositor.Compose(res, acc, bg, t.grid),
		Result: res,
	}
	if acc != nil {
		sample.DiskCrossings = acc.Crossings
	}
	return sample
}

// Finish converts a linear color to the frame's output encoding
func (t *Tracer) Finish(linear core.Vec3) core.Vec3 {
	return t.finisher.Finish(linear)
}

// TracePixel traces the center of pixel (i, j) of a frame and returns the
// finished color. It builds a fresh tracer, so it suits tests and probes
// rather than full renders.
func TracePixel(frame core.Frame, i, j int) (core.Vec3, Sample) {
	camera := NewCamera(frame.Camera, frame.Width, frame.Height, frame.FOV)
	tracer := NewTracer(frame)
	sample := tracer.TraceRay(camera.PixelCenterRay(i, j))
	return tracer.Finish(sample.Color), sample
}
