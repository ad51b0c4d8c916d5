package renderer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/integrator"
)

// singleBodyFrame is one rs=1 body at the origin seen from (0,0,10) with a 90 degree field of view
func singleBodyFrame(width, height int) core.Frame {
	params := core.DefaultParams()
	params.StepSize = 0.05
	params.MaxSteps = 600
	params.DiskEnabled = false
	params.BackgroundMode = core.BackgroundCheckerboard

	return core.Frame{
		Camera: lookDownZ(),
		Width:  width,
		Height: height,
		FOV:    math.Pi / 2,
		Bodies: []core.Body{core.NewBody(core.Vec3{}, 1.0, 3.0, 12.0)},
		Params: params,
	}
}

func TestTracePixel_CenterIsCaptured(t *testing.T) {
	frame := singleBodyFrame(65, 65)
	require.NoError(t, frame.Validate())

	color, sample := TracePixel(frame, 32, 32)

	assert.Equal(t, integrator.Captured, sample.Result.Outcome)
	assert.Equal(t, integrator.TerminatedCapture, sample.Result.Termination)
	assert.Equal(t, core.Vec3{}, color, "a captured ray with no disk is black")
}

func TestTracePixel_CameraBeyondEscapeRadius(t *testing.T) {
	frame := singleBodyFrame(65, 65)
	frame.Params.StepSize = 0.1
	frame.Params.MaxSteps = 1000

	cam := NewOrbitalCamera(MaxDistance, 0, math.Pi/2)
	require.Greater(t, cam.Distance, frame.Params.EscapeRadius)
	frame.Camera = cam.Basis()
	frame.FOV = cam.FOV
	require.NoError(t, frame.Validate())

	_, center := TracePixel(frame, 32, 32)
	assert.Equal(t, integrator.Captured, center.Result.Outcome)
	assert.Equal(t, integrator.TerminatedCapture, center.Result.Termination)

	_, corner := TracePixel(frame, 0, 0)
	assert.Equal(t, integrator.Escaped, corner.Result.Outcome)
}

func TestTracer_ImpactParameterFiveEscapes(t *testing.T) {
	frame := singleBodyFrame(64, 64)
	camera := NewCamera(frame.Camera, frame.Width, frame.Height, frame.FOV)
	tracer := NewTracer(frame)

	// 30 degrees off axis from distance 10 is an impact parameter of 5
	px := float64(frame.Width) / 2 * (1 + math.Tan(math.Pi/6))
	ray := camera.GetRay(px, float64(frame.Height)/2)
	require.InDelta(t, math.Pi/6, ray.Direction.AngleTo(frame.Camera.Forward), 1e-9)

	sample := tracer.TraceRay(ray)
	require.Equal(t, integrator.Escaped, sample.Result.Outcome)

	// Bent toward the body but not wrapped around it
	deflection := ray.Direction.AngleTo(sample.Result.ExitDirection)
	assert.Greater(t, deflection, 0.1)
	assert.Less(t, deflection, 1.0)

	// Escaped against the checkerboard: one of its two cell colors
	assert.Greater(t, sample.Color.Luminance(), 0.0)
}

func TestTracer_FinishedColorsAreBounded(t *testing.T) {
	frame := singleBodyFrame(24, 24)
	frame.Params.DiskEnabled = true
	frame.Params.OverlayEnabled = true
	frame.Params.BackgroundMode = core.BackgroundStarfield
	frame.Params.Exposure = 4.0

	camera := NewCamera(frame.Camera, frame.Width, frame.Height, frame.FOV)
	tracer := NewTracer(frame)

	for j := 0; j < frame.Height; j++ {
		for i := 0; i < frame.Width; i++ {
			sample := tracer.TraceRay(camera.PixelCenterRay(i, j))
			assert.True(t, sample.Color.IsFinite(), "pixel (%d,%d) linear color %v", i, j, sample.Color)

			c := tracer.Finish(sample.Color)
			for _, v := range []float64{c.X, c.Y, c.Z} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	}
}

func TestTracer_DiskSeenEdgeOn(t *testing.T) {
	frame := singleBodyFrame(65, 65)
	frame.Params.DiskEnabled = true
	camera := NewCamera(frame.Camera, frame.Width, frame.Height, frame.FOV)
	tracer := NewTracer(frame)

	// The camera sits in the disk plane. Rays just below the midline that pass
	// close to the horizon are bent back up through the far side of the disk.
	hits := 0
	for i := 0; i < frame.Width; i++ {
		ray := camera.GetRay(float64(i)+0.5, float64(frame.Height)/2+0.25)
		if tracer.TraceRay(ray).DiskCrossings > 0 {
			hits++
		}
	}
	assert.Greater(t, hits, 0)
}

func TestTracer_ReusedAcrossRays(t *testing.T) {
	frame := singleBodyFrame(32, 32)
	frame.Params.DiskEnabled = true
	frame.Params.OverlayEnabled = true
	camera := NewCamera(frame.Camera, frame.Width, frame.Height, frame.FOV)
	tracer := NewTracer(frame)

	ray := camera.PixelCenterRay(5, 16)
	first := tracer.TraceRay(ray)

	// Trace other rays in between; per-ray accumulators must not leak
	tracer.TraceRay(camera.PixelCenterRay(16, 16))
	tracer.TraceRay(camera.PixelCenterRay(30, 2))

	assert.Equal(t, first, tracer.TraceRay(ray))
}

func TestOutcomeCounts(t *testing.T) {
	var counts OutcomeCounts
	counts.Record(Sample{Result: integrator.Result{Outcome: integrator.Captured, Termination: integrator.TerminatedCapture}})
	counts.Record(Sample{Result: integrator.Result{Outcome: integrator.Escaped, Termination: integrator.TerminatedEscape}, DiskCrossings: 2})
	counts.Record(Sample{Result: integrator.Result{Outcome: integrator.Escaped, Termination: integrator.TerminatedExhausted}})

	assert.Equal(t, OutcomeCounts{Captured: 1, Escaped: 2, Exhausted: 1, DiskHits: 1}, counts)
	assert.Equal(t, 3, counts.Total())

	var merged OutcomeCounts
	merged.Merge(counts)
	merged.Merge(counts)
	assert.Equal(t, 6, merged.Total())
	assert.Equal(t, 2, merged.DiskHits)
}
