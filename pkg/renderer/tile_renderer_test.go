package renderer

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

func newTestPixelStats(width, height int) [][]PixelStats {
	pixelStats := make([][]PixelStats, height)
	for y := range pixelStats {
		pixelStats[y] = make([]PixelStats, width)
	}
	return pixelStats
}

func TestRenderTileBounds_FirstSampleIsPixelCenter(t *testing.T) {
	frame := singleBodyFrame(16, 16)
	frame.Params.DiskEnabled = true
	camera := NewCamera(frame.Camera, frame.Width, frame.Height, frame.FOV)
	tr := NewTileRenderer(camera, NewTracer(frame), DefaultSamplingConfig())

	pixelStats := newTestPixelStats(frame.Width, frame.Height)
	bounds := image.Rect(0, 0, frame.Width, frame.Height)
	stats := tr.RenderTileBounds(bounds, pixelStats, core.CenterSampler{}, 1)

	assert.Equal(t, frame.Width*frame.Height, stats.TotalSamples)
	assert.Equal(t, 1.0, stats.AverageSamples)

	reference := NewTracer(frame)
	for j := 0; j < frame.Height; j++ {
		for i := 0; i < frame.Width; i++ {
			expected := reference.TraceRay(camera.PixelCenterRay(i, j)).Color
			assert.Equal(t, expected, pixelStats[j][i].GetColor(), "pixel (%d,%d)", i, j)
		}
	}
}

func TestRenderTileBounds_OnlyTouchesBounds(t *testing.T) {
	frame := singleBodyFrame(16, 16)
	camera := NewCamera(frame.Camera, frame.Width, frame.Height, frame.FOV)
	tr := NewTileRenderer(camera, NewTracer(frame), DefaultSamplingConfig())

	pixelStats := newTestPixelStats(frame.Width, frame.Height)
	bounds := image.Rect(4, 8, 12, 16)
	stats := tr.RenderTileBounds(bounds, pixelStats, core.NewSeededSampler(7), 4)

	assert.Equal(t, bounds.Dx()*bounds.Dy(), stats.TotalPixels)
	assert.Equal(t, stats.TotalSamples, stats.Outcomes.Total())

	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			inside := image.Pt(x, y).In(bounds)
			if inside {
				assert.GreaterOrEqual(t, pixelStats[y][x].SampleCount, 1)
				assert.LessOrEqual(t, pixelStats[y][x].SampleCount, 4)
			} else {
				assert.Equal(t, 0, pixelStats[y][x].SampleCount, "pixel (%d,%d) outside tile", x, y)
			}
		}
	}
}

func TestRenderTileBounds_ContinuesAcrossPasses(t *testing.T) {
	frame := singleBodyFrame(8, 8)
	camera := NewCamera(frame.Camera, frame.Width, frame.Height, frame.FOV)
	sampling := SamplingConfig{AdaptiveMinSamples: 1.0, AdaptiveThreshold: 0}
	tr := NewTileRenderer(camera, NewTracer(frame), sampling)

	pixelStats := newTestPixelStats(frame.Width, frame.Height)
	bounds := image.Rect(0, 0, frame.Width, frame.Height)
	random := core.NewSeededSampler(3)

	first := tr.RenderTileBounds(bounds, pixelStats, random, 2)
	second := tr.RenderTileBounds(bounds, pixelStats, random, 5)

	// Adaptive stopping is disabled, so every pixel reaches the target exactly
	assert.Equal(t, 2*64, first.TotalSamples)
	assert.Equal(t, 3*64, second.TotalSamples)
	for y := range pixelStats {
		for x := range pixelStats[y] {
			assert.Equal(t, 5, pixelStats[y][x].SampleCount)
		}
	}
}

func TestShouldStopSampling(t *testing.T) {
	tr := &TileRenderer{sampling: DefaultSamplingConfig()}

	constant := PixelStats{}
	for i := 0; i < 4; i++ {
		constant.AddSample(testColor(0.5))
	}

	noisy := PixelStats{}
	for i := 0; i < 4; i++ {
		noisy.AddSample(testColor(float64(i % 2)))
	}

	black := PixelStats{}
	for i := 0; i < 4; i++ {
		black.AddSample(testColor(0))
	}

	single := PixelStats{}
	single.AddSample(testColor(0.5))

	tests := []struct {
		name       string
		stats      PixelStats
		maxSamples int
		expected   bool
	}{
		{"converged constant pixel", constant, 8, true},
		{"noisy pixel keeps sampling", noisy, 8, false},
		{"black pixel converges", black, 8, true},
		{"single sample never stops", single, 1, false},
		{"below minimum samples", constant, 32, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tr.shouldStopSampling(&tt.stats, tt.maxSamples))
		})
	}
}

func TestPixelStats(t *testing.T) {
	var ps PixelStats
	assert.Equal(t, testColor(0), ps.GetColor())

	ps.AddSample(testColor(0.2))
	ps.AddSample(testColor(0.6))

	assert.Equal(t, 2, ps.SampleCount)
	assert.InDelta(t, 0.4, ps.GetColor().X, 1e-12)
	assert.InDelta(t, 0.4, ps.GetColor().Z, 1e-12)
}
