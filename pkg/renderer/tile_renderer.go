package renderer

import (
	"image"
	"math"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

// SamplingConfig controls per-pixel anti-aliasing and adaptive termination
type SamplingConfig struct {
	AdaptiveMinSamples float64 // Fraction of the pass target taken before adaptive stop may trigger
	AdaptiveThreshold  float64 // Relative luminance error below which a pixel stops sampling
}

// DefaultSamplingConfig returns sensible default values
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		AdaptiveMinSamples: 0.25,
		AdaptiveThreshold:  0.02,
	}
}

// TileRenderer renders tiles of a frame into shared pixel statistics
type TileRenderer struct {
	camera   *Camera
	tracer   *Tracer
	sampling SamplingConfig
}

// NewTileRenderer creates a tile renderer around its own tracer
func NewTileRenderer(camera *Camera, tracer *Tracer, sampling SamplingConfig) *TileRenderer {
	return &TileRenderer{
		camera:   camera,
		tracer:   tracer,
		sampling: sampling,
	}
}

// RenderTileBounds renders pixels within the specified bounds up to targetSamples each
func (tr *TileRenderer) RenderTileBounds(bounds image.Rectangle, pixelStats [][]PixelStats, sampler core.Sampler, targetSamples int) RenderStats {
	// Initialize statistics tracking for this specific bounds
	stats := tr.initRenderStatsForBounds(bounds, targetSamples)

	for j := bounds.Min.Y; j < bounds.Max.Y; j++ {
		for i := bounds.Min.X; i < bounds.Max.X; i++ {
			samplesUsed := tr.adaptiveSamplePixel(i, j, &pixelStats[j][i], sampler, targetSamples, &stats.Outcomes)
			tr.updateStats(&stats, samplesUsed)
		}
	}

	// Finalize statistics
	tr.finalizeStats(&stats)
	return stats
}

// adaptiveSamplePixel takes sub-pixel samples until the pixel converges or reaches maxSamples.
// The first sample of a pixel goes through its center so a one-sample pass is exact.
func (tr *TileRenderer) adaptiveSamplePixel(i, j int, ps *PixelStats, sampler core.Sampler, maxSamples int, outcomes *OutcomeCounts) int {
	initialSampleCount := ps.SampleCount

	for ps.SampleCount < maxSamples && !tr.shouldStopSampling(ps, maxSamples) {
		dx, dy := 0.5, 0.5
		if ps.SampleCount > 0 {
			dx, dy = sampler.Get2D()
		}
		ray := tr.camera.GetRay(float64(i)+dx, float64(j)+dy)
		sample := tr.tracer.TraceRay(ray)
		outcomes.Record(sample)
		ps.AddSample(sample.Color)
	}

	return ps.SampleCount - initialSampleCount
}

// shouldStopSampling determines if adaptive sampling should stop based on perceptual relative error
func (tr *TileRenderer) shouldStopSampling(ps *PixelStats, maxSamples int) bool {
	// Calculate minimum samples as percentage of max samples, but ensure at least 1 sample
	minSamples := max(1, int(float64(maxSamples)*tr.sampling.AdaptiveMinSamples))

	// Don't stop before minimum samples
	if ps.SampleCount < minSamples {
		return false
	}

	// A single sample has no variance estimate
	if ps.SampleCount < 2 {
		return false
	}

	mean := ps.LuminanceAccum / float64(ps.SampleCount)
	meanSq := ps.LuminanceSqAccum / float64(ps.SampleCount)
	variance := math.Max(0, meanSq-mean*mean)

	// Avoid division by zero for black pixels, such as the shadow of a horizon
	if mean <= 1e-8 {
		return variance < 1e-6
	}

	relativeError := math.Sqrt(variance) / mean
	return relativeError < tr.sampling.AdaptiveThreshold
}

// initRenderStatsForBounds initializes the render statistics tracking for specific bounds
func (tr *TileRenderer) initRenderStatsForBounds(bounds image.Rectangle, maxSamples int) RenderStats {
	pixelCount := bounds.Dx() * bounds.Dy()
	return RenderStats{
		TotalPixels:    pixelCount,
		TotalSamples:   0,
		AverageSamples: 0,
		MaxSamples:     maxSamples,
		MinSamples:     maxSamples, // Start with max, will be reduced
		MaxSamplesUsed: 0,
	}
}

// updateStats updates the render statistics with data from a single pixel
func (tr *TileRenderer) updateStats(stats *RenderStats, samplesUsed int) {
	stats.TotalSamples += samplesUsed
	stats.MinSamples = min(stats.MinSamples, samplesUsed)
	stats.MaxSamplesUsed = max(stats.MaxSamplesUsed, samplesUsed)
}

// finalizeStats calculates final statistics after all pixels are rendered
func (tr *TileRenderer) finalizeStats(stats *RenderStats) {
	if stats.TotalPixels == 0 {
		return
	}
	stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)
}
