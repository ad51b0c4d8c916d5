package renderer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/mrjoshuak/go-openexr/exr"

	"github.com/df07/go-spacetime-raytracer/pkg/compositor"
	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

// DefaultLogger implements core.Logger by writing to stdout
type DefaultLogger struct{}

func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// NewDefaultLogger creates a new default logger
func NewDefaultLogger() core.Logger {
	return &DefaultLogger{}
}

// ProgressiveConfig contains configuration for progressive rendering
type ProgressiveConfig struct {
	TileSize           int // Size of each tile
	InitialSamples     int // Samples for first pass (1 gives a fast center-sampled preview)
	MaxSamplesPerPixel int // Maximum total anti-aliasing samples per pixel
	MaxPasses          int // Maximum number of passes
	NumWorkers         int // Number of parallel workers (0 = use CPU count)
	Sampling           SamplingConfig
}

// DefaultProgressiveConfig returns sensible default values
func DefaultProgressiveConfig() ProgressiveConfig {
	return ProgressiveConfig{
		TileSize:           32,
		InitialSamples:     1,
		MaxSamplesPerPixel: 8,
		MaxPasses:          4, // 1, 3, 5, then 8 samples
		NumWorkers:         0, // Auto-detect CPU count
		Sampling:           DefaultSamplingConfig(),
	}
}

// normalize fills in unusable values with defaults
func (c ProgressiveConfig) normalize() ProgressiveConfig {
	def := DefaultProgressiveConfig()
	if c.TileSize <= 0 {
		c.TileSize = def.TileSize
	}
	if c.MaxSamplesPerPixel <= 0 {
		c.MaxSamplesPerPixel = def.MaxSamplesPerPixel
	}
	if c.InitialSamples <= 0 || c.InitialSamples > c.MaxSamplesPerPixel {
		c.InitialSamples = min(1, c.MaxSamplesPerPixel)
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = 1
	}
	return c
}

// FrameRenderer renders one validated frame progressively with multiple passes.
// A FrameRenderer renders its frame once; build a new one for the next frame.
type FrameRenderer struct {
	frame         core.Frame
	width, height int
	config        ProgressiveConfig
	finisher      compositor.Finisher
	tiles         []*Tile        // Tile management
	currentPass   int            // Progressive state
	pixelStats    [][]PixelStats // Shared pixel statistics array (global image coordinates)
	outcomes      OutcomeCounts  // Ray fates accumulated over every pass
	workerPool    *WorkerPool    // Worker pool for parallel processing
	started       bool
	stopped       bool
	logger        core.Logger // Logger for rendering output
}

// NewFrameRenderer validates the frame and creates a progressive renderer for it
func NewFrameRenderer(frame core.Frame, config ProgressiveConfig, logger core.Logger) (*FrameRenderer, error) {
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	if logger == nil {
		logger = NewDefaultLogger()
	}
	config = config.normalize()

	// Snapshot the bodies so the caller may advance its simulation while we render
	frame.Bodies = append([]core.Body(nil), frame.Bodies...)

	tiles := NewTileGrid(frame.Width, frame.Height, config.TileSize)

	pixelStats := make([][]PixelStats, frame.Height)
	for y := range pixelStats {
		pixelStats[y] = make([]PixelStats, frame.Width)
	}

	return &FrameRenderer{
		frame:      frame,
		width:      frame.Width,
		height:     frame.Height,
		config:     config,
		finisher:   compositor.NewFinisher(frame.Params),
		tiles:      tiles,
		pixelStats: pixelStats,
		workerPool: NewWorkerPool(frame, config.TileSize, config.Sampling, config.NumWorkers),
		logger:     logger,
	}, nil
}

// Frame returns the frame being rendered
func (pr *FrameRenderer) Frame() core.Frame {
	return pr.frame
}

// getSamplesForPass calculates the target total samples for a given pass
func (pr *FrameRenderer) getSamplesForPass(passNumber int) int {
	// Special case: if only 1 pass, use all samples
	if pr.config.MaxPasses == 1 {
		return pr.config.MaxSamplesPerPixel
	}

	// For multiple passes: first pass is quick preview
	if passNumber == 1 {
		return pr.config.InitialSamples
	}

	// Divide remaining samples evenly across remaining passes
	remainingSamples := pr.config.MaxSamplesPerPixel - pr.config.InitialSamples
	remainingPasses := pr.config.MaxPasses - 1
	samplesPerPass := remainingSamples / remainingPasses

	// Calculate target total samples for this pass
	targetSamples := pr.config.InitialSamples + (passNumber-1)*samplesPerPass

	// For the final pass, use all remaining samples
	if passNumber == pr.config.MaxPasses {
		targetSamples = pr.config.MaxSamplesPerPixel
	}

	return targetSamples
}

// RenderPass renders a single progressive pass using parallel processing
func (pr *FrameRenderer) RenderPass(passNumber int, tileCallback func(TileCompletionResult)) (*exr.RGBAImage, RenderStats, error) {
	pr.currentPass = passNumber
	targetSamples := pr.getSamplesForPass(passNumber)

	pr.logger.Printf("Pass %d: Target %d samples per pixel (using %d workers)...\n",
		passNumber, targetSamples, pr.workerPool.GetNumWorkers())

	if !pr.started {
		pr.workerPool.Start()
		pr.started = true
	}

	// Submit all tiles as tasks
	for taskID, tile := range pr.tiles {
		pr.workerPool.SubmitTask(TileTask{
			Tile:          tile,
			PassNumber:    passNumber,
			TargetSamples: targetSamples,
			TaskID:        taskID,
			PixelStats:    pr.pixelStats,
		})
	}

	// Wait for all tiles to complete and dispatch tile callbacks from this goroutine only
	for i := 0; i < len(pr.tiles); i++ {
		result, ok := pr.workerPool.GetResult()
		if !ok {
			return nil, RenderStats{}, fmt.Errorf("worker pool closed unexpectedly")
		}
		if result.Error != nil {
			return nil, RenderStats{}, result.Error
		}
		pr.outcomes.Merge(result.Stats.Outcomes)

		tile := pr.tiles[result.TaskID]
		tile.PassesCompleted++

		if tileCallback != nil {
			tileCallback(TileCompletionResult{
				TileX:      tile.Bounds.Min.X / pr.config.TileSize,
				TileY:      tile.Bounds.Min.Y / pr.config.TileSize,
				TileImage:  pr.extractTileImage(tile),
				PassNumber: passNumber,

				TileNumber:  i + 1,
				TotalTiles:  len(pr.tiles),
				TotalPasses: pr.config.MaxPasses,
			})
		}
	}

	img, stats := pr.assembleCurrentImage(targetSamples)
	return img, stats, nil
}

// finishedColor returns the output-encoded color of a pixel
func (pr *FrameRenderer) finishedColor(ps *PixelStats) core.Vec3 {
	return pr.finisher.Finish(ps.GetColor())
}

// extractTileImage extracts an 8-bit tile image from the shared pixel stats array
func (pr *FrameRenderer) extractTileImage(tile *Tile) *image.RGBA {
	bounds := tile.Bounds
	tileImage := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			stats := &pr.pixelStats[y][x]
			if stats.SampleCount > 0 {
				tileImage.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, toRGBA8(pr.finishedColor(stats)))
			}
		}
	}

	return tileImage
}

// toRGBA8 quantizes a finished [0,1] color
func toRGBA8(c core.Vec3) color.RGBA {
	c = c.Clamp(0.0, 1.0)
	return color.RGBA{
		R: uint8(255*c.X + 0.5),
		G: uint8(255*c.Y + 0.5),
		B: uint8(255*c.Z + 0.5),
		A: 255,
	}
}

// PassResult contains the result of a single pass
type PassResult struct {
	PassNumber int
	Image      *exr.RGBAImage // Finished colors, gamma encoded only when the frame asks for it
	Stats      RenderStats
	IsLast     bool
}

// TileCompletionResult contains information about a completed tile for callbacks
type TileCompletionResult struct {
	TileX      int // Tile coordinates (not pixel coordinates)
	TileY      int
	TileImage  *image.RGBA // Image data for just this tile
	PassNumber int         // Which pass this tile was rendered in

	// Progress information
	TileNumber  int // Current tile number in this pass (1-based)
	TotalTiles  int // Total number of tiles in the image
	TotalPasses int // Total number of passes planned
}

// RenderOptions configures progressive rendering behavior
type RenderOptions struct {
	TileUpdates bool // Whether to generate tile completion events
}

// RenderProgressive renders with channel-based communication.
// The caller should read from these channels in separate goroutines.
// If options.TileUpdates is false, the tile channel will be closed immediately and no tile events will be generated.
// Cancellation is checked between passes; a pass in flight always completes.
func (pr *FrameRenderer) RenderProgressive(ctx context.Context, options RenderOptions) (<-chan PassResult, <-chan TileCompletionResult, <-chan error) {
	passChan := make(chan PassResult, 1)
	tileChan := make(chan TileCompletionResult, 100) // Buffer for tiles
	errChan := make(chan error, 1)

	if !options.TileUpdates {
		close(tileChan)
	}

	go func() {
		defer close(passChan)
		if options.TileUpdates {
			defer close(tileChan)
		}
		defer close(errChan)
		defer pr.stop()

		pr.logger.Printf("Starting progressive rendering of %dx%d with %d bodies, %d passes...\n",
			pr.width, pr.height, len(pr.frame.Bodies), pr.config.MaxPasses)

		for pass := 1; pass <= pr.config.MaxPasses; pass++ {
			select {
			case <-ctx.Done():
				pr.logger.Printf("Rendering cancelled before pass %d\n", pass)
				errChan <- ctx.Err()
				return
			default:
			}

			startTime := time.Now()

			var tileCallback func(TileCompletionResult)
			if options.TileUpdates {
				tileCallback = func(result TileCompletionResult) {
					select {
					case tileChan <- result:
					case <-ctx.Done():
					default:
						// Channel full; the pass image still carries this tile
					}
				}
			}

			img, stats, err := pr.RenderPass(pass, tileCallback)
			if err != nil {
				errChan <- err
				return
			}

			actualSamples := int(stats.AverageSamples)
			pr.logger.Printf("Pass %d completed in %v (actual: %d samples/pixel, %d captured, %d escaped, %d exhausted)\n",
				pass, time.Since(startTime), actualSamples,
				stats.Outcomes.Captured, stats.Outcomes.Escaped, stats.Outcomes.Exhausted)

			isLast := pass == pr.config.MaxPasses || actualSamples >= pr.config.MaxSamplesPerPixel
			select {
			case passChan <- PassResult{PassNumber: pass, Image: img, Stats: stats, IsLast: isLast}:
			case <-ctx.Done():
				return
			}

			if isLast {
				if actualSamples >= pr.config.MaxSamplesPerPixel {
					pr.logger.Printf("Reached maximum samples per pixel (%d), stopping.\n", pr.config.MaxSamplesPerPixel)
				}
				return
			}
		}
	}()

	return passChan, tileChan, errChan
}

// Render runs every pass and returns the final image
func (pr *FrameRenderer) Render(ctx context.Context) (*exr.RGBAImage, RenderStats, error) {
	passChan, _, errChan := pr.RenderProgressive(ctx, RenderOptions{})

	var last PassResult
	for result := range passChan {
		last = result
	}
	if err := <-errChan; err != nil {
		return nil, RenderStats{}, err
	}
	if last.Image == nil {
		return nil, RenderStats{}, fmt.Errorf("render produced no passes")
	}
	return last.Image, last.Stats, nil
}

// stop shuts the worker pool down exactly once
func (pr *FrameRenderer) stop() {
	if pr.stopped {
		return
	}
	pr.workerPool.Stop()
	pr.stopped = true
}

// assembleCurrentImage creates an image from the current state of the shared pixel stats
// and calculates render statistics in a single pass
func (pr *FrameRenderer) assembleCurrentImage(targetSamples int) (*exr.RGBAImage, RenderStats) {
	img := exr.NewRGBAImage(image.Rect(0, 0, pr.width, pr.height))

	stats := RenderStats{
		TotalPixels:    pr.width * pr.height,
		MaxSamples:     targetSamples,
		MinSamples:     pr.config.MaxSamplesPerPixel, // Start high, will be reduced
		MaxSamplesUsed: 0,
		Outcomes:       pr.outcomes,
	}

	for y := 0; y < pr.height; y++ {
		for x := 0; x < pr.width; x++ {
			pixel := &pr.pixelStats[y][x]

			linear := pixel.GetColor()
			stats.MeanLuminance += linear.Luminance()

			c := pr.finisher.Finish(linear)
			img.SetRGBA(x, y, float32(c.X), float32(c.Y), float32(c.Z), 1)

			stats.TotalSamples += pixel.SampleCount
			stats.MinSamples = min(stats.MinSamples, pixel.SampleCount)
			stats.MaxSamplesUsed = max(stats.MaxSamplesUsed, pixel.SampleCount)
		}
	}

	stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)
	stats.MeanLuminance /= float64(stats.TotalPixels)
	return img, stats
}

// Tile represents a rectangular region of the image to be rendered
type Tile struct {
	ID              int             // Unique tile identifier
	Bounds          image.Rectangle // Pixel bounds (x0,y0,x1,y1)
	PassesCompleted int             // Number of passes completed for this tile
	Sampler         core.Sampler    // Tile-specific sampler for deterministic jitter
}

// NewTile creates a new tile with the specified bounds
func NewTile(id int, bounds image.Rectangle) *Tile {
	return &Tile{
		ID:              id,
		Bounds:          bounds,
		PassesCompleted: 0,
		Sampler:         core.NewSeededSampler(int64(id + 42)), // +42 to avoid seed 0
	}
}

// NewTileGrid creates a grid of tiles covering the entire image
func NewTileGrid(width, height, tileSize int) []*Tile {
	var tiles []*Tile
	tileID := 0

	tilesX := (width + tileSize - 1) / tileSize // Ceiling division
	tilesY := (height + tileSize - 1) / tileSize

	for tileY := 0; tileY < tilesY; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			x0 := tileX * tileSize
			y0 := tileY * tileSize
			x1 := min(x0+tileSize, width) // Don't exceed image bounds
			y1 := min(y0+tileSize, height)

			tiles = append(tiles, NewTile(tileID, image.Rect(x0, y0, x1, y1)))
			tileID++
		}
	}

	return tiles
}
