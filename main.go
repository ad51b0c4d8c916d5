package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/mrjoshuak/go-openexr/exr"

	"github.com/df07/go-spacetime-raytracer/pkg/compositor"
	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/export"
	"github.com/df07/go-spacetime-raytracer/pkg/renderer"
	"github.com/df07/go-spacetime-raytracer/pkg/scene"
)

// config holds the parsed command line. Scene values are only overridden by
// flags the user actually set.
type config struct {
	sceneID     string
	scenesDir   string
	output      string
	samples     int
	supersample int
	workers     int
	gamma       string
	label       string
	simTime     float64
	help        bool

	width, height   int
	cameraDistance  float64
	cameraAzimuth   float64
	cameraElevation float64
	cameraFOV       float64
	maxSteps        int
	stepSize        float64
	escapeRadius    float64
	background      string
	disk            bool
	overlay         bool
	dopplerExponent float64
	exposure        float64

	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("spacetime", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.sceneID, "scene", "single", "Preset (single, binary, triple), file:<name> from the scenes directory, or a .yaml path")
	fs.StringVar(&cfg.sceneID, "preset", "single", "Alias for -scene")
	fs.StringVar(&cfg.scenesDir, "scenes-dir", "", "Directory holding scene files (default: ./scenes or ../scenes)")
	fs.StringVar(&cfg.output, "output", "", "Output file (.png, .tiff or .exr); default output/<scene>/render_<timestamp>.png")
	fs.IntVar(&cfg.samples, "samples", 4, "Anti-aliasing samples per pixel")
	fs.IntVar(&cfg.supersample, "supersample", 1, "Render at N times the resolution and downsample")
	fs.IntVar(&cfg.workers, "workers", 0, "Number of parallel workers (0 = auto-detect CPU count)")
	fs.StringVar(&cfg.gamma, "gamma", "auto", "Display gamma: auto (on for PNG/TIFF, off for EXR), on, off")
	fs.StringVar(&cfg.label, "label", "", "HUD text: 'auto' for render settings, or lines separated by '|'")
	fs.Float64Var(&cfg.simTime, "sim-time", 0, "Advance the simulation this many time units before rendering")
	fs.BoolVar(&cfg.help, "help", false, "Show help information")

	fs.IntVar(&cfg.width, "width", 0, "Image width in pixels")
	fs.IntVar(&cfg.height, "height", 0, "Image height in pixels")
	fs.Float64Var(&cfg.cameraDistance, "camera-distance", 0, "Camera distance from its target")
	fs.Float64Var(&cfg.cameraAzimuth, "camera-azimuth", 0, "Camera azimuth about +Y in radians")
	fs.Float64Var(&cfg.cameraElevation, "camera-elevation", 0, "Camera polar angle from +Y in radians")
	fs.Float64Var(&cfg.cameraFOV, "camera-fov", 0, "Vertical field of view in radians")
	fs.IntVar(&cfg.maxSteps, "max-steps", 0, "Maximum integration steps per ray")
	fs.Float64Var(&cfg.stepSize, "step-size", 0, "Integration step (angle per step for one body)")
	fs.Float64Var(&cfg.escapeRadius, "escape-radius", 0, "Distance from every body at which rays escape")
	fs.StringVar(&cfg.background, "background", "", "Sky for escaped rays: checker or stars")
	fs.BoolVar(&cfg.disk, "disk", true, "Render accretion disks")
	fs.BoolVar(&cfg.overlay, "overlay", false, "Render the curvature grid overlay")
	fs.Float64Var(&cfg.dopplerExponent, "doppler-exponent", 0, "Relativistic beaming exponent")
	fs.Float64Var(&cfg.exposure, "exposure", 0, "Linear exposure before tonemapping")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { cfg.set[f.Name] = true })

	if cfg.help {
		fmt.Fprintln(stderr, "Spacetime Raytracer")
		fmt.Fprintln(stderr, "Usage: spacetime [options]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Options:")
		fs.PrintDefaults()
	}
	return cfg, nil
}

// buildScene loads the scene and applies every flag the user set
func buildScene(cfg config) (*scene.Scene, error) {
	dir := cfg.scenesDir
	if dir == "" {
		dir = scene.FindScenesDir()
	}
	s, err := scene.Load(cfg.sceneID, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene %q: %w", cfg.sceneID, err)
	}

	if cfg.set["width"] {
		s.Width = cfg.width
	}
	if cfg.set["height"] {
		s.Height = cfg.height
	}
	if cfg.set["camera-distance"] {
		s.Camera.Distance = cfg.cameraDistance
	}
	if cfg.set["camera-azimuth"] {
		s.Camera.Azimuth = cfg.cameraAzimuth
	}
	if cfg.set["camera-elevation"] {
		s.Camera.Elevation = cfg.cameraElevation
	}
	if cfg.set["camera-fov"] {
		s.Camera.FOV = cfg.cameraFOV
	}
	if cfg.set["max-steps"] {
		s.Params.MaxSteps = cfg.maxSteps
	}
	if cfg.set["step-size"] {
		s.Params.StepSize = cfg.stepSize
	}
	if cfg.set["escape-radius"] {
		s.Params.EscapeRadius = cfg.escapeRadius
	}
	if cfg.set["background"] {
		mode, err := core.ParseBackgroundMode(cfg.background)
		if err != nil {
			return nil, err
		}
		s.Params.BackgroundMode = mode
	}
	if cfg.set["disk"] {
		s.Params.DiskEnabled = cfg.disk
	}
	if cfg.set["overlay"] {
		s.Params.OverlayEnabled = cfg.overlay
	}
	if cfg.set["doppler-exponent"] {
		s.Params.DopplerExponent = cfg.dopplerExponent
	}
	if cfg.set["exposure"] {
		s.Params.Exposure = cfg.exposure
	}

	if cfg.simTime < 0 {
		return nil, fmt.Errorf("%w: sim-time must be non-negative, got %g", core.ErrInvalidParams, cfg.simTime)
	}
	s.Advance(cfg.simTime)
	return s, nil
}

// resolveGamma decides whether to apply the display curve for the output format
func resolveGamma(mode string, format export.Format) (bool, error) {
	switch strings.ToLower(mode) {
	case "auto", "":
		return !format.Linear(), nil
	case "on", "true":
		return true, nil
	case "off", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: gamma must be auto, on or off, got %q", core.ErrInvalidParams, mode)
	}
}

// outputPath returns the explicit output or a timestamped default under output/<scene>
func outputPath(cfg config, s *scene.Scene, now time.Time) string {
	if cfg.output != "" {
		return cfg.output
	}
	name := strings.NewReplacer(" ", "-", "/", "-", "\\", "-").Replace(strings.ToLower(s.Name))
	return filepath.Join("output", name, fmt.Sprintf("render_%s.png", now.Format("20060102_150405")))
}

func labelLines(label string, s *scene.Scene, frame core.Frame) []string {
	switch label {
	case "":
		return nil
	case "auto":
		p := frame.Params
		return []string{
			fmt.Sprintf("%s  bodies=%d  t=%.2f", s.Name, len(frame.Bodies), p.Time),
			fmt.Sprintf("step=%.3g  max=%d  bg=%s  disk=%t", p.StepSize, p.MaxSteps, p.BackgroundMode, p.DiskEnabled),
		}
	default:
		return strings.Split(label, "|")
	}
}

// finishImage reduces a supersampled render to the output size and applies
// the display gamma when the output format wants it
func finishImage(img *exr.RGBAImage, width, height int, encodeGamma bool) *exr.RGBAImage {
	img = export.Downsample(img, width, height)
	if encodeGamma {
		export.EncodeGamma(img, compositor.DisplayGamma)
	}
	return img
}

// run renders one frame and writes it, returning the written path
func run(ctx context.Context, cfg config, logger core.Logger) (string, error) {
	if cfg.supersample < 1 {
		return "", fmt.Errorf("%w: supersample must be at least 1, got %d", core.ErrInvalidParams, cfg.supersample)
	}
	if cfg.samples < 1 {
		return "", fmt.Errorf("%w: samples must be at least 1, got %d", core.ErrInvalidParams, cfg.samples)
	}

	s, err := buildScene(cfg)
	if err != nil {
		return "", err
	}

	path := outputPath(cfg, s, time.Now())
	format, err := export.FormatForPath(path)
	if err != nil {
		return "", err
	}
	encodeGamma, err := resolveGamma(cfg.gamma, format)
	if err != nil {
		return "", err
	}
	// Supersampled pixels are averaged before gamma, which is applied once at the end
	s.Params.EncodeGamma = false

	frame, err := s.Frame()
	if err != nil {
		return "", err
	}
	outWidth, outHeight := frame.Width, frame.Height
	frame.Width *= cfg.supersample
	frame.Height *= cfg.supersample

	progressive := renderer.DefaultProgressiveConfig()
	progressive.MaxSamplesPerPixel = cfg.samples
	progressive.MaxPasses = min(progressive.MaxPasses, cfg.samples)
	progressive.NumWorkers = cfg.workers

	fr, err := renderer.NewFrameRenderer(frame, progressive, logger)
	if err != nil {
		return "", err
	}

	logger.Printf("Rendering %q at %dx%d (%dx supersampled) to %s\n", s.Name, outWidth, outHeight, cfg.supersample, path)
	startTime := time.Now()
	img, stats, err := fr.Render(ctx)
	if err != nil {
		return "", err
	}
	logger.Printf("Render completed in %v\n", time.Since(startTime))
	logger.Printf("Samples per pixel: %.1f (range %d - %d)\n", stats.AverageSamples, stats.MinSamples, stats.MaxSamplesUsed)
	logger.Printf("Mean luminance: %.4f\n", stats.MeanLuminance)
	logger.Printf("Rays: %d captured, %d escaped, %d exhausted, %d crossed a disk\n",
		stats.Outcomes.Captured, stats.Outcomes.Escaped, stats.Outcomes.Exhausted, stats.Outcomes.DiskHits)

	img = finishImage(img, outWidth, outHeight, encodeGamma)
	if lines := labelLines(cfg.label, s, frame); len(lines) > 0 {
		export.Annotate(img, lines)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("error creating output directory: %w", err)
		}
	}
	if err := export.WriteFile(path, img); err != nil {
		return "", err
	}
	return path, nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) || (err == nil && cfg.help) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Starting Spacetime Raytracer...")
	path, err := run(ctx, cfg, renderer.NewDefaultLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Render saved as %s\n", path)
}
