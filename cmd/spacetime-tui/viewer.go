package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/renderer"
	"github.com/df07/go-spacetime-raytracer/pkg/scene"
)

const (
	hudRows   = 3
	orbitStep = 0.08 // radians per key press
	zoomRatio = 0.1  // fraction of the distance per key press
	panStep   = 0.5
	fovStep   = 0.1
	minFOV    = 0.2
	maxFOV    = 2.5
	minStep   = 0.001
	maxStep   = 1.0
	stepRatio = 1.25
	minSteps  = 50
	maxSteps  = 5000
	stepsStep = 50
	minRs     = 0.1
	maxRs     = 5.0
	rsRatio   = 1.1
	minSpeed  = 0.125
	maxSpeed  = 8.0
)

// command is one viewer action, decoupled from the key that triggers it
type command int

const (
	cmdNone command = iota
	cmdQuit
	cmdOrbitLeft
	cmdOrbitRight
	cmdOrbitUp
	cmdOrbitDown
	cmdZoomIn
	cmdZoomOut
	cmdPanForward
	cmdPanBack
	cmdPanLeft
	cmdPanRight
	cmdNarrowFOV
	cmdWidenFOV
	cmdToggleDisk
	cmdToggleBackground
	cmdToggleOverlay
	cmdNextPreset
	cmdTogglePause
	cmdFinerStep
	cmdCoarserStep
	cmdMoreSteps
	cmdFewerSteps
	cmdGrowBodies
	cmdShrinkBodies
	cmdFaster
	cmdSlower
	cmdResetCamera
	cmdToggleHUD
)

var runeCommands = map[rune]command{
	'q': cmdQuit,
	'+': cmdZoomIn,
	'=': cmdZoomIn,
	'-': cmdZoomOut,
	'w': cmdPanForward,
	's': cmdPanBack,
	'a': cmdPanLeft,
	'd': cmdPanRight,
	'z': cmdNarrowFOV,
	'x': cmdWidenFOV,
	'1': cmdToggleDisk,
	'2': cmdToggleBackground,
	'3': cmdToggleOverlay,
	'p': cmdNextPreset,
	' ': cmdTogglePause,
	'[': cmdFinerStep,
	']': cmdCoarserStep,
	'}': cmdMoreSteps,
	'{': cmdFewerSteps,
	'm': cmdGrowBodies,
	'n': cmdShrinkBodies,
	'.': cmdFaster,
	',': cmdSlower,
	'r': cmdResetCamera,
}

var keyCommands = map[tcell.Key]command{
	tcell.KeyEscape: cmdQuit,
	tcell.KeyCtrlC:  cmdQuit,
	tcell.KeyLeft:   cmdOrbitLeft,
	tcell.KeyRight:  cmdOrbitRight,
	tcell.KeyUp:     cmdOrbitUp,
	tcell.KeyDown:   cmdOrbitDown,
	tcell.KeyPgUp:   cmdZoomIn,
	tcell.KeyPgDn:   cmdZoomOut,
	tcell.KeyTab:    cmdToggleHUD,
}

// keyCommand maps a key event to its command
func keyCommand(ev *tcell.EventKey) command {
	if ev.Key() == tcell.KeyRune {
		return runeCommands[ev.Rune()]
	}
	return keyCommands[ev.Key()]
}

// Viewer renders a scene into terminal cells, two pixels per cell using the
// upper half block glyph, and applies keyboard commands between frames.
type Viewer struct {
	screen  tcell.Screen
	scene   *scene.Scene
	camera  *renderer.OrbitalCamera
	initial scene.CameraConfig
	logger  core.Logger
	workers int

	showHUD   bool
	lastFrame time.Duration
	lastStats renderer.RenderStats
	lastErr   error
}

// NewViewer creates a viewer. Finished colors stay linear so the terminal
// conversion can apply the exact sRGB curve.
func NewViewer(screen tcell.Screen, s *scene.Scene, workers int, logger core.Logger) *Viewer {
	s.Params.EncodeGamma = false
	return &Viewer{
		screen:  screen,
		scene:   s,
		camera:  s.Camera.Orbital(),
		initial: s.Camera,
		logger:  logger,
		workers: workers,
		showHUD: true,
	}
}

// Apply runs one command and reports whether the viewer should keep running
func (v *Viewer) Apply(cmd command) bool {
	p := &v.scene.Params
	sim := v.scene.Simulation

	switch cmd {
	case cmdQuit:
		return false
	case cmdOrbitLeft:
		v.camera.Orbit(-orbitStep, 0)
	case cmdOrbitRight:
		v.camera.Orbit(orbitStep, 0)
	case cmdOrbitUp:
		v.camera.Orbit(0, -orbitStep)
	case cmdOrbitDown:
		v.camera.Orbit(0, orbitStep)
	case cmdZoomIn:
		v.camera.Zoom(v.camera.Distance * zoomRatio)
	case cmdZoomOut:
		v.camera.Zoom(-v.camera.Distance * zoomRatio)
	case cmdPanForward:
		v.camera.Pan(panStep, 0)
	case cmdPanBack:
		v.camera.Pan(-panStep, 0)
	case cmdPanLeft:
		v.camera.Pan(0, -panStep)
	case cmdPanRight:
		v.camera.Pan(0, panStep)
	case cmdNarrowFOV:
		v.camera.FOV = math.Max(minFOV, v.camera.FOV-fovStep)
	case cmdWidenFOV:
		v.camera.FOV = math.Min(maxFOV, v.camera.FOV+fovStep)
	case cmdToggleDisk:
		p.DiskEnabled = !p.DiskEnabled
	case cmdToggleBackground:
		if p.BackgroundMode == core.BackgroundStarfield {
			p.BackgroundMode = core.BackgroundCheckerboard
		} else {
			p.BackgroundMode = core.BackgroundStarfield
		}
	case cmdToggleOverlay:
		p.OverlayEnabled = !p.OverlayEnabled
	case cmdNextPreset:
		next := sim.Preset.Next()
		sim.LoadPreset(next)
		v.scene.Name = next.String()
	case cmdTogglePause:
		sim.Paused = !sim.Paused
	case cmdFinerStep:
		p.StepSize = math.Max(minStep, p.StepSize/stepRatio)
	case cmdCoarserStep:
		p.StepSize = math.Min(maxStep, p.StepSize*stepRatio)
	case cmdMoreSteps:
		p.MaxSteps = min(maxSteps, p.MaxSteps+stepsStep)
	case cmdFewerSteps:
		p.MaxSteps = max(minSteps, p.MaxSteps-stepsStep)
	case cmdGrowBodies:
		for i := range sim.Bodies {
			sim.Bodies[i].Rs = math.Min(maxRs, sim.Bodies[i].Rs*rsRatio)
		}
	case cmdShrinkBodies:
		for i := range sim.Bodies {
			sim.Bodies[i].Rs = math.Max(minRs, sim.Bodies[i].Rs/rsRatio)
		}
	case cmdFaster:
		sim.Speed = math.Min(maxSpeed, sim.Speed*2)
	case cmdSlower:
		sim.Speed = math.Max(minSpeed, sim.Speed/2)
	case cmdResetCamera:
		v.camera = v.initial.Orbital()
	case cmdToggleHUD:
		v.showHUD = !v.showHUD
	}
	return true
}

// HandleEvent processes one terminal event and reports whether to keep running
func (v *Viewer) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return v.Apply(keyCommand(ev))
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

// Update advances the simulation and the disk animation clock by dt seconds
func (v *Viewer) Update(dt float64) {
	v.scene.Simulation.Step(dt)
	v.scene.Params.Time += dt
}

// frame builds the frame for a terminal of cols x rows cells
func (v *Viewer) frame(cols, rows int) (core.Frame, error) {
	if v.showHUD {
		rows -= hudRows
	}
	v.scene.Camera = scene.CameraConfig{
		Distance:  v.camera.Distance,
		Azimuth:   v.camera.Azimuth,
		Elevation: v.camera.Elevation,
		FOV:       v.camera.FOV,
		Target:    core.NewVec3(v.camera.Target[0], v.camera.Target[1], v.camera.Target[2]),
	}
	v.scene.Width = cols
	v.scene.Height = rows * 2
	return v.scene.Frame()
}

// Draw renders one frame and paints it with the HUD
func (v *Viewer) Draw(ctx context.Context) error {
	cols, rows := v.screen.Size()
	top := 0
	if v.showHUD {
		top = hudRows
	}
	if cols <= 0 || rows <= top {
		return nil
	}

	frame, err := v.frame(cols, rows)
	if err != nil {
		v.lastErr = err
		v.drawHUD(cols)
		v.screen.Show()
		return err
	}

	config := renderer.ProgressiveConfig{
		TileSize:           16,
		InitialSamples:     1,
		MaxSamplesPerPixel: 1,
		MaxPasses:          1,
		NumWorkers:         v.workers,
		Sampling:           renderer.DefaultSamplingConfig(),
	}
	fr, err := renderer.NewFrameRenderer(frame, config, v.logger)
	if err != nil {
		v.lastErr = err
		return err
	}

	start := time.Now()
	img, stats, err := fr.Render(ctx)
	if err != nil {
		v.lastErr = err
		return err
	}
	v.lastFrame = time.Since(start)
	v.lastStats = stats
	v.lastErr = nil

	for y := 0; y < frame.Height/2; y++ {
		for x := 0; x < frame.Width; x++ {
			r0, g0, b0, _ := img.RGBA(x, 2*y)
			r1, g1, b1, _ := img.RGBA(x, 2*y+1)
			style := tcell.StyleDefault.
				Foreground(cellColor(r0, g0, b0)).
				Background(cellColor(r1, g1, b1))
			v.screen.SetContent(x, top+y, '▀', nil, style)
		}
	}

	v.drawHUD(cols)
	v.screen.Show()
	return nil
}

// cellColor converts a finished linear color to a terminal true color
func cellColor(r, g, b float32) tcell.Color {
	c := colorful.LinearRgb(float64(r), float64(g), float64(b)).Clamped()
	r8, g8, b8 := c.RGB255()
	return tcell.NewRGBColor(int32(r8), int32(g8), int32(b8))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// hudLines describes the simulation, the first body and the key bindings
func (v *Viewer) hudLines() []string {
	sim := v.scene.Simulation
	p := v.scene.Params

	state := "running"
	if sim.Paused {
		state = "paused"
	}
	fps := 0.0
	if v.lastFrame > 0 {
		fps = 1 / v.lastFrame.Seconds()
	}
	status := fmt.Sprintf("%s  bodies=%d  t=%.2f  speed=%gx  %s  %.1f fps",
		v.scene.Name, len(sim.Bodies), sim.Time, sim.Speed, state, fps)
	if v.lastErr != nil {
		status = "error: " + v.lastErr.Error()
	}

	physics := fmt.Sprintf("step=%.4g  max=%d  bg=%s  disk=%s  grid=%s  dist=%.1f  fov=%.2f",
		p.StepSize, p.MaxSteps, p.BackgroundMode, onOff(p.DiskEnabled), onOff(p.OverlayEnabled),
		v.camera.Distance, v.camera.FOV)
	if len(sim.Bodies) > 0 {
		rs := sim.Bodies[0].Rs
		physics = fmt.Sprintf("rs=%.2f photon=%.2f b=%.2f isco=%.2f  ", rs,
			core.PhotonSphereRadius(rs), core.CriticalImpactParameter(rs), core.ISCORadius(rs)) + physics
	}

	keys := "arrows orbit  +/- zoom  wasd pan  z/x fov  1 disk  2 sky  3 grid  p preset  space pause  [/] step  {/} max  m/n rs  ,/. speed  r reset  tab hud  q quit"
	return []string{status, physics, keys}
}

func (v *Viewer) drawHUD(cols int) {
	if !v.showHUD {
		return
	}
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlack)
	for row, line := range v.hudLines() {
		x := 0
		for _, r := range line {
			if x >= cols {
				break
			}
			v.screen.SetContent(x, row, r, nil, style)
			x++
		}
		for ; x < cols; x++ {
			v.screen.SetContent(x, row, ' ', nil, style)
		}
	}
}

// Run processes events and redraws on every tick until quit or ctx is done
func (v *Viewer) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				// Screen finalized
				return
			}
			eventChan <- ev
		}
	}()

	last := time.Now()
	for {
		select {
		case ev := <-eventChan:
			if !v.HandleEvent(ev) {
				return
			}

		case now := <-ticker.C:
			v.Update(now.Sub(last).Seconds())
			last = now
			if err := v.Draw(ctx); err != nil {
				v.logger.Printf("Frame failed: %v\n", err)
			}

		case <-ctx.Done():
			return
		}
	}
}
