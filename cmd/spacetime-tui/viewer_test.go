package main

import (
	"context"
	"io"
	"log"
	"math"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/renderer"
	"github.com/df07/go-spacetime-raytracer/pkg/scene"
	"github.com/df07/go-spacetime-raytracer/pkg/simulation"
)

func newTestViewer(t *testing.T, preset string, cols, rows int) (*Viewer, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(cols, rows)
	t.Cleanup(screen.Fini)

	s, err := scene.NewPreset(preset)
	require.NoError(t, err)
	s.Params.MaxSteps = 200
	return NewViewer(screen, s, 2, log.New(io.Discard, "", 0)), screen
}

func TestKeyCommand(t *testing.T) {
	tests := []struct {
		name     string
		ev       *tcell.EventKey
		expected command
	}{
		{"escape", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), cmdQuit},
		{"q", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), cmdQuit},
		{"left", tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone), cmdOrbitLeft},
		{"tab", tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone), cmdToggleHUD},
		{"space", tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), cmdTogglePause},
		{"p", tcell.NewEventKey(tcell.KeyRune, 'p', tcell.ModNone), cmdNextPreset},
		{"unbound", tcell.NewEventKey(tcell.KeyRune, 'Q', tcell.ModNone), cmdNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, keyCommand(tt.ev))
		})
	}
}

func TestViewer_NewViewerKeepsColorsLinear(t *testing.T) {
	v, _ := newTestViewer(t, "single", 10, 10)
	assert.False(t, v.scene.Params.EncodeGamma)
	assert.Equal(t, v.scene.Camera.Distance, v.camera.Distance)
}

func TestViewer_CameraCommands(t *testing.T) {
	v, _ := newTestViewer(t, "single", 10, 10)
	az, el, dist, fov := v.camera.Azimuth, v.camera.Elevation, v.camera.Distance, v.camera.FOV

	v.Apply(cmdOrbitRight)
	assert.InDelta(t, az+orbitStep, v.camera.Azimuth, 1e-12)
	v.Apply(cmdOrbitDown)
	assert.InDelta(t, el+orbitStep, v.camera.Elevation, 1e-12)

	v.Apply(cmdZoomIn)
	assert.InDelta(t, dist*(1-zoomRatio), v.camera.Distance, 1e-12)

	v.Apply(cmdWidenFOV)
	assert.InDelta(t, fov+fovStep, v.camera.FOV, 1e-12)
	for i := 0; i < 100; i++ {
		v.Apply(cmdNarrowFOV)
	}
	assert.Equal(t, minFOV, v.camera.FOV)

	v.Apply(cmdPanRight)
	assert.Greater(t, v.camera.Target.Len(), 0.0)

	v.Apply(cmdResetCamera)
	assert.Equal(t, az, v.camera.Azimuth)
	assert.Equal(t, dist, v.camera.Distance)
	assert.Equal(t, 0.0, v.camera.Target.Len())
}

func TestViewer_ToggleCommands(t *testing.T) {
	v, _ := newTestViewer(t, "single", 10, 10)
	p := &v.scene.Params

	v.Apply(cmdToggleDisk)
	assert.False(t, p.DiskEnabled)
	v.Apply(cmdToggleBackground)
	assert.Equal(t, core.BackgroundCheckerboard, p.BackgroundMode)
	v.Apply(cmdToggleBackground)
	assert.Equal(t, core.BackgroundStarfield, p.BackgroundMode)
	v.Apply(cmdToggleOverlay)
	assert.True(t, p.OverlayEnabled)
	v.Apply(cmdToggleHUD)
	assert.False(t, v.showHUD)

	assert.True(t, v.scene.Simulation.Paused)
	v.Apply(cmdTogglePause)
	assert.False(t, v.scene.Simulation.Paused)

	assert.False(t, v.Apply(cmdQuit))
	assert.True(t, v.Apply(cmdNone))
}

func TestViewer_IntegrationCommands(t *testing.T) {
	v, _ := newTestViewer(t, "single", 10, 10)
	p := &v.scene.Params
	step := p.StepSize

	v.Apply(cmdFinerStep)
	assert.InDelta(t, step/stepRatio, p.StepSize, 1e-12)
	for i := 0; i < 100; i++ {
		v.Apply(cmdCoarserStep)
	}
	assert.Equal(t, maxStep, p.StepSize)

	v.Apply(cmdMoreSteps)
	assert.Equal(t, 200+stepsStep, p.MaxSteps)
	for i := 0; i < 100; i++ {
		v.Apply(cmdFewerSteps)
	}
	assert.Equal(t, minSteps, p.MaxSteps)

	v.Apply(cmdGrowBodies)
	assert.InDelta(t, rsRatio, v.scene.Simulation.Bodies[0].Rs, 1e-12)
	for i := 0; i < 100; i++ {
		v.Apply(cmdShrinkBodies)
	}
	assert.Equal(t, minRs, v.scene.Simulation.Bodies[0].Rs)

	v.Apply(cmdFaster)
	assert.Equal(t, 2.0, v.scene.Simulation.Speed)
	for i := 0; i < 10; i++ {
		v.Apply(cmdSlower)
	}
	assert.Equal(t, minSpeed, v.scene.Simulation.Speed)
}

func TestViewer_NextPreset(t *testing.T) {
	v, _ := newTestViewer(t, "single", 10, 10)

	v.Apply(cmdNextPreset)
	assert.Equal(t, simulation.PresetBinary, v.scene.Simulation.Preset)
	assert.Equal(t, "binary", v.scene.Name)
	assert.Len(t, v.scene.Simulation.Bodies, 2)
}

func TestViewer_Update(t *testing.T) {
	v, _ := newTestViewer(t, "binary", 10, 10)
	before := v.scene.Simulation.Bodies[0].Position

	v.Update(0.1)
	assert.InDelta(t, 0.1, v.scene.Params.Time, 1e-12)
	assert.NotEqual(t, before, v.scene.Simulation.Bodies[0].Position)
}

func TestViewer_FrameSize(t *testing.T) {
	v, _ := newTestViewer(t, "single", 40, 20)

	frame, err := v.frame(40, 20)
	require.NoError(t, err)
	assert.Equal(t, 40, frame.Width)
	assert.Equal(t, (20-hudRows)*2, frame.Height)

	v.Apply(cmdToggleHUD)
	frame, err = v.frame(40, 20)
	require.NoError(t, err)
	assert.Equal(t, 40, frame.Height)
}

func TestViewer_Draw(t *testing.T) {
	v, screen := newTestViewer(t, "single", 24, 12)
	require.NoError(t, v.Draw(context.Background()))

	// HUD text on the first row
	var line strings.Builder
	for x := 0; x < 6; x++ {
		r, _, _, _ := screen.GetContent(x, 0)
		line.WriteRune(r)
	}
	assert.Equal(t, "single", line.String())

	// The center cell looks straight into the horizon
	r, _, style, _ := screen.GetContent(12, hudRows+(12-hudRows)/2)
	assert.Equal(t, '▀', r)
	fg, bg, _ := style.Decompose()
	black := tcell.NewRGBColor(0, 0, 0)
	assert.True(t, fg == black || bg == black)

	assert.Greater(t, v.lastStats.Outcomes.Total(), 0)
	assert.Nil(t, v.lastErr)
}

func TestViewer_DrawTooSmall(t *testing.T) {
	v, _ := newTestViewer(t, "single", 10, hudRows)
	assert.NoError(t, v.Draw(context.Background()))
	assert.Equal(t, renderer.RenderStats{}, v.lastStats)
}

func TestViewer_HUDLines(t *testing.T) {
	v, _ := newTestViewer(t, "single", 10, 10)

	lines := v.hudLines()
	require.Len(t, lines, hudRows)
	assert.Contains(t, lines[0], "paused")
	assert.Contains(t, lines[1], "rs=1.00")
	assert.Contains(t, lines[1], "photon=1.50")
	assert.Contains(t, lines[2], "q quit")
}

func TestCellColor(t *testing.T) {
	assert.Equal(t, tcell.NewRGBColor(0, 0, 0), cellColor(0, 0, 0))
	assert.Equal(t, tcell.NewRGBColor(255, 255, 255), cellColor(1, 1, 1))
	assert.Equal(t, tcell.NewRGBColor(255, 0, 0), cellColor(2, -1, 0))

	// Linear mid grey is lifted by the sRGB curve
	mid := cellColor(0.2, 0.2, 0.2)
	r, _, _ := mid.RGB()
	assert.Greater(t, int(r), int(math.Round(0.2*255)))
}
