package scene

import (
	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/simulation"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 450
)

// presetDistances pulls the camera back far enough to frame every body
var presetDistances = map[simulation.Preset]float64{
	simulation.PresetSingle: 10.0,
	simulation.PresetBinary: 16.0,
	simulation.PresetTriple: 20.0,
}

var presetDescriptions = map[simulation.Preset]string{
	simulation.PresetSingle: "One black hole with an accretion disk",
	simulation.PresetBinary: "Two black holes on a circular orbit",
	simulation.PresetTriple: "Three black holes on an equilateral orbit",
}

// NewPreset creates a scene from a simulation preset name
func NewPreset(name string) (*Scene, error) {
	preset, err := simulation.ParsePreset(name)
	if err != nil {
		return nil, err
	}
	return newPresetScene(preset), nil
}

func newPresetScene(preset simulation.Preset) *Scene {
	cam := DefaultCameraConfig()
	cam.Distance = presetDistances[preset]

	return &Scene{
		Name:        preset.String(),
		Description: presetDescriptions[preset],
		Camera:      cam,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		Params:      core.DefaultParams(),
		Simulation:  simulation.New(preset),
	}
}
