package scene

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/simulation"
)

// sceneFile is the YAML layout of a scene. Absent keys keep the values of
// the preset the file starts from.
type sceneFile struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Group       string         `yaml:"group"`
	Variant     string         `yaml:"variant"`
	Preset      string         `yaml:"preset"`
	Width       int            `yaml:"width"`
	Height      int            `yaml:"height"`
	Camera      cameraFile     `yaml:"camera"`
	Render      renderFile     `yaml:"render"`
	Simulation  simulationFile `yaml:"simulation"`
	Bodies      []bodyFile     `yaml:"bodies"`
}

type cameraFile struct {
	Distance  float64   `yaml:"distance"`
	Azimuth   float64   `yaml:"azimuth"`
	Elevation float64   `yaml:"elevation"`
	FOV       float64   `yaml:"fov"`
	Target    []float64 `yaml:"target,flow"`
}

type renderFile struct {
	StepSize        float64 `yaml:"step_size"`
	MaxSteps        int     `yaml:"max_steps"`
	EscapeRadius    float64 `yaml:"escape_radius"`
	Disk            bool    `yaml:"disk"`
	Background      string  `yaml:"background"`
	Overlay         bool    `yaml:"overlay"`
	DopplerExponent float64 `yaml:"doppler_exponent"`
	Exposure        float64 `yaml:"exposure"`
	EncodeGamma     bool    `yaml:"encode_gamma"`
}

type simulationFile struct {
	Time   float64 `yaml:"time"` // Advance the simulation this far before the first frame
	Speed  float64 `yaml:"speed"`
	Paused bool    `yaml:"paused"`
}

type bodyFile struct {
	Position  []float64 `yaml:"position,flow"`
	Velocity  []float64 `yaml:"velocity,flow"`
	Rs        float64   `yaml:"rs"`
	DiskInner float64   `yaml:"disk_inner"` // Multiple of rs
	DiskOuter float64   `yaml:"disk_outer"` // Multiple of rs
}

// LoadFile reads a YAML scene file
func LoadFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	fallbackName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s, err := Parse(data, fallbackName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse builds a scene from YAML. The file's preset (single by default)
// supplies every value the file leaves out.
func Parse(data []byte, fallbackName string) (*Scene, error) {
	var header struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("invalid scene yaml: %w", err)
	}
	presetName := header.Preset
	if presetName == "" {
		presetName = simulation.PresetSingle.String()
	}
	base, err := NewPreset(presetName)
	if err != nil {
		return nil, err
	}

	file := toFile(base)
	file.Name = fallbackName

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("invalid scene yaml: %w", err)
	}

	return file.scene(base.Simulation)
}

// toFile renders a scene into the file layout so decoding only overwrites present keys
func toFile(s *Scene) sceneFile {
	p := s.Params
	return sceneFile{
		Name:        s.Name,
		Description: s.Description,
		Preset:      s.Simulation.Preset.String(),
		Width:       s.Width,
		Height:      s.Height,
		Camera: cameraFile{
			Distance:  s.Camera.Distance,
			Azimuth:   s.Camera.Azimuth,
			Elevation: s.Camera.Elevation,
			FOV:       s.Camera.FOV,
			Target:    []float64{s.Camera.Target.X, s.Camera.Target.Y, s.Camera.Target.Z},
		},
		Render: renderFile{
			StepSize:        p.StepSize,
			MaxSteps:        p.MaxSteps,
			EscapeRadius:    p.EscapeRadius,
			Disk:            p.DiskEnabled,
			Background:      p.BackgroundMode.String(),
			Overlay:         p.OverlayEnabled,
			DopplerExponent: p.DopplerExponent,
			Exposure:        p.Exposure,
			EncodeGamma:     p.EncodeGamma,
		},
		Simulation: simulationFile{
			Speed:  s.Simulation.Speed,
			Paused: s.Simulation.Paused,
		},
	}
}

func (f *sceneFile) scene(sim *simulation.Simulation) (*Scene, error) {
	target, err := vec3(f.Camera.Target, "camera target")
	if err != nil {
		return nil, err
	}
	background, err := core.ParseBackgroundMode(f.Render.Background)
	if err != nil {
		return nil, err
	}

	if len(f.Bodies) > 0 {
		bodies := make([]simulation.Body, 0, len(f.Bodies))
		for i, bf := range f.Bodies {
			b, err := bf.body()
			if err != nil {
				return nil, fmt.Errorf("body %d: %w", i, err)
			}
			bodies = append(bodies, b)
		}
		sim.Bodies = bodies
	}
	sim.Speed = f.Simulation.Speed
	sim.Paused = f.Simulation.Paused

	s := &Scene{
		Name:        f.Name,
		Description: f.Description,
		Camera: CameraConfig{
			Distance:  f.Camera.Distance,
			Azimuth:   f.Camera.Azimuth,
			Elevation: f.Camera.Elevation,
			FOV:       f.Camera.FOV,
			Target:    target,
		},
		Width:  f.Width,
		Height: f.Height,
		Params: core.Params{
			StepSize:        f.Render.StepSize,
			MaxSteps:        f.Render.MaxSteps,
			EscapeRadius:    f.Render.EscapeRadius,
			DiskEnabled:     f.Render.Disk,
			BackgroundMode:  background,
			OverlayEnabled:  f.Render.Overlay,
			DopplerExponent: f.Render.DopplerExponent,
			EncodeGamma:     f.Render.EncodeGamma,
			Exposure:        f.Render.Exposure,
		},
		Simulation: sim,
	}

	if f.Simulation.Time < 0 {
		return nil, fmt.Errorf("simulation time must be non-negative, got %g", f.Simulation.Time)
	}
	if f.Simulation.Time > 0 {
		// Advance unpauses; restore the file's setting for interactive use
		s.Advance(f.Simulation.Time)
		sim.Paused = f.Simulation.Paused
	}

	if _, err := s.Frame(); err != nil {
		return nil, err
	}
	return s, nil
}

func (b bodyFile) body() (simulation.Body, error) {
	pos, err := vec3(b.Position, "position")
	if err != nil {
		return simulation.Body{}, err
	}
	vel := core.Vec3{}
	if b.Velocity != nil {
		if vel, err = vec3(b.Velocity, "velocity"); err != nil {
			return simulation.Body{}, err
		}
	}

	body := simulation.NewBody(mgl64.Vec3{pos.X, pos.Y, pos.Z}, mgl64.Vec3{vel.X, vel.Y, vel.Z}, b.Rs)
	if b.DiskInner != 0 {
		body.DiskInnerMult = b.DiskInner
	}
	if b.DiskOuter != 0 {
		body.DiskOuterMult = b.DiskOuter
	}
	return body, nil
}

func vec3(v []float64, what string) (core.Vec3, error) {
	switch len(v) {
	case 0:
		return core.Vec3{}, nil
	case 3:
		return core.NewVec3(v[0], v[1], v[2]), nil
	default:
		return core.Vec3{}, fmt.Errorf("%s must have 3 components, got %d", what, len(v))
	}
}
