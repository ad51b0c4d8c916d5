package simulation

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
)

func TestPresets(t *testing.T) {
	tests := []struct {
		preset Preset
		bodies int
		paused bool
		rs     float64
	}{
		{PresetSingle, 1, true, 1.0},
		{PresetBinary, 2, false, 0.5},
		{PresetTriple, 3, false, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.preset.String(), func(t *testing.T) {
			s := New(tt.preset)
			assert.Len(t, s.Bodies, tt.bodies)
			assert.Equal(t, tt.paused, s.Paused)
			assert.Equal(t, 0.0, s.Time)
			assert.Equal(t, 1.0, s.Speed)
			for _, b := range s.Bodies {
				assert.Equal(t, tt.rs, b.Rs)
				assert.Equal(t, DefaultDiskInnerMult, b.DiskInnerMult)
				assert.Equal(t, DefaultDiskOuterMult, b.DiskOuterMult)
			}
			// Every preset starts at rest about the origin
			assert.True(t, s.CenterOfMass().ApproxEqualThreshold(mgl64.Vec3{}, 1e-12))
			assert.True(t, s.Momentum().ApproxEqualThreshold(mgl64.Vec3{}, 1e-12))
		})
	}
}

func TestParsePreset(t *testing.T) {
	for _, p := range Presets {
		parsed, err := ParsePreset(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	parsed, err := ParsePreset("  Binary ")
	require.NoError(t, err)
	assert.Equal(t, PresetBinary, parsed)

	_, err = ParsePreset("quadruple")
	assert.Error(t, err)
}

func TestPresetNext(t *testing.T) {
	assert.Equal(t, PresetBinary, PresetSingle.Next())
	assert.Equal(t, PresetTriple, PresetBinary.Next())
	assert.Equal(t, PresetSingle, PresetTriple.Next())
}

func TestStep_PausedOrSingleDoesNothing(t *testing.T) {
	s := New(PresetBinary)
	s.Paused = true
	before := append([]Body(nil), s.Bodies...)
	s.Step(0.1)
	assert.Equal(t, before, s.Bodies)
	assert.Equal(t, 0.0, s.Time)

	single := New(PresetSingle)
	single.Paused = false
	single.Step(0.1)
	assert.Equal(t, mgl64.Vec3{}, single.Bodies[0].Position)
	assert.Equal(t, 0.0, single.Time)
}

func TestStep_SpeedScalesTime(t *testing.T) {
	s := New(PresetBinary)
	s.Speed = 2.0
	s.Step(0.01)
	assert.InDelta(t, 0.02, s.Time, 1e-15)
}

func TestBinary_StaysCircular(t *testing.T) {
	s := New(PresetBinary)
	s.Advance(20)

	assert.InDelta(t, 20.0, s.Time, 1e-9)
	separation := s.Bodies[0].Position.Sub(s.Bodies[1].Position).Len()
	assert.InDelta(t, 6.0, separation, 0.05)

	// The pair has rotated about +Y but stayed in the XZ plane
	assert.InDelta(t, 0.0, s.Bodies[0].Position[1], 1e-12)
	assert.False(t, s.Bodies[0].Position.ApproxEqualThreshold(mgl64.Vec3{3, 0, 0}, 0.5))

	assert.True(t, s.CenterOfMass().ApproxEqualThreshold(mgl64.Vec3{}, 1e-9))
	assert.True(t, s.Momentum().ApproxEqualThreshold(mgl64.Vec3{}, 1e-12))
}

func TestTriple_StaysOnCircle(t *testing.T) {
	s := New(PresetTriple)
	s.Advance(5)

	for i, b := range s.Bodies {
		assert.InDelta(t, 5.0, b.Position.Len(), 0.05, "body %d", i)
	}
	assert.True(t, s.CenterOfMass().ApproxEqualThreshold(mgl64.Vec3{}, 1e-9))
}

func TestStep_SkipsCoincidentBodies(t *testing.T) {
	s := &Simulation{
		Speed: 1,
		Bodies: []Body{
			NewBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{}, 1),
			NewBody(mgl64.Vec3{0.05, 0, 0}, mgl64.Vec3{}, 1),
		},
	}
	s.Step(0.1)

	for _, b := range s.Bodies {
		assert.Equal(t, mgl64.Vec3{}, b.Velocity)
	}
}

func TestAdvance(t *testing.T) {
	s := New(PresetSingle)
	s.Advance(0)
	assert.True(t, s.Paused)

	s = New(PresetBinary)
	s.Paused = true
	s.Advance(0.05)
	assert.False(t, s.Paused)
	assert.InDelta(t, 0.05, s.Time, 1e-12)
}

func TestSnapshot(t *testing.T) {
	s := New(PresetTriple)
	bodies, err := s.Snapshot()
	require.NoError(t, err)
	require.Len(t, bodies, 3)
	require.NoError(t, core.ValidateBodies(bodies))

	assert.InDelta(t, 5.0, bodies[0].Position.X, 1e-12)
	assert.InDelta(t, 1.2, bodies[0].DiskInner, 1e-12)
	assert.InDelta(t, 6.0, bodies[0].DiskOuter, 1e-12)

	// The snapshot is a copy
	s.Step(1)
	assert.InDelta(t, 5.0, bodies[0].Position.X, 1e-12)
}

func TestSnapshot_TooManyBodies(t *testing.T) {
	s := &Simulation{}
	for i := 0; i <= core.MaxBodies; i++ {
		s.Bodies = append(s.Bodies, NewBody(mgl64.Vec3{float64(i) * 10, 0, 0}, mgl64.Vec3{}, 1))
	}

	_, err := s.Snapshot()
	assert.ErrorIs(t, err, core.ErrTooManyBodies)
}
