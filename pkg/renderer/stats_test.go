package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/integrator"
)

func TestOutcomeCounts_Record(t *testing.T) {
	tests := []struct {
		name     string
		sample   Sample
		expected OutcomeCounts
	}{
		{
			name:     "captured",
			sample:   Sample{Result: integrator.Result{Outcome: integrator.Captured, Termination: integrator.TerminatedCapture}},
			expected: OutcomeCounts{Captured: 1},
		},
		{
			name:     "escaped through a disk",
			sample:   Sample{Result: integrator.Result{Outcome: integrator.Escaped, Termination: integrator.TerminatedEscape}, DiskCrossings: 2},
			expected: OutcomeCounts{Escaped: 1, DiskHits: 1},
		},
		{
			name:     "exhausted resolves escaped",
			sample:   Sample{Result: integrator.Result{Outcome: integrator.Escaped, Termination: integrator.TerminatedExhausted}},
			expected: OutcomeCounts{Escaped: 1, Exhausted: 1},
		},
		{
			name:     "exhausted resolves captured",
			sample:   Sample{Result: integrator.Result{Outcome: integrator.Captured, Termination: integrator.TerminatedExhausted}},
			expected: OutcomeCounts{Captured: 1, Exhausted: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var counts OutcomeCounts
			counts.Record(tt.sample)
			assert.Equal(t, tt.expected, counts)
			assert.Equal(t, 1, counts.Total())
		})
	}
}

func TestOutcomeCounts_Merge(t *testing.T) {
	a := OutcomeCounts{Captured: 2, Escaped: 3, Exhausted: 1, DiskHits: 4}
	a.Merge(OutcomeCounts{Captured: 1, Escaped: 1, DiskHits: 1})

	assert.Equal(t, OutcomeCounts{Captured: 3, Escaped: 4, Exhausted: 1, DiskHits: 5}, a)
	assert.Equal(t, 7, a.Total())
}

func TestPixelStats(t *testing.T) {
	var ps PixelStats
	assert.Equal(t, core.Vec3{}, ps.GetColor())

	ps.AddSample(core.NewVec3(1, 0, 0))
	ps.AddSample(core.NewVec3(0, 1, 0))

	assert.Equal(t, 2, ps.SampleCount)
	assert.InDelta(t, 0.5, ps.GetColor().X, 1e-12)
	assert.InDelta(t, 0.5, ps.GetColor().Y, 1e-12)
	assert.InDelta(t, 0.299+0.587, ps.LuminanceAccum, 1e-9)
	assert.InDelta(t, 0.299*0.299+0.587*0.587, ps.LuminanceSqAccum, 1e-9)
}
