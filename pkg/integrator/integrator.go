package integrator

import (
	"fmt"

	"github.com/df07/go-spacetime-raytracer/pkg/core"
	"github.com/df07/go-spacetime-raytracer/pkg/field"
)

// Outcome is the resolved fate of a traced ray
type Outcome int

const (
	Captured Outcome = iota
	Escaped
)

func (o Outcome) String() string {
	switch o {
	case Captured:
		return "captured"
	case Escaped:
		return "escaped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Termination records which condition ended the trace
type Termination int

const (
	TerminatedCapture   Termination = iota // Entered a horizon
	TerminatedEscape                       // Cleared the escape radius of every body
	TerminatedExhausted                    // Ran out of steps; outcome set by the directional tie-break
)

func (t Termination) String() string {
	switch t {
	case TerminatedCapture:
		return "capture"
	case TerminatedEscape:
		return "escape"
	case TerminatedExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("Termination(%d)", int(t))
	}
}

// Result is the terminal state of one traced ray
type Result struct {
	Outcome       Outcome
	Termination   Termination
	ExitDirection core.Vec3 // Unit propagation direction at termination
	Position      core.Vec3 // Ray position at termination
	BodyIndex     int       // Capturing body, -1 when the ray was not captured by a horizon
	Steps         int       // Integration steps taken
}

// StepObserver receives every completed integration step. Disk crossing
// detection and the overlay sampler hang off this hook.
type StepObserver interface {
	ObserveStep(before, after, direction core.Vec3)
}

// Integrator traces a ray through the body field until capture, escape or step exhaustion
type Integrator interface {
	Trace(ray core.Ray, obs StepObserver) Result
}

// New selects the integrator for a frame: the exact reduced orbit integrator when
// exactly one body is present, the general 3D integrator otherwise.
func New(f *field.Field, params core.Params) Integrator {
	if f.NumBodies() == 1 {
		return NewReduced(f, params.StepSize, params.MaxSteps)
	}
	return NewGeneral(f, params.StepSize, params.MaxSteps)
}

// approach carries a ray that starts outside every escape sphere straight to
// the first sphere it enters; beyond the escape radius space is treated as
// flat, so the segment is neither integrated nor counted as a step. ok is
// false when the ray never enters, in which case it escapes unbent.
func approach(f *field.Field, origin, dir core.Vec3) (core.Vec3, bool) {
	t, ok := f.EscapeEntry(origin, dir)
	if !ok {
		return origin, false
	}
	return origin.Add(dir.Multiply(t)), true
}

// tieBreak resolves an exhausted trace: escaped when moving away from every body
func tieBreak(f *field.Field, pos, vel core.Vec3, steps int) Result {
	outcome := Captured
	if f.MovingAwayFromAll(pos, vel) {
		outcome = Escaped
	}
	return Result{
		Outcome:       outcome,
		Termination:   TerminatedExhausted,
		ExitDirection: vel.Normalize(),
		Position:      pos,
		BodyIndex:     -1,
		Steps:         steps,
	}
}

func captured(pos, vel core.Vec3, body, steps int) Result {
	return Result{
		Outcome:       Captured,
		Termination:   TerminatedCapture,
		ExitDirection: vel.Normalize(),
		Position:      pos,
		BodyIndex:     body,
		Steps:         steps,
	}
}

func escaped(pos, vel core.Vec3, steps int) Result {
	return Result{
		Outcome:       Escaped,
		Termination:   TerminatedEscape,
		ExitDirection: vel.Normalize(),
		Position:      pos,
		BodyIndex:     -1,
		Steps:         steps,
	}
}

// Observers fans one step out to several observers in order
type Observers []StepObserver

func (o Observers) ObserveStep(before, after, direction core.Vec3) {
	for _, obs := range o {
		obs.ObserveStep(before, after, direction)
	}
}
