package core

import (
	"errors"
	"fmt"
	"math"
)

// MaxBodies is the largest number of gravitating bodies a frame may carry
const MaxBodies = 8

var (
	// ErrTooManyBodies is returned when a frame carries more than MaxBodies bodies
	ErrTooManyBodies = errors.New("too many bodies")
	// ErrInvalidBody is returned for a body with a non-positive radius or an empty disk annulus
	ErrInvalidBody = errors.New("invalid body")
)

// Body is one gravitating point mass with an equatorial accretion disk.
// The core only borrows bodies for the duration of a frame and never mutates them.
type Body struct {
	Position  Vec3    // World-space center
	Rs        float64 // Schwarzschild radius
	DiskInner float64 // Inner disk radius in the body's equatorial plane
	DiskOuter float64 // Outer disk radius in the body's equatorial plane
}

// NewBody creates a body with the disk bounds given as multiples of rs
func NewBody(position Vec3, rs, innerMult, outerMult float64) Body {
	return Body{
		Position:  position,
		Rs:        rs,
		DiskInner: innerMult * rs,
		DiskOuter: outerMult * rs,
	}
}

// Validate checks rs > 0 and 0 < DiskInner < DiskOuter
func (b Body) Validate() error {
	if !(b.Rs > 0) || math.IsInf(b.Rs, 0) {
		return fmt.Errorf("%w: schwarzschild radius must be positive, got %g", ErrInvalidBody, b.Rs)
	}
	if !(b.DiskInner > 0) || !(b.DiskInner < b.DiskOuter) {
		return fmt.Errorf("%w: disk bounds must satisfy 0 < inner < outer, got [%g, %g]",
			ErrInvalidBody, b.DiskInner, b.DiskOuter)
	}
	if !b.Position.IsFinite() {
		return fmt.Errorf("%w: position is not finite: %v", ErrInvalidBody, b.Position)
	}
	return nil
}

// ValidateBodies checks the body count against MaxBodies and validates every body.
// Bodies beyond the maximum are reported, never truncated.
func ValidateBodies(bodies []Body) error {
	if len(bodies) == 0 {
		return fmt.Errorf("%w: at least one body is required", ErrInvalidBody)
	}
	if len(bodies) > MaxBodies {
		return fmt.Errorf("%w: got %d, maximum is %d", ErrTooManyBodies, len(bodies), MaxBodies)
	}
	for i, b := range bodies {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("body %d: %w", i, err)
		}
	}
	return nil
}

// PhotonSphereRadius returns r = 3/2 rs
func PhotonSphereRadius(rs float64) float64 {
	return 1.5 * rs
}

// CriticalImpactParameter returns b = 3√3/2 rs, the capture threshold for light
func CriticalImpactParameter(rs float64) float64 {
	return 3.0 * math.Sqrt(3.0) / 2.0 * rs
}

// ISCORadius returns the innermost stable circular orbit, r = 3 rs
func ISCORadius(rs float64) float64 {
	return 3.0 * rs
}
