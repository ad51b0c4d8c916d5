package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidParams is returned when frame parameters fail validation
var ErrInvalidParams = errors.New("invalid parameters")

// BackgroundMode selects the sky mapping used for escaped rays
type BackgroundMode int

const (
	BackgroundCheckerboard BackgroundMode = 0
	BackgroundStarfield    BackgroundMode = 1
)

// String returns the CLI name of the mode
func (m BackgroundMode) String() string {
	switch m {
	case BackgroundCheckerboard:
		return "checker"
	case BackgroundStarfield:
		return "stars"
	default:
		return fmt.Sprintf("BackgroundMode(%d)", int(m))
	}
}

// ParseBackgroundMode accepts "checker"/"checkerboard"/"0" and "stars"/"starfield"/"1"
func ParseBackgroundMode(s string) (BackgroundMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "checker", "checkerboard", "0":
		return BackgroundCheckerboard, nil
	case "stars", "starfield", "1":
		return BackgroundStarfield, nil
	default:
		return 0, fmt.Errorf("%w: unknown background %q (use checker or stars)", ErrInvalidParams, s)
	}
}

// Params holds the frame-global integration and display parameters.
// A Params value is immutable for the duration of a frame.
type Params struct {
	StepSize        float64        // dφ in reduced mode, affine dt in general mode
	MaxSteps        int            // Hard bound on integration steps per ray
	EscapeRadius    float64        // Distance from every body at which a ray counts as escaped
	DiskEnabled     bool           // Shade accretion disk crossings
	BackgroundMode  BackgroundMode // Sky mapping for escaped rays
	OverlayEnabled  bool           // Accumulate the curvature grid overlay
	Time            float64        // Animation time for disk rotation and turbulence
	DopplerExponent float64        // Beaming exponent applied to the Doppler factor
	EncodeGamma     bool           // Apply the 1/2.2 display curve after tonemapping
	Exposure        float64        // Linear scale applied before tonemapping
}

// DefaultParams returns sensible default values
func DefaultParams() Params {
	return Params{
		StepSize:        0.1,
		MaxSteps:        600,
		EscapeRadius:    50.0,
		DiskEnabled:     true,
		BackgroundMode:  BackgroundStarfield,
		OverlayEnabled:  false,
		Time:            0.0,
		DopplerExponent: 3.0,
		EncodeGamma:     true,
		Exposure:        1.0,
	}
}

// Validate checks every parameter is in range
func (p Params) Validate() error {
	if !(p.StepSize > 0) || math.IsInf(p.StepSize, 0) {
		return fmt.Errorf("%w: step size must be positive, got %g", ErrInvalidParams, p.StepSize)
	}
	if p.MaxSteps <= 0 {
		return fmt.Errorf("%w: max steps must be positive, got %d", ErrInvalidParams, p.MaxSteps)
	}
	if !(p.EscapeRadius > 0) || math.IsInf(p.EscapeRadius, 0) {
		return fmt.Errorf("%w: escape radius must be positive, got %g", ErrInvalidParams, p.EscapeRadius)
	}
	if p.BackgroundMode != BackgroundCheckerboard && p.BackgroundMode != BackgroundStarfield {
		return fmt.Errorf("%w: unknown background mode %d", ErrInvalidParams, int(p.BackgroundMode))
	}
	if p.DopplerExponent < 0 || math.IsNaN(p.DopplerExponent) || math.IsInf(p.DopplerExponent, 0) {
		return fmt.Errorf("%w: doppler exponent must be finite and non-negative, got %g", ErrInvalidParams, p.DopplerExponent)
	}
	if !(p.Exposure > 0) || math.IsInf(p.Exposure, 0) {
		return fmt.Errorf("%w: exposure must be positive, got %g", ErrInvalidParams, p.Exposure)
	}
	if math.IsNaN(p.Time) || math.IsInf(p.Time, 0) {
		return fmt.Errorf("%w: time must be finite", ErrInvalidParams)
	}
	return nil
}
